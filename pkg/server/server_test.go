package server

import (
	"testing"

	"duelcore/pkg/simstate"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	s, err := New(":0", nil, func() float64 { return 0.5 })
	if err != nil {
		t.Fatalf("failed to bind test server: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSnapshotAtPicksClosestNotAfter(t *testing.T) {
	s := newTestServer(t)

	for i := 0; i < 5; i++ {
		s.serverTime = float64(i)
		s.recordHistory()
	}
	// history now holds timestamps 0,1,2,3,4

	snap := s.snapshotAt(2.7)
	if snap.Timestamp != 2 {
		t.Fatalf("expected snapshot at t=2 (closest not after 2.7), got %v", snap.Timestamp)
	}

	snap = s.snapshotAt(10)
	if snap.Timestamp != 4 {
		t.Fatalf("expected fallback to latest snapshot for a future shot time, got %v", snap.Timestamp)
	}
}

func TestSnapshotAtEmptyHistory(t *testing.T) {
	s := newTestServer(t)
	snap := s.snapshotAt(1.0)
	if snap.Timestamp != 0 {
		t.Fatalf("expected zero-value snapshot from empty history, got %+v", snap)
	}
}

func TestLookDirectionIsUnitLength(t *testing.T) {
	dir := lookDirection(0.7, 0.2)
	l := dir.Len()
	if l < 0.999 || l > 1.001 {
		t.Fatalf("expected unit-length direction, got length %v", l)
	}
}

func TestApplyDamageTriggersRespawnBelowZeroHealth(t *testing.T) {
	s := newTestServer(t)
	p := simstate.NewInactivePlayer()
	p.PlayerIdx = 0
	p.Health = simstate.BulletDamage - 1
	s.slots[0] = &clientSlot{player: &p}

	s.applyDamage(0)

	if p.Health >= 0 {
		t.Fatalf("expected health to drop below zero before respawn, got %d", p.Health)
	}
	if want := s.serverTime + simstate.RespawnDelay.Seconds(); s.slots[0].respawnAt != want {
		t.Fatalf("expected respawn scheduled at %v, got %v", want, s.slots[0].respawnAt)
	}
}
