package ringpool

import "testing"

func TestRingPushPopOrder(t *testing.T) {
	r := NewRing(4)
	for i := uint32(0); i < 4; i++ {
		if !r.TryPush(i) {
			t.Fatalf("push %d should have succeeded", i)
		}
	}
	if r.TryPush(99) {
		t.Fatal("push into a full ring should fail")
	}
	for i := uint32(0); i < 4; i++ {
		v, ok := r.TryPop()
		if !ok || v != i {
			t.Fatalf("expected to pop %d, got %d (ok=%v)", i, v, ok)
		}
	}
	if _, ok := r.TryPop(); ok {
		t.Fatal("pop from an empty ring should fail")
	}
}

func TestPoolAcquireSubmitPollRelease(t *testing.T) {
	p := NewPool(2)

	idx, ok := p.Acquire()
	if !ok {
		t.Fatal("expected a free buffer")
	}
	p.At(idx).Buf[0] = 42
	p.At(idx).Len = 1
	if !p.Submit(idx) {
		t.Fatal("submit should succeed")
	}

	got, ok := p.Poll()
	if !ok || got != idx {
		t.Fatalf("expected to poll back index %d, got %d (ok=%v)", idx, got, ok)
	}
	if p.At(got).Buf[0] != 42 {
		t.Fatal("buffer contents should survive the handoff")
	}
	if !p.Release(got) {
		t.Fatal("release should succeed")
	}
}
