// Package ringpool implements the single-producer/single-consumer
// handoff between the UDP receive goroutine and the tick goroutine: a
// fixed pool of packet buffers plus two lock-free rings (one handing
// out free buffer indices, one handing back filled ones) so the hot
// path never allocates or takes a lock.
package ringpool

import (
	"net"
	"sync/atomic"
)

// cacheLinePadBytes is sized to push consecutive ring slots onto separate
// cache lines, mirroring lock_free_queue's PaddedT wrapper.
const cacheLinePadBytes = 64

// Ring is a fixed-capacity SPSC ring buffer of uint32 indices.
// Capacity must be a power of two. One goroutine may call Push, a
// different single goroutine may call Pop; concurrent same-side calls
// are not safe.
type Ring struct {
	mask     uint32
	writePos atomic.Uint64
	readPos  atomic.Uint64
	slots    []paddedSlot
}

type paddedSlot struct {
	value uint32
	_     [cacheLinePadBytes - 4]byte
}

// NewRing allocates a ring with the given power-of-two capacity.
func NewRing(capacity int) *Ring {
	if capacity <= 0 || capacity&(capacity-1) != 0 {
		panic("ringpool: capacity must be a power of two")
	}
	return &Ring{
		mask:  uint32(capacity - 1),
		slots: make([]paddedSlot, capacity),
	}
}

// TryPush attempts to enqueue v. Returns false if the ring is full.
func (r *Ring) TryPush(v uint32) bool {
	write := r.writePos.Load()
	read := r.readPos.Load()
	if write-read >= uint64(len(r.slots)) {
		return false
	}
	r.slots[write&uint64(r.mask)].value = v
	r.writePos.Store(write + 1)
	return true
}

// TryPop attempts to dequeue a value. Returns false if the ring is empty.
func (r *Ring) TryPop() (uint32, bool) {
	read := r.readPos.Load()
	write := r.writePos.Load()
	if read >= write {
		return 0, false
	}
	v := r.slots[read&uint64(r.mask)].value
	r.readPos.Store(read + 1)
	return v, true
}

// Packet is one fixed buffer from the pool plus the length actually
// used by the last write into it and the address it arrived from,
// mirroring the original engine's ReceivedPacketInfo{buffer_index,
// from, size}.
type Packet struct {
	Buf  [1500]byte
	Len  int
	Addr *net.UDPAddr
}

// Pool is a fixed set of pre-allocated packet buffers, indices to
// which are passed around (not the buffers themselves) via the two
// rings below. The receive goroutine calls Acquire/Submit; the tick
// goroutine calls Poll/Release.
type Pool struct {
	packets []Packet
	free    *Ring
	filled  *Ring
}

// NewPool builds a pool of `size` buffers (size must be a power of two)
// with every index initially free.
func NewPool(size int) *Pool {
	p := &Pool{
		packets: make([]Packet, size),
		free:    NewRing(size),
		filled:  NewRing(size),
	}
	for i := 0; i < size; i++ {
		p.free.TryPush(uint32(i))
	}
	return p
}

// Acquire pulls a free buffer index for the receive goroutine to fill.
// Returns false if the pool is exhausted (backpressure: caller should
// drop the incoming datagram).
func (p *Pool) Acquire() (int, bool) {
	idx, ok := p.free.TryPop()
	return int(idx), ok
}

// At returns the buffer for a given index.
func (p *Pool) At(idx int) *Packet { return &p.packets[idx] }

// Submit hands a filled buffer index to the consumer side.
func (p *Pool) Submit(idx int) bool { return p.filled.TryPush(uint32(idx)) }

// Poll pulls the next filled buffer index for the tick goroutine to
// process. Returns false if nothing is queued.
func (p *Pool) Poll() (int, bool) {
	idx, ok := p.filled.TryPop()
	return int(idx), ok
}

// Release returns a processed buffer index to the free ring.
func (p *Pool) Release(idx int) bool { return p.free.TryPush(uint32(idx)) }
