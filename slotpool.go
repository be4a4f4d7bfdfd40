package aecho

import (
	"sync/atomic"
)

// Slot is a fixed-length, reusable I/O buffer owned by a SlotPool. A slot is
// exclusively owned by the pool while idle and by exactly one consumer while
// acquired; its backing array never changes for the lifetime of the pool.
type Slot struct {
	// Buf is the slot's backing buffer. Contents may be overwritten by each
	// consumer; length and identity are fixed.
	Buf []byte

	index int
	pool  *SlotPool
	inUse atomic.Bool
}

// Index returns the slot's stable position within its pool.
func (s *Slot) Index() int {
	return s.index
}

// SlotPool is a bounded collection of pre-allocated Slots. Capacity is fixed
// at construction; Acquire and Release are safe for arbitrarily many
// concurrent callers.
type SlotPool struct {
	slots []*Slot
	free  *RingBuffer[*Slot]
	idle  atomic.Int32
}

// NewSlotPool creates a pool of capacity slots, each backed by a fresh buffer
// of bufSize bytes. All allocation happens here; the hot path only moves
// slots between the free list and consumers.
func NewSlotPool(capacity, bufSize int) *SlotPool {
	p := &SlotPool{
		slots: make([]*Slot, capacity),
		free:  NewRingBuffer[*Slot](uint64(capacity)),
	}

	backing := make([]byte, capacity*bufSize)
	for i := 0; i < capacity; i++ {
		s := &Slot{
			Buf:   backing[i*bufSize : (i+1)*bufSize : (i+1)*bufSize],
			index: i,
			pool:  p,
		}
		p.slots[i] = s
		p.free.Enqueue(s)
	}
	p.idle.Store(int32(capacity))

	return p
}

// Acquire removes and returns one idle slot. It returns false when the pool
// is empty; the caller decides the backpressure policy.
func (p *SlotPool) Acquire() (*Slot, bool) {
	s, ok := p.free.Dequeue()
	if !ok {
		return nil, false
	}
	s.inUse.Store(true)
	p.idle.Add(-1)

	return s, true
}

// Release returns a slot to the idle set. Slots that did not originate from
// this pool, and slots already idle, are ignored.
func (p *SlotPool) Release(s *Slot) {
	if s == nil || s.pool != p {
		return
	}
	if !s.inUse.CompareAndSwap(true, false) {
		return // double release.
	}
	p.free.Enqueue(s)
	p.idle.Add(1)
}

// Len returns the current number of idle slots.
func (p *SlotPool) Len() int {
	return int(p.idle.Load())
}

// Cap returns the capacity of the pool.
func (p *SlotPool) Cap() int {
	return len(p.slots)
}
