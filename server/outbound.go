package server

import (
	"sync"

	"github.com/eapache/queue"
)

// outboundItem pairs a decoded payload with the session it came from. The
// session reference only picks the destination socket; the item never owns
// session state.
type outboundItem struct {
	payload []byte
	sess    *Session
}

// outboundQueue is a bounded FIFO of outbound items with blocking semantics
// on both ends: producers (per-connection decode loops) block while the queue
// is full, the single sender worker blocks while it is empty.
type outboundQueue struct {
	mu       sync.Mutex
	notEmpty *sync.Cond
	notFull  *sync.Cond
	items    *queue.Queue
	bound    int
	closed   bool
}

func newOutboundQueue(bound int) *outboundQueue {
	q := &outboundQueue{
		items: queue.New(),
		bound: bound,
	}
	q.notEmpty = sync.NewCond(&q.mu)
	q.notFull = sync.NewCond(&q.mu)

	return q
}

// enqueue appends an item, blocking while the queue is at its bound. Returns
// ErrServerClosed once the queue has been closed.
func (q *outboundQueue) enqueue(it outboundItem) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.items.Length() >= q.bound && !q.closed {
		q.notFull.Wait()
	}

	if q.closed {
		return ErrServerClosed
	}

	q.items.Add(it)
	q.notEmpty.Signal()

	return nil
}

// dequeue removes the oldest item, blocking while the queue is empty. The
// second return value is false once the queue is closed and drained.
func (q *outboundQueue) dequeue() (outboundItem, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.items.Length() == 0 && !q.closed {
		q.notEmpty.Wait()
	}

	if q.items.Length() == 0 {
		return outboundItem{}, false
	}

	it, ok := q.items.Remove().(outboundItem)
	if !ok {
		return outboundItem{}, false
	}

	q.notFull.Signal()

	return it, true
}

// close wakes all blocked producers and the sender worker. Items already
// queued are still drained by the worker.
func (q *outboundQueue) close() {
	q.mu.Lock()
	q.closed = true
	q.notEmpty.Broadcast()
	q.notFull.Broadcast()
	q.mu.Unlock()
}

// length reports the number of queued items.
func (q *outboundQueue) length() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.items.Length()
}
