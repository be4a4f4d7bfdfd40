package server

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/andrei-cloud/aecho"
)

func TestOutboundQueueFIFO(t *testing.T) {
	q := newOutboundQueue(16)

	for i := 0; i < 5; i++ {
		require.NoError(t, q.enqueue(outboundItem{payload: []byte{byte(i)}}))
	}
	require.Equal(t, 5, q.length())

	for i := 0; i < 5; i++ {
		it, ok := q.dequeue()
		require.True(t, ok)
		require.Equal(t, []byte{byte(i)}, it.payload)
	}
	require.Equal(t, 0, q.length())
}

func TestOutboundQueueBound(t *testing.T) {
	q := newOutboundQueue(2)

	require.NoError(t, q.enqueue(outboundItem{payload: []byte("a")}))
	require.NoError(t, q.enqueue(outboundItem{payload: []byte("b")}))

	// The queue is at its bound; the next enqueue must block until the
	// consumer makes room.
	unblocked := make(chan error, 1)
	go func() {
		unblocked <- q.enqueue(outboundItem{payload: []byte("c")})
	}()

	select {
	case <-unblocked:
		t.Fatal("enqueue returned while the queue was full")
	case <-time.After(100 * time.Millisecond):
	}

	it, ok := q.dequeue()
	require.True(t, ok)
	require.Equal(t, []byte("a"), it.payload)

	select {
	case err := <-unblocked:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("enqueue did not unblock after dequeue")
	}
}

func TestOutboundQueueClose(t *testing.T) {
	t.Run("unblocks empty dequeue", func(t *testing.T) {
		q := newOutboundQueue(4)

		done := make(chan bool, 1)
		go func() {
			_, ok := q.dequeue()
			done <- ok
		}()

		time.Sleep(50 * time.Millisecond)
		q.close()

		select {
		case ok := <-done:
			require.False(t, ok)
		case <-time.After(time.Second):
			t.Fatal("dequeue did not unblock on close")
		}
	})

	t.Run("unblocks full enqueue", func(t *testing.T) {
		q := newOutboundQueue(1)
		require.NoError(t, q.enqueue(outboundItem{payload: []byte("a")}))

		done := make(chan error, 1)
		go func() {
			done <- q.enqueue(outboundItem{payload: []byte("b")})
		}()

		time.Sleep(50 * time.Millisecond)
		q.close()

		select {
		case err := <-done:
			require.ErrorIs(t, err, ErrServerClosed)
		case <-time.After(time.Second):
			t.Fatal("enqueue did not unblock on close")
		}
	})

	t.Run("drains queued items after close", func(t *testing.T) {
		q := newOutboundQueue(4)
		require.NoError(t, q.enqueue(outboundItem{payload: []byte("a")}))
		q.close()

		it, ok := q.dequeue()
		require.True(t, ok)
		require.Equal(t, []byte("a"), it.payload)

		_, ok = q.dequeue()
		require.False(t, ok)

		require.ErrorIs(t, q.enqueue(outboundItem{}), ErrServerClosed)
	})
}

func TestSendSlotBackpressure(t *testing.T) {
	const maxConns = 3

	srv, err := NewServer("127.0.0.1:0", nil, &ServerConfig{
		MaxConns:   maxConns,
		BufferSize: 64,
	})
	require.NoError(t, err)

	// Drain the send pool: at most maxConns sends can be in flight.
	held := make([]*aecho.Slot, 0, maxConns)
	for i := 0; i < maxConns; i++ {
		slot := srv.acquireSendSlot()
		require.NotNil(t, slot)
		held = append(held, slot)
	}
	require.Equal(t, 0, srv.sendPool.Len())

	// The sender must block here until a slot is returned.
	got := make(chan struct{})
	go func() {
		slot := srv.acquireSendSlot()
		if slot != nil {
			srv.releaseSendSlot(slot)
		}
		close(got)
	}()

	select {
	case <-got:
		t.Fatal("acquireSendSlot returned with the pool exhausted")
	case <-time.After(100 * time.Millisecond):
	}

	// Returning one slot signals the blocked sender.
	srv.releaseSendSlot(held[0])

	select {
	case <-got:
	case <-time.After(time.Second):
		t.Fatal("acquireSendSlot did not unblock after a release")
	}

	for _, slot := range held[1:] {
		srv.releaseSendSlot(slot)
	}
	require.Equal(t, maxConns, srv.sendPool.Len())
}

func TestSendSlotPoolSizedToMaxConns(t *testing.T) {
	srv, err := NewServer("127.0.0.1:0", nil, &ServerConfig{MaxConns: 7})
	require.NoError(t, err)

	require.Equal(t, 7, srv.sendPool.Cap())
	require.Equal(t, 7, srv.recvPool.Cap())
}

func TestConcurrentDispatchOrdering(t *testing.T) {
	// Many producers, one consumer: items drain in global FIFO order.
	q := newOutboundQueue(1024)

	var mu sync.Mutex
	var seen []byte

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			it, ok := q.dequeue()
			if !ok {
				return
			}
			mu.Lock()
			seen = append(seen, it.payload[0])
			mu.Unlock()
		}
	}()

	const items = 200
	for i := 0; i < items; i++ {
		require.NoError(t, q.enqueue(outboundItem{payload: []byte{byte(i)}}))
	}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == items
	}, time.Second, 5*time.Millisecond)

	q.close()
	wg.Wait()

	for i, b := range seen {
		require.Equal(t, byte(i), b, "item %d drained out of order", i)
	}
}
