package aecho

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSlotPool(t *testing.T) {
	t.Run("NewSlotPool", func(t *testing.T) {
		p := NewSlotPool(4, 64)
		require.Equal(t, 4, p.Cap())
		require.Equal(t, 4, p.Len())
	})

	t.Run("Acquire to exhaustion", func(t *testing.T) {
		p := NewSlotPool(2, 64)

		a, ok := p.Acquire()
		require.True(t, ok)
		b, ok := p.Acquire()
		require.True(t, ok)
		require.NotSame(t, a, b)
		require.Equal(t, 0, p.Len())

		_, ok = p.Acquire()
		require.False(t, ok)

		p.Release(a)
		require.Equal(t, 1, p.Len())

		c, ok := p.Acquire()
		require.True(t, ok)
		require.Same(t, a, c)
	})

	t.Run("buffer identity preserved", func(t *testing.T) {
		p := NewSlotPool(1, 16)

		s, ok := p.Acquire()
		require.True(t, ok)
		require.Len(t, s.Buf, 16)

		copy(s.Buf, "abcdef")
		first := &s.Buf[0]
		p.Release(s)

		again, ok := p.Acquire()
		require.True(t, ok)
		require.Same(t, s, again)
		require.Same(t, first, &again.Buf[0])
	})

	t.Run("double release ignored", func(t *testing.T) {
		p := NewSlotPool(2, 16)

		s, ok := p.Acquire()
		require.True(t, ok)

		p.Release(s)
		p.Release(s)
		require.Equal(t, 2, p.Len(), "idle count must not exceed capacity")
	})

	t.Run("foreign slot ignored", func(t *testing.T) {
		p := NewSlotPool(1, 16)
		other := NewSlotPool(1, 16)

		s, ok := other.Acquire()
		require.True(t, ok)

		p.Release(s)
		require.Equal(t, 1, p.Len())

		p.Release(nil)
		require.Equal(t, 1, p.Len())
	})
}

func TestSlotPoolConcurrent(t *testing.T) {
	const (
		capacity = 8
		workers  = 16
		rounds   = 500
	)

	p := NewSlotPool(capacity, 32)

	// Track that no slot is ever held by two workers at once.
	var holders sync.Map
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < rounds; i++ {
				s, ok := p.Acquire()
				if !ok {
					continue
				}

				if _, loaded := holders.LoadOrStore(s.Index(), struct{}{}); loaded {
					t.Errorf("slot %d acquired by two holders", s.Index())
				}

				s.Buf[0] = byte(i)

				holders.Delete(s.Index())
				p.Release(s)
			}
		}()
	}

	wg.Wait()
	require.Equal(t, capacity, p.Len(), "all slots must return to the pool")
}
