package state

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleAllocatorSequential(t *testing.T) {
	a := NewHandleAllocator()
	for want := Handle(0); want < 5; want++ {
		assert.Equal(t, want, a.Acquire())
	}
	assert.Equal(t, 5, a.Len())
}

func TestHandleAllocatorReusesSmallestGap(t *testing.T) {
	a := NewHandleAllocator()
	for i := 0; i < 5; i++ {
		a.Acquire()
	}

	require.True(t, a.Release(3))
	require.True(t, a.Release(1))

	assert.Equal(t, Handle(1), a.Acquire())
	assert.Equal(t, Handle(3), a.Acquire())
	assert.Equal(t, Handle(5), a.Acquire())
}

func TestHandleAllocatorReleaseZero(t *testing.T) {
	a := NewHandleAllocator()
	a.Acquire()
	a.Acquire()

	require.True(t, a.Release(0))
	assert.False(t, a.InUse(0))
	assert.Equal(t, Handle(0), a.Acquire())
}

func TestHandleAllocatorDoubleRelease(t *testing.T) {
	a := NewHandleAllocator()
	h := a.Acquire()

	assert.True(t, a.Release(h))
	assert.False(t, a.Release(h))
	assert.False(t, a.Release(42))
	assert.Equal(t, 0, a.Len())
}

// smallestFree computes the expected allocation from a plain set.
func smallestFree(live map[Handle]bool) Handle {
	h := Handle(0)
	for live[h] {
		h++
	}
	return h
}

func TestHandleAllocatorRandomSequence(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	a := NewHandleAllocator()
	live := map[Handle]bool{}

	for i := 0; i < 2000; i++ {
		if len(live) == 0 || rng.Intn(3) != 0 {
			want := smallestFree(live)
			got := a.Acquire()
			require.Equal(t, want, got, "step %d", i)
			live[got] = true
			continue
		}

		var victim Handle
		n := rng.Intn(len(live))
		for h := range live {
			if n == 0 {
				victim = h
				break
			}
			n--
		}
		require.True(t, a.Release(victim))
		delete(live, victim)
	}
	assert.Equal(t, len(live), a.Len())
}
