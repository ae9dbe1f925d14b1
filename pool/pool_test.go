package pool

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBoundedRejectsBadCapacity(t *testing.T) {
	_, err := NewBounded[int](0)
	require.Error(t, err)

	_, err = NewBounded[int](-1)
	require.Error(t, err)

	_, err = NewBounded[int](MaxCapacity + 1)
	require.Error(t, err)
}

func TestTryAddTryPullRoundTrip(t *testing.T) {
	p, err := NewBounded[int](4)
	require.NoError(t, err)

	a, b := 1, 2
	require.True(t, p.TryAdd(&a))
	require.True(t, p.TryAdd(&b))

	got := map[int]bool{}
	for i := 0; i < 2; i++ {
		v, ok := p.TryPull()
		require.True(t, ok)
		got[*v] = true
	}
	assert.Equal(t, map[int]bool{1: true, 2: true}, got)

	_, ok := p.TryPull()
	assert.False(t, ok, "pool should report empty once drained")
}

func TestTryAddReportsFullWhenAllSlotsTaken(t *testing.T) {
	p, err := NewBounded[int](2)
	require.NoError(t, err)

	a, b, c := 1, 2, 3
	require.True(t, p.TryAdd(&a))
	require.True(t, p.TryAdd(&b))
	assert.False(t, p.TryAdd(&c))
}

func TestPoolNeverExceedsCapacityUnderConcurrency(t *testing.T) {
	const capacity = 8
	p, err := NewBounded[int](capacity)
	require.NoError(t, err)

	var wg sync.WaitGroup
	values := make([]int, 64)
	for i := range values {
		values[i] = i
	}
	for i := range values {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p.TryAdd(&values[i])
		}(i)
	}
	wg.Wait()

	count := 0
	for {
		if _, ok := p.TryPull(); !ok {
			break
		}
		count++
	}
	assert.LessOrEqual(t, count, capacity)
}
