// Package buffer implements the fixed-capacity, lock-free append buffer
// that decouples high-rate Collect calls from the more expensive fold into
// running aggregate state.
package buffer

import (
	"fmt"

	"go.uber.org/atomic"

	"github.com/relaymetrics/metricagg/merrors"
)

// MaxCapacity bounds every values buffer in the process, keeping a single
// buffer's backing array and its fold pass small enough to stay cheap
// even under a runaway sampling rate.
const MaxCapacity = 5000

// Values is a fixed-capacity, append-only buffer of T. Once locked, no
// further appends succeed; once TryCountValuesAndLock has returned
// successfully, prevAddIndex == cap(values) and no subsequent TryAdd can
// succeed until Reset.
type Values[T any] struct {
	values       []T
	prevAddIndex atomic.Int32 // -1 initially; clamped at len(values)
	isLocked     atomic.Bool
}

// New allocates a values buffer of the given capacity, which must be in
// (0, MaxCapacity].
func New[T any](capacity int) (*Values[T], error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("%w: buffer capacity must be positive, got %d", merrors.ErrConfiguration, capacity)
	}
	if capacity > MaxCapacity {
		return nil, fmt.Errorf("%w: buffer capacity %d exceeds max %d", merrors.ErrConfiguration, capacity, MaxCapacity)
	}
	b := &Values[T]{values: make([]T, capacity)}
	b.prevAddIndex.Store(-1)
	return b, nil
}

// Cap returns the buffer's fixed capacity.
func (b *Values[T]) Cap() int { return len(b.values) }

// TryAdd appends v. Returns false once the buffer is full; callers on the
// hot path must not retry, they should obtain a fresh buffer instead.
func (b *Values[T]) TryAdd(v T) bool {
	idx := b.prevAddIndex.Add(1)
	if int(idx) < len(b.values) {
		b.values[idx] = v
		return true
	}
	// Clamp so a long-running producer hammering a full buffer can't
	// overflow the int32 counter.
	b.prevAddIndex.Store(int32(len(b.values)))
	return false
}

// TryCountValuesAndLock locks the buffer against further appends and
// returns the number of values successfully added. It succeeds at most
// once per buffer lifetime before Reset; a second call returns (0, false).
func (b *Values[T]) TryCountValuesAndLock() (count int, ok bool) {
	if !b.isLocked.CompareAndSwap(false, true) {
		return 0, false
	}
	pidx := b.prevAddIndex.Swap(int32(len(b.values)))
	if pidx < 0 {
		return 0, true
	}
	n := int(pidx) + 1
	if n > len(b.values) {
		n = len(b.values)
	}
	return n, true
}

// Slice returns the first n stored values. Callers must only call this
// after TryCountValuesAndLock has returned with count == n; the buffer does
// not itself enforce that ordering.
func (b *Values[T]) Slice(n int) []T {
	return b.values[:n]
}

// Reset clears the buffer for reuse from a pool. No producer can observe a
// half-reset buffer: the buffer is locked for the duration of the zero-fill
// and only unlocked once prevAddIndex is back at -1.
func (b *Values[T]) Reset() {
	b.isLocked.Store(true)
	b.prevAddIndex.Store(int32(len(b.values)))
	var zero T
	for i := range b.values {
		b.values[i] = zero
	}
	b.prevAddIndex.Store(-1)
	b.isLocked.Store(false)
}
