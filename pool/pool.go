// Package pool implements the bounded, lock-free object pool that backs
// spare aggregators, spare aggregates and spare values buffers throughout
// metricagg. It trades strict correctness under contention for wait-free
// steady-state behavior: TryAdd and TryPull may both report spurious
// failure when raced, and callers are expected to fall back to allocation
// when that happens.
package pool

import (
	"fmt"
	"sync/atomic"

	metrics "github.com/Dieterbe/go-metrics"

	"github.com/relaymetrics/metricagg/merrors"
)

// MaxCapacity bounds every pool in the process. It exists to keep the
// backing array well clear of any large-object threshold a given Go
// runtime might someday grow.
const MaxCapacity = 10000

// Stats are the self-instrumentation counters exposed by a Bounded pool:
// one counter set per pool instance, not per item.
type Stats struct {
	Hits    metrics.Counter // TryPull calls that found an item
	Misses  metrics.Counter // TryPull calls that found the pool empty
	Added   metrics.Counter // TryAdd calls that found a free slot
	Full    metrics.Counter // TryAdd calls that found the pool full
}

func newStats() Stats {
	return Stats{
		Hits:   metrics.NewCounter(),
		Misses: metrics.NewCounter(),
		Added:  metrics.NewCounter(),
		Full:   metrics.NewCounter(),
	}
}

// Bounded is a fixed-capacity, lock-free pool of *T. Both TryAdd and
// TryPull are wait-free up to capacity steps and lock-free under
// contention; under concurrent mutation either may spuriously report
// failure even when a free/occupied slot exists elsewhere in the array.
type Bounded[T any] struct {
	slots []atomic.Pointer[T]
	Stats Stats
}

// NewBounded constructs a pool of the given capacity. capacity must be in
// (0, MaxCapacity]; anything else is a configuration error.
func NewBounded[T any](capacity int) (*Bounded[T], error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("%w: pool capacity must be positive, got %d", merrors.ErrConfiguration, capacity)
	}
	if capacity > MaxCapacity {
		return nil, fmt.Errorf("%w: pool capacity %d exceeds max %d", merrors.ErrConfiguration, capacity, MaxCapacity)
	}
	return &Bounded[T]{
		slots: make([]atomic.Pointer[T], capacity),
		Stats: newStats(),
	}, nil
}

// TryAdd scans slots linearly and claims the first nil slot with a
// compare-and-swap. Returns false if no free slot was found (the pool may
// in fact have one that a concurrent TryPull claimed mid-scan).
func (p *Bounded[T]) TryAdd(v *T) bool {
	for i := range p.slots {
		if p.slots[i].CompareAndSwap(nil, v) {
			p.Stats.Added.Inc(1)
			return true
		}
	}
	p.Stats.Full.Inc(1)
	return false
}

// TryPull scans slots linearly and claims the first non-nil slot with an
// atomic swap to nil. Returns (nil, false) if no occupied slot was found.
func (p *Bounded[T]) TryPull() (*T, bool) {
	for i := range p.slots {
		if v := p.slots[i].Swap(nil); v != nil {
			p.Stats.Hits.Inc(1)
			return v, true
		}
	}
	p.Stats.Misses.Inc(1)
	return nil, false
}

// Cap returns the pool's fixed capacity.
func (p *Bounded[T]) Cap() int { return len(p.slots) }
