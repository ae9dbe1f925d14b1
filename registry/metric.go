package registry

import (
	"fmt"
	stdatomic "sync/atomic"
	"time"

	"github.com/relaymetrics/metricagg/aggregator"
	"github.com/relaymetrics/metricagg/merrors"
	"github.com/relaymetrics/metricagg/metric"
	"github.com/relaymetrics/metricagg/pool"
)

// spareAggregatorPoolCapacity bounds the pool of spare aggregators a
// Metric keeps around to recycle between periods instead of allocating a
// fresh one on every rollover.
const spareAggregatorPoolCapacity = 3

// Metric owns exactly one current aggregator and a bounded pool of spares.
// It carries its identity, kind, and an at-most-one-owner back-reference
// to the CollectionManager it is registered with.
type Metric struct {
	identity metric.Identity
	kind     metric.Kind

	current stdatomic.Pointer[aggregator.Aggregator]

	spareAggregators *pool.Bounded[aggregator.Aggregator]

	managerRef stdatomic.Pointer[CollectionManager]
}

// newMetric constructs a Metric with an unstarted placeholder aggregator as
// its current one, so Collect calls before the metric's first period simply
// observe isActive=false rather than dereferencing a nil aggregator.
func newMetric(identity metric.Identity, kind metric.Kind) (*Metric, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: unknown metric kind %v", merrors.ErrMisuse, kind)
	}
	spares, err := pool.NewBounded[aggregator.Aggregator](spareAggregatorPoolCapacity)
	if err != nil {
		return nil, err
	}
	m := &Metric{identity: identity, kind: kind, spareAggregators: spares}

	first, err := aggregator.NewForKind(kind)
	if err != nil {
		return nil, err
	}
	m.current.Store(&first)
	return m, nil
}

// Identity returns the metric's identity.
func (m *Metric) Identity() metric.Identity { return m.identity }

// Kind returns the metric's aggregation kind.
func (m *Metric) Kind() metric.Kind { return m.kind }

func (m *Metric) loadCurrent() aggregator.Aggregator {
	return *m.current.Load()
}

// CollectFloat records a float64 sample against the current aggregator.
func (m *Metric) CollectFloat(v float64) bool {
	return m.loadCurrent().CollectFloat(v)
}

// CollectInt records an integer sample against the current aggregator.
func (m *Metric) CollectInt(v int64) bool {
	return m.loadCurrent().CollectInt(v)
}

// CanCollect is a predictive, side-effect-free check a caller can use to
// decide whether a sample is even worth computing before spending the
// work to produce it.
func (m *Metric) CanCollect(v float64) bool {
	return m.loadCurrent().CanCollectFloat(v)
}

// obtainAggregator pulls a spare aggregator from the pool, or allocates a
// fresh one of this metric's kind.
func (m *Metric) obtainAggregator() aggregator.Aggregator {
	if agg, ok := m.spareAggregators.TryPull(); ok {
		return *agg
	}
	fresh, err := aggregator.NewForKind(m.kind)
	if err != nil {
		// the kind was validated in newMetric; this can't happen short of
		// corruption, and there is no error channel on the hot path to
		// report it through.
		panic(err)
	}
	return fresh
}

// StartNextAggregationPeriod obtains a fresh aggregator, starts its period,
// and atomically exchanges it in as current, returning the outgoing one for
// the caller (the collection manager) to finalize. Swapping in the fresh
// aggregator before finalizing the old one means producers never observe a
// gap where Collect has nothing active to record against.
func (m *Metric) StartNextAggregationPeriod(tsRounded time.Time, tickNow int64) aggregator.Aggregator {
	fresh := m.obtainAggregator()
	fresh.StartAggregationPeriod(tsRounded, tickNow)
	prev := m.current.Swap(&fresh)
	return *prev
}

// recycleAggregator returns a finished aggregator to the spare pool.
// Recycling is refused for an aggregator still reporting active, since
// handing it back out mid-period would corrupt whatever is currently
// folding into it. Running state is zeroed lazily at the next
// StartAggregationPeriod rather than here, since every kind already zeroes
// its own running state on reuse.
func (m *Metric) recycleAggregator(agg aggregator.Aggregator) {
	if agg.IsActive() {
		return
	}
	m.spareAggregators.TryAdd(&agg)
}

// attachTo claims this metric for manager c, failing if it is already owned
// by a different manager: a Metric must belong to at most one manager at a
// time, so two managers can never both think they own its aggregation
// period.
func (m *Metric) attachTo(c *CollectionManager) bool {
	return m.managerRef.CompareAndSwap(nil, c)
}

// detach clears the owning-manager back-reference.
func (m *Metric) detach() {
	m.managerRef.Store(nil)
}
