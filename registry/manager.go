package registry

import (
	"fmt"
	stdatomic "sync/atomic"
	"time"

	metrics "github.com/Dieterbe/go-metrics"

	"github.com/relaymetrics/metricagg/aggregator"
	"github.com/relaymetrics/metricagg/merrors"
	"github.com/relaymetrics/metricagg/metric"
	"github.com/relaymetrics/metricagg/sink"
)

// fetchSubmitBlockSize bounds the size of any single allocation made during
// a cycle's fetch-and-submit step, keeping it off whatever large-object
// threshold the runtime might enforce.
const fetchSubmitBlockSize = 2000

// Stats are the CollectionManager's self-instrumentation counters, one
// counter set per manager instance so multiple managers in the same
// process never share a counter.
type Stats struct {
	Registered metrics.Counter
	Removed    metrics.Counter
	CyclesRun  metrics.Counter
}

func newStats() Stats {
	return Stats{
		Registered: metrics.NewCounter(),
		Removed:    metrics.NewCounter(),
		CyclesRun:  metrics.NewCounter(),
	}
}

// CollectionManager owns the immutable metrics snapshot and orchestrates
// the swap-and-submit cycle across all registered metrics.
type CollectionManager struct {
	snapshot stdatomic.Pointer[set]
	sinkRef  stdatomic.Pointer[sink.SubmissionSink]

	Stats Stats
}

// NewManager constructs an empty CollectionManager.
func NewManager() *CollectionManager {
	c := &CollectionManager{Stats: newStats()}
	empty := emptySet()
	c.snapshot.Store(empty)
	return c
}

func (c *CollectionManager) loadSnapshot() *set { return c.snapshot.Load() }

func (c *CollectionManager) casSnapshot(old, next *set) bool {
	return c.snapshot.CompareAndSwap(old, next)
}

// SetSubmissionManager installs (or clears, with nil) the sink that
// receives aggregates at the end of every cycle.
func (c *CollectionManager) SetSubmissionManager(s sink.SubmissionSink) {
	if s == nil {
		c.sinkRef.Store(nil)
		return
	}
	c.sinkRef.Store(&s)
}

func (c *CollectionManager) loadSink() sink.SubmissionSink {
	s := c.sinkRef.Load()
	if s == nil {
		return nil
	}
	return *s
}

// GetOrAddMetric returns the existing metric for identity, or constructs
// and registers a new one of the given kind. Retries the whole
// read-modify-CAS cycle on a lost race against a concurrent mutation.
func (c *CollectionManager) GetOrAddMetric(identity metric.Identity, kind metric.Kind) (*Metric, error) {
	for {
		snap := c.loadSnapshot()
		if m, ok := snap.get(identity); ok {
			return m, nil
		}

		m, err := newMetric(identity, kind)
		if err != nil {
			return nil, err
		}
		if !m.attachTo(c) {
			return nil, fmt.Errorf("%w: metric %q already owned by a different manager", merrors.ErrMisuse, identity)
		}

		next := snap.withAdded(identity, m)
		if c.casSnapshot(snap, next) {
			c.Stats.Registered.Inc(1)
			return m, nil
		}
		m.detach()
	}
}

// TryRemoveMetric detaches and unregisters the metric for identity, if
// present. Returns false if no metric was registered under identity.
func (c *CollectionManager) TryRemoveMetric(identity metric.Identity) bool {
	for {
		snap := c.loadSnapshot()
		m, ok := snap.get(identity)
		if !ok {
			return false
		}

		next := snap.withRemoved(identity)
		if c.casSnapshot(snap, next) {
			m.detach()
			c.Stats.Removed.Inc(1)
			return true
		}
	}
}

// TryGetMetric returns the metric registered under identity, if any.
func (c *CollectionManager) TryGetMetric(identity metric.Identity) (*Metric, bool) {
	return c.loadSnapshot().get(identity)
}

// GetMetrics returns every metric registered under name (names are not
// uniquely indexed: the same name may have many tag-distinct identities).
func (c *CollectionManager) GetMetrics(name string) []*Metric {
	return c.loadSnapshot().byName(name)
}

// GetAllMetrics returns every currently registered metric. The slice is a
// read of the current immutable snapshot's backing array; callers must not
// mutate it.
func (c *CollectionManager) GetAllMetrics() []*Metric {
	return c.loadSnapshot().all()
}

// Snapshot returns the same point-in-time view as GetAllMetrics, named
// separately for callers building stats/debug tooling around a consistent
// snapshot rather than doing per-metric lookups.
func (c *CollectionManager) Snapshot() []*Metric { return c.GetAllMetrics() }

// RunCycle swaps every metric's current aggregator for a fresh one in one
// tight pass (bounding timestamp divergence across metrics), then, block
// by block, finalizes the outgoing aggregators, recycles them, and hands
// the resulting aggregates to the installed sink.
func (c *CollectionManager) RunCycle(tsRounded time.Time, tickNow int64) {
	all := c.loadSnapshot().all()
	n := len(all)
	if n == 0 {
		c.Stats.CyclesRun.Inc(1)
		return
	}

	numBlocks := (n + fetchSubmitBlockSize - 1) / fetchSubmitBlockSize
	metricBlocks := make([][]*Metric, numBlocks)
	aggregatorBlocks := make([][]aggregator.Aggregator, numBlocks)
	for b := 0; b < numBlocks; b++ {
		start := b * fetchSubmitBlockSize
		end := start + fetchSubmitBlockSize
		if end > n {
			end = n
		}
		metricBlocks[b] = all[start:end]
		aggregatorBlocks[b] = make([]aggregator.Aggregator, len(metricBlocks[b]))
	}

	// Tight loop over every metric: keep per-iteration work minimal so the
	// spread of tickNow/tsRounded across metrics stays small.
	for b, metrics := range metricBlocks {
		for i, m := range metrics {
			aggregatorBlocks[b][i] = m.StartNextAggregationPeriod(tsRounded, tickNow)
		}
	}

	s := c.loadSink()
	for b, metrics := range metricBlocks {
		prevs := aggregatorBlocks[b]
		aggregates := make([]aggregator.Aggregate, len(prevs))
		for i, prev := range prevs {
			aggregates[i] = prev.FinishAggregationPeriod(tsRounded, tickNow)
			metrics[i].recycleAggregator(prev)
		}
		aggregatorBlocks[b] = nil // let the GC reclaim this block before submitting the next one

		if s != nil {
			s.SubmitMetrics(aggregates)
		}
	}
	c.Stats.CyclesRun.Inc(1)
}
