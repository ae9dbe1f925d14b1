package aggregator

import (
	"math"
	"time"

	"go.uber.org/atomic"

	"github.com/relaymetrics/metricagg/pool"
)

// CountAggregator keeps a running int64 sum updated by a single atomic add
// per sample. It needs no values buffer: the per-sample operation is
// already as cheap as the buffered path would be.
type CountAggregator struct {
	sum      atomic.Int64
	isActive atomic.Bool

	startTS, endTS               time.Time
	startPreciseMs, endPreciseMs int64

	spareAggregates *pool.Bounded[CountAggregate]
}

// NewCount constructs a Count aggregator.
func NewCount() (*CountAggregator, error) {
	p, err := newCountAggregatePool()
	if err != nil {
		return nil, err
	}
	return &CountAggregator{spareAggregates: p}, nil
}

// CollectInt adds v to the running sum. Rejects the sample (returns false)
// only if the period has already finished.
func (c *CountAggregator) CollectInt(v int64) bool {
	if !c.isActive.Load() {
		return false
	}
	c.sum.Add(v)
	return true
}

// CollectFloat accepts v only when it is integral (v == float64(int64(v)));
// a non-integral double is a dropped sample, not an error.
func (c *CountAggregator) CollectFloat(v float64) bool {
	if !c.CanCollectFloat(v) {
		return false
	}
	return c.CollectInt(int64(v))
}

// CanCollectFloat reports whether v is integral.
func (c *CountAggregator) CanCollectFloat(v float64) bool {
	return v == math.Trunc(v) && !math.IsInf(v, 0) && !math.IsNaN(v)
}

// IsActive reports whether the aggregator is within its current period.
func (c *CountAggregator) IsActive() bool { return c.isActive.Load() }

// StartAggregationPeriod begins a new period: sum resets to zero, which is
// the only running state a Count aggregator carries between periods.
func (c *CountAggregator) StartAggregationPeriod(tsRounded time.Time, tickNow int64) {
	c.sum.Store(0)
	c.startTS = tsRounded
	c.startPreciseMs = tickNow
	c.isActive.Store(true)
}

// FinishAggregationPeriod ends the current period and returns a finalized
// CountAggregate.
func (c *CountAggregator) FinishAggregationPeriod(tsRounded time.Time, tickNow int64) Aggregate {
	c.isActive.Store(false)
	c.endTS = tsRounded
	c.endPreciseMs = tickNow

	agg, ok := c.spareAggregates.TryPull()
	if !ok {
		agg = &CountAggregate{}
	}
	agg.owner = c
	agg.period = period{
		startTS:        c.startTS,
		endTS:          c.endTS,
		startPreciseMs: c.startPreciseMs,
		endPreciseMs:   c.endPreciseMs,
	}
	agg.Sum = c.sum.Load()
	return agg
}
