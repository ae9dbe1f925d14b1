// Package aggregator implements the per-metric aggregator state machine
// and its two concrete kinds, Count and Measurement. Rather than an
// inheritance chain of Aggregator -> BufferedAggregator -> {Count,
// Measurement}, each kind implements a flat capability interface directly,
// with the buffered-value algorithm factored into a reusable Buffered[S]
// helper that each kind drives with its own fold/finalize functions.
package aggregator

import "time"

// Aggregator is the capability every metric kind implements: accept
// samples for the current period, and participate in the period-boundary
// protocol driven by the registry's collection manager.
type Aggregator interface {
	// CollectFloat records a float64 sample. Returns false if the sample
	// was rejected (period already finished, or — for Count — the value is
	// non-integral).
	CollectFloat(v float64) bool
	// CollectInt records an integer sample. Always representable, so the
	// only rejection reason is a finished period.
	CollectInt(v int64) bool
	// CanCollectFloat is a predictive, side-effect-free check: would
	// CollectFloat(v) be accepted if called right now, ignoring the
	// isActive race.
	CanCollectFloat(v float64) bool

	// StartAggregationPeriod begins a new period on a freshly obtained (or
	// allocated) aggregator instance.
	StartAggregationPeriod(tsRounded time.Time, tickNow int64)
	// FinishAggregationPeriod ends the current period: it stops accepting
	// samples, drains any buffered-but-unflushed values, and returns a
	// finalized Aggregate for submission.
	FinishAggregationPeriod(tsRounded time.Time, tickNow int64) Aggregate

	// IsActive reports whether the aggregator is still within its period.
	IsActive() bool
}

// Aggregate is the immutable-after-finalization snapshot handed to the
// submission sink at the end of a period.
type Aggregate interface {
	PeriodStartTimestamp() time.Time
	PeriodEndTimestamp() time.Time
	PeriodStartPreciseMs() int64
	PeriodEndPreciseMs() int64

	// ReinitializeAndReturnToOwner zeroes the aggregate and returns it to
	// its owning aggregator's spare-aggregate pool. The sink must call this
	// exactly once per aggregate after it no longer needs it.
	ReinitializeAndReturnToOwner()
}

// FinishedDurationMs returns end-start for a period's precise tick
// counters. This is only meaningful for periods shorter than roughly 24.9
// days, the wrap point of a 32-bit millisecond tick counter; callers
// operating on longer spans should treat the result as advisory.
func FinishedDurationMs(startPreciseMs, endPreciseMs int64) int64 {
	return endPreciseMs - startPreciseMs
}

// period holds the timestamps common to every concrete aggregate.
type period struct {
	startTS, endTS               time.Time
	startPreciseMs, endPreciseMs int64
}

func (p period) PeriodStartTimestamp() time.Time { return p.startTS }
func (p period) PeriodEndTimestamp() time.Time   { return p.endTS }
func (p period) PeriodStartPreciseMs() int64     { return p.startPreciseMs }
func (p period) PeriodEndPreciseMs() int64       { return p.endPreciseMs }
