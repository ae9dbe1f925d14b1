// Package sink defines the submission boundary the aggregation core invokes
// on every cycle. Serialization, wire encoding, and transport are left
// entirely to the sink implementation.
package sink

import "github.com/relaymetrics/metricagg/aggregator"

// SubmissionSink receives finalized aggregates at the end of each
// aggregation cycle. Aggregates for one cycle may arrive split across
// multiple calls, since the manager delivers them in fixed-size blocks
// rather than one big slice, and must not be assumed contiguous.
//
// Implementations must call aggregate.ReinitializeAndReturnToOwner() on
// every aggregate in the block exactly once, after they no longer need it,
// so it can return to its owning aggregator's spare-aggregate pool.
type SubmissionSink interface {
	SubmitMetrics(block []aggregator.Aggregate)
}
