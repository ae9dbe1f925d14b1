package aggregator

import (
	"math"

	"github.com/relaymetrics/metricagg/pool"
)

// ensureConcreteValue clamps ±Inf to ±MaxFloat64 and NaN to 0 before a
// value is copied into a finalized aggregate, so a sink never has to
// special-case non-finite doubles on the wire.
func ensureConcreteValue(x float64) float64 {
	switch {
	case math.IsNaN(x):
		return 0
	case math.IsInf(x, 1):
		return math.MaxFloat64
	case math.IsInf(x, -1):
		return -math.MaxFloat64
	default:
		return x
	}
}

// CountAggregate is the finalized per-period snapshot for a Count metric.
type CountAggregate struct {
	period
	Sum int64

	owner *CountAggregator
}

// ReinitializeAndReturnToOwner zeroes the aggregate and returns it to the
// owning CountAggregator's spare-aggregate pool.
func (a *CountAggregate) ReinitializeAndReturnToOwner() {
	owner := a.owner
	a.Sum = 0
	a.period = period{}
	a.owner = nil
	owner.spareAggregates.TryAdd(a)
}

// MeasurementAggregate is the finalized per-period snapshot for a
// Measurement metric.
type MeasurementAggregate struct {
	period
	Count  int32
	Sum    float64
	Min    float64
	Max    float64
	StdDev float64

	owner *MeasurementAggregator
}

// ReinitializeAndReturnToOwner zeroes the aggregate and returns it to the
// owning MeasurementAggregator's spare-aggregate pool.
func (a *MeasurementAggregate) ReinitializeAndReturnToOwner() {
	owner := a.owner
	*a = MeasurementAggregate{}
	owner.spareAggregates.TryAdd(a)
}

// defaultAggregatePoolCapacity is the spare-aggregate pool size used by
// both concrete kinds, matching the spare-aggregator capacity a Metric
// keeps for its aggregators.
const defaultAggregatePoolCapacity = 3

func newCountAggregatePool() (*pool.Bounded[CountAggregate], error) {
	return pool.NewBounded[CountAggregate](defaultAggregatePoolCapacity)
}

func newMeasurementAggregatePool() (*pool.Bounded[MeasurementAggregate], error) {
	return pool.NewBounded[MeasurementAggregate](defaultAggregatePoolCapacity)
}
