package aggregator

import (
	"math"
	"time"

	"github.com/relaymetrics/metricagg/pool"
)

// measurementRunning is the per-period running state folded from buffer
// flushes. min/max start at +Inf/-Inf so the first flush's comparison-based
// merge initializes them correctly even though the zero value of a plain
// float64 pair would not.
type measurementRunning struct {
	count        int32
	sum          float64
	min          float64
	max          float64
	sumOfSquares float64
	stdDev       float64
}

func freshMeasurementRunning() measurementRunning {
	return measurementRunning{min: math.Inf(1), max: math.Inf(-1)}
}

// measurementBufferCapacity and measurementSparePoolCapacity size the
// per-aggregator values buffer and its spare pool: large enough to absorb
// a burst between folds without starting to reject samples, small enough
// that a fold pass stays cheap.
const (
	measurementBufferCapacity    = 500
	measurementSparePoolCapacity = 3
)

// MeasurementAggregator computes count/sum/min/max/stddev over a buffered
// stream of float64 samples. It runs its buffer unsynchronized: Collect
// never blocks behind a period-boundary flush.
type MeasurementAggregator struct {
	buf             *Buffered[measurementRunning]
	spareAggregates *pool.Bounded[MeasurementAggregate]
}

// NewMeasurement constructs a Measurement aggregator.
func NewMeasurement() (*MeasurementAggregator, error) {
	spareAggregates, err := newMeasurementAggregatePool()
	if err != nil {
		return nil, err
	}
	m := &MeasurementAggregator{spareAggregates: spareAggregates}
	buffered, err := NewBuffered(measurementBufferCapacity, measurementSparePoolCapacity, false, m.fold)
	if err != nil {
		return nil, err
	}
	m.buf = buffered
	return m, nil
}

// fold is the FoldFunc driving Buffered: an unlocked first pass over the
// flushed values, then an O(1) locked merge into the running state.
func (m *MeasurementAggregator) fold(values []float64, b *Buffered[measurementRunning]) {
	if len(values) == 0 {
		return
	}
	var bufCount int32
	var bufSum, bufSumSq float64
	bufMin := values[0]
	bufMax := values[0]
	for _, v := range values {
		if math.IsNaN(v) {
			continue
		}
		bufCount++
		bufSum += v
		bufSumSq += v * v
		// bufMin/bufMax start from values[0], which may be NaN; the first
		// non-NaN value replaces it.
		if v < bufMin || math.IsNaN(bufMin) {
			bufMin = v
		}
		if v > bufMax || math.IsNaN(bufMax) {
			bufMax = v
		}
	}

	b.Lock()
	r := b.Running()
	r.count += bufCount
	r.sum += bufSum
	if bufMin < r.min {
		r.min = bufMin
	}
	if bufMax > r.max {
		r.max = bufMax
	}
	r.sumOfSquares += bufSumSq
	r.stdDev = computeStdDev(r.count, r.sum, r.sumOfSquares)
	b.Unlock()
}

// computeStdDev recomputes the population standard deviation from the
// running count/sum/sumOfSquares, clamping a variance that goes slightly
// negative from floating-point error back to zero, and propagating NaN
// once the running sums overflow to infinity rather than reporting a
// misleading finite number.
func computeStdDev(count int32, sum, sumOfSquares float64) float64 {
	if count == 0 {
		return 0
	}
	if math.IsInf(sumOfSquares, 0) || math.IsInf(sum, 0) {
		return math.NaN()
	}
	n := float64(count)
	mean := sum / n
	variance := sumOfSquares/n - mean*mean
	if variance < 0 {
		variance = 0
	}
	return math.Sqrt(variance)
}

// CollectFloat records a float64 sample. Measurement always accepts finite
// and non-finite doubles alike (NaN is excluded only at fold time).
func (m *MeasurementAggregator) CollectFloat(v float64) bool {
	return m.buf.CollectFloat(v)
}

// CollectInt records an integer sample by widening it to float64.
func (m *MeasurementAggregator) CollectInt(v int64) bool {
	return m.buf.CollectFloat(float64(v))
}

// CanCollectFloat always reports true: Measurement has no rejection rule
// beyond period lifecycle.
func (m *MeasurementAggregator) CanCollectFloat(v float64) bool { return true }

// IsActive reports whether the aggregator is within its current period.
func (m *MeasurementAggregator) IsActive() bool { return m.buf.IsActive() }

// StartAggregationPeriod begins a new period with a freshly initialized
// running state (min=+Inf, max=-Inf).
func (m *MeasurementAggregator) StartAggregationPeriod(tsRounded time.Time, tickNow int64) {
	m.buf.StartPeriod(tsRounded, tickNow)
	m.buf.Lock()
	*m.buf.Running() = freshMeasurementRunning()
	m.buf.Unlock()
}

// FinishAggregationPeriod ends the current period, drains any buffered
// values, and returns a finalized MeasurementAggregate with every field
// passed through EnsureConcreteValue.
func (m *MeasurementAggregator) FinishAggregationPeriod(tsRounded time.Time, tickNow int64) Aggregate {
	m.buf.FinishPeriod(tsRounded, tickNow)

	agg, ok := m.spareAggregates.TryPull()
	if !ok {
		agg = &MeasurementAggregate{}
	}
	startTS, endTS, startMs, endMs := m.buf.Period()

	m.buf.Lock()
	r := *m.buf.Running()
	m.buf.Unlock()

	agg.owner = m
	agg.period = period{startTS: startTS, endTS: endTS, startPreciseMs: startMs, endPreciseMs: endMs}
	agg.Count = r.count
	agg.Sum = ensureConcreteValue(r.sum)
	agg.Min = ensureConcreteValue(r.min)
	agg.Max = ensureConcreteValue(r.max)
	agg.StdDev = ensureConcreteValue(r.stdDev)
	return agg
}
