package aggregator

import (
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collectAll(m *MeasurementAggregator, values ...float64) {
	for _, v := range values {
		m.CollectFloat(v)
	}
}

func TestMeasurementBasicStatistics(t *testing.T) {
	m, err := NewMeasurement()
	require.NoError(t, err)

	m.StartAggregationPeriod(time.Unix(0, 0), 0)
	collectAll(m, 1, 2, 3, 4, 5)
	agg := m.FinishAggregationPeriod(time.Unix(1, 0), 1000).(*MeasurementAggregate)

	assert.EqualValues(t, 5, agg.Count)
	assert.Equal(t, 15.0, agg.Sum)
	assert.Equal(t, 1.0, agg.Min)
	assert.Equal(t, 5.0, agg.Max)
	assert.InDelta(t, 1.4142135624, agg.StdDev, 1e-9)
}

func TestMeasurementNaNSamplesAreExcludedNotRejected(t *testing.T) {
	m, err := NewMeasurement()
	require.NoError(t, err)

	m.StartAggregationPeriod(time.Unix(0, 0), 0)
	// NaN is collected (Measurement never rejects a sample on shape grounds)
	// but contributes to none of count/sum/min/max/stddev.
	require.True(t, m.CollectFloat(math.NaN()))
	require.True(t, m.CollectFloat(0.0))
	agg := m.FinishAggregationPeriod(time.Unix(1, 0), 1000).(*MeasurementAggregate)

	assert.EqualValues(t, 1, agg.Count)
	assert.Equal(t, 0.0, agg.Sum)
	assert.Equal(t, 0.0, agg.Min)
	assert.Equal(t, 0.0, agg.Max)
	assert.Equal(t, 0.0, agg.StdDev)
}

func TestMeasurementEmptyPeriodReportsZero(t *testing.T) {
	m, err := NewMeasurement()
	require.NoError(t, err)

	m.StartAggregationPeriod(time.Unix(0, 0), 0)
	agg := m.FinishAggregationPeriod(time.Unix(1, 0), 1000).(*MeasurementAggregate)

	assert.EqualValues(t, 0, agg.Count)
	assert.Equal(t, 0.0, agg.Sum)
	assert.Equal(t, 0.0, agg.StdDev)
}

func TestMeasurementRejectsSamplesAfterPeriodFinishes(t *testing.T) {
	m, err := NewMeasurement()
	require.NoError(t, err)

	m.StartAggregationPeriod(time.Unix(0, 0), 0)
	m.FinishAggregationPeriod(time.Unix(1, 0), 1000)

	assert.False(t, m.IsActive())
	assert.False(t, m.CollectFloat(1.0))
}

func TestMeasurementResetsRunningStateAcrossPeriods(t *testing.T) {
	m, err := NewMeasurement()
	require.NoError(t, err)

	m.StartAggregationPeriod(time.Unix(0, 0), 0)
	collectAll(m, 10, 20, 30)
	first := m.FinishAggregationPeriod(time.Unix(1, 0), 1000).(*MeasurementAggregate)
	assert.EqualValues(t, 3, first.Count)

	m.StartAggregationPeriod(time.Unix(1, 0), 1000)
	collectAll(m, 100)
	second := m.FinishAggregationPeriod(time.Unix(2, 0), 2000).(*MeasurementAggregate)
	assert.EqualValues(t, 1, second.Count)
	assert.Equal(t, 100.0, second.Sum)
	assert.Equal(t, 100.0, second.Min)
	assert.Equal(t, 100.0, second.Max)
}

func TestMeasurementFlushesAcrossMultipleBuffers(t *testing.T) {
	m, err := NewMeasurement()
	require.NoError(t, err)

	m.StartAggregationPeriod(time.Unix(0, 0), 0)
	// more than one buffer's worth of values (capacity 500) forces at least
	// one mid-period swap-and-flush before the final FinishAggregationPeriod
	// drain.
	const n = 1200
	for i := 0; i < n; i++ {
		require.True(t, m.CollectFloat(1.0))
	}
	agg := m.FinishAggregationPeriod(time.Unix(1, 0), 1000).(*MeasurementAggregate)

	assert.EqualValues(t, n, agg.Count)
	assert.Equal(t, float64(n), agg.Sum)
	assert.Equal(t, 1.0, agg.Min)
	assert.Equal(t, 1.0, agg.Max)
	assert.Equal(t, 0.0, agg.StdDev)
}

func TestMeasurementConcurrentCollect(t *testing.T) {
	m, err := NewMeasurement()
	require.NoError(t, err)
	m.StartAggregationPeriod(time.Unix(0, 0), 0)

	var wg sync.WaitGroup
	const n = 2000
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.CollectFloat(2.0)
		}()
	}
	wg.Wait()

	agg := m.FinishAggregationPeriod(time.Unix(1, 0), 1000).(*MeasurementAggregate)
	assert.EqualValues(t, n, agg.Count)
	assert.Equal(t, float64(2*n), agg.Sum)
}

func TestMeasurementAggregateReturnsToOwnerPool(t *testing.T) {
	m, err := NewMeasurement()
	require.NoError(t, err)

	m.StartAggregationPeriod(time.Unix(0, 0), 0)
	agg := m.FinishAggregationPeriod(time.Unix(1, 0), 1000)
	agg.ReinitializeAndReturnToOwner()

	m.StartAggregationPeriod(time.Unix(1, 0), 1000)
	reused := m.FinishAggregationPeriod(time.Unix(2, 0), 2000)
	assert.Same(t, agg, reused)
}
