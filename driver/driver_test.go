package driver

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaymetrics/metricagg/config"
	"github.com/relaymetrics/metricagg/metric"
	"github.com/relaymetrics/metricagg/registry"
)

func testConfig(periodSeconds int) config.CollectionConfig {
	cfg := config.Default()
	cfg.AggregationPeriodLengthSeconds = periodSeconds
	return cfg
}

func TestNewRejectsInvalidPeriod(t *testing.T) {
	_, err := New(registry.NewManager(), testConfig(7))
	require.Error(t, err)
}

func TestStartOnlySucceedsOnce(t *testing.T) {
	d, err := New(registry.NewManager(), testConfig(5))
	require.NoError(t, err)

	require.NoError(t, d.Start())
	assert.Error(t, d.Start())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, d.Shutdown(ctx))
	d.Dispose()
	assert.Equal(t, StateDisposed, d.State())
}

func TestDriverRunsAtLeastOneCycle(t *testing.T) {
	manager := registry.NewManager()
	id, err := metric.NewIdentity("requests", nil)
	require.NoError(t, err)
	met, err := manager.GetOrAddMetric(id, metric.Count)
	require.NoError(t, err)

	d, err := New(manager, testConfig(5))
	require.NoError(t, err)
	// real clock: with a 5s period the first slot fires within about 6s,
	// inside the 10s deadline below.
	d.now = time.Now
	require.NoError(t, d.Start())

	met.CollectInt(1)

	deadline := time.Now().Add(10 * time.Second)
	for d.Stats.IterationsRun.Count() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	assert.Greater(t, d.Stats.IterationsRun.Count(), int64(0))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, d.Shutdown(ctx))
	d.Dispose()
}

func TestShutdownBeforeStartIsAMisuseError(t *testing.T) {
	d, err := New(registry.NewManager(), testConfig(5))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.Error(t, d.Shutdown(ctx))
}

func TestShutdownDoubleCallIsIdempotent(t *testing.T) {
	d, err := New(registry.NewManager(), testConfig(5))
	require.NoError(t, err)
	require.NoError(t, d.Start())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, d.Shutdown(ctx))
	require.NoError(t, d.Shutdown(ctx))
	d.Dispose()
}
