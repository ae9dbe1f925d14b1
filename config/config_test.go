package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestValidPeriodsAccepted(t *testing.T) {
	for _, p := range []int{5, 10, 15, 20, 30, 60, 120, 86400} {
		cfg := Default()
		cfg.AggregationPeriodLengthSeconds = p
		assert.NoError(t, cfg.Validate(), "period %d should be valid", p)
	}
}

func TestInvalidPeriodsRejected(t *testing.T) {
	for _, p := range []int{0, 1, 7, 45, 61, 90, 86401} {
		cfg := Default()
		cfg.AggregationPeriodLengthSeconds = p
		assert.Error(t, cfg.Validate(), "period %d should be invalid", p)
	}
}

func TestValidateAggregatesAllErrors(t *testing.T) {
	cfg := CollectionConfig{
		AggregationPeriodLengthSeconds: 7,
		AggregatorSpareCapacity:        0,
		MeasurementBufferCapacity:      0,
		MeasurementSparePoolCapacity:   0,
	}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "aggregation period")
	assert.Contains(t, err.Error(), "aggregator spare capacity")
	assert.Contains(t, err.Error(), "measurement buffer capacity")
	assert.Contains(t, err.Error(), "measurement spare pool capacity")
}

func TestLoadAppliesDefaultsWhenUnset(t *testing.T) {
	cfg, err := Load(nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}
