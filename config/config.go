// Package config binds the collection configuration recognized by the
// driver and manager from file, environment, and flags via viper.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/multierr"

	"github.com/relaymetrics/metricagg/merrors"
)

// CollectionConfig holds the tunables of the aggregation core that vary by
// deployment. Only AggregationPeriodLengthSeconds is applied (by
// driver.New); the three capacity fields are loaded and validated, but
// metrics and aggregators use their own fixed sizes (3, 500 and 3).
type CollectionConfig struct {
	AggregationPeriodLengthSeconds int `mapstructure:"aggregation_period_length_seconds"`
	AggregatorSpareCapacity        int `mapstructure:"aggregator_spare_capacity"`
	MeasurementBufferCapacity      int `mapstructure:"measurement_buffer_capacity"`
	MeasurementSparePoolCapacity   int `mapstructure:"measurement_spare_pool_capacity"`
}

// Default returns the configuration the aggregation core uses when no
// override is supplied: a 10s period and conservative pool/buffer capacities.
func Default() CollectionConfig {
	return CollectionConfig{
		AggregationPeriodLengthSeconds: 10,
		AggregatorSpareCapacity:        3,
		MeasurementBufferCapacity:      500,
		MeasurementSparePoolCapacity:   3,
	}
}

// Load binds a CollectionConfig from v (file/env/flags already configured
// by the caller), defaulting unset fields, then validates the result. A nil
// v loads from an empty, fresh viper.Viper — i.e. just the defaults.
func Load(v *viper.Viper) (CollectionConfig, error) {
	if v == nil {
		v = viper.New()
	}
	def := Default()
	v.SetDefault("aggregation_period_length_seconds", def.AggregationPeriodLengthSeconds)
	v.SetDefault("aggregator_spare_capacity", def.AggregatorSpareCapacity)
	v.SetDefault("measurement_buffer_capacity", def.MeasurementBufferCapacity)
	v.SetDefault("measurement_spare_pool_capacity", def.MeasurementSparePoolCapacity)

	var cfg CollectionConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return CollectionConfig{}, fmt.Errorf("%w: %v", merrors.ErrConfiguration, err)
	}
	if err := cfg.Validate(); err != nil {
		return CollectionConfig{}, err
	}
	return cfg, nil
}

// Validate checks every field at once, aggregating every violation found
// via multierr rather than stopping at the first, so a misconfigured
// deployment sees every problem in one error instead of fixing them one
// at a time across repeated restarts.
func (c CollectionConfig) Validate() error {
	var errs error
	if !validPeriodSeconds(c.AggregationPeriodLengthSeconds) {
		errs = multierr.Append(errs, fmt.Errorf(
			"%w: aggregation period %ds is not one of {5,10,15,20,30} or a whole multiple of 60 up to 86400",
			merrors.ErrConfiguration, c.AggregationPeriodLengthSeconds))
	}
	if c.AggregatorSpareCapacity <= 0 {
		errs = multierr.Append(errs, fmt.Errorf("%w: aggregator spare capacity must be positive", merrors.ErrConfiguration))
	}
	if c.MeasurementBufferCapacity <= 0 {
		errs = multierr.Append(errs, fmt.Errorf("%w: measurement buffer capacity must be positive", merrors.ErrConfiguration))
	}
	if c.MeasurementSparePoolCapacity <= 0 {
		errs = multierr.Append(errs, fmt.Errorf("%w: measurement spare pool capacity must be positive", merrors.ErrConfiguration))
	}
	return errs
}

func validPeriodSeconds(p int) bool {
	switch p {
	case 5, 10, 15, 20, 30:
		return true
	}
	return p >= 60 && p <= 86400 && p%60 == 0
}

// Period returns the configured aggregation period as a time.Duration.
func (c CollectionConfig) Period() time.Duration {
	return time.Duration(c.AggregationPeriodLengthSeconds) * time.Second
}
