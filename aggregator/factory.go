package aggregator

import (
	"fmt"

	"github.com/relaymetrics/metricagg/merrors"
	"github.com/relaymetrics/metricagg/metric"
)

// NewForKind constructs a fresh aggregator instance for k. This dispatch
// lives here rather than in package metric so metric never needs to
// import aggregator.
func NewForKind(k metric.Kind) (Aggregator, error) {
	switch k {
	case metric.Count:
		c, err := NewCount()
		if err != nil {
			return nil, err
		}
		return c, nil
	case metric.Measurement:
		m, err := NewMeasurement()
		if err != nil {
			return nil, err
		}
		return m, nil
	default:
		return nil, fmt.Errorf("%w: unknown metric kind %v", merrors.ErrMisuse, k)
	}
}
