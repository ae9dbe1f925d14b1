// Package merrors defines the error kinds shared across metricagg's core
// packages: configuration errors and misuse errors raise immediately at
// API boundaries; dropped-sample indications never raise (Collect returns
// a bool), and in-flight cycle errors never escape the driver's loop.
package merrors

import "errors"

// ErrConfiguration marks an invalid aggregation period, a malformed tag, or
// a negative/oversized pool or buffer capacity. Wrap it with fmt.Errorf's
// %w so callers can errors.Is against it.
var ErrConfiguration = errors.New("metricagg: configuration error")

// ErrMisuse marks programmer error: attaching a Metric already owned by a
// different manager, an unknown metric kind, a buffered aggregator built
// without a fold function, or starting or shutting down a driver from the
// wrong lifecycle state.
var ErrMisuse = errors.New("metricagg: misuse error")
