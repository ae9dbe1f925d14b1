// Package driver implements the aggregation cycle driver: a dedicated
// worker goroutine that wakes at slot-aligned boundaries and invokes the
// collection manager's fetch-and-submit step.
package driver

import (
	"context"
	"fmt"
	"sync"
	"time"

	metrics "github.com/Dieterbe/go-metrics"
	"github.com/jpillora/backoff"
	log "github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc/panics"
	"go.uber.org/atomic"

	"github.com/relaymetrics/metricagg/config"
	"github.com/relaymetrics/metricagg/merrors"
	"github.com/relaymetrics/metricagg/registry"
)

// Stats are the driver's self-instrumentation counters, one set per
// Driver instance so multiple drivers in the same process never share
// (or contend on) a single counter.
type Stats struct {
	IterationsRun     metrics.Counter
	IterationsErrored metrics.Counter
}

func newStats() Stats {
	return Stats{
		IterationsRun:     metrics.NewCounter(),
		IterationsErrored: metrics.NewCounter(),
	}
}

// Driver runs the periodic aggregation cycle against one
// registry.CollectionManager. It is not itself a Metric producer: the
// worker it spawns never calls Collect and runs on its own dedicated
// goroutine, never a shared pool, so a slow or stuck iteration can never
// starve an unrelated caller's Collect calls.
type Driver struct {
	manager       *registry.CollectionManager
	periodSeconds int

	state atomic.Int32

	// wakeCh is an auto-reset event: a buffered, single-slot channel a
	// Shutdown caller can signal to cut the worker's wait short, mirroring
	// the latch package's own binary-semaphore idiom.
	wakeCh chan struct{}
	wg     sync.WaitGroup

	// now wraps time.Now, overridable in tests so they don't have to wait
	// out a real wall-clock period between iterations.
	now func() time.Time

	// errBackoff paces retries after a panicking iteration so a
	// persistently broken sink doesn't spin the worker at full rate.
	// Reset on every successful iteration.
	errBackoff *backoff.Backoff

	Stats Stats
}

// New constructs a Driver wired to manager, validating cfg so invalid
// configuration fails here, not mid-run.
func New(manager *registry.CollectionManager, cfg config.CollectionConfig) (*Driver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	d := &Driver{
		manager:       manager,
		periodSeconds: cfg.AggregationPeriodLengthSeconds,
		wakeCh:        make(chan struct{}, 1),
		now:           time.Now,
		errBackoff:    &backoff.Backoff{Min: 100 * time.Millisecond, Max: 500 * time.Millisecond, Factor: 2},
		Stats:         newStats(),
	}
	d.state.Store(int32(StateNotStarted))
	return d, nil
}

// State returns the driver's current lifecycle state.
func (d *Driver) State() State { return State(d.state.Load()) }

// Start transitions NotStarted -> Running and spawns the dedicated worker
// goroutine. It is an error to Start a driver more than once.
func (d *Driver) Start() error {
	if !d.state.CompareAndSwap(int32(StateNotStarted), int32(StateRunning)) {
		return fmt.Errorf("%w: driver can only be started from NotStarted, currently %s", merrors.ErrMisuse, d.State())
	}
	d.wg.Add(1)
	go d.loop()
	return nil
}

func (d *Driver) loop() {
	defer d.wg.Done()
	target := nextTarget(d.now(), d.periodSeconds)
	for d.State() == StateRunning {
		d.waitUntil(target)
		if d.State() != StateRunning {
			break
		}
		actual := d.now()
		if d.runIteration(target, actual) {
			time.Sleep(d.errBackoff.Duration())
		} else {
			d.errBackoff.Reset()
		}
		target = nextTarget(actual, d.periodSeconds)
	}
	d.state.Store(int32(StateShutdownCompleted))
}

// waitUntil blocks until target or until the wake channel fires, whichever
// comes first, but always waits at least 1ms. The 1ms floor keeps a target
// that's already in the past from spinning the select in a tight loop.
func (d *Driver) waitUntil(target time.Time) {
	wait := target.Sub(d.now())
	if wait < time.Millisecond {
		wait = time.Millisecond
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-d.wakeCh:
	}
}

// runIteration publishes the rounded cycle-start timestamp and invokes the
// manager's fetch-and-submit step. A panic inside the callback is caught
// and logged via github.com/sourcegraph/conc's panics.Catcher rather than
// killing the worker, so a single broken sink or aggregator can't take down
// the whole aggregation loop. It reports whether the iteration errored, so
// the caller can back off before the next tick instead of spinning.
func (d *Driver) runIteration(target, actual time.Time) bool {
	rounded := roundedCycleStart(target, actual)
	tickNow := actual.UnixMilli()

	var catcher panics.Catcher
	catcher.Try(func() {
		d.manager.RunCycle(rounded, tickNow)
	})
	if recovered := catcher.Recovered(); recovered != nil {
		d.Stats.IterationsErrored.Inc(1)
		log.Errorf("metricagg: cycle iteration at %s panicked: %v", rounded, recovered.AsError())
		return true
	}
	d.Stats.IterationsRun.Inc(1)
	return false
}

// Shutdown requests the worker stop and blocks, polling on the
// shutdownPollSchedule, until it reports ShutdownCompleted or ctx is done.
func (d *Driver) Shutdown(ctx context.Context) error {
	if !d.state.CompareAndSwap(int32(StateRunning), int32(StateShutdownRequested)) {
		if d.State() == StateNotStarted {
			return fmt.Errorf("%w: driver was never started", merrors.ErrMisuse)
		}
		// already shutting down or further along; fall through to poll.
	}

	select {
	case d.wakeCh <- struct{}{}:
	default:
	}

	poll := newShutdownPollSchedule()
	for {
		if d.State().Terminal() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(poll.Duration()):
		}
	}
}

// Dispose joins the worker goroutine and transitions to Disposed. Callers
// must call Shutdown (and wait for it to return) before Dispose.
func (d *Driver) Dispose() {
	d.wg.Wait()
	d.state.Store(int32(StateDisposed))
}
