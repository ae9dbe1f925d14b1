package aggregator

import (
	"fmt"
	"sync"
	stdatomic "sync/atomic"
	"time"

	"go.uber.org/atomic"

	"github.com/relaymetrics/metricagg/buffer"
	"github.com/relaymetrics/metricagg/latch"
	"github.com/relaymetrics/metricagg/merrors"
	"github.com/relaymetrics/metricagg/pool"
)

// FoldFunc folds the samples collected into one buffer into a kind's
// running state. It is invoked once per buffer flush; it must do any
// expensive per-value work (NaN checks, min/max scans) before taking the
// lock, and keep the locked section to the O(1) merge, so a flush never
// holds up a concurrent Collect for longer than a handful of additions.
type FoldFunc[S any] func(values []float64, b *Buffered[S])

// Buffered is the reusable buffered-aggregation algorithm, parameterized
// over a kind's running-state type S. Count does not use it (a single
// atomic add needs no buffer); Measurement drives it with a fold function
// that accumulates count/sum/min/max/sumOfSquares.
type Buffered[S any] struct {
	bufferCapacity int
	synchronized   bool
	fold           FoldFunc[S]

	latch     *latch.RW
	sparebufs *pool.Bounded[buffer.Values[float64]]
	current   stdatomic.Pointer[buffer.Values[float64]]

	isActive atomic.Bool

	startTS, endTS           time.Time
	startPreciseMs, endPreciseMs int64

	mu      sync.Mutex // guards running; held only for the O(1) merge step
	running S
}

// NewBuffered constructs the buffered-aggregation helper. bufferCapacity
// must be in (0, buffer.MaxCapacity]; sparePoolCapacity must be in (0,
// pool.MaxCapacity]. The initial buffer starts locked, so a Buffered that
// has never started a period rejects samples.
func NewBuffered[S any](bufferCapacity, sparePoolCapacity int, synchronized bool, fold FoldFunc[S]) (*Buffered[S], error) {
	if fold == nil {
		return nil, fmt.Errorf("%w: buffered aggregator requires a fold function", merrors.ErrMisuse)
	}
	sparebufs, err := pool.NewBounded[buffer.Values[float64]](sparePoolCapacity)
	if err != nil {
		return nil, err
	}
	first, err := buffer.New[float64](bufferCapacity)
	if err != nil {
		return nil, err
	}
	first.TryCountValuesAndLock()
	b := &Buffered[S]{
		bufferCapacity: bufferCapacity,
		synchronized:   synchronized,
		fold:           fold,
		latch:          latch.New(),
		sparebufs:      sparebufs,
	}
	b.storeCurrent(first)
	return b, nil
}

func (b *Buffered[S]) loadCurrent() *buffer.Values[float64] {
	return b.current.Load()
}

func (b *Buffered[S]) storeCurrent(v *buffer.Values[float64]) {
	b.current.Store(v)
}

func (b *Buffered[S]) casCurrent(old, new *buffer.Values[float64]) bool {
	return b.current.CompareAndSwap(old, new)
}

// Lock acquires the running-state merge lock. Fold functions must call
// this only around their O(1) merge step, never around a full buffer scan.
func (b *Buffered[S]) Lock() { b.mu.Lock() }

// Unlock releases the running-state merge lock.
func (b *Buffered[S]) Unlock() { b.mu.Unlock() }

// Running returns a pointer to the running state. Access outside Lock/
// Unlock is the caller's responsibility; FoldFunc implementations must
// only touch it while holding the lock.
func (b *Buffered[S]) Running() *S { return &b.running }

// IsActive reports whether the aggregator is within its current period.
func (b *Buffered[S]) IsActive() bool { return b.isActive.Load() }

// obtainBuffer pulls a reset buffer from the spare pool, or allocates a
// fresh one if the pool is (spuriously or genuinely) empty.
func (b *Buffered[S]) obtainBuffer() *buffer.Values[float64] {
	if buf, ok := b.sparebufs.TryPull(); ok {
		return buf
	}
	buf, err := buffer.New[float64](b.bufferCapacity)
	if err != nil {
		// bufferCapacity was already validated in NewBuffered; this can't
		// happen short of a prior corruption, and there is no sample-level
		// error channel to report it on, so fail loud.
		panic(err)
	}
	return buf
}

// recycleBuffer resets buf and returns it to the spare pool, dropping it
// for the GC to collect if the pool is full.
func (b *Buffered[S]) recycleBuffer(buf *buffer.Values[float64]) {
	buf.Reset()
	b.sparebufs.TryAdd(buf)
}

// flush locks buf against further appends, folds its contents into the
// running state, and recycles it.
func (b *Buffered[S]) flush(buf *buffer.Values[float64]) {
	count, ok := buf.TryCountValuesAndLock()
	if ok {
		b.fold(buf.Slice(count), b)
	}
	b.recycleBuffer(buf)
}

// CollectFloat tries to append to the current buffer; on overflow, it
// obtains a fresh buffer, races to swap it in, and flushes the winner's
// previous buffer.
func (b *Buffered[S]) CollectFloat(v float64) bool {
	if b.synchronized {
		b.latch.EnterRead()
		defer b.latch.ExitRead()
		if !b.isActive.Load() {
			return false
		}
		return b.collectUnsynchronized(v)
	}
	return b.collectUnsynchronized(v)
}

func (b *Buffered[S]) collectUnsynchronized(v float64) bool {
	for {
		buf := b.loadCurrent()
		if buf.TryAdd(v) {
			return true
		}
		if !b.isActive.Load() {
			return false
		}
		fresh := b.obtainBuffer()
		if !fresh.TryAdd(v) {
			panic("metricagg: freshly obtained buffer rejected its first add")
		}
		if b.casCurrent(buf, fresh) {
			b.flush(buf)
			return true
		}
		b.recycleBuffer(fresh)
	}
}

// StartPeriod begins a new aggregation period: the running state is
// assumed already zero (the owner is responsible for that, typically by
// constructing a fresh Buffered or calling Reset first).
func (b *Buffered[S]) StartPeriod(tsRounded time.Time, tickNow int64) {
	b.startTS = tsRounded
	b.startPreciseMs = tickNow
	b.isActive.Store(true)
}

// FinishPeriod stops accepting samples and drains whatever buffer is
// current at the moment the writer-side latch is acquired, folding it into
// the running state exactly once. The buffer swapped in is locked, so a
// producer arriving afterwards finds it full, sees isActive == false and
// gets false instead of leaving a sample for a later period.
func (b *Buffered[S]) FinishPeriod(tsRounded time.Time, tickNow int64) {
	b.endTS = tsRounded
	b.endPreciseMs = tickNow
	b.isActive.Store(false)

	b.latch.EnterWrite()
	defer b.latch.ExitWrite()

	for {
		buf := b.loadCurrent()
		fresh := b.obtainBuffer()
		fresh.TryCountValuesAndLock()
		if b.casCurrent(buf, fresh) {
			b.flush(buf)
			return
		}
		b.recycleBuffer(fresh)
	}
}

// Period returns the timestamps recorded by the most recent Start/Finish
// call pair.
func (b *Buffered[S]) Period() (startTS, endTS time.Time, startMs, endMs int64) {
	return b.startTS, b.endTS, b.startPreciseMs, b.endPreciseMs
}

// Reset zeroes the running state and timestamps so the Buffered can be
// reused for a fresh aggregator instance pulled from a pool.
func (b *Buffered[S]) Reset() {
	var zero S
	b.mu.Lock()
	b.running = zero
	b.mu.Unlock()
	b.startTS, b.endTS = time.Time{}, time.Time{}
	b.startPreciseMs, b.endPreciseMs = 0, 0
}
