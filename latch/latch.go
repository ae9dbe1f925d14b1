// Package latch implements a many-reader / single-writer coordinator used
// to gate per-metric buffer flushes against the period-boundary flush.
// Readers pay a single interlocked increment/decrement in the uncontended
// common case; only the first reader to arrive and the last reader to
// leave ever touch the underlying semaphore.
package latch

import (
	"context"

	"go.uber.org/atomic"
)

// RW is a reader-writer latch. The zero value is not usable; construct
// with New.
type RW struct {
	readers atomic.Int64
	sem     chan struct{} // binary semaphore: buffered(1), held == writer active
}

// New returns a ready-to-use latch.
func New() *RW {
	return &RW{sem: make(chan struct{}, 1)}
}

// EnterRead registers the calling goroutine as a reader. The first
// concurrent reader blocks until any active writer releases the semaphore;
// subsequent readers just increment the counter.
func (l *RW) EnterRead() {
	if l.readers.Add(1) == 1 {
		l.sem <- struct{}{}
	}
}

// ExitRead unregisters the calling goroutine as a reader. The last reader
// to leave releases the semaphore so a waiting writer can proceed.
func (l *RW) ExitRead() {
	if l.readers.Add(-1) == 0 {
		<-l.sem
	}
}

// WithRead runs fn while holding the reader side of the latch.
func (l *RW) WithRead(fn func()) {
	l.EnterRead()
	defer l.ExitRead()
	fn()
}

// EnterWrite blocks until no reader (and no other writer) holds the latch,
// then acquires it for exclusive access.
func (l *RW) EnterWrite() {
	l.sem <- struct{}{}
}

// ExitWrite releases the writer side of the latch.
func (l *RW) ExitWrite() {
	<-l.sem
}

// TryEnterWrite attempts to acquire the writer side without blocking.
// Returns false if a reader or another writer currently holds the latch.
func (l *RW) TryEnterWrite() bool {
	select {
	case l.sem <- struct{}{}:
		return true
	default:
		return false
	}
}

// EnterWriteContext acquires the writer side, or returns ctx.Err() if ctx
// is cancelled first, for callers that want to bound how long they're
// willing to wait behind readers.
func (l *RW) EnterWriteContext(ctx context.Context) error {
	select {
	case l.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// WithWrite runs fn while holding the writer side of the latch.
func (l *RW) WithWrite(fn func()) {
	l.EnterWrite()
	defer l.ExitWrite()
	fn()
}
