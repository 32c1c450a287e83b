package sprite

import (
	"errors"
	"sync/atomic"
)

// DefaultErrorBuffer is the default capacity of the error channel.
const DefaultErrorBuffer = 256

// Reporter delivers non-fatal conditions to the application. Reports
// never block: when the channel is full the error is counted as dropped.
// Every report is also logged at Warn level.
type Reporter struct {
	ch      chan error
	dropped atomic.Uint64
	total   atomic.Uint64
}

// NewReporter creates a reporter with the given channel capacity.
func NewReporter(size int) *Reporter {
	if size < 0 {
		size = 0
	}
	return &Reporter{ch: make(chan error, size)}
}

// Report delivers err. It is safe for concurrent use. A nil Reporter only
// logs.
func (r *Reporter) Report(err error) {
	if err == nil {
		return
	}
	Logger().Warn("sprite: "+errorClass(err), "err", err)
	if r == nil {
		return
	}
	r.total.Add(1)
	select {
	case r.ch <- err:
	default:
		r.dropped.Add(1)
	}
}

// Errors returns the receive side of the error channel.
func (r *Reporter) Errors() <-chan error { return r.ch }

// Dropped returns the number of errors that did not fit in the channel.
func (r *Reporter) Dropped() uint64 { return r.dropped.Load() }

// Total returns the number of errors reported so far.
func (r *Reporter) Total() uint64 { return r.total.Load() }

func errorClass(err error) string {
	switch {
	case errors.Is(err, ErrCapacityExceeded):
		return "command dropped"
	case errors.Is(err, ErrUnknownResource):
		return "command skipped"
	case errors.Is(err, ErrGPU):
		return "submission failed"
	default:
		return "error"
	}
}
