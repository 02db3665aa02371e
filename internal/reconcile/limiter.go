package reconcile

// limiter.go caps how many sync runs write at once.
//
// A run holds a pooled connection and its collection lock for the whole
// replace transaction. Runs beyond the cap queue for up to maxWait and then
// fail with ErrTooManyRuns. Shutdown uses WaitForDrain to let queued and
// in-flight runs finish.

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// ErrTooManyRuns is returned when no run slot frees up within the wait
// timeout. Callers may retry after a short delay.
var ErrTooManyRuns = errors.New("too many concurrent sync runs, please try again later")

// DefaultMaxConcurrentRuns is the default limit for parallel runs.
const DefaultMaxConcurrentRuns = 4

// DefaultMaxWait is how long a run waits for a slot before being rejected.
const DefaultMaxWait = 30 * time.Second

// RunLimiter admits at most size sync runs at a time.
type RunLimiter struct {
	sem     *semaphore.Weighted
	size    int
	maxWait time.Duration

	mu     sync.Mutex
	active int
	idle   chan struct{} // closed while active == 0
}

// NewRunLimiter creates a limiter admitting maxConcurrent runs at once.
func NewRunLimiter(maxConcurrent int, maxWait time.Duration) *RunLimiter {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentRuns
	}
	if maxWait <= 0 {
		maxWait = DefaultMaxWait
	}

	idle := make(chan struct{})
	close(idle)
	return &RunLimiter{
		sem:     semaphore.NewWeighted(int64(maxConcurrent)),
		size:    maxConcurrent,
		maxWait: maxWait,
		idle:    idle,
	}
}

// Acquire admits one run, waiting up to maxWait for a slot. The returned
// release must be called when the run ends; extra calls are no-ops.
func (l *RunLimiter) Acquire(ctx context.Context) (release func(), err error) {
	waitCtx, cancel := context.WithTimeout(ctx, l.maxWait)
	defer cancel()

	if err := l.sem.Acquire(waitCtx, 1); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, ErrTooManyRuns
	}

	l.mu.Lock()
	if l.active == 0 {
		l.idle = make(chan struct{})
	}
	l.active++
	l.mu.Unlock()

	var once sync.Once
	return func() { once.Do(l.release) }, nil
}

func (l *RunLimiter) release() {
	l.mu.Lock()
	l.active--
	if l.active == 0 {
		close(l.idle)
	}
	l.mu.Unlock()

	l.sem.Release(1)
}

// ActiveCount returns the number of admitted runs.
func (l *RunLimiter) ActiveCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.active
}

// WaitForDrain blocks until no run is admitted or ctx is done.
func (l *RunLimiter) WaitForDrain(ctx context.Context) error {
	l.mu.Lock()
	idle := l.idle
	l.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunLimiterStatus is a snapshot of the limiter for /healthz.
type RunLimiterStatus struct {
	Active        int `json:"active"`
	Available     int `json:"available"`
	MaxConcurrent int `json:"maxConcurrent"`
}

// Status returns the limiter's current state.
func (l *RunLimiter) Status() RunLimiterStatus {
	active := l.ActiveCount()
	return RunLimiterStatus{
		Active:        active,
		Available:     l.size - active,
		MaxConcurrent: l.size,
	}
}
