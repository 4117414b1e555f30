package graph

import (
	"sync"
)

// StepLimiter enforces the maximum number of node executions per run.
type StepLimiter struct {
	max   int
	count int
	mu    sync.Mutex
}

// NewStepLimiter creates a limiter allowing max steps.
// If max <= 0, DefaultMaxSteps is used.
func NewStepLimiter(max int) *StepLimiter {
	if max <= 0 {
		max = DefaultMaxSteps
	}
	return &StepLimiter{max: max}
}

// Increment counts one step and reports whether it is still within the limit.
func (l *StepLimiter) Increment() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.count++
	return l.count <= l.max
}

// Count returns the number of steps taken so far.
func (l *StepLimiter) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.count
}

// Remaining returns how many steps are left before hitting the limit.
func (l *StepLimiter) Remaining() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.count >= l.max {
		return 0
	}
	return l.max - l.count
}
