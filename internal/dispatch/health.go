package dispatch

import "sync/atomic"

// DefaultUnhealthyAfter is the number of consecutive store failures after
// which the process reports itself degraded to the supervisor.
const DefaultUnhealthyAfter = 5

// Health tracks consecutive store failures across dispatch passes. The core
// does not retry a broken store; it only surfaces the condition.
type Health struct {
	threshold int64
	failures  atomic.Int64
}

func NewHealth(threshold int) *Health {
	if threshold <= 0 {
		threshold = DefaultUnhealthyAfter
	}
	return &Health{threshold: int64(threshold)}
}

func (h *Health) MarkFailure() {
	h.failures.Add(1)
}

func (h *Health) MarkSuccess() {
	h.failures.Store(0)
}

func (h *Health) Degraded() bool {
	return h.failures.Load() >= h.threshold
}
