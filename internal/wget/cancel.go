package wget

import (
	"time"

	"go.uber.org/atomic"
)

// CancelFlag is a process-wide cancellation flag shared by reference across
// every worker, the progress reporter, and the adaptive controller. It is
// raised once (typically from a SIGINT handler in internal/cli) and observed
// at bounded intervals so cancellation latency stays sub-second.
type CancelFlag struct {
	set atomic.Bool
}

// NewCancelFlag returns a fresh, unset CancelFlag.
func NewCancelFlag() *CancelFlag {
	return &CancelFlag{}
}

// Cancel raises the flag. Safe to call more than once.
func (c *CancelFlag) Cancel() {
	c.set.Store(true)
}

// Cancelled reports whether the flag has been raised.
func (c *CancelFlag) Cancelled() bool {
	if c == nil {
		return false
	}
	return c.set.Load()
}

// Sleep waits for d, or returns early if the flag is raised. It polls in
// small steps so a cancellation mid-sleep is observed promptly.
func (c *CancelFlag) Sleep(d time.Duration) {
	const step = 50 * time.Millisecond
	deadline := time.Now().Add(d)
	for {
		if c.Cancelled() {
			return
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return
		}
		if remaining > step {
			remaining = step
		}
		time.Sleep(remaining)
	}
}
