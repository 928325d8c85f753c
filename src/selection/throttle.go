package selection

import (
	"time"

	"golang.org/x/time/rate"
)

// DefaultInterval caps region updates at roughly 60 Hz.
const DefaultInterval = 16 * time.Millisecond

// Throttle forwards at most one candidate per interval and drops the rest.
// Nothing is queued: a dropped candidate is superseded by the next one.
type Throttle struct {
	interval time.Duration
	lim      *rate.Limiter
}

// NewThrottle creates a throttle; interval<=0 uses DefaultInterval.
func NewThrottle(interval time.Duration) *Throttle {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Throttle{interval: interval, lim: newLimiter(interval)}
}

// burst of 1 means tokens never accumulate past a single emission.
func newLimiter(interval time.Duration) *rate.Limiter {
	return rate.NewLimiter(rate.Every(interval), 1)
}

// Allow reports whether a candidate observed at now may be emitted.
func (t *Throttle) Allow(now time.Time) bool {
	return t.lim.AllowN(now, 1)
}

// Reset forgets the last emission so the next candidate passes.
func (t *Throttle) Reset() {
	t.lim = newLimiter(t.interval)
}

// Interval returns the minimum spacing between emissions.
func (t *Throttle) Interval() time.Duration { return t.interval }
