package limiter

import "time"

// hostTiming is the per-host state tracked by ConcurrentRateLimiter.
type hostTiming struct {
	lastFetchAt time.Time
}

func (h hostTiming) LastFetchAt() time.Time {
	return h.lastFetchAt
}
