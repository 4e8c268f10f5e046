package ratelimit

import (
	"context"
	"time"
)

// Store holds fixed-window counters.
type Store interface {
	// Record counts a request against key and returns the count within the
	// current window. The first request for a key opens a window lasting
	// window; later requests do not extend it. Rejected requests are counted
	// too, so retrying while limited does not reset anything.
	Record(ctx context.Context, key string, window time.Duration) (count int64, err error)
}
