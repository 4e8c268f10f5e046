package store

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// DefaultRateLimitKeys bounds the number of client keys tracked per window size.
const DefaultRateLimitKeys = 1000

type rateRecord struct {
	count int64
}

// RateLimitMemoryStore is an in-memory implementation of ratelimit.Store.
// Records live in a bounded LRU whose TTL is the window, so the least
// recently seen clients are dropped under pressure and a window ends when
// its record expires.
type RateLimitMemoryStore struct {
	mu      sync.Mutex
	size    int
	windows map[time.Duration]*expirable.LRU[string, *rateRecord]
}

// NewRateLimitMemoryStore creates a new in-memory rate limit store tracking
// at most size keys per distinct window.
func NewRateLimitMemoryStore(size int) *RateLimitMemoryStore {
	if size <= 0 {
		size = DefaultRateLimitKeys
	}

	return &RateLimitMemoryStore{
		size:    size,
		windows: make(map[time.Duration]*expirable.LRU[string, *rateRecord]),
	}
}

func (s *RateLimitMemoryStore) Record(_ context.Context, key string, window time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, ok := s.windows[window]
	if !ok {
		records = expirable.NewLRU[string, *rateRecord](s.size, nil, window)
		s.windows[window] = records
	}

	rec, ok := records.Get(key)
	if !ok {
		rec = &rateRecord{}
		records.Add(key, rec)
	}

	rec.count++

	return rec.count, nil
}
