package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/serroba/shortshare/internal/metrics"
)

// LimitExceeded contains information about which limit was exceeded.
type LimitExceeded struct {
	Scope  Scope
	Config LimitConfig
	Count  int64
}

// RetryAfterSeconds is an upper bound on the wait, since fixed windows do
// not expose their remaining time.
func (e *LimitExceeded) RetryAfterSeconds() int {
	secs := int((e.Config.Window + time.Second - 1) / time.Second)
	if secs < 1 {
		return 1
	}

	return secs
}

// PolicyLimiter enforces rate limits based on a policy and resolved scopes.
type PolicyLimiter struct {
	store   Store
	policy  *Policy
	metrics *metrics.Metrics
}

// NewPolicyLimiter creates a new policy-based rate limiter.
func NewPolicyLimiter(store Store, policy *Policy, m *metrics.Metrics) *PolicyLimiter {
	return &PolicyLimiter{
		store:   store,
		policy:  policy,
		metrics: m,
	}
}

// Allow checks if a request should be allowed based on the client key and applicable scopes.
// It returns true if the request is allowed, false if any limit is exceeded.
// The LimitExceeded return value provides details about which limit was hit (nil if allowed).
func (l *PolicyLimiter) Allow(ctx context.Context, clientKey string, scopes []Scope) (bool, *LimitExceeded, error) {
	for _, scope := range scopes {
		limits, ok := l.policy.Limits[scope]
		if !ok {
			continue
		}

		for _, limit := range limits {
			// Key combines client + scope + window for independent tracking
			key := l.buildKey(clientKey, scope, limit)

			count, err := l.store.Record(ctx, key, limit.Window)
			if err != nil {
				return false, nil, err
			}

			if count > limit.Max {
				l.metrics.RateLimited(string(scope))

				return false, &LimitExceeded{
					Scope:  scope,
					Config: limit,
					Count:  count,
				}, nil
			}
		}
	}

	return true, nil, nil
}

func (l *PolicyLimiter) buildKey(clientKey string, scope Scope, limit LimitConfig) string {
	return fmt.Sprintf("%s:%s:%d", clientKey, scope, limit.Window.Milliseconds())
}

// Store returns the underlying rate limit store.
func (l *PolicyLimiter) Store() Store {
	return l.store
}
