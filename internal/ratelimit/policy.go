package ratelimit

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// LimitConfig is a single "Max requests per Window" rule.
type LimitConfig struct {
	Window time.Duration `yaml:"window"`
	Max    int64         `yaml:"max"`
}

// Policy maps scopes to the limits applied to them.
type Policy struct {
	Limits map[Scope][]LimitConfig `yaml:"limits"`
}

// DefaultPolicy returns the built-in limits. Image uploads are the most
// restrictive given their payload size.
func DefaultPolicy() *Policy {
	return NewPolicyBuilder().
		AddLimit(ScopeCode, 10, time.Minute).
		AddLimit(ScopeLink, 10, time.Minute).
		AddLimit(ScopeImage, 5, time.Minute).
		AddLimit(ScopeRead, 300, time.Minute).
		Build()
}

// PolicyBuilder assembles a Policy one limit at a time.
type PolicyBuilder struct {
	policy *Policy
}

// NewPolicyBuilder starts an empty policy.
func NewPolicyBuilder() *PolicyBuilder {
	return &PolicyBuilder{policy: &Policy{Limits: make(map[Scope][]LimitConfig)}}
}

// AddLimit allows max requests per window in scope. A scope may carry
// several limits; all of them apply.
func (b *PolicyBuilder) AddLimit(scope Scope, maxRequests int64, window time.Duration) *PolicyBuilder {
	b.policy.Limits[scope] = append(b.policy.Limits[scope], LimitConfig{Window: window, Max: maxRequests})

	return b
}

func (b *PolicyBuilder) Build() *Policy {
	return b.policy
}

// LoadPolicy reads a YAML policy file. Scopes absent from the file keep their
// default limits.
func LoadPolicy(path string) (*Policy, error) {
	const op = "ratelimit.LoadPolicy"

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to read policy file: %w", op, err)
	}

	var file Policy
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("%s: failed to decode policy file: %w", op, err)
	}

	policy := DefaultPolicy()

	for scope, limits := range file.Limits {
		for _, l := range limits {
			if l.Window <= 0 || l.Max <= 0 {
				return nil, fmt.Errorf("%s: scope %q: window and max must be positive", op, scope)
			}
		}

		policy.Limits[scope] = limits
	}

	return policy, nil
}
