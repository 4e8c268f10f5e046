// Package shortener allocates short identifiers for new content items.
package shortener

import (
	"context"
	"errors"
	"fmt"

	"github.com/jaevor/go-nanoid"
	"github.com/serroba/shortshare/internal/content"
	"github.com/serroba/shortshare/internal/metrics"
)

const (
	DefaultLength      = 4
	DefaultMaxAttempts = 20
)

// minDrawLength is the shortest id nanoid.CustomASCII fills; shorter ids are
// prefixes of a draw of this length.
const minDrawLength = 5

var errInvalidLength = errors.New("id length must be positive")

// CodeGenerator draws a random candidate identifier.
type CodeGenerator func() string

// NewCodeGenerator returns a generator drawing length symbols uniformly from
// content.Alphabet.
func NewCodeGenerator(length int) (CodeGenerator, error) {
	const op = "shortener.NewCodeGenerator"

	if length < 1 {
		return nil, fmt.Errorf("%s: %w", op, errInvalidLength)
	}

	gen, err := nanoid.CustomASCII(content.Alphabet, max(length, minDrawLength))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if length >= minDrawLength {
		return gen, nil
	}

	return func() string {
		return gen()[:length]
	}, nil
}

// Existence is the part of the content store the allocator probes.
type Existence interface {
	Exists(ctx context.Context, id content.ShortID) (bool, error)
}

// Allocator finds identifiers not held by any live item.
//
// The existence probe is only a filter: two allocators can both see a
// candidate as free. The store's atomic insert is the real guard, and callers
// must re-allocate when it reports content.ErrDuplicateKey.
type Allocator struct {
	store        Existence
	generateCode CodeGenerator
	maxAttempts  int
	metrics      *metrics.Metrics
}

// NewAllocator creates an allocator trying at most maxAttempts candidates.
func NewAllocator(store Existence, generator CodeGenerator, maxAttempts int, m *metrics.Metrics) *Allocator {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}

	return &Allocator{
		store:        store,
		generateCode: generator,
		maxAttempts:  maxAttempts,
		metrics:      m,
	}
}

// Allocate returns a candidate that was free when probed. It fails with
// content.ErrAllocationExhausted after maxAttempts taken candidates, and
// with content.ErrUpstream when the store cannot be queried.
func (a *Allocator) Allocate(ctx context.Context) (content.ShortID, error) {
	const op = "shortener.Allocator.Allocate"

	for attempt := 1; attempt <= a.maxAttempts; attempt++ {
		id := content.ShortID(a.generateCode())

		exists, err := a.store.Exists(ctx, id)
		if err != nil {
			return "", fmt.Errorf("%s: %w: %w", op, content.ErrUpstream, err)
		}

		if !exists {
			a.metrics.AllocationAttempts(attempt)

			return id, nil
		}
	}

	a.metrics.AllocationAttempts(a.maxAttempts)

	return "", fmt.Errorf("%s: %w after %d attempts", op, content.ErrAllocationExhausted, a.maxAttempts)
}
