package store

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/serroba/shortshare/internal/content"
)

// MemoryStore is an in-memory implementation of content.Repository.
type MemoryStore struct {
	mu    sync.Mutex
	items map[content.ShortID]*content.Item
	now   func() time.Time
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithClock overrides the time source used for expiry checks.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *MemoryStore) {
		m.now = now
	}
}

// NewMemoryStore creates a new in-memory content store.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	m := &MemoryStore{
		items: make(map[content.ShortID]*content.Item),
		now:   time.Now,
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

func (m *MemoryStore) Insert(_ context.Context, item *content.Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.items[item.ShortID]; ok && !existing.Expired(m.now()) {
		return content.ErrDuplicateKey
	}

	m.items[item.ShortID] = item.Clone()

	return nil
}

func (m *MemoryStore) FetchAndIncrement(_ context.Context, id content.ShortID) (*content.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.items[id]
	if !ok {
		return nil, content.ErrNotFound
	}

	if item.Expired(m.now()) {
		delete(m.items, id)

		return nil, content.ErrNotFound
	}

	item.Views++

	return item.Clone(), nil
}

func (m *MemoryStore) ListRecent(_ context.Context, limit int) ([]*content.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	out := make([]*content.Item, 0, len(m.items))

	for _, item := range m.items {
		if !item.Expired(now) {
			out = append(out, item.Clone())
		}
	}

	slices.SortFunc(out, func(a, b *content.Item) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}

		return compareIDs(a.ShortID, b.ShortID)
	})

	if len(out) > limit {
		out = out[:limit]
	}

	return out, nil
}

func (m *MemoryStore) Exists(_ context.Context, id content.ShortID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.items[id]

	return ok && !item.Expired(m.now()), nil
}

func (m *MemoryStore) Ping(context.Context) error {
	return nil
}

func compareIDs(a, b content.ShortID) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
