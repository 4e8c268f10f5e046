package store_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/serroba/shortshare/internal/content"
	"github.com/serroba/shortshare/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = c.now.Add(d)
}

func newItem(id string, created time.Time) *content.Item {
	return &content.Item{
		ShortID:   content.ShortID(id),
		Kind:      content.KindCode,
		Content:   "fmt.Println(1)",
		Language:  "go",
		CreatedAt: created,
		ExpiresAt: created.Add(24 * time.Hour),
	}
}

func TestMemoryStore_Insert(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}

	t.Run("rejects duplicate live id", func(t *testing.T) {
		s := store.NewMemoryStore(store.WithClock(clock.Now))

		require.NoError(t, s.Insert(ctx, newItem("abcd", clock.Now())))

		other := newItem("abcd", clock.Now())
		other.Content = "overwrite"

		err := s.Insert(ctx, other)
		require.ErrorIs(t, err, content.ErrDuplicateKey)

		got, err := s.FetchAndIncrement(ctx, "abcd")
		require.NoError(t, err)
		assert.Equal(t, "fmt.Println(1)", got.Content)
	})

	t.Run("reuses expired id", func(t *testing.T) {
		s := store.NewMemoryStore(store.WithClock(clock.Now))

		require.NoError(t, s.Insert(ctx, newItem("abcd", clock.Now())))
		clock.Advance(25 * time.Hour)

		require.NoError(t, s.Insert(ctx, newItem("abcd", clock.Now())))
	})

	t.Run("stores a copy", func(t *testing.T) {
		s := store.NewMemoryStore(store.WithClock(clock.Now))
		item := newItem("wxyz", clock.Now())

		require.NoError(t, s.Insert(ctx, item))
		item.Content = "mutated"

		got, err := s.FetchAndIncrement(ctx, "wxyz")
		require.NoError(t, err)
		assert.Equal(t, "fmt.Println(1)", got.Content)
	})

	t.Run("concurrent inserts of one id admit a single winner", func(t *testing.T) {
		s := store.NewMemoryStore(store.WithClock(clock.Now))

		var (
			wg   sync.WaitGroup
			mu   sync.Mutex
			wins int
		)

		for range 50 {
			wg.Add(1)

			go func() {
				defer wg.Done()

				if s.Insert(ctx, newItem("same", clock.Now())) == nil {
					mu.Lock()
					wins++
					mu.Unlock()
				}
			}()
		}

		wg.Wait()
		assert.Equal(t, 1, wins)
	})
}

func TestMemoryStore_FetchAndIncrement(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}

	t.Run("increments views", func(t *testing.T) {
		s := store.NewMemoryStore(store.WithClock(clock.Now))
		require.NoError(t, s.Insert(ctx, newItem("abcd", clock.Now())))

		first, err := s.FetchAndIncrement(ctx, "abcd")
		require.NoError(t, err)
		assert.Equal(t, int64(1), first.Views)

		second, err := s.FetchAndIncrement(ctx, "abcd")
		require.NoError(t, err)
		assert.Equal(t, int64(2), second.Views)
	})

	t.Run("missing id", func(t *testing.T) {
		s := store.NewMemoryStore(store.WithClock(clock.Now))

		_, err := s.FetchAndIncrement(ctx, "none")
		assert.ErrorIs(t, err, content.ErrNotFound)
	})

	t.Run("expired id", func(t *testing.T) {
		s := store.NewMemoryStore(store.WithClock(clock.Now))
		require.NoError(t, s.Insert(ctx, newItem("abcd", clock.Now())))

		clock.Advance(24 * time.Hour)

		_, err := s.FetchAndIncrement(ctx, "abcd")
		assert.ErrorIs(t, err, content.ErrNotFound)
	})

	t.Run("concurrent increments are not lost", func(t *testing.T) {
		s := store.NewMemoryStore(store.WithClock(clock.Now))
		require.NoError(t, s.Insert(ctx, newItem("hits", clock.Now())))

		var wg sync.WaitGroup

		for range 100 {
			wg.Add(1)

			go func() {
				defer wg.Done()

				_, _ = s.FetchAndIncrement(ctx, "hits")
			}()
		}

		wg.Wait()

		got, err := s.FetchAndIncrement(ctx, "hits")
		require.NoError(t, err)
		assert.Equal(t, int64(101), got.Views)
	})
}

func TestMemoryStore_ListRecent(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	s := store.NewMemoryStore(store.WithClock(clock.Now))

	base := clock.Now()
	require.NoError(t, s.Insert(ctx, newItem("aaaa", base.Add(-3*time.Minute))))
	require.NoError(t, s.Insert(ctx, newItem("bbbb", base.Add(-1*time.Minute))))
	require.NoError(t, s.Insert(ctx, newItem("cccc", base.Add(-2*time.Minute))))

	stale := newItem("dddd", base)
	stale.ExpiresAt = base.Add(-time.Second)
	require.NoError(t, s.Insert(ctx, stale))

	items, err := s.ListRecent(ctx, 10)
	require.NoError(t, err)

	ids := make([]content.ShortID, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ShortID)
	}

	assert.Equal(t, []content.ShortID{"bbbb", "cccc", "aaaa"}, ids)

	limited, err := s.ListRecent(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestMemoryStore_Exists(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	s := store.NewMemoryStore(store.WithClock(clock.Now))

	ok, err := s.Exists(ctx, "abcd")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Insert(ctx, newItem("abcd", clock.Now())))

	ok, err = s.Exists(ctx, "abcd")
	require.NoError(t, err)
	assert.True(t, ok)

	clock.Advance(48 * time.Hour)

	ok, err = s.Exists(ctx, "abcd")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.NoError(t, s.Ping(ctx))
}

func TestMemoryStore_Contract(t *testing.T) {
	testRepositoryContract(t, store.NewMemoryStore())
}

func nowUTC() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}
