package store_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/serroba/shortshare/internal/content"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var idSeq atomic.Int64

// uniqueID keeps runs against shared databases from colliding.
func uniqueID(prefix string) content.ShortID {
	return content.ShortID(fmt.Sprintf("%s%d%d", prefix, time.Now().UnixNano()%1_000_000, idSeq.Add(1)))
}

// testRepositoryContract exercises the behavior every content.Repository
// backend must share.
func testRepositoryContract(t *testing.T, repo content.Repository) {
	t.Helper()

	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	t.Run("insert then fetch increments views", func(t *testing.T) {
		id := uniqueID("fi")
		item := newItem(string(id), now)

		require.NoError(t, repo.Insert(ctx, item))

		got, err := repo.FetchAndIncrement(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, id, got.ShortID)
		assert.Equal(t, content.KindCode, got.Kind)
		assert.Equal(t, item.Content, got.Content)
		assert.Equal(t, item.Language, got.Language)
		assert.True(t, item.CreatedAt.Equal(got.CreatedAt), "created_at %v != %v", item.CreatedAt, got.CreatedAt)
		assert.True(t, item.ExpiresAt.Equal(got.ExpiresAt), "expires_at %v != %v", item.ExpiresAt, got.ExpiresAt)
		assert.Equal(t, int64(1), got.Views)

		got, err = repo.FetchAndIncrement(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, int64(2), got.Views)
	})

	t.Run("image file path round trips", func(t *testing.T) {
		id := uniqueID("im")
		item := &content.Item{
			ShortID:   id,
			Kind:      content.KindImage,
			FilePath:  "https://files.example.com/" + string(id) + ".png",
			CreatedAt: now,
			ExpiresAt: now.Add(time.Hour),
		}

		require.NoError(t, repo.Insert(ctx, item))

		got, err := repo.FetchAndIncrement(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, content.KindImage, got.Kind)
		assert.Equal(t, item.FilePath, got.FilePath)
	})

	t.Run("duplicate live id is rejected", func(t *testing.T) {
		id := uniqueID("du")

		require.NoError(t, repo.Insert(ctx, newItem(string(id), now)))

		other := newItem(string(id), now)
		other.Content = "second"

		err := repo.Insert(ctx, other)
		require.ErrorIs(t, err, content.ErrDuplicateKey)

		got, err := repo.FetchAndIncrement(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "fmt.Println(1)", got.Content)
	})

	t.Run("concurrent inserts admit one winner", func(t *testing.T) {
		id := uniqueID("cc")

		var (
			wg   sync.WaitGroup
			wins atomic.Int32
		)

		for range 10 {
			wg.Add(1)

			go func() {
				defer wg.Done()

				if repo.Insert(ctx, newItem(string(id), now)) == nil {
					wins.Add(1)
				}
			}()
		}

		wg.Wait()
		assert.Equal(t, int32(1), wins.Load())
	})

	t.Run("missing id is not found", func(t *testing.T) {
		_, err := repo.FetchAndIncrement(ctx, uniqueID("mi"))
		assert.ErrorIs(t, err, content.ErrNotFound)

		ok, err := repo.Exists(ctx, uniqueID("mi"))
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("expired id is hidden and reusable", func(t *testing.T) {
		id := uniqueID("ex")
		short := newItem(string(id), time.Now().UTC().Truncate(time.Millisecond))
		short.ExpiresAt = short.CreatedAt.Add(150 * time.Millisecond)

		require.NoError(t, repo.Insert(ctx, short))

		ok, err := repo.Exists(ctx, id)
		require.NoError(t, err)
		assert.True(t, ok)

		time.Sleep(300 * time.Millisecond)

		ok, err = repo.Exists(ctx, id)
		require.NoError(t, err)
		assert.False(t, ok)

		_, err = repo.FetchAndIncrement(ctx, id)
		require.ErrorIs(t, err, content.ErrNotFound)

		fresh := newItem(string(id), time.Now().UTC().Truncate(time.Millisecond))
		fresh.Content = "fresh"
		require.NoError(t, repo.Insert(ctx, fresh))

		got, err := repo.FetchAndIncrement(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "fresh", got.Content)
		assert.Equal(t, int64(1), got.Views)
	})

	t.Run("list recent is newest first", func(t *testing.T) {
		// Far-future creation times keep these ahead of rows left by other tests.
		future := now.Add(100 * 24 * time.Hour)
		ids := []content.ShortID{uniqueID("la"), uniqueID("lb"), uniqueID("lc")}

		for i, id := range ids {
			item := newItem(string(id), future.Add(time.Duration(i)*time.Minute))
			item.ExpiresAt = future.Add(24 * time.Hour)
			require.NoError(t, repo.Insert(ctx, item))
		}

		items, err := repo.ListRecent(ctx, 2)
		require.NoError(t, err)
		require.Len(t, items, 2)
		assert.Equal(t, ids[2], items[0].ShortID)
		assert.Equal(t, ids[1], items[1].ShortID)
	})

	t.Run("ping", func(t *testing.T) {
		assert.NoError(t, repo.Ping(ctx))
	})
}
