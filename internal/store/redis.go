package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/serroba/shortshare/internal/content"
)

// Items live in one hash per id and expire through Redis key TTLs. The
// recent index is a sorted set scored by creation time; members whose hash
// has expired are pruned lazily by ListRecent.
var (
	redisInsertScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 1 then
	return 0
end
redis.call("HSET", KEYS[1],
	"kind", ARGV[1], "content", ARGV[2], "language", ARGV[3], "file_path", ARGV[4],
	"created_at", ARGV[5], "expires_at", ARGV[6], "views", 0)
if tonumber(ARGV[6]) > 0 then
	redis.call("PEXPIREAT", KEYS[1], ARGV[6])
end
redis.call("ZADD", KEYS[2], ARGV[5], ARGV[7])
return 1
`)

	redisFetchIncrementScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 0 then
	return false
end
redis.call("HINCRBY", KEYS[1], "views", 1)
return redis.call("HGETALL", KEYS[1])
`)
)

// RedisStore is a Redis implementation of content.Repository.
type RedisStore struct {
	client    *redis.Client
	prefix    string // "content:" for id -> item hash
	recentKey string // "content:recent" sorted set of ids by created_at
}

// NewRedisStore creates a new Redis-backed content store.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{
		client:    client,
		prefix:    "content:",
		recentKey: "content:recent",
	}
}

func (r *RedisStore) Insert(ctx context.Context, item *content.Item) error {
	const op = "store.RedisStore.Insert"

	if !item.ExpiresAt.IsZero() && !time.Now().Before(item.ExpiresAt) {
		return fmt.Errorf("%s: item already expired", op)
	}

	created, err := redisInsertScript.Run(ctx, r.client,
		[]string{r.prefix + string(item.ShortID), r.recentKey},
		string(item.Kind),
		item.Content,
		item.Language,
		item.FilePath,
		item.CreatedAt.UnixMilli(),
		unixMilliOrZero(item.ExpiresAt),
		string(item.ShortID),
	).Int()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if created == 0 {
		return content.ErrDuplicateKey
	}

	return nil
}

func (r *RedisStore) FetchAndIncrement(ctx context.Context, id content.ShortID) (*content.Item, error) {
	const op = "store.RedisStore.FetchAndIncrement"

	fields, err := redisFetchIncrementScript.Run(ctx, r.client, []string{r.prefix + string(id)}).StringSlice()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, content.ErrNotFound
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	m := make(map[string]string, len(fields)/2)
	for i := 0; i+1 < len(fields); i += 2 {
		m[fields[i]] = fields[i+1]
	}

	item, err := itemFromHash(id, m)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return item, nil
}

func (r *RedisStore) ListRecent(ctx context.Context, limit int) ([]*content.Item, error) {
	const op = "store.RedisStore.ListRecent"

	items := make([]*content.Item, 0, limit)
	batch := int64(limit * 2)

	for start := int64(0); len(items) < limit; start += batch {
		ids, err := r.client.ZRevRange(ctx, r.recentKey, start, start+batch-1).Result()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		if len(ids) == 0 {
			break
		}

		pipe := r.client.Pipeline()
		cmds := make([]*redis.MapStringStringCmd, len(ids))

		for i, id := range ids {
			cmds[i] = pipe.HGetAll(ctx, r.prefix+id)
		}

		if _, err := pipe.Exec(ctx); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		var stale []any

		for i, cmd := range cmds {
			m := cmd.Val()
			if len(m) == 0 {
				stale = append(stale, ids[i])

				continue
			}

			if len(items) == limit {
				continue
			}

			item, err := itemFromHash(content.ShortID(ids[i]), m)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", op, err)
			}

			items = append(items, item)
		}

		if len(stale) > 0 {
			if err := r.client.ZRem(ctx, r.recentKey, stale...).Err(); err != nil {
				return nil, fmt.Errorf("%s: %w", op, err)
			}

			start -= int64(len(stale))
		}

		if int64(len(ids)) < batch {
			break
		}
	}

	return items, nil
}

func (r *RedisStore) Exists(ctx context.Context, id content.ShortID) (bool, error) {
	n, err := r.client.Exists(ctx, r.prefix+string(id)).Result()
	if err != nil {
		return false, fmt.Errorf("store.RedisStore.Exists: %w", err)
	}

	return n == 1, nil
}

func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func itemFromHash(id content.ShortID, m map[string]string) (*content.Item, error) {
	created, err := strconv.ParseInt(m["created_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}

	expires, err := strconv.ParseInt(m["expires_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse expires_at: %w", err)
	}

	views, err := strconv.ParseInt(m["views"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse views: %w", err)
	}

	item := &content.Item{
		ShortID:   id,
		Kind:      content.Kind(m["kind"]),
		Content:   m["content"],
		Language:  m["language"],
		FilePath:  m["file_path"],
		CreatedAt: time.UnixMilli(created).UTC(),
		Views:     views,
	}

	if expires > 0 {
		item.ExpiresAt = time.UnixMilli(expires).UTC()
	}

	return item, nil
}

func unixMilliOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}

	return t.UnixMilli()
}
