package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/serroba/shortshare/internal/content"
)

const postgresSchema = `
	CREATE TABLE IF NOT EXISTS content_items (
		short_id   TEXT PRIMARY KEY,
		kind       TEXT NOT NULL,
		content    TEXT NOT NULL DEFAULT '',
		language   TEXT NOT NULL DEFAULT '',
		file_path  TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL,
		expires_at TIMESTAMPTZ,
		views      BIGINT NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS content_items_created_at_idx ON content_items (created_at DESC);
`

const postgresColumns = `short_id, kind, content, language, file_path, created_at, expires_at, views`

// PostgresStore is a PostgreSQL implementation of content.Repository.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed content store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Migrate creates the content table and its indexes if they are missing.
func (p *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, postgresSchema); err != nil {
		return fmt.Errorf("store.PostgresStore.Migrate: %w", err)
	}

	return nil
}

// Insert takes over a row only when it has expired, so a live item is never
// overwritten.
func (p *PostgresStore) Insert(ctx context.Context, item *content.Item) error {
	const op = "store.PostgresStore.Insert"

	query := `
		INSERT INTO content_items (` + postgresColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 0)
		ON CONFLICT (short_id) DO UPDATE SET
			kind = EXCLUDED.kind,
			content = EXCLUDED.content,
			language = EXCLUDED.language,
			file_path = EXCLUDED.file_path,
			created_at = EXCLUDED.created_at,
			expires_at = EXCLUDED.expires_at,
			views = 0
		WHERE content_items.expires_at IS NOT NULL AND content_items.expires_at <= now()
	`

	tag, err := p.pool.Exec(ctx, query,
		string(item.ShortID),
		string(item.Kind),
		item.Content,
		item.Language,
		item.FilePath,
		item.CreatedAt,
		nullableTime(item.ExpiresAt),
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if tag.RowsAffected() == 0 {
		return content.ErrDuplicateKey
	}

	return nil
}

func (p *PostgresStore) FetchAndIncrement(ctx context.Context, id content.ShortID) (*content.Item, error) {
	const op = "store.PostgresStore.FetchAndIncrement"

	query := `
		UPDATE content_items SET views = views + 1
		WHERE short_id = $1 AND (expires_at IS NULL OR expires_at > now())
		RETURNING ` + postgresColumns

	item, err := scanItem(p.pool.QueryRow(ctx, query, string(id)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, content.ErrNotFound
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return item, nil
}

func (p *PostgresStore) ListRecent(ctx context.Context, limit int) ([]*content.Item, error) {
	const op = "store.PostgresStore.ListRecent"

	query := `
		SELECT ` + postgresColumns + `
		FROM content_items
		WHERE expires_at IS NULL OR expires_at > now()
		ORDER BY created_at DESC, short_id
		LIMIT $1
	`

	rows, err := p.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	items := make([]*content.Item, 0, limit)

	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return items, nil
}

func (p *PostgresStore) Exists(ctx context.Context, id content.ShortID) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM content_items
			WHERE short_id = $1 AND (expires_at IS NULL OR expires_at > now())
		)
	`

	var exists bool
	if err := p.pool.QueryRow(ctx, query, string(id)).Scan(&exists); err != nil {
		return false, fmt.Errorf("store.PostgresStore.Exists: %w", err)
	}

	return exists, nil
}

func (p *PostgresStore) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

func scanItem(row pgx.Row) (*content.Item, error) {
	var (
		item      content.Item
		id, kind  string
		expiresAt *time.Time
	)

	err := row.Scan(
		&id,
		&kind,
		&item.Content,
		&item.Language,
		&item.FilePath,
		&item.CreatedAt,
		&expiresAt,
		&item.Views,
	)
	if err != nil {
		return nil, err
	}

	item.ShortID = content.ShortID(id)
	item.Kind = content.Kind(kind)

	if expiresAt != nil {
		item.ExpiresAt = *expiresAt
	}

	return &item, nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}

	return &t
}
