package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3" // registers the sqlite3 driver
	"github.com/serroba/shortshare/internal/content"
)

// Timestamps are stored as Unix nanoseconds so expiry comparisons stay
// numeric. An expires_at of 0 never expires.
const sqliteSchema = `
	CREATE TABLE IF NOT EXISTS content_items (
		short_id   TEXT PRIMARY KEY,
		kind       TEXT NOT NULL,
		content    TEXT NOT NULL DEFAULT '',
		language   TEXT NOT NULL DEFAULT '',
		file_path  TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL,
		expires_at INTEGER NOT NULL DEFAULT 0,
		views      INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS content_items_created_at_idx ON content_items (created_at DESC);
`

type sqliteRow struct {
	ShortID   string `db:"short_id"`
	Kind      string `db:"kind"`
	Content   string `db:"content"`
	Language  string `db:"language"`
	FilePath  string `db:"file_path"`
	CreatedAt int64  `db:"created_at"`
	ExpiresAt int64  `db:"expires_at"`
	Views     int64  `db:"views"`
}

func (r sqliteRow) item() *content.Item {
	item := &content.Item{
		ShortID:   content.ShortID(r.ShortID),
		Kind:      content.Kind(r.Kind),
		Content:   r.Content,
		Language:  r.Language,
		FilePath:  r.FilePath,
		CreatedAt: time.Unix(0, r.CreatedAt).UTC(),
		Views:     r.Views,
	}

	if r.ExpiresAt != 0 {
		item.ExpiresAt = time.Unix(0, r.ExpiresAt).UTC()
	}

	return item
}

// SQLiteStore is an embedded SQLite implementation of content.Repository for
// single-node deployments.
type SQLiteStore struct {
	db  *sqlx.DB
	now func() time.Time
}

// OpenSQLite opens (creating if needed) the database file at path and
// applies the schema.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	const op = "store.OpenSQLite"

	db, err := sqlx.ConnectContext(ctx, "sqlite3", "file:"+path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	// SQLite allows one writer; a single connection serializes statements.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db, now: time.Now}

	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()

		return nil, err
	}

	return s, nil
}

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, sqliteSchema); err != nil {
		return fmt.Errorf("store.SQLiteStore.Migrate: %w", err)
	}

	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Insert(ctx context.Context, item *content.Item) error {
	const op = "store.SQLiteStore.Insert"

	query := `
		INSERT INTO content_items (short_id, kind, content, language, file_path, created_at, expires_at, views)
		VALUES (:short_id, :kind, :content, :language, :file_path, :created_at, :expires_at, 0)
		ON CONFLICT (short_id) DO UPDATE SET
			kind = excluded.kind,
			content = excluded.content,
			language = excluded.language,
			file_path = excluded.file_path,
			created_at = excluded.created_at,
			expires_at = excluded.expires_at,
			views = 0
		WHERE content_items.expires_at != 0 AND content_items.expires_at <= :now
	`

	args := map[string]any{
		"short_id":   string(item.ShortID),
		"kind":       string(item.Kind),
		"content":    item.Content,
		"language":   item.Language,
		"file_path":  item.FilePath,
		"created_at": item.CreatedAt.UnixNano(),
		"expires_at": unixNanoOrZero(item.ExpiresAt),
		"now":        s.now().UnixNano(),
	}

	res, err := s.db.NamedExecContext(ctx, query, args)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if n == 0 {
		return content.ErrDuplicateKey
	}

	return nil
}

func (s *SQLiteStore) FetchAndIncrement(ctx context.Context, id content.ShortID) (*content.Item, error) {
	const op = "store.SQLiteStore.FetchAndIncrement"

	query := `
		UPDATE content_items SET views = views + 1
		WHERE short_id = ? AND (expires_at = 0 OR expires_at > ?)
		RETURNING short_id, kind, content, language, file_path, created_at, expires_at, views
	`

	var row sqliteRow
	if err := s.db.GetContext(ctx, &row, query, string(id), s.now().UnixNano()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, content.ErrNotFound
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return row.item(), nil
}

func (s *SQLiteStore) ListRecent(ctx context.Context, limit int) ([]*content.Item, error) {
	query := `
		SELECT short_id, kind, content, language, file_path, created_at, expires_at, views
		FROM content_items
		WHERE expires_at = 0 OR expires_at > ?
		ORDER BY created_at DESC, short_id
		LIMIT ?
	`

	var rows []sqliteRow
	if err := s.db.SelectContext(ctx, &rows, query, s.now().UnixNano(), limit); err != nil {
		return nil, fmt.Errorf("store.SQLiteStore.ListRecent: %w", err)
	}

	items := make([]*content.Item, 0, len(rows))
	for _, r := range rows {
		items = append(items, r.item())
	}

	return items, nil
}

func (s *SQLiteStore) Exists(ctx context.Context, id content.ShortID) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM content_items
			WHERE short_id = ? AND (expires_at = 0 OR expires_at > ?)
		)
	`

	var exists bool
	if err := s.db.GetContext(ctx, &exists, query, string(id), s.now().UnixNano()); err != nil {
		return false, fmt.Errorf("store.SQLiteStore.Exists: %w", err)
	}

	return exists, nil
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func unixNanoOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}

	return t.UnixNano()
}
