package content

import "context"

// Repository is the durable store of content items.
type Repository interface {
	// Insert creates item atomically. It returns ErrDuplicateKey when the
	// short id is already present and never overwrites.
	Insert(ctx context.Context, item *Item) error
	// FetchAndIncrement increments the view counter and returns the
	// post-increment item in one operation. Missing or expired items
	// yield ErrNotFound.
	FetchAndIncrement(ctx context.Context, id ShortID) (*Item, error)
	// ListRecent returns up to limit live items, newest first.
	ListRecent(ctx context.Context, limit int) ([]*Item, error)
	// Exists reports whether a live item holds id.
	Exists(ctx context.Context, id ShortID) (bool, error)
	// Ping checks connectivity to the backend.
	Ping(ctx context.Context) error
}
