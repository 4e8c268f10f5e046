// Package objectstore keeps uploaded image bytes outside the content store
// and hands back URLs they can be fetched from.
package objectstore

import (
	"context"
	"errors"
	"time"
)

// DefaultURLTTL is how long a signed retrieval URL stays valid.
const DefaultURLTTL = 24 * time.Hour

var ErrInvalidKey = errors.New("invalid object key")

// Store persists objects by key.
type Store interface {
	// Put writes data under key and returns a URL the object can be
	// retrieved from.
	Put(ctx context.Context, key, contentType string, data []byte) (string, error)
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}
