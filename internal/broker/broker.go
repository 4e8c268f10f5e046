// Package broker turns submitted payloads into short identifiers and
// resolves identifiers back to their content.
package broker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/serroba/shortshare/internal/cache"
	"github.com/serroba/shortshare/internal/content"
	"github.com/serroba/shortshare/internal/metrics"
	"github.com/serroba/shortshare/internal/objectstore"
	"github.com/serroba/shortshare/internal/ratelimit"
	"go.uber.org/zap"
)

const (
	DefaultContentTTL        = 24 * time.Hour
	DefaultStoreTimeout      = 5 * time.Second
	DefaultMaxInsertAttempts = 5
	DefaultRecentLimit       = 10
	MaxRecentLimit           = 100
)

// RateLimitError is returned by Submit when the client exhausted a limit.
// It matches content.ErrRateLimited.
type RateLimitError struct {
	Exceeded *ratelimit.LimitExceeded
}

func (e *RateLimitError) Error() string {
	x := e.Exceeded

	return fmt.Sprintf("%s: %s scope, %d/%d requests in %s",
		content.ErrRateLimited, x.Scope, x.Count, x.Config.Max, x.Config.Window)
}

func (e *RateLimitError) Unwrap() error {
	return content.ErrRateLimited
}

// Admitter decides whether a client may proceed in the given scopes.
type Admitter interface {
	Allow(ctx context.Context, clientKey string, scopes []ratelimit.Scope) (bool, *ratelimit.LimitExceeded, error)
}

// Allocator hands out candidate short identifiers.
type Allocator interface {
	Allocate(ctx context.Context) (content.ShortID, error)
}

// Config tunes the broker.
type Config struct {
	IDLength          int
	ContentTTL        time.Duration
	StoreTimeout      time.Duration
	MaxInsertAttempts int
	Limits            Limits
}

// DefaultConfig returns the stock configuration for identifiers of length idLength.
func DefaultConfig(idLength int) Config {
	return Config{
		IDLength:          idLength,
		ContentTTL:        DefaultContentTTL,
		StoreTimeout:      DefaultStoreTimeout,
		MaxInsertAttempts: DefaultMaxInsertAttempts,
		Limits:            DefaultLimits(),
	}
}

// Broker coordinates admission, validation, allocation, storage and caching.
type Broker struct {
	repo      content.Repository
	allocator Allocator
	cache     *cache.ContentCache
	admitter  Admitter
	objects   objectstore.Store
	cfg       Config
	metrics   *metrics.Metrics
	logger    *zap.Logger
	now       func() time.Time
}

// Option customizes a Broker.
type Option func(*Broker)

// WithClock overrides the time source used for timestamps and expiry.
func WithClock(now func() time.Time) Option {
	return func(b *Broker) {
		b.now = now
	}
}

// WithObjectStore enables image submissions.
func WithObjectStore(objects objectstore.Store) Option {
	return func(b *Broker) {
		b.objects = objects
	}
}

// WithAdmitter enables per-kind submission limits.
func WithAdmitter(admitter Admitter) Option {
	return func(b *Broker) {
		b.admitter = admitter
	}
}

// WithMetrics records submission and resolution outcomes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(b *Broker) {
		b.metrics = m
	}
}

// New creates a broker.
func New(
	repo content.Repository,
	allocator Allocator,
	contentCache *cache.ContentCache,
	cfg Config,
	logger *zap.Logger,
	opts ...Option,
) *Broker {
	if cfg.ContentTTL <= 0 {
		cfg.ContentTTL = DefaultContentTTL
	}

	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = DefaultStoreTimeout
	}

	if cfg.MaxInsertAttempts <= 0 {
		cfg.MaxInsertAttempts = DefaultMaxInsertAttempts
	}

	if cfg.Limits == (Limits{}) {
		cfg.Limits = DefaultLimits()
	}

	b := &Broker{
		repo:      repo,
		allocator: allocator,
		cache:     contentCache,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}

	for _, opt := range opts {
		opt(b)
	}

	return b
}

// Submit stores payload under a fresh short identifier and returns the
// created item.
func (b *Broker) Submit(ctx context.Context, clientKey string, payload content.Payload) (*content.Item, error) {
	kind := payload.Kind()

	item, err := b.submit(ctx, clientKey, payload)
	b.metrics.Submission(string(kind), outcome(err))

	return item, err
}

func (b *Broker) submit(ctx context.Context, clientKey string, payload content.Payload) (*content.Item, error) {
	const op = "broker.Broker.Submit"

	if err := b.admit(ctx, clientKey, payload.Kind()); err != nil {
		return nil, err
	}

	draft, upload, err := b.draft(payload)
	if err != nil {
		return nil, err
	}

	for attempt := 1; attempt <= b.cfg.MaxInsertAttempts; attempt++ {
		id, err := b.allocate(ctx)
		if err != nil {
			return nil, err
		}

		item := draft.Clone()
		item.ShortID = id
		item.CreatedAt = b.now().UTC()
		item.ExpiresAt = item.CreatedAt.Add(b.cfg.ContentTTL)

		var objectKey string

		if upload != nil {
			objectKey = newObjectKey(id, upload.ext)

			item.FilePath, err = b.putObject(ctx, objectKey, upload)
			if err != nil {
				return nil, err
			}
		}

		err = b.insert(ctx, item)
		if err == nil {
			b.cache.Invalidate(id)

			return item, nil
		}

		if objectKey != "" {
			b.deleteObject(objectKey)
		}

		if !errors.Is(err, content.ErrDuplicateKey) {
			return nil, err
		}

		b.logger.Debug("short id collided on insert, reallocating",
			zap.String("short_id", string(id)),
			zap.Int("attempt", attempt),
		)
	}

	return nil, fmt.Errorf("%s: %w after %d insert attempts", op, content.ErrAllocationExhausted, b.cfg.MaxInsertAttempts)
}

// newObjectKey is unique per insert attempt: a submission that loses a race
// for id only ever deletes its own upload.
func newObjectKey(id content.ShortID, ext string) string {
	return string(id) + "-" + uuid.NewString() + ext
}

type upload struct {
	contentType string
	ext         string
	data        []byte
}

// draft validates payload and builds the item fields that do not depend on
// the allocated identifier.
func (b *Broker) draft(payload content.Payload) (*content.Item, *upload, error) {
	switch p := payload.(type) {
	case content.Code:
		if err := b.cfg.Limits.validateCode(p); err != nil {
			return nil, nil, err
		}

		language := p.Language
		if language == "" {
			language = content.DefaultLanguage
		}

		return &content.Item{Kind: content.KindCode, Content: p.Text, Language: language}, nil, nil

	case content.Link:
		if err := b.cfg.Limits.validateLink(p); err != nil {
			return nil, nil, err
		}

		return &content.Item{Kind: content.KindLink, Content: p.URL}, nil, nil

	case content.Image:
		contentType, ext, err := b.cfg.Limits.validateImage(p)
		if err != nil {
			return nil, nil, err
		}

		if b.objects == nil {
			return nil, nil, fmt.Errorf("broker.Broker.Submit: %w: no object store configured", content.ErrUpstream)
		}

		return &content.Item{Kind: content.KindImage}, &upload{contentType: contentType, ext: ext, data: p.Data}, nil

	default:
		return nil, nil, content.Invalid("type", "unsupported content type")
	}
}

func (b *Broker) admit(ctx context.Context, clientKey string, kind content.Kind) error {
	if b.admitter == nil {
		return nil
	}

	allowed, exceeded, err := b.admitter.Allow(ctx, clientKey, []ratelimit.Scope{ratelimit.ScopeForKind(kind)})
	if err != nil {
		b.logger.Error("rate limit check failed", zap.String("kind", string(kind)), zap.Error(err))

		return fmt.Errorf("broker.Broker.admit: %w: %w", content.ErrUpstream, err)
	}

	if allowed {
		return nil
	}

	if exceeded != nil {
		return &RateLimitError{Exceeded: exceeded}
	}

	return content.ErrRateLimited
}

func (b *Broker) allocate(ctx context.Context) (content.ShortID, error) {
	ctx, cancel := context.WithTimeout(ctx, b.cfg.StoreTimeout)
	defer cancel()

	id, err := b.allocator.Allocate(ctx)
	if err != nil {
		b.logStoreError("allocate short id", "", err)

		return "", err
	}

	return id, nil
}

func (b *Broker) putObject(ctx context.Context, key string, u *upload) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, b.cfg.StoreTimeout)
	defer cancel()

	url, err := b.objects.Put(ctx, key, u.contentType, u.data)
	if err != nil {
		b.logger.Error("object upload failed", zap.String("key", key), zap.Error(err))

		return "", fmt.Errorf("broker.Broker.putObject: %w: %w", content.ErrUpstream, err)
	}

	return url, nil
}

// deleteObject removes an upload whose item was never stored. It runs
// detached from the request so a cancelled client does not leak the object.
func (b *Broker) deleteObject(key string) {
	ctx, cancel := context.WithTimeout(context.Background(), b.cfg.StoreTimeout)
	defer cancel()

	if err := b.objects.Delete(ctx, key); err != nil {
		b.logger.Warn("failed to delete orphaned object", zap.String("key", key), zap.Error(err))
	}
}

func (b *Broker) insert(ctx context.Context, item *content.Item) error {
	ctx, cancel := context.WithTimeout(ctx, b.cfg.StoreTimeout)
	defer cancel()

	err := b.repo.Insert(ctx, item)
	if err == nil || errors.Is(err, content.ErrDuplicateKey) {
		return err
	}

	b.logStoreError("insert content", item.ShortID, err)

	return fmt.Errorf("broker.Broker.insert: %w: %w", content.ErrUpstream, err)
}

// Resolve maps a raw identifier to its content, counting one view on every
// store read. Malformed identifiers never reach the store.
func (b *Broker) Resolve(ctx context.Context, raw string) (Resolved, error) {
	res, err := b.resolve(ctx, raw)
	b.metrics.Resolution(outcome(err))

	return res, err
}

func (b *Broker) resolve(ctx context.Context, raw string) (Resolved, error) {
	id, ok := content.ParseShortID(raw, b.cfg.IDLength)
	if !ok {
		return nil, content.ErrNotFound
	}

	item, err := b.lookup(ctx, id)
	if err != nil {
		return nil, err
	}

	kind, _ := content.ParseKind(string(item.Kind))

	meta := Meta{
		ShortID:   item.ShortID,
		Kind:      kind,
		Views:     item.Views,
		CreatedAt: item.CreatedAt,
		ExpiresAt: item.ExpiresAt,
	}

	switch kind {
	case content.KindCode:
		return ResolvedCode{Meta: meta, Code: item.Content, Language: item.Language}, nil
	case content.KindLink:
		if !isAbsoluteHTTPURL(item.Content) {
			b.logger.Warn("stored link failed validation", zap.String("short_id", string(id)))

			return nil, content.ErrNotFound
		}

		return ResolvedLink{Meta: meta, Target: item.Content}, nil
	case content.KindImage:
		return ResolvedImage{Meta: meta, ImageURL: item.FilePath}, nil
	default:
		b.logger.Warn("stored item has unknown kind",
			zap.String("short_id", string(id)), zap.String("kind", string(item.Kind)))

		return nil, content.ErrNotFound
	}
}

func (b *Broker) lookup(ctx context.Context, id content.ShortID) (*content.Item, error) {
	if item, ok := b.cache.Get(id); ok {
		if !item.Expired(b.now()) {
			return item, nil
		}

		b.cache.Invalidate(id)
	}

	ctx, cancel := context.WithTimeout(ctx, b.cfg.StoreTimeout)
	defer cancel()

	item, err := b.repo.FetchAndIncrement(ctx, id)
	if err != nil {
		if errors.Is(err, content.ErrNotFound) {
			return nil, content.ErrNotFound
		}

		b.logStoreError("fetch content", id, err)

		return nil, fmt.Errorf("broker.Broker.lookup: %w: %w", content.ErrUpstream, err)
	}

	b.cache.Put(id, item)

	return item, nil
}

// Recent lists live items newest first. limit is clamped to
// [1, MaxRecentLimit]; zero or less selects DefaultRecentLimit.
func (b *Broker) Recent(ctx context.Context, limit int) ([]*content.Item, error) {
	switch {
	case limit <= 0:
		limit = DefaultRecentLimit
	case limit > MaxRecentLimit:
		limit = MaxRecentLimit
	}

	ctx, cancel := context.WithTimeout(ctx, b.cfg.StoreTimeout)
	defer cancel()

	items, err := b.repo.ListRecent(ctx, limit)
	if err != nil {
		b.logStoreError("list recent content", "", err)

		return nil, fmt.Errorf("broker.Broker.Recent: %w: %w", content.ErrUpstream, err)
	}

	return items, nil
}

func (b *Broker) logStoreError(action string, id content.ShortID, err error) {
	if errors.Is(err, content.ErrAllocationExhausted) {
		b.logger.Warn("short id keyspace pressure",
			zap.Int("id_length", b.cfg.IDLength),
			zap.Int64("keyspace", content.Keyspace(b.cfg.IDLength)),
			zap.Error(err),
		)

		return
	}

	b.logger.Error("content store failure",
		zap.String("action", action),
		zap.String("short_id", string(id)),
		zap.Error(err),
	)
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, content.ErrValidation):
		return "invalid"
	case errors.Is(err, content.ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, content.ErrNotFound):
		return "not_found"
	case errors.Is(err, content.ErrAllocationExhausted):
		return "exhausted"
	default:
		return "error"
	}
}
