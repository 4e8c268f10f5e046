package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/serroba/shortshare/internal/analytics"
	"github.com/serroba/shortshare/internal/broker"
	"github.com/serroba/shortshare/internal/content"
	"go.uber.org/zap"
)

// Service is the content broker as seen by the HTTP layer.
type Service interface {
	Submit(ctx context.Context, clientKey string, payload content.Payload) (*content.Item, error)
	Resolve(ctx context.Context, raw string) (broker.Resolved, error)
	Recent(ctx context.Context, limit int) ([]*content.Item, error)
}

// ContentHandler serves submissions, resolution and the admin listing.
type ContentHandler struct {
	service Service
	baseURL string
	events  analytics.Publishers
	logger  *zap.Logger
	now     func() time.Time
}

// NewContentHandler creates a content handler. Share URLs are built on baseURL.
func NewContentHandler(
	service Service,
	baseURL string,
	events analytics.Publishers,
	logger *zap.Logger,
) *ContentHandler {
	return &ContentHandler{
		service: service,
		baseURL: baseURL,
		events:  events,
		logger:  logger,
		now:     time.Now,
	}
}

func (h *ContentHandler) SubmitCode(ctx context.Context, req *SubmitCodeRequest) (*SubmitResponse, error) {
	payload := content.Code{Text: req.Body.Code, Language: req.Body.Language}

	return h.submit(ctx, payload, len(payload.Text))
}

func (h *ContentHandler) SubmitLink(ctx context.Context, req *SubmitLinkRequest) (*SubmitResponse, error) {
	payload := content.Link{URL: req.Body.URL}

	return h.submit(ctx, payload, len(payload.URL))
}

func (h *ContentHandler) SubmitImage(ctx context.Context, req *SubmitImageRequest) (*SubmitResponse, error) {
	files := req.RawBody.File["file"]
	if len(files) == 0 {
		return nil, huma.Error400BadRequest("file: an image file is required")
	}

	header := files[0]

	f, err := header.Open()
	if err != nil {
		return nil, huma.Error400BadRequest("file: unreadable upload")
	}
	defer f.Close()

	// One byte past the limit is enough for the broker to reject oversize files.
	data, err := io.ReadAll(io.LimitReader(f, broker.MaxImageBytes+1))
	if err != nil {
		return nil, huma.Error400BadRequest("file: unreadable upload")
	}

	payload := content.Image{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	}

	return h.submit(ctx, payload, len(data))
}

func (h *ContentHandler) submit(ctx context.Context, payload content.Payload, size int) (*SubmitResponse, error) {
	meta := RequestMetaFromContext(ctx)

	item, err := h.service.Submit(ctx, meta.ClientKey, payload)
	if err != nil {
		return nil, h.problem(err, "")
	}

	h.publishCreated(ctx, item, size, meta)

	shareURL := h.shareURL(item.Kind, item.ShortID)

	resp := &SubmitResponse{}
	resp.Location = shareURL
	resp.Body = SubmitBody{
		ShortID:   string(item.ShortID),
		Kind:      string(item.Kind),
		URL:       shareURL,
		ExpiresAt: item.ExpiresAt,
	}

	if item.Kind == content.KindImage {
		resp.Body.ImageURL = item.FilePath
	}

	return resp, nil
}

// Resolve answers GET /{shortId} for every kind.
func (h *ContentHandler) Resolve(ctx context.Context, req *ResolveRequest) (*ResolveResponse, error) {
	return h.resolve(ctx, req.ShortID, "")
}

func (h *ContentHandler) ResolveCode(ctx context.Context, req *ResolveRequest) (*ResolveResponse, error) {
	return h.resolve(ctx, req.ShortID, content.KindCode)
}

func (h *ContentHandler) ResolveLink(ctx context.Context, req *ResolveRequest) (*ResolveResponse, error) {
	return h.resolve(ctx, req.ShortID, content.KindLink)
}

func (h *ContentHandler) ResolveImage(ctx context.Context, req *ResolveRequest) (*ResolveResponse, error) {
	return h.resolve(ctx, req.ShortID, content.KindImage)
}

// resolve looks up raw; a non-empty want restricts the answer to one kind.
func (h *ContentHandler) resolve(ctx context.Context, raw string, want content.Kind) (*ResolveResponse, error) {
	res, err := h.service.Resolve(ctx, raw)
	if err != nil {
		return nil, h.problem(err, raw)
	}

	meta := res.Metadata()
	if want != "" && meta.Kind != want {
		return nil, huma.Error404NotFound("content not found")
	}

	h.publishViewed(ctx, meta)

	resp := &ResolveResponse{Status: http.StatusOK}
	resp.Body = ResolvedBody{
		ShortID:   string(meta.ShortID),
		Kind:      string(meta.Kind),
		Views:     meta.Views,
		CreatedAt: meta.CreatedAt,
		ExpiresAt: optionalTime(meta.ExpiresAt),
	}

	switch r := res.(type) {
	case broker.ResolvedCode:
		resp.Body.Code = r.Code
		resp.Body.Language = r.Language
	case broker.ResolvedLink:
		resp.Status = http.StatusFound
		resp.Location = r.Target
		resp.Body.URL = r.Target
	case broker.ResolvedImage:
		resp.Body.ImageURL = r.ImageURL
	}

	return resp, nil
}

// Recent lists the newest live items for the admin view.
func (h *ContentHandler) Recent(ctx context.Context, req *RecentRequest) (*RecentResponse, error) {
	items, err := h.service.Recent(ctx, req.Limit)
	if err != nil {
		return nil, h.problem(err, "")
	}

	resp := &RecentResponse{}
	resp.Body.Items = make([]RecentItem, 0, len(items))

	for _, item := range items {
		resp.Body.Items = append(resp.Body.Items, RecentItem{
			ShortID:   string(item.ShortID),
			Kind:      string(item.Kind),
			Language:  item.Language,
			Views:     item.Views,
			CreatedAt: item.CreatedAt,
			ExpiresAt: optionalTime(item.ExpiresAt),
			URL:       h.shareURL(item.Kind, item.ShortID),
		})
	}

	return resp, nil
}

func (h *ContentHandler) shareURL(kind content.Kind, id content.ShortID) string {
	return fmt.Sprintf("%s/%s/%s", h.baseURL, kind, id)
}

// problem maps broker errors onto RFC 7807 responses. Store failures are
// logged in full and answered with a generic message.
func (h *ContentHandler) problem(err error, raw string) error {
	var verr *content.ValidationError

	switch {
	case errors.As(err, &verr):
		if verr.TooLarge {
			return huma.Error413RequestEntityTooLarge(verr.Error())
		}

		return huma.Error400BadRequest(verr.Error())
	case errors.Is(err, content.ErrRateLimited):
		tooMany := huma.Error429TooManyRequests(err.Error())

		var limited *broker.RateLimitError
		if errors.As(err, &limited) {
			return huma.ErrorWithHeaders(tooMany, http.Header{
				"Retry-After": {strconv.Itoa(limited.Exceeded.RetryAfterSeconds())},
			})
		}

		return tooMany
	case errors.Is(err, content.ErrNotFound):
		return huma.Error404NotFound("content not found")
	case errors.Is(err, content.ErrAllocationExhausted):
		return huma.Error503ServiceUnavailable("no short id available, try again later")
	default:
		h.logger.Error("content request failed", zap.String("short_id", raw), zap.Error(err))

		return huma.Error500InternalServerError("internal server error")
	}
}

func (h *ContentHandler) publishCreated(ctx context.Context, item *content.Item, size int, meta RequestMeta) {
	event := &analytics.ContentCreatedEvent{
		ShortID:   string(item.ShortID),
		Kind:      string(item.Kind),
		Language:  item.Language,
		Size:      size,
		CreatedAt: item.CreatedAt,
		ExpiresAt: item.ExpiresAt,
		ClientIP:  meta.ClientIP,
		UserAgent: meta.UserAgent,
	}

	if err := h.events.ContentCreated(ctx, event); err != nil {
		h.logger.Error("failed to publish analytics event",
			zap.String("short_id", event.ShortID),
			zap.Error(err),
		)
	}
}

func (h *ContentHandler) publishViewed(ctx context.Context, m broker.Meta) {
	meta := RequestMetaFromContext(ctx)
	event := &analytics.ContentViewedEvent{
		ShortID:   string(m.ShortID),
		Kind:      string(m.Kind),
		Views:     m.Views,
		ViewedAt:  h.now(),
		ClientIP:  meta.ClientIP,
		UserAgent: meta.UserAgent,
		Referrer:  meta.Referrer,
	}

	if err := h.events.ContentViewed(ctx, event); err != nil {
		h.logger.Error("failed to publish view event",
			zap.String("short_id", event.ShortID),
			zap.Error(err),
		)
	}
}

func optionalTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}

	return &t
}
