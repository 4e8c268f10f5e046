package handlers

import (
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/serroba/shortshare/internal/broker"
	"github.com/serroba/shortshare/internal/ratelimit"
)

const (
	// JSON escaping can inflate a snippet well past its raw size.
	codeBodyBytes  = 8 * broker.MaxCodeBytes
	linkBodyBytes  = 4 * broker.MaxLinkChars
	imageBodyBytes = broker.MaxImageBytes + 64*1024
)

// AdminListingLimit caps the admin listing per client, since every call scans
// the store.
var AdminListingLimit = ratelimit.LimitConfig{Window: time.Minute, Max: 30}

// Submissions are limited per kind inside the broker.
var submitMetadata = map[string]any{
	ratelimit.MetadataKey: ratelimit.EndpointConfig{Disabled: true},
}

// RegisterRoutes registers the content routes with per-endpoint rate limit configuration.
func RegisterRoutes(api huma.API, h *ContentHandler) {
	huma.Register(api, huma.Operation{
		OperationID:   "submit-code",
		Method:        http.MethodPost,
		Path:          "/api/code",
		Summary:       "Share a code snippet",
		Tags:          []string{"Content"},
		DefaultStatus: http.StatusCreated,
		MaxBodyBytes:  codeBodyBytes,
		Metadata:      submitMetadata,
	}, h.SubmitCode)

	huma.Register(api, huma.Operation{
		OperationID:   "submit-link",
		Method:        http.MethodPost,
		Path:          "/api/link",
		Summary:       "Share a link",
		Tags:          []string{"Content"},
		DefaultStatus: http.StatusCreated,
		MaxBodyBytes:  linkBodyBytes,
		Metadata:      submitMetadata,
	}, h.SubmitLink)

	huma.Register(api, huma.Operation{
		OperationID:   "submit-image",
		Method:        http.MethodPost,
		Path:          "/api/img",
		Summary:       "Share an image",
		Description:   "Accepts a multipart form with a single jpeg, png, gif or webp file part named \"file\".",
		Tags:          []string{"Content"},
		DefaultStatus: http.StatusCreated,
		MaxBodyBytes:  imageBodyBytes,
		Metadata:      submitMetadata,
	}, h.SubmitImage)

	huma.Register(api, huma.Operation{
		OperationID: "list-recent",
		Method:      http.MethodGet,
		Path:        "/api/admin/recent",
		Summary:     "List recent content",
		Tags:        []string{"Admin"},
		Metadata: map[string]any{
			ratelimit.MetadataKey: ratelimit.EndpointConfig{
				Limits: []ratelimit.LimitConfig{AdminListingLimit},
			},
		},
	}, h.Recent)

	readMetadata := map[string]any{
		ratelimit.MetadataKey: ratelimit.EndpointConfig{Scope: ratelimit.ScopeRead},
	}

	huma.Register(api, huma.Operation{
		OperationID: "resolve",
		Method:      http.MethodGet,
		Path:        "/{shortId}",
		Summary:     "Resolve a short identifier",
		Description: "Returns code and image content as JSON and redirects links with 302.",
		Tags:        []string{"Content"},
		Metadata:    readMetadata,
	}, h.Resolve)

	huma.Register(api, huma.Operation{
		OperationID: "resolve-code",
		Method:      http.MethodGet,
		Path:        "/code/{shortId}",
		Summary:     "Resolve a code snippet",
		Tags:        []string{"Content"},
		Metadata:    readMetadata,
	}, h.ResolveCode)

	huma.Register(api, huma.Operation{
		OperationID: "resolve-link",
		Method:      http.MethodGet,
		Path:        "/link/{shortId}",
		Summary:     "Follow a shared link",
		Tags:        []string{"Content"},
		Metadata:    readMetadata,
	}, h.ResolveLink)

	huma.Register(api, huma.Operation{
		OperationID: "resolve-image",
		Method:      http.MethodGet,
		Path:        "/img/{shortId}",
		Summary:     "Resolve a shared image",
		Tags:        []string{"Content"},
		Metadata:    readMetadata,
	}, h.ResolveImage)
}
