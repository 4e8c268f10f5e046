package ratelimit

import (
	"github.com/danielgtaylor/huma/v2"
	"github.com/serroba/shortshare/internal/content"
)

// Scope categorizes a request for rate limiting purposes.
// Different scopes can have different rate limits applied.
type Scope string

const (
	// ScopeGlobal applies to all requests regardless of type.
	ScopeGlobal Scope = "global"
	// ScopeRead applies to resolving short ids and other reads.
	ScopeRead Scope = "read"
	// ScopeWrite applies to writes that are not content submissions.
	ScopeWrite Scope = "write"
	ScopeCode  Scope = "code"
	ScopeLink  Scope = "link"
	ScopeImage Scope = "image"
)

// ScopeForKind returns the submission scope for a content kind.
func ScopeForKind(kind content.Kind) Scope {
	switch kind {
	case content.KindCode:
		return ScopeCode
	case content.KindLink:
		return ScopeLink
	case content.KindImage:
		return ScopeImage
	default:
		return ScopeWrite
	}
}

// MetadataKey is the key used to store rate limit config in operation metadata.
const MetadataKey = "rateLimit"

// EndpointConfig defines per-endpoint rate limit configuration.
// This can be attached to Huma operations via the Metadata field.
type EndpointConfig struct {
	// Scope overrides method-based scope detection. Ignored when Limits is set.
	Scope Scope

	// Limits replaces the policy limits for this endpoint.
	Limits []LimitConfig

	// Disabled skips the middleware entirely, for endpoints whose handler
	// applies limits itself.
	Disabled bool
}

// ScopeResolver determines which scopes apply to a given request.
type ScopeResolver interface {
	Resolve(ctx huma.Context) []Scope
}

// MethodScopeResolver resolves scopes based on HTTP method.
// GET, HEAD, OPTIONS are classified as read operations.
// All other methods are classified as write operations.
type MethodScopeResolver struct{}

// NewMethodScopeResolver creates a new method-based scope resolver.
func NewMethodScopeResolver() *MethodScopeResolver {
	return &MethodScopeResolver{}
}

// Resolve returns the scopes that apply to the request based on its HTTP method.
func (r *MethodScopeResolver) Resolve(ctx huma.Context) []Scope {
	scopes := []Scope{ScopeGlobal}

	switch ctx.Method() {
	case "GET", "HEAD", "OPTIONS":
		scopes = append(scopes, ScopeRead)
	default:
		scopes = append(scopes, ScopeWrite)
	}

	return scopes
}

// OperationScopeResolver resolves scopes by checking operation metadata first,
// then falling back to method-based detection.
type OperationScopeResolver struct {
	fallback *MethodScopeResolver
}

// NewOperationScopeResolver creates a new operation-aware scope resolver.
func NewOperationScopeResolver() *OperationScopeResolver {
	return &OperationScopeResolver{
		fallback: NewMethodScopeResolver(),
	}
}

// Resolve returns the scopes for a request, checking operation metadata first.
func (r *OperationScopeResolver) Resolve(ctx huma.Context) []Scope {
	cfg := GetEndpointConfig(ctx)
	if cfg == nil || cfg.Scope == "" {
		return r.fallback.Resolve(ctx)
	}

	return []Scope{ScopeGlobal, cfg.Scope}
}

// GetEndpointConfig extracts the EndpointConfig from operation metadata, if present.
func GetEndpointConfig(ctx huma.Context) *EndpointConfig {
	op := ctx.Operation()
	if op == nil || op.Metadata == nil {
		return nil
	}

	cfg, ok := op.Metadata[MetadataKey].(EndpointConfig)
	if !ok {
		return nil
	}

	return &cfg
}
