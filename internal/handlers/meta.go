package handlers

import "context"

type requestMetaKey struct{}

// RequestMeta holds HTTP request metadata for rate limiting and analytics.
type RequestMeta struct {
	ClientIP  string
	ClientKey string
	UserAgent string
	Referrer  string
	RequestID string
}

// ContextWithRequestMeta adds request metadata to context.
func ContextWithRequestMeta(ctx context.Context, meta RequestMeta) context.Context {
	return context.WithValue(ctx, requestMetaKey{}, meta)
}

// RequestMetaFromContext extracts request metadata from context.
func RequestMetaFromContext(ctx context.Context) RequestMeta {
	if v, ok := ctx.Value(requestMetaKey{}).(RequestMeta); ok {
		return v
	}

	return RequestMeta{}
}
