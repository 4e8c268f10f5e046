package middleware

import (
	"github.com/danielgtaylor/huma/v2"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/serroba/shortshare/internal/handlers"
)

// RequestMeta attaches the caller's address, rate-limit key, user agent,
// referrer and request id to the request context.
func RequestMeta(_ huma.API) func(ctx huma.Context, next func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		ip := ClientIP(ctx)
		meta := handlers.RequestMeta{
			ClientIP:  ip,
			ClientKey: ClientKey(ip),
			UserAgent: ctx.Header("User-Agent"),
			Referrer:  ctx.Header("Referer"),
			RequestID: chimiddleware.GetReqID(ctx.Context()),
		}

		newCtx := handlers.ContextWithRequestMeta(ctx.Context(), meta)
		ctx = huma.WithContext(ctx, newCtx)

		next(ctx)
	}
}
