package middleware

import (
	"crypto/sha256"
	"encoding/hex"
	"net"
	"strings"

	"github.com/danielgtaylor/huma/v2"
)

// ClientIP returns the originating client address: the first
// X-Forwarded-For hop, then X-Real-IP, then the connection's remote address.
func ClientIP(ctx huma.Context) string {
	if xff := ctx.Header("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx != -1 {
			return strings.TrimSpace(xff[:idx])
		}

		return strings.TrimSpace(xff)
	}

	if xri := ctx.Header("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	addr := ctx.RemoteAddr()

	ip, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}

	return ip
}

// ClientKey is the opaque rate-limit key for a client address.
func ClientKey(ip string) string {
	hash := sha256.Sum256([]byte(ip))

	return hex.EncodeToString(hash[:])
}

func clientKey(ctx huma.Context) string {
	return ClientKey(ClientIP(ctx))
}
