package web

import (
	"context"
	"net"
	"net/http"

	"github.com/JonMunkholm/tabmap/internal/core"
)

// WithRequestMetadata adds the client IP and User-Agent to ctx so import
// logs can name the caller.
func WithRequestMetadata(ctx context.Context, r *http.Request) context.Context {
	return core.ContextWithClient(ctx, clientIP(r), r.Header.Get("User-Agent"))
}

// clientIP returns the host part of RemoteAddr, which TrustedRealIP has
// already replaced with the forwarded address when the proxy is trusted.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
