package httpapi

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/tunnelctl/controller/internal/infra/middleware"
)

// NewMux builds the internal HTTP surface: the session-validation endpoint
// plus the ambient status/metrics endpoints, wrapped in the shared
// request-id, security headers, and rate-limit middleware.
func NewMux(ctx context.Context, session *SessionHandler, status *StatusHandler, rateLimit middleware.RateLimitConfig, log *slog.Logger) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/api/v1/auth/session/validate", http.HandlerFunc(session.ServeHTTP))
	mux.Handle("/api/v1/status", http.HandlerFunc(status.ServeStatus))
	mux.Handle("/api/v1/metrics", http.HandlerFunc(status.ServeMetrics))

	rateLimit.Logger = log
	rateLimit.SkipPaths = append(rateLimit.SkipPaths, "/api/v1/status", "/api/v1/metrics")

	limited := middleware.RateLimitWithConfig(ctx, rateLimit)(mux)
	return middleware.RequestID(middleware.SecurityHeaders(limited))
}
