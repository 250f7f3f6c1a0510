// Package httpapi implements the controller's internal HTTP surface: the
// session-validation endpoint Newt calls out-of-band for SSO-protected
// resources (§4.6), plus ambient status/metrics endpoints.
package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/tunnelctl/controller/internal/domain"
	"github.com/tunnelctl/controller/internal/infra/middleware"
)

const sessionCookieName = "p_session"

type validateResponse struct {
	Valid     bool   `json:"valid"`
	UserID    string `json:"userId,omitempty"`
	Email     string `json:"email,omitempty"`
	ExpiresAt string `json:"expiresAt,omitempty"`
}

// SessionHandler implements GET /api/v1/auth/session/validate.
type SessionHandler struct {
	store  domain.Store
	events domain.EventBus
	audit  domain.AuditLogger
	logger *slog.Logger
}

// NewSessionHandler creates the session-validation handler.
func NewSessionHandler(store domain.Store, events domain.EventBus, audit domain.AuditLogger, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{store: store, events: events, audit: audit, logger: logger}
}

// ServeHTTP implements the exact decision table from §4.6: the endpoint
// always answers 200 with {valid:false} for an absent, unknown, or expired
// token, distinguishing "validated as unauthenticated" from a transport
// failure for Newt's caller. Only a true internal fault produces a 500.
func (h *SessionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := extractToken(r)
	if token == "" {
		writeValidate(w, http.StatusOK, validateResponse{Valid: false})
		return
	}

	session, err := h.store.GetSessionByToken(r.Context(), token)
	if err != nil {
		if domain.IsNotFound(err) {
			writeValidate(w, http.StatusOK, validateResponse{Valid: false})
			return
		}
		h.logger.Error("httpapi: session lookup failed", "request_id", middleware.RequestIDFromContext(r.Context()), "error", err)
		writeValidate(w, http.StatusInternalServerError, validateResponse{Valid: false})
		return
	}

	user, err := h.store.GetUser(r.Context(), session.UserID)
	if err != nil {
		if domain.IsNotFound(err) {
			writeValidate(w, http.StatusOK, validateResponse{Valid: false})
			return
		}
		h.logger.Error("httpapi: user lookup failed", "request_id", middleware.RequestIDFromContext(r.Context()), "error", err)
		writeValidate(w, http.StatusInternalServerError, validateResponse{Valid: false})
		return
	}

	h.publishValidated(r.Context(), user.UserID, middleware.RequestIDFromContext(r.Context()))
	writeValidate(w, http.StatusOK, validateResponse{
		Valid:     true,
		UserID:    user.UserID,
		Email:     user.Email,
		ExpiresAt: session.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

func (h *SessionHandler) publishValidated(ctx context.Context, userID, requestID string) {
	if h.events != nil {
		h.events.Publish(ctx, domain.Event{Type: domain.EventSessionValidated, Timestamp: time.Now().UTC()})
	}
	if h.audit != nil {
		h.audit.Log(ctx, domain.AuditEvent{
			Type:    domain.AuditSessionValidate,
			Actor:   userID,
			Action:  "session_validate",
			Outcome: "valid",
			Detail:  map[string]string{"request_id": requestID},
		})
	}
}

// extractToken reads the session token from the p_session cookie, falling
// back to the Authorization: Bearer header.
func extractToken(r *http.Request) string {
	if cookie, err := r.Cookie(sessionCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}

func writeValidate(w http.ResponseWriter, status int, resp validateResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}
