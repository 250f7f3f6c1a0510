package authproxy

import (
	"context"
	"log/slog"
	"time"

	"github.com/tunnelctl/controller/internal/domain"
	"github.com/tunnelctl/controller/internal/infra/tracer"
)

type updateMessage struct {
	Action    string               `json:"action"`
	Auth      AuthConfig           `json:"auth"`
	Resources []ResourceAuthConfig `json:"resources"`
}

// Reconciler is the auth-proxy reconciler (C4).
type Reconciler struct {
	store        domain.Store
	bus          domain.Bus
	events       domain.EventBus
	audit        domain.AuditLogger
	logger       *slog.Logger
	keys         PublicKeySource
	dashboardURL string
	secret       string
}

// New creates an auth-proxy reconciler. dashboardURL and secret are read
// from config at wiring time; secret is carried but never emitted (§9).
func New(store domain.Store, bus domain.Bus, events domain.EventBus, audit domain.AuditLogger, logger *slog.Logger, keys PublicKeySource, dashboardURL, secret string) *Reconciler {
	return &Reconciler{
		store:        store,
		bus:          bus,
		events:       events,
		audit:        audit,
		logger:       logger,
		keys:         keys,
		dashboardURL: dashboardURL,
		secret:       secret,
	}
}

// UpdateForSite rebuilds and dispatches the auth-proxy config for siteID to
// its Newt. Idempotent.
func (r *Reconciler) UpdateForSite(ctx context.Context, siteID string) error {
	ctx, span := tracer.ReconcileSpan(ctx, "authproxy", siteID)
	defer span.End()

	auth, resources, err := BuildSiteConfig(ctx, r.store, r.keys, r.dashboardURL, r.secret, siteID)
	if err != nil {
		tracer.RecordError(span, err)
		return domain.WrapOp("authproxy.UpdateForSite", err)
	}
	if auth == nil {
		if r.dashboardURL == "" {
			r.logger.Warn("authproxy: dashboard url not configured, skipping push", "site_id", siteID)
		}
		tracer.SetOK(span)
		return nil
	}

	newt, err := r.store.GetNewtBySite(ctx, siteID)
	if err != nil {
		if domain.IsNotFound(err) {
			tracer.SetOK(span)
			return nil
		}
		tracer.RecordError(span, err)
		return domain.WrapOp("authproxy.UpdateForSite", err)
	}

	r.bus.Send(ctx, newt.NewtID, domain.MsgNewtAuthProxyConfig, updateMessage{
		Action:    "update",
		Auth:      *auth,
		Resources: resources,
	})

	if r.events != nil {
		r.events.Publish(ctx, domain.Event{Type: domain.EventAuthProxyUpdated, Timestamp: time.Now().UTC(), SiteID: siteID})
	}
	if r.audit != nil {
		r.audit.Log(ctx, domain.AuditEvent{
			Type:     domain.AuditAuthProxyUpdate,
			Resource: siteID,
			Action:   "update_for_site",
			Outcome:  "success",
		})
	}
	tracer.SetOK(span)
	return nil
}

// UpdateForResource reconciles the auth-proxy config for the distinct set of
// sites hosting an enabled target of resourceID.
func (r *Reconciler) UpdateForResource(ctx context.Context, resourceID string) error {
	sites, err := r.store.ListSitesForResource(ctx, resourceID)
	if err != nil {
		return domain.WrapOp("authproxy.UpdateForResource", err)
	}
	for _, site := range sites {
		if err := r.UpdateForSite(ctx, site.SiteID); err != nil {
			r.logger.Warn("authproxy: failed to reconcile site", "site_id", site.SiteID, "error", err)
		}
	}
	return nil
}
