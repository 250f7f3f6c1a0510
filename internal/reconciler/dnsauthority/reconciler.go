package dnsauthority

import (
	"context"
	"log/slog"
	"time"

	"github.com/tunnelctl/controller/internal/domain"
	"github.com/tunnelctl/controller/internal/infra/tracer"
)

// zoneRemoval is the wire payload for an {action: "remove"} dispatch.
type zoneRemoval struct {
	Domain string `json:"domain"`
}

type updateMessage struct {
	Action string       `json:"action"`
	Zones  []ZoneConfig `json:"zones"`
}

type removeMessage struct {
	Action string        `json:"action"`
	Zones  []zoneRemoval `json:"zones"`
}

// Reconciler is the DNS-authority reconciler (C3).
type Reconciler struct {
	store  domain.Store
	bus    domain.Bus
	events domain.EventBus
	audit  domain.AuditLogger
	logger *slog.Logger
}

// New creates a DNS-authority reconciler.
func New(store domain.Store, bus domain.Bus, events domain.EventBus, audit domain.AuditLogger, logger *slog.Logger) *Reconciler {
	return &Reconciler{store: store, bus: bus, events: events, audit: audit, logger: logger}
}

// UpdateForResource rebuilds and dispatches the DNS-authority zone config
// for resourceID. Idempotent.
func (r *Reconciler) UpdateForResource(ctx context.Context, resourceID string) error {
	ctx, span := tracer.ReconcileSpan(ctx, "dnsauthority", resourceID)
	defer span.End()

	cfg, resource, err := BuildZoneConfig(ctx, r.store, resourceID)
	if err != nil {
		tracer.RecordError(span, err)
		return domain.WrapOp("dnsauthority.UpdateForResource", err)
	}

	newtIDs, olmIDs, err := Recipients(ctx, r.store, resourceID)
	if err != nil {
		tracer.RecordError(span, err)
		return domain.WrapOp("dnsauthority.UpdateForResource", err)
	}

	switch {
	case cfg != nil:
		msg := updateMessage{Action: "update", Zones: []ZoneConfig{*cfg}}
		r.dispatch(ctx, resourceID, domain.MsgNewtDNSAuthority, domain.MsgOlmDNSAuthority, msg, newtIDs, olmIDs)
	case resource.FullDomain != "":
		msg := removeMessage{Action: "remove", Zones: []zoneRemoval{{Domain: resource.FullDomain}}}
		r.dispatch(ctx, resourceID, domain.MsgNewtDNSAuthority, domain.MsgOlmDNSAuthority, msg, newtIDs, olmIDs)
	}

	if r.events != nil {
		r.events.Publish(ctx, domain.Event{Type: domain.EventDNSZoneUpdated, Timestamp: time.Now().UTC()})
	}
	if r.audit != nil {
		r.audit.Log(ctx, domain.AuditEvent{
			Type:     domain.AuditDNSZoneUpdate,
			Resource: resourceID,
			Action:   "update_for_resource",
			Outcome:  "success",
		})
	}
	tracer.SetOK(span)
	return nil
}

func (r *Reconciler) dispatch(ctx context.Context, resourceID, newtType, olmType string, msg any, newtIDs, olmIDs []string) {
	for _, id := range newtIDs {
		r.bus.Send(ctx, id, newtType, msg)
	}
	for _, id := range olmIDs {
		r.bus.Send(ctx, id, olmType, msg)
	}
}

// SendZonesToOlm bootstraps a connecting Olm with every zone its client's
// sites should serve (§4.5/§4.6).
func (r *Reconciler) SendZonesToOlm(ctx context.Context, olmID, clientID string) error {
	sites, err := r.store.ListSitesForClient(ctx, clientID)
	if err != nil {
		return domain.WrapOp("dnsauthority.SendZonesToOlm", err)
	}

	seenResource := make(map[string]bool)
	var zones []ZoneConfig
	for _, site := range sites {
		resourceIDs, err := r.store.ListResourcesForSite(ctx, site.SiteID)
		if err != nil {
			return domain.WrapOp("dnsauthority.SendZonesToOlm", err)
		}
		for _, resourceID := range resourceIDs {
			if seenResource[resourceID] {
				continue
			}
			seenResource[resourceID] = true
			cfg, _, err := BuildZoneConfig(ctx, r.store, resourceID)
			if err != nil {
				r.logger.Warn("dnsauthority: failed to build zone for bootstrap", "resource_id", resourceID, "error", err)
				continue
			}
			if cfg != nil {
				zones = append(zones, *cfg)
			}
		}
	}

	if len(zones) == 0 {
		return nil
	}

	r.bus.Send(ctx, olmID, domain.MsgOlmDNSAuthority, updateMessage{Action: "update", Zones: zones})
	return nil
}

// OnHealthCheckUpdate collapses the reported targetIds to the unique set of
// resourceIds reached via those targets (only where the resource has DNS
// authority enabled) and reconciles each resource once.
func (r *Reconciler) OnHealthCheckUpdate(ctx context.Context, targetIDs []string) {
	seen := make(map[string]bool)
	for _, targetID := range targetIDs {
		target, err := r.store.GetTarget(ctx, targetID)
		if err != nil {
			continue
		}
		if seen[target.ResourceID] {
			continue
		}
		seen[target.ResourceID] = true

		resource, err := r.store.GetResource(ctx, target.ResourceID)
		if err != nil || !resource.DNSAuthorityEnabled {
			continue
		}
		if err := r.UpdateForResource(ctx, target.ResourceID); err != nil {
			r.logger.Warn("dnsauthority: failed to reconcile resource after health update",
				"resource_id", target.ResourceID, "error", err)
		}
	}
}
