// Package health implements the health-status ingestor (C5): it receives
// periodic per-target health reports from Newt agents, enforces the
// tenancy invariant, persists status, and triggers the DNS-authority
// reconciler for affected resources.
package health

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/tunnelctl/controller/internal/domain"
	"github.com/tunnelctl/controller/internal/infra/tracer"
	"github.com/tunnelctl/controller/internal/reconciler/dnsauthority"
)

// reportedTarget is one entry of an inbound healthcheck/status payload.
type reportedTarget struct {
	Status     string          `json:"status"`
	LastCheck  string          `json:"lastCheck,omitempty"`
	CheckCount int             `json:"checkCount,omitempty"`
	LastError  string          `json:"lastError,omitempty"`
	Config     json.RawMessage `json:"config,omitempty"`
}

type statusPayload struct {
	Targets map[string]reportedTarget `json:"targets"`
}

// Ingestor is the health-status ingestor (C5). Register it on the bus as
// the handler for domain.MsgHealthcheckStatus.
type Ingestor struct {
	store      domain.Store
	events     domain.EventBus
	audit      domain.AuditLogger
	logger     *slog.Logger
	dns        *dnsauthority.Reconciler
	errorCount atomic.Int64
}

// New creates a health-status ingestor. dns may be nil in tests that only
// exercise tenancy/persistence behavior.
func New(store domain.Store, events domain.EventBus, audit domain.AuditLogger, logger *slog.Logger, dns *dnsauthority.Reconciler) *Ingestor {
	return &Ingestor{store: store, events: events, audit: audit, logger: logger, dns: dns}
}

// ErrorCount returns the cumulative count of rejected or malformed reports.
func (in *Ingestor) ErrorCount() int64 { return in.errorCount.Load() }

// Handle processes an inbound healthcheck/status message. It never returns
// an error to the caller; failures are logged and counted per §7.
func (in *Ingestor) Handle(ctx context.Context, agentKind domain.AgentKind, agentID string, data json.RawMessage) {
	ctx, span := tracer.ReconcileSpan(ctx, "health", agentID)
	defer span.End()

	if agentKind != domain.AgentKindNewt {
		in.logger.Warn("health: healthcheck/status from non-newt agent", "agent_kind", agentKind, "agent_id", agentID)
		in.errorCount.Add(1)
		return
	}

	var payload statusPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		in.logger.Warn("health: malformed healthcheck/status payload", "newt_id", agentID, "error", err)
		in.errorCount.Add(1)
		tracer.RecordError(span, err)
		return
	}

	newtSiteID, err := in.store.GetNewtSiteID(ctx, agentID)
	if err != nil {
		in.logger.Warn("health: unknown reporting newt", "newt_id", agentID, "error", err)
		in.errorCount.Add(1)
		tracer.RecordError(span, err)
		return
	}

	var applied []string
	for rawTargetID, report := range payload.Targets {
		if _, convErr := strconv.Atoi(rawTargetID); convErr != nil {
			in.logger.Warn("health: non-integer target id, skipping", "target_id", rawTargetID)
			in.errorCount.Add(1)
			continue
		}

		target, terr := in.store.GetTarget(ctx, rawTargetID)
		if terr != nil || target.SiteID != newtSiteID {
			in.rejectForeignTenancy(ctx, rawTargetID, newtSiteID)
			continue
		}

		if err := in.store.UpsertTargetHealth(ctx, rawTargetID, report.Status); err != nil {
			in.logger.Warn("health: failed to persist target health", "target_id", rawTargetID, "error", err)
			in.errorCount.Add(1)
			continue
		}
		applied = append(applied, rawTargetID)
	}

	if len(applied) == 0 {
		return
	}

	if in.events != nil {
		in.events.Publish(ctx, domain.Event{Type: domain.EventHealthReportApplied, Timestamp: time.Now().UTC(), SiteID: newtSiteID})
	}
	if in.audit != nil {
		in.audit.Log(ctx, domain.AuditEvent{
			Type:    domain.AuditHealthAccept,
			Actor:   agentID,
			Action:  "healthcheck_status",
			Outcome: "applied",
		})
	}
	if in.dns != nil {
		in.dns.OnHealthCheckUpdate(ctx, applied)
	}
	tracer.SetOK(span)
}

// rejectForeignTenancy enforces invariant #5: a report for a target whose
// siteId does not match the reporting newt's bound site never mutates
// TargetHealth.
func (in *Ingestor) rejectForeignTenancy(ctx context.Context, targetID, newtSiteID string) {
	in.logger.Warn("health: rejecting foreign-tenancy health report", "target_id", targetID, "newt_site_id", newtSiteID)
	in.errorCount.Add(1)
	if in.audit != nil {
		in.audit.Log(ctx, domain.AuditEvent{
			Type:     domain.AuditHealthReject,
			Resource: targetID,
			Action:   "healthcheck_status",
			Outcome:  "rejected_foreign_tenancy",
		})
	}
	if in.events != nil {
		in.events.Publish(ctx, domain.Event{Type: domain.EventHealthReportRejected, Timestamp: time.Now().UTC(), SiteID: newtSiteID})
	}
}
