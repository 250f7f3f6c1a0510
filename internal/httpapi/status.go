package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/tunnelctl/controller/internal/domain"
)

// Counters tracks process-lifetime operational counters surfaced on the
// ambient status/metrics endpoints.
type Counters struct {
	ConnectedAgents          atomic.Int64
	DNSReconciliations       atomic.Int64
	AuthProxyReconciliations atomic.Int64
	HealthReportsApplied     atomic.Int64
	HealthReportsRejected    atomic.Int64
}

type statusResponse struct {
	UptimeSeconds   int64 `json:"uptimeSeconds"`
	ConnectedAgents int64 `json:"connectedAgents"`
}

type metricsResponse struct {
	UptimeSeconds            int64 `json:"uptimeSeconds"`
	ConnectedAgents          int64 `json:"connectedAgents"`
	DNSReconciliations       int64 `json:"dnsReconciliations"`
	AuthProxyReconciliations int64 `json:"authProxyReconciliations"`
	HealthReportsApplied     int64 `json:"healthReportsApplied"`
	HealthReportsRejected    int64 `json:"healthReportsRejected"`
}

// StatusHandler serves GET /api/v1/status and GET /api/v1/metrics: a small
// ambient operational surface, not part of the core reconciliation contract.
type StatusHandler struct {
	startedAt time.Time
	counters  *Counters
}

// NewStatusHandler creates the status/metrics handler. startedAt should be
// stamped once at process startup.
func NewStatusHandler(startedAt time.Time, counters *Counters) *StatusHandler {
	return &StatusHandler{startedAt: startedAt, counters: counters}
}

// ServeStatus handles GET /api/v1/status.
func (h *StatusHandler) ServeStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, statusResponse{
		UptimeSeconds:   int64(time.Since(h.startedAt).Seconds()),
		ConnectedAgents: h.counters.ConnectedAgents.Load(),
	})
}

// ServeMetrics handles GET /api/v1/metrics.
func (h *StatusHandler) ServeMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, metricsResponse{
		UptimeSeconds:            int64(time.Since(h.startedAt).Seconds()),
		ConnectedAgents:          h.counters.ConnectedAgents.Load(),
		DNSReconciliations:       h.counters.DNSReconciliations.Load(),
		AuthProxyReconciliations: h.counters.AuthProxyReconciliations.Load(),
		HealthReportsApplied:     h.counters.HealthReportsApplied.Load(),
		HealthReportsRejected:    h.counters.HealthReportsRejected.Load(),
	})
}

// WireCounters subscribes Counters to the internal event bus so the
// status/metrics endpoints reflect live agent-connection and
// reconciliation-pass activity without the reconcilers needing to know
// about this package.
func WireCounters(events domain.EventBus, counters *Counters) {
	events.Subscribe(domain.EventAgentConnected, func(ctx context.Context, e domain.Event) {
		counters.ConnectedAgents.Add(1)
	})
	events.Subscribe(domain.EventAgentDisconnected, func(ctx context.Context, e domain.Event) {
		counters.ConnectedAgents.Add(-1)
	})
	events.Subscribe(domain.EventDNSZoneUpdated, func(ctx context.Context, e domain.Event) {
		counters.DNSReconciliations.Add(1)
	})
	events.Subscribe(domain.EventAuthProxyUpdated, func(ctx context.Context, e domain.Event) {
		counters.AuthProxyReconciliations.Add(1)
	})
	events.Subscribe(domain.EventHealthReportApplied, func(ctx context.Context, e domain.Event) {
		counters.HealthReportsApplied.Add(1)
	})
	events.Subscribe(domain.EventHealthReportRejected, func(ctx context.Context, e domain.Event) {
		counters.HealthReportsRejected.Add(1)
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(v)
}
