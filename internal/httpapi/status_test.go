package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tunnelctl/controller/internal/domain"
	"github.com/tunnelctl/controller/internal/eventbus"
)

func TestStatusHandler_ServeStatus(t *testing.T) {
	counters := &Counters{}
	counters.ConnectedAgents.Store(3)
	h := NewStatusHandler(time.Now().Add(-time.Minute), counters)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	rec := httptest.NewRecorder()
	h.ServeStatus(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp statusResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, int64(3), resp.ConnectedAgents)
	assert.GreaterOrEqual(t, resp.UptimeSeconds, int64(0))
}

func TestStatusHandler_ServeMetrics(t *testing.T) {
	counters := &Counters{}
	counters.DNSReconciliations.Store(5)
	counters.HealthReportsRejected.Store(2)
	h := NewStatusHandler(time.Now(), counters)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/metrics", nil)
	rec := httptest.NewRecorder()
	h.ServeMetrics(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp metricsResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, int64(5), resp.DNSReconciliations)
	assert.Equal(t, int64(2), resp.HealthReportsRejected)
}

func TestWireCounters(t *testing.T) {
	bus := eventbus.New(testLogger())
	counters := &Counters{}
	WireCounters(bus, counters)

	ctx := context.Background()
	bus.Publish(ctx, domain.Event{Type: domain.EventAgentConnected, Timestamp: time.Now()})
	bus.Publish(ctx, domain.Event{Type: domain.EventAgentConnected, Timestamp: time.Now()})
	bus.Publish(ctx, domain.Event{Type: domain.EventAgentDisconnected, Timestamp: time.Now()})
	bus.Publish(ctx, domain.Event{Type: domain.EventAuthProxyUpdated, Timestamp: time.Now()})
	bus.Publish(ctx, domain.Event{Type: domain.EventHealthReportApplied, Timestamp: time.Now()})
	bus.Close()

	assert.Equal(t, int64(1), counters.ConnectedAgents.Load())
	assert.Equal(t, int64(1), counters.AuthProxyReconciliations.Load())
	assert.Equal(t, int64(1), counters.HealthReportsApplied.Load())
}
