package domain

import (
	"context"
	"encoding/json"
	"time"
)

// EventType identifies the kind of event published on the internal event bus.
// These are distinct from the agent bus message types exchanged with Newt/Olm
// agents; they drive internal fan-out to metrics and audit consumers.
type EventType string

const (
	EventAgentConnected      EventType = "agent.connected"
	EventAgentDisconnected   EventType = "agent.disconnected"
	EventAgentQueueDropped   EventType = "agent.queue.dropped"
	EventDNSZoneUpdated      EventType = "dnsauthority.zone.updated"
	EventAuthProxyUpdated    EventType = "authproxy.updated"
	EventHealthReportApplied EventType = "health.report.applied"
	EventHealthReportRejected EventType = "health.report.rejected"
	EventSessionValidated    EventType = "session.validated"
	EventSyncBootstrapped    EventType = "sync.bootstrapped"
	EventResyncStarted       EventType = "resync.started"
	EventResyncCompleted     EventType = "resync.completed"
)

// Event is the envelope published on the event bus.
type Event struct {
	Type      EventType       `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	SiteID    string          `json:"site_id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// EventHandler is a callback invoked when an event is received.
type EventHandler func(ctx context.Context, event Event)

// EventBus provides a publish/subscribe mechanism for domain events.
type EventBus interface {
	// Publish sends an event to all matching subscribers.
	Publish(ctx context.Context, event Event)
	// Subscribe registers a handler for a specific event type.
	// Returns an unsubscribe function.
	Subscribe(eventType EventType, handler EventHandler) func()
	// SubscribeAll registers a handler that receives every event.
	// Returns an unsubscribe function.
	SubscribeAll(handler EventHandler) func()
	// Close drains in-flight handlers and prevents new publishes.
	Close()
}
