package domain

import (
	"context"
	"encoding/json"
)

// Message types exchanged over the agent bus.
const (
	MsgOlmSync              = "olm/sync"
	MsgNewtDNSAuthority      = "newt/dns/authority/config"
	MsgOlmDNSAuthority       = "olm/dns/authority/config"
	MsgNewtAuthProxyConfig   = "newt/auth/proxy/config"
	MsgHealthcheckStatus     = "healthcheck/status"
)

// SendResult reports the outcome of a non-blocking bus send.
type SendResult int

const (
	SendOK SendResult = iota
	SendDropped
)

// MessageHandler processes an inbound message of a registered type.
type MessageHandler func(ctx context.Context, agentKind AgentKind, agentID string, data json.RawMessage)

// ConnectHandler fires once per (re)connect of an agent.
type ConnectHandler func(ctx context.Context, agentKind AgentKind, agentID string)

// Bus is the agent bus contract (C2): a non-blocking, per-agent
// order-preserving advisory channel to connected Newt/Olm agents.
type Bus interface {
	// Send delivers msg to agentId's outbound queue without blocking on
	// network I/O. Returns SendDropped if the agent is not connected or its
	// queue is full; there is no retry.
	Send(ctx context.Context, agentID string, msgType string, data any) SendResult
	// Register binds an inbound message type to a handler.
	Register(msgType string, handler MessageHandler)
	// OnConnect registers a callback fired once per (re)connect.
	OnConnect(handler ConnectHandler)
}
