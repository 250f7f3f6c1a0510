package bus

import "encoding/json"

// Message is the fire-and-forget envelope exchanged with Newt/Olm agents.
// There is no request/response correlation: the bus only ever pushes
// advisory state and receives status reports, never RPC calls.
type Message struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}
