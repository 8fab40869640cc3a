package stream

import (
	"encoding/json"
	"errors"
	"time"
)

// Errors
var (
	ErrNotConnected    = errors.New("not connected")
	ErrStaleConnection = errors.New("connection stale (no ping)")
	ErrAlreadyClosed   = errors.New("already closed")
)

// Envelope is the wire shape shared by data messages and command replies.
// A nonzero ID marks a reply to a command this client sent; data messages
// carry a subscription ID instead.
type Envelope struct {
	ID   int64           `json:"id,omitempty"`
	Type string          `json:"type"` // "trade", "market_lifecycle", "subscribed", "unsubscribed", "error", "ok"
	SID  int64           `json:"sid,omitempty"`
	Msg  json.RawMessage `json:"msg"`
}

// Event is one decoded feed frame with its local receive timestamp.
type Event struct {
	Envelope
	ReceivedAt time.Time
}

// Command is a WebSocket command to send to the server.
type Command struct {
	ID     int64       `json:"id"`
	Cmd    string      `json:"cmd"`
	Params interface{} `json:"params"`
}

// SubscribeParams are parameters for a subscribe command.
type SubscribeParams struct {
	Channels     []string `json:"channels"`
	MarketAppIDs []int64  `json:"market_app_ids,omitempty"`
}

// UnsubscribeParams are parameters for an unsubscribe command.
type UnsubscribeParams struct {
	SIDs []int64 `json:"sids"`
}

// ErrorMsg is the msg content of an "error" reply.
type ErrorMsg struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// TradeMsg is the msg content of a "trade" data message.
type TradeMsg struct {
	MarketAppID int64  `json:"market_app_id"`
	Position    string `json:"position"` // "yes" or "no"
	Price       int64  `json:"price"`
	Quantity    int64  `json:"quantity"`
	Timestamp   int64  `json:"ts"` // Unix timestamp (seconds)
}

// LifecycleMsg is the msg content of a "market_lifecycle" data message.
type LifecycleMsg struct {
	MarketAppID int64  `json:"market_app_id"`
	EventType   string `json:"event_type"` // "created", "status_change", "resolved"
	OldStatus   string `json:"old_status"`
	NewStatus   string `json:"new_status"`
	Outcome     string `json:"outcome"` // "yes", "no", or ""
	Timestamp   int64  `json:"ts"`
}

// ClientConfig configures a WebSocket client.
type ClientConfig struct {
	URL          string        // WebSocket URL
	APIKey       string        // Partner API key (empty = no auth header)
	PingTimeout  time.Duration // Read deadline horizon; pings from the server keep extending it
	WriteTimeout time.Duration // Write deadline for sends
	BufferSize   int           // Event channel buffer size
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		PingTimeout:  60 * time.Second,
		WriteTimeout: 5 * time.Second,
		BufferSize:   10000,
	}
}
