package ws

const ProtocolVersion = "1.0"

// SubscribeMessage opens a subscription. Topic is "session" (one session, or
// the joinable lobby when session_id is empty) or "players".
type SubscribeMessage struct {
	Type      string `json:"type"`
	RequestID string `json:"request_id"`
	Topic     string `json:"topic"`
	SessionID string `json:"session_id,omitempty"`
}

type UnsubscribeMessage struct {
	Type           string `json:"type"`
	RequestID      string `json:"request_id"`
	SubscriptionID string `json:"subscription_id"`
}

type SubscribeResult struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	RequestID       string `json:"request_id,omitempty"`
	Ok              bool   `json:"ok"`
	Error           string `json:"error,omitempty"`
	SubscriptionID  string `json:"subscription_id,omitempty"`
	Topic           string `json:"topic,omitempty"`
}

// InitMessage carries the snapshot sent before any incremental event.
type InitMessage struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	SubscriptionID  string `json:"subscription_id"`
	Topic           string `json:"topic"`
	SessionID       string `json:"session_id,omitempty"`
	Data            any    `json:"data"`
}

type EventMessage struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	SubscriptionID  string `json:"subscription_id"`
	Topic           string `json:"topic"`
	Entity          string `json:"entity"`
	Event           string `json:"event"`
	Data            any    `json:"data"`
}

type Pong struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	TimestampMS     int64  `json:"timestamp_ms"`
}
