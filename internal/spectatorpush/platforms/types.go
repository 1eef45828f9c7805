package platforms

import (
	"context"
	"time"
)

// Fact is one labelled value shown under a notice.
type Fact struct {
	Label  string
	Value  string
	Inline bool
}

// Notice is one session lifecycle update. Chat adapters render the text
// parts; plain webhooks send Payload unchanged.
type Notice struct {
	SessionID string
	Event     string
	// Closing marks the last notice of a session (finished or dissolved).
	Closing bool

	Headline string
	Summary  string
	Mention  string
	Accent   int
	At       time.Time
	Footer   string
	Facts    []Fact

	Payload map[string]any
}

// Target is the receiving end of one configured push target.
type Target struct {
	Endpoint string
	Secret   string
}

type Adapter interface {
	Name() string
	Deliver(ctx context.Context, to Target, n Notice) error
}
