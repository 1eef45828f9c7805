package spectatorpush

import (
	"time"

	"labyrinth-server/internal/spectatorpush/platforms"

	"github.com/cenkalti/backoff/v5"
)

const (
	ScopeAll        = "all"
	ScopeVisibility = "visibility"
	ScopeSession    = "session"
	ScopeOwner      = "owner"
)

const (
	EventSessionCreated   = "session_created"
	EventSessionStarted   = "session_started"
	EventTurnPlayed       = "turn_played"
	EventSessionFinished  = "session_finished"
	EventSessionDissolved = "session_dissolved"
)

type PushTarget struct {
	Platform       string   `json:"platform"`
	Endpoint       string   `json:"endpoint"`
	Secret         string   `json:"secret"`
	ScopeType      string   `json:"scope_type"`
	ScopeValue     string   `json:"scope_value"`
	EventAllowlist []string `json:"event_allowlist"`
	Enabled        bool     `json:"enabled"`
}

type Config struct {
	Enabled             bool
	ConfigPath          string
	ConfigReload        time.Duration
	Targets             []PushTarget
	Workers             int
	RetryMax            int
	RetryBase           time.Duration
	FailureThreshold    int
	CircuitOpenDuration time.Duration
	RequestTimeout      time.Duration
	DispatchBuffer      int
}

// NormalizedEvent is one session lifecycle change, flattened for formatting.
type NormalizedEvent struct {
	EventID      string
	EventType    string
	ServerTS     int64
	SessionID    string
	OwnerID      string
	Visibility   string
	Turn         *int
	MoveCount    *int
	WinnerName   string
	WinnerUserID string
}

// Terminal events close the session's panel message.
func (e NormalizedEvent) Terminal() bool {
	return e.EventType == EventSessionFinished || e.EventType == EventSessionDissolved
}

// delivery is one notice bound for one target. Deliveries of a session share
// a lane so they leave in commit order; retry carries the backoff between
// attempts.
type delivery struct {
	target  PushTarget
	event   NormalizedEvent
	notice  platforms.Notice
	attempt int
	retry   *backoff.ExponentialBackOff
}

func targetKey(t PushTarget) string {
	return t.Platform + "|" + t.Endpoint + "|" + t.ScopeType + "|" + t.ScopeValue
}
