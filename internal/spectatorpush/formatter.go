package spectatorpush

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"labyrinth-server/internal/spectatorpush/platforms"
)

const (
	colorLobby    = 0x5865F2
	colorStarted  = 0x3BA55D
	colorTurn     = 0x99AAB5
	colorFinished = 0xFEE75C
	colorCritical = 0xED4245

	shortIDLimit  = 10
	defaultFooter = "labyrinth session push"
)

// FormatNotice renders ev for delivery. Notices of one session share its id
// so editable platforms keep a single message per session.
func FormatNotice(ev NormalizedEvent) (platforms.Notice, bool) {
	sessionShort := shortID(fallback(ev.SessionID, "unknown"), shortIDLimit)
	n := platforms.Notice{
		SessionID: ev.SessionID,
		Event:     ev.EventType,
		Closing:   ev.Terminal(),
		At:        eventTime(ev.ServerTS),
		Footer:    defaultFooter,
	}
	facts := []platforms.Fact{
		{Label: "Session", Value: fallback(ev.SessionID, "-"), Inline: true},
		{Label: "Owner", Value: fallback(ev.OwnerID, "-"), Inline: true},
	}

	switch ev.EventType {
	case EventSessionCreated:
		n.Headline = fmt.Sprintf("Lobby Open · S:%s", sessionShort)
		n.Mention = "new session waiting for players"
		n.Summary = "A new session is waiting for players."
		n.Accent = colorLobby
		facts = append(facts, platforms.Fact{Label: "Visibility", Value: fallback(ev.Visibility, "public"), Inline: true})
	case EventSessionStarted:
		n.Headline = fmt.Sprintf("Game Started · S:%s", sessionShort)
		n.Mention = "game started"
		n.Summary = "Every slot is ready; the game has started."
		n.Accent = colorStarted
		facts = append(facts, platforms.Fact{Label: "Turn", Value: intText(ev.Turn), Inline: true})
	case EventTurnPlayed:
		n.Headline = fmt.Sprintf("Turn Played · S:%s", sessionShort)
		n.Mention = fmt.Sprintf("move %s played, slot %s to move", intText(ev.MoveCount), intText(ev.Turn))
		n.Summary = fmt.Sprintf("Move %s played. Slot %s is next.", intText(ev.MoveCount), intText(ev.Turn))
		n.Accent = colorTurn
		facts = append(facts,
			platforms.Fact{Label: "Moves", Value: intText(ev.MoveCount), Inline: true},
			platforms.Fact{Label: "Turn", Value: intText(ev.Turn), Inline: true},
		)
	case EventSessionFinished:
		n.Headline = fmt.Sprintf("Game Over · S:%s", sessionShort)
		n.Mention = fmt.Sprintf("%s won", fallback(ev.WinnerName, "nobody"))
		if ev.WinnerName == "" {
			n.Summary = "The game ended without a winner."
		} else {
			n.Summary = fmt.Sprintf("%s collected every treasure.", ev.WinnerName)
		}
		n.Accent = colorFinished
		facts = append(facts,
			platforms.Fact{Label: "Winner", Value: fallback(ev.WinnerName, "-"), Inline: true},
			platforms.Fact{Label: "Moves", Value: intText(ev.MoveCount), Inline: true},
		)
	case EventSessionDissolved:
		n.Headline = fmt.Sprintf("Session Closed · S:%s", sessionShort)
		n.Mention = "session dissolved"
		n.Summary = "The session was dissolved before it finished."
		n.Accent = colorCritical
	default:
		return platforms.Notice{}, false
	}

	n.Facts = facts
	n.Payload = webhookPayload(ev)
	return n, true
}

// webhookPayload is the machine-readable body sent to plain webhooks.
func webhookPayload(ev NormalizedEvent) map[string]any {
	out := map[string]any{
		"event_id":   ev.EventID,
		"event":      ev.EventType,
		"server_ts":  ev.ServerTS,
		"session_id": ev.SessionID,
		"owner_id":   ev.OwnerID,
		"visibility": ev.Visibility,
	}
	if ev.Turn != nil {
		out["turn"] = *ev.Turn
	}
	if ev.MoveCount != nil {
		out["move_count"] = *ev.MoveCount
	}
	if ev.WinnerUserID != "" || ev.WinnerName != "" {
		out["winner"] = map[string]any{"user_id": ev.WinnerUserID, "name": ev.WinnerName}
	}
	return out
}

func intText(v *int) string {
	if v == nil {
		return "-"
	}
	return strconv.Itoa(*v)
}

func shortID(v string, max int) string {
	if max <= 0 || len(v) <= max {
		return v
	}
	return v[:max]
}

func eventTime(ms int64) time.Time {
	if ms <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

func fallback(v, d string) string {
	if strings.TrimSpace(v) == "" {
		return d
	}
	return v
}
