package spectatorpush

import (
	"strings"
	"testing"
	"time"
)

func TestFormatNoticeTurnPlayed(t *testing.T) {
	turn, moves := 1, 7
	ev := NormalizedEvent{
		EventType: EventTurnPlayed,
		SessionID: "01HXABCDEFGHJKMNPQRS",
		OwnerID:   "alice",
		Turn:      &turn,
		MoveCount: &moves,
		ServerTS:  1735689600000,
	}
	msg, ok := FormatNotice(ev)
	if !ok {
		t.Fatal("expected formatter to handle turn_played")
	}
	if !strings.Contains(msg.Headline, "S:01HXABCDEF") || strings.Contains(msg.Headline, "01HXABCDEFG") {
		t.Fatalf("title = %q, want shortened session id", msg.Headline)
	}
	if msg.Accent != colorTurn || msg.SessionID != ev.SessionID || msg.Closing {
		t.Fatalf("accent=%x session=%q closing=%v", msg.Accent, msg.SessionID, msg.Closing)
	}
	if !msg.At.Equal(time.UnixMilli(ev.ServerTS)) {
		t.Fatalf("at = %v, want server time", msg.At)
	}
	if msg.Payload["move_count"] != 7 || msg.Payload["turn"] != 1 {
		t.Fatalf("payload = %v", msg.Payload)
	}
}

func TestFormatNoticeFinished(t *testing.T) {
	msg, ok := FormatNotice(NormalizedEvent{EventType: EventSessionFinished, SessionID: "s1", WinnerName: "alice", WinnerUserID: "u1"})
	if !ok {
		t.Fatal("expected formatter to handle session_finished")
	}
	if msg.Mention != "alice won" || !msg.Closing {
		t.Fatalf("mention = %q closing=%v", msg.Mention, msg.Closing)
	}
	winner, _ := msg.Payload["winner"].(map[string]any)
	if winner["user_id"] != "u1" {
		t.Fatalf("payload winner = %v", msg.Payload["winner"])
	}

	aborted, _ := FormatNotice(NormalizedEvent{EventType: EventSessionFinished, SessionID: "s1"})
	if aborted.Mention != "nobody won" || aborted.Payload["winner"] != nil {
		t.Fatalf("aborted = %q %v", aborted.Mention, aborted.Payload)
	}
}

func TestFormatNoticeUnknownEvent(t *testing.T) {
	if _, ok := FormatNotice(NormalizedEvent{EventType: "ping"}); ok {
		t.Fatal("unknown event should not format")
	}
}
