package spectatorpush

import "testing"

func TestMatchTargets(t *testing.T) {
	targets := []PushTarget{
		{Platform: "discord", Endpoint: "https://x/1", ScopeType: ScopeSession, ScopeValue: "s1", Enabled: true},
		{Platform: "webhook", Endpoint: "https://x/2", ScopeType: ScopeOwner, ScopeValue: "alice", Enabled: true},
		{Platform: "discord", Endpoint: "https://x/3", ScopeType: ScopeAll, Enabled: true, EventAllowlist: []string{EventSessionFinished}},
		{Platform: "discord", Endpoint: "https://x/4", ScopeType: ScopeAll, Enabled: false},
	}
	ev := NormalizedEvent{EventType: EventTurnPlayed, SessionID: "s1", OwnerID: "alice", Visibility: "public"}
	if matched := matchTargets(targets, ev); len(matched) != 2 {
		t.Fatalf("turn_played matched %d targets, want 2", len(matched))
	}

	finished := NormalizedEvent{EventType: EventSessionFinished, SessionID: "s1", OwnerID: "alice", Visibility: "public"}
	if matched := matchTargets(targets, finished); len(matched) != 3 {
		t.Fatalf("session_finished matched %d targets, want 3", len(matched))
	}

	private := NormalizedEvent{EventType: EventSessionFinished, SessionID: "s2", OwnerID: "bob", Visibility: "private"}
	if matched := matchTargets(targets, private); len(matched) != 0 {
		t.Fatalf("private session reached %d targets, want 0", len(matched))
	}
}

func TestVisibilityScope(t *testing.T) {
	targets := []PushTarget{{Platform: "webhook", Endpoint: "https://x", ScopeType: ScopeVisibility, ScopeValue: "friends", Enabled: true}}
	cases := []struct {
		visibility string
		want       int
	}{
		{"friends", 1},
		{"public", 0},
		{"private", 0},
	}
	for _, tc := range cases {
		ev := NormalizedEvent{EventType: EventSessionCreated, SessionID: "s1", Visibility: tc.visibility}
		if got := len(matchTargets(targets, ev)); got != tc.want {
			t.Fatalf("visibility %s matched %d, want %d", tc.visibility, got, tc.want)
		}
	}
}

func TestEventAllowedPrefix(t *testing.T) {
	allow := []string{"session_*"}
	if !eventAllowed(allow, EventSessionDissolved) {
		t.Fatal("session_* should allow session_dissolved")
	}
	if eventAllowed(allow, EventTurnPlayed) {
		t.Fatal("session_* should not allow turn_played")
	}
	if !eventAllowed(nil, EventTurnPlayed) {
		t.Fatal("empty allowlist should allow everything")
	}
}
