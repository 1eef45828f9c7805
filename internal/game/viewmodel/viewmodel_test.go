package viewmodel

import (
	"encoding/json"
	"testing"

	"labyrinth-server/internal/game"
	"labyrinth-server/internal/store"
)

func buildSession(t *testing.T) store.Session {
	t.Helper()
	setup, err := game.FinalizeSetup(game.Setup{Seed: "view", BoardWidth: 7, BoardHeight: 9, PlayerCount: 2})
	if err != nil {
		t.Fatalf("finalize setup: %v", err)
	}
	g, err := game.BuildFromSetup(setup, 2)
	if err != nil {
		t.Fatalf("build game: %v", err)
	}
	state, err := g.Stringify()
	if err != nil {
		t.Fatalf("stringify: %v", err)
	}
	raw, _ := json.Marshal(setup)
	return store.Session{ID: "s1", Visibility: store.VisibilityPublic, OwnerID: "u1", State: state, Setup: string(raw)}
}

func TestBuildSessionViewHidesOtherTargets(t *testing.T) {
	sess := buildSession(t)
	view, err := BuildSessionView(sess, 1, true)
	if err != nil {
		t.Fatalf("BuildSessionView() error = %v", err)
	}
	if view.Setup.BoardHeight != 9 || view.Setup.PlayerCount != 2 {
		t.Fatalf("setup = %+v", view.Setup)
	}
	b := view.Board
	if b == nil {
		t.Fatal("expected board")
	}
	if len(b.Tiles) != 9 || len(b.Tiles[0]) != 7 {
		t.Fatalf("tiles = %dx%d, want 9 rows of 7", len(b.Tiles), len(b.Tiles[0]))
	}
	if b.Players[0].CurrentTreasure != nil {
		t.Fatal("other player's target leaked")
	}
	if b.Players[1].CurrentTreasure == nil {
		t.Fatal("viewer's own target missing")
	}
	if b.TurnIndex == nil || *b.TurnIndex != 0 || b.WinnerIndex != nil {
		t.Fatalf("turn = %v winner = %v", b.TurnIndex, b.WinnerIndex)
	}
	corner := b.Tiles[0][0]
	if len(corner.Openings) != 2 || corner.Openings[0] != int(game.HeadingEast) || corner.Openings[1] != int(game.HeadingSouth) {
		t.Fatalf("corner openings = %v, want [1 2]", corner.Openings)
	}

	spectator, _ := BuildSessionView(sess, -1, true)
	for _, p := range spectator.Board.Players {
		if p.CurrentTreasure != nil {
			t.Fatalf("spectator sees target of player %d", p.Index)
		}
	}
	lobby, _ := BuildSessionView(sess, 0, false)
	if lobby.Board != nil {
		t.Fatal("board included without request")
	}
}

func TestBuildSessionViewRejectsBadSetup(t *testing.T) {
	sess := buildSession(t)
	sess.Setup = "{"
	if _, err := BuildSessionView(sess, 0, false); err == nil {
		t.Fatal("expected setup decode error")
	}
}

func TestSlotViews(t *testing.T) {
	slots := []store.PlayerSlot{
		{ID: "a", Index: 0, Kind: store.SlotPlayer, UserID: "u1"},
		{ID: "b", Index: 1, Kind: store.SlotStrongBot, Ready: true},
		{ID: "c", Index: 2, Kind: store.SlotPlayer, UserID: "u2", DisplayName: "Guest"},
	}
	views := BuildSlotViews(slots, map[string]string{"u1": "alice", "u2": "bob"})
	want := []string{"alice", "strong_bot", "Guest"}
	for i, v := range views {
		if v.Name != want[i] {
			t.Fatalf("slot %d name = %q, want %q", i, v.Name, want[i])
		}
	}
	if got := ViewerIndex(slots, "u2"); got != 2 {
		t.Fatalf("ViewerIndex(u2) = %d, want 2", got)
	}
	if got := ViewerIndex(slots, ""); got != -1 {
		t.Fatalf("ViewerIndex(\"\") = %d, want -1", got)
	}
}
