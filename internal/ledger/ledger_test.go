package ledger

import (
	"context"
	"testing"

	"labyrinth-server/internal/game"
	"labyrinth-server/internal/store"
	"labyrinth-server/internal/store/memory"
)

func TestOutcome(t *testing.T) {
	slots := []store.PlayerSlot{
		{Index: 0, Kind: store.SlotPlayer, UserID: "a"},
		{Index: 1, Kind: store.SlotStrongBot, IsWinner: true},
		{Index: 2, Kind: store.SlotPlayer, UserID: "b"},
	}
	winner, losers, ok := outcome(slots)
	if !ok || winner != "" || len(losers) != 2 {
		t.Fatalf("outcome() = %q %v %v, want bot win with two human losers", winner, losers, ok)
	}

	slots[1].IsWinner = false
	if _, _, ok := outcome(slots); ok {
		t.Fatal("outcome() without a winner should be skipped")
	}

	slots[2].IsWinner = true
	winner, losers, ok = outcome(slots)
	if !ok || winner != "b" || len(losers) != 1 || losers[0] != "a" {
		t.Fatalf("outcome() = %q %v %v, want b beating a", winner, losers, ok)
	}
}

func TestSettleRecordsFinishedSession(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	alice := store.User{Name: "alice"}
	bob := store.User{Name: "bob"}
	for _, u := range []*store.User{&alice, &bob} {
		if err := st.CreateUser(ctx, u); err != nil {
			t.Fatalf("create user: %v", err)
		}
	}
	sess := store.Session{Visibility: store.VisibilityPublic, OwnerID: alice.ID, Started: true}
	owner := store.PlayerSlot{Kind: store.SlotPlayer, UserID: alice.ID, Ready: true}
	if err := st.CreateSession(ctx, &sess, &owner); err != nil {
		t.Fatalf("create session: %v", err)
	}
	guest := store.PlayerSlot{SessionID: sess.ID, Index: 1, Kind: store.SlotPlayer, UserID: bob.ID, Ready: true}
	if err := st.InsertSlot(ctx, &guest); err != nil {
		t.Fatalf("insert slot: %v", err)
	}

	l := New(st, st)
	l.OnMove(ctx, sess.ID, game.Move{})
	if board, _ := st.Leaderboard(ctx, 10); len(board) != 0 {
		t.Fatalf("leaderboard = %v, want empty while the game runs", board)
	}

	if err := st.FinishSession(ctx, sess, guest.ID); err != nil {
		t.Fatalf("finish session: %v", err)
	}
	l.OnMove(ctx, sess.ID, game.Move{})

	board, err := st.Leaderboard(ctx, 10)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(board) != 2 || board[0].UserID != bob.ID || board[0].GamesWon != 1 || board[1].GamesLost != 1 {
		t.Fatalf("leaderboard = %+v, want bob 1-0 then alice 0-1", board)
	}
}

func TestSettleMissingSession(t *testing.T) {
	st := memory.New()
	if err := New(st, st).Settle(context.Background(), "missing"); err == nil {
		t.Fatal("Settle(missing) should fail")
	}
}
