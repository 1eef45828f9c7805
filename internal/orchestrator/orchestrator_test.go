package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"labyrinth-server/internal/game"
	"labyrinth-server/internal/store"
	"labyrinth-server/internal/store/memory"
)

type fixture struct {
	st *memory.Store
	o  *Orchestrator
}

func newFixture(t *testing.T, delay time.Duration) *fixture {
	t.Helper()
	return newFixtureWithRules(t, game.NewLabyrinth(), delay)
}

func newFixtureWithRules(t *testing.T, rules game.Rules, delay time.Duration) *fixture {
	t.Helper()
	st := memory.New()
	o := New(st, st, st, rules, Config{BotDelay: delay})
	t.Cleanup(o.Close)
	return &fixture{st: st, o: o}
}

func (f *fixture) user(t *testing.T, name string) string {
	t.Helper()
	u := store.User{Name: name}
	if err := f.st.CreateUser(context.Background(), &u); err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u.ID
}

func (f *fixture) create(t *testing.T, owner string, players int, vis store.Visibility) store.Session {
	t.Helper()
	sess, err := f.o.Create(context.Background(), owner, game.Setup{Seed: "orchestrator", BoardWidth: 7, BoardHeight: 7, PlayerCount: players}, vis)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	return *sess
}

func (f *fixture) session(t *testing.T, id string) store.Session {
	t.Helper()
	sess, err := f.st.GetSession(context.Background(), id)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	return sess
}

func (f *fixture) slots(t *testing.T, id string) []store.PlayerSlot {
	t.Helper()
	slots, err := f.st.ListSlots(context.Background(), id)
	if err != nil {
		t.Fatalf("list slots: %v", err)
	}
	return slots
}

func (f *fixture) state(t *testing.T, id string) game.State {
	t.Helper()
	st, err := game.DecodeState(f.session(t, id).State)
	if err != nil {
		t.Fatalf("decode state: %v", err)
	}
	return st
}

func assertDense(t *testing.T, slots []store.PlayerSlot) {
	t.Helper()
	for i, s := range slots {
		if s.Index != i {
			t.Fatalf("slot %d has index %d, indices must be dense", i, s.Index)
		}
	}
}

// stayMove keeps the current player in place after a shift of row 1.
func stayMove(t *testing.T, st game.State) game.Move {
	t.Helper()
	p := st.Players[st.Turn].Position
	shift := game.ShiftPosition{Heading: game.HeadingEast, Index: 1}
	if st.LastShift != nil && st.LastShift.Index == 1 && st.LastShift.Heading == game.HeadingWest {
		shift = game.ShiftPosition{Heading: game.HeadingEast, Index: 3}
	}
	return game.Move{PlayerIndex: st.Turn, Shift: shift, From: p, To: p}
}

func TestCreateSeatsOwner(t *testing.T) {
	f := newFixture(t, 0)
	alice := f.user(t, "alice")

	sess := f.create(t, alice, 3, "")
	if sess.Visibility != store.VisibilityPublic || sess.Started || sess.Finished {
		t.Fatalf("session = %+v, want public lobby", sess)
	}
	slots := f.slots(t, sess.ID)
	if len(slots) != 1 || slots[0].UserID != alice || slots[0].Index != 0 || slots[0].Ready {
		t.Fatalf("slots = %+v, want unready owner at 0", slots)
	}
	setup, err := decodeSetup(sess)
	if err != nil || setup.PlayerCount != 3 {
		t.Fatalf("setup = %+v, %v, want playerCount 3", setup, err)
	}
}

func TestCreateRejects(t *testing.T) {
	f := newFixture(t, 0)
	alice := f.user(t, "alice")
	ctx := context.Background()

	if _, err := f.o.Create(ctx, alice, game.Setup{BoardWidth: 4, BoardHeight: 7}, ""); !errors.Is(err, ErrInvalidSetup) {
		t.Fatalf("bad board error = %v, want ErrInvalidSetup", err)
	}
	if _, err := f.o.Create(ctx, alice, game.Setup{BoardWidth: 7, BoardHeight: 7}, "secret"); !errors.Is(err, ErrInvalidSetup) {
		t.Fatalf("bad visibility error = %v, want ErrInvalidSetup", err)
	}
	if _, err := f.o.Create(ctx, "ghost", game.Setup{BoardWidth: 7, BoardHeight: 7}, ""); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("unknown owner error = %v, want ErrUserNotFound", err)
	}
	if got, _ := f.st.ListSessions(ctx, store.SessionQuery{}); len(got) != 0 {
		t.Fatalf("sessions = %d, want none after failures", len(got))
	}
}

func TestTwoPlayersReadyStartsOnce(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	alice, bob := f.user(t, "alice"), f.user(t, "bob")
	sess := f.create(t, alice, 2, store.VisibilityPublic)

	if err := f.o.AddHumanPlayer(ctx, bob, sess.ID, ""); err != nil {
		t.Fatalf("AddHumanPlayer() error = %v", err)
	}
	if err := f.o.SetReady(ctx, alice, sess.ID, true); err != nil {
		t.Fatalf("SetReady(alice) error = %v", err)
	}
	if err := f.o.SetReady(ctx, alice, sess.ID, false); err != nil {
		t.Fatalf("SetReady(alice,false) error = %v", err)
	}
	if err := f.o.SetReady(ctx, bob, sess.ID, true); err != nil {
		t.Fatalf("SetReady(bob) error = %v", err)
	}
	if f.session(t, sess.ID).Started {
		t.Fatal("session started while alice was unready")
	}
	if err := f.o.SetReady(ctx, alice, sess.ID, true); err != nil {
		t.Fatalf("SetReady(alice) error = %v", err)
	}

	got := f.session(t, sess.ID)
	if !got.Started || got.Finished {
		t.Fatalf("started=%v finished=%v, want started lobby", got.Started, got.Finished)
	}
	slots := f.slots(t, sess.ID)
	if len(slots) != 2 {
		t.Fatalf("slots = %d, want 2", len(slots))
	}
	assertDense(t, slots)
	if st := f.state(t, sess.ID); len(st.Players) != 2 {
		t.Fatalf("state players = %d, want 2", len(st.Players))
	}
	if err := f.o.SetReady(ctx, alice, sess.ID, false); !errors.Is(err, ErrAlreadyStarted) {
		t.Fatalf("SetReady after start error = %v, want ErrAlreadyStarted", err)
	}
	if err := f.o.SetReady(ctx, f.user(t, "carol"), sess.ID, true); err != nil {
		t.Fatalf("SetReady without slot error = %v, want nil", err)
	}
}

func TestAddHumanPlayerFailures(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	alice, bob, carol := f.user(t, "alice"), f.user(t, "bob"), f.user(t, "carol")
	sess := f.create(t, alice, 2, "")

	if err := f.o.AddHumanPlayer(ctx, bob, "missing", ""); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("missing session error = %v, want ErrSessionNotFound", err)
	}
	if err := f.o.AddHumanPlayer(ctx, "ghost", sess.ID, ""); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("unknown user error = %v, want ErrUserNotFound", err)
	}
	if err := f.o.AddHumanPlayer(ctx, alice, sess.ID, ""); !errors.Is(err, ErrAlreadyOccupied) {
		t.Fatalf("owner rejoin error = %v, want ErrAlreadyOccupied", err)
	}
	if err := f.o.AddHumanPlayer(ctx, bob, sess.ID, "Bobby"); err != nil {
		t.Fatalf("AddHumanPlayer(bob) error = %v", err)
	}
	if err := f.o.AddHumanPlayer(ctx, carol, sess.ID, ""); !errors.Is(err, ErrSessionFull) {
		t.Fatalf("full session error = %v, want ErrSessionFull", err)
	}
	slots := f.slots(t, sess.ID)
	if len(slots) != 2 || slots[1].DisplayName != "Bobby" {
		t.Fatalf("slots = %+v, want two with bob named Bobby", slots)
	}
}

func TestAddBot(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	alice, bob := f.user(t, "alice"), f.user(t, "bob")
	sess := f.create(t, alice, 3, "")

	if err := f.o.AddBot(ctx, bob, sess.ID, store.SlotWeakBot); !errors.Is(err, ErrNoPermission) {
		t.Fatalf("non-owner AddBot error = %v, want ErrNoPermission", err)
	}
	if err := f.o.AddBot(ctx, alice, sess.ID, store.SlotPlayer); !errors.Is(err, ErrInvalidBotTier) {
		t.Fatalf("player tier error = %v, want ErrInvalidBotTier", err)
	}
	if err := f.o.AddBot(ctx, alice, sess.ID, store.SlotMediumBot); err != nil {
		t.Fatalf("AddBot() error = %v", err)
	}
	if err := f.o.AddBot(ctx, alice, sess.ID, store.SlotStrongBot); err != nil {
		t.Fatalf("AddBot() error = %v", err)
	}
	if err := f.o.AddBot(ctx, alice, sess.ID, store.SlotWeakBot); !errors.Is(err, ErrSessionFull) {
		t.Fatalf("full AddBot error = %v, want ErrSessionFull", err)
	}
	for _, s := range f.slots(t, sess.ID)[1:] {
		if !s.Ready || s.UserID != "" || !s.Kind.IsBot() {
			t.Fatalf("bot slot = %+v, want ready bot without user", s)
		}
	}
}

func TestBotKind(t *testing.T) {
	cases := map[string]store.SlotKind{
		"weak":       store.SlotWeakBot,
		"medium_bot": store.SlotMediumBot,
		"strong":     store.SlotStrongBot,
	}
	for tier, want := range cases {
		got, err := BotKind(tier)
		if err != nil || got != want {
			t.Fatalf("BotKind(%q) = %q, %v, want %q", tier, got, err, want)
		}
	}
	if _, err := BotKind("genius"); !errors.Is(err, ErrInvalidBotTier) {
		t.Fatalf("BotKind(genius) error = %v, want ErrInvalidBotTier", err)
	}
}

func TestHumanMoveTriggersSynchronousBotReply(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	alice := f.user(t, "alice")
	sess := f.create(t, alice, 2, "")

	if err := f.o.AddBot(ctx, alice, sess.ID, store.SlotStrongBot); err != nil {
		t.Fatalf("AddBot() error = %v", err)
	}
	if err := f.o.SetReady(ctx, alice, sess.ID, true); err != nil {
		t.Fatalf("SetReady() error = %v", err)
	}
	if !f.session(t, sess.ID).Started {
		t.Fatal("human plus ready bot should start the session")
	}

	var mu sync.Mutex
	var seen []int
	f.o.AddMoveListener(MoveListenerFunc(func(_ context.Context, id string, m game.Move) {
		mu.Lock()
		defer mu.Unlock()
		if id == sess.ID {
			seen = append(seen, m.PlayerIndex)
		}
	}))

	if err := f.o.MoveWithBotDelay(ctx, sess.ID, stayMove(t, f.state(t, sess.ID)), alice, 0); err != nil {
		t.Fatalf("Move() error = %v", err)
	}
	st := f.state(t, sess.ID)
	if st.MoveCount != 2 {
		t.Fatalf("move count = %d, want bot reply applied before return", st.MoveCount)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 2 || seen[0] != 0 || seen[1] != 1 {
		t.Fatalf("listener saw %v, want [0 1]", seen)
	}
}

func TestDelayedBotReply(t *testing.T) {
	f := newFixture(t, 20*time.Millisecond)
	ctx := context.Background()
	alice := f.user(t, "alice")
	sess := f.create(t, alice, 2, "")
	if err := f.o.AddBot(ctx, alice, sess.ID, store.SlotWeakBot); err != nil {
		t.Fatalf("AddBot() error = %v", err)
	}
	if err := f.o.SetReady(ctx, alice, sess.ID, true); err != nil {
		t.Fatalf("SetReady() error = %v", err)
	}

	done := make(chan game.Move, 4)
	f.o.AddMoveListener(MoveListenerFunc(func(_ context.Context, _ string, m game.Move) {
		done <- m
	}))
	if err := f.o.Move(ctx, sess.ID, stayMove(t, f.state(t, sess.ID)), alice); err != nil {
		t.Fatalf("Move() error = %v", err)
	}
	if first := <-done; first.PlayerIndex != 0 {
		t.Fatalf("first move by %d, want 0", first.PlayerIndex)
	}
	select {
	case m := <-done:
		if m.PlayerIndex != 1 {
			t.Fatalf("bot move by %d, want 1", m.PlayerIndex)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("bot did not reply")
	}
	if st := f.state(t, sess.ID); st.MoveCount != 2 || st.Turn != 0 {
		t.Fatalf("moveCount=%d turn=%d, want 2 and 0", st.MoveCount, st.Turn)
	}
}

func TestRemoveSlotStartsWithBotFirst(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	alice, bob := f.user(t, "alice"), f.user(t, "bob")
	sess := f.create(t, alice, 3, "")

	if err := f.o.AddBot(ctx, alice, sess.ID, store.SlotWeakBot); err != nil {
		t.Fatalf("AddBot() error = %v", err)
	}
	if err := f.o.AddHumanPlayer(ctx, bob, sess.ID, ""); err != nil {
		t.Fatalf("AddHumanPlayer() error = %v", err)
	}
	if err := f.o.SetReady(ctx, bob, sess.ID, true); err != nil {
		t.Fatalf("SetReady(bob) error = %v", err)
	}
	// alice leaves: the bot moves to slot 0 and bob to slot 1, both ready.
	if err := f.o.RemoveSlot(ctx, alice, sess.ID, 0); err != nil {
		t.Fatalf("RemoveSlot() error = %v", err)
	}
	got := f.session(t, sess.ID)
	if !got.Started || got.OwnerID != bob {
		t.Fatalf("started=%v owner=%s, want started with bob as owner", got.Started, got.OwnerID)
	}
	st := f.state(t, sess.ID)
	if len(st.Players) != 2 || st.MoveCount != 1 || st.Turn != 1 {
		t.Fatalf("players=%d moves=%d turn=%d, want the bot to open", len(st.Players), st.MoveCount, st.Turn)
	}
}

func TestMoveRejections(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	alice, bob := f.user(t, "alice"), f.user(t, "bob")
	sess := f.create(t, alice, 2, "")

	if err := f.o.Move(ctx, "missing", game.Move{}, alice); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("missing session error = %v, want ErrSessionNotFound", err)
	}
	if err := f.o.Move(ctx, sess.ID, game.Move{}, alice); !errors.Is(err, ErrGameNotStarted) {
		t.Fatalf("lobby move error = %v, want ErrGameNotStarted", err)
	}
	if err := f.o.AddHumanPlayer(ctx, bob, sess.ID, ""); err != nil {
		t.Fatalf("AddHumanPlayer() error = %v", err)
	}
	for _, id := range []string{alice, bob} {
		if err := f.o.SetReady(ctx, id, sess.ID, true); err != nil {
			t.Fatalf("SetReady() error = %v", err)
		}
	}

	before := f.session(t, sess.ID).State
	move := stayMove(t, f.state(t, sess.ID))

	if err := f.o.Move(ctx, sess.ID, move, bob); !errors.Is(err, ErrInvalidMove) {
		t.Fatalf("wrong user error = %v, want ErrInvalidMove", err)
	}
	wrongIndex := move
	wrongIndex.PlayerIndex = 1
	if err := f.o.Move(ctx, sess.ID, wrongIndex, alice); !errors.Is(err, ErrInvalidMove) {
		t.Fatalf("wrong index error = %v, want ErrInvalidMove", err)
	}
	illegal := move
	illegal.Shift = game.ShiftPosition{Heading: game.HeadingEast, Index: 2}
	if err := f.o.Move(ctx, sess.ID, illegal, alice); !errors.Is(err, ErrInvalidMove) {
		t.Fatalf("fixed row shift error = %v, want ErrInvalidMove", err)
	}
	if after := f.session(t, sess.ID).State; after != before {
		t.Fatal("rejected moves changed the stored state")
	}

	if err := f.o.Move(ctx, sess.ID, move, alice); err != nil {
		t.Fatalf("Move() error = %v", err)
	}
	if st := f.state(t, sess.ID); st.Turn != 1 || st.MoveCount != 1 {
		t.Fatalf("turn=%d moves=%d, want 1 and 1", st.Turn, st.MoveCount)
	}
}

// rigWin gives player 0 a single treasure on their home tile.
func rigWin(t *testing.T, f *fixture, sessionID string) game.Move {
	t.Helper()
	st := f.state(t, sessionID)
	id := 99
	home := st.Players[0].Position
	st.Tiles[home.Y*st.Width+home.X].Treasure = &id
	st.Players[0].Pending = []int{id}
	raw, err := json.Marshal(st)
	if err != nil {
		t.Fatalf("marshal state: %v", err)
	}
	sess := f.session(t, sessionID)
	sess.State = string(raw)
	if err := f.st.UpdateSession(context.Background(), sess); err != nil {
		t.Fatalf("update session: %v", err)
	}
	move := stayMove(t, st)
	move.CollectedTreasure = &id
	return move
}

func TestWinningMoveFinishesSession(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	alice := f.user(t, "alice")
	sess := f.create(t, alice, 2, "")
	if err := f.o.AddBot(ctx, alice, sess.ID, store.SlotMediumBot); err != nil {
		t.Fatalf("AddBot() error = %v", err)
	}
	if err := f.o.SetReady(ctx, alice, sess.ID, true); err != nil {
		t.Fatalf("SetReady() error = %v", err)
	}

	move := rigWin(t, f, sess.ID)
	if err := f.o.MoveWithBotDelay(ctx, sess.ID, move, alice, 0); err != nil {
		t.Fatalf("winning Move() error = %v", err)
	}
	got := f.session(t, sess.ID)
	if !got.Finished || !got.Started {
		t.Fatalf("started=%v finished=%v, want finished", got.Started, got.Finished)
	}
	winners := 0
	for _, s := range f.slots(t, sess.ID) {
		if !s.GameFinished {
			t.Fatalf("slot %d not marked finished", s.Index)
		}
		if s.IsWinner {
			winners++
			if s.UserID != alice {
				t.Fatalf("winner slot = %+v, want alice", s)
			}
		}
	}
	if winners != 1 {
		t.Fatalf("winners = %d, want 1", winners)
	}
	if st := f.state(t, sess.ID); st.MoveCount != 1 {
		t.Fatalf("moveCount = %d, bot must not play after a win", st.MoveCount)
	}
	if err := f.o.Move(ctx, sess.ID, move, alice); !errors.Is(err, ErrGameFinished) {
		t.Fatalf("move after finish error = %v, want ErrGameFinished", err)
	}
	if err := f.o.TransferOwnership(ctx, alice, sess.ID, alice); !errors.Is(err, ErrGameFinished) {
		t.Fatalf("transfer after finish error = %v, want ErrGameFinished", err)
	}
}

func TestRemoveSlotCompactsAndTransfersOwner(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	alice, bob, carol := f.user(t, "alice"), f.user(t, "bob"), f.user(t, "carol")
	sess := f.create(t, alice, 4, "")

	if err := f.o.AddBot(ctx, alice, sess.ID, store.SlotWeakBot); err != nil {
		t.Fatalf("AddBot() error = %v", err)
	}
	for _, id := range []string{bob, carol} {
		if err := f.o.AddHumanPlayer(ctx, id, sess.ID, ""); err != nil {
			t.Fatalf("AddHumanPlayer() error = %v", err)
		}
	}
	if err := f.o.RemoveSlot(ctx, carol, sess.ID, 2); !errors.Is(err, ErrNoPermission) {
		t.Fatalf("carol removing bob error = %v, want ErrNoPermission", err)
	}
	if err := f.o.RemoveSlot(ctx, alice, sess.ID, 9); !errors.Is(err, ErrSlotNotFound) {
		t.Fatalf("missing slot error = %v, want ErrSlotNotFound", err)
	}
	if err := f.o.RemoveSlot(ctx, alice, sess.ID, 0); err != nil {
		t.Fatalf("owner leave error = %v", err)
	}

	slots := f.slots(t, sess.ID)
	assertDense(t, slots)
	if len(slots) != 3 || slots[0].Kind != store.SlotWeakBot || slots[1].UserID != bob || slots[2].UserID != carol {
		t.Fatalf("slots = %+v, want bot, bob, carol", slots)
	}
	if owner := f.session(t, sess.ID).OwnerID; owner != bob {
		t.Fatalf("owner = %s, want bob", owner)
	}
	if err := f.o.RemoveSlot(ctx, carol, sess.ID, 2); err != nil {
		t.Fatalf("self leave error = %v", err)
	}
	if err := f.o.AddHumanPlayer(ctx, alice, sess.ID, ""); err != nil {
		t.Fatalf("rejoin error = %v", err)
	}
	slots = f.slots(t, sess.ID)
	assertDense(t, slots)
	if len(slots) != 3 || slots[2].UserID != alice {
		t.Fatalf("slots = %+v, want alice back at 2", slots)
	}
}

func TestLastHumanLeavingDissolvesSession(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	alice := f.user(t, "alice")
	sess := f.create(t, alice, 3, "")
	if err := f.o.AddBot(ctx, alice, sess.ID, store.SlotWeakBot); err != nil {
		t.Fatalf("AddBot() error = %v", err)
	}
	if err := f.o.RemoveSlot(ctx, alice, sess.ID, 0); err != nil {
		t.Fatalf("RemoveSlot() error = %v", err)
	}
	if _, err := f.o.FindOne(ctx, sess.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("FindOne() error = %v, want ErrSessionNotFound", err)
	}
	if slots, _ := f.st.ListSlots(ctx, sess.ID); len(slots) != 0 {
		t.Fatalf("slots = %d, want none", len(slots))
	}
}

func TestRemoveSlotAfterStart(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	alice := f.user(t, "alice")
	sess := f.create(t, alice, 2, "")
	if err := f.o.AddBot(ctx, alice, sess.ID, store.SlotWeakBot); err != nil {
		t.Fatalf("AddBot() error = %v", err)
	}
	if err := f.o.SetReady(ctx, alice, sess.ID, true); err != nil {
		t.Fatalf("SetReady() error = %v", err)
	}
	if err := f.o.RemoveSlot(ctx, alice, sess.ID, 1); !errors.Is(err, ErrAlreadyStarted) {
		t.Fatalf("RemoveSlot() error = %v, want ErrAlreadyStarted", err)
	}
	if err := f.o.AddBot(ctx, alice, sess.ID, store.SlotWeakBot); !errors.Is(err, ErrAlreadyStarted) {
		t.Fatalf("AddBot() error = %v, want ErrAlreadyStarted", err)
	}
}

func TestUpdate(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	alice, bob, carol := f.user(t, "alice"), f.user(t, "bob"), f.user(t, "carol")
	sess := f.create(t, alice, 4, "")

	for _, id := range []string{bob, carol} {
		if err := f.o.AddHumanPlayer(ctx, id, sess.ID, ""); err != nil {
			t.Fatalf("AddHumanPlayer() error = %v", err)
		}
	}
	if err := f.o.AddBot(ctx, alice, sess.ID, store.SlotStrongBot); err != nil {
		t.Fatalf("AddBot() error = %v", err)
	}
	if err := f.o.SetReady(ctx, bob, sess.ID, true); err != nil {
		t.Fatalf("SetReady() error = %v", err)
	}

	small := game.Setup{BoardWidth: 9, BoardHeight: 9, PlayerCount: 2}
	if err := f.o.Update(ctx, alice, UpdateRequest{SessionID: sess.ID, Setup: &small}); !errors.Is(err, ErrInvalidPlayerCount) {
		t.Fatalf("shrinking error = %v, want ErrInvalidPlayerCount", err)
	}
	if err := f.o.Update(ctx, bob, UpdateRequest{SessionID: sess.ID, Visibility: store.VisibilityPrivate}); !errors.Is(err, ErrNoPermission) {
		t.Fatalf("non-owner error = %v, want ErrNoPermission", err)
	}
	bad := game.Setup{BoardWidth: 8, BoardHeight: 9}
	if err := f.o.Update(ctx, alice, UpdateRequest{SessionID: sess.ID, Setup: &bad}); !errors.Is(err, ErrInvalidSetup) {
		t.Fatalf("bad setup error = %v, want ErrInvalidSetup", err)
	}
	if err := f.o.Update(ctx, alice, UpdateRequest{SessionID: sess.ID, OwnerID: f.user(t, "dave")}); !errors.Is(err, ErrNotInSession) {
		t.Fatalf("outsider owner error = %v, want ErrNotInSession", err)
	}
	if err := f.o.Update(ctx, alice, UpdateRequest{SessionID: sess.ID, OwnerID: "ghost"}); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("unknown owner error = %v, want ErrUserNotFound", err)
	}

	bigger := game.Setup{BoardWidth: 9, BoardHeight: 9, PlayerCount: 4}
	req := UpdateRequest{SessionID: sess.ID, Setup: &bigger, Visibility: store.VisibilityFriends, OwnerID: carol}
	if err := f.o.Update(ctx, alice, req); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	got := f.session(t, sess.ID)
	if got.OwnerID != carol || got.Visibility != store.VisibilityFriends {
		t.Fatalf("session = %+v, want carol owning a friends session", got)
	}
	if st := f.state(t, sess.ID); st.Width != 9 {
		t.Fatalf("board width = %d, want 9", st.Width)
	}
	for _, s := range f.slots(t, sess.ID) {
		if s.Kind.IsBot() != s.Ready {
			t.Fatalf("slot %+v: only bots should stay ready", s)
		}
	}
}

func TestTransferOwnership(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	alice, bob := f.user(t, "alice"), f.user(t, "bob")
	sess := f.create(t, alice, 2, "")

	if err := f.o.TransferOwnership(ctx, alice, sess.ID, bob); !errors.Is(err, ErrNotInSession) {
		t.Fatalf("transfer to outsider error = %v, want ErrNotInSession", err)
	}
	if err := f.o.AddHumanPlayer(ctx, bob, sess.ID, ""); err != nil {
		t.Fatalf("AddHumanPlayer() error = %v", err)
	}
	if err := f.o.TransferOwnership(ctx, bob, sess.ID, bob); !errors.Is(err, ErrNoPermission) {
		t.Fatalf("non-owner transfer error = %v, want ErrNoPermission", err)
	}
	if err := f.o.TransferOwnership(ctx, alice, sess.ID, bob); err != nil {
		t.Fatalf("TransferOwnership() error = %v", err)
	}
	if owner := f.session(t, sess.ID).OwnerID; owner != bob {
		t.Fatalf("owner = %s, want bob", owner)
	}
}

func TestFindAvailableToJoin(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	alice, bob, carol := f.user(t, "alice"), f.user(t, "bob"), f.user(t, "carol")
	if err := f.st.AddFriendship(ctx, alice, bob, true); err != nil {
		t.Fatalf("add friendship: %v", err)
	}

	own := f.create(t, alice, 2, store.VisibilityPublic)
	public := f.create(t, carol, 2, store.VisibilityPublic)
	friends := f.create(t, bob, 2, store.VisibilityFriends)
	f.create(t, carol, 2, store.VisibilityFriends)
	f.create(t, bob, 2, store.VisibilityPrivate)

	got, err := f.o.FindAvailableToJoin(ctx, alice)
	if err != nil {
		t.Fatalf("FindAvailableToJoin() error = %v", err)
	}
	ids := map[string]bool{}
	for _, s := range got {
		ids[s.ID] = true
	}
	if len(got) != 2 || !ids[public.ID] || !ids[friends.ID] {
		t.Fatalf("available = %v, want carol's public and bob's friends session", ids)
	}

	mine, err := f.o.FindOwn(ctx, alice)
	if err != nil || len(mine) != 1 || mine[0].ID != own.ID {
		t.Fatalf("FindOwn() = %v, %v, want alice's session", mine, err)
	}
	players, err := f.o.FindPlayers(ctx, own.ID)
	if err != nil || len(players) != 1 {
		t.Fatalf("FindPlayers() = %v, %v, want owner slot", players, err)
	}
	if _, err := f.o.FindPlayers(ctx, "missing"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("FindPlayers(missing) error = %v, want ErrSessionNotFound", err)
	}
}

func TestConcurrentJoinsKeepIndicesDense(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	alice := f.user(t, "alice")
	sess := f.create(t, alice, 4, "")

	users := make([]string, 6)
	for i := range users {
		users[i] = f.user(t, fmt.Sprintf("user-%d", i))
	}
	var wg sync.WaitGroup
	errs := make(chan error, len(users))
	for _, id := range users {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			errs <- f.o.AddHumanPlayer(ctx, id, sess.ID, "")
		}(id)
	}
	wg.Wait()
	close(errs)

	joined, full := 0, 0
	for err := range errs {
		switch {
		case err == nil:
			joined++
		case errors.Is(err, ErrSessionFull):
			full++
		default:
			t.Fatalf("unexpected join error: %v", err)
		}
	}
	if joined != 3 || full != 3 {
		t.Fatalf("joined=%d full=%d, want 3 and 3", joined, full)
	}
	assertDense(t, f.slots(t, sess.ID))
	if n := f.o.locks.size(); n != 0 {
		t.Fatalf("lock entries = %d, want 0 after all calls return", n)
	}
}

type failingRules struct {
	game.Rules
	fail map[game.Strategy]bool
}

func (r failingRules) MoveGenerator(s game.Strategy) (game.MoveGenerator, error) {
	gen, err := r.Rules.MoveGenerator(s)
	if err != nil {
		return nil, err
	}
	if !r.fail[s] {
		return gen, nil
	}
	return func(game.Instance) (game.Move, error) {
		return game.Move{}, errors.New("generator broke")
	}, nil
}

func startWithBot(t *testing.T, f *fixture, kind store.SlotKind) (string, string) {
	t.Helper()
	ctx := context.Background()
	alice := f.user(t, "alice")
	sess := f.create(t, alice, 2, "")
	if err := f.o.AddBot(ctx, alice, sess.ID, kind); err != nil {
		t.Fatalf("AddBot() error = %v", err)
	}
	if err := f.o.SetReady(ctx, alice, sess.ID, true); err != nil {
		t.Fatalf("SetReady() error = %v", err)
	}
	return alice, sess.ID
}

func TestBotFallsBackToWeakGenerator(t *testing.T) {
	f := newFixtureWithRules(t, failingRules{Rules: game.NewLabyrinth(), fail: map[game.Strategy]bool{game.StrategyStrong: true}}, 0)
	alice, id := startWithBot(t, f, store.SlotStrongBot)

	if err := f.o.Move(context.Background(), id, stayMove(t, f.state(t, id)), alice); err != nil {
		t.Fatalf("Move() error = %v", err)
	}
	if st := f.state(t, id); st.MoveCount != 2 || f.session(t, id).Finished {
		t.Fatalf("moveCount = %d, want the weak fallback to answer", st.MoveCount)
	}
}

func TestBotFailureAbortsSession(t *testing.T) {
	f := newFixtureWithRules(t, failingRules{Rules: game.NewLabyrinth(), fail: map[game.Strategy]bool{game.StrategyMedium: true, game.StrategyWeak: true}}, 0)
	alice, id := startWithBot(t, f, store.SlotMediumBot)

	if err := f.o.Move(context.Background(), id, stayMove(t, f.state(t, id)), alice); err != nil {
		t.Fatalf("Move() error = %v", err)
	}
	got := f.session(t, id)
	if !got.Finished {
		t.Fatal("session should be finished after the bot could not move")
	}
	for _, s := range f.slots(t, id) {
		if s.IsWinner || !s.GameFinished {
			t.Fatalf("slot %+v: aborted session has no winner", s)
		}
	}
}

func TestCancelledCallerStillGetsBotReply(t *testing.T) {
	f := newFixture(t, 0)
	alice, id := startWithBot(t, f, store.SlotWeakBot)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.o.AddMoveListener(MoveListenerFunc(func(context.Context, string, game.Move) {
		cancel()
	}))
	if err := f.o.MoveWithBotDelay(ctx, id, stayMove(t, f.state(t, id)), alice, 0); err != nil {
		t.Fatalf("Move() error = %v", err)
	}
	if st := f.state(t, id); st.MoveCount != 2 || st.Turn != 0 {
		t.Fatalf("moveCount=%d turn=%d, want the bot reply despite the cancelled caller", st.MoveCount, st.Turn)
	}
}

// flakyRepo fails the next failUpdates calls to UpdateSession.
type flakyRepo struct {
	*memory.Store
	failUpdates atomic.Int32
}

func (r *flakyRepo) UpdateSession(ctx context.Context, sess store.Session) error {
	if r.failUpdates.Add(-1) >= 0 {
		return errors.New("connection reset")
	}
	return r.Store.UpdateSession(ctx, sess)
}

func newFlakyFixture(t *testing.T) (*fixture, *flakyRepo) {
	t.Helper()
	st := memory.New()
	repo := &flakyRepo{Store: st}
	o := New(repo, st, st, game.NewLabyrinth(), Config{})
	t.Cleanup(o.Close)
	return &fixture{st: st, o: o}, repo
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestBotTurnRetriedAfterStoreError(t *testing.T) {
	f, repo := newFlakyFixture(t)
	alice, id := startWithBot(t, f, store.SlotWeakBot)

	move := stayMove(t, f.state(t, id))
	var mu sync.Mutex
	moves := 0
	f.o.AddMoveListener(MoveListenerFunc(func(context.Context, string, game.Move) {
		mu.Lock()
		defer mu.Unlock()
		moves++
		if moves == 1 {
			repo.failUpdates.Store(1)
		}
	}))
	if err := f.o.MoveWithBotDelay(context.Background(), id, move, alice, 0); err != nil {
		t.Fatalf("Move() error = %v", err)
	}
	if !f.o.timers.pending(id) {
		t.Fatal("failed bot turn should be rescheduled")
	}
	waitFor(t, "bot retry", func() bool { return f.state(t, id).MoveCount == 2 })
	if f.session(t, id).Finished {
		t.Fatal("a recovered bot turn must not abort the session")
	}
}

func TestBotTurnAbortsAfterRepeatedStoreErrors(t *testing.T) {
	f, repo := newFlakyFixture(t)
	alice, id := startWithBot(t, f, store.SlotWeakBot)

	f.o.AddMoveListener(MoveListenerFunc(func(context.Context, string, game.Move) {
		repo.failUpdates.Store(1000)
	}))
	if err := f.o.MoveWithBotDelay(context.Background(), id, stayMove(t, f.state(t, id)), alice, 0); err != nil {
		t.Fatalf("Move() error = %v", err)
	}
	waitFor(t, "session abort", func() bool { return f.session(t, id).Finished })
	for _, s := range f.slots(t, id) {
		if s.IsWinner {
			t.Fatalf("slot %+v: aborted session has no winner", s)
		}
	}
	if f.o.timers.pending(id) {
		t.Fatal("no bot turn may stay pending after abort")
	}
}

func TestWinningMoveNotifiesEachListenerOnce(t *testing.T) {
	f := newFixture(t, 0)
	alice, id := startWithBot(t, f, store.SlotWeakBot)
	move := rigWin(t, f, id)

	var mu sync.Mutex
	got := map[string][]game.Move{}
	for _, name := range []string{"ledger", "push"} {
		f.o.AddMoveListener(MoveListenerFunc(func(_ context.Context, sessionID string, m game.Move) {
			mu.Lock()
			defer mu.Unlock()
			if sessionID == id {
				got[name] = append(got[name], m)
			}
		}))
	}
	if err := f.o.MoveWithBotDelay(context.Background(), id, move, alice, 0); err != nil {
		t.Fatalf("winning Move() error = %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	for _, name := range []string{"ledger", "push"} {
		calls := got[name]
		if len(calls) != 1 {
			t.Fatalf("listener %s called %d times, want 1", name, len(calls))
		}
		if calls[0].PlayerIndex != 0 || calls[0].CollectedTreasure == nil || *calls[0].CollectedTreasure != *move.CollectedTreasure {
			t.Fatalf("listener %s saw %+v, want the winning move", name, calls[0])
		}
	}
}

func TestConcurrentMovesOnOneTurnAreSerialized(t *testing.T) {
	f := newFixture(t, time.Hour)
	alice, id := startWithBot(t, f, store.SlotWeakBot)
	move := stayMove(t, f.state(t, id))

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- f.o.Move(context.Background(), id, move, alice)
		}()
	}
	wg.Wait()
	close(errs)

	ok, invalid := 0, 0
	for err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrInvalidMove):
			invalid++
		default:
			t.Fatalf("unexpected move error: %v", err)
		}
	}
	if ok != 1 || invalid != 7 {
		t.Fatalf("ok=%d invalid=%d, want exactly one applied move", ok, invalid)
	}
	if st := f.state(t, id); st.MoveCount != 1 || st.Turn != 1 {
		t.Fatalf("moveCount=%d turn=%d, want 1 and 1", st.MoveCount, st.Turn)
	}
}

func TestStaleBotTimerIsNoop(t *testing.T) {
	f := newFixture(t, time.Hour)
	alice, id := startWithBot(t, f, store.SlotWeakBot)

	if err := f.o.Move(context.Background(), id, stayMove(t, f.state(t, id)), alice); err != nil {
		t.Fatalf("Move() error = %v", err)
	}
	if !f.o.timers.pending(id) {
		t.Fatal("bot turn should be pending")
	}
	if err := f.st.DeleteSession(context.Background(), id); err != nil {
		t.Fatalf("delete session: %v", err)
	}
	out, err := f.o.botStep(context.Background(), id)
	if !errors.Is(err, errStaleBotTurn) || out.moved {
		t.Fatalf("botStep on deleted session = %+v, %v, want stale no-op", out, err)
	}
}

func TestBotTimersReplaceAndCancel(t *testing.T) {
	b := newBotTimers()
	fired := make(chan string, 2)
	b.schedule("s", time.Hour, func() { fired <- "old" })
	b.schedule("s", time.Millisecond, func() { fired <- "new" })
	select {
	case got := <-fired:
		if got != "new" {
			t.Fatalf("fired %q, want new", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timer never fired")
	}

	b.schedule("s", time.Hour, func() { fired <- "cancelled" })
	b.cancel("s")
	if b.pending("s") {
		t.Fatal("cancelled timer still pending")
	}
	b.stopAll()
	b.schedule("s", time.Millisecond, func() { fired <- "closed" })
	select {
	case got := <-fired:
		t.Fatalf("fired %q after stopAll", got)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestListenersOrderAndRemoval(t *testing.T) {
	var reg listenerRegistry
	var order []string
	a := reg.add(MoveListenerFunc(func(context.Context, string, game.Move) { order = append(order, "a") }))
	reg.add(MoveListenerFunc(func(context.Context, string, game.Move) { panic("boom") }))
	reg.add(MoveListenerFunc(func(context.Context, string, game.Move) { order = append(order, "c") }))

	reg.notify(context.Background(), "s", game.Move{})
	if len(order) != 2 || order[0] != "a" || order[1] != "c" {
		t.Fatalf("order = %v, want [a c]", order)
	}
	if !reg.remove(a) || reg.remove(a) {
		t.Fatal("remove should succeed once")
	}
	order = nil
	reg.notify(context.Background(), "s", game.Move{})
	if len(order) != 1 || order[0] != "c" {
		t.Fatalf("order = %v, want [c]", order)
	}
}

func TestMapError(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{fmt.Errorf("%w: x", ErrInvalidSetup), http.StatusBadRequest, "invalid_setup"},
		{ErrSessionNotFound, http.StatusNotFound, "session_not_found"},
		{ErrSessionFull, http.StatusConflict, "session_full"},
		{ErrNoPermission, http.StatusForbidden, "no_permission"},
		{fmt.Errorf("%w: bad", ErrInvalidMove), http.StatusBadRequest, "invalid_move"},
		{ErrGameFinished, http.StatusConflict, "game_finished"},
		{errors.New("db down"), http.StatusInternalServerError, "internal_error"},
	}
	for _, c := range cases {
		status, code := MapError(c.err)
		if status != c.status || code != c.code {
			t.Fatalf("MapError(%v) = %d %q, want %d %q", c.err, status, code, c.status, c.code)
		}
	}
}
