// Package orchestrator runs the session lifecycle: lobby, ready/start, turn
// authority, bot play and completion. Every read-modify-write of one session
// happens under that session's lock.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"labyrinth-server/internal/game"
	"labyrinth-server/internal/store"
)

const DefaultBotDelay = 500 * time.Millisecond

// Repository is the storage the orchestrator needs. Implementations publish
// every committed write.
type Repository interface {
	CreateSession(ctx context.Context, sess *store.Session, owner *store.PlayerSlot) error
	GetSession(ctx context.Context, id string) (store.Session, error)
	UpdateSession(ctx context.Context, sess store.Session) error
	SaveLobby(ctx context.Context, sess store.Session, slots []store.PlayerSlot) error
	FinishSession(ctx context.Context, sess store.Session, winnerSlotID string) error
	DeleteSession(ctx context.Context, id string) error
	ListSessions(ctx context.Context, q store.SessionQuery) ([]store.Session, error)
	InsertSlot(ctx context.Context, slot *store.PlayerSlot) error
	ListSlots(ctx context.Context, sessionID string) ([]store.PlayerSlot, error)
	UpdateSlot(ctx context.Context, slot store.PlayerSlot) error
	RemoveSlot(ctx context.Context, removed store.PlayerSlot, moved []store.PlayerSlot, sess store.Session) error
}

type Users interface {
	GetUser(ctx context.Context, id string) (store.User, error)
}

type Friends interface {
	FriendIDs(ctx context.Context, userID string) ([]string, error)
}

type Config struct {
	// BotDelay is the pause before a bot answers. Zero plays bots
	// synchronously inside the triggering call.
	BotDelay time.Duration
}

type Orchestrator struct {
	repo    Repository
	users   Users
	friends Friends
	rules   game.Rules
	cfg     Config

	locks     *sessionLocks
	listeners listenerRegistry
	timers    *botTimers

	ctx    context.Context
	cancel context.CancelFunc
}

func New(repo Repository, users Users, friends Friends, rules game.Rules, cfg Config) *Orchestrator {
	if cfg.BotDelay < 0 {
		cfg.BotDelay = 0
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Orchestrator{
		repo:    repo,
		users:   users,
		friends: friends,
		rules:   rules,
		cfg:     cfg,
		locks:   newSessionLocks(),
		timers:  newBotTimers(),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Close cancels pending bot turns. In-flight calls are not interrupted.
func (o *Orchestrator) Close() {
	o.cancel()
	o.timers.stopAll()
}

func (o *Orchestrator) AddMoveListener(l MoveListener) ListenerID {
	return o.listeners.add(l)
}

func (o *Orchestrator) RemoveMoveListener(id ListenerID) bool {
	return o.listeners.remove(id)
}

func (o *Orchestrator) loadSession(ctx context.Context, sessionID string) (store.Session, error) {
	sess, err := o.repo.GetSession(ctx, sessionID)
	if errors.Is(err, store.ErrNotFound) {
		return store.Session{}, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	return sess, err
}

func (o *Orchestrator) loadUser(ctx context.Context, userID string) (store.User, error) {
	if userID == "" {
		return store.User{}, ErrUserNotFound
	}
	u, err := o.users.GetUser(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return store.User{}, fmt.Errorf("%w: %s", ErrUserNotFound, userID)
	}
	return u, err
}

func decodeSetup(sess store.Session) (game.Setup, error) {
	var setup game.Setup
	if err := json.Unmarshal([]byte(sess.Setup), &setup); err != nil {
		return game.Setup{}, fmt.Errorf("decode setup of session %s: %w", sess.ID, err)
	}
	return setup, nil
}

func encodeSetup(setup game.Setup) (string, error) {
	raw, err := json.Marshal(setup)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func slotAt(slots []store.PlayerSlot, index int) (store.PlayerSlot, bool) {
	for _, s := range slots {
		if s.Index == index {
			return s, true
		}
	}
	return store.PlayerSlot{}, false
}

func slotOfUser(slots []store.PlayerSlot, userID string) (store.PlayerSlot, bool) {
	if userID == "" {
		return store.PlayerSlot{}, false
	}
	for _, s := range slots {
		if s.UserID == userID {
			return s, true
		}
	}
	return store.PlayerSlot{}, false
}

// nextFreeIndex is the smallest index not taken by slots.
func nextFreeIndex(slots []store.PlayerSlot) int {
	taken := make(map[int]bool, len(slots))
	for _, s := range slots {
		taken[s.Index] = true
	}
	i := 0
	for taken[i] {
		i++
	}
	return i
}
