package orchestrator

import (
	"cmp"
	"context"
	"slices"

	"labyrinth-server/internal/store"
)

func (o *Orchestrator) FindOne(ctx context.Context, sessionID string) (store.Session, error) {
	return o.loadSession(ctx, sessionID)
}

// FindPlayers lists the session's slots in turn order.
func (o *Orchestrator) FindPlayers(ctx context.Context, sessionID string) ([]store.PlayerSlot, error) {
	if _, err := o.loadSession(ctx, sessionID); err != nil {
		return nil, err
	}
	return o.repo.ListSlots(ctx, sessionID)
}

func (o *Orchestrator) FindOwn(ctx context.Context, userID string) ([]store.Session, error) {
	return o.repo.ListSessions(ctx, store.SessionQuery{OwnerID: userID})
}

// FindAvailableToJoin lists lobbies the user may enter: public ones owned by
// someone else and friends-only ones owned by a friend.
func (o *Orchestrator) FindAvailableToJoin(ctx context.Context, userID string) ([]store.Session, error) {
	notStarted := false
	public, err := o.repo.ListSessions(ctx, store.SessionQuery{
		Visibility:     store.VisibilityPublic,
		ExcludeOwnerID: userID,
		Started:        &notStarted,
	})
	if err != nil {
		return nil, err
	}
	friendIDs, err := o.friends.FriendIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	var shared []store.Session
	if len(friendIDs) > 0 {
		shared, err = o.repo.ListSessions(ctx, store.SessionQuery{
			Visibility: store.VisibilityFriends,
			OwnerIDs:   friendIDs,
			Started:    &notStarted,
		})
		if err != nil {
			return nil, err
		}
	}

	seen := make(map[string]bool, len(public)+len(shared))
	out := make([]store.Session, 0, len(public)+len(shared))
	for _, list := range [][]store.Session{public, shared} {
		for _, s := range list {
			if seen[s.ID] {
				continue
			}
			seen[s.ID] = true
			out = append(out, s)
		}
	}
	// newest first, as the store orders each list
	slices.SortFunc(out, func(a, b store.Session) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	return out, nil
}
