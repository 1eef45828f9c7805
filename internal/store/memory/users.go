package memory

import (
	"context"
	"sort"

	"labyrinth-server/internal/store"
)

func (s *Store) CreateUser(_ context.Context, u *store.User) error {
	now := s.now()
	if u.ID == "" {
		u.ID = store.NewIDAt(now)
	}
	u.CreatedAt = now
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = *u
	return nil
}

func (s *Store) EnsureUser(_ context.Context, id, name string) (store.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		u = store.User{ID: id, CreatedAt: s.now()}
	}
	if name != "" {
		u.Name = name
	}
	s.users[id] = u
	return u, nil
}

func (s *Store) GetUser(_ context.Context, id string) (store.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return store.User{}, store.ErrNotFound
	}
	return u, nil
}

func (s *Store) AddFriendship(_ context.Context, userID, friendID string, accepted bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.friends[friendKey{userID: userID, friendID: friendID}] = accepted
	return nil
}

func (s *Store) FriendIDs(_ context.Context, userID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := map[string]bool{}
	out := []string{}
	for k, accepted := range s.friends {
		if !accepted {
			continue
		}
		var other string
		switch userID {
		case k.userID:
			other = k.friendID
		case k.friendID:
			other = k.userID
		default:
			continue
		}
		if !seen[other] {
			seen[other] = true
			out = append(out, other)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (s *Store) RecordOutcome(_ context.Context, winnerID string, loserIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[winnerID]; ok {
		u.GamesWon++
		s.users[winnerID] = u
	}
	for _, id := range loserIDs {
		if u, ok := s.users[id]; ok {
			u.GamesLost++
			s.users[id] = u
		}
	}
	return nil
}

func (s *Store) Leaderboard(_ context.Context, limit int) ([]store.LeaderboardEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	s.mu.RLock()
	out := []store.LeaderboardEntry{}
	for _, u := range s.users {
		if u.GamesWon+u.GamesLost == 0 {
			continue
		}
		out = append(out, store.LeaderboardEntry{UserID: u.ID, Name: u.Name, GamesWon: u.GamesWon, GamesLost: u.GamesLost})
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.GamesWon != b.GamesWon {
			return a.GamesWon > b.GamesWon
		}
		if a.GamesLost != b.GamesLost {
			return a.GamesLost < b.GamesLost
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.UserID < b.UserID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
