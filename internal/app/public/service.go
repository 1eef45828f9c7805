package public

import (
	"context"
	"errors"

	"labyrinth-server/internal/game/viewmodel"
	"labyrinth-server/internal/orchestrator"
	"labyrinth-server/internal/store"
)

// Sessions is the read side of the orchestrator.
type Sessions interface {
	FindOne(ctx context.Context, sessionID string) (store.Session, error)
	FindPlayers(ctx context.Context, sessionID string) ([]store.PlayerSlot, error)
	FindOwn(ctx context.Context, userID string) ([]store.Session, error)
	FindAvailableToJoin(ctx context.Context, userID string) ([]store.Session, error)
}

type Users interface {
	GetUser(ctx context.Context, id string) (store.User, error)
	Leaderboard(ctx context.Context, limit int) ([]store.LeaderboardEntry, error)
}

type Friends interface {
	FriendIDs(ctx context.Context, userID string) ([]string, error)
}

type Service struct {
	sessions Sessions
	users    Users
	friends  Friends
}

const leaderboardMaxRows = 100

func NewService(sessions Sessions, users Users, friends Friends) *Service {
	return &Service{sessions: sessions, users: users, friends: friends}
}

// Session returns one session with the board as seen by viewerID. Private
// sessions are only shown to their members.
func (s *Service) Session(ctx context.Context, sessionID, viewerID string) (*viewmodel.SessionView, error) {
	sess, slots, err := s.load(ctx, sessionID, viewerID)
	if err != nil {
		return nil, err
	}
	view, err := viewmodel.BuildSessionView(sess, viewmodel.ViewerIndex(slots, viewerID), true)
	if err != nil {
		return nil, err
	}
	return &view, nil
}

func (s *Service) Board(ctx context.Context, sessionID, viewerID string) (*viewmodel.BoardView, error) {
	view, err := s.Session(ctx, sessionID, viewerID)
	if err != nil {
		return nil, err
	}
	if view.Board == nil {
		return nil, ErrSessionNotFound
	}
	return view.Board, nil
}

func (s *Service) Players(ctx context.Context, sessionID, viewerID string) (*PlayersResponse, error) {
	_, slots, err := s.load(ctx, sessionID, viewerID)
	if err != nil {
		return nil, err
	}
	views, err := s.SlotViews(ctx, slots)
	if err != nil {
		return nil, err
	}
	return &PlayersResponse{SessionID: sessionID, Items: views}, nil
}

// SlotViews resolves the user name of every human slot.
func (s *Service) SlotViews(ctx context.Context, slots []store.PlayerSlot) ([]viewmodel.SlotView, error) {
	names := make(map[string]string, len(slots))
	for _, slot := range slots {
		if slot.UserID == "" || slot.DisplayName != "" {
			continue
		}
		if _, ok := names[slot.UserID]; ok {
			continue
		}
		name, err := s.UserName(ctx, slot.UserID)
		if err != nil {
			return nil, err
		}
		names[slot.UserID] = name
	}
	return viewmodel.BuildSlotViews(slots, names), nil
}

// UserName is empty for users the store does not know.
func (s *Service) UserName(ctx context.Context, userID string) (string, error) {
	u, err := s.users.GetUser(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return u.Name, nil
}

func (s *Service) Available(ctx context.Context, userID string) (*SessionsResponse, error) {
	if userID == "" {
		return nil, ErrInvalidRequest
	}
	items, err := s.sessions.FindAvailableToJoin(ctx, userID)
	if err != nil {
		return nil, err
	}
	return sessionList(items)
}

func (s *Service) Own(ctx context.Context, userID string) (*SessionsResponse, error) {
	if userID == "" {
		return nil, ErrInvalidRequest
	}
	items, err := s.sessions.FindOwn(ctx, userID)
	if err != nil {
		return nil, err
	}
	return sessionList(items)
}

func sessionList(items []store.Session) (*SessionsResponse, error) {
	out := make([]viewmodel.SessionView, 0, len(items))
	for _, it := range items {
		view, err := viewmodel.BuildSessionView(it, -1, false)
		if err != nil {
			return nil, err
		}
		out = append(out, view)
	}
	return &SessionsResponse{Items: out}, nil
}

func (s *Service) Leaderboard(ctx context.Context, limit, offset int) (*LeaderboardResponse, error) {
	allItems, err := s.users.Leaderboard(ctx, leaderboardMaxRows)
	if err != nil {
		return nil, err
	}
	total := len(allItems)
	limit, ok := clampLeaderboardPage(limit, offset)
	if !ok || offset >= total {
		return &LeaderboardResponse{Items: []LeaderboardItem{}, Total: total, Limit: limit, Offset: offset}, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	pageItems := allItems[offset:end]
	out := make([]LeaderboardItem, 0, len(pageItems))
	for idx, it := range pageItems {
		out = append(out, LeaderboardItem{
			Rank:      offset + idx + 1,
			UserID:    it.UserID,
			Name:      it.Name,
			GamesWon:  it.GamesWon,
			GamesLost: it.GamesLost,
			WinRate:   winRate(it.GamesWon, it.GamesLost),
		})
	}
	return &LeaderboardResponse{Items: out, Total: total, Limit: limit, Offset: offset}, nil
}

func (s *Service) load(ctx context.Context, sessionID, viewerID string) (store.Session, []store.PlayerSlot, error) {
	if sessionID == "" {
		return store.Session{}, nil, ErrInvalidRequest
	}
	sess, err := s.sessions.FindOne(ctx, sessionID)
	if errors.Is(err, orchestrator.ErrSessionNotFound) {
		return store.Session{}, nil, ErrSessionNotFound
	}
	if err != nil {
		return store.Session{}, nil, err
	}
	slots, err := s.sessions.FindPlayers(ctx, sessionID)
	if err != nil {
		return store.Session{}, nil, err
	}
	if sess.Visibility == store.VisibilityPrivate && sess.OwnerID != viewerID && viewmodel.ViewerIndex(slots, viewerID) < 0 {
		return store.Session{}, nil, ErrSessionNotFound
	}
	return sess, slots, nil
}

func winRate(won, lost int) float64 {
	if won+lost == 0 {
		return 0
	}
	return float64(won) / float64(won+lost)
}

func clampLeaderboardPage(limit, offset int) (int, bool) {
	if offset >= leaderboardMaxRows {
		return 0, false
	}
	if limit <= 0 {
		limit = 50
	}
	remaining := leaderboardMaxRows - offset
	if limit > remaining {
		limit = remaining
	}
	return limit, true
}
