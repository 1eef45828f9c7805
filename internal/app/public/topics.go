package public

import (
	"context"
	"fmt"

	"labyrinth-server/internal/fanout"
	"labyrinth-server/internal/game/viewmodel"
	"labyrinth-server/internal/store"
)

type TopicKind string

const (
	// TopicSession follows one session, or the joinable lobbies when no
	// session id is given.
	TopicSession TopicKind = "session"
	// TopicPlayers follows the slots of one session.
	TopicPlayers TopicKind = "players"
)

func (k TopicKind) Valid() bool {
	return k == TopicSession || k == TopicPlayers
}

// Topic is everything a gateway needs to serve one subscription: the broker
// entity and options, plus the snapshot sent before incremental events.
type Topic struct {
	Kind      TopicKind
	SessionID string
	Entity    string
	Options   fanout.Options
	Init      any
}

// OpenTopic checks that viewerID may follow the topic and builds it. The
// init snapshot is read before the caller subscribes, so the first events
// may repeat what it already shows.
func (s *Service) OpenTopic(ctx context.Context, kind TopicKind, sessionID, viewerID string) (*Topic, error) {
	switch {
	case kind == TopicSession && sessionID == "":
		return s.lobbyTopic(ctx, viewerID)
	case kind == TopicSession:
		return s.sessionTopic(ctx, sessionID, viewerID)
	case kind == TopicPlayers && sessionID != "":
		return s.playersTopic(ctx, sessionID, viewerID)
	default:
		return nil, ErrInvalidRequest
	}
}

func (s *Service) sessionTopic(ctx context.Context, sessionID, viewerID string) (*Topic, error) {
	init, err := s.Session(ctx, sessionID, viewerID)
	if err != nil {
		return nil, err
	}
	return &Topic{
		Kind:      TopicSession,
		SessionID: sessionID,
		Entity:    store.EntitySession,
		Init:      init,
		Options: fanout.Options{
			Filter: func(_ context.Context, value any, _ fanout.Operation) (bool, error) {
				sess, err := asSession(value)
				return err == nil && sess.ID == sessionID, err
			},
			Transform: func(ctx context.Context, value any, op fanout.Operation) (any, error) {
				sess, err := asSession(value)
				if err != nil {
					return nil, err
				}
				if op == fanout.OpRemove {
					return viewmodel.BuildSessionView(sess, -1, false)
				}
				slots, err := s.sessions.FindPlayers(ctx, sess.ID)
				if err != nil {
					return nil, err
				}
				return viewmodel.BuildSessionView(sess, viewmodel.ViewerIndex(slots, viewerID), true)
			},
		},
	}, nil
}

func (s *Service) lobbyTopic(ctx context.Context, viewerID string) (*Topic, error) {
	items, err := s.sessions.FindAvailableToJoin(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	init, err := sessionList(items)
	if err != nil {
		return nil, err
	}
	return &Topic{
		Kind:   TopicSession,
		Entity: store.EntitySession,
		Init:   init,
		Options: fanout.Options{
			Filter: func(ctx context.Context, value any, _ fanout.Operation) (bool, error) {
				sess, err := asSession(value)
				if err != nil {
					return false, err
				}
				return s.joinableBy(ctx, sess, viewerID)
			},
			Transform: func(_ context.Context, value any, _ fanout.Operation) (any, error) {
				sess, err := asSession(value)
				if err != nil {
					return nil, err
				}
				return viewmodel.BuildSessionView(sess, -1, false)
			},
		},
	}, nil
}

// joinableBy mirrors FindAvailableToJoin for a single session. Started
// sessions still match so followers see them leave the lobby.
func (s *Service) joinableBy(ctx context.Context, sess store.Session, viewerID string) (bool, error) {
	if viewerID != "" && sess.OwnerID == viewerID {
		return false, nil
	}
	switch sess.Visibility {
	case store.VisibilityPublic:
		return true, nil
	case store.VisibilityFriends:
		if viewerID == "" {
			return false, nil
		}
		ids, err := s.friends.FriendIDs(ctx, viewerID)
		if err != nil {
			return false, err
		}
		for _, id := range ids {
			if id == sess.OwnerID {
				return true, nil
			}
		}
		return false, nil
	default:
		return false, nil
	}
}

func (s *Service) playersTopic(ctx context.Context, sessionID, viewerID string) (*Topic, error) {
	init, err := s.Players(ctx, sessionID, viewerID)
	if err != nil {
		return nil, err
	}
	return &Topic{
		Kind:      TopicPlayers,
		SessionID: sessionID,
		Entity:    store.EntityPlayerSlot,
		Init:      init,
		Options: fanout.Options{
			Filter: func(_ context.Context, value any, _ fanout.Operation) (bool, error) {
				slot, err := asSlot(value)
				return err == nil && slot.SessionID == sessionID, err
			},
			Transform: func(ctx context.Context, value any, _ fanout.Operation) (any, error) {
				slot, err := asSlot(value)
				if err != nil {
					return nil, err
				}
				name := ""
				if slot.UserID != "" && slot.DisplayName == "" {
					if name, err = s.UserName(ctx, slot.UserID); err != nil {
						return nil, err
					}
				}
				return viewmodel.BuildSlotView(slot, name), nil
			},
		},
	}, nil
}

func asSession(value any) (store.Session, error) {
	switch v := value.(type) {
	case store.Session:
		return v, nil
	case *store.Session:
		return *v, nil
	default:
		return store.Session{}, fmt.Errorf("unexpected session value %T", value)
	}
}

func asSlot(value any) (store.PlayerSlot, error) {
	switch v := value.(type) {
	case store.PlayerSlot:
		return v, nil
	case *store.PlayerSlot:
		return *v, nil
	default:
		return store.PlayerSlot{}, fmt.Errorf("unexpected slot value %T", value)
	}
}
