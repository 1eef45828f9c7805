package store

import "time"

const (
	EntitySession    = "session"
	EntityPlayerSlot = "player_slot"
)

type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityFriends Visibility = "friends"
	VisibilityPrivate Visibility = "private"
)

func (v Visibility) Valid() bool {
	switch v {
	case VisibilityPublic, VisibilityFriends, VisibilityPrivate:
		return true
	default:
		return false
	}
}

type SlotKind string

const (
	SlotPlayer    SlotKind = "player"
	SlotWeakBot   SlotKind = "weak_bot"
	SlotMediumBot SlotKind = "medium_bot"
	SlotStrongBot SlotKind = "strong_bot"
)

func (k SlotKind) IsBot() bool {
	return k == SlotWeakBot || k == SlotMediumBot || k == SlotStrongBot
}

type Session struct {
	ID         string
	Visibility Visibility
	OwnerID    string
	State      string
	Setup      string
	Started    bool
	Finished   bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (s Session) Snapshot() any {
	return s
}

// PlayerSlot references its session by id only. UserID is empty for bots.
type PlayerSlot struct {
	ID           string
	SessionID    string
	Index        int
	Kind         SlotKind
	UserID       string
	DisplayName  string
	Ready        bool
	IsWinner     bool
	GameFinished bool
	CreatedAt    time.Time
}

func (p PlayerSlot) Snapshot() any {
	return p
}

type User struct {
	ID        string
	Name      string
	GamesWon  int
	GamesLost int
	CreatedAt time.Time
}

type LeaderboardEntry struct {
	UserID    string
	Name      string
	GamesWon  int
	GamesLost int
}

// SessionQuery is a conjunction; zero fields are ignored.
type SessionQuery struct {
	Visibility     Visibility
	OwnerID        string
	ExcludeOwnerID string
	OwnerIDs       []string
	Started        *bool
	Finished       *bool
	Limit          int
}

// Match applies q to s the same way the SQL repository does.
func (q SessionQuery) Match(s Session) bool {
	if q.Visibility != "" && s.Visibility != q.Visibility {
		return false
	}
	if q.OwnerID != "" && s.OwnerID != q.OwnerID {
		return false
	}
	if q.ExcludeOwnerID != "" && s.OwnerID == q.ExcludeOwnerID {
		return false
	}
	if q.OwnerIDs != nil {
		found := false
		for _, id := range q.OwnerIDs {
			if id == s.OwnerID {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if q.Started != nil && s.Started != *q.Started {
		return false
	}
	if q.Finished != nil && s.Finished != *q.Finished {
		return false
	}
	return true
}
