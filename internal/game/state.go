package game

type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

type ShiftPosition struct {
	Heading Heading `json:"heading"`
	Index   int     `json:"index"`
}

// Move is one full turn: rotate the loose tile, shift it in, then walk From -> To.
type Move struct {
	PlayerIndex       int           `json:"playerIndex"`
	RotateBeforeShift int           `json:"rotateBeforeShift"`
	Shift             ShiftPosition `json:"shiftPosition"`
	From              Position      `json:"from"`
	To                Position      `json:"to"`
	CollectedTreasure *int          `json:"collectedTreasure"`
}

type PlayerState struct {
	Position  Position `json:"position"`
	Home      Position `json:"home"`
	Pending   []int    `json:"pending"`
	Collected []int    `json:"collected"`
}

// CurrentTreasure is the treasure the player has to reach next.
func (p PlayerState) CurrentTreasure() (int, bool) {
	if len(p.Pending) == 0 {
		return 0, false
	}
	return p.Pending[0], true
}

type State struct {
	Setup     Setup          `json:"setup"`
	Width     int            `json:"width"`
	Height    int            `json:"height"`
	Tiles     []Tile         `json:"tiles"`
	Loose     Tile           `json:"loose"`
	Players   []PlayerState  `json:"players"`
	Turn      int            `json:"turn"`
	Winner    *int           `json:"winner,omitempty"`
	LastShift *ShiftPosition `json:"lastShift,omitempty"`
	MoveCount int            `json:"moveCount"`
}

func (s *State) index(p Position) int {
	return p.Y*s.Width + p.X
}

func (s *State) inBounds(p Position) bool {
	return p.X >= 0 && p.Y >= 0 && p.X < s.Width && p.Y < s.Height
}

func (s *State) TileAt(p Position) (Tile, bool) {
	if !s.inBounds(p) {
		return Tile{}, false
	}
	return s.Tiles[s.index(p)], true
}

// TreasurePosition reports where treasure id lies; ok is false when it is on the loose tile or gone.
func (s *State) TreasurePosition(id int) (Position, bool) {
	for i, t := range s.Tiles {
		if t.Treasure != nil && *t.Treasure == id {
			return Position{X: i % s.Width, Y: i / s.Width}, true
		}
	}
	return Position{}, false
}

func (s *State) clone() State {
	out := *s
	out.Tiles = make([]Tile, len(s.Tiles))
	for i, t := range s.Tiles {
		out.Tiles[i] = t.clone()
	}
	out.Loose = s.Loose.clone()
	out.Players = make([]PlayerState, len(s.Players))
	for i, p := range s.Players {
		p.Pending = append([]int(nil), p.Pending...)
		p.Collected = append([]int(nil), p.Collected...)
		out.Players[i] = p
	}
	if s.Winner != nil {
		w := *s.Winner
		out.Winner = &w
	}
	if s.LastShift != nil {
		ls := *s.LastShift
		out.LastShift = &ls
	}
	return out
}
