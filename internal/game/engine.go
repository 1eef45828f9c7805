package game

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrInvalidMove  = errors.New("invalid_move")
	ErrInvalidState = errors.New("invalid_state")
)

// Game is a live labyrinth match. It is not safe for concurrent use.
type Game struct {
	state State
}

func BuildFromSetup(setup Setup, players int) (*Game, error) {
	if players <= 0 {
		players = setup.PlayerCount
	}
	if players < MinPlayers || players > MaxPlayers {
		return nil, fmt.Errorf("%w: cannot seat %d players", ErrInvalidSetup, players)
	}
	if setup.PlayerCount > 0 && players > setup.PlayerCount {
		return nil, fmt.Errorf("%w: %d players exceed playerCount %d", ErrInvalidSetup, players, setup.PlayerCount)
	}
	if err := checkDimension("boardWidth", setup.BoardWidth); err != nil {
		return nil, err
	}
	if err := checkDimension("boardHeight", setup.BoardHeight); err != nil {
		return nil, err
	}
	return &Game{state: newState(setup, players)}, nil
}

func DecodeState(serialized string) (State, error) {
	var st State
	if err := json.Unmarshal([]byte(serialized), &st); err != nil {
		return State{}, fmt.Errorf("%w: %v", ErrInvalidState, err)
	}
	if st.Width <= 0 || st.Height <= 0 || len(st.Tiles) != st.Width*st.Height {
		return State{}, fmt.Errorf("%w: board dimensions do not match tiles", ErrInvalidState)
	}
	if len(st.Players) == 0 || len(st.Players) > MaxPlayers {
		return State{}, fmt.Errorf("%w: %d players", ErrInvalidState, len(st.Players))
	}
	if st.Turn < 0 || st.Turn >= len(st.Players) {
		return State{}, fmt.Errorf("%w: turn %d out of range", ErrInvalidState, st.Turn)
	}
	return st, nil
}

func BuildFromString(serialized string) (*Game, error) {
	st, err := DecodeState(serialized)
	if err != nil {
		return nil, err
	}
	return &Game{state: st}, nil
}

func (g *Game) Stringify() (string, error) {
	raw, err := json.Marshal(g.state)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// State returns a deep copy of the current state.
func (g *Game) State() State {
	return g.state.clone()
}

func (g *Game) TurnOwnerIndex() (int, bool) {
	if g.state.Winner != nil || len(g.state.Players) == 0 {
		return 0, false
	}
	return g.state.Turn, true
}

func (g *Game) WinnerIndex() (int, bool) {
	if g.state.Winner == nil {
		return 0, false
	}
	return *g.state.Winner, true
}

// Move validates and applies m. On error the game is left untouched.
func (g *Game) Move(m Move) error {
	next, err := g.state.play(m)
	if err != nil {
		return err
	}
	g.state = next
	return nil
}

func (s *State) play(m Move) (State, error) {
	if s.Winner != nil {
		return State{}, fmt.Errorf("%w: game is over", ErrInvalidMove)
	}
	if m.PlayerIndex != s.Turn {
		return State{}, fmt.Errorf("%w: player %d moved on turn %d", ErrInvalidMove, m.PlayerIndex, s.Turn)
	}
	if m.RotateBeforeShift < 0 || m.RotateBeforeShift > 3 {
		return State{}, fmt.Errorf("%w: rotation %d out of range", ErrInvalidMove, m.RotateBeforeShift)
	}
	if err := s.checkShift(m.Shift); err != nil {
		return State{}, err
	}

	next := s.clone()
	next.Loose = next.Loose.rotated(m.RotateBeforeShift)
	next.applyShift(m.Shift)

	player := &next.Players[m.PlayerIndex]
	if m.From != player.Position {
		return State{}, fmt.Errorf("%w: from %v is not the player position %v", ErrInvalidMove, m.From, player.Position)
	}
	if !next.inBounds(m.To) || !next.canReach(m.From, m.To) {
		return State{}, fmt.Errorf("%w: %v is not reachable from %v", ErrInvalidMove, m.To, m.From)
	}

	target, hasTarget := player.CurrentTreasure()
	tile := &next.Tiles[next.index(m.To)]
	reached := hasTarget && tile.Treasure != nil && *tile.Treasure == target
	if m.CollectedTreasure != nil && (!reached || *m.CollectedTreasure != target) {
		return State{}, fmt.Errorf("%w: treasure %d was not collected", ErrInvalidMove, *m.CollectedTreasure)
	}
	if reached {
		tile.Treasure = nil
		player.Pending = player.Pending[1:]
		player.Collected = append(player.Collected, target)
	}
	player.Position = m.To
	next.MoveCount++

	if len(player.Pending) == 0 {
		w := m.PlayerIndex
		next.Winner = &w
	} else {
		next.Turn = (next.Turn + 1) % len(next.Players)
	}
	return next, nil
}
