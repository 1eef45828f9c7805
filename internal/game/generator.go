package game

import (
	"errors"
	"fmt"
	"math/rand"
	"strings"
)

type Strategy string

const (
	StrategyWeak   Strategy = "weak"
	StrategyMedium Strategy = "medium"
	StrategyStrong Strategy = "strong"
)

var ErrUnknownStrategy = errors.New("unknown_strategy")

func ParseStrategy(v string) (Strategy, error) {
	switch s := Strategy(strings.ToLower(strings.TrimSpace(v))); s {
	case StrategyWeak, StrategyMedium, StrategyStrong:
		return s, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownStrategy, v)
	}
}

type candidate struct {
	move     Move
	reaches  bool
	distance int
}

func NewMoveGenerator(strategy Strategy) (MoveGenerator, error) {
	var pick func(cands []candidate, rng *rand.Rand) candidate
	switch strategy {
	case StrategyWeak:
		pick = func(cands []candidate, rng *rand.Rand) candidate {
			return cands[rng.Intn(len(cands))]
		}
	case StrategyMedium:
		pick = func(cands []candidate, rng *rand.Rand) candidate {
			for _, c := range cands {
				if c.reaches {
					return c
				}
			}
			return cands[rng.Intn(len(cands))]
		}
	case StrategyStrong:
		pick = func(cands []candidate, _ *rand.Rand) candidate {
			best := cands[0]
			for _, c := range cands[1:] {
				if c.reaches && !best.reaches {
					best = c
					continue
				}
				if c.reaches == best.reaches && c.distance < best.distance {
					best = c
				}
			}
			return best
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, strategy)
	}

	return func(inst Instance) (Move, error) {
		g, ok := inst.(*Game)
		if !ok {
			return Move{}, fmt.Errorf("%w: generator needs a labyrinth game", ErrInvalidState)
		}
		cands := g.state.candidates()
		if len(cands) == 0 {
			return Move{}, fmt.Errorf("%w: no legal move", ErrInvalidMove)
		}
		return pick(cands, g.state.rng()).move, nil
	}, nil
}

func (s *State) rng() *rand.Rand {
	return rand.New(rand.NewSource(seedValue(s.Setup.Seed) + int64(s.MoveCount)*7919 + int64(s.Turn)))
}

// candidates enumerates every legal move of the player on turn.
func (s *State) candidates() []candidate {
	if s.Winner != nil || s.Turn < 0 || s.Turn >= len(s.Players) {
		return nil
	}
	player := s.Players[s.Turn]
	target, hasTarget := player.CurrentTreasure()
	far := s.Width + s.Height

	var out []candidate
	for rot := 0; rot < 4; rot++ {
		for _, sp := range s.legalShifts() {
			next := s.clone()
			next.Loose = next.Loose.rotated(rot)
			next.applyShift(sp)
			from := next.Players[s.Turn].Position
			targetPos, onBoard := Position{}, false
			if hasTarget {
				targetPos, onBoard = next.TreasurePosition(target)
			}
			for _, to := range next.reachable(from) {
				c := candidate{
					move: Move{
						PlayerIndex:       s.Turn,
						RotateBeforeShift: rot,
						Shift:             sp,
						From:              from,
						To:                to,
					},
					distance: far,
				}
				if onBoard {
					c.distance = abs(to.X-targetPos.X) + abs(to.Y-targetPos.Y)
					if c.distance == 0 {
						c.reaches = true
						t := target
						c.move.CollectedTreasure = &t
					}
				}
				out = append(out, c)
			}
		}
	}
	return out
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
