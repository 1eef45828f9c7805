package game

import (
	"errors"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
)

var ErrInvalidSetup = errors.New("invalid_setup")

const (
	MinBoardSize = 7
	MaxBoardSize = 21
	MinPlayers   = 2
	MaxPlayers   = 4

	defaultSeed = "labyrinth"
)

type CardsRatio struct {
	LCards        float64 `json:"lCards"`
	StraightCards float64 `json:"straightCards"`
	TCards        float64 `json:"tCards"`
}

type TreasureChances struct {
	L        float64 `json:"lCardTreasureChance"`
	Straight float64 `json:"straightCardTreasureChance"`
	T        float64 `json:"tCardTreasureChance"`
	Fixed    float64 `json:"fixCardTreasureChance"`
}

type Setup struct {
	Seed            string          `json:"seed"`
	BoardWidth      int             `json:"boardWidth"`
	BoardHeight     int             `json:"boardHeight"`
	CardsRatio      CardsRatio      `json:"cardsRatio"`
	TreasureChances TreasureChances `json:"treasureCardChances"`
	PlayerCount     int             `json:"playerCount"`
}

var (
	defaultCardsRatio      = CardsRatio{LCards: 15, StraightCards: 13, TCards: 6}
	defaultTreasureChances = TreasureChances{L: 0.4, Straight: 0.1, T: 0.5, Fixed: 0.8}
)

// FinalizeSetup validates raw and fills zero-valued sections with defaults.
func FinalizeSetup(raw Setup) (Setup, error) {
	out := raw
	out.Seed = strings.TrimSpace(out.Seed)
	if out.Seed == "" {
		out.Seed = defaultSeed
	}
	if err := checkDimension("boardWidth", out.BoardWidth); err != nil {
		return Setup{}, err
	}
	if err := checkDimension("boardHeight", out.BoardHeight); err != nil {
		return Setup{}, err
	}
	if out.PlayerCount == 0 {
		out.PlayerCount = MaxPlayers
	}
	if out.PlayerCount < MinPlayers || out.PlayerCount > MaxPlayers {
		return Setup{}, fmt.Errorf("%w: playerCount must be between %d and %d", ErrInvalidSetup, MinPlayers, MaxPlayers)
	}

	r := out.CardsRatio
	if r == (CardsRatio{}) {
		r = defaultCardsRatio
	}
	for _, v := range []float64{r.LCards, r.StraightCards, r.TCards} {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return Setup{}, fmt.Errorf("%w: cardsRatio values must be non-negative", ErrInvalidSetup)
		}
	}
	if r.LCards+r.StraightCards+r.TCards <= 0 {
		return Setup{}, fmt.Errorf("%w: cardsRatio must not be empty", ErrInvalidSetup)
	}
	out.CardsRatio = r

	c := out.TreasureChances
	if c == (TreasureChances{}) {
		c = defaultTreasureChances
	}
	for _, v := range []float64{c.L, c.Straight, c.T, c.Fixed} {
		if v < 0 || v > 1 || math.IsNaN(v) {
			return Setup{}, fmt.Errorf("%w: treasure chances must be within [0,1]", ErrInvalidSetup)
		}
	}
	out.TreasureChances = c
	return out, nil
}

func checkDimension(name string, v int) error {
	if v < MinBoardSize || v > MaxBoardSize {
		return fmt.Errorf("%w: %s must be between %d and %d", ErrInvalidSetup, name, MinBoardSize, MaxBoardSize)
	}
	if v%2 == 0 {
		return fmt.Errorf("%w: %s must be odd", ErrInvalidSetup, name)
	}
	return nil
}

func seedValue(seed string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(seed))
	return int64(h.Sum64() & math.MaxInt64)
}
