package game

import (
	"fmt"
	"math/rand"
)

func newState(setup Setup, players int) State {
	rng := rand.New(rand.NewSource(seedValue(setup.Seed)))
	w, h := setup.BoardWidth, setup.BoardHeight
	st := State{
		Setup:  setup,
		Width:  w,
		Height: h,
		Tiles:  make([]Tile, w*h),
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if x%2 == 0 && y%2 == 0 {
				st.Tiles[y*w+x] = fixedTile(x, y, w, h, rng)
				continue
			}
			st.Tiles[y*w+x] = drawTile(rng, setup.CardsRatio)
		}
	}
	st.Loose = drawTile(rng, setup.CardsRatio)

	ids := placeTreasures(&st, rng, players)
	rng.Shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })

	corners := cornerPositions(w, h)
	st.Players = make([]PlayerState, players)
	for i := range st.Players {
		st.Players[i] = PlayerState{Position: corners[i], Home: corners[i]}
	}
	for i, id := range ids {
		p := &st.Players[i%players]
		p.Pending = append(p.Pending, id)
	}
	return st
}

// cornerPositions lists start corners in seating order: opposite corners first.
func cornerPositions(w, h int) [4]Position {
	return [4]Position{
		{X: 0, Y: 0},
		{X: w - 1, Y: h - 1},
		{X: w - 1, Y: 0},
		{X: 0, Y: h - 1},
	}
}

func isCorner(x, y, w, h int) bool {
	return (x == 0 || x == w-1) && (y == 0 || y == h-1)
}

func fixedTile(x, y, w, h int, rng *rand.Rand) Tile {
	switch {
	case x == 0 && y == 0:
		return Tile{Kind: TileL, Rotation: 1, Fixed: true}
	case x == w-1 && y == 0:
		return Tile{Kind: TileL, Rotation: 2, Fixed: true}
	case x == w-1 && y == h-1:
		return Tile{Kind: TileL, Rotation: 3, Fixed: true}
	case x == 0 && y == h-1:
		return Tile{Kind: TileL, Rotation: 0, Fixed: true}
	case y == 0:
		return Tile{Kind: TileT, Rotation: 0, Fixed: true}
	case x == w-1:
		return Tile{Kind: TileT, Rotation: 1, Fixed: true}
	case y == h-1:
		return Tile{Kind: TileT, Rotation: 2, Fixed: true}
	case x == 0:
		return Tile{Kind: TileT, Rotation: 3, Fixed: true}
	default:
		return Tile{Kind: TileT, Rotation: rng.Intn(4), Fixed: true}
	}
}

func drawTile(rng *rand.Rand, ratio CardsRatio) Tile {
	total := ratio.LCards + ratio.StraightCards + ratio.TCards
	r := rng.Float64() * total
	kind := TileT
	switch {
	case r < ratio.LCards:
		kind = TileL
	case r < ratio.LCards+ratio.StraightCards:
		kind = TileStraight
	}
	return Tile{Kind: kind, Rotation: rng.Intn(4)}
}

func treasureChance(t Tile, c TreasureChances) float64 {
	if t.Fixed {
		return c.Fixed
	}
	switch t.Kind {
	case TileL:
		return c.L
	case TileStraight:
		return c.Straight
	default:
		return c.T
	}
}

// placeTreasures puts treasures on every tile but the corners (and on the loose
// tile), forcing extras until each player can be dealt at least one.
func placeTreasures(st *State, rng *rand.Rand, players int) []int {
	slots := make([]*Tile, 0, len(st.Tiles)+1)
	for i := range st.Tiles {
		if isCorner(i%st.Width, i/st.Width, st.Width, st.Height) {
			continue
		}
		slots = append(slots, &st.Tiles[i])
	}
	slots = append(slots, &st.Loose)

	ids := make([]int, 0, len(slots))
	next := 0
	for _, t := range slots {
		if rng.Float64() < treasureChance(*t, st.Setup.TreasureChances) {
			id := next
			t.Treasure = &id
			ids = append(ids, id)
			next++
		}
	}
	for _, t := range slots {
		if len(ids) >= players {
			break
		}
		if t.Treasure != nil {
			continue
		}
		id := next
		t.Treasure = &id
		ids = append(ids, id)
		next++
	}
	return ids
}

func (s *State) checkShift(sp ShiftPosition) error {
	if !sp.Heading.Valid() {
		return fmt.Errorf("%w: unknown shift heading %d", ErrInvalidMove, sp.Heading)
	}
	limit := s.Height
	if sp.Heading == HeadingNorth || sp.Heading == HeadingSouth {
		limit = s.Width
	}
	if sp.Index < 0 || sp.Index >= limit || sp.Index%2 == 0 {
		return fmt.Errorf("%w: shift index %d is not a movable line", ErrInvalidMove, sp.Index)
	}
	if s.LastShift != nil && s.LastShift.Index == sp.Index && s.LastShift.Heading.Opposite() == sp.Heading {
		return fmt.Errorf("%w: shift reverses the previous shift", ErrInvalidMove)
	}
	return nil
}

// shiftLine lists the positions of the shifted line in travel order:
// the first is where the loose tile enters, the last is pushed out.
func (s *State) shiftLine(sp ShiftPosition) []Position {
	var line []Position
	switch sp.Heading {
	case HeadingSouth:
		for y := 0; y < s.Height; y++ {
			line = append(line, Position{X: sp.Index, Y: y})
		}
	case HeadingNorth:
		for y := s.Height - 1; y >= 0; y-- {
			line = append(line, Position{X: sp.Index, Y: y})
		}
	case HeadingEast:
		for x := 0; x < s.Width; x++ {
			line = append(line, Position{X: x, Y: sp.Index})
		}
	case HeadingWest:
		for x := s.Width - 1; x >= 0; x-- {
			line = append(line, Position{X: x, Y: sp.Index})
		}
	}
	return line
}

func (s *State) applyShift(sp ShiftPosition) {
	line := s.shiftLine(sp)
	n := len(line)
	out := s.Tiles[s.index(line[n-1])]
	for i := n - 1; i > 0; i-- {
		s.Tiles[s.index(line[i])] = s.Tiles[s.index(line[i-1])]
	}
	s.Tiles[s.index(line[0])] = s.Loose
	s.Loose = out

	for pi := range s.Players {
		pos := s.Players[pi].Position
		for k, lp := range line {
			if lp != pos {
				continue
			}
			if k == n-1 {
				s.Players[pi].Position = line[0]
			} else {
				s.Players[pi].Position = line[k+1]
			}
			break
		}
	}
	last := sp
	s.LastShift = &last
}

func (s *State) legalShifts() []ShiftPosition {
	out := make([]ShiftPosition, 0, s.Width+s.Height)
	for _, h := range allHeadings {
		limit := s.Height
		if h == HeadingNorth || h == HeadingSouth {
			limit = s.Width
		}
		for i := 1; i < limit; i += 2 {
			sp := ShiftPosition{Heading: h, Index: i}
			if s.checkShift(sp) == nil {
				out = append(out, sp)
			}
		}
	}
	return out
}

// reachable returns every position connected to from, in row-major order.
func (s *State) reachable(from Position) []Position {
	if !s.inBounds(from) {
		return nil
	}
	seen := make([]bool, len(s.Tiles))
	seen[s.index(from)] = true
	queue := []Position{from}
	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]
		tile := s.Tiles[s.index(p)]
		for _, h := range allHeadings {
			if !tile.Open(h) {
				continue
			}
			dx, dy := h.delta()
			q := Position{X: p.X + dx, Y: p.Y + dy}
			if !s.inBounds(q) || seen[s.index(q)] {
				continue
			}
			if !s.Tiles[s.index(q)].Open(h.Opposite()) {
				continue
			}
			seen[s.index(q)] = true
			queue = append(queue, q)
		}
	}
	out := make([]Position, 0, len(queue))
	for i, ok := range seen {
		if ok {
			out = append(out, Position{X: i % s.Width, Y: i / s.Width})
		}
	}
	return out
}

func (s *State) canReach(from, to Position) bool {
	for _, p := range s.reachable(from) {
		if p == to {
			return true
		}
	}
	return false
}
