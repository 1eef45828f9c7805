package game

type TileKind string

const (
	TileL        TileKind = "l"
	TileStraight TileKind = "straight"
	TileT        TileKind = "t"
)

type Heading int

const (
	HeadingNorth Heading = iota
	HeadingEast
	HeadingSouth
	HeadingWest
)

var allHeadings = [4]Heading{HeadingNorth, HeadingEast, HeadingSouth, HeadingWest}

func (h Heading) Valid() bool {
	return h >= HeadingNorth && h <= HeadingWest
}

func (h Heading) Opposite() Heading {
	return (h + 2) % 4
}

func (h Heading) String() string {
	switch h {
	case HeadingNorth:
		return "N"
	case HeadingEast:
		return "E"
	case HeadingSouth:
		return "S"
	case HeadingWest:
		return "W"
	default:
		return "?"
	}
}

func (h Heading) bit() uint8 {
	return 1 << uint(h)
}

func (h Heading) delta() (int, int) {
	switch h {
	case HeadingNorth:
		return 0, -1
	case HeadingEast:
		return 1, 0
	case HeadingSouth:
		return 0, 1
	default:
		return -1, 0
	}
}

// Tile is one board card. Rotation counts clockwise quarter turns.
type Tile struct {
	Kind     TileKind `json:"kind"`
	Rotation int      `json:"rotation"`
	Fixed    bool     `json:"fixed,omitempty"`
	Treasure *int     `json:"treasure,omitempty"`
}

var baseOpenings = map[TileKind]uint8{
	TileL:        HeadingNorth.bit() | HeadingEast.bit(),
	TileStraight: HeadingNorth.bit() | HeadingSouth.bit(),
	TileT:        HeadingEast.bit() | HeadingSouth.bit() | HeadingWest.bit(),
}

func (t Tile) Openings() uint8 {
	mask := baseOpenings[t.Kind]
	for i := 0; i < normRotation(t.Rotation); i++ {
		mask = ((mask << 1) | (mask >> 3)) & 0x0F
	}
	return mask
}

func (t Tile) Open(h Heading) bool {
	return t.Openings()&h.bit() != 0
}

func (t Tile) rotated(quarters int) Tile {
	t.Rotation = normRotation(t.Rotation + quarters)
	return t
}

func (t Tile) clone() Tile {
	if t.Treasure != nil {
		v := *t.Treasure
		t.Treasure = &v
	}
	return t
}

func normRotation(r int) int {
	r %= 4
	if r < 0 {
		r += 4
	}
	return r
}
