package viewmodel

import "labyrinth-server/internal/game"

type TileView struct {
	Kind     string `json:"kind"`
	Rotation int    `json:"rotation"`
	Openings []int  `json:"openings"`
	Fixed    bool   `json:"fixed"`
	Treasure *int   `json:"treasure,omitempty"`
}

type PlayerBoardView struct {
	Index           int           `json:"index"`
	Position        game.Position `json:"position"`
	Home            game.Position `json:"home"`
	TreasuresLeft   int           `json:"treasures_left"`
	Collected       []int         `json:"collected"`
	CurrentTreasure *int          `json:"current_treasure,omitempty"`
}

type BoardView struct {
	Width       int                 `json:"width"`
	Height      int                 `json:"height"`
	Tiles       [][]TileView        `json:"tiles"`
	LooseTile   TileView            `json:"loose_tile"`
	Players     []PlayerBoardView   `json:"players"`
	TurnIndex   *int                `json:"turn_index"`
	WinnerIndex *int                `json:"winner_index"`
	LastShift   *game.ShiftPosition `json:"last_shift,omitempty"`
	MoveCount   int                 `json:"move_count"`
}

// BuildBoardView renders st for the player at viewerIndex. Only that player's
// current target is included; pass -1 for spectators.
func BuildBoardView(st game.State, viewerIndex int) BoardView {
	rows := make([][]TileView, st.Height)
	for y := 0; y < st.Height; y++ {
		row := make([]TileView, st.Width)
		for x := 0; x < st.Width; x++ {
			tile, _ := st.TileAt(game.Position{X: x, Y: y})
			row[x] = tileView(tile)
		}
		rows[y] = row
	}

	players := make([]PlayerBoardView, 0, len(st.Players))
	for i, p := range st.Players {
		pv := PlayerBoardView{
			Index:         i,
			Position:      p.Position,
			Home:          p.Home,
			TreasuresLeft: len(p.Pending),
			Collected:     append([]int{}, p.Collected...),
		}
		if i == viewerIndex {
			if target, ok := p.CurrentTreasure(); ok {
				pv.CurrentTreasure = &target
			}
		}
		players = append(players, pv)
	}

	view := BoardView{
		Width:       st.Width,
		Height:      st.Height,
		Tiles:       rows,
		LooseTile:   tileView(st.Loose),
		Players:     players,
		WinnerIndex: st.Winner,
		LastShift:   st.LastShift,
		MoveCount:   st.MoveCount,
	}
	if st.Winner == nil {
		turn := st.Turn
		view.TurnIndex = &turn
	}
	return view
}

func tileView(t game.Tile) TileView {
	openings := make([]int, 0, 4)
	for _, h := range []game.Heading{game.HeadingNorth, game.HeadingEast, game.HeadingSouth, game.HeadingWest} {
		if t.Open(h) {
			openings = append(openings, int(h))
		}
	}
	return TileView{
		Kind:     string(t.Kind),
		Rotation: t.Rotation,
		Openings: openings,
		Fixed:    t.Fixed,
		Treasure: t.Treasure,
	}
}
