package game

// Instance is the rules-engine state the session orchestrator drives.
type Instance interface {
	Move(m Move) error
	Stringify() (string, error)
	TurnOwnerIndex() (int, bool)
	WinnerIndex() (int, bool)
}

type MoveGenerator func(inst Instance) (Move, error)

type Rules interface {
	FinalizeSetup(raw Setup) (Setup, error)
	BuildFromSetup(setup Setup, players int) (Instance, error)
	BuildFromString(serialized string) (Instance, error)
	MoveGenerator(strategy Strategy) (MoveGenerator, error)
}

// Labyrinth is the Rules implementation backed by Game.
type Labyrinth struct{}

func NewLabyrinth() Labyrinth {
	return Labyrinth{}
}

func (Labyrinth) FinalizeSetup(raw Setup) (Setup, error) {
	return FinalizeSetup(raw)
}

func (Labyrinth) BuildFromSetup(setup Setup, players int) (Instance, error) {
	g, err := BuildFromSetup(setup, players)
	if err != nil {
		return nil, err
	}
	return g, nil
}

func (Labyrinth) BuildFromString(serialized string) (Instance, error) {
	g, err := BuildFromString(serialized)
	if err != nil {
		return nil, err
	}
	return g, nil
}

func (Labyrinth) MoveGenerator(strategy Strategy) (MoveGenerator, error) {
	return NewMoveGenerator(strategy)
}
