package mcpserver

import (
	"encoding/json"
	"fmt"

	"labyrinth-server/internal/game"
)

const defaultLeaderboardLimit = 50

// decodeArg re-encodes an object argument into dst.
func decodeArg(args map[string]any, name string, dst any) error {
	raw, ok := args[name]
	if !ok || raw == nil {
		return fmt.Errorf("required argument %q not found", name)
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("argument %q: %w", name, err)
	}
	return nil
}

func setupFromArgs(args map[string]any) (game.Setup, error) {
	var setup game.Setup
	if _, ok := args["setup"]; !ok {
		return setup, nil
	}
	err := decodeArg(args, "setup", &setup)
	return setup, err
}

func moveFromArgs(args map[string]any) (game.Move, error) {
	var move game.Move
	err := decodeArg(args, "move", &move)
	return move, err
}
