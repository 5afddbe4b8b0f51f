package processor

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/mitchelldurbincs/TacticsBattleCore/internal/game/core"
)

// CommandType names the input a player can send.
type CommandType string

const (
	CommandSelect  CommandType = "select"
	CommandClick   CommandType = "click"
	CommandEndTurn CommandType = "end_turn"
)

var ErrUnknownCommand = errors.New("unknown command")

func ParseCommandType(s string) (CommandType, error) {
	switch ct := CommandType(s); ct {
	case CommandSelect, CommandClick, CommandEndTurn:
		return ct, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownCommand, s)
}

// Command is one player input. Pos is ignored for end_turn.
type Command struct {
	Type   CommandType     `json:"type"`
	Player core.PlayerID   `json:"player"`
	Pos    core.Coordinate `json:"pos"`
}

// Result pairs a command with its outcome. Err is nil when it was applied.
type Result struct {
	Command Command
	Err     error
}

// Target is the battle surface the processor drives. It lives here so the
// game package can depend on processor without a cycle.
type Target interface {
	ActivePlayer() core.PlayerID
	SelectTile(pos core.Coordinate) bool
	ClickTile(pos core.Coordinate) error
	AdvanceTurn() error
}

// CommandProcessor applies command batches in submission order.
type CommandProcessor struct {
	logger zerolog.Logger
}

func NewCommandProcessor(logger zerolog.Logger) *CommandProcessor {
	return &CommandProcessor{
		logger: logger.With().Str("component", "CommandProcessor").Logger(),
	}
}

// Process applies each command in turn. Commands from a player who is not
// active are refused without touching the battle. Processing continues past
// refusals; the first error is returned alongside every result. A cancelled
// context stops the batch.
func (cp *CommandProcessor) Process(ctx context.Context, target Target, cmds []Command) ([]Result, error) {
	results := make([]Result, 0, len(cmds))
	var encounteredError error

	for _, cmd := range cmds {
		select {
		case <-ctx.Done():
			cp.logger.Warn().Err(ctx.Err()).Int("applied", len(results)).Msg("Command processing interrupted by context cancellation")
			return results, ctx.Err()
		default:
		}

		err := cp.apply(target, cmd)
		if err != nil {
			err = core.WrapCommandError(cmd.Player, string(cmd.Type), cmd.Pos, err)
			cp.logger.Debug().Err(err).Msg("Command refused")
			if encounteredError == nil {
				encounteredError = err
			}
		}
		results = append(results, Result{Command: cmd, Err: err})
	}
	return results, encounteredError
}

func (cp *CommandProcessor) apply(target Target, cmd Command) error {
	if cmd.Player != target.ActivePlayer() {
		return core.ErrNotYourTurn
	}

	cp.logger.Debug().
		Int("player_id", int(cmd.Player)).
		Str("command", string(cmd.Type)).
		Int("x", cmd.Pos.X).
		Int("y", cmd.Pos.Y).
		Msg("Applying command")

	switch cmd.Type {
	case CommandSelect:
		if !target.SelectTile(cmd.Pos) {
			return core.ErrNoSelection
		}
		return nil
	case CommandClick:
		return target.ClickTile(cmd.Pos)
	case CommandEndTurn:
		return target.AdvanceTurn()
	default:
		return fmt.Errorf("%w: %q", ErrUnknownCommand, cmd.Type)
	}
}
