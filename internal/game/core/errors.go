package core

import (
	"errors"
	"fmt"
)

var (
	ErrOutOfBounds   = errors.New("position outside grid")
	ErrOccupiedTile  = errors.New("tile is occupied")
	ErrUnreachable   = errors.New("target unreachable")
	ErrInvalidAttack = errors.New("invalid attack")
	ErrBattleOver    = errors.New("battle is over")
	ErrUnknownPlayer = errors.New("unknown player")
	ErrUnknownUnit   = errors.New("unknown unit type")
	ErrNoSelection   = errors.New("no unit selected")
	ErrNotYourTurn   = errors.New("unit does not belong to the active player")

	// ErrDuplicateOccupant signals corrupted occupancy state. It is never
	// returned for routine legality checks; Grid panics with it.
	ErrDuplicateOccupant = errors.New("duplicate occupant")
)

// Attack refusal reasons. All of them match ErrInvalidAttack with errors.Is.
var (
	ErrAlreadyAttacked = fmt.Errorf("%w: unit already attacked this turn", ErrInvalidAttack)
	ErrNoTarget        = fmt.Errorf("%w: no living unit on target tile", ErrInvalidAttack)
	ErrFriendlyTarget  = fmt.Errorf("%w: target is owned by the attacker", ErrInvalidAttack)
	ErrOutOfRange      = fmt.Errorf("%w: target out of range", ErrInvalidAttack)
	ErrNotCombatant    = fmt.Errorf("%w: unit cannot attack", ErrInvalidAttack)
)

// CommandError adds the acting player and target position to a command failure.
type CommandError struct {
	PlayerID PlayerID
	Command  string
	Target   Coordinate
	Err      error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("player %d: %s at %s: %v", e.PlayerID, e.Command, e.Target, e.Err)
}

func (e *CommandError) Unwrap() error { return e.Err }

// WrapCommandError returns nil when err is nil.
func WrapCommandError(player PlayerID, command string, target Coordinate, err error) error {
	if err == nil {
		return nil
	}
	return &CommandError{PlayerID: player, Command: command, Target: target, Err: err}
}

// WrapBattleStateError tags err with the round and phase it happened in.
func WrapBattleStateError(round int, phase string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("battle round %d [%s]: %w", round, phase, err)
}

// InvariantError describes a violated grid invariant. It always wraps
// ErrDuplicateOccupant or ErrOutOfBounds.
type InvariantError struct {
	Op   string
	Pos  Coordinate
	Unit UnitID
	Err  error
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("grid invariant violated in %s at %s (unit %d): %v", e.Op, e.Pos, e.Unit, e.Err)
}

func (e *InvariantError) Unwrap() error { return e.Err }
