package game

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/mitchelldurbincs/TacticsBattleCore/internal/game/core"
	"github.com/mitchelldurbincs/TacticsBattleCore/internal/game/events"
	"github.com/mitchelldurbincs/TacticsBattleCore/internal/game/pathfinding"
	"github.com/mitchelldurbincs/TacticsBattleCore/internal/game/rules"
	"github.com/mitchelldurbincs/TacticsBattleCore/internal/game/states"
)

// UnitFactory stamps fresh units by registry name. *registry.Registry
// satisfies it.
type UnitFactory interface {
	Get(name string, owner core.PlayerID) (*core.Unit, error)
}

// BattleResult is handed to the strategic layer once a side is wiped out.
type BattleResult struct {
	BattleID  string
	Winner    core.PlayerID
	Loser     core.PlayerID
	Rounds    int
	Survivors *core.Army
}

type ResultHandler func(BattleResult)

// RazeHandler is told about every building destroyed by a siege.
type RazeHandler func(b *core.Building, besieger core.PlayerID)

// Battle runs one tactical fight between an attacker and a defender. It is
// not safe for concurrent use; callers serialise commands.
type Battle struct {
	id     string
	grid   *core.Grid
	units  UnitFactory
	logger zerolog.Logger

	pathfinder    *pathfinding.Pathfinder
	resolver      CombatResolver
	legalMoves    *rules.LegalMoveCalculator
	winCondition  *rules.WinConditionChecker
	eventBus      *events.EventBus
	stateMachine  *states.StateMachine
	turnProcessor *TurnProcessor

	// players[0] is the attacker and acts first
	players []core.Player
	active  int
	round   int

	// lastPath is the start and steps of the latest move, for arrow hints
	lastPath []core.Coordinate

	result   *BattleResult
	onResult ResultHandler
	onRaze   RazeHandler
}

func (b *Battle) ID() string                 { return b.id }
func (b *Battle) Grid() *core.Grid           { return b.grid }
func (b *Battle) EventBus() *events.EventBus { return b.eventBus }
func (b *Battle) Phase() states.BattlePhase  { return b.stateMachine.CurrentPhase() }
func (b *Battle) Round() int                 { return b.round }

func (b *Battle) Pathfinder() *pathfinding.Pathfinder { return b.pathfinder }

// Players returns attacker then defender.
func (b *Battle) Players() []core.Player {
	out := make([]core.Player, len(b.players))
	copy(out, b.players)
	return out
}

func (b *Battle) Attacker() core.Player { return b.players[0] }
func (b *Battle) Defender() core.Player { return b.players[1] }

// ActivePlayer is the player whose units may act.
func (b *Battle) ActivePlayer() core.PlayerID { return b.players[b.active].ID }

// Result returns the outcome once the battle has concluded.
func (b *Battle) Result() (BattleResult, bool) {
	if b.result == nil {
		return BattleResult{}, false
	}
	return *b.result, true
}

func (b *Battle) playerIDs() []core.PlayerID {
	ids := make([]core.PlayerID, len(b.players))
	for i, p := range b.players {
		ids[i] = p.ID
	}
	return ids
}

// InitField resets the grid to plains. Only allowed before deployment.
func (b *Battle) InitField() error {
	if phase := b.Phase(); phase != states.PhaseSetup {
		return fmt.Errorf("init field in %s phase", phase)
	}
	b.grid.InitField()
	return nil
}

// requireCommands checks that the battle accepts commands at all.
func (b *Battle) requireCommands() error {
	phase := b.Phase()
	if phase.IsTerminal() {
		return core.WrapBattleStateError(b.round, phase.String(), core.ErrBattleOver)
	}
	if !phase.CanReceiveCommands() {
		return core.WrapBattleStateError(b.round, phase.String(), fmt.Errorf("battle has not started"))
	}
	return nil
}

// checkActor validates that u is a living arena unit of the active player.
func (b *Battle) checkActor(u *core.Unit) error {
	if err := b.requireCommands(); err != nil {
		return err
	}
	if u == nil || b.grid.Unit(u.ID) != u {
		return core.ErrUnknownUnit
	}
	if u.Owner != b.ActivePlayer() {
		return core.ErrNotYourTurn
	}
	if u.Dead {
		return fmt.Errorf("unit %d is dead", u.ID)
	}
	return nil
}

// reject logs and publishes a refused command. It always returns false so
// callers can return it directly.
func (b *Battle) reject(command string, player core.PlayerID, target core.Coordinate, reason error) bool {
	err := core.WrapCommandError(player, command, target, reason)
	b.logger.Debug().Err(err).Msg("Command rejected")
	b.eventBus.Publish(events.NewCommandRejectedEvent(b.id, player, command, target, reason))
	return false
}
