package game

import (
	"github.com/rs/zerolog"

	"github.com/mitchelldurbincs/TacticsBattleCore/internal/game/core"
	"github.com/mitchelldurbincs/TacticsBattleCore/internal/game/events"
)

// TurnProcessor handles the hand-over from one player to the next
type TurnProcessor struct {
	battle *Battle
	logger zerolog.Logger
}

func NewTurnProcessor(b *Battle) *TurnProcessor {
	return &TurnProcessor{
		battle: b,
		logger: b.logger.With().Str("component", "TurnProcessor").Logger(),
	}
}

// AdvanceTurn rotates to the next player, counting a new round on wrap, and
// runs the per-tile turn pass: the new player's units get their budgets
// back, and buildings take their siege step.
func (tp *TurnProcessor) AdvanceTurn() error {
	b := tp.battle
	if err := b.requireCommands(); err != nil {
		return err
	}

	b.active = (b.active + 1) % len(b.players)
	if b.active == 0 {
		b.round++
		b.stateMachine.Context().Round = b.round
	}
	b.grid.SelectTile(core.InvalidCoordinate)
	active := b.ActivePlayer()

	turnLogger := tp.logger.With().Int("round", b.round).Int("player", int(active)).Logger()
	turnLogger.Debug().Msg("Starting turn")

	reset := 0
	b.grid.ForEach(func(t *core.Tile, _, _ int) {
		if u := b.grid.Unit(t.Occupant); u != nil && u.Owner == active && u.IsAlive() {
			u.ResetForTurn()
			reset++
		}
		if t.Building != nil {
			tp.siegeStep(t, active, turnLogger)
		}
	})

	b.eventBus.Publish(events.NewTurnAdvancedEvent(b.id, active, b.round, reset))
	turnLogger.Debug().Int("units_reset", reset).Msg("Turn started")
	return nil
}

func (tp *TurnProcessor) siegeStep(t *core.Tile, active core.PlayerID, turnLogger zerolog.Logger) {
	b := tp.battle
	building := t.Building
	occupant := b.grid.Unit(t.Occupant)

	switch building.SiegeStep(active, occupant) {
	case core.SiegeAdvanced:
		turnLogger.Debug().
			Str("building", building.TypeID).
			Stringer("at", t.Pos).
			Int("turns_seized", building.TurnsSeized).
			Msg("Siege advanced")
		b.eventBus.Publish(events.NewBuildingSeizedEvent(b.id, building, occupant.Owner))
	case core.SiegeRazed:
		t.Building = nil
		turnLogger.Info().
			Str("building", building.TypeID).
			Stringer("at", t.Pos).
			Int("besieger", int(occupant.Owner)).
			Msg("Building razed")
		b.eventBus.Publish(events.NewBuildingRazedEvent(b.id, building, occupant.Owner))
		if b.onRaze != nil {
			b.onRaze(building, occupant.Owner)
		}
	case core.SiegeLifted:
		turnLogger.Debug().Str("building", building.TypeID).Stringer("at", t.Pos).Msg("Siege lifted")
	}
}

// AdvanceTurn ends the active player's turn.
func (b *Battle) AdvanceTurn() error {
	return b.turnProcessor.AdvanceTurn()
}
