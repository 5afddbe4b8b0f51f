package rules

import (
	"github.com/rs/zerolog"

	"github.com/mitchelldurbincs/TacticsBattleCore/internal/game/core"
)

// WinConditionChecker decides whether a death ended the battle
type WinConditionChecker struct {
	logger zerolog.Logger
}

func NewWinConditionChecker(logger zerolog.Logger) *WinConditionChecker {
	return &WinConditionChecker{
		logger: logger.With().Str("component", "WinConditionChecker").Logger(),
	}
}

// SideAlive scans the whole grid for a living unit owned by owner. The scan
// is global on purpose: it runs after every kill.
func SideAlive(g *core.Grid, owner core.PlayerID) bool {
	alive := false
	g.ForEach(func(t *core.Tile, _, _ int) {
		if alive || !t.Occupied() {
			return
		}
		if u := g.Unit(t.Occupant); u != nil && u.Owner == owner && u.IsAlive() {
			alive = true
		}
	})
	return alive
}

// CheckSideEliminated returns (true, winner) once loser has no living unit
// left. players lists the battle's sides; the winner is the first one that
// is not loser.
func (wc *WinConditionChecker) CheckSideEliminated(g *core.Grid, loser core.PlayerID, players []core.PlayerID) (bool, core.PlayerID) {
	if SideAlive(g, loser) {
		wc.logger.Debug().Int("player_id", int(loser)).Msg("Side still has living units")
		return false, loser
	}
	for _, p := range players {
		if p != loser {
			wc.logger.Info().
				Int("winner_player_id", int(p)).
				Int("loser_player_id", int(loser)).
				Msg("Winner determined")
			return true, p
		}
	}
	wc.logger.Warn().Int("player_id", int(loser)).Msg("Side eliminated with no opponent registered")
	return true, loser
}

// Survivors aggregates owner's living units into an Army in row-major grid
// order. That order becomes the type order of the next deployment.
func Survivors(g *core.Grid, owner core.PlayerID) *core.Army {
	army := core.NewArmy(owner)
	g.ForEach(func(t *core.Tile, _, _ int) {
		if !t.Occupied() {
			return
		}
		if u := g.Unit(t.Occupant); u != nil && u.Owner == owner && u.IsAlive() {
			army.AddSoldier(u)
		}
	})
	return army
}
