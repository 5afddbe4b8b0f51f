package game

import (
	"math/rand"

	"github.com/rs/zerolog/log"

	"github.com/mitchelldurbincs/TacticsBattleCore/internal/game/core"
	"github.com/mitchelldurbincs/TacticsBattleCore/internal/game/processor"
)

// GenerateRandomCommands picks one ready unit of the active player and
// returns a select followed by a click on a random reachable or attackable
// tile. With nothing left to do it returns a lone end_turn. Intended for
// demos and as a baseline opponent.
func GenerateRandomCommands(b *Battle, rng *rand.Rand) []processor.Command {
	player := b.ActivePlayer()
	endTurn := []processor.Command{{Type: processor.CommandEndTurn, Player: player}}

	var ready []*core.Unit
	for _, u := range b.grid.Units() {
		if u.Owner == player && u.IsAlive() && u.HasAction() {
			ready = append(ready, u)
		}
	}
	if len(ready) == 0 {
		return endTurn
	}
	u := ready[rng.Intn(len(ready))]

	var targets []core.Coordinate
	if u.CanAttack() {
		targets = append(targets, b.legalMoves.AttackableTiles(b.grid, u)...)
	}
	// prefer attacking when something is in range
	if len(targets) == 0 && u.MovesLeft > 0 {
		targets = b.pathfinder.ReachableTiles(u)
	}
	if len(targets) == 0 {
		return endTurn
	}
	target := targets[rng.Intn(len(targets))]

	log.Debug().
		Int("player_id", int(player)).
		Int("unit", int(u.ID)).
		Int("from_x", u.Pos.X).Int("from_y", u.Pos.Y).
		Int("to_x", target.X).Int("to_y", target.Y).
		Msg("Generated random command")

	return []processor.Command{
		{Type: processor.CommandSelect, Player: player, Pos: u.Pos},
		{Type: processor.CommandClick, Player: player, Pos: target},
	}
}
