package states

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/mitchelldurbincs/TacticsBattleCore/internal/game/core"
)

// BattleContext is the information states validate transitions against
type BattleContext struct {
	BattleID string
	Logger   zerolog.Logger

	Attacker core.PlayerID
	Defender core.PlayerID

	// Deployed counts placed units per player after PopulateField
	Deployed map[core.PlayerID]int

	StartTime time.Time
	EndTime   time.Time
	Round     int

	Winner    core.PlayerID
	HasWinner bool
}

func NewBattleContext(battleID string, attacker, defender core.PlayerID, logger zerolog.Logger) *BattleContext {
	return &BattleContext{
		BattleID: battleID,
		Logger:   logger.With().Str("battle_id", battleID).Logger(),
		Attacker: attacker,
		Defender: defender,
		Deployed: make(map[core.PlayerID]int),
	}
}

// SetWinner records the winner; it is a no-op once a winner exists.
func (bc *BattleContext) SetWinner(p core.PlayerID) {
	if bc.HasWinner {
		return
	}
	bc.Winner = p
	bc.HasWinner = true
}

// Duration is the time spent in progress so far, or in total once concluded.
func (bc *BattleContext) Duration() time.Duration {
	if bc.StartTime.IsZero() {
		return 0
	}
	if !bc.EndTime.IsZero() {
		return bc.EndTime.Sub(bc.StartTime)
	}
	return time.Since(bc.StartTime)
}
