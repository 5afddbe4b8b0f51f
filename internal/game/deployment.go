package game

import (
	"fmt"

	"github.com/mitchelldurbincs/TacticsBattleCore/internal/game/core"
	"github.com/mitchelldurbincs/TacticsBattleCore/internal/game/events"
	"github.com/mitchelldurbincs/TacticsBattleCore/internal/game/states"
)

// attackerSlot is the k-th deployment tile of the attacker: row-major from
// the top-left corner.
func attackerSlot(k, w int) core.Coordinate {
	return core.Coordinate{X: k % w, Y: k / w}
}

// defenderSlot mirrors attackerSlot from the bottom-right corner.
func defenderSlot(k, w, h int) core.Coordinate {
	return core.Coordinate{X: w - 1 - k%w, Y: h - 1 - k/w}
}

// roster expands an army into units in type insertion order. Concrete units
// carried by the army are copied first so wounded veterans keep their HP;
// the rest of each type's count is stamped from the registry.
func (b *Battle) roster(a *core.Army) ([]*core.Unit, error) {
	byType := make(map[string][]*core.Unit)
	for _, u := range a.Soldiers() {
		byType[u.TypeID] = append(byType[u.TypeID], u)
	}

	var out []*core.Unit
	for _, uc := range a.UnitsAndCounts() {
		veterans := byType[uc.TypeID]
		for i := 0; i < uc.Count; i++ {
			if i < len(veterans) {
				u := veterans[i].Copy(a.Owner)
				u.ResetForTurn()
				out = append(out, u)
				continue
			}
			u, err := b.units.Get(uc.TypeID, a.Owner)
			if err != nil {
				return nil, fmt.Errorf("deploy %s for player %d: %w", uc.TypeID, a.Owner, err)
			}
			out = append(out, u)
		}
	}
	return out, nil
}

// PopulateField deploys both armies and starts the battle. The attacker fills
// tiles row by row from (0,0); the defender fills the mirrored order from
// (W-1,H-1). Rows wrap at the grid edge.
func (b *Battle) PopulateField(attacker, defender *core.Army) error {
	if phase := b.Phase(); phase != states.PhaseSetup {
		return fmt.Errorf("populate field in %s phase", phase)
	}
	if attacker == nil || defender == nil {
		return fmt.Errorf("populate field: both armies are required")
	}
	if attacker.Owner != b.Attacker().ID || defender.Owner != b.Defender().ID {
		return fmt.Errorf("populate field: armies owned by %d and %d, battle is %d vs %d: %w",
			attacker.Owner, defender.Owner, b.Attacker().ID, b.Defender().ID, core.ErrUnknownPlayer)
	}

	atk, err := b.roster(attacker)
	if err != nil {
		return err
	}
	def, err := b.roster(defender)
	if err != nil {
		return err
	}
	w, h := b.grid.W, b.grid.H
	if len(atk)+len(def) > w*h {
		return fmt.Errorf("populate field: %d units do not fit a %dx%d grid: %w", len(atk)+len(def), w, h, core.ErrOccupiedTile)
	}

	for k, u := range atk {
		if pos := attackerSlot(k, w); !b.grid.SetUnit(pos, u) {
			return fmt.Errorf("deploy attacker at %s: %w", pos, core.ErrOccupiedTile)
		}
	}
	for k, u := range def {
		if pos := defenderSlot(k, w, h); !b.grid.SetUnit(pos, u) {
			return fmt.Errorf("deploy defender at %s: %w", pos, core.ErrOccupiedTile)
		}
	}
	b.grid.ClearAllTargetPositions()
	b.grid.MustBeConsistent()

	return b.start(len(atk), len(def), "armies deployed")
}

// start hands the first turn to the attacker and moves to InProgress.
func (b *Battle) start(attackerUnits, defenderUnits int, reason string) error {
	b.active = 0
	b.round = 1

	ctx := b.stateMachine.Context()
	ctx.Deployed[b.Attacker().ID] = attackerUnits
	ctx.Deployed[b.Defender().ID] = defenderUnits
	ctx.Round = b.round
	if err := b.stateMachine.TransitionTo(states.PhaseInProgress, reason); err != nil {
		return fmt.Errorf("start battle: %w", err)
	}

	b.logger.Info().
		Int("attacker_units", attackerUnits).
		Int("defender_units", defenderUnits).
		Msg("Armies deployed")
	b.eventBus.Publish(events.NewBattleStartedEvent(b.id, b.grid.W, b.grid.H,
		b.Attacker().ID, b.Defender().ID, attackerUnits, defenderUnits))
	return nil
}

// resume starts a battle whose units were loaded from a save.
func (b *Battle) resume() error {
	counts := make(map[core.PlayerID]int)
	for _, u := range b.grid.Units() {
		if u.IsAlive() {
			counts[u.Owner]++
		}
	}
	return b.start(counts[b.Attacker().ID], counts[b.Defender().ID], "battle restored")
}
