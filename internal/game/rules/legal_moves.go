package rules

import (
	"fmt"

	"github.com/mitchelldurbincs/TacticsBattleCore/internal/game/core"
)

// ValidateAttack returns nil when attacker may strike target this turn, or
// one of the core attack reasons (all matching core.ErrInvalidAttack).
func ValidateAttack(g *core.Grid, attacker *core.Unit, target core.Coordinate) error {
	if attacker == nil || !attacker.Caps.Combatant || attacker.Dead {
		return core.ErrNotCombatant
	}
	if attacker.HasAttacked {
		return core.ErrAlreadyAttacked
	}
	if !g.IsInGrid(target) {
		return fmt.Errorf("%w: %v", core.ErrNoTarget, core.ErrOutOfBounds)
	}
	victim := g.UnitAt(target)
	if victim == nil || victim.Dead {
		return core.ErrNoTarget
	}
	if victim.Owner == attacker.Owner {
		return core.ErrFriendlyTarget
	}
	if !attacker.InRange(target) {
		return core.ErrOutOfRange
	}
	return nil
}

// LegalMoveCalculator marks the overlays shown for a selected unit.
type LegalMoveCalculator struct{}

func NewLegalMoveCalculator() *LegalMoveCalculator {
	return &LegalMoveCalculator{}
}

// AttackableTiles lists, row-major, every tile u could attack right now.
func (lmc *LegalMoveCalculator) AttackableTiles(g *core.Grid, u *core.Unit) []core.Coordinate {
	if u == nil || !u.CanAttack() {
		return nil
	}
	var out []core.Coordinate
	r := u.Stats.Range.Max
	for y := u.Pos.Y - r; y <= u.Pos.Y+r; y++ {
		for x := u.Pos.X - r; x <= u.Pos.X+r; x++ {
			c := core.Coordinate{X: x, Y: y}
			if ValidateAttack(g, u, c) == nil {
				out = append(out, c)
			}
		}
	}
	return out
}

// MarkAttackOverlay sets OverlayAttack on every attackable tile and returns
// how many were marked.
func (lmc *LegalMoveCalculator) MarkAttackOverlay(g *core.Grid, u *core.Unit) int {
	tiles := lmc.AttackableTiles(g, u)
	for _, c := range tiles {
		if t, err := g.Get(c); err == nil {
			t.OverlayAttack = true
		}
	}
	return len(tiles)
}

// MarkWalkOverlay sets OverlayWalk on each reachable coordinate.
func (lmc *LegalMoveCalculator) MarkWalkOverlay(g *core.Grid, reachable []core.Coordinate) {
	for _, c := range reachable {
		if t, err := g.Get(c); err == nil {
			t.OverlayWalk = true
		}
	}
}
