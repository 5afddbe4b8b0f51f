package game

import (
	"math/rand"

	"github.com/mitchelldurbincs/TacticsBattleCore/internal/game/core"
	"github.com/mitchelldurbincs/TacticsBattleCore/internal/game/events"
	"github.com/mitchelldurbincs/TacticsBattleCore/internal/game/rules"
	"github.com/mitchelldurbincs/TacticsBattleCore/internal/game/states"
)

// CombatOutcome describes what one resolved attack did.
type CombatOutcome struct {
	Hit         bool
	DamageDealt int
	Countered   bool
	DamageTaken int
}

// CombatResolver applies the effect of a legal attack to both units. It may
// kill either of them; the battle handles removal afterwards.
type CombatResolver interface {
	Resolve(g *core.Grid, attacker, target *core.Unit) CombatOutcome
}

// DefaultResolver deals attack minus defense (terrain included, at least 1).
// With an rng, a strike lands when a roll under 100 beats hit minus dodge.
type DefaultResolver struct {
	rng           *rand.Rand
	counterAttack bool
}

func NewDefaultResolver(rng *rand.Rand, counterAttack bool) *DefaultResolver {
	return &DefaultResolver{rng: rng, counterAttack: counterAttack}
}

func (r *DefaultResolver) strike(g *core.Grid, from, to *core.Unit) (bool, int) {
	if r.rng != nil {
		chance := from.Stats.Hit - to.Stats.Dodge - g.DodgeBonus(to.Pos)
		if r.rng.Intn(100) >= chance {
			return false, 0
		}
	}
	dmg := from.Stats.Attack - to.Stats.Defense - g.DefenseBonus(to.Pos)
	if dmg < 1 {
		dmg = 1
	}
	to.TakeDamage(dmg)
	return true, dmg
}

func (r *DefaultResolver) Resolve(g *core.Grid, attacker, target *core.Unit) CombatOutcome {
	var out CombatOutcome
	out.Hit, out.DamageDealt = r.strike(g, attacker, target)
	if r.counterAttack && target.IsAlive() && target.Caps.Combatant && target.InRange(attacker.Pos) {
		out.Countered = true
		_, out.DamageTaken = r.strike(g, target, attacker)
	}
	return out
}

// Attack makes attacker strike the unit on target. It returns false, with a
// command.rejected event, when the attack is not legal.
func (b *Battle) Attack(target core.Coordinate, attacker *core.Unit) bool {
	if attacker == nil {
		return b.reject("attack", b.ActivePlayer(), target, core.ErrNotCombatant)
	}
	if err := b.checkActor(attacker); err != nil {
		return b.reject("attack", attacker.Owner, target, err)
	}
	if err := rules.ValidateAttack(b.grid, attacker, target); err != nil {
		return b.reject("attack", attacker.Owner, target, err)
	}

	victim := b.grid.UnitAt(target)
	attacker.HasAttacked = true
	outcome := b.resolver.Resolve(b.grid, attacker, victim)

	b.logger.Debug().
		Int("attacker", int(attacker.ID)).
		Int("target", int(victim.ID)).
		Bool("hit", outcome.Hit).
		Int("dealt", outcome.DamageDealt).
		Int("taken", outcome.DamageTaken).
		Msg("Attack resolved")
	b.eventBus.Publish(events.NewUnitAttackedEvent(b.id, b.round, attacker, victim, target, outcome.DamageDealt, outcome.DamageTaken))

	if victim.Dead {
		b.OnKillSoldier(victim)
	}
	if attacker.Dead {
		b.OnKillSoldier(attacker)
	}
	return true
}

// OnKillSoldier removes a dead unit from the field and re-runs the global
// win check for its side. The battle concludes at most once.
func (b *Battle) OnKillSoldier(u *core.Unit) {
	if u == nil || b.grid.Unit(u.ID) != u {
		return
	}
	at := u.Pos
	b.grid.RemoveUnit(u)

	b.logger.Info().
		Int("unit", int(u.ID)).
		Str("type", u.TypeID).
		Int("owner", int(u.Owner)).
		Stringer("at", at).
		Msg("Unit killed")
	b.eventBus.Publish(events.NewUnitKilledEvent(b.id, b.round, u, at))

	if b.result != nil {
		return
	}
	over, winner := b.winCondition.CheckSideEliminated(b.grid, u.Owner, b.playerIDs())
	if !over {
		return
	}
	b.conclude(winner, u.Owner)
}

func (b *Battle) conclude(winner, loser core.PlayerID) {
	survivors := rules.Survivors(b.grid, winner)
	b.result = &BattleResult{
		BattleID:  b.id,
		Winner:    winner,
		Loser:     loser,
		Rounds:    b.round,
		Survivors: survivors,
	}

	ctx := b.stateMachine.Context()
	ctx.SetWinner(winner)
	ctx.Round = b.round
	if err := b.stateMachine.TransitionTo(states.PhaseConcluded, "side eliminated"); err != nil {
		b.logger.Error().Err(err).Msg("Failed to conclude battle")
	}
	b.grid.SelectTile(core.InvalidCoordinate)

	b.eventBus.Publish(events.NewBattleConcludedEvent(b.id, winner, loser, b.round, survivors.UnitsAndCounts()))
	if b.onResult != nil {
		b.onResult(*b.result)
	}
}
