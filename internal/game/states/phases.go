package states

import "fmt"

// BattlePhase is the lifecycle position of one battle
type BattlePhase int

const (
	// PhaseSetup - grid built, armies not yet deployed
	PhaseSetup BattlePhase = iota

	// PhaseInProgress - units deployed, commands accepted
	PhaseInProgress

	// PhaseConcluded - a side has no living units left; terminal
	PhaseConcluded
)

func (p BattlePhase) String() string {
	switch p {
	case PhaseSetup:
		return "Setup"
	case PhaseInProgress:
		return "InProgress"
	case PhaseConcluded:
		return "Concluded"
	default:
		return fmt.Sprintf("Unknown(%d)", int(p))
	}
}

func (p BattlePhase) IsTerminal() bool {
	return p == PhaseConcluded
}

// CanReceiveCommands reports whether move, attack and turn commands are legal
func (p BattlePhase) CanReceiveCommands() bool {
	return p == PhaseInProgress
}

// AllowedTransitions returns the valid phases this phase can transition to
func (p BattlePhase) AllowedTransitions() []BattlePhase {
	switch p {
	case PhaseSetup:
		return []BattlePhase{PhaseInProgress}
	case PhaseInProgress:
		return []BattlePhase{PhaseConcluded}
	default:
		return []BattlePhase{}
	}
}

func (p BattlePhase) CanTransitionTo(target BattlePhase) bool {
	for _, phase := range p.AllowedTransitions() {
		if phase == target {
			return true
		}
	}
	return false
}

// ParsePhase converts a phase name back to a BattlePhase
func ParsePhase(s string) (BattlePhase, error) {
	for _, p := range []BattlePhase{PhaseSetup, PhaseInProgress, PhaseConcluded} {
		if p.String() == s {
			return p, nil
		}
	}
	return PhaseSetup, fmt.Errorf("unknown battle phase %q", s)
}
