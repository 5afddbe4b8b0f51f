package states

import (
	"fmt"
	"time"
)

type SetupState struct{}

func NewSetupState() State { return &SetupState{} }

func (s *SetupState) Phase() BattlePhase { return PhaseSetup }

func (s *SetupState) Enter(ctx *BattleContext) error {
	ctx.Logger.Debug().Msg("Entering Setup state")
	return nil
}

func (s *SetupState) Exit(ctx *BattleContext) error {
	ctx.Logger.Debug().
		Interface("deployed", ctx.Deployed).
		Msg("Deployment complete")
	return nil
}

func (s *SetupState) Validate(ctx *BattleContext) error { return nil }

// InProgressState accepts commands until one side is wiped out
type InProgressState struct{}

func NewInProgressState() State { return &InProgressState{} }

func (s *InProgressState) Phase() BattlePhase { return PhaseInProgress }

func (s *InProgressState) Enter(ctx *BattleContext) error {
	ctx.StartTime = time.Now()
	if ctx.Round == 0 {
		ctx.Round = 1
	}
	ctx.Logger.Info().
		Int("attacker", int(ctx.Attacker)).
		Int("defender", int(ctx.Defender)).
		Msg("Battle started")
	return nil
}

func (s *InProgressState) Exit(ctx *BattleContext) error {
	ctx.Logger.Debug().Int("round", ctx.Round).Msg("Leaving in-progress state")
	return nil
}

// Validate refuses to start a battle one side cannot fight.
func (s *InProgressState) Validate(ctx *BattleContext) error {
	if ctx.Attacker == ctx.Defender {
		return fmt.Errorf("attacker and defender are both player %d", ctx.Attacker)
	}
	if ctx.Deployed[ctx.Attacker] == 0 {
		return fmt.Errorf("attacker %d has no deployed units", ctx.Attacker)
	}
	if ctx.Deployed[ctx.Defender] == 0 {
		return fmt.Errorf("defender %d has no deployed units", ctx.Defender)
	}
	return nil
}

type ConcludedState struct{}

func NewConcludedState() State { return &ConcludedState{} }

func (s *ConcludedState) Phase() BattlePhase { return PhaseConcluded }

func (s *ConcludedState) Enter(ctx *BattleContext) error {
	ctx.EndTime = time.Now()
	ctx.Logger.Info().
		Int("winner", int(ctx.Winner)).
		Int("round", ctx.Round).
		Dur("duration", ctx.Duration()).
		Msg("Battle concluded")
	return nil
}

func (s *ConcludedState) Exit(ctx *BattleContext) error {
	return fmt.Errorf("concluded battles are final")
}

func (s *ConcludedState) Validate(ctx *BattleContext) error {
	if !ctx.HasWinner {
		return fmt.Errorf("concluding a battle requires a winner")
	}
	return nil
}
