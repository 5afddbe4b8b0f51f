package states

import (
	"fmt"
	"sync"
	"time"

	"github.com/mitchelldurbincs/TacticsBattleCore/internal/game/events"
)

// State represents a battle phase with lifecycle callbacks
type State interface {
	Phase() BattlePhase
	Enter(ctx *BattleContext) error
	Exit(ctx *BattleContext) error
	// Validate checks whether the context allows entering this state
	Validate(ctx *BattleContext) error
}

// Transition represents a state transition in the history
type Transition struct {
	From      BattlePhase
	To        BattlePhase
	Timestamp time.Time
	Reason    string
}

// StateMachine owns the phase of one battle. The transition event is
// published after the lock is released so handlers may query the machine.
type StateMachine struct {
	mu           sync.RWMutex
	currentPhase BattlePhase
	states       map[BattlePhase]State
	context      *BattleContext
	history      []Transition
	publisher    events.Publisher
}

// NewStateMachine starts in PhaseSetup. publisher may be nil.
func NewStateMachine(ctx *BattleContext, publisher events.Publisher) *StateMachine {
	sm := &StateMachine{
		currentPhase: PhaseSetup,
		states:       make(map[BattlePhase]State),
		context:      ctx,
		history:      make([]Transition, 0, 2),
		publisher:    publisher,
	}
	sm.RegisterState(NewSetupState())
	sm.RegisterState(NewInProgressState())
	sm.RegisterState(NewConcludedState())
	return sm
}

// RegisterState replaces the implementation for a phase
func (sm *StateMachine) RegisterState(state State) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.states[state.Phase()] = state
}

func (sm *StateMachine) CurrentPhase() BattlePhase {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.currentPhase
}

// TransitionTo moves to targetPhase if the transition table and the target
// state's Validate allow it. An Enter failure rolls the phase back.
func (sm *StateMachine) TransitionTo(targetPhase BattlePhase, reason string) error {
	sm.mu.Lock()
	from := sm.currentPhase
	if !from.CanTransitionTo(targetPhase) {
		sm.mu.Unlock()
		return fmt.Errorf("invalid transition from %s to %s", from, targetPhase)
	}

	targetState, ok := sm.states[targetPhase]
	if !ok {
		sm.mu.Unlock()
		return fmt.Errorf("no state implementation for phase %s", targetPhase)
	}
	if err := targetState.Validate(sm.context); err != nil {
		sm.mu.Unlock()
		return fmt.Errorf("target state validation failed: %w", err)
	}

	if currentState, ok := sm.states[from]; ok {
		if err := currentState.Exit(sm.context); err != nil {
			sm.context.Logger.Error().
				Err(err).
				Str("from_phase", from.String()).
				Str("to_phase", targetPhase.String()).
				Msg("Error exiting state")
		}
	}

	sm.currentPhase = targetPhase
	if err := targetState.Enter(sm.context); err != nil {
		sm.currentPhase = from
		sm.mu.Unlock()
		return fmt.Errorf("failed to enter state %s: %w", targetPhase, err)
	}
	sm.history = append(sm.history, Transition{
		From:      from,
		To:        targetPhase,
		Timestamp: time.Now(),
		Reason:    reason,
	})
	battleID := sm.context.BattleID
	sm.mu.Unlock()

	if sm.publisher != nil {
		sm.publisher.Publish(events.NewStateTransitionEvent(battleID, from.String(), targetPhase.String(), reason))
	}
	sm.context.Logger.Info().
		Str("from_phase", from.String()).
		Str("to_phase", targetPhase.String()).
		Str("reason", reason).
		Msg("State transition completed")
	return nil
}

// History returns a copy of the transition history
func (sm *StateMachine) History() []Transition {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	history := make([]Transition, len(sm.history))
	copy(history, sm.history)
	return history
}

func (sm *StateMachine) Context() *BattleContext {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.context
}

func (sm *StateMachine) CanTransitionTo(targetPhase BattlePhase) bool {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.currentPhase.CanTransitionTo(targetPhase)
}
