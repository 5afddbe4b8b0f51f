package events

import (
	"github.com/mitchelldurbincs/TacticsBattleCore/internal/game/core"
)

// Event type constants
const (
	TypeBattleStarted   = "battle.started"
	TypeBattleConcluded = "battle.concluded"
	TypeTurnAdvanced    = "turn.advanced"
	TypeUnitMoved       = "unit.moved"
	TypeUnitAttacked    = "unit.attacked"
	TypeUnitKilled      = "unit.killed"
	TypeCommandRejected = "command.rejected"
	TypeBuildingSeized  = "building.seized"
	TypeBuildingRazed   = "building.razed"
	TypeStateTransition = "state.transition"
)

// BattleStartedEvent is published once deployment has finished.
type BattleStartedEvent struct {
	BaseEvent
	Width         int
	Height        int
	Attacker      core.PlayerID
	Defender      core.PlayerID
	AttackerUnits int
	DefenderUnits int
}

func NewBattleStartedEvent(battleID string, width, height int, attacker, defender core.PlayerID, attackerUnits, defenderUnits int) *BattleStartedEvent {
	return &BattleStartedEvent{
		BaseEvent:     newBase(TypeBattleStarted, battleID),
		Width:         width,
		Height:        height,
		Attacker:      attacker,
		Defender:      defender,
		AttackerUnits: attackerUnits,
		DefenderUnits: defenderUnits,
	}
}

// UnitMovedEvent carries the walked path so renderers can draw arrows and
// animate after the state has already changed.
type UnitMovedEvent struct {
	BaseEvent
	Metadata EventMetadata
	Unit     core.UnitID
	Owner    core.PlayerID
	From     core.Coordinate
	To       core.Coordinate
	Path     []core.Coordinate
	Cost     int
}

func NewUnitMovedEvent(battleID string, round int, u *core.Unit, from core.Coordinate, path []core.Coordinate, cost int) *UnitMovedEvent {
	return &UnitMovedEvent{
		BaseEvent: newBase(TypeUnitMoved, battleID),
		Metadata:  EventMetadata{PlayerID: int(u.Owner), Round: round},
		Unit:      u.ID,
		Owner:     u.Owner,
		From:      from,
		To:        u.Pos,
		Path:      path,
		Cost:      cost,
	}
}

// UnitAttackedEvent describes one resolved attack, counter-attack included.
type UnitAttackedEvent struct {
	BaseEvent
	Metadata      EventMetadata
	Attacker      core.UnitID
	AttackerOwner core.PlayerID
	Target        core.UnitID
	TargetOwner   core.PlayerID
	At            core.Coordinate
	DamageDealt   int
	DamageTaken   int
	TargetDied    bool
	AttackerDied  bool
}

func NewUnitAttackedEvent(battleID string, round int, attacker, target *core.Unit, at core.Coordinate, dealt, taken int) *UnitAttackedEvent {
	return &UnitAttackedEvent{
		BaseEvent:     newBase(TypeUnitAttacked, battleID),
		Metadata:      EventMetadata{PlayerID: int(attacker.Owner), Round: round},
		Attacker:      attacker.ID,
		AttackerOwner: attacker.Owner,
		Target:        target.ID,
		TargetOwner:   target.Owner,
		At:            at,
		DamageDealt:   dealt,
		DamageTaken:   taken,
		TargetDied:    target.Dead,
		AttackerDied:  attacker.Dead,
	}
}

type UnitKilledEvent struct {
	BaseEvent
	Metadata EventMetadata
	Unit     core.UnitID
	Owner    core.PlayerID
	TypeID   string
	At       core.Coordinate
}

func NewUnitKilledEvent(battleID string, round int, u *core.Unit, at core.Coordinate) *UnitKilledEvent {
	return &UnitKilledEvent{
		BaseEvent: newBase(TypeUnitKilled, battleID),
		Metadata:  EventMetadata{PlayerID: int(u.Owner), Round: round},
		Unit:      u.ID,
		Owner:     u.Owner,
		TypeID:    u.TypeID,
		At:        at,
	}
}

// CommandRejectedEvent reports a routine legality failure.
type CommandRejectedEvent struct {
	BaseEvent
	Player  core.PlayerID
	Command string
	Target  core.Coordinate
	Reason  string
}

func NewCommandRejectedEvent(battleID string, player core.PlayerID, command string, target core.Coordinate, reason error) *CommandRejectedEvent {
	msg := ""
	if reason != nil {
		msg = reason.Error()
	}
	return &CommandRejectedEvent{
		BaseEvent: newBase(TypeCommandRejected, battleID),
		Player:    player,
		Command:   command,
		Target:    target,
		Reason:    msg,
	}
}

type TurnAdvancedEvent struct {
	BaseEvent
	Player core.PlayerID
	Round  int
	// Reset counts the units whose move budget was restored.
	Reset int
}

func NewTurnAdvancedEvent(battleID string, player core.PlayerID, round, reset int) *TurnAdvancedEvent {
	return &TurnAdvancedEvent{
		BaseEvent: newBase(TypeTurnAdvanced, battleID),
		Player:    player,
		Round:     round,
		Reset:     reset,
	}
}

// BuildingSiegeEvent covers both siege progress and razing.
type BuildingSiegeEvent struct {
	BaseEvent
	Building    string
	Owner       core.PlayerID
	Besieger    core.PlayerID
	At          core.Coordinate
	TurnsSeized int
}

func NewBuildingSeizedEvent(battleID string, b *core.Building, besieger core.PlayerID) *BuildingSiegeEvent {
	return &BuildingSiegeEvent{
		BaseEvent:   newBase(TypeBuildingSeized, battleID),
		Building:    b.TypeID,
		Owner:       b.Owner,
		Besieger:    besieger,
		At:          b.Pos,
		TurnsSeized: b.TurnsSeized,
	}
}

func NewBuildingRazedEvent(battleID string, b *core.Building, besieger core.PlayerID) *BuildingSiegeEvent {
	e := NewBuildingSeizedEvent(battleID, b, besieger)
	e.EventType = TypeBuildingRazed
	return e
}

// BattleConcludedEvent fires exactly once per battle.
type BattleConcludedEvent struct {
	BaseEvent
	Winner    core.PlayerID
	Loser     core.PlayerID
	Round     int
	Survivors []core.UnitCount
}

func NewBattleConcludedEvent(battleID string, winner, loser core.PlayerID, round int, survivors []core.UnitCount) *BattleConcludedEvent {
	return &BattleConcludedEvent{
		BaseEvent: newBase(TypeBattleConcluded, battleID),
		Winner:    winner,
		Loser:     loser,
		Round:     round,
		Survivors: survivors,
	}
}

// StateTransitionEvent is published when the battle state machine changes phase
type StateTransitionEvent struct {
	BaseEvent
	FromPhase string
	ToPhase   string
	Reason    string
}

func NewStateTransitionEvent(battleID, fromPhase, toPhase, reason string) *StateTransitionEvent {
	return &StateTransitionEvent{
		BaseEvent: newBase(TypeStateTransition, battleID),
		FromPhase: fromPhase,
		ToPhase:   toPhase,
		Reason:    reason,
	}
}
