package subscribers

import (
	"encoding/json"

	"github.com/rs/zerolog"

	"github.com/mitchelldurbincs/TacticsBattleCore/internal/game/events"
)

// LoggerSubscriber logs battle events as structured log lines
type LoggerSubscriber struct {
	id              string
	logger          zerolog.Logger
	logLevel        zerolog.Level
	eventTypeFilter map[string]bool // nil logs everything
	devMode         bool            // adds the full event as JSON
}

func NewLoggerSubscriber(id string, logger zerolog.Logger, logLevel zerolog.Level) *LoggerSubscriber {
	return &LoggerSubscriber{
		id:       id,
		logger:   logger.With().Str("subscriber", "event_logger").Logger(),
		logLevel: logLevel,
	}
}

func (ls *LoggerSubscriber) ID() string {
	return ls.id
}

// SetEventFilter sets which event types to log (empty means log all)
func (ls *LoggerSubscriber) SetEventFilter(eventTypes []string) {
	if len(eventTypes) == 0 {
		ls.eventTypeFilter = nil
		return
	}
	ls.eventTypeFilter = make(map[string]bool, len(eventTypes))
	for _, eventType := range eventTypes {
		ls.eventTypeFilter[eventType] = true
	}
}

func (ls *LoggerSubscriber) SetDevMode(enabled bool) {
	ls.devMode = enabled
}

func (ls *LoggerSubscriber) InterestedIn(eventType string) bool {
	if ls.eventTypeFilter == nil {
		return true
	}
	return ls.eventTypeFilter[eventType]
}

func (ls *LoggerSubscriber) HandleEvent(event events.Event) {
	logEvent := ls.logger.WithLevel(ls.logLevel).
		Str("event_type", event.Type()).
		Str("battle_id", event.BattleID()).
		Time("timestamp", event.Timestamp())

	switch e := event.(type) {
	case *events.BattleStartedEvent:
		logEvent.
			Int("width", e.Width).
			Int("height", e.Height).
			Int("attacker", int(e.Attacker)).
			Int("defender", int(e.Defender)).
			Int("attacker_units", e.AttackerUnits).
			Int("defender_units", e.DefenderUnits)

	case *events.UnitMovedEvent:
		logEvent.
			Int("unit_id", int(e.Unit)).
			Int("player_id", int(e.Owner)).
			Stringer("from", e.From).
			Stringer("to", e.To).
			Int("cost", e.Cost)

	case *events.UnitAttackedEvent:
		logEvent.
			Int("attacker_id", int(e.Attacker)).
			Int("target_id", int(e.Target)).
			Stringer("at", e.At).
			Int("damage_dealt", e.DamageDealt).
			Int("damage_taken", e.DamageTaken).
			Bool("target_died", e.TargetDied).
			Bool("attacker_died", e.AttackerDied)

	case *events.UnitKilledEvent:
		logEvent.
			Int("unit_id", int(e.Unit)).
			Int("player_id", int(e.Owner)).
			Str("unit_type", e.TypeID).
			Stringer("at", e.At)

	case *events.CommandRejectedEvent:
		logEvent.
			Int("player_id", int(e.Player)).
			Str("command", e.Command).
			Stringer("target", e.Target).
			Str("reason", e.Reason)

	case *events.TurnAdvancedEvent:
		logEvent.
			Int("player_id", int(e.Player)).
			Int("round", e.Round).
			Int("units_reset", e.Reset)

	case *events.BuildingSiegeEvent:
		logEvent.
			Str("building", e.Building).
			Int("owner", int(e.Owner)).
			Int("besieger", int(e.Besieger)).
			Int("turns_seized", e.TurnsSeized)

	case *events.BattleConcludedEvent:
		logEvent.
			Int("winner", int(e.Winner)).
			Int("loser", int(e.Loser)).
			Int("round", e.Round).
			Int("survivor_types", len(e.Survivors))

	case *events.StateTransitionEvent:
		logEvent.
			Str("from", e.FromPhase).
			Str("to", e.ToPhase).
			Str("reason", e.Reason)
	}

	if ls.devMode {
		if jsonData, err := json.Marshal(event); err == nil {
			logEvent.RawJSON("event_data", jsonData)
		}
	}

	logEvent.Msg("Battle event")
}
