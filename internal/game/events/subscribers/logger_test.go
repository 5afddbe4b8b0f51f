package subscribers_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mitchelldurbincs/TacticsBattleCore/internal/game/core"
	"github.com/mitchelldurbincs/TacticsBattleCore/internal/game/events"
	"github.com/mitchelldurbincs/TacticsBattleCore/internal/game/events/subscribers"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	require.NotEmpty(t, buf.String())
	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	return line
}

func TestLoggerSubscriber(t *testing.T) {
	logSub := subscribers.NewLoggerSubscriber("test-logger", zerolog.Nop(), zerolog.InfoLevel)
	assert.Equal(t, "test-logger", logSub.ID())
	assert.True(t, logSub.InterestedIn(events.TypeBattleStarted))
	assert.True(t, logSub.InterestedIn("any.event.type"))
}

func TestLoggerSubscriberEventLogging(t *testing.T) {
	var buf bytes.Buffer
	logSub := subscribers.NewLoggerSubscriber("event-logger", zerolog.New(&buf), zerolog.InfoLevel)

	attacker := core.NewSoldier("spearman", 1, 1, 3, core.CombatStats{MaxHP: 10})
	attacker.ID = 3
	target := core.NewSoldier("archer", 2, 1, 3, core.CombatStats{MaxHP: 4})
	target.ID = 9
	target.TakeDamage(4)

	testCases := []struct {
		name  string
		event events.Event
		check func(t *testing.T, line map[string]interface{})
	}{
		{
			name:  "BattleStarted",
			event: events.NewBattleStartedEvent("battle-1", 8, 6, 1, 2, 3, 2),
			check: func(t *testing.T, line map[string]interface{}) {
				assert.Equal(t, float64(8), line["width"])
				assert.Equal(t, float64(3), line["attacker_units"])
			},
		},
		{
			name:  "UnitAttacked",
			event: events.NewUnitAttackedEvent("battle-1", 2, attacker, target, core.Coordinate{X: 1, Y: 2}, 4, 0),
			check: func(t *testing.T, line map[string]interface{}) {
				assert.Equal(t, float64(3), line["attacker_id"])
				assert.Equal(t, float64(9), line["target_id"])
				assert.Equal(t, "(1,2)", line["at"])
				assert.Equal(t, true, line["target_died"])
			},
		},
		{
			name:  "CommandRejected",
			event: events.NewCommandRejectedEvent("battle-1", 1, "attack", core.Coordinate{X: 4, Y: 4}, errors.New("out of range")),
			check: func(t *testing.T, line map[string]interface{}) {
				assert.Equal(t, "attack", line["command"])
				assert.Equal(t, "out of range", line["reason"])
			},
		},
		{
			name:  "BattleConcluded",
			event: events.NewBattleConcludedEvent("battle-1", 1, 2, 4, []core.UnitCount{{TypeID: "spearman", Count: 2}}),
			check: func(t *testing.T, line map[string]interface{}) {
				assert.Equal(t, float64(1), line["winner"])
				assert.Equal(t, float64(4), line["round"])
				assert.Equal(t, float64(1), line["survivor_types"])
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			buf.Reset()
			logSub.HandleEvent(tc.event)

			line := decodeLine(t, &buf)
			assert.Equal(t, "info", line["level"])
			assert.Equal(t, "Battle event", line["message"])
			assert.Equal(t, tc.event.Type(), line["event_type"])
			assert.Equal(t, "battle-1", line["battle_id"])
			tc.check(t, line)
		})
	}
}

func TestLoggerSubscriberWithFilter(t *testing.T) {
	logSub := subscribers.NewLoggerSubscriber("filtered-logger", zerolog.Nop(), zerolog.InfoLevel)
	logSub.SetEventFilter([]string{events.TypeBattleStarted, events.TypeBattleConcluded})

	assert.True(t, logSub.InterestedIn(events.TypeBattleConcluded))
	assert.False(t, logSub.InterestedIn(events.TypeUnitMoved))

	logSub.SetEventFilter(nil)
	assert.True(t, logSub.InterestedIn(events.TypeUnitMoved))
}

func TestLoggerSubscriberLogLevels(t *testing.T) {
	for _, level := range []zerolog.Level{zerolog.DebugLevel, zerolog.InfoLevel, zerolog.WarnLevel, zerolog.ErrorLevel} {
		t.Run(level.String(), func(t *testing.T) {
			var buf bytes.Buffer
			logSub := subscribers.NewLoggerSubscriber("level-logger", zerolog.New(&buf), level)
			logSub.HandleEvent(events.NewTurnAdvancedEvent("b", 2, 1, 3))

			line := decodeLine(t, &buf)
			assert.Equal(t, level.String(), line["level"])
			assert.Equal(t, float64(3), line["units_reset"])
		})
	}
}

func TestLoggerSubscriberDevelopmentMode(t *testing.T) {
	var buf bytes.Buffer
	logSub := subscribers.NewLoggerSubscriber("dev-logger", zerolog.New(&buf), zerolog.InfoLevel)
	logSub.SetDevMode(true)

	u := core.NewSoldier("spearman", 1, 1, 3, core.CombatStats{MaxHP: 10})
	u.ID = 1
	u.Pos = core.Coordinate{X: 2, Y: 0}
	path := []core.Coordinate{{X: 1, Y: 0}, {X: 2, Y: 0}}
	logSub.HandleEvent(events.NewUnitMovedEvent("dev-battle", 1, u, core.Coordinate{}, path, 2))

	line := decodeLine(t, &buf)
	data, ok := line["event_data"].(map[string]interface{})
	require.True(t, ok, "event_data should be an object")
	assert.Equal(t, events.TypeUnitMoved, data["type"])
	assert.Len(t, data["Path"], 2)
}
