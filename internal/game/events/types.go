// Package events carries battle notifications from the core to renderers,
// loggers and metrics. Delivery is synchronous and in subscription order.
package events

import "time"

// Event is anything published on the bus. Type is one of the Type*
// constants and is what subscribers filter on.
type Event interface {
	Type() string
	Timestamp() time.Time
	BattleID() string
}

// BaseEvent is embedded by every concrete event.
type BaseEvent struct {
	EventType string    `json:"type"`
	Time      time.Time `json:"timestamp"`
	Battle    string    `json:"battle_id"`
}

func newBase(eventType, battleID string) BaseEvent {
	return BaseEvent{EventType: eventType, Time: time.Now(), Battle: battleID}
}

func (e BaseEvent) Type() string         { return e.EventType }
func (e BaseEvent) Timestamp() time.Time { return e.Time }
func (e BaseEvent) BattleID() string     { return e.Battle }

// EventMetadata tags unit-level events with the acting player and round.
type EventMetadata struct {
	PlayerID int `json:"player_id,omitempty"`
	Round    int `json:"round,omitempty"`
}

type EventHandler func(Event)

// Subscriber receives every event it is InterestedIn. HandleEvent runs on
// the publisher's goroutine, so it must not block; a panic is recovered and
// logged by the bus.
type Subscriber interface {
	ID() string
	HandleEvent(Event)
	InterestedIn(eventType string) bool
}

// Publisher is the send side of the bus. *EventBus satisfies it; the state
// machine only needs this much.
type Publisher interface {
	Publish(Event)
}
