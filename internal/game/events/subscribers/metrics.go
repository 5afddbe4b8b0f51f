package subscribers

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/mitchelldurbincs/TacticsBattleCore/internal/game/events"
)

// MetricsSubscriber turns battle events into Prometheus series. Labels are
// bounded: event types and command names only, never battle or player ids.
type MetricsSubscriber struct {
	id string

	battlesStarted   prometheus.Counter
	battlesConcluded prometheus.Counter
	battlesActive    prometheus.Gauge
	eventsTotal      *prometheus.CounterVec
	rejectedTotal    *prometheus.CounterVec
	killsTotal       prometheus.Counter
	damageDealt      prometheus.Counter
	buildingsRazed   prometheus.Counter
	battleRounds     prometheus.Histogram
	pathCost         prometheus.Histogram
}

// NewMetricsSubscriber registers its collectors on reg. Pass
// prometheus.DefaultRegisterer in servers and a fresh registry in tests.
func NewMetricsSubscriber(id string, reg prometheus.Registerer) *MetricsSubscriber {
	f := promauto.With(reg)
	return &MetricsSubscriber{
		id: id,
		battlesStarted: f.NewCounter(prometheus.CounterOpts{
			Name: "battle_started_total",
			Help: "Battles that finished deployment",
		}),
		battlesConcluded: f.NewCounter(prometheus.CounterOpts{
			Name: "battle_concluded_total",
			Help: "Battles that reached a winner",
		}),
		battlesActive: f.NewGauge(prometheus.GaugeOpts{
			Name: "battle_active",
			Help: "Battles currently in progress",
		}),
		eventsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "battle_events_total",
			Help: "Battle events by type",
		}, []string{"type"}),
		rejectedTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "battle_commands_rejected_total",
			Help: "Commands refused by legality checks",
		}, []string{"command"}),
		killsTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "battle_units_killed_total",
			Help: "Units removed from the field after dying",
		}),
		damageDealt: f.NewCounter(prometheus.CounterOpts{
			Name: "battle_damage_total",
			Help: "Damage dealt by attacks and counter-attacks",
		}),
		buildingsRazed: f.NewCounter(prometheus.CounterOpts{
			Name: "battle_buildings_razed_total",
			Help: "Buildings razed after a siege",
		}),
		battleRounds: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "battle_rounds",
			Help:    "Rounds played before a battle concluded",
			Buckets: []float64{1, 2, 3, 5, 8, 13, 21, 34},
		}),
		pathCost: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "battle_move_cost",
			Help:    "Movement points spent per move",
			Buckets: []float64{1, 2, 3, 4, 5, 6, 8},
		}),
	}
}

func (m *MetricsSubscriber) ID() string { return m.id }

func (m *MetricsSubscriber) InterestedIn(string) bool { return true }

func (m *MetricsSubscriber) HandleEvent(event events.Event) {
	m.eventsTotal.WithLabelValues(event.Type()).Inc()

	switch e := event.(type) {
	case *events.BattleStartedEvent:
		m.battlesStarted.Inc()
		m.battlesActive.Inc()
	case *events.BattleConcludedEvent:
		m.battlesConcluded.Inc()
		m.battlesActive.Dec()
		m.battleRounds.Observe(float64(e.Round))
	case *events.UnitKilledEvent:
		m.killsTotal.Inc()
	case *events.UnitAttackedEvent:
		m.damageDealt.Add(float64(e.DamageDealt + e.DamageTaken))
	case *events.UnitMovedEvent:
		m.pathCost.Observe(float64(e.Cost))
	case *events.CommandRejectedEvent:
		m.rejectedTotal.WithLabelValues(e.Command).Inc()
	case *events.BuildingSiegeEvent:
		if e.Type() == events.TypeBuildingRazed {
			m.buildingsRazed.Inc()
		}
	}
}
