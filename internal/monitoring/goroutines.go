// Package monitoring samples process health for long-running servers.
package monitoring

import (
	"context"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Probe reports a live count for a named component, e.g. open battles.
type Probe func() int

// RuntimeMonitor tracks goroutine growth against the startup baseline and
// samples component probes on every check.
type RuntimeMonitor struct {
	mu             sync.RWMutex
	baseline       int
	current        int
	peak           int
	probes         map[string]Probe
	lastCounts     map[string]int
	checkInterval  time.Duration
	alertThreshold int
	alertCooldown  time.Duration
	lastAlert      time.Time
	numGoroutine   func() int

	peakGauge prometheus.GaugeFunc
	logger    zerolog.Logger
}

type Options struct {
	CheckInterval  time.Duration
	AlertThreshold int
	AlertCooldown  time.Duration
}

var DefaultOptions = Options{
	CheckInterval:  30 * time.Second,
	AlertThreshold: 1000,
	AlertCooldown:  5 * time.Minute,
}

// NewRuntimeMonitor registers tbc_goroutines_peak on reg when reg is non-nil.
func NewRuntimeMonitor(opts Options, reg prometheus.Registerer, logger zerolog.Logger) *RuntimeMonitor {
	if opts.CheckInterval <= 0 {
		opts.CheckInterval = DefaultOptions.CheckInterval
	}
	if opts.AlertThreshold <= 0 {
		opts.AlertThreshold = DefaultOptions.AlertThreshold
	}
	baseline := runtime.NumGoroutine()
	m := &RuntimeMonitor{
		baseline:       baseline,
		current:        baseline,
		peak:           baseline,
		probes:         make(map[string]Probe),
		lastCounts:     make(map[string]int),
		checkInterval:  opts.CheckInterval,
		alertThreshold: opts.AlertThreshold,
		alertCooldown:  opts.AlertCooldown,
		numGoroutine:   runtime.NumGoroutine,
		logger:         logger.With().Str("component", "RuntimeMonitor").Logger(),
	}
	if reg != nil {
		m.peakGauge = promauto.With(reg).NewGaugeFunc(prometheus.GaugeOpts{
			Name: "tbc_goroutines_peak",
			Help: "Highest goroutine count seen by the runtime monitor",
		}, func() float64 { return float64(m.Metrics().Peak) })
	}
	return m
}

// AddProbe registers fn under name; the latest value shows in Metrics.
func (m *RuntimeMonitor) AddProbe(name string, fn Probe) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.probes[name] = fn
}

// Run checks every interval until ctx is done.
func (m *RuntimeMonitor) Run(ctx context.Context) {
	m.logger.Info().Int("baseline", m.baseline).Msg("Started runtime monitoring")
	ticker := time.NewTicker(m.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.check(time.Now())
		case <-ctx.Done():
			return
		}
	}
}

func (m *RuntimeMonitor) check(now time.Time) {
	current := m.numGoroutine()

	m.mu.Lock()
	m.current = current
	if current > m.peak {
		m.peak = current
	}
	for name, probe := range m.probes {
		m.lastCounts[name] = probe()
	}
	growth := current - m.baseline
	alert := current > m.alertThreshold && now.Sub(m.lastAlert) > m.alertCooldown
	if alert {
		m.lastAlert = now
	}
	peak := m.peak
	counts := copyMap(m.lastCounts)
	m.mu.Unlock()

	ev := m.logger.Debug().
		Int("current", current).
		Int("peak", peak).
		Int("growth", growth)
	for _, name := range sortedKeys(counts) {
		ev = ev.Int(name, counts[name])
	}
	ev.Msg("Runtime metrics")

	if alert {
		m.logger.Warn().
			Int("current", current).
			Int("threshold", m.alertThreshold).
			Int("growth", growth).
			Msg("High goroutine count detected - possible leak")
	}
}

// Metrics is a point-in-time copy of the monitor state.
type Metrics struct {
	Current         int            `json:"current"`
	Baseline        int            `json:"baseline"`
	Peak            int            `json:"peak"`
	Growth          int            `json:"growth"`
	ComponentCounts map[string]int `json:"component_counts"`
}

func (m *RuntimeMonitor) Metrics() Metrics {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Metrics{
		Current:         m.current,
		Baseline:        m.baseline,
		Peak:            m.peak,
		Growth:          m.current - m.baseline,
		ComponentCounts: copyMap(m.lastCounts),
	}
}

func copyMap(in map[string]int) map[string]int {
	out := make(map[string]int, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func sortedKeys(in map[string]int) []string {
	keys := make([]string, 0, len(in))
	for k := range in {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
