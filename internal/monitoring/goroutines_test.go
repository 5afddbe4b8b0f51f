package monitoring

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mitchelldurbincs/TacticsBattleCore/internal/testutil"
)

func TestRuntimeMonitor_Check(t *testing.T) {
	reg := prometheus.NewRegistry()
	logger, logs := testutil.BufferLogger()
	m := NewRuntimeMonitor(Options{AlertThreshold: 50, AlertCooldown: time.Minute}, reg, logger)

	count := 10
	m.numGoroutine = func() int { return count }
	m.baseline = 10
	battles := 0
	m.AddProbe("battles", func() int { return battles })

	now := time.Unix(1000, 0)
	battles = 3
	count = 40
	m.check(now)

	got := m.Metrics()
	assert.Equal(t, 40, got.Current)
	assert.Equal(t, 40, got.Peak)
	assert.Equal(t, 30, got.Growth)
	assert.Equal(t, map[string]int{"battles": 3}, got.ComponentCounts)

	count = 20
	m.check(now.Add(time.Second))
	got = m.Metrics()
	assert.Equal(t, 20, got.Current)
	assert.Equal(t, 40, got.Peak, "peak is sticky")
	assert.Equal(t, float64(40), promtestutil.ToFloat64(m.peakGauge))
	assert.NotContains(t, logs.String(), "possible leak")

	count = 60
	m.check(now.Add(2 * time.Second))
	m.check(now.Add(3 * time.Second))
	assert.Equal(t, 1, bytes.Count(logs.Bytes(), []byte("possible leak")), "alerts respect the cooldown")

	m.check(now.Add(2 * time.Minute))
	assert.Equal(t, 2, bytes.Count(logs.Bytes(), []byte("possible leak")))
}

func TestRuntimeMonitor_Run(t *testing.T) {
	m := NewRuntimeMonitor(Options{CheckInterval: 5 * time.Millisecond}, nil, zerolog.Nop())
	m.AddProbe("ticks", func() int { return 7 })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		return m.Metrics().ComponentCounts["ticks"] == 7
	}, time.Second, 5*time.Millisecond)
	cancel()
	<-done
	assert.Nil(t, m.peakGauge)
}
