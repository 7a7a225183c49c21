package logging

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMultiplexingDegenerateCases(t *testing.T) {
	require.Nil(t, NewMultiplexedConnectionTracer())

	tr := &ConnectionTracer{}
	require.Same(t, tr, NewMultiplexedConnectionTracer(tr))
}

func TestMultiplexingEvents(t *testing.T) {
	var events1, events2 []CongestionState
	tr1 := &ConnectionTracer{
		CongestionStateUpdated: func(state CongestionState) { events1 = append(events1, state) },
	}
	var metrics int
	tr2 := &ConnectionTracer{
		CongestionStateUpdated: func(state CongestionState) { events2 = append(events2, state) },
		UpdatedMetrics:         func(*RTTStats, ByteCount, ByteCount) { metrics++ },
	}
	tracer := NewMultiplexedConnectionTracer(tr1, tr2)

	tracer.CongestionStateUpdated(CongestionStateRecovery)
	require.Equal(t, []CongestionState{CongestionStateRecovery}, events1)
	require.Equal(t, []CongestionState{CongestionStateRecovery}, events2)

	// tracers that don't set a callback are skipped
	var rttStats RTTStats
	rttStats.UpdateRTT(time.Second, 0)
	tracer.UpdatedMetrics(&rttStats, 1280, 0)
	require.Equal(t, 1, metrics)
}

func TestCongestionStateStringer(t *testing.T) {
	require.Equal(t, "slow_start", CongestionStateSlowStart.String())
	require.Equal(t, "congestion_avoidance", CongestionStateCongestionAvoidance.String())
	require.Equal(t, "recovery", CongestionStateRecovery.String())
	require.Equal(t, "persistent_congestion", CongestionStatePersistentCongestion.String())
	require.Equal(t, "application_limited", CongestionStateApplicationLimited.String())
}
