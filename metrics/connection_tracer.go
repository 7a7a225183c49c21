// Package metrics provides a Prometheus-backed logging.ConnectionTracer.
// All connections feed into the same set of collectors, so a single tracer
// can be shared between connections.
package metrics

import (
	"errors"

	"github.com/quicnet/congestion/logging"

	"github.com/prometheus/client_golang/prometheus"
)

const metricNamespace = "quicnet"

var (
	congestionStateTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricNamespace,
			Name:      "congestion_state_transitions_total",
			Help:      "Congestion Controller State Transitions",
		},
		[]string{"state"},
	)
	packetsLost = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: metricNamespace,
			Name:      "packets_lost_total",
			Help:      "Packets declared lost",
		},
	)
	bytesLost = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: metricNamespace,
			Name:      "bytes_lost_total",
			Help:      "Retransmittable bytes declared lost",
		},
	)
	duplicatePackets = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: metricNamespace,
			Name:      "duplicate_packets_received_total",
			Help:      "Received packets that were already received before",
		},
	)
	ecnCongestionEvents = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: metricNamespace,
			Name:      "ecn_congestion_events_total",
			Help:      "Congestion events triggered by ECN-CE marks",
		},
	)
	spuriousCongestionEvents = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: metricNamespace,
			Name:      "spurious_congestion_events_total",
			Help:      "Congestion events that were rolled back",
		},
	)
	smoothedRTT = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: metricNamespace,
			Name:      "smoothed_rtt_seconds",
			Help:      "Smoothed RTT",
			Buckets:   prometheus.ExponentialBuckets(0.001, 1.3, 35),
		},
	)
	congestionWindow = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: metricNamespace,
			Name:      "congestion_window_bytes",
			Help:      "Congestion Window",
			Buckets:   prometheus.ExponentialBuckets(1200, 2, 20),
		},
	)
)

// NewConnectionTracer creates a new connection tracer using the default
// Prometheus registerer.
func NewConnectionTracer() *logging.ConnectionTracer {
	return NewConnectionTracerWithRegisterer(prometheus.DefaultRegisterer)
}

// NewConnectionTracerWithRegisterer creates a new connection tracer using a
// given Prometheus registerer.
func NewConnectionTracerWithRegisterer(registerer prometheus.Registerer) *logging.ConnectionTracer {
	for _, c := range [...]prometheus.Collector{
		congestionStateTransitions,
		packetsLost,
		bytesLost,
		duplicatePackets,
		ecnCongestionEvents,
		spuriousCongestionEvents,
		smoothedRTT,
		congestionWindow,
	} {
		if err := registerer.Register(c); err != nil {
			if ok := errors.As(err, &prometheus.AlreadyRegisteredError{}); !ok {
				panic(err)
			}
		}
	}

	return &logging.ConnectionTracer{
		UpdatedMetrics: func(rttStats *logging.RTTStats, cwnd, _ logging.ByteCount) {
			smoothedRTT.Observe(rttStats.SmoothedRTT().Seconds())
			congestionWindow.Observe(float64(cwnd))
		},
		CongestionStateUpdated: func(state logging.CongestionState) {
			congestionStateTransitions.WithLabelValues(state.String()).Inc()
		},
		LostPackets: func(_ logging.PacketNumber, lostBytes logging.ByteCount) {
			packetsLost.Inc()
			bytesLost.Add(float64(lostBytes))
		},
		EcnCongestionEvent: func() {
			ecnCongestionEvents.Inc()
		},
		SpuriousCongestionEvent: func() {
			spuriousCongestionEvents.Inc()
		},
		ReceivedDuplicatePacket: func(logging.PacketNumber) {
			duplicatePackets.Inc()
		},
	}
}
