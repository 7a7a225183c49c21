// Package qlog exports recovery events in the qlog format, as defined in
// draft-ietf-quic-qlog-main-schema and draft-ietf-quic-qlog-quic-events.
package qlog

import (
	"io"
	"sync"

	"github.com/quicnet/congestion/logging"
)

type connectionTracer struct {
	mutex sync.Mutex

	w           *writer
	lastMetrics *metrics
}

// NewConnectionTracer creates a new tracer that writes qlog events to w.
// Writing is done asynchronously, w is closed when the tracer is closed.
func NewConnectionTracer(w io.WriteCloser) *logging.ConnectionTracer {
	t := &connectionTracer{w: newWriter(w)}
	go t.w.Run()
	return &logging.ConnectionTracer{
		UpdatedMetrics: func(rttStats *logging.RTTStats, cwnd, bytesInFlight logging.ByteCount) {
			t.UpdatedMetrics(rttStats, cwnd, bytesInFlight)
		},
		CongestionStateUpdated: func(state logging.CongestionState) {
			t.recordEvent(eventCongestionStateUpdated{state: state.String()})
		},
		LostPackets: func(largestLost logging.PacketNumber, lostBytes logging.ByteCount) {
			t.recordEvent(eventPacketLost{PacketNumber: largestLost, Bytes: lostBytes})
		},
		EcnCongestionEvent: func() {
			t.recordEvent(eventECNCongestion{})
		},
		SpuriousCongestionEvent: func() {
			t.recordEvent(eventSpuriousCongestion{})
		},
		ReceivedDuplicatePacket: func(pn logging.PacketNumber) {
			t.recordEvent(eventPacketDropped{PacketNumber: pn, Trigger: "duplicate"})
		},
		Close: func() { t.w.Close() },
	}
}

func (t *connectionTracer) recordEvent(details eventDetails) {
	t.mutex.Lock()
	t.w.RecordEvent(details)
	t.mutex.Unlock()
}

func (t *connectionTracer) UpdatedMetrics(rttStats *logging.RTTStats, cwnd, bytesInFlight logging.ByteCount) {
	m := &metrics{
		MinRTT:           rttStats.MinRTT(),
		SmoothedRTT:      rttStats.SmoothedRTT(),
		LatestRTT:        rttStats.LatestRTT(),
		RTTVariance:      rttStats.MeanDeviation(),
		CongestionWindow: cwnd,
		BytesInFlight:    bytesInFlight,
	}
	t.mutex.Lock()
	t.w.RecordEvent(eventMetricsUpdated{Last: t.lastMetrics, Current: m})
	t.lastMetrics = m
	t.mutex.Unlock()
}
