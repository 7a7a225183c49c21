// Package logging defines an interface for recording recovery events.
// This package should not be considered stable.
package logging

// A ConnectionTracer records events happening on a connection.
// Tracer functions that are not set are simply not called.
type ConnectionTracer struct {
	// UpdatedMetrics is called when the congestion controller's metrics change.
	UpdatedMetrics func(rttStats *RTTStats, cwnd, bytesInFlight ByteCount)
	// CongestionStateUpdated is called when the congestion controller changes state.
	CongestionStateUpdated func(state CongestionState)
	// LostPackets is called when packets are declared lost.
	LostPackets func(largestLost PacketNumber, lostBytes ByteCount)
	// EcnCongestionEvent is called when a congestion event is triggered by an ECN mark.
	EcnCongestionEvent func()
	// SpuriousCongestionEvent is called when a congestion event is rolled back.
	SpuriousCongestionEvent func()
	// ReceivedDuplicatePacket is called when a duplicate packet is received.
	ReceivedDuplicatePacket func(pn PacketNumber)
	// Close is called when the connection is closed.
	Close func()
}

// NewMultiplexedConnectionTracer creates a new connection tracer that
// multiplexes events to all tracers.
func NewMultiplexedConnectionTracer(tracers ...*ConnectionTracer) *ConnectionTracer {
	if len(tracers) == 0 {
		return nil
	}
	if len(tracers) == 1 {
		return tracers[0]
	}
	return &ConnectionTracer{
		UpdatedMetrics: func(rttStats *RTTStats, cwnd, bytesInFlight ByteCount) {
			for _, t := range tracers {
				if t.UpdatedMetrics != nil {
					t.UpdatedMetrics(rttStats, cwnd, bytesInFlight)
				}
			}
		},
		CongestionStateUpdated: func(state CongestionState) {
			for _, t := range tracers {
				if t.CongestionStateUpdated != nil {
					t.CongestionStateUpdated(state)
				}
			}
		},
		LostPackets: func(largestLost PacketNumber, lostBytes ByteCount) {
			for _, t := range tracers {
				if t.LostPackets != nil {
					t.LostPackets(largestLost, lostBytes)
				}
			}
		},
		EcnCongestionEvent: func() {
			for _, t := range tracers {
				if t.EcnCongestionEvent != nil {
					t.EcnCongestionEvent()
				}
			}
		},
		SpuriousCongestionEvent: func() {
			for _, t := range tracers {
				if t.SpuriousCongestionEvent != nil {
					t.SpuriousCongestionEvent()
				}
			}
		},
		ReceivedDuplicatePacket: func(pn PacketNumber) {
			for _, t := range tracers {
				if t.ReceivedDuplicatePacket != nil {
					t.ReceivedDuplicatePacket(pn)
				}
			}
		},
		Close: func() {
			for _, t := range tracers {
				if t.Close != nil {
					t.Close()
				}
			}
		},
	}
}
