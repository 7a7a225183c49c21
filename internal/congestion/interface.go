// Package congestion implements congestion control for a single connection.
//
// The controller is driven entirely by the caller: it never reads the wall
// clock and owns no timers. All methods must be called from the same
// goroutine, the one running the connection.
package congestion

import (
	"fmt"
	"time"

	"github.com/quicnet/congestion/internal/monotime"
	"github.com/quicnet/congestion/internal/protocol"
	"github.com/quicnet/congestion/internal/utils"
	"github.com/quicnet/congestion/logging"
)

// An AckEvent describes an acknowledgement received from the peer.
type AckEvent struct {
	// Time the acknowledgement was processed
	Time monotime.Time
	// the largest packet number newly acknowledged
	LargestAck protocol.PacketNumber
	// the largest packet number sent so far
	LargestSentPacketNumber protocol.PacketNumber
	// number of retransmittable bytes acknowledged
	NumRetransmittableBytes protocol.ByteCount
	// the smallest RTT sample of the acknowledged packets.
	// Only used if MinRTTValid is set.
	MinRTT      time.Duration
	MinRTTValid bool
	// IsImplicit is set for acknowledgements that are implied (e.g. by
	// dropping a packet number space), not received from the peer.
	// Implicit acknowledgements don't grow the congestion window.
	IsImplicit bool
}

// A LossEvent describes packets that were declared lost.
type LossEvent struct {
	// the largest packet number declared lost
	LargestPacketNumberLost protocol.PacketNumber
	// the largest packet number sent so far
	LargestSentPacketNumber protocol.PacketNumber
	// number of retransmittable bytes lost
	NumRetransmittableBytes protocol.ByteCount
	// PersistentCongestion is set when the loss spans a period long enough
	// to declare persistent congestion.
	PersistentCongestion bool
}

// An EcnEvent describes an ECN congestion signal (CE marks reported by the
// peer).
type EcnEvent struct {
	// the largest packet number acknowledged when the CE count increased
	LargestPacketNumberAcked protocol.PacketNumber
	// the largest packet number sent so far
	LargestSentPacketNumber protocol.PacketNumber
}

// NetworkStatistics is a snapshot of the controller's view of the network.
type NetworkStatistics struct {
	BytesInFlight      protocol.ByteCount
	BytesInFlightMax   protocol.ByteCount
	CongestionWindow   protocol.ByteCount
	SlowStartThreshold protocol.ByteCount
	// Bandwidth is a rough estimate, in bytes per second.
	Bandwidth protocol.ByteCount

	SmoothedRTT time.Duration
	MinRTT      time.Duration
	LatestRTT   time.Duration
	RTTVariance time.Duration

	IsInRecovery             bool
	IsInPersistentCongestion bool
}

// A Controller implements a congestion control algorithm.
// It is not safe for concurrent use.
type Controller interface {
	// CanSend says if another packet may be sent right now.
	CanSend() bool
	// SetExemption allows the next numPackets packets to ignore the
	// congestion window. Used for probes.
	SetExemption(numPackets uint8)
	GetExemptions() uint8
	// Reset reverts the controller to its initial state. If fullReset is
	// set, the bytes in flight are zeroed as well.
	Reset(fullReset bool)
	// GetSendAllowance returns the number of bytes that may be sent right
	// now. When pacing is enabled, the allowance is opened gradually with
	// timeSinceLastSend; pass timeSinceLastSendValid = false if the time of
	// the last send isn't known.
	GetSendAllowance(timeSinceLastSend time.Duration, timeSinceLastSendValid bool) protocol.ByteCount
	// OnDataSent is called for every sent packet that counts against the
	// congestion window.
	OnDataSent(numRetransmittableBytes protocol.ByteCount)
	// OnDataInvalidated is called when sent packets no longer count against
	// the congestion window (e.g. when an encryption level is dropped).
	// It returns whether the connection became unblocked.
	OnDataInvalidated(numRetransmittableBytes protocol.ByteCount) bool
	// OnDataAcknowledged processes an acknowledgement.
	// It returns whether the connection became unblocked.
	OnDataAcknowledged(ev AckEvent) bool
	// OnDataLost processes a loss event.
	// It returns whether the connection became unblocked.
	OnDataLost(ev LossEvent) bool
	// OnEcn processes an ECN congestion signal.
	// It returns whether the connection became unblocked.
	OnEcn(ev EcnEvent) bool
	// OnSpuriousCongestionEvent rolls back the most recent congestion event
	// after all losses that caused it turned out to be spurious.
	// It returns whether the connection became unblocked.
	OnSpuriousCongestionEvent() bool
	GetBytesInFlightMax() protocol.ByteCount
	GetCongestionWindow() protocol.ByteCount
	IsAppLimited() bool
	SetAppLimited()
	GetNetworkStatistics() NetworkStatistics
	// LogOutFlowStatus logs the current outgoing flow state.
	LogOutFlowStatus()
}

// New creates the Controller selected by the config.
func New(
	cfg Config,
	rttStats *utils.RTTStats,
	tracer *logging.ConnectionTracer,
	logger utils.Logger,
) (Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Algorithm {
	case protocol.CongestionControlCubic:
		return newCubic(cfg, rttStats, tracer, logger), nil
	default:
		return nil, fmt.Errorf("unsupported congestion control algorithm: %s", cfg.Algorithm)
	}
}
