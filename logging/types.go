package logging

import (
	"github.com/quicnet/congestion/internal/protocol"
	"github.com/quicnet/congestion/internal/utils"
)

// A ByteCount in QUIC
type ByteCount = protocol.ByteCount

// A PacketNumber in QUIC
type PacketNumber = protocol.PacketNumber

// ECN is the ECN codepoint of a packet
type ECN = protocol.ECN

// RTTStats provides round-trip statistics
type RTTStats = utils.RTTStats

// A CongestionState is the state of the congestion controller.
type CongestionState uint8

const (
	// CongestionStateSlowStart is the slow start phase
	CongestionStateSlowStart CongestionState = iota
	// CongestionStateCongestionAvoidance is the congestion avoidance phase
	CongestionStateCongestionAvoidance
	// CongestionStateRecovery is the recovery phase
	CongestionStateRecovery
	// CongestionStatePersistentCongestion means that persistent congestion was declared
	CongestionStatePersistentCongestion
	// CongestionStateApplicationLimited means the connection is application limited
	CongestionStateApplicationLimited
)

func (s CongestionState) String() string {
	switch s {
	case CongestionStateSlowStart:
		return "slow_start"
	case CongestionStateCongestionAvoidance:
		return "congestion_avoidance"
	case CongestionStateRecovery:
		return "recovery"
	case CongestionStatePersistentCongestion:
		return "persistent_congestion"
	case CongestionStateApplicationLimited:
		return "application_limited"
	default:
		return "unknown congestion state"
	}
}
