package protocol

import "time"

// DefaultMaxUDPPayloadSize is the UDP datagram size assumed before path MTU
// discovery has produced a better estimate.
const DefaultMaxUDPPayloadSize ByteCount = 1280

// UDPOverheadV6 is the number of bytes consumed by the IPv6 and UDP headers
// of every datagram. The usable payload of a datagram is the UDP payload
// size minus this overhead.
const UDPOverheadV6 ByteCount = 40 + 8

// InitialCongestionWindowPackets is the initial congestion window, in packets.
const InitialCongestionWindowPackets = 10

// PersistentCongestionWindowPackets is the congestion window, in packets,
// used after persistent congestion was declared.
const PersistentCongestionWindowPackets = 2

// MinPacingRTT is the smoothed RTT below which pacing is not applied: at
// such RTTs the window opens faster than a pacing timer can usefully fire.
const MinPacingRTT = time.Millisecond

// DefaultSendIdleTimeout is the period without ACK activity after which the
// congestion avoidance epoch is shifted, so that idle time doesn't count as
// elapsed time for window growth.
const DefaultSendIdleTimeout = time.Second

// AckElicitingThreshold is the number of ack-eliciting packets received
// before an ACK is sent immediately instead of waiting for the delayed ACK
// timer.
const AckElicitingThreshold = 2

// MaxAckRangeAllocSize is the maximum number of bytes an ack range set may
// allocate for its intervals. Once reached, the lowest range is dropped to
// make room for new packet numbers.
const MaxAckRangeAllocSize = 4096
