package ackhandler

import (
	"github.com/quicnet/congestion/internal/monotime"
	"github.com/quicnet/congestion/internal/protocol"
	"github.com/quicnet/congestion/internal/utils"
	"github.com/quicnet/congestion/internal/utils/intervalset"
	"github.com/quicnet/congestion/logging"
)

// An AckType says how urgently a received packet needs to be acknowledged.
type AckType uint8

const (
	// AckTypeNonAckEliciting is used for packets that don't need to be acknowledged.
	AckTypeNonAckEliciting AckType = iota
	// AckTypeAckEliciting is used for packets that need to be acknowledged.
	AckTypeAckEliciting
	// AckTypeAckImmediate is used for packets that need to be acknowledged immediately.
	AckTypeAckImmediate
)

// ECNCounts are the cumulative counts of received ECN marks.
type ECNCounts struct {
	ECT0 uint64
	ECT1 uint64
	CE   uint64
}

// The AckTracker tracks received packet numbers, detects duplicates, and
// decides when ACK frames need to be sent.
// It is not safe for concurrent use.
type AckTracker struct {
	// all packet numbers ever received, for duplicate detection.
	// Bounded by the allocation budget: once it is exceeded, the oldest
	// (lowest) packet numbers are forgotten.
	packetNumbersReceived *intervalset.IntervalSet
	// packet numbers that still need to be reported in an ACK frame
	packetNumbersToAck *intervalset.IntervalSet

	// the largest packet number reported in an ACK frame that the peer
	// acknowledged receiving
	largestPacketNumberAcknowledged protocol.PacketNumber
	// receive time of the largest packet in packetNumbersToAck
	largestPacketNumberRecvTime monotime.Time

	ackElicitingPacketsToAck int
	alreadyWrittenAckFrame   bool

	nonZeroRecvECN bool
	recvECN        ECNCounts

	// an ACK is sent immediately when reordering of this many packet
	// numbers is observed. 0 disables reorder-triggered ACKs.
	reorderingThreshold uint64

	tracer *logging.ConnectionTracer
	logger utils.Logger
}

// NewAckTracker creates a new AckTracker.
func NewAckTracker(
	reorderingThreshold uint64,
	tracer *logging.ConnectionTracer,
	logger utils.Logger,
) *AckTracker {
	return &AckTracker{
		packetNumbersReceived: intervalset.New(protocol.MaxAckRangeAllocSize),
		packetNumbersToAck:    intervalset.New(protocol.MaxAckRangeAllocSize),
		reorderingThreshold:   reorderingThreshold,
		tracer:                tracer,
		logger:                logger,
	}
}

// Reset clears all state, keeping the allocated storage.
func (t *AckTracker) Reset() {
	t.packetNumbersReceived.Reset()
	t.packetNumbersToAck.Reset()
	t.largestPacketNumberAcknowledged = 0
	t.largestPacketNumberRecvTime = 0
	t.ackElicitingPacketsToAck = 0
	t.alreadyWrittenAckFrame = false
	t.nonZeroRecvECN = false
	t.recvECN = ECNCounts{}
}

// AddPacketNumber records a received packet number for duplicate detection.
// It returns whether the packet number is a duplicate.
// The duplicate detection window is bounded: when the tracked ranges exceed
// their allocation budget, the oldest packet numbers are forgotten, and a
// duplicate of such an old packet is not detected.
func (t *AckTracker) AddPacketNumber(pn protocol.PacketNumber) bool /* is duplicate */ {
	duplicate := !t.packetNumbersReceived.Add(uint64(pn))
	if duplicate {
		if t.logger.Debug() {
			t.logger.Debugf("Ignoring duplicate packet %d", pn)
		}
		if t.tracer != nil && t.tracer.ReceivedDuplicatePacket != nil {
			t.tracer.ReceivedDuplicatePacket(pn)
		}
	}
	return duplicate
}

// AckPacket queues a received packet to be acknowledged.
// It returns whether an ACK frame should be sent immediately, instead of
// waiting for the delayed ACK timer. The caller owns all timers.
func (t *AckTracker) AckPacket(
	pn protocol.PacketNumber,
	recvTime monotime.Time,
	ecn protocol.ECN,
	ackType AckType,
) (ackImmediately bool) {
	if !t.packetNumbersToAck.Add(uint64(pn)) {
		return false // already queued
	}

	switch ecn {
	case protocol.ECT0:
		t.recvECN.ECT0++
		t.nonZeroRecvECN = true
	case protocol.ECT1:
		t.recvECN.ECT1++
		t.nonZeroRecvECN = true
	case protocol.ECNCE:
		t.recvECN.CE++
		t.nonZeroRecvECN = true
	}

	if uint64(pn) == t.packetNumbersToAck.Max() {
		t.largestPacketNumberRecvTime = recvTime
	}
	t.alreadyWrittenAckFrame = false

	if ackType == AckTypeNonAckEliciting {
		return false
	}
	if ackType == AckTypeAckImmediate || ecn == protocol.ECNCE {
		return true
	}
	t.ackElicitingPacketsToAck++
	if t.ackElicitingPacketsToAck >= protocol.AckElicitingThreshold {
		return true
	}
	return t.DidHitReorderingThreshold(t.reorderingThreshold)
}

// HasPacketsToAck says if there are packets that still need to be reported
// in an ACK frame.
func (t *AckTracker) HasPacketsToAck() bool {
	return t.packetNumbersToAck.Len() > 0 && !t.alreadyWrittenAckFrame
}

// DidHitReorderingThreshold says if the gap between the largest packet
// number queued for acknowledgement and the smallest not-yet-reported
// missing packet number reaches the given threshold.
func (t *AckTracker) DidHitReorderingThreshold(threshold uint64) bool {
	if threshold == 0 || t.packetNumbersToAck.Len() < 2 {
		return false
	}

	largestUnacked := t.packetNumbersToAck.Max()
	var largestReported uint64
	if t.largestPacketNumberAcknowledged != 0 {
		largestReported = uint64(t.largestPacketNumberAcknowledged) - threshold + 1
	}

	// find the smallest missing packet number at or above largestReported
	smallestMissing := largestReported
	for i := 0; i < t.packetNumbersToAck.Len(); i++ {
		iv := t.packetNumbersToAck.At(i)
		if smallestMissing < iv.Low {
			break // the gap below iv is missing
		}
		if smallestMissing <= iv.High() {
			// contained: the first missing number is right above this
			// interval, intervals are never adjacent
			smallestMissing = iv.High() + 1
			break
		}
	}
	if smallestMissing > largestUnacked {
		return false
	}
	return largestUnacked-smallestMissing >= threshold
}

// OnAckFrameWritten is called when an ACK frame reporting all currently
// queued packet numbers was written.
func (t *AckTracker) OnAckFrameWritten() {
	t.alreadyWrittenAckFrame = true
	if max, ok := t.packetNumbersToAck.TryMax(); ok {
		t.largestPacketNumberAcknowledged = protocol.PacketNumber(max)
	}
	t.ackElicitingPacketsToAck = 0
}

// OnAckFrameAcked is called when the peer acknowledged an ACK frame we sent.
// Packet numbers up to the largest one reported in that frame don't need to
// be tracked any longer.
func (t *AckTracker) OnAckFrameAcked(largestAcked protocol.PacketNumber) {
	t.packetNumbersToAck.SetMin(uint64(largestAcked) + 1)
}

// AckRanges appends the currently queued ranges to dst, ordered by packet
// number. They are the ranges a frame builder puts into an ACK frame.
func (t *AckTracker) AckRanges(dst []intervalset.Interval) []intervalset.Interval {
	return t.packetNumbersToAck.AppendRanges(dst)
}

// LargestRecvTime returns the receive time of the largest packet queued for
// acknowledgement.
func (t *AckTracker) LargestRecvTime() monotime.Time { return t.largestPacketNumberRecvTime }

// ECN returns the cumulative ECN counts, and whether any non-zero ECN
// codepoint was received at all.
func (t *AckTracker) ECN() (ECNCounts, bool) { return t.recvECN, t.nonZeroRecvECN }
