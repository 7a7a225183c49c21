package congestion

import (
	"time"

	"github.com/quicnet/congestion/internal/monotime"
	"github.com/quicnet/congestion/internal/protocol"
	"github.com/quicnet/congestion/internal/utils"
	"github.com/quicnet/congestion/logging"
)

const (
	// beta and C from RFC 8312, scaled by 10 for integer math
	tenTimesBetaCubic = 7
	tenTimesCCubic    = 4

	// the time spent in congestion avoidance is capped (in microseconds),
	// to keep the cubic polynomial within int64 range
	maxCongestionAvoidanceTime = 2_500_000

	// HyStart++ (RFC 9406)
	hyStartMinRTTSamples        = 8
	hyStartMinEta               = 4 * time.Millisecond
	hyStartMaxEta               = 16 * time.Millisecond
	hyStartConservativeRounds   = 5
	hyStartCSSGrowthDivisor     = 4
)

type hyStartState uint8

const (
	// normal slow start, watching for an RTT increase
	hyStartNotStarted hyStartState = iota
	// an RTT increase was seen: conservative slow start
	hyStartActive
	// slow start was exited via HyStart
	hyStartDone
)

type cubic struct {
	initialWindowPackets int
	datagramPayload      protocol.ByteCount
	pacingEnabled        bool
	hyStartEnabled       bool
	sendIdleTimeout      time.Duration

	rttStats *utils.RTTStats
	tracer   *logging.ConnectionTracer
	logger   utils.Logger

	congestionWindow   protocol.ByteCount
	slowStartThreshold protocol.ByteCount
	bytesInFlight      protocol.ByteCount
	bytesInFlightMax   protocol.ByteCount
	lastSendAllowance  protocol.ByteCount
	exemptions         uint8

	// cubic state, updated on every congestion event
	windowMax     protocol.ByteCount
	windowLastMax protocol.ByteCount
	// the congestion window before the last congestion event, above which
	// the AIMD window grows at half speed
	windowPrior protocol.ByteCount
	// time (in ms) for the cubic function to grow back to windowMax
	kCubic uint64

	// Reno-friendly window (RFC 8312bis), tracked in parallel
	aimdWindow      protocol.ByteCount
	aimdAccumulator protocol.ByteCount

	isInRecovery             bool
	hasHadCongestionEvent    bool
	isInPersistentCongestion bool
	// losses of packets sent before this one belong to the current
	// congestion event and don't trigger a new one
	recoverySentPacketNumber protocol.PacketNumber

	timeOfCongAvoidStart monotime.Time
	timeOfLastAck        monotime.Time // zero means no ACK processed yet

	// HyStart++ state
	hyStartState           hyStartState
	hyStartAckCount        uint32
	hyStartRoundEnd        protocol.PacketNumber
	minRTTInLastRound      time.Duration
	minRTTInCurrentRound   time.Duration
	cssBaselineMinRTT      time.Duration
	conservativeSSRounds   uint32
	slowStartGrowthDivisor protocol.ByteCount

	// snapshot taken on every congestion event, for rollback of spurious ones
	prev struct {
		congestionWindow   protocol.ByteCount
		slowStartThreshold protocol.ByteCount
		windowMax          protocol.ByteCount
		windowLastMax      protocol.ByteCount
		windowPrior        protocol.ByteCount
		aimdWindow         protocol.ByteCount
		aimdAccumulator    protocol.ByteCount
		kCubic             uint64
	}
}

var _ Controller = &cubic{}

func newCubic(
	cfg Config,
	rttStats *utils.RTTStats,
	tracer *logging.ConnectionTracer,
	logger utils.Logger,
) *cubic {
	c := &cubic{
		initialWindowPackets: cfg.InitialWindowPackets,
		datagramPayload:      cfg.datagramPayloadSize(),
		pacingEnabled:        cfg.EnablePacing,
		hyStartEnabled:       cfg.EnableHyStart,
		sendIdleTimeout:      cfg.SendIdleTimeout,
		rttStats:             rttStats,
		tracer:               tracer,
		logger:               logger,
	}
	c.Reset(true)
	return c
}

func (c *cubic) CanSend() bool {
	return c.bytesInFlight < c.congestionWindow || c.exemptions > 0
}

func (c *cubic) SetExemption(numPackets uint8) { c.exemptions = numPackets }
func (c *cubic) GetExemptions() uint8          { return c.exemptions }

func (c *cubic) Reset(fullReset bool) {
	c.congestionWindow = c.datagramPayload * protocol.ByteCount(c.initialWindowPackets)
	c.slowStartThreshold = protocol.MaxByteCount
	c.bytesInFlightMax = c.congestionWindow / 2
	c.lastSendAllowance = 0
	c.exemptions = 0
	c.windowMax = 0
	c.windowLastMax = 0
	c.windowPrior = 0
	c.kCubic = 0
	c.aimdWindow = 0
	c.aimdAccumulator = 0
	c.isInRecovery = false
	c.hasHadCongestionEvent = false
	c.isInPersistentCongestion = false
	c.recoverySentPacketNumber = 0
	c.timeOfCongAvoidStart = 0
	c.timeOfLastAck = 0
	c.resetHyStart()
	if fullReset {
		c.bytesInFlight = 0
	}
	if c.tracer != nil && c.tracer.CongestionStateUpdated != nil {
		c.tracer.CongestionStateUpdated(logging.CongestionStateSlowStart)
	}
	c.LogOutFlowStatus()
}

func (c *cubic) resetHyStart() {
	c.hyStartState = hyStartNotStarted
	c.hyStartAckCount = 0
	c.hyStartRoundEnd = 0
	c.minRTTInLastRound = utils.InfDuration
	c.minRTTInCurrentRound = utils.InfDuration
	c.cssBaselineMinRTT = utils.InfDuration
	c.conservativeSSRounds = 0
	c.slowStartGrowthDivisor = 1
}

func (c *cubic) GetSendAllowance(timeSinceLastSend time.Duration, timeSinceLastSendValid bool) protocol.ByteCount {
	if c.bytesInFlight >= c.congestionWindow {
		return 0 // currently blocked
	}
	srtt := c.rttStats.SmoothedRTT()
	if !timeSinceLastSendValid || !c.pacingEnabled || srtt < protocol.MinPacingRTT {
		// pacing is futile below MinPacingRTT (and impossible without an
		// RTT sample): allow the entire usable window
		return c.congestionWindow - c.bytesInFlight
	}

	// Estimate the window at the end of the current RTT: during slow start
	// the window doubles per RTT (but never beyond the threshold), in
	// congestion avoidance a 25% margin keeps pacing from becoming the
	// limiting factor.
	var estimatedWnd protocol.ByteCount
	if c.congestionWindow < c.slowStartThreshold {
		estimatedWnd = c.congestionWindow << 1
		if estimatedWnd > c.slowStartThreshold {
			estimatedWnd = c.slowStartThreshold
		}
	} else {
		estimatedWnd = c.congestionWindow + c.congestionWindow/4
	}

	sendAllowance := c.lastSendAllowance +
		protocol.ByteCount(uint64(estimatedWnd)*uint64(timeSinceLastSend)/uint64(srtt))
	if sendAllowance < c.lastSendAllowance || // overflow
		sendAllowance > c.congestionWindow-c.bytesInFlight {
		sendAllowance = c.congestionWindow - c.bytesInFlight
	}
	c.lastSendAllowance = sendAllowance
	return sendAllowance
}

func (c *cubic) OnDataSent(numRetransmittableBytes protocol.ByteCount) {
	previousCanSendState := c.CanSend()

	c.bytesInFlight += numRetransmittableBytes
	if c.bytesInFlightMax < c.bytesInFlight {
		c.bytesInFlightMax = c.bytesInFlight
	}
	if c.lastSendAllowance > numRetransmittableBytes {
		c.lastSendAllowance -= numRetransmittableBytes
	} else {
		c.lastSendAllowance = 0
	}
	if c.exemptions > 0 {
		c.exemptions--
	}

	c.updateBlockedState(previousCanSendState)
}

func (c *cubic) OnDataInvalidated(numRetransmittableBytes protocol.ByteCount) bool {
	previousCanSendState := c.CanSend()
	c.bytesInFlight -= numRetransmittableBytes
	return c.updateBlockedState(previousCanSendState)
}

func (c *cubic) OnDataAcknowledged(ev AckEvent) bool {
	previousCanSendState := c.CanSend()
	c.bytesInFlight -= ev.NumRetransmittableBytes

	if ev.IsImplicit {
		return c.updateBlockedState(previousCanSendState)
	}

	if c.isInRecovery {
		if ev.LargestAck > c.recoverySentPacketNumber {
			// a packet sent after the congestion event was acknowledged:
			// recovery is over
			c.isInRecovery = false
			c.isInPersistentCongestion = false
			c.timeOfCongAvoidStart = ev.Time
			if c.logger.Debug() {
				c.logger.Debugf("Exiting recovery, cwnd=%d ssthresh=%d", c.congestionWindow, c.slowStartThreshold)
			}
			if c.tracer != nil && c.tracer.CongestionStateUpdated != nil {
				c.tracer.CongestionStateUpdated(logging.CongestionStateCongestionAvoidance)
			}
		}
	} else if ev.NumRetransmittableBytes > 0 {
		c.maybeShiftCongAvoidStart(ev.Time)
		if c.congestionWindow < c.slowStartThreshold {
			c.onAckInSlowStart(ev)
		} else {
			c.onAckInCongestionAvoidance(ev)
		}
		// the window may never grow beyond twice the maximum amount of data
		// that was ever actually in flight
		c.congestionWindow = min(c.congestionWindow, 2*c.bytesInFlightMax)
	}

	c.timeOfLastAck = ev.Time
	return c.updateBlockedState(previousCanSendState)
}

// maybeShiftCongAvoidStart moves the congestion avoidance epoch forward
// after an idle period, so that idle time doesn't count as elapsed time for
// the cubic function.
func (c *cubic) maybeShiftCongAvoidStart(now monotime.Time) {
	if c.timeOfLastAck.IsZero() {
		return
	}
	timeSinceLastAck := now.Sub(c.timeOfLastAck)
	if timeSinceLastAck > c.sendIdleTimeout &&
		timeSinceLastAck > c.rttStats.SmoothedRTT()+4*c.rttStats.MeanDeviation() {
		c.timeOfCongAvoidStart = c.timeOfCongAvoidStart.Add(timeSinceLastAck)
		if now.Before(c.timeOfCongAvoidStart) {
			c.timeOfCongAvoidStart = now
		}
	}
}

func (c *cubic) onAckInSlowStart(ev AckEvent) {
	c.congestionWindow += ev.NumRetransmittableBytes / c.slowStartGrowthDivisor
	if c.hyStartEnabled {
		c.hyStartOnAck(ev)
	}
	if c.congestionWindow >= c.slowStartThreshold {
		c.timeOfCongAvoidStart = ev.Time
		if c.tracer != nil && c.tracer.CongestionStateUpdated != nil {
			c.tracer.CongestionStateUpdated(logging.CongestionStateCongestionAvoidance)
		}
	}
}

func (c *cubic) onAckInCongestionAvoidance(ev AckEvent) {
	// W_cubic(t) = C*(t-K)^3 + WindowMax
	// Computed in integer math: time in microseconds, the combined shift of
	// 60 approximates the division by 10^18 needed to convert us^3 to s^3.
	timeInCongAvoid := ev.Time.Sub(c.timeOfCongAvoidStart).Microseconds()
	deltaT := timeInCongAvoid - int64(c.kCubic)*1000
	if deltaT > maxCongestionAvoidanceTime {
		deltaT = maxCongestionAvoidanceTime
	}
	cubicWindow := (((deltaT*deltaT)>>10)*deltaT*int64(c.datagramPayload*tenTimesCCubic/10))>>50 +
		int64(c.windowMax)
	if cubicWindow < 0 {
		// overflow, the window would be huge anyway
		cubicWindow = int64(2 * c.bytesInFlightMax)
	}

	// Update the Reno-friendly window: +1 MTU per window's worth of ACKs,
	// at half speed while below the pre-congestion window (RFC 8312bis).
	if c.aimdWindow < c.windowPrior {
		c.aimdAccumulator += ev.NumRetransmittableBytes / 2
	} else {
		c.aimdAccumulator += ev.NumRetransmittableBytes
	}
	if c.aimdAccumulator > c.aimdWindow {
		c.aimdAccumulator -= c.aimdWindow
		c.aimdWindow += c.datagramPayload
	}

	if c.aimdWindow > protocol.ByteCount(cubicWindow) {
		// the Reno-friendly region
		c.congestionWindow = c.aimdWindow
	} else {
		// grow towards the cubic window, proportionally to the distance
		c.congestionWindow +=
			(protocol.ByteCount(cubicWindow) - c.congestionWindow) * c.datagramPayload / c.congestionWindow
	}
}

func (c *cubic) OnDataLost(ev LossEvent) bool {
	previousCanSendState := c.CanSend()
	if !c.hasHadCongestionEvent || ev.LargestPacketNumberLost > c.recoverySentPacketNumber {
		c.recoverySentPacketNumber = ev.LargestSentPacketNumber
		c.onCongestionEvent(ev.PersistentCongestion, false)
	}
	c.bytesInFlight -= ev.NumRetransmittableBytes
	if c.tracer != nil && c.tracer.LostPackets != nil {
		c.tracer.LostPackets(ev.LargestPacketNumberLost, ev.NumRetransmittableBytes)
	}
	return c.updateBlockedState(previousCanSendState)
}

func (c *cubic) OnEcn(ev EcnEvent) bool {
	previousCanSendState := c.CanSend()
	if !c.hasHadCongestionEvent || ev.LargestPacketNumberAcked > c.recoverySentPacketNumber {
		c.recoverySentPacketNumber = ev.LargestSentPacketNumber
		c.onCongestionEvent(false, true)
	}
	return c.updateBlockedState(previousCanSendState)
}

// onCongestionEvent reduces the congestion window in response to loss or an
// ECN signal. Only the first loss per round trip triggers it, the caller
// checks recoverySentPacketNumber.
func (c *cubic) onCongestionEvent(persistentCongestion, ecn bool) {
	if c.logger.Debug() {
		c.logger.Debugf("Congestion event: cwnd=%d persistent=%t ecn=%t", c.congestionWindow, persistentCongestion, ecn)
	}
	if ecn && c.tracer != nil && c.tracer.EcnCongestionEvent != nil {
		c.tracer.EcnCongestionEvent()
	}

	// snapshot, in case the event turns out to be spurious
	c.prev.congestionWindow = c.congestionWindow
	c.prev.slowStartThreshold = c.slowStartThreshold
	c.prev.windowMax = c.windowMax
	c.prev.windowLastMax = c.windowLastMax
	c.prev.windowPrior = c.windowPrior
	c.prev.aimdWindow = c.aimdWindow
	c.prev.aimdAccumulator = c.aimdAccumulator
	c.prev.kCubic = c.kCubic

	c.isInRecovery = true
	c.hasHadCongestionEvent = true

	if persistentCongestion && !c.isInPersistentCongestion {
		// collapse to the minimum window, like after a timeout
		reduced := c.congestionWindow * tenTimesBetaCubic / 10
		c.windowPrior = reduced
		c.windowMax = reduced
		c.windowLastMax = reduced
		c.slowStartThreshold = reduced
		c.aimdWindow = reduced
		c.aimdAccumulator = 0
		c.congestionWindow = protocol.PersistentCongestionWindowPackets * c.datagramPayload
		c.kCubic = 0
		c.isInPersistentCongestion = true
		if c.tracer != nil && c.tracer.CongestionStateUpdated != nil {
			c.tracer.CongestionStateUpdated(logging.CongestionStatePersistentCongestion)
		}
		return
	}

	c.windowPrior = c.congestionWindow
	c.windowMax = c.congestionWindow
	if c.windowLastMax > c.windowMax {
		// fast convergence: the window saturated below its previous maximum,
		// so a new flow is likely competing. Release additional room.
		c.windowLastMax = c.windowMax
		c.windowMax = c.windowMax * (10 + tenTimesBetaCubic) / 20
	} else {
		c.windowLastMax = c.windowMax
	}

	// K = cbrt(WindowMax*(1-beta)/C), in 1/8ths of a second, then converted
	// to milliseconds
	k := cubeRoot((uint64(c.windowMax/c.datagramPayload) * (10 - tenTimesBetaCubic) << 9) / tenTimesCCubic)
	c.kCubic = k * 1000 >> 3

	c.slowStartThreshold = max(
		2*c.datagramPayload,
		c.congestionWindow*tenTimesBetaCubic/10,
	)
	c.congestionWindow = c.slowStartThreshold
	c.aimdWindow = c.congestionWindow
	c.aimdAccumulator = 0

	if c.tracer != nil && c.tracer.CongestionStateUpdated != nil {
		c.tracer.CongestionStateUpdated(logging.CongestionStateRecovery)
	}
}

func (c *cubic) OnSpuriousCongestionEvent() bool {
	if !c.isInRecovery {
		return false
	}
	previousCanSendState := c.CanSend()

	// revert to the exact state from before the congestion event
	c.congestionWindow = c.prev.congestionWindow
	c.slowStartThreshold = c.prev.slowStartThreshold
	c.windowMax = c.prev.windowMax
	c.windowLastMax = c.prev.windowLastMax
	c.windowPrior = c.prev.windowPrior
	c.aimdWindow = c.prev.aimdWindow
	c.aimdAccumulator = c.prev.aimdAccumulator
	c.kCubic = c.prev.kCubic

	c.isInRecovery = false
	c.hasHadCongestionEvent = false
	c.isInPersistentCongestion = false

	if c.logger.Debug() {
		c.logger.Debugf("Spurious congestion event, restored cwnd=%d", c.congestionWindow)
	}
	if c.tracer != nil && c.tracer.SpuriousCongestionEvent != nil {
		c.tracer.SpuriousCongestionEvent()
	}
	return c.updateBlockedState(previousCanSendState)
}

// updateBlockedState reports whether the connection was unblocked by the
// last state change.
func (c *cubic) updateBlockedState(previousCanSendState bool) bool {
	canSend := c.CanSend()
	if canSend == previousCanSendState {
		return false
	}
	if canSend {
		if c.logger.Debug() {
			c.logger.Debugf("Congestion control unblocked")
		}
		return true
	}
	c.LogOutFlowStatus()
	return false
}

func (c *cubic) GetBytesInFlightMax() protocol.ByteCount { return c.bytesInFlightMax }
func (c *cubic) GetCongestionWindow() protocol.ByteCount { return c.congestionWindow }

// IsAppLimited always reports false: CUBIC doesn't model application-limited
// phases, the window simply doesn't grow while the ACK clock is starved.
func (c *cubic) IsAppLimited() bool { return false }
func (c *cubic) SetAppLimited()     {}

func (c *cubic) GetNetworkStatistics() NetworkStatistics {
	stats := NetworkStatistics{
		BytesInFlight:            c.bytesInFlight,
		BytesInFlightMax:         c.bytesInFlightMax,
		CongestionWindow:         c.congestionWindow,
		SlowStartThreshold:       c.slowStartThreshold,
		SmoothedRTT:              c.rttStats.SmoothedRTT(),
		MinRTT:                   c.rttStats.MinRTT(),
		LatestRTT:                c.rttStats.LatestRTT(),
		RTTVariance:              c.rttStats.MeanDeviation(),
		IsInRecovery:             c.isInRecovery,
		IsInPersistentCongestion: c.isInPersistentCongestion,
	}
	if srtt := c.rttStats.SmoothedRTT(); srtt > 0 {
		stats.Bandwidth = protocol.ByteCount(uint64(c.congestionWindow) * uint64(time.Second) / uint64(srtt))
	}
	return stats
}

func (c *cubic) LogOutFlowStatus() {
	if c.logger.Debug() {
		c.logger.Debugf("OUT: inflight=%d inflight_max=%d cwnd=%d ssthresh=%d allowance=%d exemptions=%d",
			c.bytesInFlight, c.bytesInFlightMax, c.congestionWindow, c.slowStartThreshold, c.lastSendAllowance, c.exemptions)
	}
	if c.tracer != nil && c.tracer.UpdatedMetrics != nil {
		c.tracer.UpdatedMetrics(c.rttStats, c.congestionWindow, c.bytesInFlight)
	}
}

// hyStartOnAck implements HyStart++: it samples RTTs during slow start and
// switches to conservative growth when the RTT starts rising, exiting slow
// start before the first loss.
func (c *cubic) hyStartOnAck(ev AckEvent) {
	if c.hyStartState == hyStartDone {
		return
	}
	if ev.MinRTTValid {
		if ev.MinRTT < c.minRTTInCurrentRound {
			c.minRTTInCurrentRound = ev.MinRTT
		}
		c.hyStartAckCount++
	}

	if c.hyStartAckCount >= hyStartMinRTTSamples &&
		c.minRTTInLastRound != utils.InfDuration &&
		c.minRTTInCurrentRound != utils.InfDuration {
		eta := min(max(c.minRTTInLastRound/8, hyStartMinEta), hyStartMaxEta)
		switch c.hyStartState {
		case hyStartNotStarted:
			if c.minRTTInCurrentRound >= c.minRTTInLastRound+eta {
				// the RTT is rising: the queue is starting to fill
				c.cssBaselineMinRTT = c.minRTTInCurrentRound
				c.conservativeSSRounds = hyStartConservativeRounds
				c.slowStartGrowthDivisor = hyStartCSSGrowthDivisor
				c.hyStartState = hyStartActive
			}
		case hyStartActive:
			if c.minRTTInCurrentRound < c.cssBaselineMinRTT {
				// the RTT recovered, the increase was spurious
				c.cssBaselineMinRTT = utils.InfDuration
				c.conservativeSSRounds = 0
				c.slowStartGrowthDivisor = 1
				c.hyStartState = hyStartNotStarted
			}
		}
	}

	if ev.LargestAck >= c.hyStartRoundEnd {
		// round over, everything sent at its beginning was acknowledged
		c.hyStartRoundEnd = ev.LargestSentPacketNumber
		c.minRTTInLastRound = c.minRTTInCurrentRound
		c.minRTTInCurrentRound = utils.InfDuration
		c.hyStartAckCount = 0
		if c.hyStartState == hyStartActive {
			c.conservativeSSRounds--
			if c.conservativeSSRounds == 0 {
				c.hyStartExitSlowStart(ev)
			}
		}
	}
}

// hyStartExitSlowStart leaves slow start without a loss: the current window
// becomes the saturation point.
func (c *cubic) hyStartExitSlowStart(ev AckEvent) {
	c.hyStartState = hyStartDone
	c.slowStartGrowthDivisor = 1
	c.slowStartThreshold = c.congestionWindow
	c.windowPrior = c.congestionWindow
	c.windowMax = c.congestionWindow
	c.windowLastMax = c.congestionWindow
	c.aimdWindow = c.congestionWindow
	c.aimdAccumulator = 0
	c.kCubic = 0
	c.timeOfCongAvoidStart = ev.Time
	if c.logger.Debug() {
		c.logger.Debugf("HyStart exiting slow start, cwnd=%d", c.congestionWindow)
	}
	if c.tracer != nil && c.tracer.CongestionStateUpdated != nil {
		c.tracer.CongestionStateUpdated(logging.CongestionStateCongestionAvoidance)
	}
}
