package qlog

import (
	"time"

	"github.com/quicnet/congestion/internal/protocol"

	"github.com/francoispqt/gojay"
)

type category uint8

const (
	categoryRecovery category = iota
	categoryTransport
)

func (c category) String() string {
	switch c {
	case categoryRecovery:
		return "recovery"
	case categoryTransport:
		return "transport"
	default:
		return "unknown category"
	}
}

func milliseconds(dur time.Duration) float64 { return float64(dur.Nanoseconds()) / 1e6 }

type eventDetails interface {
	Category() category
	Name() string
	gojay.MarshalerJSONObject
}

type event struct {
	RelativeTime time.Duration
	eventDetails
}

var _ gojay.MarshalerJSONObject = event{}

func (e event) IsNil() bool { return false }
func (e event) MarshalJSONObject(enc *gojay.Encoder) {
	enc.Float64Key("time", milliseconds(e.RelativeTime))
	enc.StringKey("name", e.Category().String()+":"+e.Name())
	enc.ObjectKey("data", e.eventDetails)
}

type metrics struct {
	MinRTT      time.Duration
	SmoothedRTT time.Duration
	LatestRTT   time.Duration
	RTTVariance time.Duration

	CongestionWindow protocol.ByteCount
	BytesInFlight    protocol.ByteCount
}

type eventMetricsUpdated struct {
	Last    *metrics
	Current *metrics
}

func (e eventMetricsUpdated) Category() category { return categoryRecovery }
func (e eventMetricsUpdated) Name() string       { return "metrics_updated" }
func (e eventMetricsUpdated) IsNil() bool        { return false }

// MarshalJSONObject only logs the fields that changed since the last event.
func (e eventMetricsUpdated) MarshalJSONObject(enc *gojay.Encoder) {
	if e.Last == nil || e.Last.MinRTT != e.Current.MinRTT {
		enc.FloatKey("min_rtt", milliseconds(e.Current.MinRTT))
	}
	if e.Last == nil || e.Last.SmoothedRTT != e.Current.SmoothedRTT {
		enc.FloatKey("smoothed_rtt", milliseconds(e.Current.SmoothedRTT))
	}
	if e.Last == nil || e.Last.LatestRTT != e.Current.LatestRTT {
		enc.FloatKey("latest_rtt", milliseconds(e.Current.LatestRTT))
	}
	if e.Last == nil || e.Last.RTTVariance != e.Current.RTTVariance {
		enc.FloatKey("rtt_variance", milliseconds(e.Current.RTTVariance))
	}
	if e.Last == nil || e.Last.CongestionWindow != e.Current.CongestionWindow {
		enc.Uint64Key("congestion_window", uint64(e.Current.CongestionWindow))
	}
	if e.Last == nil || e.Last.BytesInFlight != e.Current.BytesInFlight {
		enc.Uint64Key("bytes_in_flight", uint64(e.Current.BytesInFlight))
	}
}

type eventCongestionStateUpdated struct {
	state string
}

func (e eventCongestionStateUpdated) Category() category { return categoryRecovery }
func (e eventCongestionStateUpdated) Name() string       { return "congestion_state_updated" }
func (e eventCongestionStateUpdated) IsNil() bool        { return false }

func (e eventCongestionStateUpdated) MarshalJSONObject(enc *gojay.Encoder) {
	enc.StringKey("new", e.state)
}

type eventPacketLost struct {
	PacketNumber protocol.PacketNumber
	Bytes        protocol.ByteCount
}

func (e eventPacketLost) Category() category { return categoryRecovery }
func (e eventPacketLost) Name() string       { return "packet_lost" }
func (e eventPacketLost) IsNil() bool        { return false }

func (e eventPacketLost) MarshalJSONObject(enc *gojay.Encoder) {
	enc.Int64Key("packet_number", int64(e.PacketNumber))
	enc.Uint64Key("bytes", uint64(e.Bytes))
}

type eventPacketDropped struct {
	PacketNumber protocol.PacketNumber
	Trigger      string
}

func (e eventPacketDropped) Category() category { return categoryTransport }
func (e eventPacketDropped) Name() string       { return "packet_dropped" }
func (e eventPacketDropped) IsNil() bool        { return false }

func (e eventPacketDropped) MarshalJSONObject(enc *gojay.Encoder) {
	enc.Int64Key("packet_number", int64(e.PacketNumber))
	enc.StringKey("trigger", e.Trigger)
}

type eventECNCongestion struct{}

func (e eventECNCongestion) Category() category { return categoryRecovery }
func (e eventECNCongestion) Name() string       { return "ecn_congestion_event" }
func (e eventECNCongestion) IsNil() bool        { return false }

func (e eventECNCongestion) MarshalJSONObject(enc *gojay.Encoder) {}

type eventSpuriousCongestion struct{}

func (e eventSpuriousCongestion) Category() category { return categoryRecovery }
func (e eventSpuriousCongestion) Name() string       { return "spurious_congestion_event" }
func (e eventSpuriousCongestion) IsNil() bool        { return false }

func (e eventSpuriousCongestion) MarshalJSONObject(enc *gojay.Encoder) {}
