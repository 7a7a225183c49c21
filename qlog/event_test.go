package qlog

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/francoispqt/gojay"
	"github.com/stretchr/testify/require"
)

type mevent struct{}

var _ eventDetails = mevent{}

func (mevent) Category() category                   { return categoryRecovery }
func (mevent) Name() string                         { return "mevent" }
func (mevent) IsNil() bool                          { return false }
func (mevent) MarshalJSONObject(enc *gojay.Encoder) { enc.StringKey("event", "details") }

func TestEventMarshaling(t *testing.T) {
	buf := &bytes.Buffer{}
	enc := gojay.NewEncoder(buf)
	err := enc.Encode(event{
		RelativeTime: 1337 * time.Microsecond,
		eventDetails: mevent{},
	})
	require.NoError(t, err)

	var decoded map[string]interface{}
	err = json.Unmarshal(buf.Bytes(), &decoded)
	require.NoError(t, err)
	require.Len(t, decoded, 3)

	require.Equal(t, 1.337, decoded["time"])
	require.Equal(t, "recovery:mevent", decoded["name"])
	require.Contains(t, decoded, "data")

	data, ok := decoded["data"].(map[string]interface{})
	require.True(t, ok)
	require.Len(t, data, 1)
	require.Equal(t, "details", data["event"])
}

func marshalDetails(t *testing.T, details eventDetails) map[string]interface{} {
	t.Helper()
	buf := &bytes.Buffer{}
	enc := gojay.NewEncoder(buf)
	require.NoError(t, enc.Encode(details))
	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	return decoded
}

func TestMetricsUpdatedMarshaling(t *testing.T) {
	current := &metrics{
		MinRTT:           10 * time.Millisecond,
		SmoothedRTT:      12 * time.Millisecond,
		LatestRTT:        11 * time.Millisecond,
		RTTVariance:      time.Millisecond,
		CongestionWindow: 12320,
		BytesInFlight:    6160,
	}
	data := marshalDetails(t, eventMetricsUpdated{Current: current})
	require.Equal(t, 10.0, data["min_rtt"])
	require.Equal(t, 12.0, data["smoothed_rtt"])
	require.Equal(t, 11.0, data["latest_rtt"])
	require.Equal(t, 1.0, data["rtt_variance"])
	require.Equal(t, 12320.0, data["congestion_window"])
	require.Equal(t, 6160.0, data["bytes_in_flight"])
}

func TestMetricsUpdatedOnlyLogsChangedFields(t *testing.T) {
	last := &metrics{
		MinRTT:           10 * time.Millisecond,
		SmoothedRTT:      12 * time.Millisecond,
		LatestRTT:        11 * time.Millisecond,
		RTTVariance:      time.Millisecond,
		CongestionWindow: 12320,
		BytesInFlight:    6160,
	}
	current := *last
	current.BytesInFlight = 7392
	data := marshalDetails(t, eventMetricsUpdated{Last: last, Current: &current})
	require.Len(t, data, 1)
	require.Equal(t, 7392.0, data["bytes_in_flight"])
}

func TestCongestionStateUpdatedMarshaling(t *testing.T) {
	data := marshalDetails(t, eventCongestionStateUpdated{state: "recovery"})
	require.Equal(t, map[string]interface{}{"new": "recovery"}, data)
}

func TestPacketLostMarshaling(t *testing.T) {
	data := marshalDetails(t, eventPacketLost{PacketNumber: 42, Bytes: 1232})
	require.Equal(t, 42.0, data["packet_number"])
	require.Equal(t, 1232.0, data["bytes"])
}

func TestPacketDroppedMarshaling(t *testing.T) {
	data := marshalDetails(t, eventPacketDropped{PacketNumber: 7, Trigger: "duplicate"})
	require.Equal(t, 7.0, data["packet_number"])
	require.Equal(t, "duplicate", data["trigger"])
}
