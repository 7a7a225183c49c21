package qlog

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/quicnet/congestion/internal/utils"
	"github.com/quicnet/congestion/logging"

	"github.com/stretchr/testify/require"
)

type nopWriteCloser struct {
	*bytes.Buffer
	closed bool
}

func (c *nopWriteCloser) Close() error {
	c.closed = true
	return nil
}

func record(t *testing.T, events func(tracer *logging.ConnectionTracer)) []map[string]interface{} {
	t.Helper()
	buf := &nopWriteCloser{Buffer: &bytes.Buffer{}}
	tracer := NewConnectionTracer(buf)
	events(tracer)
	tracer.Close()
	require.True(t, buf.closed)

	var records []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var decoded map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &decoded))
		records = append(records, decoded)
	}
	return records
}

func TestTraceHeader(t *testing.T) {
	records := record(t, func(*logging.ConnectionTracer) {})
	require.Len(t, records, 1)
	header := records[0]
	require.Equal(t, "NDJSON", header["qlog_format"])
	require.Equal(t, "draft-02", header["qlog_version"])
	trace, ok := header["trace"].(map[string]interface{})
	require.True(t, ok)
	common, ok := trace["common_fields"].(map[string]interface{})
	require.True(t, ok)
	require.Equal(t, "relative", common["time_format"])
	require.Contains(t, common, "reference_time")
}

func TestTracerRecordsEvents(t *testing.T) {
	var rttStats utils.RTTStats
	rttStats.UpdateRTT(50*time.Millisecond, 0)
	records := record(t, func(tracer *logging.ConnectionTracer) {
		tracer.UpdatedMetrics(&rttStats, 12320, 6160)
		tracer.CongestionStateUpdated(logging.CongestionStateRecovery)
		tracer.LostPackets(42, 1232)
		tracer.EcnCongestionEvent()
		tracer.SpuriousCongestionEvent()
		tracer.ReceivedDuplicatePacket(7)
	})
	require.Len(t, records, 7) // trace header + 6 events

	names := make([]string, 0, 6)
	for _, r := range records[1:] {
		name, ok := r["name"].(string)
		require.True(t, ok)
		names = append(names, name)
		require.Contains(t, r, "time")
		require.Contains(t, r, "data")
	}
	require.Equal(t, []string{
		"recovery:metrics_updated",
		"recovery:congestion_state_updated",
		"recovery:packet_lost",
		"recovery:ecn_congestion_event",
		"recovery:spurious_congestion_event",
		"transport:packet_dropped",
	}, names)
}

func TestTracerDeduplicatesMetrics(t *testing.T) {
	var rttStats utils.RTTStats
	rttStats.UpdateRTT(50*time.Millisecond, 0)
	records := record(t, func(tracer *logging.ConnectionTracer) {
		tracer.UpdatedMetrics(&rttStats, 12320, 6160)
		tracer.UpdatedMetrics(&rttStats, 12320, 7392)
	})
	require.Len(t, records, 3)

	first, ok := records[1]["data"].(map[string]interface{})
	require.True(t, ok)
	require.Contains(t, first, "congestion_window")
	second, ok := records[2]["data"].(map[string]interface{})
	require.True(t, ok)
	require.NotContains(t, second, "congestion_window")
	require.Equal(t, 7392.0, second["bytes_in_flight"])
}
