package congestion

import (
	"fmt"
	"time"

	"github.com/quicnet/congestion/internal/protocol"
)

// Config configures a congestion Controller.
// The zero value is valid and uses the defaults noted on each field.
type Config struct {
	// Algorithm to use. Defaults to CUBIC.
	Algorithm protocol.CongestionControlAlgorithm
	// InitialWindowPackets is the initial congestion window, in packets.
	// Defaults to protocol.InitialCongestionWindowPackets.
	InitialWindowPackets int
	// MaxUDPPayloadSize is the assumed size of sent datagrams, including
	// IP and UDP headers. Defaults to protocol.DefaultMaxUDPPayloadSize.
	MaxUDPPayloadSize protocol.ByteCount
	// EnablePacing spreads sends over the RTT instead of sending the whole
	// congestion window as a burst.
	EnablePacing bool
	// EnableHyStart enables HyStart++ (RFC 9406) slow start exit.
	EnableHyStart bool
	// SendIdleTimeout is the period without acknowledgements after which
	// idle time stops counting towards congestion window growth.
	// Defaults to protocol.DefaultSendIdleTimeout.
	SendIdleTimeout time.Duration
}

// Validate checks the config and fills in defaults.
func (c *Config) Validate() error {
	if c.InitialWindowPackets < 0 {
		return fmt.Errorf("invalid initial congestion window: %d packets", c.InitialWindowPackets)
	}
	if c.InitialWindowPackets == 0 {
		c.InitialWindowPackets = protocol.InitialCongestionWindowPackets
	}
	if c.MaxUDPPayloadSize == 0 {
		c.MaxUDPPayloadSize = protocol.DefaultMaxUDPPayloadSize
	}
	if c.MaxUDPPayloadSize <= protocol.UDPOverheadV6 {
		return fmt.Errorf("invalid UDP payload size: %d bytes", c.MaxUDPPayloadSize)
	}
	if c.SendIdleTimeout < 0 {
		return fmt.Errorf("invalid send idle timeout: %s", c.SendIdleTimeout)
	}
	if c.SendIdleTimeout == 0 {
		c.SendIdleTimeout = protocol.DefaultSendIdleTimeout
	}
	return nil
}

// datagramPayloadSize is the number of usable bytes in every datagram.
func (c *Config) datagramPayloadSize() protocol.ByteCount {
	return c.MaxUDPPayloadSize - protocol.UDPOverheadV6
}
