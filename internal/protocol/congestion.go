package protocol

import "strings"

// CongestionControlAlgorithm selects the congestion control algorithm.
type CongestionControlAlgorithm uint8

const (
	// CongestionControlCubic is the CUBIC algorithm (RFC 8312).
	CongestionControlCubic CongestionControlAlgorithm = iota
	// CongestionControlBBR is the BBR algorithm.
	CongestionControlBBR
)

func (a CongestionControlAlgorithm) String() string {
	switch a {
	case CongestionControlCubic:
		return "cubic"
	case CongestionControlBBR:
		return "bbr"
	default:
		return "unknown"
	}
}

// ParseCongestionControlAlgorithm parses the algorithm name, defaulting to
// CUBIC for unknown names.
func ParseCongestionControlAlgorithm(s string) CongestionControlAlgorithm {
	switch strings.ToLower(s) {
	case "bbr":
		return CongestionControlBBR
	default:
		return CongestionControlCubic
	}
}
