package protocol

import "fmt"

// A PacketNumber in QUIC
type PacketNumber int64

// InvalidPacketNumber is a packet number that is never sent.
// In QUIC, 0 is a valid packet number.
const InvalidPacketNumber PacketNumber = -1

// MaxPacketNumber is the largest possible packet number
const MaxPacketNumber PacketNumber = 1<<62 - 1

// A ByteCount in QUIC
type ByteCount int64

// MaxByteCount is the maximum value of a ByteCount
const MaxByteCount = ByteCount(1<<62 - 1)

// ECN is the ECN codepoint of a packet, as received from the IP header.
type ECN uint8

const (
	// ECNUnsupported means it is unknown if the packet was marked.
	ECNUnsupported ECN = iota
	// ECNNon is the Not-ECT codepoint
	ECNNon
	// ECT1 is the ECT(1) codepoint
	ECT1
	// ECT0 is the ECT(0) codepoint
	ECT0
	// ECNCE is the CE codepoint
	ECNCE
)

func (e ECN) String() string {
	switch e {
	case ECNUnsupported:
		return "ECN unsupported"
	case ECNNon:
		return "Not-ECT"
	case ECT1:
		return "ECT(1)"
	case ECT0:
		return "ECT(0)"
	case ECNCE:
		return "CE"
	default:
		return fmt.Sprintf("invalid ECN value: %d", uint8(e))
	}
}
