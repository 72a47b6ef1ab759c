// Package protocol implements the small subset of RFC 6455 the harness
// needs: the opening handshake on both sides, framing, fragmentation,
// control frames and the close handshake.
package protocol

// WebSocket opcodes per RFC 6455.
const (
	OpContinue = 0
	OpText     = 1
	OpBinary   = 2
	OpClose    = 8
	OpPing     = 9
	OpPong     = 10
)

// Close status codes per RFC 6455 section 7.4.1.
const (
	CloseNormal         = 1000
	CloseGoingAway      = 1001
	CloseProtocolError  = 1002
	CloseNoStatus       = 1005
	CloseInvalidPayload = 1007
	CloseMessageTooBig  = 1009
	CloseInternalError  = 1011
)

// DefaultMaxMessageSize bounds a reassembled message.
const DefaultMaxMessageSize = 1 << 20

// maxControlPayload is the largest payload a control frame may carry.
const maxControlPayload = 125

// Frame is a single decoded WebSocket frame.
type Frame struct {
	Fin     bool
	Opcode  byte
	Masked  bool
	Payload []byte
}

func isControl(opcode byte) bool {
	return opcode&0x8 != 0
}

func isKnown(opcode byte) bool {
	switch opcode {
	case OpContinue, OpText, OpBinary, OpClose, OpPing, OpPong:
		return true
	}
	return false
}
