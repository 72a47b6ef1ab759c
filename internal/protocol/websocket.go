package protocol

import (
	"bufio"
	"crypto/rand"
	"crypto/sha1"
	"encoding/base64"
	"encoding/binary"
	"io"
)

// WebSocket GUID per RFC 6455 section 4.2.2.
const wsGUID = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"

// AcceptKey computes the Sec-WebSocket-Accept value for a given key.
func AcceptKey(key string) string {
	h := sha1.New()
	h.Write([]byte(key + wsGUID))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// NewKey returns a random Sec-WebSocket-Key.
func NewKey() (string, error) {
	var nonce [16]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(nonce[:]), nil
}

// ReadFrame reads a single WebSocket frame from r.
// It handles extended payload lengths and optional masking, and rejects
// frames that break RFC 6455 framing rules or exceed maxPayload.
func ReadFrame(r *bufio.Reader, maxPayload int64) (Frame, error) {
	var f Frame

	header := make([]byte, 2)
	if _, err := io.ReadFull(r, header); err != nil {
		return f, err
	}

	f.Fin = header[0]&0x80 != 0
	f.Opcode = header[0] & 0x0F
	f.Masked = header[1]&0x80 != 0
	length := uint64(header[1] & 0x7F)

	if header[0]&0x70 != 0 {
		return f, protocolErr(CloseProtocolError, "reserved bits set without extension")
	}
	if !isKnown(f.Opcode) {
		return f, protocolErr(CloseProtocolError, "unknown opcode %d", f.Opcode)
	}
	if isControl(f.Opcode) {
		if !f.Fin {
			return f, protocolErr(CloseProtocolError, "fragmented control frame")
		}
		if length > maxControlPayload {
			return f, protocolErr(CloseProtocolError, "control frame payload too long")
		}
	}

	switch length {
	case 126:
		ext := make([]byte, 2)
		if _, err := io.ReadFull(r, ext); err != nil {
			return f, err
		}
		length = uint64(binary.BigEndian.Uint16(ext))
	case 127:
		ext := make([]byte, 8)
		if _, err := io.ReadFull(r, ext); err != nil {
			return f, err
		}
		length = binary.BigEndian.Uint64(ext)
		if length>>63 != 0 {
			return f, protocolErr(CloseProtocolError, "invalid payload length")
		}
	}

	if maxPayload > 0 && length > uint64(maxPayload) {
		return f, protocolErr(CloseMessageTooBig, "frame of %d bytes exceeds limit %d", length, maxPayload)
	}

	var maskKey []byte
	if f.Masked {
		maskKey = make([]byte, 4)
		if _, err := io.ReadFull(r, maskKey); err != nil {
			return f, err
		}
	}

	f.Payload = make([]byte, length)
	if _, err := io.ReadFull(r, f.Payload); err != nil {
		return f, err
	}

	if f.Masked {
		for i := range f.Payload {
			f.Payload[i] ^= maskKey[i%4]
		}
	}

	return f, nil
}

// WriteServerFrame writes an unmasked WebSocket frame (server → client).
func WriteServerFrame(w io.Writer, opcode byte, payload []byte) error {
	length := len(payload)

	// Pre-allocate: 2-byte header + up to 8 extended length bytes + payload
	frame := make([]byte, 0, 2+8+length)
	frame = append(frame, 0x80|opcode)
	frame = appendLength(frame, length, 0)

	frame = append(frame, payload...)
	_, err := w.Write(frame)
	return err
}

// WriteClientFrame writes a masked WebSocket frame (client → server).
func WriteClientFrame(w io.Writer, opcode byte, payload []byte) error {
	length := len(payload)

	// Pre-allocate: 2-byte header + up to 8 extended + 4 mask + payload
	frame := make([]byte, 0, 2+8+4+length)
	frame = append(frame, 0x80|opcode)
	frame = appendLength(frame, length, 0x80)

	maskKey := [4]byte{}
	if _, err := rand.Read(maskKey[:]); err != nil {
		return err
	}
	frame = append(frame, maskKey[:]...)

	// Mask inline into the same allocation
	off := len(frame)
	frame = frame[:off+length]
	for i, b := range payload {
		frame[off+i] = b ^ maskKey[i&3]
	}

	_, err := w.Write(frame)
	return err
}

func appendLength(frame []byte, length int, maskBit byte) []byte {
	switch {
	case length < 126:
		return append(frame, byte(length)|maskBit)
	case length < 65536:
		return append(frame, 126|maskBit, byte(length>>8), byte(length))
	default:
		frame = append(frame, 127|maskBit)
		for i := 7; i >= 0; i-- {
			frame = append(frame, byte(length>>(i*8)))
		}
		return frame
	}
}
