package protocol

import (
	"bufio"
	"encoding/binary"
	"net"
	"sync"
	"time"
	"unicode/utf8"
)

// closeTimeout bounds the close frame written by Close.
const closeTimeout = time.Second

// Role selects the masking direction of a connection.
type Role int

const (
	// RoleServer expects masked frames and writes unmasked ones.
	RoleServer Role = iota
	// RoleClient writes masked frames and expects unmasked ones.
	RoleClient
)

// Conn is an established WebSocket connection. ReadMessage must be called
// from a single goroutine; writes are serialized internally.
type Conn struct {
	conn   net.Conn
	reader *bufio.Reader
	role   Role

	// MaxMessageSize bounds a reassembled message; zero means
	// DefaultMaxMessageSize.
	MaxMessageSize int64

	writeMu   sync.Mutex
	closeSent bool
}

// NewConn wraps an upgraded connection. reader may hold bytes that were
// buffered during the handshake; a nil reader starts fresh.
func NewConn(conn net.Conn, reader *bufio.Reader, role Role) *Conn {
	if reader == nil {
		reader = bufio.NewReader(conn)
	}
	return &Conn{conn: conn, reader: reader, role: role}
}

// NetConn returns the underlying connection.
func (c *Conn) NetConn() net.Conn { return c.conn }

// RemoteAddr returns the peer address.
func (c *Conn) RemoteAddr() net.Addr { return c.conn.RemoteAddr() }

// SetDeadline sets the read and write deadline of the underlying connection.
func (c *Conn) SetDeadline(t time.Time) error { return c.conn.SetDeadline(t) }

func (c *Conn) maxSize() int64 {
	if c.MaxMessageSize > 0 {
		return c.MaxMessageSize
	}
	return DefaultMaxMessageSize
}

// ReadMessage returns the next complete text or binary message. Pings are
// answered, pongs are dropped and fragmented messages are reassembled. A
// close frame from the peer is answered and reported as *CloseError; a
// framing violation is reported as *ProtocolError after the matching close
// frame has been sent.
func (c *Conn) ReadMessage() (byte, []byte, error) {
	var (
		msgOpcode byte
		message   []byte
		inMessage bool
	)

	for {
		f, err := ReadFrame(c.reader, c.maxSize())
		if err != nil {
			return 0, nil, c.fail(err)
		}

		if c.role == RoleServer && !f.Masked {
			return 0, nil, c.fail(protocolErr(CloseProtocolError, "unmasked client frame"))
		}
		if c.role == RoleClient && f.Masked {
			return 0, nil, c.fail(protocolErr(CloseProtocolError, "masked server frame"))
		}

		switch f.Opcode {
		case OpPing:
			if err := c.writeFrame(OpPong, f.Payload); err != nil {
				return 0, nil, err
			}
		case OpPong:
		case OpClose:
			return 0, nil, c.handleClose(f.Payload)
		case OpText, OpBinary:
			if inMessage {
				return 0, nil, c.fail(protocolErr(CloseProtocolError, "data frame inside fragmented message"))
			}
			if f.Fin {
				return c.deliver(f.Opcode, f.Payload)
			}
			msgOpcode, message, inMessage = f.Opcode, f.Payload, true
		case OpContinue:
			if !inMessage {
				return 0, nil, c.fail(protocolErr(CloseProtocolError, "continuation without message"))
			}
			if int64(len(message)+len(f.Payload)) > c.maxSize() {
				return 0, nil, c.fail(protocolErr(CloseMessageTooBig, "message exceeds limit %d", c.maxSize()))
			}
			message = append(message, f.Payload...)
			if f.Fin {
				return c.deliver(msgOpcode, message)
			}
		}
	}
}

func (c *Conn) deliver(opcode byte, payload []byte) (byte, []byte, error) {
	if opcode == OpText && !utf8.Valid(payload) {
		return 0, nil, c.fail(protocolErr(CloseInvalidPayload, "invalid UTF-8 in text message"))
	}
	return opcode, payload, nil
}

func (c *Conn) handleClose(payload []byte) error {
	ce := &CloseError{Code: CloseNoStatus}
	switch {
	case len(payload) == 1:
		return c.fail(protocolErr(CloseProtocolError, "truncated close payload"))
	case len(payload) >= 2:
		ce.Code = int(binary.BigEndian.Uint16(payload))
		if !validCloseCode(ce.Code) {
			return c.fail(protocolErr(CloseProtocolError, "invalid close code %d", ce.Code))
		}
		if !utf8.Valid(payload[2:]) {
			return c.fail(protocolErr(CloseInvalidPayload, "invalid UTF-8 in close reason"))
		}
		ce.Reason = string(payload[2:])
	}

	// Echo the status back to complete the close handshake.
	var echo []byte
	if len(payload) >= 2 {
		echo = payload[:2]
	}
	_ = c.sendClose(echo)
	return ce
}

// validCloseCode reports whether a peer may send code in a close frame.
// 1004-1006 and 1015 are reserved and never sent on the wire.
func validCloseCode(code int) bool {
	switch {
	case code >= 1000 && code <= 1003:
		return true
	case code >= 1007 && code <= 1014:
		return true
	case code >= 3000 && code <= 4999:
		return true
	}
	return false
}

// fail sends the close frame for a protocol violation and returns err.
func (c *Conn) fail(err error) error {
	if pe, ok := err.(*ProtocolError); ok {
		_ = c.sendClose(closePayload(pe.Code, pe.Reason))
	}
	return err
}

// WriteMessage sends a single unfragmented message.
func (c *Conn) WriteMessage(opcode byte, payload []byte) error {
	return c.writeFrame(opcode, payload)
}

// WriteText sends a text message.
func (c *Conn) WriteText(msg string) error {
	return c.writeFrame(OpText, []byte(msg))
}

func (c *Conn) writeFrame(opcode byte, payload []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.writeFrameLocked(opcode, payload)
}

func (c *Conn) writeFrameLocked(opcode byte, payload []byte) error {
	if c.role == RoleClient {
		return WriteClientFrame(c.conn, opcode, payload)
	}
	return WriteServerFrame(c.conn, opcode, payload)
}

func (c *Conn) sendClose(payload []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.closeSent {
		return nil
	}
	c.closeSent = true
	return c.writeFrameLocked(OpClose, payload)
}

// Close sends a close frame with code and reason, unless one was already
// sent, and closes the underlying connection. Pending and new writes are
// bounded by closeTimeout, so Close returns even when the peer has stopped
// reading and another goroutine is blocked in a write.
func (c *Conn) Close(code int, reason string) error {
	_ = c.conn.SetWriteDeadline(time.Now().Add(closeTimeout))
	_ = c.sendClose(closePayload(code, reason))
	return c.conn.Close()
}

func closePayload(code int, reason string) []byte {
	if len(reason) > maxControlPayload-2 {
		reason = reason[:maxControlPayload-2]
	}
	payload := make([]byte, 2, 2+len(reason))
	binary.BigEndian.PutUint16(payload, uint16(code))
	return append(payload, reason...)
}
