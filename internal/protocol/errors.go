package protocol

import (
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"
)

// ErrProtocol matches every *ProtocolError.
var ErrProtocol = errors.New("websocket protocol error")

// ProtocolError reports a peer that violated framing rules. Code is the
// close status sent back before the connection is dropped.
type ProtocolError struct {
	Code   int
	Reason string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("websocket: %s (close %d)", e.Reason, e.Code)
}

// Is reports whether target is ErrProtocol.
func (e *ProtocolError) Is(target error) bool {
	return target == ErrProtocol
}

func protocolErr(code int, format string, args ...any) error {
	return &ProtocolError{Code: code, Reason: fmt.Sprintf(format, args...)}
}

// CloseError is returned by ReadMessage after the peer sent a close frame.
type CloseError struct {
	Code   int
	Reason string
}

func (e *CloseError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("websocket: closed by peer (%d)", e.Code)
	}
	return fmt.Sprintf("websocket: closed by peer (%d %s)", e.Code, e.Reason)
}

// IsClosed reports whether err is a normal end of the connection: a close
// frame, EOF, or a socket that was closed or reset underneath the reader.
func IsClosed(err error) bool {
	var ce *CloseError
	switch {
	case err == nil:
		return false
	case errors.As(err, &ce):
		return true
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return true
	case errors.Is(err, net.ErrClosed):
		return true
	case errors.Is(err, syscall.ECONNRESET):
		return true
	}
	return false
}
