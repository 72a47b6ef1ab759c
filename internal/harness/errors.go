package harness

import (
	"errors"
	"fmt"
)

// ErrConnection matches every *ConnectionError.
var ErrConnection = errors.New("connection failed")

// ConnectionError is the single failure kind reported by the Requester.
// Refused connections, TLS handshake failures, timeouts and protocol
// violations all surface as a ConnectionError; Op names the failed step.
type ConnectionError struct {
	Op   string
	Addr string
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Addr, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// Is reports whether target is ErrConnection.
func (e *ConnectionError) Is(target error) bool {
	return target == ErrConnection
}
