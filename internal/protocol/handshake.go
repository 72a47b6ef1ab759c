package protocol

import (
	"bufio"
	"context"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"
)

// HandshakeError reports a rejected upgrade request. Status is the HTTP
// status the server should answer with.
type HandshakeError struct {
	Status int
	Reason string
}

func (e *HandshakeError) Error() string {
	return "websocket handshake: " + e.Reason
}

func headerHasToken(h http.Header, name, token string) bool {
	for _, v := range h.Values(name) {
		for _, part := range strings.Split(v, ",") {
			if strings.EqualFold(strings.TrimSpace(part), token) {
				return true
			}
		}
	}
	return false
}

// CheckUpgrade validates an HTTP request as a WebSocket opening handshake
// per RFC 6455 section 4.2.1 and returns the client key.
func CheckUpgrade(r *http.Request) (string, error) {
	if r.Method != http.MethodGet {
		return "", &HandshakeError{Status: http.StatusMethodNotAllowed, Reason: "method must be GET"}
	}
	if !headerHasToken(r.Header, "Upgrade", "websocket") {
		return "", &HandshakeError{Status: http.StatusBadRequest, Reason: "not a websocket request"}
	}
	if !headerHasToken(r.Header, "Connection", "upgrade") {
		return "", &HandshakeError{Status: http.StatusBadRequest, Reason: "missing Connection: upgrade"}
	}
	if r.Header.Get("Sec-WebSocket-Version") != "13" {
		return "", &HandshakeError{Status: http.StatusUpgradeRequired, Reason: "unsupported websocket version"}
	}

	key := r.Header.Get("Sec-WebSocket-Key")
	if key == "" {
		return "", &HandshakeError{Status: http.StatusBadRequest, Reason: "missing Sec-WebSocket-Key"}
	}
	if nonce, err := base64.StdEncoding.DecodeString(key); err != nil || len(nonce) != 16 {
		return "", &HandshakeError{Status: http.StatusBadRequest, Reason: "malformed Sec-WebSocket-Key"}
	}
	return key, nil
}

// Upgrade performs the HTTP → WebSocket handshake per RFC 6455. On a
// *HandshakeError nothing has been written yet and the caller owns the
// response.
func Upgrade(w http.ResponseWriter, r *http.Request) (*Conn, error) {
	key, err := CheckUpgrade(r)
	if err != nil {
		return nil, err
	}

	hj, ok := w.(http.Hijacker)
	if !ok {
		return nil, &HandshakeError{Status: http.StatusInternalServerError, Reason: "hijacking not supported"}
	}

	conn, brw, err := hj.Hijack()
	if err != nil {
		return nil, err
	}
	// Clear any deadline the HTTP server left on the connection.
	_ = conn.SetDeadline(time.Time{})

	response := "HTTP/1.1 101 Switching Protocols\r\n" +
		"Upgrade: websocket\r\n" +
		"Connection: Upgrade\r\n" +
		"Sec-WebSocket-Accept: " + AcceptKey(key) + "\r\n\r\n"

	if _, err := conn.Write([]byte(response)); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return NewConn(conn, brw.Reader, RoleServer), nil
}

// DialConfig describes a client connection.
type DialConfig struct {
	// Addr is host:port.
	Addr string
	// Path is the request target; empty means "/".
	Path string
	// TLS enables wss:// when non-nil.
	TLS *tls.Config
	// MaxMessageSize bounds received messages; zero means the default.
	MaxMessageSize int64
}

// Dial connects to cfg.Addr and performs the client side of the opening
// handshake. The context deadline, if any, bounds the connect and the
// handshake and stays set on the returned connection.
func Dial(ctx context.Context, cfg DialConfig) (*Conn, error) {
	path := cfg.Path
	if path == "" {
		path = "/"
	}

	var (
		conn net.Conn
		err  error
	)
	if cfg.TLS != nil {
		d := &tls.Dialer{Config: cfg.TLS}
		conn, err = d.DialContext(ctx, "tcp", cfg.Addr)
	} else {
		var d net.Dialer
		conn, err = d.DialContext(ctx, "tcp", cfg.Addr)
	}
	if err != nil {
		return nil, err
	}

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	key, err := NewKey()
	if err != nil {
		conn.Close()
		return nil, err
	}

	request := fmt.Sprintf("GET %s HTTP/1.1\r\n"+
		"Host: %s\r\n"+
		"Upgrade: websocket\r\n"+
		"Connection: Upgrade\r\n"+
		"Sec-WebSocket-Key: %s\r\n"+
		"Sec-WebSocket-Version: 13\r\n\r\n",
		path, cfg.Addr, key)

	if _, err := conn.Write([]byte(request)); err != nil {
		conn.Close()
		return nil, err
	}

	reader := bufio.NewReader(conn)
	resp, err := http.ReadResponse(reader, &http.Request{Method: http.MethodGet})
	if err != nil {
		conn.Close()
		return nil, err
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusSwitchingProtocols {
		conn.Close()
		return nil, fmt.Errorf("websocket handshake failed: %s", resp.Status)
	}
	if resp.Header.Get("Sec-WebSocket-Accept") != AcceptKey(key) {
		conn.Close()
		return nil, fmt.Errorf("websocket handshake failed: bad Sec-WebSocket-Accept")
	}

	ws := NewConn(conn, reader, RoleClient)
	ws.MaxMessageSize = cfg.MaxMessageSize
	return ws, nil
}
