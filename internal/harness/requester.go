package harness

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/avaropoint/devident/internal/protocol"
	"github.com/avaropoint/devident/internal/security"
)

// DefaultRequesterPort is the wss:// port devices listen on.
const DefaultRequesterPort = 443

// RequesterConfig configures a single probe of a device.
type RequesterConfig struct {
	Host string
	// Port defaults to DefaultRequesterPort.
	Port int
	// Path defaults to "/".
	Path string
	// Plain connects with ws:// instead of wss://.
	Plain bool
	// InsecureSkipVerify accepts any server certificate and host name.
	// Test-only: the device's identity is not verified at all.
	InsecureSkipVerify bool
	// RootCAFile verifies the device against the certificates in this PEM
	// file instead of the system roots.
	RootCAFile string
	// Timeout bounds the whole exchange; zero waits forever.
	Timeout time.Duration
}

// Result describes a successful exchange.
type Result struct {
	Addr        string
	Reply       string
	TLSVersion  string
	CipherSuite string
	Elapsed     time.Duration
}

// Requester performs one connect/send/receive/close exchange per call.
type Requester struct {
	cfg    RequesterConfig
	logger *zap.Logger
}

// NewRequester creates a Requester.
func NewRequester(cfg RequesterConfig, logger *zap.Logger) *Requester {
	if cfg.Port == 0 {
		cfg.Port = DefaultRequesterPort
	}
	if cfg.Path == "" {
		cfg.Path = "/"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Requester{cfg: cfg, logger: logger}
}

// Addr returns the host:port the Requester connects to.
func (r *Requester) Addr() string {
	return net.JoinHostPort(r.cfg.Host, strconv.Itoa(r.cfg.Port))
}

// Do sends message and waits for exactly one reply. It never retries; any
// failure is returned as a *ConnectionError.
func (r *Requester) Do(ctx context.Context, message string) (*Result, error) {
	addr := r.Addr()
	start := time.Now()

	if r.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.Timeout)
		defer cancel()
	}

	fail := func(op string, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = fmt.Errorf("%w: %v", ctxErr, err)
		}
		r.logger.Debug("Exchange failed", zap.String("op", op), zap.String("addr", addr), zap.Error(err))
		return &ConnectionError{Op: op, Addr: addr, Err: err}
	}

	dial := protocol.DialConfig{Addr: addr, Path: r.cfg.Path}
	if !r.cfg.Plain {
		tlsCfg, err := security.ClientConfig(security.ClientTLS{
			ServerName:         r.cfg.Host,
			RootCAFile:         r.cfg.RootCAFile,
			InsecureSkipVerify: r.cfg.InsecureSkipVerify,
		})
		if err != nil {
			return nil, fail("configure", err)
		}
		if r.cfg.InsecureSkipVerify {
			r.logger.Warn("Certificate verification disabled", zap.String("addr", addr))
		}
		dial.TLS = tlsCfg
	}

	r.logger.Debug("Connecting", zap.String("addr", addr), zap.Bool("tls", dial.TLS != nil))
	conn, err := protocol.Dial(ctx, dial)
	if err != nil {
		return nil, fail("connect", err)
	}
	defer conn.Close(protocol.CloseNormal, "")

	stop := context.AfterFunc(ctx, func() { _ = conn.NetConn().Close() })
	defer stop()

	result := &Result{Addr: addr}
	if tc, ok := conn.NetConn().(*tls.Conn); ok {
		state := tc.ConnectionState()
		result.TLSVersion = tls.VersionName(state.Version)
		result.CipherSuite = tls.CipherSuiteName(state.CipherSuite)
	}

	if err := conn.WriteText(message); err != nil {
		return nil, fail("send", err)
	}

	opcode, reply, err := conn.ReadMessage()
	if err != nil {
		return nil, fail("receive", err)
	}
	if opcode != protocol.OpText {
		return nil, fail("receive", fmt.Errorf("unexpected opcode %d", opcode))
	}

	result.Reply = string(reply)
	result.Elapsed = time.Since(start)
	r.logger.Debug("Reply received", zap.String("addr", addr), zap.Duration("elapsed", result.Elapsed))
	return result, nil
}
