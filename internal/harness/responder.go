package harness

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/avaropoint/devident/internal/protocol"
)

// EchoPrefix is prepended to every echoed message.
const EchoPrefix = "Echo: "

const (
	// DefaultResponderAddr listens on all interfaces.
	DefaultResponderAddr = ":8080"
	// readHeaderTimeout bounds the HTTP part of the opening handshake.
	readHeaderTimeout = 10 * time.Second
	// shutdownTimeout bounds how long Serve waits for in-flight handshakes.
	shutdownTimeout = 5 * time.Second
)

// ResponderConfig configures the echo server.
type ResponderConfig struct {
	// Addr is the listen address; empty means DefaultResponderAddr.
	Addr string
	// Path is the WebSocket endpoint; empty means "/".
	Path string
	// TLS enables wss:// when non-nil.
	TLS *tls.Config
	// MaxMessageSize bounds received messages; zero means the protocol default.
	MaxMessageSize int64
	// ExposeMetrics mounts /metrics on the same listener.
	ExposeMetrics bool
}

// Responder is the echo side of the harness.
type Responder struct {
	cfg     ResponderConfig
	logger  *zap.Logger
	metrics *Metrics

	// conns tracks hijacked connections; http.Server.Shutdown does not.
	conns sync.WaitGroup
}

// NewResponder creates a Responder. metrics may be nil.
func NewResponder(cfg ResponderConfig, logger *zap.Logger, metrics *Metrics) *Responder {
	if cfg.Addr == "" {
		cfg.Addr = DefaultResponderAddr
	}
	if cfg.Path == "" {
		cfg.Path = "/"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Responder{cfg: cfg, logger: logger, metrics: metrics}
}

// ListenAndServe listens on the configured address and serves until ctx is
// cancelled.
func (s *Responder) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled. On cancellation
// the listener is closed, every open connection receives a going-away
// close frame, and Serve returns once all connection goroutines are done.
func (s *Responder) Serve(ctx context.Context, ln net.Listener) error {
	if s.cfg.TLS != nil {
		ln = tls.NewListener(ln, s.cfg.TLS)
	}

	srv := &http.Server{
		Handler:           s.router(ctx),
		ReadHeaderTimeout: readHeaderTimeout,
		ErrorLog:          zap.NewStdLog(s.logger.Named("http")),
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	s.logger.Info("Echo server listening",
		zap.String("addr", ln.Addr().String()),
		zap.String("path", s.cfg.Path),
		zap.Bool("tls", s.cfg.TLS != nil))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	err := g.Wait()
	s.conns.Wait()
	s.logger.Info("Echo server stopped")
	return err
}

func (s *Responder) router(ctx context.Context) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get(s.cfg.Path, func(w http.ResponseWriter, req *http.Request) {
		s.handleEcho(ctx, w, req)
	})
	if s.cfg.ExposeMetrics && s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler())
	}
	return r
}

// handleEcho upgrades the request and runs the echo loop for the lifetime
// of the connection.
func (s *Responder) handleEcho(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	// Registered before the hijack so Serve cannot finish waiting first.
	s.conns.Add(1)
	defer s.conns.Done()

	conn, err := protocol.Upgrade(w, r)
	if err != nil {
		var he *protocol.HandshakeError
		if errors.As(err, &he) {
			http.Error(w, he.Reason, he.Status)
		}
		s.logger.Warn("WebSocket upgrade failed",
			zap.String("remote", r.RemoteAddr),
			zap.Error(err))
		return
	}
	conn.MaxMessageSize = s.cfg.MaxMessageSize

	s.serveConn(ctx, conn)
}

// serveConn runs Connected → (MessageReceived → EchoSent)* → Disconnected.
// Nothing here is shared with other connections.
func (s *Responder) serveConn(ctx context.Context, conn *protocol.Conn) {
	logger := s.logger.With(
		zap.String("conn_id", uuid.NewString()),
		zap.String("remote", conn.RemoteAddr().String()))

	logger.Info("Client connected")
	s.metrics.connOpened()

	stop := context.AfterFunc(ctx, func() {
		_ = conn.Close(protocol.CloseGoingAway, "server shutting down")
	})

	reason := "closed"
	defer func() {
		stop()
		_ = conn.Close(protocol.CloseNormal, "")
		s.metrics.connClosed(reason)
	}()

	for {
		opcode, msg, err := conn.ReadMessage()
		if err != nil {
			switch {
			case protocol.IsClosed(err):
				logger.Info("Client disconnected")
			case errors.Is(err, protocol.ErrProtocol):
				reason = "protocol"
				logger.Warn("Protocol error", zap.Error(err))
			default:
				reason = "error"
				logger.Warn("Connection error", zap.Error(err))
			}
			return
		}

		logger.Debug("Message received",
			zap.Int("opcode", int(opcode)),
			zap.Int("bytes", len(msg)))

		reply := make([]byte, 0, len(EchoPrefix)+len(msg))
		reply = append(reply, EchoPrefix...)
		reply = append(reply, msg...)
		if err := conn.WriteMessage(opcode, reply); err != nil {
			reason = "error"
			logger.Warn("Echo failed", zap.Error(err))
			return
		}
		s.metrics.echoed()
	}
}
