// Command server runs the echo side of the device connectivity harness: a
// WebSocket endpoint that answers every message with "Echo: " + message.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/avaropoint/devident/internal/config"
	"github.com/avaropoint/devident/internal/harness"
	"github.com/avaropoint/devident/internal/logging"
	"github.com/avaropoint/devident/internal/security"
	"github.com/avaropoint/devident/internal/version"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "server:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configPath, envFile string
		debug, metrics      bool
		addr, path          string
		tlsMode, tlsIP      string
		tlsCert, tlsKey     string
		maxMessageSize      int64
	)

	cmd := &cobra.Command{
		Use:           "server",
		Short:         "Run the WebSocket echo server",
		Version:       version.String(),
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath, envFile)
			if err != nil {
				return err
			}

			r := &cfg.Responder
			flags := cmd.Flags()
			if flags.Changed("addr") {
				r.Addr = addr
			}
			if flags.Changed("path") {
				r.Path = path
			}
			if flags.Changed("max-message-size") {
				r.MaxMessageSize = maxMessageSize
			}
			if flags.Changed("metrics") {
				r.Metrics = metrics
			}
			if flags.Changed("tls-mode") {
				r.TLS.Mode = tlsMode
			}
			if flags.Changed("tls-cert") {
				r.TLS.CertFile = tlsCert
			}
			if flags.Changed("tls-key") {
				r.TLS.KeyFile = tlsKey
			}
			if flags.Changed("tls-ip") {
				r.TLS.IP = tlsIP
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			logger, atom, err := logging.SetupLogger(debug || cfg.Log.Debug)
			if err != nil {
				return fmt.Errorf("setup logger: %w", err)
			}
			defer logger.Sync() //nolint:errcheck
			if err := logging.ParseLevel(atom, cfg.Log.Level); err != nil {
				return fmt.Errorf("log level: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			// Restore default signal handling once shutdown starts so a
			// second interrupt terminates the process.
			context.AfterFunc(ctx, stop)

			return run(ctx, cfg, logger)
		},
	}

	f := cmd.Flags()
	f.StringVar(&configPath, "config", "", "YAML configuration file")
	f.StringVar(&envFile, "env-file", ".env", "dotenv file with DEVIDENT_* overrides")
	f.BoolVar(&debug, "debug", false, "Enable debug logging")
	f.StringVar(&addr, "addr", harness.DefaultResponderAddr, "Listen address")
	f.StringVar(&path, "path", "/", "WebSocket endpoint path")
	f.Int64Var(&maxMessageSize, "max-message-size", 0, "Largest accepted message in bytes (0 for the default)")
	f.BoolVar(&metrics, "metrics", false, "Expose Prometheus metrics on /metrics")
	f.StringVar(&tlsMode, "tls-mode", "off", "TLS mode: off, file or ephemeral")
	f.StringVar(&tlsCert, "tls-cert", "", "Certificate PEM for --tls-mode file")
	f.StringVar(&tlsKey, "tls-key", "", "Private key PEM for --tls-mode file")
	f.StringVar(&tlsIP, "tls-ip", "127.0.0.1", "IPv4 subjectAltName for --tls-mode ephemeral")
	return cmd
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	logger.Info("Starting echo server", zap.String("version", version.String()))

	tlsOpts, err := cfg.ServerTLS()
	if err != nil {
		return err
	}
	if tlsOpts.Mode == security.TLSModeEphemeral && tlsOpts.TargetIP == "" {
		tlsOpts.TargetIP = "127.0.0.1"
	}
	tlsCfg, err := security.ServerConfig(tlsOpts)
	if err != nil {
		return err
	}
	if tlsCfg != nil {
		fields := []zap.Field{zap.Stringer("mode", tlsOpts.Mode)}
		if leaf := tlsCfg.Certificates[0].Leaf; leaf != nil {
			fields = append(fields,
				zap.Stringers("ip_sans", leaf.IPAddresses),
				zap.Time("not_after", leaf.NotAfter))
		}
		logger.Info("TLS enabled", fields...)
	}

	var m *harness.Metrics
	if cfg.Responder.Metrics {
		m, err = harness.NewMetrics(nil)
		if err != nil {
			return fmt.Errorf("metrics: %w", err)
		}
	}

	srv := harness.NewResponder(harness.ResponderConfig{
		Addr:           cfg.Responder.Addr,
		Path:           cfg.Responder.Path,
		TLS:            tlsCfg,
		MaxMessageSize: cfg.Responder.MaxMessageSize,
		ExposeMetrics:  cfg.Responder.Metrics,
	}, logger, m)

	return srv.ListenAndServe(ctx)
}
