// Command probe connects to a device's WebSocket endpoint, sends a single
// message and prints the reply. It is the requester side of the device
// connectivity harness.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/avaropoint/devident/internal/config"
	"github.com/avaropoint/devident/internal/harness"
	"github.com/avaropoint/devident/internal/logging"
	"github.com/avaropoint/devident/internal/version"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "probe:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configPath, envFile string
		debug               bool
		host, path, message string
		caFile              string
		port                int
		plain, insecure     bool
		timeout             time.Duration
	)

	cmd := &cobra.Command{
		Use:           "probe",
		Short:         "Send one WebSocket message to a device and print the reply",
		Version:       version.String(),
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath, envFile)
			if err != nil {
				return err
			}

			r := &cfg.Requester
			flags := cmd.Flags()
			if flags.Changed("host") {
				r.Host = host
			}
			if flags.Changed("port") {
				r.Port = port
			}
			if flags.Changed("path") {
				r.Path = path
			}
			if flags.Changed("message") {
				r.Message = message
			}
			if flags.Changed("plain") {
				r.Plain = plain
			}
			if flags.Changed("insecure-skip-verify") {
				r.InsecureSkipVerify = insecure
			}
			if flags.Changed("ca") {
				r.RootCAFile = caFile
			}
			if flags.Changed("timeout") {
				r.Timeout = timeout
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			if r.Host == "" {
				return fmt.Errorf("--host is required")
			}

			logger, atom, err := logging.SetupLogger(debug || cfg.Log.Debug)
			if err != nil {
				return fmt.Errorf("setup logger: %w", err)
			}
			defer logger.Sync() //nolint:errcheck
			if err := logging.ParseLevel(atom, cfg.Log.Level); err != nil {
				return fmt.Errorf("log level: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			return probe(ctx, cmd.OutOrStdout(), cfg, logger)
		},
	}

	f := cmd.Flags()
	f.StringVar(&configPath, "config", "", "YAML configuration file")
	f.StringVar(&envFile, "env-file", ".env", "dotenv file with DEVIDENT_* overrides")
	f.BoolVar(&debug, "debug", false, "Enable debug logging")
	f.StringVar(&host, "host", "", "Device host or IPv4 address")
	f.IntVar(&port, "port", harness.DefaultRequesterPort, "Device port")
	f.StringVar(&path, "path", "/", "WebSocket endpoint path")
	f.StringVar(&message, "message", "Hello from Go!", "Text message to send")
	f.BoolVar(&plain, "plain", false, "Use ws:// instead of wss://")
	f.BoolVar(&insecure, "insecure-skip-verify", false, "Accept any certificate (testing only)")
	f.StringVar(&caFile, "ca", "", "PEM file with the certificate(s) to trust")
	f.DurationVar(&timeout, "timeout", 10*time.Second, "Bound on the whole exchange (0 waits forever)")
	return cmd
}

func probe(ctx context.Context, w io.Writer, cfg *config.Config, logger *zap.Logger) error {
	req := harness.NewRequester(cfg.RequesterConfig(), logger)
	logger.Info("Probing device", zap.String("addr", req.Addr()), zap.Bool("tls", !cfg.Requester.Plain))

	res, err := req.Do(ctx, cfg.Requester.Message)
	if err != nil {
		return err
	}

	logger.Info("Device replied",
		zap.Duration("elapsed", res.Elapsed),
		zap.String("tls_version", res.TLSVersion),
		zap.String("cipher_suite", res.CipherSuite))
	_, err = fmt.Fprintln(w, res.Reply)
	return err
}
