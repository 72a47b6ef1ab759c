// Command certgen generates a self-signed device identity and prints it as
// C/C++ source literals ready to paste into firmware. It can also convert
// an existing PEM file into a string-literal declaration.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/avaropoint/devident/internal/config"
	"github.com/avaropoint/devident/internal/logging"
	"github.com/avaropoint/devident/internal/version"
)

// app holds what every subcommand needs after the root pre-run.
type app struct {
	configPath string
	envFile    string
	debug      bool

	cfg    *config.Config
	logger *zap.Logger
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "certgen:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "certgen",
		Short:         "Generate device TLS identities as C/C++ source literals",
		Version:       version.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	root.PersistentFlags().StringVar(&a.configPath, "config", "", "YAML configuration file")
	root.PersistentFlags().StringVar(&a.envFile, "env-file", ".env", "dotenv file with DEVIDENT_* overrides")
	root.PersistentFlags().BoolVar(&a.debug, "debug", false, "Enable debug logging")

	root.AddCommand(newIdentityCmd(a), newLiteralCmd(a))
	return root
}

func (a *app) setup() error {
	cfg, err := config.Load(a.configPath, a.envFile)
	if err != nil {
		return err
	}

	logger, atom, err := logging.SetupLogger(a.debug || cfg.Log.Debug)
	if err != nil {
		return fmt.Errorf("setup logger: %w", err)
	}
	if err := logging.ParseLevel(atom, cfg.Log.Level); err != nil {
		return fmt.Errorf("log level: %w", err)
	}

	a.cfg = cfg
	a.logger = logger
	return nil
}
