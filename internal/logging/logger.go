// Package logging configures the zap loggers shared by the binaries.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// SetupLogger creates a logger with consistent settings across the
// binaries. Debug selects the human-readable development encoder at debug
// level; otherwise JSON at info level. Returns logger, atomic level, and error.
func SetupLogger(debug bool) (*zap.Logger, zap.AtomicLevel, error) {
	var atom zap.AtomicLevel
	var config zap.Config

	if debug {
		atom = zap.NewAtomicLevelAt(zap.DebugLevel)
		config = zap.NewDevelopmentConfig()
	} else {
		atom = zap.NewAtomicLevelAt(zap.InfoLevel)
		config = zap.NewProductionConfig()
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	// Generated PEM and source literals go to stdout; keep logs off it.
	config.OutputPaths = []string{"stderr"}
	config.Level = atom
	logger, err := config.Build()
	return logger, atom, err
}

// ParseLevel sets atom from a level name such as "debug" or "warn".
func ParseLevel(atom zap.AtomicLevel, level string) error {
	if level == "" {
		return nil
	}
	return atom.UnmarshalText([]byte(level))
}
