// Package logging builds the zap logger shared by the CLI, the controller
// and the relay server.
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options selects where log lines go and how much is written
type Options struct {
	Verbose bool   // debug level instead of info
	File    string // append JSON lines to this path
	Console bool   // also write to stderr
}

// New builds a production JSON logger for opts. With neither a file nor the
// console as output it returns a no-op logger, so the interactive view never
// has log lines written over it.
func New(opts Options) (*zap.Logger, error) {
	var outputs []string
	if opts.File != "" {
		outputs = append(outputs, opts.File)
	}
	if opts.Console {
		outputs = append(outputs, "stderr")
	}
	if len(outputs) == 0 {
		return zap.NewNop(), nil
	}

	config := zap.NewProductionConfig()
	if opts.Verbose {
		config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	config.OutputPaths = outputs
	config.ErrorOutputPaths = []string{"stderr"}
	config.EncoderConfig.TimeKey = "time"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.Sampling = nil

	logger, err := config.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger, nil
}
