// Package logger builds the process-wide zap logger.
package logger

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Config struct {
	Development bool
	// Level is a zap level name; empty means debug in development and
	// info otherwise.
	Level string
	// Encoding is "json" or "console"; empty picks console in development.
	Encoding string
	// Outputs are zap sink URLs or file paths, stderr when empty.
	Outputs []string
}

// New builds a logger named "aitrader". Production output is JSON with
// ISO 8601 timestamps under "time".
func New(cfg Config) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	zc.EncoderConfig = jsonEncoderConfig()
	if cfg.Development {
		zc = zap.NewDevelopmentConfig()
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	switch cfg.Encoding {
	case "":
	case "console":
		zc.Encoding = cfg.Encoding
	case "json":
		// Development keys are single letters; JSON always uses the
		// production field names.
		zc.Encoding = cfg.Encoding
		zc.EncoderConfig = jsonEncoderConfig()
	default:
		return nil, fmt.Errorf("unknown log encoding %q", cfg.Encoding)
	}

	if cfg.Level != "" {
		lvl, err := zapcore.ParseLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("parsing log level: %w", err)
		}
		zc.Level = zap.NewAtomicLevelAt(lvl)
	}
	if len(cfg.Outputs) > 0 {
		zc.OutputPaths = cfg.Outputs
	}

	log, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}
	return log.Named("aitrader"), nil
}

func jsonEncoderConfig() zapcore.EncoderConfig {
	ec := zap.NewProductionEncoderConfig()
	ec.TimeKey = "time"
	ec.EncodeTime = zapcore.ISO8601TimeEncoder
	return ec
}
