package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/newthinker/aitrader/internal/app"
	"github.com/newthinker/aitrader/internal/collector/upbit"
	"github.com/newthinker/aitrader/internal/config"
	"github.com/newthinker/aitrader/internal/logger"
)

var (
	cfgFile string
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:   "aitrader",
	Short: "aitrader - crypto trend and signal engine",
	Long: `aitrader tracks Upbit markets, publishes a trend snapshot per
instrument and timeframe, and turns strategy output into WAIT/BUY/SELL/HOLD
recommendations routed to notifiers and a paper ledger.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "enable debug mode")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the config file, or the defaults when none is given,
// and validates it.
func loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if cfgFile != "" {
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return nil, fmt.Errorf("loading config: %w", err)
		}
	} else {
		cfg = config.Defaults()
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	return logger.New(logger.Config{
		Development: debug || cfg.Log.Development,
		Level:       cfg.Log.Level,
		Encoding:    cfg.Log.Encoding,
		Outputs:     cfg.Log.Outputs,
	})
}

func newProvider(cfg *config.Config) *upbit.Upbit {
	return upbit.NewWithBaseURL(cfg.Exchange.BaseURL).WithTimeout(cfg.Exchange.Timeout)
}

// setup loads config, logger and a wired app for one-shot commands.
func setup(ctx context.Context) (*config.Config, *zap.Logger, *app.App, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, nil, err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("creating logger: %w", err)
	}
	if cfgFile == "" {
		log.Warn("no config file specified, using defaults")
	}

	a, err := app.New(ctx, cfg, newProvider(cfg), log)
	if err != nil {
		log.Sync()
		return nil, nil, nil, fmt.Errorf("creating app: %w", err)
	}
	return cfg, log, a, nil
}
