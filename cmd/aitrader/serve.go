package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/newthinker/aitrader/internal/api"
	"github.com/newthinker/aitrader/internal/backtest"
	"github.com/newthinker/aitrader/internal/collector/upbit"
	"github.com/newthinker/aitrader/internal/metrics"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the scheduler and the HTTP API",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, log, a, err := setup(ctx)
	if err != nil {
		return err
	}
	defer log.Sync()
	defer a.Close()

	if cfg.PriceWatch.Enabled && cfg.PriceWatch.Stream {
		a.SetTickerFeed(upbit.NewStream(cfg.Exchange.WebSocketURL, nil, log.Named("stream")))
	}

	var reg *metrics.Registry
	if cfg.Metrics.Enabled {
		reg = a.Metrics()
	}

	deps := api.Dependencies{
		App:        a,
		Board:      a.Board(),
		Signals:    a.Signals(),
		Ledger:     a.Ledger(),
		Account:    a.Account(),
		Prices:     a.Prices(),
		Strength:   a.Strength(),
		Series:     a.Store(),
		Backtester: backtest.New(a.Store()),
		Strategies: a.NewStrategy,
		Metrics:    reg,
		Quote:      cfg.Exchange.Quote,
	}
	if alerts := a.Alerts(); alerts != nil {
		deps.Alerts = alerts
	}
	if archive := a.Archive(); archive != nil {
		deps.Archive = archive
	}

	server, err := api.NewServer(api.Config{
		Host:        cfg.Server.Host,
		Port:        cfg.Server.Port,
		APIKey:      cfg.Server.APIKey,
		MetricsPath: cfg.Metrics.Path,
	}, deps, log.Named("api"))
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	if err := a.Start(ctx); err != nil {
		return fmt.Errorf("starting app: %w", err)
	}

	log.Info("starting aitrader server",
		zap.String("host", cfg.Server.Host),
		zap.Int("port", cfg.Server.Port),
		zap.Bool("auth", cfg.Server.APIKey != ""),
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case <-ctx.Done():
	case err = <-errCh:
		if err != nil {
			log.Error("server error", zap.Error(err))
		}
	}

	log.Info("shutting down aitrader server")

	timeout := cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	a.Stop()
	if shutdownErr := server.Shutdown(shutdownCtx); shutdownErr != nil {
		return shutdownErr
	}
	return err
}
