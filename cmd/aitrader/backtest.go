package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/newthinker/aitrader/internal/backtest"
	"github.com/newthinker/aitrader/internal/collector/upbit"
	"github.com/newthinker/aitrader/internal/core"
)

var (
	backtestSymbol    string
	backtestTimeframe string
	backtestCount     int
	backtestOutput    string
)

var backtestCmd = &cobra.Command{
	Use:   "backtest <strategy>",
	Short: "Run backtest on a strategy",
	Long:  "Replay a strategy over the most recent samples and show performance statistics",
	Args:  cobra.ExactArgs(1),
	RunE:  runBacktest,
}

func init() {
	backtestCmd.Flags().StringVar(&backtestSymbol, "symbol", "", "instrument to backtest (required)")
	backtestCmd.Flags().StringVarP(&backtestTimeframe, "timeframe", "t", "1h", "timeframe to replay")
	backtestCmd.Flags().IntVarP(&backtestCount, "count", "n", 200, "number of samples to replay")
	addOutputFlag(backtestCmd, &backtestOutput)

	backtestCmd.MarkFlagRequired("symbol")

	rootCmd.AddCommand(backtestCmd)
}

func runBacktest(cmd *cobra.Command, args []string) error {
	if err := checkOutput(backtestOutput); err != nil {
		return err
	}
	tf, err := core.ParseTimeframe(backtestTimeframe)
	if err != nil {
		return err
	}
	if backtestCount <= 0 {
		return fmt.Errorf("count must be positive")
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
	defer cancel()

	cfg, log, a, err := setup(ctx)
	if err != nil {
		return err
	}
	defer log.Sync()
	defer a.Close()

	instrument := upbit.NormalizeMarket(backtestSymbol, cfg.Exchange.Quote)
	if err := upbit.ValidateMarket(instrument); err != nil {
		return core.WrapError(core.ErrInvalidInstrument, err)
	}

	strat, err := a.NewStrategy(args[0], nil)
	if err != nil {
		return err
	}

	result, err := backtest.New(a.Store()).Run(ctx, strat, instrument, tf, backtestCount)
	if err != nil {
		return err
	}

	if backtestOutput == outputTable {
		return printBacktest(cmd.OutOrStdout(), result)
	}
	return encode(cmd.OutOrStdout(), backtestOutput, result)
}

func printBacktest(w io.Writer, r *backtest.Result) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Strategy:\t%s\n", r.Strategy)
	fmt.Fprintf(tw, "Instrument:\t%s %s\n", r.Instrument, r.Timeframe)
	fmt.Fprintf(tw, "Period:\t%s to %s (%d samples)\n", r.From.Format(time.RFC3339), r.To.Format(time.RFC3339), r.Samples)
	fmt.Fprintf(tw, "Trades:\t%d (%d won, %d lost)\n", r.Stats.TotalTrades, r.Stats.WinningTrades, r.Stats.LosingTrades)
	fmt.Fprintf(tw, "Win rate:\t%.1f%%\n", r.Stats.WinRate)
	fmt.Fprintf(tw, "Total return:\t%.2f%%\n", r.Stats.TotalReturn)
	fmt.Fprintf(tw, "Max drawdown:\t%.2f%%\n", r.Stats.MaxDrawdown)
	fmt.Fprintf(tw, "Avg / best / worst:\t%.2f%% / %.2f%% / %.2f%%\n", r.Stats.AvgReturn, r.Stats.BestTrade, r.Stats.WorstTrade)
	fmt.Fprintf(tw, "Profit factor:\t%.2f\n", r.Stats.ProfitFactor)
	fmt.Fprintf(tw, "Sharpe ratio:\t%.3f\n", r.Stats.SharpeRatio)
	fmt.Fprintf(tw, "Avg hold:\t%s\n", r.Stats.AvgHold)
	if r.Stats.OpenReturn != nil {
		fmt.Fprintf(tw, "Open position:\t%.2f%%\n", *r.Stats.OpenReturn)
	}
	return tw.Flush()
}
