package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/newthinker/aitrader/internal/collector/upbit"
	"github.com/newthinker/aitrader/internal/core"
)

var (
	signalTimeframe  string
	signalStrategies []string
	signalOutput     string
)

var signalCmd = &cobra.Command{
	Use:   "signal <instrument>",
	Short: "Run strategies on one instrument and route the result",
	Args:  cobra.ExactArgs(1),
	RunE:  runSignal,
}

func init() {
	signalCmd.Flags().StringVarP(&signalTimeframe, "timeframe", "t", "1h", "timeframe to analyze")
	signalCmd.Flags().StringSliceVarP(&signalStrategies, "strategy", "s", nil, "strategies to run (default all)")
	addOutputFlag(signalCmd, &signalOutput)
	rootCmd.AddCommand(signalCmd)
}

func runSignal(cmd *cobra.Command, args []string) error {
	if err := checkOutput(signalOutput); err != nil {
		return err
	}
	tf, err := core.ParseTimeframe(signalTimeframe)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
	defer cancel()

	cfg, log, a, err := setup(ctx)
	if err != nil {
		return err
	}
	defer log.Sync()
	defer a.Close()

	instrument := upbit.NormalizeMarket(args[0], cfg.Exchange.Quote)
	if err := upbit.ValidateMarket(instrument); err != nil {
		return core.WrapError(core.ErrInvalidInstrument, err)
	}

	signals, err := a.Analyze(ctx, instrument, tf, signalStrategies)
	if err != nil {
		return err
	}

	if signalOutput == outputTable {
		return printSignalTable(cmd.OutOrStdout(), signals)
	}
	return encode(cmd.OutOrStdout(), signalOutput, signals)
}

func printSignalTable(w io.Writer, signals []core.Signal) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STRATEGY\tINSTRUMENT\tTIMEFRAME\tACTION\tPRICE\tSIZE\tREASON")
	for _, s := range signals {
		size := "-"
		switch {
		case s.FullPosition:
			size = "all"
		case s.Size != nil:
			size = s.Size.String()
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%.8g\t%s\t%s\n",
			s.Strategy, s.Symbol, s.Timeframe, s.Action, s.Price, size, s.Reason)
	}
	return tw.Flush()
}
