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
	"github.com/newthinker/aitrader/internal/strength"
)

var (
	strengthWindows []int
	strengthOutput  string
)

var strengthCmd = &cobra.Command{
	Use:   "strength <market>",
	Short: "Measure buying pressure from recent trades",
	Args:  cobra.ExactArgs(1),
	RunE:  runStrength,
}

func init() {
	strengthCmd.Flags().IntSliceVarP(&strengthWindows, "window", "w", strength.DefaultWindows, "tick windows to report")
	addOutputFlag(strengthCmd, &strengthOutput)
	rootCmd.AddCommand(strengthCmd)
}

func runStrength(cmd *cobra.Command, args []string) error {
	if err := checkOutput(strengthOutput); err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	market := upbit.NormalizeMarket(args[0], cfg.Exchange.Quote)
	if err := upbit.ValidateMarket(market); err != nil {
		return core.WrapError(core.ErrInvalidInstrument, err)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	report, err := strength.NewAnalyzer(newProvider(cfg), strengthWindows...).Measure(ctx, market)
	if err != nil {
		return err
	}

	if strengthOutput == outputTable {
		return printStrengthTable(cmd.OutOrStdout(), report)
	}
	return encode(cmd.OutOrStdout(), strengthOutput, report)
}

func printStrengthTable(w io.Writer, r *strength.Report) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "%s\t%s\n\n", r.Market, r.At.Format(time.RFC3339))
	fmt.Fprintln(tw, "TICKS\tBUY %\tBUY VOLUME\tVOLUME\tSPAN")
	for _, win := range r.Windows {
		fmt.Fprintf(tw, "%d\t%.2f\t%.8g\t%.8g\t%s\n", win.Ticks, win.BuyRatio, win.BuyVolume, win.Volume, win.Span)
	}
	return tw.Flush()
}
