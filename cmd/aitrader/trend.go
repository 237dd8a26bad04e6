package main

import (
	"context"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/newthinker/aitrader/internal/collector/upbit"
	"github.com/newthinker/aitrader/internal/core"
	"github.com/newthinker/aitrader/internal/trend"
)

var (
	trendTimeframes []string
	trendOutput     string
)

var trendCmd = &cobra.Command{
	Use:   "trend [instrument...]",
	Short: "Compute trend summaries once",
	Long: `Run one aggregation cycle over the configured instruments and
timeframes, or over the instruments given as arguments.`,
	RunE: runTrend,
}

func init() {
	trendCmd.Flags().StringSliceVarP(&trendTimeframes, "timeframe", "t", nil, "timeframes to compute (default from config)")
	addOutputFlag(trendCmd, &trendOutput)
	rootCmd.AddCommand(trendCmd)
}

func runTrend(cmd *cobra.Command, args []string) error {
	if err := checkOutput(trendOutput); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
	defer cancel()

	cfg, log, a, err := setup(ctx)
	if err != nil {
		return err
	}
	defer log.Sync()
	defer a.Close()

	timeframes := cfg.Trend.Timeframes
	if len(trendTimeframes) > 0 {
		timeframes = timeframes[:0:0]
		for _, raw := range trendTimeframes {
			tf, err := core.ParseTimeframe(raw)
			if err != nil {
				return err
			}
			timeframes = append(timeframes, tf)
		}
	}

	var snap *trend.Snapshot
	if len(args) == 0 && len(trendTimeframes) == 0 {
		if snap, err = a.RunTrendCycle(ctx); err != nil {
			return err
		}
	} else {
		instruments := cfg.Trend.Instruments
		if len(args) > 0 {
			instruments = make([]string, len(args))
			for i, raw := range args {
				instruments[i] = upbit.NormalizeMarket(raw, cfg.Exchange.Quote)
			}
		}
		snap = computePairs(ctx, a, instruments, timeframes, log)
	}

	if trendOutput == outputTable {
		return printTrendTable(cmd.OutOrStdout(), snap)
	}
	return encode(cmd.OutOrStdout(), trendOutput, snap)
}

type trendComputer interface {
	Trend(ctx context.Context, instrument string, tf core.Timeframe) (trend.Summary, error)
}

// computePairs computes the requested pairs one by one. Failed pairs are
// reported in the snapshot instead of aborting.
func computePairs(ctx context.Context, c trendComputer, instruments []string, timeframes []core.Timeframe, log *zap.Logger) *trend.Snapshot {
	snap := &trend.Snapshot{
		GeneratedAt: time.Now().UTC(),
		Trends:      make(map[string]map[core.Timeframe]trend.Summary),
		Failures:    []trend.Failure{},
	}
	for _, inst := range instruments {
		for _, tf := range timeframes {
			sum, err := c.Trend(ctx, inst, tf)
			if err != nil {
				log.Warn("trend failed", zap.String("instrument", inst), zap.String("timeframe", string(tf)), zap.Error(err))
				snap.Failures = append(snap.Failures, trend.Failure{Instrument: inst, Timeframe: tf, Error: err.Error(), At: time.Now().UTC()})
				continue
			}
			if snap.Trends[inst] == nil {
				snap.Trends[inst] = make(map[core.Timeframe]trend.Summary)
			}
			snap.Trends[inst][tf] = sum
		}
	}
	return snap
}

func printTrendTable(w io.Writer, snap *trend.Snapshot) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "INSTRUMENT\tTIMEFRAME\tLABEL\tSLOPE\tANGLE\tREVERSALS\tDIFF RATE")

	instruments := make([]string, 0, len(snap.Trends))
	for inst := range snap.Trends {
		instruments = append(instruments, inst)
	}
	sort.Strings(instruments)

	for _, inst := range instruments {
		for _, tf := range core.Timeframes {
			sum, ok := snap.Trends[inst][tf]
			if !ok {
				continue
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
				inst, tf, sum.Label,
				formatOptional(sum.Slope, 4),
				formatOptional(sum.AngleDegrees, 1),
				sum.ReversalCount,
				formatOptional(sum.DiffRate, 3),
			)
		}
	}
	for _, f := range snap.Failures {
		fmt.Fprintf(tw, "%s\t%s\tFAILED\t%s\t\t\t\n", f.Instrument, f.Timeframe, f.Error)
	}
	return tw.Flush()
}
