package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"swingTrader/internal/domain"
)

// options are the flags shared by every subcommand.
type options struct {
	mode string
	date string
}

// Execute builds the command tree and runs it.
func Execute(ctx context.Context) error {
	opts := &options{}

	root := &cobra.Command{
		Use:   "swingtrader",
		Short: "Daily swing-trade screener, sizer and position tracker",
		Long: `swingtrader runs the end-of-day batch: it screens the day's market
snapshot, sizes trade signals for the shortlist, and tracks open positions
against their stops and targets.

Examples:
  swingtrader run
  swingtrader screen --mode relaxed --date 2024-03-15
  swingtrader track
  swingtrader ledger --closed`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.mode, "mode", "", "Filter mode: standard, relaxed or testing (overrides FILTER_MODE)")
	root.PersistentFlags().StringVar(&opts.date, "date", "", "Trading day as YYYY-MM-DD (default: today)")

	root.AddCommand(screenCmd(ctx, opts))
	root.AddCommand(analyzeCmd(ctx, opts))
	root.AddCommand(trackCmd(ctx, opts))
	root.AddCommand(runCmd(ctx, opts))
	root.AddCommand(ledgerCmd(ctx, opts))

	return root.ExecuteContext(ctx)
}

// parseDay resolves the --date flag. An empty value means today's calendar
// date; the result is always midnight UTC so file stamps and entry dates agree.
func parseDay(s string, now time.Time) (time.Time, error) {
	if s == "" {
		y, m, d := now.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
	}
	day, err := time.Parse(domain.DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --date %q, want YYYY-MM-DD: %w", s, err)
	}
	return day, nil
}
