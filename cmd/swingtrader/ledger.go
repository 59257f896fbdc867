package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"swingTrader/internal/domain"
	"swingTrader/internal/money"
)

type ledgerOptions struct {
	closed bool
	symbol string
}

func ledgerCmd(ctx context.Context, opts *options) *cobra.Command {
	lopts := &ledgerOptions{}
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Print active positions and, optionally, the closed-trade history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime(ctx, opts)
			if err != nil {
				return err
			}
			defer rt.close(ctx)

			ledger, err := rt.ledger.Load(ctx)
			if err != nil {
				rt.logger.Error(ctx, err, "Failed to load ledger")
				return err
			}
			printLedger(os.Stdout, ledger, *lopts)
			return nil
		},
	}
	cmd.Flags().BoolVar(&lopts.closed, "closed", false, "Include the closed-trade history and its totals")
	cmd.Flags().StringVar(&lopts.symbol, "symbol", "", "Only show positions for this symbol")
	return cmd
}

func printLedger(out io.Writer, ledger *domain.Ledger, opts ledgerOptions) {
	match := func(symbol string) bool {
		return opts.symbol == "" || strings.EqualFold(symbol, opts.symbol)
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ACTIVE\tSYMBOL\tENTRY DATE\tENTRY\tSL\tT1\tT2\tQTY\tCURRENT\tP&L\tP&L%\tDAYS\tMODE")
	active := 0
	var unrealized []float64
	for _, p := range ledger.Active {
		if !match(p.Symbol) {
			continue
		}
		active++
		unrealized = append(unrealized, p.PnL)
		fmt.Fprintf(w, "%d\t%s\t%s\t%.2f\t%.2f\t%.2f\t%.2f\t%d\t%.2f\t%.2f\t%.2f\t%d\t%s\n",
			active, p.Symbol, p.EntryDate.Format(domain.DateLayout), p.Entry, p.StopLoss, p.Target1, p.Target2,
			p.Quantity, p.Current, p.PnL, p.PnLPct, p.DaysHeld, p.Mode)
	}
	fmt.Fprintf(w, "\t%d active\t\t\t\t\t\t\t\t%.2f\n", active, money.Sum(unrealized...))
	w.Flush()

	if !opts.closed {
		return
	}

	fmt.Fprintln(out)
	w = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CLOSED\tSYMBOL\tENTRY DATE\tEXIT DATE\tENTRY\tEXIT\tQTY\tREALIZED\tNET\tREASON")
	closed, wins := 0, 0
	var net []float64
	for _, c := range ledger.Closed {
		if !match(c.Symbol) {
			continue
		}
		closed++
		if c.NetPnL > 0 {
			wins++
		}
		net = append(net, c.NetPnL)
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%.2f\t%.2f\t%d\t%.2f\t%.2f\t%s\n",
			closed, c.Symbol, c.EntryDate.Format(domain.DateLayout), c.ExitDate.Format(domain.DateLayout),
			c.Entry, c.ExitPrice, c.Quantity, c.RealizedPnL, c.NetPnL, c.ExitReason)
	}
	fmt.Fprintf(w, "\t%d closed, %d winning\t\t\t\t\t\t\t%.2f\n", closed, wins, money.Sum(net...))
	w.Flush()
}
