package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
)

func screenCmd(ctx context.Context, opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "screen",
		Short: "Screen the day's snapshot and write the shortlist",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(ctx, opts, func(rt *runtime) error {
				if _, err := rt.service.Screen(ctx, rt.day); err != nil {
					return err
				}
				return rt.service.FlushMetrics(ctx)
			})
		},
	}
}

func analyzeCmd(ctx context.Context, opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "analyze",
		Short: "Size trade signals for the shortlist and allocate free slots",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(ctx, opts, func(rt *runtime) error {
				if _, err := rt.service.Analyze(ctx, rt.day); err != nil {
					return err
				}
				return rt.service.FlushMetrics(ctx)
			})
		},
	}
}

func trackCmd(ctx context.Context, opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "track",
		Short: "Ingest the day's signals, refresh prices and evaluate exit rules",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(ctx, opts, func(rt *runtime) error {
				if _, err := rt.service.Track(ctx, rt.day); err != nil {
					return err
				}
				return rt.service.FlushMetrics(ctx)
			})
		},
	}
}

func runCmd(ctx context.Context, opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run screen, analyze and track in order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(ctx, opts, func(rt *runtime) error {
				err := rt.service.RunDaily(ctx, rt.day)
				if errors.Is(err, context.Canceled) {
					rt.logger.Warn(ctx, "Daily run interrupted")
				}
				return err
			})
		},
	}
}
