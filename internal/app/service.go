package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"swingTrader/internal/allocation"
	"swingTrader/internal/domain"
	"swingTrader/internal/metrics"
	"swingTrader/internal/ports"
	"swingTrader/internal/profile"
	"swingTrader/internal/risk"
	"swingTrader/internal/screening"
	"swingTrader/internal/tracker"
)

// PriceSourceFactory returns the price source used to track positions on day.
type PriceSourceFactory func(ctx context.Context, day time.Time) (ports.PriceSource, error)

// Config holds the service's run parameters.
type Config struct {
	Profile             profile.FilterProfile
	MaxConcurrentTrades int
	Tracker             tracker.Config
	MetricsPath         string
}

// Deps are the collaborators wired in by the command layer.
type Deps struct {
	Logger    ports.Logger
	Snapshots ports.SnapshotSource
	Batches   ports.BatchStore
	Ledger    ports.LedgerStore
	Prices    PriceSourceFactory
	Risk      *risk.Manager
	Metrics   *metrics.Batch // optional
	Out       io.Writer      // summary tables; defaults to stdout
	Now       func() time.Time
}

// AnalyzeResult is the outcome of the analyze stage.
type AnalyzeResult struct {
	Built     risk.BuildResult
	Allocated []domain.TradeSignal
	Active    int // positions opened before the day, counted against capacity
}

// Service runs the daily batch: screen, analyze and track. Each stage reads
// the previous stage's file, so stages can also run on their own schedule.
type Service struct {
	cfg       Config
	logger    ports.Logger
	snapshots ports.SnapshotSource
	batches   ports.BatchStore
	ledger    ports.LedgerStore
	prices    PriceSourceFactory
	risk      *risk.Manager
	pipeline  *screening.Pipeline
	metrics   *metrics.Batch
	out       io.Writer
	now       func() time.Time
}

// NewService creates a new application service instance.
func NewService(cfg Config, deps Deps) (*Service, error) {
	// Validate dependencies
	if deps.Logger == nil || deps.Snapshots == nil || deps.Batches == nil || deps.Ledger == nil || deps.Risk == nil {
		return nil, fmt.Errorf("missing required dependencies for Service: %w", ports.ErrConfigurationError)
	}
	if cfg.MaxConcurrentTrades < 0 {
		return nil, fmt.Errorf("MaxConcurrentTrades cannot be negative: %w", ports.ErrConfigurationError)
	}
	if err := cfg.Profile.Validate(); err != nil {
		return nil, err
	}

	out := deps.Out
	if out == nil {
		out = os.Stdout
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}

	return &Service{
		cfg:       cfg,
		logger:    deps.Logger,
		snapshots: deps.Snapshots,
		batches:   deps.Batches,
		ledger:    deps.Ledger,
		prices:    deps.Prices,
		risk:      deps.Risk,
		pipeline:  screening.NewPipeline(deps.Logger),
		metrics:   deps.Metrics,
		out:       out,
		now:       now,
	}, nil
}

// Screen runs the three screening layers over the day's snapshots and saves
// the shortlist. An empty shortlist is a normal outcome and is still saved.
func (s *Service) Screen(ctx context.Context, day time.Time) (screening.Result, error) {
	prof := s.cfg.Profile
	s.logger.Info(ctx, "Screening started", map[string]interface{}{"date": day.Format(domain.DateLayout), "mode": prof.Mode})

	snapshots, err := s.snapshots.LoadSnapshots(ctx, day)
	if err != nil {
		s.logger.Error(ctx, err, "Screening aborted: no snapshot data")
		return screening.Result{}, fmt.Errorf("screen: %w", err)
	}

	res := s.pipeline.Run(ctx, snapshots, prof)
	if err := s.batches.SaveShortlist(ctx, day, res.Rows); err != nil {
		return res, fmt.Errorf("screen: %w", err)
	}
	if s.metrics != nil {
		s.metrics.ObserveScreen(res, s.now())
	}

	s.printShortlist(prof, res)
	s.logger.Info(ctx, "Screening complete", map[string]interface{}{"universe": res.Universe, "shortlisted": len(res.Rows)})
	return res, nil
}

// Analyze sizes the day's shortlist into cost-validated signals, keeps as
// many as there are free position slots and saves them.
func (s *Service) Analyze(ctx context.Context, day time.Time) (AnalyzeResult, error) {
	var res AnalyzeResult
	s.logger.Info(ctx, "Analysis started", map[string]interface{}{"date": day.Format(domain.DateLayout)})

	// 1. Shortlist from the screening stage
	rows, err := s.batches.LoadShortlist(ctx, day)
	if err != nil {
		s.logger.Error(ctx, err, "Analysis aborted: no shortlist")
		return res, fmt.Errorf("analyze: %w", err)
	}

	// 2. Positions opened on earlier days occupy capacity
	ledger, err := s.ledger.Load(ctx)
	if err != nil {
		s.logger.Error(ctx, err, "Failed to load ledger")
		return res, fmt.Errorf("analyze: %w", err)
	}
	held := allocation.Held(ledger, day)
	res.Active = len(held)

	// 3. Size, cost and rank the symbols not already held
	res.Built = s.risk.BuildSignals(ctx, rows, day)
	candidates := allocation.Unheld(res.Built.Signals, held)
	if repeat := len(res.Built.Signals) - len(candidates); repeat > 0 {
		s.logger.Info(ctx, "Signals dropped for symbols already held", map[string]interface{}{"dropped": repeat})
	}
	res.Allocated = allocation.Allocate(candidates, res.Active, s.cfg.MaxConcurrentTrades)
	if dropped := len(candidates) - len(res.Allocated); dropped > 0 {
		s.logger.Info(ctx, "Signals dropped for capacity", map[string]interface{}{
			"dropped": dropped, "active": res.Active, "maxConcurrent": s.cfg.MaxConcurrentTrades,
		})
	}

	// 4. Persist for the tracker
	if err := s.batches.SaveSignals(ctx, day, res.Allocated); err != nil {
		return res, fmt.Errorf("analyze: %w", err)
	}
	if s.metrics != nil {
		s.metrics.ObserveSignals(res.Built, len(res.Allocated), s.now())
	}

	s.printSignals(res.Allocated)
	s.logger.Info(ctx, "Analysis complete", map[string]interface{}{
		"shortlisted": len(rows), "accepted": len(res.Built.Signals), "allocated": len(res.Allocated),
	})
	return res, nil
}

// Track runs one tracker tick over the ledger and saves the ledger and the
// day's actions. Missing signals only mean nothing new is opened.
func (s *Service) Track(ctx context.Context, day time.Time) (tracker.TickResult, error) {
	s.logger.Info(ctx, "Tracking started", map[string]interface{}{"date": day.Format(domain.DateLayout)})

	// 1. Ledger
	ledger, err := s.ledger.Load(ctx)
	if err != nil {
		s.logger.Error(ctx, err, "Failed to load ledger")
		return tracker.TickResult{}, fmt.Errorf("track: %w", err)
	}

	// 2. Today's signals
	signals, err := s.batches.LoadSignals(ctx, day)
	if err != nil {
		if !errors.Is(err, ports.ErrMissingInput) {
			return tracker.TickResult{}, fmt.Errorf("track: %w", err)
		}
		s.logger.Warn(ctx, "No signals for today, tracking existing positions only", map[string]interface{}{"error": err.Error()})
		signals = nil
	}

	// 3. Price source
	var src ports.PriceSource
	if s.prices != nil {
		src, err = s.prices(ctx, day)
		if err != nil {
			s.logger.Warn(ctx, "Price source unavailable, positions keep last prices", map[string]interface{}{"error": err.Error()})
			src = nil
		}
	}

	// 4. Tick and persist
	res := tracker.New(s.cfg.Tracker, src, s.logger).Tick(ctx, ledger, signals, day)
	if err := s.ledger.Save(ctx, ledger); err != nil {
		s.logger.Error(ctx, err, "Failed to save ledger")
		return res, fmt.Errorf("track: %w", err)
	}
	if err := s.batches.SaveActions(ctx, day, res.Actions); err != nil {
		return res, fmt.Errorf("track: %w", err)
	}
	if s.metrics != nil {
		s.metrics.ObserveTick(res, ledger.ActiveCount(), s.now())
	}

	s.printTracking(ledger, res)
	return res, nil
}

// RunDaily runs screen, analyze and track in order. A stage that finds no
// input is logged and skipped; tracking always runs so open positions are
// never left unattended. Configuration and ledger errors abort the run.
func (s *Service) RunDaily(ctx context.Context, day time.Time) error {
	s.logger.Info(ctx, "Daily run started", map[string]interface{}{"date": day.Format(domain.DateLayout), "mode": s.cfg.Profile.Mode})

	if _, err := s.Screen(ctx, day); err != nil {
		if !errors.Is(err, ports.ErrMissingInput) {
			return err
		}
		s.logger.Warn(ctx, "Screen stage skipped", map[string]interface{}{"error": err.Error()})
	}

	if _, err := s.Analyze(ctx, day); err != nil {
		if !errors.Is(err, ports.ErrMissingInput) {
			return err
		}
		s.logger.Warn(ctx, "Analyze stage skipped", map[string]interface{}{"error": err.Error()})
	}

	if _, err := s.Track(ctx, day); err != nil {
		return err
	}

	if err := s.FlushMetrics(ctx); err != nil {
		return err
	}
	s.logger.Info(ctx, "Daily run complete")
	return nil
}

// FlushMetrics writes the batch gauges when a metrics path is configured.
func (s *Service) FlushMetrics(ctx context.Context) error {
	if s.metrics == nil || s.cfg.MetricsPath == "" {
		return nil
	}
	if err := s.metrics.Write(s.cfg.MetricsPath); err != nil {
		s.logger.Error(ctx, err, "Failed to write metrics")
		return err
	}
	return nil
}

// --- Summary tables ---

func (s *Service) banner(mode domain.Mode) {
	if !mode.Tradable() {
		fmt.Fprintln(s.out, "*** TESTING MODE - DO NOT TRADE ***")
	}
}

func (s *Service) printShortlist(prof profile.FilterProfile, res screening.Result) {
	s.banner(prof.Mode)
	fmt.Fprintf(s.out, "Screened %d symbols (%s mode): %d shortlisted\n", res.Universe, prof.Mode, len(res.Rows))
	if len(res.Rows) == 0 {
		if res.EmptyAfter != "" {
			fmt.Fprintf(s.out, "No candidates today (emptied at %s)\n", res.EmptyAfter)
		}
		return
	}
	w := tabwriter.NewWriter(s.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SYMBOL\tCLOSE\tENTRY\tSL\tTARGET\tRR\tRISK%\tRSI\tADX")
	for _, r := range res.Rows {
		fmt.Fprintf(w, "%s\t%.2f\t%.2f\t%.2f\t%.2f\t%.2f\t%.2f\t%.1f\t%.1f\n",
			r.Symbol, r.Close, r.Entry, r.StopLoss, r.Target, r.RR, r.RiskPct, r.RSI, r.ADX)
	}
	w.Flush()
}

func (s *Service) printSignals(signals []domain.TradeSignal) {
	if len(signals) > 0 {
		s.banner(signals[0].Mode)
	}
	fmt.Fprintf(s.out, "%d trade signal(s)\n", len(signals))
	if len(signals) == 0 {
		return
	}
	w := tabwriter.NewWriter(s.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SYMBOL\tENTRY\tSL\tT1\tT2\tQTY\tVALUE\tCHARGES\tNET%\tRR\tTRADABLE")
	for _, sig := range signals {
		fmt.Fprintf(w, "%s\t%.2f\t%.2f\t%.2f\t%.2f\t%d\t%.2f\t%.2f\t%.2f\t%.2f\t%t\n",
			sig.Symbol, sig.Entry, sig.StopLoss, sig.Target1, sig.Target2, sig.Quantity,
			sig.Notional, sig.Charges, sig.NetExpectancyPct, sig.RR, sig.Tradable())
	}
	w.Flush()
}

func (s *Service) printTracking(ledger *domain.Ledger, res tracker.TickResult) {
	fmt.Fprintf(s.out, "Tracking: %d active, %d new, %d closed, %d action(s)\n",
		ledger.ActiveCount(), res.Ingested, len(res.Closed), len(res.Actions))

	if len(res.Actions) > 0 {
		w := tabwriter.NewWriter(s.out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "SYMBOL\tRULE\tACTION")
		for _, a := range res.Actions {
			fmt.Fprintf(w, "%s\t%s\t%s\n", a.Symbol, a.Rule, a.Message)
		}
		w.Flush()
	}

	if len(ledger.Active) > 0 {
		w := tabwriter.NewWriter(s.out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "SYMBOL\tENTRY\tCURRENT\tSL\tT1\tPNL\tPNL%\tDAYS")
		for _, p := range ledger.Active {
			fmt.Fprintf(w, "%s\t%.2f\t%.2f\t%.2f\t%.2f\t%.2f\t%.2f\t%d\n",
				p.Symbol, p.Entry, p.Current, p.StopLoss, p.Target1, p.PnL, p.PnLPct, p.DaysHeld)
		}
		w.Flush()
	}
}
