package csvstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"swingTrader/internal/domain"
	"swingTrader/internal/ports"
)

var snapshotColumns = []string{
	"Symbol", "Date", "Close", "Open", "High", "Low", "Volume",
	"MA20", "MA50", "MA200", "RSI", "ADX", "ATR",
	"Vol_20D_Avg", "Vol_5D_Avg", "High_20D", "Support", "Resistance",
}

var shortlistColumns = []string{
	"Symbol", "Date", "Close", "Volume", "Vol_Ratio", "Pct_Above_MA20",
	"Entry", "SL", "Target", "Risk_Per_Share", "RR", "Risk_Pct",
	"MA20", "MA50", "MA200", "RSI", "ADX", "ATR", "Mode", "Tradable",
}

var signalColumns = []string{
	"Date", "Symbol", "Entry", "SL", "Target1", "Target2", "RR", "Qty",
	"Position_Value", "Risk_Amount", "Risk_Pct", "Charges", "Breakeven",
	"Net_Expectancy_Pct", "ATR", "Mode", "Tradable",
}

var actionColumns = []string{"Date", "Symbol", "Rule", "Action", "Mode", "Tradable"}

// Store reads snapshot tables from dataDir and keeps the stage outputs in
// outputDir, one file per trading day.
type Store struct {
	dataDir   string
	outputDir string
	logger    ports.Logger
}

// NewStore creates a daily file store.
func NewStore(dataDir, outputDir string, logger ports.Logger) *Store {
	return &Store{dataDir: dataDir, outputDir: outputDir, logger: logger}
}

// SnapshotPath returns the input table for day.
func (s *Store) SnapshotPath(day time.Time) string {
	return filepath.Join(s.dataDir, "raw_data_"+stamp(day)+".csv")
}

// ShortlistPath returns the screening output for day.
func (s *Store) ShortlistPath(day time.Time) string {
	return filepath.Join(s.outputDir, "shortlist_"+stamp(day)+".csv")
}

// SignalsPath returns the analysis output for day.
func (s *Store) SignalsPath(day time.Time) string {
	return filepath.Join(s.outputDir, "daily_signals_"+stamp(day)+".csv")
}

// ActionsPath returns the tracker output for day.
func (s *Store) ActionsPath(day time.Time) string {
	return filepath.Join(s.outputDir, "actions_"+stamp(day)+".csv")
}

// LoadSnapshots reads the day's snapshot table. Rows that fail to parse, or
// that lack a value any filter reads, are logged and skipped; a missing,
// headerless or empty table is ErrMissingInput. Open, High, Low, Volume, ATR
// and Resistance may be empty.
func (s *Store) LoadSnapshots(ctx context.Context, day time.Time) ([]domain.MarketSnapshot, error) {
	path := s.SnapshotPath(day)
	t, err := s.open(path)
	if err != nil {
		return nil, err
	}
	if miss := t.missing(snapshotColumns); len(miss) > 0 {
		return nil, fmt.Errorf("%s lacks columns %v: %w", path, miss, ports.ErrMissingInput)
	}

	out := make([]domain.MarketSnapshot, 0, len(t.rows))
	for i := range t.rows {
		r := t.record(i)
		snap := domain.MarketSnapshot{
			Symbol:     r.str("Symbol"),
			Date:       r.date("Date"),
			Open:       r.float("Open"),
			High:       r.float("High"),
			Low:        r.float("Low"),
			Close:      r.need("Close"),
			Volume:     r.float("Volume"),
			MA20:       r.need("MA20"),
			MA50:       r.need("MA50"),
			MA200:      r.need("MA200"),
			RSI:        r.need("RSI"),
			ADX:        r.need("ADX"),
			ATR:        r.float("ATR"),
			Vol5DAvg:   r.need("Vol_5D_Avg"),
			Vol20DAvg:  r.need("Vol_20D_Avg"),
			High20D:    r.need("High_20D"),
			Support:    r.need("Support"),
			Resistance: r.float("Resistance"),
		}
		if r.err == nil && snap.Symbol == "" {
			r.err = errors.New("empty symbol")
		}
		if r.err != nil {
			s.logger.Warn(ctx, "Skipping unreadable snapshot row", map[string]interface{}{"file": path, "line": i + 2, "error": r.err.Error()})
			continue
		}
		if snap.Date.IsZero() {
			snap.Date = day
		}
		out = append(out, snap)
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("%s has no usable rows: %w", path, ports.ErrMissingInput)
	}
	s.logger.Info(ctx, "Loaded snapshots", map[string]interface{}{"file": path, "symbols": len(out), "skipped": len(t.rows) - len(out)})
	return out, nil
}

// SaveShortlist writes the screening survivors for day.
func (s *Store) SaveShortlist(ctx context.Context, day time.Time, rows []domain.ShortlistRow) error {
	data := make([][]string, 0, len(rows))
	for _, r := range rows {
		data = append(data, []string{
			r.Symbol, fd(r.Date), ff(r.Close), ff(r.Volume), ff(r.VolRatio), ff(r.PctAboveMA20),
			ff(r.Entry), ff(r.StopLoss), ff(r.Target), ff(r.RiskPerShare), ff(r.RR), ff(r.RiskPct),
			ff(r.MA20), ff(r.MA50), ff(r.MA200), ff(r.RSI), ff(r.ADX), ff(r.ATR),
			r.Mode.String(), fb(r.Tradable()),
		})
	}
	return s.save(ctx, s.ShortlistPath(day), shortlistColumns, data)
}

// LoadShortlist reads the screening survivors for day. A missing file is
// ErrMissingInput; an empty shortlist is not an error.
func (s *Store) LoadShortlist(ctx context.Context, day time.Time) ([]domain.ShortlistRow, error) {
	path := s.ShortlistPath(day)
	t, err := s.open(path)
	if err != nil {
		return nil, err
	}

	out := make([]domain.ShortlistRow, 0, len(t.rows))
	for i := range t.rows {
		r := t.record(i)
		row := domain.ShortlistRow{
			MarketSnapshot: domain.MarketSnapshot{
				Symbol: r.str("Symbol"),
				Date:   r.date("Date"),
				Close:  r.float("Close"),
				Volume: r.float("Volume"),
				MA20:   r.float("MA20"),
				MA50:   r.float("MA50"),
				MA200:  r.float("MA200"),
				RSI:    r.float("RSI"),
				ADX:    r.float("ADX"),
				ATR:    r.float("ATR"),
			},
			VolRatio:     r.float("Vol_Ratio"),
			PctAboveMA20: r.float("Pct_Above_MA20"),
			Entry:        r.float("Entry"),
			StopLoss:     r.float("SL"),
			Target:       r.float("Target"),
			RiskPerShare: r.float("Risk_Per_Share"),
			RR:           r.float("RR"),
			RiskPct:      r.float("Risk_Pct"),
			Mode:         r.mode("Mode"),
		}
		if r.err != nil {
			s.logger.Warn(ctx, "Skipping unreadable shortlist row", map[string]interface{}{"file": path, "line": i + 2, "error": r.err.Error()})
			continue
		}
		out = append(out, row)
	}
	return out, nil
}

// SaveSignals writes the day's trade signals.
func (s *Store) SaveSignals(ctx context.Context, day time.Time, signals []domain.TradeSignal) error {
	data := make([][]string, 0, len(signals))
	for _, sig := range signals {
		data = append(data, []string{
			fd(sig.Date), sig.Symbol, ff(sig.Entry), ff(sig.StopLoss), ff(sig.Target1), ff(sig.Target2),
			ff(sig.RR), fi(sig.Quantity), ff(sig.Notional), ff(sig.RiskAmount), ff(sig.RiskPct),
			ff(sig.Charges), ff(sig.Breakeven), ff(sig.NetExpectancyPct), ff(sig.ATR),
			sig.Mode.String(), fb(sig.Tradable()),
		})
	}
	return s.save(ctx, s.SignalsPath(day), signalColumns, data)
}

// LoadSignals reads the day's trade signals. A missing file is ErrMissingInput.
func (s *Store) LoadSignals(ctx context.Context, day time.Time) ([]domain.TradeSignal, error) {
	path := s.SignalsPath(day)
	t, err := s.open(path)
	if err != nil {
		return nil, err
	}

	out := make([]domain.TradeSignal, 0, len(t.rows))
	for i := range t.rows {
		r := t.record(i)
		sig := domain.TradeSignal{
			Date:             r.date("Date"),
			Symbol:           r.str("Symbol"),
			Entry:            r.float("Entry"),
			StopLoss:         r.float("SL"),
			Target1:          r.float("Target1"),
			Target2:          r.float("Target2"),
			RR:               r.float("RR"),
			Quantity:         r.int("Qty"),
			Notional:         r.float("Position_Value"),
			RiskAmount:       r.float("Risk_Amount"),
			RiskPct:          r.float("Risk_Pct"),
			Charges:          r.float("Charges"),
			Breakeven:        r.float("Breakeven"),
			NetExpectancyPct: r.float("Net_Expectancy_Pct"),
			ATR:              r.float("ATR"),
			Mode:             r.mode("Mode"),
		}
		if r.err != nil {
			s.logger.Warn(ctx, "Skipping unreadable signal row", map[string]interface{}{"file": path, "line": i + 2, "error": r.err.Error()})
			continue
		}
		out = append(out, sig)
	}
	return out, nil
}

// SaveActions writes the tracker's actions for day.
func (s *Store) SaveActions(ctx context.Context, day time.Time, actions []domain.TriggerAction) error {
	data := make([][]string, 0, len(actions))
	for _, a := range actions {
		data = append(data, []string{fd(a.Date), a.Symbol, string(a.Rule), a.Message, a.Mode.String(), fb(a.Mode.Tradable())})
	}
	return s.save(ctx, s.ActionsPath(day), actionColumns, data)
}

func (s *Store) open(path string) (*table, error) {
	t, err := readTable(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%s not found: %w", path, ports.ErrMissingInput)
	}
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, ports.ErrMissingInput)
	}
	return t, nil
}

func (s *Store) save(ctx context.Context, path string, header []string, rows [][]string) error {
	if err := writeAtomic(path, header, rows); err != nil {
		s.logger.Error(ctx, err, "Failed to write output file", map[string]interface{}{"file": path})
		return err
	}
	s.logger.Info(ctx, "Saved output file", map[string]interface{}{"file": path, "rows": len(rows)})
	return nil
}
