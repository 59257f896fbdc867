package csvstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"swingTrader/internal/domain"
	"swingTrader/internal/ports"
)

const (
	ActiveFile  = "trade_tracker.csv"
	HistoryFile = "trade_history.csv"
)

var positionColumns = []string{
	"ID", "Symbol", "Entry_Date", "Entry", "SL", "Target1", "Target2", "Qty",
	"Position_Value", "Current", "PnL", "PnL_Pct", "Days_Held", "Status", "Notes",
	"ATR", "T1_Hit", "RR", "Risk_Pct", "Charges", "Breakeven", "Net_Expectancy_Pct",
	"Mode", "Tradable",
}

var historyColumns = append(append([]string{}, positionColumns...),
	"Exit_Date", "Exit_Price", "Exit_Reason", "Realized_PnL", "Realized_PnL_Pct", "Net_PnL")

// Ledger stores active positions and closed trades as two CSV tables in dir.
// Save writes the closed history before the active table, and Load drops
// any active row whose ID is already in history, so a crash between the two
// renames never duplicates a position. A single writer is assumed.
type Ledger struct {
	dir    string
	logger ports.Logger
}

// NewLedger creates a CSV ledger rooted at dir.
func NewLedger(dir string, logger ports.Logger) *Ledger {
	return &Ledger{dir: dir, logger: logger}
}

func (l *Ledger) activePath() string  { return filepath.Join(l.dir, ActiveFile) }
func (l *Ledger) historyPath() string { return filepath.Join(l.dir, HistoryFile) }

// Load reads both tables. Missing files yield an empty ledger.
func (l *Ledger) Load(ctx context.Context) (*domain.Ledger, error) {
	ledger := domain.NewLedger()

	hist, err := readOptional(l.historyPath())
	if err != nil {
		return nil, err
	}
	closedIDs := make(map[string]bool, len(hist.rows))
	for i := range hist.rows {
		r := hist.record(i)
		ct := &domain.ClosedTrade{
			Position:       decodePosition(r),
			ExitDate:       r.date("Exit_Date"),
			ExitPrice:      r.float("Exit_Price"),
			ExitReason:     domain.Rule(r.str("Exit_Reason")),
			RealizedPnL:    r.float("Realized_PnL"),
			RealizedPnLPct: r.float("Realized_PnL_Pct"),
			NetPnL:         r.float("Net_PnL"),
		}
		if r.err != nil {
			return nil, fmt.Errorf("%s line %d: %v: %w", l.historyPath(), i+2, r.err, ports.ErrLedgerCorrupt)
		}
		ct.Status = domain.StatusClosed
		ledger.Closed = append(ledger.Closed, ct)
		closedIDs[ct.ID] = true
	}

	act, err := readOptional(l.activePath())
	if err != nil {
		return nil, err
	}
	for i := range act.rows {
		r := act.record(i)
		p := decodePosition(r)
		if r.err != nil {
			return nil, fmt.Errorf("%s line %d: %v: %w", l.activePath(), i+2, r.err, ports.ErrLedgerCorrupt)
		}
		if p.ID != "" && closedIDs[p.ID] {
			l.logger.Warn(ctx, "Dropping active row already present in history", map[string]interface{}{"id": p.ID, "symbol": p.Symbol})
			continue
		}
		pos := p
		ledger.Active = append(ledger.Active, &pos)
	}

	l.logger.Debug(ctx, "Ledger loaded", map[string]interface{}{"active": len(ledger.Active), "closed": len(ledger.Closed)})
	return ledger, nil
}

// Save replaces both tables, history first.
func (l *Ledger) Save(ctx context.Context, ledger *domain.Ledger) error {
	hist := make([][]string, 0, len(ledger.Closed))
	for _, ct := range ledger.Closed {
		row := encodePosition(&ct.Position)
		row = append(row, fd(ct.ExitDate), ff(ct.ExitPrice), string(ct.ExitReason),
			ff(ct.RealizedPnL), ff(ct.RealizedPnLPct), ff(ct.NetPnL))
		hist = append(hist, row)
	}
	if err := writeAtomic(l.historyPath(), historyColumns, hist); err != nil {
		l.logger.Error(ctx, err, "Failed to save trade history")
		return err
	}

	active := make([][]string, 0, len(ledger.Active))
	for _, p := range ledger.Active {
		active = append(active, encodePosition(p))
	}
	if err := writeAtomic(l.activePath(), positionColumns, active); err != nil {
		l.logger.Error(ctx, err, "Failed to save active trades")
		return err
	}

	l.logger.Info(ctx, "Ledger saved", map[string]interface{}{"active": len(ledger.Active), "closed": len(ledger.Closed)})
	return nil
}

func readOptional(path string) (*table, error) {
	t, err := readTable(path)
	if errors.Is(err, os.ErrNotExist) {
		return &table{cols: map[string]int{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, ports.ErrLedgerCorrupt)
	}
	return t, nil
}

func encodePosition(p *domain.Position) []string {
	return []string{
		p.ID, p.Symbol, fd(p.EntryDate), ff(p.Entry), ff(p.StopLoss), ff(p.Target1), ff(p.Target2),
		fi(p.Quantity), ff(p.Notional), ff(p.Current), ff(p.PnL), ff(p.PnLPct), fi(p.DaysHeld),
		string(p.Status), p.Notes, ff(p.ATR), fb(p.T1Hit), ff(p.RR), ff(p.RiskPct), ff(p.Charges),
		ff(p.Breakeven), ff(p.NetExpectancyPct), p.Mode.String(), fb(p.Mode.Tradable()),
	}
}

func decodePosition(r *record) domain.Position {
	return domain.Position{
		ID:               r.str("ID"),
		Symbol:           r.str("Symbol"),
		EntryDate:        r.date("Entry_Date"),
		Entry:            r.float("Entry"),
		StopLoss:         r.float("SL"),
		Target1:          r.float("Target1"),
		Target2:          r.float("Target2"),
		Quantity:         r.int("Qty"),
		Notional:         r.float("Position_Value"),
		Current:          r.float("Current"),
		PnL:              r.float("PnL"),
		PnLPct:           r.float("PnL_Pct"),
		DaysHeld:         r.int("Days_Held"),
		Status:           domain.PositionStatus(r.str("Status")),
		Notes:            r.str("Notes"),
		ATR:              r.float("ATR"),
		T1Hit:            r.bool("T1_Hit"),
		RR:               r.float("RR"),
		RiskPct:          r.float("Risk_Pct"),
		Charges:          r.float("Charges"),
		Breakeven:        r.float("Breakeven"),
		NetExpectancyPct: r.float("Net_Expectancy_Pct"),
		Mode:             r.mode("Mode"),
	}
}
