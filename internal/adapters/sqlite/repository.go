package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"swingTrader/internal/domain"
	"swingTrader/internal/ports"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Repository implements ports.LedgerStore using SQLite.
type Repository struct {
	db     *sql.DB
	logger ports.Logger
}

// Config holds configuration for the SQLite repository.
type Config struct {
	DBPath string
	Logger ports.Logger
}

// NewRepository creates a new SQLite repository instance.
func NewRepository(cfg Config) (*Repository, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for SQLite repository")
	}
	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = "./data/ledger.db" // Default path
	}

	// Create data directory if it doesn't exist
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		err = fmt.Errorf("failed to create data directory '%s': %w", filepath.Dir(dbPath), err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		err = fmt.Errorf("failed to open database at '%s': %w", dbPath, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		err = fmt.Errorf("failed to ping database at '%s': %w", dbPath, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	// One writer; the ledger is saved in a single transaction.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	cfg.Logger.Info(context.Background(), "SQLite database connection established", map[string]interface{}{"path": dbPath})

	repo := &Repository{db: db, logger: cfg.Logger}
	if err := repo.initializeSchema(context.Background()); err != nil {
		db.Close()
		err = fmt.Errorf("failed to initialize database schema: %w", err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}
	return repo, nil
}

const positionColumns = `id, symbol, entry_date, entry, stop_loss, target1, target2, quantity, notional,
	current, pnl, pnl_pct, days_held, status, notes, atr, t1_hit, rr, risk_pct, charges,
	breakeven, net_expectancy_pct, mode`

// initializeSchema creates tables if they don't exist.
func (r *Repository) initializeSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS positions (
		id TEXT PRIMARY KEY,
		symbol TEXT NOT NULL,
		entry_date TEXT NOT NULL,
		entry REAL NOT NULL,
		stop_loss REAL NOT NULL,
		target1 REAL NOT NULL,
		target2 REAL NOT NULL,
		quantity INTEGER NOT NULL,
		notional REAL NOT NULL,
		current REAL NOT NULL,
		pnl REAL NOT NULL DEFAULT 0,
		pnl_pct REAL NOT NULL DEFAULT 0,
		days_held INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL,
		notes TEXT NOT NULL DEFAULT '',
		atr REAL NOT NULL DEFAULT 0,
		t1_hit INTEGER NOT NULL DEFAULT 0,
		rr REAL NOT NULL DEFAULT 0,
		risk_pct REAL NOT NULL DEFAULT 0,
		charges REAL NOT NULL DEFAULT 0,
		breakeven REAL NOT NULL DEFAULT 0,
		net_expectancy_pct REAL NOT NULL DEFAULT 0,
		mode TEXT NOT NULL,
		position INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS trade_history (
		id TEXT PRIMARY KEY,
		symbol TEXT NOT NULL,
		entry_date TEXT NOT NULL,
		entry REAL NOT NULL,
		stop_loss REAL NOT NULL,
		target1 REAL NOT NULL,
		target2 REAL NOT NULL,
		quantity INTEGER NOT NULL,
		notional REAL NOT NULL,
		current REAL NOT NULL,
		pnl REAL NOT NULL DEFAULT 0,
		pnl_pct REAL NOT NULL DEFAULT 0,
		days_held INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL,
		notes TEXT NOT NULL DEFAULT '',
		atr REAL NOT NULL DEFAULT 0,
		t1_hit INTEGER NOT NULL DEFAULT 0,
		rr REAL NOT NULL DEFAULT 0,
		risk_pct REAL NOT NULL DEFAULT 0,
		charges REAL NOT NULL DEFAULT 0,
		breakeven REAL NOT NULL DEFAULT 0,
		net_expectancy_pct REAL NOT NULL DEFAULT 0,
		mode TEXT NOT NULL,
		exit_date TEXT NOT NULL,
		exit_price REAL NOT NULL,
		exit_reason TEXT NOT NULL,
		realized_pnl REAL NOT NULL,
		realized_pnl_pct REAL NOT NULL,
		net_pnl REAL NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_trade_history_symbol_entry_date ON trade_history (symbol, entry_date);
	`
	_, err := r.db.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("failed to execute schema initialization: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (r *Repository) Close() error {
	if r.db != nil {
		r.logger.Info(context.Background(), "Closing SQLite database connection")
		return r.db.Close()
	}
	return nil
}

// Load reads the active table in insertion order and the full trade history.
func (r *Repository) Load(ctx context.Context) (*domain.Ledger, error) {
	ledger := domain.NewLedger()

	rows, err := r.db.QueryContext(ctx, `SELECT `+positionColumns+` FROM positions ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("failed to query positions: %v: %w", err, ports.ErrQueryFailed)
	}
	defer rows.Close()
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan position: %v: %w", err, ports.ErrLedgerCorrupt)
		}
		ledger.Active = append(ledger.Active, p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating position rows: %v: %w", err, ports.ErrQueryFailed)
	}

	hist, err := r.db.QueryContext(ctx, `SELECT `+positionColumns+`,
		exit_date, exit_price, exit_reason, realized_pnl, realized_pnl_pct, net_pnl
		FROM trade_history ORDER BY exit_date, rowid`)
	if err != nil {
		return nil, fmt.Errorf("failed to query trade history: %v: %w", err, ports.ErrQueryFailed)
	}
	defer hist.Close()
	for hist.Next() {
		ct, err := scanTrade(hist)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trade history: %v: %w", err, ports.ErrLedgerCorrupt)
		}
		ledger.Closed = append(ledger.Closed, ct)
	}
	if err = hist.Err(); err != nil {
		return nil, fmt.Errorf("error iterating trade history rows: %v: %w", err, ports.ErrQueryFailed)
	}

	r.logger.Debug(ctx, "Ledger loaded", map[string]interface{}{"active": len(ledger.Active), "closed": len(ledger.Closed)})
	return ledger, nil
}

// Save replaces the active table and upserts closed trades in one
// transaction. Positions without an ID are assigned one.
func (r *Repository) Save(ctx context.Context, ledger *domain.Ledger) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %v: %w", err, ports.ErrUpdateFailed)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
			r.logger.Error(ctx, err, "Ledger save rolled back")
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM positions`); err != nil {
		return fmt.Errorf("failed to clear positions: %v: %w", err, ports.ErrUpdateFailed)
	}

	const insertPosition = `INSERT INTO positions (` + positionColumns + `, position)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	for i, p := range ledger.Active {
		if p.ID == "" {
			p.ID = uuid.NewString()
		}
		args := append(positionArgs(p), i)
		if _, err = tx.ExecContext(ctx, insertPosition, args...); err != nil {
			return fmt.Errorf("failed to insert position %s: %v: %w", p.Symbol, err, ports.ErrUpdateFailed)
		}
	}

	const upsertTrade = `INSERT OR REPLACE INTO trade_history (` + positionColumns + `,
		exit_date, exit_price, exit_reason, realized_pnl, realized_pnl_pct, net_pnl)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	for _, ct := range ledger.Closed {
		if ct.ID == "" {
			ct.ID = uuid.NewString()
		}
		args := append(positionArgs(&ct.Position),
			ct.ExitDate.Format(domain.DateLayout), ct.ExitPrice, string(ct.ExitReason),
			ct.RealizedPnL, ct.RealizedPnLPct, ct.NetPnL)
		if _, err = tx.ExecContext(ctx, upsertTrade, args...); err != nil {
			return fmt.Errorf("failed to upsert trade %s: %v: %w", ct.Symbol, err, ports.ErrUpdateFailed)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit ledger: %v: %w", err, ports.ErrUpdateFailed)
	}
	r.logger.Info(ctx, "Ledger saved", map[string]interface{}{"active": len(ledger.Active), "closed": len(ledger.Closed)})
	return nil
}

func positionArgs(p *domain.Position) []interface{} {
	return []interface{}{
		p.ID, p.Symbol, p.EntryDate.Format(domain.DateLayout), p.Entry, p.StopLoss, p.Target1, p.Target2,
		p.Quantity, p.Notional, p.Current, p.PnL, p.PnLPct, p.DaysHeld, string(p.Status), p.Notes,
		p.ATR, p.T1Hit, p.RR, p.RiskPct, p.Charges, p.Breakeven, p.NetExpectancyPct, string(p.Mode),
	}
}

// --- Helper Scan Functions ---

// scanner defines an interface compatible with *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

// positionDest returns scan targets matching positionColumns.
func positionDest(p *domain.Position, entryDate, status, mode *string) []interface{} {
	return []interface{}{
		&p.ID, &p.Symbol, entryDate, &p.Entry, &p.StopLoss, &p.Target1, &p.Target2,
		&p.Quantity, &p.Notional, &p.Current, &p.PnL, &p.PnLPct, &p.DaysHeld, status, &p.Notes,
		&p.ATR, &p.T1Hit, &p.RR, &p.RiskPct, &p.Charges, &p.Breakeven, &p.NetExpectancyPct, mode,
	}
}

func finishPosition(p *domain.Position, entryDate, status, mode string) error {
	d, err := time.Parse(domain.DateLayout, entryDate)
	if err != nil {
		return fmt.Errorf("entry date %q: %w", entryDate, err)
	}
	p.EntryDate = d
	p.Status = domain.PositionStatus(status)
	p.Mode = domain.Mode(mode)
	return nil
}

// scanPosition scans a row into a domain.Position struct.
func scanPosition(s scanner) (*domain.Position, error) {
	p := &domain.Position{}
	var entryDate, status, mode string
	if err := s.Scan(positionDest(p, &entryDate, &status, &mode)...); err != nil {
		return nil, err
	}
	if err := finishPosition(p, entryDate, status, mode); err != nil {
		return nil, err
	}
	return p, nil
}

// scanTrade scans a row into a domain.ClosedTrade struct.
func scanTrade(s scanner) (*domain.ClosedTrade, error) {
	ct := &domain.ClosedTrade{}
	var entryDate, status, mode, exitDate, reason string
	dest := append(positionDest(&ct.Position, &entryDate, &status, &mode),
		&exitDate, &ct.ExitPrice, &reason, &ct.RealizedPnL, &ct.RealizedPnLPct, &ct.NetPnL)
	if err := s.Scan(dest...); err != nil {
		return nil, err
	}
	if err := finishPosition(&ct.Position, entryDate, status, mode); err != nil {
		return nil, err
	}
	d, err := time.Parse(domain.DateLayout, exitDate)
	if err != nil {
		return nil, fmt.Errorf("exit date %q: %w", exitDate, err)
	}
	ct.ExitDate = d
	ct.ExitReason = domain.Rule(reason)
	return ct, nil
}
