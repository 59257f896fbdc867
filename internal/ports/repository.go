package ports

import (
	"context"
	"time"

	"swingTrader/internal/domain"
)

// LedgerStore persists the position ledger between daily runs.
// Implementations assume a single writer at a time; Save must never leave a
// partially written ledger behind.
type LedgerStore interface {
	// Load returns the stored ledger. A store that has never been written
	// returns an empty ledger and no error.
	Load(ctx context.Context) (*domain.Ledger, error)
	// Save replaces the stored ledger with l.
	Save(ctx context.Context, l *domain.Ledger) error
}

// SnapshotSource provides the day's market snapshots.
type SnapshotSource interface {
	// LoadSnapshots returns all snapshots for the trading day. A missing or
	// empty table is reported with ErrMissingInput.
	LoadSnapshots(ctx context.Context, day time.Time) ([]domain.MarketSnapshot, error)
}

// BatchStore reads and writes the per-day files exchanged between stages.
type BatchStore interface {
	SaveShortlist(ctx context.Context, day time.Time, rows []domain.ShortlistRow) error
	LoadShortlist(ctx context.Context, day time.Time) ([]domain.ShortlistRow, error)
	SaveSignals(ctx context.Context, day time.Time, signals []domain.TradeSignal) error
	LoadSignals(ctx context.Context, day time.Time) ([]domain.TradeSignal, error)
	SaveActions(ctx context.Context, day time.Time, actions []domain.TriggerAction) error
}
