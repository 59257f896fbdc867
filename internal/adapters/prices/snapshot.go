// Package prices provides the current-price lookups used by the tracker.
package prices

import (
	"context"
	"fmt"
	"math"

	"swingTrader/internal/domain"
	"swingTrader/internal/ports"
)

// Snapshot answers lookups with the closes from the day's snapshot table.
// It needs no network and is the default source for end-of-day runs.
type Snapshot struct {
	closes map[string]float64
}

// NewSnapshot indexes the closes of snapshots by symbol.
func NewSnapshot(snapshots []domain.MarketSnapshot) *Snapshot {
	closes := make(map[string]float64, len(snapshots))
	for _, s := range snapshots {
		if s.Close > 0 && !math.IsInf(s.Close, 0) {
			closes[s.Symbol] = s.Close
		}
	}
	return &Snapshot{closes: closes}
}

// Name identifies the source in logs.
func (s *Snapshot) Name() string { return "snapshot" }

// CurrentPrice returns the symbol's close.
func (s *Snapshot) CurrentPrice(ctx context.Context, symbol string) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("%s: %v: %w", symbol, err, ports.ErrPriceUnavailable)
	}
	price, ok := s.closes[symbol]
	if !ok {
		return 0, fmt.Errorf("%s not in snapshot: %w", symbol, ports.ErrPriceUnavailable)
	}
	return price, nil
}
