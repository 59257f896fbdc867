// Package allocation ranks the day's signals and fits them to the free
// position slots.
package allocation

import (
	"sort"
	"time"

	"swingTrader/internal/domain"
)

// Held returns the symbols of ACTIVE positions entered before day. Positions
// entered on day came from that day's own signals: they are allocated again
// on a re-run rather than counted against capacity, and ingestion skips them.
func Held(l *domain.Ledger, day time.Time) map[string]bool {
	held := make(map[string]bool)
	for _, p := range l.Active {
		if p.IsActive() && !domain.SameDay(p.EntryDate, day) {
			held[p.Symbol] = true
		}
	}
	return held
}

// Unheld drops signals for symbols that already have an open position, so a
// repeat signal never takes a slot from a new candidate.
func Unheld(signals []domain.TradeSignal, held map[string]bool) []domain.TradeSignal {
	out := make([]domain.TradeSignal, 0, len(signals))
	for _, s := range signals {
		if !held[s.Symbol] {
			out = append(out, s)
		}
	}
	return out
}

// FreeSlots returns how many new positions fit alongside active ones.
func FreeSlots(activeCount, maxConcurrent int) int {
	return maxConcurrent - activeCount
}

// Allocate returns at most maxConcurrent-activeCount signals. When all
// signals fit they are returned unchanged; otherwise the best are kept,
// ranked by reward:risk and then by net expectancy, both descending.
// A full portfolio yields an empty, non-nil slice.
func Allocate(signals []domain.TradeSignal, activeCount, maxConcurrent int) []domain.TradeSignal {
	slots := FreeSlots(activeCount, maxConcurrent)
	if slots <= 0 {
		return []domain.TradeSignal{}
	}
	if len(signals) <= slots {
		return signals
	}

	ranked := make([]domain.TradeSignal, len(signals))
	copy(ranked, signals)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].RR != ranked[j].RR {
			return ranked[i].RR > ranked[j].RR
		}
		return ranked[i].NetExpectancyPct > ranked[j].NetExpectancyPct
	})
	return ranked[:slots]
}
