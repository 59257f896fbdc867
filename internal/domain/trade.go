package domain

import "time"

// ClosedTrade is a position that has exited. Closed trades form the history
// consumed by reporting and are never reopened.
type ClosedTrade struct {
	Position
	ExitDate       time.Time
	ExitPrice      float64
	ExitReason     Rule
	RealizedPnL    float64 // (exit - entry) * quantity
	RealizedPnLPct float64
	NetPnL         float64 // RealizedPnL less the estimated round-trip charges
}

// Ledger is the persistent set of positions, split into active and closed.
type Ledger struct {
	Active []*Position
	Closed []*ClosedTrade
}

// NewLedger returns an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{
		Active: make([]*Position, 0),
		Closed: make([]*ClosedTrade, 0),
	}
}

// ActiveCount returns the number of positions still ACTIVE.
func (l *Ledger) ActiveCount() int {
	n := 0
	for _, p := range l.Active {
		if p.IsActive() {
			n++
		}
	}
	return n
}

// FindActive returns the active position for symbol, or nil.
func (l *Ledger) FindActive(symbol string) *Position {
	for _, p := range l.Active {
		if p.Symbol == symbol && p.IsActive() {
			return p
		}
	}
	return nil
}

// HasClosed reports whether a trade for symbol entered on day was already closed.
func (l *Ledger) HasClosed(symbol string, day time.Time) bool {
	for _, c := range l.Closed {
		if c.Symbol == symbol && SameDay(c.EntryDate, day) {
			return true
		}
	}
	return false
}

// SameDay compares the calendar dates of a and b.
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
