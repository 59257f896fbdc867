package domain

import "time"

// Position is a tracked instance of an accepted signal, from entry to exit.
type Position struct {
	ID        string    // Stable identifier assigned at ingestion
	Symbol    string    // Instrument symbol
	EntryDate time.Time // Trading day the signal was ingested
	Entry     float64   // Planned entry price
	StopLoss  float64   // Current stop; only ever raised once profit-locking starts
	Target1   float64
	Target2   float64
	Quantity  int
	Notional  float64
	Current   float64 // Last known price
	PnL       float64 // Unrealized P&L in currency
	PnLPct    float64 // Unrealized P&L in percent of entry
	DaysHeld  int
	Status    PositionStatus
	Notes     string
	ATR       float64 // ATR at entry, used for trailing
	T1Hit     bool    // First target already hit

	// Fields carried over from the originating signal.
	RR               float64
	RiskPct          float64
	Charges          float64
	Breakeven        float64
	NetExpectancyPct float64
	Mode             Mode
}

// IsActive checks if the position is still being tracked.
func (p *Position) IsActive() bool {
	return p.Status == StatusActive
}

// AddNote appends a line to the position's free-text notes.
func (p *Position) AddNote(note string) {
	if p.Notes == "" {
		p.Notes = note
		return
	}
	p.Notes += "; " + note
}
