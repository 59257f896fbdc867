package domain

import "time"

// TradeSignal is a sized, cost-validated trade instruction derived from a
// shortlist row. It is never mutated once built.
type TradeSignal struct {
	Date             time.Time
	Symbol           string
	Entry            float64
	StopLoss         float64
	Target1          float64
	Target2          float64
	RR               float64
	Quantity         int
	Notional         float64
	RiskAmount       float64
	RiskPct          float64
	Charges          float64 // estimated round-trip transaction cost
	Breakeven        float64
	NetExpectancyPct float64
	ATR              float64
	Mode             Mode
}

// Tradable reports whether the signal may be executed.
func (s TradeSignal) Tradable() bool {
	return s.Mode.Tradable()
}

// TriggerAction is an instruction or advisory emitted by the tracker for one
// position during one tick.
type TriggerAction struct {
	Date    time.Time
	Symbol  string
	Rule    Rule
	Message string
	Mode    Mode
}
