package domain

import "time"

// MarketSnapshot is one day's indicator bundle for one instrument, produced by
// the data collector. The engine only reads it.
type MarketSnapshot struct {
	Symbol     string
	Date       time.Time
	Open       float64
	High       float64
	Low        float64
	Close      float64
	Volume     float64
	MA20       float64
	MA50       float64
	MA200      float64
	RSI        float64
	ADX        float64
	ATR        float64
	Vol5DAvg   float64
	Vol20DAvg  float64
	High20D    float64 // 20-day high as of 20 bars ago
	Support    float64 // 10-day low
	Resistance float64 // highest high in the collected window
}

// ShortlistRow is a snapshot that survived all three screening layers,
// together with the levels derived while screening it.
type ShortlistRow struct {
	MarketSnapshot
	VolRatio     float64
	PctAboveMA20 float64
	Entry        float64
	StopLoss     float64
	Target       float64
	RiskPerShare float64
	RR           float64
	RiskPct      float64
	Mode         Mode
}

// Tradable reports whether the row may be turned into a live instruction.
func (r ShortlistRow) Tradable() bool {
	return r.Mode.Tradable()
}
