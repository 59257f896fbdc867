package risk

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"swingTrader/internal/domain"
	"swingTrader/internal/money"
	"swingTrader/internal/ports"
)

// Config holds configuration for position sizing and signal validation.
type Config struct {
	Capital             float64 // account capital in currency
	RiskPerTrade        float64 // fraction of capital risked per trade (0.01 = 1%)
	MaxPositionFraction float64 // fraction of capital allowed in one position
	BreakevenMargin     float64 // safety margin above cost breakeven (0.02 = 2%)
	TargetExtensionATR  float64 // second target = first target + this many ATRs
	DefaultATR          float64 // used when the row carries no ATR
	Costs               CostSchedule
}

// DefaultConfig returns sizing settings for the given capital and
// percentages, with the standard margins and cost schedule.
func DefaultConfig(capital, riskPerTrade, maxPositionFraction float64) Config {
	return Config{
		Capital:             capital,
		RiskPerTrade:        riskPerTrade,
		MaxPositionFraction: maxPositionFraction,
		BreakevenMargin:     0.02,
		TargetExtensionATR:  1.5,
		DefaultATR:          20,
		Costs:               DefaultCostSchedule(),
	}
}

// Manager sizes shortlisted rows and turns them into trade signals.
type Manager struct {
	config Config
	logger ports.Logger
}

// NewManager creates a new risk manager instance.
func NewManager(config Config, logger ports.Logger) (*Manager, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required for risk manager")
	}
	if config.Capital <= 0 {
		return nil, fmt.Errorf("%w: capital must be positive", ports.ErrConfigurationError)
	}
	if config.RiskPerTrade <= 0 || config.RiskPerTrade >= 1 {
		return nil, fmt.Errorf("%w: risk per trade must be between 0 and 1", ports.ErrConfigurationError)
	}
	if config.MaxPositionFraction <= 0 || config.MaxPositionFraction > 1 {
		return nil, fmt.Errorf("%w: max position fraction must be in (0, 1]", ports.ErrConfigurationError)
	}
	return &Manager{config: config, logger: logger}, nil
}

// MaxRiskAmount is the currency amount one trade may lose at its stop.
func (m *Manager) MaxRiskAmount() float64 {
	return m.config.Capital * m.config.RiskPerTrade
}

// MaxPositionValue is the largest notional one position may hold.
func (m *Manager) MaxPositionValue() float64 {
	return m.config.Capital * m.config.MaxPositionFraction
}

// PositionSize returns the share quantity and notional for a trade entered at
// entry with its stop at stop. The risk budget sets the size unless the
// resulting position is worth more than the position cap, in which case the
// cap wins. A non-positive or non-finite risk per share yields zero.
func (m *Manager) PositionSize(entry, stop float64) (int, float64) {
	riskPerShare := entry - stop
	if !(riskPerShare > 0) || !(entry > 0) || math.IsInf(entry, 0) {
		return 0, 0
	}

	qty := int(math.Floor(m.MaxRiskAmount() / riskPerShare))
	notional := float64(qty) * entry

	if maxPosition := m.MaxPositionValue(); notional > maxPosition {
		qty = int(math.Floor(maxPosition / entry))
		notional = float64(qty) * entry
	}
	return qty, notional
}

// BuildSignal sizes one shortlisted row and validates it against costs.
// Rejections wrap ErrZeroQuantity or ErrTargetBelowBreakeven.
func (m *Manager) BuildSignal(row domain.ShortlistRow, day time.Time) (domain.TradeSignal, error) {
	qty, notional := m.PositionSize(row.Entry, row.StopLoss)
	if qty == 0 {
		return domain.TradeSignal{}, fmt.Errorf("%s: %w", row.Symbol, ports.ErrZeroQuantity)
	}

	charges := m.config.Costs.RoundTrip(notional).Total
	breakeven := row.Entry * (1 + charges/notional + m.config.BreakevenMargin)
	if row.Target < breakeven {
		return domain.TradeSignal{}, fmt.Errorf("%s: target %.2f below breakeven %.2f: %w",
			row.Symbol, row.Target, breakeven, ports.ErrTargetBelowBreakeven)
	}

	netProfit := float64(qty)*(row.Target-row.Entry) - charges

	atr := row.ATR
	if !(atr > 0) || math.IsInf(atr, 0) {
		atr = m.config.DefaultATR
	}

	return domain.TradeSignal{
		Date:             day,
		Symbol:           row.Symbol,
		Entry:            row.Entry,
		StopLoss:         row.StopLoss,
		Target1:          row.Target,
		Target2:          money.Round2(row.Target + m.config.TargetExtensionATR*atr),
		RR:               row.RR,
		Quantity:         qty,
		Notional:         notional,
		RiskAmount:       money.Round2((row.Entry - row.StopLoss) * float64(qty)),
		RiskPct:          row.RiskPct,
		Charges:          charges,
		Breakeven:        money.Round2(breakeven),
		NetExpectancyPct: money.Round2(netProfit / notional * 100),
		ATR:              atr,
		Mode:             row.Mode,
	}, nil
}

// BuildResult holds the accepted signals and rejection counts by reason.
type BuildResult struct {
	Signals  []domain.TradeSignal
	Rejected map[string]int
}

// BuildSignals converts every row it can, logging and skipping the rest.
func (m *Manager) BuildSignals(ctx context.Context, rows []domain.ShortlistRow, day time.Time) BuildResult {
	res := BuildResult{
		Signals:  make([]domain.TradeSignal, 0, len(rows)),
		Rejected: make(map[string]int),
	}
	for _, row := range rows {
		sig, err := m.BuildSignal(row, day)
		if err != nil {
			reason := RejectReason(err)
			res.Rejected[reason]++
			m.logger.Info(ctx, "Signal skipped", map[string]interface{}{"symbol": row.Symbol, "reason": reason, "detail": err.Error()})
			continue
		}
		res.Signals = append(res.Signals, sig)
	}
	m.logger.Info(ctx, "Signals built", map[string]interface{}{"accepted": len(res.Signals), "rows": len(rows)})
	return res
}

// RejectReason maps a BuildSignal error to a short label.
func RejectReason(err error) string {
	switch {
	case errors.Is(err, ports.ErrZeroQuantity):
		return "zero_quantity"
	case errors.Is(err, ports.ErrTargetBelowBreakeven):
		return "below_breakeven"
	default:
		return "other"
	}
}
