// Package tracker advances open positions through their exit rules once per
// trading day.
package tracker

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"swingTrader/internal/domain"
	"swingTrader/internal/money"
	"swingTrader/internal/ports"
)

// Config holds the exit-rule parameters.
type Config struct {
	BreakevenTriggerPct float64       // unrealized gain that locks the stop at entry
	TrailATRMultiple    float64       // trailing distance after the first target, in ATRs
	MonthEndDays        int           // holding period that raises the advisory
	DefaultATR          float64       // used when a position carries no ATR
	PriceTimeout        time.Duration // per-symbol price lookup timeout
}

// DefaultConfig returns the standard exit-rule parameters.
func DefaultConfig() Config {
	return Config{
		BreakevenTriggerPct: 3,
		TrailATRMultiple:    1.5,
		MonthEndDays:        25,
		DefaultATR:          20,
		PriceTimeout:        10 * time.Second,
	}
}

// TickResult summarises one daily tick.
type TickResult struct {
	Ingested      int
	Skipped       int
	PriceFailures int
	Actions       []domain.TriggerAction
	Closed        []*domain.ClosedTrade
}

// Tracker is the per-position state machine driver. It keeps no state of its
// own between ticks; everything lives in the ledger.
type Tracker struct {
	cfg    Config
	prices ports.PriceSource
	logger ports.Logger
	newID  func() string
}

// New creates a tracker. prices may be nil, in which case positions keep
// their last known price.
func New(cfg Config, prices ports.PriceSource, logger ports.Logger) *Tracker {
	return &Tracker{
		cfg:    cfg,
		prices: prices,
		logger: logger,
		newID:  uuid.NewString,
	}
}

// Tick runs one day: ingest new signals, refresh every active price, derive
// P&L and holding period, apply the exit rules and move closed positions into
// the closed ledger.
func (t *Tracker) Tick(ctx context.Context, l *domain.Ledger, signals []domain.TradeSignal, day time.Time) TickResult {
	var res TickResult
	res.Ingested, res.Skipped = t.Ingest(ctx, l, signals, day)
	res.PriceFailures = t.Refresh(ctx, l)

	for _, p := range l.Active {
		if p.IsActive() {
			Derive(p, day)
		}
	}
	for _, p := range l.Active {
		if p.IsActive() {
			res.Actions = append(res.Actions, t.Evaluate(p, day)...)
		}
	}
	res.Closed = t.migrate(l, day)

	t.logger.Info(ctx, "Tick complete", map[string]interface{}{
		"active":        l.ActiveCount(),
		"closed":        len(res.Closed),
		"actions":       len(res.Actions),
		"priceFailures": res.PriceFailures,
	})
	return res
}

// Ingest adds signals to the ledger as ACTIVE positions. It is keyed by
// symbol and entry day, so ingesting the same batch twice adds nothing:
// a symbol already ACTIVE is skipped, as is one whose trade from the same day
// has already closed. Signals that are not tradable are never ingested.
func (t *Tracker) Ingest(ctx context.Context, l *domain.Ledger, signals []domain.TradeSignal, day time.Time) (ingested, skipped int) {
	for _, s := range signals {
		entryDate := s.Date
		if entryDate.IsZero() {
			entryDate = day
		}

		var reason string
		switch {
		case !s.Tradable():
			reason = "signal is not tradable"
		case s.Quantity <= 0:
			reason = "non-positive quantity"
		case l.FindActive(s.Symbol) != nil:
			reason = "already active"
		case l.HasClosed(s.Symbol, entryDate):
			reason = "already closed for this entry day"
		}
		if reason != "" {
			skipped++
			t.logger.Debug(ctx, "Signal not ingested", map[string]interface{}{"symbol": s.Symbol, "reason": reason, "mode": s.Mode})
			continue
		}

		l.Active = append(l.Active, &domain.Position{
			ID:               t.newID(),
			Symbol:           s.Symbol,
			EntryDate:        entryDate,
			Entry:            s.Entry,
			StopLoss:         s.StopLoss,
			Target1:          s.Target1,
			Target2:          s.Target2,
			Quantity:         s.Quantity,
			Notional:         s.Notional,
			Current:          s.Entry,
			Status:           domain.StatusActive,
			ATR:              s.ATR,
			RR:               s.RR,
			RiskPct:          s.RiskPct,
			Charges:          s.Charges,
			Breakeven:        s.Breakeven,
			NetExpectancyPct: s.NetExpectancyPct,
			Mode:             s.Mode,
		})
		ingested++
	}
	if ingested > 0 || skipped > 0 {
		t.logger.Info(ctx, "New trades ingested", map[string]interface{}{"added": ingested, "skipped": skipped})
	}
	return ingested, skipped
}

// Refresh updates Current for every ACTIVE position. A failed lookup is
// logged and the position keeps its last known price.
func (t *Tracker) Refresh(ctx context.Context, l *domain.Ledger) int {
	if t.prices == nil {
		t.logger.Warn(ctx, "No price source configured, positions keep last known prices")
		return 0
	}

	failures := 0
	for _, p := range l.Active {
		if !p.IsActive() {
			continue
		}
		price, err := t.lookup(ctx, p.Symbol)
		if err != nil {
			failures++
			t.logger.Warn(ctx, "Price fetch failed, keeping last price", map[string]interface{}{
				"symbol": p.Symbol, "source": t.prices.Name(), "last": p.Current, "error": err.Error(),
			})
			continue
		}
		p.Current = money.Round2(price)
	}
	return failures
}

func (t *Tracker) lookup(ctx context.Context, symbol string) (float64, error) {
	if t.cfg.PriceTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.cfg.PriceTimeout)
		defer cancel()
	}
	price, err := t.prices.CurrentPrice(ctx, symbol)
	if err != nil {
		return 0, err
	}
	if !(price > 0) || math.IsInf(price, 0) {
		return 0, fmt.Errorf("%s: unusable price %v: %w", symbol, price, ports.ErrPriceUnavailable)
	}
	return price, nil
}

// Derive recomputes the fields that follow from the current price and date.
func Derive(p *domain.Position, day time.Time) {
	p.PnL = money.Round2((p.Current - p.Entry) * float64(p.Quantity))
	if p.Entry > 0 {
		p.PnLPct = money.Round2((p.Current - p.Entry) / p.Entry * 100)
	}
	p.DaysHeld = daysBetween(p.EntryDate, day)
}

// Evaluate applies the exit rules to one ACTIVE position, in order:
// stop hit, breakeven lock, first target, holding period. A stop hit closes
// the position and ends evaluation. The stop is only ever raised.
func (t *Tracker) Evaluate(p *domain.Position, day time.Time) []domain.TriggerAction {
	var actions []domain.TriggerAction
	emit := func(rule domain.Rule, msg string) {
		actions = append(actions, domain.TriggerAction{Date: day, Symbol: p.Symbol, Rule: rule, Message: msg, Mode: p.Mode})
		p.AddNote(fmt.Sprintf("%s %s", day.Format(domain.DateLayout), rule))
	}

	if p.Current <= p.StopLoss {
		p.Status = domain.StatusClosed
		emit(domain.RuleStopHit, fmt.Sprintf("SL hit @ %.2f. EXIT.", p.Current))
		return actions
	}

	if p.PnLPct >= t.cfg.BreakevenTriggerPct && p.StopLoss < p.Entry {
		p.StopLoss = p.Entry
		emit(domain.RuleBreakeven, fmt.Sprintf("Move SL to entry %.2f", p.Entry))
	}

	if p.Current >= p.Target1 && !p.T1Hit {
		p.T1Hit = true
		atr := p.ATR
		if !(atr > 0) || math.IsInf(atr, 0) {
			atr = t.cfg.DefaultATR
		}
		trail := money.Round2(p.Current - t.cfg.TrailATRMultiple*atr)
		if trail > p.StopLoss {
			p.StopLoss = trail
		}
		emit(domain.RuleTargetHit, fmt.Sprintf("T1 hit. Book 50%%. Trail SL to %.2f", p.StopLoss))
	}

	if p.DaysHeld >= t.cfg.MonthEndDays {
		emit(domain.RuleMonthEnd, fmt.Sprintf("Day %d: prepare exit", p.DaysHeld))
	}
	return actions
}

// migrate moves CLOSED positions out of the active list into the closed ledger.
func (t *Tracker) migrate(l *domain.Ledger, day time.Time) []*domain.ClosedTrade {
	var closed []*domain.ClosedTrade
	active := l.Active[:0]
	for _, p := range l.Active {
		if p.IsActive() {
			active = append(active, p)
			continue
		}
		realized := money.Round2((p.Current - p.Entry) * float64(p.Quantity))
		ct := &domain.ClosedTrade{
			Position:    *p,
			ExitDate:    day,
			ExitPrice:   p.Current,
			ExitReason:  domain.RuleStopHit,
			RealizedPnL: realized,
			NetPnL:      money.Round2(realized - p.Charges),
		}
		if p.Entry > 0 {
			ct.RealizedPnLPct = money.Round2((p.Current - p.Entry) / p.Entry * 100)
		}
		closed = append(closed, ct)
	}
	for i := len(active); i < len(l.Active); i++ {
		l.Active[i] = nil
	}
	l.Active = active
	l.Closed = append(l.Closed, closed...)
	return closed
}

// daysBetween counts whole calendar days from a to b, never negative.
func daysBetween(a, b time.Time) int {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	from := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	to := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	days := int(to.Sub(from).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}
