package screening

import (
	"context"

	"swingTrader/internal/domain"
	"swingTrader/internal/money"
	"swingTrader/internal/ports"
	"swingTrader/internal/profile"
)

const (
	// StopBuffer places the stop just under the 10-day support.
	StopBuffer = 0.995
	// TargetMultiple sets the first target at this many risk units above entry.
	TargetMultiple = 2.0
)

// StageCount records how many rows survived one sub-filter.
type StageCount struct {
	Layer     int
	Filter    string
	Remaining int
}

// Result is the outcome of one screening run.
type Result struct {
	Universe int
	Rows     []domain.ShortlistRow
	Stages   []StageCount
	// EmptyAfter names the sub-filter that emptied the set, if any.
	EmptyAfter string
}

// Pipeline narrows a snapshot universe to a shortlist in three layers.
// It holds no per-run state, so one Pipeline may serve concurrent runs.
type Pipeline struct {
	logger ports.Logger
}

// NewPipeline creates a screening pipeline.
func NewPipeline(logger ports.Logger) *Pipeline {
	return &Pipeline{logger: logger}
}

// Run applies all three layers. An empty result is a normal outcome: the
// pipeline stops at the first sub-filter that leaves nothing.
func (p *Pipeline) Run(ctx context.Context, snapshots []domain.MarketSnapshot, prof profile.FilterProfile) Result {
	res := Result{Universe: len(snapshots)}

	rows := make([]domain.ShortlistRow, 0, len(snapshots))
	for _, s := range snapshots {
		rows = append(rows, domain.ShortlistRow{MarketSnapshot: s, Mode: prof.Mode})
	}
	p.logger.Info(ctx, "Starting screening", map[string]interface{}{"universe": len(rows), "mode": prof.Mode})
	if len(rows) == 0 {
		res.EmptyAfter = "universe"
		return res
	}

	layers := []func(context.Context, *[]StageCount, []domain.ShortlistRow, profile.FilterProfile) []domain.ShortlistRow{
		p.layer1, p.layer2, p.layer3,
	}
	var stages []StageCount
	for i, layer := range layers {
		start := len(rows)
		rows = layer(ctx, &stages, rows, prof)
		p.logger.Info(ctx, "Layer complete", map[string]interface{}{
			"layer": i + 1, "removed": start - len(rows), "remaining": len(rows),
		})
		if len(rows) == 0 {
			res.EmptyAfter = stages[len(stages)-1].Filter
			p.logger.Info(ctx, "No candidates today", map[string]interface{}{"layer": i + 1, "filter": res.EmptyAfter})
			break
		}
	}

	res.Rows = rows
	res.Stages = stages
	return res
}

// Layer1 keeps liquid names priced inside the configured band.
func (p *Pipeline) Layer1(ctx context.Context, rows []domain.ShortlistRow, prof profile.FilterProfile) []domain.ShortlistRow {
	return p.layer1(ctx, nil, rows, prof)
}

func (p *Pipeline) layer1(ctx context.Context, stages *[]StageCount, rows []domain.ShortlistRow, prof profile.FilterProfile) []domain.ShortlistRow {
	l1 := prof.Layer1
	rows = p.apply(ctx, stages, 1, "volume", rows, func(r *domain.ShortlistRow) bool {
		return r.Vol20DAvg >= l1.MinVolume
	})
	return p.apply(ctx, stages, 1, "price", rows, func(r *domain.ShortlistRow) bool {
		return r.Close >= l1.MinPrice && r.Close <= l1.MaxPrice
	})
}

// Layer2 keeps names in an aligned trend with healthy momentum and rising volume.
func (p *Pipeline) Layer2(ctx context.Context, rows []domain.ShortlistRow, prof profile.FilterProfile) []domain.ShortlistRow {
	return p.layer2(ctx, nil, rows, prof)
}

func (p *Pipeline) layer2(ctx context.Context, stages *[]StageCount, rows []domain.ShortlistRow, prof profile.FilterProfile) []domain.ShortlistRow {
	l2 := prof.Layer2
	rows = p.apply(ctx, stages, 2, "trend:"+string(prof.Mode), rows, trendRule(prof.Mode))
	rows = p.apply(ctx, stages, 2, "rsi", rows, func(r *domain.ShortlistRow) bool {
		return r.RSI >= l2.RSIMin && r.RSI <= l2.RSIMax
	})
	rows = p.apply(ctx, stages, 2, "adx", rows, func(r *domain.ShortlistRow) bool {
		return r.ADX >= l2.ADXMin
	})
	return p.apply(ctx, stages, 2, "volume_surge", rows, func(r *domain.ShortlistRow) bool {
		if !(r.Vol20DAvg > 0) {
			p.reject(ctx, r, "zero 20-day average volume")
			return false
		}
		r.VolRatio = r.Vol5DAvg / r.Vol20DAvg
		return r.VolRatio >= l2.VolumeSurge
	})
}

// Layer3 keeps genuine breakouts whose risk structure fits the profile, and
// derives entry, stop, target, reward:risk and risk percent for each survivor.
func (p *Pipeline) Layer3(ctx context.Context, rows []domain.ShortlistRow, prof profile.FilterProfile) []domain.ShortlistRow {
	return p.layer3(ctx, nil, rows, prof)
}

func (p *Pipeline) layer3(ctx context.Context, stages *[]StageCount, rows []domain.ShortlistRow, prof profile.FilterProfile) []domain.ShortlistRow {
	l3 := prof.Layer3
	rows = p.apply(ctx, stages, 3, "breakout", rows, func(r *domain.ShortlistRow) bool {
		return r.Close > r.High20D
	})
	rows = p.apply(ctx, stages, 3, "extension", rows, func(r *domain.ShortlistRow) bool {
		if !(r.MA20 > 0) {
			p.reject(ctx, r, "non-positive MA20")
			return false
		}
		r.PctAboveMA20 = (r.Close - r.MA20) / r.MA20 * 100
		return r.PctAboveMA20 <= l3.MaxExtension
	})
	rows = p.apply(ctx, stages, 3, "risk_structure", rows, func(r *domain.ShortlistRow) bool {
		r.Entry = r.Close
		r.StopLoss = r.Support * StopBuffer
		r.RiskPerShare = r.Entry - r.StopLoss
		// Written as !(x > 0) so a NaN support is rejected too.
		if !(r.RiskPerShare > 0) {
			p.reject(ctx, r, "stop at or above entry")
			return false
		}
		r.Target = r.Entry + TargetMultiple*r.RiskPerShare
		return true
	})
	rows = p.apply(ctx, stages, 3, "rr", rows, func(r *domain.ShortlistRow) bool {
		r.RR = money.Round2((r.Target - r.Entry) / r.RiskPerShare)
		return r.RR >= l3.MinRR
	})
	return p.apply(ctx, stages, 3, "risk_pct", rows, func(r *domain.ShortlistRow) bool {
		r.RiskPct = r.RiskPerShare / r.Entry * 100
		return r.RiskPct <= l3.MaxRiskPct
	})
}

// trendRule returns the moving-average alignment required by mode.
func trendRule(mode domain.Mode) func(*domain.ShortlistRow) bool {
	switch mode {
	case domain.ModeTesting:
		return func(r *domain.ShortlistRow) bool {
			return r.Close > r.MA20
		}
	case domain.ModeRelaxed:
		return func(r *domain.ShortlistRow) bool {
			return r.Close > r.MA50 && r.MA50 > r.MA200
		}
	default:
		return func(r *domain.ShortlistRow) bool {
			return r.Close > r.MA50 && r.Close > r.MA200 &&
				r.MA20 > r.MA50 && r.MA50 > r.MA200
		}
	}
}

// apply filters rows in place order, appends the survivor count to stages
// (when non-nil) and logs it. An empty input is returned untouched so later
// filters do no work.
func (p *Pipeline) apply(ctx context.Context, stages *[]StageCount, layer int, name string, rows []domain.ShortlistRow, keep func(*domain.ShortlistRow) bool) []domain.ShortlistRow {
	if len(rows) == 0 {
		return rows
	}
	out := make([]domain.ShortlistRow, 0, len(rows))
	for i := range rows {
		r := rows[i]
		if keep(&r) {
			out = append(out, r)
		}
	}
	if stages != nil {
		*stages = append(*stages, StageCount{Layer: layer, Filter: name, Remaining: len(out)})
	}
	p.logger.Info(ctx, "Filter applied", map[string]interface{}{"layer": layer, "filter": name, "remaining": len(out)})
	return out
}

func (p *Pipeline) reject(ctx context.Context, r *domain.ShortlistRow, reason string) {
	p.logger.Warn(ctx, "Row rejected", map[string]interface{}{"symbol": r.Symbol, "reason": reason, "error": ports.ErrDegenerateRow.Error()})
}
