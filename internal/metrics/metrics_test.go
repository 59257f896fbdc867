package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swingTrader/internal/domain"
	"swingTrader/internal/risk"
	"swingTrader/internal/screening"
	"swingTrader/internal/tracker"
)

var at = time.Date(2024, 3, 15, 16, 0, 0, 0, time.UTC)

func TestObserveScreen(t *testing.T) {
	b := New()
	b.ObserveScreen(screening.Result{
		Universe: 50,
		Stages: []screening.StageCount{
			{Layer: 1, Filter: "volume", Remaining: 30},
			{Layer: 3, Filter: "rr", Remaining: 2},
		},
	}, at)

	assert.Equal(t, 50.0, testutil.ToFloat64(b.universe))
	assert.Equal(t, 30.0, testutil.ToFloat64(b.stageSurvivors.WithLabelValues("1", "volume")))
	assert.Equal(t, 2.0, testutil.ToFloat64(b.stageSurvivors.WithLabelValues("3", "rr")))
	assert.Equal(t, float64(at.Unix()), testutil.ToFloat64(b.lastRun.WithLabelValues("screen")))
}

func TestObserveSignals(t *testing.T) {
	b := New()
	b.ObserveSignals(risk.BuildResult{
		Signals:  make([]domain.TradeSignal, 3),
		Rejected: map[string]int{"zero_quantity": 1, "below_breakeven": 2},
	}, 2, at)

	assert.Equal(t, 3.0, testutil.ToFloat64(b.signalsAccepted))
	assert.Equal(t, 2.0, testutil.ToFloat64(b.signalsTaken))
	assert.Equal(t, 2.0, testutil.ToFloat64(b.signalsRejected.WithLabelValues("below_breakeven")))
	assert.Equal(t, 2, testutil.CollectAndCount(b.signalsRejected))
}

func TestObserveTick(t *testing.T) {
	b := New()
	b.ObserveTick(tracker.TickResult{
		Ingested:      1,
		PriceFailures: 2,
		Actions: []domain.TriggerAction{
			{Rule: domain.RuleBreakeven}, {Rule: domain.RuleTargetHit}, {Rule: domain.RuleBreakeven},
		},
		Closed: make([]*domain.ClosedTrade, 1),
	}, 4, at)

	assert.Equal(t, 1.0, testutil.ToFloat64(b.ingested))
	assert.Equal(t, 2.0, testutil.ToFloat64(b.actions.WithLabelValues("BREAKEVEN")))
	assert.Equal(t, 1.0, testutil.ToFloat64(b.actions.WithLabelValues("T1_HIT")))
	assert.Equal(t, 2.0, testutil.ToFloat64(b.priceFailures))
	assert.Equal(t, 4.0, testutil.ToFloat64(b.activePositions))
	assert.Equal(t, 1.0, testutil.ToFloat64(b.closedToday))
}

func TestWrite(t *testing.T) {
	b := New()
	b.ObserveTick(tracker.TickResult{}, 3, at)

	require.NoError(t, b.Write(""), "empty path is a no-op")

	path := filepath.Join(t.TempDir(), "textfile", "swingtrader.prom")
	require.NoError(t, b.Write(path))
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "swingtrader_positions_active 3")
	assert.Contains(t, string(raw), "# HELP swingtrader_price_failures")
}
