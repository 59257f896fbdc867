package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swingTrader/internal/adapters/prices"
	"swingTrader/internal/domain"
	"swingTrader/internal/metrics"
	"swingTrader/internal/ports"
	"swingTrader/internal/profile"
	"swingTrader/internal/risk"
	"swingTrader/internal/tracker"
)

// Mock implementations
type mockLogger struct {
	infoMsgs  []string
	warnMsgs  []string
	errorMsgs []string
}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}

func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{}) {
	m.infoMsgs = append(m.infoMsgs, msg)
}

func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{}) {
	m.warnMsgs = append(m.warnMsgs, msg)
}

func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
	m.errorMsgs = append(m.errorMsgs, msg)
}

type mockSnapshots struct {
	snapshots []domain.MarketSnapshot
	err       error
}

func (m *mockSnapshots) LoadSnapshots(ctx context.Context, day time.Time) ([]domain.MarketSnapshot, error) {
	if m.err != nil {
		return nil, m.err
	}
	if len(m.snapshots) == 0 {
		return nil, ports.ErrMissingInput
	}
	return m.snapshots, nil
}

type memBatches struct {
	shortlists map[string][]domain.ShortlistRow
	signals    map[string][]domain.TradeSignal
	actions    map[string][]domain.TriggerAction
}

func newMemBatches() *memBatches {
	return &memBatches{
		shortlists: map[string][]domain.ShortlistRow{},
		signals:    map[string][]domain.TradeSignal{},
		actions:    map[string][]domain.TriggerAction{},
	}
}

func key(day time.Time) string { return day.Format(domain.DateLayout) }

func (m *memBatches) SaveShortlist(ctx context.Context, day time.Time, rows []domain.ShortlistRow) error {
	m.shortlists[key(day)] = rows
	return nil
}

func (m *memBatches) LoadShortlist(ctx context.Context, day time.Time) ([]domain.ShortlistRow, error) {
	rows, ok := m.shortlists[key(day)]
	if !ok {
		return nil, fmt.Errorf("no shortlist: %w", ports.ErrMissingInput)
	}
	return rows, nil
}

func (m *memBatches) SaveSignals(ctx context.Context, day time.Time, signals []domain.TradeSignal) error {
	m.signals[key(day)] = signals
	return nil
}

func (m *memBatches) LoadSignals(ctx context.Context, day time.Time) ([]domain.TradeSignal, error) {
	s, ok := m.signals[key(day)]
	if !ok {
		return nil, fmt.Errorf("no signals: %w", ports.ErrMissingInput)
	}
	return s, nil
}

func (m *memBatches) SaveActions(ctx context.Context, day time.Time, actions []domain.TriggerAction) error {
	m.actions[key(day)] = actions
	return nil
}

type memLedger struct {
	ledger  *domain.Ledger
	loadErr error
	saveErr error
	saves   int
}

func (m *memLedger) Load(ctx context.Context) (*domain.Ledger, error) {
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	if m.ledger == nil {
		m.ledger = domain.NewLedger()
	}
	return m.ledger, nil
}

func (m *memLedger) Save(ctx context.Context, l *domain.Ledger) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saves++
	m.ledger = l
	return nil
}

var day = time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

func passing(symbol string) domain.MarketSnapshot {
	return domain.MarketSnapshot{
		Symbol: symbol, Date: day, Close: 110, MA20: 105, MA50: 100, MA200: 90, RSI: 60, ADX: 25, ATR: 3,
		Vol5DAvg: 800000, Vol20DAvg: 600000, High20D: 108, Support: 106,
	}
}

func openPosition(symbol string) *domain.Position {
	return &domain.Position{
		ID: "id-" + symbol, Symbol: symbol, EntryDate: day.AddDate(0, 0, -3), Entry: 100, StopLoss: 95,
		Target1: 110, Target2: 116, Quantity: 10, Notional: 1000, Current: 100, Status: domain.StatusActive,
		ATR: 4, Mode: domain.ModeStandard,
	}
}

type fixture struct {
	svc       *Service
	logger    *mockLogger
	snapshots *mockSnapshots
	batches   *memBatches
	ledger    *memLedger
	out       *bytes.Buffer
}

func newFixture(t *testing.T, prof profile.FilterProfile, maxConcurrent int, snaps []domain.MarketSnapshot) *fixture {
	t.Helper()
	f := &fixture{
		logger:    &mockLogger{},
		snapshots: &mockSnapshots{snapshots: snaps},
		batches:   newMemBatches(),
		ledger:    &memLedger{},
		out:       &bytes.Buffer{},
	}
	mgr, err := risk.NewManager(risk.DefaultConfig(100000, 0.01, 0.10), f.logger)
	require.NoError(t, err)

	f.svc, err = NewService(Config{
		Profile:             prof,
		MaxConcurrentTrades: maxConcurrent,
		Tracker:             tracker.DefaultConfig(),
	}, Deps{
		Logger:    f.logger,
		Snapshots: f.snapshots,
		Batches:   f.batches,
		Ledger:    f.ledger,
		Prices: func(ctx context.Context, d time.Time) (ports.PriceSource, error) {
			snaps, err := f.snapshots.LoadSnapshots(ctx, d)
			if err != nil {
				return nil, err
			}
			return prices.NewSnapshot(snaps), nil
		},
		Risk: mgr,
		Out:  f.out,
		Now:  func() time.Time { return day.Add(16 * time.Hour) },
	})
	require.NoError(t, err)
	return f
}

func standard() profile.FilterProfile {
	return profile.FilterProfile{
		Mode:   domain.ModeStandard,
		Layer1: profile.Layer1{MinVolume: 500000, MinPrice: 100, MaxPrice: 5000},
		Layer2: profile.Layer2{RSIMin: 50, RSIMax: 70, ADXMin: 20, VolumeSurge: 1.2},
		Layer3: profile.Layer3{MaxExtension: 10, MinRR: 2.0, MaxRiskPct: 5},
	}
}

func TestNewService_RequiresDependencies(t *testing.T) {
	_, err := NewService(Config{Profile: standard()}, Deps{})
	assert.ErrorIs(t, err, ports.ErrConfigurationError)
}

func TestRunDaily_EndToEnd(t *testing.T) {
	failing := passing("LOW")
	failing.RSI = 30
	f := newFixture(t, standard(), 5, []domain.MarketSnapshot{passing("AAA"), passing("BBB"), failing})
	ctx := context.Background()

	require.NoError(t, f.svc.RunDaily(ctx, day))

	require.Len(t, f.batches.shortlists[key(day)], 2)
	signals := f.batches.signals[key(day)]
	require.Len(t, signals, 2)
	for _, s := range signals {
		assert.Equal(t, 90, s.Quantity, "position value cap binds")
		assert.GreaterOrEqual(t, s.Target1, s.Breakeven)
		assert.True(t, s.Tradable())
	}

	require.Equal(t, 1, f.ledger.saves)
	require.Len(t, f.ledger.ledger.Active, 2)
	p := f.ledger.ledger.Active[0]
	assert.Equal(t, "AAA", p.Symbol)
	assert.Equal(t, 110.0, p.Current)
	assert.Equal(t, domain.StatusActive, p.Status)
	assert.Empty(t, f.batches.actions[key(day)])

	out := f.out.String()
	assert.Contains(t, out, "Screened 3 symbols (standard mode): 2 shortlisted")
	assert.Contains(t, out, "2 trade signal(s)")
	assert.Contains(t, out, "Tracking: 2 active, 2 new, 0 closed, 0 action(s)")
	assert.NotContains(t, out, "DO NOT TRADE")
}

func TestRunDaily_IsIdempotent(t *testing.T) {
	f := newFixture(t, standard(), 5, []domain.MarketSnapshot{passing("AAA")})
	ctx := context.Background()

	require.NoError(t, f.svc.RunDaily(ctx, day))
	require.NoError(t, f.svc.RunDaily(ctx, day))

	assert.Len(t, f.ledger.ledger.Active, 1, "re-running the same day opens nothing new")
}

func TestRunDaily_RerunKeepsTheDaysSignals(t *testing.T) {
	f := newFixture(t, standard(), 1, []domain.MarketSnapshot{passing("AAA")})
	ctx := context.Background()

	require.NoError(t, f.svc.RunDaily(ctx, day))
	first := f.batches.signals[key(day)]
	require.Len(t, first, 1)
	require.Len(t, f.ledger.ledger.Active, 1)

	require.NoError(t, f.svc.RunDaily(ctx, day))
	second := f.batches.signals[key(day)]
	assert.Equal(t, first, second, "today's own entries do not use up today's capacity")
	assert.Len(t, f.ledger.ledger.Active, 1)
	assert.Equal(t, "AAA", f.ledger.ledger.Active[0].Symbol)
}

func TestRunDaily_HeldSymbolDoesNotTakeASlot(t *testing.T) {
	f := newFixture(t, standard(), 2, []domain.MarketSnapshot{passing("AAA"), passing("BBB")})
	f.ledger.ledger = domain.NewLedger()
	f.ledger.ledger.Active = append(f.ledger.ledger.Active, openPosition("AAA"))
	ctx := context.Background()

	_, err := f.svc.Screen(ctx, day)
	require.NoError(t, err)
	res, err := f.svc.Analyze(ctx, day)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Active)
	assert.Len(t, res.Built.Signals, 2)
	require.Len(t, res.Allocated, 1)
	assert.Equal(t, "BBB", res.Allocated[0].Symbol)

	_, err = f.svc.Track(ctx, day)
	require.NoError(t, err)
	var active []string
	for _, p := range f.ledger.ledger.Active {
		active = append(active, p.Symbol)
	}
	assert.ElementsMatch(t, []string{"AAA", "BBB"}, active)
}

func TestAnalyze_RespectsCapacity(t *testing.T) {
	f := newFixture(t, standard(), 5, []domain.MarketSnapshot{passing("AAA"), passing("BBB"), passing("CCC")})
	f.ledger.ledger = domain.NewLedger()
	for _, s := range []string{"P1", "P2", "P3", "P4"} {
		f.ledger.ledger.Active = append(f.ledger.ledger.Active, openPosition(s))
	}
	ctx := context.Background()

	_, err := f.svc.Screen(ctx, day)
	require.NoError(t, err)
	res, err := f.svc.Analyze(ctx, day)
	require.NoError(t, err)

	assert.Equal(t, 4, res.Active)
	assert.Len(t, res.Built.Signals, 3)
	assert.Len(t, res.Allocated, 1)
	assert.Len(t, f.batches.signals[key(day)], 1)
}

func TestAnalyze_PortfolioFull(t *testing.T) {
	f := newFixture(t, standard(), 1, []domain.MarketSnapshot{passing("AAA")})
	f.ledger.ledger = domain.NewLedger()
	f.ledger.ledger.Active = append(f.ledger.ledger.Active, openPosition("P1"))
	ctx := context.Background()

	_, err := f.svc.Screen(ctx, day)
	require.NoError(t, err)
	res, err := f.svc.Analyze(ctx, day)
	require.NoError(t, err)
	assert.Empty(t, res.Allocated)
	assert.Contains(t, f.out.String(), "0 trade signal(s)")
}

func TestAnalyze_MissingShortlist(t *testing.T) {
	f := newFixture(t, standard(), 5, nil)
	_, err := f.svc.Analyze(context.Background(), day)
	assert.ErrorIs(t, err, ports.ErrMissingInput)
}

func TestRunDaily_MissingSnapshotsStillTracks(t *testing.T) {
	f := newFixture(t, standard(), 5, nil)
	f.ledger.ledger = domain.NewLedger()
	f.ledger.ledger.Active = append(f.ledger.ledger.Active, openPosition("HELD"))

	require.NoError(t, f.svc.RunDaily(context.Background(), day))

	assert.Equal(t, 1, f.ledger.saves)
	require.Len(t, f.ledger.ledger.Active, 1)
	held := f.ledger.ledger.Active[0]
	assert.Equal(t, 100.0, held.Current, "no price source keeps the last price")
	assert.Equal(t, 3, held.DaysHeld)
	assert.Contains(t, f.logger.warnMsgs, "Screen stage skipped")
	assert.Contains(t, f.logger.warnMsgs, "Analyze stage skipped")
	assert.Contains(t, f.logger.warnMsgs, "Price source unavailable, positions keep last prices")
}

func TestRunDaily_LedgerErrorsAbort(t *testing.T) {
	t.Run("load", func(t *testing.T) {
		f := newFixture(t, standard(), 5, []domain.MarketSnapshot{passing("AAA")})
		f.ledger.loadErr = fmt.Errorf("bad row: %w", ports.ErrLedgerCorrupt)
		err := f.svc.RunDaily(context.Background(), day)
		assert.ErrorIs(t, err, ports.ErrLedgerCorrupt)
	})

	t.Run("save", func(t *testing.T) {
		f := newFixture(t, standard(), 5, []domain.MarketSnapshot{passing("AAA")})
		f.ledger.saveErr = errors.New("disk full")
		err := f.svc.RunDaily(context.Background(), day)
		assert.Error(t, err)
		assert.Contains(t, f.logger.errorMsgs, "Failed to save ledger")
	})
}

func TestTrack_ClosesStoppedPositions(t *testing.T) {
	crash := passing("HELD")
	crash.Close = 90
	f := newFixture(t, standard(), 5, []domain.MarketSnapshot{crash})
	f.ledger.ledger = domain.NewLedger()
	f.ledger.ledger.Active = append(f.ledger.ledger.Active, openPosition("HELD"))

	res, err := f.svc.Track(context.Background(), day)
	require.NoError(t, err)

	require.Len(t, res.Actions, 1)
	assert.Equal(t, domain.RuleStopHit, res.Actions[0].Rule)
	assert.Empty(t, f.ledger.ledger.Active)
	require.Len(t, f.ledger.ledger.Closed, 1)
	assert.Equal(t, 90.0, f.ledger.ledger.Closed[0].ExitPrice)
	assert.Equal(t, res.Actions, f.batches.actions[key(day)])
	assert.Contains(t, f.out.String(), "SL hit @ 90.00. EXIT.")
}

func TestRunDaily_TestingModeNeverOpensPositions(t *testing.T) {
	f := newFixture(t, profile.Testing(), 5, []domain.MarketSnapshot{passing("AAA")})

	require.NoError(t, f.svc.RunDaily(context.Background(), day))

	signals := f.batches.signals[key(day)]
	require.NotEmpty(t, signals)
	assert.False(t, signals[0].Tradable())
	assert.Empty(t, f.ledger.ledger.Active)
	assert.Contains(t, f.out.String(), "TESTING MODE - DO NOT TRADE")
}

func TestRunDaily_WritesMetrics(t *testing.T) {
	f := newFixture(t, standard(), 5, []domain.MarketSnapshot{passing("AAA")})
	path := filepath.Join(t.TempDir(), "swingtrader.prom")
	f.svc.metrics = metrics.New()
	f.svc.cfg.MetricsPath = path

	require.NoError(t, f.svc.RunDaily(context.Background(), day))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "swingtrader_positions_active 1")
	assert.Contains(t, string(raw), `swingtrader_screen_survivors{filter="rr",layer="3"} 1`)
}
