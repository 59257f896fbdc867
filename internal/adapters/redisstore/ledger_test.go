package redisstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swingTrader/internal/domain"
	"swingTrader/internal/ports"
)

type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

var day = time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

func sampleLedger() *domain.Ledger {
	l := domain.NewLedger()
	l.Active = append(l.Active, &domain.Position{
		ID: "p1", Symbol: "ABC", EntryDate: day, Entry: 100, StopLoss: 103, Target1: 106, Target2: 112,
		Quantity: 10, Notional: 1000, Current: 109, Status: domain.StatusActive, ATR: 4, T1Hit: true,
		Mode: domain.ModeStandard,
	})
	l.Closed = append(l.Closed, &domain.ClosedTrade{
		Position: domain.Position{
			ID: "p0", Symbol: "OLD", EntryDate: day.AddDate(0, 0, -5), Entry: 50, StopLoss: 48,
			Quantity: 20, Current: 47.5, Status: domain.StatusClosed, Charges: 21.3, Mode: domain.ModeRelaxed,
		},
		ExitDate: day, ExitPrice: 47.5, ExitReason: domain.RuleStopHit,
		RealizedPnL: -50, RealizedPnLPct: -5, NetPnL: -71.3,
	})
	return l
}

func TestLedger_LoadMissingKey(t *testing.T) {
	db, mock := redismock.NewClientMock()
	l := NewLedger(db, "", &mockLogger{})

	mock.ExpectGet(DefaultKey).RedisNil()

	got, err := l.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got.Active)
	assert.Empty(t, got.Closed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedger_SaveThenLoad(t *testing.T) {
	db, mock := redismock.NewClientMock()
	l := NewLedger(db, "test:ledger", &mockLogger{})
	ctx := context.Background()

	want := sampleLedger()
	raw, err := encode(want)
	require.NoError(t, err)

	mock.ExpectSet("test:ledger", raw, 0).SetVal("OK")
	require.NoError(t, l.Save(ctx, want))

	mock.ExpectGet("test:ledger").SetVal(raw)
	got, err := l.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedger_SaveFailure(t *testing.T) {
	db, mock := redismock.NewClientMock()
	l := NewLedger(db, "k", &mockLogger{})

	raw, err := encode(domain.NewLedger())
	require.NoError(t, err)
	mock.ExpectSet("k", raw, 0).SetErr(errors.New("READONLY"))

	err = l.Save(context.Background(), domain.NewLedger())
	assert.ErrorIs(t, err, ports.ErrUpdateFailed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedger_LoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		expect  func(mock redismock.ClientMock)
		wantErr error
	}{
		{
			name:    "connection failure",
			expect:  func(mock redismock.ClientMock) { mock.ExpectGet("k").SetErr(errors.New("connection refused")) },
			wantErr: ports.ErrQueryFailed,
		},
		{
			name:    "not json",
			expect:  func(mock redismock.ClientMock) { mock.ExpectGet("k").SetVal("not-json") },
			wantErr: ports.ErrLedgerCorrupt,
		},
		{
			name:    "unknown version",
			expect:  func(mock redismock.ClientMock) { mock.ExpectGet("k").SetVal(`{"version":9,"active":[],"closed":[]}`) },
			wantErr: ports.ErrLedgerCorrupt,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := redismock.NewClientMock()
			tt.expect(mock)
			_, err := NewLedger(db, "k", &mockLogger{}).Load(context.Background())
			assert.ErrorIs(t, err, tt.wantErr)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestEncode_EmptyLedgerHasArrays(t *testing.T) {
	raw, err := encode(&domain.Ledger{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"version":1,"active":[],"closed":[]}`, raw)
}
