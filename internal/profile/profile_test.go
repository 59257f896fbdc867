package profile

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swingTrader/internal/domain"
	"swingTrader/internal/ports"
)

type mockLogger struct {
	warnMsgs []string
}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{}) {
	m.warnMsgs = append(m.warnMsgs, msg)
}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

const validYAML = `
layer1:
  min_volume: 500000
  min_price: 100
  max_price: 5000
layer2:
  rsi_min: 50
  rsi_max: 70
  adx_min: 20
  volume_surge: 1.2
layer3:
  max_extension: 10
  min_rr: 2.0
  max_risk_pct: 5
`

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "filters.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadStandard(t *testing.T) {
	p, err := LoadStandard(writeFile(t, validYAML))
	require.NoError(t, err)

	assert.Equal(t, domain.ModeStandard, p.Mode)
	assert.True(t, p.Tradable())
	assert.Equal(t, 500000.0, p.Layer1.MinVolume)
	assert.Equal(t, 70.0, p.Layer2.RSIMax)
	assert.Equal(t, 1.2, p.Layer2.VolumeSurge)
	assert.Equal(t, 2.0, p.Layer3.MinRR)
	assert.Equal(t, 5.0, p.Layer3.MaxRiskPct)
}

func TestLoadStandard_ConfigurationErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "empty file", content: ""},
		{name: "malformed yaml", content: "layer1: [unclosed"},
		{name: "unknown field", content: validYAML + "\nlayer4:\n  foo: 1\n"},
		{name: "missing layer3", content: `
layer1: {min_volume: 1, min_price: 1, max_price: 2}
layer2: {rsi_min: 40, rsi_max: 60, adx_min: 10, volume_surge: 1}
`},
		{name: "inverted price band", content: `
layer1: {min_volume: 1, min_price: 500, max_price: 100}
layer2: {rsi_min: 40, rsi_max: 60, adx_min: 10, volume_surge: 1}
layer3: {max_extension: 10, min_rr: 2, max_risk_pct: 5}
`},
		{name: "inverted rsi band", content: `
layer1: {min_volume: 1, min_price: 1, max_price: 100}
layer2: {rsi_min: 70, rsi_max: 60, adx_min: 10, volume_surge: 1}
layer3: {max_extension: 10, min_rr: 2, max_risk_pct: 5}
`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadStandard(writeFile(t, tt.content))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ports.ErrConfigurationError), "got %v", err)
		})
	}
}

func TestLoadStandard_MissingFile(t *testing.T) {
	_, err := LoadStandard(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ports.ErrConfigurationError)
}

func TestResolve(t *testing.T) {
	ctx := context.Background()
	path := writeFile(t, validYAML)

	t.Run("standard from file", func(t *testing.T) {
		p, err := Resolve(ctx, &mockLogger{}, "standard", path)
		require.NoError(t, err)
		assert.Equal(t, domain.ModeStandard, p.Mode)
	})

	t.Run("relaxed is built in", func(t *testing.T) {
		p, err := Resolve(ctx, &mockLogger{}, "relaxed", "does-not-exist.yaml")
		require.NoError(t, err)
		assert.Equal(t, Relaxed(), p)
		assert.True(t, p.Tradable())
	})

	t.Run("testing is never tradable", func(t *testing.T) {
		log := &mockLogger{}
		p, err := Resolve(ctx, log, "testing", "")
		require.NoError(t, err)
		assert.Equal(t, domain.ModeTesting, p.Mode)
		assert.False(t, p.Tradable())
		assert.Equal(t, 12.0, p.Layer3.MaxRiskPct)
		assert.Len(t, log.warnMsgs, 1)
	})

	t.Run("unknown mode", func(t *testing.T) {
		_, err := Resolve(ctx, &mockLogger{}, "aggressive", path)
		assert.ErrorIs(t, err, ports.ErrConfigurationError)
	})
}

func TestBuiltInProfilesAreValid(t *testing.T) {
	assert.NoError(t, Relaxed().Validate())
	assert.NoError(t, Testing().Validate())
}
