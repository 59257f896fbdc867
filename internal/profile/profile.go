package profile

import (
	"context"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"swingTrader/internal/domain"
	"swingTrader/internal/ports"
)

// DefaultStandardPath is where the standard profile thresholds live.
const DefaultStandardPath = "config/filters.yaml"

// Layer1 holds liquidity and price-band thresholds.
type Layer1 struct {
	MinVolume float64 `yaml:"min_volume"`
	MinPrice  float64 `yaml:"min_price"`
	MaxPrice  float64 `yaml:"max_price"`
}

// Layer2 holds momentum and trend thresholds.
type Layer2 struct {
	RSIMin      float64 `yaml:"rsi_min"`
	RSIMax      float64 `yaml:"rsi_max"`
	ADXMin      float64 `yaml:"adx_min"`
	VolumeSurge float64 `yaml:"volume_surge"` // 5-day / 20-day average volume
}

// Layer3 holds breakout and risk-structure thresholds.
type Layer3 struct {
	MaxExtension float64 `yaml:"max_extension"` // percent above MA20
	MinRR        float64 `yaml:"min_rr"`
	MaxRiskPct   float64 `yaml:"max_risk_pct"`
}

// FilterProfile is the full set of screening thresholds for one mode.
type FilterProfile struct {
	Mode   domain.Mode `yaml:"-"`
	Layer1 Layer1      `yaml:"layer1"`
	Layer2 Layer2      `yaml:"layer2"`
	Layer3 Layer3      `yaml:"layer3"`
}

// Tradable reports whether output screened with this profile may be traded.
func (p FilterProfile) Tradable() bool {
	return p.Mode.Tradable()
}

// Relaxed returns the built-in relaxed profile.
func Relaxed() FilterProfile {
	return FilterProfile{
		Mode:   domain.ModeRelaxed,
		Layer1: Layer1{MinVolume: 200000, MinPrice: 100, MaxPrice: 5000},
		Layer2: Layer2{RSIMin: 45, RSIMax: 75, ADXMin: 15, VolumeSurge: 1.1},
		Layer3: Layer3{MaxExtension: 15, MinRR: 1.8, MaxRiskPct: 5},
	}
}

// Testing returns the built-in smoke-test profile. Its output is never tradable.
func Testing() FilterProfile {
	return FilterProfile{
		Mode:   domain.ModeTesting,
		Layer1: Layer1{MinVolume: 100000, MinPrice: 50, MaxPrice: 10000},
		Layer2: Layer2{RSIMin: 40, RSIMax: 80, ADXMin: 10, VolumeSurge: 0.8},
		Layer3: Layer3{MaxExtension: 25, MinRR: 1.2, MaxRiskPct: 12},
	}
}

// LoadStandard reads the standard profile from a YAML file.
func LoadStandard(path string) (FilterProfile, error) {
	if path == "" {
		path = DefaultStandardPath
	}
	f, err := os.Open(path)
	if err != nil {
		return FilterProfile{}, fmt.Errorf("%w: read filter profile %s: %v", ports.ErrConfigurationError, path, err)
	}
	defer f.Close()

	var p FilterProfile
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil {
		return FilterProfile{}, fmt.Errorf("%w: parse filter profile %s: %v", ports.ErrConfigurationError, path, err)
	}
	p.Mode = domain.ModeStandard

	if err := p.Validate(); err != nil {
		return FilterProfile{}, fmt.Errorf("filter profile %s: %w", path, err)
	}
	return p, nil
}

// Resolve returns the profile for mode. The standard profile is read from
// standardPath; the others are built in.
func Resolve(ctx context.Context, logger ports.Logger, mode string, standardPath string) (FilterProfile, error) {
	m, err := domain.ParseMode(mode)
	if err != nil {
		return FilterProfile{}, fmt.Errorf("%w: %v", ports.ErrConfigurationError, err)
	}

	var p FilterProfile
	switch m {
	case domain.ModeTesting:
		logger.Warn(ctx, "Running in TESTING mode: output is not for trading")
		p = Testing()
	case domain.ModeRelaxed:
		logger.Info(ctx, "Running in RELAXED mode")
		p = Relaxed()
	default:
		logger.Info(ctx, "Running in STANDARD mode", map[string]interface{}{"path": standardPath})
		p, err = LoadStandard(standardPath)
		if err != nil {
			return FilterProfile{}, err
		}
	}
	return p, nil
}

// Validate checks that every threshold is present and consistent.
// No threshold is defaulted: a missing value is a configuration error.
func (p FilterProfile) Validate() error {
	var errs []string

	if p.Layer1.MinVolume <= 0 {
		errs = append(errs, "layer1.min_volume must be positive")
	}
	if p.Layer1.MinPrice <= 0 || p.Layer1.MaxPrice <= 0 {
		errs = append(errs, "layer1 price band must be positive")
	} else if p.Layer1.MinPrice > p.Layer1.MaxPrice {
		errs = append(errs, "layer1.min_price must not exceed layer1.max_price")
	}

	if p.Layer2.RSIMax <= 0 || p.Layer2.RSIMin < 0 || p.Layer2.RSIMin > p.Layer2.RSIMax || p.Layer2.RSIMax > 100 {
		errs = append(errs, "layer2 RSI band must satisfy 0 <= rsi_min <= rsi_max <= 100")
	}
	if p.Layer2.ADXMin < 0 {
		errs = append(errs, "layer2.adx_min cannot be negative")
	}
	if p.Layer2.VolumeSurge <= 0 {
		errs = append(errs, "layer2.volume_surge must be positive")
	}

	if p.Layer3.MaxExtension <= 0 {
		errs = append(errs, "layer3.max_extension must be positive")
	}
	if p.Layer3.MinRR <= 0 {
		errs = append(errs, "layer3.min_rr must be positive")
	}
	if p.Layer3.MaxRiskPct <= 0 || p.Layer3.MaxRiskPct >= 100 {
		errs = append(errs, "layer3.max_risk_pct must be between 0 and 100 (exclusive)")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", ports.ErrConfigurationError, strings.Join(errs, "; "))
	}
	return nil
}
