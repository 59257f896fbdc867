package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"swingTrader/internal/domain"
	"swingTrader/internal/ports"
)

// Ledger backends.
const (
	LedgerCSV    = "csv"
	LedgerSQLite = "sqlite"
	LedgerRedis  = "redis"
)

// Price sources.
const (
	PriceSnapshot = "snapshot"
	PriceYahoo    = "yahoo"
	PriceBinance  = "binance"
)

// Config holds all application configuration.
type Config struct {
	// Capital and risk
	Capital             float64
	RiskPerTrade        float64 // fraction of capital risked per trade (e.g., 0.01 for 1%)
	MaxPositionFraction float64 // fraction of capital per position (e.g., 0.10 for 10%)
	MaxConcurrentTrades int

	// Screening
	FilterMode  domain.Mode
	FiltersPath string

	// Files
	DataDir   string
	OutputDir string
	LogDir    string

	// Ledger
	LedgerBackend string
	LedgerDir     string
	DBPath        string
	RedisAddr     string
	RedisKey      string

	// Prices
	PriceSource            string
	PriceSymbolSuffix      string
	PriceTimeout           time.Duration
	PriceRequestsPerSecond float64
	BinanceTestnet         bool

	// Logging and metrics
	LogLevel    string
	MetricsPath string
}

// LoadConfig loads configuration from environment variables (.env file).
func LoadConfig() (*Config, error) {
	// Load .env file, but don't fail if it doesn't exist (allow pure env vars)
	_ = godotenv.Load()

	cfg := &Config{}
	var err error
	var errs []string // Collect validation errors

	// Capital and risk
	cfg.Capital, err = getEnvAsFloatRequired("CAPITAL", 100000)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid CAPITAL: %v", err))
	} else if cfg.Capital <= 0 {
		errs = append(errs, "CAPITAL must be positive")
	}

	riskPct, err := getEnvAsFloatRequired("RISK_PER_TRADE_PCT", 1)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid RISK_PER_TRADE_PCT: %v", err))
	} else if riskPct <= 0 || riskPct > 100 {
		errs = append(errs, "RISK_PER_TRADE_PCT must be in (0, 100]")
	}
	cfg.RiskPerTrade = riskPct / 100

	posPct, err := getEnvAsFloatRequired("MAX_POSITION_PCT", 10)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid MAX_POSITION_PCT: %v", err))
	} else if posPct <= 0 || posPct > 100 {
		errs = append(errs, "MAX_POSITION_PCT must be in (0, 100]")
	}
	cfg.MaxPositionFraction = posPct / 100

	cfg.MaxConcurrentTrades, err = getEnvAsIntRequired("MAX_CONCURRENT_TRADES", 5)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid MAX_CONCURRENT_TRADES: %v", err))
	} else if cfg.MaxConcurrentTrades < 0 {
		errs = append(errs, "MAX_CONCURRENT_TRADES cannot be negative")
	}

	// Screening
	cfg.FilterMode, err = domain.ParseMode(strings.ToLower(getEnv("FILTER_MODE", "standard")))
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid FILTER_MODE: %v", err))
	}
	cfg.FiltersPath = getEnv("FILTERS_PATH", "config/filters.yaml")

	// Files
	cfg.DataDir = getEnv("DATA_DIR", "data")
	cfg.OutputDir = getEnv("OUTPUT_DIR", "output")
	cfg.LogDir = getEnv("LOG_DIR", "logs")

	// Ledger
	cfg.LedgerBackend = strings.ToLower(getEnv("LEDGER_BACKEND", LedgerCSV))
	cfg.LedgerDir = getEnv("LEDGER_DIR", cfg.DataDir)
	cfg.DBPath = getEnv("DB_PATH", "./data/ledger.db")
	cfg.RedisAddr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.RedisKey = getEnv("REDIS_KEY", "swingtrader:ledger")
	switch cfg.LedgerBackend {
	case LedgerCSV, LedgerSQLite, LedgerRedis:
	default:
		errs = append(errs, fmt.Sprintf("LEDGER_BACKEND must be one of csv, sqlite, redis (got %q)", cfg.LedgerBackend))
	}

	// Prices
	cfg.PriceSource = strings.ToLower(getEnv("PRICE_SOURCE", PriceSnapshot))
	switch cfg.PriceSource {
	case PriceSnapshot, PriceYahoo, PriceBinance:
	default:
		errs = append(errs, fmt.Sprintf("PRICE_SOURCE must be one of snapshot, yahoo, binance (got %q)", cfg.PriceSource))
	}
	cfg.PriceSymbolSuffix = getEnv("PRICE_SYMBOL_SUFFIX", ".NS")

	timeoutSeconds, err := getEnvAsIntRequired("PRICE_TIMEOUT_SECONDS", 10)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid PRICE_TIMEOUT_SECONDS: %v", err))
	} else if timeoutSeconds <= 0 {
		errs = append(errs, "PRICE_TIMEOUT_SECONDS must be positive")
	}
	cfg.PriceTimeout = time.Duration(timeoutSeconds) * time.Second

	cfg.PriceRequestsPerSecond, err = getEnvAsFloatRequired("PRICE_REQUESTS_PER_SECOND", 2)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid PRICE_REQUESTS_PER_SECOND: %v", err))
	} else if cfg.PriceRequestsPerSecond < 0 {
		errs = append(errs, "PRICE_REQUESTS_PER_SECOND cannot be negative")
	}
	cfg.BinanceTestnet = getEnvAsBool("BINANCE_TESTNET", false)

	// Logging and metrics
	cfg.LogLevel = strings.ToLower(getEnv("LOG_LEVEL", "info"))
	cfg.MetricsPath = getEnv("METRICS_PATH", "")

	// Combine validation errors
	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %s: %w", strings.Join(errs, "; "), ports.ErrConfigurationError)
	}

	return cfg, nil
}

// --- Env Var Helpers ---

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsIntRequired(key string, defaultValue int) (int, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		// Use default if env var is not set at all
		return defaultValue, nil
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		// Return error if env var is set but invalid
		return 0, fmt.Errorf("invalid integer value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

func getEnvAsFloatRequired(key string, defaultValue float64) (float64, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid float value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
