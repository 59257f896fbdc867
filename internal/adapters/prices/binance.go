package prices

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/adshao/go-binance/v2/common"
	"github.com/adshao/go-binance/v2/futures"

	"swingTrader/internal/ports"
)

const (
	// Base URLs
	baseURLProduction = "https://fapi.binance.com"
	baseURLTestnet    = "https://testnet.binancefuture.com"
)

// BinanceConfig holds configuration for the Binance futures quote source.
type BinanceConfig struct {
	UseTestnet bool
	BaseURL    string // overrides the production/testnet URL when set
	Logger     ports.Logger
}

// Binance looks up last prices from the public futures 24h ticker, for
// ledgers that track crypto pairs such as BTCUSDT.
type Binance struct {
	futuresClient *futures.Client
	logger        ports.Logger
}

// NewBinance creates a Binance quote source. Only public endpoints are used,
// so no API keys are needed.
func NewBinance(cfg BinanceConfig) (*Binance, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for Binance price source")
	}

	client := futures.NewClient("", "")
	switch {
	case cfg.BaseURL != "":
		client.BaseURL = cfg.BaseURL
	case cfg.UseTestnet:
		client.BaseURL = baseURLTestnet
	default:
		client.BaseURL = baseURLProduction
	}
	cfg.Logger.Info(context.Background(), "Binance price source configured", map[string]interface{}{"baseURL": client.BaseURL})

	return &Binance{futuresClient: client, logger: cfg.Logger}, nil
}

// Name identifies the source in logs.
func (b *Binance) Name() string { return "binance" }

// CurrentPrice retrieves the last ticker price for a given symbol.
func (b *Binance) CurrentPrice(ctx context.Context, symbol string) (float64, error) {
	op := "GetTickerPrice"
	tickers, err := b.futuresClient.NewListPriceChangeStatsService().Symbol(symbol).Do(ctx)
	if err != nil {
		return 0, b.handleError(ctx, err, op)
	}
	if len(tickers) == 0 {
		err := fmt.Errorf("no ticker data returned for symbol %s", symbol)
		return 0, b.handleError(ctx, err, op)
	}

	price, err := strconv.ParseFloat(tickers[0].LastPrice, 64)
	if err != nil {
		parseErr := fmt.Errorf("could not parse price '%s': %w", tickers[0].LastPrice, err)
		return 0, b.handleError(ctx, parseErr, op)
	}
	return price, nil
}

// handleError translates Binance API errors into ports errors. Every result
// wraps ErrPriceUnavailable so the tracker treats it as a per-symbol failure.
func (b *Binance) handleError(ctx context.Context, err error, operation string) error {
	if err == nil {
		return nil
	}

	fields := map[string]interface{}{"operation": operation, "originalError": err.Error()}

	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		fields["apiErrorCode"] = apiErr.Code
		fields["apiErrorMessage"] = apiErr.Message

		var mappedErr error
		switch apiErr.Code {
		case -1003: // Too many requests
			mappedErr = ports.ErrRateLimited
		case -1121: // Invalid symbol
			mappedErr = ports.ErrNotFound
		default:
			mappedErr = ports.ErrUnknown
		}
		b.logger.Debug(ctx, operation+" failed with API error", fields)
		return fmt.Errorf("%s failed: %w: %w: %w", operation, mappedErr, ports.ErrPriceUnavailable, err)
	}

	mappedErr := ports.ErrUnknown
	if errors.Is(err, context.DeadlineExceeded) {
		mappedErr = ports.ErrTimeout
	}
	b.logger.Debug(ctx, operation+" failed", fields)
	return fmt.Errorf("%s failed: %w: %w: %w", operation, mappedErr, ports.ErrPriceUnavailable, err)
}
