package ports

import "context"

// PriceSource looks up the latest traded price for a symbol.
type PriceSource interface {
	// Name identifies the source in logs.
	Name() string
	// CurrentPrice returns the latest price. Failures wrap ErrPriceUnavailable.
	CurrentPrice(ctx context.Context, symbol string) (float64, error)
}
