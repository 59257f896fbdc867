package ports

import "errors"

// Standard application-level errors.
// Adapters and stages wrap their failures with these so callers can decide the
// scope of recovery with errors.Is.
var (
	// General Errors
	ErrUnknown            = errors.New("unknown error occurred")
	ErrNotFound           = errors.New("resource not found")
	ErrTimeout            = errors.New("operation timed out")
	ErrConfigurationError = errors.New("invalid or missing configuration")

	// Missing input: the stage aborts and downstream stages receive nothing.
	ErrMissingInput = errors.New("required input is missing or empty")

	// Row-level rejections: the row is skipped, the run continues.
	ErrDegenerateRow        = errors.New("row has degenerate numeric inputs")
	ErrZeroQuantity         = errors.New("position size rounds to zero")
	ErrTargetBelowBreakeven = errors.New("target does not clear transaction costs")

	// Price lookup: the symbol is skipped for this tick.
	ErrPriceUnavailable = errors.New("current price unavailable")
	ErrRateLimited      = errors.New("price source rate limit exceeded")

	// Storage
	ErrLedgerCorrupt = errors.New("ledger data could not be decoded")
	ErrQueryFailed   = errors.New("database query failed")
	ErrUpdateFailed  = errors.New("database update failed")
)
