package prices

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"swingTrader/internal/ports"
)

const yahooBaseURL = "https://query1.finance.yahoo.com"

// YahooConfig configures the Yahoo chart quote source.
type YahooConfig struct {
	BaseURL           string  // defaults to the public endpoint
	SymbolSuffix      string  // exchange suffix appended to every symbol, e.g. ".NS"
	RequestsPerSecond float64 // zero disables limiting
	FailureThreshold  uint32  // consecutive failures that open the breaker
	OpenTimeout       time.Duration
	HTTPClient        *http.Client
	Logger            ports.Logger
}

// Yahoo looks up the last traded price from the Yahoo chart endpoint.
// Requests are rate limited and guarded by a circuit breaker, so an outage
// fails the remaining symbols fast instead of waiting out every timeout.
type Yahoo struct {
	baseURL string
	suffix  string
	http    *http.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
	logger  ports.Logger
}

type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				RegularMarketPrice float64 `json:"regularMarketPrice"`
			} `json:"meta"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// NewYahoo creates the Yahoo source.
func NewYahoo(cfg YahooConfig) *Yahoo {
	if cfg.BaseURL == "" {
		cfg.BaseURL = yahooBaseURL
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 15 * time.Second}
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = time.Minute
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	y := &Yahoo{
		baseURL: cfg.BaseURL,
		suffix:  cfg.SymbolSuffix,
		http:    cfg.HTTPClient,
		limiter: rate.NewLimiter(limit, 1),
		logger:  cfg.Logger,
	}

	st := gobreaker.Settings{Name: "yahoo"}
	st.ReadyToTrip = func(counts gobreaker.Counts) bool { return counts.ConsecutiveFailures >= cfg.FailureThreshold }
	st.Timeout = cfg.OpenTimeout
	// An unknown symbol says nothing about the health of the endpoint.
	st.IsSuccessful = func(err error) bool { return err == nil || errors.Is(err, ports.ErrNotFound) }
	st.OnStateChange = func(name string, from, to gobreaker.State) {
		y.logger.Warn(context.Background(), "Price source circuit changed state", map[string]interface{}{
			"source": name, "from": from.String(), "to": to.String(),
		})
	}
	y.breaker = gobreaker.NewCircuitBreaker(st)
	return y
}

// Name identifies the source in logs.
func (y *Yahoo) Name() string { return "yahoo" }

// CurrentPrice returns regularMarketPrice for symbol plus the configured suffix.
func (y *Yahoo) CurrentPrice(ctx context.Context, symbol string) (float64, error) {
	if err := y.limiter.Wait(ctx); err != nil {
		return 0, fmt.Errorf("%s: %v: %w", symbol, err, ports.ErrPriceUnavailable)
	}

	res, err := y.breaker.Execute(func() (interface{}, error) {
		return y.fetch(ctx, symbol+y.suffix)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return 0, fmt.Errorf("%s: %v: %w", symbol, err, ports.ErrPriceUnavailable)
		}
		return 0, err
	}
	return res.(float64), nil
}

func (y *Yahoo) fetch(ctx context.Context, ticker string) (float64, error) {
	endpoint := fmt.Sprintf("%s/v8/finance/chart/%s?range=1d&interval=1d", y.baseURL, url.PathEscape(ticker))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, fmt.Errorf("%s: %v: %w", ticker, err, ports.ErrPriceUnavailable)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; swingtrader)")
	req.Header.Set("Accept", "application/json")

	resp, err := y.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return 0, fmt.Errorf("%s: %w: %w", ticker, ports.ErrTimeout, ports.ErrPriceUnavailable)
		}
		return 0, fmt.Errorf("%s: %v: %w", ticker, err, ports.ErrPriceUnavailable)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return 0, fmt.Errorf("%s: %w: %w", ticker, ports.ErrRateLimited, ports.ErrPriceUnavailable)
	case resp.StatusCode == http.StatusNotFound:
		return 0, fmt.Errorf("%s: %w: %w", ticker, ports.ErrNotFound, ports.ErrPriceUnavailable)
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return 0, fmt.Errorf("%s: HTTP %d: %s: %w", ticker, resp.StatusCode, body, ports.ErrPriceUnavailable)
	}

	var chart chartResponse
	if err := json.NewDecoder(resp.Body).Decode(&chart); err != nil {
		return 0, fmt.Errorf("%s: decode: %v: %w", ticker, err, ports.ErrPriceUnavailable)
	}
	if chart.Chart.Error != nil {
		return 0, fmt.Errorf("%s: %s: %w: %w", ticker, chart.Chart.Error.Description, ports.ErrNotFound, ports.ErrPriceUnavailable)
	}
	if len(chart.Chart.Result) == 0 || chart.Chart.Result[0].Meta.RegularMarketPrice <= 0 {
		return 0, fmt.Errorf("%s: no price in response: %w", ticker, ports.ErrPriceUnavailable)
	}
	return chart.Chart.Result[0].Meta.RegularMarketPrice, nil
}
