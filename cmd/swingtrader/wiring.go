package main

import (
	"context"
	"fmt"
	"time"

	"swingTrader/config"
	"swingTrader/internal/adapters/csvstore"
	"swingTrader/internal/adapters/logger"
	"swingTrader/internal/adapters/prices"
	"swingTrader/internal/adapters/redisstore"
	"swingTrader/internal/adapters/sqlite"
	"swingTrader/internal/app"
	"swingTrader/internal/domain"
	"swingTrader/internal/metrics"
	"swingTrader/internal/ports"
	"swingTrader/internal/profile"
	"swingTrader/internal/risk"
	"swingTrader/internal/tracker"
)

// runtime holds everything a subcommand needs for one invocation.
type runtime struct {
	cfg     *config.Config
	day     time.Time
	logger  *logger.ZapLogger
	store   *csvstore.Store
	ledger  ports.LedgerStore
	service *app.Service
	closers []func() error
}

// withRuntime wires the full batch service, runs fn and releases resources.
func withRuntime(ctx context.Context, opts *options, fn func(rt *runtime) error) error {
	rt, err := openRuntime(ctx, opts)
	if err != nil {
		return err
	}
	defer rt.close(ctx)

	if err := rt.buildService(ctx, opts.mode); err != nil {
		rt.logger.Error(ctx, err, "FATAL: Failed to initialize batch service")
		return err
	}
	return fn(rt)
}

// openRuntime loads configuration, the logger and the ledger store.
func openRuntime(ctx context.Context, opts *options) (*runtime, error) {
	day, err := parseDay(opts.date, time.Now())
	if err != nil {
		return nil, err
	}

	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	// 2. Initialize Logger
	appLogger, err := logger.New(cfg.LogLevel, cfg.LogDir, day)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	appLogger.Info(ctx, "Logger initialized", map[string]interface{}{"level": cfg.LogLevel, "date": day.Format(domain.DateLayout)})

	rt := &runtime{
		cfg:    cfg,
		day:    day,
		logger: appLogger,
		store:  csvstore.NewStore(cfg.DataDir, cfg.OutputDir, appLogger),
	}

	// 3. Initialize Ledger Store
	ledger, closer, err := openLedger(ctx, cfg, appLogger)
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize ledger store", map[string]interface{}{"backend": cfg.LedgerBackend})
		_ = appLogger.Sync()
		return nil, err
	}
	rt.ledger = ledger
	if closer != nil {
		rt.closers = append(rt.closers, closer)
	}
	appLogger.Info(ctx, "Ledger store initialized", map[string]interface{}{"backend": cfg.LedgerBackend})

	return rt, nil
}

// buildService resolves the filter profile and wires the batch service.
func (rt *runtime) buildService(ctx context.Context, modeFlag string) error {
	cfg := rt.cfg

	// 4. Resolve Filter Profile
	mode := string(cfg.FilterMode)
	if modeFlag != "" {
		mode = modeFlag
	}
	prof, err := profile.Resolve(ctx, rt.logger, mode, cfg.FiltersPath)
	if err != nil {
		return err
	}

	// 5. Initialize Risk Manager
	riskManager, err := risk.NewManager(risk.DefaultConfig(cfg.Capital, cfg.RiskPerTrade, cfg.MaxPositionFraction), rt.logger)
	if err != nil {
		return err
	}

	// 6. Initialize Application Service
	trackerCfg := tracker.DefaultConfig()
	trackerCfg.PriceTimeout = cfg.PriceTimeout

	service, err := app.NewService(app.Config{
		Profile:             prof,
		MaxConcurrentTrades: cfg.MaxConcurrentTrades,
		Tracker:             trackerCfg,
		MetricsPath:         cfg.MetricsPath,
	}, app.Deps{
		Logger:    rt.logger,
		Snapshots: rt.store,
		Batches:   rt.store,
		Ledger:    rt.ledger,
		Prices:    priceFactory(cfg, rt.store, rt.logger),
		Risk:      riskManager,
		Metrics:   metrics.New(),
	})
	if err != nil {
		return err
	}
	rt.service = service
	rt.logger.Info(ctx, "Batch service initialized", map[string]interface{}{"mode": prof.Mode, "priceSource": cfg.PriceSource})
	return nil
}

func (rt *runtime) close(ctx context.Context) {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](); err != nil {
			rt.logger.Error(ctx, err, "Error closing resource")
		}
	}
	_ = rt.logger.Sync()
}

// openLedger returns the configured ledger backend and an optional closer.
func openLedger(ctx context.Context, cfg *config.Config, log ports.Logger) (ports.LedgerStore, func() error, error) {
	switch cfg.LedgerBackend {
	case config.LedgerSQLite:
		repo, err := sqlite.NewRepository(sqlite.Config{DBPath: cfg.DBPath, Logger: log})
		if err != nil {
			return nil, nil, err
		}
		return repo, repo.Close, nil
	case config.LedgerRedis:
		client, err := redisstore.NewClient(ctx, cfg.RedisAddr)
		if err != nil {
			return nil, nil, err
		}
		return redisstore.NewLedger(client, cfg.RedisKey, log), client.Close, nil
	case config.LedgerCSV:
		return csvstore.NewLedger(cfg.LedgerDir, log), nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown ledger backend %q: %w", cfg.LedgerBackend, ports.ErrConfigurationError)
	}
}

// priceFactory returns the price source for the tracker. The snapshot source
// reads closes from the same day's raw data file; the others query live
// quotes.
func priceFactory(cfg *config.Config, snapshots ports.SnapshotSource, log ports.Logger) app.PriceSourceFactory {
	switch cfg.PriceSource {
	case config.PriceYahoo:
		return func(ctx context.Context, day time.Time) (ports.PriceSource, error) {
			return prices.NewYahoo(prices.YahooConfig{
				SymbolSuffix:      cfg.PriceSymbolSuffix,
				RequestsPerSecond: cfg.PriceRequestsPerSecond,
				Logger:            log,
			}), nil
		}
	case config.PriceBinance:
		return func(ctx context.Context, day time.Time) (ports.PriceSource, error) {
			b, err := prices.NewBinance(prices.BinanceConfig{UseTestnet: cfg.BinanceTestnet, Logger: log})
			if err != nil {
				return nil, err
			}
			return b, nil
		}
	default:
		return func(ctx context.Context, day time.Time) (ports.PriceSource, error) {
			snaps, err := snapshots.LoadSnapshots(ctx, day)
			if err != nil {
				return nil, err
			}
			return prices.NewSnapshot(snaps), nil
		}
	}
}
