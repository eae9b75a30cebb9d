// Command arbitrage runs a cross-exchange delta-neutral arbitrage bot: it
// rests post-only limit orders on a maker venue and hedges any fill with an
// aggressive IOC order on a taker venue, sized to keep the combined
// position flat.
//
// Architecture:
//
//	main.go                        — entry point: loads config, wires every component, waits for SIGINT/SIGTERM
//	internal/venue/makerclient     — EdgeX-shaped REST+WS client: EIP-712 L1 auth, post-only limit orders
//	internal/venue/takerclient     — Lighter-shaped REST+WS client: account-index auth, IOC market orders
//	internal/feed                  — venue-agnostic, staleness-aware BBO cache (each venue client does its own fetching)
//	internal/threshold             — dynamic long/short spread threshold estimator
//	internal/closepolicy           — time-staged close-spread requirement by holding duration
//	internal/position              — merged position tracker, naked-position hard halt
//	internal/execution             — the trade controller: maker leg then taker hedge
//	internal/shutdown              — ordered teardown: cancel, flatten, close
//	internal/datalog                — append-only CSV trade and BBO logs
//	internal/metrics                — Prometheus counters/gauges at /metrics
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"

	"arbitrage-bot/internal/closepolicy"
	"arbitrage-bot/internal/config"
	"arbitrage-bot/internal/datalog"
	"arbitrage-bot/internal/execution"
	"arbitrage-bot/internal/metrics"
	"arbitrage-bot/internal/position"
	"arbitrage-bot/internal/shutdown"
	"arbitrage-bot/internal/threshold"
	"arbitrage-bot/internal/venue/makerclient"
	"arbitrage-bot/internal/venue/takerclient"
)

func main() {
	ticker := flag.String("ticker", "", "ticker symbol to trade, e.g. BTCUSD (overrides TICKER)")
	size := flag.String("size", "", "order size (overrides ORDER_SIZE)")
	dryRun := flag.Bool("dry-run", false, "log intended orders instead of placing them")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if *ticker != "" {
		cfg.Ticker = *ticker
	}
	if *size != "" {
		cfg.OrderSize = *size
	}
	if *dryRun {
		cfg.DryRun = true
	}

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Logging.Level)}
	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)

	if err := run(cfg, logger); err != nil {
		logger.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	orderSize, err := decimal.NewFromString(cfg.OrderSize)
	if err != nil {
		return fmt.Errorf("parse order size: %w", err)
	}

	resolveCtx, resolveCancel := context.WithTimeout(ctx, 15*time.Second)
	contractID, makerTick, err := makerclient.ResolveContract(resolveCtx, cfg.Maker, cfg.Ticker)
	if err != nil {
		resolveCancel()
		return fmt.Errorf("resolve maker contract: %w", err)
	}
	marketIndex, takerTick, err := takerclient.ResolveMarket(resolveCtx, cfg.Taker, cfg.Ticker)
	resolveCancel()
	if err != nil {
		return fmt.Errorf("resolve taker market: %w", err)
	}

	maker, err := makerclient.NewClient(cfg.Maker, contractID, makerTick, cfg.DryRun, logger)
	if err != nil {
		return fmt.Errorf("create maker client: %w", err)
	}
	taker, err := takerclient.NewClient(cfg.Taker, marketIndex, takerTick, cfg.DryRun, logger)
	if err != nil {
		return fmt.Errorf("create taker client: %w", err)
	}

	thresholdCfg := threshold.Config{
		UseDynamic:     cfg.Threshold.UseDynamic,
		WindowSize:     cfg.Threshold.WindowSize,
		UpdateInterval: cfg.Threshold.UpdateInterval,
		Percentile:     cfg.Threshold.Percentile,
	}
	thresholdCfg.MinThreshold, err = decimal.NewFromString(cfg.Threshold.MinThreshold)
	if err != nil {
		return fmt.Errorf("parse threshold.min: %w", err)
	}
	thresholdCfg.MaxThreshold, err = decimal.NewFromString(cfg.Threshold.MaxThreshold)
	if err != nil {
		return fmt.Errorf("parse threshold.max: %w", err)
	}
	thresholdCfg.StaticLong, err = decimal.NewFromString(cfg.Threshold.LongThreshold)
	if err != nil {
		return fmt.Errorf("parse long threshold: %w", err)
	}
	thresholdCfg.StaticShort, err = decimal.NewFromString(cfg.Threshold.ShortThreshold)
	if err != nil {
		return fmt.Errorf("parse short threshold: %w", err)
	}
	thresholds := threshold.New(thresholdCfg, logger)

	closeSel, err := closepolicy.New(cfg.Close)
	if err != nil {
		return fmt.Errorf("create close policy: %w", err)
	}

	positions := position.New(cfg.Position, maker, taker, logger)

	maxPosition, err := decimal.NewFromString(cfg.MaxPosition)
	if err != nil {
		return fmt.Errorf("parse max position: %w", err)
	}

	// price_tolerance_pct, §4.6 step 2: abort the trade if the maker quote
	// has moved more than this percent from the value that triggered the
	// signal, before any order is placed.
	priceTolerance := decimal.NewFromFloat(0.05)
	controller := execution.New(
		execution.Config{
			OrderSize:      orderSize,
			MaxPosition:    maxPosition,
			TickInterval:   2 * time.Second,
			PriceTolerance: priceTolerance,
		},
		maker, taker,
		thresholds, closeSel, positions,
		logger,
	)

	var dataLogger *datalog.Logger
	if cfg.DataLog.DataDir != "" {
		dataLogger, err = datalog.Open(cfg.DataLog.DataDir, cfg.Ticker)
		if err != nil {
			return fmt.Errorf("open data logger: %w", err)
		}
		defer dataLogger.Close()
		controller.SetDataLogger(dataLogger, cfg.DataLog.BBOLogInterval)
	}

	var metricsServer *metrics.Server
	if cfg.Metrics.Enabled {
		metricsServer = metrics.NewServer(cfg.Metrics.Addr)
		go func() {
			if err := metricsServer.Run(ctx); err != nil {
				logger.Error("metrics server error", "error", err)
			}
		}()
		logger.Info("metrics server started", "addr", cfg.Metrics.Addr)
	}

	shutdownCoord := shutdown.New(maker, taker, logger)

	errCh := make(chan error, 4)
	go func() { errCh <- maker.Start(ctx) }()
	go func() { errCh <- taker.Start(ctx) }()
	go func() { errCh <- positions.Run(ctx) }()
	go func() { errCh <- controller.Run(ctx) }()

	if cfg.DryRun {
		logger.Warn("DRY-RUN MODE — no real orders will be placed")
	}
	logger.Info("arbitrage bot started",
		"ticker", cfg.Ticker,
		"order_size", cfg.OrderSize,
		"use_dynamic_threshold", cfg.Threshold.UseDynamic,
		"dry_run", cfg.DryRun,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig.String())
	case err := <-errCh:
		if err != nil && ctx.Err() == nil {
			logger.Error("component failed, shutting down", "error", err)
		}
	}

	cancel()
	shutdownCoord.Run(context.Background())

	return nil
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
