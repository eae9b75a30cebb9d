// Command positioncheck is a one-shot diagnostic: it queries both venues'
// authoritative positions and prints a human-readable report, for manual use
// after a crash or an unclean shutdown when the operator needs to know
// whether anything is still open before restarting the bot. It never places
// an order and never imports internal/execution.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"arbitrage-bot/internal/config"
	"arbitrage-bot/internal/venue/makerclient"
	"arbitrage-bot/internal/venue/takerclient"
	"arbitrage-bot/pkg/types"
)

// authBootstrapWait gives the maker client's background Start() enough time
// to derive its L2 API key before Position() is called; the taker venue
// needs no equivalent warm-up (see takerclient.Client.Start).
const authBootstrapWait = 3 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "positioncheck:", err)
		os.Exit(1)
	}
}

func run() error {
	ticker := os.Getenv("TICKER")
	if ticker == "" {
		return fmt.Errorf("TICKER must be set to the ticker to inspect")
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg.Ticker = ticker

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	contractID, makerTick, err := makerclient.ResolveContract(ctx, cfg.Maker, ticker)
	if err != nil {
		return fmt.Errorf("resolve maker contract: %w", err)
	}
	marketIndex, takerTick, err := takerclient.ResolveMarket(ctx, cfg.Taker, ticker)
	if err != nil {
		return fmt.Errorf("resolve taker market: %w", err)
	}

	maker, err := makerclient.NewClient(cfg.Maker, contractID, makerTick, false, logger)
	if err != nil {
		return fmt.Errorf("create maker client: %w", err)
	}
	taker, err := takerclient.NewClient(cfg.Taker, marketIndex, takerTick, false, logger)
	if err != nil {
		return fmt.Errorf("create taker client: %w", err)
	}
	defer maker.Close()
	defer taker.Close()

	bgCtx, bgCancel := context.WithCancel(context.Background())
	defer bgCancel()
	go func() { _ = maker.Start(bgCtx) }()
	go func() { _ = taker.Start(bgCtx) }()

	select {
	case <-time.After(authBootstrapWait):
	case <-ctx.Done():
		return ctx.Err()
	}

	makerPos, makerErr := maker.Position(ctx)
	takerPos, takerErr := taker.Position(ctx)

	fmt.Println("============================================================")
	fmt.Println("position check:", ticker)
	fmt.Println("============================================================")

	printVenue("maker", makerPos, makerErr)
	printVenue("taker", takerPos, takerErr)

	if makerErr == nil && takerErr == nil {
		state := types.PositionState{MakerPosition: makerPos, TakerPosition: takerPos}
		combined := makerPos.Add(takerPos)
		fmt.Printf("\ncombined position: %s\n", combined)
		switch {
		case state.IsNaked():
			fmt.Println("WARNING: naked position — both venues show the same-sign exposure")
		case state.IsFlat():
			fmt.Println("positions are flat and offsetting")
		case combined.IsZero():
			fmt.Println("venues are offsetting: combined position is flat")
		default:
			fmt.Println("note: combined position is non-zero; the venues do not fully offset (expected mid-trade)")
		}
	}

	return nil
}

func printVenue(name string, pos decimal.Decimal, err error) {
	if err != nil {
		fmt.Printf("%s position: ERROR: %v\n", name, err)
		return
	}
	fmt.Printf("%s position: %s\n", name, pos)
}
