// Package shutdown runs the bot's graceful teardown sequence: cancel resting
// orders, flatten any open position with aggressive crossing orders, then
// close venue connections. Each step has its own timeout so one slow venue
// can't block the others.
package shutdown

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"arbitrage-bot/internal/venue"
	"arbitrage-bot/pkg/types"
)

const (
	cancelTimeout   = 10 * time.Second
	positionTimeout = 5 * time.Second
	flattenTimeout  = 15 * time.Second
)

// Coordinator runs the shutdown sequence once, idempotently.
type Coordinator struct {
	maker  venue.Client
	taker  venue.Client
	logger *slog.Logger

	done bool
}

func New(maker, taker venue.Client, logger *slog.Logger) *Coordinator {
	return &Coordinator{maker: maker, taker: taker, logger: logger.With("component", "shutdown")}
}

// Run executes the teardown sequence. Safe to call more than once; only
// the first call does anything.
func (c *Coordinator) Run(ctx context.Context) {
	if c.done {
		return
	}
	c.done = true

	c.logger.Info("shutdown: cancelling all resting orders")
	c.cancelAll(ctx)

	c.logger.Info("shutdown: querying final positions")
	makerPos, takerPos := c.queryPositions(ctx)

	c.logger.Info("shutdown: flattening open positions",
		"maker_position", makerPos, "taker_position", takerPos)
	c.flatten(ctx, makerPos, takerPos)

	c.logger.Info("shutdown: closing venue connections")
	if err := c.maker.Close(); err != nil {
		c.logger.Error("close maker client failed", "error", err)
	}
	if err := c.taker.Close(); err != nil {
		c.logger.Error("close taker client failed", "error", err)
	}

	c.logger.Info("shutdown complete")
}

func (c *Coordinator) cancelAll(parent context.Context) {
	ctx, cancel := context.WithTimeout(detach(parent), cancelTimeout)
	defer cancel()

	if err := c.maker.CancelAll(ctx); err != nil {
		c.logger.Error("cancel all maker orders failed", "error", err)
	}
	if err := c.taker.CancelAll(ctx); err != nil {
		c.logger.Error("cancel all taker orders failed", "error", err)
	}
}

func (c *Coordinator) queryPositions(parent context.Context) (maker, taker decimal.Decimal) {
	ctx, cancel := context.WithTimeout(detach(parent), positionTimeout)
	defer cancel()

	maker, err := c.maker.Position(ctx)
	if err != nil {
		c.logger.Error("query maker position failed", "error", err)
	}
	taker, err = c.taker.Position(ctx)
	if err != nil {
		c.logger.Error("query taker position failed", "error", err)
	}
	return maker, taker
}

// flatten closes any non-zero position with an aggressive crossing order on
// its own venue — never a post-only order, since the goal here is guaranteed
// immediate execution, not passive queue position.
func (c *Coordinator) flatten(parent context.Context, makerPos, takerPos decimal.Decimal) {
	ctx, cancel := context.WithTimeout(detach(parent), flattenTimeout)
	defer cancel()

	if makerPos.IsPositive() {
		c.flattenVenue(ctx, c.maker, types.Sell, makerPos)
	} else if makerPos.IsNegative() {
		c.flattenVenue(ctx, c.maker, types.Buy, makerPos.Abs())
	}

	if takerPos.IsPositive() {
		c.flattenVenue(ctx, c.taker, types.Sell, takerPos)
	} else if takerPos.IsNegative() {
		c.flattenVenue(ctx, c.taker, types.Buy, takerPos.Abs())
	}
}

func (c *Coordinator) flattenVenue(ctx context.Context, client venue.Client, side types.Side, size decimal.Decimal) {
	quote, err := client.FetchBBO(ctx)
	if err != nil {
		c.logger.Error("flatten: fetch bbo failed, cannot flatten", "error", err)
		return
	}
	refPrice := quote.Ask
	if side == types.Sell {
		refPrice = quote.Bid
	}

	orderID, err := client.PlaceMarketOrder(ctx, side, size, refPrice, venue.ClientID())
	if err != nil {
		c.logger.Error("flatten order failed", "side", side, "size", size, "error", err)
		return
	}
	c.logger.Info("flatten order placed", "order_id", orderID, "side", side, "size", size)
}

// detach strips cancellation from parent (its deadline, if any, no longer
// applies once the process is already tearing down) while still
// propagating values, matching the reference bot's practice of using a
// fresh background context for cleanup regardless of how shutdown was
// triggered.
func detach(parent context.Context) context.Context {
	return context.WithoutCancel(parent)
}
