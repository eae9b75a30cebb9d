package execution

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"arbitrage-bot/internal/metrics"
	"arbitrage-bot/internal/venue"
	"arbitrage-bot/pkg/types"
)

// makerLegTimeout is how long a post-only order is given to fill before
// the controller cancels it and abandons the trade, mirroring the
// reference bot's fixed 5s patience on its maker leg.
const makerLegTimeout = 5 * time.Second

// makerPollInterval is how often the controller checks order status while
// waiting for a fill or the timeout to elapse.
const makerPollInterval = 500 * time.Millisecond

// reconcileSleep is the brief pause before querying active orders after a
// submit call fails with a deadline-exceeded error, giving the venue time
// to finish processing an order it may have already accepted.
const reconcileSleep = 1 * time.Second

// makerLegResult reports what happened to a resting maker order.
type makerLegResult struct {
	Filled     bool
	FilledSize decimal.Decimal
	FillPrice  decimal.Decimal
}

// runMakerLeg places a post-only order on the maker venue and waits for it
// to fill, timing out and cancelling after makerLegTimeout. It consumes
// order-update events from updates, ignoring ones for stale client IDs
// left over from a previous, already-abandoned attempt.
func (c *TradeController) runMakerLeg(ctx context.Context, side types.Side, size, expectedPrice decimal.Decimal, updates <-chan types.OrderUpdate) (makerLegResult, error) {
	bbo, err := c.maker.FetchBBO(ctx)
	if err != nil {
		return makerLegResult{}, fmt.Errorf("fetch maker bbo: %w", err)
	}

	if c.cfg.PriceTolerance.IsPositive() && expectedPrice.IsPositive() {
		touch := bbo.Ask
		if side == types.Sell {
			touch = bbo.Bid
		}
		drift := touch.Sub(expectedPrice).Div(expectedPrice).Abs().Mul(decimal.NewFromInt(100))
		if drift.GreaterThan(c.cfg.PriceTolerance) {
			c.logger.Warn("price moved past tolerance, abandoning trade",
				"expected", expectedPrice, "current", touch, "drift_pct", drift)
			return makerLegResult{}, nil
		}
	}

	price := bestPostOnlyPrice(bbo, side, c.maker.TickSize())
	clientID := venue.ClientID()

	orderID, err := c.maker.PlaceLimitOrder(ctx, side, price, size, clientID)
	if err != nil {
		if !isDeadlineExceeded(err) {
			return makerLegResult{}, fmt.Errorf("place maker order: %w", err)
		}
		c.logger.Warn("maker order submit deadline exceeded, reconciling via active orders", "client_id", clientID, "error", err)
		return c.reconcileDeadlineExceeded(ctx, side, clientID, updates)
	}
	c.logger.Info("maker order placed", "client_id", clientID, "order_id", orderID, "side", side, "price", price, "size", size)
	metrics.OrdersPlaced.WithLabelValues(string(types.VenueMaker), string(side)).Inc()

	return c.pollForTerminal(ctx, side, clientID, orderID, updates)
}

// isDeadlineExceeded reports whether err represents a request that timed
// out before a response arrived — the §4.7 "may or may not have been
// accepted" case that requires reconciliation rather than a bare failure.
func isDeadlineExceeded(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "deadline exceeded") || strings.Contains(msg, "Client.Timeout exceeded")
}

// reconcileDeadlineExceeded handles a maker submit whose response was lost
// to a timeout: it sleeps briefly, queries the venue's active orders,
// matches by client_id, cancels the order if it was in fact accepted, and
// waits for the terminal status. Only after this does the leg declare
// failure, per spec §4.7's special case.
func (c *TradeController) reconcileDeadlineExceeded(ctx context.Context, side types.Side, clientID string, updates <-chan types.OrderUpdate) (makerLegResult, error) {
	select {
	case <-ctx.Done():
		return makerLegResult{}, ctx.Err()
	case <-time.After(reconcileSleep):
	}

	orders, err := c.maker.ActiveOrders(ctx)
	if err != nil {
		return makerLegResult{}, fmt.Errorf("query active orders: %w", err)
	}

	var found *types.OrderInfo
	for i := range orders {
		if orders[i].ClientID == clientID {
			found = &orders[i]
			break
		}
	}
	if found == nil {
		c.logger.Info("maker order not found among active orders after deadline exceeded, treating as never accepted", "client_id", clientID)
		return makerLegResult{}, nil
	}

	c.logger.Warn("maker order was accepted despite submit deadline exceeded, cancelling", "client_id", clientID, "order_id", found.VenueID)
	if err := c.maker.CancelOrder(ctx, found.VenueID); err != nil {
		c.logger.Error("cancel reconciled maker order failed", "order_id", found.VenueID, "error", err)
	}

	return c.pollForTerminal(ctx, side, clientID, found.VenueID, updates)
}

// pollForTerminal waits for the resting order identified by clientID/orderID
// to reach a terminal state, cancelling it once makerLegTimeout elapses.
func (c *TradeController) pollForTerminal(ctx context.Context, side types.Side, clientID, orderID string, updates <-chan types.OrderUpdate) (makerLegResult, error) {
	deadline := time.Now().Add(makerLegTimeout)
	ticker := time.NewTicker(makerPollInterval)
	defer ticker.Stop()

	var filled decimal.Decimal
	var fillPrice decimal.Decimal
	canceled := false

	for {
		select {
		case <-ctx.Done():
			return makerLegResult{}, ctx.Err()

		case u := <-updates:
			if u.ClientID != clientID && u.VenueID != orderID {
				continue
			}
			switch u.Status {
			case types.StatusFilled:
				metrics.OrdersFilled.WithLabelValues(string(types.VenueMaker), string(side)).Inc()
				return makerLegResult{Filled: true, FilledSize: u.FilledSize, FillPrice: u.FillPrice}, nil
			case types.StatusPartiallyFilled:
				filled = u.FilledSize
				fillPrice = u.FillPrice
			case types.StatusCanceled, types.StatusRejected:
				if filled.IsPositive() {
					return makerLegResult{Filled: true, FilledSize: filled, FillPrice: fillPrice}, nil
				}
				c.logger.Warn("maker order canceled before fill", "order_id", orderID, "status", u.Status)
				return makerLegResult{}, nil
			}

		case <-ticker.C:
			if canceled || time.Now().Before(deadline) {
				continue
			}
			c.logger.Warn("maker order timed out, cancelling", "order_id", orderID, "elapsed", makerLegTimeout)
			metrics.MakerOrderTimeouts.Inc()
			if err := c.maker.CancelOrder(ctx, orderID); err != nil {
				c.logger.Error("cancel timed-out maker order failed", "order_id", orderID, "error", err)
			}
			canceled = true
			// Give the venue a final window to report a fill that raced the
			// cancel before treating the order as dead.
			deadline = time.Now().Add(makerPollInterval * 4)
		}

		if canceled && time.Now().After(deadline) {
			if filled.IsPositive() {
				return makerLegResult{Filled: true, FilledSize: filled, FillPrice: fillPrice}, nil
			}
			return makerLegResult{}, nil
		}
	}
}

// bestPostOnlyPrice prices a post-only order one tick inside the far touch
// (buy at ask-tick, sell at bid+tick), rounded to the tick toward the
// passive side (buy floors, sell ceils), so the order rests without
// crossing and immediately taking.
func bestPostOnlyPrice(bbo types.BBOQuote, side types.Side, tick decimal.Decimal) decimal.Decimal {
	var raw decimal.Decimal
	if side == types.Buy {
		raw = bbo.Ask.Sub(tick)
	} else {
		raw = bbo.Bid.Add(tick)
	}
	return venue.RoundToTick(raw, tick, side)
}
