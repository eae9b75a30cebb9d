package execution

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/shopspring/decimal"

	"arbitrage-bot/pkg/types"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestController(maker, taker *fakeVenueClient, priceTolerance decimal.Decimal) *TradeController {
	return &TradeController{
		cfg: Config{
			OrderSize:      decimal.NewFromInt(1),
			TickInterval:   0,
			PriceTolerance: priceTolerance,
		},
		maker:        maker,
		taker:        taker,
		makerUpdates: maker.updates,
		takerUpdates: taker.updates,
		logger:       testLogger(),
	}
}

func TestBestPostOnlyPriceBuyFloorsBelowAsk(t *testing.T) {
	bbo := types.BBOQuote{Bid: decimal.NewFromInt(99), Ask: decimal.NewFromInt(101)}
	tick := decimal.NewFromFloat(0.5)

	price := bestPostOnlyPrice(bbo, types.Buy, tick)
	if !price.Equal(decimal.NewFromFloat(100.5)) {
		t.Errorf("bestPostOnlyPrice(buy) = %s, want 100.5", price)
	}
}

func TestBestPostOnlyPriceSellCeilsAboveBid(t *testing.T) {
	bbo := types.BBOQuote{Bid: decimal.NewFromInt(99), Ask: decimal.NewFromInt(101)}
	tick := decimal.NewFromFloat(0.5)

	price := bestPostOnlyPrice(bbo, types.Sell, tick)
	if !price.Equal(decimal.NewFromFloat(99.5)) {
		t.Errorf("bestPostOnlyPrice(sell) = %s, want 99.5", price)
	}
}

func TestRunMakerLegAbandonsOnPriceDrift(t *testing.T) {
	maker := newFakeVenueClient()
	maker.bbo = types.BBOQuote{Bid: decimal.NewFromInt(99), Ask: decimal.NewFromInt(110)} // ask drifted far from expected
	c := newTestController(maker, newFakeVenueClient(), decimal.NewFromFloat(0.05))

	result, err := c.runMakerLeg(context.Background(), types.Buy, decimal.NewFromInt(1), decimal.NewFromInt(100), maker.updates)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Filled {
		t.Error("expected trade to be abandoned on price drift, got Filled=true")
	}
	if len(maker.placedLimit) != 0 {
		t.Error("expected no order to be placed once price drift aborted the trade")
	}
}

func TestRunMakerLegFillsImmediately(t *testing.T) {
	maker := newFakeVenueClient()
	maker.bbo = types.BBOQuote{Bid: decimal.NewFromInt(99), Ask: decimal.NewFromInt(101)}
	c := newTestController(maker, newFakeVenueClient(), decimal.Zero)

	maker.updates <- types.OrderUpdate{
		VenueID:    maker.limitOrderID,
		Status:     types.StatusFilled,
		FilledSize: decimal.NewFromInt(1),
		FillPrice:  decimal.NewFromInt(100),
	}

	result, err := c.runMakerLeg(context.Background(), types.Buy, decimal.NewFromInt(1), decimal.NewFromInt(100), maker.updates)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Filled {
		t.Fatal("expected Filled=true")
	}
	if !result.FilledSize.Equal(decimal.NewFromInt(1)) {
		t.Errorf("FilledSize = %s, want 1", result.FilledSize)
	}
	if len(maker.placedLimit) != 1 {
		t.Fatalf("expected exactly one order placed, got %d", len(maker.placedLimit))
	}
}

func TestRunMakerLegIgnoresUpdatesForUnrelatedOrders(t *testing.T) {
	maker := newFakeVenueClient()
	maker.bbo = types.BBOQuote{Bid: decimal.NewFromInt(99), Ask: decimal.NewFromInt(101)}
	c := newTestController(maker, newFakeVenueClient(), decimal.Zero)

	// Stale update from a previous, already-abandoned attempt.
	maker.updates <- types.OrderUpdate{VenueID: "some-other-order", Status: types.StatusFilled, FilledSize: decimal.NewFromInt(99)}
	// The real fill for this attempt.
	maker.updates <- types.OrderUpdate{VenueID: maker.limitOrderID, Status: types.StatusFilled, FilledSize: decimal.NewFromInt(1), FillPrice: decimal.NewFromInt(100)}

	result, err := c.runMakerLeg(context.Background(), types.Buy, decimal.NewFromInt(1), decimal.NewFromInt(100), maker.updates)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.FilledSize.Equal(decimal.NewFromInt(1)) {
		t.Errorf("expected the stale update to be ignored, FilledSize = %s", result.FilledSize)
	}
}

func TestRunMakerLegPartialFillThenCanceledKeepsPartialFill(t *testing.T) {
	maker := newFakeVenueClient()
	maker.bbo = types.BBOQuote{Bid: decimal.NewFromInt(99), Ask: decimal.NewFromInt(101)}
	c := newTestController(maker, newFakeVenueClient(), decimal.Zero)

	maker.updates <- types.OrderUpdate{
		VenueID:    maker.limitOrderID,
		Status:     types.StatusPartiallyFilled,
		FilledSize: decimal.NewFromFloat(0.4),
		FillPrice:  decimal.NewFromInt(100),
	}
	maker.updates <- types.OrderUpdate{VenueID: maker.limitOrderID, Status: types.StatusCanceled}

	result, err := c.runMakerLeg(context.Background(), types.Buy, decimal.NewFromInt(1), decimal.NewFromInt(100), maker.updates)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Filled {
		t.Fatal("expected the partial fill to count as Filled=true")
	}
	if !result.FilledSize.Equal(decimal.NewFromFloat(0.4)) {
		t.Errorf("FilledSize = %s, want 0.4", result.FilledSize)
	}
}

func TestRunMakerLegReconcilesAfterDeadlineExceeded(t *testing.T) {
	maker := newFakeVenueClient()
	maker.bbo = types.BBOQuote{Bid: decimal.NewFromInt(99), Ask: decimal.NewFromInt(101)}
	maker.limitErr = context.DeadlineExceeded
	maker.activeOrdersEchoLast = true
	maker.activeOrdersEchoID = "reconciled-order-1"
	maker.activeOrdersEchoStatus = types.StatusOpen
	c := newTestController(maker, newFakeVenueClient(), decimal.Zero)

	maker.updates <- types.OrderUpdate{
		VenueID:    "reconciled-order-1",
		Status:     types.StatusFilled,
		FilledSize: decimal.NewFromInt(1),
		FillPrice:  decimal.NewFromInt(100),
	}

	result, err := c.runMakerLeg(context.Background(), types.Buy, decimal.NewFromInt(1), decimal.NewFromInt(100), maker.updates)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Filled {
		t.Fatal("expected the reconciled order's fill to be honored, got Filled=false")
	}
	if !result.FilledSize.Equal(decimal.NewFromInt(1)) {
		t.Errorf("FilledSize = %s, want 1", result.FilledSize)
	}
	if len(maker.canceled) != 1 || maker.canceled[0] != "reconciled-order-1" {
		t.Errorf("expected the found-open order to be cancelled, got %v", maker.canceled)
	}
}

func TestRunMakerLegDeadlineExceededNotFoundReturnsUnfilled(t *testing.T) {
	maker := newFakeVenueClient()
	maker.bbo = types.BBOQuote{Bid: decimal.NewFromInt(99), Ask: decimal.NewFromInt(101)}
	maker.limitErr = context.DeadlineExceeded
	c := newTestController(maker, newFakeVenueClient(), decimal.Zero)

	result, err := c.runMakerLeg(context.Background(), types.Buy, decimal.NewFromInt(1), decimal.NewFromInt(100), maker.updates)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Filled {
		t.Error("expected Filled=false when the deadline-exceeded order is not found among active orders")
	}
	if len(maker.canceled) != 0 {
		t.Errorf("expected no cancel call when the order was never accepted, got %v", maker.canceled)
	}
}

func TestRunMakerLegCanceledWithNoFillReturnsUnfilled(t *testing.T) {
	maker := newFakeVenueClient()
	maker.bbo = types.BBOQuote{Bid: decimal.NewFromInt(99), Ask: decimal.NewFromInt(101)}
	c := newTestController(maker, newFakeVenueClient(), decimal.Zero)

	maker.updates <- types.OrderUpdate{VenueID: maker.limitOrderID, Status: types.StatusCanceled}

	result, err := c.runMakerLeg(context.Background(), types.Buy, decimal.NewFromInt(1), decimal.NewFromInt(100), maker.updates)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Filled {
		t.Error("expected Filled=false when canceled with no prior fill")
	}
}
