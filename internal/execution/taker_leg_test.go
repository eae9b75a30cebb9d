package execution

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"arbitrage-bot/pkg/types"
)

func TestRunTakerLegFillsAndReturnsConfirmedSize(t *testing.T) {
	taker := newFakeVenueClient()
	c := newTestController(newFakeVenueClient(), taker, decimal.Zero)

	taker.updates <- types.OrderUpdate{
		VenueID:    taker.marketOrderID,
		Status:     types.StatusFilled,
		FilledSize: decimal.NewFromInt(1),
		FillPrice:  decimal.NewFromFloat(99.5),
	}

	makerFill := makerLegResult{Filled: true, FilledSize: decimal.NewFromInt(1), FillPrice: decimal.NewFromInt(100)}
	result, err := c.runTakerLeg(context.Background(), makerFill, types.Buy)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.FilledSize.Equal(decimal.NewFromInt(1)) {
		t.Errorf("FilledSize = %s, want 1", result.FilledSize)
	}
	if !result.FillPrice.Equal(decimal.NewFromFloat(99.5)) {
		t.Errorf("FillPrice = %s, want 99.5", result.FillPrice)
	}
	if len(taker.placedMarket) != 1 {
		t.Fatalf("expected one market order placed, got %d", len(taker.placedMarket))
	}
	if taker.placedMarket[0].side != types.Sell {
		t.Errorf("expected hedge side Sell (opposite of maker Buy), got %s", taker.placedMarket[0].side)
	}
}

func TestRunTakerLegHedgesOnlyConfirmedMakerFillSize(t *testing.T) {
	taker := newFakeVenueClient()
	c := newTestController(newFakeVenueClient(), taker, decimal.Zero)

	taker.updates <- types.OrderUpdate{
		VenueID:    taker.marketOrderID,
		Status:     types.StatusFilled,
		FilledSize: decimal.NewFromFloat(0.3),
		FillPrice:  decimal.NewFromFloat(99.5),
	}

	makerFill := makerLegResult{Filled: true, FilledSize: decimal.NewFromFloat(0.3), FillPrice: decimal.NewFromInt(100)}
	_, err := c.runTakerLeg(context.Background(), makerFill, types.Sell)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !taker.placedMarket[0].size.Equal(decimal.NewFromFloat(0.3)) {
		t.Errorf("expected hedge sized to the maker's partial fill 0.3, got %s", taker.placedMarket[0].size)
	}
}

func TestRunTakerLegCanceledWithNoFillReturnsEmptyResult(t *testing.T) {
	taker := newFakeVenueClient()
	c := newTestController(newFakeVenueClient(), taker, decimal.Zero)

	taker.updates <- types.OrderUpdate{VenueID: taker.marketOrderID, Status: types.StatusCanceled}

	makerFill := makerLegResult{Filled: true, FilledSize: decimal.NewFromInt(1), FillPrice: decimal.NewFromInt(100)}
	result, err := c.runTakerLeg(context.Background(), makerFill, types.Buy)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.FilledSize.IsPositive() {
		t.Errorf("expected zero FilledSize on a full cancel, got %s", result.FilledSize)
	}
}

func TestRunTakerLegCanceledWithPartialFillKeepsPartial(t *testing.T) {
	taker := newFakeVenueClient()
	c := newTestController(newFakeVenueClient(), taker, decimal.Zero)

	taker.updates <- types.OrderUpdate{
		VenueID:    taker.marketOrderID,
		Status:     types.StatusCanceled,
		FilledSize: decimal.NewFromFloat(0.6),
		FillPrice:  decimal.NewFromFloat(99.4),
	}

	makerFill := makerLegResult{Filled: true, FilledSize: decimal.NewFromInt(1), FillPrice: decimal.NewFromInt(100)}
	result, err := c.runTakerLeg(context.Background(), makerFill, types.Buy)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.FilledSize.Equal(decimal.NewFromFloat(0.6)) {
		t.Errorf("expected the partial fill 0.6 to be kept, got %s", result.FilledSize)
	}
}

func TestRunTakerLegIgnoresUpdatesForUnrelatedOrders(t *testing.T) {
	taker := newFakeVenueClient()
	c := newTestController(newFakeVenueClient(), taker, decimal.Zero)

	taker.updates <- types.OrderUpdate{VenueID: "some-other-order", Status: types.StatusFilled, FilledSize: decimal.NewFromInt(99)}
	taker.updates <- types.OrderUpdate{VenueID: taker.marketOrderID, Status: types.StatusFilled, FilledSize: decimal.NewFromInt(1), FillPrice: decimal.NewFromFloat(99.5)}

	makerFill := makerLegResult{Filled: true, FilledSize: decimal.NewFromInt(1), FillPrice: decimal.NewFromInt(100)}
	result, err := c.runTakerLeg(context.Background(), makerFill, types.Buy)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.FilledSize.Equal(decimal.NewFromInt(1)) {
		t.Errorf("expected the stale update to be ignored, FilledSize = %s", result.FilledSize)
	}
}

func TestRefPriceForHedgeUsesMakerFillPrice(t *testing.T) {
	makerFill := makerLegResult{Filled: true, FilledSize: decimal.NewFromInt(1), FillPrice: decimal.NewFromFloat(100.25)}
	if got := refPriceForHedge(makerFill); !got.Equal(decimal.NewFromFloat(100.25)) {
		t.Errorf("refPriceForHedge() = %s, want 100.25", got)
	}
}
