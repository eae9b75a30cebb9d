package execution

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"arbitrage-bot/internal/closepolicy"
	"arbitrage-bot/internal/config"
	"arbitrage-bot/internal/position"
	"arbitrage-bot/internal/threshold"
	"arbitrage-bot/pkg/types"
)

func testCloseSelector(t *testing.T) *closepolicy.Selector {
	t.Helper()
	sel, err := closepolicy.New(config.CloseConfig{
		CloseThresholdMultiplier: "0.5",
		MinCloseSpread:           "0.0",
		Stage1Hours:              1.0,
		Stage1CloseMultiplier:    "0.2",
		Stage1MinSpread:          "0.3",
		Stage2Hours:              2.0,
		Stage2CloseMultiplier:    "0.1",
		Stage2MinSpread:          "0.0",
		Stage3Hours:              3.0,
		Stage3CloseMultiplier:    "0.05",
		Stage3MinSpread:          "-0.5",
	})
	if err != nil {
		t.Fatalf("closepolicy.New: %v", err)
	}
	return sel
}

func testPositionConfig() config.PositionConfig {
	return config.PositionConfig{
		ResyncInterval:  time.Hour,
		Tolerance:       "0.001",
		WarningInterval: time.Minute,
	}
}

// TestTickExecutesLongSignalAndHedges drives a full tick() through a long
// entry signal: the maker leg fills immediately (pre-queued update), the
// taker hedge fills immediately (pre-queued update), and the trade's final
// position.Resync call adopts whatever the venues report, so the fakes'
// Position() values double as the expected post-trade state.
func TestTickExecutesLongSignalAndHedges(t *testing.T) {
	maker := newFakeVenueClient()
	maker.bbo = types.BBOQuote{Bid: decimal.NewFromInt(99), Ask: decimal.NewFromInt(100)}
	maker.position = decimal.NewFromInt(1)

	taker := newFakeVenueClient()
	taker.bbo = types.BBOQuote{Bid: decimal.NewFromInt(101), Ask: decimal.NewFromInt(102)}
	taker.position = decimal.NewFromInt(-1)

	maker.updates <- types.OrderUpdate{
		VenueID: maker.limitOrderID, Status: types.StatusFilled,
		FilledSize: decimal.NewFromInt(1), FillPrice: decimal.NewFromInt(102),
	}
	taker.updates <- types.OrderUpdate{
		VenueID: taker.marketOrderID, Status: types.StatusFilled,
		FilledSize: decimal.NewFromInt(1), FillPrice: decimal.NewFromInt(99),
	}

	thresholds := threshold.New(threshold.Config{
		UseDynamic:  false,
		StaticLong:  decimal.NewFromFloat(0.5),
		StaticShort: decimal.NewFromFloat(0.5),
	}, testLogger())

	positions := position.New(testPositionConfig(), maker, taker, testLogger())

	c := New(Config{OrderSize: decimal.NewFromInt(1), TickInterval: time.Hour}, maker, taker, thresholds, testCloseSelector(t), positions, testLogger())
	c.tick(context.Background())

	if len(maker.placedLimit) != 1 {
		t.Fatalf("expected one maker order placed, got %d", len(maker.placedLimit))
	}
	if len(taker.placedMarket) != 1 {
		t.Fatalf("expected one taker hedge placed, got %d", len(taker.placedMarket))
	}

	state := positions.State()
	if !state.MakerPosition.Equal(decimal.NewFromInt(1)) {
		t.Errorf("MakerPosition = %s, want 1", state.MakerPosition)
	}
	if !state.TakerPosition.Equal(decimal.NewFromInt(-1)) {
		t.Errorf("TakerPosition = %s, want -1", state.TakerPosition)
	}
}

// TestTickNoSignalPlacesNoOrders verifies a quiet tick (spreads below both
// thresholds) leaves both venues untouched.
func TestTickNoSignalPlacesNoOrders(t *testing.T) {
	maker := newFakeVenueClient()
	maker.bbo = types.BBOQuote{Bid: decimal.NewFromInt(100), Ask: decimal.NewFromFloat(100.1)}

	taker := newFakeVenueClient()
	taker.bbo = types.BBOQuote{Bid: decimal.NewFromFloat(99.95), Ask: decimal.NewFromFloat(100.05)}

	thresholds := threshold.New(threshold.Config{
		UseDynamic:  false,
		StaticLong:  decimal.NewFromInt(5),
		StaticShort: decimal.NewFromInt(5),
	}, testLogger())

	positions := position.New(testPositionConfig(), maker, taker, testLogger())
	c := New(Config{OrderSize: decimal.NewFromInt(1), TickInterval: time.Hour}, maker, taker, thresholds, testCloseSelector(t), positions, testLogger())
	c.tick(context.Background())

	if len(maker.placedLimit) != 0 || len(taker.placedMarket) != 0 {
		t.Error("expected no orders placed when spreads stay below threshold")
	}
}

// TestTickSkipsEvaluationWhenMakerBBOUnavailable asserts a failed BBO fetch
// aborts the tick before any spread evaluation or order placement.
func TestTickSkipsEvaluationWhenMakerBBOUnavailable(t *testing.T) {
	maker := newFakeVenueClient()
	maker.bboErr = context.DeadlineExceeded

	taker := newFakeVenueClient()
	taker.bbo = types.BBOQuote{Bid: decimal.NewFromInt(99), Ask: decimal.NewFromInt(100)}

	thresholds := threshold.New(threshold.Config{UseDynamic: false, StaticLong: decimal.NewFromFloat(0.1), StaticShort: decimal.NewFromFloat(0.1)}, testLogger())
	positions := position.New(testPositionConfig(), maker, taker, testLogger())
	c := New(Config{OrderSize: decimal.NewFromInt(1), TickInterval: time.Hour}, maker, taker, thresholds, testCloseSelector(t), positions, testLogger())
	c.tick(context.Background())

	if len(maker.placedLimit) != 0 || len(taker.placedMarket) != 0 {
		t.Error("expected no orders placed when the maker BBO fetch fails")
	}
}

// TestTickHaltsOnExcessivePositionDrift covers the hard stop guarding
// against a maker position that has drifted beyond twice the order size.
func TestTickHaltsOnExcessivePositionDrift(t *testing.T) {
	maker := newFakeVenueClient()
	maker.bbo = types.BBOQuote{Bid: decimal.NewFromInt(101), Ask: decimal.NewFromInt(102)}
	maker.position = decimal.NewFromInt(10)

	taker := newFakeVenueClient()
	taker.bbo = types.BBOQuote{Bid: decimal.NewFromInt(99), Ask: decimal.NewFromInt(100)}
	taker.position = decimal.NewFromInt(-10)

	thresholds := threshold.New(threshold.Config{UseDynamic: false, StaticLong: decimal.NewFromFloat(0.1), StaticShort: decimal.NewFromFloat(0.1)}, testLogger())
	positions := position.New(testPositionConfig(), maker, taker, testLogger())
	positions.Resync(context.Background()) // seed state past the drift limit before the tick runs

	c := New(Config{OrderSize: decimal.NewFromInt(1), TickInterval: time.Hour}, maker, taker, thresholds, testCloseSelector(t), positions, testLogger())
	c.tick(context.Background())

	if !c.halted {
		t.Error("expected the controller to halt when the maker position exceeds the drift limit")
	}
	if len(maker.placedLimit) != 0 {
		t.Error("expected no order placed on the tick that triggers the halt")
	}
}
