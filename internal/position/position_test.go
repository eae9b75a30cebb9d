package position

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"arbitrage-bot/internal/config"
	"arbitrage-bot/pkg/types"
)

type fakeClient struct {
	position    decimal.Decimal
	positionErr error
}

func (f *fakeClient) FetchBBO(ctx context.Context) (types.BBOQuote, error) { return types.BBOQuote{}, nil }
func (f *fakeClient) PlaceLimitOrder(ctx context.Context, side types.Side, price, size decimal.Decimal, clientID string) (string, error) {
	return "", nil
}
func (f *fakeClient) PlaceMarketOrder(ctx context.Context, side types.Side, size decimal.Decimal, refPrice decimal.Decimal, clientID string) (string, error) {
	return "", nil
}
func (f *fakeClient) CancelOrder(ctx context.Context, orderID string) error { return nil }
func (f *fakeClient) CancelAll(ctx context.Context) error                  { return nil }
func (f *fakeClient) ActiveOrders(ctx context.Context) ([]types.OrderInfo, error) {
	return nil, nil
}
func (f *fakeClient) Position(ctx context.Context) (decimal.Decimal, error) {
	return f.position, f.positionErr
}
func (f *fakeClient) TickSize() decimal.Decimal                 { return decimal.NewFromFloat(0.01) }
func (f *fakeClient) OrderUpdates() <-chan types.OrderUpdate    { return nil }
func (f *fakeClient) Start(ctx context.Context) error           { return nil }
func (f *fakeClient) Close() error                               { return nil }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() config.PositionConfig {
	return config.PositionConfig{
		ResyncInterval:  time.Hour,
		Tolerance:       "0.001",
		WarningInterval: time.Minute,
	}
}

func TestReportUpdatesState(t *testing.T) {
	maker := &fakeClient{}
	taker := &fakeClient{}
	tr := New(testConfig(), maker, taker, testLogger())

	tr.Report(Update{Venue: types.VenueMaker, Position: decimal.NewFromInt(5)})
	tr.apply(<-tr.updateCh)

	state := tr.State()
	if !state.MakerPosition.Equal(decimal.NewFromInt(5)) {
		t.Errorf("MakerPosition = %s, want 5", state.MakerPosition)
	}
	if state.OpenedAt.IsZero() {
		t.Error("expected OpenedAt to be set once a non-zero position is reported")
	}
}

func TestApplyClearsOpenedAtWhenFlat(t *testing.T) {
	maker := &fakeClient{}
	taker := &fakeClient{}
	tr := New(testConfig(), maker, taker, testLogger())

	tr.apply(Update{Venue: types.VenueMaker, Position: decimal.NewFromInt(5)})
	if tr.State().OpenedAt.IsZero() {
		t.Fatal("expected OpenedAt set after opening")
	}

	tr.apply(Update{Venue: types.VenueMaker, Position: decimal.Zero})
	if !tr.State().OpenedAt.IsZero() {
		t.Error("expected OpenedAt cleared once flat")
	}
}

func TestCheckNakedEmitsSignalOnSameSignExposure(t *testing.T) {
	maker := &fakeClient{}
	taker := &fakeClient{}
	tr := New(testConfig(), maker, taker, testLogger())

	tr.apply(Update{Venue: types.VenueMaker, Position: decimal.NewFromInt(5)})
	tr.apply(Update{Venue: types.VenueTaker, Position: decimal.NewFromInt(3)}) // same sign: naked

	select {
	case sig := <-tr.NakedCh():
		if !sig.State.IsNaked() {
			t.Error("expected naked signal's state to report IsNaked()")
		}
	default:
		t.Error("expected a naked signal to be emitted")
	}
}

func TestCheckNakedStaysQuietWhenOffsetting(t *testing.T) {
	maker := &fakeClient{}
	taker := &fakeClient{}
	tr := New(testConfig(), maker, taker, testLogger())

	tr.apply(Update{Venue: types.VenueMaker, Position: decimal.NewFromInt(5)})
	tr.apply(Update{Venue: types.VenueTaker, Position: decimal.NewFromInt(-5)})

	select {
	case sig := <-tr.NakedCh():
		t.Errorf("expected no naked signal for offsetting positions, got %+v", sig)
	default:
	}
}

func TestResyncReconcilesFromVenuesAndWarnsOnDrift(t *testing.T) {
	maker := &fakeClient{position: decimal.NewFromInt(10)}
	taker := &fakeClient{position: decimal.NewFromInt(-10)}
	tr := New(testConfig(), maker, taker, testLogger())

	tr.Resync(context.Background())

	state := tr.State()
	if !state.MakerPosition.Equal(decimal.NewFromInt(10)) || !state.TakerPosition.Equal(decimal.NewFromInt(-10)) {
		t.Errorf("expected resync to adopt venue-reported positions, got maker=%s taker=%s", state.MakerPosition, state.TakerPosition)
	}
}

func TestResyncSkipsUpdateWhenMakerQueryFails(t *testing.T) {
	maker := &fakeClient{positionErr: errors.New("venue unavailable")}
	taker := &fakeClient{position: decimal.NewFromInt(-10)}
	tr := New(testConfig(), maker, taker, testLogger())

	tr.apply(Update{Venue: types.VenueMaker, Position: decimal.NewFromInt(7)})
	tr.Resync(context.Background())

	state := tr.State()
	if !state.MakerPosition.Equal(decimal.NewFromInt(7)) {
		t.Errorf("expected maker position to remain at its last-applied value when resync fails, got %s", state.MakerPosition)
	}
}
