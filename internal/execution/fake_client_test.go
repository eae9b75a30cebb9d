package execution

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"arbitrage-bot/pkg/types"
)

// fakeVenueClient is a minimal venue.Client double for exercising the
// maker/taker leg state machines and the controller's pipeline without a
// real exchange connection.
type fakeVenueClient struct {
	mu sync.Mutex

	bbo    types.BBOQuote
	bboErr error

	tick decimal.Decimal

	position    decimal.Decimal
	positionErr error

	limitOrderID  string
	limitErr      error
	marketOrderID string
	marketErr     error

	placedLimit  []placedLimitCall
	placedMarket []placedMarketCall
	canceled     []string
	cancelAllN   int

	// lastClientID records the client_id passed to the most recent
	// PlaceLimitOrder call, including one that returned an error — the
	// reconciliation path needs this even when the submit itself failed.
	lastClientID string

	// activeOrders is returned verbatim by ActiveOrders unless
	// activeOrdersEchoLast is set, in which case an entry matching
	// lastClientID (with the given status) is appended automatically so
	// tests don't need to predict venue.ClientID()'s generated value.
	activeOrders          []types.OrderInfo
	activeOrdersErr       error
	activeOrdersEchoLast  bool
	activeOrdersEchoID    string
	activeOrdersEchoStatus types.OrderStatus

	updates chan types.OrderUpdate
}

type placedLimitCall struct {
	side  types.Side
	price decimal.Decimal
	size  decimal.Decimal
}

type placedMarketCall struct {
	side     types.Side
	size     decimal.Decimal
	refPrice decimal.Decimal
}

func newFakeVenueClient() *fakeVenueClient {
	return &fakeVenueClient{
		tick:          decimal.NewFromFloat(0.01),
		limitOrderID:  "maker-order-1",
		marketOrderID: "taker-order-1",
		updates:       make(chan types.OrderUpdate, 8),
	}
}

func (f *fakeVenueClient) FetchBBO(ctx context.Context) (types.BBOQuote, error) { return f.bbo, f.bboErr }

func (f *fakeVenueClient) PlaceLimitOrder(ctx context.Context, side types.Side, price, size decimal.Decimal, clientID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastClientID = clientID
	if f.limitErr != nil {
		return "", f.limitErr
	}
	f.placedLimit = append(f.placedLimit, placedLimitCall{side: side, price: price, size: size})
	return f.limitOrderID, nil
}

func (f *fakeVenueClient) ActiveOrders(ctx context.Context) ([]types.OrderInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.activeOrdersErr != nil {
		return nil, f.activeOrdersErr
	}
	orders := append([]types.OrderInfo(nil), f.activeOrders...)
	if f.activeOrdersEchoLast {
		status := f.activeOrdersEchoStatus
		if status == "" {
			status = types.StatusOpen
		}
		orders = append(orders, types.OrderInfo{
			ClientID: f.lastClientID,
			VenueID:  f.activeOrdersEchoID,
			Status:   status,
		})
	}
	return orders, nil
}

func (f *fakeVenueClient) PlaceMarketOrder(ctx context.Context, side types.Side, size decimal.Decimal, refPrice decimal.Decimal, clientID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.marketErr != nil {
		return "", f.marketErr
	}
	f.placedMarket = append(f.placedMarket, placedMarketCall{side: side, size: size, refPrice: refPrice})
	return f.marketOrderID, nil
}

func (f *fakeVenueClient) CancelOrder(ctx context.Context, orderID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.canceled = append(f.canceled, orderID)
	return nil
}

func (f *fakeVenueClient) CancelAll(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelAllN++
	return nil
}

func (f *fakeVenueClient) Position(ctx context.Context) (decimal.Decimal, error) {
	return f.position, f.positionErr
}

func (f *fakeVenueClient) TickSize() decimal.Decimal { return f.tick }

func (f *fakeVenueClient) OrderUpdates() <-chan types.OrderUpdate { return f.updates }

func (f *fakeVenueClient) Start(ctx context.Context) error { return nil }

func (f *fakeVenueClient) Close() error { return nil }
