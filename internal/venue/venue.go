// Package venue defines the exchange-agnostic contract both the maker and
// taker clients implement, plus small helpers shared by every concrete
// client: retryable REST calls and client-order-id generation.
package venue

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"arbitrage-bot/pkg/types"
)

// Client is the abstraction the execution layer programs against. Both
// makerclient.Client and takerclient.Client implement it; TradeController,
// PositionTracker and the BBOFeed never import a concrete venue package
// directly, so a third venue can be added without touching core logic.
type Client interface {
	// FetchBBO returns the current best bid/ask, preferring the WebSocket
	// cache and falling back to REST when the feed isn't ready or stale.
	FetchBBO(ctx context.Context) (types.BBOQuote, error)

	// PlaceLimitOrder submits a resting limit order (post-only on the maker
	// venue; the taker client places a plain GTC limit). Returns the
	// venue-assigned order ID.
	PlaceLimitOrder(ctx context.Context, side types.Side, price, size decimal.Decimal, clientID string) (string, error)

	// PlaceMarketOrder submits an aggressive IOC order sized to guarantee
	// immediate execution against the current book. clientID lets the
	// caller correlate the resulting OrderUpdate stream back to this
	// specific ticket, the same way PlaceLimitOrder does.
	PlaceMarketOrder(ctx context.Context, side types.Side, size decimal.Decimal, refPrice decimal.Decimal, clientID string) (string, error)

	// CancelOrder cancels a resting order by venue ID.
	CancelOrder(ctx context.Context, orderID string) error

	// CancelAll cancels every open order on this venue for the traded
	// instrument.
	CancelAll(ctx context.Context) error

	// ActiveOrders lists every currently open order on this venue for the
	// traded instrument. Used to reconcile a submit whose response was lost
	// to a request timeout: the caller matches the returned entries by
	// client_id rather than assuming the order never reached the venue.
	ActiveOrders(ctx context.Context) ([]types.OrderInfo, error)

	// Position returns the authoritative signed position for the traded
	// instrument, queried fresh (not cached).
	Position(ctx context.Context) (decimal.Decimal, error)

	// TickSize returns the minimum price increment for the traded
	// instrument.
	TickSize() decimal.Decimal

	// OrderUpdates returns a channel of order lifecycle events from this
	// venue's user WebSocket feed.
	OrderUpdates() <-chan types.OrderUpdate

	// Start begins the venue's background connections (REST auth bootstrap,
	// WebSocket feeds). Blocks until ctx is cancelled.
	Start(ctx context.Context) error

	// Close releases any held connections.
	Close() error
}

// RetryExhausted is returned by Retry when every attempt failed.
type RetryExhausted struct {
	Attempts int
	Last     error
}

func (e *RetryExhausted) Error() string {
	return fmt.Sprintf("retry exhausted after %d attempts: %v", e.Attempts, e.Last)
}

func (e *RetryExhausted) Unwrap() error { return e.Last }

// Retry calls fn up to attempts times with a fixed delay between tries,
// returning the first successful result or a *RetryExhausted wrapping the
// last error. It stops early if ctx is cancelled.
func Retry[T any](ctx context.Context, attempts int, delay time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if attempt == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(delay):
		}
	}

	return zero, &RetryExhausted{Attempts: attempts, Last: lastErr}
}

// ClientID generates a locally unique, time-sortable client order id: a
// millisecond-resolution timestamp prefix (so logs sort chronologically and
// a venue's client_id-based filtering can recognize stale tickets from a
// previous run) plus a uuid suffix guarding against two tickets minted in
// the same millisecond.
func ClientID() string {
	return fmt.Sprintf("%d-%s", time.Now().UnixMilli(), uuid.NewString())
}
