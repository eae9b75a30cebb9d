// Package takerclient implements the VenueClient for the taker venue: a
// Lighter-shaped perpetuals exchange authenticated by account index and API
// key index, trading exclusively with aggressive IOC orders padded past the
// current quote to guarantee immediate execution.
package takerclient

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	"arbitrage-bot/internal/config"
	"arbitrage-bot/internal/feed"
	"arbitrage-bot/internal/venue"
	"arbitrage-bot/pkg/types"
)

// slippagePad is how far the taker venue's IOC order is priced past the
// current quote to guarantee it crosses and fills immediately: buys are
// padded up 0.5%, sells padded down 0.5%, mirroring the reference bot's
// fixed 1.005x/0.995x multipliers rather than walking the book depth.
var slippagePad = decimal.NewFromFloat(0.005)

// Client is the taker venue's VenueClient implementation.
type Client struct {
	http         *resty.Client
	rl           *venue.RateLimiter
	dryRun       bool
	accountIndex int
	apiKeyIndex  int
	privateKey   *ecdsa.PrivateKey
	marketIndex  int
	tickSize     decimal.Decimal
	logger       *slog.Logger

	cache *feed.OrderBookCache
	ws    *wsFeed

	lastWSWarn time.Time
}

// NewClient creates the taker venue client. marketIndex and tickSize are
// resolved from the venue's market-config endpoint by the caller.
func NewClient(cfg config.TakerConfig, marketIndex int, tickSize decimal.Decimal, dryRun bool, logger *slog.Logger) (*Client, error) {
	keyHex := cfg.PrivateKey
	if len(keyHex) >= 2 && keyHex[:2] == "0x" {
		keyHex = keyHex[2:]
	}
	privateKey, err := crypto.HexToECDSA(keyHex)
	if err != nil {
		return nil, fmt.Errorf("parse taker private key: %w", err)
	}

	httpClient := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(10 * time.Second).
		SetRetryCount(3).
		SetRetryWaitTime(500 * time.Millisecond).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r.StatusCode() >= 500
		}).
		SetHeader("Content-Type", "application/json")

	c := &Client{
		http:         httpClient,
		rl:           venue.NewRateLimiter(),
		dryRun:       dryRun,
		accountIndex: cfg.AccountIndex,
		apiKeyIndex:  cfg.APIKeyIndex,
		privateKey:   privateKey,
		marketIndex:  marketIndex,
		tickSize:     tickSize,
		logger:       logger.With("component", "taker_client"),
		cache:        feed.NewOrderBookCache(5 * time.Second),
	}
	c.ws = newWSFeed(cfg.WSURL, cfg.AccountIndex, c.cache, logger)

	return c, nil
}

// Start begins the WebSocket feed. Unlike the maker venue, the taker venue
// needs no credential-derivation step before trading.
func (c *Client) Start(ctx context.Context) error {
	return c.ws.Run(ctx)
}

func (c *Client) Close() error { return c.ws.Close() }

func (c *Client) TickSize() decimal.Decimal { return c.tickSize }

func (c *Client) OrderUpdates() <-chan types.OrderUpdate { return c.ws.orderCh }

// FetchBBO prefers the WebSocket cache, falling back to REST.
func (c *Client) FetchBBO(ctx context.Context) (types.BBOQuote, error) {
	if q, ok := c.cache.Get(); ok {
		return q, nil
	}

	if time.Since(c.lastWSWarn) > time.Minute {
		c.lastWSWarn = time.Now()
		c.logger.Warn("taker websocket bbo unavailable, falling back to REST")
	}

	if err := c.rl.Book.Wait(ctx); err != nil {
		return types.BBOQuote{}, err
	}

	var book orderBookResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("market_id", fmt.Sprintf("%d", c.marketIndex)).
		SetResult(&book).
		Get("/api/v1/orderBookDetails")
	if err != nil {
		return types.BBOQuote{}, fmt.Errorf("get book: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return types.BBOQuote{}, fmt.Errorf("get book: status %d: %s", resp.StatusCode(), resp.String())
	}
	return book.bbo()
}

// PlaceMarketOrder submits an IOC order padded past the current quote to
// guarantee a fill: buys price at ask*(1+pad), sells at bid*(1-pad).
func (c *Client) PlaceMarketOrder(ctx context.Context, side types.Side, size decimal.Decimal, refPrice decimal.Decimal, clientID string) (string, error) {
	q, ok := c.cache.Get()
	if !ok {
		var err error
		q, err = c.FetchBBO(ctx)
		if err != nil {
			return "", fmt.Errorf("taker order book not ready: %w", err)
		}
	}

	var price decimal.Decimal
	if side == types.Buy {
		price = q.Ask.Mul(decimal.NewFromInt(1).Add(slippagePad))
	} else {
		price = q.Bid.Mul(decimal.NewFromInt(1).Sub(slippagePad))
	}
	price = venue.RoundToTick(price, c.tickSize, side)

	if c.dryRun {
		c.logger.Info("DRY-RUN: would place taker IOC order", "side", side, "size", size, "price", price)
		return "dry-run-ioc", nil
	}
	if err := c.rl.Order.Wait(ctx); err != nil {
		return "", err
	}

	payload := map[string]any{
		"market_index":    c.marketIndex,
		"account_index":   c.accountIndex,
		"api_key_index":   c.apiKeyIndex,
		"client_order_id": clientID,
		"base_amount":     size.String(),
		"price":           price.String(),
		"is_ask":          side == types.Sell,
		"order_type":      "LIMIT",
		"time_in_force":   "IOC",
	}
	sig, err := c.signTx(payload)
	if err != nil {
		return "", fmt.Errorf("sign order: %w", err)
	}
	payload["signature"] = sig

	var result orderResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(payload).
		SetResult(&result).
		Post("/api/v1/sendTx")
	if err != nil {
		return "", fmt.Errorf("place ioc order: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return "", fmt.Errorf("place ioc order: status %d: %s", resp.StatusCode(), resp.String())
	}

	return result.TxHash, nil
}

// PlaceLimitOrder is not part of this venue's role in the strategy (the
// taker venue only ever hedges with IOC orders) but is implemented to
// satisfy venue.Client so the shutdown coordinator can treat both venues
// uniformly if a naked taker-side position ever needs a resting order
// cancelled through the same code path; it places a GTC limit order.
func (c *Client) PlaceLimitOrder(ctx context.Context, side types.Side, price, size decimal.Decimal, clientID string) (string, error) {
	if c.dryRun {
		c.logger.Info("DRY-RUN: would place taker limit order", "side", side, "price", price, "size", size)
		return "dry-run-" + clientID, nil
	}
	if err := c.rl.Order.Wait(ctx); err != nil {
		return "", err
	}

	payload := map[string]any{
		"market_index":    c.marketIndex,
		"account_index":   c.accountIndex,
		"api_key_index":   c.apiKeyIndex,
		"client_order_id": clientID,
		"base_amount":     size.String(),
		"price":           price.String(),
		"is_ask":          side == types.Sell,
		"order_type":      "LIMIT",
		"time_in_force":   "GTC",
	}
	sig, err := c.signTx(payload)
	if err != nil {
		return "", fmt.Errorf("sign order: %w", err)
	}
	payload["signature"] = sig

	var result orderResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(payload).
		SetResult(&result).
		Post("/api/v1/sendTx")
	if err != nil {
		return "", fmt.Errorf("place limit order: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return "", fmt.Errorf("place limit order: status %d: %s", resp.StatusCode(), resp.String())
	}
	return result.TxHash, nil
}

// CancelOrder is a no-op in practice (IOC orders never rest) but kept so
// venue.Client stays uniform across both venues.
func (c *Client) CancelOrder(ctx context.Context, orderID string) error {
	if c.dryRun {
		return nil
	}
	if err := c.rl.Cancel.Wait(ctx); err != nil {
		return err
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]any{"account_index": c.accountIndex, "order_id": orderID}).
		Post("/api/v1/cancelOrder")
	if err != nil {
		return fmt.Errorf("cancel order: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("cancel order: status %d: %s", resp.StatusCode(), resp.String())
	}
	return nil
}

func (c *Client) CancelAll(ctx context.Context) error {
	if c.dryRun {
		return nil
	}
	if err := c.rl.Cancel.Wait(ctx); err != nil {
		return err
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]any{"account_index": c.accountIndex, "market_index": c.marketIndex}).
		Post("/api/v1/cancelAllOrders")
	if err != nil {
		return fmt.Errorf("cancel all: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("cancel all: status %d: %s", resp.StatusCode(), resp.String())
	}
	return nil
}

// ActiveOrders lists every currently open order for the traded market,
// used to reconcile a sendTx call whose response was lost to a request
// timeout.
func (c *Client) ActiveOrders(ctx context.Context) ([]types.OrderInfo, error) {
	if err := c.rl.Book.Wait(ctx); err != nil {
		return nil, err
	}

	var result activeOrdersResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("account_index", fmt.Sprintf("%d", c.accountIndex)).
		SetQueryParam("market_id", fmt.Sprintf("%d", c.marketIndex)).
		SetResult(&result).
		Get("/api/v1/accountActiveOrders")
	if err != nil {
		return nil, fmt.Errorf("get active orders: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("get active orders: status %d: %s", resp.StatusCode(), resp.String())
	}

	return result.orderInfos()
}

// signTx signs a canonical rendering of the transaction payload with the
// account's private key, the taker venue's substitute for the maker venue's
// derived HMAC secret.
func (c *Client) signTx(payload map[string]any) (string, error) {
	canonical, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	return signPayload(c.privateKey, crypto.Keccak256(canonical))
}

// Position queries the authoritative signed position for the traded market.
func (c *Client) Position(ctx context.Context) (decimal.Decimal, error) {
	if err := c.rl.Book.Wait(ctx); err != nil {
		return decimal.Zero, err
	}

	var result accountResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("by", "index").
		SetQueryParam("value", fmt.Sprintf("%d", c.accountIndex)).
		SetResult(&result).
		Get("/api/v1/account")
	if err != nil {
		return decimal.Zero, fmt.Errorf("get account: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return decimal.Zero, fmt.Errorf("get account: status %d: %s", resp.StatusCode(), resp.String())
	}

	return result.signedPosition(c.marketIndex)
}
