package makerclient

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	"arbitrage-bot/internal/config"
	"arbitrage-bot/internal/feed"
	"arbitrage-bot/internal/venue"
	"arbitrage-bot/pkg/types"
)

// Client is the maker venue's VenueClient implementation.
type Client struct {
	http      *resty.Client
	auth      *auth
	rl        *venue.RateLimiter
	dryRun    bool
	contractID string
	tickSize  decimal.Decimal
	logger    *slog.Logger

	cache *feed.OrderBookCache
	ws    *wsFeed

	lastWSWarn time.Time
}

// NewClient creates the maker venue client. contractID and tickSize are
// resolved from the venue's contract-info endpoint by the caller (cmd/arbitrage)
// and passed in, mirroring the teacher's startup sequence of "resolve
// contract info, then build the trading client."
func NewClient(cfg config.MakerConfig, contractID string, tickSize decimal.Decimal, dryRun bool, logger *slog.Logger) (*Client, error) {
	a, err := newAuth(cfg)
	if err != nil {
		return nil, err
	}

	httpClient := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(10 * time.Second).
		SetRetryCount(3).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r.StatusCode() >= 500
		}).
		SetHeader("Content-Type", "application/json")

	c := &Client{
		http:       httpClient,
		auth:       a,
		rl:         venue.NewRateLimiter(),
		dryRun:     dryRun,
		contractID: contractID,
		tickSize:   tickSize,
		logger:     logger.With("component", "maker_client"),
		cache:      feed.NewOrderBookCache(5 * time.Second),
	}
	c.ws = newWSFeed(cfg.WSURL, contractID, c.cache, logger)

	return c, nil
}

// Start derives L2 credentials (if not already configured) and begins the
// WebSocket feed. Blocks until ctx is cancelled.
func (c *Client) Start(ctx context.Context) error {
	if !c.auth.hasCredentials() {
		if err := c.deriveAPIKey(ctx); err != nil {
			return fmt.Errorf("derive api key: %w", err)
		}
	}
	return c.ws.Run(ctx)
}

// Close releases the WebSocket connection.
func (c *Client) Close() error {
	return c.ws.Close()
}

// TickSize returns the instrument's minimum price increment.
func (c *Client) TickSize() decimal.Decimal { return c.tickSize }

// OrderUpdates returns the order lifecycle event channel from the user feed.
func (c *Client) OrderUpdates() <-chan types.OrderUpdate { return c.ws.orderCh }

func (c *Client) deriveAPIKey(ctx context.Context) error {
	headers, err := c.auth.l1Headers()
	if err != nil {
		return err
	}

	var result credentials
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeaders(headers).
		SetResult(&result).
		Get("/auth/derive-api-key")
	if err != nil {
		return fmt.Errorf("derive api key: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("derive api key: status %d: %s", resp.StatusCode(), resp.String())
	}

	c.auth.setCredentials(result)
	c.logger.Info("maker api key derived")
	return nil
}

// FetchBBO prefers the WebSocket cache and falls back to a REST book read
// when the cache is empty or stale, rate-limiting the fallback warning so a
// sustained outage doesn't spam the log.
func (c *Client) FetchBBO(ctx context.Context) (types.BBOQuote, error) {
	if q, ok := c.cache.Get(); ok {
		return q, nil
	}

	if time.Since(c.lastWSWarn) > time.Minute {
		c.lastWSWarn = time.Now()
		c.logger.Warn("maker websocket bbo unavailable, falling back to REST")
	}

	if err := c.rl.Book.Wait(ctx); err != nil {
		return types.BBOQuote{}, err
	}

	var book bookResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("contract_id", c.contractID).
		SetResult(&book).
		Get("/quote/getOrderBookDepth")
	if err != nil {
		return types.BBOQuote{}, fmt.Errorf("get book: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return types.BBOQuote{}, fmt.Errorf("get book: status %d: %s", resp.StatusCode(), resp.String())
	}

	q, err := book.bbo()
	if err != nil {
		return types.BBOQuote{}, err
	}
	return q, nil
}

// PlaceLimitOrder submits a post-only resting limit order.
func (c *Client) PlaceLimitOrder(ctx context.Context, side types.Side, price, size decimal.Decimal, clientID string) (string, error) {
	if c.dryRun {
		c.logger.Info("DRY-RUN: would place maker limit order", "side", side, "price", price, "size", size)
		return "dry-run-" + clientID, nil
	}
	if err := c.rl.Order.Wait(ctx); err != nil {
		return "", err
	}

	payload := map[string]any{
		"contractId":    c.contractID,
		"side":          string(side),
		"size":          size.String(),
		"price":         price.String(),
		"postOnly":      true,
		"clientOrderId": clientID,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal order: %w", err)
	}
	headers, err := c.auth.l2Headers("POST", "/order/createOrder", string(body))
	if err != nil {
		return "", fmt.Errorf("l2 headers: %w", err)
	}

	var result orderResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeaders(headers).
		SetBody(payload).
		SetResult(&result).
		Post("/order/createOrder")
	if err != nil {
		return "", fmt.Errorf("place order: %w", err)
	}
	if resp.StatusCode() != http.StatusOK || result.OrderID == "" {
		return "", fmt.Errorf("place order: status %d: %s", resp.StatusCode(), resp.String())
	}

	return result.OrderID, nil
}

// PlaceMarketOrder submits an aggressive crossing order used only during
// the shutdown flatten step: a limit order priced at refPrice (the shutdown
// caller passes the opposite side's quote), without post_only, so it fills immediately like a market
// order while staying within the venue's limit-order API surface.
func (c *Client) PlaceMarketOrder(ctx context.Context, side types.Side, size decimal.Decimal, refPrice decimal.Decimal, clientID string) (string, error) {
	if c.dryRun {
		c.logger.Info("DRY-RUN: would place maker flatten order", "side", side, "size", size)
		return "dry-run-flatten", nil
	}
	if err := c.rl.Order.Wait(ctx); err != nil {
		return "", err
	}

	payload := map[string]any{
		"contractId":    c.contractID,
		"side":          string(side),
		"size":          size.String(),
		"price":         refPrice.String(),
		"postOnly":      false,
		"clientOrderId": clientID,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal order: %w", err)
	}
	headers, err := c.auth.l2Headers("POST", "/order/createOrder", string(body))
	if err != nil {
		return "", fmt.Errorf("l2 headers: %w", err)
	}

	var result orderResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeaders(headers).
		SetBody(payload).
		SetResult(&result).
		Post("/order/createOrder")
	if err != nil {
		return "", fmt.Errorf("place flatten order: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return "", fmt.Errorf("place flatten order: status %d: %s", resp.StatusCode(), resp.String())
	}

	return result.OrderID, nil
}

// CancelOrder cancels a single resting order.
func (c *Client) CancelOrder(ctx context.Context, orderID string) error {
	if c.dryRun {
		c.logger.Info("DRY-RUN: would cancel maker order", "order_id", orderID)
		return nil
	}
	if err := c.rl.Cancel.Wait(ctx); err != nil {
		return err
	}

	body := fmt.Sprintf(`{"orderId":"%s"}`, orderID)
	headers, err := c.auth.l2Headers("POST", "/order/cancelOrder", body)
	if err != nil {
		return fmt.Errorf("l2 headers: %w", err)
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetHeaders(headers).
		SetBody(json.RawMessage(body)).
		Post("/order/cancelOrder")
	if err != nil {
		return fmt.Errorf("cancel order: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("cancel order: status %d: %s", resp.StatusCode(), resp.String())
	}
	return nil
}

// CancelAll cancels every open order for the traded contract.
func (c *Client) CancelAll(ctx context.Context) error {
	if c.dryRun {
		c.logger.Info("DRY-RUN: would cancel all maker orders")
		return nil
	}
	if err := c.rl.Cancel.Wait(ctx); err != nil {
		return err
	}

	body := fmt.Sprintf(`{"contractId":"%s"}`, c.contractID)
	headers, err := c.auth.l2Headers("POST", "/order/cancelAllOrders", body)
	if err != nil {
		return fmt.Errorf("l2 headers: %w", err)
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetHeaders(headers).
		SetBody(json.RawMessage(body)).
		Post("/order/cancelAllOrders")
	if err != nil {
		return fmt.Errorf("cancel all: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("cancel all: status %d: %s", resp.StatusCode(), resp.String())
	}

	c.logger.Warn("all maker orders cancelled")
	return nil
}

// ActiveOrders lists every currently open order for the traded contract,
// used to reconcile a createOrder call whose response was lost to a
// request timeout.
func (c *Client) ActiveOrders(ctx context.Context) ([]types.OrderInfo, error) {
	if err := c.rl.Book.Wait(ctx); err != nil {
		return nil, err
	}

	headers, err := c.auth.l2Headers("GET", "/order/activeOrders", "")
	if err != nil {
		return nil, fmt.Errorf("l2 headers: %w", err)
	}

	var result activeOrdersResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeaders(headers).
		SetQueryParam("contract_id", c.contractID).
		SetResult(&result).
		Get("/order/activeOrders")
	if err != nil {
		return nil, fmt.Errorf("get active orders: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("get active orders: status %d: %s", resp.StatusCode(), resp.String())
	}

	return result.orderInfos()
}

// Position queries the authoritative open position for the traded contract.
func (c *Client) Position(ctx context.Context) (decimal.Decimal, error) {
	if err := c.rl.Book.Wait(ctx); err != nil {
		return decimal.Zero, err
	}

	headers, err := c.auth.l2Headers("GET", "/account/getPositions", "")
	if err != nil {
		return decimal.Zero, fmt.Errorf("l2 headers: %w", err)
	}

	var result positionResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeaders(headers).
		SetQueryParam("contract_id", c.contractID).
		SetResult(&result).
		Get("/account/getPositions")
	if err != nil {
		return decimal.Zero, fmt.Errorf("get positions: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return decimal.Zero, fmt.Errorf("get positions: status %d: %s", resp.StatusCode(), resp.String())
	}

	return result.openSize(c.contractID)
}
