package makerclient

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"arbitrage-bot/internal/feed"
	"arbitrage-bot/pkg/types"
)

const (
	readTimeout      = 90 * time.Second
	maxReconnectWait = 30 * time.Second
	writeTimeout     = 10 * time.Second
)

// wsFeed maintains the maker venue's market-data and user WebSocket
// connections with automatic reconnect. It never initiates application-
// level pings itself — the maker venue's protocol expects the client to
// stay silent between reads, unlike the taker venue.
type wsFeed struct {
	url        string
	contractID string
	cache      *feed.OrderBookCache
	orderCh    chan types.OrderUpdate

	connMu sync.Mutex
	conn   *websocket.Conn

	logger *slog.Logger
}

func newWSFeed(url, contractID string, cache *feed.OrderBookCache, logger *slog.Logger) *wsFeed {
	return &wsFeed{
		url:        url,
		contractID: contractID,
		cache:      cache,
		orderCh:    make(chan types.OrderUpdate, 64),
		logger:     logger.With("component", "maker_ws"),
	}
}

// Run connects and maintains the connection, reconnecting with exponential
// backoff (1s to 30s). A reconnect never clears the cache's last-known
// quote: a brief disconnect shouldn't make FetchBBO fall back to REST if
// the previous quote is still within the staleness window.
func (f *wsFeed) Run(ctx context.Context) error {
	backoff := time.Second

	for {
		err := f.connectAndRead(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		f.logger.Warn("maker websocket disconnected, reconnecting", "error", err, "backoff", backoff)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > maxReconnectWait {
			backoff = maxReconnectWait
		}
	}
}

func (f *wsFeed) Close() error {
	f.connMu.Lock()
	defer f.connMu.Unlock()
	if f.conn != nil {
		return f.conn.Close()
	}
	return nil
}

func (f *wsFeed) connectAndRead(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, f.url, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}

	f.connMu.Lock()
	f.conn = conn
	f.connMu.Unlock()
	defer func() {
		f.connMu.Lock()
		conn.Close()
		f.conn = nil
		f.connMu.Unlock()
	}()

	sub := map[string]any{
		"type":        "subscribe",
		"contract_id": f.contractID,
	}
	if err := conn.WriteJSON(sub); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}

	f.logger.Info("maker websocket connected")

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		f.dispatch(msg)
	}
}

func (f *wsFeed) dispatch(data []byte) {
	var envelope struct {
		EventType string `json:"event_type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return
	}

	switch envelope.EventType {
	case "book":
		var evt wsBookEvent
		if err := json.Unmarshal(data, &evt); err != nil || len(evt.Bids) == 0 || len(evt.Asks) == 0 {
			return
		}
		bid, err1 := decimal.NewFromString(evt.Bids[0].Price)
		ask, err2 := decimal.NewFromString(evt.Asks[0].Price)
		if err1 != nil || err2 != nil {
			return
		}
		f.cache.Update(types.BBOQuote{Venue: types.VenueMaker, Bid: bid, Ask: ask, Timestamp: time.Now()})

	case "order":
		var evt wsOrderEvent
		if err := json.Unmarshal(data, &evt); err != nil {
			return
		}
		select {
		case f.orderCh <- evt.toUpdate():
		default:
			f.logger.Warn("maker order channel full, dropping event", "order_id", evt.OrderID)
		}
	}
}
