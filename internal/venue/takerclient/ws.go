package takerclient

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
	pingInterval     = 20 * time.Second
)

// wsFeed maintains the taker venue's market-data and account WebSocket
// connection with automatic reconnect. Unlike the maker venue, it sends a
// periodic application-level ping to keep the connection alive: the taker
// venue's gateway drops idle connections well inside the 90s read deadline
// if the client stays silent.
type wsFeed struct {
	url          string
	accountIndex int
	cache        *feed.OrderBookCache
	orderCh      chan types.OrderUpdate

	connMu sync.Mutex
	conn   *websocket.Conn

	logger *slog.Logger
}

func newWSFeed(url string, accountIndex int, cache *feed.OrderBookCache, logger *slog.Logger) *wsFeed {
	return &wsFeed{
		url:          url,
		accountIndex: accountIndex,
		cache:        cache,
		orderCh:      make(chan types.OrderUpdate, 64),
		logger:       logger.With("component", "taker_ws"),
	}
}

func (f *wsFeed) Run(ctx context.Context) error {
	backoff := time.Second

	for {
		err := f.connectAndRead(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		f.logger.Warn("taker websocket disconnected, reconnecting", "error", err, "backoff", backoff)

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
		"type":          "subscribe",
		"account_index": f.accountIndex,
	}
	if err := conn.WriteJSON(sub); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}

	f.logger.Info("taker websocket connected")

	readErrCh := make(chan error, 1)
	go f.readLoop(conn, readErrCh)

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-readErrCh:
			return err
		case <-ticker.C:
			f.connMu.Lock()
			err := conn.WriteJSON(map[string]string{"type": "ping"})
			f.connMu.Unlock()
			if err != nil {
				return fmt.Errorf("ping: %w", err)
			}
		}
	}
}

func (f *wsFeed) readLoop(conn *websocket.Conn, errCh chan<- error) {
	for {
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			errCh <- fmt.Errorf("read: %w", err)
			return
		}
		f.dispatch(msg)
	}
}

func (f *wsFeed) dispatch(data []byte) {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return
	}

	switch envelope.Type {
	case "pong":
		return

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
		f.cache.Update(types.BBOQuote{Venue: types.VenueTaker, Bid: bid, Ask: ask, Timestamp: time.Now()})

	case "order_update":
		var evt wsOrderEvent
		if err := json.Unmarshal(data, &evt); err != nil {
			return
		}
		select {
		case f.orderCh <- evt.toUpdate():
		default:
			f.logger.Warn("taker order channel full, dropping event", "order_index", evt.OrderIndex)
		}
	}
}
