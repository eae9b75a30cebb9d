// Package feed holds the most recent best-bid/best-ask quote each venue
// client's WebSocket feed has seen, tracking staleness so a silently-stuck
// feed doesn't drive stale trading decisions.
package feed

import (
	"sync"
	"time"

	"arbitrage-bot/pkg/types"
)

// OrderBookCache holds the most recent BBOQuote for one venue and reports
// whether it is still fresh enough to trade on.
type OrderBookCache struct {
	mu         sync.RWMutex
	quote      types.BBOQuote
	lastUpdate time.Time
	staleAfter time.Duration
}

// NewOrderBookCache creates a cache that considers a quote stale after
// staleAfter has elapsed since its last update.
func NewOrderBookCache(staleAfter time.Duration) *OrderBookCache {
	return &OrderBookCache{staleAfter: staleAfter}
}

// Update stores a new quote.
func (c *OrderBookCache) Update(q types.BBOQuote) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.quote = q
	c.lastUpdate = time.Now()
}

// Get returns the cached quote and whether it is present and fresh.
func (c *OrderBookCache) Get() (types.BBOQuote, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.lastUpdate.IsZero() {
		return types.BBOQuote{}, false
	}
	if time.Since(c.lastUpdate) > c.staleAfter {
		return c.quote, false
	}
	return c.quote, c.quote.Valid()
}

// IsStale reports whether the cache has no usable recent quote.
func (c *OrderBookCache) IsStale() bool {
	_, ok := c.Get()
	return !ok
}
