package takerclient

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	"arbitrage-bot/internal/config"
)

// orderBooksResponse is the market-list metadata shape.
type orderBooksResponse struct {
	OrderBooks []struct {
		MarketID int    `json:"market_id"`
		Symbol   string `json:"symbol"`
		TickSize string `json:"price_tick_size"`
	} `json:"order_books"`
}

// ResolveMarket looks up the market index and tick size for a human ticker
// before a trading client is constructed.
func ResolveMarket(ctx context.Context, cfg config.TakerConfig, ticker string) (marketIndex int, tickSize decimal.Decimal, err error) {
	httpClient := resty.New().SetBaseURL(cfg.BaseURL).SetTimeout(10 * time.Second)

	var result orderBooksResponse
	resp, err := httpClient.R().
		SetContext(ctx).
		SetResult(&result).
		Get("/api/v1/orderBooks")
	if err != nil {
		return 0, decimal.Zero, fmt.Errorf("get order books: %w", err)
	}
	if resp.StatusCode() >= 300 {
		return 0, decimal.Zero, fmt.Errorf("get order books: status %d: %s", resp.StatusCode(), resp.String())
	}

	for _, m := range result.OrderBooks {
		if m.Symbol == ticker {
			tick, err := decimal.NewFromString(m.TickSize)
			if err != nil {
				return 0, decimal.Zero, fmt.Errorf("parse tick size: %w", err)
			}
			return m.MarketID, tick, nil
		}
	}
	return 0, decimal.Zero, fmt.Errorf("ticker %q not found in taker venue market list", ticker)
}
