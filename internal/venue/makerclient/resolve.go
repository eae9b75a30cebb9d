package makerclient

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	"arbitrage-bot/internal/config"
)

// contractInfoResponse is the metadata-endpoint shape for a single contract.
type contractInfoResponse struct {
	Data []struct {
		ContractID string `json:"contractId"`
		ContractName string `json:"contractName"`
		TickSize   string `json:"tickSize"`
	} `json:"data"`
}

// ResolveContract looks up the contract ID and tick size for a human
// ticker (e.g. "BTCUSD") before a trading client is constructed, mirroring
// the teacher's practice of resolving market metadata once at startup
// rather than baking IDs into configuration.
func ResolveContract(ctx context.Context, cfg config.MakerConfig, ticker string) (contractID string, tickSize decimal.Decimal, err error) {
	httpClient := resty.New().SetBaseURL(cfg.BaseURL).SetTimeout(10 * time.Second)

	var result contractInfoResponse
	resp, err := httpClient.R().
		SetContext(ctx).
		SetResult(&result).
		Get("/meta/getMetaData")
	if err != nil {
		return "", decimal.Zero, fmt.Errorf("get contract metadata: %w", err)
	}
	if resp.StatusCode() >= 300 {
		return "", decimal.Zero, fmt.Errorf("get contract metadata: status %d: %s", resp.StatusCode(), resp.String())
	}

	for _, c := range result.Data {
		if c.ContractName == ticker {
			tick, err := decimal.NewFromString(c.TickSize)
			if err != nil {
				return "", decimal.Zero, fmt.Errorf("parse tick size: %w", err)
			}
			return c.ContractID, tick, nil
		}
	}
	return "", decimal.Zero, fmt.Errorf("ticker %q not found in maker venue contract list", ticker)
}
