// Package pnlreport turns an append-only trade CSV (as written by
// internal/datalog) into a realized/unrealized PnL summary. It is a pure
// function over already-logged data: no network calls, no venue clients,
// so it can run long after a session has ended against whatever trade log
// survived it.
package pnlreport

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"arbitrage-bot/pkg/types"
)

// Trade is one row of a trade CSV.
type Trade struct {
	Venue     types.Venue
	Timestamp time.Time
	Side      types.Side
	Price     decimal.Decimal
	Quantity  decimal.Decimal
}

// VenueSummary aggregates every trade on one venue.
type VenueSummary struct {
	Venue       types.Venue
	TradeCount  int
	VolumeBase  decimal.Decimal // sum of |quantity|
	VolumeQuote decimal.Decimal // sum of |quantity| * price
	NetCashFlow decimal.Decimal // +sells, -buys
	NetPosition decimal.Decimal // +buys, -sells
}

// Report is the combined result across every venue seen in the log.
type Report struct {
	Venues      map[types.Venue]*VenueSummary
	MarkPrice   decimal.Decimal
	NetCashFlow decimal.Decimal
	NetPosition decimal.Decimal
	// GrossPnL is net cash flow plus the mark-to-market value of whatever
	// position is still open, mirroring the reference bot's
	// "cash flow + position * last price" gross PnL calculation.
	GrossPnL decimal.Decimal
}

// LoadTrades reads a trade CSV written by internal/datalog.Logger.LogTrade.
func LoadTrades(path string) ([]Trade, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if len(header) < 5 {
		return nil, fmt.Errorf("unexpected trade csv header: %v", header)
	}

	var trades []Trade
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read trade row: %w", err)
		}
		if len(row) < 5 {
			continue
		}
		ts, err := time.Parse(time.RFC3339Nano, row[1])
		if err != nil {
			return nil, fmt.Errorf("parse timestamp %q: %w", row[1], err)
		}
		price, err := decimal.NewFromString(row[3])
		if err != nil {
			return nil, fmt.Errorf("parse price %q: %w", row[3], err)
		}
		qty, err := decimal.NewFromString(row[4])
		if err != nil {
			return nil, fmt.Errorf("parse quantity %q: %w", row[4], err)
		}
		trades = append(trades, Trade{
			Venue:     types.Venue(row[0]),
			Timestamp: ts,
			Side:      types.Side(row[2]),
			Price:     price,
			Quantity:  qty,
		})
	}
	return trades, nil
}

// Summarize aggregates trades per venue and computes gross PnL against
// markPrice. If markPrice is zero, the last trade's price is used as a
// fallback mark, the same degraded-mode behavior the reference analysis
// script falls back to when no BBO log is available.
func Summarize(trades []Trade, markPrice decimal.Decimal) Report {
	report := Report{Venues: make(map[types.Venue]*VenueSummary)}

	for _, t := range trades {
		s, ok := report.Venues[t.Venue]
		if !ok {
			s = &VenueSummary{Venue: t.Venue}
			report.Venues[t.Venue] = s
		}

		s.TradeCount++
		s.VolumeBase = s.VolumeBase.Add(t.Quantity)
		s.VolumeQuote = s.VolumeQuote.Add(t.Quantity.Mul(t.Price))

		switch t.Side {
		case types.Buy:
			s.NetCashFlow = s.NetCashFlow.Sub(t.Price.Mul(t.Quantity))
			s.NetPosition = s.NetPosition.Add(t.Quantity)
		case types.Sell:
			s.NetCashFlow = s.NetCashFlow.Add(t.Price.Mul(t.Quantity))
			s.NetPosition = s.NetPosition.Sub(t.Quantity)
		}
	}

	if markPrice.IsZero() && len(trades) > 0 {
		markPrice = trades[len(trades)-1].Price
	}
	report.MarkPrice = markPrice

	for _, s := range report.Venues {
		report.NetCashFlow = report.NetCashFlow.Add(s.NetCashFlow)
		report.NetPosition = report.NetPosition.Add(s.NetPosition)
	}
	report.GrossPnL = report.NetCashFlow.Add(report.NetPosition.Mul(markPrice))

	return report
}
