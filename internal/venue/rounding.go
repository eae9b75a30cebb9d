package venue

import (
	"github.com/shopspring/decimal"

	"arbitrage-bot/pkg/types"
)

// RoundToTick rounds price to the nearest tick increment, truncating toward
// the passive side of the book: a resting Buy must never round up past the
// price that was computed from the ask (it would cross and lose post-only
// status), so Buy floors; a resting Sell must never round down past the
// price computed from the bid, so Sell ceils.
func RoundToTick(price, tick decimal.Decimal, side types.Side) decimal.Decimal {
	if tick.IsZero() {
		return price
	}
	units := price.Div(tick)
	switch side {
	case types.Buy:
		return units.Floor().Mul(tick)
	default:
		return units.Ceil().Mul(tick)
	}
}
