// Package types defines shared data structures used across all packages.
//
// This is the common vocabulary for the bot: venues, quotes, order tickets,
// and the signals the strategy layer produces. It has no dependencies on
// internal packages, so it can be imported by any layer. All prices and
// sizes are fixed-point decimals, never binary floats.
package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// Venue identifies one side of the cross-exchange pair.
type Venue string

const (
	VenueMaker Venue = "maker" // resting post-only limit orders
	VenueTaker Venue = "taker" // aggressive IOC hedges
)

// Side represents the direction of an order.
type Side string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

// OrderStatus enumerates the order lifecycle states tracked by MakerLeg.
type OrderStatus string

const (
	StatusNew             OrderStatus = "NEW"
	StatusOpen             OrderStatus = "OPEN"
	StatusPending          OrderStatus = "PENDING"
	StatusPartiallyFilled  OrderStatus = "PARTIALLY_FILLED"
	StatusCanceling        OrderStatus = "CANCELING"
	StatusCanceled         OrderStatus = "CANCELED"
	StatusFilled           OrderStatus = "FILLED"
	StatusRejected         OrderStatus = "REJECTED"
)

// IsTerminal reports whether the status will never transition further.
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case StatusFilled, StatusCanceled, StatusRejected:
		return true
	default:
		return false
	}
}

// BBOQuote is a best-bid/best-ask snapshot for one venue.
type BBOQuote struct {
	Venue     Venue
	Bid       decimal.Decimal
	Ask       decimal.Decimal
	Timestamp time.Time
}

// Valid reports whether both sides are present and crossed sanely.
func (q BBOQuote) Valid() bool {
	return q.Bid.IsPositive() && q.Ask.IsPositive() && q.Bid.LessThan(q.Ask)
}

// Mid returns the midpoint price.
func (q BBOQuote) Mid() decimal.Decimal {
	return q.Bid.Add(q.Ask).Div(decimal.NewFromInt(2))
}

// SpreadSample is one observation fed to the ThresholdEngine.
type SpreadSample struct {
	LongSpread  decimal.Decimal // taker.bid - maker.bid
	ShortSpread decimal.Decimal // maker.ask - taker.ask
	Timestamp   time.Time
}

// ThresholdState is the current output of the ThresholdEngine.
type ThresholdState struct {
	LongThreshold  decimal.Decimal
	ShortThreshold decimal.Decimal
	LongMean       decimal.Decimal
	LongStdDev     decimal.Decimal
	ShortMean      decimal.Decimal
	ShortStdDev    decimal.Decimal
	SampleCount    int
}

// PositionState is the reconciled, authoritative view of both venues'
// open positions for the traded instrument.
type PositionState struct {
	MakerPosition decimal.Decimal // signed: + long, - short
	TakerPosition decimal.Decimal
	OpenedAt      time.Time // zero if flat
	UpdatedAt     time.Time
}

// IsFlat reports whether both venues show zero position.
func (p PositionState) IsFlat() bool {
	return p.MakerPosition.IsZero() && p.TakerPosition.IsZero()
}

// IsNaked reports the hard-halt condition: both venues carry a non-zero
// position of the same sign (the hedge failed to offset the maker fill).
func (p PositionState) IsNaked() bool {
	if p.MakerPosition.IsZero() || p.TakerPosition.IsZero() {
		return false
	}
	return p.MakerPosition.Sign() == p.TakerPosition.Sign()
}

// HoldingTime returns how long the current position has been open.
func (p PositionState) HoldingTime(now time.Time) time.Duration {
	if p.OpenedAt.IsZero() {
		return 0
	}
	return now.Sub(p.OpenedAt)
}

// TradeSignal is what the opportunity detector hands to the TradeController.
type TradeSignal struct {
	Side          Side // Buy = open/add long on maker, Sell = open/add short on maker
	Size          decimal.Decimal
	LongSpread    decimal.Decimal
	ShortSpread   decimal.Decimal
	Threshold     decimal.Decimal
	IsClose       bool   // true when this trade reduces an existing position
	CloseStage    string // "default", "stage1_relaxed", "stage2_breakeven", "stage3_force"
	GeneratedAt   time.Time
}

// OrderTicket is the maker venue's resting post-only order, as tracked by
// the MakerLeg state machine.
type OrderTicket struct {
	ClientID   string // monotonic, locally generated (see venue.ClientID)
	VenueID    string // exchange-assigned order ID, empty until acknowledged
	Side       Side
	Price      decimal.Decimal
	Size       decimal.Decimal
	FilledSize decimal.Decimal
	Status     OrderStatus
	PlacedAt   time.Time
}

// RemainingSize returns the unfilled quantity.
func (t OrderTicket) RemainingSize() decimal.Decimal {
	return t.Size.Sub(t.FilledSize)
}

// OrderUpdate is a lifecycle event delivered by a venue's WebSocket feed.
type OrderUpdate struct {
	ClientID   string
	VenueID    string
	Status     OrderStatus
	FilledSize decimal.Decimal
	FillPrice  decimal.Decimal
	Timestamp  time.Time
}

// OrderInfo is one entry in a venue's active-orders listing, used to
// reconcile an order whose submit response was lost to a timeout.
type OrderInfo struct {
	ClientID   string
	VenueID    string
	Side       Side
	Price      decimal.Decimal
	Size       decimal.Decimal
	FilledSize decimal.Decimal
	Status     OrderStatus
}

// Fill is a single execution on one venue, used for CSV logging and PnL.
type Fill struct {
	Venue     Venue
	Side      Side
	Price     decimal.Decimal
	Size      decimal.Decimal
	Timestamp time.Time
	OrderID   string
}
