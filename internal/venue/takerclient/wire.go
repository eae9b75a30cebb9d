package takerclient

import (
	"fmt"

	"github.com/shopspring/decimal"

	"arbitrage-bot/pkg/types"
)

// orderBookResponse is the REST response shape for a depth-book read.
type orderBookResponse struct {
	Bids []struct {
		Price string `json:"price"`
	} `json:"bids"`
	Asks []struct {
		Price string `json:"price"`
	} `json:"asks"`
}

func (b orderBookResponse) bbo() (types.BBOQuote, error) {
	if len(b.Bids) == 0 || len(b.Asks) == 0 {
		return types.BBOQuote{}, fmt.Errorf("empty order book")
	}
	bid, err := decimal.NewFromString(b.Bids[0].Price)
	if err != nil {
		return types.BBOQuote{}, fmt.Errorf("parse bid: %w", err)
	}
	ask, err := decimal.NewFromString(b.Asks[0].Price)
	if err != nil {
		return types.BBOQuote{}, fmt.Errorf("parse ask: %w", err)
	}
	return types.BBOQuote{Venue: types.VenueTaker, Bid: bid, Ask: ask}, nil
}

type orderResponse struct {
	TxHash string `json:"tx_hash"`
}

// accountResponse is the REST shape of a Lighter-style account query: one
// entry per open position across all markets traded by the account.
type accountResponse struct {
	Positions []struct {
		MarketIndex int    `json:"market_id"`
		Sign        int    `json:"sign"`
		Position    string `json:"position"`
	} `json:"positions"`
}

func (r accountResponse) signedPosition(marketIndex int) (decimal.Decimal, error) {
	for _, p := range r.Positions {
		if p.MarketIndex != marketIndex {
			continue
		}
		size, err := decimal.NewFromString(p.Position)
		if err != nil {
			return decimal.Zero, fmt.Errorf("parse position: %w", err)
		}
		if p.Sign < 0 {
			size = size.Neg()
		}
		return size, nil
	}
	return decimal.Zero, nil
}

// activeOrdersResponse is the REST response shape for the account's active
// orders on one market, used to reconcile a sendTx call whose response was
// lost to a request timeout.
type activeOrdersResponse struct {
	Orders []struct {
		OrderIndex string `json:"order_index"`
		ClientID   string `json:"client_order_id"`
		IsAsk      bool   `json:"is_ask"`
		Price      string `json:"price"`
		BaseAmount string `json:"base_amount"`
		FilledBase string `json:"filled_base_amount"`
		Status     string `json:"status"`
	} `json:"orders"`
}

func (r activeOrdersResponse) orderInfos() ([]types.OrderInfo, error) {
	out := make([]types.OrderInfo, 0, len(r.Orders))
	for _, o := range r.Orders {
		price, err := decimal.NewFromString(o.Price)
		if err != nil {
			return nil, fmt.Errorf("parse price: %w", err)
		}
		size, err := decimal.NewFromString(o.BaseAmount)
		if err != nil {
			return nil, fmt.Errorf("parse base amount: %w", err)
		}
		filled, err := decimal.NewFromString(o.FilledBase)
		if err != nil {
			return nil, fmt.Errorf("parse filled base amount: %w", err)
		}
		side := types.Buy
		if o.IsAsk {
			side = types.Sell
		}
		out = append(out, types.OrderInfo{
			ClientID:   o.ClientID,
			VenueID:    o.OrderIndex,
			Side:       side,
			Price:      price,
			Size:       size,
			FilledSize: filled,
			Status:     normalizeStatus(o.Status),
		})
	}
	return out, nil
}

// wsOrderEvent is an order lifecycle notification from the account channel.
// Lighter's SDK exposes no REST order-status query, so this channel is the
// only source of fill and cancellation information for taker orders.
type wsOrderEvent struct {
	Type       string `json:"type"`
	OrderIndex string `json:"order_index"`
	ClientID   string `json:"client_order_id"`
	Status     string `json:"status"`
	FilledBase string `json:"filled_base_amount"`
	Price      string `json:"price"`
}

func (e wsOrderEvent) toUpdate() types.OrderUpdate {
	filled, _ := decimal.NewFromString(e.FilledBase)
	price, _ := decimal.NewFromString(e.Price)
	return types.OrderUpdate{
		ClientID:   e.ClientID,
		VenueID:    e.OrderIndex,
		Status:     normalizeStatus(e.Status),
		FilledSize: filled,
		FillPrice:  price,
	}
}

// normalizeStatus maps the taker venue's lowercase status vocabulary onto
// the shared OrderStatus type.
func normalizeStatus(raw string) types.OrderStatus {
	switch raw {
	case "open":
		return types.StatusOpen
	case "filled":
		return types.StatusFilled
	case "partially-filled", "partially_filled":
		return types.StatusPartiallyFilled
	case "canceled", "cancelled":
		return types.StatusCanceled
	case "rejected":
		return types.StatusRejected
	default:
		return types.StatusPending
	}
}

// wsBookEvent is a depth-book update from the market-data channel.
type wsBookEvent struct {
	Type string `json:"type"`
	Bids []struct {
		Price string `json:"price"`
	} `json:"bids"`
	Asks []struct {
		Price string `json:"price"`
	} `json:"asks"`
}
