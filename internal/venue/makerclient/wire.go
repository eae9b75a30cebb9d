package makerclient

import (
	"fmt"

	"github.com/shopspring/decimal"

	"arbitrage-bot/pkg/types"
)

// bookResponse is the REST response shape for a depth-book read.
type bookResponse struct {
	Data []struct {
		Bids []struct {
			Price string `json:"price"`
			Size  string `json:"size"`
		} `json:"bids"`
		Asks []struct {
			Price string `json:"price"`
			Size  string `json:"size"`
		} `json:"asks"`
	} `json:"data"`
}

func (b bookResponse) bbo() (types.BBOQuote, error) {
	if len(b.Data) == 0 || len(b.Data[0].Bids) == 0 || len(b.Data[0].Asks) == 0 {
		return types.BBOQuote{}, fmt.Errorf("empty order book")
	}
	bid, err := decimal.NewFromString(b.Data[0].Bids[0].Price)
	if err != nil {
		return types.BBOQuote{}, fmt.Errorf("parse bid: %w", err)
	}
	ask, err := decimal.NewFromString(b.Data[0].Asks[0].Price)
	if err != nil {
		return types.BBOQuote{}, fmt.Errorf("parse ask: %w", err)
	}
	return types.BBOQuote{Venue: types.VenueMaker, Bid: bid, Ask: ask}, nil
}

type orderResponse struct {
	OrderID string `json:"orderId"`
}

type positionResponse struct {
	Data struct {
		PositionList []struct {
			ContractID string `json:"contractId"`
			OpenSize   string `json:"openSize"`
		} `json:"positionList"`
	} `json:"data"`
}

func (r positionResponse) openSize(contractID string) (decimal.Decimal, error) {
	for _, p := range r.Data.PositionList {
		if p.ContractID == contractID {
			return decimal.NewFromString(p.OpenSize)
		}
	}
	return decimal.Zero, nil
}

// activeOrdersResponse is the REST response shape for the active-orders
// listing, used to reconcile a createOrder call whose response was lost
// to a request timeout.
type activeOrdersResponse struct {
	Data []struct {
		OrderID    string `json:"orderId"`
		ClientID   string `json:"clientOrderId"`
		Side       string `json:"side"`
		Price      string `json:"price"`
		Size       string `json:"size"`
		FilledSize string `json:"filledSize"`
		Status     string `json:"status"`
	} `json:"data"`
}

func (r activeOrdersResponse) orderInfos() ([]types.OrderInfo, error) {
	out := make([]types.OrderInfo, 0, len(r.Data))
	for _, o := range r.Data {
		price, err := decimal.NewFromString(o.Price)
		if err != nil {
			return nil, fmt.Errorf("parse price: %w", err)
		}
		size, err := decimal.NewFromString(o.Size)
		if err != nil {
			return nil, fmt.Errorf("parse size: %w", err)
		}
		filled, err := decimal.NewFromString(o.FilledSize)
		if err != nil {
			return nil, fmt.Errorf("parse filled size: %w", err)
		}
		out = append(out, types.OrderInfo{
			ClientID:   o.ClientID,
			VenueID:    o.OrderID,
			Side:       types.Side(o.Side),
			Price:      price,
			Size:       size,
			FilledSize: filled,
			Status:     types.OrderStatus(o.Status),
		})
	}
	return out, nil
}

// wsBookEvent is a full order book snapshot from the market channel.
type wsBookEvent struct {
	EventType string `json:"event_type"`
	Bids      []struct {
		Price string `json:"price"`
	} `json:"bids"`
	Asks []struct {
		Price string `json:"price"`
	} `json:"asks"`
}

// wsOrderEvent is an order lifecycle notification from the user channel.
type wsOrderEvent struct {
	EventType   string `json:"event_type"`
	OrderID     string `json:"orderId"`
	ClientID    string `json:"clientOrderId"`
	Status      string `json:"status"`
	FilledSize  string `json:"filledSize"`
	Price       string `json:"price"`
}

func (e wsOrderEvent) toUpdate() types.OrderUpdate {
	filled, _ := decimal.NewFromString(e.FilledSize)
	price, _ := decimal.NewFromString(e.Price)
	return types.OrderUpdate{
		ClientID:   e.ClientID,
		VenueID:    e.OrderID,
		Status:     types.OrderStatus(e.Status),
		FilledSize: filled,
		FillPrice:  price,
	}
}
