package order

import (
	"context"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Event types appended to the outbox.
const (
	EventPlaced        = "order.placed"
	EventDetailUpdated = "order.detail_updated"
	EventStatusChanged = "order.status_changed"
	EventUpdated       = "order.updated"
	EventDeleted       = "order.deleted"
)

// Event is a state change recorded in the same transaction as the change.
type Event struct {
	AggregateID string
	Type        string
	Payload     []byte
}

// EventWriter appends events to the transactional outbox.
type EventWriter interface {
	Append(ctx context.Context, e Event) error
}

type linePayload struct {
	DetailID  string           `json:"detail_id"`
	ProductID string           `json:"product_id"`
	Quantity  int              `json:"quantity"`
	Price     decimal.Decimal  `json:"price"`
	Discount  *decimal.Decimal `json:"discount,omitempty"`
}

type orderPayload struct {
	OrderID         string           `json:"order_id"`
	UserID          string           `json:"user_id,omitempty"`
	Status          Status           `json:"status,omitempty"`
	Total           decimal.Decimal  `json:"total"`
	Shipping        decimal.Decimal  `json:"shipping"`
	GeneralDiscount *decimal.Decimal `json:"general_discount,omitempty"`
	Lines           []linePayload    `json:"lines,omitempty"`
	OccurredAt      time.Time        `json:"occurred_at"`
}

func toLine(d Detail) linePayload {
	return linePayload{
		DetailID:  d.ID,
		ProductID: d.ProductID,
		Quantity:  d.Quantity,
		Price:     d.Price,
		Discount:  d.Discount,
	}
}

func orderEvent(typ string, o *Order, at time.Time) (Event, error) {
	p := orderPayload{
		OrderID:         o.ID,
		UserID:          o.UserID,
		Status:          o.Status,
		Total:           o.Total,
		Shipping:        o.Shipping,
		GeneralDiscount: o.GeneralDiscount,
		OccurredAt:      at,
	}
	for _, d := range o.Details {
		p.Lines = append(p.Lines, toLine(d))
	}
	data, err := json.Marshal(p)
	if err != nil {
		return Event{}, err
	}
	return Event{AggregateID: o.ID, Type: typ, Payload: data}, nil
}

type detailPayload struct {
	linePayload
	OrderID           string    `json:"order_id"`
	PreviousProductID string    `json:"previous_product_id"`
	PreviousQuantity  int       `json:"previous_quantity"`
	OccurredAt        time.Time `json:"occurred_at"`
}

func detailEvent(d *Detail, prevProductID string, prevQuantity int, at time.Time) (Event, error) {
	data, err := json.Marshal(detailPayload{
		linePayload:       toLine(*d),
		OrderID:           d.OrderID,
		PreviousProductID: prevProductID,
		PreviousQuantity:  prevQuantity,
		OccurredAt:        at,
	})
	if err != nil {
		return Event{}, err
	}
	return Event{AggregateID: d.OrderID, Type: EventDetailUpdated, Payload: data}, nil
}
