package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderEventType string

const (
	OrderCreated   OrderEventType = "order.created"
	OrderPaid      OrderEventType = "order.paid"
	OrderDelivered OrderEventType = "order.delivered"
)

type OrderEvent struct {
	Type      OrderEventType  `json:"type"`
	OrderID   string          `json:"order_id"`
	UserID    string          `json:"user_id"`
	Name      string          `json:"name,omitempty"`
	Email     string          `json:"email,omitempty"`
	Total     decimal.Decimal `json:"total"`
	Items     []OrderItem     `json:"items"`
	Timestamp time.Time       `json:"timestamp"`
}

func NewOrderEvent(t OrderEventType, o *Order, at time.Time) OrderEvent {
	return OrderEvent{
		Type:      t,
		OrderID:   o.ID,
		UserID:    o.User.ID,
		Name:      o.User.Name,
		Email:     o.User.Email,
		Total:     o.TotalPrice,
		Items:     o.OrderItems,
		Timestamp: at,
	}
}

// EventType names the event for message headers, so consumers can route
// without decoding the payload.
func (e OrderEvent) EventType() string {
	return string(e.Type)
}
