package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderItem is a frozen copy of a catalog line at checkout time.
type OrderItem struct {
	ProductID string          `json:"product"`
	Name      string          `json:"name"`
	Qty       int             `json:"qty"`
	Image     string          `json:"image"`
	Price     decimal.Decimal `json:"price"`
}

type ShippingAddress struct {
	Address    string `json:"address" validate:"required"`
	City       string `json:"city" validate:"required"`
	PostalCode string `json:"postalCode" validate:"required"`
	Country    string `json:"country" validate:"required"`
}

// PaymentResult is the settlement receipt reported by the payment processor.
type PaymentResult struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	UpdateTime   string `json:"update_time"`
	EmailAddress string `json:"email_address"`
}

// OrderUser is the purchaser reference, with name and email joined in on reads.
type OrderUser struct {
	ID    string `json:"_id"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

type Order struct {
	ID              string          `json:"_id"`
	User            OrderUser       `json:"user"`
	OrderItems      []OrderItem     `json:"orderItems"`
	ShippingAddress ShippingAddress `json:"shippingAddress"`
	PaymentMethod   string          `json:"paymentMethod"`
	ItemsPrice      decimal.Decimal `json:"itemsPrice"`
	TaxPrice        decimal.Decimal `json:"taxPrice"`
	ShippingPrice   decimal.Decimal `json:"shippingPrice"`
	TotalPrice      decimal.Decimal `json:"totalPrice"`
	IsPaid          bool            `json:"isPaid"`
	PaidAt          *time.Time      `json:"paidAt,omitempty"`
	PaymentResult   *PaymentResult  `json:"paymentResult,omitempty"`
	IsDelivered     bool            `json:"isDelivered"`
	DeliveredAt     *time.Time      `json:"deliveredAt,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

func (o *Order) ApplyTotals(t Totals) {
	o.ItemsPrice = t.ItemsPrice
	o.ShippingPrice = t.ShippingPrice
	o.TaxPrice = t.TaxPrice
	o.TotalPrice = t.TotalPrice
}

// AmountMinor is the order total in cents, as charged by the payment processor.
func (o *Order) AmountMinor() int64 {
	return MinorUnits(o.TotalPrice)
}

func (o *Order) OwnedBy(userID string) bool {
	return o.User.ID == userID
}

// CanPay reports whether receipt should be recorded. Re-settling with the same
// receipt id is a no-op (false, nil); a different receipt on a paid order is rejected.
func (o *Order) CanPay(receipt PaymentResult) (bool, error) {
	if receipt.ID == "" {
		return false, Invalid("Payment id is required")
	}
	if o.IsPaid {
		if o.PaymentResult != nil && o.PaymentResult.ID == receipt.ID {
			return false, nil
		}
		return false, ErrAlreadyPaid
	}
	return true, nil
}

func (o *Order) MarkPaid(receipt PaymentResult, at time.Time) {
	o.IsPaid = true
	o.PaidAt = &at
	o.PaymentResult = &receipt
	o.UpdatedAt = at
}

// CanDeliver enforces paid-before-delivered; delivered is terminal.
func (o *Order) CanDeliver() error {
	if !o.IsPaid {
		return ErrNotPaid
	}
	if o.IsDelivered {
		return ErrAlreadyDelivered
	}
	return nil
}

func (o *Order) MarkDelivered(at time.Time) {
	o.IsDelivered = true
	o.DeliveredAt = &at
	o.UpdatedAt = at
}
