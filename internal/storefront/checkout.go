package storefront

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/kavineshduraisamy/Wirstix-E-commerce/internal/cart"
	"github.com/kavineshduraisamy/Wirstix-E-commerce/internal/domain"
)

var (
	ErrEmptyCart       = errors.New("cart is empty")
	ErrMissingShipping = errors.New("shipping address is incomplete")
)

type CheckoutResult struct {
	Order        *domain.Order
	ClientSecret string
}

type Checkout struct {
	api    *Client
	store  cart.Store
	logger *slog.Logger
}

func NewCheckout(api *Client, store cart.Store, logger *slog.Logger) *Checkout {
	return &Checkout{api: api, store: store, logger: logger}
}

// Run places the order, clears the cart's lines, then opens a payment intent
// for the order total. If the intent fails, the created order is still
// returned alongside the error so payment can be retried against it.
func (c *Checkout) Run(ctx context.Context, basket *cart.Cart) (*CheckoutResult, error) {
	if basket.IsEmpty() {
		return nil, ErrEmptyCart
	}
	addr := basket.ShippingAddress
	if addr.Address == "" || addr.City == "" || addr.PostalCode == "" || addr.Country == "" {
		return nil, ErrMissingShipping
	}

	order, err := c.api.CreateOrder(ctx, basket)
	if err != nil {
		return nil, err
	}
	c.logger.Info("order placed", "order_id", order.ID, "total", order.TotalPrice.String())

	basket.ClearItems()
	if err := c.store.Save(ctx, basket); err != nil {
		return &CheckoutResult{Order: order}, fmt.Errorf("clear cart: %w", err)
	}

	secret, err := c.api.CreatePaymentIntent(ctx, order.AmountMinor(), order.ID)
	if err != nil {
		c.logger.Error("payment intent failed", "order_id", order.ID, "error", err)
		return &CheckoutResult{Order: order}, err
	}

	return &CheckoutResult{Order: order, ClientSecret: secret}, nil
}
