// Package storefront is a client for the Wristix API used by command-line
// shoppers. It drives the same endpoints the web storefront does.
package storefront

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/kavineshduraisamy/Wirstix-E-commerce/internal/cart"
	"github.com/kavineshduraisamy/Wirstix-E-commerce/internal/domain"
)

// APIError is a non-2xx answer from the API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api returned %d: %s", e.StatusCode, e.Message)
}

type messageBody struct {
	Message string `json:"message"`
}

type Client struct {
	http *resty.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json").
		SetTransport(otelhttp.NewTransport(http.DefaultTransport))

	return &Client{http: client}
}

// SetToken authenticates later requests with a bearer session token.
func (c *Client) SetToken(token string) {
	c.http.SetAuthToken(token)
}

// Login opens a session and keeps its token for later calls.
func (c *Client) Login(ctx context.Context, email, password string) (*domain.Profile, error) {
	var profile domain.Profile
	err := c.do(ctx, http.MethodPost, "/api/users/login", map[string]string{
		"email":    email,
		"password": password,
	}, &profile)
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	c.SetToken(profile.Token)
	return &profile, nil
}

func (c *Client) Product(ctx context.Context, id string) (*domain.Product, error) {
	var product domain.Product
	if err := c.do(ctx, http.MethodGet, "/api/products/"+id, nil, &product); err != nil {
		return nil, fmt.Errorf("get product %s: %w", id, err)
	}
	return &product, nil
}

type orderLine struct {
	ProductID string `json:"product"`
	Name      string `json:"name"`
	Qty       int    `json:"qty"`
	Image     string `json:"image"`
}

type createOrderBody struct {
	OrderItems      []orderLine            `json:"orderItems"`
	ShippingAddress domain.ShippingAddress `json:"shippingAddress"`
	PaymentMethod   string                 `json:"paymentMethod"`
}

// CreateOrder places an order for the cart's lines. Prices are not sent;
// the server prices the order from the catalog.
func (c *Client) CreateOrder(ctx context.Context, basket *cart.Cart) (*domain.Order, error) {
	body := createOrderBody{
		OrderItems:      make([]orderLine, 0, len(basket.Items)),
		ShippingAddress: basket.ShippingAddress,
		PaymentMethod:   basket.PaymentMethod,
	}
	for _, it := range basket.Items {
		body.OrderItems = append(body.OrderItems, orderLine{
			ProductID: it.ProductID,
			Name:      it.Name,
			Qty:       it.Qty,
			Image:     it.Image,
		})
	}

	var order domain.Order
	if err := c.do(ctx, http.MethodPost, "/api/orders", body, &order); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}
	return &order, nil
}

func (c *Client) Order(ctx context.Context, id string) (*domain.Order, error) {
	var order domain.Order
	if err := c.do(ctx, http.MethodGet, "/api/orders/"+id, nil, &order); err != nil {
		return nil, fmt.Errorf("get order %s: %w", id, err)
	}
	return &order, nil
}

// CreatePaymentIntent returns the client secret for a new intent of amountMinor cents.
func (c *Client) CreatePaymentIntent(ctx context.Context, amountMinor int64, orderID string) (string, error) {
	var out struct {
		ClientSecret string `json:"clientSecret"`
	}
	err := c.do(ctx, http.MethodPost, "/api/payment/create-payment-intent", map[string]any{
		"amount":  amountMinor,
		"orderId": orderID,
	}, &out)
	if err != nil {
		return "", fmt.Errorf("create payment intent: %w", err)
	}
	return out.ClientSecret, nil
}

func (c *Client) PaymentConfig(ctx context.Context) (string, error) {
	var out struct {
		PublishableKey string `json:"publishableKey"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/payment/config", nil, &out); err != nil {
		return "", fmt.Errorf("get payment config: %w", err)
	}
	return out.PublishableKey, nil
}

type markPaidBody struct {
	ID         string `json:"id"`
	Status     string `json:"status"`
	UpdateTime string `json:"update_time"`
	Payer      struct {
		EmailAddress string `json:"email_address"`
	} `json:"payer"`
}

func (c *Client) MarkPaid(ctx context.Context, orderID string, receipt domain.PaymentResult) (*domain.Order, error) {
	body := markPaidBody{ID: receipt.ID, Status: receipt.Status, UpdateTime: receipt.UpdateTime}
	body.Payer.EmailAddress = receipt.EmailAddress

	var order domain.Order
	if err := c.do(ctx, http.MethodPut, "/api/orders/"+orderID+"/pay", body, &order); err != nil {
		return nil, fmt.Errorf("mark order %s paid: %w", orderID, err)
	}
	return &order, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, result any) error {
	req := c.http.R().SetContext(ctx).SetError(&messageBody{})
	if body != nil {
		req.SetBody(body)
	}
	if result != nil {
		req.SetResult(result)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return err
	}
	if resp.IsError() {
		return apiError(resp)
	}
	return nil
}

func apiError(resp *resty.Response) error {
	e := &APIError{StatusCode: resp.StatusCode(), Message: http.StatusText(resp.StatusCode())}
	if body, ok := resp.Error().(*messageBody); ok && body.Message != "" {
		e.Message = body.Message
		return e
	}
	var body messageBody
	if err := json.Unmarshal(resp.Body(), &body); err == nil && body.Message != "" {
		e.Message = body.Message
	}
	return e
}
