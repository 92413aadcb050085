// Package payment talks to the Stripe REST API and serves the payment-intent
// and webhook endpoints.
package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/kavineshduraisamy/Wirstix-E-commerce/internal/domain"
)

const StatusSucceeded = "succeeded"

// ProcessorError is a failure reported by the payment processor. Its message
// is passed through to API callers.
type ProcessorError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *ProcessorError) Error() string {
	return fmt.Sprintf("payment processor returned %d: %s", e.StatusCode, e.Message)
}

func (e *ProcessorError) Unwrap() error { return domain.ErrUpstream }

func (e *ProcessorError) PublicMessage() string { return e.Message }

type Intent struct {
	ID           string            `json:"id"`
	ClientSecret string            `json:"client_secret"`
	Amount       int64             `json:"amount"`
	Currency     string            `json:"currency"`
	Status       string            `json:"status"`
	Created      int64             `json:"created"`
	ReceiptEmail string            `json:"receipt_email"`
	Metadata     map[string]string `json:"metadata"`
}

// OrderID is the order the intent was created for, if any.
func (i *Intent) OrderID() string {
	return i.Metadata["order_id"]
}

// Receipt is the settlement record stored on a paid order.
func (i *Intent) Receipt() domain.PaymentResult {
	return domain.PaymentResult{
		ID:           i.ID,
		Status:       i.Status,
		UpdateTime:   time.Unix(i.Created, 0).UTC().Format(time.RFC3339),
		EmailAddress: i.ReceiptEmail,
	}
}

type StripeConfig struct {
	SecretKey string
	APIURL    string
	Currency  string
	Timeout   time.Duration
}

type StripeClient struct {
	client   *resty.Client
	currency string
}

func NewStripeClient(cfg StripeConfig) *StripeClient {
	client := resty.New().
		SetBaseURL(cfg.APIURL).
		SetTimeout(cfg.Timeout).
		SetAuthToken(cfg.SecretKey).
		SetHeader("Accept", "application/json").
		SetTransport(otelhttp.NewTransport(http.DefaultTransport))

	return &StripeClient{client: client, currency: cfg.Currency}
}

type stripeErrorBody struct {
	Error struct {
		Type    string `json:"type"`
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// CreateIntent opens a payment intent for amountMinor (cents). orderID is
// attached as metadata so the settlement webhook can find the order.
func (c *StripeClient) CreateIntent(ctx context.Context, amountMinor int64, orderID string) (*Intent, error) {
	form := map[string]string{
		"amount":                             strconv.FormatInt(amountMinor, 10),
		"currency":                           c.currency,
		"automatic_payment_methods[enabled]": "true",
	}
	if orderID != "" {
		form["metadata[order_id]"] = orderID
	}

	var intent Intent
	resp, err := c.client.R().
		SetContext(ctx).
		SetFormData(form).
		SetResult(&intent).
		SetError(&stripeErrorBody{}).
		Post("/v1/payment_intents")
	if err != nil {
		return nil, fmt.Errorf("create payment intent: %w", err)
	}
	if resp.IsError() {
		return nil, processorError(resp)
	}
	return &intent, nil
}

func (c *StripeClient) GetIntent(ctx context.Context, id string) (*Intent, error) {
	var intent Intent
	resp, err := c.client.R().
		SetContext(ctx).
		SetPathParam("id", id).
		SetResult(&intent).
		SetError(&stripeErrorBody{}).
		Get("/v1/payment_intents/{id}")
	if err != nil {
		return nil, fmt.Errorf("get payment intent: %w", err)
	}
	if resp.IsError() {
		return nil, processorError(resp)
	}
	return &intent, nil
}

// VerifyPayment checks that intentID was opened for orderID and succeeded for
// exactly amountMinor.
func (c *StripeClient) VerifyPayment(ctx context.Context, intentID, orderID string, amountMinor int64) error {
	intent, err := c.GetIntent(ctx, intentID)
	if err != nil {
		var pe *ProcessorError
		if errors.As(err, &pe) && pe.StatusCode == http.StatusNotFound {
			return fmt.Errorf("%w: unknown payment %s", domain.ErrPaymentUnverified, intentID)
		}
		return err
	}
	if intent.OrderID() == "" || intent.OrderID() != orderID {
		return fmt.Errorf("%w: payment %s does not belong to order %s", domain.ErrPaymentUnverified, intentID, orderID)
	}
	if intent.Status != StatusSucceeded {
		return fmt.Errorf("%w: payment %s is %s", domain.ErrPaymentUnverified, intentID, intent.Status)
	}
	if intent.Amount != amountMinor {
		return fmt.Errorf("%w: payment %s settled %d, expected %d", domain.ErrPaymentUnverified, intentID, intent.Amount, amountMinor)
	}
	return nil
}

func processorError(resp *resty.Response) error {
	pe := &ProcessorError{StatusCode: resp.StatusCode(), Message: http.StatusText(resp.StatusCode())}
	if body, ok := resp.Error().(*stripeErrorBody); ok && body.Error.Message != "" {
		pe.Code = body.Error.Code
		pe.Message = body.Error.Message
		return pe
	}
	var body stripeErrorBody
	if err := json.Unmarshal(resp.Body(), &body); err == nil && body.Error.Message != "" {
		pe.Code = body.Error.Code
		pe.Message = body.Error.Message
	}
	return pe
}
