package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/stripe/stripe-go/v82"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/kavineshduraisamy/Wirstix-E-commerce/internal/domain"
	"github.com/kavineshduraisamy/Wirstix-E-commerce/internal/httpjson"
)

const maxWebhookBytes = 64 << 10

type IntentCreator interface {
	CreateIntent(ctx context.Context, amountMinor int64, orderID string) (*Intent, error)
}

// Settler marks an order paid on behalf of the payment processor.
type Settler interface {
	SettleFromProcessor(ctx context.Context, orderID string, receipt domain.PaymentResult, amountMinor int64) (*domain.Order, error)
}

type Handler struct {
	intents        IntentCreator
	publishableKey string
	webhooks       *WebhookVerifier
	settler        Settler
	resp           *httpjson.Responder
	logger         *slog.Logger
	intentCounter  metric.Int64Counter
}

func NewHandler(intents IntentCreator, publishableKey string, webhooks *WebhookVerifier, settler Settler, logger *slog.Logger) (*Handler, error) {
	counter, err := otel.Meter("payment").Int64Counter("payment.intents",
		metric.WithDescription("Payment intents requested, by outcome"))
	if err != nil {
		return nil, fmt.Errorf("create payment.intents counter: %w", err)
	}

	return &Handler{
		intents:        intents,
		publishableKey: publishableKey,
		webhooks:       webhooks,
		settler:        settler,
		resp:           httpjson.NewResponder(logger),
		logger:         logger,
		intentCounter:  counter,
	}, nil
}

type createIntentRequest struct {
	Amount  int64  `json:"amount"`
	OrderID string `json:"orderId"`
}

type createIntentResponse struct {
	ClientSecret string `json:"clientSecret"`
}

// HandleCreateIntent opens a payment intent for an amount in cents.
func (h *Handler) HandleCreateIntent(w http.ResponseWriter, r *http.Request) {
	var req createIntentRequest
	if err := httpjson.Decode(w, r, &req); err != nil {
		h.resp.Error(w, err)
		return
	}
	if req.Amount <= 0 {
		h.resp.Error(w, domain.Invalid("Amount is required"))
		return
	}

	intent, err := h.intents.CreateIntent(r.Context(), req.Amount, req.OrderID)
	if err != nil {
		h.intentCounter.Add(r.Context(), 1, metric.WithAttributes(attribute.String("outcome", "error")))
		h.resp.Error(w, err)
		return
	}

	h.intentCounter.Add(r.Context(), 1, metric.WithAttributes(attribute.String("outcome", "created")))
	h.logger.Info("payment intent created", "intent_id", intent.ID, "amount", req.Amount, "order_id", req.OrderID)
	h.resp.JSON(w, http.StatusOK, createIntentResponse{ClientSecret: intent.ClientSecret})
}

// WebhooksEnabled reports whether a signing secret is configured.
func (h *Handler) WebhooksEnabled() bool {
	return h.webhooks != nil
}

func (h *Handler) HandleConfig(w http.ResponseWriter, r *http.Request) {
	h.resp.JSON(w, http.StatusOK, map[string]string{"publishableKey": h.publishableKey})
}

// HandleWebhook accepts signed processor notifications. A succeeded intent
// carrying an order id settles that order. Other events are acknowledged.
func (h *Handler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBytes))
	if err != nil {
		h.resp.Error(w, domain.Invalid("invalid request body"))
		return
	}

	event, err := h.webhooks.Event(payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		h.logger.Warn("rejected webhook", "error", err)
		h.resp.Error(w, domain.Invalid("Invalid signature"))
		return
	}

	if event.Type != stripe.EventTypePaymentIntentSucceeded || event.Data == nil {
		h.logger.Info("webhook event ignored", "event_id", event.ID, "type", event.Type)
		h.resp.JSON(w, http.StatusOK, map[string]bool{"received": true})
		return
	}

	var intent Intent
	if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
		h.resp.Error(w, domain.Invalid("invalid payment intent"))
		return
	}

	orderID := intent.OrderID()
	if orderID == "" {
		h.logger.Info("succeeded intent without order", "intent_id", intent.ID)
		h.resp.JSON(w, http.StatusOK, map[string]bool{"received": true})
		return
	}

	if _, err := h.settler.SettleFromProcessor(r.Context(), orderID, intent.Receipt(), intent.Amount); err != nil {
		// Permanent failures are acknowledged so the processor stops retrying.
		if errors.Is(err, domain.ErrConflict) || errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrValidation) {
			h.logger.Warn("webhook settlement rejected", "error", err, "order_id", orderID, "intent_id", intent.ID)
			h.resp.JSON(w, http.StatusOK, map[string]bool{"received": true})
			return
		}
		h.resp.Error(w, err)
		return
	}

	h.logger.Info("order settled by webhook", "order_id", orderID, "intent_id", intent.ID)
	h.resp.JSON(w, http.StatusOK, map[string]bool{"received": true})
}
