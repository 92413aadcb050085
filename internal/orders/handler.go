// Package orders implements order placement and the paid/delivered lifecycle.
package orders

import (
	"log/slog"
	"net/http"

	"github.com/kavineshduraisamy/Wirstix-E-commerce/internal/auth"
	"github.com/kavineshduraisamy/Wirstix-E-commerce/internal/domain"
	"github.com/kavineshduraisamy/Wirstix-E-commerce/internal/httpjson"
)

type Handler struct {
	service *Service
	resp    *httpjson.Responder
	logger  *slog.Logger
}

func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		resp:    httpjson.NewResponder(logger),
		logger:  logger,
	}
}

type orderLineRequest struct {
	Product string `json:"product"`
	ID      string `json:"_id"`
	Qty     int    `json:"qty"`
}

// createOrderRequest accepts the storefront cart as sent by the client. Any
// price fields in it are ignored.
type createOrderRequest struct {
	OrderItems      []orderLineRequest     `json:"orderItems"`
	ShippingAddress domain.ShippingAddress `json:"shippingAddress"`
	PaymentMethod   string                 `json:"paymentMethod" validate:"required"`
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFrom(r.Context())
	if !ok {
		h.resp.Error(w, domain.ErrUnauthorized)
		return
	}

	var req createOrderRequest
	if err := httpjson.DecodeBody(w, r, &req); err != nil {
		h.resp.Error(w, err)
		return
	}
	// An empty cart is reported ahead of any other field problem.
	if len(req.OrderItems) == 0 {
		h.resp.Error(w, domain.ErrEmptyOrder)
		return
	}
	if err := httpjson.Validate(&req); err != nil {
		h.resp.Error(w, err)
		return
	}

	in := CreateInput{
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   req.PaymentMethod,
	}
	for _, line := range req.OrderItems {
		productID := line.Product
		if productID == "" {
			productID = line.ID
		}
		in.Items = append(in.Items, LineInput{ProductID: productID, Qty: line.Qty})
	}

	order, err := h.service.Create(r.Context(), user, in)
	if err != nil {
		h.resp.Error(w, err)
		return
	}
	h.resp.JSON(w, http.StatusCreated, order)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFrom(r.Context())
	if !ok {
		h.resp.Error(w, domain.ErrUnauthorized)
		return
	}

	order, err := h.service.Get(r.Context(), user, r.PathValue("id"))
	if err != nil {
		h.resp.Error(w, err)
		return
	}
	h.resp.JSON(w, http.StatusOK, order)
}

func (h *Handler) HandleListMine(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFrom(r.Context())
	if !ok {
		h.resp.Error(w, domain.ErrUnauthorized)
		return
	}

	orders, err := h.service.ListMine(r.Context(), user)
	if err != nil {
		h.resp.Error(w, err)
		return
	}
	h.resp.JSON(w, http.StatusOK, orders)
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	orders, err := h.service.ListAll(r.Context())
	if err != nil {
		h.resp.Error(w, err)
		return
	}

	h.logger.Info("orders listed", "count", len(orders))
	h.resp.JSON(w, http.StatusOK, orders)
}

type payRequest struct {
	ID         string `json:"id" validate:"required"`
	Status     string `json:"status"`
	UpdateTime string `json:"update_time"`
	Payer      struct {
		EmailAddress string `json:"email_address"`
	} `json:"payer"`
}

func (h *Handler) HandlePay(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFrom(r.Context())
	if !ok {
		h.resp.Error(w, domain.ErrUnauthorized)
		return
	}

	var req payRequest
	if err := httpjson.Decode(w, r, &req); err != nil {
		h.resp.Error(w, err)
		return
	}

	order, err := h.service.MarkPaid(r.Context(), user, r.PathValue("id"), domain.PaymentResult{
		ID:           req.ID,
		Status:       req.Status,
		UpdateTime:   req.UpdateTime,
		EmailAddress: req.Payer.EmailAddress,
	})
	if err != nil {
		h.resp.Error(w, err)
		return
	}
	h.resp.JSON(w, http.StatusOK, order)
}

func (h *Handler) HandleDeliver(w http.ResponseWriter, r *http.Request) {
	order, err := h.service.MarkDelivered(r.Context(), r.PathValue("id"))
	if err != nil {
		h.resp.Error(w, err)
		return
	}
	h.resp.JSON(w, http.StatusOK, order)
}
