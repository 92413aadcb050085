// Package catalog serves the product catalog and product reviews.
package catalog

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kavineshduraisamy/Wirstix-E-commerce/internal/auth"
	"github.com/kavineshduraisamy/Wirstix-E-commerce/internal/domain"
	"github.com/kavineshduraisamy/Wirstix-E-commerce/internal/httpjson"
)

const PageSize = 8

type Store interface {
	List(ctx context.Context, f domain.ProductFilter) (domain.ProductPage, error)
	GetByID(ctx context.Context, id string) (*domain.Product, error)
	Create(ctx context.Context, p *domain.Product) error
	Update(ctx context.Context, p *domain.Product) error
	Delete(ctx context.Context, id string) error
	AddReview(ctx context.Context, productID string, r domain.Review) (*domain.Product, error)
}

type Handler struct {
	store  Store
	resp   *httpjson.Responder
	logger *slog.Logger
}

func NewHandler(store Store, logger *slog.Logger) *Handler {
	return &Handler{
		store:  store,
		resp:   httpjson.NewResponder(logger),
		logger: logger,
	}
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	page, _ := strconv.Atoi(query.Get("pageNumber"))

	result, err := h.store.List(r.Context(), domain.ProductFilter{
		Keyword:  strings.TrimSpace(query.Get("keyword")),
		Category: strings.TrimSpace(query.Get("category")),
		Page:     max(page, 1),
		PageSize: PageSize,
	})
	if err != nil {
		h.resp.Error(w, err)
		return
	}
	h.resp.JSON(w, http.StatusOK, result)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	product, err := h.store.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		h.resp.Error(w, err)
		return
	}
	h.resp.JSON(w, http.StatusOK, product)
}

type productRequest struct {
	Name         *string          `json:"name"`
	Price        *decimal.Decimal `json:"price"`
	Image        *string          `json:"image"`
	Brand        *string          `json:"brand"`
	Category     *string          `json:"category"`
	CountInStock *int             `json:"countInStock" validate:"omitempty,gte=0"`
	Description  *string          `json:"description"`
}

func (req productRequest) validate() error {
	if req.Price != nil && req.Price.IsNegative() {
		return domain.Invalid("price must be at least 0")
	}
	return nil
}

// apply copies the provided fields onto p, leaving the rest untouched.
func (req productRequest) apply(p *domain.Product) {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	set(&p.Name, req.Name)
	set(&p.Image, req.Image)
	set(&p.Brand, req.Brand)
	set(&p.Category, req.Category)
	set(&p.Description, req.Description)
	if req.Price != nil {
		p.Price = domain.RoundMoney(*req.Price)
	}
	if req.CountInStock != nil {
		p.CountInStock = *req.CountInStock
	}
}

// newSampleProduct is the placeholder an admin edits after creating a product.
func newSampleProduct(userID string, now time.Time) *domain.Product {
	return &domain.Product{
		UserID:      userID,
		Name:        "Sample Name",
		Price:       decimal.Zero,
		Image:       "/images/sample.jpg",
		Brand:       "Sample Brand",
		Category:    "Sample Category",
		Description: "Sample description",
		Reviews:     []domain.Review{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	admin, _ := auth.UserFrom(r.Context())

	var req productRequest
	if r.ContentLength != 0 {
		if err := httpjson.Decode(w, r, &req); err != nil {
			h.resp.Error(w, err)
			return
		}
	}
	if err := req.validate(); err != nil {
		h.resp.Error(w, err)
		return
	}

	userID := ""
	if admin != nil {
		userID = admin.ID
	}
	product := newSampleProduct(userID, time.Now().UTC())
	req.apply(product)

	if err := h.store.Create(r.Context(), product); err != nil {
		h.resp.Error(w, err)
		return
	}

	h.logger.Info("product created", "product_id", product.ID)
	h.resp.JSON(w, http.StatusCreated, product)
}

func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if err := httpjson.Decode(w, r, &req); err != nil {
		h.resp.Error(w, err)
		return
	}
	if err := req.validate(); err != nil {
		h.resp.Error(w, err)
		return
	}

	product, err := h.store.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		h.resp.Error(w, err)
		return
	}
	req.apply(product)
	product.UpdatedAt = time.Now().UTC()

	if err := h.store.Update(r.Context(), product); err != nil {
		h.resp.Error(w, err)
		return
	}

	h.logger.Info("product updated", "product_id", product.ID)
	h.resp.JSON(w, http.StatusOK, product)
}

func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.store.Delete(r.Context(), id); err != nil {
		h.resp.Error(w, err)
		return
	}

	h.logger.Info("product deleted", "product_id", id)
	h.resp.Message(w, http.StatusOK, "Product removed")
}

type reviewRequest struct {
	Rating  int    `json:"rating" validate:"required,min=1,max=5"`
	Comment string `json:"comment"`
}

func (h *Handler) HandleCreateReview(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFrom(r.Context())
	if !ok {
		h.resp.Error(w, domain.ErrUnauthorized)
		return
	}

	var req reviewRequest
	if err := httpjson.Decode(w, r, &req); err != nil {
		h.resp.Error(w, err)
		return
	}

	productID := r.PathValue("id")
	product, err := h.store.AddReview(r.Context(), productID, domain.Review{
		UserID:    user.ID,
		Name:      user.Name,
		Rating:    req.Rating,
		Comment:   strings.TrimSpace(req.Comment),
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		h.resp.Error(w, err)
		return
	}

	h.logger.Info("review added", "product_id", productID, "user_id", user.ID,
		"num_reviews", product.NumReviews, "rating", product.Rating)
	h.resp.Message(w, http.StatusCreated, "Review added")
}
