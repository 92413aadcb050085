// Package stats serves the admin dashboard summary.
package stats

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/kavineshduraisamy/Wirstix-E-commerce/internal/httpjson"
)

type Counter interface {
	Count(ctx context.Context) (int, error)
}

type RevenueSource interface {
	Revenue(ctx context.Context) (decimal.Decimal, error)
}

type Dashboard struct {
	TotalRevenue  decimal.Decimal `json:"totalRevenue"`
	UsersCount    int             `json:"usersCount"`
	ProductsCount int             `json:"productsCount"`
}

type Handler struct {
	users    Counter
	products Counter
	orders   RevenueSource
	resp     *httpjson.Responder
}

func NewHandler(users, products Counter, orders RevenueSource, logger *slog.Logger) *Handler {
	return &Handler{users: users, products: products, orders: orders, resp: httpjson.NewResponder(logger)}
}

// Collect gathers the figures concurrently; revenue counts paid orders only.
func (h *Handler) Collect(ctx context.Context) (Dashboard, error) {
	var d Dashboard
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		d.UsersCount, err = h.users.Count(ctx)
		return err
	})
	g.Go(func() (err error) {
		d.ProductsCount, err = h.products.Count(ctx)
		return err
	})
	g.Go(func() (err error) {
		d.TotalRevenue, err = h.orders.Revenue(ctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return Dashboard{}, err
	}
	return d, nil
}

func (h *Handler) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	d, err := h.Collect(r.Context())
	if err != nil {
		h.resp.Error(w, err)
		return
	}
	h.resp.JSON(w, http.StatusOK, d)
}
