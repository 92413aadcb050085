// Package api assembles the HTTP surface of the storefront server.
package api

import (
	"log/slog"
	"net/http"

	"github.com/rs/cors"

	"github.com/kavineshduraisamy/Wirstix-E-commerce/internal/auth"
	"github.com/kavineshduraisamy/Wirstix-E-commerce/internal/catalog"
	"github.com/kavineshduraisamy/Wirstix-E-commerce/internal/httpjson"
	"github.com/kavineshduraisamy/Wirstix-E-commerce/internal/orders"
	"github.com/kavineshduraisamy/Wirstix-E-commerce/internal/payment"
	"github.com/kavineshduraisamy/Wirstix-E-commerce/internal/stats"
	"github.com/kavineshduraisamy/Wirstix-E-commerce/internal/telemetry"
	"github.com/kavineshduraisamy/Wirstix-E-commerce/internal/upload"
	"github.com/kavineshduraisamy/Wirstix-E-commerce/internal/users"
)

// Deps are the handlers behind the router. Payment, Upload, Stats and
// Metrics are optional; their routes are only mounted when set.
type Deps struct {
	Logger      *slog.Logger
	Gate        *auth.Gate
	Auth        *auth.Handler
	Users       *users.Handler
	Catalog     *catalog.Handler
	Orders      *orders.Handler
	Payment     *payment.Handler
	Upload      *upload.Handler
	Stats       *stats.Handler
	Metrics     http.Handler
	CORSOrigins []string
}

func NewRouter(d Deps) http.Handler {
	mux := http.NewServeMux()
	resp := httpjson.NewResponder(d.Logger)
	route := func(pattern string, h http.HandlerFunc) {
		mux.HandleFunc(pattern, telemetry.WithHTTPRoute(h))
	}
	protect, admin := d.Gate.Protect, d.Gate.ProtectAdmin

	route("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("Wristix API is running..."))
	})

	route("POST /api/users", d.Auth.HandleRegister)
	route("POST /api/users/register", d.Auth.HandleRegister)
	route("POST /api/users/login", d.Auth.HandleLogin)
	route("POST /api/users/logout", d.Auth.HandleLogout)
	route("GET /api/users/profile", protect(d.Auth.HandleGetProfile))
	route("PUT /api/users/profile", protect(d.Auth.HandleUpdateProfile))
	route("GET /api/users", admin(d.Users.HandleList))
	route("GET /api/users/{id}", admin(d.Users.HandleGet))
	route("PUT /api/users/{id}", admin(d.Users.HandleUpdate))
	route("DELETE /api/users/{id}", admin(d.Users.HandleDelete))

	route("GET /api/products", d.Catalog.HandleList)
	route("GET /api/products/{id}", d.Catalog.HandleGet)
	route("POST /api/products", admin(d.Catalog.HandleCreate))
	route("PUT /api/products/{id}", admin(d.Catalog.HandleUpdate))
	route("DELETE /api/products/{id}", admin(d.Catalog.HandleDelete))
	route("POST /api/products/{id}/reviews", protect(d.Catalog.HandleCreateReview))

	route("POST /api/orders", protect(d.Orders.HandleCreate))
	route("GET /api/orders", admin(d.Orders.HandleList))
	route("GET /api/orders/mine", protect(d.Orders.HandleListMine))
	route("GET /api/orders/{id}", protect(d.Orders.HandleGet))
	route("PUT /api/orders/{id}/pay", protect(d.Orders.HandlePay))
	route("PUT /api/orders/{id}/deliver", admin(d.Orders.HandleDeliver))

	if d.Payment != nil {
		route("POST /api/payment/create-payment-intent", protect(d.Payment.HandleCreateIntent))
		route("GET /api/payment/config", protect(d.Payment.HandleConfig))
		if d.Payment.WebhooksEnabled() {
			route("POST /api/payment/webhook", d.Payment.HandleWebhook)
		}
	}
	if d.Upload != nil {
		route("POST /api/upload", admin(d.Upload.HandleUpload))
	}
	if d.Stats != nil {
		route("GET /api/stats", admin(d.Stats.HandleDashboard))
	}
	if d.Metrics != nil {
		mux.Handle("GET /metrics", d.Metrics)
	}

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		resp.Message(w, http.StatusNotFound, "Not Found - "+r.URL.Path)
	})

	c := cors.New(cors.Options{
		AllowedOrigins:   d.CORSOrigins,
		AllowCredentials: true,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
	})

	return telemetry.Handler(c.Handler(securityHeaders(mux)), "wristix-api")
}

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "SAMEORIGIN")
		h.Set("Referrer-Policy", "no-referrer")
		next.ServeHTTP(w, r)
	})
}
