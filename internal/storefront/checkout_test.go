package storefront

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kavineshduraisamy/Wirstix-E-commerce/internal/cart"
	"github.com/kavineshduraisamy/Wirstix-E-commerce/internal/domain"
)

type fakeAPI struct {
	mu            sync.Mutex
	orderStatus   int
	intentStatus  int
	orderBody     map[string]any
	intentBody    map[string]any
	authorization string
}

func (f *fakeAPI) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/users/login", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, domain.Profile{ID: "u1", Name: "Ada", Email: "ada@example.com", Role: domain.RoleUser, Token: "tok-123"})
	})
	mux.HandleFunc("GET /api/products/{id}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") != "p1" {
			writeJSON(w, http.StatusNotFound, map[string]string{"message": "Product not found"})
			return
		}
		writeJSON(w, http.StatusOK, domain.Product{ID: "p1", Name: "Diver", Price: decimal.NewFromInt(1000), CountInStock: 5})
	})
	mux.HandleFunc("POST /api/orders", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.authorization = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&f.orderBody)
		if f.orderStatus != 0 {
			writeJSON(w, f.orderStatus, map[string]string{"message": "Insufficient stock for Diver"})
			return
		}
		writeJSON(w, http.StatusCreated, domain.Order{
			ID:         "o1",
			User:       domain.OrderUser{ID: "u1"},
			ItemsPrice: decimal.NewFromInt(2000),
			TaxPrice:   decimal.NewFromInt(300),
			TotalPrice: decimal.RequireFromString("2300.45"),
		})
	})
	mux.HandleFunc("POST /api/payment/create-payment-intent", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		_ = json.NewDecoder(r.Body).Decode(&f.intentBody)
		if f.intentStatus != 0 {
			writeJSON(w, f.intentStatus, map[string]string{"message": "Your card was declined."})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"clientSecret": "pi_1_secret_x"})
	})
	mux.HandleFunc("GET /api/payment/config", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"publishableKey": "pk_test_1"})
	})
	mux.HandleFunc("PUT /api/orders/{id}/pay", func(w http.ResponseWriter, r *http.Request) {
		var body markPaidBody
		_ = json.NewDecoder(r.Body).Decode(&body)
		writeJSON(w, http.StatusOK, domain.Order{
			ID:            r.PathValue("id"),
			IsPaid:        true,
			PaymentResult: &domain.PaymentResult{ID: body.ID, Status: body.Status, EmailAddress: body.Payer.EmailAddress},
		})
	})
	return mux
}

func (f *fakeAPI) seen() (auth string, order, intent map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.authorization, f.orderBody, f.intentBody
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestCheckout(t *testing.T, api *fakeAPI) (*Checkout, *Client, cart.Store) {
	t.Helper()
	srv := httptest.NewServer(api.handler())
	t.Cleanup(srv.Close)

	client := NewClient(srv.URL, 5*time.Second)
	store := cart.NewMemoryStore()
	return NewCheckout(client, store, discardLogger()), client, store
}

func filledCart() *cart.Cart {
	c := cart.New()
	c.Add(cart.Item{ProductID: "p1", Name: "Diver", Price: decimal.NewFromInt(1000), Qty: 2})
	c.ShippingAddress = domain.ShippingAddress{Address: "1 Rue du Rhone", City: "Geneva", PostalCode: "1204", Country: "CH"}
	return c
}

func TestCheckout(t *testing.T) {
	t.Run("places order then clears cart then opens intent", func(t *testing.T) {
		api := &fakeAPI{}
		checkout, client, store := newTestCheckout(t, api)
		ctx := context.Background()

		if _, err := client.Login(ctx, "ada@example.com", "secret"); err != nil {
			t.Fatalf("login: %v", err)
		}

		basket := filledCart()
		if err := store.Save(ctx, basket); err != nil {
			t.Fatalf("save: %v", err)
		}

		res, err := checkout.Run(ctx, basket)
		if err != nil {
			t.Fatalf("checkout: %v", err)
		}
		if res.Order.ID != "o1" || res.ClientSecret != "pi_1_secret_x" {
			t.Errorf("unexpected result %+v", res)
		}
		auth, orderBody, intentBody := api.seen()
		if auth != "Bearer tok-123" {
			t.Errorf("expected bearer token, got %q", auth)
		}
		if _, ok := orderBody["itemsPrice"]; ok {
			t.Error("client totals must not be sent")
		}
		if amount, _ := intentBody["amount"].(float64); amount != 230045 {
			t.Errorf("expected amount 230045, got %v", intentBody["amount"])
		}
		if intentBody["orderId"] != "o1" {
			t.Errorf("expected orderId o1, got %v", intentBody["orderId"])
		}

		saved, err := store.Load(ctx)
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		if !saved.IsEmpty() {
			t.Errorf("expected cleared cart, got %+v", saved.Items)
		}
		if saved.ShippingAddress.City != "Geneva" {
			t.Errorf("shipping address should survive checkout, got %+v", saved.ShippingAddress)
		}
	})

	t.Run("failed order leaves cart intact", func(t *testing.T) {
		api := &fakeAPI{orderStatus: http.StatusConflict}
		checkout, _, store := newTestCheckout(t, api)
		ctx := context.Background()

		basket := filledCart()
		_ = store.Save(ctx, basket)

		res, err := checkout.Run(ctx, basket)
		if err == nil {
			t.Fatal("expected error")
		}
		if res != nil {
			t.Errorf("expected no result, got %+v", res)
		}
		var apiErr *APIError
		if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusConflict || apiErr.Message != "Insufficient stock for Diver" {
			t.Errorf("unexpected error %v", err)
		}
		if _, _, intentBody := api.seen(); intentBody != nil {
			t.Error("intent must not be requested when the order fails")
		}

		saved, _ := store.Load(ctx)
		if len(saved.Items) != 1 {
			t.Errorf("expected cart intact, got %+v", saved.Items)
		}
	})

	t.Run("failed intent returns the order", func(t *testing.T) {
		api := &fakeAPI{intentStatus: http.StatusInternalServerError}
		checkout, _, store := newTestCheckout(t, api)
		ctx := context.Background()

		res, err := checkout.Run(ctx, filledCart())
		if err == nil {
			t.Fatal("expected error")
		}
		if res == nil || res.Order == nil || res.Order.ID != "o1" {
			t.Fatalf("expected created order with error, got %+v", res)
		}
		if res.ClientSecret != "" {
			t.Errorf("expected no client secret, got %q", res.ClientSecret)
		}
		var apiErr *APIError
		if !errors.As(err, &apiErr) || apiErr.Message != "Your card was declined." {
			t.Errorf("unexpected error %v", err)
		}

		saved, _ := store.Load(ctx)
		if !saved.IsEmpty() {
			t.Error("cart should be cleared once the order exists")
		}
	})

	t.Run("empty cart", func(t *testing.T) {
		checkout, _, _ := newTestCheckout(t, &fakeAPI{})
		if _, err := checkout.Run(context.Background(), cart.New()); !errors.Is(err, ErrEmptyCart) {
			t.Errorf("expected ErrEmptyCart, got %v", err)
		}
	})

	t.Run("missing shipping address", func(t *testing.T) {
		api := &fakeAPI{}
		checkout, _, _ := newTestCheckout(t, api)
		basket := filledCart()
		basket.ShippingAddress.City = ""

		if _, err := checkout.Run(context.Background(), basket); !errors.Is(err, ErrMissingShipping) {
			t.Errorf("expected ErrMissingShipping, got %v", err)
		}
		if _, orderBody, _ := api.seen(); orderBody != nil {
			t.Error("order must not be sent without an address")
		}
	})
}

func TestClient(t *testing.T) {
	api := &fakeAPI{}
	srv := httptest.NewServer(api.handler())
	t.Cleanup(srv.Close)
	client := NewClient(srv.URL, 5*time.Second)
	ctx := context.Background()

	t.Run("product", func(t *testing.T) {
		p, err := client.Product(ctx, "p1")
		if err != nil {
			t.Fatalf("product: %v", err)
		}
		if p.Name != "Diver" || !p.Price.Equal(decimal.NewFromInt(1000)) {
			t.Errorf("unexpected product %+v", p)
		}
	})

	t.Run("unknown product carries the api message", func(t *testing.T) {
		_, err := client.Product(ctx, "nope")
		var apiErr *APIError
		if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusNotFound || apiErr.Message != "Product not found" {
			t.Errorf("unexpected error %v", err)
		}
	})

	t.Run("payment config", func(t *testing.T) {
		key, err := client.PaymentConfig(ctx)
		if err != nil {
			t.Fatalf("config: %v", err)
		}
		if key != "pk_test_1" {
			t.Errorf("expected pk_test_1, got %q", key)
		}
	})

	t.Run("mark paid sends the receipt", func(t *testing.T) {
		order, err := client.MarkPaid(ctx, "o1", domain.PaymentResult{ID: "pi_1", Status: "succeeded", EmailAddress: "ada@example.com"})
		if err != nil {
			t.Fatalf("mark paid: %v", err)
		}
		if !order.IsPaid || order.PaymentResult.ID != "pi_1" || order.PaymentResult.EmailAddress != "ada@example.com" {
			t.Errorf("unexpected order %+v", order)
		}
	})
}
