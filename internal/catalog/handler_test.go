package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kavineshduraisamy/Wirstix-E-commerce/internal/auth"
	"github.com/kavineshduraisamy/Wirstix-E-commerce/internal/domain"
	"github.com/kavineshduraisamy/Wirstix-E-commerce/internal/memstore"
)

func newTestMux(store Store) *http.ServeMux {
	handler := NewHandler(store, slog.New(slog.NewTextHandler(io.Discard, nil)))

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/products", handler.HandleList)
	mux.HandleFunc("GET /api/products/{id}", handler.HandleGet)
	mux.HandleFunc("POST /api/products", handler.HandleCreate)
	mux.HandleFunc("PUT /api/products/{id}", handler.HandleUpdate)
	mux.HandleFunc("DELETE /api/products/{id}", handler.HandleDelete)
	mux.HandleFunc("POST /api/products/{id}/reviews", handler.HandleCreateReview)
	return mux
}

func asUser(req *http.Request, u *domain.User) *http.Request {
	return req.WithContext(auth.WithUser(req.Context(), u))
}

func TestHandler_List(t *testing.T) {
	products := memstore.New().Products()
	base := time.Now().UTC()
	for i := range 10 {
		category := "Dress"
		if i%2 == 0 {
			category = "Sport"
		}
		p := &domain.Product{
			Name:      fmt.Sprintf("Chrono %d", i),
			Category:  category,
			Price:     decimal.NewFromInt(int64(100 + i)),
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := products.Create(context.Background(), p); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	mux := newTestMux(products)

	list := func(query string) domain.ProductPage {
		t.Helper()
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/products"+query, nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		var page domain.ProductPage
		if err := json.NewDecoder(rec.Body).Decode(&page); err != nil {
			t.Fatalf("decode: %v", err)
		}
		return page
	}

	t.Run("paginates by eight", func(t *testing.T) {
		first := list("")
		if len(first.Products) != 8 || first.Page != 1 || first.Pages != 2 {
			t.Errorf("unexpected first page: %d products, page %d of %d", len(first.Products), first.Page, first.Pages)
		}
		second := list("?pageNumber=2")
		if len(second.Products) != 2 || second.Page != 2 {
			t.Errorf("unexpected second page: %d products, page %d", len(second.Products), second.Page)
		}
	})

	t.Run("filters by category", func(t *testing.T) {
		page := list("?category=Sport")
		if len(page.Products) != 5 || page.Pages != 1 {
			t.Errorf("expected 5 sport watches on one page, got %d over %d", len(page.Products), page.Pages)
		}
	})

	t.Run("filters by keyword", func(t *testing.T) {
		page := list("?keyword=chrono%203")
		if len(page.Products) != 1 || page.Products[0].Name != "Chrono 3" {
			t.Errorf("unexpected keyword result %+v", page.Products)
		}
	})
}

func TestHandler_CreateUpdateDelete(t *testing.T) {
	products := memstore.New().Products()
	mux := newTestMux(products)
	admin := &domain.User{ID: "admin-1", Role: domain.RoleAdmin}

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, asUser(httptest.NewRequest(http.MethodPost, "/api/products", nil), admin))
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var created domain.Product
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.Name != "Sample Name" || created.UserID != admin.ID || !created.Price.IsZero() {
		t.Errorf("unexpected sample product %+v", created)
	}

	t.Run("update changes provided fields", func(t *testing.T) {
		body := `{"name":"Seamaster","price":4999.99,"countInStock":3}`
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/api/products/"+created.ID, strings.NewReader(body)))
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}

		stored, _ := products.GetByID(context.Background(), created.ID)
		if stored.Name != "Seamaster" || stored.CountInStock != 3 || !stored.Price.Equal(decimal.RequireFromString("4999.99")) {
			t.Errorf("unexpected stored product %+v", stored)
		}
		if stored.Brand != "Sample Brand" {
			t.Errorf("brand should be unchanged, got %s", stored.Brand)
		}
	})

	t.Run("update rejects negative stock", func(t *testing.T) {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/api/products/"+created.ID, strings.NewReader(`{"countInStock":-1}`)))
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("delete then get is 404", func(t *testing.T) {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/products/"+created.ID, nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}

		rec = httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/products/"+created.ID, nil))
		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
	})
}

func TestHandler_CreateReview(t *testing.T) {
	products := memstore.New().Products()
	mux := newTestMux(products)

	watch := &domain.Product{Name: "Pilot", Price: decimal.NewFromInt(900)}
	if err := products.Create(context.Background(), watch); err != nil {
		t.Fatalf("seed: %v", err)
	}

	review := func(u *domain.User, body string) int {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/products/"+watch.ID+"/reviews", strings.NewReader(body))
		mux.ServeHTTP(rec, asUser(req, u))
		return rec.Code
	}

	alice := &domain.User{ID: "alice", Name: "Alice"}
	bob := &domain.User{ID: "bob", Name: "Bob"}

	if code := review(alice, `{"rating":4,"comment":"solid"}`); code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", code)
	}
	if code := review(bob, `{"rating":5,"comment":"great"}`); code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", code)
	}

	t.Run("aggregates follow reviews", func(t *testing.T) {
		p, _ := products.GetByID(context.Background(), watch.ID)
		if p.NumReviews != 2 || p.Rating != 4.5 {
			t.Errorf("expected 2 reviews rating 4.5, got %d %v", p.NumReviews, p.Rating)
		}
	})

	t.Run("second review by the same user conflicts", func(t *testing.T) {
		if code := review(alice, `{"rating":1}`); code != http.StatusConflict {
			t.Fatalf("expected 409, got %d", code)
		}
	})

	t.Run("rating out of range", func(t *testing.T) {
		if code := review(&domain.User{ID: "carol"}, `{"rating":6}`); code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", code)
		}
	})

	t.Run("unknown product", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/products/missing/reviews", strings.NewReader(`{"rating":3}`))
		mux.ServeHTTP(rec, asUser(req, alice))
		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
	})

	t.Run("concurrent reviews by one user land once", func(t *testing.T) {
		dave := &domain.User{ID: "dave", Name: "Dave"}
		var wg sync.WaitGroup
		codes := make(chan int, 10)
		for range 10 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				codes <- review(dave, `{"rating":3}`)
			}()
		}
		wg.Wait()
		close(codes)

		created := 0
		for code := range codes {
			if code == http.StatusCreated {
				created++
			}
		}
		if created != 1 {
			t.Errorf("expected exactly one review to be created, got %d", created)
		}

		p, _ := products.GetByID(context.Background(), watch.ID)
		if p.NumReviews != len(p.Reviews) || p.NumReviews != 3 {
			t.Errorf("expected 3 reviews, got numReviews=%d len=%d", p.NumReviews, len(p.Reviews))
		}
	})
}
