package httpjson

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kavineshduraisamy/Wirstix-E-commerce/internal/domain"
)

func TestResponder_Error(t *testing.T) {
	resp := NewResponder(slog.New(slog.NewTextHandler(io.Discard, nil)))

	cases := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{"validation", domain.ErrEmptyOrder, http.StatusBadRequest, "No order items"},
		{"wrapped not found", fmt.Errorf("load: %w", domain.ErrOrderNotFound), http.StatusNotFound, "Order not found"},
		{"forbidden", domain.ErrUserBlocked, http.StatusForbidden, "User is blocked"},
		{"conflict", domain.ErrAlreadyReviewed, http.StatusConflict, "Product already reviewed"},
		{"bare category", domain.ErrUnauthorized, http.StatusUnauthorized, "Unauthorized"},
		{"unknown", errors.New("db is down"), http.StatusInternalServerError, "internal server error"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			resp.Error(rec, tc.err)

			if rec.Code != tc.status {
				t.Errorf("expected status %d, got %d", tc.status, rec.Code)
			}
			var body map[string]string
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if body["message"] != tc.message {
				t.Errorf("expected message %q, got %q", tc.message, body["message"])
			}
		})
	}
}

func TestDecode(t *testing.T) {
	type payload struct {
		Email  string `json:"email" validate:"required,email"`
		Rating int    `json:"rating" validate:"min=1,max=5"`
	}

	t.Run("accepts a valid body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"a@b.co","rating":4}`))
		var p payload
		if err := Decode(httptest.NewRecorder(), req, &p); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if p.Rating != 4 {
			t.Errorf("expected rating 4, got %d", p.Rating)
		}
	})

	t.Run("reports the json field name", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"rating":4}`))
		var p payload
		err := Decode(httptest.NewRecorder(), req, &p)
		if !errors.Is(err, domain.ErrValidation) {
			t.Fatalf("expected validation error, got %v", err)
		}
		if err.Error() != "email is required" {
			t.Errorf("unexpected message: %s", err.Error())
		}
	})

	t.Run("rejects malformed json", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{`))
		var p payload
		if err := Decode(httptest.NewRecorder(), req, &p); !errors.Is(err, domain.ErrValidation) {
			t.Fatalf("expected validation error, got %v", err)
		}
	})
}
