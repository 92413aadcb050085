package orders

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kavineshduraisamy/Wirstix-E-commerce/internal/domain"
	"github.com/kavineshduraisamy/Wirstix-E-commerce/internal/memstore"
	"github.com/kavineshduraisamy/Wirstix-E-commerce/internal/payment"
)

// fixedPricing charges a constant shipping and tax regardless of subtotal.
type fixedPricing struct {
	shipping, tax decimal.Decimal
}

func (p fixedPricing) Quote(decimal.Decimal) (decimal.Decimal, decimal.Decimal) {
	return p.shipping, p.tax
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.OrderEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, _ string, event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event.(domain.OrderEvent))
	return p.err
}

func (p *recordingPublisher) types() []domain.OrderEventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []domain.OrderEventType
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type stubVerifier struct {
	err         error
	gotIntent   string
	gotOrder    string
	gotAmount   int64
	invocations int
}

func (v *stubVerifier) VerifyPayment(_ context.Context, intentID, orderID string, amountMinor int64) error {
	v.invocations++
	v.gotIntent = intentID
	v.gotOrder = orderID
	v.gotAmount = amountMinor
	return v.err
}

type fixture struct {
	db        *memstore.DB
	service   *Service
	publisher *recordingPublisher
	buyer     *domain.User
	admin     *domain.User
	watch     *domain.Product
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	ctx := context.Background()
	db := memstore.New()

	buyer := &domain.User{Name: "Buyer", Email: "buyer@example.com", Role: domain.RoleUser}
	admin := &domain.User{Name: "Admin", Email: "admin@example.com", Role: domain.RoleAdmin}
	for _, u := range []*domain.User{buyer, admin} {
		if err := db.Users().Create(ctx, u); err != nil {
			t.Fatalf("seed user: %v", err)
		}
	}

	watch := &domain.Product{Name: "Submariner", Image: "/images/sub.jpg", Price: decimal.NewFromInt(1000), CountInStock: 5}
	if err := db.Products().Create(ctx, watch); err != nil {
		t.Fatalf("seed product: %v", err)
	}

	publisher := &recordingPublisher{}
	pricing := fixedPricing{shipping: decimal.NewFromInt(50), tax: decimal.NewFromInt(36)}
	opts = append([]Option{WithPublisher(publisher)}, opts...)

	service, err := NewService(db.Orders(), db.Products(), pricing, slog.New(slog.NewTextHandler(io.Discard, nil)), opts...)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	return &fixture{db: db, service: service, publisher: publisher, buyer: buyer, admin: admin, watch: watch}
}

func (f *fixture) placeOrder(t *testing.T) *domain.Order {
	t.Helper()
	order, err := f.service.Create(context.Background(), f.buyer, CreateInput{
		Items:           []LineInput{{ProductID: f.watch.ID, Qty: 2}},
		ShippingAddress: domain.ShippingAddress{Address: "1 Main St", City: "Geneva", PostalCode: "1200", Country: "CH"},
		PaymentMethod:   "Stripe",
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	return order
}

func TestService_Create(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	t.Run("totals are derived from catalog prices", func(t *testing.T) {
		order := f.placeOrder(t)

		if !order.ItemsPrice.Equal(decimal.NewFromInt(2000)) {
			t.Errorf("expected items price 2000, got %s", order.ItemsPrice)
		}
		if !order.TotalPrice.Equal(decimal.NewFromInt(2086)) {
			t.Errorf("expected total 2086, got %s", order.TotalPrice)
		}
		if order.IsPaid || order.IsDelivered {
			t.Error("new order must be unpaid and undelivered")
		}
		if order.OrderItems[0].Name != "Submariner" || order.OrderItems[0].Image != "/images/sub.jpg" {
			t.Errorf("expected catalog snapshot, got %+v", order.OrderItems[0])
		}

		p, _ := f.db.Products().GetByID(ctx, f.watch.ID)
		if p.CountInStock != 5 {
			t.Errorf("expected an unpaid order to leave stock at 5, got %d", p.CountInStock)
		}
	})

	t.Run("later catalog edits do not alter the order", func(t *testing.T) {
		order := f.placeOrder(t)

		edited := *f.watch
		edited.Price = decimal.NewFromInt(5000)
		edited.Name = "Renamed"
		if err := f.db.Products().Update(ctx, &edited); err != nil {
			t.Fatalf("update product: %v", err)
		}

		stored, err := f.service.Get(ctx, f.buyer, order.ID)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if stored.OrderItems[0].Name != "Submariner" || !stored.OrderItems[0].Price.Equal(decimal.NewFromInt(1000)) {
			t.Errorf("order snapshot changed: %+v", stored.OrderItems[0])
		}
	})

	t.Run("empty order is rejected", func(t *testing.T) {
		_, err := f.service.Create(ctx, f.buyer, CreateInput{PaymentMethod: "Stripe"})
		if !errors.Is(err, domain.ErrEmptyOrder) {
			t.Fatalf("expected empty order error, got %v", err)
		}
	})

	t.Run("unknown product", func(t *testing.T) {
		_, err := f.service.Create(ctx, f.buyer, CreateInput{Items: []LineInput{{ProductID: "nope", Qty: 1}}})
		if !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected not found, got %v", err)
		}
	})

	t.Run("insufficient stock", func(t *testing.T) {
		_, err := f.service.Create(ctx, f.buyer, CreateInput{Items: []LineInput{{ProductID: f.watch.ID, Qty: 99}}})
		if !errors.Is(err, domain.ErrConflict) {
			t.Fatalf("expected conflict, got %v", err)
		}
	})

	t.Run("repeated lines are merged", func(t *testing.T) {
		lines, err := mergeLines([]LineInput{{ProductID: "a", Qty: 1}, {ProductID: "b", Qty: 1}, {ProductID: "a", Qty: 2}})
		if err != nil {
			t.Fatalf("merge: %v", err)
		}
		if len(lines) != 2 || lines[0].Qty != 3 {
			t.Errorf("unexpected merge result %+v", lines)
		}
	})
}

func TestService_Get(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.placeOrder(t)

	t.Run("owner sees purchaser details", func(t *testing.T) {
		got, err := f.service.Get(ctx, f.buyer, order.ID)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if got.User.Name != "Buyer" || got.User.Email != "buyer@example.com" {
			t.Errorf("expected joined user, got %+v", got.User)
		}
	})

	t.Run("admin sees any order", func(t *testing.T) {
		if _, err := f.service.Get(ctx, f.admin, order.ID); err != nil {
			t.Fatalf("get as admin: %v", err)
		}
	})

	t.Run("other customers get not found", func(t *testing.T) {
		stranger := &domain.User{ID: "stranger", Role: domain.RoleUser}
		if _, err := f.service.Get(ctx, stranger, order.ID); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected not found, got %v", err)
		}
	})

	t.Run("unknown id", func(t *testing.T) {
		if _, err := f.service.Get(ctx, f.admin, "missing"); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected not found, got %v", err)
		}
	})
}

func TestService_Lifecycle(t *testing.T) {
	ctx := context.Background()
	receipt := domain.PaymentResult{ID: "pi_123", Status: "succeeded", UpdateTime: "2024-01-01T00:00:00Z", EmailAddress: "buyer@example.com"}

	t.Run("deliver before pay is rejected", func(t *testing.T) {
		f := newFixture(t)
		order := f.placeOrder(t)

		_, err := f.service.MarkDelivered(ctx, order.ID)
		if !errors.Is(err, domain.ErrNotPaid) {
			t.Fatalf("expected not paid, got %v", err)
		}
	})

	t.Run("pay then deliver", func(t *testing.T) {
		f := newFixture(t)
		order := f.placeOrder(t)

		paid, err := f.service.MarkPaid(ctx, f.buyer, order.ID, receipt)
		if err != nil {
			t.Fatalf("mark paid: %v", err)
		}
		if !paid.IsPaid || paid.PaidAt == nil || paid.PaymentResult == nil || paid.PaymentResult.ID != "pi_123" {
			t.Errorf("unexpected paid order %+v", paid)
		}

		delivered, err := f.service.MarkDelivered(ctx, order.ID)
		if err != nil {
			t.Fatalf("mark delivered: %v", err)
		}
		if !delivered.IsDelivered || delivered.DeliveredAt == nil {
			t.Errorf("unexpected delivered order %+v", delivered)
		}
		if delivered.DeliveredAt.Before(*delivered.PaidAt) {
			t.Error("deliveredAt precedes paidAt")
		}

		if _, err := f.service.MarkDelivered(ctx, order.ID); !errors.Is(err, domain.ErrAlreadyDelivered) {
			t.Fatalf("expected already delivered, got %v", err)
		}

		want := []domain.OrderEventType{domain.OrderCreated, domain.OrderPaid, domain.OrderDelivered}
		got := f.publisher.types()
		if len(got) != len(want) {
			t.Fatalf("expected events %v, got %v", want, got)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("event %d: expected %s, got %s", i, want[i], got[i])
			}
		}
	})

	t.Run("replaying the same receipt is a no-op", func(t *testing.T) {
		f := newFixture(t)
		order := f.placeOrder(t)

		first, err := f.service.MarkPaid(ctx, f.buyer, order.ID, receipt)
		if err != nil {
			t.Fatalf("mark paid: %v", err)
		}
		second, err := f.service.MarkPaid(ctx, f.buyer, order.ID, receipt)
		if err != nil {
			t.Fatalf("replay: %v", err)
		}
		if !second.PaidAt.Equal(*first.PaidAt) {
			t.Errorf("paidAt changed on replay: %v -> %v", first.PaidAt, second.PaidAt)
		}
		if n := len(f.publisher.types()); n != 2 {
			t.Errorf("expected 2 events (created, paid), got %d", n)
		}
	})

	t.Run("a different receipt on a paid order conflicts", func(t *testing.T) {
		f := newFixture(t)
		order := f.placeOrder(t)

		if _, err := f.service.MarkPaid(ctx, f.buyer, order.ID, receipt); err != nil {
			t.Fatalf("mark paid: %v", err)
		}
		other := receipt
		other.ID = "pi_other"
		if _, err := f.service.MarkPaid(ctx, f.buyer, order.ID, other); !errors.Is(err, domain.ErrAlreadyPaid) {
			t.Fatalf("expected already paid, got %v", err)
		}
	})

	t.Run("another customer cannot pay the order", func(t *testing.T) {
		f := newFixture(t)
		order := f.placeOrder(t)

		stranger := &domain.User{ID: "stranger", Role: domain.RoleUser}
		if _, err := f.service.MarkPaid(ctx, stranger, order.ID, receipt); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected not found, got %v", err)
		}
	})

	t.Run("publisher failures do not fail the transition", func(t *testing.T) {
		f := newFixture(t)
		f.publisher.err = errors.New("broker down")
		order := f.placeOrder(t)

		if _, err := f.service.MarkPaid(ctx, f.buyer, order.ID, receipt); err != nil {
			t.Fatalf("mark paid: %v", err)
		}
	})
}

func TestService_Verification(t *testing.T) {
	ctx := context.Background()
	receipt := domain.PaymentResult{ID: "pi_123", Status: "succeeded"}

	t.Run("verifies the order total in minor units", func(t *testing.T) {
		verifier := &stubVerifier{}
		f := newFixture(t, WithVerifier(verifier))
		order := f.placeOrder(t)

		if _, err := f.service.MarkPaid(ctx, f.buyer, order.ID, receipt); err != nil {
			t.Fatalf("mark paid: %v", err)
		}
		if verifier.gotIntent != "pi_123" || verifier.gotOrder != order.ID || verifier.gotAmount != 208600 {
			t.Errorf("unexpected verification call: %s %s %d", verifier.gotIntent, verifier.gotOrder, verifier.gotAmount)
		}
	})

	t.Run("failed verification leaves the order unpaid", func(t *testing.T) {
		verifier := &stubVerifier{err: domain.ErrPaymentUnverified}
		f := newFixture(t, WithVerifier(verifier))
		order := f.placeOrder(t)

		if _, err := f.service.MarkPaid(ctx, f.buyer, order.ID, receipt); !errors.Is(err, domain.ErrPaymentUnverified) {
			t.Fatalf("expected unverified, got %v", err)
		}
		stored, _ := f.service.Get(ctx, f.buyer, order.ID)
		if stored.IsPaid {
			t.Error("order must remain unpaid")
		}
	})

	t.Run("processor settlement skips verification", func(t *testing.T) {
		verifier := &stubVerifier{err: errors.New("should not be called")}
		f := newFixture(t, WithVerifier(verifier))
		order := f.placeOrder(t)

		paid, err := f.service.SettleFromProcessor(ctx, order.ID, receipt, 208600)
		if err != nil {
			t.Fatalf("settle: %v", err)
		}
		if !paid.IsPaid || verifier.invocations != 0 {
			t.Errorf("expected paid without verification, paid=%v calls=%d", paid.IsPaid, verifier.invocations)
		}
	})

	t.Run("processor settlement for the wrong amount is rejected", func(t *testing.T) {
		f := newFixture(t)
		order := f.placeOrder(t)

		_, err := f.service.SettleFromProcessor(ctx, order.ID, receipt, 100)
		if !errors.Is(err, domain.ErrPaymentUnverified) {
			t.Fatalf("expected unverified, got %v", err)
		}
	})
}

func TestService_ConcurrentSettlement(t *testing.T) {
	f := newFixture(t, WithClock(func() time.Time { return time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC) }))
	ctx := context.Background()
	order := f.placeOrder(t)

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			receipt := domain.PaymentResult{ID: "pi_" + string(rune('a'+i)), Status: "succeeded"}
			_, err := f.service.MarkPaid(ctx, f.buyer, order.ID, receipt)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	succeeded := 0
	for err := range errs {
		switch {
		case err == nil:
			succeeded++
		case !errors.Is(err, domain.ErrAlreadyPaid):
			t.Errorf("unexpected error %v", err)
		}
	}
	if succeeded != 1 {
		t.Errorf("expected exactly one settlement, got %d", succeeded)
	}
}

func TestService_ReceiptReplay(t *testing.T) {
	ctx := context.Background()

	t.Run("an intent opened for one order cannot pay another", func(t *testing.T) {
		var intentOrder atomic.Value
		intentOrder.Store("")
		stripeAPI := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = fmt.Fprintf(w, `{"id":"pi_A","amount":208600,"status":"succeeded","metadata":{"order_id":%q}}`, intentOrder.Load())
		}))
		t.Cleanup(stripeAPI.Close)
		stripe := payment.NewStripeClient(payment.StripeConfig{SecretKey: "sk_test", APIURL: stripeAPI.URL, Currency: "usd", Timeout: 5 * time.Second})

		f := newFixture(t, WithVerifier(stripe))
		orderA := f.placeOrder(t)
		orderB := f.placeOrder(t)
		intentOrder.Store(orderA.ID)
		receipt := domain.PaymentResult{ID: "pi_A", Status: "succeeded"}

		if _, err := f.service.MarkPaid(ctx, f.buyer, orderA.ID, receipt); err != nil {
			t.Fatalf("pay order A: %v", err)
		}
		if _, err := f.service.MarkPaid(ctx, f.buyer, orderB.ID, receipt); !errors.Is(err, domain.ErrPaymentUnverified) {
			t.Fatalf("expected order A's intent to be rejected for order B, got %v", err)
		}
		stored, _ := f.service.Get(ctx, f.buyer, orderB.ID)
		if stored.IsPaid {
			t.Error("order B must remain unpaid")
		}
	})

	t.Run("a recorded receipt cannot settle a second order", func(t *testing.T) {
		f := newFixture(t)
		orderA := f.placeOrder(t)
		orderB := f.placeOrder(t)
		receipt := domain.PaymentResult{ID: "pi_A", Status: "succeeded"}

		if _, err := f.service.MarkPaid(ctx, f.buyer, orderA.ID, receipt); err != nil {
			t.Fatalf("pay order A: %v", err)
		}
		_, err := f.service.SettleFromProcessor(ctx, orderB.ID, receipt, orderB.AmountMinor())
		if !errors.Is(err, domain.ErrPaymentReused) || !errors.Is(err, domain.ErrConflict) {
			t.Fatalf("expected reused receipt conflict, got %v", err)
		}
	})
}

func TestService_StockOnPayment(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	stock := func() int {
		p, err := f.db.Products().GetByID(ctx, f.watch.ID)
		if err != nil {
			t.Fatalf("get product: %v", err)
		}
		return p.CountInStock
	}

	first := f.placeOrder(t)
	second := f.placeOrder(t)
	third := f.placeOrder(t)
	if got := stock(); got != 5 {
		t.Fatalf("expected unpaid orders to leave stock at 5, got %d", got)
	}

	for i, o := range []*domain.Order{first, second} {
		receipt := domain.PaymentResult{ID: "pi_" + strconv.Itoa(i), Status: "succeeded"}
		if _, err := f.service.MarkPaid(ctx, f.buyer, o.ID, receipt); err != nil {
			t.Fatalf("pay order %d: %v", i, err)
		}
	}
	if got := stock(); got != 1 {
		t.Fatalf("expected stock 1 after two payments, got %d", got)
	}

	_, err := f.service.MarkPaid(ctx, f.buyer, third.ID, domain.PaymentResult{ID: "pi_late", Status: "succeeded"})
	if !errors.Is(err, domain.ErrInsufficientStock) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}
	stored, _ := f.service.Get(ctx, f.buyer, third.ID)
	if stored.IsPaid || stock() != 1 {
		t.Errorf("expected third order unpaid and stock 1, got paid=%v stock=%d", stored.IsPaid, stock())
	}

	if _, err := f.service.Create(ctx, f.buyer, CreateInput{
		Items:           []LineInput{{ProductID: f.watch.ID, Qty: 2}},
		ShippingAddress: domain.ShippingAddress{Address: "1 Main St", City: "Geneva", PostalCode: "1200", Country: "CH"},
		PaymentMethod:   "Stripe",
	}); !errors.Is(err, domain.ErrInsufficientStock) {
		t.Errorf("expected new orders beyond stock to be rejected, got %v", err)
	}
}
