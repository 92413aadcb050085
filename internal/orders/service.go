package orders

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/kavineshduraisamy/Wirstix-E-commerce/internal/domain"
)

// Repository persists orders. MarkPaid takes stock for every line in the same
// transaction as the paid transition, so unpaid orders never hold stock, and
// rejects a receipt already recorded on another order. MarkPaid and
// MarkDelivered are conditional on the order's current state; MarkPaid reports
// applied=false when the same receipt had already been recorded.
type Repository interface {
	Create(ctx context.Context, o *domain.Order) error
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	ListByUser(ctx context.Context, userID string) ([]domain.Order, error)
	List(ctx context.Context) ([]domain.Order, error)
	MarkPaid(ctx context.Context, id string, receipt domain.PaymentResult, at time.Time) (*domain.Order, bool, error)
	MarkDelivered(ctx context.Context, id string, at time.Time) (*domain.Order, error)
}

type Catalog interface {
	FindByIDs(ctx context.Context, ids []string) (map[string]domain.Product, error)
}

// PaymentVerifier confirms with the payment processor that a receipt id
// settled the expected amount for the given order.
type PaymentVerifier interface {
	VerifyPayment(ctx context.Context, intentID, orderID string, amountMinor int64) error
}

type EventPublisher interface {
	Publish(ctx context.Context, key string, event any) error
}

type Option func(*Service)

func WithVerifier(v PaymentVerifier) Option {
	return func(s *Service) { s.verifier = v }
}

func WithPublisher(p EventPublisher) Option {
	return func(s *Service) { s.publisher = p }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// Service owns the order lifecycle: created, then paid, then delivered.
type Service struct {
	repo      Repository
	catalog   Catalog
	pricing   domain.PricingPolicy
	verifier  PaymentVerifier
	publisher EventPublisher
	logger    *slog.Logger
	now       func() time.Time

	created   metric.Int64Counter
	paid      metric.Int64Counter
	delivered metric.Int64Counter
	revenue   metric.Float64Counter
}

func NewService(repo Repository, catalog Catalog, pricing domain.PricingPolicy, logger *slog.Logger, opts ...Option) (*Service, error) {
	s := &Service{
		repo:    repo,
		catalog: catalog,
		pricing: pricing,
		logger:  logger,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	meter := otel.Meter("orders")
	var err error
	if s.created, err = meter.Int64Counter("orders.created",
		metric.WithDescription("Orders placed")); err != nil {
		return nil, fmt.Errorf("create orders.created counter: %w", err)
	}
	if s.paid, err = meter.Int64Counter("orders.paid",
		metric.WithDescription("Orders settled by the payment processor")); err != nil {
		return nil, fmt.Errorf("create orders.paid counter: %w", err)
	}
	if s.delivered, err = meter.Int64Counter("orders.delivered",
		metric.WithDescription("Orders marked delivered")); err != nil {
		return nil, fmt.Errorf("create orders.delivered counter: %w", err)
	}
	if s.revenue, err = meter.Float64Counter("orders.revenue",
		metric.WithDescription("Sum of paid order totals"), metric.WithUnit("{USD}")); err != nil {
		return nil, fmt.Errorf("create orders.revenue counter: %w", err)
	}

	return s, nil
}

type LineInput struct {
	ProductID string
	Qty       int
}

type CreateInput struct {
	Items           []LineInput
	ShippingAddress domain.ShippingAddress
	PaymentMethod   string
}

// Create places an order for buyer. Line names, prices and images are read
// from the catalog and the totals are computed here; nothing the client
// claims about money is trusted.
func (s *Service) Create(ctx context.Context, buyer *domain.User, in CreateInput) (*domain.Order, error) {
	lines, err := mergeLines(in.Items)
	if err != nil {
		return nil, err
	}

	ids := make([]string, len(lines))
	for i, l := range lines {
		ids[i] = l.ProductID
	}
	products, err := s.catalog.FindByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load order products: %w", err)
	}

	items := make([]domain.OrderItem, 0, len(lines))
	itemsPrice := decimal.Zero
	for _, l := range lines {
		p, ok := products[l.ProductID]
		if !ok {
			return nil, &domain.Error{Kind: domain.ErrNotFound, Message: "Product not found: " + l.ProductID}
		}
		if p.CountInStock < l.Qty {
			return nil, domain.OutOfStock(p.Name)
		}
		items = append(items, domain.OrderItem{
			ProductID: p.ID,
			Name:      p.Name,
			Qty:       l.Qty,
			Image:     p.Image,
			Price:     p.Price,
		})
		itemsPrice = itemsPrice.Add(domain.LineTotal(p.Price, l.Qty))
	}

	now := s.now().UTC()
	order := &domain.Order{
		User:            domain.OrderUser{ID: buyer.ID, Name: buyer.Name, Email: buyer.Email},
		OrderItems:      items,
		ShippingAddress: in.ShippingAddress,
		PaymentMethod:   in.PaymentMethod,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	order.ApplyTotals(domain.Quote(s.pricing, itemsPrice))

	if err := s.repo.Create(ctx, order); err != nil {
		return nil, err
	}

	s.created.Add(ctx, 1)
	s.publish(ctx, domain.OrderCreated, order)
	s.logger.Info("order created", "order_id", order.ID, "user_id", buyer.ID, "total", order.TotalPrice.String())
	return order, nil
}

// mergeLines rejects empty carts and collapses repeated products into one line.
func mergeLines(in []LineInput) ([]LineInput, error) {
	if len(in) == 0 {
		return nil, domain.ErrEmptyOrder
	}
	index := make(map[string]int, len(in))
	var lines []LineInput
	for _, l := range in {
		if l.ProductID == "" {
			return nil, domain.Invalid("product is required")
		}
		if l.Qty < 1 {
			return nil, domain.Invalid("qty must be at least 1")
		}
		if i, ok := index[l.ProductID]; ok {
			lines[i].Qty += l.Qty
			continue
		}
		index[l.ProductID] = len(lines)
		lines = append(lines, l)
	}
	return lines, nil
}

// Get returns an order visible to caller. Non-admin callers only see their own.
func (s *Service) Get(ctx context.Context, caller *domain.User, id string) (*domain.Order, error) {
	order, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !caller.IsAdmin() && !order.OwnedBy(caller.ID) {
		return nil, domain.ErrOrderNotFound
	}
	return order, nil
}

func (s *Service) ListMine(ctx context.Context, caller *domain.User) ([]domain.Order, error) {
	return s.repo.ListByUser(ctx, caller.ID)
}

func (s *Service) ListAll(ctx context.Context) ([]domain.Order, error) {
	return s.repo.List(ctx)
}

// MarkPaid records a settlement receipt submitted by the buyer. When a
// verifier is configured the receipt must be a succeeded payment created for
// this order and for the order total.
func (s *Service) MarkPaid(ctx context.Context, caller *domain.User, id string, receipt domain.PaymentResult) (*domain.Order, error) {
	order, err := s.Get(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	return s.settle(ctx, order, receipt, s.verifier != nil)
}

// SettleFromProcessor records a receipt pushed by the payment processor
// itself. The caller has already authenticated the notification; the settled
// amount must still match the order total.
func (s *Service) SettleFromProcessor(ctx context.Context, id string, receipt domain.PaymentResult, amountMinor int64) (*domain.Order, error) {
	order, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if amountMinor != order.AmountMinor() {
		return nil, fmt.Errorf("%w: settled %d, order total %d", domain.ErrPaymentUnverified, amountMinor, order.AmountMinor())
	}
	return s.settle(ctx, order, receipt, false)
}

func (s *Service) settle(ctx context.Context, order *domain.Order, receipt domain.PaymentResult, verify bool) (*domain.Order, error) {
	apply, err := order.CanPay(receipt)
	if err != nil {
		return nil, err
	}
	if !apply {
		return order, nil
	}

	if verify {
		if err := s.verifier.VerifyPayment(ctx, receipt.ID, order.ID, order.AmountMinor()); err != nil {
			s.logger.Warn("payment verification failed", "order_id", order.ID, "payment_id", receipt.ID, "error", err)
			return nil, err
		}
	}

	updated, applied, err := s.repo.MarkPaid(ctx, order.ID, receipt, s.now().UTC())
	if err != nil {
		return nil, err
	}
	if !applied {
		return updated, nil
	}

	s.paid.Add(ctx, 1)
	s.revenue.Add(ctx, updated.TotalPrice.InexactFloat64(),
		metric.WithAttributes(attribute.String("payment_method", updated.PaymentMethod)))
	s.publish(ctx, domain.OrderPaid, updated)
	s.logger.Info("order paid", "order_id", updated.ID, "payment_id", receipt.ID)
	return updated, nil
}

// MarkDelivered moves a paid order to delivered. Delivery is terminal.
func (s *Service) MarkDelivered(ctx context.Context, id string) (*domain.Order, error) {
	order, err := s.repo.MarkDelivered(ctx, id, s.now().UTC())
	if err != nil {
		return nil, err
	}

	s.delivered.Add(ctx, 1)
	s.publish(ctx, domain.OrderDelivered, order)
	s.logger.Info("order delivered", "order_id", order.ID)
	return order, nil
}

func (s *Service) publish(ctx context.Context, t domain.OrderEventType, order *domain.Order) {
	if s.publisher == nil {
		return
	}
	event := domain.NewOrderEvent(t, order, s.now().UTC())
	if err := s.publisher.Publish(ctx, order.ID, event); err != nil {
		s.logger.Error("failed to publish order event", "error", err, "order_id", order.ID, "type", t)
	}
}
