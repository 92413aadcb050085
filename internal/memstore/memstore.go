// Package memstore is an in-memory implementation of the storefront
// repositories. It backs handler and service tests and mirrors the
// constraints the Postgres schema enforces.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kavineshduraisamy/Wirstix-E-commerce/internal/domain"
)

// DB holds every collection behind one lock so that multi-collection writes
// (payment taking stock) are atomic.
type DB struct {
	mu       sync.RWMutex
	users    map[string]domain.User
	products map[string]domain.Product
	orders   map[string]domain.Order
}

func New() *DB {
	return &DB{
		users:    make(map[string]domain.User),
		products: make(map[string]domain.Product),
		orders:   make(map[string]domain.Order),
	}
}

func (db *DB) Users() *Users       { return &Users{db: db} }
func (db *DB) Products() *Products { return &Products{db: db} }
func (db *DB) Orders() *Orders     { return &Orders{db: db} }

type Users struct{ db *DB }

func (s *Users) Create(_ context.Context, u *domain.User) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	for _, existing := range s.db.users {
		if existing.Email == u.Email {
			return domain.ErrEmailTaken
		}
	}
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	if u.Role == "" {
		u.Role = domain.RoleUser
	}
	s.db.users[u.ID] = *u
	return nil
}

func (s *Users) GetByID(_ context.Context, id string) (*domain.User, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	u, ok := s.db.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return &u, nil
}

func (s *Users) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	for _, u := range s.db.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (s *Users) List(_ context.Context) ([]domain.User, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	users := make([]domain.User, 0, len(s.db.users))
	for _, u := range s.db.users {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].CreatedAt.Before(users[j].CreatedAt) })
	return users, nil
}

func (s *Users) Update(_ context.Context, u *domain.User) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	if _, ok := s.db.users[u.ID]; !ok {
		return domain.ErrUserNotFound
	}
	for id, existing := range s.db.users {
		if id != u.ID && existing.Email == u.Email {
			return domain.ErrEmailTaken
		}
	}
	s.db.users[u.ID] = *u
	return nil
}

func (s *Users) UpdateProfile(_ context.Context, u *domain.User) (*domain.User, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	stored, ok := s.db.users[u.ID]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	for id, existing := range s.db.users {
		if id != u.ID && existing.Email == u.Email {
			return nil, domain.ErrEmailTaken
		}
	}
	stored.Name = u.Name
	stored.Email = u.Email
	stored.PasswordHash = u.PasswordHash
	stored.UpdatedAt = u.UpdatedAt
	s.db.users[u.ID] = stored
	return &stored, nil
}

func (s *Users) DeleteNonAdmin(_ context.Context, id string) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	u, ok := s.db.users[id]
	if !ok {
		return domain.ErrUserNotFound
	}
	if u.IsAdmin() {
		return domain.ErrAdminDelete
	}
	delete(s.db.users, id)
	return nil
}

func (s *Users) Count(_ context.Context) (int, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	return len(s.db.users), nil
}

type Products struct{ db *DB }

func (s *Products) List(_ context.Context, f domain.ProductFilter) (domain.ProductPage, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	keyword := strings.ToLower(f.Keyword)
	var matched []domain.Product
	for _, p := range s.db.products {
		if keyword != "" && !strings.Contains(strings.ToLower(p.Name), keyword) {
			continue
		}
		if f.Category != "" && !strings.EqualFold(p.Category, f.Category) {
			continue
		}
		p.Reviews = nil
		matched = append(matched, p)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })

	page := max(f.Page, 1)
	start := min((page-1)*f.PageSize, len(matched))
	end := min(start+f.PageSize, len(matched))

	products := make([]domain.Product, 0, end-start)
	products = append(products, matched[start:end]...)
	return domain.ProductPage{
		Products: products,
		Page:     page,
		Pages:    domain.PageCount(len(matched), f.PageSize),
	}, nil
}

func (s *Products) GetByID(_ context.Context, id string) (*domain.Product, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	p, ok := s.db.products[id]
	if !ok {
		return nil, domain.ErrProductNotFound
	}
	p = cloneProduct(p)
	return &p, nil
}

func (s *Products) FindByIDs(_ context.Context, ids []string) (map[string]domain.Product, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	found := make(map[string]domain.Product, len(ids))
	for _, id := range ids {
		if p, ok := s.db.products[id]; ok {
			found[id] = cloneProduct(p)
		}
	}
	return found, nil
}

func (s *Products) Create(_ context.Context, p *domain.Product) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.Reviews == nil {
		p.Reviews = []domain.Review{}
	}
	s.db.products[p.ID] = cloneProduct(*p)
	return nil
}

func (s *Products) Update(_ context.Context, p *domain.Product) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	existing, ok := s.db.products[p.ID]
	if !ok {
		return domain.ErrProductNotFound
	}
	p.Reviews = existing.Reviews
	p.Rating = existing.Rating
	p.NumReviews = existing.NumReviews
	s.db.products[p.ID] = cloneProduct(*p)
	return nil
}

func (s *Products) Delete(_ context.Context, id string) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	if _, ok := s.db.products[id]; !ok {
		return domain.ErrProductNotFound
	}
	delete(s.db.products, id)
	return nil
}

func (s *Products) AddReview(_ context.Context, productID string, r domain.Review) (*domain.Product, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	p, ok := s.db.products[productID]
	if !ok {
		return nil, domain.ErrProductNotFound
	}
	p = cloneProduct(p)
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if err := p.AddReview(r); err != nil {
		return nil, err
	}
	p.UpdatedAt = r.CreatedAt
	s.db.products[productID] = p

	out := cloneProduct(p)
	return &out, nil
}

func (s *Products) Count(_ context.Context) (int, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	return len(s.db.products), nil
}

type Orders struct{ db *DB }

// Create stores the order. Stock is taken when the order is paid.
func (s *Orders) Create(_ context.Context, o *domain.Order) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	if o.ID == "" {
		o.ID = uuid.New().String()
	}
	s.db.orders[o.ID] = cloneOrder(*o)
	return nil
}

func (s *Orders) GetByID(_ context.Context, id string) (*domain.Order, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	o, ok := s.db.orders[id]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	o = s.withUser(o, true)
	return &o, nil
}

func (s *Orders) ListByUser(_ context.Context, userID string) ([]domain.Order, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	orders := []domain.Order{}
	for _, o := range s.db.orders {
		if o.User.ID == userID {
			orders = append(orders, cloneOrder(o))
		}
	}
	sortNewestFirst(orders)
	return orders, nil
}

func (s *Orders) List(_ context.Context) ([]domain.Order, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	orders := make([]domain.Order, 0, len(s.db.orders))
	for _, o := range s.db.orders {
		orders = append(orders, s.withUser(o, false))
	}
	sortNewestFirst(orders)
	return orders, nil
}

// MarkPaid records the receipt unless the order is already paid and takes
// stock for every line, all or nothing. applied is false when the same
// receipt was recorded before. A receipt recorded on another paid order is
// rejected.
func (s *Orders) MarkPaid(_ context.Context, id string, receipt domain.PaymentResult, at time.Time) (*domain.Order, bool, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	o, ok := s.db.orders[id]
	if !ok {
		return nil, false, domain.ErrOrderNotFound
	}
	o = cloneOrder(o)
	apply, err := o.CanPay(receipt)
	if err != nil {
		return nil, false, err
	}
	if apply {
		for otherID, other := range s.db.orders {
			if otherID != id && other.IsPaid && other.PaymentResult != nil && other.PaymentResult.ID == receipt.ID {
				return nil, false, domain.ErrPaymentReused
			}
		}
		for _, item := range o.OrderItems {
			p, ok := s.db.products[item.ProductID]
			if !ok || p.CountInStock < item.Qty {
				return nil, false, domain.OutOfStock(item.Name)
			}
		}
		for _, item := range o.OrderItems {
			p := s.db.products[item.ProductID]
			p.CountInStock -= item.Qty
			s.db.products[item.ProductID] = p
		}
		o.MarkPaid(receipt, at)
		s.db.orders[id] = cloneOrder(o)
	}
	o = s.withUser(o, true)
	return &o, apply, nil
}

func (s *Orders) MarkDelivered(_ context.Context, id string, at time.Time) (*domain.Order, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	o, ok := s.db.orders[id]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	o = cloneOrder(o)
	if err := o.CanDeliver(); err != nil {
		return nil, err
	}
	o.MarkDelivered(at)
	s.db.orders[id] = cloneOrder(o)

	o = s.withUser(o, true)
	return &o, nil
}

func (s *Orders) Revenue(_ context.Context) (decimal.Decimal, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	total := decimal.Zero
	for _, o := range s.db.orders {
		if o.IsPaid {
			total = total.Add(o.TotalPrice)
		}
	}
	return total, nil
}

// withUser joins the purchaser's name, and optionally email, into a copy of o.
// Caller holds the lock.
func (s *Orders) withUser(o domain.Order, withEmail bool) domain.Order {
	o = cloneOrder(o)
	if u, ok := s.db.users[o.User.ID]; ok {
		o.User.Name = u.Name
		if withEmail {
			o.User.Email = u.Email
		}
	}
	return o
}

func sortNewestFirst(orders []domain.Order) {
	sort.Slice(orders, func(i, j int) bool { return orders[i].CreatedAt.After(orders[j].CreatedAt) })
}

func cloneProduct(p domain.Product) domain.Product {
	p.Reviews = append([]domain.Review{}, p.Reviews...)
	return p
}

func cloneOrder(o domain.Order) domain.Order {
	o.OrderItems = append([]domain.OrderItem{}, o.OrderItems...)
	if o.PaymentResult != nil {
		receipt := *o.PaymentResult
		o.PaymentResult = &receipt
	}
	if o.PaidAt != nil {
		t := *o.PaidAt
		o.PaidAt = &t
	}
	if o.DeliveredAt != nil {
		t := *o.DeliveredAt
		o.DeliveredAt = &t
	}
	return o
}
