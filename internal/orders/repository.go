package orders

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kavineshduraisamy/Wirstix-E-commerce/internal/domain"
	"github.com/kavineshduraisamy/Wirstix-E-commerce/internal/pgutil"
)

type OrderRepository struct {
	db *sql.DB
}

func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// Create inserts the order. Stock is taken when the order is paid.
func (r *OrderRepository) Create(ctx context.Context, order *domain.Order) error {
	items, err := json.Marshal(order.OrderItems)
	if err != nil {
		return fmt.Errorf("marshal order items: %w", err)
	}
	address, err := json.Marshal(order.ShippingAddress)
	if err != nil {
		return fmt.Errorf("marshal shipping address: %w", err)
	}

	order.ID = uuid.New().String()

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO orders (id, user_id, order_items, shipping_address, payment_method,
			items_price, tax_price, shipping_price, total_price, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
	`, order.ID, order.User.ID, items, address, order.PaymentMethod,
		order.ItemsPrice, order.TaxPrice, order.ShippingPrice, order.TotalPrice, order.CreatedAt)
	return err
}

const orderColumns = `o.id, o.user_id, COALESCE(u.name, ''), COALESCE(u.email, ''), o.order_items,
	o.shipping_address, o.payment_method, o.items_price, o.tax_price, o.shipping_price, o.total_price,
	o.is_paid, o.paid_at, o.payment_result, o.is_delivered, o.delivered_at, o.created_at, o.updated_at`

func scanOrder(row interface{ Scan(...any) error }) (*domain.Order, error) {
	var (
		o                      domain.Order
		items, address, result []byte
		paidAt, deliveredAt    sql.NullTime
	)
	err := row.Scan(&o.ID, &o.User.ID, &o.User.Name, &o.User.Email, &items,
		&address, &o.PaymentMethod, &o.ItemsPrice, &o.TaxPrice, &o.ShippingPrice, &o.TotalPrice,
		&o.IsPaid, &paidAt, &result, &o.IsDelivered, &deliveredAt, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(items, &o.OrderItems); err != nil {
		return nil, fmt.Errorf("unmarshal order items: %w", err)
	}
	if err := json.Unmarshal(address, &o.ShippingAddress); err != nil {
		return nil, fmt.Errorf("unmarshal shipping address: %w", err)
	}
	if len(result) > 0 {
		o.PaymentResult = &domain.PaymentResult{}
		if err := json.Unmarshal(result, o.PaymentResult); err != nil {
			return nil, fmt.Errorf("unmarshal payment result: %w", err)
		}
	}
	if paidAt.Valid {
		o.PaidAt = &paidAt.Time
	}
	if deliveredAt.Valid {
		o.DeliveredAt = &deliveredAt.Time
	}
	return &o, nil
}

// GetByID returns the order with the purchaser's name and email joined in.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	order, err := scanOrder(r.db.QueryRowContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders o
		LEFT JOIN users u ON u.id = o.user_id
		WHERE o.id = $1
	`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrOrderNotFound
	}
	return order, err
}

func (r *OrderRepository) ListByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	return r.list(ctx, `
		SELECT `+orderColumns+`
		FROM orders o
		LEFT JOIN users u ON u.id = o.user_id
		WHERE o.user_id = $1
		ORDER BY o.created_at DESC
	`, userID)
}

// List returns every order with the purchaser's name joined in.
func (r *OrderRepository) List(ctx context.Context) ([]domain.Order, error) {
	orders, err := r.list(ctx, `
		SELECT `+orderColumns+`
		FROM orders o
		LEFT JOIN users u ON u.id = o.user_id
		ORDER BY o.created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		orders[i].User.Email = ""
	}
	return orders, nil
}

func (r *OrderRepository) list(ctx context.Context, query string, args ...any) ([]domain.Order, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	orders := []domain.Order{}
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *order)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return orders, nil
}

// MarkPaid sets the paid fields only while the order is unpaid, so concurrent
// settlements cannot overwrite each other's receipt. Stock for every line is
// taken in the same transaction; a short line rolls the payment back. A
// receipt already recorded on another paid order is rejected by the
// orders_payment_id_key index.
func (r *OrderRepository) MarkPaid(ctx context.Context, id string, receipt domain.PaymentResult, at time.Time) (*domain.Order, bool, error) {
	data, err := json.Marshal(receipt)
	if err != nil {
		return nil, false, fmt.Errorf("marshal payment result: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, err
	}
	defer func() { _ = tx.Rollback() }()

	var items []byte
	err = tx.QueryRowContext(ctx, `
		UPDATE orders
		SET is_paid = TRUE, paid_at = $2, payment_result = $3, updated_at = $2
		WHERE id = $1 AND NOT is_paid
		RETURNING order_items
	`, id, at, data).Scan(&items)
	if pgutil.IsUniqueViolation(err) {
		return nil, false, domain.ErrPaymentReused
	}
	if errors.Is(err, sql.ErrNoRows) {
		return r.repaid(ctx, id, receipt)
	}
	if err != nil {
		return nil, false, err
	}

	var lines []domain.OrderItem
	if err := json.Unmarshal(items, &lines); err != nil {
		return nil, false, fmt.Errorf("unmarshal order items: %w", err)
	}
	if err := takeStock(ctx, tx, lines); err != nil {
		return nil, false, err
	}

	if err := tx.Commit(); err != nil {
		return nil, false, err
	}

	order, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return order, true, nil
}

// repaid resolves a MarkPaid that matched no unpaid order: a missing order, a
// replay of the recorded receipt, or a conflicting one.
func (r *OrderRepository) repaid(ctx context.Context, id string, receipt domain.PaymentResult) (*domain.Order, bool, error) {
	order, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, false, err
	}
	if _, err := order.CanPay(receipt); err != nil {
		return nil, false, err
	}
	return order, false, nil
}

// takeStock decrements stock for each line, locking rows in product order so
// concurrent payments cannot deadlock.
func takeStock(ctx context.Context, tx *sql.Tx, items []domain.OrderItem) error {
	lines := slices.Clone(items)
	slices.SortFunc(lines, func(a, b domain.OrderItem) int {
		return strings.Compare(a.ProductID, b.ProductID)
	})
	for _, item := range lines {
		result, err := tx.ExecContext(ctx, `
			UPDATE products
			SET count_in_stock = count_in_stock - $2
			WHERE id = $1 AND count_in_stock >= $2
		`, item.ProductID, item.Qty)
		if err != nil {
			return err
		}

		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if rowsAffected == 0 {
			return domain.OutOfStock(item.Name)
		}
	}
	return nil
}

// MarkDelivered sets the delivered fields only on a paid, undelivered order.
func (r *OrderRepository) MarkDelivered(ctx context.Context, id string, at time.Time) (*domain.Order, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE orders
		SET is_delivered = TRUE, delivered_at = $2, updated_at = $2
		WHERE id = $1 AND is_paid AND NOT is_delivered
	`, id, at)
	if err != nil {
		return nil, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}

	order, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if rowsAffected == 0 {
		if err := order.CanDeliver(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("order %s changed concurrently", id)
	}
	return order, nil
}

// Revenue sums the totals of paid orders.
func (r *OrderRepository) Revenue(ctx context.Context) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(total_price), 0) FROM orders WHERE is_paid`).Scan(&total)
	return total, err
}
