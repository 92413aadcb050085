package catalog

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/kavineshduraisamy/Wirstix-E-commerce/internal/domain"
	"github.com/kavineshduraisamy/Wirstix-E-commerce/internal/pgutil"
)

type ProductRepository struct {
	db *sql.DB
}

func NewProductRepository(db *sql.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

const productColumns = `id, user_id, name, brand, category, description, image, price,
	count_in_stock, rating, num_reviews, created_at, updated_at`

func scanProduct(row interface{ Scan(...any) error }) (*domain.Product, error) {
	p := &domain.Product{Reviews: []domain.Review{}}
	err := row.Scan(&p.ID, &p.UserID, &p.Name, &p.Brand, &p.Category, &p.Description, &p.Image, &p.Price,
		&p.CountInStock, &p.Rating, &p.NumReviews, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return p, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// List returns one page of products matching the filter, newest first. The
// keyword is a case-insensitive substring match on the name.
func (r *ProductRepository) List(ctx context.Context, f domain.ProductFilter) (domain.ProductPage, error) {
	page := max(f.Page, 1)

	var where []string
	var args []any
	if f.Keyword != "" {
		args = append(args, "%"+likeEscaper.Replace(f.Keyword)+"%")
		where = append(where, "name ILIKE $1")
	}
	if f.Category != "" {
		args = append(args, f.Category)
		where = append(where, "category = $"+strconv.Itoa(len(args)))
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM products`+clause, args...).Scan(&total); err != nil {
		return domain.ProductPage{}, err
	}

	args = append(args, f.PageSize, f.PageSize*(page-1))
	rows, err := r.db.QueryContext(ctx, `SELECT `+productColumns+` FROM products`+clause+
		` ORDER BY created_at DESC LIMIT $`+strconv.Itoa(len(args)-1)+` OFFSET $`+strconv.Itoa(len(args)), args...)
	if err != nil {
		return domain.ProductPage{}, err
	}
	defer func() { _ = rows.Close() }()

	products := []domain.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return domain.ProductPage{}, err
		}
		products = append(products, *p)
	}

	if err := rows.Err(); err != nil {
		return domain.ProductPage{}, err
	}

	return domain.ProductPage{
		Products: products,
		Page:     page,
		Pages:    domain.PageCount(total, f.PageSize),
	}, nil
}

func (r *ProductRepository) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	p, err := scanProduct(r.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrProductNotFound
	}
	if err != nil {
		return nil, err
	}

	p.Reviews, err = r.reviews(ctx, r.db, id)
	if err != nil {
		return nil, err
	}
	return p, nil
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (r *ProductRepository) reviews(ctx context.Context, q querier, productID string) ([]domain.Review, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, user_id, name, rating, comment, created_at
		FROM reviews
		WHERE product_id = $1
		ORDER BY created_at
	`, productID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	reviews := []domain.Review{}
	for rows.Next() {
		var rv domain.Review
		if err := rows.Scan(&rv.ID, &rv.UserID, &rv.Name, &rv.Rating, &rv.Comment, &rv.CreatedAt); err != nil {
			return nil, err
		}
		reviews = append(reviews, rv)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return reviews, nil
}

// FindByIDs loads the products with the given ids in one round trip. Missing
// ids are absent from the result.
func (r *ProductRepository) FindByIDs(ctx context.Context, ids []string) (map[string]domain.Product, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	found := make(map[string]domain.Product, len(ids))
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		found[p.ID] = *p
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return found, nil
}

func (r *ProductRepository) Create(ctx context.Context, p *domain.Product) error {
	p.ID = uuid.New().String()
	p.Reviews = []domain.Review{}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO products (id, user_id, name, brand, category, description, image, price,
			count_in_stock, rating, num_reviews, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 0, 0, $10, $10)
	`, p.ID, p.UserID, p.Name, p.Brand, p.Category, p.Description, p.Image, p.Price, p.CountInStock, p.CreatedAt)
	return err
}

// Update overwrites the editable fields. Review aggregates are left alone.
func (r *ProductRepository) Update(ctx context.Context, p *domain.Product) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE products
		SET name = $2, brand = $3, category = $4, description = $5, image = $6, price = $7,
			count_in_stock = $8, updated_at = $9
		WHERE id = $1
	`, p.ID, p.Name, p.Brand, p.Category, p.Description, p.Image, p.Price, p.CountInStock, p.UpdatedAt)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return domain.ErrProductNotFound
	}
	return nil
}

func (r *ProductRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return domain.ErrProductNotFound
	}
	return nil
}

// AddReview inserts the review and recomputes numReviews and rating in the
// same transaction. The product row is locked so concurrent reviews serialize
// on the aggregate update; the (product, user) unique key rejects a second
// review from the same user.
func (r *ProductRepository) AddReview(ctx context.Context, productID string, rv domain.Review) (*domain.Product, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var locked string
	err = tx.QueryRowContext(ctx, `SELECT id FROM products WHERE id = $1 FOR UPDATE`, productID).Scan(&locked)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrProductNotFound
	}
	if err != nil {
		return nil, err
	}

	rv.ID = uuid.New().String()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO reviews (id, product_id, user_id, name, rating, comment, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, rv.ID, productID, rv.UserID, rv.Name, rv.Rating, rv.Comment, rv.CreatedAt)
	if pgutil.IsUniqueViolation(err) {
		return nil, domain.ErrAlreadyReviewed
	}
	if err != nil {
		return nil, err
	}

	p, err := scanProduct(tx.QueryRowContext(ctx, `
		UPDATE products p
		SET num_reviews = agg.n, rating = agg.mean, updated_at = $2
		FROM (SELECT COUNT(*) AS n, AVG(rating)::double precision AS mean FROM reviews WHERE product_id = $1) agg
		WHERE p.id = $1
		RETURNING p.id, p.user_id, p.name, p.brand, p.category, p.description, p.image, p.price,
			p.count_in_stock, p.rating, p.num_reviews, p.created_at, p.updated_at
	`, productID, rv.CreatedAt))
	if err != nil {
		return nil, err
	}

	if p.Reviews, err = r.reviews(ctx, tx, productID); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return p, nil
}

func (r *ProductRepository) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM products`).Scan(&n)
	return n, err
}
