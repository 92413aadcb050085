package users

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/kavineshduraisamy/Wirstix-E-commerce/internal/domain"
	"github.com/kavineshduraisamy/Wirstix-E-commerce/internal/pgutil"
)

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `id, name, email, password_hash, role, is_blocked, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (*domain.User, error) {
	u := &domain.User{}
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Role, &u.IsBlocked, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (r *UserRepository) Create(ctx context.Context, u *domain.User) error {
	u.ID = uuid.New().String()
	if u.Role == "" {
		u.Role = domain.RoleUser
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, name, email, password_hash, role, is_blocked, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, u.ID, u.Name, u.Email, u.PasswordHash, u.Role, u.IsBlocked, u.CreatedAt, u.UpdatedAt)
	if pgutil.IsUniqueViolation(err) {
		return domain.ErrEmailTaken
	}
	return err
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrUserNotFound
	}
	return u, err
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrUserNotFound
	}
	return u, err
}

func (r *UserRepository) List(ctx context.Context) ([]domain.User, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	users := []domain.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return users, nil
}

func (r *UserRepository) Update(ctx context.Context, u *domain.User) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE users
		SET name = $2, email = $3, password_hash = $4, role = $5, is_blocked = $6, updated_at = $7
		WHERE id = $1
	`, u.ID, u.Name, u.Email, u.PasswordHash, u.Role, u.IsBlocked, u.UpdatedAt)
	if pgutil.IsUniqueViolation(err) {
		return domain.ErrEmailTaken
	}
	if err != nil {
		return err
	}
	return expectOne(result, domain.ErrUserNotFound)
}

// UpdateProfile writes only the self-service fields of u. Role and the
// blocked flag keep whatever value the row holds.
func (r *UserRepository) UpdateProfile(ctx context.Context, u *domain.User) (*domain.User, error) {
	updated, err := scanUser(r.db.QueryRowContext(ctx, `
		UPDATE users
		SET name = $2, email = $3, password_hash = $4, updated_at = $5
		WHERE id = $1
		RETURNING `+userColumns,
		u.ID, u.Name, u.Email, u.PasswordHash, u.UpdatedAt))
	if pgutil.IsUniqueViolation(err) {
		return nil, domain.ErrEmailTaken
	}
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrUserNotFound
	}
	return updated, err
}

// DeleteNonAdmin removes a user unless it is an admin. The role check and the
// delete are one statement.
func (r *UserRepository) DeleteNonAdmin(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1 AND role <> $2`, id, domain.RoleAdmin)
	if err != nil {
		return err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected > 0 {
		return nil
	}

	var exists bool
	if err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, id).Scan(&exists); err != nil {
		return err
	}
	if exists {
		return domain.ErrAdminDelete
	}
	return domain.ErrUserNotFound
}

func (r *UserRepository) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n)
	return n, err
}

func expectOne(result sql.Result, notFound error) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return notFound
	}
	return nil
}
