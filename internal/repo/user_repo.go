package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vendora/server/internal/model"
)

// UserRepo defines user persistence operations.
type UserRepo interface {
	GetByID(ctx context.Context, id uuid.UUID) (model.User, error)
	GetByPhone(ctx context.Context, phone string) (model.User, error)
	Create(ctx context.Context, phone string, role model.Role) (model.User, error)
	MarkPhoneVerified(ctx context.Context, id uuid.UUID) (model.User, error)
}

type userRepo struct {
	db      *sql.DB
	timeout time.Duration
}

// NewUserRepo creates a UserRepo over the given connection. Every call is
// bounded by the configured timeout.
func NewUserRepo(db *sql.DB, timeout time.Duration) UserRepo {
	return &userRepo{db: db, timeout: timeout}
}

const userColumns = `id, phone, role, COALESCE(name, ''), phone_verified, created_at, updated_at`

func scanUser(row *sql.Row) (model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.Phone, &u.Role, &u.Name, &u.PhoneVerified, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.User{}, ErrNotFound
		}
		return model.User{}, fmt.Errorf("scan user: %w", err)
	}
	return u, nil
}

// GetByID retrieves a user by id.
func (r *userRepo) GetByID(ctx context.Context, id uuid.UUID) (model.User, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	row := r.db.QueryRowContext(ctx, `
		SELECT `+userColumns+` FROM users WHERE id = $1
	`, id)
	return scanUser(row)
}

// GetByPhone retrieves a user by canonical phone number.
func (r *userRepo) GetByPhone(ctx context.Context, phone string) (model.User, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	row := r.db.QueryRowContext(ctx, `
		SELECT `+userColumns+` FROM users WHERE phone = $1
	`, phone)
	return scanUser(row)
}

// Create inserts a new user with the phone already verified (users are only
// created on successful OTP verification).
func (r *userRepo) Create(ctx context.Context, phone string, role model.Role) (model.User, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	row := r.db.QueryRowContext(ctx, `
		INSERT INTO users (id, phone, role, phone_verified)
		VALUES ($1, $2, $3, TRUE)
		RETURNING `+userColumns+`
	`, uuid.New(), phone, role)
	u, err := scanUser(row)
	if err != nil {
		return model.User{}, fmt.Errorf("insert user: %w", err)
	}
	return u, nil
}

// MarkPhoneVerified sets phone_verified and returns the updated user.
func (r *userRepo) MarkPhoneVerified(ctx context.Context, id uuid.UUID) (model.User, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	row := r.db.QueryRowContext(ctx, `
		UPDATE users
		SET phone_verified = TRUE, updated_at = now()
		WHERE id = $1
		RETURNING `+userColumns+`
	`, id)
	return scanUser(row)
}
