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

// OTPRepo defines OTP challenge persistence operations. A challenge is live
// while expires_at is in the future; expired rows are invisible to every
// query here until the sweeper removes them.
type OTPRepo interface {
	GetLiveByPhone(ctx context.Context, phone string) (model.OTPChallenge, error)
	CreateChallenge(ctx context.Context, phone, codeHash string, expiresAt time.Time) (model.OTPChallenge, error)
	IncrementAttempts(ctx context.Context, id uuid.UUID) (int, error)
	Delete(ctx context.Context, id uuid.UUID) error
	CountCreatedSince(ctx context.Context, phone string, since time.Time) (int, error)
	DeleteExpired(ctx context.Context) (int64, error)
}

type otpRepo struct {
	db      *sql.DB
	timeout time.Duration
}

// NewOTPRepo creates an OTPRepo over the given connection.
func NewOTPRepo(db *sql.DB, timeout time.Duration) OTPRepo {
	return &otpRepo{db: db, timeout: timeout}
}

const otpColumns = `id, phone, code_hash, expires_at, attempts, created_at`

func scanChallenge(row *sql.Row) (model.OTPChallenge, error) {
	var c model.OTPChallenge
	err := row.Scan(&c.ID, &c.Phone, &c.CodeHash, &c.ExpiresAt, &c.Attempts, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.OTPChallenge{}, ErrNotFound
		}
		return model.OTPChallenge{}, fmt.Errorf("scan otp challenge: %w", err)
	}
	return c, nil
}

// GetLiveByPhone returns the latest unexpired challenge for the phone.
func (r *otpRepo) GetLiveByPhone(ctx context.Context, phone string) (model.OTPChallenge, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	row := r.db.QueryRowContext(ctx, `
		SELECT `+otpColumns+` FROM otp_challenges
		WHERE phone = $1 AND expires_at > now()
		ORDER BY created_at DESC
		LIMIT 1
	`, phone)
	return scanChallenge(row)
}

// CreateChallenge inserts a new challenge for the phone. Concurrent creates
// for one phone serialize on an advisory lock; the check-then-insert runs
// inside the lock, so the later caller observes the earlier insert and gets
// ErrLiveChallengeExists together with the existing challenge.
func (r *otpRepo) CreateChallenge(ctx context.Context, phone, codeHash string, expiresAt time.Time) (model.OTPChallenge, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return model.OTPChallenge{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(1, hashtext($1))`, phone); err != nil {
		return model.OTPChallenge{}, fmt.Errorf("advisory lock: %w", err)
	}

	var existing model.OTPChallenge
	err = tx.QueryRowContext(ctx, `
		SELECT `+otpColumns+` FROM otp_challenges
		WHERE phone = $1 AND expires_at > now()
		ORDER BY created_at DESC
		LIMIT 1
	`, phone).Scan(&existing.ID, &existing.Phone, &existing.CodeHash, &existing.ExpiresAt, &existing.Attempts, &existing.CreatedAt)
	switch {
	case err == nil:
		return existing, ErrLiveChallengeExists
	case errors.Is(err, sql.ErrNoRows):
		// No live challenge, proceed with the insert.
	default:
		return model.OTPChallenge{}, fmt.Errorf("check live challenge: %w", err)
	}

	var created model.OTPChallenge
	err = tx.QueryRowContext(ctx, `
		INSERT INTO otp_challenges (id, phone, code_hash, expires_at, attempts)
		VALUES ($1, $2, $3, $4, 0)
		RETURNING `+otpColumns+`
	`, uuid.New(), phone, codeHash, expiresAt).Scan(&created.ID, &created.Phone, &created.CodeHash, &created.ExpiresAt, &created.Attempts, &created.CreatedAt)
	if err != nil {
		return model.OTPChallenge{}, fmt.Errorf("insert challenge: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return model.OTPChallenge{}, fmt.Errorf("commit: %w", err)
	}
	return created, nil
}

// IncrementAttempts adds one failed attempt and returns the new count.
func (r *otpRepo) IncrementAttempts(ctx context.Context, id uuid.UUID) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var count int
	err := r.db.QueryRowContext(ctx, `
		UPDATE otp_challenges
		SET attempts = attempts + 1
		WHERE id = $1
		RETURNING attempts
	`, id).Scan(&count)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("increment attempts: %w", err)
	}
	return count, nil
}

// Delete removes the challenge. Deleting an already-removed challenge is
// not an error.
func (r *otpRepo) Delete(ctx context.Context, id uuid.UUID) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if _, err := r.db.ExecContext(ctx, `DELETE FROM otp_challenges WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete challenge: %w", err)
	}
	return nil
}

// CountCreatedSince returns how many challenges were created for the phone
// since the given time, expired or not. Used for per-phone rate limiting.
func (r *otpRepo) CountCreatedSince(ctx context.Context, phone string, since time.Time) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var count int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM otp_challenges
		WHERE phone = $1 AND created_at >= $2
	`, phone, since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count recent challenges: %w", err)
	}
	return count, nil
}

// DeleteExpired purges challenges past their expiry. Called periodically by
// the TTL sweeper.
func (r *otpRepo) DeleteExpired(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `DELETE FROM otp_challenges WHERE expires_at <= now()`)
	if err != nil {
		return 0, fmt.Errorf("delete expired challenges: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
