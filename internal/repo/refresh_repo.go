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

// RefreshRepo defines refresh token persistence operations. Tokens are never
// physically deleted while live; they only gain revoked_at/replaced_by marks
// until the sweeper removes them after expiry.
type RefreshRepo interface {
	Create(ctx context.Context, token model.RefreshToken) (model.RefreshToken, error)
	GetActive(ctx context.Context, id uuid.UUID) (model.RefreshToken, error)
	GetUnrevoked(ctx context.Context, id uuid.UUID) (model.RefreshToken, error)
	Rotate(ctx context.Context, oldID uuid.UUID, replacement model.RefreshToken) (model.RefreshToken, error)
	Revoke(ctx context.Context, id uuid.UUID) error
	RevokeAllForUser(ctx context.Context, userID uuid.UUID) error
	DeleteExpired(ctx context.Context) (int64, error)
}

type refreshRepo struct {
	db      *sql.DB
	timeout time.Duration
}

// NewRefreshRepo creates a RefreshRepo over the given connection.
func NewRefreshRepo(db *sql.DB, timeout time.Duration) RefreshRepo {
	return &refreshRepo{db: db, timeout: timeout}
}

const refreshColumns = `id, user_id, token_hash, expires_at, revoked_at, replaced_by,
	COALESCE(device_id, ''), COALESCE(user_agent, ''), COALESCE(ip, ''), created_at`

func scanRefreshToken(row *sql.Row) (model.RefreshToken, error) {
	var t model.RefreshToken
	var replacedBy uuid.NullUUID
	err := row.Scan(&t.ID, &t.UserID, &t.TokenHash, &t.ExpiresAt, &t.RevokedAt, &replacedBy,
		&t.Device.DeviceID, &t.Device.UserAgent, &t.Device.IP, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.RefreshToken{}, ErrNotFound
		}
		return model.RefreshToken{}, fmt.Errorf("scan refresh token: %w", err)
	}
	if replacedBy.Valid {
		t.ReplacedBy = &replacedBy.UUID
	}
	return t, nil
}

// Create inserts a new refresh token record. The record's ID must be set by
// the caller (it is embedded in the plaintext handed to the client).
func (r *refreshRepo) Create(ctx context.Context, token model.RefreshToken) (model.RefreshToken, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	row := r.db.QueryRowContext(ctx, `
		INSERT INTO refresh_tokens (id, user_id, token_hash, expires_at, device_id, user_agent, ip)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''), NULLIF($7, ''))
		RETURNING `+refreshColumns+`
	`, token.ID, token.UserID, token.TokenHash, token.ExpiresAt,
		token.Device.DeviceID, token.Device.UserAgent, token.Device.IP)
	created, err := scanRefreshToken(row)
	if err != nil {
		return model.RefreshToken{}, fmt.Errorf("insert refresh token: %w", err)
	}
	return created, nil
}

// GetActive returns the token if it is unrevoked and unexpired.
func (r *refreshRepo) GetActive(ctx context.Context, id uuid.UUID) (model.RefreshToken, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	row := r.db.QueryRowContext(ctx, `
		SELECT `+refreshColumns+` FROM refresh_tokens
		WHERE id = $1 AND revoked_at IS NULL AND expires_at > now()
	`, id)
	return scanRefreshToken(row)
}

// GetUnrevoked returns the token if it has not been revoked, expired or not.
// Logout operates on this wider set.
func (r *refreshRepo) GetUnrevoked(ctx context.Context, id uuid.UUID) (model.RefreshToken, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	row := r.db.QueryRowContext(ctx, `
		SELECT `+refreshColumns+` FROM refresh_tokens
		WHERE id = $1 AND revoked_at IS NULL
	`, id)
	return scanRefreshToken(row)
}

// Rotate atomically inserts the replacement and revokes the old token,
// chaining them via replaced_by. The revoking UPDATE is conditional on
// revoked_at still being NULL: if a concurrent rotation already consumed the
// old token, zero rows are updated, the transaction rolls back, and
// ErrNotFound is returned so the loser fails like an unknown token.
func (r *refreshRepo) Rotate(ctx context.Context, oldID uuid.UUID, replacement model.RefreshToken) (model.RefreshToken, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return model.RefreshToken{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE refresh_tokens
		SET revoked_at = now(), replaced_by = $2
		WHERE id = $1 AND revoked_at IS NULL
	`, oldID, replacement.ID)
	if err != nil {
		return model.RefreshToken{}, fmt.Errorf("revoke old token: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.RefreshToken{}, ErrNotFound
	}

	var created model.RefreshToken
	var replacedBy uuid.NullUUID
	err = tx.QueryRowContext(ctx, `
		INSERT INTO refresh_tokens (id, user_id, token_hash, expires_at, device_id, user_agent, ip)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''), NULLIF($7, ''))
		RETURNING `+refreshColumns+`
	`, replacement.ID, replacement.UserID, replacement.TokenHash, replacement.ExpiresAt,
		replacement.Device.DeviceID, replacement.Device.UserAgent, replacement.Device.IP).Scan(
		&created.ID, &created.UserID, &created.TokenHash, &created.ExpiresAt, &created.RevokedAt,
		&replacedBy, &created.Device.DeviceID, &created.Device.UserAgent, &created.Device.IP, &created.CreatedAt)
	if err != nil {
		return model.RefreshToken{}, fmt.Errorf("insert replacement token: %w", err)
	}
	if replacedBy.Valid {
		created.ReplacedBy = &replacedBy.UUID
	}

	if err := tx.Commit(); err != nil {
		return model.RefreshToken{}, fmt.Errorf("commit: %w", err)
	}
	return created, nil
}

// Revoke marks the token revoked. Revoking an already-revoked or unknown
// token is not an error.
func (r *refreshRepo) Revoke(ctx context.Context, id uuid.UUID) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if _, err := r.db.ExecContext(ctx, `
		UPDATE refresh_tokens SET revoked_at = now() WHERE id = $1 AND revoked_at IS NULL
	`, id); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

// RevokeAllForUser revokes every active token of the user.
func (r *refreshRepo) RevokeAllForUser(ctx context.Context, userID uuid.UUID) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if _, err := r.db.ExecContext(ctx, `
		UPDATE refresh_tokens SET revoked_at = now() WHERE user_id = $1 AND revoked_at IS NULL
	`, userID); err != nil {
		return fmt.Errorf("revoke all tokens for user: %w", err)
	}
	return nil
}

// DeleteExpired purges tokens past their expiry. Called periodically by the
// TTL sweeper; revocation marks are kept until then.
func (r *refreshRepo) DeleteExpired(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE expires_at <= now()`)
	if err != nil {
		return 0, fmt.Errorf("delete expired tokens: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
