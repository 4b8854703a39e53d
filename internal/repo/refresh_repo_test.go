package repo

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vendora/server/internal/model"
)

var refreshCols = []string{
	"id", "user_id", "token_hash", "expires_at", "revoked_at", "replaced_by",
	"device_id", "user_agent", "ip", "created_at",
}

func sampleToken() model.RefreshToken {
	return model.RefreshToken{
		ID:        uuid.New(),
		UserID:    uuid.New(),
		TokenHash: "$2a$10$hash",
		ExpiresAt: time.Now().Add(30 * 24 * time.Hour),
		Device:    model.DeviceInfo{DeviceID: "dev-1", UserAgent: "go-test", IP: "127.0.0.1"},
	}
}

func TestRefreshRepo_GetActive_notFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT (.+) FROM refresh_tokens").
		WillReturnRows(sqlmock.NewRows(refreshCols))

	r := NewRefreshRepo(db, testTimeout)
	_, err = r.GetActive(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRefreshRepo_Create(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	token := sampleToken()
	now := time.Now()
	mock.ExpectQuery("INSERT INTO refresh_tokens").
		WillReturnRows(sqlmock.NewRows(refreshCols).
			AddRow(token.ID.String(), token.UserID.String(), token.TokenHash, token.ExpiresAt,
				nil, nil, "dev-1", "go-test", "127.0.0.1", now))

	r := NewRefreshRepo(db, testTimeout)
	created, err := r.Create(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, token.ID, created.ID)
	assert.Nil(t, created.RevokedAt)
	assert.Nil(t, created.ReplacedBy)
	assert.Equal(t, "dev-1", created.Device.DeviceID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRefreshRepo_Rotate(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	oldID := uuid.New()
	replacement := sampleToken()
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE refresh_tokens").
		WithArgs(oldID, replacement.ID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("INSERT INTO refresh_tokens").
		WillReturnRows(sqlmock.NewRows(refreshCols).
			AddRow(replacement.ID.String(), replacement.UserID.String(), replacement.TokenHash,
				replacement.ExpiresAt, nil, nil, "dev-1", "go-test", "127.0.0.1", now))
	mock.ExpectCommit()

	r := NewRefreshRepo(db, testTimeout)
	created, err := r.Rotate(context.Background(), oldID, replacement)
	require.NoError(t, err)
	assert.Equal(t, replacement.ID, created.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRefreshRepo_Rotate_concurrentLoserFails(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	// The conditional UPDATE matched nothing: the token was already revoked
	// by a concurrent rotation. No insert happens.
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE refresh_tokens").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	r := NewRefreshRepo(db, testTimeout)
	_, err = r.Rotate(context.Background(), uuid.New(), sampleToken())
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRefreshRepo_Revoke_idempotent(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	// Zero rows updated (unknown or already revoked) is still success.
	mock.ExpectExec("UPDATE refresh_tokens SET revoked_at").
		WillReturnResult(sqlmock.NewResult(0, 0))

	r := NewRefreshRepo(db, testTimeout)
	assert.NoError(t, r.Revoke(context.Background(), uuid.New()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRefreshRepo_RevokeAllForUser(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	userID := uuid.New()
	mock.ExpectExec("UPDATE refresh_tokens SET revoked_at").
		WithArgs(userID).
		WillReturnResult(sqlmock.NewResult(0, 3))

	r := NewRefreshRepo(db, testTimeout)
	assert.NoError(t, r.RevokeAllForUser(context.Background(), userID))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRefreshRepo_DeleteExpired(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("DELETE FROM refresh_tokens WHERE expires_at").
		WillReturnResult(sqlmock.NewResult(0, 2))

	r := NewRefreshRepo(db, testTimeout)
	n, err := r.DeleteExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
