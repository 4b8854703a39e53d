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

const testTimeout = 5 * time.Second

var userCols = []string{"id", "phone", "role", "name", "phone_verified", "created_at", "updated_at"}

func TestUserRepo_GetByPhone(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	id := uuid.New()
	now := time.Now()
	mock.ExpectQuery("SELECT (.+) FROM users WHERE phone =").
		WithArgs("+15550001234").
		WillReturnRows(sqlmock.NewRows(userCols).
			AddRow(id.String(), "+15550001234", "vendor", "", true, now, now))

	r := NewUserRepo(db, testTimeout)
	user, err := r.GetByPhone(context.Background(), "+15550001234")
	require.NoError(t, err)
	assert.Equal(t, id, user.ID)
	assert.Equal(t, model.RoleVendor, user.Role)
	assert.True(t, user.PhoneVerified)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepo_GetByPhone_notFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT (.+) FROM users WHERE phone =").
		WillReturnRows(sqlmock.NewRows(userCols))

	r := NewUserRepo(db, testTimeout)
	_, err = r.GetByPhone(context.Background(), "+15550009999")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepo_Create(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery("INSERT INTO users").
		WillReturnRows(sqlmock.NewRows(userCols).
			AddRow(uuid.NewString(), "+15550001234", "vendor", "", true, now, now))

	r := NewUserRepo(db, testTimeout)
	user, err := r.Create(context.Background(), "+15550001234", model.RoleVendor)
	require.NoError(t, err)
	assert.True(t, user.PhoneVerified, "users are created verified")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepo_MarkPhoneVerified(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	id := uuid.New()
	now := time.Now()
	mock.ExpectQuery("UPDATE users").
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows(userCols).
			AddRow(id.String(), "+15550001234", "customer", "Ada", true, now, now))

	r := NewUserRepo(db, testTimeout)
	user, err := r.MarkPhoneVerified(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, user.PhoneVerified)
	assert.Equal(t, "Ada", user.Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}
