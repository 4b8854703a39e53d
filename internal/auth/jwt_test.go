package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vendora/server/internal/model"
)

func testUser() model.User {
	return model.User{
		ID:            uuid.New(),
		Phone:         "+15550001234",
		Role:          model.RoleVendor,
		PhoneVerified: true,
	}
}

func TestJWTCodec_roundTrip(t *testing.T) {
	codec := NewJWTCodec("test-secret-at-least-32-characters!!", 15*time.Minute)
	user := testUser()

	token, err := codec.Sign(user)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := codec.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, user.Phone, claims.Phone)
	assert.Equal(t, model.RoleVendor, claims.Role)
}

func TestJWTCodec_expired(t *testing.T) {
	codec := NewJWTCodec("test-secret-at-least-32-characters!!", -time.Minute)

	token, err := codec.Sign(testUser())
	require.NoError(t, err)

	_, err = codec.Verify(token)
	assert.ErrorIs(t, err, ErrTokenExpired, "past-TTL token with a valid signature must fail as expired")
}

func TestJWTCodec_invalid(t *testing.T) {
	codec := NewJWTCodec("test-secret-at-least-32-characters!!", 15*time.Minute)
	other := NewJWTCodec("a-completely-different-signing-key!!", 15*time.Minute)

	token, err := other.Sign(testUser())
	require.NoError(t, err)

	_, err = codec.Verify(token)
	assert.ErrorIs(t, err, ErrTokenInvalid, "wrong signature must fail as invalid, not expired")

	_, err = codec.Verify("not.a.jwt")
	assert.ErrorIs(t, err, ErrTokenInvalid)

	_, err = codec.Verify("")
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestJWTCodec_tampered(t *testing.T) {
	codec := NewJWTCodec("test-secret-at-least-32-characters!!", 15*time.Minute)

	token, err := codec.Sign(testUser())
	require.NoError(t, err)

	tampered := token[:len(token)-2] + "xx"
	_, err = codec.Verify(tampered)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}
