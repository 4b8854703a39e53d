package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashSecret_roundTrip(t *testing.T) {
	digest, err := HashSecret("123456")
	require.NoError(t, err)
	require.NotEmpty(t, digest)

	assert.True(t, VerifySecret("123456", digest))
	assert.False(t, VerifySecret("654321", digest))
}

func TestHashSecret_salted(t *testing.T) {
	d1, err := HashSecret("123456")
	require.NoError(t, err)
	d2, err := HashSecret("123456")
	require.NoError(t, err)
	assert.NotEqual(t, d1, d2, "two hashes of the same secret must differ by salt")
}

func TestVerifySecret_malformedDigest(t *testing.T) {
	assert.False(t, VerifySecret("123456", ""))
	assert.False(t, VerifySecret("123456", "not-a-bcrypt-digest"))
	assert.False(t, VerifySecret("123456", "$2a$garbage"))
}
