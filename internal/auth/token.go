package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
	"time"
)

const digits = "0123456789"

// GenerateNumericCode returns a code of the given length drawn uniformly
// from digits using crypto/rand.
func GenerateNumericCode(length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("code length must be positive, got %d", length)
	}
	code := make([]byte, length)
	max := big.NewInt(int64(len(digits)))
	for i := range code {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generate code: %w", err)
		}
		code[i] = digits[n.Int64()]
	}
	return string(code), nil
}

// GenerateOpaqueSecret returns byteLen random bytes hex-encoded.
func GenerateOpaqueSecret(byteLen int) (string, error) {
	if byteLen <= 0 {
		return "", fmt.Errorf("secret length must be positive, got %d", byteLen)
	}
	b := make([]byte, byteLen)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate secret: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// NewRefreshSecret returns a fresh 32-byte opaque secret and its expiry.
func NewRefreshSecret(ttl time.Duration) (secret string, expiresAt time.Time, err error) {
	secret, err = GenerateOpaqueSecret(32)
	if err != nil {
		return "", time.Time{}, err
	}
	return secret, time.Now().Add(ttl), nil
}
