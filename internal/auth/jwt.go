package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/vendora/server/internal/model"
)

var (
	// ErrTokenExpired means the signature was valid but the token is past
	// its expiry. Distinguished from ErrTokenInvalid so the boundary layer
	// can return an appropriate error message.
	ErrTokenExpired = errors.New("access token expired")
	// ErrTokenInvalid means the token is malformed or its signature does
	// not verify.
	ErrTokenInvalid = errors.New("access token invalid")
)

// Claims is the signed claim set carried by an access token. Possession
// alone authorizes a request; there is no server-side revocation for access
// tokens, their authority is purely time-boxed.
type Claims struct {
	UserID uuid.UUID  `json:"sub"`
	Phone  string     `json:"phone"`
	Role   model.Role `json:"role"`
	jwt.RegisteredClaims
}

// JWTCodec signs and verifies access tokens with a symmetric secret (HS256).
type JWTCodec struct {
	secret []byte
	ttl    time.Duration
}

// NewJWTCodec creates a codec with the given signing secret and token TTL.
func NewJWTCodec(secret string, ttl time.Duration) *JWTCodec {
	return &JWTCodec{secret: []byte(secret), ttl: ttl}
}

// Sign creates a signed access token for the user.
func (c *JWTCodec) Sign(user model.User) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID: user.ID,
		Phone:  user.Phone,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a token, returning its claims. Expired tokens
// fail with ErrTokenExpired, everything else with ErrTokenInvalid.
func (c *JWTCodec) Verify(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return c.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}
