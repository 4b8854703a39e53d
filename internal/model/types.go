package model

import (
	"time"

	"github.com/google/uuid"
)

// Role is the closed set of user roles.
type Role string

const (
	RoleVendor   Role = "vendor"
	RoleCustomer Role = "customer"
	RoleAdmin    Role = "admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleVendor, RoleCustomer, RoleAdmin:
		return true
	}
	return false
}

// User is the identity anchor, created on first successful OTP verification.
type User struct {
	ID            uuid.UUID
	Phone         string
	Role          Role
	Name          string
	PhoneVerified bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// OTPChallenge is an ephemeral proof-of-possession record for a phone.
// At most one live (unexpired) challenge per phone exists at creation time.
type OTPChallenge struct {
	ID        uuid.UUID
	Phone     string
	CodeHash  string
	ExpiresAt time.Time
	Attempts  int
	CreatedAt time.Time
}

// DeviceInfo is client metadata attached to a refresh token at issuance.
type DeviceInfo struct {
	DeviceID  string
	UserAgent string
	IP        string
}

// RefreshToken is a long-lived session credential. Only the bcrypt hash of
// the opaque secret is stored; the plaintext is returned exactly once at
// issuance. Usable iff RevokedAt is nil and ExpiresAt is in the future.
type RefreshToken struct {
	ID         uuid.UUID
	UserID     uuid.UUID
	TokenHash  string
	ExpiresAt  time.Time
	RevokedAt  *time.Time
	ReplacedBy *uuid.UUID
	Device     DeviceInfo
	CreatedAt  time.Time
}

// Active reports whether the token is usable at the given instant.
func (t RefreshToken) Active(now time.Time) bool {
	return t.RevokedAt == nil && t.ExpiresAt.After(now)
}
