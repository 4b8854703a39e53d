// Package testutil provides in-memory repository implementations for tests.
// They mirror the liveness and rotation semantics of the SQL repositories,
// with mutation helpers the SQL layer has no business exposing.
package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vendora/server/internal/model"
	"github.com/vendora/server/internal/repo"
)

// MemUserRepo is an in-memory repo.UserRepo.
type MemUserRepo struct {
	mu    sync.Mutex
	users map[uuid.UUID]model.User
}

// NewMemUserRepo creates an empty user repo.
func NewMemUserRepo() *MemUserRepo {
	return &MemUserRepo{users: make(map[uuid.UUID]model.User)}
}

// GetByID implements repo.UserRepo.
func (f *MemUserRepo) GetByID(_ context.Context, id uuid.UUID) (model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return model.User{}, repo.ErrNotFound
	}
	return u, nil
}

// GetByPhone implements repo.UserRepo.
func (f *MemUserRepo) GetByPhone(_ context.Context, phone string) (model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Phone == phone {
			return u, nil
		}
	}
	return model.User{}, repo.ErrNotFound
}

// Create implements repo.UserRepo.
func (f *MemUserRepo) Create(_ context.Context, phone string, role model.Role) (model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := model.User{
		ID:            uuid.New(),
		Phone:         phone,
		Role:          role,
		PhoneVerified: true,
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}
	f.users[u.ID] = u
	return u, nil
}

// MarkPhoneVerified implements repo.UserRepo.
func (f *MemUserRepo) MarkPhoneVerified(_ context.Context, id uuid.UUID) (model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return model.User{}, repo.ErrNotFound
	}
	u.PhoneVerified = true
	u.UpdatedAt = time.Now()
	f.users[id] = u
	return u, nil
}

// Delete removes a user, simulating out-of-band deletion.
func (f *MemUserRepo) Delete(id uuid.UUID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.users, id)
}

// SetPhoneVerified overrides the verified flag directly.
func (f *MemUserRepo) SetPhoneVerified(id uuid.UUID, verified bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[id]; ok {
		u.PhoneVerified = verified
		f.users[id] = u
	}
}

// MemOTPRepo is an in-memory repo.OTPRepo.
type MemOTPRepo struct {
	mu         sync.Mutex
	challenges map[uuid.UUID]model.OTPChallenge
}

// NewMemOTPRepo creates an empty OTP repo.
func NewMemOTPRepo() *MemOTPRepo {
	return &MemOTPRepo{challenges: make(map[uuid.UUID]model.OTPChallenge)}
}

func (f *MemOTPRepo) liveLocked(phone string) (model.OTPChallenge, bool) {
	var latest model.OTPChallenge
	found := false
	now := time.Now()
	for _, c := range f.challenges {
		if c.Phone == phone && c.ExpiresAt.After(now) {
			if !found || c.CreatedAt.After(latest.CreatedAt) {
				latest = c
				found = true
			}
		}
	}
	return latest, found
}

// GetLiveByPhone implements repo.OTPRepo.
func (f *MemOTPRepo) GetLiveByPhone(_ context.Context, phone string) (model.OTPChallenge, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.liveLocked(phone)
	if !ok {
		return model.OTPChallenge{}, repo.ErrNotFound
	}
	return c, nil
}

// CreateChallenge implements repo.OTPRepo.
func (f *MemOTPRepo) CreateChallenge(_ context.Context, phone, codeHash string, expiresAt time.Time) (model.OTPChallenge, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if existing, ok := f.liveLocked(phone); ok {
		return existing, repo.ErrLiveChallengeExists
	}
	c := model.OTPChallenge{
		ID:        uuid.New(),
		Phone:     phone,
		CodeHash:  codeHash,
		ExpiresAt: expiresAt,
		CreatedAt: time.Now(),
	}
	f.challenges[c.ID] = c
	return c, nil
}

// IncrementAttempts implements repo.OTPRepo.
func (f *MemOTPRepo) IncrementAttempts(_ context.Context, id uuid.UUID) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.challenges[id]
	if !ok {
		return 0, repo.ErrNotFound
	}
	c.Attempts++
	f.challenges[id] = c
	return c.Attempts, nil
}

// Delete implements repo.OTPRepo.
func (f *MemOTPRepo) Delete(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.challenges, id)
	return nil
}

// CountCreatedSince implements repo.OTPRepo.
func (f *MemOTPRepo) CountCreatedSince(_ context.Context, phone string, since time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, c := range f.challenges {
		if c.Phone == phone && !c.CreatedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

// DeleteExpired implements repo.OTPRepo.
func (f *MemOTPRepo) DeleteExpired(_ context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	now := time.Now()
	for id, c := range f.challenges {
		if !c.ExpiresAt.After(now) {
			delete(f.challenges, id)
			n++
		}
	}
	return n, nil
}

// ExpireAll force-expires every challenge of the phone, simulating the
// passage of time past the TTL (without sweeping).
func (f *MemOTPRepo) ExpireAll(phone string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, c := range f.challenges {
		if c.Phone == phone {
			c.ExpiresAt = time.Now().Add(-time.Minute)
			f.challenges[id] = c
		}
	}
}

// MemRefreshRepo is an in-memory repo.RefreshRepo. Rotate is atomic under
// the mutex, giving the same one-winner behavior as the conditional UPDATE.
type MemRefreshRepo struct {
	mu     sync.Mutex
	tokens map[uuid.UUID]model.RefreshToken
}

// NewMemRefreshRepo creates an empty refresh token repo.
func NewMemRefreshRepo() *MemRefreshRepo {
	return &MemRefreshRepo{tokens: make(map[uuid.UUID]model.RefreshToken)}
}

// Create implements repo.RefreshRepo.
func (f *MemRefreshRepo) Create(_ context.Context, token model.RefreshToken) (model.RefreshToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	token.CreatedAt = time.Now()
	f.tokens[token.ID] = token
	return token, nil
}

// GetActive implements repo.RefreshRepo.
func (f *MemRefreshRepo) GetActive(_ context.Context, id uuid.UUID) (model.RefreshToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tokens[id]
	if !ok || !t.Active(time.Now()) {
		return model.RefreshToken{}, repo.ErrNotFound
	}
	return t, nil
}

// GetUnrevoked implements repo.RefreshRepo.
func (f *MemRefreshRepo) GetUnrevoked(_ context.Context, id uuid.UUID) (model.RefreshToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tokens[id]
	if !ok || t.RevokedAt != nil {
		return model.RefreshToken{}, repo.ErrNotFound
	}
	return t, nil
}

// Rotate implements repo.RefreshRepo.
func (f *MemRefreshRepo) Rotate(_ context.Context, oldID uuid.UUID, replacement model.RefreshToken) (model.RefreshToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	old, ok := f.tokens[oldID]
	if !ok || old.RevokedAt != nil {
		return model.RefreshToken{}, repo.ErrNotFound
	}
	now := time.Now()
	old.RevokedAt = &now
	old.ReplacedBy = &replacement.ID
	f.tokens[oldID] = old

	replacement.CreatedAt = now
	f.tokens[replacement.ID] = replacement
	return replacement, nil
}

// Revoke implements repo.RefreshRepo.
func (f *MemRefreshRepo) Revoke(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tokens[id]
	if !ok || t.RevokedAt != nil {
		return nil
	}
	now := time.Now()
	t.RevokedAt = &now
	f.tokens[id] = t
	return nil
}

// RevokeAllForUser implements repo.RefreshRepo.
func (f *MemRefreshRepo) RevokeAllForUser(_ context.Context, userID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now()
	for id, t := range f.tokens {
		if t.UserID == userID && t.RevokedAt == nil {
			t.RevokedAt = &now
			f.tokens[id] = t
		}
	}
	return nil
}

// DeleteExpired implements repo.RefreshRepo.
func (f *MemRefreshRepo) DeleteExpired(_ context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	now := time.Now()
	for id, t := range f.tokens {
		if !t.ExpiresAt.After(now) {
			delete(f.tokens, id)
			n++
		}
	}
	return n, nil
}

// All returns a snapshot of every stored token record.
func (f *MemRefreshRepo) All() []model.RefreshToken {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.RefreshToken, 0, len(f.tokens))
	for _, t := range f.tokens {
		out = append(out, t)
	}
	return out
}
