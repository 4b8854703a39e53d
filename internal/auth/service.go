package auth

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vendora/server/internal/apperr"
	"github.com/vendora/server/internal/logger"
	"github.com/vendora/server/internal/model"
	"github.com/vendora/server/internal/obs"
	"github.com/vendora/server/internal/phone"
	"github.com/vendora/server/internal/repo"
)

const otpCodeLength = 6

// ServiceConfig holds the tunables of the session service.
type ServiceConfig struct {
	OTPExpiry   time.Duration
	MaxAttempts int
	DummyMode   bool
	DummyCode   string
	RefreshTTL  time.Duration
	RateWindow  time.Duration
	RateMax     int
}

// Service orchestrates OTP issuance/verification, user lookup/creation, and
// token issuance.
type Service struct {
	users  repo.UserRepo
	otps   repo.OTPRepo
	tokens repo.RefreshRepo
	codec  *JWTCodec
	cfg    ServiceConfig
	log    *logger.Logger
}

// NewService creates the session service.
func NewService(
	users repo.UserRepo,
	otps repo.OTPRepo,
	tokens repo.RefreshRepo,
	codec *JWTCodec,
	cfg ServiceConfig,
	log *logger.Logger,
) *Service {
	return &Service{
		users:  users,
		otps:   otps,
		tokens: tokens,
		codec:  codec,
		cfg:    cfg,
		log:    log,
	}
}

// OTPReceipt is the result of SendOTP. DebugOTP is populated only in dummy
// mode, for test automation.
type OTPReceipt struct {
	ExpiresIn int
	DebugOTP  string
}

// Session is the result of a successful login.
type Session struct {
	AccessToken  string
	RefreshToken string
	User         model.User
}

// TokenPair is the result of a refresh.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// SendOTP creates an OTP challenge for the phone. The phone is normalized
// best-effort first. Fails with Conflict while a live challenge exists,
// reporting the remaining wait, and with TooManyRequests past the per-phone
// request budget.
func (s *Service) SendOTP(ctx context.Context, rawPhone string) (OTPReceipt, error) {
	normalized := phone.Normalize(rawPhone)
	if normalized == "" {
		return OTPReceipt{}, apperr.New(apperr.Validation, "Phone number is required")
	}

	count, err := s.otps.CountCreatedSince(ctx, normalized, time.Now().Add(-s.cfg.RateWindow))
	if err != nil {
		return OTPReceipt{}, fmt.Errorf("otp rate check: %w", err)
	}
	if count >= s.cfg.RateMax {
		return OTPReceipt{}, apperr.New(apperr.TooManyRequests, "Too many OTP requests. Please try again later.")
	}

	if existing, err := s.otps.GetLiveByPhone(ctx, normalized); err == nil {
		return OTPReceipt{}, conflictWithWait(existing.ExpiresAt)
	} else if !errors.Is(err, repo.ErrNotFound) {
		return OTPReceipt{}, fmt.Errorf("check live challenge: %w", err)
	}

	code := s.cfg.DummyCode
	if !s.cfg.DummyMode {
		code, err = GenerateNumericCode(otpCodeLength)
		if err != nil {
			return OTPReceipt{}, fmt.Errorf("generate otp: %w", err)
		}
	}

	codeHash, err := HashSecret(code)
	if err != nil {
		return OTPReceipt{}, fmt.Errorf("hash otp: %w", err)
	}

	if existing, err := s.otps.CreateChallenge(ctx, normalized, codeHash, time.Now().Add(s.cfg.OTPExpiry)); err != nil {
		if errors.Is(err, repo.ErrLiveChallengeExists) {
			// Lost the check-then-create race; same outcome as the
			// pre-check above.
			return OTPReceipt{}, conflictWithWait(existing.ExpiresAt)
		}
		return OTPReceipt{}, fmt.Errorf("create challenge: %w", err)
	}

	obs.OTPSent.Inc()
	s.log.Info("otp sent", "phone", logger.MaskPhone(normalized))

	receipt := OTPReceipt{ExpiresIn: int(s.cfg.OTPExpiry.Seconds())}
	if s.cfg.DummyMode {
		receipt.DebugOTP = code
	}
	return receipt, nil
}

func conflictWithWait(expiresAt time.Time) error {
	wait := int(math.Ceil(time.Until(expiresAt).Seconds() / 60))
	if wait < 1 {
		wait = 1
	}
	return apperr.Newf(apperr.Conflict,
		"OTP already sent. Please wait %d minute(s) before requesting again.", wait)
}

// VerifyOTP validates the code for the phone and, on success, resolves or
// creates the user and issues a session pair.
func (s *Service) VerifyOTP(ctx context.Context, rawPhone, code string, device model.DeviceInfo) (Session, error) {
	normalized := phone.Normalize(rawPhone)
	if normalized == "" || code == "" {
		return Session{}, apperr.New(apperr.Validation, "Phone number and OTP are required")
	}

	challenge, err := s.otps.GetLiveByPhone(ctx, normalized)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			obs.OTPRejected.Inc()
			return Session{}, apperr.New(apperr.Unauthorized, "Invalid or expired OTP")
		}
		return Session{}, fmt.Errorf("load challenge: %w", err)
	}

	// Attempt budget is checked before the hash comparison; an exhausted
	// challenge is destroyed so replaying the correct code cannot succeed.
	if challenge.Attempts >= s.cfg.MaxAttempts {
		if err := s.otps.Delete(ctx, challenge.ID); err != nil {
			return Session{}, fmt.Errorf("delete exhausted challenge: %w", err)
		}
		obs.OTPRejected.Inc()
		return Session{}, apperr.New(apperr.Unauthorized, "Maximum OTP attempts exceeded. Please request a new OTP.")
	}

	if !VerifySecret(code, challenge.CodeHash) {
		attempts, err := s.otps.IncrementAttempts(ctx, challenge.ID)
		if err != nil && !errors.Is(err, repo.ErrNotFound) {
			return Session{}, fmt.Errorf("record failed attempt: %w", err)
		}
		remaining := s.cfg.MaxAttempts - attempts
		if remaining < 0 {
			remaining = 0
		}
		obs.OTPRejected.Inc()
		return Session{}, apperr.Newf(apperr.Unauthorized, "Invalid OTP. %d attempts remaining.", remaining).
			WithDetails(map[string]any{"attemptsRemaining": remaining})
	}

	if err := s.otps.Delete(ctx, challenge.ID); err != nil {
		return Session{}, fmt.Errorf("consume challenge: %w", err)
	}
	obs.OTPVerified.Inc()

	user, err := s.users.GetByPhone(ctx, normalized)
	switch {
	case errors.Is(err, repo.ErrNotFound):
		user, err = s.users.Create(ctx, normalized, model.RoleVendor)
		if err != nil {
			return Session{}, fmt.Errorf("create user: %w", err)
		}
		s.log.Info("user created", "userId", user.ID, "phone", logger.MaskPhone(normalized))
	case err != nil:
		return Session{}, fmt.Errorf("lookup user: %w", err)
	case !user.PhoneVerified:
		user, err = s.users.MarkPhoneVerified(ctx, user.ID)
		if err != nil {
			return Session{}, fmt.Errorf("mark phone verified: %w", err)
		}
	}

	accessToken, refreshPlaintext, err := s.issueTokens(ctx, user, device)
	if err != nil {
		return Session{}, err
	}

	obs.SessionsIssued.Inc()
	s.log.Info("user logged in", "userId", user.ID)

	return Session{AccessToken: accessToken, RefreshToken: refreshPlaintext, User: user}, nil
}

// Refresh rotates the refresh token and mints a fresh access token. The
// consumed token is dead after this call succeeds; a concurrent refresh of
// the same token succeeds at most once.
func (s *Service) Refresh(ctx context.Context, plaintext string) (TokenPair, error) {
	record, secretOK, err := s.resolve(ctx, plaintext, s.tokens.GetActive)
	if err != nil {
		return TokenPair{}, err
	}
	if !secretOK {
		return TokenPair{}, apperr.New(apperr.Unauthorized, "Invalid or expired refresh token")
	}

	user, err := s.users.GetByID(ctx, record.UserID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return TokenPair{}, apperr.New(apperr.Unauthorized, "Invalid or expired refresh token")
		}
		return TokenPair{}, fmt.Errorf("lookup user: %w", err)
	}

	replacement, secret, err := s.newRefreshRecord(user.ID, record.Device)
	if err != nil {
		return TokenPair{}, err
	}

	if _, err := s.tokens.Rotate(ctx, record.ID, replacement); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			// A concurrent refresh won the rotation; this token is gone.
			return TokenPair{}, apperr.New(apperr.Unauthorized, "Invalid or expired refresh token")
		}
		return TokenPair{}, fmt.Errorf("rotate token: %w", err)
	}

	accessToken, err := s.codec.Sign(user)
	if err != nil {
		return TokenPair{}, fmt.Errorf("sign access token: %w", err)
	}

	obs.TokensRotated.Inc()
	s.log.Info("access token refreshed", "userId", user.ID)

	return TokenPair{
		AccessToken:  accessToken,
		RefreshToken: composePlaintext(replacement.ID, secret),
	}, nil
}

// Logout revokes the refresh token. It always reports success: revoking an
// unknown or already-revoked token must not leak whether it existed.
func (s *Service) Logout(ctx context.Context, plaintext string) error {
	record, secretOK, err := s.resolve(ctx, plaintext, s.tokens.GetUnrevoked)
	if err != nil {
		return err
	}
	if !secretOK {
		return nil
	}

	if err := s.tokens.Revoke(ctx, record.ID); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	obs.TokensRevoked.Inc()
	s.log.Info("user logged out", "userId", record.UserID)
	return nil
}

// LogoutAll revokes every active refresh token of the user.
func (s *Service) LogoutAll(ctx context.Context, userID uuid.UUID) error {
	if err := s.tokens.RevokeAllForUser(ctx, userID); err != nil {
		return fmt.Errorf("revoke all tokens: %w", err)
	}
	s.log.Info("all sessions revoked", "userId", userID)
	return nil
}

// issueTokens mints an access token and a persisted refresh token for the
// user, returning the refresh plaintext (recoverable exactly once, here).
func (s *Service) issueTokens(ctx context.Context, user model.User, device model.DeviceInfo) (accessToken, refreshPlaintext string, err error) {
	accessToken, err = s.codec.Sign(user)
	if err != nil {
		return "", "", fmt.Errorf("sign access token: %w", err)
	}

	record, secret, err := s.newRefreshRecord(user.ID, device)
	if err != nil {
		return "", "", err
	}
	if _, err := s.tokens.Create(ctx, record); err != nil {
		return "", "", fmt.Errorf("persist refresh token: %w", err)
	}

	return accessToken, composePlaintext(record.ID, secret), nil
}

// newRefreshRecord builds an unsaved refresh token record and its secret.
func (s *Service) newRefreshRecord(userID uuid.UUID, device model.DeviceInfo) (model.RefreshToken, string, error) {
	secret, expiresAt, err := NewRefreshSecret(s.cfg.RefreshTTL)
	if err != nil {
		return model.RefreshToken{}, "", fmt.Errorf("generate refresh secret: %w", err)
	}
	hash, err := HashSecret(secret)
	if err != nil {
		return model.RefreshToken{}, "", fmt.Errorf("hash refresh secret: %w", err)
	}
	return model.RefreshToken{
		ID:        uuid.New(),
		UserID:    userID,
		TokenHash: hash,
		ExpiresAt: expiresAt,
		Device:    device,
	}, secret, nil
}

// resolve parses the opaque plaintext and loads its record via lookup.
// The plaintext embeds the record id before the secret, so resolution is a
// single indexed read plus one hash comparison instead of a scan over every
// live token. Malformed input, a missing record, or a secret mismatch all
// yield secretOK=false; only infrastructure failures surface as errors.
func (s *Service) resolve(
	ctx context.Context,
	plaintext string,
	lookup func(context.Context, uuid.UUID) (model.RefreshToken, error),
) (model.RefreshToken, bool, error) {
	id, secret, ok := splitPlaintext(plaintext)
	if !ok {
		return model.RefreshToken{}, false, nil
	}

	record, err := lookup(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return model.RefreshToken{}, false, nil
		}
		return model.RefreshToken{}, false, fmt.Errorf("load refresh token: %w", err)
	}

	if !VerifySecret(secret, record.TokenHash) {
		return model.RefreshToken{}, false, nil
	}
	return record, true, nil
}

func composePlaintext(id uuid.UUID, secret string) string {
	return id.String() + "." + secret
}

func splitPlaintext(plaintext string) (uuid.UUID, string, bool) {
	idPart, secret, found := strings.Cut(strings.TrimSpace(plaintext), ".")
	if !found || secret == "" {
		return uuid.Nil, "", false
	}
	id, err := uuid.Parse(idPart)
	if err != nil {
		return uuid.Nil, "", false
	}
	return id, secret, true
}
