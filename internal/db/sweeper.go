package db

import (
	"context"
	"time"

	"github.com/vendora/server/internal/logger"
	"github.com/vendora/server/internal/repo"
)

// Sweeper periodically purges expired OTP challenges and refresh tokens,
// standing in for a datastore-native TTL index. Records past expires_at are
// already invisible to the stores' liveness queries; the sweep only reclaims
// the rows.
type Sweeper struct {
	otps     repo.OTPRepo
	tokens   repo.RefreshRepo
	interval time.Duration
	log      *logger.Logger
}

// NewSweeper creates a sweeper with the given interval.
func NewSweeper(otps repo.OTPRepo, tokens repo.RefreshRepo, interval time.Duration, log *logger.Logger) *Sweeper {
	return &Sweeper{otps: otps, tokens: tokens, interval: interval, log: log}
}

// Run sweeps on the configured interval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	otps, err := s.otps.DeleteExpired(ctx)
	if err != nil {
		s.log.Error("sweep expired otp challenges", "error", err)
	}
	tokens, err := s.tokens.DeleteExpired(ctx)
	if err != nil {
		s.log.Error("sweep expired refresh tokens", "error", err)
	}
	if otps > 0 || tokens > 0 {
		s.log.Debug("ttl sweep", "otpChallenges", otps, "refreshTokens", tokens)
	}
}
