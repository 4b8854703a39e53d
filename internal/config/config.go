package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds the application configuration, parsed from environment
// variables. A .env file, if present, is loaded by main before parsing.
type Config struct {
	Port        string `env:"PORT" envDefault:"8080"`
	DatabaseURL string `env:"DATABASE_URL,required,notEmpty"`
	LogLevel    int    `env:"LOG_LEVEL" envDefault:"0"`

	JWT   JWT   `envPrefix:"JWT_"`
	OTP   OTP   `envPrefix:"OTP_"`
	Store Store `envPrefix:"DB_"`
}

// JWT contains token signing parameters.
type JWT struct {
	Secret          string        `env:"SECRET,required,notEmpty"`
	AccessTokenTTL  time.Duration `env:"ACCESS_TTL" envDefault:"15m"`
	RefreshTokenTTL time.Duration `env:"REFRESH_TTL" envDefault:"720h"`
}

// OTP contains one-time-code parameters. DummyMode is the single gate for
// the fixed test code; it must never be enabled in production.
type OTP struct {
	ExpiryMinutes int           `env:"EXPIRY_MINUTES" envDefault:"10"`
	MaxAttempts   int           `env:"MAX_ATTEMPTS" envDefault:"3"`
	DummyMode     bool          `env:"DUMMY_MODE" envDefault:"false"`
	DummyCode     string        `env:"DUMMY_CODE" envDefault:"123456"`
	RateWindow    time.Duration `env:"RATE_WINDOW" envDefault:"10m"`
	RateMax       int           `env:"RATE_MAX" envDefault:"3"`
}

// Store contains datastore operational parameters.
type Store struct {
	Timeout       time.Duration `env:"TIMEOUT" envDefault:"5s"`
	SweepInterval time.Duration `env:"SWEEP_INTERVAL" envDefault:"1m"`
}

// Load parses configuration from environment variables.
func Load() (*Config, error) {
	cfg := Config{}
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.OTP.ExpiryMinutes <= 0 {
		return nil, fmt.Errorf("OTP_EXPIRY_MINUTES must be positive, got %d", cfg.OTP.ExpiryMinutes)
	}
	if cfg.OTP.MaxAttempts <= 0 {
		return nil, fmt.Errorf("OTP_MAX_ATTEMPTS must be positive, got %d", cfg.OTP.MaxAttempts)
	}
	return &cfg, nil
}

// OTPExpiry returns the OTP challenge TTL as a duration.
func (c *Config) OTPExpiry() time.Duration {
	return time.Duration(c.OTP.ExpiryMinutes) * time.Minute
}
