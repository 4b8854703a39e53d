package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/vendora/server/internal/auth"
	"github.com/vendora/server/internal/config"
	"github.com/vendora/server/internal/db"
	"github.com/vendora/server/internal/httpapi"
	"github.com/vendora/server/internal/logger"
	"github.com/vendora/server/internal/middleware"
	"github.com/vendora/server/internal/obs"
	"github.com/vendora/server/internal/repo"
)

func main() {
	// Env vars override anything in .env.
	_ = godotenv.Load(".env")

	cfg, err := config.Load()
	if err != nil {
		logger.New(0).Fatal("load configuration", "error", err)
	}

	log := logger.New(cfg.LogLevel)
	if cfg.OTP.DummyMode {
		log.Warn("OTP dummy mode is enabled; fixed code accepted, never run this in production")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("connecting to database", "dsn", db.RedactDSN(cfg.DatabaseURL))
	database, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal("open database", "error", err)
	}
	defer database.Close()

	if err := db.Migrate(database); err != nil {
		log.Fatal("run migrations", "error", err)
	}

	obs.Init()

	users := repo.NewUserRepo(database, cfg.Store.Timeout)
	otps := repo.NewOTPRepo(database, cfg.Store.Timeout)
	tokens := repo.NewRefreshRepo(database, cfg.Store.Timeout)

	codec := auth.NewJWTCodec(cfg.JWT.Secret, cfg.JWT.AccessTokenTTL)
	svc := auth.NewService(users, otps, tokens, codec, auth.ServiceConfig{
		OTPExpiry:   cfg.OTPExpiry(),
		MaxAttempts: cfg.OTP.MaxAttempts,
		DummyMode:   cfg.OTP.DummyMode,
		DummyCode:   cfg.OTP.DummyCode,
		RefreshTTL:  cfg.JWT.RefreshTokenTTL,
		RateWindow:  cfg.OTP.RateWindow,
		RateMax:     cfg.OTP.RateMax,
	}, log)

	sweeper := db.NewSweeper(otps, tokens, cfg.Store.SweepInterval, log)
	go sweeper.Run(ctx)

	handler := httpapi.NewAuthHandler(svc, log)
	otpIPLimiter := middleware.NewKeyLimiter(10.0/600.0, 10) // 10 per 10 min per IP
	defer otpIPLimiter.Stop()
	router := httpapi.NewRouter(handler, codec, users, otpIPLimiter)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		log.Info("server starting", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("forced shutdown", "error", err)
		os.Exit(1)
	}
	log.Info("server exited")
}
