package httpapi

import (
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/vendora/server/internal/auth"
	"github.com/vendora/server/internal/middleware"
	"github.com/vendora/server/internal/obs"
	"github.com/vendora/server/internal/repo"
)

// NewRouter wires all routes. The send-otp endpoint carries an additional
// per-IP limiter on top of the service's per-phone budget.
func NewRouter(
	h *AuthHandler,
	codec *auth.JWTCodec,
	users repo.UserRepo,
	otpIPLimiter *middleware.KeyLimiter,
) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(obs.Instrument)

	r.Get("/health", Health)
	r.Method("GET", "/metrics", obs.Handler())

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.With(middleware.RateLimit(otpIPLimiter, middleware.IPKey)).Post("/send-otp", h.SendOTP)
		r.Post("/verify-otp", h.VerifyOTP)
		r.Post("/refresh", h.Refresh)
		r.Post("/logout", h.Logout)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Authenticate(codec, users))
			r.Get("/me", h.Me)
			r.Post("/logout-all", h.LogoutAll)
		})
	})

	return r
}
