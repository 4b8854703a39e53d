package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/vendora/server/internal/apperr"
	"github.com/vendora/server/internal/auth"
	"github.com/vendora/server/internal/logger"
	"github.com/vendora/server/internal/middleware"
	"github.com/vendora/server/internal/model"
)

// AuthHandler exposes the authentication endpoints.
type AuthHandler struct {
	svc *auth.Service
	log *logger.Logger
}

// NewAuthHandler creates the auth handler.
func NewAuthHandler(svc *auth.Service, log *logger.Logger) *AuthHandler {
	return &AuthHandler{svc: svc, log: log}
}

type sendOTPRequest struct {
	Phone string `json:"phone"`
}

type sendOTPData struct {
	Message   string `json:"message"`
	ExpiresIn int    `json:"expiresIn"`
	DebugOTP  string `json:"debugOtp,omitempty"`
}

// SendOTP handles POST /auth/send-otp.
func (h *AuthHandler) SendOTP(w http.ResponseWriter, r *http.Request) {
	var req sendOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.log, r, apperr.New(apperr.Validation, "Invalid request body"))
		return
	}
	if strings.TrimSpace(req.Phone) == "" {
		writeError(w, h.log, r, apperr.New(apperr.Validation, "Phone number is required"))
		return
	}

	receipt, err := h.svc.SendOTP(r.Context(), req.Phone)
	if err != nil {
		writeError(w, h.log, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, "OTP sent successfully", sendOTPData{
		Message:   "OTP sent successfully",
		ExpiresIn: receipt.ExpiresIn,
		DebugOTP:  receipt.DebugOTP,
	})
}

type verifyOTPRequest struct {
	Phone    string `json:"phone"`
	OTP      string `json:"otp"`
	DeviceID string `json:"deviceId"`
}

type sessionData struct {
	AccessToken  string   `json:"accessToken"`
	RefreshToken string   `json:"refreshToken"`
	User         userJSON `json:"user"`
}

// VerifyOTP handles POST /auth/verify-otp.
func (h *AuthHandler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req verifyOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.log, r, apperr.New(apperr.Validation, "Invalid request body"))
		return
	}
	if strings.TrimSpace(req.Phone) == "" || strings.TrimSpace(req.OTP) == "" {
		writeError(w, h.log, r, apperr.New(apperr.Validation, "Phone number and OTP are required"))
		return
	}

	device := model.DeviceInfo{
		DeviceID:  strings.TrimSpace(req.DeviceID),
		UserAgent: r.UserAgent(),
		IP:        r.RemoteAddr,
	}

	session, err := h.svc.VerifyOTP(r.Context(), req.Phone, strings.TrimSpace(req.OTP), device)
	if err != nil {
		writeError(w, h.log, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, "Login successful", sessionData{
		AccessToken:  session.AccessToken,
		RefreshToken: session.RefreshToken,
		User:         toUserJSON(session.User),
	})
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type tokenPairData struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// Refresh handles POST /auth/refresh.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.log, r, apperr.New(apperr.Validation, "Invalid request body"))
		return
	}
	if strings.TrimSpace(req.RefreshToken) == "" {
		writeError(w, h.log, r, apperr.New(apperr.Validation, "Refresh token is required"))
		return
	}

	pair, err := h.svc.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		writeError(w, h.log, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, "Token refreshed successfully", tokenPairData{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	})
}

// Logout handles POST /auth/logout. Idempotent: unknown tokens still return
// success.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.log, r, apperr.New(apperr.Validation, "Invalid request body"))
		return
	}
	if strings.TrimSpace(req.RefreshToken) == "" {
		writeError(w, h.log, r, apperr.New(apperr.Validation, "Refresh token is required"))
		return
	}

	if err := h.svc.Logout(r.Context(), req.RefreshToken); err != nil {
		writeError(w, h.log, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "Logout successful", nil)
}

// LogoutAll handles POST /auth/logout-all (protected). Revokes every active
// session of the authenticated user.
func (h *AuthHandler) LogoutAll(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFrom(r.Context())
	if !ok {
		writeError(w, h.log, r, apperr.New(apperr.Unauthorized, "Authentication required"))
		return
	}
	if err := h.svc.LogoutAll(r.Context(), user.ID); err != nil {
		writeError(w, h.log, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "All sessions revoked", nil)
}

// Me handles GET /auth/me (protected).
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFrom(r.Context())
	if !ok {
		writeError(w, h.log, r, apperr.New(apperr.Unauthorized, "Authentication required"))
		return
	}
	writeSuccess(w, http.StatusOK, "User profile retrieved", map[string]any{"user": toUserJSON(*user)})
}

// Health handles GET /health.
func Health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]bool{"ok": true})
}
