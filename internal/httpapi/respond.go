package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/vendora/server/internal/apperr"
	"github.com/vendora/server/internal/logger"
	"github.com/vendora/server/internal/model"
)

// successBody is the standard success envelope.
type successBody struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// errorBody is the standard error envelope.
type errorBody struct {
	Success bool           `json:"success"`
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// writeSuccess sends the success envelope.
func writeSuccess(w http.ResponseWriter, status int, message string, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(successBody{Success: true, Message: message, Data: data})
}

// writeError translates err into the error envelope. Recognized domain
// errors surface verbatim with their kind's status; anything else is logged
// with context and downgraded to a generic internal failure so stack-level
// detail never reaches the client.
func writeError(w http.ResponseWriter, log *logger.Logger, r *http.Request, err error) {
	var ae *apperr.Error
	if !errors.As(err, &ae) {
		log.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		ae = apperr.New(apperr.Internal, "Something went wrong. Please try again later.")
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(ae.Kind.Status())
	_ = json.NewEncoder(w).Encode(errorBody{
		Success: false,
		Code:    string(ae.Kind),
		Message: ae.Message,
		Details: ae.Details,
	})
}

// userJSON is the user object in API responses.
type userJSON struct {
	ID            string    `json:"id"`
	Phone         string    `json:"phone"`
	Role          string    `json:"role"`
	Name          string    `json:"name,omitempty"`
	PhoneVerified bool      `json:"phoneVerified"`
	CreatedAt     time.Time `json:"createdAt"`
}

func toUserJSON(u model.User) userJSON {
	return userJSON{
		ID:            u.ID.String(),
		Phone:         u.Phone,
		Role:          string(u.Role),
		Name:          u.Name,
		PhoneVerified: u.PhoneVerified,
		CreatedAt:     u.CreatedAt,
	}
}
