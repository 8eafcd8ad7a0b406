// ABOUTME: JSON response helpers and error-to-status mapping
// ABOUTME: Keeps credential failures indistinguishable in the response body

package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sjoekim64/dxchart/internal/account"
	"github.com/sjoekim64/dxchart/internal/auth"
	"github.com/sjoekim64/dxchart/internal/store"
	"github.com/sjoekim64/dxchart/internal/textgen"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		if err := json.NewEncoder(w).Encode(v); err != nil {
			slog.Default().Error("encoding response", "error", err)
		}
	}
}

func writeErrorMsg(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeError maps a service error to an HTTP status. Unknown-user and
// wrong-password both surface as the same 401 message.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, account.ErrInvalidCredentials):
		writeErrorMsg(w, http.StatusUnauthorized, "invalid username or password")
	case errors.Is(err, account.ErrPendingApproval):
		writeErrorMsg(w, http.StatusForbidden, "account is pending approval")
	case errors.Is(err, account.ErrReservedUsername):
		writeErrorMsg(w, http.StatusBadRequest, "username is reserved")
	case errors.Is(err, account.ErrNotPending):
		writeErrorMsg(w, http.StatusConflict, "account is not pending")
	case errors.Is(err, auth.ErrExpiredToken):
		writeErrorMsg(w, http.StatusUnauthorized, "token expired")
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrMissingClaim):
		writeErrorMsg(w, http.StatusUnauthorized, "invalid token")
	case errors.Is(err, store.ErrUsernameTaken):
		writeErrorMsg(w, http.StatusConflict, "username is already taken")
	case errors.Is(err, store.ErrValidation):
		writeErrorMsg(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrNotFound):
		writeErrorMsg(w, http.StatusNotFound, "not found")
	case errors.Is(err, store.ErrPasswordVerify):
		writeErrorMsg(w, http.StatusInternalServerError, "password update could not be verified")
	case errors.Is(err, store.ErrStorageTimeout):
		writeErrorMsg(w, http.StatusServiceUnavailable, "storage timeout")
	case errors.Is(err, textgen.ErrRateLimited):
		writeErrorMsg(w, http.StatusTooManyRequests, "rate limited, retry later")
	case errors.Is(err, textgen.ErrOverloaded):
		writeErrorMsg(w, http.StatusServiceUnavailable, "generation backend overloaded")
	default:
		slog.Default().Error("request failed", "error", err)
		writeErrorMsg(w, http.StatusInternalServerError, "internal error")
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeErrorMsg(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}
