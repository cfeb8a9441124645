package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/shonenark/ark-gateway/internal/domain"
)

// WriteError renders err as a JSON error body. Errors that are not already
// an *domain.APIError are mapped by kind; anything unknown becomes a
// generic 500 so internals never reach the caller.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	var apiErr *domain.APIError
	if !errors.As(err, &apiErr) {
		AddError(r.Context(), err)
		apiErr = toAPIError(err)
	}
	writeJSON(w, apiErr.HTTPStatusCode(), apiErr)
}

func toAPIError(err error) *domain.APIError {
	var ce *domain.ConfigError
	switch {
	case errors.As(err, &ce):
		e := domain.ErrServer("gateway is not configured")
		e.Missing = ce.Missing
		return e.WithHint(ce.Hint)
	case domain.IsValidation(err):
		return domain.ErrInvalidRequest(err.Error())
	case domain.IsAuthentication(err):
		return domain.ErrUnauthorized("authentication required")
	default:
		return domain.ErrServer("internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
