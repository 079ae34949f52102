// Package http provides the HTTP handlers, routing and error mapping for the
// vault API.
package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/key2key/server/internal/common"
)

// validate checks request DTOs against their struct tags.
var validate = validator.New()

// response is the uniform JSON body for every endpoint.
type response struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// statusFor maps an error kind to its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, common.ErrValidation),
		errors.Is(err, common.ErrAuthenticationFailed),
		errors.Is(err, common.ErrOwnerRevocationForbidden):
		return http.StatusBadRequest
	case errors.Is(err, common.ErrUnauthenticated),
		errors.Is(err, common.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, common.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, common.ErrNotFound),
		errors.Is(err, common.ErrTargetNotFound):
		return http.StatusNotFound
	case errors.Is(err, common.ErrAlreadyExists):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders an error with its mapped status. Internal causes are
// never exposed: anything outside the known taxonomy becomes a generic 500.
func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal server error"
	}
	writeJSON(w, status, response{Success: false, Error: msg})
}
