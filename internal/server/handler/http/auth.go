package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/key2key/server/internal/common"
	"github.com/key2key/server/internal/models"
)

// AuthService defines the interface for authentication operations required by
// the HTTP handlers.
type AuthService interface {
	// SignUp registers a user and returns the created record and a token.
	SignUp(ctx context.Context, email, authKey string) (*models.User, string, error)
	// SignIn verifies the auth key and returns the user and a token.
	SignIn(ctx context.Context, email, authKey string) (*models.User, string, error)
	// VaultSalt returns the vault key salt stored for an email.
	VaultSalt(ctx context.Context, email string) (string, error)
}

// AuthHandler handles HTTP requests for signup, sign-in and salt lookup.
type AuthHandler struct {
	// AuthService performs the underlying authentication operations.
	AuthService AuthService
}

// credentialsRequest is the JSON payload for sign-up and sign-in. AuthKey is
// the client-derived secret, already hashed on the client; the raw password
// never appears on the wire.
type credentialsRequest struct {
	Email   string `json:"email" validate:"required,email"`
	AuthKey string `json:"authKey" validate:"required,hexadecimal,min=32"`
}

func decodeCredentials(r *http.Request) (*credentialsRequest, error) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, fmt.Errorf("%w: invalid request body", common.ErrValidation)
	}
	if err := validate.Struct(&req); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrValidation, err)
	}
	return &req, nil
}

// SignUp handles POST /api/auth/sign-up. On success it returns the signed-in
// token together with the user's key material so the client can finish its
// local vault setup.
func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	req, err := decodeCredentials(r)
	if err != nil {
		writeError(w, err)
		return
	}

	user, token, err := h.AuthService.SignUp(r.Context(), req.Email, req.AuthKey)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, response{
		Success: true,
		Message: "user signed up successfully",
		Data:    map[string]any{"token": token, "user": user},
	})
}

// SignIn handles POST /api/auth/sign-in. The response carries the stored key
// material (salt, public key, wrapped private key) so a fresh client can
// unlock its vault.
func (h *AuthHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	req, err := decodeCredentials(r)
	if err != nil {
		writeError(w, err)
		return
	}

	user, token, err := h.AuthService.SignIn(r.Context(), req.Email, req.AuthKey)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, response{
		Success: true,
		Message: "user signed in successfully",
		Data:    map[string]any{"token": token, "user": user},
	})
}

// VaultSalt handles GET /api/auth/salt/{email}. Unauthenticated: the salt is
// needed to re-derive the vault key before login is possible.
func (h *AuthHandler) VaultSalt(w http.ResponseWriter, r *http.Request) {
	email := chi.URLParam(r, "email")

	salt, err := h.AuthService.VaultSalt(r.Context(), email)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, response{
		Success: true,
		Data:    map[string]string{"vaultKeySalt": salt},
	})
}
