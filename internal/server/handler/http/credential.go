package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/key2key/server/internal/common"
	"github.com/key2key/server/internal/envelope"
	"github.com/key2key/server/internal/middleware"
	"github.com/key2key/server/internal/models"
)

// CredentialService defines the interface for credential operations required
// by the HTTP handlers.
type CredentialService interface {
	// Create stores an envelope atomically with the owner grant.
	Create(ctx context.Context, ownerID string, env *envelope.Envelope, encryptedDataKey, keyIV string) (string, error)
	// Get returns the envelope plus the requester's wrapped data key.
	Get(ctx context.Context, requesterID, credentialID string) (*models.CredentialWithKey, error)
	// List returns every credential the user holds a grant for.
	List(ctx context.Context, userID string) ([]models.CredentialWithKey, error)
	// ToggleFavorite flips the owner-only favorite flag.
	ToggleFavorite(ctx context.Context, requesterID, credentialID string) (bool, error)
}

// CredentialHandler handles HTTP requests for the encrypted credential store.
type CredentialHandler struct {
	CredentialService CredentialService
}

// createCredentialRequest is the JSON payload for credential creation: the
// client-encrypted envelope plus the data key wrapped for the owner. The
// validator enforces shape only; content is opaque to the server by design.
type createCredentialRequest struct {
	EncryptedData    string `json:"encryptedData" validate:"required,hexadecimal"`
	IV               string `json:"iv" validate:"required,hexadecimal,len=24"`
	Tag              string `json:"tag" validate:"required,hexadecimal,len=32"`
	EncryptedDataKey string `json:"encryptedDataKey" validate:"required,hexadecimal"`
	KeyIV            string `json:"keyIv" validate:"omitempty,hexadecimal"`
}

// Create handles POST /api/credentials.
func (h *CredentialHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserIDFromContext(r.Context())

	var req createCredentialRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%w: invalid request body", common.ErrValidation))
		return
	}
	if err := validate.Struct(&req); err != nil {
		writeError(w, fmt.Errorf("%w: %v", common.ErrValidation, err))
		return
	}

	env := &envelope.Envelope{
		EncryptedData: req.EncryptedData,
		IV:            req.IV,
		Tag:           req.Tag,
	}
	id, err := h.CredentialService.Create(r.Context(), userID, env, req.EncryptedDataKey, req.KeyIV)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, response{
		Success: true,
		Message: "credential created",
		Data:    map[string]string{"id": id},
	})
}

// List handles GET /api/credentials.
func (h *CredentialHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserIDFromContext(r.Context())

	creds, err := h.CredentialService.List(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, response{Success: true, Data: creds})
}

// Get handles GET /api/credentials/{id}.
func (h *CredentialHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserIDFromContext(r.Context())
	credentialID := chi.URLParam(r, "id")

	cred, err := h.CredentialService.Get(r.Context(), userID, credentialID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, response{Success: true, Data: cred})
}

// ToggleFavorite handles PATCH /api/credentials/{id}/favorite.
func (h *CredentialHandler) ToggleFavorite(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserIDFromContext(r.Context())
	credentialID := chi.URLParam(r, "id")

	favorite, err := h.CredentialService.ToggleFavorite(r.Context(), userID, credentialID)
	if err != nil {
		writeError(w, err)
		return
	}

	msg := "removed from favorites"
	if favorite {
		msg = "added to favorites"
	}
	writeJSON(w, http.StatusOK, response{
		Success: true,
		Message: msg,
		Data:    map[string]bool{"favorite": favorite},
	})
}
