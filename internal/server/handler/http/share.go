package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/key2key/server/internal/common"
	"github.com/key2key/server/internal/middleware"
	"github.com/key2key/server/internal/models"
	"github.com/key2key/server/internal/service"
)

// ShareService defines the interface for sharing operations required by the
// HTTP handlers.
type ShareService interface {
	// AccessList returns every grant holder of a credential.
	AccessList(ctx context.Context, requesterID, credentialID string) ([]models.AccessListEntry, error)
	// RequestShare starts a sharing attempt and returns the re-wrap offer.
	RequestShare(ctx context.Context, requesterID, credentialID, targetEmail string) (*service.ShareOffer, error)
	// ConfirmShare persists the grant carrying the re-wrapped data key.
	ConfirmShare(ctx context.Context, credentialID, targetUserID, encryptedDataKey, iv string) (*models.Permission, error)
	// Revoke deletes the target's grant.
	Revoke(ctx context.Context, requesterID, credentialID, targetUserID string) error
}

// ShareHandler handles HTTP requests for the two-phase sharing protocol.
type ShareHandler struct {
	ShareService ShareService
}

type requestShareRequest struct {
	CredentialID string `json:"credentialId" validate:"required,uuid"`
	TargetEmail  string `json:"targetEmail" validate:"required,email"`
}

type confirmShareRequest struct {
	CredentialID     string `json:"credentialId" validate:"required,uuid"`
	TargetUserID     string `json:"targetUserId" validate:"required,uuid"`
	EncryptedDataKey string `json:"encryptedDataKey" validate:"required,hexadecimal"`
	IV               string `json:"iv" validate:"omitempty,hexadecimal"`
}

// AccessList handles GET /api/credentials/{id}/access-list.
func (h *ShareHandler) AccessList(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserIDFromContext(r.Context())
	credentialID := chi.URLParam(r, "id")

	entries, err := h.ShareService.AccessList(r.Context(), userID, credentialID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, response{Success: true, Data: entries})
}

// Request handles POST /api/share/request: phase one of the handshake. If
// the target already holds a grant this is an idempotent success with no
// offer payload.
func (h *ShareHandler) Request(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserIDFromContext(r.Context())

	var req requestShareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%w: invalid request body", common.ErrValidation))
		return
	}
	if err := validate.Struct(&req); err != nil {
		writeError(w, fmt.Errorf("%w: %v", common.ErrValidation, err))
		return
	}

	offer, err := h.ShareService.RequestShare(r.Context(), userID, req.CredentialID, req.TargetEmail)
	if err != nil {
		if errors.Is(err, common.ErrAlreadyShared) {
			writeJSON(w, http.StatusOK, response{Success: true, Message: common.ErrAlreadyShared.Error()})
			return
		}
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, response{
		Success: true,
		Message: "target user found, encrypt the data key with this public key",
		Data:    offer,
	})
}

// Confirm handles POST /api/share/confirm: phase two, persisting the grant
// with the data key the caller's client wrapped for the target.
func (h *ShareHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	var req confirmShareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%w: invalid request body", common.ErrValidation))
		return
	}
	if err := validate.Struct(&req); err != nil {
		writeError(w, fmt.Errorf("%w: %v", common.ErrValidation, err))
		return
	}

	perm, err := h.ShareService.ConfirmShare(r.Context(), req.CredentialID, req.TargetUserID, req.EncryptedDataKey, req.IV)
	if err != nil {
		if errors.Is(err, common.ErrAlreadyShared) {
			writeJSON(w, http.StatusOK, response{Success: true, Message: common.ErrAlreadyShared.Error()})
			return
		}
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, response{
		Success: true,
		Message: "access granted successfully",
		Data:    perm,
	})
}

// Revoke handles DELETE /api/share/{credentialId}/{targetUserId}.
func (h *ShareHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserIDFromContext(r.Context())
	credentialID := chi.URLParam(r, "credentialId")
	targetUserID := chi.URLParam(r, "targetUserId")

	if err := h.ShareService.Revoke(r.Context(), userID, credentialID, targetUserID); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, response{Success: true, Message: "access revoked successfully"})
}
