package service

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/key2key/server/internal/common"
	"github.com/key2key/server/internal/envelope"
	"github.com/key2key/server/internal/models"
)

// CredentialRepository defines the persistence operations needed by the
// credential service.
type CredentialRepository interface {
	// CreateWithOwnerGrant inserts the credential and its owner grant in one
	// transaction.
	CreateWithOwnerGrant(ctx context.Context, cred *models.Credential, encryptedDataKey, keyIV string) error
	// GetByID fetches a credential; common.ErrNotFound if absent.
	GetByID(ctx context.Context, id string) (*models.Credential, error)
	// ToggleFavorite flips the favorite flag and returns the new state.
	ToggleFavorite(ctx context.Context, id string) (bool, error)
	// ListForUser returns every credential the user holds a grant for.
	ListForUser(ctx context.Context, userID string) ([]models.CredentialWithKey, error)
}

// GrantFinder looks up a single permission row.
type GrantFinder interface {
	Find(ctx context.Context, userID, credentialID string) (*models.Permission, error)
}

// CredentialService stores and retrieves encrypted credential envelopes. It
// is deliberately a blind store: envelopes are validated for shape and
// persisted verbatim, never decrypted.
type CredentialService struct {
	creds  CredentialRepository
	grants GrantFinder
}

// NewCredentialService constructs a CredentialService.
func NewCredentialService(creds CredentialRepository, grants GrantFinder) *CredentialService {
	return &CredentialService{creds: creds, grants: grants}
}

// Create validates the client-produced envelope and persists it atomically
// with the owner's wrapped-data-key grant. Returns the new credential's ID.
func (s *CredentialService) Create(ctx context.Context, ownerID string, env *envelope.Envelope, encryptedDataKey, keyIV string) (string, error) {
	if err := envelope.Validate(env); err != nil {
		return "", err
	}
	if encryptedDataKey == "" {
		return "", fmt.Errorf("%w: empty wrapped data key", common.ErrValidation)
	}
	if _, err := hex.DecodeString(encryptedDataKey); err != nil {
		return "", fmt.Errorf("%w: wrapped data key is not hex", common.ErrValidation)
	}

	cred := &models.Credential{
		ID:            uuid.NewString(),
		OwnerID:       ownerID,
		EncryptedData: env.EncryptedData,
		IV:            env.IV,
		Tag:           env.Tag,
	}

	if err := s.creds.CreateWithOwnerGrant(ctx, cred, encryptedDataKey, keyIV); err != nil {
		return "", err
	}
	return cred.ID, nil
}

// Get returns the credential envelope together with the requester's own
// wrapped data key. A requester without a grant gets common.ErrForbidden,
// whether or not the credential exists.
func (s *CredentialService) Get(ctx context.Context, requesterID, credentialID string) (*models.CredentialWithKey, error) {
	grant, err := s.grants.Find(ctx, requesterID, credentialID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.ErrForbidden
		}
		return nil, err
	}

	cred, err := s.creds.GetByID(ctx, credentialID)
	if err != nil {
		return nil, err
	}

	return &models.CredentialWithKey{
		Credential:       *cred,
		EncryptedDataKey: grant.EncryptedDataKey,
		KeyIV:            grant.IV,
	}, nil
}

// List returns every credential the user can decrypt.
func (s *CredentialService) List(ctx context.Context, userID string) ([]models.CredentialWithKey, error) {
	return s.creds.ListForUser(ctx, userID)
}

// ToggleFavorite flips the favorite flag. Only the owner manages favorite
// status; grant holders get common.ErrForbidden.
func (s *CredentialService) ToggleFavorite(ctx context.Context, requesterID, credentialID string) (bool, error) {
	cred, err := s.creds.GetByID(ctx, credentialID)
	if err != nil {
		return false, err
	}
	if cred.OwnerID != requesterID {
		return false, common.ErrForbidden
	}
	return s.creds.ToggleFavorite(ctx, credentialID)
}
