package service

import (
	"context"
	"errors"

	"github.com/key2key/server/internal/common"
	"github.com/key2key/server/internal/models"
)

// PermissionRepository defines the persistence operations needed by the
// sharing service.
type PermissionRepository interface {
	// Create inserts a grant; common.ErrAlreadyExists on a duplicate pair.
	Create(ctx context.Context, perm *models.Permission) error
	// Find fetches the grant for (userID, credentialID).
	Find(ctx context.Context, userID, credentialID string) (*models.Permission, error)
	// ListByCredential returns every grant holder with their email.
	ListByCredential(ctx context.Context, credentialID string) ([]models.AccessListEntry, error)
	// Delete removes a grant.
	Delete(ctx context.Context, userID, credentialID string) error
}

// UserFinder resolves a user by email.
type UserFinder interface {
	GetByEmail(ctx context.Context, email string) (*models.User, error)
}

// CredentialFinder fetches a credential record.
type CredentialFinder interface {
	GetByID(ctx context.Context, id string) (*models.Credential, error)
}

// ShareOffer is the response to a share request: everything the requester's
// client needs to re-wrap the data key for the target. The server cannot do
// the re-wrap itself because it holds no private key in usable form, which is
// why sharing takes two round trips.
type ShareOffer struct {
	// TargetUserID is the resolved recipient.
	TargetUserID string `json:"targetUserId"`
	// TargetPublicKey is the recipient's PEM public key to wrap under.
	TargetPublicKey string `json:"targetPublicKey"`
	// EncryptedDataKey is the requester's own wrapped data key, which the
	// requester's client unwraps locally with its private key.
	EncryptedDataKey string `json:"encryptedDataKey"`
}

// ShareService orchestrates the two-phase grant protocol and revocation.
// No in-flight state is kept between request and confirm: the offer carries
// everything the client needs, and each call is authorized independently.
type ShareService struct {
	grants PermissionRepository
	users  UserFinder
	creds  CredentialFinder
}

// NewShareService constructs a ShareService.
func NewShareService(grants PermissionRepository, users UserFinder, creds CredentialFinder) *ShareService {
	return &ShareService{grants: grants, users: users, creds: creds}
}

// AccessList returns every grant holder of a credential. The requester must
// hold a grant themselves; otherwise common.ErrForbidden.
func (s *ShareService) AccessList(ctx context.Context, requesterID, credentialID string) ([]models.AccessListEntry, error) {
	if _, err := s.grants.Find(ctx, requesterID, credentialID); err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.ErrForbidden
		}
		return nil, err
	}
	return s.grants.ListByCredential(ctx, credentialID)
}

// RequestShare starts a sharing attempt. It resolves the target email
// (common.ErrTargetNotFound if unregistered), verifies the requester holds a
// grant (common.ErrForbidden otherwise) and short-circuits with
// common.ErrAlreadyShared if the target already has one. On success the
// returned offer lets the requester's client perform the re-wrap.
func (s *ShareService) RequestShare(ctx context.Context, requesterID, credentialID, targetEmail string) (*ShareOffer, error) {
	target, err := s.users.GetByEmail(ctx, targetEmail)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.ErrTargetNotFound
		}
		return nil, err
	}

	requesterGrant, err := s.grants.Find(ctx, requesterID, credentialID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.ErrForbidden
		}
		return nil, err
	}

	_, err = s.grants.Find(ctx, target.ID, credentialID)
	if err == nil {
		return nil, common.ErrAlreadyShared
	}
	if !errors.Is(err, common.ErrNotFound) {
		return nil, err
	}

	return &ShareOffer{
		TargetUserID:     target.ID,
		TargetPublicKey:  target.PublicKey,
		EncryptedDataKey: requesterGrant.EncryptedDataKey,
	}, nil
}

// ConfirmShare completes a sharing attempt by persisting the grant holding
// the data key the requester's client wrapped for the target. The server
// cannot verify the wrap cryptographically; a bad wrap surfaces only when the
// target's client fails to decrypt. A concurrent duplicate insert is absorbed
// as common.ErrAlreadyShared via the unique (user, credential) constraint.
func (s *ShareService) ConfirmShare(ctx context.Context, credentialID, targetUserID, encryptedDataKey, iv string) (*models.Permission, error) {
	perm := &models.Permission{
		UserID:           targetUserID,
		CredentialID:     credentialID,
		EncryptedDataKey: encryptedDataKey,
		IV:               iv,
	}
	if err := s.grants.Create(ctx, perm); err != nil {
		if errors.Is(err, common.ErrAlreadyExists) {
			return nil, common.ErrAlreadyShared
		}
		return nil, err
	}
	return perm, nil
}

// Revoke deletes the target's grant. Only the owner may revoke
// (common.ErrForbidden otherwise), and the owner's own grant is structurally
// protected: removing it would leave the credential undecryptable by anyone,
// so that path fails with common.ErrOwnerRevocationForbidden.
func (s *ShareService) Revoke(ctx context.Context, requesterID, credentialID, targetUserID string) error {
	cred, err := s.creds.GetByID(ctx, credentialID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return common.ErrForbidden
		}
		return err
	}

	if cred.OwnerID != requesterID {
		return common.ErrForbidden
	}
	if targetUserID == cred.OwnerID {
		return common.ErrOwnerRevocationForbidden
	}

	return s.grants.Delete(ctx, targetUserID, credentialID)
}
