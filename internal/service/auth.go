// Package service provides business-logic services for authentication,
// credential storage and the sharing protocol, delegating persistence to
// repository interfaces.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/key2key/server/internal/auth"
	"github.com/key2key/server/internal/common"
	"github.com/key2key/server/internal/keys"
	"github.com/key2key/server/internal/models"
)

// UserRepository defines the persistence operations required by the
// authentication service.
type UserRepository interface {
	// Create inserts a new user; common.ErrAlreadyExists on duplicate email.
	Create(ctx context.Context, user *models.User) error
	// GetByEmail fetches a user by email; common.ErrNotFound if absent.
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	// GetVaultSalt returns the vault key salt for an email.
	GetVaultSalt(ctx context.Context, email string) (string, error)
}

// AuthService implements signup, sign-in and vault-salt lookup.
type AuthService struct {
	repo      UserRepository
	jwtSecret []byte
	tokenTTL  time.Duration
}

// NewAuthService constructs an AuthService.
func NewAuthService(repo UserRepository, jwtSecret string, tokenTTL time.Duration) *AuthService {
	return &AuthService{repo: repo, jwtSecret: []byte(jwtSecret), tokenTTL: tokenTTL}
}

// SignUp registers a new user. authKey is the client-derived secret (never
// the raw password): it seeds the master-key derivation inside keys.Issue and
// is hashed with bcrypt into the login verifier. Key material is generated
// before any write, so a generation failure persists nothing.
func (s *AuthService) SignUp(ctx context.Context, email, authKey string) (*models.User, string, error) {
	material, err := keys.Issue(authKey)
	if err != nil {
		return nil, "", err
	}

	verifier, err := bcrypt.GenerateFromPassword([]byte(authKey), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", fmt.Errorf("%w: verifier: %v", common.ErrKeyGeneration, err)
	}

	user := &models.User{
		ID:                uuid.NewString(),
		Email:             email,
		LoginVerifier:     verifier,
		VaultKeySalt:      material.VaultKeySalt,
		PublicKey:         material.PublicKey,
		WrappedPrivateKey: material.WrappedPrivateKey,
	}

	if err := s.repo.Create(ctx, user); err != nil {
		return nil, "", err
	}

	token, err := auth.GenerateToken(user.ID, s.jwtSecret, s.tokenTTL)
	if err != nil {
		return nil, "", fmt.Errorf("sign token: %w", err)
	}

	return user, token, nil
}

// SignIn verifies the client-derived auth key against the stored verifier.
// Unknown email and wrong secret both surface common.ErrInvalidCredentials,
// so callers cannot enumerate accounts through this path.
func (s *AuthService) SignIn(ctx context.Context, email, authKey string) (*models.User, string, error) {
	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, "", common.ErrInvalidCredentials
		}
		return nil, "", err
	}

	if err := bcrypt.CompareHashAndPassword(user.LoginVerifier, []byte(authKey)); err != nil {
		return nil, "", common.ErrInvalidCredentials
	}

	token, err := auth.GenerateToken(user.ID, s.jwtSecret, s.tokenTTL)
	if err != nil {
		return nil, "", fmt.Errorf("sign token: %w", err)
	}

	return user, token, nil
}

// VaultSalt returns the vault key salt for an email. This lookup is
// unauthenticated by design: the client needs the salt to re-derive its vault
// key before it can log in.
func (s *AuthService) VaultSalt(ctx context.Context, email string) (string, error) {
	return s.repo.GetVaultSalt(ctx, email)
}
