// Package repository provides PostgreSQL persistence for users, credentials
// and sharing permissions.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/key2key/server/internal/common"
	"github.com/key2key/server/internal/models"
)

// uniqueViolation is the PostgreSQL error code for a unique constraint breach.
const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

// PostgresUserRepository implements user persistence against PostgreSQL.
type PostgresUserRepository struct {
	// DB is the database handle for executing queries.
	DB *sql.DB
}

// NewPostgresUserRepository creates a new PostgresUserRepository with the
// given database connection.
func NewPostgresUserRepository(db *sql.DB) *PostgresUserRepository {
	return &PostgresUserRepository{DB: db}
}

// Create inserts a new user row. A duplicate email is reported as
// common.ErrAlreadyExists.
func (r *PostgresUserRepository) Create(ctx context.Context, user *models.User) error {
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO users (id, email, login_verifier, vault_key_salt, public_key, wrapped_private_key)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, user.ID, user.Email, user.LoginVerifier, user.VaultKeySalt, user.PublicKey, user.WrappedPrivateKey)
	if err != nil {
		if isUniqueViolation(err) {
			return common.ErrAlreadyExists
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// GetByEmail fetches a user by email, common.ErrNotFound if absent.
func (r *PostgresUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := r.DB.QueryRowContext(ctx, `
		SELECT id, email, login_verifier, vault_key_salt, public_key, wrapped_private_key
		FROM users WHERE email = $1
	`, email).Scan(&user.ID, &user.Email, &user.LoginVerifier,
		&user.VaultKeySalt, &user.PublicKey, &user.WrappedPrivateKey)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return &user, nil
}

// GetVaultSalt returns the stored vault key salt for an email,
// common.ErrNotFound if no such user exists.
func (r *PostgresUserRepository) GetVaultSalt(ctx context.Context, email string) (string, error) {
	var salt string
	err := r.DB.QueryRowContext(ctx, `
		SELECT vault_key_salt FROM users WHERE email = $1
	`, email).Scan(&salt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", common.ErrNotFound
		}
		return "", fmt.Errorf("get vault salt: %w", err)
	}
	return salt, nil
}
