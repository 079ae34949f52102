package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/key2key/server/internal/common"
	"github.com/key2key/server/internal/models"
)

// PostgresPermissionRepository implements grant persistence against
// PostgreSQL. The (user_id, credential_id) primary key makes duplicate
// inserts fail with a detectable conflict rather than silently succeeding.
type PostgresPermissionRepository struct {
	// DB is the database handle for executing queries.
	DB *sql.DB
}

// NewPostgresPermissionRepository creates a new PostgresPermissionRepository
// using the provided *sql.DB.
func NewPostgresPermissionRepository(db *sql.DB) *PostgresPermissionRepository {
	return &PostgresPermissionRepository{DB: db}
}

// Create inserts a grant row. A duplicate (user, credential) pair is reported
// as common.ErrAlreadyExists.
func (r *PostgresPermissionRepository) Create(ctx context.Context, perm *models.Permission) error {
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO permissions (user_id, credential_id, encrypted_data_key, iv)
		VALUES ($1, $2, $3, $4)
	`, perm.UserID, perm.CredentialID, perm.EncryptedDataKey, perm.IV)
	if err != nil {
		if isUniqueViolation(err) {
			return common.ErrAlreadyExists
		}
		return fmt.Errorf("create permission: %w", err)
	}
	return nil
}

// Find fetches the grant for (userID, credentialID), common.ErrNotFound if
// the user holds none.
func (r *PostgresPermissionRepository) Find(ctx context.Context, userID, credentialID string) (*models.Permission, error) {
	var perm models.Permission
	err := r.DB.QueryRowContext(ctx, `
		SELECT user_id, credential_id, encrypted_data_key, iv
		FROM permissions WHERE user_id = $1 AND credential_id = $2
	`, userID, credentialID).Scan(&perm.UserID, &perm.CredentialID, &perm.EncryptedDataKey, &perm.IV)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("find permission: %w", err)
	}
	return &perm, nil
}

// ListByCredential returns every grant holder of a credential with their
// email, oldest grant first.
func (r *PostgresPermissionRepository) ListByCredential(ctx context.Context, credentialID string) ([]models.AccessListEntry, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT u.id, u.email
		FROM permissions p
		JOIN users u ON u.id = p.user_id
		WHERE p.credential_id = $1
		ORDER BY p.created_at
	`, credentialID)
	if err != nil {
		return nil, fmt.Errorf("list permissions: %w", err)
	}
	defer rows.Close()

	var entries []models.AccessListEntry
	for rows.Next() {
		var e models.AccessListEntry
		if err := rows.Scan(&e.UserID, &e.Email); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Delete removes the grant for (userID, credentialID). Deleting a grant that
// does not exist is common.ErrNotFound.
func (r *PostgresPermissionRepository) Delete(ctx context.Context, userID, credentialID string) error {
	res, err := r.DB.ExecContext(ctx, `
		DELETE FROM permissions WHERE user_id = $1 AND credential_id = $2
	`, userID, credentialID)
	if err != nil {
		return fmt.Errorf("delete permission: %w", err)
	}
	if rows, err := res.RowsAffected(); err == nil && rows == 0 {
		return common.ErrNotFound
	}
	return nil
}
