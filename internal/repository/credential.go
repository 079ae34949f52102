package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/key2key/server/internal/common"
	"github.com/key2key/server/internal/models"
)

// PostgresCredentialRepository implements credential persistence against
// PostgreSQL.
type PostgresCredentialRepository struct {
	// DB is the database handle for executing queries and transactions.
	DB *sql.DB
}

// NewPostgresCredentialRepository creates a new PostgresCredentialRepository
// using the provided *sql.DB.
func NewPostgresCredentialRepository(db *sql.DB) *PostgresCredentialRepository {
	return &PostgresCredentialRepository{DB: db}
}

// CreateWithOwnerGrant inserts a credential together with its owner's
// permission row in a single transaction. A credential must never exist
// without exactly one grant, so if either insert fails both are rolled back.
func (r *PostgresCredentialRepository) CreateWithOwnerGrant(ctx context.Context, cred *models.Credential, encryptedDataKey, keyIV string) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO credentials (id, owner_id, encrypted_data, iv, tag, favorite)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, cred.ID, cred.OwnerID, cred.EncryptedData, cred.IV, cred.Tag, cred.Favorite)
	if err != nil {
		return fmt.Errorf("insert credential: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO permissions (user_id, credential_id, encrypted_data_key, iv)
		VALUES ($1, $2, $3, $4)
	`, cred.OwnerID, cred.ID, encryptedDataKey, keyIV)
	if err != nil {
		return fmt.Errorf("insert owner grant: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// GetByID fetches a single credential, common.ErrNotFound if absent.
func (r *PostgresCredentialRepository) GetByID(ctx context.Context, id string) (*models.Credential, error) {
	var cred models.Credential
	err := r.DB.QueryRowContext(ctx, `
		SELECT id, owner_id, encrypted_data, iv, tag, favorite
		FROM credentials WHERE id = $1
	`, id).Scan(&cred.ID, &cred.OwnerID, &cred.EncryptedData, &cred.IV, &cred.Tag, &cred.Favorite)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("get credential: %w", err)
	}
	return &cred, nil
}

// ToggleFavorite flips the favorite flag in one statement and returns the new
// state. Concurrent toggles resolve last-writer-wins.
func (r *PostgresCredentialRepository) ToggleFavorite(ctx context.Context, id string) (bool, error) {
	var favorite bool
	err := r.DB.QueryRowContext(ctx, `
		UPDATE credentials SET favorite = NOT favorite WHERE id = $1 RETURNING favorite
	`, id).Scan(&favorite)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, common.ErrNotFound
		}
		return false, fmt.Errorf("toggle favorite: %w", err)
	}
	return favorite, nil
}

// ListForUser returns every credential the user holds a grant for, each
// paired with that user's own wrapped data key.
func (r *PostgresCredentialRepository) ListForUser(ctx context.Context, userID string) ([]models.CredentialWithKey, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT c.id, c.owner_id, c.encrypted_data, c.iv, c.tag, c.favorite, p.encrypted_data_key, p.iv
		FROM credentials c
		JOIN permissions p ON p.credential_id = c.id
		WHERE p.user_id = $1
		ORDER BY c.created_at
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list credentials: %w", err)
	}
	defer rows.Close()

	var creds []models.CredentialWithKey
	for rows.Next() {
		var c models.CredentialWithKey
		if err := rows.Scan(&c.ID, &c.OwnerID, &c.EncryptedData, &c.IV, &c.Tag,
			&c.Favorite, &c.EncryptedDataKey, &c.KeyIV); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		creds = append(creds, c)
	}
	return creds, rows.Err()
}
