package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/key2key/server/internal/common"
	"github.com/key2key/server/internal/models"
)

func setupCredentialMock(t *testing.T) (*PostgresCredentialRepository, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to open sqlmock database: %v", err)
	}
	repo := NewPostgresCredentialRepository(db)
	cleanup := func() { db.Close() }
	return repo, mock, cleanup
}

func testCredential() *models.Credential {
	return &models.Credential{
		ID:            "c1",
		OwnerID:       "u1",
		EncryptedData: "deadbeef",
		IV:            "000000000000000000000000",
		Tag:           "00000000000000000000000000000000",
	}
}

func TestCreateWithOwnerGrant_Success(t *testing.T) {
	repo, mock, cleanup := setupCredentialMock(t)
	defer cleanup()

	cred := testCredential()
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO credentials`)).
		WithArgs(cred.ID, cred.OwnerID, cred.EncryptedData, cred.IV, cred.Tag, cred.Favorite).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO permissions`)).
		WithArgs(cred.OwnerID, cred.ID, "wrappedkey", "").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	if err := repo.CreateWithOwnerGrant(context.Background(), cred, "wrappedkey", ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestCreateWithOwnerGrant_GrantFailureRollsBack(t *testing.T) {
	repo, mock, cleanup := setupCredentialMock(t)
	defer cleanup()

	cred := testCredential()
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO credentials`)).
		WithArgs(cred.ID, cred.OwnerID, cred.EncryptedData, cred.IV, cred.Tag, cred.Favorite).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO permissions`)).
		WithArgs(cred.OwnerID, cred.ID, "wrappedkey", "").
		WillReturnError(errors.New("insert failed"))
	mock.ExpectRollback()

	if err := repo.CreateWithOwnerGrant(context.Background(), cred, "wrappedkey", ""); err == nil {
		t.Errorf("expected error, got nil")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestToggleFavorite(t *testing.T) {
	repo, mock, cleanup := setupCredentialMock(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta(`UPDATE credentials SET favorite = NOT favorite WHERE id = $1 RETURNING favorite`)).
		WithArgs("c1").
		WillReturnRows(sqlmock.NewRows([]string{"favorite"}).AddRow(true))

	fav, err := repo.ToggleFavorite(context.Background(), "c1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !fav {
		t.Errorf("favorite = false, want true")
	}
}

func TestToggleFavorite_NotFound(t *testing.T) {
	repo, mock, cleanup := setupCredentialMock(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta(`UPDATE credentials SET favorite = NOT favorite WHERE id = $1 RETURNING favorite`)).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.ToggleFavorite(context.Background(), "missing")
	if !errors.Is(err, common.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestGetByID_NotFound(t *testing.T) {
	repo, mock, cleanup := setupCredentialMock(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, owner_id, encrypted_data, iv, tag, favorite`)).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "missing")
	if !errors.Is(err, common.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestListForUser(t *testing.T) {
	repo, mock, cleanup := setupCredentialMock(t)
	defer cleanup()

	rows := sqlmock.NewRows([]string{"id", "owner_id", "encrypted_data", "iv", "tag", "favorite", "encrypted_data_key", "iv"}).
		AddRow("c1", "u1", "deadbeef", "iv1", "tag1", false, "wrapped1", "").
		AddRow("c2", "u2", "cafebabe", "iv2", "tag2", true, "wrapped2", "keyiv")
	mock.ExpectQuery(regexp.QuoteMeta(`FROM credentials c`)).
		WithArgs("u1").
		WillReturnRows(rows)

	creds, err := repo.ListForUser(context.Background(), "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(creds) != 2 {
		t.Fatalf("len = %d, want 2", len(creds))
	}
	if creds[0].EncryptedDataKey != "wrapped1" || creds[1].KeyIV != "keyiv" {
		t.Errorf("wrapped keys not mapped: %+v", creds)
	}
	// c2 is shared with u1 but owned by u2
	if creds[1].OwnerID != "u2" {
		t.Errorf("owner = %q, want u2", creds[1].OwnerID)
	}
}
