// Package common defines sentinel errors shared across the server layers.
// Callers should match these values with errors.Is.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")

	// Identity errors.
	ErrUnauthenticated    = errors.New("unauthenticated")
	ErrInvalidCredentials = errors.New("invalid email or password")

	// Authorization errors.
	ErrForbidden                = errors.New("forbidden")
	ErrTargetNotFound           = errors.New("target user not found")
	ErrOwnerRevocationForbidden = errors.New("cannot revoke the owner's access, delete the credential instead")

	// Sharing: benign short-circuit, the grant already exists.
	ErrAlreadyShared = errors.New("already shared with this user")

	// Cryptographic errors.
	ErrAuthenticationFailed = errors.New("decryption failed: data was tampered with or the key is wrong")
	ErrKeyGeneration        = errors.New("key generation failed")

	// Request validation.
	ErrValidation = errors.New("validation error")
)
