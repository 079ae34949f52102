// Package models defines the core data structures for users, credentials
// and sharing permissions.
package models

// User represents an application user together with their vault key material.
// The server stores the private key only in wrapped (encrypted) form and the
// login verifier only as a salted hash; neither is ever usable server-side.
type User struct {
	// ID is the unique identifier for the user.
	ID string `json:"id"`
	// Email is the unique login email of the user.
	Email string `json:"email"`
	// LoginVerifier is the salted hash of the client-derived auth key.
	LoginVerifier []byte `json:"-"`
	// VaultKeySalt is the per-user salt used to re-derive the vault key.
	// It is generated once at signup and never changes.
	VaultKeySalt string `json:"vaultKeySalt"`
	// PublicKey is the PEM-encoded RSA public key, safe to share.
	PublicKey string `json:"publicKey"`
	// WrappedPrivateKey is the private key encrypted under the vault key,
	// serialized as "ciphertext:iv:tag" in hex.
	WrappedPrivateKey string `json:"wrappedPrivateKey"`
}

// Credential holds one encrypted credential envelope. The plaintext never
// exists server-side; the envelope is only meaningful together with the data
// key wrapped in a Permission row.
type Credential struct {
	// ID is the unique identifier for the credential.
	ID string `json:"id"`
	// OwnerID is the user who created the credential.
	OwnerID string `json:"ownerId"`
	// EncryptedData is the hex-encoded AEAD ciphertext of the payload.
	EncryptedData string `json:"encryptedData"`
	// IV is the hex-encoded 12-byte nonce used for the payload encryption.
	IV string `json:"iv"`
	// Tag is the hex-encoded 16-byte authentication tag.
	Tag string `json:"tag"`
	// Favorite marks the credential as a favorite of its owner.
	Favorite bool `json:"favorite"`
}

// Permission is a grant record: it states that a user may access a credential
// and carries the credential's data key wrapped for that user. There is
// exactly one Permission per (user, credential) pair.
type Permission struct {
	// UserID is the grant holder.
	UserID string `json:"userId"`
	// CredentialID is the credential the grant applies to.
	CredentialID string `json:"credentialId"`
	// EncryptedDataKey is the data key wrapped under the holder's public key.
	EncryptedDataKey string `json:"encryptedDataKey"`
	// IV holds wrapping parameters when present; empty for a pure RSA wrap.
	IV string `json:"iv"`
}

// AccessListEntry is one row of a credential's access list.
type AccessListEntry struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
}

// CredentialWithKey pairs a credential with the caller's own wrapped data key,
// which is everything a client needs to decrypt the payload locally.
type CredentialWithKey struct {
	Credential
	// EncryptedDataKey is the data key wrapped for the requesting user.
	EncryptedDataKey string `json:"encryptedDataKey"`
	// KeyIV holds wrapping parameters of the data key, if any.
	KeyIV string `json:"keyIv,omitempty"`
}
