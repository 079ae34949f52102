// Package keys issues per-user vault key material: a random vault salt, an
// RSA keypair for sharing, and the private key wrapped under a master key
// derived from the client-supplied secret. The master key exists only for the
// duration of the call and is never persisted or returned.
package keys

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"fmt"
	"strings"

	"golang.org/x/crypto/pbkdf2"

	"github.com/key2key/server/internal/common"
)

const (
	// SaltSize is the length of the vault key salt in bytes.
	SaltSize = 16
	// MasterKeySize is the derived master key length (AES-256).
	MasterKeySize = 32
	// KDFIterations is the PBKDF2 work factor.
	KDFIterations = 100000
	// NonceSize is the AES-GCM nonce length in bytes.
	NonceSize = 12
	// TagSize is the AES-GCM authentication tag length in bytes.
	TagSize = 16
	// RSAKeyBits is the keypair modulus length.
	RSAKeyBits = 2048
)

// Material is the result of issuing vault key material for a new user.
// Everything here is safe to persist: the salt and public key are not secret
// and the private key is encrypted.
type Material struct {
	// VaultKeySalt is the hex-encoded random salt.
	VaultKeySalt string
	// PublicKey is the PEM-encoded (PKIX) RSA public key.
	PublicKey string
	// WrappedPrivateKey is "ciphertext:iv:tag" in hex: the PEM-encoded
	// PKCS#8 private key sealed with AES-256-GCM under the master key.
	WrappedPrivateKey string
}

// DeriveMasterKey derives the 256-bit master key from a client-supplied
// secret and the hex-encoded vault salt. The salt string itself is the KDF
// salt input, so clients re-derive the same key from the stored value as-is.
func DeriveMasterKey(secret, saltHex string) []byte {
	return pbkdf2.Key([]byte(secret), []byte(saltHex), KDFIterations, MasterKeySize, sha256.New)
}

// Issue generates vault key material for a new user. derivedSecret is the
// already-hashed value the client derived from the real password; the raw
// password never reaches the server. Any generation failure aborts with
// common.ErrKeyGeneration and nothing partial is returned.
func Issue(derivedSecret string) (*Material, error) {
	salt := make([]byte, SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("%w: salt: %v", common.ErrKeyGeneration, err)
	}
	saltHex := hex.EncodeToString(salt)

	masterKey := DeriveMasterKey(derivedSecret, saltHex)

	priv, err := rsa.GenerateKey(rand.Reader, RSAKeyBits)
	if err != nil {
		return nil, fmt.Errorf("%w: rsa: %v", common.ErrKeyGeneration, err)
	}

	pubDER, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal public key: %v", common.ErrKeyGeneration, err)
	}
	pubPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})

	privDER, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal private key: %v", common.ErrKeyGeneration, err)
	}
	privPEM := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: privDER})

	wrapped, err := wrapPrivateKey(privPEM, masterKey)
	if err != nil {
		return nil, fmt.Errorf("%w: wrap private key: %v", common.ErrKeyGeneration, err)
	}

	return &Material{
		VaultKeySalt:      saltHex,
		PublicKey:         string(pubPEM),
		WrappedPrivateKey: wrapped,
	}, nil
}

// wrapPrivateKey seals the PEM private key with AES-256-GCM under the master
// key and serializes ciphertext, nonce and tag as "ciphertext:iv:tag" hex.
func wrapPrivateKey(privPEM, masterKey []byte) (string, error) {
	block, err := aes.NewCipher(masterKey)
	if err != nil {
		return "", err
	}
	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}

	// Seal appends the tag to the ciphertext; split it off so all three
	// parts travel explicitly.
	sealed := aesgcm.Seal(nil, nonce, privPEM, nil)
	ciphertext := sealed[:len(sealed)-TagSize]
	tag := sealed[len(sealed)-TagSize:]

	return fmt.Sprintf("%s:%s:%s",
		hex.EncodeToString(ciphertext),
		hex.EncodeToString(nonce),
		hex.EncodeToString(tag)), nil
}

// UnwrapPrivateKey reverses wrapPrivateKey. It returns the PEM-encoded
// private key, or common.ErrAuthenticationFailed if the master key is wrong
// or the blob was tampered with.
func UnwrapPrivateKey(wrapped string, masterKey []byte) ([]byte, error) {
	parts := strings.Split(wrapped, ":")
	if len(parts) != 3 {
		return nil, fmt.Errorf("%w: expected ciphertext:iv:tag", common.ErrValidation)
	}

	ciphertext, err := hex.DecodeString(parts[0])
	if err != nil {
		return nil, fmt.Errorf("%w: ciphertext is not hex", common.ErrValidation)
	}
	nonce, err := hex.DecodeString(parts[1])
	if err != nil || len(nonce) != NonceSize {
		return nil, fmt.Errorf("%w: bad nonce", common.ErrValidation)
	}
	tag, err := hex.DecodeString(parts[2])
	if err != nil || len(tag) != TagSize {
		return nil, fmt.Errorf("%w: bad tag", common.ErrValidation)
	}

	block, err := aes.NewCipher(masterKey)
	if err != nil {
		return nil, err
	}
	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	plaintext, err := aesgcm.Open(nil, nonce, append(ciphertext, tag...), nil)
	if err != nil {
		return nil, common.ErrAuthenticationFailed
	}
	return plaintext, nil
}
