// Package envelope implements the credential envelope: AEAD encryption of a
// payload under a symmetric data key, and the shape validation the server
// applies to client-produced envelopes before storing them verbatim.
//
// The server itself never holds a usable data key, so Seal and Open are used
// by whichever side legitimately does (the client, and tests).
package envelope

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/key2key/server/internal/common"
)

const (
	// NonceSize is the AES-GCM nonce length in bytes.
	NonceSize = 12
	// TagSize is the AES-GCM authentication tag length in bytes.
	TagSize = 16
)

// Envelope is an encrypted credential payload: ciphertext, nonce and
// authentication tag, each hex-encoded. All three are required to decrypt.
type Envelope struct {
	EncryptedData string
	IV            string
	Tag           string
}

// Seal encrypts plaintext with AES-GCM under dataKey, using a fresh random
// nonce per call.
func Seal(plaintext, dataKey []byte) (*Envelope, error) {
	block, err := aes.NewCipher(dataKey)
	if err != nil {
		return nil, err
	}
	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}

	sealed := aesgcm.Seal(nil, nonce, plaintext, nil)
	ciphertext := sealed[:len(sealed)-TagSize]
	tag := sealed[len(sealed)-TagSize:]

	return &Envelope{
		EncryptedData: hex.EncodeToString(ciphertext),
		IV:            hex.EncodeToString(nonce),
		Tag:           hex.EncodeToString(tag),
	}, nil
}

// Open decrypts an envelope with dataKey. It returns
// common.ErrAuthenticationFailed if the tag does not verify, so a tampered
// envelope or wrong key is never silently accepted.
func Open(env *Envelope, dataKey []byte) ([]byte, error) {
	if err := Validate(env); err != nil {
		return nil, err
	}

	ciphertext, _ := hex.DecodeString(env.EncryptedData)
	nonce, _ := hex.DecodeString(env.IV)
	tag, _ := hex.DecodeString(env.Tag)

	block, err := aes.NewCipher(dataKey)
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

// Validate checks that an envelope is structurally well-formed: non-empty hex
// ciphertext, a 12-byte nonce and a 16-byte tag. Content correctness is not
// verifiable server-side and is not attempted.
func Validate(env *Envelope) error {
	if env == nil || env.EncryptedData == "" {
		return fmt.Errorf("%w: empty ciphertext", common.ErrValidation)
	}
	if b, err := hex.DecodeString(env.EncryptedData); err != nil || len(b) == 0 {
		return fmt.Errorf("%w: ciphertext is not hex", common.ErrValidation)
	}
	if b, err := hex.DecodeString(env.IV); err != nil || len(b) != NonceSize {
		return fmt.Errorf("%w: iv must be %d hex-encoded bytes", common.ErrValidation, NonceSize)
	}
	if b, err := hex.DecodeString(env.Tag); err != nil || len(b) != TagSize {
		return fmt.Errorf("%w: tag must be %d hex-encoded bytes", common.ErrValidation, TagSize)
	}
	return nil
}
