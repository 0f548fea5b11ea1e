// Package crypto encrypts endpoint secrets at rest with AES-256-GCM.
//
// Ciphertexts are tagged with a version prefix so values written before
// encryption was enabled are still readable:
//
//	enc, _ := crypto.NewConfigEncryptor(os.Getenv("CONFIG_ENCRYPTION_KEY"))
//	sealed, _ := enc.Encrypt("hmac-secret")   // "enc:v1:<base64>"
//	plain, _ := enc.Decrypt(sealed)           // "hmac-secret"
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"io"
	"strings"

	"golang.org/x/crypto/pbkdf2"
	"webhook-gateway/internal/common/errors"
)

const (
	sealedPrefix     = "enc:v1:"
	pbkdf2Iterations = 10000
)

var kdfSalt = []byte("webhook-gateway-config-salt")

// ConfigEncryptor seals and opens short secrets. Safe for concurrent use.
type ConfigEncryptor struct {
	aead cipher.AEAD
}

// NewConfigEncryptor derives a 256-bit key from passphrase with PBKDF2-SHA256
func NewConfigEncryptor(passphrase string) (*ConfigEncryptor, error) {
	if passphrase == "" {
		return nil, errors.ValidationError("encryption key cannot be empty")
	}

	key := pbkdf2.Key([]byte(passphrase), kdfSalt, pbkdf2Iterations, 32, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, errors.InternalError("failed to create cipher", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, errors.InternalError("failed to create GCM", err)
	}

	return &ConfigEncryptor{aead: aead}, nil
}

// Encrypt seals plaintext. Empty input and already sealed values are returned unchanged.
func (e *ConfigEncryptor) Encrypt(plaintext string) (string, error) {
	if plaintext == "" || IsEncrypted(plaintext) {
		return plaintext, nil
	}

	nonce := make([]byte, e.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", errors.InternalError("failed to generate nonce", err)
	}

	sealed := e.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return sealedPrefix + base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a sealed value. Values without the version prefix are
// treated as legacy plaintext and returned as is.
func (e *ConfigEncryptor) Decrypt(value string) (string, error) {
	if !IsEncrypted(value) {
		return value, nil
	}

	data, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(value, sealedPrefix))
	if err != nil {
		return "", errors.ValidationError("invalid ciphertext encoding")
	}

	nonceSize := e.aead.NonceSize()
	if len(data) < nonceSize {
		return "", errors.ValidationError("ciphertext too short")
	}

	plain, err := e.aead.Open(nil, data[:nonceSize], data[nonceSize:], nil)
	if err != nil {
		return "", errors.AuthError("failed to decrypt value")
	}
	return string(plain), nil
}

// IsEncrypted reports whether value carries the sealed prefix
func IsEncrypted(value string) bool {
	return strings.HasPrefix(value, sealedPrefix)
}
