package storage

import (
	"fmt"

	"webhook-gateway/internal/crypto"
	"webhook-gateway/internal/models"
)

// SecretCipher encrypts the credential fields of an endpoint's
// authentication block before they are written. A nil cipher, or one built
// without a key, stores plaintext.
type SecretCipher struct {
	encryptor *crypto.ConfigEncryptor
}

// NewSecretCipher creates a cipher. An empty key disables encryption.
func NewSecretCipher(encryptionKey string) (*SecretCipher, error) {
	if encryptionKey == "" {
		return &SecretCipher{}, nil
	}

	encryptor, err := crypto.NewConfigEncryptor(encryptionKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create encryptor: %w", err)
	}
	return &SecretCipher{encryptor: encryptor}, nil
}

// Enabled reports whether secrets are encrypted at rest
func (c *SecretCipher) Enabled() bool {
	return c != nil && c.encryptor != nil
}

// Seal returns a copy of auth with token, apiKey and secret encrypted
func (c *SecretCipher) Seal(auth models.Authentication) (models.Authentication, error) {
	if !c.Enabled() {
		return auth, nil
	}
	return c.apply(auth, c.encryptor.Encrypt)
}

// Open reverses Seal. Values stored before encryption was turned on pass
// through unchanged.
func (c *SecretCipher) Open(auth models.Authentication) (models.Authentication, error) {
	if !c.Enabled() {
		return auth, nil
	}
	return c.apply(auth, c.encryptor.Decrypt)
}

func (c *SecretCipher) apply(auth models.Authentication, fn func(string) (string, error)) (models.Authentication, error) {
	fields := []struct {
		name string
		ptr  *string
	}{
		{"token", &auth.Token},
		{"apiKey", &auth.APIKey},
		{"secret", &auth.Secret},
	}

	for _, f := range fields {
		if *f.ptr == "" {
			continue
		}
		v, err := fn(*f.ptr)
		if err != nil {
			return models.Authentication{}, fmt.Errorf("failed to process field %s: %w", f.name, err)
		}
		*f.ptr = v
	}
	return auth, nil
}
