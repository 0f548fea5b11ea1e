// Package auth verifies a delivery against its endpoint's authentication
// configuration.
//
// Each supported method is an AuthStrategy registered under the method name
// stored in models.Authentication. Validator looks the strategy up and turns
// its error into a Result the delivery handler can act on:
//
//	v := auth.NewValidator()
//	res := v.Validate(cfg.Authentication, auth.Request{Header: r.Header, RawBody: body})
//	if !res.Valid {
//		// 401
//	}
//
// All shared-secret comparisons are constant time.
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"

	"webhook-gateway/internal/common/errors"
	"webhook-gateway/internal/models"
)

const (
	DefaultAPIKeyHeader    = "X-API-Key"
	DefaultSignatureHeader = "x-signature"

	ErrUnsupportedMethod = "Unsupported authentication method"
)

// Request is the part of an inbound delivery the strategies look at
type Request struct {
	Header  http.Header
	RawBody []byte
}

// AuthStrategy verifies one authentication method.
type AuthStrategy interface {
	// Authenticate returns nil when req carries a valid credential for cfg
	Authenticate(cfg models.Authentication, req Request) error

	// GetType returns the method name the strategy is registered under
	GetType() string
}

// NoneStrategy accepts every request
type NoneStrategy struct{}

func (s *NoneStrategy) GetType() string { return models.AuthNone }

func (s *NoneStrategy) Authenticate(models.Authentication, Request) error { return nil }

// BearerTokenStrategy expects "Authorization: Bearer <token>".
type BearerTokenStrategy struct{}

func (s *BearerTokenStrategy) GetType() string { return models.AuthBearerToken }

func (s *BearerTokenStrategy) Authenticate(cfg models.Authentication, req Request) error {
	if cfg.Token == "" {
		return errors.ConfigError("bearer token is not configured")
	}

	authHeader := req.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return errors.AuthError("Missing or invalid Authorization header")
	}

	if !SecureCompare(authHeader[len("Bearer "):], cfg.Token) {
		return errors.AuthError("Invalid token")
	}
	return nil
}

// APIKeyStrategy expects the configured key in the configured header.
// Header lookup is case-insensitive.
type APIKeyStrategy struct{}

func (s *APIKeyStrategy) GetType() string { return models.AuthAPIKey }

func (s *APIKeyStrategy) Authenticate(cfg models.Authentication, req Request) error {
	if cfg.APIKey == "" {
		return errors.ConfigError("api key is not configured")
	}

	headerName := cfg.HeaderName
	if headerName == "" {
		headerName = DefaultAPIKeyHeader
	}

	provided := req.Header.Get(headerName)
	if provided == "" {
		return errors.AuthError(fmt.Sprintf("Missing %s header", headerName))
	}

	if !SecureCompare(provided, cfg.APIKey) {
		return errors.AuthError("Invalid API key")
	}
	return nil
}

// HMACStrategy expects hex(HMAC-SHA256(secret, body)) in the signature header,
// optionally prefixed with "<algo>=".
type HMACStrategy struct{}

func (s *HMACStrategy) GetType() string { return models.AuthHMAC }

func (s *HMACStrategy) Authenticate(cfg models.Authentication, req Request) error {
	if cfg.Secret == "" {
		return errors.ConfigError("hmac secret is not configured")
	}

	headerName := cfg.SignatureHeader
	if headerName == "" {
		headerName = DefaultSignatureHeader
	}

	signature := req.Header.Get(headerName)
	if signature == "" {
		return errors.AuthError(fmt.Sprintf("Missing %s header", headerName))
	}

	if _, after, found := strings.Cut(signature, "="); found {
		signature = after
	}

	expected := ComputeSignature(cfg.Secret, req.RawBody)

	// hmac.Equal returns false for unequal lengths
	if !hmac.Equal([]byte(signature), []byte(expected)) {
		return errors.AuthError("Invalid signature")
	}
	return nil
}

// ComputeSignature returns the lowercase hex HMAC-SHA256 of body
func ComputeSignature(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// SecureCompare compares two secrets in constant time
func SecureCompare(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
