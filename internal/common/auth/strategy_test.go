package auth

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"webhook-gateway/internal/common/errors"
	"webhook-gateway/internal/models"
)

func request(headers map[string]string, body string) Request {
	h := http.Header{}
	for k, v := range headers {
		h.Set(k, v)
	}
	return Request{Header: h, RawBody: []byte(body)}
}

func TestValidator_None(t *testing.T) {
	v := NewValidator()

	for _, method := range []string{models.AuthNone, ""} {
		res := v.Validate(models.Authentication{Method: method}, request(nil, "anything"))
		assert.True(t, res.Valid, "method %q", method)
	}
}

func TestValidator_BearerToken(t *testing.T) {
	v := NewValidator()
	cfg := models.Authentication{Method: models.AuthBearerToken, Token: "T"}

	tests := []struct {
		name    string
		headers map[string]string
		valid   bool
		err     string
	}{
		{"valid token", map[string]string{"Authorization": "Bearer T"}, true, ""},
		{"wrong token", map[string]string{"Authorization": "Bearer WRONG"}, false, "Invalid token"},
		{"missing header", nil, false, "Missing or invalid Authorization header"},
		{"basic scheme", map[string]string{"Authorization": "Basic T"}, false, "Missing or invalid Authorization header"},
		{"empty token", map[string]string{"Authorization": "Bearer "}, false, "Invalid token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := v.Validate(cfg, request(tt.headers, ""))
			assert.Equal(t, tt.valid, res.Valid)
			assert.Equal(t, tt.err, res.Error)
		})
	}
}

func TestValidator_APIKey(t *testing.T) {
	v := NewValidator()
	cfg := models.Authentication{Method: models.AuthAPIKey, APIKey: "k-123", HeaderName: "X-Partner-Key"}

	res := v.Validate(cfg, request(map[string]string{"x-partner-key": "k-123"}, ""))
	assert.True(t, res.Valid)

	res = v.Validate(cfg, request(map[string]string{"X-Partner-Key": "k-124"}, ""))
	assert.False(t, res.Valid)
	assert.Equal(t, "Invalid API key", res.Error)

	res = v.Validate(cfg, request(nil, ""))
	assert.False(t, res.Valid)
	assert.Equal(t, "Missing X-Partner-Key header", res.Error)
}

func TestValidator_APIKeyDefaultHeader(t *testing.T) {
	v := NewValidator()
	cfg := models.Authentication{Method: models.AuthAPIKey, APIKey: "secret"}

	res := v.Validate(cfg, request(map[string]string{"X-API-Key": "secret"}, ""))
	assert.True(t, res.Valid)
}

func TestValidator_HMAC(t *testing.T) {
	v := NewValidator()
	body := `{"event":"order.created","id":42}`
	cfg := models.Authentication{Method: models.AuthHMAC, Secret: "s3cret", SignatureHeader: "X-Hub-Signature"}
	sig := ComputeSignature("s3cret", []byte(body))

	t.Run("bare hex", func(t *testing.T) {
		res := v.Validate(cfg, request(map[string]string{"X-Hub-Signature": sig}, body))
		assert.True(t, res.Valid)
	})

	t.Run("algo prefix", func(t *testing.T) {
		res := v.Validate(cfg, request(map[string]string{"X-Hub-Signature": "sha256=" + sig}, body))
		assert.True(t, res.Valid)
	})

	t.Run("mutated body", func(t *testing.T) {
		mutated := []byte(body)
		mutated[0] ^= 0x01
		res := v.Validate(cfg, request(map[string]string{"X-Hub-Signature": sig}, string(mutated)))
		assert.False(t, res.Valid)
		assert.Equal(t, "Invalid signature", res.Error)
	})

	t.Run("mutated signature", func(t *testing.T) {
		b := []byte(sig)
		if b[0] == 'a' {
			b[0] = 'b'
		} else {
			b[0] = 'a'
		}
		res := v.Validate(cfg, request(map[string]string{"X-Hub-Signature": string(b)}, body))
		assert.False(t, res.Valid)
	})

	t.Run("length mismatch", func(t *testing.T) {
		res := v.Validate(cfg, request(map[string]string{"X-Hub-Signature": "sha256=abc"}, body))
		assert.False(t, res.Valid)
	})

	t.Run("missing header", func(t *testing.T) {
		res := v.Validate(cfg, request(nil, body))
		assert.False(t, res.Valid)
		assert.Equal(t, "Missing X-Hub-Signature header", res.Error)
	})
}

func TestValidator_HMACDefaultHeader(t *testing.T) {
	v := NewValidator()
	cfg := models.Authentication{Method: models.AuthHMAC, Secret: "s"}
	sig := ComputeSignature("s", []byte("x"))

	res := v.Validate(cfg, request(map[string]string{"X-Signature": sig}, "x"))
	assert.True(t, res.Valid)
}

func TestValidator_UnsupportedMethod(t *testing.T) {
	v := NewValidator()

	res := v.Validate(models.Authentication{Method: "oauth2"}, request(nil, ""))
	assert.False(t, res.Valid)
	assert.Equal(t, ErrUnsupportedMethod, res.Error)
}

func TestValidator_Misconfigured(t *testing.T) {
	v := NewValidator()

	// bearer_token with no stored token must not accept an empty bearer
	res := v.Validate(models.Authentication{Method: models.AuthBearerToken}, request(map[string]string{"Authorization": "Bearer "}, ""))
	assert.False(t, res.Valid)
	assert.Equal(t, ErrUnsupportedMethod, res.Error)
}

func TestValidator_AuthenticateErrorType(t *testing.T) {
	v := NewValidator()
	err := v.Authenticate(models.Authentication{Method: models.AuthBearerToken, Token: "T"}, request(nil, ""))

	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeAuth))
}

type customStrategy struct{}

func (customStrategy) GetType() string { return "custom" }
func (customStrategy) Authenticate(models.Authentication, Request) error {
	return nil
}

func TestValidator_Register(t *testing.T) {
	v := NewValidator()
	assert.False(t, v.IsSupported("custom"))

	v.Register(customStrategy{})
	assert.True(t, v.IsSupported("custom"))
	assert.Len(t, v.SupportedMethods(), 5)
	assert.True(t, v.Validate(models.Authentication{Method: "custom"}, request(nil, "")).Valid)
}

func TestSecureCompare(t *testing.T) {
	assert.True(t, SecureCompare("abc", "abc"))
	assert.False(t, SecureCompare("abc", "abd"))
	assert.False(t, SecureCompare("abc", "abcd"))
}
