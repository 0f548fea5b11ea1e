// Package identity verifies the ID tokens that operators present to the
// management API.
package identity

import (
	"context"
	"net/http"
	"strings"

	"webhook-gateway/internal/common/errors"
)

const (
	ProviderJWT  = "jwt"
	ProviderOIDC = "oidc"
)

// Rejection messages
const (
	ErrTokenRequired = "ID token required"
	ErrTokenInvalid  = "Invalid or expired ID token"
)

// Identity is the verified subject of an ID token
type Identity struct {
	UID   string `json:"uid"`
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
	Admin bool   `json:"admin"`
}

// Verifier checks a raw ID token and returns its subject
type Verifier interface {
	Verify(ctx context.Context, rawToken string) (*Identity, error)
}

// BearerToken returns the token of an "Authorization: Bearer" header
func BearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if !strings.HasPrefix(h, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
}

// Authenticate verifies the bearer token of r. A missing token is an auth
// error (401); a token the verifier rejects is forbidden (403).
func Authenticate(ctx context.Context, v Verifier, r *http.Request) (*Identity, error) {
	raw := BearerToken(r)
	if raw == "" {
		return nil, errors.AuthError(ErrTokenRequired)
	}
	id, err := v.Verify(ctx, raw)
	if err != nil {
		e := errors.ForbiddenError(ErrTokenInvalid)
		e.Cause = err
		return nil, e
	}
	return id, nil
}

type identityKey struct{}

// WithIdentity attaches id to ctx
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// FromContext returns the identity set by WithIdentity
func FromContext(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(*Identity)
	return id, ok
}
