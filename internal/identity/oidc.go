package identity

import (
	"context"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
)

// OIDCVerifier checks ID tokens issued by an OpenID Connect provider
type OIDCVerifier struct {
	verifier *oidc.IDTokenVerifier
}

// NewOIDCVerifier discovers the provider at issuerURL and accepts tokens
// whose audience is clientID
func NewOIDCVerifier(ctx context.Context, issuerURL, clientID string) (*OIDCVerifier, error) {
	provider, err := oidc.NewProvider(ctx, issuerURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create OIDC provider: %w", err)
	}
	return &OIDCVerifier{verifier: provider.Verifier(&oidc.Config{ClientID: clientID})}, nil
}

// NewOIDCVerifierWithKeys skips discovery and verifies against a fixed key set
func NewOIDCVerifierWithKeys(issuerURL, clientID string, keys oidc.KeySet) *OIDCVerifier {
	return &OIDCVerifier{verifier: oidc.NewVerifier(issuerURL, keys, &oidc.Config{ClientID: clientID})}
}

func (v *OIDCVerifier) Verify(ctx context.Context, rawToken string) (*Identity, error) {
	idToken, err := v.verifier.Verify(ctx, rawToken)
	if err != nil {
		return nil, fmt.Errorf("failed to verify ID token: %w", err)
	}

	var claims struct {
		Email string   `json:"email"`
		Name  string   `json:"name"`
		Admin bool     `json:"admin"`
		Roles []string `json:"roles"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("failed to parse claims: %w", err)
	}

	admin := claims.Admin
	for _, role := range claims.Roles {
		if role == "admin" {
			admin = true
		}
	}

	return &Identity{UID: idToken.Subject, Email: claims.Email, Name: claims.Name, Admin: admin}, nil
}
