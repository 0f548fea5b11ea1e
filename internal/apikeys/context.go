package apikeys

import (
	"context"

	"webhook-gateway/internal/models"
)

type principalKey struct{}

// Principal is the identity a validated key grants
type Principal struct {
	KeyID       string   `json:"id"`
	Name        string   `json:"name"`
	UserID      string   `json:"userId"`
	Permissions []string `json:"permissions"`
}

// WithPrincipal attaches the identity of key to ctx
func WithPrincipal(ctx context.Context, key *models.APIKey) context.Context {
	return context.WithValue(ctx, principalKey{}, &Principal{
		KeyID:       key.ID,
		Name:        key.Name,
		UserID:      key.UserID,
		Permissions: key.Permissions,
	})
}

// PrincipalFromContext returns the key identity set by WithPrincipal
func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(*Principal)
	return p, ok
}

// HasPermission reports whether the principal was granted perm
func (p *Principal) HasPermission(perm string) bool {
	for _, granted := range p.Permissions {
		if granted == perm || granted == "*" {
			return true
		}
	}
	return false
}
