package app

import (
	"context"
	"fmt"

	"webhook-gateway/internal/common/logging"
	"webhook-gateway/internal/identity"
)

func (app *App) initializeIdentity(ctx context.Context) error {
	switch app.Config.IdentityProvider {
	case "oidc":
		verifier, err := identity.NewOIDCVerifier(ctx, app.Config.OIDCIssuerURL, app.Config.OIDCClientID)
		if err != nil {
			return fmt.Errorf("failed to initialize OIDC verifier: %w", err)
		}
		app.Verifier = verifier
		app.Logger.Info("Identity: OIDC", logging.String("issuer", app.Config.OIDCIssuerURL))
	default:
		app.Verifier = identity.NewJWTVerifier(app.Config.JWTSecret, app.Config.JWTIssuer)
		app.Logger.Info("Identity: HS256 JWT", logging.String("issuer", app.Config.JWTIssuer))
	}
	return nil
}
