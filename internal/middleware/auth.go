package middleware

import (
	"context"
	"net/http"
	"strings"

	"webhook-gateway/internal/apikeys"
	"webhook-gateway/internal/common/errors"
	"webhook-gateway/internal/common/logging"
	"webhook-gateway/internal/identity"
	"webhook-gateway/internal/metrics"
	"webhook-gateway/internal/models"
)

// Policy is the authentication a route requires
type Policy int

const (
	PolicyPublic Policy = iota
	PolicyIdentity
	PolicyAdmin
	PolicyAPIKey
)

func (p Policy) String() string {
	switch p {
	case PolicyPublic:
		return "public"
	case PolicyIdentity:
		return "identity"
	case PolicyAdmin:
		return "admin"
	case PolicyAPIKey:
		return "api_key"
	default:
		return "unknown"
	}
}

// ErrAdminRequired is returned to an authenticated caller without the admin role
const ErrAdminRequired = "Admin access required"

// Matcher reports whether a request path belongs to a route
type Matcher func(path string) bool

func Prefix(prefix string) Matcher {
	return func(path string) bool { return strings.HasPrefix(path, prefix) }
}

func Exact(p string) Matcher {
	return func(path string) bool { return path == p }
}

// Route binds a matcher to a policy
type Route struct {
	Name   string
	Match  Matcher
	Policy Policy
}

// DefaultRoutes is the gateway's route table. Order matters: the first
// match wins.
func DefaultRoutes(deliveryRequiresAPIKey bool) []Route {
	delivery := PolicyPublic
	if deliveryRequiresAPIKey {
		delivery = PolicyAPIKey
	}
	return []Route{
		{Name: "health", Match: Prefix("/health"), Policy: PolicyPublic},
		{Name: "metrics", Match: Prefix("/metrics"), Policy: PolicyPublic},
		{Name: "swagger", Match: Prefix("/swagger/"), Policy: PolicyPublic},
		{Name: "webhook-management", Match: Prefix("/api/webhooks"), Policy: PolicyAdmin},
		{Name: "api-keys", Match: Prefix("/api/keys"), Policy: PolicyIdentity},
		{Name: "delivery", Match: Prefix("/webhooks/"), Policy: delivery},
		{Name: "root", Match: Exact("/"), Policy: PolicyPublic},
	}
}

// APIKeyValidator checks the API key presented with a request
type APIKeyValidator interface {
	Validate(ctx context.Context, r *http.Request) (*models.APIKey, error)
}

// Auth selects the policy for each request from an ordered route table.
// Paths no route claims require an identity.
type Auth struct {
	routes   []Route
	verifier identity.Verifier
	keys     APIKeyValidator
	logger   logging.Logger
	metrics  *metrics.Collector
}

func NewAuth(routes []Route, verifier identity.Verifier, keys APIKeyValidator, logger logging.Logger) *Auth {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &Auth{
		routes:   routes,
		verifier: verifier,
		keys:     keys,
		logger:   logger.WithFields(logging.String("component", "auth_middleware")),
	}
}

// WithMetrics records API key decisions on collector
func (a *Auth) WithMetrics(collector *metrics.Collector) *Auth {
	a.metrics = collector
	return a
}

// PolicyFor returns the policy of the first route matching path
func (a *Auth) PolicyFor(path string) Policy {
	for _, route := range a.routes {
		if route.Match(path) {
			return route.Policy
		}
	}
	return PolicyIdentity
}

func (a *Auth) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch policy := a.PolicyFor(r.URL.Path); policy {
		case PolicyPublic:
			next.ServeHTTP(w, r)

		case PolicyIdentity, PolicyAdmin:
			id, err := a.authenticateIdentity(r)
			if err != nil {
				a.reject(w, r, policy, err)
				return
			}
			if policy == PolicyAdmin && !id.Admin {
				a.logger.WithContext(r.Context()).Warn("Admin route denied",
					logging.String("uid", id.UID), logging.String("path", r.URL.Path))
				writeJSON(w, http.StatusForbidden, map[string]string{
					"error":    ErrAdminRequired,
					"code":     errors.CodeForbidden,
					"required": "admin_role",
				})
				return
			}
			ctx := identity.WithIdentity(r.Context(), id)
			ctx = logging.ContextWithSubject(ctx, id.UID)
			next.ServeHTTP(w, r.WithContext(ctx))

		case PolicyAPIKey:
			if a.keys == nil {
				a.reject(w, r, policy, errors.InternalError("api key validation is not configured", nil))
				return
			}
			key, err := a.keys.Validate(r.Context(), r)
			if err != nil {
				a.metrics.APIKeyDecision(errors.HTTPStatus(err))
				a.reject(w, r, policy, err)
				return
			}
			a.metrics.APIKeyDecision(http.StatusOK)
			ctx := apikeys.WithPrincipal(r.Context(), key)
			ctx = logging.ContextWithSubject(ctx, key.ID)
			next.ServeHTTP(w, r.WithContext(ctx))
		}
	})
}

func (a *Auth) authenticateIdentity(r *http.Request) (*identity.Identity, error) {
	if a.verifier == nil {
		return nil, errors.InternalError("identity verification is not configured", nil)
	}
	return identity.Authenticate(r.Context(), a.verifier, r)
}

func (a *Auth) reject(w http.ResponseWriter, r *http.Request, policy Policy, err error) {
	log := a.logger.WithContext(r.Context())
	fields := []logging.Field{
		logging.String("path", r.URL.Path),
		logging.String("policy", policy.String()),
	}
	if errors.HTTPStatus(err) >= http.StatusInternalServerError {
		log.Error("Request authentication failed", err, fields...)
	} else {
		log.Debug("Request rejected", append(fields, logging.Err(err))...)
	}
	writeError(w, err)
}
