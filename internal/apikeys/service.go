// Package apikeys issues, validates and revokes long-lived API keys.
//
// A key is "wh_" followed by 64 hex characters. Only its SHA-256 hash is
// stored; the plaintext is returned once by Create and never again.
package apikeys

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"
	"sync"
	"time"

	"webhook-gateway/internal/common/errors"
	"webhook-gateway/internal/common/logging"
	"webhook-gateway/internal/common/utils"
	"webhook-gateway/internal/models"
	"webhook-gateway/internal/ratelimit"
	"webhook-gateway/internal/storage"
)

const (
	KeyPrefix        = "wh"
	keyBytes         = 32
	displayPrefixLen = 16

	DefaultName       = "Unnamed Key"
	DefaultPermission = "webhook:read"
	DefaultRequests   = 1000
	DefaultPeriod     = "hour"

	touchTimeout = 5 * time.Second
)

// Validation failures, as returned to clients
const (
	ErrKeyRequired     = "API key required"
	ErrKeyInvalid      = "Invalid or inactive API key"
	ErrRateLimited     = "Rate limit exceeded"
	ErrNoWebhookAccess = "API key does not have access to this webhook"
	ErrValidation      = "API key validation failed"
	ErrKeyNotFound     = "API key not found"
	ErrNotKeyOwner     = "Not authorized to revoke this API key"
)

// CreateRequest holds the optional settings of a new key
type CreateRequest struct {
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Permissions []string         `json:"permissions"`
	RateLimit   models.RateLimit `json:"rateLimit"`
	WebhookIDs  []string         `json:"webhookIds"`
}

// Created is returned once per key. APIKey is the only copy of the plaintext.
type Created struct {
	APIKey string         `json:"apiKey"`
	Key    *models.APIKey `json:"key"`
}

// Service manages API keys on top of a key store and a rate limiter
type Service struct {
	store   storage.APIKeyStore
	limiter ratelimit.Limiter
	logger  logging.Logger
	now     func() time.Time

	touches sync.WaitGroup
}

func NewService(store storage.APIKeyStore, limiter ratelimit.Limiter, logger logging.Logger) *Service {
	if limiter == nil {
		limiter = ratelimit.Noop{}
	}
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &Service{
		store:   store,
		limiter: limiter,
		logger:  logger.WithFields(logging.String("component", "apikeys")),
		now:     time.Now,
	}
}

// Create issues a key for userID
func (s *Service) Create(ctx context.Context, userID string, req CreateRequest) (*Created, error) {
	if userID == "" {
		return nil, errors.ValidationError("user id is required")
	}

	secret, err := utils.GenerateRandomHex(keyBytes)
	if err != nil {
		return nil, errors.InternalError("failed to generate api key", err)
	}
	plaintext := KeyPrefix + "_" + secret

	id, err := utils.NewAPIKeyID()
	if err != nil {
		return nil, errors.InternalError("failed to generate api key id", err)
	}

	key := &models.APIKey{
		ID:          id,
		KeyHash:     HashKey(plaintext),
		KeyPrefix:   plaintext[:displayPrefixLen],
		Name:        req.Name,
		Description: req.Description,
		UserID:      userID,
		Permissions: req.Permissions,
		IsActive:    true,
		RateLimit:   req.RateLimit,
		WebhookIDs:  req.WebhookIDs,
		CreatedAt:   s.now().UTC(),
	}
	if key.Name == "" {
		key.Name = DefaultName
	}
	if key.Permissions == nil {
		key.Permissions = []string{DefaultPermission}
	}
	if key.WebhookIDs == nil {
		key.WebhookIDs = []string{}
	}
	if key.RateLimit.Requests <= 0 {
		key.RateLimit.Requests = DefaultRequests
	}
	if key.RateLimit.Period == "" {
		key.RateLimit.Period = DefaultPeriod
	}
	if _, err := utils.ParsePeriod(key.RateLimit.Period); err != nil {
		return nil, errors.ValidationError(err.Error())
	}

	if err := s.store.CreateAPIKey(ctx, key); err != nil {
		return nil, err
	}

	s.logger.Info("API key created",
		logging.String("key_id", key.ID),
		logging.String("user_id", userID),
		logging.Int("scoped_webhooks", len(key.WebhookIDs)))

	return &Created{APIKey: plaintext, Key: key}, nil
}

// Validate authenticates r by API key. The key is read from X-API-Key, or
// from a Bearer Authorization header. When the path names a webhook
// (/webhooks/{id}/...) a scoped key must include it.
func (s *Service) Validate(ctx context.Context, r *http.Request) (*models.APIKey, error) {
	candidate := ExtractKey(r)
	if candidate == "" {
		return nil, errors.AuthError(ErrKeyRequired)
	}

	key, err := s.store.GetAPIKeyByHash(ctx, HashKey(candidate))
	if err != nil {
		s.logger.Error("API key lookup failed", err)
		return nil, validationFailure(err)
	}
	if key == nil || !key.IsActive {
		return nil, errors.ForbiddenError(ErrKeyInvalid)
	}

	if allowed := s.checkRateLimit(ctx, key); !allowed {
		return nil, errors.RateLimitError(ErrRateLimited)
	}

	if webhookID := WebhookIDFromPath(r.URL.Path); webhookID != "" && !key.AllowsWebhook(webhookID) {
		return nil, errors.ForbiddenError(ErrNoWebhookAccess)
	}

	s.touch(key.ID)
	return key, nil
}

func (s *Service) checkRateLimit(ctx context.Context, key *models.APIKey) bool {
	window, err := utils.ParsePeriod(key.RateLimit.Period)
	if err != nil {
		window = time.Hour
	}

	decision, err := s.limiter.Allow(ctx, "apikey:"+key.ID, key.RateLimit.Requests, window)
	if err != nil {
		s.logger.Error("API key rate limit check failed, allowing request", err,
			logging.String("key_id", key.ID))
		return true
	}
	return decision.Allowed
}

// touch records the use of a key without holding up the request
func (s *Service) touch(keyID string) {
	at := s.now().UTC()
	s.touches.Add(1)
	go func() {
		defer s.touches.Done()
		ctx, cancel := context.WithTimeout(context.Background(), touchTimeout)
		defer cancel()
		if err := s.store.TouchAPIKey(ctx, keyID, at); err != nil {
			s.logger.Warn("Failed to update API key last used",
				logging.String("key_id", keyID), logging.Err(err))
		}
	}()
}

// Wait blocks until pending last-used updates have finished
func (s *Service) Wait() {
	s.touches.Wait()
}

// Revoke deactivates keyID on behalf of requesterID, who must own it.
// Revocation is permanent; revoking a revoked key changes nothing.
func (s *Service) Revoke(ctx context.Context, keyID, requesterID string) error {
	key, err := s.store.GetAPIKey(ctx, keyID)
	if err != nil {
		return err
	}
	if key == nil {
		return errors.NotFoundError(ErrKeyNotFound)
	}
	if key.UserID != requesterID {
		return errors.ForbiddenError(ErrNotKeyOwner)
	}

	changed, err := s.store.RevokeAPIKey(ctx, keyID, s.now().UTC())
	if err != nil {
		return err
	}
	if changed {
		s.logger.Info("API key revoked", logging.String("key_id", keyID), logging.String("user_id", requesterID))
	}
	return nil
}

// ListForUser returns userID's keys, newest first. Hashes never leave the
// process: models.APIKey does not serialize KeyHash.
func (s *Service) ListForUser(ctx context.Context, userID string) ([]*models.APIKey, error) {
	keys, err := s.store.ListAPIKeysByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, k := range keys {
		k.KeyHash = ""
	}
	return keys, nil
}

// HashKey returns the hex SHA-256 of a plaintext key
func HashKey(plaintext string) string {
	sum := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(sum[:])
}

// ExtractKey reads a candidate key from X-API-Key or a Bearer Authorization header
func ExtractKey(r *http.Request) string {
	if key := strings.TrimSpace(r.Header.Get("X-API-Key")); key != "" {
		return key
	}
	if authHeader := r.Header.Get("Authorization"); strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	}
	return ""
}

// WebhookIDFromPath returns {id} for paths of the form /webhooks/{id}/{path...}
func WebhookIDFromPath(path string) string {
	parts := strings.FieldsFunc(path, func(r rune) bool { return r == '/' })
	if len(parts) >= 3 && parts[0] == "webhooks" {
		return parts[1]
	}
	return ""
}

func validationFailure(cause error) error {
	e := errors.AuthError(ErrValidation).WithCode(errors.CodeAuthError).WithStatus(http.StatusInternalServerError)
	e.Cause = cause
	return e
}
