// Package storagetest holds behaviour checks shared by every storage backend.
package storagetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"webhook-gateway/internal/common/errors"
	"webhook-gateway/internal/models"
	"webhook-gateway/internal/storage"
)

// NewWebhook returns a valid endpoint configuration for tests
func NewWebhook(id, path string) *models.WebhookConfig {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return &models.WebhookConfig{
		ID:           id,
		Name:         "Orders " + id,
		EndpointPath: path,
		IsActive:     true,
		Authentication: models.Authentication{
			Method: models.AuthBearerToken,
			Token:  "T",
		},
		Security: models.Security{
			IPWhitelist: []string{"10.0.0.0/8"},
			RateLimit:   models.RateLimit{Requests: 100, Period: "minute"},
			SSLRequired: true,
		},
		WorkflowConfig: models.WorkflowConfig{WorkflowID: "wf-1", TriggerType: "webhook"},
		CreatedBy:      "user-1",
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// NewAPIKey returns an active key record for tests
func NewAPIKey(id, userID, hash string, createdAt time.Time) *models.APIKey {
	return &models.APIKey{
		ID:          id,
		KeyHash:     hash,
		KeyPrefix:   "wh_0123456789abc",
		Name:        "CI key",
		UserID:      userID,
		Permissions: []string{"webhook:read"},
		IsActive:    true,
		RateLimit:   models.RateLimit{Requests: 1000, Period: "hour"},
		WebhookIDs:  []string{},
		CreatedAt:   createdAt.UTC().Truncate(time.Millisecond),
	}
}

// Run exercises a backend. newStore must return an empty store.
func Run(t *testing.T, newStore func(t *testing.T) storage.Storage) {
	t.Run("webhook crud", func(t *testing.T) { testWebhookCRUD(t, newStore(t)) })
	t.Run("webhook path conflict", func(t *testing.T) { testWebhookConflict(t, newStore(t)) })
	t.Run("webhook counters", func(t *testing.T) { testWebhookCounters(t, newStore(t)) })
	t.Run("api keys", func(t *testing.T) { testAPIKeys(t, newStore(t)) })
	t.Run("api key revoke", func(t *testing.T) { testRevoke(t, newStore(t)) })
	t.Run("audit", func(t *testing.T) { testAudit(t, newStore(t)) })
	t.Run("executions", func(t *testing.T) { testExecutions(t, newStore(t)) })
}

func testWebhookCRUD(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	w := NewWebhook("wh1", "orders")

	require.NoError(t, s.CreateWebhook(ctx, w))

	got, err := s.GetWebhook(ctx, "wh1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "orders", got.EndpointPath)
	assert.Equal(t, "T", got.Authentication.Token)
	assert.Equal(t, []string{"10.0.0.0/8"}, got.Security.IPWhitelist)
	assert.Equal(t, 100, got.Security.RateLimit.Requests)
	assert.True(t, got.IsActive)

	byPath, err := s.GetWebhookByPath(ctx, "orders")
	require.NoError(t, err)
	require.NotNil(t, byPath)
	assert.Equal(t, "wh1", byPath.ID)

	missing, err := s.GetWebhook(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)

	got.Name = "Renamed"
	got.IsActive = false
	require.NoError(t, s.UpdateWebhook(ctx, got))

	updated, err := s.GetWebhook(ctx, "wh1")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Name)
	assert.False(t, updated.IsActive)

	list, err := s.ListWebhooks(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, s.DeleteWebhook(ctx, "wh1"))
	err = s.DeleteWebhook(ctx, "wh1")
	assert.True(t, errors.IsType(err, errors.ErrTypeNotFound))

	err = s.UpdateWebhook(ctx, w)
	assert.True(t, errors.IsType(err, errors.ErrTypeNotFound))
}

func testWebhookConflict(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	require.NoError(t, s.CreateWebhook(ctx, NewWebhook("wh1", "orders")))

	err := s.CreateWebhook(ctx, NewWebhook("wh2", "orders"))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeConflict))

	require.NoError(t, s.CreateWebhook(ctx, NewWebhook("wh2", "invoices")))
	other, err := s.GetWebhook(ctx, "wh2")
	require.NoError(t, err)
	other.EndpointPath = "orders"
	err = s.UpdateWebhook(ctx, other)
	assert.True(t, errors.IsType(err, errors.ErrTypeConflict))
}

func testWebhookCounters(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	require.NoError(t, s.CreateWebhook(ctx, NewWebhook("wh1", "orders")))

	at := time.Now().UTC().Truncate(time.Second)
	for i := 0; i < 3; i++ {
		require.NoError(t, s.IncrementRequestCount(ctx, "wh1", at))
	}
	require.NoError(t, s.IncrementErrorCount(ctx, "wh1"))

	got, err := s.GetWebhook(ctx, "wh1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), got.TotalRequests)
	assert.Equal(t, int64(1), got.ErrorCount)
	require.NotNil(t, got.LastTriggered)
	assert.True(t, got.LastTriggered.Equal(at))

	// updates never reset counters
	got.TotalRequests = 0
	got.ErrorCount = 0
	require.NoError(t, s.UpdateWebhook(ctx, got))
	after, err := s.GetWebhook(ctx, "wh1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), after.TotalRequests)
	assert.Equal(t, int64(1), after.ErrorCount)
}

func testAPIKeys(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)

	require.NoError(t, s.CreateAPIKey(ctx, NewAPIKey("key_1", "alice", "hash-1", base)))
	require.NoError(t, s.CreateAPIKey(ctx, NewAPIKey("key_2", "alice", "hash-2", base.Add(time.Minute))))
	require.NoError(t, s.CreateAPIKey(ctx, NewAPIKey("key_3", "bob", "hash-3", base)))

	got, err := s.GetAPIKeyByHash(ctx, "hash-2")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "key_2", got.ID)
	assert.Equal(t, []string{"webhook:read"}, got.Permissions)

	missing, err := s.GetAPIKeyByHash(ctx, "unknown")
	require.NoError(t, err)
	assert.Nil(t, missing)

	list, err := s.ListAPIKeysByUser(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "key_2", list[0].ID)
	assert.Equal(t, "key_1", list[1].ID)

	used := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, s.TouchAPIKey(ctx, "key_1", used))
	k, err := s.GetAPIKey(ctx, "key_1")
	require.NoError(t, err)
	require.NotNil(t, k.LastUsed)
	assert.True(t, k.LastUsed.Equal(used))
}

func testRevoke(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	require.NoError(t, s.CreateAPIKey(ctx, NewAPIKey("key_1", "alice", "hash-1", time.Now())))

	at := time.Now().UTC().Truncate(time.Second)
	changed, err := s.RevokeAPIKey(ctx, "key_1", at)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = s.RevokeAPIKey(ctx, "key_1", at.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, changed)

	k, err := s.GetAPIKey(ctx, "key_1")
	require.NoError(t, err)
	assert.False(t, k.IsActive)
	require.NotNil(t, k.RevokedAt)
	assert.True(t, k.RevokedAt.Equal(at))
}

func testAudit(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	old := time.Now().Add(-48 * time.Hour).UTC()
	recent := time.Now().UTC()

	entries := []*models.AuditLogEntry{
		{ID: "a1", WebhookID: "wh1", Timestamp: old, Status: models.AuditSuccess, IPAddress: "10.0.0.1", ResponseTime: 3},
		{ID: "a2", WebhookID: "wh1", Timestamp: recent, Status: models.AuditError, IPAddress: "10.0.0.2", Error: "Authentication failed", ResponseTime: 1},
		{ID: "a3", WebhookID: "wh2", Timestamp: recent, Status: models.AuditSuccess, IPAddress: "10.0.0.3"},
	}
	for _, e := range entries {
		require.NoError(t, s.AppendAudit(ctx, e))
	}

	list, err := s.ListAudit(ctx, "wh1", 10)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "a2", list[0].ID)
	assert.Equal(t, "Authentication failed", list[0].Error)

	limited, err := s.ListAudit(ctx, "wh1", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	removed, err := s.DeleteAuditBefore(ctx, time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	list, err = s.ListAudit(ctx, "wh1", 10)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func testExecutions(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	exec := &models.WorkflowExecution{
		ID:          "exec-1",
		WebhookID:   "wh1",
		WorkflowID:  "wf-1",
		Status:      models.ExecutionTriggered,
		TriggerType: "webhook",
		SourceIP:    "10.0.0.1",
		Payload:     []byte(`{"a":1}`),
		CreatedAt:   time.Now().UTC(),
	}
	require.NoError(t, s.CreateExecution(ctx, exec))

	list, err := s.ListExecutions(ctx, "wh1", 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "wf-1", list[0].WorkflowID)
	assert.JSONEq(t, `{"a":1}`, string(list[0].Payload))

	require.NoError(t, s.Health(ctx))
}
