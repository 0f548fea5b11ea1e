package webhooks

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"webhook-gateway/internal/common/errors"
	"webhook-gateway/internal/common/logging"
	"webhook-gateway/internal/models"
	"webhook-gateway/internal/storage/memory"
)

func newManager(t *testing.T) (*Manager, *memory.Store) {
	t.Helper()
	store := memory.New()
	return NewManager(store, store, nil, "https://hooks.example.com/", logging.NewNopLogger()), store
}

func boolPtr(b bool) *bool    { return &b }
func strPtr(s string) *string { return &s }

func TestCreate_Defaults(t *testing.T) {
	m, _ := newManager(t)

	w, err := m.Create(context.Background(), CreateRequest{Name: "Orders", EndpointPath: "/orders"}, "admin-1")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(w.ID, "wh_"))
	assert.Equal(t, "orders", w.EndpointPath)
	assert.True(t, w.IsActive)
	assert.Equal(t, models.AuthNone, w.Authentication.Method)
	assert.Equal(t, "x-signature", w.Authentication.SignatureHeader)
	assert.Equal(t, models.RateLimit{Requests: 100, Period: "minute"}, w.Security.RateLimit)
	assert.True(t, w.Security.SSLRequired)
	assert.Empty(t, w.Security.IPWhitelist)
	assert.Zero(t, w.TotalRequests)
	assert.Equal(t, "admin-1", w.CreatedBy)
	assert.Equal(t, "https://hooks.example.com/webhooks/"+w.ID+"/orders", w.FullURL)
}

func TestCreate_Validation(t *testing.T) {
	m, _ := newManager(t)
	ctx := context.Background()

	_, err := m.Create(ctx, CreateRequest{Name: "Orders"}, "u")
	assert.Equal(t, http.StatusBadRequest, errors.HTTPStatus(err))
	assert.Equal(t, "Name and endpointPath are required", errors.PublicMessage(err))

	_, err = m.Create(ctx, CreateRequest{Name: "x", EndpointPath: "x", Authentication: &models.Authentication{Method: "oauth"}}, "u")
	assert.Equal(t, http.StatusBadRequest, errors.HTTPStatus(err))

	_, err = m.Create(ctx, CreateRequest{Name: "x", EndpointPath: "x", Authentication: &models.Authentication{Method: models.AuthHMAC}}, "u")
	assert.Equal(t, http.StatusBadRequest, errors.HTTPStatus(err))

	_, err = m.Create(ctx, CreateRequest{Name: "x", EndpointPath: "x", Security: &SecurityInput{RateLimit: &models.RateLimit{Requests: 5, Period: "fortnight"}}}, "u")
	assert.Equal(t, http.StatusBadRequest, errors.HTTPStatus(err))

	_, err = m.Create(ctx, CreateRequest{Name: "x", EndpointPath: "x", Security: &SecurityInput{IPWhitelist: []string{"10.0.0.0/8", "not-an-ip"}}}, "u")
	assert.Equal(t, http.StatusBadRequest, errors.HTTPStatus(err))
	assert.Contains(t, errors.PublicMessage(err), "not-an-ip")

	w, err := m.Create(ctx, CreateRequest{Name: "x", EndpointPath: "x", Security: &SecurityInput{IPWhitelist: []string{"10.0.0.0/8", "192.0.2.7", "2001:db8::/32"}}}, "u")
	require.NoError(t, err)
	assert.Len(t, w.Security.IPWhitelist, 3)
}

func TestCreate_PathSlashes(t *testing.T) {
	m, _ := newManager(t)
	ctx := context.Background()

	w, err := m.Create(ctx, CreateRequest{Name: "a", EndpointPath: " /orders/ "}, "u")
	require.NoError(t, err)
	assert.Equal(t, "orders", w.EndpointPath)
	assert.Equal(t, "https://hooks.example.com/webhooks/"+w.ID+"/orders", w.FullURL)

	w, err = m.Create(ctx, CreateRequest{Name: "b", EndpointPath: "shop/orders//"}, "u")
	require.NoError(t, err)
	assert.Equal(t, "shop/orders", w.EndpointPath)

	_, err = m.Create(ctx, CreateRequest{Name: "c", EndpointPath: "shop//refunds"}, "u")
	assert.Equal(t, http.StatusBadRequest, errors.HTTPStatus(err))
	assert.Equal(t, "endpointPath must not contain empty segments", errors.PublicMessage(err))

	_, err = m.Create(ctx, CreateRequest{Name: "d", EndpointPath: "/"}, "u")
	assert.Equal(t, "Name and endpointPath are required", errors.PublicMessage(err))

	_, err = m.Update(ctx, w.ID, UpdateRequest{EndpointPath: strPtr("a//b")})
	assert.Equal(t, http.StatusBadRequest, errors.HTTPStatus(err))
}

func TestCreate_PathConflict(t *testing.T) {
	m, _ := newManager(t)
	ctx := context.Background()

	_, err := m.Create(ctx, CreateRequest{Name: "a", EndpointPath: "orders"}, "u")
	require.NoError(t, err)

	_, err = m.Create(ctx, CreateRequest{Name: "b", EndpointPath: "/orders"}, "u")
	assert.Equal(t, http.StatusConflict, errors.HTTPStatus(err))
	assert.Equal(t, `Endpoint path "orders" already exists`, errors.PublicMessage(err))
}

func TestSecretsAreMasked(t *testing.T) {
	m, store := newManager(t)
	ctx := context.Background()

	w, err := m.Create(ctx, CreateRequest{
		Name:           "Signed",
		EndpointPath:   "signed",
		Authentication: &models.Authentication{Method: models.AuthHMAC, Secret: "s3cret"},
	}, "u")
	require.NoError(t, err)
	assert.Equal(t, "***", w.Authentication.Secret)

	stored, err := store.GetWebhook(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, "s3cret", stored.Authentication.Secret)

	list, err := m.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "***", list[0].Authentication.Secret)
}

func TestUpdate(t *testing.T) {
	m, store := newManager(t)
	ctx := context.Background()

	w, err := m.Create(ctx, CreateRequest{
		Name:           "Signed",
		EndpointPath:   "signed",
		Authentication: &models.Authentication{Method: models.AuthHMAC, Secret: "s3cret"},
	}, "u")
	require.NoError(t, err)
	require.NoError(t, store.IncrementRequestCount(ctx, w.ID, time.Now()))

	m.now = func() time.Time { return w.UpdatedAt.Add(time.Minute) }
	updated, err := m.Update(ctx, w.ID, UpdateRequest{
		Name:           strPtr("Renamed"),
		IsActive:       boolPtr(false),
		Authentication: &models.Authentication{Method: models.AuthHMAC, Secret: "***", SignatureHeader: "x-hub-signature-256"},
	})
	require.NoError(t, err)

	assert.Equal(t, "Renamed", updated.Name)
	assert.False(t, updated.IsActive)
	assert.Equal(t, int64(1), updated.TotalRequests)
	assert.True(t, updated.UpdatedAt.After(w.UpdatedAt))

	stored, err := store.GetWebhook(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, "s3cret", stored.Authentication.Secret)
	assert.Equal(t, "x-hub-signature-256", stored.Authentication.SignatureHeader)
}

func TestUpdate_PathConflictAndMissing(t *testing.T) {
	m, _ := newManager(t)
	ctx := context.Background()

	_, err := m.Create(ctx, CreateRequest{Name: "a", EndpointPath: "a"}, "u")
	require.NoError(t, err)
	b, err := m.Create(ctx, CreateRequest{Name: "b", EndpointPath: "b"}, "u")
	require.NoError(t, err)

	_, err = m.Update(ctx, b.ID, UpdateRequest{EndpointPath: strPtr("/a")})
	assert.Equal(t, http.StatusConflict, errors.HTTPStatus(err))

	_, err = m.Update(ctx, "wh_missing", UpdateRequest{Name: strPtr("x")})
	assert.Equal(t, http.StatusNotFound, errors.HTTPStatus(err))

	_, err = m.Update(ctx, b.ID, UpdateRequest{Name: strPtr("  ")})
	assert.Equal(t, http.StatusBadRequest, errors.HTTPStatus(err))
}

func TestDeleteAndGet(t *testing.T) {
	m, _ := newManager(t)
	ctx := context.Background()

	w, err := m.Create(ctx, CreateRequest{Name: "a", EndpointPath: "a"}, "u")
	require.NoError(t, err)

	got, err := m.Get(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, w.ID, got.ID)

	require.NoError(t, m.Delete(ctx, w.ID))

	_, err = m.Get(ctx, w.ID)
	assert.Equal(t, http.StatusNotFound, errors.HTTPStatus(err))
	assert.Equal(t, http.StatusNotFound, errors.HTTPStatus(m.Delete(ctx, w.ID)))
}

func TestAuditLogs(t *testing.T) {
	m, store := newManager(t)
	ctx := context.Background()

	w, err := m.Create(ctx, CreateRequest{Name: "a", EndpointPath: "a"}, "u")
	require.NoError(t, err)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		require.NoError(t, store.AppendAudit(ctx, &models.AuditLogEntry{
			ID:        "a" + string(rune('0'+i)),
			WebhookID: w.ID,
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			Status:    models.AuditSuccess,
		}))
	}

	entries, err := m.AuditLogs(ctx, w.ID, 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "a2", entries[0].ID)
	assert.Equal(t, "a1", entries[1].ID)

	_, err = m.AuditLogs(ctx, "wh_missing", 0)
	assert.Equal(t, http.StatusNotFound, errors.HTTPStatus(err))
}
