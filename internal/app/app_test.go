package app

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	redisbroker "webhook-gateway/internal/brokers/redis"
	"webhook-gateway/internal/config"
	"webhook-gateway/internal/identity"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func testConfig() *config.Config {
	return &config.Config{
		Port:                "8080",
		PublicBaseURL:       "https://hooks.example.com",
		MaxBodyBytes:        1 << 20,
		DatabaseType:        "memory",
		RateLimitBackend:    "local",
		IdentityProvider:    "jwt",
		JWTSecret:           testSecret,
		CIDRMode:            "subnet",
		TriggerMode:         "storage",
		DispatchWorkers:     1,
		DispatchQueueSize:   10,
		DispatchMaxAttempts: 1,
		DispatchTimeout:     time.Second,
		AuditRetentionDays:  30,
		AuditPruneSchedule:  "0 3 * * *",
	}
}

func newTestApp(t *testing.T, cfg *config.Config) *App {
	t.Helper()
	require.NoError(t, cfg.Validate())

	a, err := New(context.Background(), cfg)
	require.NoError(t, err)
	require.NoError(t, a.Start(context.Background()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = a.Shutdown(ctx)
		a.Cleanup()
	})
	return a
}

func token(t *testing.T, uid string, admin bool) string {
	t.Helper()
	tok, err := identity.NewJWTVerifier(testSecret, "").Issue(identity.Identity{UID: uid, Admin: admin}, time.Hour)
	require.NoError(t, err)
	return tok
}

func do(a *App, method, path, bearer, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.RemoteAddr = "192.0.2.10:4321"
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, req)
	return rec
}

func TestApp_PublicRoutes(t *testing.T) {
	a := newTestApp(t, testConfig())

	rec := do(a, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"service":"webhook-gateway"`)

	rec = do(a, http.MethodGet, "/", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(a, http.MethodGet, "/metrics", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "webhook_gateway_")
}

func TestApp_ManagementRequiresAdmin(t *testing.T) {
	a := newTestApp(t, testConfig())

	rec := do(a, http.MethodGet, "/api/webhooks", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(a, http.MethodGet, "/api/webhooks", token(t, "user-1", false), "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), `"required":"admin_role"`)

	rec = do(a, http.MethodGet, "/api/webhooks", token(t, "admin-1", true), "")
	assert.Equal(t, http.StatusOK, rec.Code)

	// API keys only need an identity
	rec = do(a, http.MethodGet, "/api/keys", token(t, "user-1", false), "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestApp_UnmatchedPathRequiresIdentity(t *testing.T) {
	a := newTestApp(t, testConfig())

	rec := do(a, http.MethodGet, "/unknown", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(a, http.MethodGet, "/unknown", token(t, "user-1", false), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestApp_DeliveryStartsWorkflow(t *testing.T) {
	a := newTestApp(t, testConfig())
	admin := token(t, "admin-1", true)

	rec := do(a, http.MethodPost, "/api/webhooks", admin, `{
		"name": "Orders",
		"endpointPath": "/orders",
		"authentication": {"method": "bearer_token", "token": "T"},
		"workflowConfig": {"workflowId": "wf-1"}
	}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created struct {
		ID      string `json:"id"`
		FullURL string `json:"fullUrl"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "https://hooks.example.com/webhooks/"+created.ID+"/orders", created.FullURL)

	rec = do(a, http.MethodPost, "/webhooks/"+created.ID+"/orders", "wrong", `{"order":1}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(a, http.MethodPost, "/webhooks/"+created.ID+"/orders", "T", `{"order":1}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"webhookId":"`+created.ID+`"`)

	require.Eventually(t, func() bool {
		executions, err := a.Storage.ListExecutions(context.Background(), created.ID, 10)
		return err == nil && len(executions) == 1
	}, 2*time.Second, 10*time.Millisecond)

	rec = do(a, http.MethodGet, "/api/webhooks/"+created.ID+"/logs", admin, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var logs []map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &logs))
	require.Len(t, logs, 2)
	assert.Equal(t, "success", logs[0]["status"])
	assert.Equal(t, "error", logs[1]["status"])

	rec = do(a, http.MethodPost, "/webhooks/"+created.ID, "T", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), `"expected"`)
}

func TestApp_DeliveryToSlashTerminatedPath(t *testing.T) {
	a := newTestApp(t, testConfig())

	rec := do(a, http.MethodPost, "/api/webhooks", token(t, "admin-1", true), `{"name": "Orders", "endpointPath": "/orders/"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created struct {
		ID      string `json:"id"`
		FullURL string `json:"fullUrl"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.Equal(t, "https://hooks.example.com/webhooks/"+created.ID+"/orders", created.FullURL)

	rec = do(a, http.MethodPost, strings.TrimPrefix(created.FullURL, "https://hooks.example.com"), "", `{}`)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(a, http.MethodPost, "/webhooks/"+created.ID+"/orders/", "", `{}`)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// the whole remainder is the endpoint path, so extra segments do not match
	rec = do(a, http.MethodPost, "/webhooks/"+created.ID+"/orders/extra", "", `{}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "Webhook not found")
}

func TestApp_DeliveryIsPublicByDefault(t *testing.T) {
	a := newTestApp(t, testConfig())

	// no credentials reach the delivery handler, which reports the unknown id
	rec := do(a, http.MethodPost, "/webhooks/wh_missing/orders", "", `{}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "Webhook not found")
}

func TestApp_DeliveryRequiresAPIKeyWhenConfigured(t *testing.T) {
	cfg := testConfig()
	cfg.DeliveryRequireAPIKey = true
	a := newTestApp(t, cfg)

	rec := do(a, http.MethodPost, "/webhooks/wh_missing/orders", "", `{}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(a, http.MethodPost, "/api/keys", token(t, "user-1", false), `{"name":"ci"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created struct {
		APIKey string `json:"apiKey"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	req := httptest.NewRequest(http.MethodPost, "/webhooks/wh_missing/orders", strings.NewReader(`{}`))
	req.Header.Set("X-API-Key", created.APIKey)
	w := httptest.NewRecorder()
	a.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestApp_SwaggerServed(t *testing.T) {
	a := newTestApp(t, testConfig())

	rec := do(a, http.MethodGet, "/swagger/doc.json", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body, _ := io.ReadAll(rec.Body)
	assert.Contains(t, string(body), "/webhooks/{webhookId}/{endpointPath}")
}

func TestApp_RedisBrokerSharesClient(t *testing.T) {
	mr := miniredis.RunT(t)

	cfg := testConfig()
	cfg.RedisAddress = mr.Addr()
	cfg.RedisPoolSize = 2
	cfg.RateLimitBackend = "redis"
	cfg.TriggerMode = "broker"
	cfg.Broker.Type = "redis"
	cfg.Broker.RedisStream = "events"
	a := newTestApp(t, cfg)

	require.NotNil(t, a.RedisClient)
	publisher, ok := a.Publisher.(*redisbroker.Publisher)
	require.True(t, ok)
	require.NoError(t, publisher.Health(context.Background()))

	rec := do(a, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"broker":"healthy"`)
	assert.Contains(t, rec.Body.String(), `"redis":"healthy"`)
}

func TestBrokerConfig(t *testing.T) {
	cfg := testConfig()
	for _, brokerType := range []string{"redis", "rabbitmq", "sqs", "sns", "gcp", "kafka"} {
		cfg.Broker.Type = brokerType
		bc, err := BrokerConfig(cfg)
		require.NoError(t, err, brokerType)
		assert.Equal(t, brokerType, bc.GetType())
		assert.True(t, NewBrokerRegistry().IsRegistered(brokerType), brokerType)
	}

	cfg.Broker.Type = "nats"
	_, err := BrokerConfig(cfg)
	assert.Error(t, err)
}
