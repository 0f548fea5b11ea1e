package app

import (
	"net/http"

	"github.com/gorilla/mux"
	httpSwagger "github.com/swaggo/http-swagger"

	"webhook-gateway/internal/common/errors"
	_ "webhook-gateway/internal/docs"
	"webhook-gateway/internal/handlers"
	"webhook-gateway/internal/middleware"
)

var deliveryMethods = []string{
	http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodGet,
}

func (app *App) healthChecks() map[string]handlers.HealthCheck {
	checks := map[string]handlers.HealthCheck{
		"storage": app.Storage.Health,
	}
	if app.RedisClient != nil {
		checks["redis"] = app.RedisClient.Health
	}
	if app.Publisher != nil {
		checks["broker"] = app.Publisher.Health
	}
	return checks
}

// routes builds the router. Authentication wraps the router rather than
// being registered with Use so paths no route matches are still gated.
func (app *App) routes() http.Handler {
	h := handlers.New(app.Webhooks, app.APIKeys, app.healthChecks(), app.Logger)
	delivery := handlers.NewWebhookHandler(handlers.WebhookHandlerConfig{
		Webhooks:     app.Storage,
		Audit:        app.Storage,
		Security:     app.Security,
		Dispatcher:   app.Dispatcher,
		Metrics:      app.Metrics,
		Logger:       app.Logger,
		MaxBodyBytes: app.Config.MaxBodyBytes,
	})

	router := mux.NewRouter()
	router.Use(middleware.Metrics(app.Metrics))
	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeNotFound(w)
	})

	// Health check (no auth required)
	router.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet)
	router.HandleFunc("/", h.HealthCheck).Methods(http.MethodGet)
	router.Handle("/metrics", app.Metrics.Handler()).Methods(http.MethodGet)

	// Swagger UI (no auth required)
	router.PathPrefix("/swagger/").Handler(httpSwagger.WrapHandler)

	// Webhook management (admin identity)
	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/webhooks", h.ListWebhooks).Methods(http.MethodGet)
	api.HandleFunc("/webhooks", h.CreateWebhook).Methods(http.MethodPost)
	api.HandleFunc("/webhooks/{id}", h.GetWebhook).Methods(http.MethodGet)
	api.HandleFunc("/webhooks/{id}", h.UpdateWebhook).Methods(http.MethodPut)
	api.HandleFunc("/webhooks/{id}", h.DeleteWebhook).Methods(http.MethodDelete)
	api.HandleFunc("/webhooks/{id}/logs", h.WebhookLogs).Methods(http.MethodGet)

	// API keys (any identity)
	api.HandleFunc("/keys", h.ListAPIKeys).Methods(http.MethodGet)
	api.HandleFunc("/keys", h.CreateAPIKey).Methods(http.MethodPost)
	api.HandleFunc("/keys/{id}", h.RevokeAPIKey).Methods(http.MethodDelete)

	// Deliveries. Malformed delivery URLs fall through to the prefix route
	// so the handler can describe the expected format.
	router.HandleFunc("/webhooks/{webhookId}/{endpointPath:.+}", delivery.HandleDelivery).Methods(deliveryMethods...)
	router.PathPrefix("/webhooks/").HandlerFunc(delivery.HandleDelivery).Methods(deliveryMethods...)

	auth := middleware.NewAuth(
		middleware.DefaultRoutes(app.Config.DeliveryRequireAPIKey),
		app.Verifier,
		app.APIKeys,
		app.Logger,
	).WithMetrics(app.Metrics)

	var handler http.Handler = router
	handler = auth.Handler(handler)
	handler = middleware.CORS(handler)
	handler = middleware.Logging(app.Logger)(handler)
	return handler
}

func writeNotFound(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusNotFound)
	_, _ = w.Write([]byte(`{"error":"Not found","code":"` + errors.CodeNotFound + `"}`))
}
