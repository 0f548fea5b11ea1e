package app

import (
	"fmt"

	"webhook-gateway/internal/common/logging"
	"webhook-gateway/internal/storage"
	"webhook-gateway/internal/storage/memory"
	"webhook-gateway/internal/storage/postgres"
	"webhook-gateway/internal/storage/sqlite"
)

func (app *App) initializeStorage() error {
	cipher, err := storage.NewSecretCipher(app.Config.EncryptionKey)
	if err != nil {
		return fmt.Errorf("failed to initialize secret encryption: %w", err)
	}
	if !cipher.Enabled() {
		app.Logger.Warn("CONFIG_ENCRYPTION_KEY not set, endpoint secrets are stored in plaintext")
	}

	registry := storage.NewRegistry()
	registry.Register(&sqlite.Factory{})
	registry.Register(&postgres.Factory{})
	registry.Register(&memory.Factory{})

	var storageConfig storage.Config
	switch app.Config.DatabaseType {
	case "postgres", "postgresql":
		app.Logger.Info("Database: PostgreSQL",
			logging.String("host", app.Config.PostgresHost),
			logging.String("port", app.Config.PostgresPort),
			logging.String("database", app.Config.PostgresDB),
		)
		storageConfig = &postgres.Config{
			Host:     app.Config.PostgresHost,
			Port:     app.Config.PostgresPort,
			Database: app.Config.PostgresDB,
			Username: app.Config.PostgresUser,
			Password: app.Config.PostgresPassword,
			SSLMode:  app.Config.PostgresSSLMode,
			Cipher:   cipher,
		}
	case "memory":
		app.Logger.Warn("Database: in-memory, all data is lost on restart")
		storageConfig = memory.Config{}
	default:
		app.Logger.Info("Database: SQLite", logging.String("path", app.Config.DatabasePath))
		storageConfig = &sqlite.Config{
			DatabasePath: app.Config.DatabasePath,
			Cipher:       cipher,
		}
	}

	store, err := registry.Create(storageConfig)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}

	app.Storage = store
	return nil
}
