package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"webhook-gateway/internal/common/errors"
	"webhook-gateway/internal/storage"
	"webhook-gateway/internal/storage/storagetest"
)

func newMockAdapter(t *testing.T) (*Adapter, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewAdapter(mock, nil), mock
}

func TestAdapter_IncrementRequestCount(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		a, mock := newMockAdapter(t)
		at := time.Now()

		mock.ExpectExec(`UPDATE webhooks SET total_requests = total_requests \+ 1`).
			WithArgs(at, "wh1").
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		require.NoError(t, a.IncrementRequestCount(context.Background(), "wh1", at))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing webhook", func(t *testing.T) {
		a, mock := newMockAdapter(t)

		mock.ExpectExec(`UPDATE webhooks SET error_count = error_count \+ 1`).
			WithArgs("nope").
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		err := a.IncrementErrorCount(context.Background(), "nope")
		assert.True(t, errors.IsType(err, errors.ErrTypeNotFound))
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestAdapter_CreateWebhookConflict(t *testing.T) {
	a, mock := newMockAdapter(t)
	w := storagetest.NewWebhook("wh1", "orders")

	mock.ExpectExec(`INSERT INTO webhooks`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	err := a.CreateWebhook(context.Background(), w)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeConflict))
	assert.Contains(t, err.Error(), `Endpoint path "orders" already exists`)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdapter_GetWebhookMissing(t *testing.T) {
	a, mock := newMockAdapter(t)

	mock.ExpectQuery(`SELECT (.+) FROM webhooks WHERE id = \$1`).
		WithArgs("nope").
		WillReturnRows(pgxmock.NewRows([]string{"id"}))

	w, err := a.GetWebhook(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, w)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdapter_RevokeAPIKey(t *testing.T) {
	at := time.Now()

	t.Run("active key", func(t *testing.T) {
		a, mock := newMockAdapter(t)
		mock.ExpectExec(`UPDATE api_keys SET is_active = FALSE`).
			WithArgs(at, "key_1").
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		changed, err := a.RevokeAPIKey(context.Background(), "key_1", at)
		require.NoError(t, err)
		assert.True(t, changed)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("already revoked", func(t *testing.T) {
		a, mock := newMockAdapter(t)
		mock.ExpectExec(`UPDATE api_keys SET is_active = FALSE`).
			WithArgs(at, "key_1").
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))
		mock.ExpectQuery(`SELECT EXISTS`).
			WithArgs("key_1").
			WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

		changed, err := a.RevokeAPIKey(context.Background(), "key_1", at)
		require.NoError(t, err)
		assert.False(t, changed)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown key", func(t *testing.T) {
		a, mock := newMockAdapter(t)
		mock.ExpectExec(`UPDATE api_keys SET is_active = FALSE`).
			WithArgs(at, "key_9").
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))
		mock.ExpectQuery(`SELECT EXISTS`).
			WithArgs("key_9").
			WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))

		_, err := a.RevokeAPIKey(context.Background(), "key_9", at)
		assert.True(t, errors.IsType(err, errors.ErrTypeNotFound))
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestAdapter_DeleteAuditBefore(t *testing.T) {
	a, mock := newMockAdapter(t)
	before := time.Now().Add(-30 * 24 * time.Hour)

	mock.ExpectExec(`DELETE FROM audit_logs WHERE timestamp < \$1`).
		WithArgs(before).
		WillReturnResult(pgxmock.NewResult("DELETE", 42))

	n, err := a.DeleteAuditBefore(context.Background(), before)
	require.NoError(t, err)
	assert.Equal(t, int64(42), n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdapter_Health(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectPing()
	a := NewAdapter(mock, nil)
	require.NoError(t, a.Health(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestConfig(t *testing.T) {
	cfg := &Config{Host: "db", Port: "5432", Database: "gw", Username: "svc", Password: "p@ss"}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "postgres://svc:p%40ss@db:5432/gw?sslmode=disable", cfg.GetConnectionString())

	assert.Error(t, (&Config{}).Validate())

	reg := storage.NewRegistry()
	reg.Register(&Factory{})
	assert.True(t, reg.IsRegistered("postgres"))
}
