package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"booksearch/internal/config"
	"booksearch/internal/storage/sqlite"
	"booksearch/internal/storage/stubs"
)

func TestNewLogger(t *testing.T) {
	logger, err := newLogger("debug", true)
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))

	logger, err = newLogger("warn", false)
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))

	_, err = newLogger("loud", false)
	assert.ErrorContains(t, err, "LOG_LEVEL")
}

func TestOpenStorage_Memory(t *testing.T) {
	kv, err := openStorage(&config.Config{StorageBackend: config.BackendMemory}, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &stubs.MockKV{}, kv)
}

func TestOpenStorage_SQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "favs.db")
	kv, err := openStorage(&config.Config{StorageBackend: config.BackendSQLite, SQLitePath: path}, zap.NewNop())
	require.NoError(t, err)
	defer kv.Close()

	assert.IsType(t, &sqlite.KV{}, kv)

	ctx := context.Background()
	require.NoError(t, kv.Initialize(ctx))
	require.NoError(t, kv.Set(ctx, "k", "v"))
	got, err := kv.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", got)
}

func TestRoutes(t *testing.T) {
	a := &App{
		config: &config.Config{WebhookMode: true},
		logger: zap.NewNop(),
	}
	mux := a.routes()

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Contains(t, rec.Body.String(), "mode: webhook")

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/unknown", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/telegram-webhook", strings.NewReader("{")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/telegram-webhook", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
