package main

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"guildkit/adapters/jsonfile"
	mem "guildkit/adapters/memory"
	"guildkit/config"
)

func TestBuildAppWithoutToken(t *testing.T) {
	app, cleanup, err := BuildApp(context.Background(), flags{profile: "testing"})
	require.NoError(t, err)
	t.Cleanup(cleanup)

	assert.Nil(t, app.Session)
	assert.Nil(t, app.Kit.Sync, "no gateway means no role sync")
	assert.NotNil(t, app.Router)
	assert.NotNil(t, app.Messages)

	rec := httptest.NewRecorder()
	app.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestBuildAppRejectsUnknownProfile(t *testing.T) {
	_, _, err := BuildApp(context.Background(), flags{profile: "qa"})
	assert.Error(t, err)
}

func TestSetupStorage(t *testing.T) {
	cfg := config.DefaultConfig()

	s, err := setupStorage(context.Background(), cfg)
	require.NoError(t, err)
	assert.IsType(t, &mem.Store{}, s)

	cfg.Storage.Adapter = "file"
	cfg.Storage.File.Path = filepath.Join(t.TempDir(), "guildkit.json")
	s, err = setupStorage(context.Background(), cfg)
	require.NoError(t, err)
	assert.IsType(t, &jsonfile.Store{}, s)

	cfg.Storage.Adapter = "etcd"
	_, err = setupStorage(context.Background(), cfg)
	assert.Error(t, err)
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLogLevel("debug"))
	assert.Equal(t, slog.LevelWarn, parseLogLevel("warn"))
	assert.Equal(t, slog.LevelError, parseLogLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLogLevel("loud"))
}
