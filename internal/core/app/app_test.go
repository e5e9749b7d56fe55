package app

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gorilla/mux"
	"github.com/neilberkman/fieldhand/internal/core/advisoryapi"
	"github.com/neilberkman/fieldhand/internal/core/config"
	"github.com/neilberkman/fieldhand/internal/core/credstore"
	"github.com/neilberkman/fieldhand/internal/core/route"
	"github.com/neilberkman/fieldhand/internal/core/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeAPI(t *testing.T) string {
	t.Helper()
	r := mux.NewRouter()
	r.HandleFunc("/api/auth/check-session", func(w http.ResponseWriter, req *http.Request) {
		if c, err := req.Cookie(advisoryapi.SessionCookie); err == nil && c.Value == "abc" {
			_, _ = io.WriteString(w, `{"authenticated": true, "email": "farmer@example.com"}`)
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv.URL
}

func testConfig(t *testing.T, store string) *config.Config {
	dir := t.TempDir()
	cfg := config.Default(dir)
	cfg.APIURL = fakeAPI(t)
	cfg.Store = store
	cfg.RequestTimeout = 2 * time.Second
	return cfg
}

func TestOpen_SQLitePersistsAcrossRuns(t *testing.T) {
	cfg := testConfig(t, "sqlite")
	ctx := context.Background()

	a, err := Open(cfg)
	require.NoError(t, err)
	require.NoError(t, a.Creds.Save(ctx, credstore.Credentials{SessionID: "abc", Email: "farmer@example.com"}))
	require.NoError(t, a.Close())

	b, err := Open(cfg)
	require.NoError(t, err)
	defer func() { _ = b.Close() }()

	snap, d, err := b.Gate(ctx, route.Weather)
	require.NoError(t, err)
	assert.Equal(t, session.StateAuthenticated, snap.State)
	assert.Equal(t, route.Decision{Action: route.Render, Path: route.Weather}, d)
	assert.FileExists(t, filepath.Join(cfg.Dir, "state.db"))
}

func TestOpen_Redis(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig(t, "redis")
	cfg.RedisAddr = mr.Addr()
	cfg.RedisPrefix = "fh:"

	a, err := Open(cfg)
	require.NoError(t, err)
	defer func() { _ = a.Close() }()

	require.NoError(t, a.Creds.Save(context.Background(), credstore.Credentials{SessionID: "abc", Email: "farmer@example.com"}))
	got, err := mr.Get("fh:session_id")
	require.NoError(t, err)
	assert.Equal(t, "abc", got)
}

func TestOpen_RedisUnreachable(t *testing.T) {
	cfg := testConfig(t, "redis")
	cfg.RedisAddr = "127.0.0.1:1"

	_, err := Open(cfg)
	assert.Error(t, err)
}

func TestRequireSession(t *testing.T) {
	cfg := testConfig(t, "memory")
	a, err := Open(cfg)
	require.NoError(t, err)
	defer func() { _ = a.Close() }()

	_, err = a.RequireSession(context.Background(), route.FarmSetup)
	require.Error(t, err)
	assert.True(t, advisoryapi.IsAuth(err))
}
