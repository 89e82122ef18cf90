package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stanstork/stratum-etl/internal/etlerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type authServer struct {
	deviceCalls  atomic.Int32
	pollCalls    atomic.Int32
	refreshCalls atomic.Int32

	pendingPolls int32
	pollError    string
	refreshOK    bool
}

func (a *authServer) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(deviceCodePath, func(w http.ResponseWriter, r *http.Request) {
		a.deviceCalls.Add(1)
		assert.Equal(t, "device_request", r.URL.Query().Get("grant_type"))
		assert.Equal(t, "offline", r.URL.Query().Get("access_type"))
		assert.Equal(t, "consent", r.URL.Query().Get("prompt"))
		json.NewEncoder(w).Encode(map[string]any{
			"device_code":               "dev-123",
			"user_code":                 "ABCD",
			"verification_uri_complete": "https://accounts.example/verify?code=ABCD",
		})
	})
	mux.HandleFunc(deviceTokenPath, func(w http.ResponseWriter, r *http.Request) {
		n := a.pollCalls.Add(1)
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "device_token", r.PostForm.Get("grant_type"))
		assert.Equal(t, "dev-123", r.PostForm.Get("code"))
		if a.pollError != "" {
			json.NewEncoder(w).Encode(map[string]any{"error": a.pollError})
			return
		}
		if n <= a.pendingPolls {
			json.NewEncoder(w).Encode(map[string]any{"error": "authorization_pending"})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "device-access", "refresh_token": "device-refresh", "expires_in": 3600,
		})
	})
	mux.HandleFunc(refreshPath, func(w http.ResponseWriter, r *http.Request) {
		a.refreshCalls.Add(1)
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
		if !a.refreshOK {
			json.NewEncoder(w).Encode(map[string]any{"error": "invalid_code"})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"access_token": "refreshed-access", "expires_in": 3600})
	})
	return mux
}

func newTestManager(t *testing.T, srv *httptest.Server, store TokenStore, attempts uint64) *Manager {
	t.Helper()
	m := NewManager(Config{
		ClientID:     "client",
		ClientSecret: "secret",
		AccountsURL:  srv.URL,
		Scope:        "Inventory.all",
		PollInterval: time.Millisecond,
		MaxAttempts:  attempts,
	}, store, srv.Client(), zerolog.Nop())
	m.now = func() time.Time { return time.Date(2024, 6, 3, 8, 0, 0, 0, time.UTC) }
	return m
}

func TestAccessToken_NoTokenTakesDevicePath(t *testing.T) {
	auth := &authServer{pendingPolls: 2}
	srv := httptest.NewServer(auth.handler(t))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "tokens.json")
	store := NewFileStore(path)
	m := newTestManager(t, srv, store, 10)
	assert.Equal(t, NoToken, m.currentState())

	tok, err := m.AccessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "device-access", tok)
	assert.Equal(t, int32(1), auth.deviceCalls.Load())
	assert.Equal(t, int32(3), auth.pollCalls.Load())
	assert.Equal(t, int32(0), auth.refreshCalls.Load())
	assert.Equal(t, HaveAccessToken, m.currentState())

	saved, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "device-refresh", saved.RefreshToken)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestAccessToken_RefreshKeepsRefreshToken(t *testing.T) {
	auth := &authServer{refreshOK: true}
	srv := httptest.NewServer(auth.handler(t))
	defer srv.Close()

	store := NewFileStore(filepath.Join(t.TempDir(), "tokens.json"))
	require.NoError(t, store.Save(&Token{RefreshToken: "keep-me"}))
	m := newTestManager(t, srv, store, 3)
	assert.Equal(t, HaveRefreshToken, m.currentState())

	tok, err := m.AccessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "refreshed-access", tok)
	assert.Equal(t, int32(0), auth.deviceCalls.Load())

	saved, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "keep-me", saved.RefreshToken)
	assert.Equal(t, time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC), saved.Expiry.UTC())
}

func TestAccessToken_CachedTokenMakesNoCalls(t *testing.T) {
	auth := &authServer{}
	srv := httptest.NewServer(auth.handler(t))
	defer srv.Close()

	store := NewFileStore(filepath.Join(t.TempDir(), "tokens.json"))
	require.NoError(t, store.Save(&Token{
		AccessToken: "cached", RefreshToken: "r",
		Expiry: time.Date(2024, 6, 3, 8, 30, 0, 0, time.UTC),
	}))
	m := newTestManager(t, srv, store, 3)

	tok, err := m.AccessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "cached", tok)
	assert.Equal(t, int32(0), auth.refreshCalls.Load()+auth.deviceCalls.Load())
}

func TestAccessToken_NearExpiryRefreshes(t *testing.T) {
	auth := &authServer{refreshOK: true}
	srv := httptest.NewServer(auth.handler(t))
	defer srv.Close()

	store := NewFileStore(filepath.Join(t.TempDir(), "tokens.json"))
	require.NoError(t, store.Save(&Token{
		AccessToken: "stale", RefreshToken: "r",
		Expiry: time.Date(2024, 6, 3, 8, 0, 30, 0, time.UTC),
	}))
	m := newTestManager(t, srv, store, 3)

	tok, err := m.AccessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "refreshed-access", tok)
}

func TestAccessToken_FailedRefreshFallsBackToDevice(t *testing.T) {
	auth := &authServer{}
	srv := httptest.NewServer(auth.handler(t))
	defer srv.Close()

	store := NewFileStore(filepath.Join(t.TempDir(), "tokens.json"))
	require.NoError(t, store.Save(&Token{RefreshToken: "revoked"}))
	m := newTestManager(t, srv, store, 3)

	tok, err := m.AccessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "device-access", tok)
	assert.Equal(t, int32(1), auth.refreshCalls.Load())
	assert.Equal(t, int32(1), auth.deviceCalls.Load())
}

func TestAccessToken_CorruptFileIsNoToken(t *testing.T) {
	auth := &authServer{}
	srv := httptest.NewServer(auth.handler(t))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "tokens.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))
	m := newTestManager(t, srv, NewFileStore(path), 3)

	assert.Equal(t, NoToken, m.currentState())
	tok, err := m.AccessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "device-access", tok)
}

func TestAccessToken_PollingBudgetExhausted(t *testing.T) {
	auth := &authServer{pendingPolls: 100}
	srv := httptest.NewServer(auth.handler(t))
	defer srv.Close()

	m := newTestManager(t, srv, NewFileStore(filepath.Join(t.TempDir(), "tokens.json")), 3)

	_, err := m.AccessToken(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, etlerr.ErrTimeout))
	assert.Equal(t, int32(3), auth.pollCalls.Load())
}

func TestAccessToken_PollingRejected(t *testing.T) {
	auth := &authServer{pollError: "access_denied"}
	srv := httptest.NewServer(auth.handler(t))
	defer srv.Close()

	m := newTestManager(t, srv, NewFileStore(filepath.Join(t.TempDir(), "tokens.json")), 5)

	_, err := m.AccessToken(context.Background())
	assert.True(t, errors.Is(err, etlerr.ErrProtocol))
	assert.Equal(t, int32(1), auth.pollCalls.Load())
}

func TestAccessToken_CancelStopsPolling(t *testing.T) {
	auth := &authServer{pendingPolls: 100}
	srv := httptest.NewServer(auth.handler(t))
	defer srv.Close()

	m := newTestManager(t, srv, NewFileStore(filepath.Join(t.TempDir(), "tokens.json")), 100)
	m.cfg.PollInterval = time.Hour

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := m.AccessToken(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, etlerr.ErrTimeout))
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestFileStore_MissingFile(t *testing.T) {
	tok, err := NewFileStore(filepath.Join(t.TempDir(), "none.json")).Load()
	assert.NoError(t, err)
	assert.Nil(t, tok)
}
