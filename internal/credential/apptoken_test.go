package credential

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thep200/github-syncer/cfg"
	"github.com/thep200/github-syncer/pkg/log"
)

func writeTestKey(t *testing.T) string {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	block := &pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	}
	path := filepath.Join(t.TempDir(), "app.pem")
	require.NoError(t, os.WriteFile(path, pem.EncodeToMemory(block), 0600))
	return path
}

func newAppTokenFixture(t *testing.T, handler http.HandlerFunc) (*AppTokenManager, *httptest.Server) {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	loader, _ := cfg.NewMockLoader()
	config, err := loader.Load()
	require.NoError(t, err)
	config.Github.ApiUrl = server.URL
	config.Github.AppID = 4242
	config.Github.InstallationID = 99
	config.Github.PrivateKeyPath = writeTestKey(t)

	logger, err := log.NewCslLogger()
	require.NoError(t, err)

	manager, err := NewAppTokenManager(config, logger)
	require.NoError(t, err)
	return manager, server
}

func TestTokenMintsAndCachesInstallationToken(t *testing.T) {
	requests := 0
	manager, _ := newAppTokenFixture(t, func(w http.ResponseWriter, r *http.Request) {
		requests++
		assert.Equal(t, "/app/installations/99/access_tokens", r.URL.Path)
		assert.True(t, strings.HasPrefix(r.Header.Get("Authorization"), "Bearer "))

		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"token":      "ghs_installation",
			"expires_at": time.Now().Add(time.Hour).Format(time.RFC3339),
		})
	})

	ctx := context.Background()
	token, err := manager.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ghs_installation", token)

	// Còn hạn thì không đổi lại
	token, err = manager.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ghs_installation", token)
	assert.Equal(t, 1, requests)
}

func TestTokenRefreshesNearExpiry(t *testing.T) {
	requests := 0
	manager, _ := newAppTokenFixture(t, func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"token":      "ghs_refresh",
			"expires_at": time.Now().Add(time.Hour).Format(time.RFC3339),
		})
	})

	ctx := context.Background()
	_, err := manager.Token(ctx)
	require.NoError(t, err)

	// Đẩy đồng hồ tới sát hạn, lần gọi sau phải refresh
	manager.now = func() time.Time { return time.Now().Add(56 * time.Minute) }
	_, err = manager.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, requests)
}

func TestTokenExchangeFailurePropagates(t *testing.T) {
	manager, _ := newAppTokenFixture(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := manager.Token(context.Background())
	require.Error(t, err)
}

func TestTokenRejectsEmptyTokenResponse(t *testing.T) {
	manager, _ := newAppTokenFixture(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"token":      "",
			"expires_at": time.Now().Add(time.Hour).Format(time.RFC3339),
		})
	})

	_, err := manager.Token(context.Background())
	require.Error(t, err)
}
