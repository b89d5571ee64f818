package credential

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/thep200/github-syncer/cfg"
	"github.com/thep200/github-syncer/pkg/log"
)

// AppTokenManager giữ installation token của GitHub App trong process.
// Token được mint lazy qua một JWT ký RS256 và chỉ refresh khi hạn còn
// dưới 5 phút. Struct này được dựng một lần và chia sẻ giữa các job.
type AppTokenManager struct {
	Config *cfg.Config
	Logger log.Logger

	mu         sync.Mutex
	httpClient *http.Client
	token      string
	expiresAt  time.Time
	now        func() time.Time
}

func NewAppTokenManager(config *cfg.Config, logger log.Logger) (*AppTokenManager, error) {
	return &AppTokenManager{
		Config:     config,
		Logger:     logger,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		now:        time.Now,
	}, nil
}

// Token trả về installation token còn hạn, mint mới khi cần
func (m *AppTokenManager) Token(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.token != "" && m.expiresAt.Sub(m.now()) > 5*time.Minute {
		return m.token, nil
	}

	assertion, err := m.mintAssertion()
	if err != nil {
		return "", err
	}

	token, expiresAt, err := m.exchange(ctx, assertion)
	if err != nil {
		return "", err
	}

	m.token = token
	m.expiresAt = expiresAt
	m.Logger.Info(ctx, "Refreshed installation token, expires at %s", expiresAt.Format(time.RFC3339))
	return m.token, nil
}

// mintAssertion ký JWT ngắn hạn: iat lùi 60s để tránh lệch đồng hồ, hạn 10 phút
func (m *AppTokenManager) mintAssertion() (string, error) {
	pemBytes, err := os.ReadFile(m.Config.Github.PrivateKeyPath)
	if err != nil {
		return "", fmt.Errorf("failed to read app private key: %w", err)
	}

	key, err := jwt.ParseRSAPrivateKeyFromPEM(pemBytes)
	if err != nil {
		return "", fmt.Errorf("failed to parse app private key: %w", err)
	}

	now := m.now()
	claims := jwt.RegisteredClaims{
		IssuedAt:  jwt.NewNumericDate(now.Add(-60 * time.Second)),
		ExpiresAt: jwt.NewNumericDate(now.Add(600 * time.Second)),
		Issuer:    strconv.FormatInt(m.Config.Github.AppID, 10),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
	if err != nil {
		return "", fmt.Errorf("failed to sign app assertion: %w", err)
	}
	return signed, nil
}

// exchange đổi assertion lấy installation access token
func (m *AppTokenManager) exchange(ctx context.Context, assertion string) (string, time.Time, error) {
	url := fmt.Sprintf("%s/app/installations/%d/access_tokens",
		m.Config.Github.ApiUrl, m.Config.Github.InstallationID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return "", time.Time{}, err
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("Authorization", "Bearer "+assertion)

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("installation token exchange failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return "", time.Time{}, fmt.Errorf("installation token exchange failed: %s", resp.Status)
	}

	var body struct {
		Token     string    `json:"token"`
		ExpiresAt time.Time `json:"expires_at"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", time.Time{}, fmt.Errorf("failed to decode installation token response: %w", err)
	}
	if body.Token == "" {
		return "", time.Time{}, fmt.Errorf("installation token response contained no token")
	}

	return body.Token, body.ExpiresAt, nil
}
