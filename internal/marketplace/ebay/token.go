// Package ebay implements the eBay Browse API connector with a
// client-credentials bearer token flow.
package ebay

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// expiryBuffer treats a token as expired this long before its actual expiry
// so an in-flight call never starts with a token about to die.
const expiryBuffer = 300 * time.Second

// tokenManager holds the shared bearer token for one eBay app. All access
// goes through the mutex; refresh is lazy, triggered on expiry detection.
type tokenManager struct {
	mu          sync.Mutex
	accessToken string
	expiresAt   time.Time

	clientID     string
	clientSecret string
	tokenURL     string
	scope        string
	http         *http.Client
	now          func() time.Time
}

func newTokenManager(clientID, clientSecret, baseURL, scope string, hc *http.Client) *tokenManager {
	return &tokenManager{
		clientID:     clientID,
		clientSecret: clientSecret,
		tokenURL:     strings.TrimRight(baseURL, "/") + "/identity/v1/oauth2/token",
		scope:        scope,
		http:         hc,
		now:          time.Now,
	}
}

// Token returns a bearer token, refreshing lazily when the current one is
// inside the expiry buffer. A failed refresh returns the previous token if
// one exists: an in-flight call gets to attempt use-and-fail instead of
// erroring immediately (availability over correctness).
func (m *tokenManager) Token(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.accessToken != "" && m.now().Before(m.expiresAt.Add(-expiryBuffer)) {
		return m.accessToken, nil
	}

	token, expiresIn, err := m.fetch(ctx)
	if err != nil {
		if m.accessToken != "" {
			log.Printf("[ebay] token refresh failed, keeping previous token: %v", err)
			return m.accessToken, nil
		}
		return "", err
	}
	m.accessToken = token
	m.expiresAt = m.now().Add(time.Duration(expiresIn) * time.Second)
	return m.accessToken, nil
}

func (m *tokenManager) fetch(ctx context.Context) (token string, expiresIn int, err error) {
	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("scope", m.scope)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", 0, err
	}
	basic := base64.StdEncoding.EncodeToString([]byte(m.clientID + ":" + m.clientSecret))
	req.Header.Set("Authorization", "Basic "+basic)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := m.http.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("token request: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode != http.StatusOK {
		return "", 0, fmt.Errorf("token request: http %d", resp.StatusCode)
	}

	var parsed struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", 0, fmt.Errorf("token response: %w", err)
	}
	if parsed.AccessToken == "" {
		return "", 0, errors.New("token response: empty access_token")
	}
	if parsed.ExpiresIn <= 0 {
		parsed.ExpiresIn = 7200
	}
	return parsed.AccessToken, parsed.ExpiresIn, nil
}
