package pocketbase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

// Admin tokens are issued for roughly two hours; renew with a ten minute margin.
const tokenLease = 110 * time.Minute

// TokenProvider leases an admin token from the store and refreshes it when the
// lease expires or a request reports it invalid.
type TokenProvider struct {
	baseURL    string
	identity   string
	password   string
	httpClient *http.Client
	now        func() time.Time

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

// NewTokenProvider constructs a provider for the admin auth endpoint.
func NewTokenProvider(baseURL, identity, password string, timeout time.Duration) *TokenProvider {
	return &TokenProvider{
		baseURL:    baseURL,
		identity:   identity,
		password:   password,
		httpClient: &http.Client{Timeout: timeout},
		now:        time.Now,
	}
}

// Token returns a valid token, authenticating when the lease has lapsed.
func (p *TokenProvider) Token(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.token != "" && p.now().Before(p.expiresAt) {
		return p.token, nil
	}
	token, err := p.authenticate(ctx)
	if err != nil {
		return "", err
	}
	p.token = token
	p.expiresAt = p.now().Add(tokenLease)
	return token, nil
}

// Invalidate drops the cached token so the next call re-authenticates.
func (p *TokenProvider) Invalidate() {
	p.mu.Lock()
	p.token = ""
	p.mu.Unlock()
}

func (p *TokenProvider) authenticate(ctx context.Context) (string, error) {
	payload, err := json.Marshal(map[string]string{
		"identity": p.identity,
		"password": p.password,
	})
	if err != nil {
		return "", err
	}
	url := fmt.Sprintf("%s/api/admins/auth-with-password", p.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("pocketbase: auth request: %w: %v", ErrUnavailable, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 500 {
		return "", fmt.Errorf("pocketbase: auth returned status %d: %w", resp.StatusCode, ErrUnavailable)
	}
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("pocketbase: admin authentication failed with status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("pocketbase: read auth response: %w: %v", ErrUnavailable, err)
	}
	var out struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("pocketbase: decode auth response: %w", err)
	}
	if out.Token == "" {
		return "", fmt.Errorf("pocketbase: auth response carried no token")
	}
	return out.Token, nil
}
