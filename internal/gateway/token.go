package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// TokenProvider supplies a valid service token for processor calls.
type TokenProvider interface {
	GetValid(ctx context.Context) (string, error)
}

// expirySkew refreshes slightly early so a token never expires mid-request.
const expirySkew = 30 * time.Second

// CachedTokenProvider holds {token, expiresAt} and refreshes on expiry. It
// replaces ambient process-wide token state with an injectable dependency.
type CachedTokenProvider struct {
	tokenURL     string
	clientID     string
	clientSecret string
	client       *http.Client
	now          func() time.Time

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

// NewCachedTokenProvider builds a provider that fetches service tokens from
// the processor's auth endpoint.
func NewCachedTokenProvider(tokenURL, clientID, clientSecret string, timeout time.Duration) *CachedTokenProvider {
	return &CachedTokenProvider{
		tokenURL:     tokenURL,
		clientID:     clientID,
		clientSecret: clientSecret,
		client:       &http.Client{Timeout: timeout},
		now:          time.Now,
	}
}

// GetValid returns the cached token, refreshing it when expired.
func (p *CachedTokenProvider) GetValid(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.token != "" && p.now().Add(expirySkew).Before(p.expiresAt) {
		return p.token, nil
	}

	token, expiresAt, err := p.fetch(ctx)
	if err != nil {
		return "", err
	}
	p.token = token
	p.expiresAt = expiresAt
	return token, nil
}

func (p *CachedTokenProvider) fetch(ctx context.Context) (string, time.Time, error) {
	body, err := json.Marshal(map[string]string{
		"client_id":     p.clientID,
		"client_secret": p.clientSecret,
	})
	if err != nil {
		return "", time.Time{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.tokenURL, bytes.NewReader(body))
	if err != nil {
		return "", time.Time{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("%w: token request: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", time.Time{}, fmt.Errorf("%w: token endpoint returned %d", ErrUpstream, resp.StatusCode)
	}

	var decoded struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", time.Time{}, fmt.Errorf("%w: decode token response: %v", ErrUpstream, err)
	}
	if decoded.AccessToken == "" {
		return "", time.Time{}, fmt.Errorf("%w: empty access token", ErrUpstream)
	}

	return decoded.AccessToken, p.now().Add(time.Duration(decoded.ExpiresIn) * time.Second), nil
}

// StaticTokenProvider returns a fixed token. Useful for tests and dev mode.
type StaticTokenProvider string

// GetValid returns the fixed token.
func (t StaticTokenProvider) GetValid(context.Context) (string, error) {
	return string(t), nil
}
