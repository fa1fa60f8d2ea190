package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func tokenServer(t *testing.T, calls *atomic.Int64) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		var creds struct {
			ClientID     string `json:"client_id"`
			ClientSecret string `json:"client_secret"`
		}
		if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
			t.Errorf("decode credentials: %v", err)
		}
		if creds.ClientID != "client" || creds.ClientSecret != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"access_token": "tok_abc", "expires_in": 3600})
	}))
}

func TestCachedTokenProviderReusesToken(t *testing.T) {
	var calls atomic.Int64
	srv := tokenServer(t, &calls)
	defer srv.Close()

	p := NewCachedTokenProvider(srv.URL, "client", "secret", time.Second)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		token, err := p.GetValid(ctx)
		if err != nil {
			t.Fatalf("get token: %v", err)
		}
		if token != "tok_abc" {
			t.Fatalf("unexpected token %s", token)
		}
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("expected one token fetch, got %d", got)
	}
}

func TestCachedTokenProviderRefreshesOnExpiry(t *testing.T) {
	var calls atomic.Int64
	srv := tokenServer(t, &calls)
	defer srv.Close()

	p := NewCachedTokenProvider(srv.URL, "client", "secret", time.Second)

	now := time.Now()
	p.now = func() time.Time { return now }

	ctx := context.Background()
	if _, err := p.GetValid(ctx); err != nil {
		t.Fatalf("first fetch: %v", err)
	}

	// Advance past the token lifetime; the next call must refresh.
	now = now.Add(2 * time.Hour)
	if _, err := p.GetValid(ctx); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if got := calls.Load(); got != 2 {
		t.Fatalf("expected two token fetches, got %d", got)
	}
}

func TestCachedTokenProviderRejectsBadCredentials(t *testing.T) {
	var calls atomic.Int64
	srv := tokenServer(t, &calls)
	defer srv.Close()

	p := NewCachedTokenProvider(srv.URL, "client", "wrong", time.Second)
	if _, err := p.GetValid(context.Background()); err == nil {
		t.Fatal("expected error for bad credentials")
	}
}
