package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestHTTPClientCreateIntent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/payment_intents" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok_test" {
			t.Errorf("unexpected authorization header %q", got)
		}
		var req struct {
			Amount   int64  `json:"amount"`
			Currency string `json:"currency"`
			Customer string `json:"customer"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Amount != 5_000 || req.Currency != "usd" || req.Customer != "cust_1" {
			t.Errorf("unexpected request %+v", req)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"id":            "pi_1",
			"status":        "processing",
			"amount":        req.Amount,
			"currency":      req.Currency,
			"client_secret": "secret_1",
		})
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL, StaticTokenProvider("tok_test"), time.Second)

	intent, err := client.CreateIntent(context.Background(), 5_000, "usd", "cust_1")
	if err != nil {
		t.Fatalf("create intent: %v", err)
	}
	if intent.ID != "pi_1" || intent.Status != IntentStatusProcessing || intent.ClientSecret != "secret_1" {
		t.Fatalf("unexpected intent %+v", intent)
	}
}

func TestHTTPClientUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "internal error", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL, StaticTokenProvider("tok_test"), time.Second)

	_, err := client.GetIntent(context.Background(), "pi_1")
	if !errors.Is(err, ErrUpstream) {
		t.Fatalf("expected upstream error, got %v", err)
	}
}

func TestHTTPClientTokenFailureAbortsCall(t *testing.T) {
	var handlerHit bool
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		handlerHit = true
	}))
	defer srv.Close()

	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer tokenSrv.Close()

	tokens := NewCachedTokenProvider(tokenSrv.URL, "client", "secret", time.Second)
	client := NewHTTPClient(srv.URL, tokens, time.Second)

	_, err := client.CreateCustomer(context.Background(), "owner-1")
	if !errors.Is(err, ErrUpstream) {
		t.Fatalf("expected upstream error, got %v", err)
	}
	if handlerHit {
		t.Fatal("request must not reach the processor without a token")
	}
}
