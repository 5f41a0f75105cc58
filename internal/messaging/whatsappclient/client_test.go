package whatsappclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func newTestClient(t *testing.T, server *httptest.Server, cfg Config) *Client {
	t.Helper()
	cfg.BaseURL = server.URL
	if cfg.AccessToken == "" {
		cfg.AccessToken = "token"
	}
	if cfg.Backoff == 0 {
		cfg.Backoff = time.Millisecond
	}
	client, err := New(cfg)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func TestSendTextMessage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/1098765/messages" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer token" {
			t.Fatalf("unexpected auth header %q", got)
		}
		var body messageRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if body.Type != "text" || body.Text == nil || body.Text.Body != "hello" || body.To != "919800000001" {
			t.Fatalf("unexpected body %#v", body)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"messaging_product":"whatsapp","contacts":[{"input":"919800000001","wa_id":"919800000001"}],"messages":[{"id":"wamid.out.1"}]}`))
	}))
	defer server.Close()

	client := newTestClient(t, server, Config{})
	res, err := client.SendTextMessage(context.Background(), "1098765", "919800000001", "hello")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if res.ProviderMessageID != "wamid.out.1" {
		t.Fatalf("unexpected id %q", res.ProviderMessageID)
	}
}

func TestSendOrderDetailsTemplate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body messageRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if body.Type != "template" || body.Template == nil {
			t.Fatalf("expected template payload, got %#v", body)
		}
		if body.Template.Name != "collect_details" || body.Template.Language.Code != "en_US" {
			t.Fatalf("unexpected template %#v", body.Template)
		}
		_, _ = w.Write([]byte(`{"messages":[{"id":"wamid.tpl.1"}]}`))
	}))
	defer server.Close()

	client := newTestClient(t, server, Config{OrderTemplate: "collect_details", TemplateLanguage: "en_US"})
	res, err := client.SendOrderDetailsTemplate(context.Background(), "1098765", "919800000001")
	if err != nil || res.ProviderMessageID != "wamid.tpl.1" {
		t.Fatalf("unexpected result %#v err=%v", res, err)
	}
}

func TestSendDoesNotRetryByDefault(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":{"message":"Service temporarily unavailable","type":"OAuthException","code":2}}`))
	}))
	defer server.Close()

	client := newTestClient(t, server, Config{})
	_, err := client.SendTextMessage(context.Background(), "1098765", "919800000001", "hello")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusServiceUnavailable || apiErr.Code != 2 {
		t.Fatalf("expected decoded api error, got %v", err)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("expected a single attempt, got %d", calls)
	}
}

func TestSendRetriesWhenConfigured(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"messages":[{"id":"wamid.retry"}]}`))
	}))
	defer server.Close()

	client := newTestClient(t, server, Config{MaxRetries: 2})
	res, err := client.SendTextMessage(context.Background(), "1098765", "919800000001", "hello")
	if err != nil || res.ProviderMessageID != "wamid.retry" {
		t.Fatalf("expected retry success, got %#v err=%v", res, err)
	}
	if atomic.LoadInt32(&calls) != 2 {
		t.Fatalf("expected 2 attempts, got %d", calls)
	}
}

func TestBreakerOpensAfterServerErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := newTestClient(t, server, Config{BreakerThreshold: 2, BreakerCooldown: time.Minute})
	for i := 0; i < 2; i++ {
		if _, err := client.SendTextMessage(context.Background(), "1098765", "919800000001", "hello"); err == nil {
			t.Fatal("expected server error")
		}
	}
	_, err := client.SendTextMessage(context.Background(), "1098765", "919800000001", "hello")
	if !errors.Is(err, ErrBreakerOpen) {
		t.Fatalf("expected breaker open, got %v", err)
	}
	if atomic.LoadInt32(&calls) != 2 {
		t.Fatalf("expected breaker to short-circuit third call, got %d calls", calls)
	}
}

func TestClientErrorsDoNotTripBreaker(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"Recipient phone number not in allowed list","code":131030}}`))
	}))
	defer server.Close()

	client := newTestClient(t, server, Config{BreakerThreshold: 1})
	for i := 0; i < 3; i++ {
		_, err := client.SendTextMessage(context.Background(), "1098765", "919800000001", "hello")
		if errors.Is(err, ErrBreakerOpen) {
			t.Fatalf("breaker must stay closed on 4xx (attempt %d)", i)
		}
	}
}

func TestValidation(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatal("expected missing token error")
	}
	client, err := New(Config{AccessToken: "t"})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, err := client.SendTextMessage(context.Background(), "", "1", "hi"); err == nil {
		t.Fatal("expected phone number id error")
	}
	if _, err := client.SendTextMessage(context.Background(), "1", "", "hi"); err == nil {
		t.Fatal("expected recipient error")
	}
	if _, err := client.SendTextMessage(context.Background(), "1", "2", " "); err == nil {
		t.Fatal("expected body error")
	}
}
