package search

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/qpss/knowledge-gateway/internal/topic"
)

func testClient(t *testing.T, upstream string, cfg Config) *Client {
	t.Helper()
	cfg.BaseURL = upstream
	cfg.APIKey = "test-key"
	if cfg.StoreIDs == nil {
		cfg.StoreIDs = map[topic.Topic]string{
			topic.Pensions: "vs_pensions",
			topic.Health:   "vs_health",
		}
	}
	cfg.RetryBase = time.Millisecond
	return NewClient(cfg, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
}

func TestSearch_CacheRoundTrip(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`{"data":[{"content":"chunk"}]}`))
	}))
	defer srv.Close()

	c := testClient(t, srv.URL, Config{})

	for i := 0; i < 2; i++ {
		payload, err := c.Search(context.Background(), topic.Pensions, "Export CSV")
		if err != nil {
			t.Fatalf("Search() error = %v", err)
		}
		if string(payload) != `{"data":[{"content":"chunk"}]}` {
			t.Errorf("payload = %s", payload)
		}
	}

	if got := calls.Load(); got != 1 {
		t.Errorf("network calls = %d, want 1 (second search should hit cache)", got)
	}
}

func TestSearch_CacheKeyNormalization(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := testClient(t, srv.URL, Config{})
	ctx := context.Background()

	// Whitespace and case fold into one entry.
	c.Search(ctx, topic.Pensions, "Export CSV")
	c.Search(ctx, topic.Pensions, "export   csv")
	c.Search(ctx, topic.Pensions, " export\ncsv ")
	if got := calls.Load(); got != 1 {
		t.Errorf("network calls = %d, want 1 for equivalent queries", got)
	}

	// Different query text does not.
	c.Search(ctx, topic.Pensions, "Export XLSX")
	if got := calls.Load(); got != 2 {
		t.Errorf("network calls = %d, want 2 after a distinct query", got)
	}

	// Same query under another topic is a separate entry too.
	c.Search(ctx, topic.Health, "Export CSV")
	if got := calls.Load(); got != 3 {
		t.Errorf("network calls = %d, want 3 after a distinct topic", got)
	}
}

func TestSearch_CacheTTLExpiry(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := testClient(t, srv.URL, Config{CacheTTL: 50 * time.Millisecond})
	ctx := context.Background()

	c.Search(ctx, topic.Pensions, "export csv")
	time.Sleep(80 * time.Millisecond)
	c.Search(ctx, topic.Pensions, "export csv")

	if got := calls.Load(); got != 2 {
		t.Errorf("network calls = %d, want 2 after TTL expiry", got)
	}
}

func TestSearch_RawQueryOnTheWire(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var req struct {
			Query string `json:"query"`
		}
		json.Unmarshal(body, &req)
		gotQuery = req.Query
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := testClient(t, srv.URL, Config{})
	c.Search(context.Background(), topic.Pensions, "  Export   CSV  ")

	if gotQuery != "  Export   CSV  " {
		t.Errorf("outgoing query = %q, want the raw query, not the normalized form", gotQuery)
	}
}

func TestSearch_RetriesOn500(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"error":{"message":"upstream hiccup"}}`))
			return
		}
		w.Write([]byte(`{"data":[]}`))
	}))
	defer srv.Close()

	c := testClient(t, srv.URL, Config{})

	payload, err := c.Search(context.Background(), topic.Health, "demographic assumptions")
	if err != nil {
		t.Fatalf("Search() error = %v, want success on third attempt", err)
	}
	if string(payload) != `{"data":[]}` {
		t.Errorf("payload = %s", payload)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("attempts = %d, want 3", got)
	}
}

func TestSearch_ExhaustsRetries(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"Rate limited"}}`))
	}))
	defer srv.Close()

	c := testClient(t, srv.URL, Config{})

	_, err := c.Search(context.Background(), topic.Pensions, "anything")
	if err == nil {
		t.Fatal("Search() succeeded, want error after exhausting attempts")
	}
	var se *Error
	if !errors.As(err, &se) {
		t.Fatalf("error type = %T, want *search.Error", err)
	}
	if se.Status != http.StatusTooManyRequests {
		t.Errorf("Status = %d, want 429", se.Status)
	}
	if se.Message != "Rate limited" {
		t.Errorf("Message = %q, want remote error message", se.Message)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("attempts = %d, want 3", got)
	}
}

func TestSearch_NoRetryOn400(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"message":"bad query"}}`))
	}))
	defer srv.Close()

	c := testClient(t, srv.URL, Config{})

	_, err := c.Search(context.Background(), topic.Pensions, "anything")
	if err == nil {
		t.Fatal("Search() succeeded, want error")
	}
	var se *Error
	if !errors.As(err, &se) {
		t.Fatalf("error type = %T, want *search.Error", err)
	}
	if se.Status != http.StatusBadRequest {
		t.Errorf("Status = %d, want 400", se.Status)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("attempts = %d, want exactly 1 for a non-retryable error", got)
	}
}

func TestSearch_MalformedResponseNotRetried(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	c := testClient(t, srv.URL, Config{})

	_, err := c.Search(context.Background(), topic.Pensions, "anything")
	if err == nil {
		t.Fatal("Search() succeeded on malformed body, want error")
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("attempts = %d, want 1", got)
	}
}

func TestSearch_UnknownTopic(t *testing.T) {
	c := testClient(t, "http://unused.invalid", Config{})

	_, err := c.Search(context.Background(), topic.Topic("payroll"), "anything")
	if err == nil {
		t.Fatal("Search() succeeded for an unconfigured topic")
	}
}
