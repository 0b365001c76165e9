package search

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/qpss/knowledge-gateway/internal/testutil"
	"github.com/qpss/knowledge-gateway/internal/topic"
)

// Replays a recorded vector-store search against the real API shape.
func TestSearch_VCRReplay(t *testing.T) {
	rec := testutil.NewRecorder(t, "pensions_search")

	c := NewClient(Config{
		BaseURL: "https://api.openai.com/v1",
		APIKey:  "test-key",
		StoreIDs: map[topic.Topic]string{
			topic.Pensions: "vs_68df753c6f8c819199f785d76313f15a",
		},
	},
		WithHTTPClient(testutil.HTTPClient(rec)),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)

	payload, err := c.Search(context.Background(), topic.Pensions, "matrix export commands csv xlsx")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}

	var parsed struct {
		Object string `json:"object"`
		Data   []struct {
			Score      float64 `json:"score"`
			Attributes struct {
				DocTitle string `json:"doc_title"`
			} `json:"attributes"`
		} `json:"data"`
	}
	if err := json.Unmarshal(payload, &parsed); err != nil {
		t.Fatalf("payload is not valid JSON: %v", err)
	}
	if parsed.Object != "vector_store.search_results.page" {
		t.Errorf("object = %q", parsed.Object)
	}
	if len(parsed.Data) == 0 {
		t.Fatal("expected at least one result chunk")
	}
	if parsed.Data[0].Attributes.DocTitle != "ILO-PENSIONS User Manual" {
		t.Errorf("doc_title = %q", parsed.Data[0].Attributes.DocTitle)
	}
}
