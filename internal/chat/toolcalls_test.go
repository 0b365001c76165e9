package chat

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/qpss/knowledge-gateway/internal/assistant"
	"github.com/qpss/knowledge-gateway/internal/topic"
)

type searchCall struct {
	Topic topic.Topic
	Query string
}

type fakeSearcher struct {
	mu      sync.Mutex
	calls   []searchCall
	payload json.RawMessage
	err     error
}

func (f *fakeSearcher) Search(ctx context.Context, t topic.Topic, query string) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, searchCall{Topic: t, Query: query})
	if f.err != nil {
		return nil, f.err
	}
	if f.payload != nil {
		return f.payload, nil
	}
	return json.RawMessage(`{"data":[]}`), nil
}

func (f *fakeSearcher) recorded() []searchCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]searchCall(nil), f.calls...)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func actionRun(id string, calls ...assistant.ToolCall) *assistant.Run {
	return &assistant.Run{
		ID:     id,
		Status: assistant.StatusRequiresAction,
		RequiredAction: &assistant.RequiredAction{
			Type:              "submit_tool_outputs",
			SubmitToolOutputs: &assistant.SubmitToolOutputs{ToolCalls: calls},
		},
	}
}

func functionCall(id, name, args string) assistant.ToolCall {
	return assistant.ToolCall{
		ID:       id,
		Type:     "function",
		Function: assistant.FunctionCall{Name: name, Arguments: args},
	}
}

func TestFulfill_SingleCall(t *testing.T) {
	searcher := &fakeSearcher{payload: json.RawMessage(`{"data":[{"content":"chunk"}]}`)}
	f := NewFulfiller(searcher, discardLogger())

	run := actionRun("run_1", functionCall("call_1", assistant.FunctionSearchPensions, `{"query":"matrix export"}`))
	outputs, err := f.Fulfill(context.Background(), run, "")
	if err != nil {
		t.Fatalf("Fulfill() error = %v", err)
	}
	if len(outputs) != 1 {
		t.Fatalf("len(outputs) = %d, want 1", len(outputs))
	}
	if outputs[0].ToolCallID != "call_1" {
		t.Errorf("ToolCallID = %q", outputs[0].ToolCallID)
	}
	if outputs[0].Output != `{"data":[{"content":"chunk"}]}` {
		t.Errorf("Output = %q", outputs[0].Output)
	}

	calls := searcher.recorded()
	if len(calls) != 1 || calls[0].Topic != topic.Pensions || calls[0].Query != "matrix export" {
		t.Errorf("search calls = %+v", calls)
	}
}

func TestFulfill_BatchResolvesAllCalls(t *testing.T) {
	searcher := &fakeSearcher{}
	f := NewFulfiller(searcher, discardLogger())

	run := actionRun("run_1",
		functionCall("call_1", assistant.FunctionSearchPensions, `{"query":"pension formulas"}`),
		functionCall("call_2", assistant.FunctionSearchHealth, `{"query":"morbidity rates"}`),
	)
	outputs, err := f.Fulfill(context.Background(), run, "")
	if err != nil {
		t.Fatalf("Fulfill() error = %v", err)
	}
	if len(outputs) != 2 {
		t.Fatalf("len(outputs) = %d, want 2", len(outputs))
	}
	// Outputs stay paired with their calls, in call order.
	if outputs[0].ToolCallID != "call_1" || outputs[1].ToolCallID != "call_2" {
		t.Errorf("outputs = %+v", outputs)
	}
	if len(searcher.recorded()) != 2 {
		t.Errorf("search calls = %d, want 2", len(searcher.recorded()))
	}
}

func TestFulfill_QueryOverride(t *testing.T) {
	searcher := &fakeSearcher{}
	f := NewFulfiller(searcher, discardLogger())

	run := actionRun("run_1", functionCall("call_1", assistant.FunctionSearchPensions, `{"query":"pensions"}`))
	if _, err := f.Fulfill(context.Background(), run, "Tell me about exporting data"); err != nil {
		t.Fatalf("Fulfill() error = %v", err)
	}

	calls := searcher.recorded()
	if len(calls) != 1 || calls[0].Query != "Tell me about exporting data" {
		t.Errorf("search query = %+v, want the original question, not the clarification", calls)
	}
}

func TestFulfill_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		run     *assistant.Run
		wantSub string
	}{
		{
			name:    "no required action payload",
			run:     &assistant.Run{ID: "run_1", Status: assistant.StatusRequiresAction},
			wantSub: "no tool outputs request",
		},
		{
			name:    "zero tool calls",
			run:     actionRun("run_1"),
			wantSub: "no tool calls were supplied",
		},
		{
			name:    "unknown function",
			run:     actionRun("run_1", functionCall("call_1", "searchPayrollManual", `{"query":"x"}`)),
			wantSub: "unsupported action",
		},
		{
			name:    "invalid JSON arguments",
			run:     actionRun("run_1", functionCall("call_1", assistant.FunctionSearchPensions, `{"query":`)),
			wantSub: "invalid arguments",
		},
		{
			name:    "blank query",
			run:     actionRun("run_1", functionCall("call_1", assistant.FunctionSearchPensions, `{"query":"   "}`)),
			wantSub: "missing 'query'",
		},
		{
			name: "non-function call type",
			run: actionRun("run_1", assistant.ToolCall{
				ID:   "call_1",
				Type: "code_interpreter",
			}),
			wantSub: "unsupported tool call type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			searcher := &fakeSearcher{}
			f := NewFulfiller(searcher, discardLogger())

			_, err := f.Fulfill(context.Background(), tt.run, "")
			if err == nil {
				t.Fatal("Fulfill() succeeded, want error")
			}
			if !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("error = %q, want it to contain %q", err, tt.wantSub)
			}
			// Rejection happens before any search call.
			if len(searcher.recorded()) != 0 {
				t.Errorf("search was called %d times on a rejected batch", len(searcher.recorded()))
			}
		})
	}
}

func TestFulfill_SearchErrorFailsBatch(t *testing.T) {
	searcher := &fakeSearcher{err: errors.New("search blew up")}
	f := NewFulfiller(searcher, discardLogger())

	run := actionRun("run_1", functionCall("call_1", assistant.FunctionSearchHealth, `{"query":"x"}`))
	if _, err := f.Fulfill(context.Background(), run, ""); err == nil {
		t.Fatal("Fulfill() succeeded, want search error to propagate")
	}
}
