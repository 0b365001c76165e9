package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/qpss/knowledge-gateway/internal/assistant"
	"github.com/qpss/knowledge-gateway/internal/topic"
)

// Searcher is the manual-search capability the fulfiller executes tool
// calls against.
type Searcher interface {
	Search(ctx context.Context, t topic.Topic, query string) (json.RawMessage, error)
}

// functionTopics is the closed set of callable functions. Anything outside
// it aborts the turn at the boundary.
var functionTopics = map[string]topic.Topic{
	assistant.FunctionSearchPensions: topic.Pensions,
	assistant.FunctionSearchHealth:   topic.Health,
}

// FunctionForTopic returns the search function name serving a topic.
func FunctionForTopic(t topic.Topic) (string, bool) {
	for name, ft := range functionTopics {
		if ft == t {
			return name, true
		}
	}
	return "", false
}

// Fulfiller turns a run's pending tool calls into search results.
type Fulfiller struct {
	searcher Searcher
	logger   *slog.Logger
}

// NewFulfiller creates a fulfiller backed by the given searcher.
func NewFulfiller(searcher Searcher, logger *slog.Logger) *Fulfiller {
	return &Fulfiller{searcher: searcher, logger: logger}
}

type searchArgs struct {
	Query string `json:"query"`
}

// Fulfill resolves every tool call on the run concurrently and returns one
// output per call, in call order. queryOverride, when set, replaces the
// model-provided query for this turn (the bare-clarification flow, where the
// model only ever saw a one-word answer).
//
// Any invalid call - unknown function, malformed arguments, blank query -
// fails the whole batch.
func (f *Fulfiller) Fulfill(ctx context.Context, run *assistant.Run, queryOverride string) ([]assistant.ToolOutput, error) {
	if run.RequiredAction == nil || run.RequiredAction.SubmitToolOutputs == nil {
		return nil, fmt.Errorf("run %s requires action but carries no tool outputs request", run.ID)
	}
	calls := run.RequiredAction.SubmitToolOutputs.ToolCalls
	if len(calls) == 0 {
		return nil, fmt.Errorf("run %s requires action but no tool calls were supplied", run.ID)
	}

	// Validate the whole batch before any network call.
	queries := make([]string, len(calls))
	topics := make([]topic.Topic, len(calls))
	for i, call := range calls {
		if call.Type != "function" || call.Function.Name == "" {
			return nil, fmt.Errorf("unsupported tool call type %q", call.Type)
		}
		t, ok := functionTopics[call.Function.Name]
		if !ok {
			return nil, fmt.Errorf("unsupported action: %s", call.Function.Name)
		}
		var args searchArgs
		if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
			return nil, fmt.Errorf("invalid arguments for %s: %w", call.Function.Name, err)
		}
		query := strings.TrimSpace(args.Query)
		if query == "" {
			return nil, fmt.Errorf("missing 'query' argument for %s", call.Function.Name)
		}
		if queryOverride != "" {
			query = queryOverride
		}
		queries[i] = query
		topics[i] = t
	}

	outputs := make([]assistant.ToolOutput, len(calls))
	g, gctx := errgroup.WithContext(ctx)
	for i, call := range calls {
		i, call := i, call
		g.Go(func() error {
			f.logger.Debug("fulfilling tool call",
				slog.String("run_id", run.ID),
				slog.String("function", call.Function.Name),
				slog.String("topic", topics[i].String()),
			)
			payload, err := f.searcher.Search(gctx, topics[i], queries[i])
			if err != nil {
				return err
			}
			outputs[i] = assistant.ToolOutput{
				ToolCallID: call.ID,
				Output:     string(payload),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return outputs, nil
}
