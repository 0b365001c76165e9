package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/qpss/knowledge-gateway/internal/assistant"
	"github.com/qpss/knowledge-gateway/internal/topic"
)

const (
	defaultPollInterval = 750 * time.Millisecond
	defaultRunDeadline  = 2 * time.Minute
)

// Runner is the subset of the assistant service the orchestrator drives.
type Runner interface {
	CreateThread(ctx context.Context) (*assistant.Thread, error)
	CreateMessage(ctx context.Context, threadID, role, content string) (*assistant.Message, error)
	CreateRun(ctx context.Context, threadID string, req *assistant.CreateRunRequest) (*assistant.Run, error)
	RetrieveRun(ctx context.Context, threadID, runID string) (*assistant.Run, error)
	SubmitToolOutputs(ctx context.Context, threadID, runID string, outputs []assistant.ToolOutput) (*assistant.Run, error)
	ListMessages(ctx context.Context, threadID string, limit int) (*assistant.MessageList, error)
}

// RunFailedError is a run that reached a terminal status other than
// completed.
type RunFailedError struct {
	Status  string
	Message string
}

func (e *RunFailedError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("Run did not complete. Status: %s", e.Status)
}

// Orchestrator drives a remote run to a terminal state, answering tool
// calls along the way.
type Orchestrator struct {
	client       Runner
	fulfiller    *Fulfiller
	assistantID  string
	pollInterval time.Duration
	deadline     time.Duration
	logger       *slog.Logger
}

// NewOrchestrator creates an orchestrator. A zero pollInterval or deadline
// falls back to the defaults (750ms, 2m).
func NewOrchestrator(client Runner, fulfiller *Fulfiller, assistantID string, pollInterval, deadline time.Duration, logger *slog.Logger) *Orchestrator {
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	if deadline <= 0 {
		deadline = defaultRunDeadline
	}
	return &Orchestrator{
		client:       client,
		fulfiller:    fulfiller,
		assistantID:  assistantID,
		pollInterval: pollInterval,
		deadline:     deadline,
		logger:       logger,
	}
}

// RunTurn creates a run for the thread and polls it to completion. The
// resolution decides the run's constraints: a known topic forces the
// matching search function; an unknown one directs the assistant to ask for
// clarification instead of searching.
//
// The whole loop is bounded by the configured deadline; the remote service
// gives no guarantee a run ever finishes.
func (o *Orchestrator) RunTurn(ctx context.Context, threadID string, res topic.Resolution) (*assistant.Run, error) {
	ctx, cancel := context.WithTimeout(ctx, o.deadline)
	defer cancel()

	run, err := o.client.CreateRun(ctx, threadID, o.runRequest(res))
	if err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}
	o.logger.Debug("run created",
		slog.String("thread_id", threadID),
		slog.String("run_id", run.ID),
		slog.String("topic", res.Topic.String()),
	)

	for !run.Terminal() {
		if run.Status == assistant.StatusRequiresAction {
			if o.fulfiller == nil {
				return nil, fmt.Errorf("run %s requires tool outputs but no tool-call handling is configured", run.ID)
			}
			outputs, err := o.fulfiller.Fulfill(ctx, run, res.OriginalQuestion)
			if err != nil {
				return nil, err
			}
			run, err = o.client.SubmitToolOutputs(ctx, threadID, run.ID, outputs)
			if err != nil {
				return nil, fmt.Errorf("failed to submit tool outputs: %w", err)
			}
			continue
		}

		select {
		case <-time.After(o.pollInterval):
		case <-ctx.Done():
			return nil, fmt.Errorf("run %s did not finish before the deadline: %w", run.ID, ctx.Err())
		}

		run, err = o.client.RetrieveRun(ctx, threadID, run.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to retrieve run: %w", err)
		}
	}

	if run.Status != assistant.StatusCompleted {
		ferr := &RunFailedError{Status: run.Status}
		if run.LastError != nil {
			ferr.Message = run.LastError.Message
		}
		return run, ferr
	}
	return run, nil
}

func (o *Orchestrator) runRequest(res topic.Resolution) *assistant.CreateRunRequest {
	req := &assistant.CreateRunRequest{AssistantID: o.assistantID}

	if !res.Topic.Known() {
		req.AdditionalInstructions = "The tool this question concerns is unclear. " +
			"Ask the user whether their question is about ILO/PENSIONS or ILO/HEALTH, " +
			"and do not call any search function until they answer."
		req.ToolChoice = "none"
		return req
	}

	fn, _ := FunctionForTopic(res.Topic)
	manual := "ILO/" + strings.ToUpper(res.Topic.String())
	instructions := fmt.Sprintf("The user's question concerns %s. Call %s before answering.", manual, fn)
	if res.OriginalQuestion != "" {
		instructions += fmt.Sprintf(
			" The user's latest message only names the tool; their actual question is: %q. Answer that question.",
			res.OriginalQuestion,
		)
	}
	req.AdditionalInstructions = instructions
	req.ToolChoice = assistant.ForcedFunction(fn)
	return req
}
