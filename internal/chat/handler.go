// Package chat implements the conversation turn flow: topic routing, the
// run orchestration loop, tool-call fulfilment, and the HTTP endpoint tying
// them together.
package chat

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/qpss/knowledge-gateway/internal/assistant"
	"github.com/qpss/knowledge-gateway/internal/search"
	"github.com/qpss/knowledge-gateway/internal/topic"
	"github.com/qpss/knowledge-gateway/internal/transcript"
)

// TurnRecorder receives a best-effort record of each turn.
type TurnRecorder interface {
	Append(ctx context.Context, t transcript.Turn) error
}

// HandlerOption configures the handler.
type HandlerOption func(*Handler)

// WithEnsure installs a hook run before the first remote call of every
// request (the once-per-process assistant reconciliation).
func WithEnsure(ensure func(context.Context) error) HandlerOption {
	return func(h *Handler) {
		h.ensure = ensure
	}
}

// WithTurnRecorder installs a best-effort turn log.
func WithTurnRecorder(rec TurnRecorder) HandlerOption {
	return func(h *Handler) {
		h.recorder = rec
	}
}

// Handler is the chat endpoint.
type Handler struct {
	client       Runner
	orchestrator *Orchestrator
	topics       *topic.Store
	assistantID  string
	apiKeySet    bool
	ensure       func(context.Context) error
	recorder     TurnRecorder
	logger       *slog.Logger
}

// NewHandler wires the chat endpoint.
func NewHandler(client Runner, orchestrator *Orchestrator, topics *topic.Store, assistantID, apiKey string, logger *slog.Logger, opts ...HandlerOption) *Handler {
	h := &Handler{
		client:       client,
		orchestrator: orchestrator,
		topics:       topics,
		assistantID:  assistantID,
		apiKeySet:    apiKey != "",
		logger:       logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

type chatRequest struct {
	ThreadID string `json:"threadId"`
	Message  any    `json:"message"`
}

type chatResponse struct {
	ThreadID string `json:"threadId"`
	Reply    string `json:"reply"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// HandleChat serves POST /api/chat.
func (h *Handler) HandleChat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Missing 'message' in request body"})
		return
	}
	message, ok := req.Message.(string)
	if !ok || message == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Missing 'message' in request body"})
		return
	}

	if h.assistantID == "" {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Missing assistant ID configuration"})
		return
	}
	if !h.apiKeySet {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Missing API key configuration"})
		return
	}

	if h.ensure != nil {
		if err := h.ensure(ctx); err != nil {
			h.fail(w, r, err)
			return
		}
	}

	threadID := req.ThreadID
	if threadID == "" {
		thread, err := h.client.CreateThread(ctx)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		threadID = thread.ID
	}

	// Route the turn before the message reaches the remote thread.
	res := h.topics.ResolveTurn(threadID, message)

	if _, err := h.client.CreateMessage(ctx, threadID, "user", message); err != nil {
		h.fail(w, r, err)
		return
	}

	run, err := h.orchestrator.RunTurn(ctx, threadID, res)
	if err != nil {
		h.record(threadID, res.Topic, message, "", runStatus(run), err, start)
		h.fail(w, r, err)
		return
	}

	reply, found, err := h.latestReply(ctx, threadID, run.ID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if !found {
		h.record(threadID, res.Topic, message, "", run.Status, errors.New("no assistant message"), start)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "No assistant message found"})
		return
	}

	h.record(threadID, res.Topic, message, reply, run.Status, nil, start)
	h.logger.Info("chat turn completed",
		slog.String("thread_id", threadID),
		slog.String("topic", res.Topic.String()),
		slog.Duration("duration", time.Since(start)),
	)
	writeJSON(w, http.StatusOK, chatResponse{ThreadID: threadID, Reply: reply})
}

// latestReply finds the newest assistant message tied to the run and joins
// its text segments with a blank line. An assistant message with no text
// parts yields an empty reply, deliberately not an error.
func (h *Handler) latestReply(ctx context.Context, threadID, runID string) (string, bool, error) {
	list, err := h.client.ListMessages(ctx, threadID, 10)
	if err != nil {
		return "", false, err
	}
	for _, msg := range list.Data {
		if msg.Role != "assistant" {
			continue
		}
		if msg.RunID != "" && msg.RunID != runID {
			continue
		}
		var parts []string
		for _, part := range msg.Content {
			if part.Type == "text" && part.Text != nil {
				parts = append(parts, part.Text.Value)
			}
		}
		return strings.Join(parts, "\n\n"), true, nil
	}
	return "", false, nil
}

// fail converts any error into the uniform JSON error response. This is the
// single place turn errors reach the client.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	h.logger.Error("chat turn failed",
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()),
	)
	writeJSON(w, http.StatusInternalServerError, errorResponse{Error: errorMessage(err)})
}

// errorMessage prefers the remote-provided message over wrapped prefixes.
func errorMessage(err error) string {
	var runErr *RunFailedError
	if errors.As(err, &runErr) {
		return runErr.Error()
	}
	var apiErr *assistant.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	var searchErr *search.Error
	if errors.As(err, &searchErr) {
		return searchErr.Message
	}
	return err.Error()
}

func (h *Handler) record(threadID string, t topic.Topic, message, reply, status string, turnErr error, start time.Time) {
	if h.recorder == nil {
		return
	}
	turn := transcript.Turn{
		ThreadID:    threadID,
		Topic:       t.String(),
		UserMessage: message,
		Reply:       reply,
		Status:      status,
		Duration:    time.Since(start),
	}
	if turnErr != nil {
		turn.ErrorMsg = turnErr.Error()
		if turn.Status == "" {
			turn.Status = "error"
		}
	}
	// Best effort; the log never fails a request.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := h.recorder.Append(ctx, turn); err != nil {
		h.logger.Debug("failed to record turn", slog.String("error", err.Error()))
	}
}

func runStatus(run *assistant.Run) string {
	if run == nil {
		return ""
	}
	return run.Status
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
