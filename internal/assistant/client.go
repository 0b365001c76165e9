// Package assistant is a minimal client for the hosted assistant service:
// threads, messages, runs, tool outputs, and the assistant definition
// itself. Only the primitives this gateway consumes are implemented.
package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
)

const defaultBaseURL = "https://api.openai.com/v1"

// APIError is a non-2xx response from the assistant service.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("assistant API error (status %d): %s", e.StatusCode, e.Message)
}

// ClientOption configures the client.
type ClientOption func(*Client)

// WithBaseURL sets a custom API base URL.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimSuffix(baseURL, "/")
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithOrganization sets the organization header on every request.
func WithOrganization(org string) ClientOption {
	return func(c *Client) {
		c.organization = org
	}
}

// WithProject sets the project header on every request.
func WithProject(project string) ClientOption {
	return func(c *Client) {
		c.project = project
	}
}

// Client talks to the assistant service. Safe for concurrent use.
type Client struct {
	apiKey       string
	baseURL      string
	organization string
	project      string
	httpClient   *http.Client
}

// NewClient creates an assistant API client.
func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		httpClient: http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CreateThread starts a new conversation thread.
func (c *Client) CreateThread(ctx context.Context) (*Thread, error) {
	var thread Thread
	if err := c.do(ctx, http.MethodPost, "/threads", struct{}{}, &thread); err != nil {
		return nil, err
	}
	return &thread, nil
}

// CreateMessage appends a message to a thread.
func (c *Client) CreateMessage(ctx context.Context, threadID, role, content string) (*Message, error) {
	req := map[string]string{"role": role, "content": content}
	var msg Message
	if err := c.do(ctx, http.MethodPost, "/threads/"+threadID+"/messages", req, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// CreateRun starts a run on a thread.
func (c *Client) CreateRun(ctx context.Context, threadID string, req *CreateRunRequest) (*Run, error) {
	var run Run
	if err := c.do(ctx, http.MethodPost, "/threads/"+threadID+"/runs", req, &run); err != nil {
		return nil, err
	}
	return &run, nil
}

// RetrieveRun fetches the current state of a run.
func (c *Client) RetrieveRun(ctx context.Context, threadID, runID string) (*Run, error) {
	var run Run
	if err := c.do(ctx, http.MethodGet, "/threads/"+threadID+"/runs/"+runID, nil, &run); err != nil {
		return nil, err
	}
	return &run, nil
}

// SubmitToolOutputs answers a run's pending tool calls in one batch.
func (c *Client) SubmitToolOutputs(ctx context.Context, threadID, runID string, outputs []ToolOutput) (*Run, error) {
	req := map[string]any{"tool_outputs": outputs}
	var run Run
	path := "/threads/" + threadID + "/runs/" + runID + "/submit_tool_outputs"
	if err := c.do(ctx, http.MethodPost, path, req, &run); err != nil {
		return nil, err
	}
	return &run, nil
}

// ListMessages returns up to limit thread messages, newest first.
func (c *Client) ListMessages(ctx context.Context, threadID string, limit int) (*MessageList, error) {
	path := "/threads/" + threadID + "/messages?order=desc&limit=" + strconv.Itoa(limit)
	var list MessageList
	if err := c.do(ctx, http.MethodGet, path, nil, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// RetrieveAssistant fetches the remote assistant definition.
func (c *Client) RetrieveAssistant(ctx context.Context, assistantID string) (*Assistant, error) {
	var a Assistant
	if err := c.do(ctx, http.MethodGet, "/assistants/"+assistantID, nil, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// UpdateAssistant patches the remote assistant with the given fields.
func (c *Client) UpdateAssistant(ctx context.Context, assistantID string, payload map[string]any) (*Assistant, error) {
	var a Assistant
	if err := c.do(ctx, http.MethodPost, "/assistants/"+assistantID, payload, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return parseAPIError(resp.StatusCode, respBody)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("OpenAI-Beta", "assistants=v2")
	if c.project != "" {
		req.Header.Set("OpenAI-Project", c.project)
	}
	if c.organization != "" {
		req.Header.Set("OpenAI-Organization", c.organization)
	}
}

func parseAPIError(status int, body []byte) error {
	var parsed struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error.Message != "" {
		return &APIError{StatusCode: status, Message: parsed.Error.Message}
	}
	return &APIError{StatusCode: status, Message: string(body)}
}
