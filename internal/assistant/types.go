package assistant

// Run status values. The remote service owns the run state machine; we only
// read the status and answer tool-output requests.
const (
	StatusQueued         = "queued"
	StatusInProgress     = "in_progress"
	StatusCancelling     = "cancelling"
	StatusRequiresAction = "requires_action"
	StatusCompleted      = "completed"
	StatusFailed         = "failed"
	StatusCancelled      = "cancelled"
	StatusExpired        = "expired"
	StatusIncomplete     = "incomplete"
)

// Thread is a remote conversation container.
type Thread struct {
	ID string `json:"id"`
}

// Run is one execution of the assistant against a thread.
type Run struct {
	ID             string          `json:"id"`
	ThreadID       string          `json:"thread_id"`
	Status         string          `json:"status"`
	RequiredAction *RequiredAction `json:"required_action,omitempty"`
	LastError      *RunError       `json:"last_error,omitempty"`
}

// Terminal reports whether the run has reached a final status.
func (r *Run) Terminal() bool {
	switch r.Status {
	case StatusCompleted, StatusFailed, StatusCancelled, StatusExpired, StatusIncomplete:
		return true
	}
	return false
}

// RunError is the remote-provided failure detail on a terminal run.
type RunError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// RequiredAction is present while a run waits for tool outputs.
type RequiredAction struct {
	Type              string             `json:"type"`
	SubmitToolOutputs *SubmitToolOutputs `json:"submit_tool_outputs,omitempty"`
}

// SubmitToolOutputs carries the tool calls the run is blocked on.
type SubmitToolOutputs struct {
	ToolCalls []ToolCall `json:"tool_calls"`
}

// ToolCall is a structured request to execute a named local function.
type ToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function FunctionCall `json:"function"`
}

// FunctionCall names the function and carries its JSON-encoded arguments.
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ToolOutput answers one tool call.
type ToolOutput struct {
	ToolCallID string `json:"tool_call_id"`
	Output     string `json:"output"`
}

// CreateRunRequest creates a run on a thread.
type CreateRunRequest struct {
	AssistantID            string `json:"assistant_id"`
	AdditionalInstructions string `json:"additional_instructions,omitempty"`
	// ToolChoice is either the string "none"/"auto" or a forced
	// {"type":"function","function":{"name":...}} object.
	ToolChoice any `json:"tool_choice,omitempty"`
}

// ForcedFunction builds a tool_choice value forcing one named function.
func ForcedFunction(name string) any {
	return map[string]any{
		"type":     "function",
		"function": map[string]string{"name": name},
	}
}

// Message is a thread message; assistant replies carry the run they belong to.
type Message struct {
	ID      string        `json:"id"`
	Role    string        `json:"role"`
	RunID   string        `json:"run_id,omitempty"`
	Content []ContentPart `json:"content"`
}

// ContentPart is one segment of a message; only text parts are consumed.
type ContentPart struct {
	Type string    `json:"type"`
	Text *TextPart `json:"text,omitempty"`
}

// TextPart holds the text value of a text content part.
type TextPart struct {
	Value string `json:"value"`
}

// MessageList is a page of thread messages.
type MessageList struct {
	Data []Message `json:"data"`
}

// Assistant is the remote assistant definition as the API reports it.
type Assistant struct {
	ID             string            `json:"id"`
	Name           string            `json:"name"`
	Description    string            `json:"description"`
	Instructions   string            `json:"instructions"`
	Model          string            `json:"model"`
	Temperature    *float64          `json:"temperature,omitempty"`
	TopP           *float64          `json:"top_p,omitempty"`
	ResponseFormat any               `json:"response_format,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	Tools          []Tool            `json:"tools,omitempty"`
}

// Tool is an assistant tool definition.
type Tool struct {
	Type     string              `json:"type"`
	Function *FunctionDefinition `json:"function,omitempty"`
}

// FunctionDefinition describes a callable function tool.
type FunctionDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}
