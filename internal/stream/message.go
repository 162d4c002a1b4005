// Package stream decodes the agent's stream-json output and translates each
// message into normalized activity entries. Unknown message kinds are
// ignored rather than rejected so new agent versions cannot break the
// orchestrator.
package stream

import "encoding/json"

// Message is the envelope for one line of the agent's stream-json output.
// The Type/Subtype pair discriminates the known variants:
//
//	system/init, system/task_started, system/task_notification,
//	assistant, result/success, result/<anything-else>
type Message struct {
	Type            string `json:"type"`
	Subtype         string `json:"subtype,omitempty"`
	SessionID       string `json:"session_id,omitempty"`
	ParentToolUseID string `json:"parent_tool_use_id,omitempty"`

	// system/task_started and system/task_notification
	TaskID      string `json:"task_id,omitempty"`
	TaskType    string `json:"task_type,omitempty"`
	Description string `json:"description,omitempty"`
	Status      string `json:"status,omitempty"`
	Summary     string `json:"summary,omitempty"`

	// assistant
	Message *AssistantMessage `json:"message,omitempty"`

	// result
	Result       string        `json:"result,omitempty"`
	IsError      bool          `json:"is_error,omitempty"`
	Errors       []ResultError `json:"errors,omitempty"`
	TotalCostUSD float64       `json:"total_cost_usd,omitempty"`
	DurationMS   int64         `json:"duration_ms,omitempty"`
	NumTurns     int           `json:"num_turns,omitempty"`

	Usage *Usage `json:"usage,omitempty"`
}

// AssistantMessage is one assistant turn carrying structured content blocks
type AssistantMessage struct {
	Role    string         `json:"role,omitempty"`
	Content []ContentBlock `json:"content"`
}

// ContentBlock is one block inside an assistant turn
type ContentBlock struct {
	Type  string          `json:"type"`
	Text  string          `json:"text,omitempty"`
	Name  string          `json:"name,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`
}

// ResultError is one structured error attached to a terminal result
type ResultError struct {
	Message string `json:"message"`
}

// Usage carries execution counters attached to results and notifications
type Usage struct {
	InputTokens  int `json:"input_tokens,omitempty"`
	OutputTokens int `json:"output_tokens,omitempty"`
	ToolUses     int `json:"tool_uses,omitempty"`
}

// ParseLine decodes one stream-json line. A line that is not valid JSON
// returns ok=false; callers skip it.
func ParseLine(line []byte) (Message, bool) {
	var msg Message
	if err := json.Unmarshal(line, &msg); err != nil {
		return Message{}, false
	}
	return msg, true
}
