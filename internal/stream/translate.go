package stream

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/hochfrequenz/agent-orchestrator/internal/domain"
)

// summaryLimit bounds activity summaries and terminal error summaries
const summaryLimit = 200

// Translation is the normalized outcome of one stream message
type Translation struct {
	Activities    []domain.ActivityEntry
	SessionID     string
	SuccessResult *domain.RunResult
	ErrorMessage  string
}

// toolInputField maps a tool name to the input field that best summarizes
// the call. Tools not listed here fall back to a bare name-with-colon
// summary rather than failing.
var toolInputField = map[string]string{
	"Read":         "file_path",
	"Write":        "file_path",
	"Edit":         "file_path",
	"MultiEdit":    "file_path",
	"NotebookEdit": "notebook_path",
	"Bash":         "command",
	"Grep":         "pattern",
	"Glob":         "pattern",
	"WebSearch":    "query",
	"WebFetch":     "url",
	"Task":         "description",
}

// Translate maps one agent message into activity entries plus optional
// terminal fields. It is pure and stateless; unrecognized message shapes
// yield an empty translation, never an error.
func Translate(msg Message, workdir string) Translation {
	switch msg.Type {
	case "system":
		return translateSystem(msg)
	case "assistant":
		return translateAssistant(msg, workdir)
	case "result":
		return translateResult(msg)
	default:
		return Translation{}
	}
}

func translateSystem(msg Message) Translation {
	switch msg.Subtype {
	case "init":
		return Translation{
			SessionID: msg.SessionID,
			Activities: []domain.ActivityEntry{{
				Timestamp: time.Now(),
				Kind:      domain.ActivityStatus,
				Summary:   "Agent started",
			}},
		}

	case "task_started":
		summary := msg.Description
		if summary == "" {
			summary = msg.TaskType
		}
		if summary == "" {
			summary = "subagent"
		}
		return Translation{
			Activities: []domain.ActivityEntry{{
				Timestamp: time.Now(),
				Kind:      domain.ActivityStatus,
				Summary:   truncate(summary, summaryLimit),
				Subagent:  true,
			}},
		}

	case "task_notification":
		kind := domain.ActivityError
		verb := "failed"
		if msg.Status == "completed" {
			kind = domain.ActivityResult
			verb = "completed"
		}
		summary := fmt.Sprintf("Subagent %s", verb)
		if msg.Usage != nil {
			elapsed := time.Duration(msg.DurationMS) * time.Millisecond
			summary = fmt.Sprintf("Subagent %s in %s (%d tool uses)", verb, elapsed.Round(time.Second), msg.Usage.ToolUses)
		}
		return Translation{
			Activities: []domain.ActivityEntry{{
				Timestamp: time.Now(),
				Kind:      kind,
				Summary:   summary,
				Detail:    msg.Summary,
				Subagent:  true,
			}},
		}

	default:
		return Translation{}
	}
}

func translateAssistant(msg Message, workdir string) Translation {
	if msg.Message == nil {
		return Translation{}
	}

	subagent := msg.ParentToolUseID != ""

	var activities []domain.ActivityEntry
	for _, block := range msg.Message.Content {
		switch block.Type {
		case "tool_use":
			activities = append(activities, domain.ActivityEntry{
				Timestamp: time.Now(),
				Kind:      domain.ActivityToolUse,
				Summary:   toolSummary(block.Name, block.Input, workdir),
				Subagent:  subagent,
			})
		case "text":
			if block.Text == "" {
				continue
			}
			activities = append(activities, domain.ActivityEntry{
				Timestamp: time.Now(),
				Kind:      domain.ActivityText,
				Summary:   truncate(block.Text, summaryLimit),
				Detail:    block.Text,
				Subagent:  subagent,
			})
		}
	}

	return Translation{Activities: activities}
}

func translateResult(msg Message) Translation {
	if msg.Subtype == "success" {
		return Translation{
			Activities: []domain.ActivityEntry{{
				Timestamp: time.Now(),
				Kind:      domain.ActivityResult,
				Summary:   "Agent completed successfully",
				Detail:    msg.Result,
			}},
			SuccessResult: &domain.RunResult{
				Result:   msg.Result,
				CostUSD:  msg.TotalCostUSD,
				Duration: time.Duration(msg.DurationMS) * time.Millisecond,
				NumTurns: msg.NumTurns,
			},
		}
	}

	errMsg := joinErrors(msg.Errors)
	if errMsg == "" {
		errMsg = msg.Subtype
	}
	return Translation{
		Activities: []domain.ActivityEntry{{
			Timestamp: time.Now(),
			Kind:      domain.ActivityError,
			Summary:   truncate(errMsg, summaryLimit),
		}},
		ErrorMessage: errMsg,
	}
}

func joinErrors(errs []ResultError) string {
	var msgs []string
	for _, e := range errs {
		if e.Message != "" {
			msgs = append(msgs, e.Message)
		}
	}
	return strings.Join(msgs, "; ")
}

// toolSummary builds a "<name>: <value>" summary for a tool_use block. A
// namespaced name (provider__server__tool) is shortened to server/tool; the
// workdir prefix is stripped from path-like values for readability.
func toolSummary(name string, input json.RawMessage, workdir string) string {
	display := name
	lookup := name
	if parts := strings.Split(name, "__"); len(parts) == 3 {
		display = parts[1] + "/" + parts[2]
		lookup = parts[2]
	}

	field, ok := toolInputField[lookup]
	if !ok {
		return display + ": "
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(input, &fields); err != nil {
		return display + ": "
	}

	var value string
	if raw, ok := fields[field]; ok {
		json.Unmarshal(raw, &value)
	}
	value = stripWorkdir(value, workdir)

	return truncate(display+": "+value, summaryLimit)
}

// stripWorkdir removes the working-directory prefix exactly once when the
// value starts with it; non-prefixed values pass through untouched.
func stripWorkdir(value, workdir string) string {
	if workdir == "" || value == "" {
		return value
	}
	prefix := strings.TrimSuffix(workdir, "/") + "/"
	if strings.HasPrefix(value, prefix) {
		return value[len(prefix):]
	}
	return value
}

// truncate limits s to at most n characters
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
