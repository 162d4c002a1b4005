package stream

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hochfrequenz/agent-orchestrator/internal/domain"
)

func parse(t *testing.T, line string) Message {
	t.Helper()
	msg, ok := ParseLine([]byte(line))
	require.True(t, ok, "line should parse: %s", line)
	return msg
}

func TestTranslate_Init(t *testing.T) {
	msg := parse(t, `{"type":"system","subtype":"init","session_id":"abc-123"}`)
	tr := Translate(msg, "")

	require.Len(t, tr.Activities, 1)
	assert.Equal(t, domain.ActivityStatus, tr.Activities[0].Kind)
	assert.Equal(t, "Agent started", tr.Activities[0].Summary)
	assert.Equal(t, "abc-123", tr.SessionID)
}

func TestTranslate_UnknownShapesAreIgnored(t *testing.T) {
	lines := []string{
		`{"type":"rate_limit_update","remaining":4}`,
		`{"type":"system","subtype":"compact_boundary"}`,
		`{"type":"user","message":{"content":"hi"}}`,
		`{}`,
	}
	for _, line := range lines {
		msg := parse(t, line)
		tr := Translate(msg, "/work")
		assert.Empty(t, tr.Activities, "line: %s", line)
		assert.Nil(t, tr.SuccessResult, "line: %s", line)
		assert.Empty(t, tr.ErrorMessage, "line: %s", line)
	}
}

func TestTranslate_TaskStarted(t *testing.T) {
	tests := []struct {
		name string
		line string
		want string
	}{
		{"description", `{"type":"system","subtype":"task_started","description":"Explore the codebase"}`, "Explore the codebase"},
		{"task type fallback", `{"type":"system","subtype":"task_started","task_type":"explore"}`, "explore"},
		{"generic fallback", `{"type":"system","subtype":"task_started"}`, "subagent"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := Translate(parse(t, tt.line), "")
			require.Len(t, tr.Activities, 1)
			assert.Equal(t, domain.ActivityStatus, tr.Activities[0].Kind)
			assert.Equal(t, tt.want, tr.Activities[0].Summary)
			assert.True(t, tr.Activities[0].Subagent)
		})
	}
}

func TestTranslate_TaskNotification(t *testing.T) {
	msg := parse(t, `{"type":"system","subtype":"task_notification","status":"completed",
		"summary":"Found 3 call sites","duration_ms":32000,"usage":{"tool_uses":14}}`)
	tr := Translate(msg, "")

	require.Len(t, tr.Activities, 1)
	entry := tr.Activities[0]
	assert.Equal(t, domain.ActivityResult, entry.Kind)
	assert.True(t, entry.Subagent)
	assert.Contains(t, entry.Summary, "32s")
	assert.Contains(t, entry.Summary, "14 tool uses")
	assert.Equal(t, "Found 3 call sites", entry.Detail)

	failed := parse(t, `{"type":"system","subtype":"task_notification","status":"failed"}`)
	tr = Translate(failed, "")
	require.Len(t, tr.Activities, 1)
	assert.Equal(t, domain.ActivityError, tr.Activities[0].Kind)
	assert.Equal(t, "Subagent failed", tr.Activities[0].Summary)
}

func TestTranslate_ToolUseSummaries(t *testing.T) {
	tests := []struct {
		name string
		line string
		want string
	}{
		{
			"file tool strips workdir",
			`{"type":"assistant","message":{"content":[{"type":"tool_use","name":"Read","input":{"file_path":"/work/src/app.ts"}}]}}`,
			"Read: src/app.ts",
		},
		{
			"non-prefixed path untouched",
			`{"type":"assistant","message":{"content":[{"type":"tool_use","name":"Edit","input":{"file_path":"/etc/hosts"}}]}}`,
			"Edit: /etc/hosts",
		},
		{
			"shell tool shows command",
			`{"type":"assistant","message":{"content":[{"type":"tool_use","name":"Bash","input":{"command":"go test ./..."}}]}}`,
			"Bash: go test ./...",
		},
		{
			"search tool shows pattern",
			`{"type":"assistant","message":{"content":[{"type":"tool_use","name":"Grep","input":{"pattern":"func main"}}]}}`,
			"Grep: func main",
		},
		{
			"namespaced name shortened",
			`{"type":"assistant","message":{"content":[{"type":"tool_use","name":"mcp__github__search","input":{}}]}}`,
			"github/search: ",
		},
		{
			"unknown tool falls back to bare name",
			`{"type":"assistant","message":{"content":[{"type":"tool_use","name":"FrobnicateWidget","input":{"x":1}}]}}`,
			"FrobnicateWidget: ",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := Translate(parse(t, tt.line), "/work")
			require.Len(t, tr.Activities, 1)
			assert.Equal(t, domain.ActivityToolUse, tr.Activities[0].Kind)
			assert.Equal(t, tt.want, tr.Activities[0].Summary)
		})
	}
}

func TestStripWorkdir_ExactlyOnce(t *testing.T) {
	got := stripWorkdir("/work/work/file.go", "/work")
	assert.Equal(t, "work/file.go", got)
}

func TestTranslate_TextBlockTruncation(t *testing.T) {
	long := strings.Repeat("x", 500)
	msg := Message{
		Type: "assistant",
		Message: &AssistantMessage{Content: []ContentBlock{
			{Type: "text", Text: long},
		}},
	}
	tr := Translate(msg, "")

	require.Len(t, tr.Activities, 1)
	assert.Equal(t, domain.ActivityText, tr.Activities[0].Kind)
	assert.Len(t, tr.Activities[0].Summary, 200)
	assert.Equal(t, long, tr.Activities[0].Detail)
}

func TestTranslate_SubagentFlagInherited(t *testing.T) {
	msg := parse(t, `{"type":"assistant","parent_tool_use_id":"toolu_01",
		"message":{"content":[{"type":"text","text":"checking"},{"type":"tool_use","name":"Bash","input":{"command":"ls"}}]}}`)
	tr := Translate(msg, "")

	require.Len(t, tr.Activities, 2)
	for _, a := range tr.Activities {
		assert.True(t, a.Subagent)
	}
}

func TestTranslate_ResultSuccess(t *testing.T) {
	msg := parse(t, `{"type":"result","subtype":"success","result":"done",
		"total_cost_usd":0.42,"duration_ms":61000,"num_turns":17}`)
	tr := Translate(msg, "")

	require.Len(t, tr.Activities, 1)
	assert.Equal(t, domain.ActivityResult, tr.Activities[0].Kind)
	assert.Equal(t, "Agent completed successfully", tr.Activities[0].Summary)
	require.NotNil(t, tr.SuccessResult)
	assert.Equal(t, "done", tr.SuccessResult.Result)
	assert.Equal(t, 0.42, tr.SuccessResult.CostUSD)
	assert.Equal(t, 17, tr.SuccessResult.NumTurns)
}

func TestTranslate_ResultError(t *testing.T) {
	msg := parse(t, `{"type":"result","subtype":"error_during_execution","is_error":true,
		"errors":[{"message":"tool crashed"},{"message":"out of budget"}]}`)
	tr := Translate(msg, "")

	require.Len(t, tr.Activities, 1)
	assert.Equal(t, domain.ActivityError, tr.Activities[0].Kind)
	assert.Equal(t, "tool crashed; out of budget", tr.ErrorMessage)

	// No structured errors: fall back to the subtype
	msg = parse(t, `{"type":"result","subtype":"error_max_turns","is_error":true}`)
	tr = Translate(msg, "")
	assert.Equal(t, "error_max_turns", tr.ErrorMessage)
}

func TestTranslate_ResultErrorSummaryTruncated(t *testing.T) {
	long := strings.Repeat("e", 400)
	b, _ := json.Marshal(Message{
		Type:    "result",
		Subtype: "error_during_execution",
		Errors:  []ResultError{{Message: long}},
	})
	msg := parse(t, string(b))
	tr := Translate(msg, "")

	require.Len(t, tr.Activities, 1)
	assert.Len(t, tr.Activities[0].Summary, 200)
	assert.Equal(t, long, tr.ErrorMessage)
}

func TestParseLine_Garbage(t *testing.T) {
	_, ok := ParseLine([]byte("not json at all"))
	assert.False(t, ok)
}
