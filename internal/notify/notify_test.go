package notify

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hochfrequenz/agent-orchestrator/internal/domain"
)

type recordingNotifier struct {
	sent []Notification
	err  error
}

func (r *recordingNotifier) Send(n Notification) error {
	r.sent = append(r.sent, n)
	return r.err
}

func TestMultiNotifier_SendsToAll(t *testing.T) {
	a := &recordingNotifier{}
	b := &recordingNotifier{err: errors.New("boom")}
	c := &recordingNotifier{}

	m := NewMultiNotifier(a, b, c)
	err := m.Send(Notification{Title: "hi"})

	if err == nil {
		t.Error("error from one notifier was swallowed")
	}
	for i, n := range []*recordingNotifier{a, b, c} {
		if len(n.sent) != 1 {
			t.Errorf("notifier %d received %d notifications", i, len(n.sent))
		}
	}
}

func TestRunFinished_Completed(t *testing.T) {
	finished := time.Now()
	started := finished.Add(-3 * time.Minute)
	run := &domain.Run{
		ID:         "r1",
		Label:      "issue 42",
		Status:     domain.RunComplete,
		StartedAt:  started,
		FinishedAt: &finished,
		Result:     &domain.RunResult{Result: "done", CostUSD: 1.25, NumTurns: 17},
		PullRequest: &domain.PullRequestRef{
			Owner: "acme", Repo: "app", Number: 7,
		},
	}

	n := RunFinished(run)
	if n.Level != LevelSuccess {
		t.Errorf("level = %v, want success", n.Level)
	}
	if !strings.Contains(n.Title, "issue 42") || !strings.Contains(n.Title, "completed") {
		t.Errorf("title = %q", n.Title)
	}
	if !strings.Contains(n.Message, "3 minutes") {
		t.Errorf("message = %q, want humanized duration", n.Message)
	}
	if !strings.Contains(n.Message, "$1.25") {
		t.Errorf("message = %q, want cost", n.Message)
	}
	if n.PRURL != "https://github.com/acme/app/pull/7" {
		t.Errorf("pr url = %q", n.PRURL)
	}
}

func TestRunFinished_Failed(t *testing.T) {
	run := &domain.Run{ID: "r2", Label: "issue 9", Status: domain.RunFailed, Error: "agent crashed"}
	n := RunFinished(run)
	if n.Level != LevelError {
		t.Errorf("level = %v, want error", n.Level)
	}
	if n.Message != "agent crashed" {
		t.Errorf("message = %q", n.Message)
	}
}

func TestRunFinished_TimedOut(t *testing.T) {
	finished := time.Now()
	run := &domain.Run{ID: "r3", Label: "issue 5", Status: domain.RunTimedOut, StartedAt: finished.Add(-45 * time.Minute), FinishedAt: &finished}
	n := RunFinished(run)
	if n.Level != LevelWarning {
		t.Errorf("level = %v, want warning", n.Level)
	}
	if !strings.Contains(n.Message, "partial") {
		t.Errorf("message = %q", n.Message)
	}
}

func TestCIFailed(t *testing.T) {
	run := &domain.Run{ID: "r4", Label: "issue 3"}
	n := CIFailed(run, []string{"unit tests: 3 tests failed", "lint: errors"})
	if n.Level != LevelError {
		t.Errorf("level = %v", n.Level)
	}
	if !strings.Contains(n.Message, "unit tests: 3 tests failed") {
		t.Errorf("message = %q", n.Message)
	}
}

func TestSlackNotifier_Send(t *testing.T) {
	var got SlackMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &got)
	}))
	defer srv.Close()

	s := NewSlackNotifier(srv.URL)
	err := s.Send(Notification{Title: "Run issue 42 completed", Message: "Finished", Level: LevelSuccess})
	if err != nil {
		t.Fatal(err)
	}
	if got.Text != "Run issue 42 completed" {
		t.Errorf("text = %q", got.Text)
	}
	if len(got.Attachments) != 1 || got.Attachments[0].Color != "good" {
		t.Errorf("attachments = %+v", got.Attachments)
	}
}

func TestSlackNotifier_DisabledWithoutWebhook(t *testing.T) {
	s := NewSlackNotifier("")
	if err := s.Send(Notification{Title: "x"}); err != nil {
		t.Errorf("disabled notifier returned %v", err)
	}
}

func TestSlackNotifier_NonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	s := NewSlackNotifier(srv.URL)
	if err := s.Send(Notification{Title: "x"}); err == nil {
		t.Error("non-200 response did not surface as error")
	}
}

func TestEscapeAppleScript(t *testing.T) {
	cases := []struct{ in, want string }{
		{`plain text`, `plain text`},
		{`fix "flaky" test`, `fix \"flaky\" test`},
		{`path\to\file`, `path\\to\\file`},
		{`mix \ and "quote"`, `mix \\ and \"quote\"`},
	}
	for _, tc := range cases {
		if got := escapeAppleScript(tc.in); got != tc.want {
			t.Errorf("escapeAppleScript(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
