package notify

import (
	"os/exec"
	"runtime"
	"strings"
)

// DesktopNotifier shows desktop notifications on the operator's machine
type DesktopNotifier struct {
	enabled bool
}

// NewDesktopNotifier creates a desktop notifier
func NewDesktopNotifier(enabled bool) *DesktopNotifier {
	return &DesktopNotifier{enabled: enabled}
}

// Send shows a desktop notification
func (d *DesktopNotifier) Send(n Notification) error {
	if !d.enabled {
		return nil
	}

	switch runtime.GOOS {
	case "darwin":
		script := `display notification "` + escapeAppleScript(n.Message) + `" with title "` + escapeAppleScript(n.Title) + `"`
		return exec.Command("osascript", "-e", script).Run()
	case "linux":
		return exec.Command("notify-send", n.Title, n.Message).Run()
	default:
		return nil
	}
}

// escapeAppleScript escapes a value for an AppleScript string literal. Run
// labels carry issue titles, which can contain quotes.
func escapeAppleScript(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `"`, `\"`)
}
