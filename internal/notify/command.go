package notify

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// CommandNotifier runs a shell command template for each event, e.g.
// "notify-send 'Atrium' '{{.Title}}'". Inside tmux it additionally shows
// a status-line message.
type CommandNotifier struct {
	Command string
}

// NewCommand creates a CommandNotifier.
func NewCommand(command string) (*CommandNotifier, error) {
	if command == "" {
		return nil, fmt.Errorf("notify: command template is required")
	}
	return &CommandNotifier{Command: command}, nil
}

// Notify runs the templated shell command.
func (n *CommandNotifier) Notify(ctx context.Context, evt Event) error {
	cmdStr := templateEvent(n.Command, evt)
	cmd := exec.CommandContext(ctx, "sh", "-c", cmdStr)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("notify: command failed: %v: %s", err, strings.TrimSpace(string(out)))
	}

	if os.Getenv("TMUX") != "" {
		tmuxMsg := evt.Title
		if evt.SessionKey != "" {
			tmuxMsg = evt.SessionKey + ": " + evt.Title
		}
		// Status-line only, failure here is not worth surfacing.
		exec.CommandContext(ctx, "tmux", "display-message", tmuxMsg).Run()
	}
	return nil
}

// templateEvent replaces placeholders in the command template with event values.
func templateEvent(command string, evt Event) string {
	r := strings.NewReplacer(
		"{{.Title}}", evt.Title,
		"{{.Body}}", evt.Body,
		"{{.Kind}}", evt.Kind,
		"{{.SessionKey}}", evt.SessionKey,
		"{{.Room}}", evt.Room,
	)
	return r.Replace(command)
}
