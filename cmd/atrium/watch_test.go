package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/atriumhq/atrium/internal/config"
	"github.com/atriumhq/atrium/internal/fleet"
	"github.com/atriumhq/atrium/internal/notify"
)

func TestWatchCmd_Help(t *testing.T) {
	cmd := newRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"watch", "--help"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("watch --help failed: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "live sessions") {
		t.Errorf("expected help to mention 'live sessions', got: %s", out)
	}
	if !strings.Contains(out, "--plain") {
		t.Errorf("expected help to mention '--plain' flag, got: %s", out)
	}
}

func TestWatchCmd_MissingConfig(t *testing.T) {
	cmd := newRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"watch", "--config", "/nonexistent/atrium.yaml"})

	err := cmd.Execute()
	if err == nil {
		t.Fatal("expected error for missing config file")
	}
	if !strings.Contains(err.Error(), "load config") {
		t.Errorf("error = %q, want to contain %q", err.Error(), "load config")
	}
}

func TestBuildSinks_Empty(t *testing.T) {
	cfg, err := config.Parse(nil)
	if err != nil {
		t.Fatal(err)
	}
	if sinks := buildSinks(cfg); len(sinks) != 0 {
		t.Errorf("expected no sinks from empty config, got %d", len(sinks))
	}
}

func TestBuildSinks_Configured(t *testing.T) {
	cfg, err := config.Parse([]byte(`
notify:
  slack:
    token: xoxb-test
    channel: C123
  command: "true"
`))
	if err != nil {
		t.Fatal(err)
	}
	sinks := buildSinks(cfg)
	if len(sinks) != 2 {
		t.Fatalf("expected 2 sinks (slack + command), got %d", len(sinks))
	}
	if _, ok := sinks[0].(*notify.SlackNotifier); !ok {
		t.Errorf("expected first sink to be slack, got %T", sinks[0])
	}
	if _, ok := sinks[1].(*notify.CommandNotifier); !ok {
		t.Errorf("expected second sink to be command, got %T", sinks[1])
	}
}

func TestSessionName(t *testing.T) {
	tests := []struct {
		name    string
		session fleet.Session
		want    string
	}{
		{"label wins", fleet.Session{Key: "k", Label: "builder", DisplayName: "d"}, "builder"},
		{"display name next", fleet.Session{Key: "k", DisplayName: "worker 3"}, "worker 3"},
		{"key as fallback", fleet.Session{Key: "agent:web:1"}, "agent:web:1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sessionName(tt.session); got != tt.want {
				t.Errorf("sessionName() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPrintSessions_SortedByKey(t *testing.T) {
	buf := new(bytes.Buffer)
	printSessions(buf, []fleet.Session{
		{Key: "b", TotalTokens: 1200},
		{Key: "a", TotalTokens: 45230},
	})

	out := buf.String()
	aIdx := strings.Index(out, "a")
	bIdx := strings.Index(out, "b")
	if aIdx < 0 || bIdx < 0 || aIdx > bIdx {
		t.Errorf("expected sessions sorted by key, got: %s", out)
	}
	if !strings.Contains(out, "45,230") {
		t.Errorf("expected comma-formatted token count, got: %s", out)
	}
}
