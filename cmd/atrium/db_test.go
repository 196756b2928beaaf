package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTestFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0644)
}

// sqliteConfig writes a config pointing at a sqlite file under dir and
// returns the config path and the database path.
func sqliteConfig(t *testing.T, dir string) (string, string) {
	t.Helper()
	dbPath := filepath.Join(dir, "atrium.db")
	cfgPath := filepath.Join(dir, "atrium.yaml")
	cfg := fmt.Sprintf("server:\n  db:\n    path: %s\n", dbPath)
	if err := writeTestFile(cfgPath, cfg); err != nil {
		t.Fatal(err)
	}
	return cfgPath, dbPath
}

func TestDBCmd_Help(t *testing.T) {
	cmd := newRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"db", "--help"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("db --help failed: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "Database management") {
		t.Errorf("expected help to mention 'Database management', got: %s", out)
	}
	if !strings.Contains(out, "init") {
		t.Errorf("expected help to list 'init' subcommand, got: %s", out)
	}
}

func TestDBInitCmd_MissingConfig(t *testing.T) {
	cmd := newRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"db", "init", "--config", "/nonexistent/atrium.yaml"})

	err := cmd.Execute()
	if err == nil {
		t.Fatal("expected error for missing config file")
	}
	if !strings.Contains(err.Error(), "load config") {
		t.Errorf("error = %q, want to contain %q", err.Error(), "load config")
	}
}

func TestDBInitCmd_InvalidConfig(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "atrium.yaml")
	if err := writeTestFile(cfgPath, "server:\n  db:\n    driver: postgres\n"); err != nil {
		t.Fatal(err)
	}

	cmd := newRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"db", "init", "--config", cfgPath})

	err := cmd.Execute()
	if err == nil {
		t.Fatal("expected error for invalid config")
	}
	if !strings.Contains(err.Error(), "load config") {
		t.Errorf("error = %q, want to contain %q", err.Error(), "load config")
	}
}

func TestDBInitCmd_SQLite(t *testing.T) {
	dir := t.TempDir()
	cfgPath, dbPath := sqliteConfig(t, dir)

	cmd := newRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"db", "init", "--config", cfgPath})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("db init failed: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "initialized successfully") {
		t.Errorf("expected success message, got: %s", out)
	}
	if !strings.Contains(out, "Headquarters room ready") {
		t.Errorf("expected HQ seed message, got: %s", out)
	}
	if _, err := os.Stat(dbPath); err != nil {
		t.Errorf("expected database file at %s: %v", dbPath, err)
	}
}

func TestDBInitCmd_Idempotent(t *testing.T) {
	dir := t.TempDir()
	cfgPath, _ := sqliteConfig(t, dir)

	for i := 0; i < 2; i++ {
		cmd := newRootCmd()
		buf := new(bytes.Buffer)
		cmd.SetOut(buf)
		cmd.SetArgs([]string{"db", "init", "--config", cfgPath})
		if err := cmd.Execute(); err != nil {
			t.Fatalf("db init failed: %v", err)
		}
	}
}

func TestDBResetCmd_Aborted(t *testing.T) {
	dir := t.TempDir()
	cfgPath, _ := sqliteConfig(t, dir)

	cmd := newRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetIn(strings.NewReader("no\n"))
	cmd.SetArgs([]string{"db", "reset", "--config", cfgPath})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("db reset failed: %v", err)
	}
	if !strings.Contains(buf.String(), "Aborted.") {
		t.Errorf("expected abort message, got: %s", buf.String())
	}
}

func TestDBResetCmd_ConfirmedWithYes(t *testing.T) {
	dir := t.TempDir()
	cfgPath, dbPath := sqliteConfig(t, dir)

	// Init first so there is something to reset.
	initCmd := newRootCmd()
	initCmd.SetOut(new(bytes.Buffer))
	initCmd.SetArgs([]string{"db", "init", "--config", cfgPath})
	if err := initCmd.Execute(); err != nil {
		t.Fatalf("db init failed: %v", err)
	}

	cmd := newRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"db", "reset", "--config", cfgPath, "--yes"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("db reset failed: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "reset successfully") {
		t.Errorf("expected reset message, got: %s", out)
	}
	if _, err := os.Stat(dbPath); err != nil {
		t.Errorf("expected database re-created at %s: %v", dbPath, err)
	}
}

func TestDBResetCmd_TypedConfirmation(t *testing.T) {
	dir := t.TempDir()
	cfgPath, _ := sqliteConfig(t, dir)

	cmd := newRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetIn(strings.NewReader("yes\n"))
	cmd.SetArgs([]string{"db", "reset", "--config", cfgPath})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("db reset failed: %v", err)
	}
	if !strings.Contains(buf.String(), "reset successfully") {
		t.Errorf("expected reset message, got: %s", buf.String())
	}
}
