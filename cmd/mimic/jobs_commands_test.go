package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTestConfig(t *testing.T) string {
	t.Helper()

	base := t.TempDir()
	path := filepath.Join(base, "config.toml")
	content := fmt.Sprintf(`[paths]
storage_dir = %q
scratch_dir = %q
log_dir = %q
`,
		filepath.Join(base, "storage"),
		filepath.Join(base, "scratch"),
		filepath.Join(base, "logs"),
	)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func runCommand(t *testing.T, configPath string, args ...string) (string, error) {
	t.Helper()

	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--config", configPath}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestSubmitListShowCancel(t *testing.T) {
	configPath := writeTestConfig(t)

	out, err := runCommand(t, configPath, "submit", "pipeline",
		"--text", "Hello there",
		"--profile", "vp-0a1b2c3d",
		"--avatar", "/assets/portrait.png",
		"--output", "/out/hello.mp4",
	)
	if err != nil {
		t.Fatalf("submit: %v (%s)", err, out)
	}
	if !strings.Contains(out, "Queued job-") {
		t.Fatalf("unexpected submit output %q", out)
	}
	jobID := strings.Fields(out)[1]

	out, err = runCommand(t, configPath, "jobs", "list")
	if err != nil {
		t.Fatalf("jobs list: %v (%s)", err, out)
	}
	if !strings.Contains(out, jobID) || !strings.Contains(out, "pending") {
		t.Fatalf("job missing from list output:\n%s", out)
	}

	out, err = runCommand(t, configPath, "jobs", "show", jobID)
	if err != nil {
		t.Fatalf("jobs show: %v (%s)", err, out)
	}
	if !strings.Contains(out, `"status": "pending"`) || !strings.Contains(out, `"full_pipeline"`) {
		t.Fatalf("unexpected show output:\n%s", out)
	}

	out, err = runCommand(t, configPath, "jobs", "cancel", jobID)
	if err != nil {
		t.Fatalf("jobs cancel: %v (%s)", err, out)
	}
	if !strings.Contains(out, "Cancelled "+jobID) {
		t.Fatalf("unexpected cancel output %q", out)
	}

	// A second cancel reports the terminal state instead of succeeding.
	if _, err = runCommand(t, configPath, "jobs", "cancel", jobID); err == nil {
		t.Fatal("expected error cancelling a cancelled job")
	}

	out, err = runCommand(t, configPath, "jobs", "stats")
	if err != nil {
		t.Fatalf("jobs stats: %v (%s)", err, out)
	}
	if !strings.Contains(out, "cancelled") {
		t.Fatalf("stats missing cancelled row:\n%s", out)
	}
}

func TestSubmitValidatesParameters(t *testing.T) {
	configPath := writeTestConfig(t)

	if _, err := runCommand(t, configPath, "submit", "pipeline",
		"--text", "   ",
		"--profile", "vp-0a1b2c3d",
		"--avatar", "/assets/portrait.png",
		"--output", "/out/x.mp4",
	); err == nil {
		t.Fatal("expected validation error for blank text")
	}
}

func TestJobsShowMissing(t *testing.T) {
	configPath := writeTestConfig(t)

	_, err := runCommand(t, configPath, "jobs", "show", "job-00000000000000000000000000")
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Fatalf("expected not-found error, got %v", err)
	}
}

func TestJobsListEmpty(t *testing.T) {
	configPath := writeTestConfig(t)

	out, err := runCommand(t, configPath, "jobs", "list")
	if err != nil {
		t.Fatalf("jobs list: %v", err)
	}
	if !strings.Contains(out, "Queue is empty") {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestConfigInitAndShow(t *testing.T) {
	base := t.TempDir()
	configPath := filepath.Join(base, "config.toml")

	out, err := runCommand(t, configPath, "config", "init")
	if err != nil {
		t.Fatalf("config init: %v (%s)", err, out)
	}
	if _, err := os.Stat(configPath); err != nil {
		t.Fatalf("sample config not written: %v", err)
	}

	// init refuses to clobber without --force
	if _, err := runCommand(t, configPath, "config", "init"); err == nil {
		t.Fatal("expected error for existing config")
	}
	if _, err := runCommand(t, configPath, "config", "init", "--force"); err != nil {
		t.Fatalf("config init --force: %v", err)
	}

	out, err = runCommand(t, writeTestConfig(t), "config", "show")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	if !strings.Contains(out, "[paths]") || !strings.Contains(out, "[vram]") {
		t.Fatalf("unexpected show output:\n%s", out)
	}
}
