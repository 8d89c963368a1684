package deps

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCheckBinaries(t *testing.T) {
	dir := t.TempDir()
	tool := filepath.Join(dir, "faketool")
	if err := os.WriteFile(tool, []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatalf("write tool: %v", err)
	}
	t.Setenv("PATH", dir)

	statuses := CheckBinaries([]Requirement{
		{Name: "Fake", Command: "faketool", Description: "present"},
		{Name: "Gone", Command: "definitely-not-installed", Description: "absent"},
		{Name: "Blank", Command: "  ", Description: "unset"},
		{Name: "Extra", Command: "also-missing", Optional: true},
	})
	if len(statuses) != 4 {
		t.Fatalf("expected 4 statuses, got %d", len(statuses))
	}
	if !statuses[0].Available || statuses[0].Detail != tool {
		t.Fatalf("expected available at %s, got %+v", tool, statuses[0])
	}
	if statuses[1].Available || statuses[1].Detail == "" {
		t.Fatalf("expected unavailable with detail, got %+v", statuses[1])
	}
	if statuses[2].Available || statuses[2].Detail != "command not configured" {
		t.Fatalf("expected unconfigured detail, got %+v", statuses[2])
	}

	missing := MissingRequired(statuses)
	if len(missing) != 2 || missing[0] != "Gone" || missing[1] != "Blank" {
		t.Fatalf("unexpected missing set %v", missing)
	}
}
