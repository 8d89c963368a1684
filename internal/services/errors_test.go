package services

import (
	"errors"
	"strings"
	"testing"
)

func TestWrapClassifiesWithMarker(t *testing.T) {
	err := Wrap(ErrResourceExhausted, "generate_lipsync", "admit", "need 5120 MB", nil)

	if !errors.Is(err, ErrResourceExhausted) {
		t.Fatal("wrapped error lost its marker")
	}
	if errors.Is(err, ErrValidation) {
		t.Fatal("wrapped error matches an unrelated marker")
	}
	want := "generate_lipsync: admit: need 5120 MB"
	if !strings.Contains(err.Error(), want) {
		t.Fatalf("detail missing from %q", err.Error())
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("exit status 137")
	err := Wrap(ErrExternalTool, "synthesize_speech", "run", "tts crashed", cause)

	if !errors.Is(err, ErrExternalTool) {
		t.Fatal("marker not matched")
	}
	if !errors.Is(err, cause) {
		t.Fatal("cause not matched through the wrap")
	}
}

func TestWrapNilMarkerDefaultsToStageExecution(t *testing.T) {
	err := Wrap(nil, "", "encode", "container mux failed", nil)
	if !errors.Is(err, ErrStageExecution) {
		t.Fatalf("expected stage execution classification, got %v", err)
	}
}

func TestWrapEmptyDetail(t *testing.T) {
	err := Wrap(ErrPersistence, "", "", "", nil)
	if !strings.Contains(err.Error(), "service failure") {
		t.Fatalf("expected placeholder detail, got %q", err.Error())
	}
}

func TestRemedy(t *testing.T) {
	exhausted := Wrap(ErrResourceExhausted, "load", "admit", "no headroom", nil)
	if got := Remedy(exhausted); !strings.Contains(got, "free accelerator memory") {
		t.Fatalf("unexpected remedy %q", got)
	}

	invalid := Wrap(ErrValidation, "validate_avatar", "detect", "no face found", nil)
	if got := Remedy(invalid); !strings.Contains(got, "not retried") {
		t.Fatalf("unexpected remedy %q", got)
	}

	if got := Remedy(errors.New("plain")); got != "" {
		t.Fatalf("expected no remedy for plain errors, got %q", got)
	}
}
