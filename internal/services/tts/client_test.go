package tts

import (
	"context"
	"fmt"
	"math"
	"os"
	"os/exec"
	"strings"
	"testing"
)

func TestNewCLIWithOptions(t *testing.T) {
	cli := NewCLI(WithBinary("/opt/xtts"), WithModel("xtts_v2.1"), WithMaxTextLength(100))
	if cli.binary != "/opt/xtts" {
		t.Fatalf("expected binary override, got %q", cli.binary)
	}
	if cli.model != "xtts_v2.1" {
		t.Fatalf("expected model override, got %q", cli.model)
	}
	if cli.maxTextLength != 100 {
		t.Fatalf("expected text length override, got %d", cli.maxTextLength)
	}
}

func TestSynthesizeValidatesRequest(t *testing.T) {
	cli := NewCLI(WithMaxTextLength(10))
	tests := []struct {
		name string
		req  Request
	}{
		{"empty text", Request{ReferenceAudio: "ref.wav", OutputPath: "out.wav"}},
		{"text too long", Request{Text: "this text is well past limit", ReferenceAudio: "ref.wav", OutputPath: "out.wav"}},
		{"no speaker source", Request{Text: "hi", OutputPath: "out.wav"}},
		{"no output", Request{Text: "hi", ReferenceAudio: "ref.wav"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := cli.Synthesize(context.Background(), tt.req, nil); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestSynthesizeSuccess(t *testing.T) {
	setHelperCommand(t, "success")

	cli := NewCLI()
	var updates []ProgressUpdate
	result, err := cli.Synthesize(context.Background(), Request{
		Text:           "Hello there, this is a synthesis test.",
		ReferenceAudio: "reference.wav",
		Language:       "en",
		OutputPath:     "/tmp/speech.wav",
	}, func(update ProgressUpdate) {
		updates = append(updates, update)
	})
	if err != nil {
		t.Fatalf("Synthesize returned error: %v", err)
	}
	if result.AudioPath != "/tmp/speech.wav" {
		t.Fatalf("unexpected audio path %q", result.AudioPath)
	}
	if result.DurationSeconds != 12.4 || result.SampleRate != 22050 {
		t.Fatalf("unexpected result %+v", result)
	}
	if len(updates) != 2 {
		t.Fatalf("expected 2 progress updates, got %d", len(updates))
	}
}

func TestSynthesizePrefersEmbedding(t *testing.T) {
	var capturedArgs []string
	original := commandContext
	commandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		capturedArgs = append([]string(nil), args...)
		cmd := exec.CommandContext(ctx, os.Args[0], "-test.run=TestHelperProcess")
		cmd.Env = append(os.Environ(), "GO_WANT_HELPER_PROCESS=1", "TTS_HELPER_MODE=success")
		return cmd
	}
	t.Cleanup(func() { commandContext = original })

	cli := NewCLI()
	if _, err := cli.Synthesize(context.Background(), Request{
		Text:           "hi",
		ReferenceAudio: "reference.wav",
		EmbeddingPath:  "embedding.npz",
		OutputPath:     "out.wav",
	}, nil); err != nil {
		t.Fatalf("Synthesize returned error: %v", err)
	}

	joined := strings.Join(capturedArgs, " ")
	if !strings.Contains(joined, "--embedding embedding.npz") {
		t.Fatalf("expected embedding flag in args %v", capturedArgs)
	}
	if strings.Contains(joined, "--reference") {
		t.Fatalf("reference flag should be omitted when embedding is set, got %v", capturedArgs)
	}
}

func TestSynthesizeFailure(t *testing.T) {
	setHelperCommand(t, "failure")

	cli := NewCLI()
	if _, err := cli.Synthesize(context.Background(), Request{
		Text:           "hi",
		ReferenceAudio: "reference.wav",
		OutputPath:     "out.wav",
	}, nil); err == nil {
		t.Fatal("expected synthesis failure error")
	}
}

func TestSynthesizeRequiresResultRecord(t *testing.T) {
	setHelperCommand(t, "noresult")

	cli := NewCLI()
	if _, err := cli.Synthesize(context.Background(), Request{
		Text:           "hi",
		ReferenceAudio: "reference.wav",
		OutputPath:     "out.wav",
	}, nil); err == nil {
		t.Fatal("expected error when tool exits without a result record")
	}
}

func TestEstimateDuration(t *testing.T) {
	text := strings.Repeat("word ", 150)

	if got := EstimateDuration(text, 1.0); math.Abs(got-60) > 0.01 {
		t.Fatalf("150 words at 1.0x should estimate 60s, got %.2f", got)
	}
	if got := EstimateDuration(text, 2.0); math.Abs(got-30) > 0.01 {
		t.Fatalf("150 words at 2.0x should estimate 30s, got %.2f", got)
	}
	if got := EstimateDuration("", 1.0); got != 0 {
		t.Fatalf("empty text should estimate 0s, got %.2f", got)
	}
}

func setHelperCommand(t *testing.T, mode string) {
	t.Helper()
	original := commandContext
	commandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		cmd := exec.CommandContext(ctx, os.Args[0], "-test.run=TestHelperProcess")
		cmd.Env = append(os.Environ(), "GO_WANT_HELPER_PROCESS=1", fmt.Sprintf("TTS_HELPER_MODE=%s", mode))
		return cmd
	}
	t.Cleanup(func() { commandContext = original })
}

func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}

	switch os.Getenv("TTS_HELPER_MODE") {
	case "success":
		fmt.Println(`{"type":"progress","percent":10,"message":"loading model"}`)
		fmt.Println(`{"type":"progress","percent":80,"message":"generating"}`)
		fmt.Println(`{"type":"result","duration_seconds":12.4,"sample_rate":22050,"processing_seconds":31.0}`)
		os.Exit(0)
	case "failure":
		fmt.Fprintln(os.Stderr, "synthesis failed")
		os.Exit(1)
	case "noresult":
		fmt.Println(`{"type":"progress","percent":50,"message":"generating"}`)
		os.Exit(0)
	default:
		os.Exit(0)
	}
}
