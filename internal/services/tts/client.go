// Package tts wraps the external speech synthesis CLI. The tool loads the
// XTTS model, conditions on a stored voice profile, and writes a WAV file;
// this package owns the process plumbing and result parsing.
package tts

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

var commandContext = exec.CommandContext

// Request describes one synthesis run.
type Request struct {
	Text string
	// ReferenceAudio is the profile's reference recording; the tool derives
	// speaker conditioning from it when no embedding is available.
	ReferenceAudio string
	// EmbeddingPath optionally points at a precomputed speaker embedding.
	EmbeddingPath string
	Language      string
	Speed         float64
	OutputPath    string
}

// Result reports the synthesized audio.
type Result struct {
	AudioPath         string
	DurationSeconds   float64
	SampleRate        int
	ProcessingSeconds float64
}

// ProgressUpdate captures synthesis progress events.
type ProgressUpdate struct {
	Percent float64
	Message string
}

// Client defines speech synthesis behaviour.
type Client interface {
	Synthesize(ctx context.Context, req Request, progress func(ProgressUpdate)) (Result, error)
}

// Option configures the CLI client.
type Option func(*CLI)

// WithBinary overrides the default binary name.
func WithBinary(binary string) Option {
	return func(c *CLI) {
		if binary != "" {
			c.binary = binary
		}
	}
}

// WithModel overrides the model identifier passed to the tool.
func WithModel(model string) Option {
	return func(c *CLI) {
		if model != "" {
			c.model = model
		}
	}
}

// WithMaxTextLength overrides the input length ceiling.
func WithMaxTextLength(limit int) Option {
	return func(c *CLI) {
		if limit > 0 {
			c.maxTextLength = limit
		}
	}
}

// CLI wraps the xtts command-line synthesizer.
type CLI struct {
	binary        string
	model         string
	maxTextLength int
}

// NewCLI constructs a CLI client using defaults.
func NewCLI(opts ...Option) *CLI {
	cli := &CLI{binary: "xtts", model: "xtts_v2", maxTextLength: 5000}
	for _, opt := range opts {
		opt(cli)
	}
	return cli
}

// Synthesize launches the synthesis tool and returns the result parsed
// from its JSON output stream.
func (c *CLI) Synthesize(ctx context.Context, req Request, progress func(ProgressUpdate)) (Result, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return Result{}, errors.New("text required")
	}
	if len(req.Text) > c.maxTextLength {
		return Result{}, fmt.Errorf("text too long: %d characters (maximum %d)", len(req.Text), c.maxTextLength)
	}
	if req.ReferenceAudio == "" && req.EmbeddingPath == "" {
		return Result{}, errors.New("reference audio or speaker embedding required")
	}
	if req.OutputPath == "" {
		return Result{}, errors.New("output path required")
	}

	speed := req.Speed
	if speed <= 0 {
		speed = 1.0
	}
	args := []string{
		"synthesize",
		"--model", c.model,
		"--language", req.Language,
		"--speed", strconv.FormatFloat(speed, 'f', 2, 64),
		"--output", req.OutputPath,
		"--json",
	}
	if req.EmbeddingPath != "" {
		args = append(args, "--embedding", req.EmbeddingPath)
	} else {
		args = append(args, "--reference", req.ReferenceAudio)
	}

	cmd := commandContext(ctx, c.binary, args...) //nolint:gosec
	cmd.Stdin = strings.NewReader(req.Text)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return Result{}, fmt.Errorf("stdout pipe: %w", err)
	}
	cmd.Stderr = cmd.Stdout
	if err := cmd.Start(); err != nil {
		return Result{}, fmt.Errorf("start synthesis tool: %w", err)
	}

	result := Result{AudioPath: req.OutputPath}
	sawResult := false
	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		var payload struct {
			Type              string  `json:"type"`
			Percent           float64 `json:"percent"`
			Message           string  `json:"message"`
			DurationSeconds   float64 `json:"duration_seconds"`
			SampleRate        int     `json:"sample_rate"`
			ProcessingSeconds float64 `json:"processing_seconds"`
		}
		if err := json.Unmarshal(scanner.Bytes(), &payload); err != nil {
			continue
		}
		switch payload.Type {
		case "result":
			result.DurationSeconds = payload.DurationSeconds
			result.SampleRate = payload.SampleRate
			result.ProcessingSeconds = payload.ProcessingSeconds
			sawResult = true
		default:
			if progress != nil {
				progress(ProgressUpdate{Percent: payload.Percent, Message: payload.Message})
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return Result{}, fmt.Errorf("read synthesis output: %w", err)
	}
	if err := cmd.Wait(); err != nil {
		return Result{}, fmt.Errorf("speech synthesis failed: %w", err)
	}
	if !sawResult {
		return Result{}, errors.New("synthesis tool produced no result record")
	}
	return result, nil
}

// EstimateDuration predicts speech length for text at the given speed.
// Uses the 150 words-per-minute heuristic (2.5 words per second).
func EstimateDuration(text string, speed float64) float64 {
	words := len(strings.Fields(text))
	base := float64(words) / 2.5
	if speed <= 0 {
		speed = 1.0
	}
	return base / speed
}

var _ Client = (*CLI)(nil)
