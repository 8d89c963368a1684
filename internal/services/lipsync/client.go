// Package lipsync wraps the external MuseTalk-style renderer that turns a
// validated portrait plus a speech track into a talking-head video.
package lipsync

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
)

var commandContext = exec.CommandContext

// Request describes one render.
type Request struct {
	AvatarImage string
	AudioPath   string
	OutputPath  string
	// Quality is a preset name (high, medium, low) controlling batch sizes
	// inside the renderer; frame rate is fixed per preset.
	Quality string
	FPS     int
}

// Result reports the rendered video.
type Result struct {
	VideoPath         string
	DurationSeconds   float64
	FrameCount        int
	Width             int
	Height            int
	ProcessingSeconds float64
}

// ProgressUpdate captures render progress events.
type ProgressUpdate struct {
	Percent float64
	Message string
}

// Client defines lip-sync rendering behaviour.
type Client interface {
	Render(ctx context.Context, req Request, progress func(ProgressUpdate)) (Result, error)
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

// CLI wraps the musetalk command-line renderer.
type CLI struct {
	binary string
}

// NewCLI constructs a CLI client using defaults.
func NewCLI(opts ...Option) *CLI {
	cli := &CLI{binary: "musetalk"}
	for _, opt := range opts {
		opt(cli)
	}
	return cli
}

// Render launches the renderer and returns the result parsed from its JSON
// output stream.
func (c *CLI) Render(ctx context.Context, req Request, progress func(ProgressUpdate)) (Result, error) {
	if req.AvatarImage == "" {
		return Result{}, errors.New("avatar image required")
	}
	if req.AudioPath == "" {
		return Result{}, errors.New("audio path required")
	}
	if req.OutputPath == "" {
		return Result{}, errors.New("output path required")
	}

	quality := req.Quality
	if quality == "" {
		quality = "high"
	}
	fps := req.FPS
	if fps <= 0 {
		fps = 25
	}
	args := []string{
		"generate",
		"--avatar", req.AvatarImage,
		"--audio", req.AudioPath,
		"--output", req.OutputPath,
		"--quality", quality,
		"--fps", strconv.Itoa(fps),
		"--json",
	}
	cmd := commandContext(ctx, c.binary, args...) //nolint:gosec
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return Result{}, fmt.Errorf("stdout pipe: %w", err)
	}
	cmd.Stderr = cmd.Stdout
	if err := cmd.Start(); err != nil {
		return Result{}, fmt.Errorf("start lip-sync renderer: %w", err)
	}

	result := Result{VideoPath: req.OutputPath}
	sawResult := false
	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		var payload struct {
			Type              string  `json:"type"`
			Percent           float64 `json:"percent"`
			Message           string  `json:"message"`
			DurationSeconds   float64 `json:"duration_seconds"`
			FrameCount        int     `json:"frame_count"`
			Width             int     `json:"width"`
			Height            int     `json:"height"`
			ProcessingSeconds float64 `json:"processing_seconds"`
		}
		if err := json.Unmarshal(scanner.Bytes(), &payload); err != nil {
			continue
		}
		switch payload.Type {
		case "result":
			result.DurationSeconds = payload.DurationSeconds
			result.FrameCount = payload.FrameCount
			result.Width = payload.Width
			result.Height = payload.Height
			result.ProcessingSeconds = payload.ProcessingSeconds
			sawResult = true
		default:
			if progress != nil {
				progress(ProgressUpdate{Percent: payload.Percent, Message: payload.Message})
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return Result{}, fmt.Errorf("read renderer output: %w", err)
	}
	if err := cmd.Wait(); err != nil {
		return Result{}, fmt.Errorf("lip-sync render failed: %w", err)
	}
	if !sawResult {
		return Result{}, errors.New("renderer produced no result record")
	}
	return result, nil
}

var _ Client = (*CLI)(nil)
