// Package ffmpeg wraps the ffmpeg and ffprobe binaries for the final
// encode, audio muxing, and media inspection.
package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

var commandContext = exec.CommandContext

// EncodeRequest describes a transcode of an intermediate render into the
// deliverable container.
type EncodeRequest struct {
	InputPath  string
	OutputPath string
	// AudioPath optionally names a separate audio track to mux in, for
	// inputs that carry no audio stream of their own.
	AudioPath string
	Preset    string
	CRF       int
	// AudioBitrate like "192k".
	AudioBitrate string
}

// EncodeResult reports the finished file.
type EncodeResult struct {
	OutputPath      string
	SizeBytes       int64
	DurationSeconds float64
}

// Client defines the encode/mux/probe behaviour the workflow needs.
type Client interface {
	Encode(ctx context.Context, req EncodeRequest) (EncodeResult, error)
	Mux(ctx context.Context, videoPath, audioPath, outputPath string) error
	ProbeDuration(ctx context.Context, path string) (float64, error)
}

// Option configures the CLI client.
type Option func(*CLI)

// WithBinary overrides the ffmpeg binary name.
func WithBinary(binary string) Option {
	return func(c *CLI) {
		if binary != "" {
			c.ffmpeg = binary
		}
	}
}

// WithProbeBinary overrides the ffprobe binary name.
func WithProbeBinary(binary string) Option {
	return func(c *CLI) {
		if binary != "" {
			c.ffprobe = binary
		}
	}
}

// CLI drives ffmpeg/ffprobe.
type CLI struct {
	ffmpeg  string
	ffprobe string
}

// NewCLI constructs a CLI client using defaults.
func NewCLI(opts ...Option) *CLI {
	cli := &CLI{ffmpeg: "ffmpeg", ffprobe: "ffprobe"}
	for _, opt := range opts {
		opt(cli)
	}
	return cli
}

// Encode transcodes input to H.264/AAC with web-compatible pixel format.
func (c *CLI) Encode(ctx context.Context, req EncodeRequest) (EncodeResult, error) {
	if req.InputPath == "" {
		return EncodeResult{}, errors.New("input path required")
	}
	if req.OutputPath == "" {
		return EncodeResult{}, errors.New("output path required")
	}
	preset := req.Preset
	if preset == "" {
		preset = "medium"
	}
	crf := req.CRF
	if crf <= 0 {
		crf = 23
	}
	bitrate := req.AudioBitrate
	if bitrate == "" {
		bitrate = "192k"
	}

	args := []string{"-y", "-i", req.InputPath}
	if req.AudioPath != "" {
		args = append(args, "-i", req.AudioPath)
	}
	args = append(args,
		"-c:v", "libx264",
		"-preset", preset,
		"-crf", strconv.Itoa(crf),
		"-c:a", "aac",
		"-b:a", bitrate,
		"-pix_fmt", "yuv420p",
	)
	if req.AudioPath != "" {
		args = append(args, "-map", "0:v:0", "-map", "1:a:0", "-shortest")
	}
	args = append(args, req.OutputPath)
	if err := c.run(ctx, c.ffmpeg, args); err != nil {
		return EncodeResult{}, fmt.Errorf("ffmpeg encode failed: %w", err)
	}

	result := EncodeResult{OutputPath: req.OutputPath}
	if info, err := os.Stat(req.OutputPath); err == nil {
		result.SizeBytes = info.Size()
	}
	if duration, err := c.ProbeDuration(ctx, req.OutputPath); err == nil {
		result.DurationSeconds = duration
	}
	return result, nil
}

// Mux attaches an audio track to a video stream without re-encoding the
// video, trimming to the shorter of the two.
func (c *CLI) Mux(ctx context.Context, videoPath, audioPath, outputPath string) error {
	if videoPath == "" || audioPath == "" || outputPath == "" {
		return errors.New("video, audio, and output paths required")
	}
	args := []string{
		"-y",
		"-i", videoPath,
		"-i", audioPath,
		"-c:v", "copy",
		"-c:a", "aac",
		"-b:a", "192k",
		"-map", "0:v:0",
		"-map", "1:a:0",
		"-shortest",
		outputPath,
	}
	if err := c.run(ctx, c.ffmpeg, args); err != nil {
		return fmt.Errorf("ffmpeg mux failed: %w", err)
	}
	return nil
}

// ProbeDuration reports a media file's duration in seconds via ffprobe.
func (c *CLI) ProbeDuration(ctx context.Context, path string) (float64, error) {
	if path == "" {
		return 0, errors.New("path required")
	}
	args := []string{
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	}
	cmd := commandContext(ctx, c.ffprobe, args...) //nolint:gosec
	output, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe failed: %w", err)
	}
	duration, err := strconv.ParseFloat(strings.TrimSpace(string(output)), 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", strings.TrimSpace(string(output)), err)
	}
	return duration, nil
}

func (c *CLI) run(ctx context.Context, binary string, args []string) error {
	cmd := commandContext(ctx, binary, args...) //nolint:gosec
	var stderr strings.Builder
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		detail := strings.TrimSpace(stderr.String())
		if detail != "" {
			return fmt.Errorf("%w: %s", err, lastLines(detail, 5))
		}
		return err
	}
	return nil
}

// lastLines keeps only the tail of tool output; ffmpeg's error is always
// at the end of a long banner.
func lastLines(s string, n int) string {
	lines := strings.Split(s, "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}

var _ Client = (*CLI)(nil)
