// Package facedet wraps the external face detection CLI and the policy
// deciding whether a detected face can drive the lip-sync renderer.
package facedet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
)

var commandContext = exec.CommandContext

// Region is a face bounding box in image pixels.
type Region struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Point is one facial landmark in image pixels.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Detection is the outcome of a single-image face scan. A clean "no face"
// result is Detected=false with no error; errors are reserved for the tool
// itself failing.
type Detection struct {
	Detected   bool             `json:"detected"`
	Confidence float64          `json:"confidence"`
	Region     Region           `json:"face_region"`
	Landmarks  map[string]Point `json:"landmarks"`
}

// Client defines face detection behaviour.
type Client interface {
	Detect(ctx context.Context, imagePath string) (Detection, error)
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

// WithMinConfidence sets the detector's own confidence floor.
func WithMinConfidence(confidence float64) Option {
	return func(c *CLI) {
		if confidence > 0 {
			c.minConfidence = confidence
		}
	}
}

// CLI wraps the facescan command-line detector.
type CLI struct {
	binary        string
	minConfidence float64
}

// NewCLI constructs a CLI client using defaults.
func NewCLI(opts ...Option) *CLI {
	cli := &CLI{binary: "facescan", minConfidence: 0.5}
	for _, opt := range opts {
		opt(cli)
	}
	return cli
}

// Detect scans one image and returns the highest-confidence face.
func (c *CLI) Detect(ctx context.Context, imagePath string) (Detection, error) {
	if imagePath == "" {
		return Detection{}, errors.New("image path required")
	}

	args := []string{
		"detect",
		"--image", imagePath,
		"--min-confidence", strconv.FormatFloat(c.minConfidence, 'f', 2, 64),
		"--json",
	}
	cmd := commandContext(ctx, c.binary, args...) //nolint:gosec
	output, err := cmd.Output()
	if err != nil {
		return Detection{}, fmt.Errorf("face detection failed: %w", err)
	}

	var detection Detection
	if err := json.Unmarshal(output, &detection); err != nil {
		return Detection{}, fmt.Errorf("parse detection output: %w", err)
	}
	return detection, nil
}

var _ Client = (*CLI)(nil)
