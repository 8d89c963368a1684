package facedet

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"testing"
)

func goodDetection() Detection {
	return Detection{
		Detected:   true,
		Confidence: 0.93,
		Region:     Region{X: 100, Y: 80, Width: 256, Height: 300},
		Landmarks: map[string]Point{
			"left_eye":     {X: 160, Y: 150},
			"right_eye":    {X: 290, Y: 152},
			"nose_tip":     {X: 225, Y: 210},
			"mouth_center": {X: 225, Y: 280},
		},
	}
}

func TestValidateForLipsyncAccepts(t *testing.T) {
	validator := NewValidator(0.5, 128)

	ok, reason := validator.ValidateForLipsync(goodDetection())
	if !ok {
		t.Fatalf("expected acceptance, got rejection: %s", reason)
	}
	if !strings.Contains(reason, "suitable") {
		t.Fatalf("unexpected acceptance reason %q", reason)
	}
}

func TestValidateForLipsyncRejections(t *testing.T) {
	validator := NewValidator(0.5, 128)

	tests := []struct {
		name   string
		mutate func(*Detection)
		reason string
	}{
		{
			"no face", func(d *Detection) { d.Detected = false }, "no face detected",
		},
		{
			"low confidence", func(d *Detection) { d.Confidence = 0.3 }, "confidence too low",
		},
		{
			"face too small", func(d *Detection) { d.Region.Width, d.Region.Height = 64, 64 }, "face too small",
		},
		{
			"wide aspect ratio", func(d *Detection) { d.Region.Width, d.Region.Height = 512, 256 }, "aspect ratio",
		},
		{
			"missing mouth landmark", func(d *Detection) { delete(d.Landmarks, "mouth_center") }, "missing facial landmark",
		},
		{
			"tilted face", func(d *Detection) {
				d.Landmarks["right_eye"] = Point{X: 290, Y: 230}
			}, "tilted",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			detection := goodDetection()
			tt.mutate(&detection)
			ok, reason := validator.ValidateForLipsync(detection)
			if ok {
				t.Fatal("expected rejection")
			}
			if !strings.Contains(reason, tt.reason) {
				t.Fatalf("expected reason containing %q, got %q", tt.reason, reason)
			}
		})
	}
}

func TestDetectParsesOutput(t *testing.T) {
	setHelperCommand(t, "face")

	cli := NewCLI(WithMinConfidence(0.6))
	detection, err := cli.Detect(context.Background(), "portrait.png")
	if err != nil {
		t.Fatalf("Detect returned error: %v", err)
	}
	if !detection.Detected || detection.Confidence != 0.91 {
		t.Fatalf("unexpected detection %+v", detection)
	}
	if detection.Region.Width != 240 || detection.Region.Height != 260 {
		t.Fatalf("unexpected region %+v", detection.Region)
	}
	if _, ok := detection.Landmarks["mouth_center"]; !ok {
		t.Fatalf("expected mouth landmark, got %+v", detection.Landmarks)
	}
}

func TestDetectNoFace(t *testing.T) {
	setHelperCommand(t, "noface")

	cli := NewCLI()
	detection, err := cli.Detect(context.Background(), "landscape.png")
	if err != nil {
		t.Fatalf("Detect returned error: %v", err)
	}
	if detection.Detected {
		t.Fatalf("expected clean no-face result, got %+v", detection)
	}
}

func TestDetectToolFailure(t *testing.T) {
	setHelperCommand(t, "failure")

	cli := NewCLI()
	if _, err := cli.Detect(context.Background(), "portrait.png"); err == nil {
		t.Fatal("expected tool failure error")
	}
}

func TestDetectRequiresImagePath(t *testing.T) {
	cli := NewCLI()
	if _, err := cli.Detect(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty image path")
	}
}

func setHelperCommand(t *testing.T, mode string) {
	t.Helper()
	original := commandContext
	commandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		cmd := exec.CommandContext(ctx, os.Args[0], "-test.run=TestHelperProcess")
		cmd.Env = append(os.Environ(), "GO_WANT_HELPER_PROCESS=1", fmt.Sprintf("FACEDET_HELPER_MODE=%s", mode))
		return cmd
	}
	t.Cleanup(func() { commandContext = original })
}

func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}

	switch os.Getenv("FACEDET_HELPER_MODE") {
	case "face":
		fmt.Println(`{"detected":true,"confidence":0.91,"face_region":{"x":120,"y":90,"width":240,"height":260},"landmarks":{"left_eye":{"x":180,"y":160},"right_eye":{"x":300,"y":162},"mouth_center":{"x":240,"y":280}}}`)
		os.Exit(0)
	case "noface":
		fmt.Println(`{"detected":false,"confidence":0}`)
		os.Exit(0)
	case "failure":
		fmt.Fprintln(os.Stderr, "cannot open image")
		os.Exit(1)
	default:
		os.Exit(0)
	}
}
