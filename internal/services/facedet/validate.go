package facedet

import (
	"fmt"
	"math"
)

// Validator decides whether a detection is good enough to drive lip-sync.
// Thresholds come from config; the zero value is unusable, use NewValidator.
type Validator struct {
	minConfidence float64
	minFacePixels int
}

// NewValidator builds a validator with the given thresholds, substituting
// the standard floors for non-positive values.
func NewValidator(minConfidence float64, minFacePixels int) *Validator {
	if minConfidence <= 0 {
		minConfidence = 0.5
	}
	if minFacePixels <= 0 {
		minFacePixels = 128
	}
	return &Validator{minConfidence: minConfidence, minFacePixels: minFacePixels}
}

// ValidateForLipsync checks the detection against the renderer's
// requirements and returns a human-readable reason either way. The reason
// for a rejection ends up verbatim in the job error, so it names the
// failing measurement and the limit.
func (v *Validator) ValidateForLipsync(d Detection) (bool, string) {
	if !d.Detected {
		return false, "no face detected in image"
	}
	if d.Confidence < v.minConfidence {
		return false, fmt.Sprintf("detection confidence too low: %.2f (minimum %.2f)", d.Confidence, v.minConfidence)
	}
	if d.Region.Width < v.minFacePixels || d.Region.Height < v.minFacePixels {
		return false, fmt.Sprintf("face too small: %dx%d (minimum %dx%d)",
			d.Region.Width, d.Region.Height, v.minFacePixels, v.minFacePixels)
	}
	if d.Region.Height > 0 {
		aspect := float64(d.Region.Width) / float64(d.Region.Height)
		if aspect < 0.5 || aspect > 1.5 {
			return false, fmt.Sprintf("unusual face aspect ratio: %.2f (expected 0.5-1.5)", aspect)
		}
	}

	for _, name := range []string{"left_eye", "right_eye", "mouth_center"} {
		if _, ok := d.Landmarks[name]; !ok {
			return false, fmt.Sprintf("missing facial landmark: %s", name)
		}
	}

	// A strongly tilted head defeats the mouth-region warping in the
	// renderer, so reject beyond 15 degrees of eye-line tilt.
	left := d.Landmarks["left_eye"]
	right := d.Landmarks["right_eye"]
	dx := math.Abs(float64(left.X - right.X))
	dy := math.Abs(float64(left.Y - right.Y))
	if dx == 0 {
		return false, "cannot determine face orientation"
	}
	if angle := math.Atan(dy/dx) * 180 / math.Pi; angle > 15 {
		return false, fmt.Sprintf("face is tilted: %.1f degrees (maximum 15)", angle)
	}

	return true, fmt.Sprintf("face is suitable for lip-sync (confidence %.2f)", d.Confidence)
}
