package pipeline

import (
	"math"

	"mimic/internal/services/tts"
)

// Estimate is an advisory wall-clock prediction for a prospective run. It
// is a planning aid only and never gates execution.
type Estimate struct {
	AudioDurationSeconds float64            `json:"audio_duration_seconds"`
	ProcessingSeconds    float64            `json:"processing_seconds"`
	Stages               map[string]float64 `json:"stages"`
}

// Estimate predicts run time from text length and rough per-stage
// throughput multipliers. The profile must exist; beyond that nothing is
// touched.
func (c *Coordinator) Estimate(text, profileID string) (Estimate, error) {
	if _, err := c.profiles.Load(profileID); err != nil {
		return Estimate{}, err
	}

	audio := tts.EstimateDuration(text, c.cfg.TTS.Speed)
	stages := map[string]float64{
		StageLoadProfile: 0.1,
		StageSynthesize:  math.Max(5, audio*2),
		StageValidate:    0.5,
		StageLipSync:     math.Max(10, audio*5),
		StageEncode:      math.Max(2, audio*0.5),
	}
	total := 0.0
	for _, seconds := range stages {
		total += seconds
	}
	return Estimate{
		AudioDurationSeconds: audio,
		ProcessingSeconds:    total,
		Stages:               stages,
	}, nil
}
