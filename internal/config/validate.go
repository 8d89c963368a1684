package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateVRAM(); err != nil {
		return err
	}
	if err := c.validateStages(); err != nil {
		return err
	}
	if err := c.validatePipeline(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateVRAM() error {
	if c.VRAM.DeviceID < 0 {
		return errors.New("vram.device_id must not be negative")
	}
	if c.VRAM.SafetyMarginMB < 0 {
		return errors.New("vram.safety_margin_mb must not be negative")
	}
	if c.VRAM.HighTierMB > 0 && c.VRAM.LowTierMB > 0 && c.VRAM.HighTierMB <= c.VRAM.LowTierMB {
		return errors.New("vram.high_tier_mb must be greater than vram.low_tier_mb")
	}
	return nil
}

func (c *Config) validateStages() error {
	if c.TTS.PeakMemoryMB < 0 {
		return errors.New("tts.peak_memory_mb must not be negative")
	}
	if c.LipSync.PeakMemoryMB < 0 {
		return errors.New("lipsync.peak_memory_mb must not be negative")
	}
	if c.FaceDetect.MinConfidence < 0 || c.FaceDetect.MinConfidence > 1 {
		return errors.New("face_detect.min_confidence must be between 0 and 1")
	}
	switch c.LipSync.Quality {
	case QualityHigh, QualityMedium, QualityLow:
	default:
		return fmt.Errorf("lipsync.quality must be one of %q, %q, %q", QualityHigh, QualityMedium, QualityLow)
	}
	if c.Encode.CRF < 0 || c.Encode.CRF > 51 {
		return errors.New("encode.crf must be between 0 and 51")
	}
	return nil
}

func (c *Config) validatePipeline() error {
	if c.Pipeline.MaxVideoLengthSeconds <= 0 {
		return errors.New("pipeline.max_video_length_seconds must be positive")
	}
	if c.Pipeline.MinScratchFreeMB < 0 {
		return errors.New("pipeline.min_scratch_free_mb must not be negative")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be \"console\" or \"json\", got %q", c.Logging.Format)
	}
	return nil
}
