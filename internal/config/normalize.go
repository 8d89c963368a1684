package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeTools()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.StorageDir) == "" {
		c.Paths.StorageDir = defaultStorageDir
	}
	if c.Paths.StorageDir, err = expandPath(c.Paths.StorageDir); err != nil {
		return fmt.Errorf("paths.storage_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.ScratchDir) == "" {
		c.Paths.ScratchDir = defaultScratchDir
	}
	if c.Paths.ScratchDir, err = expandPath(c.Paths.ScratchDir); err != nil {
		return fmt.Errorf("paths.scratch_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeTools() {
	if strings.TrimSpace(c.VRAM.SMIBinary) == "" {
		c.VRAM.SMIBinary = defaultSMIBinary
	}
	if strings.TrimSpace(c.TTS.Binary) == "" {
		c.TTS.Binary = defaultTTSBinary
	}
	if strings.TrimSpace(c.TTS.Language) == "" {
		c.TTS.Language = defaultTTSLanguage
	}
	if c.TTS.Speed <= 0 {
		c.TTS.Speed = defaultTTSSpeed
	}
	if c.TTS.MaxTextLength <= 0 {
		c.TTS.MaxTextLength = defaultMaxTextLength
	}
	if strings.TrimSpace(c.FaceDetect.Binary) == "" {
		c.FaceDetect.Binary = defaultFaceDetectBinary
	}
	if c.FaceDetect.MinFacePixels <= 0 {
		c.FaceDetect.MinFacePixels = defaultMinFacePixels
	}
	if strings.TrimSpace(c.LipSync.Binary) == "" {
		c.LipSync.Binary = defaultLipSyncBinary
	}
	if strings.TrimSpace(c.LipSync.Quality) == "" {
		c.LipSync.Quality = QualityHigh
	}
	if c.LipSync.FPS <= 0 {
		c.LipSync.FPS = defaultLipSyncFPS
	}
	if strings.TrimSpace(c.Encode.Binary) == "" {
		c.Encode.Binary = defaultFFmpegBinary
	}
	if strings.TrimSpace(c.Encode.ProbeBinary) == "" {
		c.Encode.ProbeBinary = defaultFFprobeBinary
	}
	if strings.TrimSpace(c.Encode.Preset) == "" {
		c.Encode.Preset = defaultEncodePreset
	}
	if strings.TrimSpace(c.Encode.Container) == "" {
		c.Encode.Container = defaultContainer
	}
	if strings.TrimSpace(c.Encode.AudioBitrate) == "" {
		c.Encode.AudioBitrate = defaultAudioBitrate
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Worker.QueuePollInterval <= 0 {
		c.Worker.QueuePollInterval = defaultQueuePollInterval
	}
	if c.Worker.ErrorRetryInterval <= 0 {
		c.Worker.ErrorRetryInterval = defaultErrorRetryInterval
	}
	if c.Worker.KeepFinishedJobs <= 0 {
		c.Worker.KeepFinishedJobs = defaultKeepFinishedJobs
	}
}
