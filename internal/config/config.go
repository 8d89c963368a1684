package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	StorageDir string `toml:"storage_dir"`
	ScratchDir string `toml:"scratch_dir"`
	LogDir     string `toml:"log_dir"`
}

// VRAM contains accelerator memory policy. The tier cutoffs and safety
// margin are policy constants, not measured values, so they live in config.
type VRAM struct {
	DeviceID       int    `toml:"device_id"`
	SafetyMarginMB int    `toml:"safety_margin_mb"`
	HighTierMB     int    `toml:"high_tier_mb"`
	LowTierMB      int    `toml:"low_tier_mb"`
	SMIBinary      string `toml:"smi_binary"`
}

// TTS contains speech synthesis tool settings.
type TTS struct {
	Binary         string  `toml:"binary"`
	Model          string  `toml:"model"`
	Language       string  `toml:"language"`
	Speed          float64 `toml:"speed"`
	PeakMemoryMB   int     `toml:"peak_memory_mb"`
	MaxTextLength  int     `toml:"max_text_length"`
	TimeoutSeconds int     `toml:"timeout_seconds"`
}

// FaceDetect contains portrait validation settings.
type FaceDetect struct {
	Binary        string  `toml:"binary"`
	MinConfidence float64 `toml:"min_confidence"`
	MinFacePixels int     `toml:"min_face_pixels"`
}

// LipSync contains lip-sync render tool settings.
type LipSync struct {
	Binary         string `toml:"binary"`
	Quality        string `toml:"quality"`
	FPS            int    `toml:"fps"`
	PeakMemoryMB   int    `toml:"peak_memory_mb"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Encode contains final encode settings.
type Encode struct {
	Binary         string `toml:"binary"`
	ProbeBinary    string `toml:"probe_binary"`
	Preset         string `toml:"preset"`
	CRF            int    `toml:"crf"`
	Container      string `toml:"container"`
	AudioBitrate   string `toml:"audio_bitrate"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Pipeline contains run-level policy defaults.
type Pipeline struct {
	MaxVideoLengthSeconds int  `toml:"max_video_length_seconds"`
	CleanupIntermediates  bool `toml:"cleanup_intermediates"`
	MinScratchFreeMB      int  `toml:"min_scratch_free_mb"`
}

// Worker contains queue drain timing and retention.
type Worker struct {
	QueuePollInterval  int    `toml:"queue_poll_interval"`
	ErrorRetryInterval int    `toml:"error_retry_interval"`
	KeepFinishedJobs   int    `toml:"keep_finished_jobs"`
	MetricsBind        string `toml:"metrics_bind"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for mimic.
type Config struct {
	Paths      Paths      `toml:"paths"`
	VRAM       VRAM       `toml:"vram"`
	TTS        TTS        `toml:"tts"`
	FaceDetect FaceDetect `toml:"face_detect"`
	LipSync    LipSync    `toml:"lipsync"`
	Encode     Encode     `toml:"encode"`
	Pipeline   Pipeline   `toml:"pipeline"`
	Worker     Worker     `toml:"worker"`
	Logging    Logging    `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration
// file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/mimic/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized. The boolean reports
// whether a config file was actually found.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		if _, err := os.Stat(expanded); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	projectPath, err := filepath.Abs("mimic.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}
	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StorageDir, c.Paths.ScratchDir, c.Paths.LogDir, c.VoicesDir(), c.JobsDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// VoicesDir returns the voice profile storage root.
func (c *Config) VoicesDir() string {
	return filepath.Join(c.Paths.StorageDir, "voices")
}

// JobsDir returns the directory holding the job database.
func (c *Config) JobsDir() string {
	return filepath.Join(c.Paths.StorageDir, "jobs")
}

// FFmpegBinary returns the ffmpeg executable name.
func (c *Config) FFmpegBinary() string { return c.Encode.Binary }

// FFprobeBinary returns the ffprobe executable name used for duration probing.
func (c *Config) FFprobeBinary() string { return c.Encode.ProbeBinary }

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
