package testsupport

import (
	"path/filepath"
	"testing"

	"mimic/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.StorageDir = filepath.Join(base, "storage")
	cfg.Paths.ScratchDir = filepath.Join(base, "scratch")
	cfg.Paths.LogDir = filepath.Join(base, "logs")

	for _, opt := range opts {
		opt(&cfg)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	return &cfg
}

// WithMaxVideoLength overrides the pipeline duration ceiling.
func WithMaxVideoLength(seconds int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Pipeline.MaxVideoLengthSeconds = seconds
	}
}

// WithKeepIntermediates disables scratch cleanup.
func WithKeepIntermediates() ConfigOption {
	return func(cfg *config.Config) {
		cfg.Pipeline.CleanupIntermediates = false
	}
}
