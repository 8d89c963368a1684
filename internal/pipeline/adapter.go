package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"

	"mimic/internal/logging"
)

// Stage names as they appear in run results, job progress labels, and
// logs.
const (
	StageLoadProfile = "load_profile"
	StageSynthesize  = "synthesize_speech"
	StageValidate    = "validate_avatar"
	StageLipSync     = "generate_lipsync"
	StageEncode      = "encode_video"
)

// StageNames returns the full fixed sequence in execution order.
func StageNames() []string {
	return []string{StageLoadProfile, StageSynthesize, StageValidate, StageLipSync, StageEncode}
}

// Adapter is the contract each stage presents to the coordinator: a
// declared peak memory requirement checked before load, a load that may
// fail, and an unload that never propagates failure. The coordinator
// guarantees Unload is called exactly once per Load, on the failure path
// too.
type Adapter interface {
	Name() string
	PeakMemoryMB() int
	Load(ctx context.Context) error
	Unload(ctx context.Context)
}

var lookPath = exec.LookPath

// toolAdapter fronts an external CLI stage. Load verifies the binary is
// resolvable; the heavyweight model load happens inside the tool process,
// so Unload has nothing in-process to drop and only logs.
type toolAdapter struct {
	name   string
	peakMB int
	binary string
	logger *slog.Logger
}

func (a *toolAdapter) Name() string      { return a.name }
func (a *toolAdapter) PeakMemoryMB() int { return a.peakMB }

func (a *toolAdapter) Load(ctx context.Context) error {
	if a.binary == "" {
		return nil
	}
	if _, err := lookPath(a.binary); err != nil {
		return fmt.Errorf("locate %s binary %q: %w", a.name, a.binary, err)
	}
	return nil
}

func (a *toolAdapter) Unload(ctx context.Context) {
	if a.logger != nil {
		a.logger.Debug("stage unloaded", logging.String(logging.FieldStage, a.name))
	}
}
