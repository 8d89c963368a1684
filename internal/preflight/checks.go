package preflight

import (
	"context"
	"fmt"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"mimic/internal/config"
	"mimic/internal/deps"
	"mimic/internal/vram"
)

var statfs = unix.Statfs

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckScratchSpace verifies the scratch filesystem has at least
// minFreeMB of headroom for intermediate artifacts.
func CheckScratchSpace(path string, minFreeMB int) Result {
	const name = "Scratch space"

	var stat unix.Statfs_t
	if err := statfs(path, &stat); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: statfs: %v)", path, err)}
	}
	freeMB := int(stat.Bavail * uint64(stat.Bsize) / (1 << 20))
	if freeMB < minFreeMB {
		return Result{Name: name, Detail: fmt.Sprintf("%s has %dMB free, need %dMB", path, freeMB, minFreeMB)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%dMB free)", path, freeMB)}
}

// CheckAccelerator probes the accelerator and reports its memory state.
// A missing accelerator passes: the pipeline degrades to CPU mode.
func CheckAccelerator(ctx context.Context, cfg *config.Config) Result {
	const name = "Accelerator"

	probeCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	prober := vram.Detect(probeCtx, cfg.VRAM.SMIBinary, cfg.VRAM.DeviceID)
	if prober == nil {
		return Result{Name: name, Passed: true, Detail: "not detected (CPU mode)"}
	}
	freeMB, totalMB, err := prober.MemoryInfo(probeCtx)
	if err != nil {
		return Result{Name: name, Passed: true, Detail: fmt.Sprintf("probe failed, degrading to CPU mode (%v)", err)}
	}
	return Result{Name: name, Passed: true,
		Detail: fmt.Sprintf("device %d: %d/%dMB free", cfg.VRAM.DeviceID, freeMB, totalMB)}
}

// CheckSystemDeps evaluates all external tool dependencies for the
// given config. Both the daemon and the CLI deps command use this to
// avoid duplicating the requirements list.
func CheckSystemDeps(cfg *config.Config) []deps.Status {
	requirements := []deps.Requirement{
		{
			Name:        "TTS engine",
			Command:     cfg.TTS.Binary,
			Description: "Required for speech synthesis",
		},
		{
			Name:        "Face detector",
			Command:     cfg.FaceDetect.Binary,
			Description: "Required for avatar validation",
		},
		{
			Name:        "Lip-sync renderer",
			Command:     cfg.LipSync.Binary,
			Description: "Required for talking-head rendering",
		},
		{
			Name:        "FFmpeg",
			Command:     cfg.FFmpegBinary(),
			Description: "Required for encoding and muxing",
		},
		{
			Name:        "FFprobe",
			Command:     cfg.FFprobeBinary(),
			Description: "Required for duration probing",
		},
		{
			Name:        "nvidia-smi",
			Command:     cfg.VRAM.SMIBinary,
			Description: "Enables VRAM admission control",
			Optional:    true,
		},
	}
	return deps.CheckBinaries(requirements)
}
