package vram

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

const probeTimeout = 10 * time.Second

// SMIProber queries device memory through the nvidia-smi CLI. It is the
// production Prober; everything else in the package works the same with a
// fake.
type SMIProber struct {
	binary   string
	deviceID int
}

// NewSMIProber returns a prober for one device index.
func NewSMIProber(binary string, deviceID int) *SMIProber {
	if strings.TrimSpace(binary) == "" {
		binary = "nvidia-smi"
	}
	return &SMIProber{binary: binary, deviceID: deviceID}
}

// MemoryInfo runs a csv query for free and total memory on the device.
func (p *SMIProber) MemoryInfo(ctx context.Context) (int, int, error) {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, p.binary,
		"--query-gpu=memory.free,memory.total",
		"--format=csv,noheader,nounits",
		"--id="+strconv.Itoa(p.deviceID),
	)
	output, err := cmd.Output()
	if err != nil {
		return 0, 0, fmt.Errorf("query device memory: %w", err)
	}

	line := strings.TrimSpace(string(output))
	fields := strings.Split(line, ",")
	if len(fields) != 2 {
		return 0, 0, fmt.Errorf("unexpected memory query output %q", line)
	}
	freeMB, err := strconv.Atoi(strings.TrimSpace(fields[0]))
	if err != nil {
		return 0, 0, fmt.Errorf("parse free memory %q: %w", fields[0], err)
	}
	totalMB, err := strconv.Atoi(strings.TrimSpace(fields[1]))
	if err != nil {
		return 0, 0, fmt.Errorf("parse total memory %q: %w", fields[1], err)
	}
	return freeMB, totalMB, nil
}

// ReleaseCache is a no-op for the CLI prober: the driver reclaims freed
// allocations when the owning process exits, and the stage tools run as
// child processes. The hook exists for in-process runtimes.
func (p *SMIProber) ReleaseCache(ctx context.Context) error { return nil }

// Synchronize issues a trivial query, which forces the driver to settle
// accounting before the next MemoryInfo call.
func (p *SMIProber) Synchronize(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, p.binary, "--query-gpu=count", "--format=csv,noheader", "--id="+strconv.Itoa(p.deviceID))
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("synchronize device: %w", err)
	}
	return nil
}

// Detect probes for a usable accelerator and returns a ready prober, or
// nil when none is present. Daemon startup calls this once; a nil result
// puts the whole workflow into CPU mode.
func Detect(ctx context.Context, binary string, deviceID int) *SMIProber {
	prober := NewSMIProber(binary, deviceID)
	if _, _, err := prober.MemoryInfo(ctx); err != nil {
		return nil
	}
	return prober
}
