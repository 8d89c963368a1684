package vram

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"runtime/debug"

	"mimic/internal/logging"
)

// Status is a point-in-time snapshot of accelerator memory. It is created
// fresh on every query and never cached; staleness is acceptable only for
// the duration of one admission check.
type Status struct {
	TotalMB            int     `json:"total_mb"`
	UsedMB             int     `json:"used_mb"`
	FreeMB             int     `json:"free_mb"`
	UtilizationPercent float64 `json:"utilization_percent"`
	Available          bool    `json:"accelerator_available"`
}

// String renders the snapshot for logs and CLI output.
func (s Status) String() string {
	if !s.Available {
		return "VRAM: n/a (CPU mode)"
	}
	return fmt.Sprintf("VRAM: %d/%dMB (%.1f%% used, %dMB free)", s.UsedMB, s.TotalMB, s.UtilizationPercent, s.FreeMB)
}

// Prober abstracts the device-level memory queries so tests can substitute
// a fake and production can shell out to nvidia-smi.
type Prober interface {
	// MemoryInfo reports free and total device memory in MB.
	MemoryInfo(ctx context.Context) (freeMB, totalMB int, err error)
	// ReleaseCache asks the device runtime to drop its allocator caches.
	ReleaseCache(ctx context.Context) error
	// Synchronize blocks until outstanding device work has drained, so a
	// following MemoryInfo call observes the release.
	Synchronize(ctx context.Context) error
}

// Manager answers "is there enough headroom to load stage X" and performs
// forced release between stages.
type Manager struct {
	prober   Prober
	deviceID int
	marginMB int
	logger   *slog.Logger
}

// NewManager constructs a memory ledger for one device. A nil prober is
// treated as "no accelerator": status reports unavailable and admission is
// never constrained.
func NewManager(prober Prober, deviceID, safetyMarginMB int, logger *slog.Logger) *Manager {
	return &Manager{
		prober:   prober,
		deviceID: deviceID,
		marginMB: safetyMarginMB,
		logger:   logging.NewComponentLogger(logger, "vram"),
	}
}

// DeviceID returns the device this ledger watches.
func (m *Manager) DeviceID() int { return m.deviceID }

// DefaultMarginMB returns the configured safety margin.
func (m *Manager) DefaultMarginMB() int { return m.marginMB }

// Status queries current device memory. Probe errors are not raised:
// absence of acceleration is a first-class condition, reported as an
// unavailable snapshot with zeroed fields.
func (m *Manager) Status(ctx context.Context) Status {
	if m.prober == nil {
		return Status{}
	}
	freeMB, totalMB, err := m.prober.MemoryInfo(ctx)
	if err != nil {
		m.logger.Debug("memory probe failed; treating accelerator as unavailable",
			logging.Int(logging.FieldDevice, m.deviceID),
			logging.Error(err),
		)
		return Status{}
	}
	if totalMB <= 0 {
		return Status{}
	}
	usedMB := totalMB - freeMB
	return Status{
		TotalMB:            totalMB,
		UsedMB:             usedMB,
		FreeMB:             freeMB,
		UtilizationPercent: float64(usedMB) / float64(totalMB) * 100,
		Available:          true,
	}
}

// CanLoad reports whether requiredMB fits into free memory after the
// configured default safety margin.
func (m *Manager) CanLoad(ctx context.Context, requiredMB int) bool {
	return m.CanLoadWithMargin(ctx, requiredMB, m.marginMB)
}

// CanLoadWithMargin is CanLoad with an explicit margin. When the
// accelerator is unavailable it always returns true: CPU-only execution is
// not memory constrained by this ledger. The decision and the numbers
// involved are logged because denied admission is the most common
// user-visible failure.
func (m *Manager) CanLoadWithMargin(ctx context.Context, requiredMB, marginMB int) bool {
	status := m.Status(ctx)
	if !status.Available {
		m.logger.Debug("accelerator unavailable; admission unconstrained",
			logging.Int("required_mb", requiredMB),
		)
		return true
	}

	availableMB := status.FreeMB - marginMB
	ok := availableMB >= requiredMB
	if ok {
		m.logger.Debug("admission check passed",
			logging.Int("required_mb", requiredMB),
			logging.Int("available_mb", availableMB),
			logging.Int("margin_mb", marginMB),
		)
	} else {
		m.logger.Warn("admission check denied",
			logging.String(logging.FieldEventType, "vram_admission_denied"),
			logging.Int("required_mb", requiredMB),
			logging.Int("available_mb", availableMB),
			logging.Int("margin_mb", marginMB),
			logging.Int("free_mb", status.FreeMB),
			logging.String(logging.FieldErrorHint, "free accelerator memory or lower quality"),
		)
	}
	return ok
}

// ForceRelease aggressively reclaims memory between stage loads: host
// garbage collection, device cache release, then a synchronization barrier
// so the next Status call reflects the release. It never fails; it is
// always called from cleanup paths where an error would mask the original
// failure, so problems are logged and swallowed. Calling it again when
// nothing is held is a no-op.
func (m *Manager) ForceRelease(ctx context.Context) {
	before := m.Status(ctx)

	runtime.GC()
	debug.FreeOSMemory()

	if m.prober == nil || !before.Available {
		return
	}

	if err := m.prober.ReleaseCache(ctx); err != nil {
		m.logger.Warn("device cache release failed",
			logging.String(logging.FieldEventType, "vram_release_failed"),
			logging.Error(err),
		)
		return
	}
	if err := m.prober.Synchronize(ctx); err != nil {
		m.logger.Warn("device synchronize failed",
			logging.String(logging.FieldEventType, "vram_release_failed"),
			logging.Error(err),
		)
		return
	}

	after := m.Status(ctx)
	m.logger.Info("forced release completed",
		logging.Int("freed_mb", after.FreeMB-before.FreeMB),
		logging.Int("free_mb", after.FreeMB),
	)
}

// LogStatus logs the current snapshot at INFO level.
func (m *Manager) LogStatus(ctx context.Context) {
	m.logger.Info(m.Status(ctx).String(), logging.Int(logging.FieldDevice, m.deviceID))
}
