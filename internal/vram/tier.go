package vram

// Tier classifies the machine by total accelerator memory so defaults can
// scale with the hardware.
type Tier string

const (
	// TierHigh covers workstation-class devices that fit every model with
	// room to spare.
	TierHigh Tier = "high"
	// TierStandard covers mid-range devices; sequential loading is
	// mandatory but every stage still fits.
	TierStandard Tier = "standard"
	// TierLow covers small devices and CPU-only machines.
	TierLow Tier = "low"
)

// TierFor maps a memory snapshot onto a tier using the configured
// cutoffs. Unavailable accelerators always classify as low.
func TierFor(status Status, highCutoffMB, lowCutoffMB int) Tier {
	if !status.Available {
		return TierLow
	}
	switch {
	case status.TotalMB >= highCutoffMB:
		return TierHigh
	case status.TotalMB >= lowCutoffMB:
		return TierStandard
	default:
		return TierLow
	}
}
