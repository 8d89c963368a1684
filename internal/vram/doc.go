// Package vram tracks accelerator memory and answers stage admission
// questions. It owns no stage memory itself; admission is advisory and the
// workflow relies on the single-runner execution model to keep the check
// and the subsequent load effectively atomic.
package vram
