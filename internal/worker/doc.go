// Package worker drains the job queue against a single accelerator.
// One worker owns one device; ownership is enforced with a file lock so
// two daemons cannot contend for the same VRAM.
package worker
