// Package preflight validates the environment before the daemon starts
// taking jobs: directory access, scratch headroom, tool availability,
// and an accelerator snapshot.
package preflight
