// Package workspace manages run directories holding per-entry environments and
// stage logs.
//
// Ephemeral mode creates a timestamped directory (e.g. matrixci-20251214-122336)
// that is removed after the run. Persistent mode (--keep-workspace) reuses a
// fixed directory so environments and logs survive for inspection.
//
// Environment locks live under the base directory so that concurrent runs
// sharing a base directory never provision the same environment at once.
package workspace
