// Package daemon runs the matrix on a schedule, reloads configuration when the
// file changes and serves /metrics and /healthz.
package daemon
