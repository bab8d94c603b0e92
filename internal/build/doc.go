// Package build runs an expanded build matrix.
//
// All execution paths (CLI run, daemon schedule, tests) route through
// Service. It expands and filters the matrix, runs each runnable entry
// through its own pipeline on a bounded worker pool, and derives the run
// outcome from the entry results in matrix order.
package build
