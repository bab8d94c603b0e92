// Package pipeline runs one matrix entry through its ordered stages.
//
// The stage sequence is before_install, provision, validate_capability,
// before_script, test and report. Every stage except report is fatal: its
// failure aborts the entry and the remaining stages are recorded as skipped.
// The report stage only ever produces a warning.
package pipeline
