// Package coverage uploads an entry's coverage report to an external sink.
//
// Uploads are a best-effort side channel: Reporter retries transient failures
// according to the configured policy and reports every final failure as a
// warning-severity reporting error that never changes the entry outcome.
package coverage
