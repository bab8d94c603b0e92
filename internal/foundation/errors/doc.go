// Package errors provides the classified error primitives used across matrixci.
//
// Every failure that can end a matrix entry carries a category that maps to
// the pipeline taxonomy: provisioning, capability, test and reporting, plus
// the ambient categories for configuration, filesystem and runtime problems.
//
// Key features:
//   - ErrorCategory: broad classification used for routing and exit codes
//   - ErrorSeverity: impact level (fatal, error, warning, info)
//   - RetryStrategy: whether a caller may retry the failed operation
//   - ClassifiedError: structured error with category, severity and context
//   - ErrorBuilder: fluent API for creating classified errors
//   - CLIErrorAdapter: exit code mapping and user-facing formatting
//
// Example usage:
//
//	err := errors.ProvisioningError("conda install failed").
//		WithCause(exitErr).
//		WithContext("entry", entry.ID()).
//		WithContext("log", logPath).
//		Build()
package errors
