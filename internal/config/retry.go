package config

import "git.home.luguber.info/inful/matrixci/internal/foundation/normalization"

// RetryBackoffMode enumerates supported backoff strategies for retries.
type RetryBackoffMode string

const (
	RetryBackoffFixed       RetryBackoffMode = "fixed"
	RetryBackoffLinear      RetryBackoffMode = "linear"
	RetryBackoffExponential RetryBackoffMode = "exponential"
)

var retryBackoffNormalizer = normalization.NewNormalizer(map[string]RetryBackoffMode{
	string(RetryBackoffFixed):       RetryBackoffFixed,
	string(RetryBackoffLinear):      RetryBackoffLinear,
	string(RetryBackoffExponential): RetryBackoffExponential,
}, "")

// NormalizeRetryBackoff converts arbitrary user input (case-insensitive) into a typed mode, returning empty string for unknown.
func NormalizeRetryBackoff(raw string) RetryBackoffMode {
	return retryBackoffNormalizer.Normalize(raw)
}

// RetryConfig configures retries of the best-effort coverage upload.
type RetryConfig struct {
	Backoff      RetryBackoffMode `yaml:"backoff,omitempty" toml:"backoff,omitempty"`
	InitialDelay string           `yaml:"initial_delay,omitempty" toml:"initial_delay,omitempty"`
	MaxDelay     string           `yaml:"max_delay,omitempty" toml:"max_delay,omitempty"`
	MaxRetries   *int             `yaml:"max_retries,omitempty" toml:"max_retries,omitempty"`
}
