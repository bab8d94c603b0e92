package config

import (
	"fmt"
	"strings"
	"time"

	foundationerrors "git.home.luguber.info/inful/matrixci/internal/foundation/errors"
)

// Validate checks the configuration and returns the first problem found.
func (c *Config) Validate() error {
	return newConfigurationValidator(c).validate()
}

// configurationValidator coordinates validation across all configuration domains.
type configurationValidator struct {
	config *Config
}

func newConfigurationValidator(config *Config) *configurationValidator {
	return &configurationValidator{config: config}
}

// validate runs the domain validators in dependency order.
func (cv *configurationValidator) validate() error {
	steps := []func() error{
		cv.validateProject,
		cv.validateOverrides,
		cv.validateMatrix,
		cv.validateTests,
		cv.validateCoverage,
		cv.validateRuntime,
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}
	return nil
}

func invalid(format string, args ...any) error {
	return foundationerrors.ValidationError(fmt.Sprintf(format, args...)).Build()
}

func (cv *configurationValidator) validateProject() error {
	if strings.TrimSpace(cv.config.Project.Name) == "" {
		return invalid("project.name is required")
	}
	if strings.TrimSpace(cv.config.Manifest.Requirements) == "" {
		return invalid("manifest.requirements is required")
	}
	if strings.TrimSpace(cv.config.Channels.Binary.Command) == "" {
		return invalid("channels.binary.command cannot be empty")
	}
	if !strings.Contains(cv.config.Channels.Source.Interpreter, "{version}") {
		return invalid("channels.source.interpreter must contain {version}: %q", cv.config.Channels.Source.Interpreter)
	}
	switch cv.config.Channels.Source.VenvModule {
	case "", "venv", "virtualenv":
	default:
		return invalid("channels.source.venv_module must be venv or virtualenv, got %q", cv.config.Channels.Source.VenvModule)
	}
	return nil
}

// validateOverrides enforces that only the source installer can be forced.
func (cv *configurationValidator) validateOverrides() error {
	for name, ch := range cv.config.Overrides {
		parsed, err := ParseChannel(string(ch))
		if err != nil {
			return invalid("override %s: %v", name, err)
		}
		if parsed != ChannelSource {
			return invalid("override %s: only the source channel can be forced, got %s", name, parsed)
		}
	}
	return nil
}

func (cv *configurationValidator) validateMatrix() error {
	m := cv.config.Matrix
	if len(m.Python) == 0 && len(m.Include) == 0 {
		return invalid("matrix must declare python versions or include entries")
	}
	for _, v := range m.Python {
		if strings.TrimSpace(v) == "" {
			return invalid("matrix.python contains an empty version")
		}
	}
	if len(m.Python) > 0 && len(m.Channels) == 0 {
		return invalid("matrix.channels must not be empty when matrix.python is set")
	}
	for _, ch := range m.Channels {
		if _, err := ParseChannel(string(ch)); err != nil {
			return invalid("matrix.channels: %v", err)
		}
	}
	for i, inc := range m.Include {
		if strings.TrimSpace(inc.Python) == "" {
			return invalid("matrix.include[%d]: python is required", i)
		}
		if inc.Channel != "" {
			if _, err := ParseChannel(string(inc.Channel)); err != nil {
				return invalid("matrix.include[%d]: %v", i, err)
			}
		}
		switch inc.AfterSuccess {
		case PostActionNone, PostActionCoverageUpload:
		default:
			return invalid("matrix.include[%d]: unsupported after_success action %q", i, inc.AfterSuccess)
		}
		if inc.Pinned && cv.config.Manifest.Pinned == "" {
			return invalid("matrix.include[%d]: pinned entry requires manifest.pinned", i)
		}
	}
	for i, ex := range m.Exclude {
		if strings.TrimSpace(ex.Reason) == "" {
			return invalid("matrix.exclude[%d]: reason is required", i)
		}
		if ex.Python == "" && ex.Channel == "" && ex.Pinned == nil && ex.MPI == nil {
			return invalid("matrix.exclude[%d]: rule must set at least one of python, channel, pinned, mpi", i)
		}
		if ex.Channel != "" {
			if _, err := ParseChannel(string(ex.Channel)); err != nil {
				return invalid("matrix.exclude[%d]: %v", i, err)
			}
		}
	}
	return nil
}

func (cv *configurationValidator) validateTests() error {
	switch cv.config.Tests.Runner {
	case RunnerNose, RunnerPytest, RunnerUnittest:
	default:
		return invalid("tests.runner %q is not one of: %s", cv.config.Tests.Runner, strings.Join(runnerNormalizer.ValidKeys(), ", "))
	}
	if cv.config.Tests.CoveragePackage == "" {
		return invalid("tests.coverage_package is required")
	}
	if cv.config.MPI.Procs != 1 {
		return invalid("mpi.procs must be 1, got %d", cv.config.MPI.Procs)
	}
	if cv.config.Capability != nil && strings.ContainsAny(cv.config.Capability.Module+cv.config.Capability.Flag, " ;\"'") {
		return invalid("capability module and flag must be plain identifiers")
	}
	return nil
}

func (cv *configurationValidator) validateCoverage() error {
	cov := cv.config.Coverage
	switch cov.Uploader {
	case UploaderHTTP:
		if cov.Endpoint == "" {
			return invalid("coverage.endpoint is required for the http uploader")
		}
	case UploaderS3:
		if cov.S3.Endpoint == "" || cov.S3.Bucket == "" {
			return invalid("coverage.s3.endpoint and coverage.s3.bucket are required for the s3 uploader")
		}
	case UploaderCommand:
		if len(cov.Command) == 0 {
			return invalid("coverage.command is required for the command uploader")
		}
	default:
		return invalid("coverage.uploader must be http, s3 or command, got %q", cov.Uploader)
	}

	if NormalizeRetryBackoff(string(cov.Retry.Backoff)) == "" {
		return invalid("coverage.retry.backoff: unsupported mode %q", cov.Retry.Backoff)
	}
	initial, err := time.ParseDuration(cov.Retry.InitialDelay)
	if err != nil {
		return invalid("coverage.retry.initial_delay: %v", err)
	}
	maxDelay, err := time.ParseDuration(cov.Retry.MaxDelay)
	if err != nil {
		return invalid("coverage.retry.max_delay: %v", err)
	}
	if maxDelay < initial {
		return invalid("coverage.retry.max_delay (%s) cannot be less than initial_delay (%s)", maxDelay, initial)
	}
	if cov.Retry.MaxRetries != nil && *cov.Retry.MaxRetries < 0 {
		return invalid("coverage.retry.max_retries cannot be negative")
	}
	return nil
}

func (cv *configurationValidator) validateRuntime() error {
	if cv.config.Timeouts.Stage != "" {
		d, err := time.ParseDuration(cv.config.Timeouts.Stage)
		if err != nil {
			return invalid("timeouts.stage: %v", err)
		}
		if d <= 0 {
			return invalid("timeouts.stage must be positive")
		}
	}
	switch cv.config.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return invalid("log level must be debug, info, warn or error, got %q", cv.config.LogLevel)
	}
	if err := ValidateSchedule(cv.config.Daemon.Schedule); err != nil {
		return invalid("daemon.schedule: %v", err)
	}
	return nil
}

// ValidateSchedule accepts a Go duration or a five/six field cron expression.
func ValidateSchedule(schedule string) error {
	s := strings.TrimSpace(schedule)
	if s == "" {
		return fmt.Errorf("schedule is empty")
	}
	if d, err := time.ParseDuration(s); err == nil {
		if d <= 0 {
			return fmt.Errorf("interval must be positive")
		}
		return nil
	}
	if n := len(strings.Fields(s)); n == 5 || n == 6 {
		return nil
	}
	return fmt.Errorf("%q is neither a duration nor a cron expression", schedule)
}

// IsDurationSchedule reports whether the schedule is a plain interval.
func IsDurationSchedule(schedule string) (time.Duration, bool) {
	d, err := time.ParseDuration(strings.TrimSpace(schedule))
	if err != nil || d <= 0 {
		return 0, false
	}
	return d, true
}
