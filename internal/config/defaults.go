package config

import (
	"os"
	"strconv"
	"strings"

	foundationerrors "git.home.luguber.info/inful/matrixci/internal/foundation/errors"
	"git.home.luguber.info/inful/matrixci/internal/manifest"
)

// DefaultApplier applies defaults for a specific configuration domain.
type DefaultApplier interface {
	ApplyDefaults(cfg *Config) error
	Domain() string
}

// ProjectDefaultApplier handles project, manifest and channel defaults.
type ProjectDefaultApplier struct{}

func (p *ProjectDefaultApplier) Domain() string { return "project" }

func (p *ProjectDefaultApplier) ApplyDefaults(cfg *Config) error {
	if cfg.Project.Package == "" {
		cfg.Project.Package = "."
	}
	if cfg.ChannelEnv == "" {
		cfg.ChannelEnv = DefaultChannelEnv
	}
	if cfg.Manifest.Requirements == "" {
		cfg.Manifest.Requirements = "requirements.txt"
	}

	bin := &cfg.Channels.Binary
	if bin.Command == "" {
		bin.Command = "conda"
	}
	if bin.BasePackages == nil {
		bin.BasePackages = []string{"mkl"}
	}
	if bin.ExtraChannels == nil {
		bin.ExtraChannels = []string{"conda-forge"}
	}
	if bin.EnvPrefix == "" {
		bin.EnvPrefix = "matrixci"
	}
	if cfg.Channels.Source.Interpreter == "" {
		cfg.Channels.Source.Interpreter = "python{version}"
	}

	// Overrides and matrix channels accept aliases; store canonical names.
	if len(cfg.Overrides) > 0 {
		normalized := make(map[string]Channel, len(cfg.Overrides))
		for name, ch := range cfg.Overrides {
			if parsed, err := ParseChannel(string(ch)); err == nil {
				ch = parsed
			}
			normalized[manifest.NormalizeName(name)] = ch
		}
		cfg.Overrides = normalized
	}
	return nil
}

// TestDefaultApplier handles tests, capability and MPI defaults.
type TestDefaultApplier struct{}

func (t *TestDefaultApplier) Domain() string { return "tests" }

func (t *TestDefaultApplier) ApplyDefaults(cfg *Config) error {
	if cfg.Tests.Runner == "" {
		cfg.Tests.Runner = RunnerNose
	} else {
		cfg.Tests.Runner = NormalizeRunner(string(cfg.Tests.Runner))
	}
	if cfg.Tests.CoveragePackage == "" {
		cfg.Tests.CoveragePackage = cfg.Project.Name
	}
	if cfg.Capability != nil {
		if cfg.Capability.Module == "" {
			cfg.Capability.Module = "elephant.spade"
		}
		if cfg.Capability.Flag == "" {
			cfg.Capability.Flag = "HAVE_FIM"
		}
	}
	if cfg.MPI.Launcher == "" {
		cfg.MPI.Launcher = "mpiexec"
	}
	if cfg.MPI.Procs == 0 {
		cfg.MPI.Procs = 1
	}
	return nil
}

// CoverageDefaultApplier handles coverage upload defaults.
type CoverageDefaultApplier struct{}

func (c *CoverageDefaultApplier) Domain() string { return "coverage" }

func (c *CoverageDefaultApplier) ApplyDefaults(cfg *Config) error {
	cov := &cfg.Coverage
	if cov.Uploader == "" {
		cov.Uploader = UploaderHTTP
	}
	if cov.File == "" {
		cov.File = ".coverage"
		if cfg.Tests.Runner == RunnerPytest {
			cov.File = "coverage.xml"
		}
	}
	if cov.Uploader == UploaderHTTP {
		if cov.Endpoint == "" {
			cov.Endpoint = "https://coveralls.io/api/v1/jobs"
		}
		if cov.Service == "" {
			cov.Service = "matrixci"
		}
		if cov.TokenEnv == "" {
			cov.TokenEnv = "COVERALLS_REPO_TOKEN"
		}
	}
	if cov.Uploader == UploaderS3 {
		if cov.S3.AccessKeyEnv == "" {
			cov.S3.AccessKeyEnv = "MATRIXCI_S3_ACCESS_KEY"
		}
		if cov.S3.SecretKeyEnv == "" {
			cov.S3.SecretKeyEnv = "MATRIXCI_S3_SECRET_KEY"
		}
		if cov.S3.Prefix == "" {
			cov.S3.Prefix = "coverage"
		}
	}

	if cov.Retry.Backoff == "" {
		cov.Retry.Backoff = RetryBackoffLinear
	} else if m := NormalizeRetryBackoff(string(cov.Retry.Backoff)); m != "" {
		cov.Retry.Backoff = m
	}
	if cov.Retry.InitialDelay == "" {
		cov.Retry.InitialDelay = "1s"
	}
	if cov.Retry.MaxDelay == "" {
		cov.Retry.MaxDelay = "30s"
	}
	if cov.Retry.MaxRetries == nil {
		n := 2
		cov.Retry.MaxRetries = &n
	}
	return nil
}

// RuntimeDefaultApplier handles workspace, history, daemon and env overrides.
type RuntimeDefaultApplier struct{}

func (r *RuntimeDefaultApplier) Domain() string { return "runtime" }

func (r *RuntimeDefaultApplier) ApplyDefaults(cfg *Config) error {
	if cfg.Matrix.Channels == nil {
		cfg.Matrix.Channels = []Channel{ChannelBinary, ChannelSource}
	}
	for i, ch := range cfg.Matrix.Channels {
		if parsed, err := ParseChannel(string(ch)); err == nil {
			cfg.Matrix.Channels[i] = parsed
		}
	}
	for i := range cfg.Matrix.Include {
		if cfg.Matrix.Include[i].Channel == "" {
			continue
		}
		if parsed, err := ParseChannel(string(cfg.Matrix.Include[i].Channel)); err == nil {
			cfg.Matrix.Include[i].Channel = parsed
		}
	}
	for i := range cfg.Matrix.Exclude {
		if cfg.Matrix.Exclude[i].Channel == "" {
			continue
		}
		if parsed, err := ParseChannel(string(cfg.Matrix.Exclude[i].Channel)); err == nil {
			cfg.Matrix.Exclude[i].Channel = parsed
		}
	}

	if cfg.Workspace.Dir == "" {
		cfg.Workspace.Dir = ".matrixci"
	}
	if cfg.History.Limit <= 0 {
		cfg.History.Limit = 20
	}
	if cfg.Notify.NATSURL != "" && cfg.Notify.Subject == "" {
		cfg.Notify.Subject = "matrixci.runs"
	}
	if cfg.Daemon.Schedule == "" {
		cfg.Daemon.Schedule = "24h"
	}
	if cfg.Daemon.Listen == "" {
		cfg.Daemon.Listen = ":9464"
	}
	if cfg.Daemon.DataDir == "" {
		cfg.Daemon.DataDir = ".matrixci-daemon"
	}

	if v := strings.TrimSpace(os.Getenv("MATRIXCI_PARALLEL")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return foundationerrors.ValidationError("MATRIXCI_PARALLEL must be an integer").
				WithCause(err).
				WithContext("value", v).
				Build()
		}
		cfg.Parallel = n
	}
	if cfg.Parallel <= 0 {
		cfg.Parallel = 1
	}
	if v := strings.TrimSpace(os.Getenv("MATRIXCI_LOG_LEVEL")); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	return nil
}

// defaultAppliers returns the appliers in execution order.
func defaultAppliers() []DefaultApplier {
	return []DefaultApplier{
		&ProjectDefaultApplier{},
		&TestDefaultApplier{},
		&CoverageDefaultApplier{},
		&RuntimeDefaultApplier{},
	}
}

func applyDefaults(cfg *Config) error {
	for _, applier := range defaultAppliers() {
		if err := applier.ApplyDefaults(cfg); err != nil {
			return err
		}
	}
	return nil
}

// ApplyDefaults is exported for callers that build a Config in code.
func ApplyDefaults(cfg *Config) error { return applyDefaults(cfg) }
