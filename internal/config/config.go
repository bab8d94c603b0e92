package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	foundationerrors "git.home.luguber.info/inful/matrixci/internal/foundation/errors"
)

// Config represents the matrixci configuration file.
type Config struct {
	Project       ProjectConfig      `yaml:"project" toml:"project"`
	ChannelEnv    string             `yaml:"channel_env,omitempty" toml:"channel_env,omitempty"`
	Manifest      ManifestConfig     `yaml:"manifest" toml:"manifest"`
	Channels      ChannelsConfig     `yaml:"channels" toml:"channels"`
	Overrides     map[string]Channel `yaml:"overrides,omitempty" toml:"overrides,omitempty"`
	BeforeInstall []string           `yaml:"before_install,omitempty" toml:"before_install,omitempty"`
	BeforeScript  []string           `yaml:"before_script,omitempty" toml:"before_script,omitempty"`
	Capability    *CapabilityConfig  `yaml:"capability,omitempty" toml:"capability,omitempty"`
	Tests         TestsConfig        `yaml:"tests" toml:"tests"`
	MPI           MPIConfig          `yaml:"mpi" toml:"mpi"`
	Coverage      CoverageConfig     `yaml:"coverage" toml:"coverage"`
	Matrix        MatrixConfig       `yaml:"matrix" toml:"matrix"`
	Workspace     WorkspaceConfig    `yaml:"workspace" toml:"workspace"`
	Timeouts      TimeoutsConfig     `yaml:"timeouts,omitempty" toml:"timeouts,omitempty"`
	History       HistoryConfig      `yaml:"history,omitempty" toml:"history,omitempty"`
	Notify        NotifyConfig       `yaml:"notify,omitempty" toml:"notify,omitempty"`
	Daemon        DaemonConfig       `yaml:"daemon,omitempty" toml:"daemon,omitempty"`
	Parallel      int                `yaml:"parallel,omitempty" toml:"parallel,omitempty"`
	LogLevel      string             `yaml:"log_level,omitempty" toml:"log_level,omitempty"`
}

// ProjectConfig describes the package under test.
type ProjectConfig struct {
	Name    string `yaml:"name" toml:"name"`
	Dir     string `yaml:"dir,omitempty" toml:"dir,omitempty"`         // defaults to the config file's directory
	Package string `yaml:"package,omitempty" toml:"package,omitempty"` // install target, defaults to "."
}

// ManifestConfig points at the requirement manifests.
type ManifestConfig struct {
	Requirements string `yaml:"requirements" toml:"requirements"`
	Pinned       string `yaml:"pinned,omitempty" toml:"pinned,omitempty"`
}

// ChannelsConfig holds per-channel installer settings.
type ChannelsConfig struct {
	Binary BinaryChannelConfig `yaml:"binary" toml:"binary"`
	Source SourceChannelConfig `yaml:"source" toml:"source"`
}

// BinaryChannelConfig configures the binary package manager.
type BinaryChannelConfig struct {
	Command       string   `yaml:"command,omitempty" toml:"command,omitempty"`
	BasePackages  []string `yaml:"base_packages,omitempty" toml:"base_packages,omitempty"`
	ExtraChannels []string `yaml:"extra_channels,omitempty" toml:"extra_channels,omitempty"`
	EnvPrefix     string   `yaml:"env_prefix,omitempty" toml:"env_prefix,omitempty"`
}

// SourceChannelConfig configures the source installer.
type SourceChannelConfig struct {
	// Interpreter is a template; "{version}" is replaced by the entry's python version.
	Interpreter string `yaml:"interpreter,omitempty" toml:"interpreter,omitempty"`
	// VenvModule creates the environment ("venv" or "virtualenv"). Empty picks
	// virtualenv for 2.x interpreters, which ship without venv.
	VenvModule string `yaml:"venv_module,omitempty" toml:"venv_module,omitempty"`
}

// InterpreterFor returns the interpreter binary for a python version.
func (s SourceChannelConfig) InterpreterFor(version string) string {
	return strings.ReplaceAll(s.Interpreter, "{version}", version)
}

// VenvModuleFor returns the module that creates a virtual environment for a python version.
func (s SourceChannelConfig) VenvModuleFor(version string) string {
	if s.VenvModule != "" {
		return s.VenvModule
	}
	if version == "2" || strings.HasPrefix(version, "2.") {
		return "virtualenv"
	}
	return "venv"
}

// CapabilityConfig names the compiled capability flag checked after provisioning.
type CapabilityConfig struct {
	Module string `yaml:"module" toml:"module"`
	Flag   string `yaml:"flag" toml:"flag"`
}

// TestsConfig configures the test runner invocation.
type TestsConfig struct {
	Runner          TestRunner `yaml:"runner,omitempty" toml:"runner,omitempty"`
	CoveragePackage string     `yaml:"coverage_package,omitempty" toml:"coverage_package,omitempty"`
	Args            []string   `yaml:"args,omitempty" toml:"args,omitempty"`
}

// MPIConfig configures the message-passing launcher.
type MPIConfig struct {
	Launcher string `yaml:"launcher,omitempty" toml:"launcher,omitempty"`
	Procs    int    `yaml:"procs,omitempty" toml:"procs,omitempty"`
}

// CoverageConfig configures the best-effort coverage upload.
type CoverageConfig struct {
	Uploader UploaderKind `yaml:"uploader,omitempty" toml:"uploader,omitempty"`
	File     string       `yaml:"file,omitempty" toml:"file,omitempty"`
	Endpoint string       `yaml:"endpoint,omitempty" toml:"endpoint,omitempty"`
	Service  string       `yaml:"service,omitempty" toml:"service,omitempty"`
	TokenEnv string       `yaml:"token_env,omitempty" toml:"token_env,omitempty"`
	JobIDEnv string       `yaml:"job_id_env,omitempty" toml:"job_id_env,omitempty"`
	Command  []string     `yaml:"command,omitempty" toml:"command,omitempty"`
	S3       S3Config     `yaml:"s3,omitempty" toml:"s3,omitempty"`
	Retry    RetryConfig  `yaml:"retry,omitempty" toml:"retry,omitempty"`
}

// S3Config configures the S3-compatible coverage sink.
type S3Config struct {
	Endpoint     string `yaml:"endpoint,omitempty" toml:"endpoint,omitempty"`
	Bucket       string `yaml:"bucket,omitempty" toml:"bucket,omitempty"`
	Prefix       string `yaml:"prefix,omitempty" toml:"prefix,omitempty"`
	Region       string `yaml:"region,omitempty" toml:"region,omitempty"`
	AccessKeyEnv string `yaml:"access_key_env,omitempty" toml:"access_key_env,omitempty"`
	SecretKeyEnv string `yaml:"secret_key_env,omitempty" toml:"secret_key_env,omitempty"`
	UseSSL       bool   `yaml:"use_ssl,omitempty" toml:"use_ssl,omitempty"`
}

// MatrixConfig declares the build matrix.
type MatrixConfig struct {
	Python   []string      `yaml:"python" toml:"python"`
	Channels []Channel     `yaml:"channels" toml:"channels"`
	Include  []EntryConfig `yaml:"include,omitempty" toml:"include,omitempty"`
	Exclude  []ExcludeRule `yaml:"exclude,omitempty" toml:"exclude,omitempty"`
}

// EntryConfig is an explicitly declared matrix entry.
type EntryConfig struct {
	Python            string            `yaml:"python" toml:"python"`
	Channel           Channel           `yaml:"channel,omitempty" toml:"channel,omitempty"`
	Env               map[string]string `yaml:"env,omitempty" toml:"env,omitempty"`
	Pinned            bool              `yaml:"pinned,omitempty" toml:"pinned,omitempty"`
	ExtraRequirements []string          `yaml:"extra_requirements,omitempty" toml:"extra_requirements,omitempty"`
	MPI               bool              `yaml:"mpi,omitempty" toml:"mpi,omitempty"`
	BeforeInstall     []string          `yaml:"before_install,omitempty" toml:"before_install,omitempty"`
	BeforeScript      []string          `yaml:"before_script,omitempty" toml:"before_script,omitempty"`
	AfterSuccess      PostAction        `yaml:"after_success,omitempty" toml:"after_success,omitempty"`
	AllowFailure      bool              `yaml:"allow_failure,omitempty" toml:"allow_failure,omitempty"`
}

// ExcludeRule removes matching entries from execution. Unset fields match anything.
type ExcludeRule struct {
	Python  string  `yaml:"python,omitempty" toml:"python,omitempty"`
	Channel Channel `yaml:"channel,omitempty" toml:"channel,omitempty"`
	Pinned  *bool   `yaml:"pinned,omitempty" toml:"pinned,omitempty"`
	MPI     *bool   `yaml:"mpi,omitempty" toml:"mpi,omitempty"`
	Reason  string  `yaml:"reason" toml:"reason"`
}

// WorkspaceConfig configures where environments and stage logs live.
type WorkspaceConfig struct {
	Dir  string `yaml:"dir,omitempty" toml:"dir,omitempty"`
	Keep bool   `yaml:"keep,omitempty" toml:"keep,omitempty"`
}

// TimeoutsConfig holds optional stage timeouts as Go duration strings.
type TimeoutsConfig struct {
	Stage string `yaml:"stage,omitempty" toml:"stage,omitempty"`
}

// HistoryConfig enables the SQLite event history.
type HistoryConfig struct {
	Path  string `yaml:"path,omitempty" toml:"path,omitempty"`
	Limit int    `yaml:"limit,omitempty" toml:"limit,omitempty"`
}

// NotifyConfig enables NATS run notifications.
type NotifyConfig struct {
	NATSURL string `yaml:"nats_url,omitempty" toml:"nats_url,omitempty"`
	Subject string `yaml:"subject,omitempty" toml:"subject,omitempty"`
}

// DaemonConfig configures scheduled mode.
type DaemonConfig struct {
	Schedule string `yaml:"schedule,omitempty" toml:"schedule,omitempty"`
	Listen   string `yaml:"listen,omitempty" toml:"listen,omitempty"`
	DataDir  string `yaml:"data_dir,omitempty" toml:"data_dir,omitempty"`
}

// Load loads, defaults and validates configuration from the specified file.
func Load(configPath string) (*Config, error) {
	loadEnvFiles(filepath.Dir(configPath))

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, foundationerrors.ConfigError(fmt.Sprintf("configuration file not found: %s", configPath)).
			WithContext("path", configPath).
			Build()
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, foundationerrors.WrapError(err, foundationerrors.CategoryFileSystem, "failed to read config file").
			WithContext("path", configPath).
			Build()
	}

	cfg, err := Parse(configPath, data)
	if err != nil {
		return nil, err
	}

	if cfg.Project.Dir == "" {
		cfg.Project.Dir = filepath.Dir(configPath)
	}
	if err := applyDefaults(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes raw configuration bytes. Files ending in .toml are decoded as TOML,
// everything else as YAML. Environment references are expanded before decoding.
func Parse(configPath string, data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if strings.EqualFold(filepath.Ext(configPath), ".toml") {
		if _, err := toml.Decode(expanded, &cfg); err != nil {
			return nil, foundationerrors.WrapError(err, foundationerrors.CategoryConfig, "failed to decode TOML config").
				WithContext("path", configPath).
				Fatal().
				Build()
		}
		return &cfg, nil
	}
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, foundationerrors.WrapError(err, foundationerrors.CategoryConfig, "failed to unmarshal config").
			WithContext("path", configPath).
			Fatal().
			Build()
	}
	return &cfg, nil
}

// ManifestPath resolves a manifest reference relative to the project directory.
func (c *Config) ManifestPath(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Project.Dir, p)
}

// ResolveChannelEnv returns the name of the channel-selection variable.
func (c *Config) ResolveChannelEnv() string {
	if c.ChannelEnv == "" {
		return DefaultChannelEnv
	}
	return c.ChannelEnv
}
