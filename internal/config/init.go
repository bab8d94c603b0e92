package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	foundationerrors "git.home.luguber.info/inful/matrixci/internal/foundation/errors"
)

// ExampleConfig returns a configuration reproducing a typical scientific package CI matrix.
func ExampleConfig() *Config {
	pinned := true
	return &Config{
		Project: ProjectConfig{
			Name:    "elephant",
			Package: ".",
		},
		ChannelEnv: DefaultChannelEnv,
		Manifest: ManifestConfig{
			Requirements: "requirements.txt",
			Pinned:       "requirements-pinned.txt",
		},
		Channels: ChannelsConfig{
			Binary: BinaryChannelConfig{
				Command:       "conda",
				BasePackages:  []string{"mkl"},
				ExtraChannels: []string{"conda-forge"},
				EnvPrefix:     "matrixci",
			},
			Source: SourceChannelConfig{Interpreter: "python{version}"},
		},
		Overrides: map[string]Channel{
			"neo": ChannelSource,
		},
		BeforeInstall: []string{"python --version"},
		Capability: &CapabilityConfig{
			Module: "elephant.spade",
			Flag:   "HAVE_FIM",
		},
		Tests: TestsConfig{
			Runner:          RunnerNose,
			CoveragePackage: "elephant",
		},
		MPI: MPIConfig{Launcher: "mpiexec", Procs: 1},
		Coverage: CoverageConfig{
			Uploader: UploaderHTTP,
			File:     ".coverage",
			Endpoint: "https://coveralls.io/api/v1/jobs",
			Service:  "matrixci",
			TokenEnv: "COVERALLS_REPO_TOKEN",
		},
		Matrix: MatrixConfig{
			Python:   []string{"2.7", "3.5", "3.6"},
			Channels: []Channel{ChannelBinary, ChannelSource},
			Include: []EntryConfig{
				{
					Python:            "3.6",
					Channel:           ChannelSource,
					ExtraRequirements: []string{"requirements-extras.txt"},
					MPI:               true,
					AfterSuccess:      PostActionCoverageUpload,
				},
				{
					Python:  "3.6",
					Channel: ChannelSource,
					Pinned:  true,
				},
			},
			Exclude: []ExcludeRule{
				{
					Python:  "3.6",
					Channel: ChannelSource,
					Pinned:  &pinned,
					Reason:  "pinned install broken by an unrelated upstream defect; kept disabled until upstream fix",
				},
			},
		},
		Workspace: WorkspaceConfig{Dir: ".matrixci"},
		History:   HistoryConfig{Path: ".matrixci/history.db"},
	}
}

// Init creates a new configuration file with example content.
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return foundationerrors.ConfigError(fmt.Sprintf("configuration file already exists: %s (use --force to overwrite)", configPath)).
			WithContext("path", configPath).
			Build()
	}

	data, err := yaml.Marshal(ExampleConfig())
	if err != nil {
		return foundationerrors.WrapError(err, foundationerrors.CategoryInternal, "failed to marshal example config").Build()
	}

	// #nosec G306 -- example configuration is not sensitive
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		return foundationerrors.WrapError(err, foundationerrors.CategoryFileSystem, "failed to write config file").
			WithContext("path", configPath).
			Build()
	}
	return nil
}
