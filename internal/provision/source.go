package provision

import (
	"errors"
	"path/filepath"

	"git.home.luguber.info/inful/matrixci/internal/config"
	"git.home.luguber.info/inful/matrixci/internal/shell"
)

// SourceResolver provisions a virtual environment with the source installer.
type SourceResolver struct{}

func (SourceResolver) Channel() config.Channel { return config.ChannelSource }

func (SourceResolver) Plan(req Request) (*Plan, error) {
	if req.WorkDir == "" {
		return nil, errors.New("source provisioning requires an entry work directory")
	}
	if req.ManifestPath == "" {
		return nil, errors.New("source provisioning requires a manifest path")
	}
	venv := filepath.Join(req.WorkDir, "venv")
	env := SourceEnvironment(venv)
	source := req.Config.Channels.Source
	interpreter := source.InterpreterFor(req.Entry.Python)

	plan := &Plan{Environment: env}
	plan.Steps = append(plan.Steps,
		Step{
			Name:    "create virtual environment",
			Command: shell.Command{Argv: []string{interpreter, "-m", source.VenvModuleFor(req.Entry.Python), venv}},
		},
		Step{
			Name:    "install dependencies",
			Command: env.Module("pip", "install", "-r", req.ManifestPath),
		},
	)
	plan.Steps = append(plan.Steps, sourceInstallSteps(env, req)...)
	return plan, nil
}
