package provision

import (
	"errors"

	"git.home.luguber.info/inful/matrixci/internal/config"
	"git.home.luguber.info/inful/matrixci/internal/shell"
)

// BinaryResolver provisions through the binary package manager.
type BinaryResolver struct{}

func (BinaryResolver) Channel() config.Channel { return config.ChannelBinary }

// EnvName returns the package-manager environment name for an entry.
func EnvName(cfg *config.Config, entryID string) string {
	return cfg.Channels.Binary.EnvPrefix + "-" + entryID
}

func (BinaryResolver) Plan(req Request) (*Plan, error) {
	if req.Manifest == nil {
		return nil, errors.New("binary provisioning requires a parsed manifest")
	}
	bin := req.Config.Channels.Binary
	name := EnvName(req.Config, req.Entry.ID)
	env := BinaryEnvironment(bin.Command, name)
	forced := forcedSet(req.Config.Overrides)
	bulk, overridden := req.Manifest.Partition(forced)

	plan := &Plan{Environment: env, Warnings: unusedOverrides(req.Manifest, forced)}
	plan.Steps = append(plan.Steps, Step{
		Name:    "create environment",
		Command: shell.Command{Argv: []string{bin.Command, "create", "--yes", "--name", name, "python=" + req.Entry.Python}},
	})
	if len(bin.BasePackages) > 0 {
		argv := append([]string{bin.Command, "install", "--yes", "--name", name}, bin.BasePackages...)
		plan.Steps = append(plan.Steps, Step{Name: "install base packages", Command: shell.Command{Argv: argv}})
	}
	for _, ch := range bin.ExtraChannels {
		plan.Steps = append(plan.Steps, Step{
			Name:    "register channel " + ch,
			Command: shell.Command{Argv: []string{bin.Command, "run", "-n", name, bin.Command, "config", "--env", "--add", "channels", ch}},
		})
	}
	if len(bulk) > 0 {
		argv := []string{bin.Command, "install", "--yes", "--name", name}
		for _, r := range bulk {
			argv = append(argv, r.Spec)
			plan.Bulk = append(plan.Bulk, r.Name)
		}
		plan.Steps = append(plan.Steps, Step{Name: "install dependencies", Command: shell.Command{Argv: argv}})
	}
	for _, r := range overridden {
		plan.Overridden = append(plan.Overridden, r.Name)
		plan.Steps = append(plan.Steps, Step{
			Name:    "install " + r.Name + " with source installer",
			Command: env.Module("pip", "install", r.Spec),
		})
	}
	plan.Steps = append(plan.Steps, sourceInstallSteps(env, req)...)
	return plan, nil
}
