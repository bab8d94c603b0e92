package provision

import (
	"fmt"
	"slices"

	"git.home.luguber.info/inful/matrixci/internal/config"
	"git.home.luguber.info/inful/matrixci/internal/manifest"
	"git.home.luguber.info/inful/matrixci/internal/matrix"
	"git.home.luguber.info/inful/matrixci/internal/shell"
)

// Request carries everything needed to plan one entry's provisioning.
type Request struct {
	Entry        matrix.Entry
	Config       *config.Config
	Manifest     *manifest.Manifest
	ManifestPath string
	// ExtraRequirements are resolved paths of additional requirement files.
	ExtraRequirements []string
	// WorkDir is the entry's workspace directory.
	WorkDir string
}

// Step is one installer invocation.
type Step struct {
	Name    string
	Command shell.Command
}

// Plan is the ordered install sequence for one entry.
type Plan struct {
	Environment Environment
	Steps       []Step
	// Bulk lists the dependency names handed to the binary bulk install.
	Bulk []string
	// Overridden lists dependency names forced to the source installer.
	Overridden []string
	// Warnings collects non-fatal planning findings such as unused overrides.
	Warnings []string
}

// Resolver plans installation for one channel.
type Resolver interface {
	Channel() config.Channel
	Plan(req Request) (*Plan, error)
}

// ForChannel returns the resolver for ch.
func ForChannel(ch config.Channel) (Resolver, error) {
	switch ch {
	case config.ChannelBinary:
		return BinaryResolver{}, nil
	case config.ChannelSource:
		return SourceResolver{}, nil
	default:
		return nil, fmt.Errorf("no resolver for channel %q", ch)
	}
}

// BuildPlan picks the entry's resolver and plans it.
func BuildPlan(req Request) (*Plan, error) {
	r, err := ForChannel(req.Entry.Channel)
	if err != nil {
		return nil, err
	}
	return r.Plan(req)
}

// Commands returns the plan's commands in order.
func (p *Plan) Commands() []shell.Command {
	out := make([]shell.Command, len(p.Steps))
	for i, s := range p.Steps {
		out[i] = s.Command
	}
	return out
}

func forcedSet(overrides map[string]config.Channel) map[string]bool {
	forced := make(map[string]bool, len(overrides))
	for name, ch := range overrides {
		if ch == config.ChannelSource {
			forced[manifest.NormalizeName(name)] = true
		}
	}
	return forced
}

func unusedOverrides(m *manifest.Manifest, forced map[string]bool) []string {
	var out []string
	for name := range forced {
		if _, ok := m.Lookup(name); !ok {
			out = append(out, fmt.Sprintf("override %s does not match any manifest dependency", name))
		}
	}
	slices.Sort(out)
	return out
}

func sourceInstallSteps(env Environment, req Request) []Step {
	var steps []Step
	for _, extra := range req.ExtraRequirements {
		steps = append(steps, Step{
			Name:    "install extra requirements " + extra,
			Command: env.Module("pip", "install", "-r", extra),
		})
	}
	pkg := req.Config.Project.Package
	steps = append(steps, Step{
		Name:    "install package under test",
		Command: env.Module("pip", "install", pkg).WithDir(req.Config.Project.Dir),
	})
	return steps
}
