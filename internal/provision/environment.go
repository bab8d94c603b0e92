package provision

import (
	"os"
	"path/filepath"

	"git.home.luguber.info/inful/matrixci/internal/config"
	"git.home.luguber.info/inful/matrixci/internal/shell"
)

// Environment identifies a provisioned interpreter environment.
type Environment struct {
	Channel config.Channel
	Name    string // package-manager environment name (binary channel)
	Dir     string // virtual environment directory (source channel)
	// Python is the argv prefix that invokes the environment's interpreter.
	Python []string
}

// BinaryEnvironment builds the handle for a named package-manager environment.
func BinaryEnvironment(command, name string) Environment {
	return Environment{
		Channel: config.ChannelBinary,
		Name:    name,
		Python:  []string{command, "run", "--no-capture-output", "-n", name, "python"},
	}
}

// SourceEnvironment builds the handle for a virtual environment directory.
func SourceEnvironment(dir string) Environment {
	return Environment{
		Channel: config.ChannelSource,
		Dir:     dir,
		Python:  []string{filepath.Join(dir, "bin", "python")},
	}
}

// Interpreter returns a command running the environment's interpreter with args.
func (e Environment) Interpreter(args ...string) shell.Command {
	argv := make([]string, 0, len(e.Python)+len(args))
	argv = append(argv, e.Python...)
	argv = append(argv, args...)
	return shell.Command{Argv: argv}
}

// Module returns a command running python -m module args... inside the environment.
func (e Environment) Module(module string, args ...string) shell.Command {
	return e.Interpreter(append([]string{"-m", module}, args...)...)
}

// Shell returns a command running a shell line with the environment active.
func (e Environment) Shell(line string) shell.Command {
	if e.Channel == config.ChannelSource {
		cmd := shell.ShellLine(line)
		return cmd.WithEnv(
			"VIRTUAL_ENV="+e.Dir,
			"PATH="+filepath.Join(e.Dir, "bin")+string(os.PathListSeparator)+os.Getenv("PATH"),
		)
	}
	// binary: reuse the "conda run ... -n env" prefix without the trailing python
	argv := make([]string, 0, len(e.Python)+2)
	argv = append(argv, e.Python[:len(e.Python)-1]...)
	argv = append(argv, "sh", "-c", line)
	return shell.Command{Argv: argv}
}
