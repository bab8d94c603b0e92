package coverage

import (
	"context"
	"errors"
	"path/filepath"

	"git.home.luguber.info/inful/matrixci/internal/config"
	"git.home.luguber.info/inful/matrixci/internal/shell"
)

// CommandUploader runs a reporting module inside the entry's environment,
// e.g. ["coveralls"] becomes "python -m coveralls".
type CommandUploader struct {
	Argv     []string
	Executor shell.Executor
	Dir      string
}

func (u *CommandUploader) Kind() config.UploaderKind { return config.UploaderCommand }

func (u *CommandUploader) Upload(ctx context.Context, req Request) (string, error) {
	if len(u.Argv) == 0 {
		return "", errors.New("coverage command is empty")
	}
	cmd := req.Environment.Module(u.Argv[0], u.Argv[1:]...).
		WithDir(u.Dir).
		WithEnv("COVERAGE_FILE=" + req.File).
		WithEnv(req.Env...)
	if err := u.Executor.Run(ctx, cmd, req.Out); err != nil {
		return "", err
	}
	return filepath.Base(req.File) + " via " + u.Argv[0], nil
}
