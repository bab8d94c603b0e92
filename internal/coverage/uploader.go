package coverage

import (
	"context"
	"fmt"
	"io"

	"git.home.luguber.info/inful/matrixci/internal/config"
	"git.home.luguber.info/inful/matrixci/internal/git"
	"git.home.luguber.info/inful/matrixci/internal/provision"
	"git.home.luguber.info/inful/matrixci/internal/shell"
)

// Request describes one coverage upload.
type Request struct {
	RunID       string
	EntryID     string
	File        string // absolute path to the coverage report
	Environment provision.Environment
	Env         []string
	Revision    git.Revision
	Out         io.Writer
}

// Uploader ships a coverage report and returns where it landed.
type Uploader interface {
	Kind() config.UploaderKind
	Upload(ctx context.Context, req Request) (string, error)
}

// NewUploader builds the uploader selected by cfg.Coverage.
func NewUploader(cfg *config.Config, executor shell.Executor) (Uploader, error) {
	cov := cfg.Coverage
	switch cov.Uploader {
	case config.UploaderHTTP:
		return NewHTTPUploader(cov, nil), nil
	case config.UploaderS3:
		return NewS3Uploader(cov.S3)
	case config.UploaderCommand:
		return &CommandUploader{Argv: cov.Command, Executor: executor, Dir: cfg.Project.Dir}, nil
	default:
		return nil, fmt.Errorf("unsupported coverage uploader %q", cov.Uploader)
	}
}
