package git

import (
	"errors"
	"fmt"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

// Revision describes the checked-out state of a repository.
type Revision struct {
	Commit  string `json:"commit,omitempty"`
	Branch  string `json:"branch,omitempty"`
	Author  string `json:"author,omitempty"`
	Email   string `json:"email,omitempty"`
	Message string `json:"message,omitempty"`
	Dirty   bool   `json:"dirty,omitempty"`
}

// Empty reports whether no repository was found.
func (r Revision) Empty() bool { return r.Commit == "" }

// Short returns the abbreviated commit hash.
func (r Revision) Short() string {
	if len(r.Commit) > 8 {
		return r.Commit[:8]
	}
	return r.Commit
}

// ReadRevision inspects the repository containing dir, searching parent directories.
func ReadRevision(dir string) (Revision, error) {
	repository, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return Revision{}, nil
		}
		return Revision{}, fmt.Errorf("open repository at %s: %w", dir, err)
	}

	head, err := repository.Head()
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			// Freshly initialized repository without commits.
			return Revision{}, nil
		}
		return Revision{}, fmt.Errorf("resolve HEAD: %w", err)
	}

	rev := Revision{Commit: head.Hash().String()}
	if head.Name().IsBranch() {
		rev.Branch = head.Name().Short()
	}

	if commit, err := repository.CommitObject(head.Hash()); err == nil {
		rev.Author = commit.Author.Name
		rev.Email = commit.Author.Email
		rev.Message = commit.Message
	}

	wt, err := repository.Worktree()
	if err == nil {
		status, err := wt.Status()
		if err != nil {
			return rev, fmt.Errorf("worktree status: %w", err)
		}
		rev.Dirty = !status.IsClean()
	}
	return rev, nil
}
