package importer

import (
	"context"
	"fmt"
	"os"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	gogithttp "github.com/go-git/go-git/v5/plumbing/transport/http"
)

// Cloner fetches a remote repository into a local directory for reading.
type Cloner interface {
	// Clone materializes the repo's branch into a temp directory and
	// returns the directory, the HEAD commit SHA, and a cleanup func.
	Clone(ctx context.Context, repoURL, branch, token string) (dir string, headSHA string, cleanup func(), err error)
}

// GitCloner clones with go-git using shallow, single-branch clones.
type GitCloner struct{}

// Clone implements Cloner.
func (GitCloner) Clone(ctx context.Context, repoURL, branch, token string) (string, string, func(), error) {
	dir, err := os.MkdirTemp("", "registry-import-*")
	if err != nil {
		return "", "", nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	cleanup := func() { os.RemoveAll(dir) }

	cloneOpts := &gogit.CloneOptions{
		URL:           repoURL,
		ReferenceName: plumbing.NewBranchReferenceName(branch),
		SingleBranch:  true,
		Depth:         1,
	}
	if token != "" {
		cloneOpts.Auth = &gogithttp.BasicAuth{
			Username: "git", // Username is ignored for token auth.
			Password: token,
		}
	}

	repo, err := gogit.PlainCloneContext(ctx, dir, false, cloneOpts)
	if err != nil {
		cleanup()
		return "", "", nil, fmt.Errorf("git clone failed for %s: %w", repoURL, err)
	}

	ref, err := repo.Head()
	if err != nil {
		cleanup()
		return "", "", nil, fmt.Errorf("failed to resolve HEAD of %s: %w", repoURL, err)
	}

	return dir, ref.Hash().String(), cleanup, nil
}
