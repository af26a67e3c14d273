package server

import (
	"context"
	"errors"
	"fmt"

	"github.com/uifoundry/registry-studio/pkg/export"
	"github.com/uifoundry/registry-studio/pkg/importer"
	"github.com/uifoundry/registry-studio/pkg/jobs"
)

// RunnerLookup maps job kinds to their runners for the worker pool.
func (s *Server) RunnerLookup() jobs.RunnerLookup {
	runners := map[jobs.JobKind]jobs.Runner{
		jobs.JobKindPush:   jobs.RunnerFunc(s.runPushJob),
		jobs.JobKindImport: jobs.RunnerFunc(s.runImportJob),
	}
	return func(kind jobs.JobKind) (jobs.Runner, bool) {
		r, ok := runners[kind]
		return r, ok
	}
}

// runPushJob executes an async push. A conflict is terminal: retrying
// cannot resolve it, the requester has to re-push with force or reconcile.
func (s *Server) runPushJob(ctx context.Context, job *jobs.SyncJob) (jobs.Outcome, error) {
	result, err := s.exportSvc.Push(ctx, job.RegistryID, job.Force)
	if err != nil {
		var conflict *export.ConflictError
		if errors.As(err, &conflict) {
			return jobs.Outcome{}, &jobs.TerminalError{Err: err}
		}
		if errors.Is(err, export.ErrNotExported) {
			return jobs.Outcome{}, &jobs.TerminalError{Err: err}
		}
		return jobs.Outcome{}, err
	}

	if result.NoChanges {
		return jobs.Outcome{Message: "no changes to push"}, nil
	}
	changed := len(result.Added) + len(result.Modified) + len(result.Deleted)
	s.caches.InvalidateAll()
	return jobs.Outcome{
		CommitSHA:    result.CommitSHA,
		FilesChanged: changed,
		Message:      fmt.Sprintf("pushed %d file(s)", changed),
	}, nil
}

// runImportJob executes an async GitHub import. Manifest problems are
// terminal; the repository content will not change between retries.
func (s *Server) runImportJob(ctx context.Context, job *jobs.SyncJob) (jobs.Outcome, error) {
	result, err := s.importer.ImportFromGithub(ctx, job.RequestedBy, importer.ImportOptions{
		Owner:  job.RepoOwner,
		Repo:   job.RepoName,
		Branch: job.Branch,
		Token:  s.cfg.Github.Token,
	})
	if err != nil {
		var manifest *importer.ManifestError
		if errors.As(err, &manifest) {
			return jobs.Outcome{}, &jobs.TerminalError{Err: err}
		}
		return jobs.Outcome{}, err
	}

	s.caches.InvalidateAll()
	return jobs.Outcome{
		CommitSHA:        result.CommitSHA,
		FilesChanged:     result.FileCount,
		ResultRegistryID: result.RegistryID,
		Message:          fmt.Sprintf("imported %d item(s)", result.ItemCount),
	}, nil
}
