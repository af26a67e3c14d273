// Package export keeps a registry's remote GitHub repository in sync with
// local state: first-time export (repo creation plus full push) and
// subsequent incremental pushes driven by a hash-diffed snapshot, with
// explicit conflict detection against the remote HEAD.
package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/uifoundry/registry-studio/pkg/github"
	"github.com/uifoundry/registry-studio/pkg/registry"
	"github.com/uifoundry/registry-studio/pkg/scaffold"
	"github.com/uifoundry/registry-studio/pkg/snapshot"
)

// ErrAlreadyExported is returned when exporting a registry that already
// has a linked GitHub repository.
var ErrAlreadyExported = errors.New("registry already exported to github")

// ErrNotExported is returned when pushing a registry that has never been
// exported.
var ErrNotExported = errors.New("registry has no github export")

// ConflictError reports a detected divergence between the locally
// recorded commit and the actual remote HEAD. The remote is authoritative:
// the caller decides whether to force-push or reconcile manually.
type ConflictError struct {
	LocalCommitSHA  string
	RemoteCommitSHA string
	LastSyncedAt    time.Time
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("remote has moved: local commit %s, remote HEAD %s (last synced %s)",
		e.LocalCommitSHA, e.RemoteCommitSHA, e.LastSyncedAt.Format(time.RFC3339))
}

// RemoteClient is the subset of the GitHub client the sync engine uses.
type RemoteClient interface {
	CreateRepo(ctx context.Context, create github.CreateRepoRequest) (*github.Repo, error)
	GetRemoteCommitSHA(ctx context.Context, owner, repo string) (string, error)
	PushFiles(ctx context.Context, owner, repo string, files []snapshot.FileEntry, message string) (string, error)
	PushFilesIncremental(ctx context.Context, owner, repo string, upserts []snapshot.FileEntry, deletions []string, parentSHA, message string) (string, error)
	EnableGitHubPages(ctx context.Context, owner, repo string) string
	GetAuthenticatedUser(ctx context.Context) (string, error)
}

// Service orchestrates exports and pushes for registries.
type Service struct {
	store  *registry.Store
	client RemoteClient
	locker PushLocker
	logger *slog.Logger
	now    func() time.Time
}

// NewService creates an export service. locker may be nil, in which case
// pushes are serialized only by the remote HEAD check.
func NewService(store *registry.Store, client RemoteClient, locker PushLocker, logger *slog.Logger) *Service {
	if locker == nil {
		locker = &noopPushLock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:  store,
		client: client,
		locker: locker,
		logger: logger,
		now:    time.Now,
	}
}

// ExportOptions configures a first-time export.
type ExportOptions struct {
	// RepoName defaults to the registry slug.
	RepoName    string
	Description string
	Private     bool
	// Org creates the repository under an organization instead of the
	// authenticated user.
	Org string
}

// ExportToGithub creates a fresh GitHub repository for the registry,
// pushes the full generated scaffold as the initial commit, enables Pages
// hosting, and records the export state so later pushes diff from it.
func (s *Service) ExportToGithub(ctx context.Context, registryID string, opts ExportOptions) (*registry.GithubExport, error) {
	reg, err := s.store.GetRegistry(registryID)
	if err != nil {
		return nil, err
	}
	if reg == nil {
		return nil, registry.ErrNotFound
	}

	existing, err := s.store.GetGithubExport(registryID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrAlreadyExported
	}

	repoName := opts.RepoName
	if repoName == "" {
		repoName = reg.Slug
	}

	owner := opts.Org
	if owner == "" {
		owner, err = s.client.GetAuthenticatedUser(ctx)
		if err != nil {
			return nil, fmt.Errorf("resolve repository owner: %w", err)
		}
	}

	repo, err := s.client.CreateRepo(ctx, github.CreateRepoRequest{
		Name:        repoName,
		Description: opts.Description,
		Private:     opts.Private,
		Org:         opts.Org,
	})
	if err != nil {
		return nil, err
	}

	pagesURL := fmt.Sprintf("https://%s.github.io/%s/", owner, repoName)

	files, err := s.generateScaffold(reg, pagesURL)
	if err != nil {
		return nil, err
	}

	commitSHA, err := s.client.PushFiles(ctx, owner, repoName, files, "Initial registry export")
	if err != nil {
		return nil, err
	}

	pagesURL = s.client.EnableGitHubPages(ctx, owner, repoName)

	snapJSON, err := snapshot.Compute(files).Encode()
	if err != nil {
		return nil, err
	}

	export := &registry.GithubExport{
		RegistryID:    registryID,
		RepoURL:       repo.HTMLURL,
		PagesURL:      pagesURL,
		RepoOwner:     owner,
		RepoName:      repoName,
		LastCommitSHA: commitSHA,
		SyncSnapshot:  snapJSON,
		LastSyncedAt:  s.now(),
	}
	if err := s.store.CreateGithubExport(export); err != nil {
		return nil, err
	}

	repoURL := repo.HTMLURL
	if _, err := s.store.UpdateRegistry(registryID, registry.RegistryUpdate{GithubRepoURL: &repoURL}); err != nil {
		return nil, err
	}

	s.logger.Info("registry exported to github",
		"registry", registryID, "repo", owner+"/"+repoName, "commit", commitSHA)
	return export, nil
}

// PushResult reports the outcome of a push attempt.
type PushResult struct {
	// NoChanges is set when the fresh scaffold hashed identically to the
	// stored snapshot and no remote call was made.
	NoChanges bool
	CommitSHA string
	Added     []string
	Modified  []string
	Deleted   []string
}

// Push reconciles the registry's remote repository with local state as a
// single incremental commit. The sequence is: regenerate scaffold, diff
// against the stored snapshot, short-circuit on an empty diff, check the
// remote HEAD against the recorded commit (unless force is set), push the
// diff parented on that commit, and persist the new SHA and snapshot
// together. A failed push leaves the export record untouched so the next
// attempt re-diffs from the last known-good state.
func (s *Service) Push(ctx context.Context, registryID string, force bool) (*PushResult, error) {
	var result *PushResult
	err := s.locker.WithLock(ctx, registryID, func() error {
		var err error
		result, err = s.push(ctx, registryID, force)
		return err
	})
	return result, err
}

func (s *Service) push(ctx context.Context, registryID string, force bool) (*PushResult, error) {
	reg, err := s.store.GetRegistry(registryID)
	if err != nil {
		return nil, err
	}
	if reg == nil {
		return nil, registry.ErrNotFound
	}

	export, err := s.store.GetGithubExport(registryID)
	if err != nil {
		return nil, err
	}
	if export == nil {
		return nil, ErrNotExported
	}

	files, err := s.generateScaffold(reg, export.PagesURL)
	if err != nil {
		return nil, err
	}

	previous, err := snapshot.Decode(export.SyncSnapshot)
	if err != nil {
		return nil, fmt.Errorf("stored snapshot is corrupt: %w", err)
	}

	diff := snapshot.Diff(files, previous)
	if diff.Empty() {
		s.logger.Info("push skipped, no changes", "registry", registryID)
		return &PushResult{NoChanges: true, CommitSHA: export.LastCommitSHA}, nil
	}

	parentSHA := export.LastCommitSHA
	remoteSHA, err := s.client.GetRemoteCommitSHA(ctx, export.RepoOwner, export.RepoName)
	if err != nil {
		return nil, err
	}
	if remoteSHA != export.LastCommitSHA {
		if !force {
			return nil, &ConflictError{
				LocalCommitSHA:  export.LastCommitSHA,
				RemoteCommitSHA: remoteSHA,
				LastSyncedAt:    export.LastSyncedAt,
			}
		}
		// Forced push overwrites whatever moved the remote: parent on the
		// actual HEAD so the commit itself still fast-forwards.
		parentSHA = remoteSHA
	}

	upserts := make([]snapshot.FileEntry, 0, len(diff.Added)+len(diff.Modified))
	byPath := make(map[string]snapshot.FileEntry, len(files))
	for _, f := range files {
		byPath[f.Path] = f
	}
	for _, p := range diff.Added {
		upserts = append(upserts, byPath[p])
	}
	for _, p := range diff.Modified {
		upserts = append(upserts, byPath[p])
	}

	commitSHA, err := s.client.PushFilesIncremental(ctx, export.RepoOwner, export.RepoName,
		upserts, diff.Deleted, parentSHA, pushMessage(diff))
	if err != nil {
		return nil, err
	}

	snapJSON, err := diff.NewSnapshot.Encode()
	if err != nil {
		return nil, err
	}
	if err := s.store.UpdateGithubExport(registryID, commitSHA, snapJSON, s.now()); err != nil {
		return nil, err
	}

	s.logger.Info("registry pushed",
		"registry", registryID,
		"commit", commitSHA,
		"added", len(diff.Added),
		"modified", len(diff.Modified),
		"deleted", len(diff.Deleted),
	)
	return &PushResult{
		CommitSHA: commitSHA,
		Added:     diff.Added,
		Modified:  diff.Modified,
		Deleted:   diff.Deleted,
	}, nil
}

// GenerateScaffold regenerates the full scaffold for a registry from the
// data store. Shared with the hosted catalog endpoints.
func (s *Service) GenerateScaffold(registryID, pagesBaseURL string) ([]snapshot.FileEntry, error) {
	reg, err := s.store.GetRegistry(registryID)
	if err != nil {
		return nil, err
	}
	if reg == nil {
		return nil, registry.ErrNotFound
	}
	return s.generateScaffold(reg, pagesBaseURL)
}

func (s *Service) generateScaffold(reg *registry.Registry, pagesBaseURL string) ([]snapshot.FileEntry, error) {
	items, err := s.store.ListItemsByRegistry(reg.ID)
	if err != nil {
		return nil, err
	}

	withFiles := make([]scaffold.ItemWithFiles, 0, len(items))
	for _, item := range items {
		files, err := s.store.ListFilesByItem(item.ID)
		if err != nil {
			return nil, err
		}
		withFiles = append(withFiles, scaffold.ItemWithFiles{Item: item, Files: files})
	}

	return scaffold.Generate(reg, withFiles, pagesBaseURL)
}

func pushMessage(diff snapshot.DiffResult) string {
	var parts []string
	if n := len(diff.Added); n > 0 {
		parts = append(parts, fmt.Sprintf("%d added", n))
	}
	if n := len(diff.Modified); n > 0 {
		parts = append(parts, fmt.Sprintf("%d modified", n))
	}
	if n := len(diff.Deleted); n > 0 {
		parts = append(parts, fmt.Sprintf("%d deleted", n))
	}
	return "Sync registry: " + strings.Join(parts, ", ")
}
