package export

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/uifoundry/registry-studio/pkg/github"
	"github.com/uifoundry/registry-studio/pkg/registry"
	"github.com/uifoundry/registry-studio/pkg/snapshot"
)

func setupTestDB(t *testing.T) *registry.Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	store := registry.NewStore(db)
	require.NoError(t, store.AutoMigrate())
	return store
}

// fakeRemote implements RemoteClient in memory and records calls.
type fakeRemote struct {
	user      string
	remoteSHA string
	commitSeq int

	createRepoErr error
	pushErr       error

	createdRepos []github.CreateRepoRequest
	fullPushes   [][]snapshot.FileEntry
	incPushes    []incPush
}

type incPush struct {
	upserts   []snapshot.FileEntry
	deletions []string
	parentSHA string
	message   string
}

func (f *fakeRemote) CreateRepo(_ context.Context, create github.CreateRepoRequest) (*github.Repo, error) {
	if f.createRepoErr != nil {
		return nil, f.createRepoErr
	}
	f.createdRepos = append(f.createdRepos, create)
	owner := create.Org
	if owner == "" {
		owner = f.user
	}
	return &github.Repo{
		Name:     create.Name,
		FullName: owner + "/" + create.Name,
		HTMLURL:  "https://github.com/" + owner + "/" + create.Name,
	}, nil
}

func (f *fakeRemote) GetRemoteCommitSHA(_ context.Context, _, _ string) (string, error) {
	return f.remoteSHA, nil
}

func (f *fakeRemote) nextSHA() string {
	f.commitSeq++
	return fmt.Sprintf("commit-%d", f.commitSeq)
}

func (f *fakeRemote) PushFiles(_ context.Context, _, _ string, files []snapshot.FileEntry, _ string) (string, error) {
	if f.pushErr != nil {
		return "", f.pushErr
	}
	f.fullPushes = append(f.fullPushes, files)
	f.remoteSHA = f.nextSHA()
	return f.remoteSHA, nil
}

func (f *fakeRemote) PushFilesIncremental(_ context.Context, _, _ string, upserts []snapshot.FileEntry, deletions []string, parentSHA, message string) (string, error) {
	if f.pushErr != nil {
		return "", f.pushErr
	}
	f.incPushes = append(f.incPushes, incPush{upserts: upserts, deletions: deletions, parentSHA: parentSHA, message: message})
	f.remoteSHA = f.nextSHA()
	return f.remoteSHA, nil
}

func (f *fakeRemote) EnableGitHubPages(_ context.Context, owner, repo string) string {
	return fmt.Sprintf("https://%s.github.io/%s/", owner, repo)
}

func (f *fakeRemote) GetAuthenticatedUser(_ context.Context) (string, error) {
	return f.user, nil
}

func seedRegistry(t *testing.T, store *registry.Store) *registry.Registry {
	t.Helper()
	reg := &registry.Registry{OwnerID: "alice", Name: "Acme UI"}
	require.NoError(t, store.CreateRegistry(reg))
	item := &registry.RegistryItem{RegistryID: reg.ID, Name: "button", Type: registry.ItemTypeUI}
	require.NoError(t, store.CreateItem(item))
	require.NoError(t, store.UpsertFile(&registry.ItemFile{
		ItemID: item.ID, Path: "button.tsx", Type: registry.FileTypeUI,
		Content: "export const Button = () => null\n",
	}))
	return reg
}

func newTestService(t *testing.T, store *registry.Store, remote *fakeRemote) *Service {
	t.Helper()
	return NewService(store, remote, nil, nil)
}

func TestExportToGithub(t *testing.T) {
	store := setupTestDB(t)
	reg := seedRegistry(t, store)
	remote := &fakeRemote{user: "alice-gh"}
	svc := newTestService(t, store, remote)

	export, err := svc.ExportToGithub(context.Background(), reg.ID, ExportOptions{})
	require.NoError(t, err)

	assert.Equal(t, "alice-gh", export.RepoOwner)
	assert.Equal(t, "acme-ui", export.RepoName)
	assert.Equal(t, "https://github.com/alice-gh/acme-ui", export.RepoURL)
	assert.Equal(t, "https://alice-gh.github.io/acme-ui/", export.PagesURL)
	assert.Equal(t, "commit-1", export.LastCommitSHA)
	assert.NotEmpty(t, export.SyncSnapshot)

	require.Len(t, remote.fullPushes, 1)
	paths := map[string]bool{}
	for _, f := range remote.fullPushes[0] {
		paths[f.Path] = true
	}
	assert.True(t, paths["registry.json"])
	assert.True(t, paths["r/button.json"])
	assert.True(t, paths["registry/button/button.tsx"])
	assert.True(t, paths["index.html"])
	assert.True(t, paths[".nojekyll"])

	// The registry record links back to the repo.
	updated, err := store.GetRegistry(reg.ID)
	require.NoError(t, err)
	assert.Equal(t, export.RepoURL, updated.GithubRepoURL)
}

func TestExportTwiceFails(t *testing.T) {
	store := setupTestDB(t)
	reg := seedRegistry(t, store)
	svc := newTestService(t, store, &fakeRemote{user: "alice-gh"})

	_, err := svc.ExportToGithub(context.Background(), reg.ID, ExportOptions{})
	require.NoError(t, err)

	_, err = svc.ExportToGithub(context.Background(), reg.ID, ExportOptions{})
	assert.ErrorIs(t, err, ErrAlreadyExported)
}

func TestExportMissingRegistry(t *testing.T) {
	store := setupTestDB(t)
	svc := newTestService(t, store, &fakeRemote{user: "alice-gh"})

	_, err := svc.ExportToGithub(context.Background(), "nope", ExportOptions{})
	assert.ErrorIs(t, err, registry.ErrNotFound)
}

func TestExportToOrg(t *testing.T) {
	store := setupTestDB(t)
	reg := seedRegistry(t, store)
	remote := &fakeRemote{user: "alice-gh"}
	svc := newTestService(t, store, remote)

	export, err := svc.ExportToGithub(context.Background(), reg.ID, ExportOptions{
		RepoName: "design-system", Org: "acme-corp", Private: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "acme-corp", export.RepoOwner)
	assert.Equal(t, "design-system", export.RepoName)
	require.Len(t, remote.createdRepos, 1)
	assert.True(t, remote.createdRepos[0].Private)
}

func TestPushNoChanges(t *testing.T) {
	store := setupTestDB(t)
	reg := seedRegistry(t, store)
	remote := &fakeRemote{user: "alice-gh"}
	svc := newTestService(t, store, remote)

	_, err := svc.ExportToGithub(context.Background(), reg.ID, ExportOptions{})
	require.NoError(t, err)

	result, err := svc.Push(context.Background(), reg.ID, false)
	require.NoError(t, err)
	assert.True(t, result.NoChanges)
	assert.Equal(t, "commit-1", result.CommitSHA)
	assert.Empty(t, remote.incPushes, "no remote calls on an empty diff")
}

func TestPushIncremental(t *testing.T) {
	store := setupTestDB(t)
	reg := seedRegistry(t, store)
	remote := &fakeRemote{user: "alice-gh"}
	svc := newTestService(t, store, remote)

	_, err := svc.ExportToGithub(context.Background(), reg.ID, ExportOptions{})
	require.NoError(t, err)

	// Change a file and add an item.
	items, err := store.ListItemsByRegistry(reg.ID)
	require.NoError(t, err)
	require.NoError(t, store.UpsertFile(&registry.ItemFile{
		ItemID: items[0].ID, Path: "button.tsx", Type: registry.FileTypeUI,
		Content: "export const Button = () => <button />\n",
	}))
	card := &registry.RegistryItem{RegistryID: reg.ID, Name: "card", Type: registry.ItemTypeUI}
	require.NoError(t, store.CreateItem(card))
	require.NoError(t, store.UpsertFile(&registry.ItemFile{
		ItemID: card.ID, Path: "card.tsx", Type: registry.FileTypeUI, Content: "card\n",
	}))

	result, err := svc.Push(context.Background(), reg.ID, false)
	require.NoError(t, err)
	assert.False(t, result.NoChanges)
	assert.Equal(t, "commit-2", result.CommitSHA)
	assert.Contains(t, result.Added, "r/card.json")
	assert.Contains(t, result.Added, "registry/card/card.tsx")
	assert.Contains(t, result.Modified, "registry/button/button.tsx")
	assert.Contains(t, result.Modified, "registry.json")
	assert.Empty(t, result.Deleted)

	require.Len(t, remote.incPushes, 1)
	push := remote.incPushes[0]
	assert.Equal(t, "commit-1", push.parentSHA)
	assert.Contains(t, push.message, "added")
	assert.Contains(t, push.message, "modified")

	// Unchanged files never travel.
	for _, f := range push.upserts {
		assert.NotEqual(t, ".nojekyll", f.Path)
	}

	export, err := store.GetGithubExport(reg.ID)
	require.NoError(t, err)
	assert.Equal(t, "commit-2", export.LastCommitSHA)

	// A second push with no further edits is a no-op.
	result, err = svc.Push(context.Background(), reg.ID, false)
	require.NoError(t, err)
	assert.True(t, result.NoChanges)
}

func TestPushDeletion(t *testing.T) {
	store := setupTestDB(t)
	reg := seedRegistry(t, store)
	remote := &fakeRemote{user: "alice-gh"}
	svc := newTestService(t, store, remote)

	_, err := svc.ExportToGithub(context.Background(), reg.ID, ExportOptions{})
	require.NoError(t, err)

	items, err := store.ListItemsByRegistry(reg.ID)
	require.NoError(t, err)
	require.NoError(t, store.DeleteItem(items[0].ID))

	result, err := svc.Push(context.Background(), reg.ID, false)
	require.NoError(t, err)
	assert.Contains(t, result.Deleted, "r/button.json")
	assert.Contains(t, result.Deleted, "registry/button/button.tsx")

	require.Len(t, remote.incPushes, 1)
	assert.ElementsMatch(t, result.Deleted, remote.incPushes[0].deletions)
}

func TestPushConflictDetection(t *testing.T) {
	store := setupTestDB(t)
	reg := seedRegistry(t, store)
	remote := &fakeRemote{user: "alice-gh"}
	svc := newTestService(t, store, remote)

	_, err := svc.ExportToGithub(context.Background(), reg.ID, ExportOptions{})
	require.NoError(t, err)

	// Someone pushed to the repo out of band.
	remote.remoteSHA = "external-commit"

	items, err := store.ListItemsByRegistry(reg.ID)
	require.NoError(t, err)
	require.NoError(t, store.UpsertFile(&registry.ItemFile{
		ItemID: items[0].ID, Path: "button.tsx", Type: registry.FileTypeUI, Content: "changed\n",
	}))

	_, err = svc.Push(context.Background(), reg.ID, false)
	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "commit-1", conflict.LocalCommitSHA)
	assert.Equal(t, "external-commit", conflict.RemoteCommitSHA)

	// The export record must be untouched by the failed push.
	export, err := store.GetGithubExport(reg.ID)
	require.NoError(t, err)
	assert.Equal(t, "commit-1", export.LastCommitSHA)

	// Force reparents on the actual remote HEAD and goes through.
	result, err := svc.Push(context.Background(), reg.ID, true)
	require.NoError(t, err)
	assert.False(t, result.NoChanges)
	require.Len(t, remote.incPushes, 1)
	assert.Equal(t, "external-commit", remote.incPushes[0].parentSHA)
}

func TestPushFailureLeavesSnapshotUntouched(t *testing.T) {
	store := setupTestDB(t)
	reg := seedRegistry(t, store)
	remote := &fakeRemote{user: "alice-gh"}
	svc := newTestService(t, store, remote)

	_, err := svc.ExportToGithub(context.Background(), reg.ID, ExportOptions{})
	require.NoError(t, err)
	before, err := store.GetGithubExport(reg.ID)
	require.NoError(t, err)

	items, err := store.ListItemsByRegistry(reg.ID)
	require.NoError(t, err)
	require.NoError(t, store.UpsertFile(&registry.ItemFile{
		ItemID: items[0].ID, Path: "button.tsx", Type: registry.FileTypeUI, Content: "changed\n",
	}))

	remote.pushErr = errors.New("remote exploded")
	_, err = svc.Push(context.Background(), reg.ID, false)
	require.Error(t, err)

	after, err := store.GetGithubExport(reg.ID)
	require.NoError(t, err)
	assert.Equal(t, before.LastCommitSHA, after.LastCommitSHA)
	assert.Equal(t, before.SyncSnapshot, after.SyncSnapshot)

	// Recovery: clear the failure and the same diff pushes cleanly.
	remote.pushErr = nil
	result, err := svc.Push(context.Background(), reg.ID, false)
	require.NoError(t, err)
	assert.False(t, result.NoChanges)
}

func TestPushNotExported(t *testing.T) {
	store := setupTestDB(t)
	reg := seedRegistry(t, store)
	svc := newTestService(t, store, &fakeRemote{user: "alice-gh"})

	_, err := svc.Push(context.Background(), reg.ID, false)
	assert.ErrorIs(t, err, ErrNotExported)
}
