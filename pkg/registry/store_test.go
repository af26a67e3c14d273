package registry

import (
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	store := NewStore(db)
	require.NoError(t, store.AutoMigrate())
	return store
}

func mustCreateRegistry(t *testing.T, store *Store, ownerID, name string) *Registry {
	t.Helper()
	reg := &Registry{OwnerID: ownerID, Name: name}
	require.NoError(t, store.CreateRegistry(reg))
	return reg
}

func mustCreateItem(t *testing.T, store *Store, registryID, name string, itemType ItemType) *RegistryItem {
	t.Helper()
	item := &RegistryItem{RegistryID: registryID, Name: name, Type: itemType}
	require.NoError(t, store.CreateItem(item))
	return item
}

func TestCreateRegistryDerivesSlug(t *testing.T) {
	store := setupTestDB(t)

	reg := mustCreateRegistry(t, store, "alice", "My Design System")
	assert.Equal(t, "my-design-system", reg.Slug)
	assert.NotEmpty(t, reg.ID)

	found, err := store.GetRegistryBySlug("alice", "my-design-system")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, reg.ID, found.ID)
}

func TestCreateRegistrySlugTakenPerOwner(t *testing.T) {
	store := setupTestDB(t)
	mustCreateRegistry(t, store, "alice", "Acme UI")

	err := store.CreateRegistry(&Registry{OwnerID: "alice", Name: "Acme UI"})
	assert.ErrorIs(t, err, ErrSlugTaken)

	// A different owner can reuse the slug.
	require.NoError(t, store.CreateRegistry(&Registry{OwnerID: "bob", Name: "Acme UI"}))
}

func TestCreateRegistryRejectsUnslugifiableName(t *testing.T) {
	store := setupTestDB(t)

	err := store.CreateRegistry(&Registry{OwnerID: "alice", Name: "!!!"})
	assert.ErrorIs(t, err, ErrInvalidName)

	regs, err := store.ListRegistriesByOwner("alice")
	require.NoError(t, err)
	assert.Empty(t, regs)
}

func TestGetRegistryMissingReturnsNil(t *testing.T) {
	store := setupTestDB(t)

	reg, err := store.GetRegistry("nope")
	require.NoError(t, err)
	assert.Nil(t, reg)
}

func TestUpdateRegistryRenameReslugs(t *testing.T) {
	store := setupTestDB(t)
	reg := mustCreateRegistry(t, store, "alice", "Old Name")

	newName := "New Name"
	updated, err := store.UpdateRegistry(reg.ID, RegistryUpdate{Name: &newName})
	require.NoError(t, err)
	assert.Equal(t, "New Name", updated.Name)
	assert.Equal(t, "new-name", updated.Slug)
}

func TestUpdateRegistryRenameRejectsUnslugifiableName(t *testing.T) {
	store := setupTestDB(t)
	reg := mustCreateRegistry(t, store, "alice", "Acme UI")

	newName := "???"
	_, err := store.UpdateRegistry(reg.ID, RegistryUpdate{Name: &newName})
	assert.ErrorIs(t, err, ErrInvalidName)

	current, err := store.GetRegistry(reg.ID)
	require.NoError(t, err)
	assert.Equal(t, "Acme UI", current.Name)
	assert.Equal(t, "acme-ui", current.Slug)
}

func TestUpdateRegistryPartial(t *testing.T) {
	store := setupTestDB(t)
	reg := mustCreateRegistry(t, store, "alice", "Acme UI")

	public := true
	desc := "component library"
	updated, err := store.UpdateRegistry(reg.ID, RegistryUpdate{IsPublic: &public, Description: &desc})
	require.NoError(t, err)
	assert.True(t, updated.IsPublic)
	assert.Equal(t, "component library", updated.Description)
	assert.Equal(t, "Acme UI", updated.Name)
	assert.Equal(t, "acme-ui", updated.Slug)
}

func TestDeleteRegistryCascades(t *testing.T) {
	store := setupTestDB(t)
	reg := mustCreateRegistry(t, store, "alice", "Acme UI")
	item := mustCreateItem(t, store, reg.ID, "button", ItemTypeUI)
	require.NoError(t, store.UpsertFile(&ItemFile{
		ItemID: item.ID, Path: "button.tsx", Type: FileTypeUI, Content: "x",
	}))
	require.NoError(t, store.CreateGithubExport(&GithubExport{
		RegistryID: reg.ID, RepoURL: "https://github.com/a/b", RepoOwner: "a", RepoName: "b",
	}))

	require.NoError(t, store.DeleteRegistry(reg.ID))

	gone, err := store.GetRegistry(reg.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)

	items, err := store.ListItemsByRegistry(reg.ID)
	require.NoError(t, err)
	assert.Empty(t, items)

	files, err := store.ListFilesByItem(item.ID)
	require.NoError(t, err)
	assert.Empty(t, files)

	export, err := store.GetGithubExport(reg.ID)
	require.NoError(t, err)
	assert.Nil(t, export)
}

func TestListPublicRegistries(t *testing.T) {
	store := setupTestDB(t)
	mustCreateRegistry(t, store, "alice", "Private One")
	pub := mustCreateRegistry(t, store, "alice", "Public One")
	isPublic := true
	_, err := store.UpdateRegistry(pub.ID, RegistryUpdate{IsPublic: &isPublic})
	require.NoError(t, err)

	regs, err := store.ListPublicRegistries()
	require.NoError(t, err)
	require.Len(t, regs, 1)
	assert.Equal(t, pub.ID, regs[0].ID)
}

func TestCreateItemNameTaken(t *testing.T) {
	store := setupTestDB(t)
	reg := mustCreateRegistry(t, store, "alice", "Acme UI")
	mustCreateItem(t, store, reg.ID, "button", ItemTypeUI)

	err := store.CreateItem(&RegistryItem{RegistryID: reg.ID, Name: "button", Type: ItemTypeUI})
	assert.ErrorIs(t, err, ErrNameTaken)

	// Same name in a different registry is fine.
	other := mustCreateRegistry(t, store, "alice", "Other")
	require.NoError(t, store.CreateItem(&RegistryItem{RegistryID: other.ID, Name: "button", Type: ItemTypeUI}))
}

func TestListItemsOrdering(t *testing.T) {
	store := setupTestDB(t)
	reg := mustCreateRegistry(t, store, "alice", "Acme UI")

	require.NoError(t, store.CreateItem(&RegistryItem{RegistryID: reg.ID, Name: "zeta", Type: ItemTypeUI, SortOrder: 0}))
	require.NoError(t, store.CreateItem(&RegistryItem{RegistryID: reg.ID, Name: "alpha", Type: ItemTypeUI, SortOrder: 1}))
	require.NoError(t, store.CreateItem(&RegistryItem{RegistryID: reg.ID, Name: "beta", Type: ItemTypeUI, SortOrder: 0}))

	items, err := store.ListItemsByRegistry(reg.ID)
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, "beta", items[0].Name)
	assert.Equal(t, "zeta", items[1].Name)
	assert.Equal(t, "alpha", items[2].Name)
}

func TestUpdateItemRenameConflict(t *testing.T) {
	store := setupTestDB(t)
	reg := mustCreateRegistry(t, store, "alice", "Acme UI")
	mustCreateItem(t, store, reg.ID, "button", ItemTypeUI)
	card := mustCreateItem(t, store, reg.ID, "card", ItemTypeUI)

	card.Name = "button"
	assert.ErrorIs(t, store.UpdateItem(card), ErrNameTaken)
}

func TestUpsertFileReplacesByPath(t *testing.T) {
	store := setupTestDB(t)
	reg := mustCreateRegistry(t, store, "alice", "Acme UI")
	item := mustCreateItem(t, store, reg.ID, "button", ItemTypeUI)

	first := &ItemFile{ItemID: item.ID, Path: "button.tsx", Type: FileTypeUI, Content: "v1"}
	require.NoError(t, store.UpsertFile(first))

	second := &ItemFile{ItemID: item.ID, Path: "button.tsx", Type: FileTypeUI, Content: "v2"}
	require.NoError(t, store.UpsertFile(second))
	assert.Equal(t, first.ID, second.ID)

	files, err := store.ListFilesByItem(item.ID)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "v2", files[0].Content)
}

func TestDeleteFileMissing(t *testing.T) {
	store := setupTestDB(t)
	assert.ErrorIs(t, store.DeleteFile("nope"), ErrNotFound)
}

func TestGithubExportUpdateWritesAtomically(t *testing.T) {
	store := setupTestDB(t)
	reg := mustCreateRegistry(t, store, "alice", "Acme UI")
	require.NoError(t, store.CreateGithubExport(&GithubExport{
		RegistryID: reg.ID, RepoURL: "https://github.com/a/b",
		RepoOwner: "a", RepoName: "b",
		LastCommitSHA: "sha1", SyncSnapshot: "snap1",
	}))

	syncedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, store.UpdateGithubExport(reg.ID, "sha2", "snap2", syncedAt))

	export, err := store.GetGithubExport(reg.ID)
	require.NoError(t, err)
	require.NotNil(t, export)
	assert.Equal(t, "sha2", export.LastCommitSHA)
	assert.Equal(t, "snap2", export.SyncSnapshot)
	assert.Equal(t, syncedAt, export.LastSyncedAt.UTC())
}

func TestUpdateGithubExportMissing(t *testing.T) {
	store := setupTestDB(t)
	err := store.UpdateGithubExport("nope", "sha", "snap", time.Now())
	assert.ErrorIs(t, err, ErrNotFound)
}
