package importer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/uifoundry/registry-studio/pkg/authz"
	"github.com/uifoundry/registry-studio/pkg/registry"
	"github.com/uifoundry/registry-studio/pkg/scaffold"
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

// fakeCloner materializes an in-memory file map instead of cloning.
type fakeCloner struct {
	files map[string]string
	sha   string
	err   error
}

func (f *fakeCloner) Clone(_ context.Context, _, _, _ string) (string, string, func(), error) {
	if f.err != nil {
		return "", "", nil, f.err
	}
	dir, err := os.MkdirTemp("", "fake-clone-*")
	if err != nil {
		return "", "", nil, err
	}
	for path, content := range f.files {
		full := filepath.Join(dir, filepath.FromSlash(path))
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			os.RemoveAll(dir)
			return "", "", nil, err
		}
		if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
			os.RemoveAll(dir)
			return "", "", nil, err
		}
	}
	return dir, f.sha, func() { os.RemoveAll(dir) }, nil
}

func fixtureManifest(t *testing.T) string {
	t.Helper()
	manifest := scaffold.Manifest{
		Schema: scaffold.RegistrySchemaURL,
		Name:   "Acme UI",
		Items: []scaffold.ManifestItem{
			{
				Name:         "button",
				Type:         "registry:ui",
				Title:        "Button",
				Dependencies: []string{"clsx"},
				Files: []scaffold.ManifestFile{
					{Path: "registry/button/button.tsx", Type: "registry:ui"},
				},
			},
			{
				Name: "use-toast",
				Type: "registry:hook",
				Files: []scaffold.ManifestFile{
					{Path: "registry/use-toast/use-toast.ts", Type: "registry:hook"},
				},
			},
		},
	}
	data, err := json.Marshal(manifest)
	require.NoError(t, err)
	return string(data)
}

func fixtureFiles(t *testing.T) map[string]string {
	return map[string]string{
		"registry.json":                        fixtureManifest(t),
		"registry/button/button.tsx":           "export const Button = () => null\n",
		"registry/use-toast/use-toast.ts":      "export function useToast() {}\n",
		"registry/button/unreferenced-note.md": "not in the manifest\n",
	}
}

func TestImportFromGithub(t *testing.T) {
	store := setupTestDB(t)
	cloner := &fakeCloner{files: fixtureFiles(t), sha: "abc123"}
	imp := NewImporter(store, cloner, nil)

	result, err := imp.ImportFromGithub(context.Background(), "alice", ImportOptions{
		Owner: "acme", Repo: "acme-ui",
	})
	require.NoError(t, err)
	assert.Equal(t, "acme-ui", result.Slug)
	assert.Equal(t, "abc123", result.CommitSHA)
	assert.Equal(t, 2, result.ItemCount)
	assert.Equal(t, 2, result.FileCount)

	reg, err := store.GetRegistry(result.RegistryID)
	require.NoError(t, err)
	require.NotNil(t, reg)
	assert.Equal(t, "alice", reg.OwnerID)
	assert.Equal(t, "Acme UI", reg.Name)
	assert.Equal(t, "https://github.com/acme/acme-ui", reg.GithubRepoURL)

	items, err := store.ListItemsByRegistry(reg.ID)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "button", items[0].Name)
	assert.Equal(t, registry.ItemTypeUI, items[0].Type)
	assert.Equal(t, []string{"clsx"}, items[0].DependencyList())

	files, err := store.ListFilesByItem(items[0].ID)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "button.tsx", files[0].Path)
	assert.Equal(t, "export const Button = () => null\n", files[0].Content)

	export, err := store.GetGithubExport(reg.ID)
	require.NoError(t, err)
	require.NotNil(t, export)
	assert.Equal(t, "abc123", export.LastCommitSHA)
	assert.Equal(t, "acme", export.RepoOwner)
	assert.Equal(t, "acme-ui", export.RepoName)
	assert.NotEmpty(t, export.SyncSnapshot)
}

// A push straight after import must see no changes: the stored snapshot
// has to match the scaffold regenerated from the imported rows.
func TestImportSnapshotMatchesRegeneratedScaffold(t *testing.T) {
	store := setupTestDB(t)
	imp := NewImporter(store, &fakeCloner{files: fixtureFiles(t), sha: "abc123"}, nil)

	result, err := imp.ImportFromGithub(context.Background(), "alice", ImportOptions{
		Owner: "acme", Repo: "acme-ui",
	})
	require.NoError(t, err)

	reg, err := store.GetRegistry(result.RegistryID)
	require.NoError(t, err)
	export, err := store.GetGithubExport(result.RegistryID)
	require.NoError(t, err)

	items, err := store.ListItemsByRegistry(reg.ID)
	require.NoError(t, err)
	var withFiles []scaffold.ItemWithFiles
	for _, item := range items {
		files, err := store.ListFilesByItem(item.ID)
		require.NoError(t, err)
		withFiles = append(withFiles, scaffold.ItemWithFiles{Item: item, Files: files})
	}

	generated, err := scaffold.Generate(reg, withFiles, export.PagesURL)
	require.NoError(t, err)

	previous, err := snapshot.Decode(export.SyncSnapshot)
	require.NoError(t, err)
	diff := snapshot.Diff(generated, previous)
	assert.True(t, diff.Empty(), "regenerated scaffold should diff to empty, got %+v", diff)
}

func TestImportSlugDisambiguation(t *testing.T) {
	store := setupTestDB(t)
	require.NoError(t, store.CreateRegistry(&registry.Registry{
		OwnerID: "alice", Name: "Acme UI",
	}))

	imp := NewImporter(store, &fakeCloner{files: fixtureFiles(t), sha: "abc123"}, nil)
	result, err := imp.ImportFromGithub(context.Background(), "alice", ImportOptions{
		Owner: "acme", Repo: "acme-ui",
	})
	require.NoError(t, err)
	assert.Equal(t, "acme-ui-2", result.Slug)
}

func TestImportValidationFailuresWriteNothing(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(files map[string]string)
		reason string
	}{
		{
			name:   "missing manifest",
			mutate: func(files map[string]string) { delete(files, "registry.json") },
			reason: "registry.json not found",
		},
		{
			name: "invalid json",
			mutate: func(files map[string]string) {
				files["registry.json"] = "{not json"
			},
			reason: "not valid JSON",
		},
		{
			name: "unknown item type",
			mutate: func(files map[string]string) {
				files["registry.json"] = strings.Replace(files["registry.json"], "registry:hook", "registry:widget", 1)
			},
			reason: "unknown type",
		},
		{
			name: "item name not path-safe",
			mutate: func(files map[string]string) {
				files["registry.json"] = strings.Replace(files["registry.json"],
					`"name":"use-toast"`, `"name":"../use-toast"`, 1)
			},
			reason: "not path-safe",
		},
		{
			name: "missing referenced file",
			mutate: func(files map[string]string) {
				delete(files, "registry/button/button.tsx")
			},
			reason: "missing from the repository",
		},
		{
			name: "path escapes repository",
			mutate: func(files map[string]string) {
				files["registry.json"] = strings.Replace(files["registry.json"],
					"registry/button/button.tsx", "../outside.tsx", 2)
			},
			reason: "escapes the repository",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := setupTestDB(t)
			files := fixtureFiles(t)
			tc.mutate(files)

			imp := NewImporter(store, &fakeCloner{files: files, sha: "abc123"}, nil)
			_, err := imp.ImportFromGithub(context.Background(), "alice", ImportOptions{
				Owner: "acme", Repo: "acme-ui",
			})

			var manifestErr *ManifestError
			require.ErrorAs(t, err, &manifestErr)
			assert.Contains(t, manifestErr.Error(), tc.reason)

			regs, err := store.ListRegistriesByOwner("alice")
			require.NoError(t, err)
			assert.Empty(t, regs, "failed import must not create a registry")
		})
	}
}

func TestImportHandlerRequiresAuth(t *testing.T) {
	store := setupTestDB(t)
	imp := NewImporter(store, &fakeCloner{files: fixtureFiles(t), sha: "abc123"}, nil)

	req := httptest.NewRequest(http.MethodPost, "/import",
		strings.NewReader(`{"owner":"acme","repo":"acme-ui"}`))
	rec := httptest.NewRecorder()
	ImportHandler(imp)(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestImportHandler(t *testing.T) {
	store := setupTestDB(t)
	imp := NewImporter(store, &fakeCloner{files: fixtureFiles(t), sha: "abc123"}, nil)

	req := httptest.NewRequest(http.MethodPost, "/import",
		strings.NewReader(`{"owner":"acme","repo":"acme-ui"}`))
	req = req.WithContext(authz.WithIdentity(req.Context(), authz.Identity{User: "alice"}))
	rec := httptest.NewRecorder()
	ImportHandler(imp)(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var resp importResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "acme-ui", resp.Slug)
	assert.Equal(t, 2, resp.ItemCount)

	t.Run("bad manifest maps to 400", func(t *testing.T) {
		broken := NewImporter(store, &fakeCloner{files: map[string]string{}, sha: "abc123"}, nil)
		req := httptest.NewRequest(http.MethodPost, "/import",
			strings.NewReader(`{"owner":"acme","repo":"empty"}`))
		req = req.WithContext(authz.WithIdentity(req.Context(), authz.Identity{User: "alice"}))
		rec := httptest.NewRecorder()
		ImportHandler(broken)(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
