package export

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uifoundry/registry-studio/pkg/authz"
	"github.com/uifoundry/registry-studio/pkg/registry"
)

func newHandlerTestServer(t *testing.T, store *registry.Store, remote *fakeRemote) http.Handler {
	t.Helper()
	svc := newTestService(t, store, remote)
	r := chi.NewRouter()
	r.Use(authz.HeaderIdentityMiddleware())
	r.Mount("/registries/{registryId}", Router(svc, store))
	return r
}

func doExportRequest(h http.Handler, method, path, user, body string) *httptest.ResponseRecorder {
	if body == "" {
		body = "{}"
	}
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if user != "" {
		req.Header.Set("X-Remote-User", user)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestExportAndPushEndpoints(t *testing.T) {
	store := setupTestDB(t)
	reg := seedRegistry(t, store)
	remote := &fakeRemote{user: "alice-gh"}
	h := newHandlerTestServer(t, store, remote)

	rec := doExportRequest(h, http.MethodPost, "/registries/"+reg.ID+"/export", "alice", "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var exported exportResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &exported))
	assert.Equal(t, "acme-ui", exported.RepoName)
	assert.Equal(t, "commit-1", exported.LastCommitSHA)

	rec = doExportRequest(h, http.MethodGet, "/registries/"+reg.ID+"/export", "alice", "")
	require.Equal(t, http.StatusOK, rec.Code)

	// Exporting again conflicts.
	rec = doExportRequest(h, http.MethodPost, "/registries/"+reg.ID+"/export", "alice", "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Push with no edits reports no changes.
	rec = doExportRequest(h, http.MethodPost, "/registries/"+reg.ID+"/push", "alice", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var pushed pushResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &pushed))
	assert.Equal(t, "no_changes", pushed.Status)

	// Edit and push again.
	items, err := store.ListItemsByRegistry(reg.ID)
	require.NoError(t, err)
	require.NoError(t, store.UpsertFile(&registry.ItemFile{
		ItemID: items[0].ID, Path: "button.tsx", Type: registry.FileTypeUI, Content: "v2\n",
	}))

	rec = doExportRequest(h, http.MethodPost, "/registries/"+reg.ID+"/push", "alice", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &pushed))
	assert.Equal(t, "pushed", pushed.Status)
	assert.Contains(t, pushed.Modified, "registry/button/button.tsx")
}

func TestExportEndpointAuth(t *testing.T) {
	store := setupTestDB(t)
	reg := seedRegistry(t, store)
	h := newHandlerTestServer(t, store, &fakeRemote{user: "alice-gh"})

	assert.Equal(t, http.StatusUnauthorized,
		doExportRequest(h, http.MethodPost, "/registries/"+reg.ID+"/export", "", "").Code)
	assert.Equal(t, http.StatusForbidden,
		doExportRequest(h, http.MethodPost, "/registries/"+reg.ID+"/export", "bob", "").Code)
	assert.Equal(t, http.StatusNotFound,
		doExportRequest(h, http.MethodPost, "/registries/nope/export", "alice", "").Code)
	assert.Equal(t, http.StatusNotFound,
		doExportRequest(h, http.MethodGet, "/registries/"+reg.ID+"/export", "alice", "").Code)
}

func TestPushConflictResponse(t *testing.T) {
	store := setupTestDB(t)
	reg := seedRegistry(t, store)
	remote := &fakeRemote{user: "alice-gh"}
	h := newHandlerTestServer(t, store, remote)

	rec := doExportRequest(h, http.MethodPost, "/registries/"+reg.ID+"/export", "alice", "")
	require.Equal(t, http.StatusCreated, rec.Code)

	remote.remoteSHA = "external-commit"
	items, err := store.ListItemsByRegistry(reg.ID)
	require.NoError(t, err)
	require.NoError(t, store.UpsertFile(&registry.ItemFile{
		ItemID: items[0].ID, Path: "button.tsx", Type: registry.FileTypeUI, Content: "v2\n",
	}))

	rec = doExportRequest(h, http.MethodPost, "/registries/"+reg.ID+"/push", "alice", "")
	require.Equal(t, http.StatusConflict, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "commit-1", body["localCommitSha"])
	assert.Equal(t, "external-commit", body["remoteCommitSha"])

	// force=true overrides.
	rec = doExportRequest(h, http.MethodPost, "/registries/"+reg.ID+"/push?force=true", "alice", "")
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}
