package registry

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uifoundry/registry-studio/pkg/authz"
)

func newTestServer(t *testing.T) (*Store, http.Handler) {
	t.Helper()
	store := setupTestDB(t)
	r := chi.NewRouter()
	r.Use(authz.HeaderIdentityMiddleware())
	r.Mount("/registries", Router(store))
	return store, r
}

func doRequest(t *testing.T, h http.Handler, method, path, user, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("{}")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if user != "" {
		req.Header.Set("X-Remote-User", user)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRegistryCRUD(t *testing.T) {
	_, h := newTestServer(t)

	rec := doRequest(t, h, http.MethodPost, "/registries", "alice",
		`{"name":"Acme UI","description":"components","isPublic":true}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created RegistryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "acme-ui", created.Slug)
	assert.Equal(t, "alice", created.OwnerID)
	assert.True(t, created.IsPublic)

	rec = doRequest(t, h, http.MethodGet, "/registries/"+created.ID, "alice", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, h, http.MethodPatch, "/registries/"+created.ID, "alice",
		`{"displayName":"Acme Design System"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var patched RegistryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &patched))
	assert.Equal(t, "Acme Design System", patched.DisplayName)
	assert.Equal(t, "acme-ui", patched.Slug)

	rec = doRequest(t, h, http.MethodGet, "/registries", "alice", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Registries []RegistryResponse `json:"registries"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list.Registries, 1)

	rec = doRequest(t, h, http.MethodDelete, "/registries/"+created.ID, "alice", "")
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doRequest(t, h, http.MethodGet, "/registries/"+created.ID, "alice", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRegistryAccessControl(t *testing.T) {
	store, h := newTestServer(t)

	private := mustCreateRegistry(t, store, "alice", "Private UI")
	public := mustCreateRegistry(t, store, "alice", "Public UI")
	isPublic := true
	_, err := store.UpdateRegistry(public.ID, RegistryUpdate{IsPublic: &isPublic})
	require.NoError(t, err)

	// Unauthenticated list and create are rejected.
	assert.Equal(t, http.StatusUnauthorized, doRequest(t, h, http.MethodGet, "/registries", "", "").Code)
	assert.Equal(t, http.StatusUnauthorized,
		doRequest(t, h, http.MethodPost, "/registries", "", `{"name":"x"}`).Code)

	// Private registries read as 404 for non-owners, public ones are open.
	assert.Equal(t, http.StatusNotFound, doRequest(t, h, http.MethodGet, "/registries/"+private.ID, "bob", "").Code)
	assert.Equal(t, http.StatusOK, doRequest(t, h, http.MethodGet, "/registries/"+public.ID, "bob", "").Code)

	// Mutations by non-owners are forbidden.
	assert.Equal(t, http.StatusForbidden,
		doRequest(t, h, http.MethodPatch, "/registries/"+public.ID, "bob", `{"name":"stolen"}`).Code)
	assert.Equal(t, http.StatusForbidden,
		doRequest(t, h, http.MethodDelete, "/registries/"+public.ID, "bob", "").Code)
}

func TestCreateRegistryValidation(t *testing.T) {
	_, h := newTestServer(t)

	assert.Equal(t, http.StatusBadRequest,
		doRequest(t, h, http.MethodPost, "/registries", "alice", `{}`).Code)
	assert.Equal(t, http.StatusBadRequest,
		doRequest(t, h, http.MethodPost, "/registries", "alice", `{"name":""}`).Code)
	assert.Equal(t, http.StatusBadRequest,
		doRequest(t, h, http.MethodPost, "/registries", "alice", `not json`).Code)

	// Names with no alphanumerics slugify to nothing.
	assert.Equal(t, http.StatusBadRequest,
		doRequest(t, h, http.MethodPost, "/registries", "alice", `{"name":"???"}`).Code)

	require.Equal(t, http.StatusCreated,
		doRequest(t, h, http.MethodPost, "/registries", "alice", `{"name":"Acme UI"}`).Code)
	assert.Equal(t, http.StatusConflict,
		doRequest(t, h, http.MethodPost, "/registries", "alice", `{"name":"Acme UI"}`).Code)
}

func TestItemEndpoints(t *testing.T) {
	store, h := newTestServer(t)
	reg := mustCreateRegistry(t, store, "alice", "Acme UI")
	base := "/registries/" + reg.ID + "/items"

	body := `{
		"name": "button",
		"type": "ui",
		"title": "Button",
		"dependencies": ["clsx"],
		"cssVars": {"light": {"--radius": "0.5rem"}},
		"envVars": {"API_URL": "https://api.example.com"}
	}`
	rec := doRequest(t, h, http.MethodPost, base, "alice", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var item itemResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &item))
	assert.Equal(t, "ui", item.Type)
	assert.Equal(t, []string{"clsx"}, item.Dependencies)
	require.NotNil(t, item.CSSVars)
	assert.Equal(t, "0.5rem", item.CSSVars.Light["--radius"])
	assert.Equal(t, "https://api.example.com", item.EnvVars["API_URL"])

	// Duplicate name conflicts.
	assert.Equal(t, http.StatusConflict,
		doRequest(t, h, http.MethodPost, base, "alice", `{"name":"button","type":"ui"}`).Code)

	// Unknown type is rejected.
	assert.Equal(t, http.StatusBadRequest,
		doRequest(t, h, http.MethodPost, base, "alice", `{"name":"widget","type":"widget"}`).Code)

	// Full update replaces attributes.
	rec = doRequest(t, h, http.MethodPut, base+"/"+item.ID, "alice",
		`{"name":"button","type":"ui","title":"Big Button"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var updated itemResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	assert.Equal(t, "Big Button", updated.Title)
	assert.Empty(t, updated.Dependencies)

	rec = doRequest(t, h, http.MethodDelete, base+"/"+item.ID, "alice", "")
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, http.StatusNotFound,
		doRequest(t, h, http.MethodGet, base+"/"+item.ID, "alice", "").Code)
}

func TestItemNameMustBePathSafe(t *testing.T) {
	store, h := newTestServer(t)
	reg := mustCreateRegistry(t, store, "alice", "Acme UI")
	base := "/registries/" + reg.ID + "/items"

	for _, name := range []string{"../../evil", "a/b", "Button", "-lead", "trail-", "dot.name"} {
		body := fmt.Sprintf(`{"name":%q,"type":"ui"}`, name)
		assert.Equal(t, http.StatusBadRequest,
			doRequest(t, h, http.MethodPost, base, "alice", body).Code, "name %q", name)
	}

	assert.Equal(t, http.StatusCreated,
		doRequest(t, h, http.MethodPost, base, "alice", `{"name":"data-table-2","type":"ui"}`).Code)
}

func TestItemCrossRegistryLookupIs404(t *testing.T) {
	store, h := newTestServer(t)
	regA := mustCreateRegistry(t, store, "alice", "A")
	regB := mustCreateRegistry(t, store, "alice", "B")
	item := mustCreateItem(t, store, regA.ID, "button", ItemTypeUI)

	path := fmt.Sprintf("/registries/%s/items/%s", regB.ID, item.ID)
	assert.Equal(t, http.StatusNotFound, doRequest(t, h, http.MethodGet, path, "alice", "").Code)
}

func TestFileEndpoints(t *testing.T) {
	store, h := newTestServer(t)
	reg := mustCreateRegistry(t, store, "alice", "Acme UI")
	item := mustCreateItem(t, store, reg.ID, "button", ItemTypeUI)
	base := fmt.Sprintf("/registries/%s/items/%s/files", reg.ID, item.ID)

	rec := doRequest(t, h, http.MethodPut, base, "alice",
		`{"path":"button.tsx","type":"registry:ui","content":"v1"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var file fileResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &file))
	assert.Equal(t, "v1", file.Content)

	// Upserting the same path replaces content, not adds a file.
	rec = doRequest(t, h, http.MethodPut, base, "alice",
		`{"path":"button.tsx","type":"registry:ui","content":"v2"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var replaced fileResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &replaced))
	assert.Equal(t, file.ID, replaced.ID)

	rec = doRequest(t, h, http.MethodGet, base, "alice", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Files []fileResponse `json:"files"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Files, 1)
	assert.Equal(t, "v2", list.Files[0].Content)

	// Validation.
	assert.Equal(t, http.StatusBadRequest,
		doRequest(t, h, http.MethodPut, base, "alice", `{"path":"","type":"registry:ui"}`).Code)
	assert.Equal(t, http.StatusBadRequest,
		doRequest(t, h, http.MethodPut, base, "alice", `{"path":"x.tsx","type":"nope"}`).Code)

	rec = doRequest(t, h, http.MethodDelete, base+"/"+file.ID, "alice", "")
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, http.StatusNotFound,
		doRequest(t, h, http.MethodDelete, base+"/"+file.ID, "alice", "").Code)
}
