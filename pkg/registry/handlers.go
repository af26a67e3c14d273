package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/uifoundry/registry-studio/pkg/authz"
)

// registryRequest is the body for creating or patching a registry. On
// patch, absent fields leave the record unchanged.
type registryRequest struct {
	Name        *string `json:"name,omitempty"`
	DisplayName *string `json:"displayName,omitempty"`
	Description *string `json:"description,omitempty"`
	Homepage    *string `json:"homepage,omitempty"`
	IsPublic    *bool   `json:"isPublic,omitempty"`
}

// RegistryResponse is the API shape of a registry.
type RegistryResponse struct {
	ID            string `json:"id"`
	OwnerID       string `json:"ownerId"`
	Name          string `json:"name"`
	Slug          string `json:"slug"`
	DisplayName   string `json:"displayName,omitempty"`
	Description   string `json:"description,omitempty"`
	Homepage      string `json:"homepage,omitempty"`
	IsPublic      bool   `json:"isPublic"`
	GithubRepoURL string `json:"githubRepoUrl,omitempty"`
	CreatedAt     string `json:"createdAt"`
	UpdatedAt     string `json:"updatedAt"`
}

// ToResponse converts a registry record to its API shape.
func ToResponse(reg *Registry) RegistryResponse {
	return RegistryResponse{
		ID:            reg.ID,
		OwnerID:       reg.OwnerID,
		Name:          reg.Name,
		Slug:          reg.Slug,
		DisplayName:   reg.DisplayName,
		Description:   reg.Description,
		Homepage:      reg.Homepage,
		IsPublic:      reg.IsPublic,
		GithubRepoURL: reg.GithubRepoURL,
		CreatedAt:     reg.CreatedAt.Format(time.RFC3339),
		UpdatedAt:     reg.UpdatedAt.Format(time.RFC3339),
	}
}

// itemRequest is the body for creating or updating an item.
type itemRequest struct {
	Name                 string            `json:"name"`
	Type                 string            `json:"type"`
	Title                string            `json:"title,omitempty"`
	Description          string            `json:"description,omitempty"`
	Docs                 string            `json:"docs,omitempty"`
	CSS                  string            `json:"css,omitempty"`
	Dependencies         []string          `json:"dependencies,omitempty"`
	RegistryDependencies []string          `json:"registryDependencies,omitempty"`
	Categories           []string          `json:"categories,omitempty"`
	CSSVars              *CSSVarBlocks     `json:"cssVars,omitempty"`
	EnvVars              map[string]string `json:"envVars,omitempty"`
	Meta                 map[string]any    `json:"meta,omitempty"`
	SortOrder            int               `json:"sortOrder,omitempty"`
}

// itemResponse is the API shape of a registry item.
type itemResponse struct {
	ID                   string            `json:"id"`
	RegistryID           string            `json:"registryId"`
	Name                 string            `json:"name"`
	Type                 string            `json:"type"`
	Title                string            `json:"title,omitempty"`
	Description          string            `json:"description,omitempty"`
	Docs                 string            `json:"docs,omitempty"`
	CSS                  string            `json:"css,omitempty"`
	Dependencies         []string          `json:"dependencies,omitempty"`
	RegistryDependencies []string          `json:"registryDependencies,omitempty"`
	Categories           []string          `json:"categories,omitempty"`
	CSSVars              *CSSVarBlocks     `json:"cssVars,omitempty"`
	EnvVars              map[string]string `json:"envVars,omitempty"`
	Meta                 map[string]any    `json:"meta,omitempty"`
	SortOrder            int               `json:"sortOrder"`
	CreatedAt            string            `json:"createdAt"`
	UpdatedAt            string            `json:"updatedAt"`
}

func itemToResponse(item *RegistryItem) itemResponse {
	return itemResponse{
		ID:                   item.ID,
		RegistryID:           item.RegistryID,
		Name:                 item.Name,
		Type:                 string(item.Type),
		Title:                item.Title,
		Description:          item.Description,
		Docs:                 item.Docs,
		CSS:                  item.CSS,
		Dependencies:         item.DependencyList(),
		RegistryDependencies: item.RegistryDependencyList(),
		Categories:           item.CategoryList(),
		CSSVars:              item.CSSVarBlocks(),
		EnvVars:              item.EnvVarMap(),
		Meta:                 item.MetaMap(),
		SortOrder:            item.SortOrder,
		CreatedAt:            item.CreatedAt.Format(time.RFC3339),
		UpdatedAt:            item.UpdatedAt.Format(time.RFC3339),
	}
}

// fileRequest is the body for upserting an item file. Path identifies the
// file within the item; upserting an existing path replaces its content.
type fileRequest struct {
	Path    string `json:"path"`
	Type    string `json:"type"`
	Target  string `json:"target,omitempty"`
	Content string `json:"content"`
}

// fileResponse is the API shape of an item file.
type fileResponse struct {
	ID        string `json:"id"`
	ItemID    string `json:"itemId"`
	Path      string `json:"path"`
	Type      string `json:"type"`
	Target    string `json:"target,omitempty"`
	Content   string `json:"content"`
	UpdatedAt string `json:"updatedAt"`
}

func fileToResponse(f *ItemFile) fileResponse {
	return fileResponse{
		ID:        f.ID,
		ItemID:    f.ItemID,
		Path:      f.Path,
		Type:      string(f.Type),
		Target:    f.Target,
		Content:   f.Content,
		UpdatedAt: f.UpdatedAt.Format(time.RFC3339),
	}
}

// ListRegistriesHandler handles GET /registries: the authenticated user's
// registries.
func ListRegistriesHandler(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := requireIdentity(w, r)
		if !ok {
			return
		}

		regs, err := store.ListRegistriesByOwner(id.User)
		if err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to list registries: %v", err))
			return
		}

		resp := make([]RegistryResponse, 0, len(regs))
		for i := range regs {
			resp = append(resp, ToResponse(&regs[i]))
		}
		writeJSON(w, http.StatusOK, map[string]any{"registries": resp})
	}
}

// CreateRegistryHandler handles POST /registries.
func CreateRegistryHandler(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := requireIdentity(w, r)
		if !ok {
			return
		}

		var req registryRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
			return
		}
		if req.Name == nil || *req.Name == "" {
			writeError(w, http.StatusBadRequest, "name is required")
			return
		}

		reg := &Registry{
			OwnerID: id.User,
			Name:    *req.Name,
		}
		if req.DisplayName != nil {
			reg.DisplayName = *req.DisplayName
		}
		if req.Description != nil {
			reg.Description = *req.Description
		}
		if req.Homepage != nil {
			reg.Homepage = *req.Homepage
		}
		if req.IsPublic != nil {
			reg.IsPublic = *req.IsPublic
		}

		if err := store.CreateRegistry(reg); err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, ToResponse(reg))
	}
}

// GetRegistryHandler handles GET /registries/{registryId}. Owners see
// their own registries; everyone else only sees public ones.
func GetRegistryHandler(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reg, err := store.GetRegistry(chi.URLParam(r, "registryId"))
		if err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to get registry: %v", err))
			return
		}
		if reg == nil {
			writeError(w, http.StatusNotFound, "registry not found")
			return
		}

		id, _ := authz.IdentityFromContext(r.Context())
		if !reg.IsPublic && reg.OwnerID != id.User {
			// Hide the existence of private registries from non-owners.
			writeError(w, http.StatusNotFound, "registry not found")
			return
		}
		writeJSON(w, http.StatusOK, ToResponse(reg))
	}
}

// UpdateRegistryHandler handles PATCH /registries/{registryId}.
func UpdateRegistryHandler(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reg, ok := requireOwnedRegistry(w, r, store)
		if !ok {
			return
		}

		var req registryRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
			return
		}
		if req.Name != nil && *req.Name == "" {
			writeError(w, http.StatusBadRequest, "name must not be empty")
			return
		}

		updated, err := store.UpdateRegistry(reg.ID, RegistryUpdate{
			Name:        req.Name,
			DisplayName: req.DisplayName,
			Description: req.Description,
			Homepage:    req.Homepage,
			IsPublic:    req.IsPublic,
		})
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, ToResponse(updated))
	}
}

// DeleteRegistryHandler handles DELETE /registries/{registryId}. Removes
// the registry with all items, files, export state, and analytics.
func DeleteRegistryHandler(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reg, ok := requireOwnedRegistry(w, r, store)
		if !ok {
			return
		}

		if err := store.DeleteRegistry(reg.ID); err != nil {
			writeStoreError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// ListItemsHandler handles GET /registries/{registryId}/items.
func ListItemsHandler(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reg, ok := requireOwnedRegistry(w, r, store)
		if !ok {
			return
		}

		items, err := store.ListItemsByRegistry(reg.ID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to list items: %v", err))
			return
		}

		resp := make([]itemResponse, 0, len(items))
		for i := range items {
			resp = append(resp, itemToResponse(&items[i]))
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": resp})
	}
}

// CreateItemHandler handles POST /registries/{registryId}/items.
func CreateItemHandler(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reg, ok := requireOwnedRegistry(w, r, store)
		if !ok {
			return
		}

		req, ok := decodeItemRequest(w, r)
		if !ok {
			return
		}

		item := itemFromRequest(req)
		item.RegistryID = reg.ID
		if err := store.CreateItem(item); err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, itemToResponse(item))
	}
}

// GetItemHandler handles GET /registries/{registryId}/items/{itemId}.
func GetItemHandler(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		item, ok := requireOwnedItem(w, r, store)
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, itemToResponse(item))
	}
}

// UpdateItemHandler handles PUT /registries/{registryId}/items/{itemId}.
// The request body fully replaces the item's attributes; files are managed
// separately.
func UpdateItemHandler(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		item, ok := requireOwnedItem(w, r, store)
		if !ok {
			return
		}

		req, ok := decodeItemRequest(w, r)
		if !ok {
			return
		}

		updated := itemFromRequest(req)
		updated.ID = item.ID
		if err := store.UpdateItem(updated); err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, itemToResponse(updated))
	}
}

// DeleteItemHandler handles DELETE /registries/{registryId}/items/{itemId}.
func DeleteItemHandler(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		item, ok := requireOwnedItem(w, r, store)
		if !ok {
			return
		}

		if err := store.DeleteItem(item.ID); err != nil {
			writeStoreError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// ListFilesHandler handles GET .../items/{itemId}/files.
func ListFilesHandler(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		item, ok := requireOwnedItem(w, r, store)
		if !ok {
			return
		}

		files, err := store.ListFilesByItem(item.ID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to list files: %v", err))
			return
		}

		resp := make([]fileResponse, 0, len(files))
		for i := range files {
			resp = append(resp, fileToResponse(&files[i]))
		}
		writeJSON(w, http.StatusOK, map[string]any{"files": resp})
	}
}

// UpsertFileHandler handles PUT .../items/{itemId}/files: create-or-replace
// keyed by path.
func UpsertFileHandler(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		item, ok := requireOwnedItem(w, r, store)
		if !ok {
			return
		}

		var req fileRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
			return
		}
		if req.Path == "" {
			writeError(w, http.StatusBadRequest, "path is required")
			return
		}
		fileType := FileType(req.Type)
		if !fileType.IsValid() {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown file type %q", req.Type))
			return
		}

		file := &ItemFile{
			ItemID:  item.ID,
			Path:    req.Path,
			Type:    fileType,
			Target:  req.Target,
			Content: req.Content,
		}
		if err := store.UpsertFile(file); err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, fileToResponse(file))
	}
}

// DeleteFileHandler handles DELETE .../items/{itemId}/files/{fileId}.
func DeleteFileHandler(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		item, ok := requireOwnedItem(w, r, store)
		if !ok {
			return
		}

		fileID := chi.URLParam(r, "fileId")
		files, err := store.ListFilesByItem(item.ID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to list files: %v", err))
			return
		}
		owned := false
		for _, f := range files {
			if f.ID == fileID {
				owned = true
				break
			}
		}
		if !owned {
			writeError(w, http.StatusNotFound, "file not found")
			return
		}

		if err := store.DeleteFile(fileID); err != nil {
			writeStoreError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func decodeItemRequest(w http.ResponseWriter, r *http.Request) (*itemRequest, bool) {
	var req itemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return nil, false
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return nil, false
	}
	if !ValidItemName(req.Name) {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid item name %q: use lowercase letters, digits, and hyphens", req.Name))
		return nil, false
	}
	if !ItemType(req.Type).IsValid() {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown item type %q", req.Type))
		return nil, false
	}
	return &req, true
}

func itemFromRequest(req *itemRequest) *RegistryItem {
	return &RegistryItem{
		Name:                 req.Name,
		Type:                 ItemType(req.Type),
		Title:                req.Title,
		Description:          req.Description,
		Docs:                 req.Docs,
		CSS:                  req.CSS,
		Dependencies:         EncodeStringList(req.Dependencies),
		RegistryDependencies: EncodeStringList(req.RegistryDependencies),
		Categories:           EncodeStringList(req.Categories),
		CSSVars:              encodeCSSVarBlocks(req.CSSVars),
		EnvVars:              encodeStringMap(req.EnvVars),
		Meta:                 encodeAnyMap(req.Meta),
		SortOrder:            req.SortOrder,
	}
}

func encodeCSSVarBlocks(blocks *CSSVarBlocks) string {
	if blocks == nil || (len(blocks.Theme) == 0 && len(blocks.Light) == 0 && len(blocks.Dark) == 0) {
		return ""
	}
	data, err := json.Marshal(blocks)
	if err != nil {
		return ""
	}
	return string(data)
}

func encodeStringMap(m map[string]string) string {
	if len(m) == 0 {
		return ""
	}
	data, err := json.Marshal(m)
	if err != nil {
		return ""
	}
	return string(data)
}

func encodeAnyMap(m map[string]any) string {
	if len(m) == 0 {
		return ""
	}
	data, err := json.Marshal(m)
	if err != nil {
		return ""
	}
	return string(data)
}

func requireIdentity(w http.ResponseWriter, r *http.Request) (authz.Identity, bool) {
	id, ok := authz.IdentityFromContext(r.Context())
	if !ok || id.User == "" {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return authz.Identity{}, false
	}
	return id, true
}

// requireOwnedRegistry loads {registryId} and verifies ownership.
func requireOwnedRegistry(w http.ResponseWriter, r *http.Request, store *Store) (*Registry, bool) {
	id, ok := requireIdentity(w, r)
	if !ok {
		return nil, false
	}

	reg, err := store.GetRegistry(chi.URLParam(r, "registryId"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to get registry: %v", err))
		return nil, false
	}
	if reg == nil {
		writeError(w, http.StatusNotFound, "registry not found")
		return nil, false
	}
	if reg.OwnerID != id.User {
		writeError(w, http.StatusForbidden, "not the registry owner")
		return nil, false
	}
	return reg, true
}

// requireOwnedItem loads {itemId}, checking it belongs to the owned
// registry in the route.
func requireOwnedItem(w http.ResponseWriter, r *http.Request, store *Store) (*RegistryItem, bool) {
	reg, ok := requireOwnedRegistry(w, r, store)
	if !ok {
		return nil, false
	}

	item, err := store.GetItem(chi.URLParam(r, "itemId"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to get item: %v", err))
		return nil, false
	}
	if item == nil || item.RegistryID != reg.ID {
		writeError(w, http.StatusNotFound, "item not found")
		return nil, false
	}
	return item, true
}

func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, ErrInvalidName):
		writeError(w, http.StatusBadRequest, "name must contain at least one letter or digit")
	case errors.Is(err, ErrSlugTaken):
		writeError(w, http.StatusConflict, "a registry with this slug already exists")
	case errors.Is(err, ErrNameTaken):
		writeError(w, http.StatusConflict, "an item with this name already exists")
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
