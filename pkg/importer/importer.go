// Package importer builds a registry from an existing GitHub repository
// that hosts a shadcn-style registry manifest. It clones the repo, parses
// and validates registry.json, and creates the registry, its items, and
// their files in a single transaction together with a sync record, so the
// imported registry can be pushed back without producing a spurious diff.
package importer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/uifoundry/registry-studio/pkg/registry"
	"github.com/uifoundry/registry-studio/pkg/scaffold"
	"github.com/uifoundry/registry-studio/pkg/snapshot"
)

// ManifestError reports an invalid or unreadable registry manifest. It is
// a client error: nothing gets written to the database when it is returned.
type ManifestError struct {
	Reason string
}

func (e *ManifestError) Error() string {
	return "invalid registry manifest: " + e.Reason
}

// maxSlugAttempts bounds slug disambiguation for repeated imports of the
// same repository.
const maxSlugAttempts = 50

// ImportOptions identifies the repository to import.
type ImportOptions struct {
	Owner  string
	Repo   string
	Branch string // defaults to main
	Token  string // optional, required for private repos
}

// ImportResult summarizes a completed import.
type ImportResult struct {
	RegistryID string
	Slug       string
	CommitSHA  string
	ItemCount  int
	FileCount  int
}

// Importer imports external registry repositories into the data store.
type Importer struct {
	store  *registry.Store
	cloner Cloner
	logger *slog.Logger
}

// NewImporter creates an Importer. A nil logger falls back to slog.Default.
func NewImporter(store *registry.Store, cloner Cloner, logger *slog.Logger) *Importer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Importer{store: store, cloner: cloner, logger: logger}
}

// ImportFromGithub clones the repository, validates its manifest and file
// set fully up front, and then creates the registry, items, files, and the
// GitHub sync record in one transaction for ownerID. The registry slug is
// derived from the manifest name and disambiguated with a numeric suffix
// when taken.
func (imp *Importer) ImportFromGithub(ctx context.Context, ownerID string, opts ImportOptions) (*ImportResult, error) {
	if opts.Owner == "" || opts.Repo == "" {
		return nil, &ManifestError{Reason: "repository owner and name are required"}
	}
	branch := opts.Branch
	if branch == "" {
		branch = "main"
	}
	repoURL := fmt.Sprintf("https://github.com/%s/%s", opts.Owner, opts.Repo)

	dir, headSHA, cleanup, err := imp.cloner.Clone(ctx, repoURL, branch, opts.Token)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	manifest, err := readManifest(dir)
	if err != nil {
		return nil, err
	}

	imported, fileCount, err := collectItems(dir, manifest)
	if err != nil {
		return nil, err
	}

	slug, err := imp.pickSlug(ownerID, manifest.Name)
	if err != nil {
		return nil, err
	}

	reg := &registry.Registry{
		ID:            uuid.New().String(),
		OwnerID:       ownerID,
		Name:          manifest.Name,
		Slug:          slug,
		Homepage:      manifest.Homepage,
		GithubRepoURL: repoURL,
	}

	pagesURL := fmt.Sprintf("https://%s.github.io/%s/", opts.Owner, opts.Repo)

	err = imp.store.DB().Transaction(func(tx *gorm.DB) error {
		txStore := imp.store.WithTx(tx)

		if err := txStore.CreateRegistry(reg); err != nil {
			return err
		}

		withFiles := make([]scaffold.ItemWithFiles, 0, len(imported))
		for order, entry := range imported {
			item := entry.item
			item.ID = uuid.New().String()
			item.RegistryID = reg.ID
			item.SortOrder = order
			if err := txStore.CreateItem(&item); err != nil {
				return fmt.Errorf("import item %q: %w", item.Name, err)
			}

			files := make([]registry.ItemFile, 0, len(entry.files))
			for _, file := range entry.files {
				file.ID = uuid.New().String()
				file.ItemID = item.ID
				if err := txStore.UpsertFile(&file); err != nil {
					return fmt.Errorf("import file %q of item %q: %w", file.Path, item.Name, err)
				}
				files = append(files, file)
			}
			withFiles = append(withFiles, scaffold.ItemWithFiles{Item: item, Files: files})
		}

		// The sync snapshot describes the scaffold this service would
		// generate from the imported rows, not the remote repo's raw
		// tree. A push straight after import regenerates the same
		// scaffold and diffs to empty.
		generated, err := scaffold.Generate(reg, withFiles, pagesURL)
		if err != nil {
			return err
		}
		encoded, err := snapshot.Compute(generated).Encode()
		if err != nil {
			return err
		}

		return txStore.CreateGithubExport(&registry.GithubExport{
			ID:            uuid.New().String(),
			RegistryID:    reg.ID,
			RepoURL:       repoURL,
			PagesURL:      pagesURL,
			RepoOwner:     opts.Owner,
			RepoName:      opts.Repo,
			LastCommitSHA: headSHA,
			SyncSnapshot:  encoded,
			LastSyncedAt:  time.Now().UTC(),
		})
	})
	if err != nil {
		return nil, err
	}

	imp.logger.Info("imported registry from GitHub",
		"registry_id", reg.ID, "slug", reg.Slug, "repo", repoURL,
		"items", len(imported), "files", fileCount)

	return &ImportResult{
		RegistryID: reg.ID,
		Slug:       reg.Slug,
		CommitSHA:  headSHA,
		ItemCount:  len(imported),
		FileCount:  fileCount,
	}, nil
}

// pickSlug derives a slug from the manifest name and appends -2, -3, ...
// until it finds one the owner does not already use.
func (imp *Importer) pickSlug(ownerID, name string) (string, error) {
	base := registry.Slugify(name)
	if base == "" {
		return "", &ManifestError{Reason: "manifest name does not produce a usable slug"}
	}

	candidate := base
	for i := 2; i <= maxSlugAttempts; i++ {
		existing, err := imp.store.GetRegistryBySlug(ownerID, candidate)
		if err != nil {
			return "", err
		}
		if existing == nil {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, i)
	}
	return "", fmt.Errorf("no free slug for %q after %d attempts", base, maxSlugAttempts)
}

type importedItem struct {
	item  registry.RegistryItem
	files []registry.ItemFile
}

func readManifest(dir string) (*scaffold.Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, "registry.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &ManifestError{Reason: "registry.json not found at repository root"}
		}
		return nil, fmt.Errorf("read registry.json: %w", err)
	}

	var manifest scaffold.Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, &ManifestError{Reason: "registry.json is not valid JSON: " + err.Error()}
	}
	if manifest.Name == "" {
		return nil, &ManifestError{Reason: "manifest name is required"}
	}
	return &manifest, nil
}

// collectItems validates every item and reads every referenced file from
// the clone before anything touches the database.
func collectItems(dir string, manifest *scaffold.Manifest) ([]importedItem, int, error) {
	seen := map[string]bool{}
	var result []importedItem
	fileCount := 0

	for _, mi := range manifest.Items {
		if mi.Name == "" {
			return nil, 0, &ManifestError{Reason: "item with empty name"}
		}
		if !registry.ValidItemName(mi.Name) {
			return nil, 0, &ManifestError{Reason: fmt.Sprintf("item name %q is not path-safe", mi.Name)}
		}
		if seen[mi.Name] {
			return nil, 0, &ManifestError{Reason: fmt.Sprintf("duplicate item name %q", mi.Name)}
		}
		seen[mi.Name] = true

		itemType, ok := strings.CutPrefix(mi.Type, "registry:")
		if !ok || !registry.ItemType(itemType).IsValid() {
			return nil, 0, &ManifestError{Reason: fmt.Sprintf("item %q has unknown type %q", mi.Name, mi.Type)}
		}

		item := registry.RegistryItem{
			Name:                 mi.Name,
			Type:                 registry.ItemType(itemType),
			Title:                mi.Title,
			Description:          mi.Description,
			Docs:                 mi.Docs,
			CSS:                  mi.CSS,
			Dependencies:         registry.EncodeStringList(mi.Dependencies),
			RegistryDependencies: registry.EncodeStringList(mi.RegistryDependencies),
			Categories:           registry.EncodeStringList(mi.Categories),
			CSSVars:              encodeCSSVars(mi.CSSVars),
			EnvVars:              encodeJSON(mi.EnvVars),
			Meta:                 encodeJSON(mi.Meta),
		}

		var files []registry.ItemFile
		for _, mf := range mi.Files {
			if mf.Path == "" {
				return nil, 0, &ManifestError{Reason: fmt.Sprintf("item %q has a file with empty path", mi.Name)}
			}
			fileType := registry.FileType(mf.Type)
			if !fileType.IsValid() {
				return nil, 0, &ManifestError{Reason: fmt.Sprintf("file %q has unknown type %q", mf.Path, mf.Type)}
			}

			content, err := readRepoFile(dir, mf.Path)
			if err != nil {
				return nil, 0, err
			}

			files = append(files, registry.ItemFile{
				Path:    itemRelativePath(mi.Name, mf.Path),
				Type:    fileType,
				Target:  mf.Target,
				Content: content,
			})
		}

		result = append(result, importedItem{item: item, files: files})
		fileCount += len(files)
	}
	return result, fileCount, nil
}

// readRepoFile reads a manifest-referenced file, rejecting paths that
// escape the clone directory.
func readRepoFile(dir, repoPath string) (string, error) {
	cleaned := filepath.Clean(filepath.FromSlash(repoPath))
	if cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) || filepath.IsAbs(cleaned) {
		return "", &ManifestError{Reason: fmt.Sprintf("file path %q escapes the repository", repoPath)}
	}

	data, err := os.ReadFile(filepath.Join(dir, cleaned))
	if err != nil {
		if os.IsNotExist(err) {
			return "", &ManifestError{Reason: fmt.Sprintf("file %q is referenced by the manifest but missing from the repository", repoPath)}
		}
		return "", fmt.Errorf("read %s: %w", repoPath, err)
	}
	return string(data), nil
}

// itemRelativePath recovers the item-relative file path from a manifest
// repo path. Scaffolds produced by this service place item files under
// registry/<item-name>/; anything else keeps its manifest path as-is.
func itemRelativePath(itemName, repoPath string) string {
	prefix := "registry/" + itemName + "/"
	if rel, ok := strings.CutPrefix(repoPath, prefix); ok && rel != "" {
		return rel
	}
	return repoPath
}

func encodeCSSVars(vars *scaffold.CSSVars) string {
	if vars == nil || (len(vars.Theme) == 0 && len(vars.Light) == 0 && len(vars.Dark) == 0) {
		return ""
	}
	return encodeJSON(registry.CSSVarBlocks{Theme: vars.Theme, Light: vars.Light, Dark: vars.Dark})
}

func encodeJSON(v any) string {
	switch t := v.(type) {
	case map[string]string:
		if len(t) == 0 {
			return ""
		}
	case map[string]any:
		if len(t) == 0 {
			return ""
		}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(data)
}
