package registry

import (
	"encoding/json"
	"time"
)

// ItemType classifies an installable registry item.
type ItemType string

const (
	ItemTypeLib       ItemType = "lib"
	ItemTypeBlock     ItemType = "block"
	ItemTypeComponent ItemType = "component"
	ItemTypeUI        ItemType = "ui"
	ItemTypeHook      ItemType = "hook"
	ItemTypePage      ItemType = "page"
	ItemTypeFile      ItemType = "file"
)

// ItemTypes lists all valid item types.
var ItemTypes = []ItemType{
	ItemTypeLib, ItemTypeBlock, ItemTypeComponent, ItemTypeUI,
	ItemTypeHook, ItemTypePage, ItemTypeFile,
}

// IsValid reports whether t is a known item type.
func (t ItemType) IsValid() bool {
	for _, v := range ItemTypes {
		if t == v {
			return true
		}
	}
	return false
}

// FileType classifies an item file, mirroring the registry file type
// convention used by shadcn-style installers.
type FileType string

const (
	FileTypeLib       FileType = "registry:lib"
	FileTypeBlock     FileType = "registry:block"
	FileTypeComponent FileType = "registry:component"
	FileTypeUI        FileType = "registry:ui"
	FileTypeHook      FileType = "registry:hook"
	FileTypePage      FileType = "registry:page"
	FileTypeFile      FileType = "registry:file"
	FileTypeStyle     FileType = "registry:style"
)

// FileTypes lists all valid file types.
var FileTypes = []FileType{
	FileTypeLib, FileTypeBlock, FileTypeComponent, FileTypeUI,
	FileTypeHook, FileTypePage, FileTypeFile, FileTypeStyle,
}

// IsValid reports whether t is a known file type.
func (t FileType) IsValid() bool {
	for _, v := range FileTypes {
		if t == v {
			return true
		}
	}
	return false
}

// Registry is the GORM model for a named, user-owned collection of
// installable items. It is the root aggregate: deleting a registry removes
// its items, their files, and its GitHub export record.
type Registry struct {
	ID            string    `gorm:"primaryKey;column:id;type:varchar(36)"`
	OwnerID       string    `gorm:"column:owner_id;index:idx_registry_owner;uniqueIndex:idx_registry_owner_slug,priority:1;not null"`
	Name          string    `gorm:"column:name;not null"`
	Slug          string    `gorm:"column:slug;uniqueIndex:idx_registry_owner_slug,priority:2;not null"`
	DisplayName   string    `gorm:"column:display_name"`
	Description   string    `gorm:"column:description"`
	Homepage      string    `gorm:"column:homepage"`
	IsPublic      bool      `gorm:"column:is_public;default:false"`
	GithubRepoURL string    `gorm:"column:github_repo_url"`
	CreatedAt     time.Time `gorm:"column:created_at"`
	UpdatedAt     time.Time `gorm:"column:updated_at"`
}

// TableName returns the GORM table name.
func (Registry) TableName() string { return "registries" }

// RegistryItem is one installable unit within a registry.
// JSON-array and JSON-object attributes (dependencies, CSS variables,
// environment variables, categories, metadata) are stored as serialized
// text columns; use the typed accessors to read them.
type RegistryItem struct {
	ID                   string    `gorm:"primaryKey;column:id;type:varchar(36)"`
	RegistryID           string    `gorm:"column:registry_id;index:idx_item_registry;uniqueIndex:idx_item_registry_name,priority:1;not null"`
	Name                 string    `gorm:"column:name;uniqueIndex:idx_item_registry_name,priority:2;not null"`
	Type                 ItemType  `gorm:"column:type;not null"`
	Title                string    `gorm:"column:title"`
	Description          string    `gorm:"column:description"`
	Docs                 string    `gorm:"column:docs"`
	Dependencies         string    `gorm:"column:dependencies"`
	RegistryDependencies string    `gorm:"column:registry_dependencies"`
	CSSVars              string    `gorm:"column:css_vars"`
	CSS                  string    `gorm:"column:css"`
	EnvVars              string    `gorm:"column:env_vars"`
	Categories           string    `gorm:"column:categories"`
	Meta                 string    `gorm:"column:meta"`
	SortOrder            int       `gorm:"column:sort_order;default:0"`
	CreatedAt            time.Time `gorm:"column:created_at"`
	UpdatedAt            time.Time `gorm:"column:updated_at"`
}

// TableName returns the GORM table name.
func (RegistryItem) TableName() string { return "registry_items" }

// CSSVarBlocks holds the per-scope CSS variable maps for an item.
type CSSVarBlocks struct {
	Theme map[string]string `json:"theme,omitempty"`
	Light map[string]string `json:"light,omitempty"`
	Dark  map[string]string `json:"dark,omitempty"`
}

// DependencyList returns the npm package dependencies of the item.
func (i *RegistryItem) DependencyList() []string {
	return decodeStringList(i.Dependencies)
}

// RegistryDependencyList returns the names of other registry items this
// item depends on.
func (i *RegistryItem) RegistryDependencyList() []string {
	return decodeStringList(i.RegistryDependencies)
}

// CategoryList returns the item's category tags.
func (i *RegistryItem) CategoryList() []string {
	return decodeStringList(i.Categories)
}

// CSSVarBlocks returns the item's CSS variable maps, or nil if unset.
func (i *RegistryItem) CSSVarBlocks() *CSSVarBlocks {
	if i.CSSVars == "" {
		return nil
	}
	var blocks CSSVarBlocks
	if err := json.Unmarshal([]byte(i.CSSVars), &blocks); err != nil {
		return nil
	}
	return &blocks
}

// EnvVarMap returns the item's declared environment variables, or nil.
func (i *RegistryItem) EnvVarMap() map[string]string {
	if i.EnvVars == "" {
		return nil
	}
	var vars map[string]string
	if err := json.Unmarshal([]byte(i.EnvVars), &vars); err != nil {
		return nil
	}
	return vars
}

// MetaMap returns the item's free-form metadata, or nil.
func (i *RegistryItem) MetaMap() map[string]any {
	if i.Meta == "" {
		return nil
	}
	var meta map[string]any
	if err := json.Unmarshal([]byte(i.Meta), &meta); err != nil {
		return nil
	}
	return meta
}

// EncodeStringList serializes a string slice for storage in a JSON text
// column. Empty and nil slices encode to the empty string.
func EncodeStringList(values []string) string {
	if len(values) == 0 {
		return ""
	}
	data, err := json.Marshal(values)
	if err != nil {
		return ""
	}
	return string(data)
}

func decodeStringList(data string) []string {
	if data == "" {
		return nil
	}
	var values []string
	if err := json.Unmarshal([]byte(data), &values); err != nil {
		return nil
	}
	return values
}

// ItemFile is one source file owned by a registry item. Path is the
// install-time destination relative to the item; Target optionally
// overrides it on the consumer side.
type ItemFile struct {
	ID        string    `gorm:"primaryKey;column:id;type:varchar(36)"`
	ItemID    string    `gorm:"column:item_id;index:idx_file_item;uniqueIndex:idx_file_item_path,priority:1;not null"`
	Path      string    `gorm:"column:path;uniqueIndex:idx_file_item_path,priority:2;not null"`
	Type      FileType  `gorm:"column:type;not null"`
	Target    string    `gorm:"column:target"`
	Content   string    `gorm:"column:content;type:text"`
	CreatedAt time.Time `gorm:"column:created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

// TableName returns the GORM table name.
func (ItemFile) TableName() string { return "item_files" }

// GithubExport links one registry to one remote GitHub repository and
// records the sync state used for hash-based diffing. LastCommitSHA and
// SyncSnapshot are only ever written together: the snapshot must exactly
// describe the file set committed at that SHA.
type GithubExport struct {
	ID            string    `gorm:"primaryKey;column:id;type:varchar(36)"`
	RegistryID    string    `gorm:"column:registry_id;uniqueIndex:idx_export_registry;not null"`
	RepoURL       string    `gorm:"column:repo_url;not null"`
	PagesURL      string    `gorm:"column:pages_url"`
	RepoOwner     string    `gorm:"column:repo_owner;not null"`
	RepoName      string    `gorm:"column:repo_name;not null"`
	LastCommitSHA string    `gorm:"column:last_commit_sha"`
	SyncSnapshot  string    `gorm:"column:sync_snapshot;type:text"`
	LastSyncedAt  time.Time `gorm:"column:last_synced_at"`
	CreatedAt     time.Time `gorm:"column:created_at"`
	UpdatedAt     time.Time `gorm:"column:updated_at"`
}

// TableName returns the GORM table name.
func (GithubExport) TableName() string { return "github_exports" }

// AnalyticsRecord is a per-day usage counter for a registry. The sync
// engine never writes these; they are recorded when hosted manifests are
// served and read back by date range.
type AnalyticsRecord struct {
	ID         string    `gorm:"primaryKey;column:id;type:varchar(36)"`
	RegistryID string    `gorm:"column:registry_id;uniqueIndex:idx_analytics_registry_date,priority:1;not null"`
	Date       string    `gorm:"column:date;uniqueIndex:idx_analytics_registry_date,priority:2;type:varchar(10);not null"`
	Views      int64     `gorm:"column:views;default:0"`
	Installs   int64     `gorm:"column:installs;default:0"`
	CreatedAt  time.Time `gorm:"column:created_at"`
	UpdatedAt  time.Time `gorm:"column:updated_at"`
}

// TableName returns the GORM table name.
func (AnalyticsRecord) TableName() string { return "analytics_records" }
