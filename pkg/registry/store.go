package registry

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Store provides database operations for registries, their items and
// files, GitHub export records, and analytics counters.
type Store struct {
	db *gorm.DB
}

// NewStore creates a new Store.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// AutoMigrate creates or updates all registry tables.
func (s *Store) AutoMigrate() error {
	for _, model := range []any{
		&Registry{}, &RegistryItem{}, &ItemFile{}, &GithubExport{}, &AnalyticsRecord{},
	} {
		if err := s.db.AutoMigrate(model); err != nil {
			return fmt.Errorf("auto-migrate registry tables: %w", err)
		}
	}
	return nil
}

// DB exposes the underlying gorm handle for transactional callers.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// WithTx returns a Store bound to the given transaction handle.
func (s *Store) WithTx(tx *gorm.DB) *Store {
	return &Store{db: tx}
}

// GetRegistry retrieves a registry by id. Returns nil, nil if it does
// not exist.
func (s *Store) GetRegistry(id string) (*Registry, error) {
	var reg Registry
	err := s.db.Where("id = ?", id).First(&reg).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("get registry: %w", err)
	}
	return &reg, nil
}

// GetRegistryBySlug retrieves a registry by owner and slug. Returns
// nil, nil if it does not exist.
func (s *Store) GetRegistryBySlug(ownerID, slug string) (*Registry, error) {
	var reg Registry
	err := s.db.Where("owner_id = ? AND slug = ?", ownerID, slug).First(&reg).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("get registry by slug: %w", err)
	}
	return &reg, nil
}

// ListRegistriesByOwner returns all registries owned by the given user,
// ordered by creation time.
func (s *Store) ListRegistriesByOwner(ownerID string) ([]Registry, error) {
	var regs []Registry
	err := s.db.Where("owner_id = ?", ownerID).Order("created_at ASC").Find(&regs).Error
	if err != nil {
		return nil, fmt.Errorf("list registries: %w", err)
	}
	return regs, nil
}

// ListPublicRegistries returns all registries with the public visibility
// flag set, ordered by name.
func (s *Store) ListPublicRegistries() ([]Registry, error) {
	var regs []Registry
	err := s.db.Where("is_public = ?", true).Order("name ASC").Find(&regs).Error
	if err != nil {
		return nil, fmt.Errorf("list public registries: %w", err)
	}
	return regs, nil
}

// CreateRegistry inserts a new registry. The slug is derived from the name
// if unset; ErrInvalidName is returned when that slug comes out empty.
// Returns ErrSlugTaken when the owner already has a registry with the same
// slug; the composite unique index backs this check against concurrent
// creates.
func (s *Store) CreateRegistry(reg *Registry) error {
	if reg.ID == "" {
		reg.ID = uuid.New().String()
	}
	if reg.Slug == "" {
		reg.Slug = Slugify(reg.Name)
	}
	if reg.Slug == "" {
		return ErrInvalidName
	}

	existing, err := s.GetRegistryBySlug(reg.OwnerID, reg.Slug)
	if err != nil {
		return err
	}
	if existing != nil {
		return ErrSlugTaken
	}

	if err := s.db.Create(reg).Error; err != nil {
		// A concurrent create can slip past the pre-check and trip the
		// unique index instead.
		if dup, derr := s.GetRegistryBySlug(reg.OwnerID, reg.Slug); derr == nil && dup != nil {
			return ErrSlugTaken
		}
		return fmt.Errorf("create registry: %w", err)
	}
	return nil
}

// RegistryUpdate carries the partial-update fields for a registry. Nil
// pointers leave the corresponding column unchanged.
type RegistryUpdate struct {
	Name          *string
	DisplayName   *string
	Description   *string
	Homepage      *string
	IsPublic      *bool
	GithubRepoURL *string
}

// UpdateRegistry applies a partial update. Renaming re-derives the slug,
// rejecting names that slugify to nothing, and enforces slug uniqueness.
// Returns ErrNotFound if the registry does not exist.
func (s *Store) UpdateRegistry(id string, update RegistryUpdate) (*Registry, error) {
	reg, err := s.GetRegistry(id)
	if err != nil {
		return nil, err
	}
	if reg == nil {
		return nil, ErrNotFound
	}

	updates := map[string]any{}
	if update.Name != nil && *update.Name != reg.Name {
		slug := Slugify(*update.Name)
		if slug == "" {
			return nil, ErrInvalidName
		}
		if slug != reg.Slug {
			existing, err := s.GetRegistryBySlug(reg.OwnerID, slug)
			if err != nil {
				return nil, err
			}
			if existing != nil {
				return nil, ErrSlugTaken
			}
		}
		updates["name"] = *update.Name
		updates["slug"] = slug
	}
	if update.DisplayName != nil {
		updates["display_name"] = *update.DisplayName
	}
	if update.Description != nil {
		updates["description"] = *update.Description
	}
	if update.Homepage != nil {
		updates["homepage"] = *update.Homepage
	}
	if update.IsPublic != nil {
		updates["is_public"] = *update.IsPublic
	}
	if update.GithubRepoURL != nil {
		updates["github_repo_url"] = *update.GithubRepoURL
	}

	if len(updates) > 0 {
		updates["updated_at"] = time.Now()
		if err := s.db.Model(&Registry{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return nil, fmt.Errorf("update registry: %w", err)
		}
	}
	return s.GetRegistry(id)
}

// DeleteRegistry removes a registry and cascades to its items, their
// files, its export record, and its analytics counters in one transaction.
// Returns ErrNotFound if the registry does not exist.
func (s *Store) DeleteRegistry(id string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var reg Registry
		if err := tx.Where("id = ?", id).First(&reg).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return ErrNotFound
			}
			return fmt.Errorf("delete registry: %w", err)
		}

		var itemIDs []string
		if err := tx.Model(&RegistryItem{}).Where("registry_id = ?", id).
			Pluck("id", &itemIDs).Error; err != nil {
			return fmt.Errorf("delete registry items: %w", err)
		}
		if len(itemIDs) > 0 {
			if err := tx.Where("item_id IN ?", itemIDs).Delete(&ItemFile{}).Error; err != nil {
				return fmt.Errorf("delete item files: %w", err)
			}
		}
		if err := tx.Where("registry_id = ?", id).Delete(&RegistryItem{}).Error; err != nil {
			return fmt.Errorf("delete registry items: %w", err)
		}
		if err := tx.Where("registry_id = ?", id).Delete(&GithubExport{}).Error; err != nil {
			return fmt.Errorf("delete github export: %w", err)
		}
		if err := tx.Where("registry_id = ?", id).Delete(&AnalyticsRecord{}).Error; err != nil {
			return fmt.Errorf("delete analytics records: %w", err)
		}
		return tx.Delete(&reg).Error
	})
}

// GetItem retrieves a registry item by id. Returns nil, nil if missing.
func (s *Store) GetItem(id string) (*RegistryItem, error) {
	var item RegistryItem
	err := s.db.Where("id = ?", id).First(&item).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("get item: %w", err)
	}
	return &item, nil
}

// GetItemByName retrieves an item by registry and name. Returns nil, nil
// if missing.
func (s *Store) GetItemByName(registryID, name string) (*RegistryItem, error) {
	var item RegistryItem
	err := s.db.Where("registry_id = ? AND name = ?", registryID, name).First(&item).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("get item by name: %w", err)
	}
	return &item, nil
}

// ListItemsByRegistry returns a registry's items ordered by sort order,
// then name. The ordering is stable so that scaffold generation is
// deterministic.
func (s *Store) ListItemsByRegistry(registryID string) ([]RegistryItem, error) {
	var items []RegistryItem
	err := s.db.Where("registry_id = ?", registryID).
		Order("sort_order ASC, name ASC").Find(&items).Error
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	return items, nil
}

// CreateItem inserts a new item. Returns ErrNameTaken when the registry
// already has an item with the same name.
func (s *Store) CreateItem(item *RegistryItem) error {
	if item.ID == "" {
		item.ID = uuid.New().String()
	}

	existing, err := s.GetItemByName(item.RegistryID, item.Name)
	if err != nil {
		return err
	}
	if existing != nil {
		return ErrNameTaken
	}

	if err := s.db.Create(item).Error; err != nil {
		return fmt.Errorf("create item: %w", err)
	}
	return nil
}

// UpdateItem saves the full item record. Returns ErrNotFound if it does
// not exist, ErrNameTaken when renaming to an occupied name.
func (s *Store) UpdateItem(item *RegistryItem) error {
	current, err := s.GetItem(item.ID)
	if err != nil {
		return err
	}
	if current == nil {
		return ErrNotFound
	}
	if item.Name != current.Name {
		existing, err := s.GetItemByName(current.RegistryID, item.Name)
		if err != nil {
			return err
		}
		if existing != nil {
			return ErrNameTaken
		}
	}

	item.RegistryID = current.RegistryID
	item.CreatedAt = current.CreatedAt
	if err := s.db.Save(item).Error; err != nil {
		return fmt.Errorf("update item: %w", err)
	}
	return nil
}

// DeleteItem removes an item and its files. Returns ErrNotFound if the
// item does not exist.
func (s *Store) DeleteItem(id string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var item RegistryItem
		if err := tx.Where("id = ?", id).First(&item).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return ErrNotFound
			}
			return fmt.Errorf("delete item: %w", err)
		}
		if err := tx.Where("item_id = ?", id).Delete(&ItemFile{}).Error; err != nil {
			return fmt.Errorf("delete item files: %w", err)
		}
		return tx.Delete(&item).Error
	})
}

// ListFilesByItem returns an item's files ordered by path.
func (s *Store) ListFilesByItem(itemID string) ([]ItemFile, error) {
	var files []ItemFile
	err := s.db.Where("item_id = ?", itemID).Order("path ASC").Find(&files).Error
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	return files, nil
}

// UpsertFile creates the file if no file with the same (item, path) exists,
// otherwise updates its type, target, and content in place.
func (s *Store) UpsertFile(file *ItemFile) error {
	var existing ItemFile
	err := s.db.Where("item_id = ? AND path = ?", file.ItemID, file.Path).First(&existing).Error
	if err != nil {
		if err != gorm.ErrRecordNotFound {
			return fmt.Errorf("upsert file: %w", err)
		}
		if file.ID == "" {
			file.ID = uuid.New().String()
		}
		if err := s.db.Create(file).Error; err != nil {
			return fmt.Errorf("upsert file: %w", err)
		}
		return nil
	}

	existing.Type = file.Type
	existing.Target = file.Target
	existing.Content = file.Content
	if err := s.db.Save(&existing).Error; err != nil {
		return fmt.Errorf("upsert file: %w", err)
	}
	*file = existing
	return nil
}

// DeleteFile removes a file by id. Returns ErrNotFound if it does not
// exist.
func (s *Store) DeleteFile(id string) error {
	result := s.db.Where("id = ?", id).Delete(&ItemFile{})
	if result.Error != nil {
		return fmt.Errorf("delete file: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// GetGithubExport retrieves the export record for a registry. Returns
// nil, nil if the registry has never been exported.
func (s *Store) GetGithubExport(registryID string) (*GithubExport, error) {
	var export GithubExport
	err := s.db.Where("registry_id = ?", registryID).First(&export).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("get github export: %w", err)
	}
	return &export, nil
}

// CreateGithubExport inserts the export record for a registry. At most one
// export may exist per registry; the unique index enforces the 1:1.
func (s *Store) CreateGithubExport(export *GithubExport) error {
	if export.ID == "" {
		export.ID = uuid.New().String()
	}
	if err := s.db.Create(export).Error; err != nil {
		return fmt.Errorf("create github export: %w", err)
	}
	return nil
}

// UpdateGithubExport writes the commit SHA, snapshot, and sync timestamp
// as a single row update. Partial writes would desynchronize the differ,
// so callers must always pass all three together.
func (s *Store) UpdateGithubExport(registryID, commitSHA, syncSnapshot string, syncedAt time.Time) error {
	result := s.db.Model(&GithubExport{}).Where("registry_id = ?", registryID).Updates(map[string]any{
		"last_commit_sha": commitSHA,
		"sync_snapshot":   syncSnapshot,
		"last_synced_at":  syncedAt,
		"updated_at":      time.Now(),
	})
	if result.Error != nil {
		return fmt.Errorf("update github export: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
