// Package analytics records per-day usage counters for hosted registries:
// catalog views and item manifest installs. Counters are written when
// scaffold files are served and read back by date range.
package analytics

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/uifoundry/registry-studio/pkg/registry"
)

// DateFormat is the day-granularity key format for counter rows.
const DateFormat = "2006-01-02"

// Store persists analytics counters.
type Store struct {
	db  *gorm.DB
	now func() time.Time
}

// NewStore creates an analytics store.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// RecordView increments today's view counter for a registry.
func (s *Store) RecordView(registryID string) error {
	return s.increment(registryID, "views")
}

// RecordInstall increments today's install counter for a registry.
func (s *Store) RecordInstall(registryID string) error {
	return s.increment(registryID, "installs")
}

func (s *Store) increment(registryID, column string) error {
	today := s.now().UTC().Format(DateFormat)

	row := registry.AnalyticsRecord{
		ID:         uuid.New().String(),
		RegistryID: registryID,
		Date:       today,
	}
	switch column {
	case "views":
		row.Views = 1
	case "installs":
		row.Installs = 1
	}

	err := s.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "registry_id"}, {Name: "date"}},
		DoUpdates: clause.Assignments(map[string]any{
			column:       gorm.Expr(column+" + ?", 1),
			"updated_at": time.Now(),
		}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("record %s: %w", column, err)
	}
	return nil
}

// Range returns the counter rows for a registry between from and to
// inclusive, ordered by date. Dates use DateFormat.
func (s *Store) Range(registryID, from, to string) ([]registry.AnalyticsRecord, error) {
	var records []registry.AnalyticsRecord
	q := s.db.Where("registry_id = ?", registryID)
	if from != "" {
		q = q.Where("date >= ?", from)
	}
	if to != "" {
		q = q.Where("date <= ?", to)
	}
	if err := q.Order("date ASC").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("list analytics: %w", err)
	}
	return records, nil
}

// Totals sums views and installs for a registry over a date range.
func (s *Store) Totals(registryID, from, to string) (views, installs int64, err error) {
	records, err := s.Range(registryID, from, to)
	if err != nil {
		return 0, 0, err
	}
	for _, r := range records {
		views += r.Views
		installs += r.Installs
	}
	return views, installs, nil
}
