// Package audit records an append-only activity trail of every mutating
// API request: registry and item authoring, file uploads, GitHub exports,
// pushes, and imports.
package audit

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// AuditEvent is one immutable activity record.
type AuditEvent struct {
	ID           string    `gorm:"column:id;primaryKey"`
	Actor        string    `gorm:"column:actor;index"`
	RequestID    string    `gorm:"column:request_id"`
	Action       string    `gorm:"column:action;index"`
	ResourceType string    `gorm:"column:resource_type;index"`
	ResourceID   string    `gorm:"column:resource_id"`
	RegistryID   string    `gorm:"column:registry_id;index"`
	Outcome      string    `gorm:"column:outcome"`
	StatusCode   int       `gorm:"column:status_code"`
	Method       string    `gorm:"column:method"`
	Path         string    `gorm:"column:path"`
	DurationMs   int64     `gorm:"column:duration_ms"`
	CreatedAt    time.Time `gorm:"column:created_at;index"`
}

// TableName returns the GORM table name.
func (AuditEvent) TableName() string { return "audit_events" }

// AuditStore provides append-only access to audit events.
type AuditStore struct {
	db *gorm.DB
}

// NewAuditStore creates an AuditStore backed by the given database.
func NewAuditStore(db *gorm.DB) *AuditStore {
	return &AuditStore{db: db}
}

// AutoMigrate creates or updates the audit schema.
func (s *AuditStore) AutoMigrate() error {
	return s.db.AutoMigrate(&AuditEvent{})
}

// Append writes a new event. Events are never updated or deleted except by
// retention.
func (s *AuditStore) Append(event *AuditEvent) error {
	if err := s.db.Create(event).Error; err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}
	return nil
}

// GetByID retrieves a single event. Returns nil, nil when not found.
func (s *AuditStore) GetByID(id string) (*AuditEvent, error) {
	var event AuditEvent
	result := s.db.Where("id = ?", id).First(&event)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("get audit event: %w", result.Error)
	}
	return &event, nil
}

// AuditListFilter narrows List results. Empty fields are ignored.
type AuditListFilter struct {
	Actor        string
	Action       string
	ResourceType string
	RegistryID   string
	Outcome      string
}

// List returns events newest first. pageToken is an RFC3339Nano timestamp;
// only events created strictly before it are returned. The returned token
// is empty when no further page exists.
func (s *AuditStore) List(filter AuditListFilter, pageSize int, pageToken string) ([]AuditEvent, string, error) {
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}

	query := s.db.Model(&AuditEvent{})
	if filter.Actor != "" {
		query = query.Where("actor = ?", filter.Actor)
	}
	if filter.Action != "" {
		query = query.Where("action = ?", filter.Action)
	}
	if filter.ResourceType != "" {
		query = query.Where("resource_type = ?", filter.ResourceType)
	}
	if filter.RegistryID != "" {
		query = query.Where("registry_id = ?", filter.RegistryID)
	}
	if filter.Outcome != "" {
		query = query.Where("outcome = ?", filter.Outcome)
	}
	if pageToken != "" {
		cursor, err := time.Parse(time.RFC3339Nano, pageToken)
		if err != nil {
			return nil, "", fmt.Errorf("invalid page token: %w", err)
		}
		query = query.Where("created_at < ?", cursor)
	}

	var events []AuditEvent
	if err := query.Order("created_at DESC").Limit(pageSize + 1).Find(&events).Error; err != nil {
		return nil, "", fmt.Errorf("list audit events: %w", err)
	}

	nextToken := ""
	if len(events) > pageSize {
		events = events[:pageSize]
		nextToken = events[pageSize-1].CreatedAt.Format(time.RFC3339Nano)
	}
	return events, nextToken, nil
}

// DeleteOlderThan removes events created before the cutoff, returning the
// number deleted.
func (s *AuditStore) DeleteOlderThan(cutoff time.Time) (int64, error) {
	result := s.db.Where("created_at < ?", cutoff).Delete(&AuditEvent{})
	if result.Error != nil {
		return 0, fmt.Errorf("delete old audit events: %w", result.Error)
	}
	return result.RowsAffected, nil
}
