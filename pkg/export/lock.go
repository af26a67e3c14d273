package export

import (
	"context"
	"fmt"
	"hash/crc32"
	"os"
	"time"

	"gorm.io/gorm"
)

// PushLocker serializes push attempts for a single registry so that two
// concurrent pushes cannot interleave their read-HEAD and commit steps.
// The remote HEAD comparison remains the correctness guard; the lock only
// removes the window where both attempts pass it.
type PushLocker interface {
	// WithLock executes fn while holding the push lock for registryID.
	WithLock(ctx context.Context, registryID string, fn func() error) error
}

// NewPushLocker creates a PushLocker appropriate for the database dialect.
// PostgreSQL uses advisory locks keyed by registry id; other databases use
// a table-based fallback with stale lock cleanup.
func NewPushLocker(db *gorm.DB) PushLocker {
	if db == nil {
		return &noopPushLock{}
	}
	if db.Dialector.Name() == "postgres" {
		return &pgPushLock{db: db}
	}
	lock := &fallbackPushLock{db: db}
	// Create the lock table up front so concurrent first callers never
	// race on table creation.
	_ = db.AutoMigrate(&pushLockRecord{})
	return lock
}

type noopPushLock struct{}

func (n *noopPushLock) WithLock(_ context.Context, _ string, fn func() error) error {
	return fn()
}

// pgPushLock uses PostgreSQL advisory locks, one lock id per registry.
type pgPushLock struct {
	db *gorm.DB
}

func (l *pgPushLock) WithLock(ctx context.Context, registryID string, fn func() error) error {
	lockID := int64(crc32.ChecksumIEEE([]byte("registry-push:" + registryID)))

	if err := l.db.WithContext(ctx).Exec("SELECT pg_advisory_lock(?)", lockID).Error; err != nil {
		return fmt.Errorf("acquire push advisory lock: %w", err)
	}
	defer func() {
		_ = l.db.Exec("SELECT pg_advisory_unlock(?)", lockID).Error
	}()

	return fn()
}

type pushLockRecord struct {
	RegistryID string    `gorm:"primaryKey;column:registry_id"`
	LockedAt   time.Time `gorm:"column:locked_at"`
	LockedBy   string    `gorm:"column:locked_by"`
}

func (pushLockRecord) TableName() string { return "push_locks" }

// fallbackPushLock uses a lock table with INSERT-or-fail semantics for
// SQLite and MySQL, with stale lock cleanup for crash recovery.
type fallbackPushLock struct {
	db *gorm.DB
}

func (l *fallbackPushLock) WithLock(ctx context.Context, registryID string, fn func() error) error {
	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "unknown"
	}

	const maxRetries = 30
	const retryInterval = 200 * time.Millisecond
	const staleLockAge = 2 * time.Minute

	acquired := false
	for i := 0; i < maxRetries; i++ {
		l.db.WithContext(ctx).
			Where("registry_id = ? AND locked_at < ?", registryID, time.Now().Add(-staleLockAge)).
			Delete(&pushLockRecord{})

		row := pushLockRecord{
			RegistryID: registryID,
			LockedAt:   time.Now(),
			LockedBy:   hostname,
		}
		if err := l.db.WithContext(ctx).Create(&row).Error; err == nil {
			acquired = true
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryInterval):
		}
	}
	if !acquired {
		return fmt.Errorf("timed out waiting for push lock on registry %s", registryID)
	}

	defer func() {
		_ = l.db.Where("registry_id = ?", registryID).Delete(&pushLockRecord{}).Error
	}()

	return fn()
}
