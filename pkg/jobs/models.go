// Package jobs runs GitHub sync work asynchronously: queued push and
// import jobs picked up by a worker pool, with retries, stuck-job
// recovery, and a status API.
package jobs

import (
	"time"
)

// JobKind distinguishes the work a sync job carries.
type JobKind string

const (
	// JobKindPush pushes a registry's regenerated scaffold to its linked
	// GitHub repository.
	JobKindPush JobKind = "push"
	// JobKindImport imports a GitHub-hosted registry repository.
	JobKindImport JobKind = "import"
)

// JobState represents the lifecycle state of a sync job.
type JobState string

const (
	JobStateQueued    JobState = "queued"
	JobStateRunning   JobState = "running"
	JobStateSucceeded JobState = "succeeded"
	JobStateFailed    JobState = "failed"
	JobStateCanceled  JobState = "canceled"
)

// SyncJob is the GORM model for a queued sync operation. Push jobs carry
// RegistryID and Force; import jobs carry RepoOwner, RepoName, and Branch,
// and record the created registry in ResultRegistryID on success.
type SyncJob struct {
	ID             string     `gorm:"primaryKey;column:id;type:varchar(36)"`
	Kind           JobKind    `gorm:"column:kind;index:idx_job_kind_state,priority:1;not null"`
	RegistryID     string     `gorm:"column:registry_id;index:idx_job_registry"`
	Force          bool       `gorm:"column:force;default:false"`
	RepoOwner      string     `gorm:"column:repo_owner"`
	RepoName       string     `gorm:"column:repo_name"`
	Branch         string     `gorm:"column:branch"`
	RequestedBy    string     `gorm:"column:requested_by;not null"`
	RequestedAt    time.Time  `gorm:"column:requested_at;not null"`
	State          JobState   `gorm:"column:state;index:idx_job_kind_state,priority:2;index:idx_job_state;not null;default:queued"`
	Message        string     `gorm:"column:message"`
	StartedAt      *time.Time `gorm:"column:started_at"`
	FinishedAt     *time.Time `gorm:"column:finished_at"`
	AttemptCount   int        `gorm:"column:attempt_count;default:0"`
	LastError      string     `gorm:"column:last_error"`
	IdempotencyKey string     `gorm:"column:idempotency_key;uniqueIndex:idx_job_idemp_key"`

	// Outcome fields, written on success.
	CommitSHA        string `gorm:"column:commit_sha"`
	FilesChanged     int    `gorm:"column:files_changed"`
	ResultRegistryID string `gorm:"column:result_registry_id"`
	DurationMs       int64  `gorm:"column:duration_ms"`
}

// TableName returns the GORM table name.
func (SyncJob) TableName() string { return "sync_jobs" }

// IsTerminal returns true if the job is in a terminal state.
func (j *SyncJob) IsTerminal() bool {
	switch j.State {
	case JobStateSucceeded, JobStateFailed, JobStateCanceled:
		return true
	}
	return false
}
