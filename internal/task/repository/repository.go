package repository

import (
	"design-assistant-backend/internal/task/domain"

	"gorm.io/gorm"
)

// TaskRepository manages Task rows. Find methods return (nil, nil) when no
// row matches.
type TaskRepository interface {
	Create(task *domain.Task) error
	FindByKey(externalTaskKey string) (*domain.Task, error)
	Update(task *domain.Task) error

	// MarkSyncing flips an idle/terminal task to syncing atomically; returns
	// false when the task is already mid-flight so two pipeline runs can
	// never race on one task.
	MarkSyncing(externalTaskKey string) (bool, error)
}

// SnapshotRepository manages TaskSnapshot rows.
type SnapshotRepository interface {
	Create(snapshot *domain.TaskSnapshot) error
	FindByID(id string) (*domain.TaskSnapshot, error)
	FindByVersion(externalTaskKey, version string) (*domain.TaskSnapshot, error)
	FindLatest(externalTaskKey string) (*domain.TaskSnapshot, error)
	Update(snapshot *domain.TaskSnapshot) error

	// WithTx returns a copy bound to tx so the orchestrator can stage every
	// write of a run in one transaction.
	WithTx(tx *gorm.DB) SnapshotRepository
}

// FileRepository manages TaskFile rows.
type FileRepository interface {
	// Upsert inserts or updates on the (task, snapshot, asset) triple.
	Upsert(file *domain.TaskFile) error
	FindByID(id string) (*domain.TaskFile, error)
	FindBySnapshot(snapshotID string) ([]*domain.TaskFile, error)

	WithTx(tx *gorm.DB) FileRepository
}
