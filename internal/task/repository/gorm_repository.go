package repository

import (
	"time"

	"design-assistant-backend/internal/task/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// gormTaskRepository implements TaskRepository using GORM
type gormTaskRepository struct {
	db *gorm.DB
}

// NewGormTaskRepository creates a new GORM-based TaskRepository
func NewGormTaskRepository(db *gorm.DB) TaskRepository {
	db.AutoMigrate(&domain.Task{})
	return &gormTaskRepository{db: db}
}

func (r *gormTaskRepository) Create(task *domain.Task) error {
	task.CreatedAt = time.Now()
	task.UpdatedAt = time.Now()
	if task.SyncStatus == "" {
		task.SyncStatus = domain.SyncStatusIdle
	}
	return r.db.Create(task).Error
}

func (r *gormTaskRepository) FindByKey(externalTaskKey string) (*domain.Task, error) {
	var task domain.Task
	err := r.db.Where("external_task_key = ?", externalTaskKey).First(&task).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &task, nil
}

func (r *gormTaskRepository) Update(task *domain.Task) error {
	task.UpdatedAt = time.Now()
	return r.db.Save(task).Error
}

func (r *gormTaskRepository) MarkSyncing(externalTaskKey string) (bool, error) {
	now := time.Now()
	// The WHERE clause is the lock: only a task not currently syncing can
	// transition, so concurrent sync requests resolve to one winner.
	result := r.db.Model(&domain.Task{}).
		Where("external_task_key = ? AND sync_status <> ?", externalTaskKey, domain.SyncStatusSyncing).
		Updates(map[string]interface{}{
			"sync_status":     domain.SyncStatusSyncing,
			"sync_started_at": now,
			"sync_error":      "",
			"updated_at":      now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// gormSnapshotRepository implements SnapshotRepository using GORM
type gormSnapshotRepository struct {
	db *gorm.DB
}

func NewGormSnapshotRepository(db *gorm.DB) SnapshotRepository {
	db.AutoMigrate(&domain.TaskSnapshot{})
	return &gormSnapshotRepository{db: db}
}

func (r *gormSnapshotRepository) WithTx(tx *gorm.DB) SnapshotRepository {
	return &gormSnapshotRepository{db: tx}
}

func (r *gormSnapshotRepository) Create(snapshot *domain.TaskSnapshot) error {
	if snapshot.ID == "" {
		snapshot.ID = uuid.New().String()
	}
	snapshot.CreatedAt = time.Now()
	return r.db.Create(snapshot).Error
}

func (r *gormSnapshotRepository) FindByID(id string) (*domain.TaskSnapshot, error) {
	var snapshot domain.TaskSnapshot
	err := r.db.Where("id = ?", id).First(&snapshot).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &snapshot, nil
}

func (r *gormSnapshotRepository) FindByVersion(externalTaskKey, version string) (*domain.TaskSnapshot, error) {
	var snapshot domain.TaskSnapshot
	err := r.db.Where("external_task_key = ? AND version = ?", externalTaskKey, version).
		Order("created_at DESC").First(&snapshot).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &snapshot, nil
}

func (r *gormSnapshotRepository) FindLatest(externalTaskKey string) (*domain.TaskSnapshot, error) {
	var snapshot domain.TaskSnapshot
	err := r.db.Where("external_task_key = ?", externalTaskKey).
		Order("created_at DESC").First(&snapshot).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &snapshot, nil
}

func (r *gormSnapshotRepository) Update(snapshot *domain.TaskSnapshot) error {
	return r.db.Save(snapshot).Error
}

// gormFileRepository implements FileRepository using GORM
type gormFileRepository struct {
	db *gorm.DB
}

func NewGormFileRepository(db *gorm.DB) FileRepository {
	db.AutoMigrate(&domain.TaskFile{})
	return &gormFileRepository{db: db}
}

func (r *gormFileRepository) WithTx(tx *gorm.DB) FileRepository {
	return &gormFileRepository{db: tx}
}

func (r *gormFileRepository) Upsert(file *domain.TaskFile) error {
	now := time.Now()

	// Update-on-conflict over the (task, snapshot, asset) triple, keeping
	// the existing row's id stable so chunk metadata keeps pointing at it.
	var existing domain.TaskFile
	err := r.db.Where(
		"external_task_key = ? AND snapshot_id = ? AND monday_asset_id = ?",
		file.ExternalTaskKey, file.SnapshotID, file.MondayAssetID,
	).First(&existing).Error
	if err == nil {
		file.ID = existing.ID
		file.CreatedAt = existing.CreatedAt
		file.UpdatedAt = now
		return r.db.Save(file).Error
	}
	if err != gorm.ErrRecordNotFound {
		return err
	}

	if file.ID == "" {
		file.ID = uuid.New().String()
	}
	file.CreatedAt = now
	file.UpdatedAt = now
	return r.db.Create(file).Error
}

func (r *gormFileRepository) FindByID(id string) (*domain.TaskFile, error) {
	var file domain.TaskFile
	err := r.db.Where("id = ?", id).First(&file).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &file, nil
}

func (r *gormFileRepository) FindBySnapshot(snapshotID string) ([]*domain.TaskFile, error) {
	var files []*domain.TaskFile
	err := r.db.Where("snapshot_id = ?", snapshotID).
		Order("created_at ASC").Find(&files).Error
	return files, err
}
