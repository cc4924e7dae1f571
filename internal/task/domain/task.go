package domain

import "time"

// SyncStatus represents the current state of a task's ingestion pipeline
type SyncStatus string

const (
	SyncStatusIdle      SyncStatus = "idle"
	SyncStatusSyncing   SyncStatus = "syncing"
	SyncStatusCompleted SyncStatus = "completed"
	SyncStatusFailed    SyncStatus = "failed"
)

// Task represents one linked monday.com work item tracked by the assistant
type Task struct {
	ExternalTaskKey string `json:"external_task_key" gorm:"primaryKey"`
	AccountID       string `json:"account_id" gorm:"index;not null"`
	BoardID         string `json:"board_id" gorm:"not null"`
	ItemID          string `json:"item_id" gorm:"index;not null"`
	ItemName        string `json:"item_name"`

	SyncStatus      SyncStatus `json:"sync_status" gorm:"default:idle"`
	SyncStartedAt   *time.Time `json:"sync_started_at,omitempty"`
	SyncCompletedAt *time.Time `json:"sync_completed_at,omitempty"`
	SyncError       string     `json:"sync_error,omitempty"`

	// LatestSnapshotVersion is the fingerprint of the most recent committed
	// snapshot, used for the unchanged short-circuit.
	LatestSnapshotVersion string `json:"latest_snapshot_version"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SnapshotStatus represents the terminal state of one ingestion run
type SnapshotStatus string

const (
	SnapshotStatusDone SnapshotStatus = "done"
	// SnapshotStatusAbortedPartial marks a run stopped by hard memory
	// pressure: the work produced so far is committed, but the snapshot is
	// known-incomplete.
	SnapshotStatusAbortedPartial SnapshotStatus = "aborted_partial"
)

// TaskSnapshot is the versioned output of one ingestion run
type TaskSnapshot struct {
	ID              string         `json:"id" gorm:"primaryKey"`
	ExternalTaskKey string         `json:"external_task_key" gorm:"index;not null"`
	Version         string         `json:"version" gorm:"index;not null"` // deterministic fingerprint
	Status          SnapshotStatus `json:"status" gorm:"default:done"`

	// TaskContextJSON carries the raw item context plus derived metadata
	// (CSV parameter tables, per-kind document counts) as a JSON blob.
	TaskContextJSON string `json:"task_context_json" gorm:"type:text"`

	CreatedAt time.Time `json:"created_at"`
}

// FileKind tags a stored file with its document family
type FileKind string

// TaskFile is one ingested binary object belonging to exactly one snapshot.
// (ExternalTaskKey, SnapshotID, MondayAssetID) is unique: re-ingestion with
// the same triple updates in place rather than duplicating.
type TaskFile struct {
	ID              string   `json:"id" gorm:"primaryKey"`
	ExternalTaskKey string   `json:"external_task_key" gorm:"uniqueIndex:idx_task_snapshot_asset;not null"`
	SnapshotID      string   `json:"snapshot_id" gorm:"uniqueIndex:idx_task_snapshot_asset;not null"`
	MondayAssetID   string   `json:"monday_asset_id" gorm:"uniqueIndex:idx_task_snapshot_asset;not null"`
	Kind            FileKind `json:"kind" gorm:"index"`

	Filename   string `json:"filename"`
	MIMEType   string `json:"mime_type"`
	SizeBytes  int64  `json:"size_bytes"`
	SHA256     string `json:"sha256"`
	Bucket     string `json:"bucket"`
	ObjectPath string `json:"object_path"`

	// ExtractionNote is set when extraction was skipped or degraded
	// (oversize input, memory pressure, upstream failure).
	ExtractionNote string `json:"extraction_note,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
