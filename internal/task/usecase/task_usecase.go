package usecase

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"design-assistant-backend/internal/extract"
	"design-assistant-backend/internal/task/domain"
	"design-assistant-backend/internal/task/repository"
	"design-assistant-backend/pkg/chroma"
	"design-assistant-backend/pkg/gemini"
	"design-assistant-backend/pkg/memguard"
	"design-assistant-backend/pkg/monday"
	"design-assistant-backend/pkg/storage"

	"gorm.io/gorm"
)

var (
	ErrTaskNotFound = errors.New("task not found")
	ErrFileNotFound = errors.New("file not found")
)

// Sync acknowledgment statuses returned to the caller immediately; the
// actual outcome is observed via the summary endpoint's sync_status.
const (
	SyncAckQueued         = "queued"
	SyncAckAlreadySyncing = "already_syncing"
)

// MondaySource is the slice of the monday client the pipeline consumes.
type MondaySource interface {
	FetchItemWithAssets(ctx context.Context, accessToken, itemID string) (*monday.Item, error)
	DownloadAssetToTemp(ctx context.Context, asset monday.Asset, accessToken string) (*monday.DownloadedAsset, error)
}

// Extractor is the slice of internal/extract the pipeline consumes.
type Extractor interface {
	ExtractPDF(ctx context.Context, file extract.PDFFile) (string, error)
	ExtractPDFs(ctx context.Context, files []extract.PDFFile) []string
	ExtractImage(ctx context.Context, filename string, data []byte) (string, error)
	ExtractEmail(ctx context.Context, filename, path string) (*extract.EmailExtraction, error)
}

// TokenProvider resolves the decrypted monday access token for an account.
type TokenProvider interface {
	AccessTokenForAccount(accountID string) (string, error)
}

// TxRunner runs a function inside a database transaction. *gorm.DB
// satisfies it directly.
type TxRunner interface {
	Transaction(fc func(tx *gorm.DB) error, opts ...*sql.TxOptions) error
}

// TaskUsecase owns the task surface: sync orchestration, summary/sources
// reads, signed download URLs and retrieval.
type TaskUsecase struct {
	db        TxRunner
	tasks     repository.TaskRepository
	snapshots repository.SnapshotRepository
	files     repository.FileRepository

	source    MondaySource
	extractor Extractor
	tokens    TokenProvider
	store     storage.ObjectStore
	bucket    string
	embedder  Embedder
	index     VectorIndex
	memory    *memguard.Governor

	embedBatchSize int
}

func NewTaskUsecase(
	db TxRunner,
	tasks repository.TaskRepository,
	snapshots repository.SnapshotRepository,
	files repository.FileRepository,
	source MondaySource,
	extractor Extractor,
	tokens TokenProvider,
	store storage.ObjectStore,
	bucket string,
	embedder Embedder,
	index VectorIndex,
	memory *memguard.Governor,
	embedBatchSize int,
) *TaskUsecase {
	return &TaskUsecase{
		db:             db,
		tasks:          tasks,
		snapshots:      snapshots,
		files:          files,
		source:         source,
		extractor:      extractor,
		tokens:         tokens,
		store:          store,
		bucket:         bucket,
		embedder:       embedder,
		index:          index,
		memory:         memory,
		embedBatchSize: embedBatchSize,
	}
}

// SetTokenProvider attaches the token provider after construction. The auth
// usecase both depends on this usecase and provides tokens to it, so the
// provider is wired in a second step.
func (uc *TaskUsecase) SetTokenProvider(tokens TokenProvider) {
	uc.tokens = tokens
}

// RequestSync acknowledges immediately and runs the pipeline in the
// background. A task already mid-flight is rejected, not queued.
func (uc *TaskUsecase) RequestSync(externalTaskKey string, force bool) (string, error) {
	task, err := uc.tasks.FindByKey(externalTaskKey)
	if err != nil {
		return "", err
	}
	if task == nil {
		return "", ErrTaskNotFound
	}

	ok, err := uc.tasks.MarkSyncing(externalTaskKey)
	if err != nil {
		return "", err
	}
	if !ok {
		return SyncAckAlreadySyncing, nil
	}

	go uc.runSync(externalTaskKey, force)
	return SyncAckQueued, nil
}

// TaskSummary is the polling read: sync state plus the latest snapshot's
// derived context.
type TaskSummary struct {
	ExternalTaskKey string            `json:"external_task_key"`
	ItemName        string            `json:"item_name"`
	SyncStatus      domain.SyncStatus `json:"sync_status"`
	SyncStartedAt   *time.Time        `json:"sync_started_at,omitempty"`
	SyncCompletedAt *time.Time        `json:"sync_completed_at,omitempty"`
	SyncError       string            `json:"sync_error,omitempty"`

	SnapshotID      string                `json:"snapshot_id,omitempty"`
	SnapshotVersion string                `json:"snapshot_version,omitempty"`
	SnapshotStatus  domain.SnapshotStatus `json:"snapshot_status,omitempty"`
	TaskContext     json.RawMessage       `json:"task_context,omitempty"`
}

func (uc *TaskUsecase) GetSummary(externalTaskKey string) (*TaskSummary, error) {
	task, err := uc.tasks.FindByKey(externalTaskKey)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, ErrTaskNotFound
	}

	summary := &TaskSummary{
		ExternalTaskKey: task.ExternalTaskKey,
		ItemName:        task.ItemName,
		SyncStatus:      task.SyncStatus,
		SyncStartedAt:   task.SyncStartedAt,
		SyncCompletedAt: task.SyncCompletedAt,
		SyncError:       task.SyncError,
	}

	snapshot, err := uc.snapshots.FindLatest(externalTaskKey)
	if err != nil {
		return nil, err
	}
	if snapshot != nil {
		summary.SnapshotID = snapshot.ID
		summary.SnapshotVersion = snapshot.Version
		summary.SnapshotStatus = snapshot.Status
		if snapshot.TaskContextJSON != "" {
			summary.TaskContext = json.RawMessage(snapshot.TaskContextJSON)
		}
	}
	return summary, nil
}

// GetSources lists the files of the latest snapshot.
func (uc *TaskUsecase) GetSources(externalTaskKey string) ([]*domain.TaskFile, error) {
	task, err := uc.tasks.FindByKey(externalTaskKey)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, ErrTaskNotFound
	}

	snapshot, err := uc.snapshots.FindLatest(externalTaskKey)
	if err != nil {
		return nil, err
	}
	if snapshot == nil {
		return []*domain.TaskFile{}, nil
	}
	return uc.files.FindBySnapshot(snapshot.ID)
}

// FileSignedURL returns a time-limited download URL for one stored file.
func (uc *TaskUsecase) FileSignedURL(externalTaskKey, fileID string, ttl time.Duration) (string, error) {
	file, err := uc.files.FindByID(fileID)
	if err != nil {
		return "", err
	}
	if file == nil || file.ExternalTaskKey != externalTaskKey {
		return "", ErrFileNotFound
	}
	return uc.store.SignedURL(file.ObjectPath, ttl)
}

// GetTaskContext returns the latest snapshot's derived context JSON, for the
// chat tool loop.
func (uc *TaskUsecase) GetTaskContext(externalTaskKey string) (string, error) {
	snapshot, err := uc.snapshots.FindLatest(externalTaskKey)
	if err != nil {
		return "", err
	}
	if snapshot == nil {
		return "", fmt.Errorf("no snapshot for task %s", externalTaskKey)
	}
	return snapshot.TaskContextJSON, nil
}

// SearchTaskDocs embeds the query with the same model, dimensionality and
// normalization as the document side and searches the latest snapshot's
// chunks, most similar first.
func (uc *TaskUsecase) SearchTaskDocs(ctx context.Context, externalTaskKey, query string, k int) ([]chroma.SearchResult, error) {
	snapshot, err := uc.snapshots.FindLatest(externalTaskKey)
	if err != nil {
		return nil, err
	}
	if snapshot == nil {
		return []chroma.SearchResult{}, nil
	}

	vec, err := uc.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	vec = gemini.Normalize(vec)

	if k < 1 {
		k = 5
	}
	return uc.index.Query(ctx, externalTaskKey, snapshot.ID, vec, k)
}

// CreateTaskIfMissing registers a task on first handoff contact.
func (uc *TaskUsecase) CreateTaskIfMissing(externalTaskKey, accountID, boardID, itemID, itemName string) (*domain.Task, error) {
	task, err := uc.tasks.FindByKey(externalTaskKey)
	if err != nil {
		return nil, err
	}
	if task != nil {
		return task, nil
	}

	task = &domain.Task{
		ExternalTaskKey: externalTaskKey,
		AccountID:       accountID,
		BoardID:         boardID,
		ItemID:          itemID,
		ItemName:        itemName,
		SyncStatus:      domain.SyncStatusIdle,
	}
	if err := uc.tasks.Create(task); err != nil {
		return nil, err
	}
	log.Printf("[Task] Registered task %s (item %s)", externalTaskKey, itemID)
	return task, nil
}
