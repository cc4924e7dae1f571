package usecase

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"design-assistant-backend/internal/extract"
	"design-assistant-backend/internal/task/domain"
	"design-assistant-backend/internal/task/repository"
	"design-assistant-backend/pkg/memguard"
	"design-assistant-backend/pkg/monday"
)

type fakeTaskRepo struct {
	mu    sync.Mutex
	tasks map[string]*domain.Task
}

func newFakeTaskRepo() *fakeTaskRepo {
	return &fakeTaskRepo{tasks: map[string]*domain.Task{}}
}

func (r *fakeTaskRepo) Create(task *domain.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *task
	r.tasks[task.ExternalTaskKey] = &clone
	return nil
}

func (r *fakeTaskRepo) FindByKey(key string) (*domain.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	task, ok := r.tasks[key]
	if !ok {
		return nil, nil
	}
	clone := *task
	return &clone, nil
}

func (r *fakeTaskRepo) Update(task *domain.Task) error {
	return r.Create(task)
}

func (r *fakeTaskRepo) MarkSyncing(key string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	task, ok := r.tasks[key]
	if !ok || task.SyncStatus == domain.SyncStatusSyncing {
		return false, nil
	}
	now := time.Now()
	task.SyncStatus = domain.SyncStatusSyncing
	task.SyncStartedAt = &now
	task.SyncError = ""
	return true, nil
}

type fakeSnapshotRepo struct {
	mu        sync.Mutex
	snapshots []*domain.TaskSnapshot
	seq       int
}

func (r *fakeSnapshotRepo) WithTx(*gorm.DB) repository.SnapshotRepository { return r }

func (r *fakeSnapshotRepo) Create(s *domain.TaskSnapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	if s.ID == "" {
		s.ID = fmt.Sprintf("snap-%d", r.seq)
	}
	s.CreatedAt = time.Now()
	clone := *s
	r.snapshots = append(r.snapshots, &clone)
	return nil
}

func (r *fakeSnapshotRepo) FindByID(id string) (*domain.TaskSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.snapshots {
		if s.ID == id {
			clone := *s
			return &clone, nil
		}
	}
	return nil, nil
}

func (r *fakeSnapshotRepo) FindByVersion(key, version string) (*domain.TaskSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.snapshots) - 1; i >= 0; i-- {
		if r.snapshots[i].ExternalTaskKey == key && r.snapshots[i].Version == version {
			clone := *r.snapshots[i]
			return &clone, nil
		}
	}
	return nil, nil
}

func (r *fakeSnapshotRepo) FindLatest(key string) (*domain.TaskSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.snapshots) - 1; i >= 0; i-- {
		if r.snapshots[i].ExternalTaskKey == key {
			clone := *r.snapshots[i]
			return &clone, nil
		}
	}
	return nil, nil
}

func (r *fakeSnapshotRepo) Update(s *domain.TaskSnapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, existing := range r.snapshots {
		if existing.ID == s.ID {
			clone := *s
			r.snapshots[i] = &clone
			return nil
		}
	}
	return errors.New("snapshot not found")
}

type fakeFileRepo struct {
	mu    sync.Mutex
	files map[string]*domain.TaskFile
	seq   int
}

func newFakeFileRepo() *fakeFileRepo {
	return &fakeFileRepo{files: map[string]*domain.TaskFile{}}
}

func (r *fakeFileRepo) WithTx(*gorm.DB) repository.FileRepository { return r }

func (r *fakeFileRepo) Upsert(f *domain.TaskFile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := f.ExternalTaskKey + "|" + f.SnapshotID + "|" + f.MondayAssetID
	if existing, ok := r.files[key]; ok {
		f.ID = existing.ID
	} else if f.ID == "" {
		r.seq++
		f.ID = fmt.Sprintf("file-%d", r.seq)
	}
	clone := *f
	r.files[key] = &clone
	return nil
}

func (r *fakeFileRepo) FindByID(id string) (*domain.TaskFile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, f := range r.files {
		if f.ID == id {
			clone := *f
			return &clone, nil
		}
	}
	return nil, nil
}

func (r *fakeFileRepo) FindBySnapshot(snapshotID string) ([]*domain.TaskFile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.TaskFile
	for _, f := range r.files {
		if f.SnapshotID == snapshotID {
			clone := *f
			out = append(out, &clone)
		}
	}
	return out, nil
}

type fakeTxRunner struct{}

func (fakeTxRunner) Transaction(fc func(tx *gorm.DB) error, _ ...*sql.TxOptions) error {
	return fc(nil)
}

type fakeMondaySource struct {
	item         *monday.Item
	contents     map[string][]byte
	fetchErr     error
	downloadErrs map[string]error

	mu      sync.Mutex
	created []string
}

func (s *fakeMondaySource) FetchItemWithAssets(_ context.Context, _, _ string) (*monday.Item, error) {
	if s.fetchErr != nil {
		return nil, s.fetchErr
	}
	return s.item, nil
}

func (s *fakeMondaySource) DownloadAssetToTemp(_ context.Context, asset monday.Asset, _ string) (*monday.DownloadedAsset, error) {
	if err := s.downloadErrs[asset.ID]; err != nil {
		return nil, err
	}
	content, ok := s.contents[asset.ID]
	if !ok {
		content = []byte("binary-" + asset.ID)
	}
	tmp, err := os.CreateTemp("", "fake-asset-*")
	if err != nil {
		return nil, err
	}
	tmp.Write(content)
	tmp.Close()
	s.mu.Lock()
	s.created = append(s.created, tmp.Name())
	s.mu.Unlock()

	size := asset.FileSize
	if size == 0 {
		size = int64(len(content))
	}
	return &monday.DownloadedAsset{
		TempPath:    tmp.Name(),
		ContentType: "application/octet-stream",
		SHA256:      "sha-" + asset.ID,
		SizeBytes:   size,
	}, nil
}

type fakeExtractor struct {
	pdfText string
}

func (e *fakeExtractor) ExtractPDF(_ context.Context, f extract.PDFFile) (string, error) {
	return e.pdfText, nil
}

func (e *fakeExtractor) ExtractPDFs(_ context.Context, files []extract.PDFFile) []string {
	out := make([]string, len(files))
	for i := range files {
		out[i] = fmt.Sprintf("%s [doc %d]", e.pdfText, i+1)
	}
	return out
}

func (e *fakeExtractor) ExtractImage(_ context.Context, filename string, _ []byte) (string, error) {
	return "description of " + filename, nil
}

func (e *fakeExtractor) ExtractEmail(_ context.Context, filename, _ string) (*extract.EmailExtraction, error) {
	return &extract.EmailExtraction{
		Parsed:   &extract.ParsedEmail{},
		Sections: []extract.Section{{Label: "body", Text: "email body of " + filename}},
	}, nil
}

type fakeStore struct {
	mu        sync.Mutex
	uploads   map[string][]byte
	uploadErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{uploads: map[string][]byte{}}
}

func (s *fakeStore) Upload(_ context.Context, path string, r io.Reader, _ string) error {
	if s.uploadErr != nil {
		return s.uploadErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploads[path] = data
	return nil
}

func (s *fakeStore) SignedURL(path string, _ time.Duration) (string, error) {
	return "https://signed.example/" + path, nil
}

type fakeTokens struct{}

func (fakeTokens) AccessTokenForAccount(string) (string, error) { return "token", nil }

type fixture struct {
	uc        *TaskUsecase
	tasks     *fakeTaskRepo
	snapshots *fakeSnapshotRepo
	files     *fakeFileRepo
	source    *fakeMondaySource
	store     *fakeStore
	embedder  *fakeEmbedder
	index     *fakeIndex
}

func newFixture(t *testing.T, item *monday.Item, probe memguard.Probe) *fixture {
	t.Helper()
	if probe == nil {
		probe = func() (uint64, error) { return 0, nil }
	}

	f := &fixture{
		tasks:     newFakeTaskRepo(),
		snapshots: &fakeSnapshotRepo{},
		files:     newFakeFileRepo(),
		source:    &fakeMondaySource{item: item, contents: map[string][]byte{}},
		store:     newFakeStore(),
		embedder:  &fakeEmbedder{},
		index:     &fakeIndex{},
	}
	f.uc = NewTaskUsecase(
		fakeTxRunner{}, f.tasks, f.snapshots, f.files,
		f.source, &fakeExtractor{pdfText: strings.Repeat("extracted pdf text ", 27)}, // ~500 chars
		fakeTokens{}, f.store, "test-bucket",
		f.embedder, f.index,
		memguard.NewGovernor(2000, 3200, probe),
		16,
	)

	f.tasks.Create(&domain.Task{
		ExternalTaskKey: "task-1",
		AccountID:       "acct-1",
		BoardID:         "board-1",
		ItemID:          "item-1",
		SyncStatus:      domain.SyncStatusIdle,
	})
	return f
}

func testItem() *monday.Item {
	return &monday.Item{
		ID:        "item-1",
		Name:      "Kitchen design",
		UpdatedAt: "2026-03-01T10:00:00Z",
		Assets: []monday.Asset{
			{ID: "10", Name: "plan.pdf"},
			{ID: "11", Name: "photo.jpg", FileSize: 30 * 1024 * 1024}, // over the image cap
		},
		ColumnValues: []monday.ColumnValue{
			{Column: monday.Column{Title: "Status"}, Type: "status", Text: "In Progress"},
			{Column: monday.Column{Title: "Project Name"}, Type: "text", Text: "Kitchen"},
			{Column: monday.Column{Title: "Internal Notes"}, Type: "text", Text: "not allow-listed"},
		},
	}
}

func filesByAsset(t *testing.T, f *fixture, snapshotID string) map[string]*domain.TaskFile {
	t.Helper()
	files, err := f.files.FindBySnapshot(snapshotID)
	require.NoError(t, err)
	out := map[string]*domain.TaskFile{}
	for _, file := range files {
		out[file.MondayAssetID] = file
	}
	return out
}

func TestRunSyncEndToEnd(t *testing.T) {
	f := newFixture(t, testItem(), nil)

	f.uc.runSync("task-1", false)

	task, err := f.tasks.FindByKey("task-1")
	require.NoError(t, err)
	assert.Equal(t, domain.SyncStatusCompleted, task.SyncStatus)
	assert.NotEmpty(t, task.LatestSnapshotVersion)
	assert.Empty(t, task.SyncError)

	snapshot, err := f.snapshots.FindLatest("task-1")
	require.NoError(t, err)
	require.NotNil(t, snapshot)
	assert.Equal(t, domain.SnapshotStatusDone, snapshot.Status)
	assert.Equal(t, task.LatestSnapshotVersion, snapshot.Version)
	assert.Contains(t, snapshot.TaskContextJSON, "document_counts")

	files := filesByAsset(t, f, snapshot.ID)
	require.Len(t, files, 3) // pdf + image + column doc

	pdf := files["10"]
	require.NotNil(t, pdf)
	assert.Equal(t, domain.FileKind(extract.KindPDF), pdf.Kind)

	var pdfChunks, imageChunks, columnChunks int
	for _, chunk := range f.index.added {
		switch chunk.FileID {
		case pdf.ID:
			pdfChunks++
			assert.Contains(t, chunk.Section, "chunk:")
		case files["11"].ID:
			imageChunks++
			assert.Equal(t, "placeholder", chunk.Section)
			assert.Contains(t, chunk.Text, "size limit")
		case files[columnDocAssetID].ID:
			columnChunks++
			assert.Contains(t, chunk.Text, "Column: Status | Value: In Progress")
			assert.NotContains(t, chunk.Text, "Internal Notes")
		}
	}
	assert.GreaterOrEqual(t, pdfChunks, 1)
	assert.Contains(t, f.index.added[0].ID, ":", "chunk ids are file-scoped")
	assert.Equal(t, 1, imageChunks, "oversized image degrades to a single placeholder chunk")
	assert.Equal(t, 1, columnChunks)

	image := files["11"]
	assert.Contains(t, image.ExtractionNote, "size limit")
	assert.NotEmpty(t, image.ObjectPath, "oversized files are still ingested and stored")
	assert.Contains(t, f.store.uploads, image.ObjectPath)
}

func TestRunSyncUnchangedShortCircuit(t *testing.T) {
	f := newFixture(t, testItem(), nil)

	f.uc.runSync("task-1", false)
	firstCount := len(f.snapshots.snapshots)
	firstChunks := len(f.index.added)

	f.uc.runSync("task-1", false)

	assert.Len(t, f.snapshots.snapshots, firstCount, "identical fingerprint re-run is a no-op")
	assert.Len(t, f.index.added, firstChunks)

	task, _ := f.tasks.FindByKey("task-1")
	assert.Equal(t, domain.SyncStatusCompleted, task.SyncStatus)
}

func TestRunSyncForceReingests(t *testing.T) {
	f := newFixture(t, testItem(), nil)

	f.uc.runSync("task-1", false)
	firstChunks := len(f.index.added)
	snapshot, _ := f.snapshots.FindLatest("task-1")
	require.NotNil(t, snapshot)
	firstFiles := filesByAsset(t, f, snapshot.ID)

	f.uc.runSync("task-1", true)

	assert.Len(t, f.snapshots.snapshots, 1, "a forced re-run of the same fingerprint reuses the snapshot row")
	assert.Greater(t, len(f.index.added), firstChunks, "force bypasses the short-circuit and re-embeds every chunk")

	secondFiles := filesByAsset(t, f, snapshot.ID)
	require.NotNil(t, secondFiles["10"])
	assert.Equal(t, firstFiles["10"].ID, secondFiles["10"].ID, "file ids survive a forced re-sync")
}

func TestRunSyncChangedItemProducesNewSnapshot(t *testing.T) {
	f := newFixture(t, testItem(), nil)

	f.uc.runSync("task-1", false)
	f.source.item.UpdatedAt = "2026-03-02T08:00:00Z"
	f.uc.runSync("task-1", false)

	assert.Len(t, f.snapshots.snapshots, 2)
}

func TestRunSyncHardMemoryPressureCommitsPartial(t *testing.T) {
	var checks int
	probe := func() (uint64, error) {
		checks++
		if checks == 1 {
			return 0, nil
		}
		return 4000 * 1024 * 1024, nil
	}
	f := newFixture(t, testItem(), probe)

	f.uc.runSync("task-1", false)

	snapshot, _ := f.snapshots.FindLatest("task-1")
	require.NotNil(t, snapshot)
	assert.Equal(t, domain.SnapshotStatusAbortedPartial, snapshot.Status)

	files := filesByAsset(t, f, snapshot.ID)
	assert.Contains(t, files, "10", "work before the abort is kept")
	assert.NotContains(t, files, "11", "remaining assets are abandoned")

	task, _ := f.tasks.FindByKey("task-1")
	assert.Equal(t, domain.SyncStatusCompleted, task.SyncStatus, "partial commit is not a failure")
}

func TestRunSyncSoftMemoryPressureSkipsExtraction(t *testing.T) {
	probe := func() (uint64, error) { return 2500 * 1024 * 1024, nil }
	f := newFixture(t, testItem(), probe)

	f.uc.runSync("task-1", false)

	snapshot, _ := f.snapshots.FindLatest("task-1")
	require.NotNil(t, snapshot)
	assert.Equal(t, domain.SnapshotStatusDone, snapshot.Status)

	files := filesByAsset(t, f, snapshot.ID)
	pdf := files["10"]
	require.NotNil(t, pdf)
	assert.Contains(t, pdf.ExtractionNote, "memory pressure")

	for _, chunk := range f.index.added {
		if chunk.FileID == pdf.ID {
			assert.Equal(t, "placeholder", chunk.Section)
		}
	}
}

func TestRunSyncDuplicatePDFNamesKeepDistinctText(t *testing.T) {
	// Two attachments can share a filename; each file's chunks must carry
	// its own document's text, not whichever won a name-keyed lookup.
	item := &monday.Item{
		ID:        "item-1",
		Name:      "Kitchen design",
		UpdatedAt: "2026-03-01T10:00:00Z",
		Assets: []monday.Asset{
			{ID: "20", Name: "scan.pdf"},
			{ID: "21", Name: "scan.pdf"},
		},
	}
	f := newFixture(t, item, nil)

	f.uc.runSync("task-1", false)

	snapshot, _ := f.snapshots.FindLatest("task-1")
	require.NotNil(t, snapshot)
	files := filesByAsset(t, f, snapshot.ID)
	require.NotNil(t, files["20"])
	require.NotNil(t, files["21"])

	textByFile := map[string]string{}
	for _, chunk := range f.index.added {
		textByFile[chunk.FileID] += chunk.Text
	}
	assert.Contains(t, textByFile[files["20"].ID], "[doc 1]")
	assert.Contains(t, textByFile[files["21"].ID], "[doc 2]")

	for _, path := range f.source.created {
		_, err := os.Stat(path)
		assert.True(t, os.IsNotExist(err), "scratch file %s survived the run", path)
	}
}

func TestRunSyncRemovesPDFScratchFiles(t *testing.T) {
	// Four PDFs exceed the combined-call limit, so each goes through the
	// single-file pass; every scratch file must be gone afterwards.
	item := &monday.Item{
		ID:        "item-1",
		Name:      "Kitchen design",
		UpdatedAt: "2026-03-01T10:00:00Z",
		Assets: []monday.Asset{
			{ID: "30", Name: "a.pdf"},
			{ID: "31", Name: "b.pdf"},
			{ID: "32", Name: "c.pdf"},
			{ID: "33", Name: "d.pdf"},
		},
	}
	f := newFixture(t, item, nil)

	f.uc.runSync("task-1", false)

	task, _ := f.tasks.FindByKey("task-1")
	require.Equal(t, domain.SyncStatusCompleted, task.SyncStatus)
	require.Len(t, f.source.created, 4)
	for _, path := range f.source.created {
		_, err := os.Stat(path)
		assert.True(t, os.IsNotExist(err), "scratch file %s survived the run", path)
	}
}

func TestRunSyncDownloadFailureDegradesToPlaceholder(t *testing.T) {
	f := newFixture(t, testItem(), nil)
	f.source.downloadErrs = map[string]error{"10": errors.New("asset url expired")}

	f.uc.runSync("task-1", false)

	task, _ := f.tasks.FindByKey("task-1")
	assert.Equal(t, domain.SyncStatusCompleted, task.SyncStatus, "a failed download degrades the file, not the run")

	snapshot, _ := f.snapshots.FindLatest("task-1")
	require.NotNil(t, snapshot)
	files := filesByAsset(t, f, snapshot.ID)
	pdf := files["10"]
	require.NotNil(t, pdf)
	assert.Contains(t, pdf.ExtractionNote, "download failed")
	assert.Contains(t, pdf.ExtractionNote, "asset url expired")

	var placeholders int
	for _, chunk := range f.index.added {
		if chunk.FileID == pdf.ID {
			placeholders++
			assert.Equal(t, "placeholder", chunk.Section)
			assert.Contains(t, chunk.Text, "download failed")
		}
	}
	assert.Equal(t, 1, placeholders, "degraded file stays visible to retrieval")

	assert.Contains(t, snapshot.TaskContextJSON, `"pdf":1`, "failed downloads still count toward kind totals")
}

func TestRunSyncStorageFailureIsFatal(t *testing.T) {
	f := newFixture(t, testItem(), nil)
	f.store.uploadErr = errors.New("bucket unavailable")

	f.uc.runSync("task-1", false)

	task, _ := f.tasks.FindByKey("task-1")
	assert.Equal(t, domain.SyncStatusFailed, task.SyncStatus)
	assert.Contains(t, task.SyncError, "bucket unavailable")
	assert.Empty(t, task.LatestSnapshotVersion)
}

func TestRunSyncFetchFailureMarksFailed(t *testing.T) {
	f := newFixture(t, testItem(), nil)
	f.source.fetchErr = monday.ErrItemNotFound

	f.uc.runSync("task-1", false)

	task, _ := f.tasks.FindByKey("task-1")
	assert.Equal(t, domain.SyncStatusFailed, task.SyncStatus)
	assert.Contains(t, task.SyncError, "not found")
}

func TestRequestSync(t *testing.T) {
	f := newFixture(t, testItem(), nil)

	_, err := f.uc.RequestSync("missing", false)
	assert.ErrorIs(t, err, ErrTaskNotFound)

	ack, err := f.uc.RequestSync("task-1", false)
	require.NoError(t, err)
	assert.Equal(t, SyncAckQueued, ack)

	// The task flips to syncing synchronously, so a concurrent request is
	// rejected rather than queued.
	ack2, err := f.uc.RequestSync("task-1", false)
	require.NoError(t, err)
	assert.Equal(t, SyncAckAlreadySyncing, ack2)

	require.Eventually(t, func() bool {
		task, _ := f.tasks.FindByKey("task-1")
		return task.SyncStatus == domain.SyncStatusCompleted
	}, 2*time.Second, 10*time.Millisecond)
}

func TestCollectAssetJobsDedupFirstSeenKindWins(t *testing.T) {
	item := &monday.Item{
		Assets: []monday.Asset{
			{ID: "7", Name: "spec.pdf"},
			{ID: "8", Name: "photo.png"},
		},
		Updates: []monday.Update{
			{ID: "u1", Assets: []monday.Asset{
				{ID: "7", Name: "spec.pdf"}, // same asset referenced again
				{ID: "9", Name: "note.txt"},
			}},
		},
	}

	jobs := collectAssetJobs(item)
	require.Len(t, jobs, 3)
	assert.Equal(t, "7", jobs[0].asset.ID)
	assert.Equal(t, extract.KindPDF, jobs[0].kind, "primary-pass kind wins over update_attachment")
	assert.Equal(t, extract.KindImage, jobs[1].kind)
	assert.Equal(t, "9", jobs[2].asset.ID)
	assert.Equal(t, extract.KindUpdateAttachment, jobs[2].kind)
}

func TestFileColumnKinds(t *testing.T) {
	columns := []monday.ColumnValue{
		{
			Column: monday.Column{Title: "Email"},
			Type:   "file",
			Value:  `{"files":[{"assetId":123},{"assetId":456}]}`,
		},
		{
			Column: monday.Column{Title: "AI Data"},
			Type:   "file",
			Value:  `{"files":[{"assetId":789}]}`,
		},
		{Column: monday.Column{Title: "Status"}, Type: "status", Text: "Done"},
	}

	kinds := fileColumnKinds(columns)
	assert.Equal(t, extract.KindEmail, kinds["123"])
	assert.Equal(t, extract.KindEmail, kinds["456"])
	assert.Equal(t, extract.KindCSV, kinds["789"])
	assert.Len(t, kinds, 3)
}

func TestColumnDocLinesFollowsAllowListOrder(t *testing.T) {
	columns := []monday.ColumnValue{
		{Column: monday.Column{Title: "Project Name"}, Text: "Kitchen"},
		{Column: monday.Column{Title: "Priority"}, Text: "High"},
		{Column: monday.Column{Title: "Secret"}, Text: "hidden"},
		{Column: monday.Column{Title: "Status"}, DisplayValue: "In Progress"}, // display_value fallback
		{Column: monday.Column{Title: "Designer"}, Text: ""},                  // empty skipped
	}

	lines := columnDocLines(columns)
	require.Len(t, lines, 3)
	assert.Equal(t, "Column: Priority | Value: High", lines[0])
	assert.Equal(t, "Column: Status | Value: In Progress", lines[1])
	assert.Equal(t, "Column: Project Name | Value: Kitchen", lines[2])
}

func TestTruncateError(t *testing.T) {
	short := errors.New("boom")
	assert.Equal(t, "boom", truncateError(short))

	long := errors.New(strings.Repeat("x", 1000))
	assert.Len(t, truncateError(long), maxSyncErrorLen)
}
