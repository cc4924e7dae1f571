package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"design-assistant-backend/internal/extract"
	"design-assistant-backend/internal/task/domain"
	"design-assistant-backend/internal/task/repository"
	"design-assistant-backend/pkg/chroma"
	"design-assistant-backend/pkg/chunk"
	"design-assistant-backend/pkg/memguard"
	"design-assistant-backend/pkg/monday"
	"design-assistant-backend/pkg/storage"

	"gorm.io/gorm"
)

// Per-kind extraction size ceilings. Oversized inputs are still ingested and
// stored; only extraction is skipped, with a placeholder chunk noting why.
const (
	maxPDFBytes     = 50 * 1024 * 1024
	maxImageBytes   = 20 * 1024 * 1024
	maxEmailBytes   = 25 * 1024 * 1024
	maxCSVBytes     = 10 * 1024 * 1024
	maxDefaultBytes = 50 * 1024 * 1024

	maxSyncErrorLen = 500

	columnDocFilename = "monday_columns.txt"
	columnDocAssetID  = "derived:monday_columns"
)

// columnAllowList is the fixed set of column titles rendered into the
// derived column document, in this order.
var columnAllowList = []string{
	"Priority", "Designer", "Time tracking", "Status", "Date Received",
	"Hour Received", "New Enq / Amend", "TP Ref", "Project Name", "Zip Code",
	"Date Completed", "Hour Completed", "Turn Around (Hours)", "Date Sort",
}

type assetJob struct {
	asset monday.Asset
	kind  extract.Kind
}

// collectAssetJobs walks primary assets (in listing order) then per-update
// assets, de-duplicated by asset id with the first-seen kind winning.
func collectAssetJobs(item *monday.Item) []assetJob {
	kindByAsset := fileColumnKinds(item.ColumnValues)

	seen := map[string]bool{}
	var jobs []assetJob

	for _, asset := range item.Assets {
		if seen[asset.ID] {
			continue
		}
		seen[asset.ID] = true
		kind, ok := kindByAsset[asset.ID]
		if !ok {
			kind = extract.KindForExtension(asset.Name)
		}
		jobs = append(jobs, assetJob{asset: asset, kind: kind})
	}

	for _, update := range item.Updates {
		for _, asset := range update.Assets {
			if seen[asset.ID] {
				continue
			}
			seen[asset.ID] = true
			jobs = append(jobs, assetJob{asset: asset, kind: extract.KindUpdateAttachment})
		}
	}
	return jobs
}

// fileColumnKinds maps asset ids to kinds via the file-type columns that
// reference them.
func fileColumnKinds(columns []monday.ColumnValue) map[string]extract.Kind {
	kinds := map[string]extract.Kind{}
	for _, col := range columns {
		if col.Type != "file" || col.Value == "" {
			continue
		}
		var payload struct {
			Files []struct {
				AssetID json.Number `json:"assetId"`
			} `json:"files"`
		}
		if err := json.Unmarshal([]byte(col.Value), &payload); err != nil {
			continue
		}
		kind := extract.KindFromColumnTitle(col.Column.Title)
		for _, f := range payload.Files {
			if id := f.AssetID.String(); id != "" {
				kinds[id] = kind
			}
		}
	}
	return kinds
}

// allAssetIDs gathers every asset id the item references, including nested
// update assets, for the version fingerprint.
func allAssetIDs(item *monday.Item) []string {
	var ids []string
	for _, a := range item.Assets {
		ids = append(ids, a.ID)
	}
	for _, u := range item.Updates {
		for _, a := range u.Assets {
			ids = append(ids, a.ID)
		}
	}
	return ids
}

// syncRun is the mutable state of one pipeline run, scoped to one
// transaction.
type syncRun struct {
	task     *domain.Task
	token    string
	item     *monday.Item
	snapshot *domain.TaskSnapshot

	files   repository.FileRepository
	batcher *EmbedBatcher

	chunkSeq  map[string]int
	kindCount map[string]int
	csvParams map[string][]extract.CSVParameter

	// pendingPDFs defers PDF inference so a qualifying set goes through one
	// combined call (or parallel fan-out) after the download loop.
	pendingPDFs []pendingPDF

	aborted bool
}

// pendingPDF keeps the scratch file path, not the bytes, so deferred PDFs
// don't pin every download in memory until the extraction pass reads them.
type pendingPDF struct {
	file     *domain.TaskFile
	tempPath string
	size     int64
}

func (r *syncRun) nextChunkID(fileID string) string {
	r.chunkSeq[fileID]++
	return fmt.Sprintf("%s:%d", fileID, r.chunkSeq[fileID])
}

// runSync executes the full pipeline for one task in the background. All
// database writes of the run are staged in one transaction; a fatal failure
// rolls the whole run back and marks the task failed, while a hard memory
// abort commits the partial snapshot with a distinct status.
func (uc *TaskUsecase) runSync(externalTaskKey string, force bool) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[Sync] Panic in pipeline for %s: %v", externalTaskKey, r)
			uc.markSyncFailed(externalTaskKey, fmt.Errorf("panic: %v", r))
		}
	}()

	ctx := context.Background()

	task, err := uc.tasks.FindByKey(externalTaskKey)
	if err != nil || task == nil {
		log.Printf("[Sync] Task %s disappeared before run: %v", externalTaskKey, err)
		return
	}

	token, err := uc.tokens.AccessTokenForAccount(task.AccountID)
	if err != nil {
		uc.markSyncFailed(externalTaskKey, fmt.Errorf("no usable access token: %w", err))
		return
	}

	// FETCHING
	log.Printf("[Sync] Fetching item %s for task %s", task.ItemID, externalTaskKey)
	item, err := uc.source.FetchItemWithAssets(ctx, token, task.ItemID)
	if err != nil {
		uc.markSyncFailed(externalTaskKey, err)
		return
	}

	// VERSIONING
	version := Fingerprint(item.UpdatedAt, allAssetIDs(item))
	if !force && task.LatestSnapshotVersion == version {
		if existing, err := uc.snapshots.FindByVersion(externalTaskKey, version); err == nil && existing != nil {
			log.Printf("[Sync] Task %s unchanged (version %.12s), skipping", externalTaskKey, version)
			uc.markSyncCompleted(externalTaskKey, version, item.Name)
			return
		}
	}

	jobs := collectAssetJobs(item)
	log.Printf("[Sync] Ingesting %d assets for task %s (version %.12s)", len(jobs), externalTaskKey, version)

	var run *syncRun
	err = uc.db.Transaction(func(tx *gorm.DB) error {
		run = &syncRun{
			task:      task,
			token:     token,
			item:      item,
			files:     uc.files.WithTx(tx),
			batcher:   NewEmbedBatcher(uc.embedder, uc.index, uc.embedBatchSize),
			chunkSeq:  map[string]int{},
			kindCount: map[string]int{},
			csvParams: map[string][]extract.CSVParameter{},
		}

		// A forced re-run of a known fingerprint reuses the snapshot row, so
		// file rows upsert on the same (task, snapshot, asset) triple and
		// chunk id prefixes stay stable across re-syncs.
		snapshots := uc.snapshots.WithTx(tx)
		existing, err := snapshots.FindByVersion(externalTaskKey, version)
		if err != nil {
			return fmt.Errorf("failed to look up snapshot: %w", err)
		}
		if existing != nil {
			existing.Status = domain.SnapshotStatusDone
			run.snapshot = existing
		} else {
			run.snapshot = &domain.TaskSnapshot{
				ExternalTaskKey: externalTaskKey,
				Version:         version,
				Status:          domain.SnapshotStatusDone,
			}
			if err := snapshots.Create(run.snapshot); err != nil {
				return fmt.Errorf("failed to create snapshot: %w", err)
			}
		}

		// INGESTING
		if err := uc.ingestAssets(ctx, run, jobs); err != nil {
			return err
		}

		// COLUMN-DOC
		if !run.aborted {
			if err := uc.ingestColumnDocument(ctx, run); err != nil {
				return err
			}
		}

		// EMBEDDING-FLUSH
		run.batcher.Flush(ctx)

		if run.aborted {
			run.snapshot.Status = domain.SnapshotStatusAbortedPartial
		}
		run.snapshot.TaskContextJSON = uc.buildTaskContext(run)
		return snapshots.Update(run.snapshot)
	})
	if err != nil {
		log.Printf("[Sync] Pipeline failed for %s: %v", externalTaskKey, err)
		uc.markSyncFailed(externalTaskKey, err)
		return
	}

	// COMMITTED
	uc.markSyncCompleted(externalTaskKey, version, item.Name)
	log.Printf("[Sync] Task %s committed snapshot %s (%d chunks stored, %d dropped)",
		externalTaskKey, run.snapshot.ID, run.batcher.Stored(), run.batcher.Dropped())
}

// ingestAssets processes every asset job in order, checking the memory
// governor between assets. Soft pressure skips extraction for the current
// asset; hard pressure stops the loop and marks the run partial.
func (uc *TaskUsecase) ingestAssets(ctx context.Context, run *syncRun, jobs []assetJob) error {
	for _, job := range jobs {
		guarded := false
		switch uc.memory.Check() {
		case memguard.LevelHard:
			log.Printf("[Sync] Hard memory pressure, aborting remaining %s assets", run.task.ExternalTaskKey)
			run.aborted = true
			// Deferred PDFs are abandoned unextracted: release their scratch
			// files and leave a placeholder each.
			for _, p := range run.pendingPDFs {
				os.Remove(p.tempPath)
				run.enqueuePlaceholder(ctx, p.file, fmt.Sprintf("[%s: extraction skipped: memory pressure]", p.file.Filename))
			}
			run.pendingPDFs = nil
			return nil
		case memguard.LevelSoft:
			log.Printf("[Sync] Soft memory pressure, skipping extraction for asset %s", job.asset.ID)
			uc.memory.Reclaim()
			guarded = true
		}

		if err := uc.ingestAsset(ctx, run, job, guarded); err != nil {
			return err
		}
	}

	return uc.extractPendingPDFs(ctx, run)
}

// ingestAsset downloads, stores and records one asset, then dispatches
// extraction. Extraction failures degrade to placeholders; only storage and
// database failures are fatal to the run.
func (uc *TaskUsecase) ingestAsset(ctx context.Context, run *syncRun, job assetJob, guarded bool) error {
	download, err := uc.source.DownloadAssetToTemp(ctx, job.asset, run.token)
	if err != nil {
		log.Printf("[Sync] Download failed for asset %s (%s): %v", job.asset.ID, job.asset.Name, err)
		file := run.newFile(job, "", 0, "", "download failed: "+err.Error())
		if err := run.files.Upsert(file); err != nil {
			return fmt.Errorf("failed to upsert file for asset %s: %w", job.asset.ID, err)
		}
		// A failed download still counts toward the kind totals and leaves a
		// placeholder chunk, same as any other degraded file.
		run.kindCount[string(file.Kind)]++
		run.enqueuePlaceholder(ctx, file, fmt.Sprintf("[%s: %s]", file.Filename, file.ExtractionNote))
		return nil
	}
	// PDFs defer extraction past this function, so their scratch files must
	// outlive it; everything else is cleaned up here.
	keepScratch := false
	defer func() {
		if !keepScratch {
			download.Cleanup()
		}
	}()

	filename := storage.SanitizeFilename(job.asset.Name)
	objectPath := storage.BuildObjectPath(
		run.task.AccountID, run.task.BoardID, run.task.ItemID,
		run.snapshot.Version, job.asset.ID, filename,
	)

	src, err := os.Open(download.TempPath)
	if err != nil {
		return fmt.Errorf("failed to reopen download for asset %s: %w", job.asset.ID, err)
	}
	uploadErr := uc.store.Upload(ctx, objectPath, src, download.ContentType)
	src.Close()
	if uploadErr != nil {
		// Object storage failure is fatal: a File row without its bytes is
		// worse than a rolled-back run.
		return fmt.Errorf("failed to upload asset %s: %w", job.asset.ID, uploadErr)
	}

	file := run.newFile(job, objectPath, download.SizeBytes, download.SHA256, "")
	file.MIMEType = download.ContentType
	file.Bucket = uc.bucket

	route := extractionRoute(job.kind, job.asset.Name)

	switch {
	case guarded:
		file.ExtractionNote = "extraction skipped: memory pressure"
	case download.SizeBytes > sizeLimitFor(route):
		file.ExtractionNote = fmt.Sprintf("extraction skipped: %d bytes exceeds the %s size limit", download.SizeBytes, route)
	}

	if err := run.files.Upsert(file); err != nil {
		return fmt.Errorf("failed to upsert file for asset %s: %w", job.asset.ID, err)
	}
	run.kindCount[string(file.Kind)]++

	if file.ExtractionNote != "" {
		run.enqueuePlaceholder(ctx, file, fmt.Sprintf("[%s: %s]", file.Filename, file.ExtractionNote))
		return nil
	}

	switch route {
	case extract.KindEmail:
		return uc.extractEmailAsset(ctx, run, file, download.TempPath)
	case extract.KindPDF:
		keepScratch = true
		run.pendingPDFs = append(run.pendingPDFs, pendingPDF{file: file, tempPath: download.TempPath, size: download.SizeBytes})
	case extract.KindImage:
		data, err := os.ReadFile(download.TempPath)
		if err != nil {
			run.enqueuePlaceholder(ctx, file, fmt.Sprintf("Error processing %s: %v", file.Filename, err))
			return nil
		}
		text, err := uc.extractor.ExtractImage(ctx, file.Filename, data)
		if err != nil {
			log.Printf("[Sync] Image extraction degraded for %s: %v", file.Filename, err)
			text = fmt.Sprintf("Error processing %s: %v", file.Filename, err)
		}
		run.enqueueText(ctx, file, text, labelOffsets)
	case extract.KindCSV:
		data, err := os.ReadFile(download.TempPath)
		if err != nil {
			run.enqueuePlaceholder(ctx, file, fmt.Sprintf("Error processing %s: %v", file.Filename, err))
			return nil
		}
		result, err := extract.ParseCSV(data)
		if err != nil {
			log.Printf("[Sync] CSV parse degraded for %s: %v", file.Filename, err)
			run.enqueuePlaceholder(ctx, file, fmt.Sprintf("Error processing %s: %v", file.Filename, err))
			return nil
		}
		if result.IsKeyValue() {
			run.csvParams[file.Filename] = result.Parameters
		}
		run.enqueueText(ctx, file, result.Text(), labelOffsets)
	default:
		run.enqueuePlaceholder(ctx, file,
			fmt.Sprintf("[Attachment %s (%s): content not extracted]", file.Filename, file.MIMEType))
	}
	return nil
}

// extractionRoute picks the extractor for an asset. The File keeps its
// mapped kind tag; routing goes by extension so update attachments and
// custom column kinds still reach the right extractor.
func extractionRoute(kind extract.Kind, filename string) extract.Kind {
	switch kind {
	case extract.KindEmail, extract.KindPDF, extract.KindImage, extract.KindCSV:
		return kind
	}
	return extract.KindForExtension(filename)
}

func sizeLimitFor(route extract.Kind) int64 {
	switch route {
	case extract.KindPDF:
		return maxPDFBytes
	case extract.KindImage:
		return maxImageBytes
	case extract.KindEmail:
		return maxEmailBytes
	case extract.KindCSV:
		return maxCSVBytes
	}
	return maxDefaultBytes
}

// extractEmailAsset chunks the email body sections and ingests each
// attachment as a derived file with its own chunks.
func (uc *TaskUsecase) extractEmailAsset(ctx context.Context, run *syncRun, file *domain.TaskFile, tempPath string) error {
	extraction, err := uc.extractor.ExtractEmail(ctx, file.Filename, tempPath)
	if err != nil {
		log.Printf("[Sync] Email extraction degraded for %s: %v", file.Filename, err)
		run.enqueuePlaceholder(ctx, file, fmt.Sprintf("Error processing %s: %v", file.Filename, err))
		return nil
	}
	defer extraction.Parsed.Cleanup()

	run.enqueueSections(ctx, file, extraction.Sections)

	for _, att := range extraction.Attachments {
		if err := uc.ingestDerivedAttachment(ctx, run, file, att); err != nil {
			return err
		}
	}
	return nil
}

// ingestDerivedAttachment stores one email attachment as its own File with a
// deterministic derived asset id, then chunks its extracted text.
func (uc *TaskUsecase) ingestDerivedAttachment(ctx context.Context, run *syncRun, parent *domain.TaskFile, att extract.AttachmentResult) error {
	sha, size := "", att.Size
	if att.TempPath != "" {
		d, err := fileDigest(att.TempPath)
		if err != nil {
			log.Printf("[Sync] Skipping derived attachment %s: %v", att.Filename, err)
			return nil
		}
		sha = d
	}

	shortSHA := sha
	if len(shortSHA) > 12 {
		shortSHA = shortSHA[:12]
	}
	filename := storage.SanitizeFilename(att.Filename)
	derivedID := fmt.Sprintf("derived:%s:%s:%s", parent.MondayAssetID, shortSHA, filename)

	objectPath := storage.BuildObjectPath(
		run.task.AccountID, run.task.BoardID, run.task.ItemID,
		run.snapshot.Version, derivedID, filename,
	)

	if att.TempPath != "" {
		src, err := os.Open(att.TempPath)
		if err != nil {
			return fmt.Errorf("failed to open derived attachment %s: %w", att.Filename, err)
		}
		uploadErr := uc.store.Upload(ctx, objectPath, src, att.MIMEType)
		src.Close()
		if uploadErr != nil {
			return fmt.Errorf("failed to upload derived attachment %s: %w", att.Filename, uploadErr)
		}
	}

	file := &domain.TaskFile{
		ExternalTaskKey: run.task.ExternalTaskKey,
		SnapshotID:      run.snapshot.ID,
		MondayAssetID:   derivedID,
		Kind:            domain.FileKind(att.Kind),
		Filename:        filename,
		MIMEType:        att.MIMEType,
		SizeBytes:       size,
		SHA256:          sha,
		Bucket:          uc.bucket,
		ObjectPath:      objectPath,
	}
	if err := run.files.Upsert(file); err != nil {
		return fmt.Errorf("failed to upsert derived file %s: %w", att.Filename, err)
	}
	run.kindCount[string(file.Kind)]++

	if att.Kind == extract.KindPDF {
		run.enqueueText(ctx, file, att.Text, labelPDFChunks)
	} else {
		run.enqueueText(ctx, file, att.Text, labelOffsets)
	}
	return nil
}

// extractPendingPDFs runs the deferred PDF inference, then chunks per file in
// listing order. A set that qualifies for one combined call is loaded into
// memory together; otherwise files are loaded, extracted and released one at
// a time so at most one PDF's bytes are resident.
func (uc *TaskUsecase) extractPendingPDFs(ctx context.Context, run *syncRun) error {
	pending := run.pendingPDFs
	run.pendingPDFs = nil
	if len(pending) == 0 {
		return nil
	}
	defer func() {
		for _, p := range pending {
			if p.tempPath != "" {
				os.Remove(p.tempPath)
			}
		}
	}()

	var total int64
	for _, p := range pending {
		total += p.size
	}
	if extract.ShouldBatchPDFSizes(len(pending), total) {
		pdfFiles := make([]extract.PDFFile, 0, len(pending))
		for _, p := range pending {
			data, err := os.ReadFile(p.tempPath)
			if err != nil {
				// Let the single-file pass surface the read error per file.
				pdfFiles = nil
				break
			}
			pdfFiles = append(pdfFiles, extract.PDFFile{Name: p.file.Filename, Data: data})
		}
		if len(pdfFiles) == len(pending) {
			texts := uc.extractor.ExtractPDFs(ctx, pdfFiles)
			for i, p := range pending {
				text := texts[i]
				if text == "" {
					text = fmt.Sprintf("[PDF %s: no text extracted]", p.file.Filename)
				}
				run.enqueueText(ctx, p.file, text, labelPDFChunks)
			}
			return nil
		}
	}

	for i := range pending {
		p := &pending[i]
		data, err := os.ReadFile(p.tempPath)
		if err != nil {
			run.enqueuePlaceholder(ctx, p.file, fmt.Sprintf("Error processing %s: %v", p.file.Filename, err))
			continue
		}
		text, err := uc.extractor.ExtractPDF(ctx, extract.PDFFile{Name: p.file.Filename, Data: data})
		os.Remove(p.tempPath)
		p.tempPath = ""
		if err != nil {
			log.Printf("[Sync] PDF extraction degraded for %s: %v", p.file.Filename, err)
			text = fmt.Sprintf("Error processing %s: %v", p.file.Filename, err)
		} else if text == "" {
			text = fmt.Sprintf("[PDF %s: no text extracted]", p.file.Filename)
		}
		run.enqueueText(ctx, p.file, text, labelPDFChunks)
		uc.memory.Reclaim()
	}
	return nil
}

// ingestColumnDocument renders the allow-listed item columns into a derived
// text file so column values are searchable like any other document.
func (uc *TaskUsecase) ingestColumnDocument(ctx context.Context, run *syncRun) error {
	lines := columnDocLines(run.item.ColumnValues)
	if len(lines) == 0 {
		return nil
	}
	text := strings.Join(lines, "\n")

	objectPath := storage.BuildObjectPath(
		run.task.AccountID, run.task.BoardID, run.task.ItemID,
		run.snapshot.Version, columnDocAssetID, columnDocFilename,
	)
	if err := uc.store.Upload(ctx, objectPath, strings.NewReader(text), "text/plain"); err != nil {
		return fmt.Errorf("failed to upload column document: %w", err)
	}

	file := &domain.TaskFile{
		ExternalTaskKey: run.task.ExternalTaskKey,
		SnapshotID:      run.snapshot.ID,
		MondayAssetID:   columnDocAssetID,
		Kind:            domain.FileKind(extract.KindMondayColumns),
		Filename:        columnDocFilename,
		MIMEType:        "text/plain",
		SizeBytes:       int64(len(text)),
		Bucket:          uc.bucket,
		ObjectPath:      objectPath,
	}
	if err := run.files.Upsert(file); err != nil {
		return fmt.Errorf("failed to upsert column document: %w", err)
	}
	run.kindCount[string(file.Kind)]++

	run.enqueueText(ctx, file, text, labelOffsets)
	return nil
}

// columnDocLines renders allow-listed columns as "Column: <t> | Value: <v>"
// lines, in allow-list order.
func columnDocLines(columns []monday.ColumnValue) []string {
	byTitle := map[string]monday.ColumnValue{}
	for _, col := range columns {
		byTitle[col.Column.Title] = col
	}

	var lines []string
	for _, title := range columnAllowList {
		col, ok := byTitle[title]
		if !ok {
			continue
		}
		value := col.Text
		if value == "" {
			value = col.DisplayValue
		}
		if value == "" {
			continue
		}
		lines = append(lines, fmt.Sprintf("Column: %s | Value: %s", title, value))
	}
	return lines
}

// buildTaskContext assembles the snapshot's derived metadata blob: raw item
// context, column lines, per-kind document counts and CSV parameter tables.
func (uc *TaskUsecase) buildTaskContext(run *syncRun) string {
	context := map[string]interface{}{
		"item_id":         run.item.ID,
		"item_name":       run.item.Name,
		"board_id":        run.task.BoardID,
		"item_updated_at": run.item.UpdatedAt,
		"columns":         columnDocLines(run.item.ColumnValues),
		"document_counts": run.kindCount,
		"chunks_stored":   run.batcher.Stored(),
		"chunks_dropped":  run.batcher.Dropped(),
	}
	if len(run.csvParams) > 0 {
		context["csv_parameters"] = run.csvParams
	}

	data, err := json.Marshal(context)
	if err != nil {
		log.Printf("[Sync] Failed to marshal task context: %v", err)
		return "{}"
	}
	return string(data)
}

// Chunk label styles.
type labelStyle int

const (
	// labelOffsets labels chunks by character range in the source text.
	labelOffsets labelStyle = iota
	// labelPDFChunks labels chunks chunk:1, chunk:2, ...
	labelPDFChunks
)

func (r *syncRun) newFile(job assetJob, objectPath string, size int64, sha, note string) *domain.TaskFile {
	return &domain.TaskFile{
		ExternalTaskKey: r.task.ExternalTaskKey,
		SnapshotID:      r.snapshot.ID,
		MondayAssetID:   job.asset.ID,
		Kind:            domain.FileKind(job.kind),
		Filename:        storage.SanitizeFilename(job.asset.Name),
		SizeBytes:       size,
		SHA256:          sha,
		ObjectPath:      objectPath,
		ExtractionNote:  note,
	}
}

func (r *syncRun) record(file *domain.TaskFile, section, text string) chroma.ChunkRecord {
	return chroma.ChunkRecord{
		ID:         r.nextChunkID(file.ID),
		TaskKey:    file.ExternalTaskKey,
		SnapshotID: file.SnapshotID,
		FileID:     file.ID,
		AssetID:    file.MondayAssetID,
		Filename:   file.Filename,
		Section:    section,
		Text:       text,
	}
}

// enqueuePlaceholder stores one placeholder chunk so degraded files remain
// visible to retrieval.
func (r *syncRun) enqueuePlaceholder(ctx context.Context, file *domain.TaskFile, text string) {
	r.batcher.Enqueue(ctx, r.record(file, "placeholder", text))
}

// enqueueText splits a file's extracted text and buffers every chunk.
func (r *syncRun) enqueueText(ctx context.Context, file *domain.TaskFile, text string, style labelStyle) {
	chunks := chunk.Split(text, chunk.DefaultSize, chunk.DefaultOverlap)
	for i, c := range chunks {
		var section string
		switch style {
		case labelPDFChunks:
			section = fmt.Sprintf("chunk:%d", i+1)
		default:
			section = fmt.Sprintf("offset:%d-%d", c.Start, c.End)
		}
		r.batcher.Enqueue(ctx, r.record(file, section, c.Text))
	}
}

// enqueueSections chunks labeled sections (email header/body). A section
// that fits in one chunk keeps its plain label; multi-chunk sections get a
// chunk suffix.
func (r *syncRun) enqueueSections(ctx context.Context, file *domain.TaskFile, sections []extract.Section) {
	for _, section := range sections {
		chunks := chunk.Split(section.Text, chunk.DefaultSize, chunk.DefaultOverlap)
		for i, c := range chunks {
			label := section.Label
			if len(chunks) > 1 {
				label = fmt.Sprintf("%s:chunk:%d", section.Label, i+1)
			}
			r.batcher.Enqueue(ctx, r.record(file, label, c.Text))
		}
	}
}

func (uc *TaskUsecase) markSyncCompleted(externalTaskKey, version, itemName string) {
	task, err := uc.tasks.FindByKey(externalTaskKey)
	if err != nil || task == nil {
		return
	}
	now := time.Now()
	task.SyncStatus = domain.SyncStatusCompleted
	task.SyncCompletedAt = &now
	task.SyncError = ""
	task.LatestSnapshotVersion = version
	if itemName != "" {
		task.ItemName = itemName
	}
	if err := uc.tasks.Update(task); err != nil {
		log.Printf("[Sync] Failed to mark %s completed: %v", externalTaskKey, err)
	}
}

func (uc *TaskUsecase) markSyncFailed(externalTaskKey string, cause error) {
	task, err := uc.tasks.FindByKey(externalTaskKey)
	if err != nil || task == nil {
		return
	}
	now := time.Now()
	task.SyncStatus = domain.SyncStatusFailed
	task.SyncCompletedAt = &now
	task.SyncError = truncateError(cause)
	if err := uc.tasks.Update(task); err != nil {
		log.Printf("[Sync] Failed to mark %s failed: %v", externalTaskKey, err)
	}
}

func fileDigest(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func truncateError(err error) string {
	msg := err.Error()
	if len(msg) > maxSyncErrorLen {
		msg = msg[:maxSyncErrorLen]
	}
	return msg
}
