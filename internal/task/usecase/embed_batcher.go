package usecase

import (
	"context"
	"log"

	"design-assistant-backend/pkg/chroma"
	"design-assistant-backend/pkg/gemini"
)

// Embedder computes document/query embeddings (pkg/gemini in production).
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// VectorIndex stores and searches chunk vectors (pkg/chroma in production).
type VectorIndex interface {
	DeleteFileChunks(ctx context.Context, fileID string) error
	AddChunks(ctx context.Context, records []chroma.ChunkRecord, vectors [][]float32) error
	Query(ctx context.Context, taskKey, snapshotID string, queryVec []float32, k int) ([]chroma.SearchResult, error)
}

// EmbedBatcher accumulates chunk records and flushes them to the vector
// index in small batches. Before the first chunk of a File is buffered, that
// File's prior chunks are deleted exactly once, so partial chunk sets never
// survive re-ingestion. A flush failure drops the buffered batch: retrieval
// is best-effort and a lost batch must not block the pipeline.
type EmbedBatcher struct {
	embedder  Embedder
	index     VectorIndex
	batchSize int

	buf     []chroma.ChunkRecord
	cleared map[string]bool

	enqueued int
	stored   int
	dropped  int
}

func NewEmbedBatcher(embedder Embedder, index VectorIndex, batchSize int) *EmbedBatcher {
	if batchSize < 1 {
		batchSize = 16
	}
	return &EmbedBatcher{
		embedder:  embedder,
		index:     index,
		batchSize: batchSize,
		cleared:   map[string]bool{},
	}
}

// Enqueue buffers one chunk record, flushing when the batch threshold is
// reached.
func (b *EmbedBatcher) Enqueue(ctx context.Context, rec chroma.ChunkRecord) {
	if rec.Text == "" {
		return
	}

	if !b.cleared[rec.FileID] {
		if err := b.index.DeleteFileChunks(ctx, rec.FileID); err != nil {
			log.Printf("[EmbedBatcher] Failed to clear chunks for file %s: %v", rec.FileID, err)
		}
		b.cleared[rec.FileID] = true
	}

	b.buf = append(b.buf, rec)
	b.enqueued++
	if len(b.buf) >= b.batchSize {
		b.Flush(ctx)
	}
}

// Flush embeds and stores everything buffered, regardless of threshold.
// Called by Enqueue on overflow and once at pipeline end.
func (b *EmbedBatcher) Flush(ctx context.Context) {
	if len(b.buf) == 0 {
		return
	}
	batch := b.buf
	b.buf = nil

	texts := make([]string, len(batch))
	for i, rec := range batch {
		texts[i] = rec.Text
	}

	vectors, err := b.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		b.dropped += len(batch)
		log.Printf("[EmbedBatcher] Embedding call failed, dropping batch of %d chunks: %v", len(batch), err)
		return
	}

	for i := range vectors {
		vectors[i] = gemini.Normalize(vectors[i])
	}

	if err := b.index.AddChunks(ctx, batch, vectors); err != nil {
		b.dropped += len(batch)
		log.Printf("[EmbedBatcher] Vector insert failed, dropping batch of %d chunks: %v", len(batch), err)
		return
	}
	b.stored += len(batch)
}

// Stored returns how many chunks reached the index this run.
func (b *EmbedBatcher) Stored() int { return b.stored }

// Dropped returns how many chunks were lost to failed flushes.
func (b *EmbedBatcher) Dropped() int { return b.dropped }
