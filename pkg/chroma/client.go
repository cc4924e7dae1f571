package chroma

import (
	"context"
	"fmt"
	"log"

	"design-assistant-backend/pkg/config"

	chroma "github.com/amikos-tech/chroma-go/pkg/api/v2"
	"github.com/amikos-tech/chroma-go/pkg/embeddings"
)

const collectionName = "task_chunks"

// ChunkRecord is one embeddable slice of a file's extracted text, staged for
// insertion into the vector index.
type ChunkRecord struct {
	ID         string
	TaskKey    string
	SnapshotID string
	FileID     string
	AssetID    string
	Filename   string
	Section    string
	Page       *int
	Text       string
}

// SearchResult is one citation returned by a similarity query, ordered by
// ascending distance (most similar first).
type SearchResult struct {
	Filename string   `json:"filename"`
	Page     *int     `json:"page"`
	Section  string   `json:"section"`
	Snippet  string   `json:"snippet"`
	Score    *float64 `json:"score"`
	FileID   string   `json:"fileId"`
	AssetID  string   `json:"assetId"`
}

// ChromaClient stores chunk embeddings in a Chroma Cloud collection. Vectors
// are computed and normalized by the caller; Chroma only indexes them.
type ChromaClient struct {
	client     chroma.Client
	collection chroma.Collection
}

func NewChromaClient(cfg *config.Config) (*ChromaClient, error) {
	if cfg.ChromaAPIKey == "" {
		return nil, fmt.Errorf("CHROMA_API_KEY is required")
	}

	var client chroma.Client
	var err error
	if cfg.ChromaDatabase != "" && cfg.ChromaTenant != "" {
		client, err = chroma.NewHTTPClient(
			chroma.WithBaseURL(chroma.ChromaCloudEndpoint),
			chroma.WithCloudAPIKey(cfg.ChromaAPIKey),
			chroma.WithDatabaseAndTenant(cfg.ChromaDatabase, cfg.ChromaTenant),
		)
	} else if cfg.ChromaTenant != "" {
		client, err = chroma.NewHTTPClient(
			chroma.WithBaseURL(chroma.ChromaCloudEndpoint),
			chroma.WithCloudAPIKey(cfg.ChromaAPIKey),
			chroma.WithTenant(cfg.ChromaTenant),
		)
	} else {
		client, err = chroma.NewHTTPClient(
			chroma.WithBaseURL(chroma.ChromaCloudEndpoint),
			chroma.WithCloudAPIKey(cfg.ChromaAPIKey),
		)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create Chroma client: %w", err)
	}

	// The collection carries precomputed embeddings, so no embedding
	// function is attached.
	ctx := context.Background()
	collection, err := client.GetOrCreateCollection(ctx, collectionName)
	if err != nil {
		return nil, fmt.Errorf("failed to create collection: %w", err)
	}

	log.Printf("[Chroma] Initialized client with collection: %s", collectionName)

	return &ChromaClient{client: client, collection: collection}, nil
}

// DeleteFileChunks removes every chunk belonging to a file. Idempotent;
// called once per file before its first insert in a sync run so partial chunk
// sets never survive re-ingestion.
func (c *ChromaClient) DeleteFileChunks(ctx context.Context, fileID string) error {
	err := c.collection.Delete(ctx, chroma.WithWhereDelete(chroma.EqString("file_id", fileID)))
	if err != nil {
		return fmt.Errorf("failed to delete chunks for file %s: %w", fileID, err)
	}
	return nil
}

// AddChunks inserts a batch of chunk records with their precomputed,
// normalized vectors.
func (c *ChromaClient) AddChunks(ctx context.Context, records []ChunkRecord, vectors [][]float32) error {
	if len(records) == 0 {
		return nil
	}
	if len(records) != len(vectors) {
		return fmt.Errorf("record/vector count mismatch: %d vs %d", len(records), len(vectors))
	}

	ids := make([]chroma.DocumentID, 0, len(records))
	texts := make([]string, 0, len(records))
	metadatas := make([]chroma.DocumentMetadata, 0, len(records))
	embs := make([]embeddings.Embedding, 0, len(records))

	for i, rec := range records {
		fields := map[string]interface{}{
			"external_task_key": rec.TaskKey,
			"snapshot_id":       rec.SnapshotID,
			"file_id":           rec.FileID,
			"asset_id":          rec.AssetID,
			"filename":          rec.Filename,
			"section":           rec.Section,
		}
		if rec.Page != nil {
			fields["page"] = *rec.Page
		}
		metadata, err := chroma.NewDocumentMetadataFromMap(fields)
		if err != nil {
			return fmt.Errorf("failed to create metadata: %w", err)
		}

		ids = append(ids, chroma.DocumentID(rec.ID))
		texts = append(texts, rec.Text)
		metadatas = append(metadatas, metadata)
		embs = append(embs, embeddings.NewEmbeddingFromFloat32(vectors[i]))
	}

	err := c.collection.Add(
		ctx,
		chroma.WithIDs(ids...),
		chroma.WithTexts(texts...),
		chroma.WithMetadatas(metadatas...),
		chroma.WithEmbeddings(embs...),
	)
	if err != nil {
		return fmt.Errorf("failed to add chunks: %w", err)
	}
	return nil
}

// Query returns the k nearest chunks for a query vector, scoped to one
// snapshot of one task.
func (c *ChromaClient) Query(ctx context.Context, taskKey, snapshotID string, queryVec []float32, k int) ([]SearchResult, error) {
	where := chroma.And(
		chroma.EqString("external_task_key", taskKey),
		chroma.EqString("snapshot_id", snapshotID),
	)

	results, err := c.collection.Query(
		ctx,
		chroma.WithQueryEmbeddings(embeddings.NewEmbeddingFromFloat32(queryVec)),
		chroma.WithNResults(k),
		chroma.WithWhereQuery(where),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query collection: %w", err)
	}
	if results == nil || results.CountGroups() == 0 {
		return []SearchResult{}, nil
	}

	idGroups := results.GetIDGroups()
	docGroups := results.GetDocumentsGroups()
	metaGroups := results.GetMetadatasGroups()
	distGroups := results.GetDistancesGroups()
	if len(idGroups) == 0 || len(idGroups[0]) == 0 {
		return []SearchResult{}, nil
	}

	out := make([]SearchResult, 0, len(idGroups[0]))
	for i := range idGroups[0] {
		res := SearchResult{}
		if len(docGroups) > 0 && i < len(docGroups[0]) {
			res.Snippet = docGroups[0][i].ContentString()
		}
		if len(distGroups) > 0 && i < len(distGroups[0]) {
			score := float64(distGroups[0][i])
			res.Score = &score
		}
		if len(metaGroups) > 0 && i < len(metaGroups[0]) && metaGroups[0][i] != nil {
			meta := metaGroups[0][i]
			if v, ok := meta.GetString("filename"); ok {
				res.Filename = v
			}
			if v, ok := meta.GetString("section"); ok {
				res.Section = v
			}
			if v, ok := meta.GetString("file_id"); ok {
				res.FileID = v
			}
			if v, ok := meta.GetString("asset_id"); ok {
				res.AssetID = v
			}
			if v, ok := meta.GetInt("page"); ok {
				page := int(v)
				res.Page = &page
			}
		}
		out = append(out, res)
	}
	return out, nil
}
