// Package ingest processes knowledge-base documents through validation,
// parsing, chunking, embedding, and vector storage stages.
package ingest

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/policywise/policywise/engine/domain"
	"github.com/policywise/policywise/engine/rag"
	"github.com/policywise/policywise/engine/semantic"
	"github.com/policywise/policywise/pkg/fn"
)

const (
	// IngestSubject is the NATS subject for incoming KB documents.
	IngestSubject = "engine.kb.ingest"
	// DLQSubject receives documents that exhausted their retries.
	DLQSubject = "engine.kb.ingest.dlq"
	// MaxRetries before a document goes to the DLQ.
	MaxRetries = 3
	// EmbedBatchSize bounds chunks embedded per batch.
	EmbedBatchSize = 32
)

// Deps holds the external dependencies for the ingestion pipeline.
type Deps struct {
	Embedder    rag.Embedder
	VectorStore *semantic.VectorStore
	Logger      *slog.Logger
}

// --- Pipeline stages ---

// Validate gates documents on domain validation.
var Validate fn.Stage[domain.Document, domain.Document] = func(_ context.Context, doc domain.Document) fn.Result[domain.Document] {
	if err := domain.ValidateDocument(doc); err != nil {
		return fn.Err[domain.Document](err)
	}
	return fn.Ok(doc)
}

// Parse converts a Document into a ParsedDoc.
var Parse fn.Stage[domain.Document, ParsedDoc] = fn.MapStage(parseDocument)

// ChunkDoc splits a ParsedDoc into a ChunkedDoc.
var ChunkDoc fn.Stage[ParsedDoc, ChunkedDoc] = func(_ context.Context, doc ParsedDoc) fn.Result[ChunkedDoc] {
	chunks := chunkSentences(doc.ID, doc.Sentences, DefaultChunkSize, DefaultOverlap)
	if len(chunks) == 0 {
		// Single chunk fallback for short content.
		chunks = []Chunk{{Text: doc.Content, Index: 0, DocID: doc.ID}}
	}
	return fn.Ok(ChunkedDoc{ParsedDoc: doc, Chunks: chunks})
}

// NewEmbed creates an Embed stage over the given embedder. Chunks are
// embedded in batches with bounded concurrency inside each batch.
func NewEmbed(embedder rag.Embedder, workers int) fn.Stage[ChunkedDoc, EmbeddedDoc] {
	if workers <= 0 {
		workers = 4
	}
	return func(ctx context.Context, doc ChunkedDoc) fn.Result[EmbeddedDoc] {
		embeddings := make([][]float32, len(doc.Chunks))

		for _, batch := range fn.Chunk(doc.Chunks, EmbedBatchSize) {
			results := fn.ParMapResult(batch, workers, func(c Chunk) fn.Result[[]float32] {
				return fn.FromPair(embedder.Embed(ctx, c.Text))
			})
			collected := fn.Collect(results)
			if collected.IsErr() {
				_, err := collected.Unwrap()
				return fn.Err[EmbeddedDoc](fmt.Errorf("embed batch: %w", err))
			}
			vecs, _ := collected.Unwrap()
			for i, v := range vecs {
				embeddings[batch[i].Index] = v
			}
		}

		return fn.Ok(EmbeddedDoc{ChunkedDoc: doc, Embeddings: embeddings})
	}
}

// NewStore creates a Store stage that replaces any previous version of the
// document in the vector index and upserts its chunks.
func NewStore(vs *semantic.VectorStore) fn.Stage[EmbeddedDoc, string] {
	return func(ctx context.Context, doc EmbeddedDoc) fn.Result[string] {
		if err := vs.DeleteByDocID(ctx, doc.ID); err != nil {
			return fn.Err[string](fmt.Errorf("clear previous chunks: %w", err))
		}

		records := make([]semantic.VectorRecord, len(doc.Chunks))
		for i, chunk := range doc.Chunks {
			// Deterministic UUID so re-ingestion overwrites in place.
			pointID := uuid.NewSHA1(uuid.NameSpaceURL, []byte(fmt.Sprintf("%s-%d", doc.ID, chunk.Index))).String()
			payload := map[string]any{
				"content":     chunk.Text,
				"title":       doc.Title,
				"type":        doc.Type,
				"doc_id":      doc.ID,
				"chunk_index": chunk.Index,
			}
			if doc.InsuranceType != "" {
				payload["insurance_type"] = doc.InsuranceType
			}
			if doc.State != "" {
				payload["state"] = doc.State
			}
			records[i] = semantic.VectorRecord{
				ID:        pointID,
				Embedding: doc.Embeddings[i],
				Payload:   payload,
			}
		}

		if err := vs.Upsert(ctx, records); err != nil {
			return fn.Err[string](err)
		}
		return fn.Ok(doc.ID)
	}
}

// Pipeline composes the full document pipeline from Deps.
func Pipeline(deps Deps) fn.Stage[domain.Document, string] {
	embed := NewEmbed(deps.Embedder, 4)
	store := NewStore(deps.VectorStore)
	return fn.Then(fn.Then(fn.Then(fn.Then(Validate, Parse), ChunkDoc), embed), store)
}

// Process runs one document through the pipeline.
func Process(ctx context.Context, deps Deps, doc domain.Document) error {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}

	result := Pipeline(deps)(ctx, doc)
	if result.IsErr() {
		_, err := result.Unwrap()
		return fmt.Errorf("ingest %s: %w", doc.ID, err)
	}

	log.Info("ingest: document stored", "doc_id", doc.ID, "title", doc.Title)
	return nil
}
