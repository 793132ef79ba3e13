package rag

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Yates-Labs/reseek/internal/logger"
	"github.com/Yates-Labs/reseek/internal/transcript"
)

// IndexResult reports what an Index call wrote.
type IndexResult struct {
	// Records are the chunks that were embedded and inserted, in index order.
	Records []ChunkRecord

	// Failed lists the indexes of chunks skipped because embedding failed.
	Failed []int
}

// Indexer embeds transcript chunks with bounded concurrency and writes them to
// a VectorStore.
type Indexer struct {
	embedder    Embedder
	vectorStore VectorStore
	log         *logger.Logger
	concurrency int
}

func NewIndexer(embedder Embedder, vectorStore VectorStore, log *logger.Logger, concurrency int) (*Indexer, error) {
	if embedder == nil {
		return nil, fmt.Errorf("embedder cannot be nil")
	}
	if vectorStore == nil {
		return nil, fmt.Errorf("vector store cannot be nil")
	}
	if concurrency <= 0 {
		return nil, fmt.Errorf("concurrency must be positive, got %d", concurrency)
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Indexer{
		embedder:    embedder,
		vectorStore: vectorStore,
		log:         log,
		concurrency: concurrency,
	}, nil
}

// Index embeds every chunk, inserts the successful ones, flushes, and only
// then deletes the transcript's previous records. A chunk whose embedding
// fails is skipped and logged; it does not stop the others.
func (ix *Indexer) Index(ctx context.Context, ref TranscriptRef, chunks []transcript.Chunk) (IndexResult, error) {
	if ref.TranscriptID == "" {
		return IndexResult{}, fmt.Errorf("%w: transcript_id", ErrMissingMetadata)
	}

	log := ix.log.With("transcript_id", ref.TranscriptID, "event_id", ref.EventID)

	embeddings := make([][]float32, len(chunks))
	failed := make([]bool, len(chunks))

	var g errgroup.Group
	g.SetLimit(ix.concurrency)
	for i, c := range chunks {
		g.Go(func() error {
			vec, err := ix.embedOne(ctx, c.Text)
			if err != nil {
				failed[i] = true
				log.Warn("skipping chunk after embedding failure", "chunk_index", c.Index, "error", err)
				return nil
			}
			embeddings[i] = vec
			return nil
		})
	}
	_ = g.Wait()

	result := IndexResult{Records: make([]ChunkRecord, 0, len(chunks))}
	for i, c := range chunks {
		if failed[i] {
			result.Failed = append(result.Failed, c.Index)
			continue
		}
		result.Records = append(result.Records, ChunkRecord{
			ChunkID:      uuid.NewString(),
			TranscriptID: ref.TranscriptID,
			EventID:      ref.EventID,
			Ticker:       ref.Ticker,
			Index:        c.Index,
			Text:         c.Text,
			TokenCount:   c.TokenCount,
			StartToken:   c.StartToken,
			EndToken:     c.EndToken,
			StartTime:    c.StartTime,
			Speaker:      c.Speaker,
			Embedding:    embeddings[i],
		})
	}

	if err := ctx.Err(); err != nil {
		return result, err
	}
	if len(chunks) > 0 && len(result.Records) == 0 {
		return result, fmt.Errorf("%w: all %d chunks failed to embed", ErrEmbeddingFailed, len(chunks))
	}

	if len(result.Records) > 0 {
		if err := ix.vectorStore.Insert(ctx, result.Records); err != nil {
			return result, fmt.Errorf("failed to insert chunks: %w", err)
		}
		if err := ix.vectorStore.Flush(ctx); err != nil {
			return result, fmt.Errorf("failed to flush chunks: %w", err)
		}
	}

	keep := make([]string, len(result.Records))
	for i, r := range result.Records {
		keep[i] = r.ChunkID
	}
	if err := ix.vectorStore.DeleteStale(ctx, ref.TranscriptID, keep); err != nil {
		return result, fmt.Errorf("failed to discard previous chunks: %w", err)
	}

	log.Info("indexed transcript", "chunks", len(result.Records), "failed", len(result.Failed))
	return result, nil
}

func (ix *Indexer) embedOne(ctx context.Context, text string) ([]float32, error) {
	records, err := ix.embedder.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(records) != 1 {
		return nil, fmt.Errorf("%w: expected 1 embedding, got %d", ErrEmbeddingFailed, len(records))
	}
	if len(records[0].Embedding) != ix.embedder.GetDimension() {
		return nil, fmt.Errorf("%w: expected %d, got %d", ErrInvalidDimension, ix.embedder.GetDimension(), len(records[0].Embedding))
	}
	return records[0].Embedding, nil
}
