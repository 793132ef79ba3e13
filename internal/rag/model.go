package rag

import (
	"context"
)

// TranscriptRef identifies the transcript a set of chunks belongs to.
type TranscriptRef struct {
	TranscriptID string `json:"transcript_id"`
	EventID      string `json:"event_id"`
	Ticker       string `json:"ticker"`
}

// ChunkRecord is a transcript chunk with its embedding, as written to the
// vector index.
type ChunkRecord struct {
	ChunkID      string    `json:"chunk_id"`
	TranscriptID string    `json:"transcript_id"`
	EventID      string    `json:"event_id"`
	Ticker       string    `json:"ticker"`
	Index        int       `json:"index"`
	Text         string    `json:"text"`
	TokenCount   int       `json:"token_count"`
	StartToken   int       `json:"start_token"`
	EndToken     int       `json:"end_token"`
	StartTime    *string   `json:"start_time"`
	Speaker      *string   `json:"speaker"`
	Embedding    []float32 `json:"embedding"`
}

// VectorStore defines the interface for chunk vector storage and similarity search
type VectorStore interface {
	// Insert adds chunk records in a single operation
	Insert(ctx context.Context, records []ChunkRecord) error

	// Flush ensures all pending data is persisted
	Flush(ctx context.Context) error

	// Search returns the topK nearest chunks, most similar first, restricted
	// to the scope in opts
	Search(ctx context.Context, queryVector []float32, topK int, opts *SearchOptions) ([]ContextChunk, error)

	// DeleteStale removes every record of the transcript whose chunk ID is not in keep
	DeleteStale(ctx context.Context, transcriptID string, keep []string) error

	// DeleteTranscript removes every record of the transcript
	DeleteTranscript(ctx context.Context, transcriptID string) error

	// GetStats returns collection statistics (record count, index status, etc.)
	GetStats(ctx context.Context) (map[string]interface{}, error)

	// Close releases resources and closes connections
	Close() error
}
