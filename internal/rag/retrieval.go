package rag

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// SearchOptions scopes a vector search. EventID takes precedence over
// Tickers when both are set.
type SearchOptions struct {
	EventID string   `json:"event_id,omitempty"`
	Tickers []string `json:"tickers,omitempty"`
}

// FilterExpr renders the scope as a Milvus boolean expression. An empty
// string means unscoped.
func (o *SearchOptions) FilterExpr() string {
	if o == nil {
		return ""
	}
	if o.EventID != "" {
		return fmt.Sprintf("%s == %s", fieldEventID, strconv.Quote(o.EventID))
	}
	if len(o.Tickers) > 0 {
		return fmt.Sprintf("%s in %s", fieldTicker, quoteList(normalizeTickers(o.Tickers)))
	}
	return ""
}

func normalizeTickers(tickers []string) []string {
	out := make([]string, 0, len(tickers))
	seen := make(map[string]bool, len(tickers))
	for _, t := range tickers {
		if t = strings.ToUpper(strings.TrimSpace(t)); t != "" && !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}

// NormalizeTickers upper-cases and trims tickers, dropping empties and
// duplicates.
func NormalizeTickers(tickers []string) []string { return normalizeTickers(tickers) }

// ContextChunk is a retrieved chunk with its similarity score
type ContextChunk struct {
	ChunkID      string  `json:"chunk_id"`
	TranscriptID string  `json:"transcript_id"`
	EventID      string  `json:"event_id"`
	Ticker       string  `json:"ticker"`
	Index        int     `json:"index"`
	Text         string  `json:"text"`
	TokenCount   int     `json:"token_count"`
	StartToken   int     `json:"start_token"`
	EndToken     int     `json:"end_token"`
	StartTime    *string `json:"start_time"`
	Speaker      *string `json:"speaker"`
	Score        float32 `json:"score"`
}

// Retriever provides high-level semantic retrieval over transcript chunks.
type Retriever struct {
	embedder    Embedder
	vectorStore VectorStore
}

// NewRetriever creates a new Retriever instance.
func NewRetriever(embedder Embedder, vectorStore VectorStore) (*Retriever, error) {
	if embedder == nil {
		return nil, fmt.Errorf("embedder cannot be nil")
	}
	if vectorStore == nil {
		return nil, fmt.Errorf("vector store cannot be nil")
	}

	return &Retriever{
		embedder:    embedder,
		vectorStore: vectorStore,
	}, nil
}

// RetrieveForQuery embeds query and returns the topK nearest chunks in scope,
// most similar first.
func (r *Retriever) RetrieveForQuery(
	ctx context.Context,
	query string,
	topK int,
	opts *SearchOptions,
) ([]ContextChunk, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("query cannot be empty")
	}
	if topK <= 0 {
		return nil, fmt.Errorf("topK must be positive, got %d", topK)
	}

	embeddingRecords, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if len(embeddingRecords) == 0 {
		return nil, fmt.Errorf("%w: no embedding generated for query", ErrEmbeddingFailed)
	}

	chunks, err := r.vectorStore.Search(ctx, embeddingRecords[0].Embedding, topK, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to search for query: %w", err)
	}

	return chunks, nil
}

// RetrieveForEvent is RetrieveForQuery scoped to one event.
func (r *Retriever) RetrieveForEvent(ctx context.Context, query, eventID string, topK int) ([]ContextChunk, error) {
	if eventID == "" {
		return nil, fmt.Errorf("event ID cannot be empty")
	}
	return r.RetrieveForQuery(ctx, query, topK, &SearchOptions{EventID: eventID})
}

// RetrieveForTickers is RetrieveForQuery scoped to a set of tickers.
func (r *Retriever) RetrieveForTickers(ctx context.Context, query string, tickers []string, topK int) ([]ContextChunk, error) {
	tickers = normalizeTickers(tickers)
	if len(tickers) == 0 {
		return nil, fmt.Errorf("tickers cannot be empty")
	}
	return r.RetrieveForQuery(ctx, query, topK, &SearchOptions{Tickers: tickers})
}
