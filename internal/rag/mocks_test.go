package rag

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// mockEmbedder implements Embedder interface for testing
type mockEmbedder struct {
	mu        sync.Mutex
	dimension int
	calls     int
	embedFunc func(ctx context.Context, texts []string) ([]EmbeddingRecord, error)
}

func newMockEmbedder(dimension int) *mockEmbedder {
	return &mockEmbedder{dimension: dimension}
}

func (m *mockEmbedder) GetModel() string { return "mock" }

func (m *mockEmbedder) GetDimension() int { return m.dimension }

func (m *mockEmbedder) Embed(ctx context.Context, texts []string) ([]EmbeddingRecord, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()

	if m.embedFunc != nil {
		return m.embedFunc(ctx, texts)
	}
	records := make([]EmbeddingRecord, len(texts))
	for i, text := range texts {
		records[i] = EmbeddingRecord{
			Text:      text,
			Embedding: fakeVector(text, m.dimension),
			Index:     i,
			Model:     "mock",
		}
	}
	return records, nil
}

func (m *mockEmbedder) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// fakeVector derives a deterministic vector from text length.
func fakeVector(text string, dim int) []float32 {
	v := make([]float32, dim)
	for i := range v {
		v[i] = float32(len(text) + i)
	}
	return v
}

// mockVectorStore is an in-memory VectorStore keyed by chunk ID
type mockVectorStore struct {
	mu      sync.Mutex
	records map[string]ChunkRecord
	ops     []string

	searchFunc func(ctx context.Context, queryVector []float32, topK int, opts *SearchOptions) ([]ContextChunk, error)
	insertErr  error
}

func newMockVectorStore() *mockVectorStore {
	return &mockVectorStore{records: make(map[string]ChunkRecord)}
}

func (m *mockVectorStore) Insert(ctx context.Context, records []ChunkRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ops = append(m.ops, "insert")
	if m.insertErr != nil {
		return m.insertErr
	}
	for _, r := range records {
		m.records[r.ChunkID] = r
	}
	return nil
}

func (m *mockVectorStore) Flush(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ops = append(m.ops, "flush")
	return nil
}

func (m *mockVectorStore) Search(ctx context.Context, queryVector []float32, topK int, opts *SearchOptions) ([]ContextChunk, error) {
	if m.searchFunc != nil {
		return m.searchFunc(ctx, queryVector, topK, opts)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var out []ContextChunk
	for _, r := range m.sortedLocked() {
		if !inScope(r, opts) {
			continue
		}
		out = append(out, ContextChunk{
			ChunkID:      r.ChunkID,
			TranscriptID: r.TranscriptID,
			EventID:      r.EventID,
			Ticker:       r.Ticker,
			Index:        r.Index,
			Text:         r.Text,
			StartTime:    r.StartTime,
			Speaker:      r.Speaker,
			Score:        1,
		})
		if len(out) == topK {
			break
		}
	}
	return out, nil
}

func inScope(r ChunkRecord, opts *SearchOptions) bool {
	if opts == nil {
		return true
	}
	if opts.EventID != "" {
		return r.EventID == opts.EventID
	}
	if len(opts.Tickers) > 0 {
		for _, t := range opts.Tickers {
			if strings.EqualFold(t, r.Ticker) {
				return true
			}
		}
		return false
	}
	return true
}

func (m *mockVectorStore) DeleteStale(ctx context.Context, transcriptID string, keep []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ops = append(m.ops, "delete_stale")

	keepSet := make(map[string]bool, len(keep))
	for _, id := range keep {
		keepSet[id] = true
	}
	for id, r := range m.records {
		if r.TranscriptID == transcriptID && !keepSet[id] {
			delete(m.records, id)
		}
	}
	return nil
}

func (m *mockVectorStore) DeleteTranscript(ctx context.Context, transcriptID string) error {
	return m.DeleteStale(ctx, transcriptID, nil)
}

func (m *mockVectorStore) GetStats(ctx context.Context) (map[string]interface{}, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return map[string]interface{}{"row_count": len(m.records)}, nil
}

func (m *mockVectorStore) Close() error { return nil }

func (m *mockVectorStore) sortedLocked() []ChunkRecord {
	out := make([]ChunkRecord, 0, len(m.records))
	for _, r := range m.records {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TranscriptID != out[j].TranscriptID {
			return out[i].TranscriptID < out[j].TranscriptID
		}
		return out[i].Index < out[j].Index
	})
	return out
}

func (m *mockVectorStore) all() []ChunkRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sortedLocked()
}

// mapCache is an in-memory Cache
type mapCache struct {
	mu     sync.Mutex
	data   map[string][]float32
	getErr error
	sets   int
}

func newMapCache() *mapCache {
	return &mapCache{data: make(map[string][]float32)}
}

func (c *mapCache) Get(ctx context.Context, key string) ([]float32, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return nil, false, c.getErr
	}
	v, ok := c.data[key]
	return v, ok, nil
}

func (c *mapCache) Set(ctx context.Context, key string, vector []float32) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sets++
	c.data[key] = vector
	return nil
}
