package rag

import (
	"context"
	"errors"
	"os"
	"testing"
)

func TestMilvusStore_EmptyRecords(t *testing.T) {
	store := &MilvusStore{config: DefaultMilvusConfig()}

	err := store.Insert(context.Background(), []ChunkRecord{})
	if !errors.Is(err, ErrEmptyRecords) {
		t.Errorf("Expected ErrEmptyRecords, got: %v", err)
	}
}

func TestMilvusStore_InsertValidation(t *testing.T) {
	config := DefaultMilvusConfig()
	config.Dimension = 4
	store := &MilvusStore{config: config}
	ctx := context.Background()

	err := store.Insert(ctx, []ChunkRecord{{TranscriptID: "t1", Embedding: make([]float32, 4)}})
	if !errors.Is(err, ErrMissingMetadata) {
		t.Errorf("missing chunk_id: expected ErrMissingMetadata, got %v", err)
	}

	err = store.Insert(ctx, []ChunkRecord{{ChunkID: "c1", TranscriptID: "t1", Embedding: make([]float32, 3)}})
	if !errors.Is(err, ErrInvalidDimension) {
		t.Errorf("wrong dimension: expected ErrInvalidDimension, got %v", err)
	}
}

func TestMilvusStore_SearchDimensionMismatch(t *testing.T) {
	config := DefaultMilvusConfig()
	config.Dimension = 4
	store := &MilvusStore{config: config}

	_, err := store.Search(context.Background(), make([]float32, 8), 5, nil)
	if !errors.Is(err, ErrInvalidDimension) {
		t.Errorf("Expected ErrInvalidDimension, got %v", err)
	}
}

func TestDefaultMilvusConfig(t *testing.T) {
	config := DefaultMilvusConfig()

	if config.Address == "" {
		t.Error("Expected non-empty address")
	}
	if config.CollectionName != "reseek_chunks" {
		t.Errorf("Expected collection reseek_chunks, got %s", config.CollectionName)
	}
	if config.Dimension != 3072 {
		t.Errorf("Expected dimension 3072, got %d", config.Dimension)
	}
	if config.M != 16 || config.EfConstruction != 256 {
		t.Errorf("Expected HNSW M=16 efConstruction=256, got M=%d efConstruction=%d", config.M, config.EfConstruction)
	}
}

func TestQuoteList(t *testing.T) {
	got := quoteList([]string{"AAPL", `we"ird`})
	want := `["AAPL", "we\"ird"]`
	if got != want {
		t.Errorf("quoteList() = %s, want %s", got, want)
	}
	if got := quoteList(nil); got != "[]" {
		t.Errorf("quoteList(nil) = %s, want []", got)
	}
}

func TestOptionalAndDeref(t *testing.T) {
	if optional("") != nil {
		t.Error("optional(\"\") should be nil")
	}
	p := optional("00:01:02")
	if p == nil || *p != "00:01:02" {
		t.Errorf("optional() = %v", p)
	}
	if deref(nil) != "" {
		t.Error("deref(nil) should be empty")
	}
	if deref(p) != "00:01:02" {
		t.Errorf("deref() = %q", deref(p))
	}
}

func unitVector(dim, hot int) []float32 {
	v := make([]float32, dim)
	v[hot%dim] = 1
	return v
}

// Integration test against a live Milvus: insert, scoped search, stale delete.
func TestMilvusStore_Integration_FullWorkflow(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}
	address := os.Getenv("MILVUS_ADDRESS")
	if address == "" {
		t.Skip("MILVUS_ADDRESS not set")
	}

	ctx := context.Background()
	config := DefaultMilvusConfig()
	config.Address = address
	config.Dimension = 8
	config.CollectionName = "reseek_test_integration"

	store, err := NewMilvusStore(ctx, config)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	defer store.Close()

	_ = store.DeleteTranscript(ctx, "tr-aapl")
	_ = store.DeleteTranscript(ctx, "tr-msft")

	ts := "00:15:30"
	records := []ChunkRecord{
		{ChunkID: "c-aapl-0", TranscriptID: "tr-aapl", EventID: "ev-aapl", Ticker: "AAPL", Index: 0, Text: "Revenue grew 25%", StartTime: &ts, Embedding: unitVector(8, 0)},
		{ChunkID: "c-aapl-1", TranscriptID: "tr-aapl", EventID: "ev-aapl", Ticker: "AAPL", Index: 1, Text: "Margins expanded", Embedding: unitVector(8, 1)},
		{ChunkID: "c-msft-0", TranscriptID: "tr-msft", EventID: "ev-msft", Ticker: "MSFT", Index: 0, Text: "Cloud revenue", Embedding: unitVector(8, 0)},
	}
	if err := store.Insert(ctx, records); err != nil {
		t.Fatalf("failed to insert: %v", err)
	}
	if err := store.Flush(ctx); err != nil {
		t.Fatalf("failed to flush: %v", err)
	}

	results, err := store.Search(ctx, unitVector(8, 0), 5, &SearchOptions{EventID: "ev-aapl"})
	if err != nil {
		t.Fatalf("failed to search: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("expected search results, got none")
	}
	for _, r := range results {
		if r.EventID != "ev-aapl" {
			t.Errorf("event-scoped search returned event %s", r.EventID)
		}
	}
	if results[0].ChunkID != "c-aapl-0" {
		t.Errorf("expected c-aapl-0 first, got %s", results[0].ChunkID)
	}
	if results[0].StartTime == nil || *results[0].StartTime != ts {
		t.Errorf("expected start time %s, got %v", ts, results[0].StartTime)
	}
	if results[1].StartTime != nil {
		t.Errorf("expected nil start time, got %v", *results[1].StartTime)
	}

	tickerResults, err := store.Search(ctx, unitVector(8, 0), 5, &SearchOptions{Tickers: []string{"msft"}})
	if err != nil {
		t.Fatalf("failed to search by ticker: %v", err)
	}
	for _, r := range tickerResults {
		if r.Ticker != "MSFT" {
			t.Errorf("ticker-scoped search returned ticker %s", r.Ticker)
		}
	}

	if err := store.DeleteStale(ctx, "tr-aapl", []string{"c-aapl-1"}); err != nil {
		t.Fatalf("failed to delete stale: %v", err)
	}
	after, err := store.Search(ctx, unitVector(8, 0), 5, &SearchOptions{EventID: "ev-aapl"})
	if err != nil {
		t.Fatalf("failed to search after delete: %v", err)
	}
	for _, r := range after {
		if r.ChunkID == "c-aapl-0" {
			t.Error("stale chunk c-aapl-0 still returned after DeleteStale")
		}
	}

	_ = store.DeleteTranscript(ctx, "tr-aapl")
	_ = store.DeleteTranscript(ctx, "tr-msft")
}
