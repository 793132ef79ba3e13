package orchestrator

import (
	"context"
	"errors"
	"hash/fnv"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Yates-Labs/reseek/internal/apperr"
	"github.com/Yates-Labs/reseek/internal/config"
	"github.com/Yates-Labs/reseek/internal/llm"
	"github.com/Yates-Labs/reseek/internal/logger"
	"github.com/Yates-Labs/reseek/internal/provider"
	"github.com/Yates-Labs/reseek/internal/rag"
	"github.com/Yates-Labs/reseek/internal/tokenizer"
)

const testDimension = 8

type fakeEmbedder struct {
	err error
}

func (e *fakeEmbedder) GetModel() string  { return "fake-embedding" }
func (e *fakeEmbedder) GetDimension() int { return testDimension }

func (e *fakeEmbedder) Embed(ctx context.Context, texts []string) ([]rag.EmbeddingRecord, error) {
	if e.err != nil {
		return nil, e.err
	}
	out := make([]rag.EmbeddingRecord, len(texts))
	for i, text := range texts {
		h := fnv.New32a()
		_, _ = h.Write([]byte(text))
		seed := h.Sum32()
		vec := make([]float32, testDimension)
		for j := range vec {
			vec[j] = float32((seed>>uint(j))&0xff) / 255
		}
		out[i] = rag.EmbeddingRecord{Text: text, Embedding: vec, Index: i, Model: e.GetModel()}
	}
	return out, nil
}

// memoryVectors keeps records in insertion order and returns them unranked.
type memoryVectors struct {
	mu      sync.Mutex
	records []rag.ChunkRecord
}

func (m *memoryVectors) Insert(ctx context.Context, records []rag.ChunkRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, records...)
	return nil
}

func (m *memoryVectors) Flush(ctx context.Context) error { return nil }

func (m *memoryVectors) Search(ctx context.Context, q []float32, topK int, opts *rag.SearchOptions) ([]rag.ContextChunk, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []rag.ContextChunk
	for _, r := range m.records {
		if !inScope(r, opts) {
			continue
		}
		out = append(out, rag.ContextChunk{
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

func inScope(r rag.ChunkRecord, opts *rag.SearchOptions) bool {
	if opts == nil {
		return true
	}
	if opts.EventID != "" {
		return r.EventID == opts.EventID
	}
	for _, t := range opts.Tickers {
		if t == r.Ticker {
			return true
		}
	}
	return len(opts.Tickers) == 0
}

func (m *memoryVectors) DeleteStale(ctx context.Context, transcriptID string, keep []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := make(map[string]bool, len(keep))
	for _, id := range keep {
		kept[id] = true
	}
	out := m.records[:0]
	for _, r := range m.records {
		if r.TranscriptID != transcriptID || kept[r.ChunkID] {
			out = append(out, r)
		}
	}
	m.records = out
	return nil
}

func (m *memoryVectors) DeleteTranscript(ctx context.Context, transcriptID string) error {
	return m.DeleteStale(ctx, transcriptID, nil)
}

func (m *memoryVectors) GetStats(ctx context.Context) (map[string]interface{}, error) {
	return map[string]interface{}{"row_count": m.count()}, nil
}

func (m *memoryVectors) Close() error { return nil }

func (m *memoryVectors) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

const (
	quotesResponse   = `[{"quote": "Revenue grew 25% year-over-year to $50.2 billion", "speaker": "John Smith", "timestamp": "00:01:15"}]`
	abstractResponse = `{"quicktake": [{"bullet": "Revenue up 25% YoY to $50.2B", "timestamp": "00:01:15"}], "guidance": [], "delta_analysis": {"changes": []}}`
	answerResponse   = `Revenue grew strongly [quote "Revenue grew 25% year-over-year to $50.2 billion", ts 00:01:15].`
)

var fixtureClock = time.Date(2024, 10, 16, 15, 0, 0, 0, time.UTC)

func testConfig() config.Config {
	cfg := config.Default()
	cfg.EmbeddingDimension = testDimension
	cfg.EmbedConcurrency = 2
	cfg.Chunking = config.ChunkingSettings{Tokenizer: tokenizer.NameRune, MaxTokens: 400, Overlap: 40}
	return cfg
}

type testPipeline struct {
	*Pipeline
	vectors *memoryVectors
	llm     *llm.MockLLM
}

func newTestPipeline(t *testing.T, embedder rag.Embedder, mock *llm.MockLLM) testPipeline {
	t.Helper()
	vectors := &memoryVectors{}
	p, err := NewPipelineFromComponents(testConfig(), Components{
		Tokenizer: tokenizer.NewRune(),
		Embedder:  embedder,
		Vectors:   vectors,
		Completer: mock,
		Provider:  provider.NewFixtureProvider(fixtureClock),
	}, logger.Nop())
	if err != nil {
		t.Fatalf("NewPipelineFromComponents() error = %v", err)
	}
	t.Cleanup(func() { _ = p.Close() })
	return testPipeline{Pipeline: p, vectors: vectors, llm: mock}
}

func TestNewPipelineFromComponents_MissingComponent(t *testing.T) {
	_, err := NewPipelineFromComponents(testConfig(), Components{
		Tokenizer: tokenizer.NewRune(),
		Embedder:  &fakeEmbedder{},
	}, nil)
	if !errors.Is(err, apperr.ErrInvalidConfiguration) {
		t.Errorf("expected ErrInvalidConfiguration, got %v", err)
	}
}

func TestNewPipelineFromComponents_InvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Chunking.Overlap = cfg.Chunking.MaxTokens

	_, err := NewPipelineFromComponents(cfg, Components{
		Tokenizer: tokenizer.NewRune(),
		Embedder:  &fakeEmbedder{},
		Vectors:   &memoryVectors{},
		Completer: llm.NewMockLLM(""),
		Provider:  provider.NewFixtureProvider(fixtureClock),
	}, nil)
	if !errors.Is(err, apperr.ErrInvalidConfiguration) {
		t.Errorf("expected ErrInvalidConfiguration, got %v", err)
	}
}

func TestPipeline_IngestAndAsk(t *testing.T) {
	mock := &llm.MockLLM{Responses: []string{quotesResponse, abstractResponse}, Response: answerResponse}
	p := newTestPipeline(t, &fakeEmbedder{}, mock)
	ctx := context.Background()

	res, err := p.IngestProviderEvent(ctx, "mock_AAPL_20241017")
	if err != nil {
		t.Fatalf("IngestProviderEvent() error = %v", err)
	}

	if res.EventID != eventIDFor("mock_AAPL_20241017").String() {
		t.Errorf("event id = %s, want the derived id", res.EventID)
	}
	if res.Ticker != "AAPL" {
		t.Errorf("ticker = %s", res.Ticker)
	}
	if res.Chunks == 0 || res.Chunks != p.vectors.count() {
		t.Errorf("chunks = %d, vector store holds %d", res.Chunks, p.vectors.count())
	}
	if len(res.FailedChunks) != 0 {
		t.Errorf("unexpected failed chunks %v", res.FailedChunks)
	}
	if len(res.Exchanges) != 3 {
		t.Fatalf("expected 3 exchanges, got %d", len(res.Exchanges))
	}
	if name := res.Exchanges[0].AnalystName; name == nil || *name != "Michael Chen" {
		t.Errorf("first analyst = %v", name)
	}
	if res.Summary == nil || len(res.Summary.Quicktake) != 1 || len(res.Summary.ExtractiveQuotes) != 1 {
		t.Fatalf("unexpected summary %+v", res.Summary)
	}
	if !res.Summary.ExtractiveQuotes[0].Verified {
		t.Error("quote from the transcript should be verified")
	}
	if mock.CallCount() != 2 {
		t.Errorf("ingestion should make 2 completion calls, got %d", mock.CallCount())
	}

	answer := p.Ask(ctx, "How did revenue do?", Scope{EventID: res.EventID})
	if answer.Text != answerResponse {
		t.Errorf("answer = %q", answer.Text)
	}
	if len(answer.Citations) != 1 {
		t.Fatalf("expected 1 citation, got %+v", answer.Citations)
	}
	if c := answer.Citations[0]; c.ChunkID == nil || c.EventID == nil || *c.EventID != res.EventID {
		t.Errorf("citation should resolve to an ingested chunk, got %+v", c)
	}
	if len(answer.Sources) != 3 {
		t.Errorf("expected 3 sources, got %d", len(answer.Sources))
	}

	call, _ := mock.LastCall()
	if !strings.Contains(call.Messages[1].Content, "- Revenue up 25% YoY to $50.2B") {
		t.Error("event answers should include the summary bullets")
	}

	if got := p.SuggestQuestions(ctx, res.EventID); len(got) != 5 {
		t.Errorf("expected 5 suggestions after ingestion, got %d", len(got))
	}
}

func TestPipeline_ReingestReplacesChunks(t *testing.T) {
	p := newTestPipeline(t, &fakeEmbedder{}, llm.NewMockLLM("[]"))
	ctx := context.Background()

	first, err := p.IngestProviderEvent(ctx, "mock_MSFT_20241017")
	if err != nil {
		t.Fatalf("first ingest: %v", err)
	}
	second, err := p.IngestProviderEvent(ctx, "mock_MSFT_20241017")
	if err != nil {
		t.Fatalf("second ingest: %v", err)
	}

	if first.EventID != second.EventID || first.TranscriptID != second.TranscriptID {
		t.Error("re-ingesting the same event should keep its ids")
	}
	if p.vectors.count() != second.Chunks {
		t.Errorf("vector store holds %d records, want %d", p.vectors.count(), second.Chunks)
	}
}

func TestPipeline_IndexFailureIsPartial(t *testing.T) {
	p := newTestPipeline(t, &fakeEmbedder{err: rag.ErrEmbeddingFailed}, llm.NewMockLLM("[]"))

	res, err := p.IngestProviderEvent(context.Background(), "mock_AAPL_20241017")
	if !errors.Is(err, apperr.ErrCapability) {
		t.Fatalf("expected a capability error, got %v", err)
	}
	if res == nil {
		t.Fatal("expected a partial result")
	}
	if res.Chunks != 0 || len(res.FailedChunks) == 0 {
		t.Errorf("chunks = %d, failed = %v", res.Chunks, res.FailedChunks)
	}
	if len(res.Exchanges) != 3 || res.Summary == nil {
		t.Error("analysis should complete when indexing fails")
	}
}

func TestPipeline_IngestTranscriptValidation(t *testing.T) {
	p := newTestPipeline(t, &fakeEmbedder{}, llm.NewMockLLM("[]"))
	ctx := context.Background()

	if _, err := p.IngestTranscript(ctx, SourceManual, ManualTranscript("AAPL", "  ", fixtureClock)); !errors.Is(err, apperr.ErrInvalidConfiguration) {
		t.Errorf("empty text: got %v", err)
	}
	if _, err := p.IngestTranscript(ctx, SourceManual, ManualTranscript("", "text", fixtureClock)); !errors.Is(err, apperr.ErrInvalidConfiguration) {
		t.Errorf("empty ticker: got %v", err)
	}
}

func TestPipeline_ManualIngest(t *testing.T) {
	p := newTestPipeline(t, &fakeEmbedder{}, llm.NewMockLLM("[]"))

	data := ManualTranscript(" nvda ", provider.SampleTranscript, fixtureClock)
	if data.ProviderEventID != "manual_NVDA_20241016" {
		t.Errorf("provider event id = %s", data.ProviderEventID)
	}

	res, err := p.IngestTranscript(context.Background(), SourceManual, data)
	if err != nil {
		t.Fatalf("IngestTranscript() error = %v", err)
	}
	if res.Ticker != "NVDA" || res.Chunks == 0 {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestPipeline_CheckNew(t *testing.T) {
	p := newTestPipeline(t, &fakeEmbedder{}, llm.NewMockLLM("[]"))
	ctx := context.Background()

	results, err := p.CheckNew(ctx, []string{"aapl", "MSFT"}, 2)
	if err != nil {
		t.Fatalf("CheckNew() error = %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	tickers := []string{results[0].Ticker, results[1].Ticker}
	sort.Strings(tickers)
	if strings.Join(tickers, ",") != "AAPL,MSFT" {
		t.Errorf("tickers = %v", tickers)
	}

	again, err := p.CheckNew(ctx, []string{"AAPL", "MSFT"}, 2)
	if err != nil {
		t.Fatalf("second CheckNew() error = %v", err)
	}
	if len(again) != 0 {
		t.Errorf("transcripts should only be reported once, got %d", len(again))
	}
}

func TestPipeline_UpcomingEventsWithoutStore(t *testing.T) {
	p := newTestPipeline(t, &fakeEmbedder{}, llm.NewMockLLM(""))

	events, err := p.UpcomingEvents(context.Background(), []string{"AAPL", "TSLA"})
	if err != nil {
		t.Fatalf("UpcomingEvents() error = %v", err)
	}
	if len(events) != 2 || events[0].ProviderEventID != "mock_AAPL_20241017" {
		t.Errorf("unexpected events %+v", events)
	}
}

func TestPipeline_ResummarizeNeedsDatabase(t *testing.T) {
	p := newTestPipeline(t, &fakeEmbedder{}, llm.NewMockLLM(""))

	_, err := p.Resummarize(context.Background(), eventIDFor("mock_AAPL_20241017").String())
	if !errors.Is(err, ErrNoDatabase) {
		t.Errorf("expected ErrNoDatabase, got %v", err)
	}
}

func TestEventIDFor(t *testing.T) {
	a := eventIDFor("mock_AAPL_20241017")
	if a != eventIDFor("mock_AAPL_20241017") {
		t.Error("event ids should be deterministic")
	}
	if a == eventIDFor("mock_AAPL_20241024") {
		t.Error("different events should get different ids")
	}
	if transcriptIDFor(a) == a {
		t.Error("transcript id should differ from its event id")
	}
}
