package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"

	"github.com/Yates-Labs/reseek/internal/apperr"
	"github.com/Yates-Labs/reseek/internal/config"
	"github.com/Yates-Labs/reseek/internal/engine"
	"github.com/Yates-Labs/reseek/internal/llm"
	"github.com/Yates-Labs/reseek/internal/logger"
	"github.com/Yates-Labs/reseek/internal/provider"
	"github.com/Yates-Labs/reseek/internal/qa"
	"github.com/Yates-Labs/reseek/internal/rag"
	"github.com/Yates-Labs/reseek/internal/store"
	"github.com/Yates-Labs/reseek/internal/summary"
	"github.com/Yates-Labs/reseek/internal/tokenizer"
	"github.com/Yates-Labs/reseek/internal/transcript"
)

// SourceManual marks events ingested from a local file.
const SourceManual = "manual"

// ErrNoDatabase is returned by operations that need persisted transcripts
// when no database is configured.
var ErrNoDatabase = fmt.Errorf("%w: operation requires a database", apperr.ErrInvalidConfiguration)

// Components are the collaborators a Pipeline is assembled from. Store may
// be nil, in which case nothing is persisted beyond the vector index.
type Components struct {
	Tokenizer tokenizer.Tokenizer
	Embedder  rag.Embedder
	Vectors   rag.VectorStore
	Completer llm.Completer
	Store     *store.Store
	Provider  provider.Provider
}

// Pipeline ties ingestion, analysis and question answering together.
type Pipeline struct {
	cfg        config.Config
	log        *logger.Logger
	tok        tokenizer.Tokenizer
	vectors    rag.VectorStore
	indexer    *rag.Indexer
	summarizer *summary.Summarizer
	answers    *Orchestrator
	summaries  *summaryBook
	store      *store.Store
	provider   provider.Provider
	closers    []io.Closer
}

// IngestResult reports what one transcript ingestion produced. It is
// returned alongside an error when only part of the work succeeded.
type IngestResult struct {
	EventID      string           `json:"event_id"`
	TranscriptID string           `json:"transcript_id"`
	Ticker       string           `json:"ticker"`
	Chunks       int              `json:"chunks"`
	FailedChunks []int            `json:"failed_chunks,omitempty"`
	Exchanges    []qa.Exchange    `json:"exchanges"`
	Summary      *summary.Summary `json:"summary,omitempty"`
}

// NewPipeline builds every component named by cfg. Whatever was opened is
// closed again if a later component fails.
func NewPipeline(ctx context.Context, cfg config.Config, log *logger.Logger) (p *Pipeline, err error) {
	if log == nil {
		log = logger.Nop()
	}

	var closers []io.Closer
	defer func() {
		if err != nil {
			closeAll(closers, log)
		}
	}()

	tok, err := tokenizer.New(cfg.Chunking.Tokenizer)
	if err != nil {
		return nil, err
	}

	openai, err := rag.NewOpenAIEmbedder(cfg.OpenAIAPIKey, cfg.EmbeddingModel, cfg.EmbeddingDimension)
	if err != nil {
		return nil, err
	}
	var embedder rag.Embedder = rag.NewTimeoutEmbedder(openai, cfg.CallTimeout)
	if cfg.RedisURL != "" {
		cache, err := rag.NewRedisCache(ctx, cfg.RedisURL, cfg.EmbedCacheTTL)
		if err != nil {
			return nil, err
		}
		closers = append(closers, cache)
		embedder = rag.NewCachedEmbedder(embedder, cache, log)
	}

	var st *store.Store
	if cfg.DatabaseURL != "" {
		st, err = store.Open(cfg.DatabaseURL, log)
		if err != nil {
			return nil, err
		}
		closers = append(closers, st)
		if err := st.AutoMigrate(ctx); err != nil {
			return nil, err
		}
	}

	var vectors rag.VectorStore
	switch cfg.VectorBackend {
	case config.VectorBackendPgVector:
		if st == nil {
			return nil, fmt.Errorf("%w: the pgvector backend needs DATABASE_URL", apperr.ErrInvalidConfiguration)
		}
		vectors, err = store.NewPgVectorStore(ctx, st.DB(), cfg.EmbeddingDimension, log)
	default:
		mc := rag.DefaultMilvusConfig()
		mc.Address = cfg.Milvus.Address
		mc.CollectionName = cfg.Milvus.CollectionName
		mc.Dimension = cfg.EmbeddingDimension
		if cfg.Milvus.M > 0 {
			mc.M = cfg.Milvus.M
		}
		if cfg.Milvus.EfConstruction > 0 {
			mc.EfConstruction = cfg.Milvus.EfConstruction
		}
		vectors, err = rag.NewMilvusStore(ctx, mc)
	}
	if err != nil {
		return nil, err
	}
	closers = append(closers, vectors)

	completer, err := NewCompleter(cfg)
	if err != nil {
		return nil, err
	}

	prov, err := NewProvider(cfg, log)
	if err != nil {
		return nil, err
	}

	p, err = NewPipelineFromComponents(cfg, Components{
		Tokenizer: tok,
		Embedder:  embedder,
		Vectors:   vectors,
		Completer: completer,
		Store:     st,
		Provider:  prov,
	}, log)
	if err != nil {
		return nil, err
	}
	p.closers = closers
	return p, nil
}

// NewPipelineFromComponents assembles a Pipeline from ready-made parts.
func NewPipelineFromComponents(cfg config.Config, c Components, log *logger.Logger) (*Pipeline, error) {
	if log == nil {
		log = logger.Nop()
	}
	if c.Tokenizer == nil || c.Embedder == nil || c.Vectors == nil || c.Completer == nil || c.Provider == nil {
		return nil, fmt.Errorf("%w: pipeline is missing a component", apperr.ErrInvalidConfiguration)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	indexer, err := rag.NewIndexer(c.Embedder, c.Vectors, log, cfg.EmbedConcurrency)
	if err != nil {
		return nil, err
	}
	retriever, err := rag.NewRetriever(c.Embedder, c.Vectors)
	if err != nil {
		return nil, err
	}

	book := &summaryBook{store: c.Store, mem: make(map[string]*summary.Summary)}
	answers, err := New(Deps{
		Retriever: retriever,
		Completer: c.Completer,
		Summaries: book,
		Log:       log,
	}, DefaultOptions())
	if err != nil {
		return nil, err
	}

	return &Pipeline{
		cfg:        cfg,
		log:        log.With("component", "pipeline"),
		tok:        c.Tokenizer,
		vectors:    c.Vectors,
		indexer:    indexer,
		summarizer: summary.New(c.Completer, log, summary.Options{Timeout: cfg.CallTimeout}),
		answers:    answers,
		summaries:  book,
		store:      c.Store,
		provider:   c.Provider,
	}, nil
}

// NewCompleter builds the completion client for cfg.LLMProvider.
func NewCompleter(cfg config.Config) (llm.Completer, error) {
	key := cfg.OpenAIAPIKey
	if cfg.LLMProvider == config.LLMProviderAnthropic {
		key = cfg.AnthropicAPIKey
	}
	return llm.New(llm.Config{
		Provider: cfg.LLMProvider,
		Model:    cfg.CompletionModel,
		APIKey:   key,
		Timeout:  cfg.CallTimeout,
	})
}

// NewProvider builds the transcript provider named by cfg.Provider.
func NewProvider(cfg config.Config, log *logger.Logger) (provider.Provider, error) {
	if cfg.Provider == config.ProviderFinnhub {
		return provider.NewFinnhubProvider(cfg.FinnhubAPIKey, log)
	}
	return provider.NewFixtureProvider(time.Now()), nil
}

func (p *Pipeline) Store() *store.Store { return p.store }

func (p *Pipeline) Provider() provider.Provider { return p.provider }

func (p *Pipeline) Orchestrator() *Orchestrator { return p.answers }

func (p *Pipeline) Tokenizer() tokenizer.Tokenizer { return p.tok }

// Close releases every connection the pipeline opened.
func (p *Pipeline) Close() error {
	var errs []error
	for i := len(p.closers) - 1; i >= 0; i-- {
		if err := p.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	p.closers = nil
	return errors.Join(errs...)
}

func closeAll(closers []io.Closer, log *logger.Logger) {
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i].Close(); err != nil {
			log.Warn("failed to close component", "error", err)
		}
	}
}

// UpcomingEvents lists the provider's scheduled calls for tickers and, when
// a database is configured, records them.
func (p *Pipeline) UpcomingEvents(ctx context.Context, tickers []string) ([]provider.EventInfo, error) {
	events, err := p.provider.FetchUpcoming(ctx, tickers)
	if err != nil {
		return nil, err
	}
	if p.store == nil {
		return events, nil
	}
	return events, RecordUpcoming(ctx, p.store, p.provider.Name(), events)
}

// RecordUpcoming upserts events as upcoming. Events that already completed
// keep their status.
func RecordUpcoming(ctx context.Context, st *store.Store, source string, events []provider.EventInfo) error {
	for _, ev := range events {
		if existing, err := st.GetEventByProviderID(ctx, ev.ProviderEventID); err == nil && existing.Status == store.EventStatusCompleted {
			continue
		}
		if err := st.UpsertEvent(ctx, eventRow(ev, source, store.EventStatusUpcoming)); err != nil {
			return err
		}
	}
	return nil
}

// IngestProviderEvent fetches one transcript from the provider and ingests it.
func (p *Pipeline) IngestProviderEvent(ctx context.Context, providerEventID string) (*IngestResult, error) {
	data, err := p.provider.FetchTranscript(ctx, providerEventID)
	if err != nil {
		return nil, err
	}
	return p.IngestTranscript(ctx, p.provider.Name(), *data)
}

// ManualTranscript wraps local transcript text as provider data.
func ManualTranscript(ticker, text string, date time.Time) provider.TranscriptData {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	return provider.TranscriptData{
		EventInfo: provider.EventInfo{
			Ticker:          ticker,
			CompanyName:     ticker,
			EventDate:       date.UTC(),
			ProviderEventID: manualEventID(ticker, date),
		},
		Text:     text,
		Metadata: map[string]string{"source": SourceManual},
	}
}

// IngestTranscript stores the transcript, then indexes its chunks while the
// Q&A exchanges and summary are produced. Indexing and analysis do not
// cancel each other; their errors are joined.
func (p *Pipeline) IngestTranscript(ctx context.Context, source string, data provider.TranscriptData) (*IngestResult, error) {
	if strings.TrimSpace(data.Text) == "" {
		return nil, fmt.Errorf("%w: transcript text is empty", apperr.ErrInvalidConfiguration)
	}
	if strings.TrimSpace(data.Ticker) == "" {
		return nil, fmt.Errorf("%w: transcript has no ticker", apperr.ErrInvalidConfiguration)
	}
	if data.ProviderEventID == "" {
		data.ProviderEventID = manualEventID(data.Ticker, data.EventDate)
	}

	eventID, transcriptID, err := p.saveTranscript(ctx, source, data)
	if err != nil {
		return nil, err
	}

	log := p.log.With("event_id", eventID, "ticker", data.Ticker)
	result := &IngestResult{
		EventID:      eventID.String(),
		TranscriptID: transcriptID.String(),
		Ticker:       strings.ToUpper(data.Ticker),
	}

	chunks, err := transcript.Segment(p.tok, data.Text, p.cfg.Chunking.MaxTokens, p.cfg.Chunking.Overlap)
	if err != nil {
		return result, err
	}

	var (
		g           errgroup.Group
		indexErr    error
		analysisErr error
	)

	g.Go(func() error {
		indexErr = p.index(ctx, result, eventID, transcriptID, chunks)
		return indexErr
	})

	g.Go(func() error {
		result.Exchanges = qa.Extract(data.Text)
		sum := p.summarizer.Summarize(ctx, data.Text)
		result.Summary = &sum
		p.summaries.put(result.EventID, &sum)

		if p.store == nil {
			return nil
		}
		if err := p.store.ReplaceQA(ctx, eventID, result.Exchanges); err != nil {
			analysisErr = err
			return err
		}
		analysisErr = p.store.ReplaceSummary(ctx, eventID, p.cfg.CompletionModel, &sum)
		return analysisErr
	})

	_ = g.Wait()

	if err := errors.Join(indexErr, analysisErr); err != nil {
		log.Error("ingestion finished with errors", "error", err)
		return result, err
	}
	log.Info("ingested transcript",
		"chunks", result.Chunks,
		"failed_chunks", len(result.FailedChunks),
		"exchanges", len(result.Exchanges),
		"quotes", len(result.Summary.ExtractiveQuotes),
	)
	return result, nil
}

func (p *Pipeline) saveTranscript(ctx context.Context, source string, data provider.TranscriptData) (uuid.UUID, uuid.UUID, error) {
	eventID := eventIDFor(data.ProviderEventID)
	transcriptID := transcriptIDFor(eventID)
	if p.store == nil {
		return eventID, transcriptID, nil
	}

	ev := eventRow(data.EventInfo, source, store.EventStatusCompleted)
	if err := p.store.UpsertEvent(ctx, ev); err != nil {
		return uuid.Nil, uuid.Nil, err
	}

	meta, err := json.Marshal(data.Metadata)
	if err != nil {
		return uuid.Nil, uuid.Nil, fmt.Errorf("encode transcript metadata: %w", err)
	}
	if data.Metadata == nil {
		meta = []byte(`{}`)
	}

	t := &store.Transcript{
		ID:       transcriptIDFor(ev.ID),
		EventID:  ev.ID,
		RawText:  data.Text,
		AudioURL: data.AudioURL,
		Metadata: datatypes.JSON(meta),
	}
	if err := p.store.SaveTranscript(ctx, t); err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	return ev.ID, t.ID, nil
}

func (p *Pipeline) index(ctx context.Context, result *IngestResult, eventID, transcriptID uuid.UUID, chunks []transcript.Chunk) error {
	res, err := p.indexer.Index(ctx, rag.TranscriptRef{
		TranscriptID: transcriptID.String(),
		EventID:      eventID.String(),
		Ticker:       result.Ticker,
	}, chunks)
	result.Chunks = len(res.Records)
	result.FailedChunks = res.Failed
	if err != nil {
		return fmt.Errorf("index transcript: %w", err)
	}

	if p.store == nil {
		return nil
	}
	rows := make([]store.TranscriptChunk, 0, len(res.Records))
	for _, r := range res.Records {
		id, err := uuid.Parse(r.ChunkID)
		if err != nil {
			return fmt.Errorf("%w: chunk id %q", store.ErrInvalidID, r.ChunkID)
		}
		rows = append(rows, store.TranscriptChunk{
			ID:             id,
			EventID:        eventID,
			ChunkIndex:     r.Index,
			Text:           r.Text,
			TokenCount:     r.TokenCount,
			StartToken:     r.StartToken,
			EndToken:       r.EndToken,
			StartTime:      r.StartTime,
			Speaker:        r.Speaker,
			EmbeddingModel: p.cfg.EmbeddingModel,
		})
	}
	return p.store.ReplaceChunks(ctx, transcriptID, rows)
}

// CheckNew ingests every transcript the provider reports as new for
// tickers, at most concurrency at a time. One failure does not stop the
// others.
func (p *Pipeline) CheckNew(ctx context.Context, tickers []string, concurrency int) ([]*IngestResult, error) {
	found, err := p.provider.CheckNew(ctx, tickers)
	if err != nil {
		return nil, err
	}
	if concurrency <= 0 {
		concurrency = 1
	}

	results := make([]*IngestResult, len(found))
	var (
		mu   sync.Mutex
		errs []error
		g    errgroup.Group
	)
	g.SetLimit(concurrency)
	for i, data := range found {
		g.Go(func() error {
			res, err := p.IngestTranscript(ctx, p.provider.Name(), data)
			results[i] = res
			if err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", data.ProviderEventID, err))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	return results, errors.Join(errs...)
}

// Resummarize regenerates the summary of a stored event's transcript and
// replaces the previous one.
func (p *Pipeline) Resummarize(ctx context.Context, eventID string) (*summary.Summary, error) {
	if p.store == nil {
		return nil, ErrNoDatabase
	}
	id, err := store.ParseID(eventID)
	if err != nil {
		return nil, err
	}
	t, err := p.store.GetTranscript(ctx, id)
	if err != nil {
		return nil, err
	}

	sum := p.summarizer.Summarize(ctx, t.RawText)
	if err := p.store.ReplaceSummary(ctx, id, p.cfg.CompletionModel, &sum); err != nil {
		return nil, err
	}
	p.summaries.put(id.String(), &sum)
	return &sum, nil
}

// Ask answers question within scope and records the exchange in the chat
// history when a database is configured.
func (p *Pipeline) Ask(ctx context.Context, question string, scope Scope) engine.Answer {
	answer := p.answers.Answer(ctx, question, scope)
	if p.store != nil && answer.Text != NoScopeMessage {
		if err := p.recordChat(ctx, question, scope, answer); err != nil {
			p.log.Warn("failed to record chat history", "error", err)
		}
	}
	return answer
}

func (p *Pipeline) SuggestQuestions(ctx context.Context, eventID string) []string {
	return p.answers.SuggestQuestions(ctx, eventID)
}

func (p *Pipeline) recordChat(ctx context.Context, question string, scope Scope, answer engine.Answer) error {
	tickers, err := json.Marshal(rag.NormalizeTickers(scope.Tickers))
	if err != nil {
		return err
	}
	citations, err := json.Marshal(answer.Citations)
	if err != nil {
		return err
	}

	h := &store.ChatHistory{
		Tickers:   datatypes.JSON(tickers),
		Question:  question,
		Answer:    answer.Text,
		Citations: datatypes.JSON(citations),
	}
	if scope.EventID != "" {
		id, err := store.ParseID(scope.EventID)
		if err != nil {
			return err
		}
		h.EventID = &id
	}
	return p.store.RecordChat(ctx, h)
}

func eventRow(ev provider.EventInfo, source, status string) *store.Event {
	return &store.Event{
		ID:              eventIDFor(ev.ProviderEventID),
		Ticker:          ev.Ticker,
		CompanyName:     ev.CompanyName,
		EventType:       store.EventTypeEarningsCall,
		Status:          status,
		EventDate:       ev.EventDate,
		Quarter:         ev.Quarter,
		FiscalYear:      ev.FiscalYear,
		Provider:        source,
		ProviderEventID: ev.ProviderEventID,
	}
}

// summaryBook serves summaries produced in this process first, then the
// database.
type summaryBook struct {
	store *store.Store

	mu  sync.RWMutex
	mem map[string]*summary.Summary
}

func (b *summaryBook) put(eventID string, sum *summary.Summary) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.mem[eventID] = sum
}

func (b *summaryBook) GetSummary(ctx context.Context, eventID string) (*summary.Summary, error) {
	b.mu.RLock()
	sum, ok := b.mem[eventID]
	b.mu.RUnlock()
	if ok {
		return sum, nil
	}

	if b.store == nil {
		return nil, fmt.Errorf("%w: summary for event %s", apperr.ErrNotFound, eventID)
	}
	id, err := store.ParseID(eventID)
	if err != nil {
		return nil, err
	}
	return b.store.GetSummary(ctx, id)
}
