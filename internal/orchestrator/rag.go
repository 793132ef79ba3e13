package orchestrator

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/Yates-Labs/reseek/internal/engine"
	"github.com/Yates-Labs/reseek/internal/llm"
	"github.com/Yates-Labs/reseek/internal/logger"
	"github.com/Yates-Labs/reseek/internal/rag"
	"github.com/Yates-Labs/reseek/internal/summary"
)

const (
	// NoScopeMessage answers a question asked without an event or tickers.
	NoScopeMessage = "Please specify either an event or watchlist to query."

	// ApologyMessage replaces the answer when retrieval or completion fails.
	ApologyMessage = "I encountered an error processing your question. Please try again."
)

const answerSystemPrompt = `You are a financial research assistant answering questions about earnings calls.

Rules:
- Answer ONLY from the supplied context. Do not use outside knowledge.
- If the context does not contain the answer, say that the transcript does not cover it.
- Support every factual claim with a citation in exactly this form: [quote "<verbatim text from the context>", ts <HH:MM:SS>]
- The quote must be copied verbatim from the context and must not contain double quotes.
- Use the timestamp shown in brackets before the excerpt you are quoting.
- Be concise: a short paragraph or a few bullet points.`

var citationPattern = regexp.MustCompile(`\[quote\s+"([^"]+)",\s*ts\s+(\d{2}:\d{2}:\d{2})\]`)

// Scope restricts retrieval to one event or a set of tickers. EventID wins
// when both are set.
type Scope struct {
	EventID string   `json:"event_id,omitempty"`
	Tickers []string `json:"tickers,omitempty"`
}

func (s Scope) empty() bool {
	return strings.TrimSpace(s.EventID) == "" && len(rag.NormalizeTickers(s.Tickers)) == 0
}

// ChunkRetriever finds the chunks nearest to a query. *rag.Retriever
// satisfies it.
type ChunkRetriever interface {
	RetrieveForQuery(ctx context.Context, query string, topK int, opts *rag.SearchOptions) ([]rag.ContextChunk, error)
}

// SummarySource looks up an event's stored summary. A missing summary may be
// reported as (nil, nil) or as an error; both mean "no summary".
type SummarySource interface {
	GetSummary(ctx context.Context, eventID string) (*summary.Summary, error)
}

// Deps are the collaborators of an Orchestrator. Summaries may be nil.
type Deps struct {
	Retriever ChunkRetriever
	Completer llm.Completer
	Summaries SummarySource
	Log       *logger.Logger
}

// Options tune retrieval and answer generation.
type Options struct {
	EventTopK    int
	TickerTopK   int
	Temperature  float64
	MaxTokens    int
	MaxSources   int
	PreviewChars int
}

func DefaultOptions() Options {
	return Options{
		EventTopK:    5,
		TickerTopK:   10,
		Temperature:  0.3,
		MaxTokens:    1000,
		MaxSources:   3,
		PreviewChars: 200,
	}
}

// Orchestrator answers questions from retrieved transcript chunks and
// attaches citations that point back at those chunks.
type Orchestrator struct {
	retriever ChunkRetriever
	completer llm.Completer
	summaries SummarySource
	log       *logger.Logger
	opts      Options
}

func New(deps Deps, opts Options) (*Orchestrator, error) {
	if deps.Retriever == nil {
		return nil, fmt.Errorf("retriever cannot be nil")
	}
	if deps.Completer == nil {
		return nil, fmt.Errorf("completer cannot be nil")
	}
	if deps.Log == nil {
		deps.Log = logger.Nop()
	}

	def := DefaultOptions()
	if opts.EventTopK <= 0 {
		opts.EventTopK = def.EventTopK
	}
	if opts.TickerTopK <= 0 {
		opts.TickerTopK = def.TickerTopK
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = def.MaxTokens
	}
	if opts.MaxSources <= 0 {
		opts.MaxSources = def.MaxSources
	}
	if opts.PreviewChars <= 0 {
		opts.PreviewChars = def.PreviewChars
	}

	return &Orchestrator{
		retriever: deps.Retriever,
		completer: deps.Completer,
		summaries: deps.Summaries,
		log:       deps.Log.With("component", "orchestrator"),
		opts:      opts,
	}, nil
}

// Answer never returns an error. A missing scope yields NoScopeMessage
// without calling any capability; a retrieval or completion failure yields
// ApologyMessage with no citations.
func (o *Orchestrator) Answer(ctx context.Context, question string, scope Scope) engine.Answer {
	if scope.empty() {
		return newAnswer(NoScopeMessage, nil, nil)
	}

	var (
		opts *rag.SearchOptions
		topK int
	)
	eventID := strings.TrimSpace(scope.EventID)
	if eventID != "" {
		opts, topK = &rag.SearchOptions{EventID: eventID}, o.opts.EventTopK
	} else {
		opts, topK = &rag.SearchOptions{Tickers: rag.NormalizeTickers(scope.Tickers)}, o.opts.TickerTopK
	}

	chunks, err := o.retriever.RetrieveForQuery(ctx, question, topK, opts)
	if err != nil {
		o.log.Error("retrieval failed", "event_id", eventID, "tickers", opts.Tickers, "error", err)
		return newAnswer(ApologyMessage, nil, nil)
	}

	var sum *summary.Summary
	if eventID != "" {
		sum = o.lookupSummary(ctx, eventID)
	}

	messages := []llm.Message{
		llm.System(answerSystemPrompt),
		llm.User(fmt.Sprintf("Context:\n%s\n\nQuestion: %s", BuildContext(chunks, sum), question)),
	}
	sources := o.sources(chunks)

	text, err := o.completer.Complete(ctx, messages, llm.Params{
		Temperature: o.opts.Temperature,
		MaxTokens:   o.opts.MaxTokens,
	})
	if err != nil {
		o.log.Error("answer generation failed", "event_id", eventID, "error", err)
		return newAnswer(ApologyMessage, nil, sources)
	}

	citations := ExtractCitations(text, chunks)
	o.log.Debug("answered question", "event_id", eventID, "chunks", len(chunks), "citations", len(citations))
	return newAnswer(text, citations, sources)
}

// SuggestQuestions returns starter questions for an event: five when it has
// a summary, three generic ones otherwise.
func (o *Orchestrator) SuggestQuestions(ctx context.Context, eventID string) []string {
	if o.lookupSummary(ctx, eventID) == nil {
		return []string{
			"What were the key financial highlights?",
			"What guidance did management provide?",
			"What were the main topics discussed in Q&A?",
		}
	}
	return []string{
		"What drove the revenue growth this quarter?",
		"What is the outlook for next quarter?",
		"What did management say about profitability?",
		"Were there any new product announcements?",
		"What questions did analysts ask?",
	}
}

func (o *Orchestrator) lookupSummary(ctx context.Context, eventID string) *summary.Summary {
	if o.summaries == nil || strings.TrimSpace(eventID) == "" {
		return nil
	}
	sum, err := o.summaries.GetSummary(ctx, eventID)
	if err != nil {
		o.log.Debug("no summary for event", "event_id", eventID, "error", err)
		return nil
	}
	return sum
}

func (o *Orchestrator) sources(chunks []rag.ContextChunk) []engine.Source {
	n := min(len(chunks), o.opts.MaxSources)
	out := make([]engine.Source, n)
	for i, c := range chunks[:n] {
		out[i] = engine.Source{
			ChunkID:   c.ChunkID,
			EventID:   c.EventID,
			Text:      truncateRunes(c.Text, o.opts.PreviewChars) + "...",
			Timestamp: c.StartTime,
		}
	}
	return out
}

func newAnswer(text string, citations []engine.Citation, sources []engine.Source) engine.Answer {
	if citations == nil {
		citations = []engine.Citation{}
	}
	if sources == nil {
		sources = []engine.Source{}
	}
	return engine.Answer{
		Text:      text,
		Citations: citations,
		Sources:   sources,
		Version:   engine.SchemaVersion,
	}
}

// BuildContext renders the summary bullets, if any, followed by every chunk
// as "[timestamp] speaker: text" in rank order.
func BuildContext(chunks []rag.ContextChunk, sum *summary.Summary) string {
	var parts []string

	if bullets := sum.Bullets(); len(bullets) > 0 {
		parts = append(parts, "=== SUMMARY ===")
		for _, b := range bullets {
			parts = append(parts, "- "+b)
		}
		parts = append(parts, "")
	}

	parts = append(parts, "=== RELEVANT TRANSCRIPT EXCERPTS ===")
	for _, c := range chunks {
		parts = append(parts,
			fmt.Sprintf("[%s] %s: %s", orDefault(c.StartTime, "unknown"), orDefault(c.Speaker, "Speaker"), c.Text),
			"",
		)
	}
	return strings.Join(parts, "\n")
}

// ExtractCitations parses every citation markup in answer, in order. Each is
// resolved to the first chunk whose start time equals the citation's
// timestamp or whose text contains the first 50 characters of the quote.
// Unresolved citations are kept with nil chunk and event IDs.
func ExtractCitations(answer string, chunks []rag.ContextChunk) []engine.Citation {
	matches := citationPattern.FindAllStringSubmatch(answer, -1)
	citations := make([]engine.Citation, 0, len(matches))

	for _, m := range matches {
		quote, ts := m[1], m[2]
		c := engine.Citation{Quote: quote, Timestamp: ts}

		prefix := truncateRunes(quote, 50)
		for _, chunk := range chunks {
			if (chunk.StartTime != nil && *chunk.StartTime == ts) || strings.Contains(chunk.Text, prefix) {
				c.ChunkID = optional(chunk.ChunkID)
				c.EventID = optional(chunk.EventID)
				break
			}
		}
		citations = append(citations, c)
	}
	return citations
}
