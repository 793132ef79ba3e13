package summary

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Yates-Labs/reseek/internal/llm"
	"github.com/Yates-Labs/reseek/internal/logger"
)

const (
	extractiveTemperature  = 0.3
	abstractiveTemperature = 0.4
	passMaxTokens          = 3000
)

// Options tune the summarizer.
type Options struct {
	// CharBudget is how many leading characters of the transcript the
	// extractive pass sees.
	CharBudget int

	// Timeout bounds each pass. Zero disables the limit.
	Timeout time.Duration
}

func DefaultOptions() Options {
	return Options{
		CharBudget: 15000,
		Timeout:    60 * time.Second,
	}
}

// Summarizer runs the extractive then abstractive passes. Neither pass
// returns an error: failures degrade to empty results and are logged.
type Summarizer struct {
	llm  llm.Completer
	log  *logger.Logger
	opts Options
}

func New(completer llm.Completer, log *logger.Logger, opts Options) *Summarizer {
	if log == nil {
		log = logger.Nop()
	}
	if opts.CharBudget <= 0 {
		opts.CharBudget = DefaultOptions().CharBudget
	}
	return &Summarizer{llm: completer, log: log, opts: opts}
}

// Summarize runs both passes in sequence. The abstractive pass only sees the
// quotes returned by the extractive pass.
func (s *Summarizer) Summarize(ctx context.Context, transcript string) Summary {
	quotes := s.Extractive(ctx, transcript)
	abstract := s.Abstractive(ctx, quotes)

	return Summary{
		Quicktake:        abstract.Quicktake,
		GuidanceTable:    abstract.GuidanceTable,
		DeltaAnalysis:    abstract.DeltaAnalysis,
		ExtractiveQuotes: quotes,
	}
}

// Extractive asks for verbatim quotes from the first CharBudget characters of
// transcript. Any failure yields an empty list.
func (s *Summarizer) Extractive(ctx context.Context, transcript string) []Quote {
	prefix := truncateRunes(transcript, s.opts.CharBudget)
	if strings.TrimSpace(prefix) == "" {
		return []Quote{}
	}

	response, err := s.complete(ctx, []llm.Message{
		llm.System(extractiveSystemPrompt),
		llm.User(extractiveUserPrompt(prefix)),
	}, extractiveTemperature)
	if err != nil {
		s.log.Error("extractive pass failed", "error", err)
		return []Quote{}
	}

	quotes, err := parseQuotes(response)
	if err != nil {
		s.log.Error("extractive pass returned malformed output", "error", err)
		return []Quote{}
	}

	haystack := normalize(prefix)
	unverified := 0
	for i := range quotes {
		quotes[i].Verified = strings.Contains(haystack, normalize(quotes[i].QuoteText))
		if !quotes[i].Verified {
			unverified++
		}
	}
	if unverified > 0 {
		s.log.Warn("extractive quotes not found verbatim in transcript", "unverified", unverified, "total", len(quotes))
	}

	return quotes
}

// Abstractive synthesizes highlights, guidance and deltas from quotes. With
// no quotes there is nothing to ground on and the defaults are returned
// without calling the model.
func (s *Summarizer) Abstractive(ctx context.Context, quotes []Quote) Abstract {
	if len(quotes) == 0 {
		return EmptyAbstract()
	}

	prompt, err := abstractiveUserPrompt(quotes)
	if err != nil {
		s.log.Error("failed to serialize quotes", "error", err)
		return EmptyAbstract()
	}

	response, err := s.complete(ctx, []llm.Message{
		llm.System(abstractiveSystemPrompt),
		llm.User(prompt),
	}, abstractiveTemperature)
	if err != nil {
		s.log.Error("abstractive pass failed", "error", err)
		return EmptyAbstract()
	}

	abstract, err := parseAbstract(response)
	if err != nil {
		s.log.Error("abstractive pass returned malformed output", "error", err)
		return EmptyAbstract()
	}
	return abstract
}

func (s *Summarizer) complete(ctx context.Context, messages []llm.Message, temperature float64) (string, error) {
	if s.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()
	}
	return s.llm.Complete(ctx, messages, llm.Params{
		Temperature: temperature,
		MaxTokens:   passMaxTokens,
	})
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

func normalize(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
