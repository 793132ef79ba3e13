package summary

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/Yates-Labs/reseek/internal/llm"
	"github.com/Yates-Labs/reseek/internal/logger"
)

const sampleTranscript = `[00:01:15] John Smith, CEO: Revenue grew 25% year-over-year to $50.2 billion.
[00:03:42] Sarah Johnson, CFO: Gross margin expanded 200 basis points to 68%.
[00:05:20] John Smith, CEO: Looking ahead to Q4, we expect revenue in the range of $52-54 billion.`

const sampleQuotes = "```json\n" + `[
  {"quote": "Revenue grew 25% year-over-year to $50.2 billion.", "speaker": "John Smith", "timestamp": "00:01:15"},
  {"quote": "Gross margin expanded 200   basis points to 68%.", "speaker": "Sarah Johnson", "timestamp": "00:03:42"},
  {"quote": "We doubled our dividend.", "speaker": "John Smith", "timestamp": null}
]` + "\n```"

const sampleAbstract = `{
  "quicktake": [
    {"bullet": "Revenue up 25% YoY to $50.2B", "timestamp": "00:01:15"},
    "Gross margin +200bps to 68%"
  ],
  "guidance": [
    {"metric": "Revenue", "period": "Q4", "value": "$52-54B", "change": 4.5, "timestamp": "00:05:20"}
  ],
  "delta_analysis": {
    "summary": "Stronger than prior quarter.",
    "changes": [{"topic": "margins", "direction": "up", "detail": "+200bps"}]
  }
}`

func TestSummarize_TwoPasses(t *testing.T) {
	mock := &llm.MockLLM{Responses: []string{sampleQuotes, sampleAbstract}}
	s := New(mock, logger.Nop(), DefaultOptions())

	got := s.Summarize(context.Background(), sampleTranscript)

	if mock.CallCount() != 2 {
		t.Fatalf("expected 2 completion calls, got %d", mock.CallCount())
	}

	extractive := mock.Calls[0]
	if extractive.Params.Temperature != 0.3 || extractive.Params.MaxTokens != 3000 {
		t.Errorf("extractive params = %+v", extractive.Params)
	}
	abstractive := mock.Calls[1]
	if abstractive.Params.Temperature != 0.4 || abstractive.Params.MaxTokens != 3000 {
		t.Errorf("abstractive params = %+v", abstractive.Params)
	}
	if strings.Contains(abstractive.Messages[1].Content, "$52-54 billion") {
		t.Error("abstractive pass must not see the raw transcript")
	}
	if !strings.Contains(abstractive.Messages[1].Content, "We doubled our dividend.") {
		t.Error("abstractive pass should receive the extractive quotes")
	}

	if len(got.ExtractiveQuotes) != 3 {
		t.Fatalf("expected 3 quotes, got %d", len(got.ExtractiveQuotes))
	}
	if !got.ExtractiveQuotes[0].Verified || !got.ExtractiveQuotes[1].Verified {
		t.Error("expected verbatim quotes to be verified")
	}
	if got.ExtractiveQuotes[2].Verified {
		t.Error("expected fabricated quote to be unverified")
	}
	if got.ExtractiveQuotes[2].Timestamp != nil {
		t.Errorf("expected nil timestamp, got %q", *got.ExtractiveQuotes[2].Timestamp)
	}

	if len(got.Quicktake) != 2 {
		t.Fatalf("expected 2 quicktake bullets, got %d", len(got.Quicktake))
	}
	if got.Quicktake[1].Bullet != "Gross margin +200bps to 68%" {
		t.Errorf("string bullet = %q", got.Quicktake[1].Bullet)
	}
	if len(got.GuidanceTable) != 1 || got.GuidanceTable[0].Change != "4.5" {
		t.Errorf("guidance = %+v", got.GuidanceTable)
	}
	if got.DeltaAnalysis.Summary != "Stronger than prior quarter." || len(got.DeltaAnalysis.Changes) != 1 {
		t.Errorf("delta = %+v", got.DeltaAnalysis)
	}
}

func TestExtractive_TruncatesToCharBudget(t *testing.T) {
	mock := llm.NewMockLLM("[]")
	s := New(mock, logger.Nop(), Options{CharBudget: 10})

	s.Extractive(context.Background(), "0123456789ABCDEF")

	call, ok := mock.LastCall()
	if !ok {
		t.Fatal("expected a call")
	}
	user := call.Messages[1].Content
	if !strings.HasSuffix(user, "0123456789") {
		t.Errorf("user prompt should end with the 10-char prefix, got %q", user)
	}
	if strings.Contains(user, "ABCDEF") {
		t.Error("user prompt contains text beyond the budget")
	}
}

func TestExtractive_FailuresReturnEmpty(t *testing.T) {
	tests := []struct {
		name string
		mock *llm.MockLLM
	}{
		{"capability error", llm.NewMockLLMWithError(llm.ErrCompletionFailed)},
		{"not json", llm.NewMockLLM("Here are the quotes you asked for.")},
		{"object without quotes", llm.NewMockLLM(`{"summary": "nope"}`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(tt.mock, logger.Nop(), DefaultOptions())
			got := s.Extractive(context.Background(), sampleTranscript)
			if got == nil || len(got) != 0 {
				t.Errorf("expected empty non-nil list, got %+v", got)
			}
		})
	}
}

func TestExtractive_WrappedQuotes(t *testing.T) {
	mock := llm.NewMockLLM(`{"quotes": [{"quote_text": "Revenue grew 25% year-over-year to $50.2 billion.", "ts": "00:01:15"}]}`)
	s := New(mock, logger.Nop(), DefaultOptions())

	got := s.Extractive(context.Background(), sampleTranscript)
	if len(got) != 1 {
		t.Fatalf("expected 1 quote, got %d", len(got))
	}
	if got[0].Timestamp == nil || *got[0].Timestamp != "00:01:15" {
		t.Errorf("timestamp = %v", got[0].Timestamp)
	}
}

func TestAbstractive_FailuresReturnDefaults(t *testing.T) {
	quotes := []Quote{{QuoteText: "Revenue grew 25%."}}

	tests := []struct {
		name string
		mock *llm.MockLLM
	}{
		{"capability error", llm.NewMockLLMWithError(errors.New("timeout"))},
		{"malformed", llm.NewMockLLM("not json at all")},
		{"array instead of object", llm.NewMockLLM(`["a", "b"]`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(tt.mock, logger.Nop(), DefaultOptions())
			got := s.Abstractive(context.Background(), quotes)
			if got.Quicktake == nil || len(got.Quicktake) != 0 {
				t.Errorf("quicktake = %+v", got.Quicktake)
			}
			if got.GuidanceTable == nil || len(got.GuidanceTable) != 0 {
				t.Errorf("guidance = %+v", got.GuidanceTable)
			}
			if got.DeltaAnalysis.Changes == nil || len(got.DeltaAnalysis.Changes) != 0 || got.DeltaAnalysis.Summary != "" {
				t.Errorf("delta = %+v", got.DeltaAnalysis)
			}
		})
	}
}

func TestAbstractive_NoQuotesSkipsModel(t *testing.T) {
	mock := llm.NewMockLLM(sampleAbstract)
	s := New(mock, logger.Nop(), DefaultOptions())

	got := s.Abstractive(context.Background(), nil)
	if mock.CallCount() != 0 {
		t.Errorf("expected no completion calls, got %d", mock.CallCount())
	}
	if len(got.Quicktake) != 0 {
		t.Errorf("expected empty quicktake, got %+v", got.Quicktake)
	}
}

func TestSummarize_ExtractiveFailureStillCompletes(t *testing.T) {
	mock := &llm.MockLLM{Errors: []error{llm.ErrCompletionFailed}, Response: sampleAbstract}
	s := New(mock, logger.Nop(), DefaultOptions())

	got := s.Summarize(context.Background(), sampleTranscript)
	if len(got.ExtractiveQuotes) != 0 || len(got.Quicktake) != 0 {
		t.Errorf("expected empty summary, got %+v", got)
	}
	if mock.CallCount() != 1 {
		t.Errorf("expected only the extractive call, got %d", mock.CallCount())
	}
}

func TestParseDelta_Shapes(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		wantSummary string
		wantChanges int
	}{
		{"string", `"Margins expanded versus last quarter."`, "Margins expanded versus last quarter.", 0},
		{"flat object", `{"revenue": "up 25%", "margins": "up 200bps"}`, "", 2},
		{"structured", `{"summary": "s", "changes": [{"topic": "t", "detail": "d"}]}`, "s", 1},
		{"number", `42`, "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseDelta([]byte(tt.input))
			if got.Summary != tt.wantSummary {
				t.Errorf("Summary = %q, want %q", got.Summary, tt.wantSummary)
			}
			if len(got.Changes) != tt.wantChanges {
				t.Errorf("len(Changes) = %d, want %d", len(got.Changes), tt.wantChanges)
			}
		})
	}
}

func TestTruncateRunes(t *testing.T) {
	if got := truncateRunes("héllo", 2); got != "hé" {
		t.Errorf("truncateRunes = %q, want %q", got, "hé")
	}
	if got := truncateRunes("abc", 10); got != "abc" {
		t.Errorf("truncateRunes = %q, want %q", got, "abc")
	}
}
