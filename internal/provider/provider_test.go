package provider

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/Yates-Labs/reseek/internal/apperr"
	"github.com/Yates-Labs/reseek/internal/qa"
)

var fixedNow = time.Date(2024, 10, 24, 15, 30, 0, 0, time.UTC)

func TestFixtureProvider_FetchUpcoming(t *testing.T) {
	p := NewFixtureProvider(fixedNow)

	events, err := p.FetchUpcoming(context.Background(), []string{"aapl", "MSFT", "AAPL", "zzz", "NVDA", "META", "TSLA"})
	if err != nil {
		t.Fatalf("FetchUpcoming failed: %v", err)
	}
	if len(events) != 5 {
		t.Fatalf("expected 5 events, got %d", len(events))
	}

	first := events[0]
	if first.Ticker != "AAPL" || first.CompanyName != "Apple Inc." {
		t.Errorf("unexpected first event %+v", first)
	}
	if first.ProviderEventID != "mock_AAPL_20241025" {
		t.Errorf("ProviderEventID = %s", first.ProviderEventID)
	}
	if got := events[1].EventDate.Sub(first.EventDate); got != 7*24*time.Hour {
		t.Errorf("events should be a week apart, got %v", got)
	}
	if events[2].CompanyName != "ZZZ Corp" {
		t.Errorf("unknown ticker company = %q", events[2].CompanyName)
	}

	again, _ := p.FetchUpcoming(context.Background(), []string{"aapl", "MSFT", "AAPL", "zzz", "NVDA", "META", "TSLA"})
	for i := range events {
		if events[i] != again[i] {
			t.Errorf("FetchUpcoming not deterministic at %d", i)
		}
	}
}

func TestFixtureProvider_FetchTranscript(t *testing.T) {
	p := NewFixtureProvider(fixedNow)

	td, err := p.FetchTranscript(context.Background(), "mock_MSFT_20241101")
	if err != nil {
		t.Fatalf("FetchTranscript failed: %v", err)
	}
	if td.Ticker != "MSFT" || td.ProviderEventID != "mock_MSFT_20241101" {
		t.Errorf("unexpected transcript %+v", td.EventInfo)
	}
	if !td.EventDate.Equal(time.Date(2024, 11, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("EventDate = %v", td.EventDate)
	}
	if td.Text != SampleTranscript || td.Metadata["source"] != "fixture" {
		t.Error("expected sample transcript with fixture metadata")
	}

	for _, id := range []string{"", "mock_AAPL", "finnhub_AAPL_2024-10-25", "mock_AAPL_notadate"} {
		_, err := p.FetchTranscript(context.Background(), id)
		if !errors.Is(err, ErrNotFound) || !errors.Is(err, apperr.ErrNotFound) {
			t.Errorf("FetchTranscript(%q) expected ErrNotFound, got %v", id, err)
		}
	}
}

func TestFixtureProvider_CheckNewReturnsEachTickerOnce(t *testing.T) {
	p := NewFixtureProvider(fixedNow)
	ctx := context.Background()

	first, err := p.CheckNew(ctx, []string{"AAPL", "MSFT"})
	if err != nil {
		t.Fatalf("CheckNew failed: %v", err)
	}
	if len(first) != 2 {
		t.Fatalf("expected 2 transcripts, got %d", len(first))
	}
	if first[0].ProviderEventID != "mock_AAPL_20241024" {
		t.Errorf("ProviderEventID = %s", first[0].ProviderEventID)
	}

	second, _ := p.CheckNew(ctx, []string{"msft", "GOOGL"})
	if len(second) != 1 || second[0].Ticker != "GOOGL" {
		t.Errorf("expected only GOOGL on second pass, got %+v", second)
	}

	third, _ := p.CheckNew(ctx, []string{"AAPL", "MSFT", "GOOGL"})
	if len(third) != 0 {
		t.Errorf("expected nothing new, got %d", len(third))
	}
}

func TestSampleTranscript_HasThreeExchanges(t *testing.T) {
	exchanges := qa.Extract(SampleTranscript)
	if len(exchanges) != 3 {
		t.Fatalf("expected 3 exchanges, got %d", len(exchanges))
	}
	if exchanges[0].AnalystFirm == nil || *exchanges[0].AnalystFirm != "Goldman Sachs" {
		t.Errorf("first analyst firm = %v", exchanges[0].AnalystFirm)
	}
	if !strings.HasPrefix(exchanges[1].AnswerText, "Emily, we're very excited") {
		t.Errorf("second answer = %q", exchanges[1].AnswerText)
	}
}

func TestRenderTranscript(t *testing.T) {
	blocks := []speechBlock{
		{Name: "Tim Cook", Session: "management_discussion", Speech: []string{"Good afternoon.", "  ", "Revenue was a record."}},
		{Name: "Operator", Session: "question_answer", Speech: []string{"First question, please."}},
		{Name: "", Session: "question_answer", Speech: []string{"Thanks."}},
	}

	got := renderTranscript(blocks)
	want := "Tim Cook: Good afternoon.\n" +
		"Tim Cook: Revenue was a record.\n" +
		"Question-and-Answer Session\n" +
		"Operator: First question, please.\n" +
		"Unknown: Thanks.\n"
	if got != want {
		t.Errorf("renderTranscript() =\n%s\nwant\n%s", got, want)
	}
}

func TestParseCalendarID(t *testing.T) {
	tests := []struct {
		id     string
		symbol string
		date   string
		ok     bool
	}{
		{"finnhub_AAPL_2024-10-31", "AAPL", "2024-10-31", true},
		{"finnhub_BRK_B_2024-11-02", "BRK_B", "2024-11-02", true},
		{"finnhub_AAPL_20241031", "", "", false},
		{"AAPL_2024-10-31", "", "", false},
		{"abc123", "", "", false},
	}
	for _, tt := range tests {
		symbol, date, ok := parseCalendarID(tt.id)
		if symbol != tt.symbol || date != tt.date || ok != tt.ok {
			t.Errorf("parseCalendarID(%q) = %q, %q, %v", tt.id, symbol, date, ok)
		}
	}
	if calendarEventID("AAPL", "2024-10-31") != "finnhub_AAPL_2024-10-31" {
		t.Error("calendarEventID mismatch")
	}
}

func TestNewFinnhubProvider_MissingKey(t *testing.T) {
	if _, err := NewFinnhubProvider(" ", nil); !errors.Is(err, apperr.ErrInvalidConfiguration) {
		t.Errorf("expected ErrInvalidConfiguration, got %v", err)
	}
}
