// Package provider fetches earnings calendars and call transcripts from an
// external source.
package provider

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Yates-Labs/reseek/internal/apperr"
)

var (
	ErrNotFound       = fmt.Errorf("%w: transcript", apperr.ErrNotFound)
	ErrProviderFailed = fmt.Errorf("%w: transcript provider request failed", apperr.ErrCapability)
)

// EventInfo describes an earnings call known to a provider.
type EventInfo struct {
	Ticker          string    `json:"ticker"`
	CompanyName     string    `json:"company_name"`
	EventDate       time.Time `json:"event_date"`
	Quarter         string    `json:"quarter"`
	FiscalYear      int       `json:"fiscal_year"`
	ProviderEventID string    `json:"provider_event_id"`
}

// TranscriptData is a fetched transcript with the event it belongs to.
type TranscriptData struct {
	EventInfo
	Text     string            `json:"text"`
	AudioURL string            `json:"audio_url,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

type Provider interface {
	// FetchUpcoming lists scheduled calls for tickers.
	FetchUpcoming(ctx context.Context, tickers []string) ([]EventInfo, error)

	// FetchTranscript returns ErrNotFound when the provider has no
	// transcript for the event.
	FetchTranscript(ctx context.Context, providerEventID string) (*TranscriptData, error)

	// CheckNew returns transcripts that appeared since the previous call.
	CheckNew(ctx context.Context, tickers []string) ([]TranscriptData, error)

	Name() string
}

func normalizeTickers(tickers []string) []string {
	out := make([]string, 0, len(tickers))
	seen := make(map[string]bool, len(tickers))
	for _, t := range tickers {
		t = strings.ToUpper(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
