package provider

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	finnhub "github.com/Finnhub-Stock-API/finnhub-go/v2"

	"github.com/Yates-Labs/reseek/internal/apperr"
	"github.com/Yates-Labs/reseek/internal/logger"
)

const (
	finnhubName       = "finnhub"
	calendarWindow    = 30 * 24 * time.Hour
	qaSessionName     = "question_answer"
	qaMarkerLine      = "Question-and-Answer Session"
	finnhubDateLayout = "2006-01-02"
)

// FinnhubProvider reads the earnings calendar and call transcripts from
// Finnhub.
type FinnhubProvider struct {
	client *finnhub.DefaultApiService
	log    *logger.Logger
	now    func() time.Time

	mu   sync.Mutex
	seen map[string]bool
}

var _ Provider = (*FinnhubProvider)(nil)

func NewFinnhubProvider(apiKey string, log *logger.Logger) (*FinnhubProvider, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("%w: Finnhub API key not set", apperr.ErrInvalidConfiguration)
	}
	if log == nil {
		log = logger.Nop()
	}
	cfg := finnhub.NewConfiguration()
	cfg.AddDefaultHeader("X-Finnhub-Token", apiKey)
	return &FinnhubProvider{
		client: finnhub.NewAPIClient(cfg).DefaultApi,
		log:    log.With("provider", finnhubName),
		now:    time.Now,
		seen:   make(map[string]bool),
	}, nil
}

func (p *FinnhubProvider) Name() string { return finnhubName }

// FetchUpcoming returns calendar entries for tickers over the next 30 days.
func (p *FinnhubProvider) FetchUpcoming(ctx context.Context, tickers []string) ([]EventInfo, error) {
	from := p.now().UTC()
	res, _, err := p.client.EarningsCalendar(ctx).
		From(from.Format(finnhubDateLayout)).
		To(from.Add(calendarWindow).Format(finnhubDateLayout)).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("%w: earnings calendar: %v", ErrProviderFailed, err)
	}

	want := make(map[string]bool)
	for _, t := range normalizeTickers(tickers) {
		want[t] = true
	}

	var events []EventInfo
	for _, release := range res.GetEarningsCalendar() {
		symbol := strings.ToUpper(release.GetSymbol())
		if len(want) > 0 && !want[symbol] {
			continue
		}
		date, err := time.Parse(finnhubDateLayout, release.GetDate())
		if err != nil {
			p.log.Warn("skipping calendar entry with bad date", "ticker", symbol, "date", release.GetDate())
			continue
		}
		ev := EventInfo{
			Ticker:          symbol,
			CompanyName:     symbol,
			EventDate:       date,
			FiscalYear:      int(release.GetYear()),
			ProviderEventID: calendarEventID(symbol, release.GetDate()),
		}
		if q := release.GetQuarter(); q > 0 {
			ev.Quarter = fmt.Sprintf("Q%d", q)
		}
		events = append(events, ev)
	}

	sort.SliceStable(events, func(i, j int) bool { return events[i].EventDate.Before(events[j].EventDate) })
	return events, nil
}

// FetchTranscript accepts either a calendar ID (finnhub_{SYMBOL}_{DATE}),
// resolved to the transcript held for that symbol and date, or a raw
// Finnhub transcript ID.
func (p *FinnhubProvider) FetchTranscript(ctx context.Context, providerEventID string) (*TranscriptData, error) {
	transcriptID := providerEventID
	if symbol, date, ok := parseCalendarID(providerEventID); ok {
		listed, err := p.listTranscripts(ctx, symbol)
		if err != nil {
			return nil, err
		}
		transcriptID = ""
		for _, t := range listed {
			if strings.HasPrefix(t.GetTime(), date) {
				transcriptID = t.GetId()
				break
			}
		}
		if transcriptID == "" {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, providerEventID)
		}
	}

	td, err := p.fetch(ctx, transcriptID)
	if err != nil {
		return nil, err
	}
	td.ProviderEventID = providerEventID
	return td, nil
}

// CheckNew returns, per ticker, the most recent transcript not returned by
// an earlier call. A ticker whose lookup fails is logged and skipped.
func (p *FinnhubProvider) CheckNew(ctx context.Context, tickers []string) ([]TranscriptData, error) {
	var (
		out      []TranscriptData
		firstErr error
	)
	for _, symbol := range normalizeTickers(tickers) {
		listed, err := p.listTranscripts(ctx, symbol)
		if err != nil {
			p.log.Warn("transcript list failed", "ticker", symbol, "error", err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if len(listed) == 0 {
			continue
		}
		latest := listed[0]
		for _, t := range listed[1:] {
			if t.GetTime() > latest.GetTime() {
				latest = t
			}
		}

		id := latest.GetId()
		if !p.markSeen(id) {
			continue
		}
		td, err := p.fetch(ctx, id)
		if err != nil {
			p.log.Warn("transcript fetch failed", "ticker", symbol, "transcript_id", id, "error", err)
			p.unmarkSeen(id)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		out = append(out, *td)
	}

	if len(out) == 0 && firstErr != nil {
		return nil, firstErr
	}
	return out, nil
}

func (p *FinnhubProvider) markSeen(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.seen[id] {
		return false
	}
	p.seen[id] = true
	return true
}

func (p *FinnhubProvider) unmarkSeen(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.seen, id)
}

func (p *FinnhubProvider) listTranscripts(ctx context.Context, symbol string) ([]finnhub.StockTranscripts, error) {
	res, _, err := p.client.TranscriptsList(ctx).Symbol(symbol).Execute()
	if err != nil {
		return nil, fmt.Errorf("%w: transcripts list for %s: %v", ErrProviderFailed, symbol, err)
	}
	return res.GetTranscripts(), nil
}

func (p *FinnhubProvider) fetch(ctx context.Context, transcriptID string) (*TranscriptData, error) {
	res, _, err := p.client.Transcripts(ctx).Id(transcriptID).Execute()
	if err != nil {
		return nil, fmt.Errorf("%w: transcript %s: %v", ErrProviderFailed, transcriptID, err)
	}

	content := res.GetTranscript()
	if len(content) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, transcriptID)
	}
	blocks := make([]speechBlock, len(content))
	for i, c := range content {
		blocks[i] = speechBlock{Name: c.GetName(), Session: c.GetSession(), Speech: c.GetSpeech()}
	}

	symbol := strings.ToUpper(res.GetSymbol())
	td := &TranscriptData{
		EventInfo: EventInfo{
			Ticker:          symbol,
			CompanyName:     symbol,
			FiscalYear:      int(res.GetYear()),
			ProviderEventID: transcriptID,
		},
		Text:     renderTranscript(blocks),
		AudioURL: res.GetAudio(),
		Metadata: map[string]string{
			"source":        finnhubName,
			"transcript_id": transcriptID,
			"title":         res.GetTitle(),
		},
	}
	if q := res.GetQuarter(); q > 0 {
		td.Quarter = fmt.Sprintf("Q%d", q)
	}
	if t, err := time.Parse("2006-01-02 15:04:05", res.GetTime()); err == nil {
		td.EventDate = t
	}
	return td, nil
}

// speechBlock is one speaker turn of a Finnhub transcript.
type speechBlock struct {
	Name    string
	Session string
	Speech  []string
}

// renderTranscript writes one "Name: paragraph" line per paragraph, with a
// marker line before the first Q&A turn.
func renderTranscript(blocks []speechBlock) string {
	var b strings.Builder
	inQA := false
	for _, block := range blocks {
		if block.Session == qaSessionName && !inQA {
			inQA = true
			b.WriteString(qaMarkerLine)
			b.WriteByte('\n')
		}
		name := strings.TrimSpace(block.Name)
		if name == "" {
			name = "Unknown"
		}
		for _, para := range block.Speech {
			para = strings.TrimSpace(para)
			if para == "" {
				continue
			}
			b.WriteString(name)
			b.WriteString(": ")
			b.WriteString(para)
			b.WriteByte('\n')
		}
	}
	return b.String()
}

func calendarEventID(symbol, date string) string {
	return fmt.Sprintf("finnhub_%s_%s", symbol, date)
}

func parseCalendarID(id string) (symbol, date string, ok bool) {
	rest, found := strings.CutPrefix(id, "finnhub_")
	if !found {
		return "", "", false
	}
	i := strings.LastIndex(rest, "_")
	if i <= 0 {
		return "", "", false
	}
	symbol, date = rest[:i], rest[i+1:]
	if _, err := time.Parse(finnhubDateLayout, date); err != nil {
		return "", "", false
	}
	return symbol, date, true
}
