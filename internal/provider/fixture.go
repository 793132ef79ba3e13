package provider

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

const fixtureName = "fixture"

// SampleCompanies maps the fixture's tickers to company names.
var SampleCompanies = map[string]string{
	"AAPL":  "Apple Inc.",
	"MSFT":  "Microsoft Corporation",
	"GOOGL": "Alphabet Inc.",
	"AMZN":  "Amazon.com Inc.",
	"TSLA":  "Tesla Inc.",
	"NVDA":  "NVIDIA Corporation",
	"META":  "Meta Platforms Inc.",
}

// SampleTranscript is a short timestamped call with a prepared-remarks
// section and a Q&A session of three exchanges. Answers carry no speaker
// label.
const SampleTranscript = `Operator: Good afternoon, and welcome to the Q3 2024 Earnings Conference Call.
[00:01:15] John Smith, CEO: Thank you for joining us today. I'm pleased to report strong results for Q3 2024. Revenue grew 25% year-over-year to $50.2 billion, exceeding our guidance of $48-49 billion. Our cloud business continues to be a major growth driver, with 35% growth this quarter.
[00:03:42] Sarah Johnson, CFO: Let me walk through the financials. Gross margin expanded 200 basis points to 68%, driven by operational efficiencies and favorable product mix. Operating income was $15.8 billion, up 30% year-over-year. We generated $12.5 billion in free cash flow this quarter.
[00:05:20] John Smith, CEO: Looking ahead to Q4, we expect revenue in the range of $52-54 billion, representing 20-25% growth. We're raising our full-year guidance for revenue to $195-197 billion and EPS to $8.50-8.60.
[00:07:00] Operator: We'll now begin the Q&A session.
[00:07:30] Michael Chen, Goldman Sachs: Thanks for taking my question. Can you provide more color on the cloud gross margins? Are you seeing any pricing pressure?
[00:08:15] Great question, Michael. Cloud margins improved significantly this quarter, up to 70% from 66% last quarter. We're not seeing meaningful pricing pressure. The improvement is driven by better utilization of our infrastructure and economies of scale.
[00:09:45] Emily Rodriguez, Morgan Stanley: Hi, thanks. On the AI investments, how should we think about the ROI timeline? And are you seeing enterprise adoption accelerate?
[00:10:30] Emily, we're very excited about our AI initiatives. Enterprise adoption is accelerating faster than we anticipated. We've already signed deals with over 500 Fortune 2000 companies. In terms of ROI, we expect these investments to contribute meaningfully to revenue starting in the second half of next year.
[00:12:15] David Lee, JPMorgan: Question on operating expenses. They were up 18% year-over-year. How should we think about opex growth going forward?
[00:13:00] David, we're investing heavily in R&D, particularly in AI and cloud infrastructure. We expect opex to grow in line with revenue, around 20-22% for the full year. We remain focused on operating leverage.
[00:15:00] Before we close, I want to emphasize our commitment to sustainable growth and shareholder value. We're executing well across all our businesses and are confident in our long-term strategy. Thank you all for joining today.
`

// FixtureProvider serves SampleTranscript for any ticker. Its output depends
// only on the clock it was built with.
type FixtureProvider struct {
	now func() time.Time

	mu       sync.Mutex
	returned map[string]bool
}

var _ Provider = (*FixtureProvider)(nil)

// NewFixtureProvider returns a provider whose clock is fixed at now.
func NewFixtureProvider(now time.Time) *FixtureProvider {
	now = now.UTC()
	return &FixtureProvider{
		now:      func() time.Time { return now },
		returned: make(map[string]bool),
	}
}

func (p *FixtureProvider) Name() string { return fixtureName }

// FetchUpcoming schedules one call per ticker, a week apart starting
// tomorrow, for at most five tickers.
func (p *FixtureProvider) FetchUpcoming(ctx context.Context, tickers []string) ([]EventInfo, error) {
	tickers = normalizeTickers(tickers)
	if len(tickers) > 5 {
		tickers = tickers[:5]
	}

	base := truncateDay(p.now()).AddDate(0, 0, 1)
	events := make([]EventInfo, 0, len(tickers))
	for i, t := range tickers {
		events = append(events, p.event(t, base.AddDate(0, 0, 7*i)))
	}
	return events, nil
}

func (p *FixtureProvider) FetchTranscript(ctx context.Context, providerEventID string) (*TranscriptData, error) {
	ticker, date, ok := parseFixtureID(providerEventID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, providerEventID)
	}
	td := p.transcript(p.event(ticker, date))
	td.ProviderEventID = providerEventID
	return &td, nil
}

// CheckNew returns each ticker's transcript the first time it is asked
// about, dated at the provider's clock.
func (p *FixtureProvider) CheckNew(ctx context.Context, tickers []string) ([]TranscriptData, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var out []TranscriptData
	for _, t := range normalizeTickers(tickers) {
		if p.returned[t] {
			continue
		}
		p.returned[t] = true
		out = append(out, p.transcript(p.event(t, truncateDay(p.now()))))
	}
	return out, nil
}

func (p *FixtureProvider) event(ticker string, date time.Time) EventInfo {
	return EventInfo{
		Ticker:          ticker,
		CompanyName:     companyName(ticker),
		EventDate:       date,
		Quarter:         "Q3",
		FiscalYear:      2024,
		ProviderEventID: fmt.Sprintf("mock_%s_%s", ticker, date.Format("20060102")),
	}
}

func (p *FixtureProvider) transcript(ev EventInfo) TranscriptData {
	return TranscriptData{
		EventInfo: ev,
		Text:      SampleTranscript,
		AudioURL:  "https://example.com/audio.mp3",
		Metadata:  map[string]string{"source": fixtureName},
	}
}

func companyName(ticker string) string {
	if name, ok := SampleCompanies[ticker]; ok {
		return name
	}
	return ticker + " Corp"
}

func parseFixtureID(id string) (string, time.Time, bool) {
	parts := strings.Split(id, "_")
	if len(parts) != 3 || parts[0] != "mock" || parts[1] == "" {
		return "", time.Time{}, false
	}
	date, err := time.Parse("20060102", parts[2])
	if err != nil {
		return "", time.Time{}, false
	}
	return strings.ToUpper(parts[1]), date, true
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
