// Package summary produces the two-pass summary of an earnings call: verbatim
// quotes first, then highlights, a guidance table and a delta analysis built
// only from those quotes.
package summary

// Quote is a verbatim line lifted from the transcript by the extractive pass.
type Quote struct {
	QuoteText string  `json:"quote_text"`
	Speaker   *string `json:"speaker"`
	Timestamp *string `json:"timestamp"`

	// Verified is set when the quote occurs in the transcript text that was
	// sent to the model, ignoring case and whitespace differences.
	Verified bool `json:"verified"`
}

// Highlight is one QuickTake bullet.
type Highlight struct {
	Bullet    string  `json:"bullet"`
	Timestamp *string `json:"timestamp,omitempty"`
}

// GuidanceRow is one line of forward-looking guidance.
type GuidanceRow struct {
	Metric    string  `json:"metric"`
	Period    string  `json:"period,omitempty"`
	Value     string  `json:"value"`
	Change    string  `json:"change,omitempty"`
	Timestamp *string `json:"timestamp,omitempty"`
}

// Delta is a single change relative to prior guidance or the prior quarter.
type Delta struct {
	Topic     string `json:"topic"`
	Direction string `json:"direction,omitempty"`
	Detail    string `json:"detail"`
}

type DeltaAnalysis struct {
	Summary string  `json:"summary,omitempty"`
	Changes []Delta `json:"changes"`
}

// Abstract is the output of the abstractive pass. Its shape is fixed whatever
// the model returned.
type Abstract struct {
	Quicktake     []Highlight   `json:"quicktake"`
	GuidanceTable []GuidanceRow `json:"guidance_table"`
	DeltaAnalysis DeltaAnalysis `json:"delta_analysis"`
}

// Summary is the full per-event summary. Regenerating replaces it.
type Summary struct {
	Quicktake        []Highlight   `json:"quicktake"`
	GuidanceTable    []GuidanceRow `json:"guidance_table"`
	DeltaAnalysis    DeltaAnalysis `json:"delta_analysis"`
	ExtractiveQuotes []Quote       `json:"extractive_quotes"`
}

// EmptyAbstract returns the defaults used when the abstractive pass fails.
func EmptyAbstract() Abstract {
	return Abstract{
		Quicktake:     []Highlight{},
		GuidanceTable: []GuidanceRow{},
		DeltaAnalysis: DeltaAnalysis{Changes: []Delta{}},
	}
}

// Bullets returns the QuickTake bullet texts in order.
func (s *Summary) Bullets() []string {
	if s == nil {
		return nil
	}
	out := make([]string, 0, len(s.Quicktake))
	for _, h := range s.Quicktake {
		out = append(out, h.Bullet)
	}
	return out
}
