// Package qa pulls analyst question and answer exchanges out of the Q&A
// portion of an earnings-call transcript.
//
// Extraction is a line scanner driven by an explicit state machine:
//
//	Searching --marker--> InSection --speaker line--> AwaitingAnswer
//	AwaitingAnswer --timestamped line--> Answering
//	AwaitingAnswer, Answering --speaker line--> AwaitingAnswer (new exchange)
//
// A line that happens to match "Name, Firm:" inside an answer starts a new
// exchange. This is a known limitation of the heuristic.
package qa

import (
	"regexp"
	"strings"
)

// State is the position of the scanner.
type State int

const (
	// StateSearching ignores lines until the Q&A marker is seen.
	StateSearching State = iota
	// StateInSection is inside the Q&A portion with no exchange open.
	StateInSection
	// StateAwaitingAnswer has an open question and no answer yet.
	StateAwaitingAnswer
	// StateAnswering has an open question whose answer has started.
	StateAnswering
)

func (s State) String() string {
	switch s {
	case StateSearching:
		return "searching"
	case StateInSection:
		return "in_section"
	case StateAwaitingAnswer:
		return "awaiting_answer"
	case StateAnswering:
		return "answering"
	default:
		return "unknown"
	}
}

// Exchange is one analyst question with the answer that followed it.
type Exchange struct {
	QuestionIndex     int     `json:"question_index"`
	AnalystName       *string `json:"analyst_name"`
	AnalystFirm       *string `json:"analyst_firm"`
	QuestionText      string  `json:"question_text"`
	QuestionTimestamp *string `json:"question_timestamp"`
	AnswerText        string  `json:"answer_text"`
	AnswerTimestamp   *string `json:"answer_timestamp"`
	Topic             Topic   `json:"topic"`
	DeflectionScore   int     `json:"deflection_score"`
}

var (
	leadingTimestamp = regexp.MustCompile(`^\[(\d{2}:\d{2}:\d{2})\]`)
	analystPattern   = regexp.MustCompile(`^\[\d{2}:\d{2}:\d{2}\][ \t]*([A-Za-z][A-Za-z '\-]*?)[ \t]*(?:,[ \t]*([A-Za-z][A-Za-z &.'\-]*?))?[ \t]*:`)
)

// Extractor consumes a transcript one line at a time.
// It is not safe for concurrent use.
type Extractor struct {
	state     State
	current   *Exchange
	exchanges []Exchange
}

func NewExtractor() *Extractor {
	return &Extractor{state: StateSearching}
}

func (e *Extractor) State() State { return e.state }

// Feed advances the state machine by one line.
func (e *Extractor) Feed(line string) {
	line = strings.TrimSpace(line)

	if e.state == StateSearching {
		if isSectionMarker(line) {
			e.state = StateInSection
		}
		return
	}
	if line == "" {
		return
	}

	ts := leadingTimestamp.FindStringSubmatch(line)
	if ts == nil {
		e.appendUntimed(line)
		return
	}

	if m := analystPattern.FindStringSubmatchIndex(line); m != nil {
		e.open(line, ts[1], m)
		return
	}

	switch e.state {
	case StateAwaitingAnswer:
		stamp := ts[1]
		e.current.AnswerTimestamp = &stamp
		e.current.AnswerText = strings.TrimSpace(line[len(ts[0]):])
		e.state = StateAnswering
	case StateAnswering:
		e.current.AnswerText = joinSpace(e.current.AnswerText, line)
	}
}

// Finish flushes the open exchange and returns every exchange with a
// non-empty question, scored and indexed from 0.
func (e *Extractor) Finish() []Exchange {
	e.flush()

	out := make([]Exchange, len(e.exchanges))
	for i, ex := range e.exchanges {
		ex.QuestionIndex = i
		ex.Topic = ClassifyTopic(ex.QuestionText)
		ex.DeflectionScore = DeflectionScore(ex.AnswerText)
		out[i] = ex
	}
	return out
}

// Extract runs a fresh Extractor over every line of transcript.
func Extract(transcript string) []Exchange {
	e := NewExtractor()
	for _, line := range strings.Split(transcript, "\n") {
		e.Feed(line)
	}
	return e.Finish()
}

func (e *Extractor) open(line, stamp string, m []int) {
	e.flush()

	ex := &Exchange{
		QuestionTimestamp: &stamp,
		QuestionText:      strings.TrimSpace(line[m[1]:]),
	}
	if name := strings.TrimSpace(line[m[2]:m[3]]); name != "" {
		ex.AnalystName = &name
	}
	if m[4] >= 0 {
		if firm := strings.TrimSpace(line[m[4]:m[5]]); firm != "" {
			ex.AnalystFirm = &firm
		}
	}

	e.current = ex
	e.state = StateAwaitingAnswer
}

func (e *Extractor) appendUntimed(line string) {
	switch e.state {
	case StateAwaitingAnswer:
		e.current.QuestionText = joinSpace(e.current.QuestionText, line)
	case StateAnswering:
		e.current.AnswerText = joinSpace(e.current.AnswerText, line)
	}
}

func (e *Extractor) flush() {
	if e.current != nil && e.current.QuestionText != "" {
		e.exchanges = append(e.exchanges, *e.current)
	}
	e.current = nil
	if e.state != StateSearching {
		e.state = StateInSection
	}
}

func isSectionMarker(line string) bool {
	lower := strings.ToLower(line)
	if strings.Contains(lower, "q&a") {
		return true
	}
	return strings.Contains(lower, "question") && strings.Contains(lower, "answer")
}

func joinSpace(a, b string) string {
	if a == "" {
		return b
	}
	return a + " " + b
}
