package qa

import (
	"strings"
	"testing"
)

func TestClassifyTopic(t *testing.T) {
	tests := []struct {
		question string
		want     Topic
	}{
		{"How should we think about revenue next year?", TopicRevenue},
		{"Can you talk about operating income and margin?", TopicMargins},
		{"What's your outlook for the back half?", TopicGuidance},
		{"When is the next product launch?", TopicProduct},
		{"Are you losing market share?", TopicCompetition},
		{"How are AI workloads trending?", TopicAITechnology},
		{"Tell us about machine learning adoption.", TopicAITechnology},
		{"What is your capital return plan?", TopicOther},
		// First match wins: growth (revenue) beats margin.
		{"Does margin expansion depend on growth?", TopicRevenue},
		// "ai" inside a word does not count.
		{"Any update on the maintenance capex?", TopicOther},
		{"", TopicOther},
	}

	for _, tt := range tests {
		t.Run(tt.question, func(t *testing.T) {
			if got := ClassifyTopic(tt.question); got != tt.want {
				t.Errorf("ClassifyTopic(%q) = %q, want %q", tt.question, got, tt.want)
			}
		})
	}
}

func TestDeflectionScore(t *testing.T) {
	long := strings.Repeat("word ", 40)

	tests := []struct {
		name   string
		answer string
		want   int
	}{
		{"long direct answer", long, 0},
		{"short direct answer", "Revenue was up 12%.", 2},
		{"one hedge long", "We are evaluating that. " + long, 2},
		{"two hedges short", "Hard to say. We're exploring options.", 6},
		{"case insensitive", "TOO EARLY TO TELL. " + long, 2},
		{"repeated phrase counts once", "Evaluating, evaluating, evaluating. " + long, 2},
		{
			"six hedges clamp",
			"We'll see. Hard to say. Difficult to predict. Too early to tell. Can't disclose. Not at liberty.",
			10,
		},
		{"empty answer", "", 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DeflectionScore(tt.answer)
			if got != tt.want {
				t.Errorf("DeflectionScore = %d, want %d", got, tt.want)
			}
			if got < 0 || got > 10 {
				t.Errorf("DeflectionScore %d out of range", got)
			}
		})
	}
}
