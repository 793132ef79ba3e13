package qa

import (
	"regexp"
	"strings"
)

// Topic is the coarse subject of an analyst question.
type Topic string

const (
	TopicRevenue      Topic = "revenue"
	TopicMargins      Topic = "margins"
	TopicGuidance     Topic = "guidance"
	TopicProduct      Topic = "product"
	TopicCompetition  Topic = "competition"
	TopicAITechnology Topic = "ai_technology"
	TopicOther        Topic = "other"
)

type topicRule struct {
	topic    Topic
	keywords []string
	words    *regexp.Regexp
}

// Checked in order; the first rule with a hit wins.
var topicRules = []topicRule{
	{topic: TopicRevenue, keywords: []string{"revenue", "sales", "top line", "growth"}},
	{topic: TopicMargins, keywords: []string{"margin", "profitability", "operating income"}},
	{topic: TopicGuidance, keywords: []string{"guidance", "outlook", "forecast", "expect"}},
	{topic: TopicProduct, keywords: []string{"product", "launch", "innovation"}},
	{topic: TopicCompetition, keywords: []string{"competition", "competitive", "market share"}},
	{
		topic:    TopicAITechnology,
		keywords: []string{"artificial intelligence", "machine learning"},
		words:    regexp.MustCompile(`\bai\b`),
	},
}

var hedgingPhrases = []string{
	"we'll see",
	"hard to say",
	"difficult to predict",
	"too early to tell",
	"not ready to comment",
	"can't disclose",
	"not at liberty",
	"working on it",
	"evaluating",
	"exploring",
	"considering",
	"looking into",
}

const (
	maxDeflection    = 10
	shortAnswerWords = 30
)

// ClassifyTopic maps a question to the first topic whose keywords appear in
// it. "ai" must appear as a whole word.
func ClassifyTopic(question string) Topic {
	lower := strings.ToLower(question)
	for _, rule := range topicRules {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				return rule.topic
			}
		}
		if rule.words != nil && rule.words.MatchString(lower) {
			return rule.topic
		}
	}
	return TopicOther
}

// DeflectionScore rates how evasive an answer reads, from 0 to 10. Every
// distinct hedging phrase present adds 2 and an answer under 30 words adds 2.
func DeflectionScore(answer string) int {
	lower := strings.ToLower(answer)

	score := 0
	for _, phrase := range hedgingPhrases {
		if strings.Contains(lower, phrase) {
			score += 2
		}
	}
	if len(strings.Fields(answer)) < shortAnswerWords {
		score += 2
	}
	return min(score, maxDeflection)
}
