package summary

import (
	"encoding/json"
	"strings"
)

const extractiveSystemPrompt = `You are a financial analyst assistant extracting evidence from an earnings call transcript.

Return ONLY a JSON array. Each element must be an object with these fields:
- "quote": an exact, verbatim sentence or passage copied from the transcript
- "speaker": the name of the person who said it, or null if unknown
- "timestamp": the HH:MM:SS timestamp of the line the quote comes from, or null if none

Rules:
- Copy text exactly. Do not paraphrase, correct, or merge sentences.
- Prefer quotes about revenue, margins, guidance, product launches, competition and capital allocation.
- Return at most 20 quotes.
- Do not include anything that is not in the transcript.`

const abstractiveSystemPrompt = `You are a financial analyst writing a briefing from a set of verbatim earnings call quotes.

Use ONLY the quotes provided. Do not add facts, numbers or context that are not in the quotes.

Return ONLY a JSON object with exactly these fields:
- "quicktake": an array of 3 to 6 objects {"bullet": string, "timestamp": "HH:MM:SS" or null}
- "guidance": an array of objects {"metric": string, "period": string, "value": string, "change": string, "timestamp": "HH:MM:SS" or null}; empty if no guidance was given
- "delta_analysis": an object {"summary": string, "changes": [{"topic": string, "direction": "up" | "down" | "unchanged", "detail": string}]}`

func extractiveUserPrompt(transcript string) string {
	return "Extract key quotes from this transcript:\n\n" + transcript
}

type promptQuote struct {
	Quote     string  `json:"quote"`
	Speaker   *string `json:"speaker"`
	Timestamp *string `json:"timestamp"`
}

func abstractiveUserPrompt(quotes []Quote) (string, error) {
	items := make([]promptQuote, len(quotes))
	for i, q := range quotes {
		items[i] = promptQuote{Quote: q.QuoteText, Speaker: q.Speaker, Timestamp: q.Timestamp}
	}
	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("Create summary based on these quotes:\n\n")
	b.Write(data)
	return b.String(), nil
}
