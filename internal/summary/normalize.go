package summary

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/Yates-Labs/reseek/internal/apperr"
	"github.com/Yates-Labs/reseek/internal/llm"
)

// parseQuotes accepts a JSON array of quote objects, or an object wrapping one
// under "quotes".
func parseQuotes(response string) ([]Quote, error) {
	cleaned := llm.CleanJSON(response)

	var items []map[string]any
	if err := json.Unmarshal([]byte(cleaned), &items); err != nil {
		var wrapped struct {
			Quotes []map[string]any `json:"quotes"`
		}
		if werr := json.Unmarshal([]byte(cleaned), &wrapped); werr != nil || wrapped.Quotes == nil {
			return nil, fmt.Errorf("%w: extractive response is not a list: %v", apperr.ErrParse, err)
		}
		items = wrapped.Quotes
	}

	quotes := make([]Quote, 0, len(items))
	for _, item := range items {
		text := firstString(item, "quote", "quote_text", "text")
		if text == "" {
			continue
		}
		quotes = append(quotes, Quote{
			QuoteText: text,
			Speaker:   optString(firstString(item, "speaker", "name")),
			Timestamp: optString(firstString(item, "timestamp", "ts", "time")),
		})
	}
	return quotes, nil
}

// parseAbstract coerces the abstractive response into the fixed three-field
// shape. Missing fields become empty.
func parseAbstract(response string) (Abstract, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(llm.CleanJSON(response)), &raw); err != nil {
		return EmptyAbstract(), fmt.Errorf("%w: abstractive response is not an object: %v", apperr.ErrParse, err)
	}

	out := EmptyAbstract()
	out.Quicktake = parseQuicktake(raw["quicktake"])
	if g, ok := raw["guidance"]; ok {
		out.GuidanceTable = parseGuidance(g)
	} else {
		out.GuidanceTable = parseGuidance(raw["guidance_table"])
	}
	out.DeltaAnalysis = parseDelta(raw["delta_analysis"])
	return out, nil
}

func parseQuicktake(data json.RawMessage) []Highlight {
	out := []Highlight{}
	var items []any
	if len(data) == 0 || json.Unmarshal(data, &items) != nil {
		return out
	}
	for _, item := range items {
		switch v := item.(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				out = append(out, Highlight{Bullet: s})
			}
		case map[string]any:
			bullet := firstString(v, "bullet", "text", "point")
			if bullet == "" {
				continue
			}
			out = append(out, Highlight{
				Bullet:    bullet,
				Timestamp: optString(firstString(v, "timestamp", "ts")),
			})
		}
	}
	return out
}

func parseGuidance(data json.RawMessage) []GuidanceRow {
	out := []GuidanceRow{}
	var items []map[string]any
	if len(data) == 0 || json.Unmarshal(data, &items) != nil {
		return out
	}
	for _, item := range items {
		row := GuidanceRow{
			Metric:    firstString(item, "metric", "name", "item"),
			Period:    firstString(item, "period", "quarter"),
			Value:     firstString(item, "value", "guidance", "range"),
			Change:    firstString(item, "change", "vs_prior", "delta"),
			Timestamp: optString(firstString(item, "timestamp", "ts")),
		}
		if row.Metric == "" && row.Value == "" {
			continue
		}
		out = append(out, row)
	}
	return out
}

func parseDelta(data json.RawMessage) DeltaAnalysis {
	out := DeltaAnalysis{Changes: []Delta{}}
	if len(data) == 0 {
		return out
	}

	var text string
	if json.Unmarshal(data, &text) == nil {
		out.Summary = strings.TrimSpace(text)
		return out
	}

	var obj map[string]any
	if json.Unmarshal(data, &obj) != nil {
		return out
	}

	out.Summary = firstString(obj, "summary", "overview")
	if changes, ok := obj["changes"].([]any); ok {
		for _, c := range changes {
			m, ok := c.(map[string]any)
			if !ok {
				continue
			}
			d := Delta{
				Topic:     firstString(m, "topic", "metric"),
				Direction: firstString(m, "direction"),
				Detail:    firstString(m, "detail", "description", "text"),
			}
			if d.Topic != "" || d.Detail != "" {
				out.Changes = append(out.Changes, d)
			}
		}
		return out
	}

	// Flat {"topic": "detail"} objects.
	keys := make([]string, 0, len(obj))
	for k := range obj {
		if k != "summary" && k != "overview" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		if detail := stringify(obj[k]); detail != "" {
			out.Changes = append(out.Changes, Delta{Topic: k, Detail: detail})
		}
	}
	return out
}

func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			if s := stringify(v); s != "" {
				return s
			}
		}
	}
	return ""
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		data, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(data)
	}
}

func optString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
