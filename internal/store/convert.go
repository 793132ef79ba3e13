package store

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/Yates-Labs/reseek/internal/apperr"
	"github.com/Yates-Labs/reseek/internal/qa"
	"github.com/Yates-Labs/reseek/internal/summary"
)

func qaRows(eventID uuid.UUID, exchanges []qa.Exchange) []QAItem {
	rows := make([]QAItem, len(exchanges))
	for i, ex := range exchanges {
		rows[i] = QAItem{
			ID:                uuid.New(),
			EventID:           eventID,
			QuestionIndex:     ex.QuestionIndex,
			AnalystName:       ex.AnalystName,
			AnalystFirm:       ex.AnalystFirm,
			QuestionText:      ex.QuestionText,
			QuestionTimestamp: ex.QuestionTimestamp,
			AnswerText:        ex.AnswerText,
			AnswerTimestamp:   ex.AnswerTimestamp,
			Topic:             string(ex.Topic),
			DeflectionScore:   ex.DeflectionScore,
		}
	}
	return rows
}

func exchangesFromRows(rows []QAItem) []qa.Exchange {
	out := make([]qa.Exchange, len(rows))
	for i, r := range rows {
		out[i] = qa.Exchange{
			QuestionIndex:     r.QuestionIndex,
			AnalystName:       r.AnalystName,
			AnalystFirm:       r.AnalystFirm,
			QuestionText:      r.QuestionText,
			QuestionTimestamp: r.QuestionTimestamp,
			AnswerText:        r.AnswerText,
			AnswerTimestamp:   r.AnswerTimestamp,
			Topic:             qa.Topic(r.Topic),
			DeflectionScore:   r.DeflectionScore,
		}
	}
	return out
}

func summaryRow(eventID uuid.UUID, model string, sum *summary.Summary) (*SummaryRecord, error) {
	if sum == nil {
		return nil, fmt.Errorf("%w: summary is nil", apperr.ErrInvalidConfiguration)
	}
	row := &SummaryRecord{ID: uuid.New(), EventID: eventID, Model: model}

	fields := []struct {
		dst *[]byte
		v   interface{}
	}{
		{(*[]byte)(&row.Quicktake), nonNil(sum.Quicktake)},
		{(*[]byte)(&row.GuidanceTable), nonNil(sum.GuidanceTable)},
		{(*[]byte)(&row.DeltaAnalysis), sum.DeltaAnalysis},
		{(*[]byte)(&row.ExtractiveQuotes), nonNil(sum.ExtractiveQuotes)},
	}
	for _, f := range fields {
		data, err := json.Marshal(f.v)
		if err != nil {
			return nil, fmt.Errorf("encode summary: %w", err)
		}
		*f.dst = data
	}
	return row, nil
}

func summaryFromRow(row *SummaryRecord) (*summary.Summary, error) {
	sum := &summary.Summary{
		Quicktake:        []summary.Highlight{},
		GuidanceTable:    []summary.GuidanceRow{},
		DeltaAnalysis:    summary.DeltaAnalysis{Changes: []summary.Delta{}},
		ExtractiveQuotes: []summary.Quote{},
	}
	fields := []struct {
		src []byte
		dst interface{}
	}{
		{row.Quicktake, &sum.Quicktake},
		{row.GuidanceTable, &sum.GuidanceTable},
		{row.DeltaAnalysis, &sum.DeltaAnalysis},
		{row.ExtractiveQuotes, &sum.ExtractiveQuotes},
	}
	for _, f := range fields {
		if len(f.src) == 0 {
			continue
		}
		if err := json.Unmarshal(f.src, f.dst); err != nil {
			return nil, fmt.Errorf("%w: decode summary: %v", apperr.ErrParse, err)
		}
	}
	if sum.DeltaAnalysis.Changes == nil {
		sum.DeltaAnalysis.Changes = []summary.Delta{}
	}
	return sum, nil
}

// nonNil keeps empty slices encoding as [] rather than null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
