package orchestrator

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// idNamespace scopes the name-based UUIDs derived from provider event IDs.
var idNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/Yates-Labs/reseek"))

// eventIDFor derives a stable event ID from a provider event ID, so the same
// call maps to the same ID with or without a database.
func eventIDFor(providerEventID string) uuid.UUID {
	return uuid.NewSHA1(idNamespace, []byte("event:"+providerEventID))
}

func transcriptIDFor(eventID uuid.UUID) uuid.UUID {
	return uuid.NewSHA1(idNamespace, []byte("transcript:"+eventID.String()))
}

// manualEventID names an event ingested from a local file.
func manualEventID(ticker string, date time.Time) string {
	return fmt.Sprintf("manual_%s_%s", strings.ToUpper(strings.TrimSpace(ticker)), date.UTC().Format("20060102"))
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

func orDefault(s *string, def string) string {
	if s == nil || *s == "" {
		return def
	}
	return *s
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
