package transcript

import (
	"regexp"
	"strings"
)

var (
	timestampPattern = regexp.MustCompile(`\[(\d{2}:\d{2}:\d{2})\]`)

	// "[HH:MM:SS] Name[, Affiliation]:" keeps only the name.
	speakerPattern = regexp.MustCompile(`\[\d{2}:\d{2}:\d{2}\][ \t]*([A-Za-z][A-Za-z '\-]*?)[ \t]*(?:,[^:\n]*)?:`)
)

// Metadata holds what could be recovered from a fragment. Nil means absent.
type Metadata struct {
	Speaker   *string `json:"speaker"`
	Timestamp *string `json:"timestamp"`
}

// ExtractMetadata returns the first bracketed HH:MM:SS timestamp in text and the
// speaker name that follows a bracketed timestamp. It never fails.
func ExtractMetadata(text string) Metadata {
	var md Metadata

	if m := timestampPattern.FindStringSubmatch(text); m != nil {
		ts := m[1]
		md.Timestamp = &ts
	}

	if m := speakerPattern.FindStringSubmatch(text); m != nil {
		if speaker := strings.TrimSpace(m[1]); speaker != "" {
			md.Speaker = &speaker
		}
	}

	return md
}
