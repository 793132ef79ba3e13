package engine

// SchemaVersion is the current version of the answer data model.
const SchemaVersion = "v1"

// Citation links a quoted span of an answer back to the chunk it came from.
// ChunkID and EventID are nil when no retrieved chunk matched the quote.
type Citation struct {
	Quote     string  `json:"quote"`
	Timestamp string  `json:"timestamp"`
	ChunkID   *string `json:"chunk_id"`
	EventID   *string `json:"event_id"`
}

// Source is a preview of one chunk the answer was grounded on.
type Source struct {
	ChunkID   string  `json:"chunk_id"`
	EventID   string  `json:"event_id"`
	Text      string  `json:"text"`
	Timestamp *string `json:"timestamp"`
}

// Answer is a grounded response to a question.
type Answer struct {
	Text      string     `json:"answer"`
	Citations []Citation `json:"citations"`
	Sources   []Source   `json:"sources"`
	Version   string     `json:"version"`
}
