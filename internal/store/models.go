package store

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Event statuses.
const (
	EventStatusUpcoming  = "upcoming"
	EventStatusCompleted = "completed"

	EventTypeEarningsCall = "earnings_call"
)

// Event is a scheduled or completed earnings call. ProviderEventID is the
// natural key used for upserts.
type Event struct {
	ID              uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Ticker          string    `gorm:"type:text;not null;index" json:"ticker"`
	CompanyName     string    `gorm:"type:text;not null;default:''" json:"company_name"`
	EventType       string    `gorm:"type:text;not null;default:'earnings_call'" json:"event_type"`
	Status          string    `gorm:"type:text;not null;default:'upcoming';index" json:"status"`
	EventDate       time.Time `gorm:"not null;index" json:"event_date"`
	Quarter         string    `gorm:"type:text" json:"quarter"`
	FiscalYear      int       `json:"fiscal_year"`
	Provider        string    `gorm:"type:text;not null" json:"provider"`
	ProviderEventID string    `gorm:"type:text;not null;uniqueIndex" json:"provider_event_id"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (Event) TableName() string { return "events" }

// Transcript holds the raw text of one event's call. There is at most one
// per event.
type Transcript struct {
	ID       uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	EventID  uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex" json:"event_id"`
	RawText  string         `gorm:"type:text;not null" json:"raw_text"`
	AudioURL string         `gorm:"type:text" json:"audio_url,omitempty"`
	Metadata datatypes.JSON `gorm:"type:jsonb;not null;default:'{}'" json:"metadata"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (Transcript) TableName() string { return "transcripts" }

// TranscriptChunk mirrors a chunk written to the vector index. ID equals the
// chunk ID used there.
type TranscriptChunk struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	TranscriptID   uuid.UUID `gorm:"type:uuid;not null;index" json:"transcript_id"`
	EventID        uuid.UUID `gorm:"type:uuid;not null;index" json:"event_id"`
	ChunkIndex     int       `gorm:"not null" json:"chunk_index"`
	Text           string    `gorm:"type:text;not null" json:"text"`
	TokenCount     int       `gorm:"not null" json:"token_count"`
	StartToken     int       `gorm:"not null" json:"start_token"`
	EndToken       int       `gorm:"not null" json:"end_token"`
	StartTime      *string   `gorm:"type:text" json:"start_time"`
	Speaker        *string   `gorm:"type:text" json:"speaker"`
	EmbeddingModel string    `gorm:"type:text" json:"embedding_model"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
}

func (TranscriptChunk) TableName() string { return "transcript_chunks" }

type QAItem struct {
	ID                uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	EventID           uuid.UUID `gorm:"type:uuid;not null;index" json:"event_id"`
	QuestionIndex     int       `gorm:"not null" json:"question_index"`
	AnalystName       *string   `gorm:"type:text" json:"analyst_name"`
	AnalystFirm       *string   `gorm:"type:text" json:"analyst_firm"`
	QuestionText      string    `gorm:"type:text;not null" json:"question_text"`
	QuestionTimestamp *string   `gorm:"type:text" json:"question_timestamp"`
	AnswerText        string    `gorm:"type:text;not null" json:"answer_text"`
	AnswerTimestamp   *string   `gorm:"type:text" json:"answer_timestamp"`
	Topic             string    `gorm:"type:text;not null;index" json:"topic"`
	DeflectionScore   int       `gorm:"not null" json:"deflection_score"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
}

func (QAItem) TableName() string { return "qa_items" }

// SummaryRecord is the persisted form of summary.Summary, one per event.
type SummaryRecord struct {
	ID               uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	EventID          uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex" json:"event_id"`
	Quicktake        datatypes.JSON `gorm:"type:jsonb;not null;default:'[]'" json:"quicktake"`
	GuidanceTable    datatypes.JSON `gorm:"type:jsonb;not null;default:'[]'" json:"guidance_table"`
	DeltaAnalysis    datatypes.JSON `gorm:"type:jsonb;not null;default:'{}'" json:"delta_analysis"`
	ExtractiveQuotes datatypes.JSON `gorm:"type:jsonb;not null;default:'[]'" json:"extractive_quotes"`
	Model            string         `gorm:"type:text" json:"model"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
}

func (SummaryRecord) TableName() string { return "summaries" }

// ChatHistory is one answered question.
type ChatHistory struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	EventID   *uuid.UUID     `gorm:"type:uuid;index" json:"event_id,omitempty"`
	Tickers   datatypes.JSON `gorm:"type:jsonb;not null;default:'[]'" json:"tickers"`
	Question  string         `gorm:"type:text;not null" json:"question"`
	Answer    string         `gorm:"type:text;not null" json:"answer"`
	Citations datatypes.JSON `gorm:"type:jsonb;not null;default:'[]'" json:"citations"`

	CreatedAt time.Time `gorm:"not null;default:now();index" json:"created_at"`
}

func (ChatHistory) TableName() string { return "chat_history" }

func allModels() []interface{} {
	return []interface{}{
		&Event{},
		&Transcript{},
		&TranscriptChunk{},
		&QAItem{},
		&SummaryRecord{},
		&ChatHistory{},
	}
}
