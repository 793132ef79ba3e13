// Package store persists events, transcripts, chunks, Q&A items, summaries
// and chat history in Postgres through gorm.
package store

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormLogger "gorm.io/gorm/logger"

	"github.com/Yates-Labs/reseek/internal/apperr"
	"github.com/Yates-Labs/reseek/internal/logger"
	"github.com/Yates-Labs/reseek/internal/qa"
	"github.com/Yates-Labs/reseek/internal/summary"
)

var (
	ErrNotFound  = fmt.Errorf("%w: record", apperr.ErrNotFound)
	ErrInvalidID = fmt.Errorf("%w: invalid id", apperr.ErrInvalidConfiguration)
)

type Store struct {
	db  *gorm.DB
	log *logger.Logger
}

// Open connects to Postgres at dsn.
func Open(dsn string, log *logger.Logger) (*Store, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("%w: database URL is empty", apperr.ErrInvalidConfiguration)
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   newGormLogger(),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to connect to Postgres: %v", apperr.ErrCapability, err)
	}
	return New(db, log), nil
}

// New wraps an existing connection.
func New(db *gorm.DB, log *logger.Logger) *Store {
	if log == nil {
		log = logger.Nop()
	}
	return &Store{db: db, log: log.With("service", "Store")}
}

func newGormLogger() gormLogger.Interface {
	return gormLogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormLogger.Config{
			SlowThreshold:             1 * time.Second,
			LogLevel:                  gormLogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
}

func (s *Store) DB() *gorm.DB { return s.db }

func (s *Store) AutoMigrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(allModels()...); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// ParseID parses a row ID supplied by a caller.
func ParseID(id string) (uuid.UUID, error) {
	u, err := uuid.Parse(strings.TrimSpace(id))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return u, nil
}

func notFound(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, what)
	}
	return err
}

// UpsertEvent inserts the event or updates the row with the same
// ProviderEventID. On return e carries the stored ID.
func (s *Store) UpsertEvent(ctx context.Context, e *Event) error {
	if e == nil || e.ProviderEventID == "" {
		return fmt.Errorf("%w: event requires a provider event id", apperr.ErrInvalidConfiguration)
	}
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.EventType == "" {
		e.EventType = EventTypeEarningsCall
	}
	if e.Status == "" {
		e.Status = EventStatusUpcoming
	}
	e.Ticker = strings.ToUpper(strings.TrimSpace(e.Ticker))
	now := time.Now().UTC()
	e.UpdatedAt = now
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "provider_event_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"ticker",
			"company_name",
			"event_type",
			"status",
			"event_date",
			"quarter",
			"fiscal_year",
			"provider",
			"updated_at",
		}),
	}).Create(e).Error
	if err != nil {
		return fmt.Errorf("upsert event: %w", err)
	}

	stored, err := s.GetEventByProviderID(ctx, e.ProviderEventID)
	if err != nil {
		return err
	}
	*e = *stored
	return nil
}

func (s *Store) GetEvent(ctx context.Context, id uuid.UUID) (*Event, error) {
	var e Event
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&e).Error; err != nil {
		return nil, notFound(err, "event "+id.String())
	}
	return &e, nil
}

func (s *Store) GetEventByProviderID(ctx context.Context, providerEventID string) (*Event, error) {
	var e Event
	if err := s.db.WithContext(ctx).Where("provider_event_id = ?", providerEventID).First(&e).Error; err != nil {
		return nil, notFound(err, "event "+providerEventID)
	}
	return &e, nil
}

// ListUpcoming returns upcoming events on or after from, soonest first,
// optionally restricted to tickers.
func (s *Store) ListUpcoming(ctx context.Context, tickers []string, from time.Time, limit int) ([]Event, error) {
	q := s.db.WithContext(ctx).
		Where("status = ? AND event_date >= ?", EventStatusUpcoming, from)
	if len(tickers) > 0 {
		upper := make([]string, 0, len(tickers))
		for _, t := range tickers {
			upper = append(upper, strings.ToUpper(strings.TrimSpace(t)))
		}
		q = q.Where("ticker IN ?", upper)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}

	var out []Event
	if err := q.Order("event_date ASC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list upcoming events: %w", err)
	}
	return out, nil
}

// SaveTranscript stores t as the event's transcript, replacing any previous
// one, and marks the event completed. On return t carries the stored ID.
func (s *Store) SaveTranscript(ctx context.Context, t *Transcript) error {
	if t == nil || t.EventID == uuid.Nil {
		return fmt.Errorf("%w: transcript requires an event id", apperr.ErrInvalidConfiguration)
	}
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if len(t.Metadata) == 0 {
		t.Metadata = []byte(`{}`)
	}
	now := time.Now().UTC()
	t.UpdatedAt = now
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "event_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"raw_text", "audio_url", "metadata", "updated_at"}),
		}).Create(t).Error; err != nil {
			return err
		}
		return tx.Model(&Event{}).
			Where("id = ?", t.EventID).
			Updates(map[string]interface{}{"status": EventStatusCompleted, "updated_at": now}).Error
	})
	if err != nil {
		return fmt.Errorf("save transcript: %w", err)
	}

	stored, err := s.GetTranscript(ctx, t.EventID)
	if err != nil {
		return err
	}
	*t = *stored
	return nil
}

func (s *Store) GetTranscript(ctx context.Context, eventID uuid.UUID) (*Transcript, error) {
	var t Transcript
	if err := s.db.WithContext(ctx).Where("event_id = ?", eventID).First(&t).Error; err != nil {
		return nil, notFound(err, "transcript for event "+eventID.String())
	}
	return &t, nil
}

// ReplaceChunks swaps the transcript's chunk rows for rows in one
// transaction.
func (s *Store) ReplaceChunks(ctx context.Context, transcriptID uuid.UUID, rows []TranscriptChunk) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("transcript_id = ?", transcriptID).Delete(&TranscriptChunk{}).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		for i := range rows {
			rows[i].TranscriptID = transcriptID
			if rows[i].ID == uuid.Nil {
				rows[i].ID = uuid.New()
			}
		}
		return tx.Create(&rows).Error
	})
	if err != nil {
		return fmt.Errorf("replace chunks: %w", err)
	}
	return nil
}

func (s *Store) ListChunks(ctx context.Context, transcriptID uuid.UUID) ([]TranscriptChunk, error) {
	var out []TranscriptChunk
	if err := s.db.WithContext(ctx).
		Where("transcript_id = ?", transcriptID).
		Order("chunk_index ASC").
		Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list chunks: %w", err)
	}
	return out, nil
}

// ReplaceQA swaps the event's Q&A items for exchanges in one transaction.
func (s *Store) ReplaceQA(ctx context.Context, eventID uuid.UUID, exchanges []qa.Exchange) error {
	rows := qaRows(eventID, exchanges)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("event_id = ?", eventID).Delete(&QAItem{}).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.Create(&rows).Error
	})
	if err != nil {
		return fmt.Errorf("replace qa items: %w", err)
	}
	return nil
}

func (s *Store) ListQA(ctx context.Context, eventID uuid.UUID) ([]qa.Exchange, error) {
	var rows []QAItem
	if err := s.db.WithContext(ctx).
		Where("event_id = ?", eventID).
		Order("question_index ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list qa items: %w", err)
	}
	return exchangesFromRows(rows), nil
}

// ReplaceSummary stores sum as the event's summary, replacing any previous
// one.
func (s *Store) ReplaceSummary(ctx context.Context, eventID uuid.UUID, model string, sum *summary.Summary) error {
	row, err := summaryRow(eventID, model, sum)
	if err != nil {
		return err
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("event_id = ?", eventID).Delete(&SummaryRecord{}).Error; err != nil {
			return err
		}
		return tx.Create(row).Error
	})
	if err != nil {
		return fmt.Errorf("replace summary: %w", err)
	}
	return nil
}

func (s *Store) GetSummary(ctx context.Context, eventID uuid.UUID) (*summary.Summary, error) {
	var row SummaryRecord
	if err := s.db.WithContext(ctx).Where("event_id = ?", eventID).First(&row).Error; err != nil {
		return nil, notFound(err, "summary for event "+eventID.String())
	}
	return summaryFromRow(&row)
}

func (s *Store) RecordChat(ctx context.Context, h *ChatHistory) error {
	if h.ID == uuid.Nil {
		h.ID = uuid.New()
	}
	if len(h.Tickers) == 0 {
		h.Tickers = []byte(`[]`)
	}
	if len(h.Citations) == 0 {
		h.Citations = []byte(`[]`)
	}
	if h.CreatedAt.IsZero() {
		h.CreatedAt = time.Now().UTC()
	}
	if err := s.db.WithContext(ctx).Create(h).Error; err != nil {
		return fmt.Errorf("record chat: %w", err)
	}
	return nil
}

// ListChatHistory returns the most recent entries first. A nil eventID lists
// every entry.
func (s *Store) ListChatHistory(ctx context.Context, eventID *uuid.UUID, limit int) ([]ChatHistory, error) {
	q := s.db.WithContext(ctx).Order("created_at DESC")
	if eventID != nil {
		q = q.Where("event_id = ?", *eventID)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []ChatHistory
	if err := q.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list chat history: %w", err)
	}
	return out, nil
}
