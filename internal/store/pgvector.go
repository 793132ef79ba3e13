package store

import (
	"context"
	"fmt"

	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"

	"github.com/Yates-Labs/reseek/internal/apperr"
	"github.com/Yates-Labs/reseek/internal/logger"
	"github.com/Yates-Labs/reseek/internal/rag"
)

const chunkVectorsTable = "chunk_vectors"

// chunkVector is a row of chunk_vectors. The table is created by hand because
// the vector column's dimension is only known at runtime.
type chunkVector struct {
	ChunkID      string          `gorm:"column:chunk_id;primaryKey"`
	TranscriptID string          `gorm:"column:transcript_id"`
	EventID      string          `gorm:"column:event_id"`
	Ticker       string          `gorm:"column:ticker"`
	ChunkIndex   int             `gorm:"column:chunk_index"`
	Text         string          `gorm:"column:text"`
	TokenCount   int             `gorm:"column:token_count"`
	StartToken   int             `gorm:"column:start_token"`
	EndToken     int             `gorm:"column:end_token"`
	StartTime    *string         `gorm:"column:start_time"`
	Speaker      *string         `gorm:"column:speaker"`
	Embedding    pgvector.Vector `gorm:"column:embedding"`
}

func (chunkVector) TableName() string { return chunkVectorsTable }

type chunkHit struct {
	chunkVector
	Distance float64 `gorm:"column:distance"`
}

// PgVectorStore implements rag.VectorStore on Postgres with the pgvector
// extension, ranking by L2 distance.
type PgVectorStore struct {
	db        *gorm.DB
	dimension int
	log       *logger.Logger
}

var _ rag.VectorStore = (*PgVectorStore)(nil)

// NewPgVectorStore enables the vector extension and creates chunk_vectors
// if needed.
func NewPgVectorStore(ctx context.Context, db *gorm.DB, dimension int, log *logger.Logger) (*PgVectorStore, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("%w: %d", rag.ErrInvalidDimension, dimension)
	}
	if log == nil {
		log = logger.Nop()
	}
	s := &PgVectorStore{db: db, dimension: dimension, log: log.With("service", "PgVectorStore")}
	if err := s.ensureTable(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *PgVectorStore) ensureTable(ctx context.Context) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			chunk_id      text PRIMARY KEY,
			transcript_id text NOT NULL,
			event_id      text NOT NULL DEFAULT '',
			ticker        text NOT NULL DEFAULT '',
			chunk_index   integer NOT NULL,
			text          text NOT NULL,
			token_count   integer NOT NULL DEFAULT 0,
			start_token   integer NOT NULL DEFAULT 0,
			end_token     integer NOT NULL DEFAULT 0,
			start_time    text,
			speaker       text,
			embedding     vector(%d) NOT NULL
		)`, chunkVectorsTable, s.dimension),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%[1]s_transcript ON %[1]s (transcript_id)`, chunkVectorsTable),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%[1]s_event ON %[1]s (event_id)`, chunkVectorsTable),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%[1]s_ticker ON %[1]s (ticker)`, chunkVectorsTable),
	}
	for _, stmt := range stmts {
		if err := s.db.WithContext(ctx).Exec(stmt).Error; err != nil {
			return fmt.Errorf("%w: prepare %s: %v", rag.ErrConnectionFailed, chunkVectorsTable, err)
		}
	}
	return nil
}

func (s *PgVectorStore) Insert(ctx context.Context, records []rag.ChunkRecord) error {
	if len(records) == 0 {
		return rag.ErrEmptyRecords
	}
	rows := make([]chunkVector, len(records))
	for i, r := range records {
		if r.ChunkID == "" || r.TranscriptID == "" {
			return fmt.Errorf("%w: chunk_id and transcript_id", rag.ErrMissingMetadata)
		}
		if len(r.Embedding) != s.dimension {
			return fmt.Errorf("%w: record %d has %d, expected %d", rag.ErrInvalidDimension, i, len(r.Embedding), s.dimension)
		}
		rows[i] = chunkVector{
			ChunkID:      r.ChunkID,
			TranscriptID: r.TranscriptID,
			EventID:      r.EventID,
			Ticker:       r.Ticker,
			ChunkIndex:   r.Index,
			Text:         r.Text,
			TokenCount:   r.TokenCount,
			StartToken:   r.StartToken,
			EndToken:     r.EndToken,
			StartTime:    r.StartTime,
			Speaker:      r.Speaker,
			Embedding:    pgvector.NewVector(r.Embedding),
		}
	}
	if err := s.db.WithContext(ctx).CreateInBatches(&rows, 100).Error; err != nil {
		return fmt.Errorf("%w: %v", rag.ErrInsertFailed, err)
	}
	return nil
}

// Flush is a no-op: inserts are visible once their statement commits.
func (s *PgVectorStore) Flush(ctx context.Context) error { return nil }

func (s *PgVectorStore) Search(ctx context.Context, queryVector []float32, topK int, opts *rag.SearchOptions) ([]rag.ContextChunk, error) {
	if len(queryVector) != s.dimension {
		return nil, fmt.Errorf("%w: expected %d, got %d", rag.ErrInvalidDimension, s.dimension, len(queryVector))
	}
	if topK <= 0 {
		return nil, fmt.Errorf("%w: topK must be positive", apperr.ErrInvalidConfiguration)
	}

	q := s.db.WithContext(ctx).
		Table(chunkVectorsTable).
		Select("*, embedding <-> ? AS distance", pgvector.NewVector(queryVector))
	if opts != nil {
		if opts.EventID != "" {
			q = q.Where("event_id = ?", opts.EventID)
		} else if tickers := rag.NormalizeTickers(opts.Tickers); len(tickers) > 0 {
			q = q.Where("ticker IN ?", tickers)
		}
	}

	var hits []chunkHit
	if err := q.Order("distance ASC").Limit(topK).Scan(&hits).Error; err != nil {
		return nil, fmt.Errorf("%w: %v", rag.ErrSearchFailed, err)
	}

	out := make([]rag.ContextChunk, len(hits))
	for i, h := range hits {
		out[i] = rag.ContextChunk{
			ChunkID:      h.ChunkID,
			TranscriptID: h.TranscriptID,
			EventID:      h.EventID,
			Ticker:       h.Ticker,
			Index:        h.ChunkIndex,
			Text:         h.Text,
			TokenCount:   h.TokenCount,
			StartToken:   h.StartToken,
			EndToken:     h.EndToken,
			StartTime:    h.StartTime,
			Speaker:      h.Speaker,
			Score:        float32(1 / (1 + h.Distance)),
		}
	}
	return out, nil
}

func (s *PgVectorStore) DeleteStale(ctx context.Context, transcriptID string, keep []string) error {
	q := s.db.WithContext(ctx).Where("transcript_id = ?", transcriptID)
	if len(keep) > 0 {
		q = q.Where("chunk_id NOT IN ?", keep)
	}
	if err := q.Delete(&chunkVector{}).Error; err != nil {
		return fmt.Errorf("%w: %v", rag.ErrDeleteFailed, err)
	}
	return nil
}

func (s *PgVectorStore) DeleteTranscript(ctx context.Context, transcriptID string) error {
	return s.DeleteStale(ctx, transcriptID, nil)
}

func (s *PgVectorStore) GetStats(ctx context.Context) (map[string]interface{}, error) {
	var count int64
	if err := s.db.WithContext(ctx).Table(chunkVectorsTable).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("failed to get stats: %w", err)
	}
	return map[string]interface{}{
		"backend":   "pgvector",
		"table":     chunkVectorsTable,
		"row_count": count,
	}, nil
}

// Close is a no-op; the connection belongs to the Store that opened it.
func (s *PgVectorStore) Close() error { return nil }
