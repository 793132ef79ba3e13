package rag

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"

	"github.com/Yates-Labs/reseek/internal/apperr"
)

// Common errors for Milvus operations
var (
	ErrInvalidDimension = fmt.Errorf("%w: invalid vector dimension", apperr.ErrInvalidConfiguration)
	ErrEmptyRecords     = errors.New("no records provided for insertion")
	ErrConnectionFailed = fmt.Errorf("%w: failed to connect to Milvus", apperr.ErrCapability)
	ErrInsertFailed     = fmt.Errorf("%w: failed to insert records", apperr.ErrCapability)
	ErrSearchFailed     = fmt.Errorf("%w: failed to search vectors", apperr.ErrCapability)
	ErrDeleteFailed     = fmt.Errorf("%w: failed to delete records", apperr.ErrCapability)
	ErrMissingMetadata  = errors.New("required metadata fields missing")
)

// MilvusConfig holds configuration for Milvus connection and collection
type MilvusConfig struct {
	Address        string // Milvus server address (e.g., "localhost:19530")
	CollectionName string // Name of the collection
	Dimension      int    // Vector dimension (e.g., 3072 for text-embedding-3-large)

	// HNSW index parameters
	M              int // HNSW M parameter (default: 16)
	EfConstruction int // HNSW efConstruction (default: 256)
	EfSearch       int // HNSW ef at query time (default: 64)
}

// DefaultMilvusConfig returns the defaults for a local Milvus
func DefaultMilvusConfig() MilvusConfig {
	return MilvusConfig{
		Address:        "localhost:19530",
		CollectionName: "reseek_chunks",
		Dimension:      3072, // text-embedding-3-large
		M:              16,
		EfConstruction: 256,
		EfSearch:       64,
	}
}

const (
	fieldID           = "id"
	fieldChunkID      = "chunk_id"
	fieldTranscriptID = "transcript_id"
	fieldEventID      = "event_id"
	fieldTicker       = "ticker"
	fieldChunkIndex   = "chunk_index"
	fieldTokenCount   = "token_count"
	fieldStartToken   = "start_token"
	fieldEndToken     = "end_token"
	fieldText         = "text"
	fieldStartTime    = "start_time"
	fieldSpeaker      = "speaker"
	fieldEmbedding    = "embedding"
)

var searchOutputFields = []string{
	fieldChunkID, fieldTranscriptID, fieldEventID, fieldTicker, fieldChunkIndex,
	fieldTokenCount, fieldStartToken, fieldEndToken, fieldText, fieldStartTime, fieldSpeaker,
}

// MilvusStore implements VectorStore interface using Milvus
type MilvusStore struct {
	client client.Client
	config MilvusConfig
}

// NewMilvusStore creates a new Milvus vector store instance
// Connects to Milvus and ensures the collection exists with proper schema
func NewMilvusStore(ctx context.Context, config MilvusConfig) (*MilvusStore, error) {
	if config.Dimension <= 0 {
		return nil, ErrInvalidDimension
	}
	if config.EfSearch <= 0 {
		config.EfSearch = 64
	}

	c, err := client.NewGrpcClient(ctx, config.Address)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}

	store := &MilvusStore{
		client: c,
		config: config,
	}

	if err := store.ensureCollection(ctx); err != nil {
		c.Close()
		return nil, err
	}

	return store, nil
}

func varchar(name string, maxLen int) *entity.Field {
	return &entity.Field{
		Name:     name,
		DataType: entity.FieldTypeVarChar,
		TypeParams: map[string]string{
			"max_length": strconv.Itoa(maxLen),
		},
	}
}

func int64Field(name string) *entity.Field {
	return &entity.Field{Name: name, DataType: entity.FieldTypeInt64}
}

// ensureCollection creates the collection with schema if it doesn't exist
func (m *MilvusStore) ensureCollection(ctx context.Context) error {
	has, err := m.client.HasCollection(ctx, m.config.CollectionName)
	if err != nil {
		return fmt.Errorf("%w: check collection existence: %v", ErrConnectionFailed, err)
	}

	if has {
		return m.client.LoadCollection(ctx, m.config.CollectionName, false)
	}

	schema := &entity.Schema{
		CollectionName: m.config.CollectionName,
		Description:    "earnings call transcript chunks",
		AutoID:         true,
		Fields: []*entity.Field{
			{
				Name:       fieldID,
				DataType:   entity.FieldTypeInt64,
				PrimaryKey: true,
				AutoID:     true,
			},
			varchar(fieldChunkID, 64),
			varchar(fieldTranscriptID, 64),
			varchar(fieldEventID, 64),
			varchar(fieldTicker, 16),
			int64Field(fieldChunkIndex),
			int64Field(fieldTokenCount),
			int64Field(fieldStartToken),
			int64Field(fieldEndToken),
			varchar(fieldText, 65535),
			varchar(fieldStartTime, 16), // "" when absent
			varchar(fieldSpeaker, 256),  // "" when absent
			{
				Name:     fieldEmbedding,
				DataType: entity.FieldTypeFloatVector,
				TypeParams: map[string]string{
					"dim": strconv.Itoa(m.config.Dimension),
				},
			},
		},
	}

	if err := m.client.CreateCollection(ctx, schema, entity.DefaultShardNumber); err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	idx, err := entity.NewIndexHNSW(entity.COSINE, m.config.M, m.config.EfConstruction)
	if err != nil {
		return fmt.Errorf("failed to create index config: %w", err)
	}

	if err := m.client.CreateIndex(ctx, m.config.CollectionName, fieldEmbedding, idx, false); err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	if err := m.client.LoadCollection(ctx, m.config.CollectionName, false); err != nil {
		return fmt.Errorf("failed to load collection: %w", err)
	}

	return nil
}

// Insert adds chunk records to Milvus
func (m *MilvusStore) Insert(ctx context.Context, records []ChunkRecord) error {
	if len(records) == 0 {
		return ErrEmptyRecords
	}

	n := len(records)
	var (
		chunkIDs      = make([]string, n)
		transcriptIDs = make([]string, n)
		eventIDs      = make([]string, n)
		tickers       = make([]string, n)
		indexes       = make([]int64, n)
		tokenCounts   = make([]int64, n)
		startTokens   = make([]int64, n)
		endTokens     = make([]int64, n)
		texts         = make([]string, n)
		startTimes    = make([]string, n)
		speakers      = make([]string, n)
		embeddings    = make([][]float32, n)
	)

	for i, r := range records {
		if r.ChunkID == "" || r.TranscriptID == "" {
			return fmt.Errorf("%w: chunk_id and transcript_id", ErrMissingMetadata)
		}
		if len(r.Embedding) != m.config.Dimension {
			return fmt.Errorf("%w: record %d has %d, expected %d", ErrInvalidDimension, i, len(r.Embedding), m.config.Dimension)
		}
		chunkIDs[i] = r.ChunkID
		transcriptIDs[i] = r.TranscriptID
		eventIDs[i] = r.EventID
		tickers[i] = r.Ticker
		indexes[i] = int64(r.Index)
		tokenCounts[i] = int64(r.TokenCount)
		startTokens[i] = int64(r.StartToken)
		endTokens[i] = int64(r.EndToken)
		texts[i] = r.Text
		startTimes[i] = deref(r.StartTime)
		speakers[i] = deref(r.Speaker)
		embeddings[i] = r.Embedding
	}

	columns := []entity.Column{
		entity.NewColumnVarChar(fieldChunkID, chunkIDs),
		entity.NewColumnVarChar(fieldTranscriptID, transcriptIDs),
		entity.NewColumnVarChar(fieldEventID, eventIDs),
		entity.NewColumnVarChar(fieldTicker, tickers),
		entity.NewColumnInt64(fieldChunkIndex, indexes),
		entity.NewColumnInt64(fieldTokenCount, tokenCounts),
		entity.NewColumnInt64(fieldStartToken, startTokens),
		entity.NewColumnInt64(fieldEndToken, endTokens),
		entity.NewColumnVarChar(fieldText, texts),
		entity.NewColumnVarChar(fieldStartTime, startTimes),
		entity.NewColumnVarChar(fieldSpeaker, speakers),
		entity.NewColumnFloatVector(fieldEmbedding, m.config.Dimension, embeddings),
	}

	if _, err := m.client.Insert(ctx, m.config.CollectionName, "", columns...); err != nil {
		return fmt.Errorf("%w: %v", ErrInsertFailed, err)
	}

	return nil
}

// Flush ensures inserted data is persisted and visible to search
func (m *MilvusStore) Flush(ctx context.Context) error {
	if err := m.client.Flush(ctx, m.config.CollectionName, false); err != nil {
		return fmt.Errorf("%w: flush: %v", ErrInsertFailed, err)
	}
	return nil
}

// Search performs top-K similarity search scoped by event or tickers
func (m *MilvusStore) Search(ctx context.Context, queryVector []float32, topK int, opts *SearchOptions) ([]ContextChunk, error) {
	if len(queryVector) != m.config.Dimension {
		return nil, fmt.Errorf("%w: expected %d, got %d", ErrInvalidDimension, m.config.Dimension, len(queryVector))
	}

	sp, err := entity.NewIndexHNSWSearchParam(m.config.EfSearch)
	if err != nil {
		return nil, fmt.Errorf("failed to create search params: %w", err)
	}

	results, err := m.client.Search(
		ctx,
		m.config.CollectionName,
		nil, // partition names
		opts.FilterExpr(),
		searchOutputFields,
		[]entity.Vector{entity.FloatVector(queryVector)},
		fieldEmbedding,
		entity.COSINE,
		topK,
		sp,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSearchFailed, err)
	}

	if len(results) == 0 {
		return []ContextChunk{}, nil
	}

	res := results[0]
	chunks := make([]ContextChunk, res.ResultCount)
	for i := range chunks {
		chunks[i].Score = res.Scores[i]
	}

	for _, field := range res.Fields {
		switch col := field.(type) {
		case *entity.ColumnVarChar:
			data := col.Data()
			for i := range chunks {
				setVarChar(&chunks[i], col.Name(), data[i])
			}
		case *entity.ColumnInt64:
			data := col.Data()
			for i := range chunks {
				setInt64(&chunks[i], col.Name(), data[i])
			}
		}
	}

	return chunks, nil
}

func setVarChar(c *ContextChunk, name, v string) {
	switch name {
	case fieldChunkID:
		c.ChunkID = v
	case fieldTranscriptID:
		c.TranscriptID = v
	case fieldEventID:
		c.EventID = v
	case fieldTicker:
		c.Ticker = v
	case fieldText:
		c.Text = v
	case fieldStartTime:
		c.StartTime = optional(v)
	case fieldSpeaker:
		c.Speaker = optional(v)
	}
}

func setInt64(c *ContextChunk, name string, v int64) {
	switch name {
	case fieldChunkIndex:
		c.Index = int(v)
	case fieldTokenCount:
		c.TokenCount = int(v)
	case fieldStartToken:
		c.StartToken = int(v)
	case fieldEndToken:
		c.EndToken = int(v)
	}
}

// DeleteStale removes the transcript's rows whose chunk ID is not in keep.
// Rows are resolved to primary keys first so the delete expression stays a
// plain primary-key filter.
func (m *MilvusStore) DeleteStale(ctx context.Context, transcriptID string, keep []string) error {
	expr := fmt.Sprintf("%s == %s", fieldTranscriptID, strconv.Quote(transcriptID))
	if len(keep) > 0 {
		expr = fmt.Sprintf("%s && %s not in %s", expr, fieldChunkID, quoteList(keep))
	}
	return m.deleteWhere(ctx, expr)
}

// DeleteTranscript removes every row of the transcript
func (m *MilvusStore) DeleteTranscript(ctx context.Context, transcriptID string) error {
	return m.deleteWhere(ctx, fmt.Sprintf("%s == %s", fieldTranscriptID, strconv.Quote(transcriptID)))
}

func (m *MilvusStore) deleteWhere(ctx context.Context, expr string) error {
	results, err := m.client.Query(ctx, m.config.CollectionName, nil, expr, []string{fieldID})
	if err != nil {
		return fmt.Errorf("%w: query: %v", ErrDeleteFailed, err)
	}

	var ids []int64
	for _, column := range results {
		if column.Name() != fieldID {
			continue
		}
		if col, ok := column.(*entity.ColumnInt64); ok {
			ids = append(ids, col.Data()...)
		}
	}
	if len(ids) == 0 {
		return nil
	}

	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	pkExpr := fmt.Sprintf("%s in [%s]", fieldID, strings.Join(parts, ","))

	if err := m.client.Delete(ctx, m.config.CollectionName, "", pkExpr); err != nil {
		return fmt.Errorf("%w: %v", ErrDeleteFailed, err)
	}
	return nil
}

// GetStats returns collection statistics
func (m *MilvusStore) GetStats(ctx context.Context) (map[string]interface{}, error) {
	stats, err := m.client.GetCollectionStatistics(ctx, m.config.CollectionName)
	if err != nil {
		return nil, fmt.Errorf("failed to get stats: %w", err)
	}

	return map[string]interface{}{
		"backend":    "milvus",
		"collection": m.config.CollectionName,
		"row_count":  stats["row_count"],
	}, nil
}

// Close releases resources and closes the Milvus connection
func (m *MilvusStore) Close() error {
	if m.client != nil {
		return m.client.Close()
	}
	return nil
}

func quoteList(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = strconv.Quote(v)
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
