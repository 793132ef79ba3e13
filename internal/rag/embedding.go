package rag

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/Yates-Labs/reseek/internal/apperr"
)

var (
	ErrEmptyTexts      = errors.New("no texts provided for embedding")
	ErrMissingAPIKey   = fmt.Errorf("%w: OpenAI API key not set", apperr.ErrInvalidConfiguration)
	ErrEmbeddingFailed = fmt.Errorf("%w: embedding generation failed", apperr.ErrCapability)
)

// EmbeddingRecord is the vector for texts[Index] of one Embed call.
type EmbeddingRecord struct {
	Text      string    `json:"text"`
	Embedding []float32 `json:"embedding"`
	Index     int       `json:"index"`
	Model     string    `json:"model"`
}

// Embedder turns chunk and question text into vectors. Every record an
// implementation returns has GetDimension() components.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([]EmbeddingRecord, error)
	GetModel() string
	GetDimension() int
}

// OpenAIEmbedder requests vectors of a fixed dimension from the OpenAI
// embeddings endpoint in a single batch per call.
type OpenAIEmbedder struct {
	client    openai.Client
	model     string
	dimension int
}

func NewOpenAIEmbedder(apiKey, model string, dimension int) (*OpenAIEmbedder, error) {
	switch {
	case apiKey == "":
		return nil, ErrMissingAPIKey
	case dimension <= 0:
		return nil, fmt.Errorf("%w: %d", ErrInvalidDimension, dimension)
	}
	return &OpenAIEmbedder{
		client:    openai.NewClient(option.WithAPIKey(apiKey)),
		model:     model,
		dimension: dimension,
	}, nil
}

func (e *OpenAIEmbedder) GetModel() string  { return e.model }
func (e *OpenAIEmbedder) GetDimension() int { return e.dimension }

func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([]EmbeddingRecord, error) {
	if len(texts) == 0 {
		return nil, ErrEmptyTexts
	}

	params := openai.EmbeddingNewParams{
		Model:          e.model,
		Input:          openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
		Dimensions:     openai.Int(int64(e.dimension)),
		EncodingFormat: openai.EmbeddingNewParamsEncodingFormatFloat,
	}
	resp, err := e.client.Embeddings.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}
	return e.records(texts, resp.Data)
}

// records orders the response by the index the API reports, which need not
// match response order.
func (e *OpenAIEmbedder) records(texts []string, data []openai.Embedding) ([]EmbeddingRecord, error) {
	if len(data) != len(texts) {
		return nil, fmt.Errorf("%w: expected %d embeddings, got %d", ErrEmbeddingFailed, len(texts), len(data))
	}

	out := make([]EmbeddingRecord, len(texts))
	seen := make([]bool, len(texts))
	for _, d := range data {
		i := int(d.Index)
		if i < 0 || i >= len(texts) || seen[i] {
			return nil, fmt.Errorf("%w: unexpected embedding index %d", ErrEmbeddingFailed, i)
		}
		seen[i] = true
		out[i] = EmbeddingRecord{
			Text:      texts[i],
			Embedding: toFloat32(d.Embedding),
			Index:     i,
			Model:     e.model,
		}
	}
	return out, nil
}

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, f := range v {
		out[i] = float32(f)
	}
	return out
}

// TimeoutEmbedder bounds every call to another Embedder. A zero or negative
// timeout leaves the caller's context untouched.
type TimeoutEmbedder struct {
	inner   Embedder
	timeout time.Duration
}

func NewTimeoutEmbedder(inner Embedder, timeout time.Duration) *TimeoutEmbedder {
	return &TimeoutEmbedder{inner: inner, timeout: timeout}
}

func (e *TimeoutEmbedder) GetModel() string  { return e.inner.GetModel() }
func (e *TimeoutEmbedder) GetDimension() int { return e.inner.GetDimension() }

func (e *TimeoutEmbedder) Embed(ctx context.Context, texts []string) ([]EmbeddingRecord, error) {
	if e.timeout <= 0 {
		return e.inner.Embed(ctx, texts)
	}
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	return e.inner.Embed(ctx, texts)
}
