package rag

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Yates-Labs/reseek/internal/logger"
)

const embeddingKeyPrefix = "reseek:embedding:"

// Cache stores embedding vectors by key.
type Cache interface {
	// Get returns the vector and true on a hit, or false on a miss.
	Get(ctx context.Context, key string) ([]float32, bool, error)
	Set(ctx context.Context, key string, vector []float32) error
}

// RedisCache is a Cache backed by Redis strings holding little-endian
// float32 arrays.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache connects to redisURL and verifies the connection.
func NewRedisCache(ctx context.Context, redisURL string, ttl time.Duration) (*RedisCache, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		opt = &redis.Options{Addr: redisURL}
	}

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return &RedisCache{client: client, ttl: ttl}, nil
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]float32, bool, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	vec, err := decodeVector(data)
	if err != nil {
		return nil, false, err
	}
	return vec, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, vector []float32) error {
	return c.client.Set(ctx, key, encodeVector(vector), c.ttl).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(data []byte) ([]float32, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("corrupt cached vector: %d bytes", len(data))
	}
	v := make([]float32, len(data)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[4*i:]))
	}
	return v, nil
}

// CachedEmbedder consults a Cache before delegating to another Embedder.
// Cache errors are logged and treated as misses.
type CachedEmbedder struct {
	inner Embedder
	cache Cache
	log   *logger.Logger
}

func NewCachedEmbedder(inner Embedder, cache Cache, log *logger.Logger) *CachedEmbedder {
	if log == nil {
		log = logger.Nop()
	}
	return &CachedEmbedder{inner: inner, cache: cache, log: log}
}

func (e *CachedEmbedder) GetModel() string  { return e.inner.GetModel() }
func (e *CachedEmbedder) GetDimension() int { return e.inner.GetDimension() }

func (e *CachedEmbedder) Embed(ctx context.Context, texts []string) ([]EmbeddingRecord, error) {
	if len(texts) == 0 {
		return nil, ErrEmptyTexts
	}

	records := make([]EmbeddingRecord, len(texts))
	var missTexts []string
	var missIdx []int

	for i, text := range texts {
		vec, ok, err := e.cache.Get(ctx, e.key(text))
		if err != nil {
			e.log.Warn("embedding cache read failed", "error", err)
		}
		if ok && len(vec) == e.inner.GetDimension() {
			records[i] = EmbeddingRecord{Text: text, Embedding: vec, Index: i, Model: e.inner.GetModel()}
			continue
		}
		missTexts = append(missTexts, text)
		missIdx = append(missIdx, i)
	}

	if len(missTexts) == 0 {
		return records, nil
	}

	fresh, err := e.inner.Embed(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	for _, rec := range fresh {
		if rec.Index < 0 || rec.Index >= len(missIdx) {
			return nil, fmt.Errorf("%w: embedding index %d out of range", ErrEmbeddingFailed, rec.Index)
		}
		i := missIdx[rec.Index]
		rec.Index = i
		records[i] = rec

		if err := e.cache.Set(ctx, e.key(rec.Text), rec.Embedding); err != nil {
			e.log.Warn("embedding cache write failed", "error", err)
		}
	}

	return records, nil
}

func (e *CachedEmbedder) key(text string) string {
	sum := sha256.Sum256([]byte(text))
	return fmt.Sprintf("%s%s:%d:%s", embeddingKeyPrefix, e.inner.GetModel(), e.inner.GetDimension(), hex.EncodeToString(sum[:]))
}
