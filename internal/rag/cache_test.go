package rag

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"
)

func TestEncodeDecodeVector(t *testing.T) {
	v := []float32{0, 1.5, -2.25, 3.4028235e38}
	got, err := decodeVector(encodeVector(v))
	if err != nil {
		t.Fatalf("decodeVector failed: %v", err)
	}
	if len(got) != len(v) {
		t.Fatalf("length = %d, want %d", len(got), len(v))
	}
	for i := range v {
		if got[i] != v[i] {
			t.Errorf("got[%d] = %v, want %v", i, got[i], v[i])
		}
	}

	if _, err := decodeVector([]byte{1, 2, 3}); err == nil {
		t.Error("expected error for truncated vector")
	}
}

func TestCachedEmbedder_HitsSkipInner(t *testing.T) {
	inner := newMockEmbedder(3)
	cache := newMapCache()
	e := NewCachedEmbedder(inner, cache, nil)
	ctx := context.Background()

	first, err := e.Embed(ctx, []string{"alpha", "beta"})
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if inner.callCount() != 1 || cache.sets != 2 {
		t.Fatalf("expected 1 inner call and 2 sets, got %d and %d", inner.callCount(), cache.sets)
	}

	second, err := e.Embed(ctx, []string{"beta", "gamma", "alpha"})
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if inner.callCount() != 2 {
		t.Errorf("expected one more inner call for gamma, got %d total", inner.callCount())
	}
	if len(second) != 3 {
		t.Fatalf("expected 3 records, got %d", len(second))
	}
	for i, want := range []string{"beta", "gamma", "alpha"} {
		if second[i].Text != want || second[i].Index != i {
			t.Errorf("record %d = %q/%d, want %q/%d", i, second[i].Text, second[i].Index, want, i)
		}
	}
	if second[2].Embedding[0] != first[0].Embedding[0] {
		t.Error("cached alpha vector differs from first embedding")
	}
}

func TestCachedEmbedder_CacheErrorIsMiss(t *testing.T) {
	inner := newMockEmbedder(3)
	cache := newMapCache()
	cache.getErr = errors.New("connection refused")
	e := NewCachedEmbedder(inner, cache, nil)

	records, err := e.Embed(context.Background(), []string{"alpha"})
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if len(records) != 1 || inner.callCount() != 1 {
		t.Errorf("expected fallthrough to inner embedder")
	}
}

func TestCachedEmbedder_KeyIncludesModelAndDimension(t *testing.T) {
	a := NewCachedEmbedder(newMockEmbedder(3), newMapCache(), nil)
	b := NewCachedEmbedder(newMockEmbedder(4), newMapCache(), nil)
	if a.key("same") == b.key("same") {
		t.Error("keys for different dimensions should differ")
	}
	if a.key("one") == a.key("two") {
		t.Error("keys for different texts should differ")
	}
}

func TestCachedEmbedder_EmptyTexts(t *testing.T) {
	e := NewCachedEmbedder(newMockEmbedder(3), newMapCache(), nil)
	if _, err := e.Embed(context.Background(), nil); err != ErrEmptyTexts {
		t.Errorf("expected ErrEmptyTexts, got %v", err)
	}
}

func TestRedisCache_Integration(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set")
	}
	ctx := context.Background()

	cache, err := NewRedisCache(ctx, url, time.Minute)
	if err != nil {
		t.Fatalf("NewRedisCache failed: %v", err)
	}
	defer cache.Close()

	key := embeddingKeyPrefix + "test:roundtrip"
	if err := cache.Set(ctx, key, []float32{1, 2, 3}); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	got, ok, err := cache.Get(ctx, key)
	if err != nil || !ok {
		t.Fatalf("Get = %v, %v", ok, err)
	}
	if len(got) != 3 || got[2] != 3 {
		t.Errorf("Get returned %v", got)
	}

	_, ok, err = cache.Get(ctx, embeddingKeyPrefix+"test:missing")
	if err != nil || ok {
		t.Errorf("expected clean miss, got ok=%v err=%v", ok, err)
	}
}
