package rag

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/reviewpulse/reviewpulse/config"
	"github.com/reviewpulse/reviewpulse/internal/cache"
)

func TestAnswerServedFromCache(t *testing.T) {
	mr := miniredis.RunT(t)
	answers, err := cache.New(context.Background(), config.CacheConfig{
		Host: mr.Host(),
		Port: mr.Port(),
		TTL:  time.Minute,
	})
	if err != nil {
		t.Fatalf("cache.New: %v", err)
	}
	defer answers.Close()

	index := &fakeIndex{hits: contractHits()}
	provider := &fakeProvider{responses: []string{"Confidentiality lasts 24 months."}}
	p := NewPipeline(index, provider, answers, nil)

	first := p.Answer(context.Background(), "How long does confidentiality last?", "demo")
	if first.Err != "" {
		t.Fatalf("first query failed: %s", first.Err)
	}
	if first.Debug.CacheHit {
		t.Fatal("first query must miss the cache")
	}

	second := p.Answer(context.Background(), "How long does confidentiality last?", "demo")
	if !second.Debug.CacheHit {
		t.Fatal("second query must hit the cache")
	}
	if second.Answer != first.Answer {
		t.Fatalf("cached answer = %q, want %q", second.Answer, first.Answer)
	}
	if len(second.Sources) != len(first.Sources) {
		t.Fatalf("cached sources = %v", second.Sources)
	}
	if second.RequestID == first.RequestID {
		t.Fatal("cache hits must still mint a fresh requestId")
	}

	// The provider queue is exhausted after the first call; a second
	// completion would have failed.
	if len(index.queries) != 1 {
		t.Fatalf("searches = %d, want the cache to absorb the second query", len(index.queries))
	}
}

func TestAnswerUngroundedResponsesAreNotCached(t *testing.T) {
	mr := miniredis.RunT(t)
	answers, err := cache.New(context.Background(), config.CacheConfig{
		Host: mr.Host(),
		Port: mr.Port(),
		TTL:  time.Minute,
	})
	if err != nil {
		t.Fatalf("cache.New: %v", err)
	}
	defer answers.Close()

	index := &fakeIndex{}
	provider := &fakeProvider{responses: []string{"I have no context.", "Still no context."}}
	p := NewPipeline(index, provider, answers, nil)

	p.Answer(context.Background(), "query", "demo")
	second := p.Answer(context.Background(), "query", "demo")
	if second.Debug.CacheHit {
		t.Fatal("answers without context must not be cached")
	}
}
