package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/reviewpulse/reviewpulse/internal/llm"
	"github.com/reviewpulse/reviewpulse/internal/vectorstore"
)

// fakeIndex returns canned hits and records the queries it saw. It is
// safe for the concurrent sub-query fan-out.
type fakeIndex struct {
	mu      sync.Mutex
	hits    []vectorstore.Hit
	err     error
	queries []string
	topKs   []int
}

func (f *fakeIndex) Search(_ context.Context, _ string, query string, topK int) ([]vectorstore.Hit, error) {
	f.mu.Lock()
	f.queries = append(f.queries, query)
	f.topKs = append(f.topKs, topK)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.hits, nil
}

func (f *fakeIndex) Upsert(_ context.Context, _ string, _ []vectorstore.Record) error { return f.err }

func (f *fakeIndex) DeleteNamespace(_ context.Context, _ string) error { return f.err }

// fakeProvider answers each Complete call from a queue and records the
// requests it saw.
type fakeProvider struct {
	responses []string
	err       error
	requests  []llm.CompletionRequest
}

func (f *fakeProvider) Complete(_ context.Context, req llm.CompletionRequest) (string, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return "", f.err
	}
	if len(f.responses) == 0 {
		return "", fmt.Errorf("fakeProvider: no responses left")
	}
	resp := f.responses[0]
	f.responses = f.responses[1:]
	return resp, nil
}

func contractHits() []vectorstore.Hit {
	return []vectorstore.Hit{
		{ID: "NDA_Contract.pdf-3", Score: 0.92, Source: "NDA_Contract.pdf", ChunkText: "confidentiality lasts 24 months"},
		{ID: "NDA_Contract.pdf-5", Score: 0.81, Source: "NDA_Contract.pdf", ChunkText: "governing law is New York"},
		{ID: "Master_Services_Agreement.pdf-1", Score: 0.74, Source: "Master_Services_Agreement.pdf", ChunkText: "net 45 payment terms"},
	}
}

func TestAnswerGroundedQuery(t *testing.T) {
	index := &fakeIndex{hits: contractHits()}
	provider := &fakeProvider{responses: []string{"Confidentiality lasts 24 months [#0]."}}
	p := NewPipeline(index, provider, nil, nil)

	result := p.Answer(context.Background(), "How long does confidentiality last?", "demo")

	if result.Err != "" {
		t.Fatalf("unexpected error: %s", result.Err)
	}
	if result.Answer != "Confidentiality lasts 24 months [#0]." {
		t.Fatalf("answer = %q", result.Answer)
	}
	if len(result.Sources) != 2 || result.Sources[0] != "NDA_Contract.pdf" || result.Sources[1] != "Master_Services_Agreement.pdf" {
		t.Fatalf("sources = %v, want deduplicated in hit order", result.Sources)
	}
	if result.Debug.ChunksCount != 3 {
		t.Fatalf("chunks_count = %d", result.Debug.ChunksCount)
	}
	if result.Debug.TopScore != 0.92 {
		t.Fatalf("top_score = %v", result.Debug.TopScore)
	}
	if result.RequestID == "" {
		t.Fatal("missing requestId")
	}
	if index.topKs[0] != 6 {
		t.Fatalf("topK = %d, want 6", index.topKs[0])
	}

	prompt := provider.requests[0].Messages[0].Content
	if !strings.Contains(prompt, "[#0 | NDA_Contract.pdf]") {
		t.Fatalf("prompt missing numbered context block:\n%s", prompt)
	}
	if !strings.Contains(prompt, "\n\n---\n\n") {
		t.Fatalf("prompt missing block separator:\n%s", prompt)
	}
}

func TestAnswerNoContextFound(t *testing.T) {
	index := &fakeIndex{}
	provider := &fakeProvider{responses: []string{"I don't have enough context to answer."}}
	p := NewPipeline(index, provider, nil, nil)

	result := p.Answer(context.Background(), "anything", "demo")

	if result.Err != "" {
		t.Fatalf("unexpected error: %s", result.Err)
	}
	if len(result.Sources) != 0 {
		t.Fatalf("sources = %v, want empty", result.Sources)
	}
	if result.Sources == nil {
		t.Fatal("sources must be an empty slice, not nil")
	}
	if !strings.Contains(provider.requests[0].Messages[0].Content, "Context: (none found)") {
		t.Fatalf("prompt should state no context was found:\n%s", provider.requests[0].Messages[0].Content)
	}
}

func TestAnswerSkipsEmptyChunks(t *testing.T) {
	index := &fakeIndex{hits: []vectorstore.Hit{
		{ID: "a-0", Source: "a.pdf", ChunkText: "   "},
		{ID: "b-0", Source: "b.pdf", ChunkText: "usable text", Score: 0.5},
	}}
	provider := &fakeProvider{responses: []string{"ok"}}
	p := NewPipeline(index, provider, nil, nil)

	result := p.Answer(context.Background(), "q", "demo")
	if result.Debug.ChunksCount != 1 {
		t.Fatalf("chunks_count = %d, want 1", result.Debug.ChunksCount)
	}
	if len(result.Sources) != 1 || result.Sources[0] != "b.pdf" {
		t.Fatalf("sources = %v", result.Sources)
	}
}

func TestAnswerRetrievalFailure(t *testing.T) {
	index := &fakeIndex{err: errors.New("upstream boom")}
	p := NewPipeline(index, &fakeProvider{}, nil, nil)

	result := p.Answer(context.Background(), "q", "demo")
	if result.Answer != "Query failed" {
		t.Fatalf("answer = %q", result.Answer)
	}
	if result.Err == "" {
		t.Fatal("expected error detail in result")
	}
	if result.Sources == nil || len(result.Sources) != 0 {
		t.Fatalf("sources = %v, want empty slice", result.Sources)
	}
}

func TestAnswerMissingAPIKey(t *testing.T) {
	index := &fakeIndex{hits: contractHits()}
	provider := &fakeProvider{err: llm.ErrNoAPIKey}
	p := NewPipeline(index, provider, nil, nil)

	result := p.Answer(context.Background(), "q", "demo")
	if !result.ConfigError {
		t.Fatal("expected ConfigError")
	}
	if !strings.Contains(result.Answer, "missing the LLM API key") {
		t.Fatalf("answer = %q", result.Answer)
	}
	if len(result.Sources) == 0 {
		t.Fatal("retrieved sources should still be reported")
	}
	if result.Err != "" {
		t.Fatalf("configuration problems are not generic failures, got Err=%q", result.Err)
	}
}

func TestAnswerEmptyCompletion(t *testing.T) {
	index := &fakeIndex{hits: contractHits()}
	provider := &fakeProvider{responses: []string{""}}
	p := NewPipeline(index, provider, nil, nil)

	result := p.Answer(context.Background(), "q", "demo")
	if result.Answer != "No answer generated." {
		t.Fatalf("answer = %q", result.Answer)
	}
}

func TestBuildContextsSourceFallback(t *testing.T) {
	contexts, sources := buildContexts([]vectorstore.Hit{
		{ID: "doc-0", ChunkText: "text without source"},
		{ChunkText: "text without anything"},
	})
	if len(contexts) != 2 {
		t.Fatalf("contexts = %d", len(contexts))
	}
	if sources[0] != "doc-0" {
		t.Fatalf("source fallback to id failed: %v", sources)
	}
	if sources[1] != "unknown" {
		t.Fatalf("source fallback to unknown failed: %v", sources)
	}
}
