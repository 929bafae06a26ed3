package rag

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/reviewpulse/reviewpulse/internal/cache"
	"github.com/reviewpulse/reviewpulse/internal/llm"
	"github.com/reviewpulse/reviewpulse/internal/telemetry"
	"github.com/reviewpulse/reviewpulse/internal/vectorstore"
)

const (
	queryTopK = 6

	querySystemPrompt = "You are ReviewPulse, a precise assistant for reviewing documents. " +
		"Use ONLY the provided context when answering. If the context is insufficient, say so. " +
		"Keep answers concise and actionable. When you use a fact from context, cite it like [#id]."

	missingKeyAnswer = "Server is missing the LLM API key. Add it to the configuration then retry."
)

// contextItem is one usable retrieval hit, local to a single request.
type contextItem struct {
	index  int
	source string
	text   string
	score  float64
}

// Pipeline answers a single question grounded in retrieved chunks.
type Pipeline struct {
	index  vectorstore.Index
	llm    llm.Provider
	cache  *cache.AnswerCache
	tele   *telemetry.Telemetry
	logger *log.Logger
}

// NewPipeline wires the pipeline. cache and tele may be nil.
func NewPipeline(index vectorstore.Index, provider llm.Provider, answers *cache.AnswerCache, tele *telemetry.Telemetry) *Pipeline {
	return &Pipeline{
		index:  index,
		llm:    provider,
		cache:  answers,
		tele:   tele,
		logger: log.New(log.Writer(), "[PIPELINE] ", log.LstdFlags),
	}
}

// Answer runs retrieval and generation for one query. It always returns a
// well-formed QueryResult: upstream failures are logged with the request
// id and surfaced in Err, never panicked or propagated.
func (p *Pipeline) Answer(ctx context.Context, query, namespace string) QueryResult {
	start := time.Now()
	requestID := uuid.New().String()

	if p.cache != nil {
		if entry, ok := p.cache.Get(ctx, namespace, query); ok {
			if p.tele != nil {
				p.tele.CacheHit()
			}
			return QueryResult{
				Answer:    entry.Answer,
				Sources:   append([]string{}, entry.Sources...),
				LatencyMS: time.Since(start).Milliseconds(),
				RequestID: requestID,
				Debug: Debug{
					ChunksCount: entry.ChunksCount,
					TopScore:    entry.TopScore,
					CacheHit:    true,
				},
			}
		}
	}

	retrievalStart := time.Now()
	hits, err := p.index.Search(ctx, namespace, query, queryTopK)
	retrievalMS := time.Since(retrievalStart).Milliseconds()
	if err != nil {
		p.logger.Printf("query error [%s]: retrieval: %v", requestID, err)
		return p.failure(start, requestID, err)
	}
	if p.tele != nil {
		p.tele.ObserveRetrieval(time.Since(retrievalStart))
	}

	contexts, sources := buildContexts(hits)

	user := fmt.Sprintf("Question: %s\n\nContext: (none found)", query)
	if len(contexts) > 0 {
		user = fmt.Sprintf("Question: %s\n\nContext:\n%s", query, contextBlock(contexts))
	}

	llmStart := time.Now()
	answer, err := p.llm.Complete(ctx, llm.CompletionRequest{
		System:   querySystemPrompt,
		Messages: []llm.Message{{Role: "user", Content: user}},
	})
	llmMS := time.Since(llmStart).Milliseconds()
	if err != nil {
		if errors.Is(err, llm.ErrNoAPIKey) {
			return QueryResult{
				Answer:      missingKeyAnswer,
				Sources:     sources,
				LatencyMS:   time.Since(start).Milliseconds(),
				RequestID:   requestID,
				Debug:       Debug{RetrievalMS: retrievalMS, ChunksCount: len(contexts), TopScore: topScore(contexts)},
				ConfigError: true,
			}
		}
		p.logger.Printf("query error [%s]: generation: %v", requestID, err)
		return p.failure(start, requestID, err)
	}
	if p.tele != nil {
		p.tele.ObserveLLM(time.Since(llmStart))
	}
	if answer == "" {
		answer = "No answer generated."
	}

	if p.cache != nil && len(contexts) > 0 {
		p.cache.Set(ctx, namespace, query, cache.Entry{
			Answer:      answer,
			Sources:     sources,
			ChunksCount: len(contexts),
			TopScore:    topScore(contexts),
		})
	}

	return QueryResult{
		Answer:    answer,
		Sources:   sources,
		LatencyMS: time.Since(start).Milliseconds(),
		RequestID: requestID,
		Debug: Debug{
			RetrievalMS: retrievalMS,
			LLMMS:       llmMS,
			ChunksCount: len(contexts),
			TopScore:    topScore(contexts),
		},
	}
}

func (p *Pipeline) failure(start time.Time, requestID string, err error) QueryResult {
	return QueryResult{
		Answer:    "Query failed",
		Sources:   []string{},
		LatencyMS: time.Since(start).Milliseconds(),
		RequestID: requestID,
		Err:       err.Error(),
	}
}

// buildContexts maps hits to usable context items, dropping empty text and
// deduplicating sources in order of first appearance. A query with no
// usable context yields an empty sources set; the prompt then states that
// no context was found so the model cannot fabricate an attribution.
func buildContexts(hits []vectorstore.Hit) ([]contextItem, []string) {
	contexts := make([]contextItem, 0, len(hits))
	sources := []string{}
	seen := make(map[string]bool)
	for i, h := range hits {
		text := strings.TrimSpace(h.ChunkText)
		if text == "" {
			continue
		}
		source := h.Source
		if source == "" {
			source = h.ID
		}
		if source == "" {
			source = "unknown"
		}
		contexts = append(contexts, contextItem{index: i, source: source, text: text, score: h.Score})
		if !seen[source] {
			seen[source] = true
			sources = append(sources, source)
		}
	}
	return contexts, sources
}

func contextBlock(contexts []contextItem) string {
	blocks := make([]string, 0, len(contexts))
	for _, c := range contexts {
		blocks = append(blocks, fmt.Sprintf("[#%d | %s]\n%s", c.index, c.source, c.text))
	}
	return strings.Join(blocks, "\n\n---\n\n")
}

func topScore(contexts []contextItem) float64 {
	if len(contexts) == 0 {
		return 0
	}
	return contexts[0].score
}
