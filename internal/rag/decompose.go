package rag

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/reviewpulse/reviewpulse/internal/llm"
	"github.com/reviewpulse/reviewpulse/internal/telemetry"
	"github.com/reviewpulse/reviewpulse/internal/vectorstore"
)

const (
	subQueryTopK  = 4
	maxSubQueries = 3

	subQuerySystemPrompt = "Answer concisely using only provided context."
)

// Decomposer breaks a complex query into sub-queries, answers them
// concurrently, and synthesizes one final answer.
type Decomposer struct {
	index  vectorstore.Index
	llm    llm.Provider
	tele   *telemetry.Telemetry
	logger *log.Logger
}

// NewDecomposer wires the orchestrator. tele may be nil.
func NewDecomposer(index vectorstore.Index, provider llm.Provider, tele *telemetry.Telemetry) *Decomposer {
	return &Decomposer{
		index:  index,
		llm:    provider,
		tele:   tele,
		logger: log.New(log.Writer(), "[DECOMPOSE] ", log.LstdFlags),
	}
}

// Run analyzes the query and either reports the direct-answer branch
// (Decomposed=false, caller falls back to the plain pipeline) or executes
// the full fan-out/synthesis flow. Failures surface in Err on a well-formed
// result, never as a panic.
func (d *Decomposer) Run(ctx context.Context, query, namespace string) DecomposedResult {
	start := time.Now()
	requestID := uuid.New().String()

	plan, err := d.analyze(ctx, query)
	if err != nil {
		d.logger.Printf("decompose error [%s]: analyze: %v", requestID, err)
		return DecomposedResult{
			OriginalQuery: query,
			RequestID:     requestID,
			LatencyMS:     time.Since(start).Milliseconds(),
			Err:           err.Error(),
		}
	}

	if !plan.NeedsDecomposition || len(plan.SubQueries) == 0 {
		reasoning := plan.Reasoning
		if reasoning == "" {
			reasoning = "Direct query"
		}
		return DecomposedResult{
			Decomposed:    false,
			OriginalQuery: query,
			Reasoning:     reasoning,
			RequestID:     requestID,
			LatencyMS:     time.Since(start).Milliseconds(),
		}
	}

	subQueries := plan.SubQueries
	if len(subQueries) > maxSubQueries {
		subQueries = subQueries[:maxSubQueries]
	}

	// Fan out. Results land at their original index so synthesis input
	// order does not depend on completion order. One failing sub-query
	// fails the whole batch: no partial synthesis.
	steps := make([]SubQueryResult, len(subQueries))
	g, gctx := errgroup.WithContext(ctx)
	for i, subQuery := range subQueries {
		g.Go(func() error {
			result, err := d.answerSubQuery(gctx, subQuery, namespace, i+1)
			if err != nil {
				return fmt.Errorf("sub-query %d: %w", i+1, err)
			}
			steps[i] = result
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		d.logger.Printf("decompose error [%s]: %v", requestID, err)
		return DecomposedResult{
			OriginalQuery: query,
			RequestID:     requestID,
			LatencyMS:     time.Since(start).Milliseconds(),
			Err:           err.Error(),
		}
	}

	finalAnswer, err := d.synthesize(ctx, query, steps)
	if err != nil {
		d.logger.Printf("decompose error [%s]: synthesis: %v", requestID, err)
		return DecomposedResult{
			OriginalQuery: query,
			RequestID:     requestID,
			LatencyMS:     time.Since(start).Milliseconds(),
			Err:           err.Error(),
		}
	}

	var totalRetrieval int64
	for _, s := range steps {
		totalRetrieval += s.RetrievalMS
	}
	return DecomposedResult{
		Decomposed:    true,
		OriginalQuery: query,
		Reasoning:     plan.Reasoning,
		Steps:         steps,
		FinalAnswer:   finalAnswer,
		RequestID:     requestID,
		LatencyMS:     time.Since(start).Milliseconds(),
		Debug: &DecomposeDebug{
			TotalSteps:     len(steps),
			AvgRetrievalMS: totalRetrieval / int64(len(steps)),
		},
	}
}

// analyze classifies the query. A malformed plan is recoverable: it
// degrades to the direct-answer branch instead of failing the request.
func (d *Decomposer) analyze(ctx context.Context, query string) (DecompositionPlan, error) {
	prompt := fmt.Sprintf(`Analyze this query: "%s"

Determine if this requires breaking into multiple sub-queries or can be answered directly.

Respond with JSON only:
{
  "needsDecomposition": boolean,
  "reasoning": "brief explanation",
  "subQueries": ["query 1", "query 2"] // if needed, max 3
}`, query)

	zero := 0.0
	response, err := d.llm.Complete(ctx, llm.CompletionRequest{
		Messages:    []llm.Message{{Role: "user", Content: prompt}},
		MaxTokens:   500,
		Temperature: &zero,
	})
	if err != nil {
		return DecompositionPlan{}, err
	}

	jsonStr := extractJSON(response)
	if jsonStr == "" {
		return DecompositionPlan{Reasoning: "Parse error"}, nil
	}
	var plan DecompositionPlan
	if err := json.Unmarshal([]byte(jsonStr), &plan); err != nil {
		return DecompositionPlan{Reasoning: "Parse error"}, nil
	}
	return plan, nil
}

func (d *Decomposer) answerSubQuery(ctx context.Context, query, namespace string, step int) (SubQueryResult, error) {
	retrievalStart := time.Now()
	hits, err := d.index.Search(ctx, namespace, query, subQueryTopK)
	retrievalMS := time.Since(retrievalStart).Milliseconds()
	if err != nil {
		return SubQueryResult{}, fmt.Errorf("retrieval: %w", err)
	}
	if d.tele != nil {
		d.tele.ObserveRetrieval(time.Since(retrievalStart))
	}

	contexts, sources := buildContexts(hits)
	blocks := make([]string, 0, len(contexts))
	for n, c := range contexts {
		blocks = append(blocks, fmt.Sprintf("[%d] %s", n+1, c.text))
	}

	llmStart := time.Now()
	answer, err := d.llm.Complete(ctx, llm.CompletionRequest{
		System:    subQuerySystemPrompt,
		Messages:  []llm.Message{{Role: "user", Content: fmt.Sprintf("Question: %s\n\nContext:\n%s", query, strings.Join(blocks, "\n\n"))}},
		MaxTokens: 400,
	})
	if err != nil {
		return SubQueryResult{}, fmt.Errorf("generation: %w", err)
	}
	if d.tele != nil {
		d.tele.ObserveLLM(time.Since(llmStart))
	}

	return SubQueryResult{
		Step:        step,
		Query:       query,
		Answer:      answer,
		Sources:     sources,
		RetrievalMS: retrievalMS,
		ChunksUsed:  len(contexts),
	}, nil
}

func (d *Decomposer) synthesize(ctx context.Context, query string, steps []SubQueryResult) (string, error) {
	findings := make([]string, 0, len(steps))
	for _, s := range steps {
		findings = append(findings, fmt.Sprintf("Step %d (%s): %s", s.Step, s.Query, s.Answer))
	}
	prompt := fmt.Sprintf(`Original question: "%s"

Step-by-step findings:
%s

Synthesize these findings into a cohesive final answer. Be concise but thorough.`, query, strings.Join(findings, "\n\n"))

	return d.llm.Complete(ctx, llm.CompletionRequest{
		Messages:  []llm.Message{{Role: "user", Content: prompt}},
		MaxTokens: 600,
	})
}

// extractJSON returns the first balanced {...} substring of s, or "".
// Model output often wraps the JSON object in prose or code fences.
func extractJSON(s string) string {
	start := -1
	depth := 0
	for i, ch := range s {
		switch ch {
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth > 0 {
				depth--
				if depth == 0 && start != -1 {
					return s[start : i+1]
				}
			}
		}
	}
	return ""
}
