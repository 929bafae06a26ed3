package rag

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/reviewpulse/reviewpulse/internal/llm"
	"github.com/reviewpulse/reviewpulse/internal/telemetry"
	"github.com/reviewpulse/reviewpulse/internal/vectorstore"
)

const (
	compareTopK = 12

	compareSystemPrompt = `You are ReviewPulse Comparison Mode. Analyze documents and provide structured comparisons.

Rules:
- Be precise and cite specific differences
- Use bullet points for clarity
- Highlight contradictions or variations
- If information is missing from a document, state "Not specified in [document name]"
- Be concise but thorough`
)

// aspectPrefix matches lines that open a new comparison aspect: bold
// headings, numbered points, or bullets.
var aspectPrefix = regexp.MustCompile(`^\*\*|^\d+\.|^-`)

// Comparer retrieves context across several selected documents and asks
// for a structured comparison.
type Comparer struct {
	index  vectorstore.Index
	llm    llm.Provider
	tele   *telemetry.Telemetry
	logger *log.Logger
}

// NewComparer wires the orchestrator. tele may be nil.
func NewComparer(index vectorstore.Index, provider llm.Provider, tele *telemetry.Telemetry) *Comparer {
	return &Comparer{
		index:  index,
		llm:    provider,
		tele:   tele,
		logger: log.New(log.Writer(), "[COMPARE] ", log.LstdFlags),
	}
}

// Compare runs one comparison across the selected documents. It returns
// ErrInvalidRequest before any remote call when the input is unusable;
// upstream failures surface in the result's Err field.
func (c *Comparer) Compare(ctx context.Context, query string, docIDs []string, comparisonType, namespace string) (ComparisonResult, error) {
	start := time.Now()
	requestID := uuid.New().String()

	if query == "" || len(docIDs) < 2 {
		return ComparisonResult{}, fmt.Errorf("%w: comparison requires a query and at least 2 documents", ErrInvalidRequest)
	}
	if comparisonType != "differences" && comparisonType != "similarities" && comparisonType != "summary" {
		comparisonType = "differences"
	}

	retrievalStart := time.Now()
	hits, err := c.index.Search(ctx, namespace, query, compareTopK)
	if err != nil {
		c.logger.Printf("comparison error [%s]: retrieval: %v", requestID, err)
		return c.failure(start, requestID, docIDs, comparisonType, err), nil
	}
	if c.tele != nil {
		c.tele.ObserveRetrieval(time.Since(retrievalStart))
	}

	contexts, sources := filterToDocuments(hits, docIDs)

	blocks := make([]string, 0, len(contexts))
	for _, ci := range contexts {
		blocks = append(blocks, fmt.Sprintf("[Document: %s]\n%s", ci.source, ci.text))
	}
	contextBlock := strings.Join(blocks, "\n\n---\n\n")

	llmStart := time.Now()
	answer, err := c.llm.Complete(ctx, llm.CompletionRequest{
		System:    compareSystemPrompt,
		Messages:  []llm.Message{{Role: "user", Content: comparisonPrompt(comparisonType, query, docIDs, contextBlock)}},
		MaxTokens: 1000,
	})
	if err != nil {
		c.logger.Printf("comparison error [%s]: generation: %v", requestID, err)
		return c.failure(start, requestID, docIDs, comparisonType, err), nil
	}
	if c.tele != nil {
		c.tele.ObserveLLM(time.Since(llmStart))
	}
	if answer == "" {
		answer = "No comparison generated."
	}

	return ComparisonResult{
		Answer:         answer,
		Sources:        sources,
		DocIDs:         docIDs,
		ComparisonType: comparisonType,
		Structured:     Structured{Sections: parseComparisonAnswer(answer, sources), Raw: answer},
		RequestID:      requestID,
		LatencyMS:      time.Since(start).Milliseconds(),
		Debug:          ComparisonDebug{ChunksCount: len(contexts), DocsMatched: len(sources)},
	}, nil
}

func (c *Comparer) failure(start time.Time, requestID string, docIDs []string, comparisonType string, err error) ComparisonResult {
	return ComparisonResult{
		Answer:         "Comparison failed",
		Sources:        []string{},
		DocIDs:         docIDs,
		ComparisonType: comparisonType,
		Structured:     Structured{Sections: []Section{}},
		RequestID:      requestID,
		LatencyMS:      time.Since(start).Milliseconds(),
		Err:            err.Error(),
	}
}

// filterToDocuments keeps only hits whose source matches one of the
// selected documents (case-insensitive substring match) and returns the
// matched sources in order of first appearance.
func filterToDocuments(hits []vectorstore.Hit, docIDs []string) ([]contextItem, []string) {
	contexts := make([]contextItem, 0, len(hits))
	sources := []string{}
	seen := make(map[string]bool)
	for i, h := range hits {
		source := h.Source
		if source == "" {
			source = h.ID
		}
		lower := strings.ToLower(source)
		matched := false
		for _, docID := range docIDs {
			if strings.Contains(lower, strings.ToLower(docID)) {
				matched = true
				break
			}
		}
		if !matched {
			continue
		}
		text := strings.TrimSpace(h.ChunkText)
		if text == "" {
			continue
		}
		contexts = append(contexts, contextItem{index: i, source: source, text: text, score: h.Score})
		if !seen[source] {
			seen[source] = true
			sources = append(sources, source)
		}
	}
	return contexts, sources
}

func comparisonPrompt(comparisonType, query string, docIDs []string, contextBlock string) string {
	docs := strings.Join(docIDs, ", ")
	switch comparisonType {
	case "similarities":
		return fmt.Sprintf(`Analyze the following documents and highlight COMMONALITIES regarding: "%s"

Show what all documents agree on or share in common.

Documents: %s

Context:
%s`, query, docs, contextBlock)
	case "summary":
		return fmt.Sprintf(`Provide a comparative summary across these documents for: "%s"

Structure:
- Overview (1-2 sentences)
- Per-document summary
- Key takeaways

Documents: %s

Context:
%s`, query, docs, contextBlock)
	default:
		return fmt.Sprintf(`Compare the following documents and highlight KEY DIFFERENCES regarding: "%s"

For each point of difference:
1. State the aspect being compared
2. Show what each document says
3. Note any contradictions

Documents to compare: %s

Context:
%s`, query, docs, contextBlock)
	}
}

// parseComparisonAnswer scans the raw answer line by line and attributes
// document-specific statements to the aspect opened by the nearest
// preceding heading or bullet. Best effort only: unexpected model output
// yields empty sections and the raw answer stays authoritative.
func parseComparisonAnswer(answer string, sources []string) []Section {
	sections := []Section{}
	currentAspect := ""

	for _, line := range strings.Split(answer, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}

		if aspectPrefix.MatchString(trimmed) {
			label := aspectPrefix.ReplaceAllString(trimmed, "")
			label = strings.TrimSpace(label)
			if idx := strings.Index(label, ":"); idx >= 0 {
				label = label[:idx]
			}
			currentAspect = strings.TrimSpace(label)
		}

		lowerLine := strings.ToLower(trimmed)
		for _, source := range sources {
			if !strings.Contains(lowerLine, strings.ToLower(source)) {
				continue
			}
			placed := false
			for i := range sections {
				if sections[i].Aspect == currentAspect {
					sections[i].Comparisons = append(sections[i].Comparisons, DocStatement{Doc: source, Value: trimmed})
					placed = true
					break
				}
			}
			if !placed {
				sections = append(sections, Section{
					Aspect:      currentAspect,
					Comparisons: []DocStatement{{Doc: source, Value: trimmed}},
				})
			}
		}
	}
	return sections
}
