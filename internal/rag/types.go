package rag

import "errors"

// ErrInvalidRequest marks input validation failures (empty query, too few
// documents for a comparison). No remote calls are made when it is
// returned; handlers map it to HTTP 400.
var ErrInvalidRequest = errors.New("invalid request")

// Debug carries per-stage instrumentation for one query.
type Debug struct {
	RetrievalMS int64   `json:"retrieval_ms"`
	LLMMS       int64   `json:"llm_ms"`
	ChunksCount int     `json:"chunks_count"`
	TopScore    float64 `json:"top_score"`
	CacheHit    bool    `json:"cache_hit,omitempty"`
}

// QueryResult is the structured answer to one grounded query. It is always
// well formed: failures populate Err (and ConfigError for missing
// credentials) instead of propagating.
type QueryResult struct {
	Answer      string   `json:"answer"`
	Sources     []string `json:"sources"`
	LatencyMS   int64    `json:"latency_ms"`
	RequestID   string   `json:"requestId"`
	Debug       Debug    `json:"debug"`
	Err         string   `json:"error,omitempty"`
	ConfigError bool     `json:"-"`
}

// DecompositionPlan is the transient output of the analyze step.
type DecompositionPlan struct {
	NeedsDecomposition bool     `json:"needsDecomposition"`
	Reasoning          string   `json:"reasoning"`
	SubQueries         []string `json:"subQueries"`
}

// SubQueryResult is one answered sub-query, indexed by its original
// position so synthesis input order is stable regardless of completion
// order.
type SubQueryResult struct {
	Step        int      `json:"step"`
	Query       string   `json:"query"`
	Answer      string   `json:"answer"`
	Sources     []string `json:"sources"`
	RetrievalMS int64    `json:"retrievalMs"`
	ChunksUsed  int      `json:"chunksUsed"`
}

// DecomposeDebug aggregates fan-out instrumentation.
type DecomposeDebug struct {
	TotalSteps     int   `json:"totalSteps"`
	AvgRetrievalMS int64 `json:"avgRetrievalMs"`
}

// DecomposedResult reports either a completed decomposition run or the
// direct-answer branch (Decomposed=false), in which case the caller should
// fall back to the plain query pipeline.
type DecomposedResult struct {
	Decomposed    bool             `json:"decomposed"`
	OriginalQuery string           `json:"originalQuery"`
	Reasoning     string           `json:"reasoning"`
	Steps         []SubQueryResult `json:"steps,omitempty"`
	FinalAnswer   string           `json:"finalAnswer,omitempty"`
	RequestID     string           `json:"requestId"`
	LatencyMS     int64            `json:"latency_ms"`
	Debug         *DecomposeDebug  `json:"debug,omitempty"`
	Err           string           `json:"error,omitempty"`
}

// DocStatement attributes one line of the comparison answer to a document.
type DocStatement struct {
	Doc   string `json:"doc"`
	Value string `json:"value"`
}

// Section groups per-document statements under one compared aspect.
type Section struct {
	Aspect      string         `json:"aspect"`
	Comparisons []DocStatement `json:"comparisons"`
}

// Structured is the best-effort structured view of a comparison answer.
// The raw answer text remains authoritative; Sections may be empty on
// unexpected model output.
type Structured struct {
	Sections []Section `json:"sections"`
	Raw      string    `json:"raw"`
}

// ComparisonDebug carries comparison instrumentation.
type ComparisonDebug struct {
	ChunksCount int `json:"chunks_count"`
	DocsMatched int `json:"docs_matched"`
}

// ComparisonResult is the outcome of a multi-document comparison.
type ComparisonResult struct {
	Answer         string          `json:"answer"`
	Sources        []string        `json:"sources"`
	DocIDs         []string        `json:"docIds"`
	ComparisonType string          `json:"comparisonType"`
	Structured     Structured      `json:"structured"`
	RequestID      string          `json:"requestId"`
	LatencyMS      int64           `json:"latency_ms"`
	Debug          ComparisonDebug `json:"debug"`
	Err            string          `json:"error,omitempty"`
}

// IngestResult reports one completed ingestion.
type IngestResult struct {
	Chunks int    `json:"chunks"`
	DocID  string `json:"docId"`
	Status string `json:"status"`
}

// DemoIngestResult reports one demo file's ingestion outcome.
type DemoIngestResult struct {
	Filename string `json:"filename"`
	Status   string `json:"status"`
	Chunks   int    `json:"chunks"`
	Error    string `json:"error,omitempty"`
}
