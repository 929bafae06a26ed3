package vectorstore

import "context"

// Record is the unit of indexing: one chunk of one document. The index
// embeds chunk_text server-side, so no vector travels over the wire.
type Record struct {
	ID        string `json:"id"`
	ChunkText string `json:"chunk_text"`
	Source    string `json:"source"`
	Page      int    `json:"page"`
}

// Hit is one semantic search match, ephemeral and per-query.
type Hit struct {
	ID        string
	Score     float64
	Source    string
	ChunkText string
}

// Index is the narrow contract against the managed vector index. All
// operations are scoped to exactly one namespace.
type Index interface {
	Search(ctx context.Context, namespace, query string, topK int) ([]Hit, error)
	Upsert(ctx context.Context, namespace string, records []Record) error
	DeleteNamespace(ctx context.Context, namespace string) error
}
