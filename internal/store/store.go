package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// Store is the Postgres-backed document registry: a durable log of what
// was ingested into each namespace. The vector index remains the source of
// truth for retrieval; the registry only backs the document listing and is
// cleared together with its namespace.
type Store struct {
	DB *sql.DB
}

// Document is one registry row.
type Document struct {
	Namespace string    `json:"-"`
	DocID     string    `json:"docId"`
	Chunks    int       `json:"chunks"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewWithDSN opens a connection pool and verifies it.
func NewWithDSN(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres ping failed: %w", err)
	}
	return &Store{DB: db}, nil
}

// RecordIngest upserts one document row. Re-ingesting the same document
// refreshes the chunk count and timestamp instead of duplicating the row,
// mirroring the idempotent chunk-id overwrite in the vector index.
func (s *Store) RecordIngest(ctx context.Context, namespace, docID string, chunks int) error {
	_, err := s.DB.ExecContext(ctx, `
INSERT INTO documents (namespace, doc_id, chunks, created_at)
VALUES ($1,$2,$3,NOW())
ON CONFLICT (namespace, doc_id) DO UPDATE SET
  chunks = EXCLUDED.chunks,
  created_at = NOW();
`, namespace, docID, chunks)
	if err != nil {
		return fmt.Errorf("failed to record ingest: %w", err)
	}
	return nil
}

// ListDocuments returns the documents ingested into one namespace, newest
// first.
func (s *Store) ListDocuments(ctx context.Context, namespace string) ([]Document, error) {
	rows, err := s.DB.QueryContext(ctx, `
SELECT doc_id, chunks, created_at FROM documents
WHERE namespace = $1
ORDER BY created_at DESC, doc_id;
`, namespace)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		d := Document{Namespace: namespace}
		if err := rows.Scan(&d.DocID, &d.Chunks, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate documents: %w", err)
	}
	return docs, nil
}

// DeleteNamespace removes every registry row for a namespace and returns
// how many were deleted.
func (s *Store) DeleteNamespace(ctx context.Context, namespace string) (int64, error) {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM documents WHERE namespace = $1;`, namespace)
	if err != nil {
		return 0, fmt.Errorf("failed to delete namespace rows: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted rows: %w", err)
	}
	return n, nil
}

// Close releases the pool.
func (s *Store) Close() error {
	return s.DB.Close()
}
