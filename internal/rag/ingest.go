package rag

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/reviewpulse/reviewpulse/internal/chunker"
	"github.com/reviewpulse/reviewpulse/internal/extract"
	"github.com/reviewpulse/reviewpulse/internal/store"
	"github.com/reviewpulse/reviewpulse/internal/vectorstore"
)

// demoFiles are the bundled contracts used for one-click demo ingestion.
var demoFiles = []string{
	"Master_Services_Agreement.pdf",
	"NDA_Contract.pdf",
	"SaaS_License_Agreement.pdf",
}

// Ingestor turns uploaded documents into indexed chunks.
type Ingestor struct {
	index     vectorstore.Index
	extractor *extract.Extractor
	chunker   *chunker.Chunker
	registry  *store.Store
	logger    *log.Logger
}

// NewIngestor wires the ingestor. registry may be nil: the vector index is
// the source of truth, the registry only feeds the document listing.
func NewIngestor(index vectorstore.Index, extractor *extract.Extractor, ch *chunker.Chunker, registry *store.Store) *Ingestor {
	return &Ingestor{
		index:     index,
		extractor: extractor,
		chunker:   ch,
		registry:  registry,
		logger:    log.New(log.Writer(), "[INGEST] ", log.LstdFlags),
	}
}

// Ingest extracts, chunks, and upserts one document into a namespace.
// Pre-extracted text wins over raw content when both are provided. Chunk
// ids derive from filename and sequence index, so re-ingesting identical
// content overwrites identical ids.
func (ing *Ingestor) Ingest(ctx context.Context, namespace, filename string, content []byte, text string) (IngestResult, error) {
	if filename == "" || (len(content) == 0 && text == "") {
		return IngestResult{}, fmt.Errorf("%w: missing filename or content", ErrInvalidRequest)
	}

	if text == "" {
		text = ing.extractor.Text(ctx, filename, content)
	}

	records := ing.chunker.BuildRecords(filename, text)
	ing.logger.Printf("ingesting %s into %q: %d chunks", filename, namespace, len(records))

	if err := ing.index.Upsert(ctx, namespace, records); err != nil {
		return IngestResult{}, fmt.Errorf("failed to upsert %s: %w", filename, err)
	}

	if ing.registry != nil {
		if err := ing.registry.RecordIngest(ctx, namespace, filename, len(records)); err != nil {
			// Registry is bookkeeping only; the chunks are already indexed.
			ing.logger.Printf("registry record failed for %s: %v", filename, err)
		}
	}

	return IngestResult{Chunks: len(records), DocID: filename, Status: "success"}, nil
}

// IngestDemo ingests the bundled demo contracts from dataDir. Per-file
// failures are reported in the results and never abort the loop.
func (ing *Ingestor) IngestDemo(ctx context.Context, namespace, dataDir string) []DemoIngestResult {
	results := make([]DemoIngestResult, 0, len(demoFiles))
	for _, filename := range demoFiles {
		data, err := os.ReadFile(filepath.Join(dataDir, filename))
		if err != nil {
			results = append(results, DemoIngestResult{Filename: filename, Status: "error", Error: err.Error()})
			continue
		}
		res, err := ing.Ingest(ctx, namespace, filename, data, "")
		if err != nil {
			results = append(results, DemoIngestResult{Filename: filename, Status: "error", Error: err.Error()})
			continue
		}
		results = append(results, DemoIngestResult{Filename: filename, Status: "success", Chunks: res.Chunks})
	}
	return results
}
