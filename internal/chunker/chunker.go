package chunker

import (
	"fmt"
	"strings"

	"github.com/reviewpulse/reviewpulse/internal/vectorstore"
)

// Chunker splits extracted text into fixed-size overlapping windows. The
// split is deterministic: the same text always yields the same chunks, and
// record ids derived from them collide exactly on re-ingestion.
type Chunker struct {
	size    int
	overlap int
}

// New creates a chunker. Invalid sizes fall back to the service defaults
// (500-char windows, 50-char overlap).
func New(size, overlap int) *Chunker {
	if size <= 0 {
		size = 500
	}
	if overlap < 0 || overlap >= size {
		overlap = 50
		if overlap >= size {
			overlap = 0
		}
	}
	return &Chunker{size: size, overlap: overlap}
}

// Split cuts text into windows. NUL bytes are stripped first (PDF
// extraction leaves them behind), each window is trimmed, and empty
// windows are dropped.
func (c *Chunker) Split(text string) []string {
	clean := strings.ReplaceAll(text, "\x00", "")
	var chunks []string
	for start := 0; start < len(clean); {
		end := start + c.size
		if end > len(clean) {
			end = len(clean)
		}
		chunk := strings.TrimSpace(clean[start:end])
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
		if end >= len(clean) {
			break
		}
		start = end - c.overlap
		if start < 0 {
			start = 0
		}
	}
	return chunks
}

// BuildRecords splits text and assigns index records with ids of the form
// "<source>-<i>", unique within a namespace.
func (c *Chunker) BuildRecords(source, text string) []vectorstore.Record {
	chunks := c.Split(text)
	records := make([]vectorstore.Record, 0, len(chunks))
	for i, chunk := range chunks {
		records = append(records, vectorstore.Record{
			ID:        fmt.Sprintf("%s-%d", source, i),
			ChunkText: chunk,
			Source:    source,
			Page:      i,
		})
	}
	return records
}
