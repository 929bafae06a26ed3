package extract

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/ledongthuc/pdf"
)

// Extractor converts uploaded document bytes to plain text. PDF input is
// handed to the pdftotext binary first, then to the in-process reader, and
// finally decoded as raw text. Extraction never fails hard: the worst case
// is the raw byte fallback.
type Extractor struct {
	pdftotextBin string
	logger       *log.Logger
}

func New(pdftotextBin string) *Extractor {
	if pdftotextBin == "" {
		pdftotextBin = "pdftotext"
	}
	return &Extractor{
		pdftotextBin: pdftotextBin,
		logger:       log.New(log.Writer(), "[EXTRACT] ", log.LstdFlags),
	}
}

// Text extracts plain text from data. filename is only used for temp file
// naming and logs.
func (e *Extractor) Text(ctx context.Context, filename string, data []byte) string {
	if !bytes.HasPrefix(data, []byte("%PDF")) {
		return string(data)
	}

	if text, err := e.viaPdftotext(ctx, filename, data); err != nil {
		e.logger.Printf("pdftotext failed for %s, trying in-process reader: %v", filename, err)
	} else if text != "" {
		return text
	}

	if text, err := e.viaReader(filename, data); err != nil {
		e.logger.Printf("in-process extraction failed for %s, falling back to raw text: %v", filename, err)
	} else if text != "" {
		return text
	}

	return string(data)
}

func (e *Extractor) viaPdftotext(ctx context.Context, filename string, data []byte) (string, error) {
	dir, err := os.MkdirTemp("", "reviewpulse-")
	if err != nil {
		return "", fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	pdfPath := filepath.Join(dir, filepath.Base(filename))
	txtPath := pdfPath + ".txt"
	if err := os.WriteFile(pdfPath, data, 0o600); err != nil {
		return "", fmt.Errorf("failed to write temp pdf: %w", err)
	}

	cmd := exec.CommandContext(ctx, e.pdftotextBin, pdfPath, txtPath)
	if out, err := cmd.CombinedOutput(); err != nil {
		return "", fmt.Errorf("%s: %s: %w", e.pdftotextBin, bytes.TrimSpace(out), err)
	}

	text, err := os.ReadFile(txtPath)
	if err != nil {
		return "", fmt.Errorf("failed to read extracted text: %w", err)
	}
	return string(text), nil
}

func (e *Extractor) viaReader(filename string, data []byte) (string, error) {
	tmp, err := os.CreateTemp("", "reviewpulse-*.pdf")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	if _, err := tmp.Write(data); err != nil {
		return "", fmt.Errorf("failed to write temp pdf: %w", err)
	}

	f, rdr, err := pdf.Open(tmp.Name())
	if err != nil {
		return "", fmt.Errorf("failed to open pdf %s: %w", filename, err)
	}
	defer f.Close()

	plain, err := rdr.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("failed to read pdf text: %w", err)
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", fmt.Errorf("failed to read pdf buffer: %w", err)
	}
	return buf.String(), nil
}
