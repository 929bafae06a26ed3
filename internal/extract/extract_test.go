package extract

import (
	"context"
	"testing"
)

func TestTextNonPDFReturnsRaw(t *testing.T) {
	e := New("pdftotext")
	got := e.Text(context.Background(), "notes.txt", []byte("plain contract text"))
	if got != "plain contract text" {
		t.Fatalf("got %q", got)
	}
}

func TestTextInvalidPDFFallsBackToRaw(t *testing.T) {
	// %PDF prefix triggers the extraction chain; a missing binary and an
	// unparsable body must still yield the raw bytes.
	e := New("pdftotext-binary-that-does-not-exist")
	data := []byte("%PDF-1.7 not actually a pdf")
	got := e.Text(context.Background(), "broken.pdf", data)
	if got != string(data) {
		t.Fatalf("got %q, want raw fallback", got)
	}
}

func TestNewDefaultsBinary(t *testing.T) {
	e := New("")
	if e.pdftotextBin != "pdftotext" {
		t.Fatalf("bin = %q", e.pdftotextBin)
	}
}
