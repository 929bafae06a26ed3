package chunker

import (
	"strings"
	"testing"
)

func TestSplitWindowsAndOverlap(t *testing.T) {
	c := New(10, 3)
	text := "abcdefghijklmnopqrst"

	chunks := c.Split(text)
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d: %v", len(chunks), chunks)
	}
	if chunks[0] != "abcdefghij" {
		t.Fatalf("first chunk = %q", chunks[0])
	}
	// Second window starts at 10-3=7.
	if chunks[1] != "hijklmnopq" {
		t.Fatalf("second chunk = %q", chunks[1])
	}
	if chunks[2] != "opqrst" {
		t.Fatalf("third chunk = %q", chunks[2])
	}
}

func TestSplitStripsNULAndTrims(t *testing.T) {
	c := New(500, 50)
	chunks := c.Split("  hello\x00 world  ")
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0] != "hello world" {
		t.Fatalf("chunk = %q", chunks[0])
	}
}

func TestSplitDropsEmptyWindows(t *testing.T) {
	c := New(5, 0)
	chunks := c.Split("abcde     fghij")
	for _, ch := range chunks {
		if strings.TrimSpace(ch) == "" {
			t.Fatalf("empty chunk survived: %q", chunks)
		}
	}
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d: %v", len(chunks), chunks)
	}
}

func TestSplitEmptyText(t *testing.T) {
	c := New(500, 50)
	if got := c.Split(""); len(got) != 0 {
		t.Fatalf("expected no chunks, got %v", got)
	}
}

func TestSplitDeterministic(t *testing.T) {
	c := New(50, 10)
	text := strings.Repeat("the quick brown fox jumps over the lazy dog. ", 20)
	a := c.Split(text)
	b := c.Split(text)
	if len(a) != len(b) {
		t.Fatalf("chunk counts differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("chunk %d differs", i)
		}
	}
}

func TestBuildRecordsIDs(t *testing.T) {
	c := New(10, 0)
	records := c.BuildRecords("contract.pdf", "abcdefghijklmnopqrst")
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].ID != "contract.pdf-0" || records[1].ID != "contract.pdf-1" {
		t.Fatalf("unexpected ids: %s, %s", records[0].ID, records[1].ID)
	}
	for i, r := range records {
		if r.Source != "contract.pdf" {
			t.Fatalf("record %d source = %q", i, r.Source)
		}
		if r.Page != i {
			t.Fatalf("record %d page = %d", i, r.Page)
		}
	}
}

func TestNewFallsBackOnInvalidSizes(t *testing.T) {
	c := New(0, -1)
	if c.size != 500 || c.overlap != 50 {
		t.Fatalf("expected defaults 500/50, got %d/%d", c.size, c.overlap)
	}

	c = New(30, 30)
	if c.overlap >= c.size {
		t.Fatalf("overlap %d must stay below size %d", c.overlap, c.size)
	}
}
