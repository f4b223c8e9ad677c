package textproc

import (
	"strings"
	"testing"
)

func TestCleanStripsNonPrintable(t *testing.T) {
	in := "Oficio\x00 Nº 123\x07"
	got := Clean(in)
	if strings.ContainsAny(got, "\x00\x07") {
		t.Errorf("Clean left control characters in %q", got)
	}
	if !strings.Contains(got, "Oficio") {
		t.Errorf("Clean(%q) = %q, lost printable text", in, got)
	}
}

func TestCleanKeepsAccentedText(t *testing.T) {
	in := "Resolución Directorial Nº 045 — año 2024"
	got := Clean(in)
	if !strings.Contains(got, "Resolución") {
		t.Errorf("Clean(%q) = %q, lost accented characters", in, got)
	}
}

func TestCleanCollapsesWhitespace(t *testing.T) {
	in := "hola    mundo\n\n\n\n\nadiós"
	got := Clean(in)
	if strings.Contains(got, "  ") {
		t.Errorf("Clean(%q) = %q, runs of spaces remain", in, got)
	}
	if strings.Contains(got, "\n\n\n") {
		t.Errorf("Clean(%q) = %q, runs of blank lines remain", in, got)
	}
}

func TestCleanTrimsLines(t *testing.T) {
	got := Clean("  hola  \n  mundo  ")
	for _, line := range strings.Split(got, "\n") {
		if line != strings.TrimSpace(line) {
			t.Errorf("line %q not trimmed", line)
		}
	}
}

func TestSplitShortText(t *testing.T) {
	chunks := Split("corto", 800, 100)
	if len(chunks) != 1 {
		t.Fatalf("len(chunks) = %d, want 1", len(chunks))
	}
	if chunks[0].Text != "corto" {
		t.Errorf("chunks[0].Text = %q, want %q", chunks[0].Text, "corto")
	}
	if chunks[0].Position != 0 {
		t.Errorf("chunks[0].Position = %d, want 0", chunks[0].Position)
	}
}

func TestSplitOverlap(t *testing.T) {
	text := strings.Repeat("a", 10) + strings.Repeat("b", 10)
	chunks := Split(text, 12, 4)

	if len(chunks) < 2 {
		t.Fatalf("len(chunks) = %d, want at least 2", len(chunks))
	}

	// Each chunk after the first starts with the tail of its predecessor.
	for i := 1; i < len(chunks); i++ {
		prev := chunks[i-1].Text
		tail := prev[len(prev)-4:]
		if !strings.HasPrefix(chunks[i].Text, tail) {
			t.Errorf("chunk %d = %q does not start with overlap %q", i, chunks[i].Text, tail)
		}
	}
}

func TestSplitPositionsSequential(t *testing.T) {
	chunks := Split(strings.Repeat("x", 3000), 800, 100)
	for i, c := range chunks {
		if c.Position != i {
			t.Errorf("chunks[%d].Position = %d, want %d", i, c.Position, i)
		}
	}
}

func TestSplitCoversWholeText(t *testing.T) {
	text := "abcdefghijklmnopqrstuvwxyz0123456789"
	chunks := Split(text, 10, 3)

	if !strings.HasPrefix(text, chunks[0].Text) {
		t.Errorf("first chunk %q is not a prefix of the input", chunks[0].Text)
	}
	last := chunks[len(chunks)-1].Text
	if !strings.HasSuffix(text, last) {
		t.Errorf("last chunk %q is not a suffix of the input", last)
	}

	// Stitching chunks with the overlap removed reconstructs the input.
	var sb strings.Builder
	sb.WriteString(chunks[0].Text)
	for _, c := range chunks[1:] {
		runes := []rune(c.Text)
		if len(runes) > 3 {
			sb.WriteString(string(runes[3:]))
		}
	}
	if sb.String() != text {
		t.Errorf("reconstructed %q, want %q", sb.String(), text)
	}
}

func TestSplitEmpty(t *testing.T) {
	if chunks := Split("", 800, 100); len(chunks) != 0 {
		t.Errorf("Split(\"\") returned %d chunks, want 0", len(chunks))
	}
}
