// Package textproc holds the pure text transformations of the ingestion
// pipeline: cleaning OCR output and chunking it into overlapping fragments.
package textproc

import (
	"regexp"
	"strings"
)

// Characters outside the printable ASCII range, the Latin extended blocks
// and ordinary whitespace are OCR noise and get replaced by spaces.
var (
	nonPrintable  = regexp.MustCompile("[^\x20-\x7E -ɏḀ-ỿ\n\r\t]")
	spaceRuns     = regexp.MustCompile(`[ \t]+`)
	blankLineRuns = regexp.MustCompile(`\n\s*\n+`)
)

// Clean normalizes raw extracted text: strips non-printable characters,
// collapses whitespace runs and blank-line runs, and trims every line.
// Clean is deterministic and side-effect free.
func Clean(text string) string {
	if text == "" {
		return ""
	}

	text = nonPrintable.ReplaceAllString(text, " ")
	text = spaceRuns.ReplaceAllString(text, " ")
	text = blankLineRuns.ReplaceAllString(text, "\n\n")

	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" {
			kept = append(kept, line)
		}
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}
