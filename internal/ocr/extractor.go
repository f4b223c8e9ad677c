// Package ocr wraps the external text-extraction engine.
package ocr

import (
	"context"
	"fmt"
)

// Result is the outcome of a text-extraction call.
type Result struct {
	Text     string
	NumPages *int // only reported for paginated formats
}

// Extractor extracts text from a raw document. The engine is a black box;
// failures abort the current pipeline attempt and are handled by the
// whole-job retry.
type Extractor interface {
	ExtractText(ctx context.Context, data []byte, contentKind string) (*Result, error)
}

// Error wraps an extraction failure so the pipeline can classify it.
type Error struct {
	Err error
}

func (e *Error) Error() string { return fmt.Sprintf("ocr: %v", e.Err) }
func (e *Error) Unwrap() error { return e.Err }
