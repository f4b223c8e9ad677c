// Package ai derives structured document metadata from extracted text via
// an LLM call.
package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/docuvec/docuvec/internal/document"
	"github.com/docuvec/docuvec/internal/llm"
)

const (
	maxTopicLen   = 200
	maxSummaryLen = 500
	maxEntityLen  = 100
	minEntityLen  = 2
	maxEntities   = 10
)

// ParseError marks a metadata response that stayed malformed after the
// repair pass.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string { return "metadata parse: " + e.Err.Error() }
func (e *ParseError) Unwrap() error { return e.Err }

// MetadataExtractor classifies a document and extracts its metadata fields.
type MetadataExtractor interface {
	ExtractMetadata(ctx context.Context, textPrefix string) (document.Metadata, error)
}

// LLMExtractor implements MetadataExtractor on top of an llm.Provider.
type LLMExtractor struct {
	provider llm.Provider
	model    string
}

// NewLLMExtractor creates an extractor using the given provider and model.
func NewLLMExtractor(provider llm.Provider, model string) *LLMExtractor {
	return &LLMExtractor{provider: provider, model: model}
}

// rawMetadata mirrors the JSON object the prompt demands. Every field is
// individually nullable.
type rawMetadata struct {
	DocType  *string  `json:"doc_type"`
	Topic    *string  `json:"topic"`
	DocDate  *string  `json:"doc_date"`
	Entities []string `json:"entities"`
	Summary  *string  `json:"summary"`
}

// ExtractMetadata prompts the model with the sanitized text prefix and
// validates the response. A malformed response gets one repair pass before
// the call fails with a ParseError.
func (e *LLMExtractor) ExtractMetadata(ctx context.Context, textPrefix string) (document.Metadata, error) {
	prompt := metadataPrompt(SanitizeForPrompt(textPrefix))

	resp, err := e.provider.Complete(ctx, llm.CompletionRequest{
		Model:       e.model,
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: prompt}},
		MaxTokens:   1024,
		Temperature: 0,
		JSONMode:    true,
	})
	if err != nil {
		return document.Metadata{}, fmt.Errorf("metadata completion: %w", err)
	}

	raw, err := parseResponse(resp.Content)
	if err != nil {
		return document.Metadata{}, &ParseError{Err: err}
	}

	return validate(raw), nil
}

// parseResponse decodes the model output, tolerating one normalization pass
// for markdown fences and surrounding prose.
func parseResponse(content string) (rawMetadata, error) {
	var raw rawMetadata
	if err := json.Unmarshal([]byte(content), &raw); err == nil {
		return raw, nil
	}

	cleaned := strings.TrimSpace(content)
	cleaned = strings.ReplaceAll(cleaned, "```json", "")
	cleaned = strings.ReplaceAll(cleaned, "```", "")
	if start, end := strings.Index(cleaned, "{"), strings.LastIndex(cleaned, "}"); start >= 0 && end > start {
		cleaned = cleaned[start : end+1]
	}

	if err := json.Unmarshal([]byte(cleaned), &raw); err != nil {
		return rawMetadata{}, fmt.Errorf("decoding metadata response: %w", err)
	}
	return raw, nil
}

// validate sanitizes every field: category fallback, length limits, date
// format, entity pruning. Undeterminable fields stay nil.
func validate(raw rawMetadata) document.Metadata {
	var md document.Metadata

	docType := document.CategoryOther
	if raw.DocType != nil && document.ValidCategory(strings.TrimSpace(*raw.DocType)) {
		docType = strings.TrimSpace(*raw.DocType)
	}
	md.DocType = &docType

	if raw.Topic != nil {
		if t := truncate(strings.TrimSpace(*raw.Topic), maxTopicLen); t != "" {
			md.Topic = &t
		}
	}
	if raw.Summary != nil {
		if s := truncate(strings.TrimSpace(*raw.Summary), maxSummaryLen); s != "" {
			md.Summary = &s
		}
	}
	if raw.DocDate != nil {
		if d := validDate(*raw.DocDate); d != "" {
			md.DocDate = &d
		}
	}
	md.Entities = validEntities(raw.Entities)

	return md
}

var datePattern = regexp.MustCompile(`(\d{4})-(\d{1,2})-(\d{1,2})`)

// validDate extracts and verifies a YYYY-MM-DD date, or returns "".
func validDate(s string) string {
	m := datePattern.FindStringSubmatch(s)
	if m == nil {
		return ""
	}
	t, err := time.Parse("2006-1-2", fmt.Sprintf("%s-%s-%s", m[1], m[2], m[3]))
	if err != nil {
		return ""
	}
	return t.Format("2006-01-02")
}

func validEntities(entities []string) []string {
	var out []string
	for _, e := range entities {
		e = truncate(strings.TrimSpace(e), maxEntityLen)
		if len([]rune(e)) >= minEntityLen {
			out = append(out, e)
		}
		if len(out) == maxEntities {
			break
		}
	}
	return out
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

var controlChars = regexp.MustCompile("[\x00-\x08\x0B\x0C\x0E-\x1F\x7F]")

// maxPromptLineLen drops lines the OCR engine likely garbled.
const maxPromptLineLen = 500

// SanitizeForPrompt removes control characters, collapses whitespace and
// discards over-long lines before the text is sent to the model.
func SanitizeForPrompt(text string) string {
	if text == "" {
		return ""
	}

	text = controlChars.ReplaceAllString(text, " ")

	var kept []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" && len([]rune(line)) < maxPromptLineLen {
			kept = append(kept, line)
		}
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}
