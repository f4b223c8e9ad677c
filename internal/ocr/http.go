package ocr

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPExtractor calls an OCR engine over HTTP. The engine receives the raw
// bytes and a format hint and answers with plain text; scanned PDFs and
// images go through the same endpoint.
type HTTPExtractor struct {
	endpoint string
	language string
	client   *http.Client
}

// NewHTTPExtractor creates an extractor against the given engine endpoint.
func NewHTTPExtractor(endpoint, language string) *HTTPExtractor {
	return &HTTPExtractor{
		endpoint: endpoint,
		language: language,
		client:   &http.Client{Timeout: 5 * time.Minute},
	}
}

type extractRequest struct {
	Content     string `json:"content"` // base64-encoded document bytes
	ContentKind string `json:"content_kind"`
	Language    string `json:"language,omitempty"`
}

type extractResponse struct {
	Text     string `json:"text"`
	NumPages *int   `json:"num_pages,omitempty"`
	Error    string `json:"error,omitempty"`
}

func (e *HTTPExtractor) ExtractText(ctx context.Context, data []byte, contentKind string) (*Result, error) {
	body, err := json.Marshal(extractRequest{
		Content:     base64.StdEncoding.EncodeToString(data),
		ContentKind: contentKind,
		Language:    e.language,
	})
	if err != nil {
		return nil, &Error{Err: fmt.Errorf("marshal extract request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint+"/extract", bytes.NewReader(body))
	if err != nil {
		return nil, &Error{Err: fmt.Errorf("create extract request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, &Error{Err: fmt.Errorf("extract request failed: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, &Error{Err: fmt.Errorf("ocr engine error (status %d): %s", resp.StatusCode, string(respBody))}
	}

	var result extractResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, &Error{Err: fmt.Errorf("decode extract response: %w", err)}
	}
	if result.Error != "" {
		return nil, &Error{Err: fmt.Errorf("ocr engine: %s", result.Error)}
	}

	return &Result{Text: result.Text, NumPages: result.NumPages}, nil
}
