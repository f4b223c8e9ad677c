package ocr

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestExtractText(t *testing.T) {
	var received extractRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/extract" {
			t.Errorf("path = %q, want /extract", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		pages := 2
		json.NewEncoder(w).Encode(extractResponse{Text: "texto extraído", NumPages: &pages})
	}))
	defer srv.Close()

	extractor := NewHTTPExtractor(srv.URL, "spa")
	result, err := extractor.ExtractText(context.Background(), []byte("raw pdf"), "pdf")
	if err != nil {
		t.Fatalf("ExtractText: %v", err)
	}

	if result.Text != "texto extraído" {
		t.Errorf("Text = %q, want texto extraído", result.Text)
	}
	if result.NumPages == nil || *result.NumPages != 2 {
		t.Errorf("NumPages = %v, want 2", result.NumPages)
	}

	decoded, err := base64.StdEncoding.DecodeString(received.Content)
	if err != nil || string(decoded) != "raw pdf" {
		t.Errorf("request content = %q, want base64 of the raw bytes", received.Content)
	}
	if received.ContentKind != "pdf" {
		t.Errorf("content_kind = %q, want pdf", received.ContentKind)
	}
	if received.Language != "spa" {
		t.Errorf("language = %q, want spa", received.Language)
	}
}

func TestExtractTextEngineFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "engine overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	extractor := NewHTTPExtractor(srv.URL, "spa")
	_, err := extractor.ExtractText(context.Background(), []byte("x"), "pdf")

	var oerr *Error
	if !errors.As(err, &oerr) {
		t.Fatalf("ExtractText = %v, want *Error", err)
	}
}

func TestExtractTextEngineReportsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(extractResponse{Error: "unreadable scan"})
	}))
	defer srv.Close()

	extractor := NewHTTPExtractor(srv.URL, "spa")
	_, err := extractor.ExtractText(context.Background(), []byte("x"), "jpeg")
	if err == nil {
		t.Fatal("ExtractText returned nil for an engine-reported error")
	}
}

func TestExtractTextUnreachable(t *testing.T) {
	extractor := NewHTTPExtractor("http://127.0.0.1:1", "spa")
	_, err := extractor.ExtractText(context.Background(), []byte("x"), "pdf")
	var oerr *Error
	if !errors.As(err, &oerr) {
		t.Fatalf("ExtractText = %v, want *Error", err)
	}
}
