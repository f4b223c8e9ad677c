package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/docuvec/docuvec/internal/audit"
	"github.com/docuvec/docuvec/internal/config"
	"github.com/docuvec/docuvec/internal/db"
	"github.com/docuvec/docuvec/internal/document"
	"github.com/docuvec/docuvec/internal/embeddings"
	"github.com/docuvec/docuvec/internal/ingest"
	"github.com/docuvec/docuvec/internal/job"
	"github.com/docuvec/docuvec/internal/search"
	"github.com/docuvec/docuvec/internal/storage"
	"github.com/docuvec/docuvec/internal/vectordb"
)

type nopEnqueuer struct{}

func (nopEnqueuer) Enqueue(*job.Job) {}

type nopEmbedder struct{}

func (nopEmbedder) Embed(_ context.Context, texts []string, _ embeddings.Mode) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0, 0, 0}
	}
	return out, nil
}
func (nopEmbedder) Dimensions() int { return 4 }
func (nopEmbedder) Name() string    { return "nop" }

type nopIndex struct{}

func (nopIndex) AddFragments(context.Context, []document.Fragment) error { return nil }
func (nopIndex) QuerySimilar(context.Context, []float32, int) ([]vectordb.Match, error) {
	return nil, nil
}
func (nopIndex) DeleteByDocument(context.Context, string) error { return nil }
func (nopIndex) Count() int                                     { return 0 }
func (nopIndex) Persist(context.Context, string) error          { return nil }
func (nopIndex) Load(context.Context, string) error             { return nil }

func setupServer(t *testing.T) (*httptest.Server, *storage.FilesystemStore) {
	t.Helper()

	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	cfg := config.DefaultConfig()
	docs := document.NewStore(database)
	jobs := job.NewStore(database)
	auditStore := audit.NewStore(database)

	objects, err := storage.NewFilesystemStore(t.TempDir(), "http://localhost:8080")
	if err != nil {
		t.Fatalf("NewFilesystemStore: %v", err)
	}
	coordinator, err := ingest.NewCoordinator(docs, jobs, nopEnqueuer{}, t.TempDir(), cfg.Pipeline, zap.NewNop())
	if err != nil {
		t.Fatalf("NewCoordinator: %v", err)
	}
	engine := search.NewEngine(docs, nopIndex{}, nopEmbedder{}, cfg.Search, zap.NewNop())

	srv := New(*cfg, Deps{
		Documents:   docs,
		Jobs:        jobs,
		Audit:       auditStore,
		Coordinator: coordinator,
		Engine:      engine,
		Index:       nopIndex{},
		Objects:     objects,
	}, zap.NewNop())

	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts, objects
}

func TestHealthz(t *testing.T) {
	ts, _ := setupServer(t)

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status = %q, want ok", body["status"])
	}
}

// storage_url written on completed documents must be a working link.
func TestObjectURLResolves(t *testing.T) {
	ts, objects := setupServer(t)

	content := []byte("%PDF archivo")
	_, rawURL, err := objects.Put(context.Background(), content, "oficio 12.pdf", "pdf")
	if err != nil {
		t.Fatalf("Put: %v", err)
	}

	objectPath := strings.TrimPrefix(rawURL, "http://localhost:8080")
	resp, err := http.Get(ts.URL + objectPath)
	if err != nil {
		t.Fatalf("GET %s: %v", objectPath, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status for %s = %d, want 200", objectPath, resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/pdf" {
		t.Errorf("Content-Type = %q, want application/pdf", ct)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("reading body: %v", err)
	}
	if !bytes.Equal(body, content) {
		t.Errorf("body = %q, want the stored bytes", body)
	}

	resp2, err := http.Get(ts.URL + "/objects/2024/missing.pdf")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp2.Body.Close()
	if resp2.StatusCode != http.StatusNotFound {
		t.Errorf("status for a missing object = %d, want 404", resp2.StatusCode)
	}
}

// Every feature's routes must be mounted on the assembled router.
func TestRoutesMounted(t *testing.T) {
	ts, _ := setupServer(t)

	cases := []struct {
		name   string
		method string
		path   string
		body   string
		status int
	}{
		{"list documents", http.MethodGet, "/api/documents/", "", http.StatusOK},
		{"unknown document", http.MethodGet, "/api/documents/nope", "", http.StatusNotFound},
		{"unknown job", http.MethodGet, "/api/jobs/nope", "", http.StatusNotFound},
		{"search", http.MethodPost, "/api/search", `{"query":"licencias de obra"}`, http.StatusOK},
		{"audit trail", http.MethodGet, "/api/audit/", "", http.StatusOK},
		{"audit statistics", http.MethodGet, "/api/audit/statistics", "", http.StatusOK},
		{"upload without file", http.MethodPost, "/api/documents", "", http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var body io.Reader
			if tc.body != "" {
				body = strings.NewReader(tc.body)
			}
			req, err := http.NewRequest(tc.method, ts.URL+tc.path, body)
			if err != nil {
				t.Fatalf("building request: %v", err)
			}
			if tc.body != "" {
				req.Header.Set("Content-Type", "application/json")
			}
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				t.Fatalf("%s %s: %v", tc.method, tc.path, err)
			}
			resp.Body.Close()
			if resp.StatusCode != tc.status {
				t.Errorf("%s %s = %d, want %d", tc.method, tc.path, resp.StatusCode, tc.status)
			}
		})
	}
}
