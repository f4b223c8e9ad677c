package search

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"go.uber.org/zap"

	"github.com/docuvec/docuvec/internal/config"
	"github.com/docuvec/docuvec/internal/db"
	"github.com/docuvec/docuvec/internal/document"
	"github.com/docuvec/docuvec/internal/embeddings"
	"github.com/docuvec/docuvec/internal/pipeline"
	"github.com/docuvec/docuvec/internal/vectordb"
)

type fakeEmbedder struct {
	lastMode embeddings.Mode
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string, mode embeddings.Mode) ([][]float32, error) {
	f.lastMode = mode
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0, 0}
	}
	return out, nil
}

func (f *fakeEmbedder) Dimensions() int { return 3 }
func (f *fakeEmbedder) Name() string    { return "fake" }

// fakeIndex returns a fixed candidate list in ascending distance order.
type fakeIndex struct {
	matches   []vectordb.Match
	lastLimit int
}

func (f *fakeIndex) AddFragments(context.Context, []document.Fragment) error { return nil }

func (f *fakeIndex) QuerySimilar(_ context.Context, _ []float32, limit int) ([]vectordb.Match, error) {
	f.lastLimit = limit
	if limit > len(f.matches) {
		limit = len(f.matches)
	}
	return f.matches[:limit], nil
}

func (f *fakeIndex) DeleteByDocument(context.Context, string) error { return nil }
func (f *fakeIndex) Count() int                                     { return len(f.matches) }
func (f *fakeIndex) Persist(context.Context, string) error          { return nil }
func (f *fakeIndex) Load(context.Context, string) error             { return nil }

func testSearchConfig() config.SearchConfig {
	return config.SearchConfig{
		MaxPageSize:    50,
		CandidateLimit: 50,
		MaxDistance:    1.0,
		MinQueryLen:    3,
		MaxQueryLen:    500,
	}
}

type fixture struct {
	engine   *Engine
	docs     *document.Store
	index    *fakeIndex
	embedder *fakeEmbedder
}

func setupEngine(t *testing.T) *fixture {
	t.Helper()
	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	docs := document.NewStore(database)
	index := &fakeIndex{}
	embedder := &fakeEmbedder{}
	engine := NewEngine(docs, index, embedder, testSearchConfig(), zap.NewNop())
	return &fixture{engine: engine, docs: docs, index: index, embedder: embedder}
}

func strp(s string) *string { return &s }

// addDoc creates a completed document unless status says otherwise.
func (fx *fixture) addDoc(t *testing.T, docType, date string, status document.Status) *document.Document {
	t.Helper()
	ctx := context.Background()

	doc := &document.Document{Filename: "d.pdf", ContentKind: document.KindPDF, SizeBytes: 1}
	if err := fx.docs.Create(ctx, doc); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if status == document.StatusCompleted {
		md := document.Metadata{}
		if docType != "" {
			md.DocType = strp(docType)
		}
		if date != "" {
			md.DocDate = strp(date)
		}
		if err := fx.docs.PersistCompleted(ctx, doc.ID, "u", "k", nil, md, nil); err != nil {
			t.Fatalf("PersistCompleted: %v", err)
		}
	}
	return doc
}

func (fx *fixture) addMatch(docID, content string, position int, distance float64) {
	fx.index.matches = append(fx.index.matches, vectordb.Match{
		FragmentID: fmt.Sprintf("f-%d", len(fx.index.matches)),
		DocumentID: docID,
		Content:    content,
		Position:   position,
		Distance:   distance,
	})
}

func TestSearchRanksAndDeduplicates(t *testing.T) {
	fx := setupEngine(t)
	a := fx.addDoc(t, "Oficio", "2024-01-01", document.StatusCompleted)
	b := fx.addDoc(t, "Informe", "2024-02-01", document.StatusCompleted)

	// Document a appears twice; only its closest fragment must survive.
	fx.addMatch(a.ID, "fragmento cercano", 0, 0.20)
	fx.addMatch(b.ID, "fragmento medio", 1, 0.30)
	fx.addMatch(a.ID, "fragmento lejano", 2, 0.40)

	resp, err := fx.engine.Search(context.Background(), Request{Query: "consulta de prueba"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	if resp.Total != 2 {
		t.Fatalf("Total = %d, want 2", resp.Total)
	}
	if resp.Results[0].Document.ID != a.ID || resp.Results[0].Fragment != "fragmento cercano" {
		t.Errorf("Results[0] = %s/%q, want best fragment of first document",
			resp.Results[0].Document.ID, resp.Results[0].Fragment)
	}
	if resp.Results[1].Document.ID != b.ID {
		t.Errorf("Results[1].Document.ID = %s, want %s", resp.Results[1].Document.ID, b.ID)
	}
	if resp.Results[0].Distance != 0.20 {
		t.Errorf("Results[0].Distance = %v, want 0.20", resp.Results[0].Distance)
	}

	if fx.embedder.lastMode != embeddings.ModeQuery {
		t.Errorf("embedding mode = %q, want %q", fx.embedder.lastMode, embeddings.ModeQuery)
	}
	if fx.index.lastLimit != 50 {
		t.Errorf("candidate limit = %d, want 50", fx.index.lastLimit)
	}
}

func TestSearchAppliesDistanceCutoff(t *testing.T) {
	fx := setupEngine(t)
	a := fx.addDoc(t, "", "", document.StatusCompleted)
	b := fx.addDoc(t, "", "", document.StatusCompleted)

	fx.addMatch(a.ID, "cerca", 0, 0.5)
	fx.addMatch(b.ID, "lejos", 0, 1.5)

	resp, err := fx.engine.Search(context.Background(), Request{Query: "consulta"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if resp.Total != 1 {
		t.Fatalf("Total = %d, want 1: candidates past the cutoff must be dropped", resp.Total)
	}
	if resp.Results[0].Document.ID != a.ID {
		t.Errorf("Results[0].Document.ID = %s, want %s", resp.Results[0].Document.ID, a.ID)
	}
}

func TestSearchExcludesUnfinishedDocuments(t *testing.T) {
	fx := setupEngine(t)
	done := fx.addDoc(t, "", "", document.StatusCompleted)
	queued := fx.addDoc(t, "", "", document.StatusQueued)

	fx.addMatch(queued.ID, "pendiente", 0, 0.1)
	fx.addMatch(done.ID, "listo", 0, 0.2)

	resp, err := fx.engine.Search(context.Background(), Request{Query: "consulta"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if resp.Total != 1 || resp.Results[0].Document.ID != done.ID {
		t.Errorf("got %d results, want only the completed document", resp.Total)
	}
}

func TestSearchFiltersByTypeAndDate(t *testing.T) {
	fx := setupEngine(t)

	var oficios []*document.Document
	for i := 0; i < 3; i++ {
		doc := fx.addDoc(t, "Oficio", fmt.Sprintf("2024-06-%02d", i+1), document.StatusCompleted)
		oficios = append(oficios, doc)
		fx.addMatch(doc.ID, "oficio", 0, 0.1+float64(i)*0.01)
	}
	for i := 0; i < 2; i++ {
		doc := fx.addDoc(t, "Informe", "2024-06-10", document.StatusCompleted)
		fx.addMatch(doc.ID, "informe", 0, 0.3+float64(i)*0.01)
	}
	old := fx.addDoc(t, "Oficio", "2023-01-01", document.StatusCompleted)
	fx.addMatch(old.ID, "antiguo", 0, 0.05)

	resp, err := fx.engine.Search(context.Background(), Request{
		Query:    "consulta",
		DocType:  "Oficio",
		DateFrom: "2024-01-01",
		DateTo:   "2024-12-31",
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if resp.Total != 3 {
		t.Fatalf("Total = %d, want 3", resp.Total)
	}
	for _, hit := range resp.Results {
		if *hit.Document.Metadata.DocType != "Oficio" {
			t.Errorf("hit DocType = %q, want Oficio", *hit.Document.Metadata.DocType)
		}
	}
	if resp.Results[0].Document.ID != oficios[0].ID {
		t.Errorf("Results[0] = %s, want closest matching oficio", resp.Results[0].Document.ID)
	}
}

func TestSearchPagination(t *testing.T) {
	fx := setupEngine(t)
	for i := 0; i < 7; i++ {
		doc := fx.addDoc(t, "", "", document.StatusCompleted)
		fx.addMatch(doc.ID, fmt.Sprintf("fragmento %d", i), 0, 0.1+float64(i)*0.05)
	}

	resp, err := fx.engine.Search(context.Background(), Request{Query: "consulta", Page: 2, PageSize: 3})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if resp.Total != 7 {
		t.Errorf("Total = %d, want 7", resp.Total)
	}
	if resp.TotalPages != 3 {
		t.Errorf("TotalPages = %d, want 3", resp.TotalPages)
	}
	if len(resp.Results) != 3 {
		t.Errorf("len(Results) = %d, want 3", len(resp.Results))
	}
	if resp.Results[0].Fragment != "fragmento 3" {
		t.Errorf("Results[0].Fragment = %q, want fragmento 3", resp.Results[0].Fragment)
	}

	// A page past the end is valid and empty.
	resp, err = fx.engine.Search(context.Background(), Request{Query: "consulta", Page: 5, PageSize: 3})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(resp.Results) != 0 {
		t.Errorf("len(Results) = %d on out-of-range page, want 0", len(resp.Results))
	}
}

func TestSearchValidation(t *testing.T) {
	fx := setupEngine(t)

	cases := []Request{
		{Query: "ab"},                              // too short
		{Query: string(make([]rune, 501))},         // too long
		{Query: "consulta", Page: -1},              // bad page
		{Query: "consulta", PageSize: 51},          // beyond max page size
		{Query: "consulta", DocType: "Inventado"},  // unknown type
		{Query: "consulta", DateFrom: "01/02/24"},  // bad date
		{Query: "consulta", DateTo: "2024-13-01"},  // bad date
		{Query: "   ab   "},                        // trims to too short
	}
	for _, req := range cases {
		_, err := fx.engine.Search(context.Background(), req)
		var verr *pipeline.ValidationError
		if !errors.As(err, &verr) {
			t.Errorf("Search(%+v) = %v, want ValidationError", req, err)
		}
	}
}

func TestSearchEmptyIndex(t *testing.T) {
	fx := setupEngine(t)

	resp, err := fx.engine.Search(context.Background(), Request{Query: "consulta"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if resp.Total != 0 || len(resp.Results) != 0 {
		t.Errorf("got %d/%d results on empty index, want none", resp.Total, len(resp.Results))
	}
	if resp.TotalPages != 0 {
		t.Errorf("TotalPages = %d, want 0", resp.TotalPages)
	}
}
