package document

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/docuvec/docuvec/internal/db"
)

func setupStore(t *testing.T) *Store {
	t.Helper()
	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return NewStore(database)
}

func createDoc(t *testing.T, store *Store) *Document {
	t.Helper()
	doc := &Document{Filename: "oficio.pdf", ContentKind: KindPDF, SizeBytes: 2048}
	if err := store.Create(context.Background(), doc); err != nil {
		t.Fatalf("Create: %v", err)
	}
	return doc
}

func strp(s string) *string { return &s }

func TestCreateAndGet(t *testing.T) {
	store := setupStore(t)
	doc := createDoc(t, store)

	got, err := store.Get(context.Background(), doc.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != StatusQueued {
		t.Errorf("Status = %q, want %q", got.Status, StatusQueued)
	}
	if got.Filename != "oficio.pdf" {
		t.Errorf("Filename = %q, want oficio.pdf", got.Filename)
	}
	if got.Metadata.DocType != nil {
		t.Errorf("DocType = %v, want nil before pipeline completes", got.Metadata.DocType)
	}
}

func TestPersistCompleted(t *testing.T) {
	store := setupStore(t)
	doc := createDoc(t, store)
	ctx := context.Background()

	if err := store.SetProcessing(ctx, doc.ID); err != nil {
		t.Fatalf("SetProcessing: %v", err)
	}

	pages := 3
	md := Metadata{
		DocType:  strp("Oficio"),
		Topic:    strp("Solicitud de útiles"),
		DocDate:  strp("2024-03-15"),
		Entities: []string{"UGEL Cusco"},
		Summary:  strp("Se solicitan útiles de oficina."),
	}
	fragments := []Fragment{
		{Content: "primer fragmento", Position: 0, Embedding: []float32{0.1, 0.2}},
		{Content: "segundo fragmento", Position: 1, Embedding: []float32{0.3, 0.4}},
	}

	err := store.PersistCompleted(ctx, doc.ID, "http://x/objects/2024/a.pdf", "2024/a.pdf", &pages, md, fragments)
	if err != nil {
		t.Fatalf("PersistCompleted: %v", err)
	}

	got, err := store.Get(ctx, doc.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != StatusCompleted {
		t.Errorf("Status = %q, want %q", got.Status, StatusCompleted)
	}
	if got.NumPages == nil || *got.NumPages != 3 {
		t.Errorf("NumPages = %v, want 3", got.NumPages)
	}
	if got.Metadata.DocType == nil || *got.Metadata.DocType != "Oficio" {
		t.Errorf("DocType = %v, want Oficio", got.Metadata.DocType)
	}
	if len(got.Metadata.Entities) != 1 || got.Metadata.Entities[0] != "UGEL Cusco" {
		t.Errorf("Entities = %v, want [UGEL Cusco]", got.Metadata.Entities)
	}
	if got.ProcessedAt == nil {
		t.Error("ProcessedAt = nil, want set")
	}

	stored, err := store.Fragments(ctx, doc.ID)
	if err != nil {
		t.Fatalf("Fragments: %v", err)
	}
	if len(stored) != 2 {
		t.Fatalf("len(Fragments) = %d, want 2", len(stored))
	}
	if stored[1].Content != "segundo fragmento" {
		t.Errorf("Fragments[1].Content = %q", stored[1].Content)
	}
	if len(stored[0].Embedding) != 2 || stored[0].Embedding[0] != 0.1 {
		t.Errorf("Fragments[0].Embedding = %v, want [0.1 0.2]", stored[0].Embedding)
	}
}

func TestPersistCompletedReplacesStaleFragments(t *testing.T) {
	store := setupStore(t)
	doc := createDoc(t, store)
	ctx := context.Background()

	first := []Fragment{{Content: "viejo", Position: 0, Embedding: []float32{1}}}
	if err := store.PersistCompleted(ctx, doc.ID, "u", "k", nil, Metadata{}, first); err != nil {
		t.Fatalf("PersistCompleted: %v", err)
	}

	second := []Fragment{
		{Content: "nuevo a", Position: 0, Embedding: []float32{2}},
		{Content: "nuevo b", Position: 1, Embedding: []float32{3}},
	}
	if err := store.PersistCompleted(ctx, doc.ID, "u", "k", nil, Metadata{}, second); err != nil {
		t.Fatalf("PersistCompleted again: %v", err)
	}

	stored, _ := store.Fragments(ctx, doc.ID)
	if len(stored) != 2 {
		t.Fatalf("len(Fragments) = %d, want 2 after replacement", len(stored))
	}
	if stored[0].Content != "nuevo a" {
		t.Errorf("Fragments[0].Content = %q, want nuevo a", stored[0].Content)
	}
}

func TestSetProcessingNeverDemotesCompleted(t *testing.T) {
	store := setupStore(t)
	doc := createDoc(t, store)
	ctx := context.Background()

	if err := store.PersistCompleted(ctx, doc.ID, "u", "k", nil, Metadata{}, nil); err != nil {
		t.Fatalf("PersistCompleted: %v", err)
	}
	if err := store.SetProcessing(ctx, doc.ID); err != nil {
		t.Fatalf("SetProcessing: %v", err)
	}

	got, _ := store.Get(ctx, doc.ID)
	if got.Status != StatusCompleted {
		t.Errorf("Status = %q, want %q", got.Status, StatusCompleted)
	}
}

func TestMarkError(t *testing.T) {
	store := setupStore(t)
	doc := createDoc(t, store)
	ctx := context.Background()

	if err := store.MarkError(ctx, doc.ID, "failed after 3 attempts"); err != nil {
		t.Fatalf("MarkError: %v", err)
	}
	got, _ := store.Get(ctx, doc.ID)
	if got.Status != StatusError {
		t.Errorf("Status = %q, want %q", got.Status, StatusError)
	}
	if got.ErrorDetail == nil || *got.ErrorDetail != "failed after 3 attempts" {
		t.Errorf("ErrorDetail = %v", got.ErrorDetail)
	}
}

func TestListFilters(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	mk := func(docType, date string, complete bool) *Document {
		doc := createDoc(t, store)
		if complete {
			md := Metadata{DocType: strp(docType), DocDate: strp(date)}
			if err := store.PersistCompleted(ctx, doc.ID, "u", "k", nil, md, nil); err != nil {
				t.Fatalf("PersistCompleted: %v", err)
			}
		}
		return doc
	}

	mk("Oficio", "2024-01-10", true)
	mk("Oficio", "2024-06-20", true)
	mk("Informe", "2024-06-25", true)
	mk("", "", false) // still queued

	docs, total, err := store.List(ctx, ListFilter{Status: StatusCompleted})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if total != 3 || len(docs) != 3 {
		t.Errorf("completed: total=%d len=%d, want 3/3", total, len(docs))
	}

	_, total, err = store.List(ctx, ListFilter{DocType: "Oficio"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if total != 2 {
		t.Errorf("doc_type Oficio: total=%d, want 2", total)
	}

	_, total, err = store.List(ctx, ListFilter{DateFrom: "2024-06-01", DateTo: "2024-06-30"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if total != 2 {
		t.Errorf("june range: total=%d, want 2", total)
	}

	docs, total, err = store.List(ctx, ListFilter{Limit: 2})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if total != 4 {
		t.Errorf("unfiltered total=%d, want 4", total)
	}
	if len(docs) != 2 {
		t.Errorf("limited len=%d, want 2", len(docs))
	}
}

func TestDeleteCascadesFragments(t *testing.T) {
	store := setupStore(t)
	doc := createDoc(t, store)
	ctx := context.Background()

	fragments := []Fragment{{Content: "f", Position: 0, Embedding: []float32{1}}}
	if err := store.PersistCompleted(ctx, doc.ID, "u", "k", nil, Metadata{}, fragments); err != nil {
		t.Fatalf("PersistCompleted: %v", err)
	}

	if err := store.Delete(ctx, doc.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Get(ctx, doc.ID); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("Get after delete = %v, want sql.ErrNoRows", err)
	}
	left, err := store.Fragments(ctx, doc.ID)
	if err != nil {
		t.Fatalf("Fragments: %v", err)
	}
	if len(left) != 0 {
		t.Errorf("len(Fragments) = %d after delete, want 0", len(left))
	}
}

func TestDeleteMissing(t *testing.T) {
	store := setupStore(t)
	if err := store.Delete(context.Background(), "missing"); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("Delete = %v, want sql.ErrNoRows", err)
	}
}

func TestUpdateMetadataReturnsOld(t *testing.T) {
	store := setupStore(t)
	doc := createDoc(t, store)
	ctx := context.Background()

	md := Metadata{DocType: strp("Oficio"), Topic: strp("original")}
	if err := store.PersistCompleted(ctx, doc.ID, "u", "k", nil, md, nil); err != nil {
		t.Fatalf("PersistCompleted: %v", err)
	}

	md.Topic = strp("corregido")
	old, err := store.UpdateMetadata(ctx, doc.ID, md)
	if err != nil {
		t.Fatalf("UpdateMetadata: %v", err)
	}
	if old.Metadata.Topic == nil || *old.Metadata.Topic != "original" {
		t.Errorf("old Topic = %v, want original", old.Metadata.Topic)
	}

	got, _ := store.Get(ctx, doc.ID)
	if got.Metadata.Topic == nil || *got.Metadata.Topic != "corregido" {
		t.Errorf("new Topic = %v, want corregido", got.Metadata.Topic)
	}
}

func TestGetByIDs(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	a := createDoc(t, store)
	b := createDoc(t, store)

	got, err := store.GetByIDs(ctx, []string{a.ID, b.ID, "missing"})
	if err != nil {
		t.Fatalf("GetByIDs: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("len(GetByIDs) = %d, want 2", len(got))
	}
	if got[a.ID] == nil || got[b.ID] == nil {
		t.Error("GetByIDs missing requested documents")
	}
}

func TestVectorRoundTrip(t *testing.T) {
	in := []float32{0.5, -1.25, 3.75, 0}
	out := DecodeVector(EncodeVector(in))
	if len(out) != len(in) {
		t.Fatalf("len = %d, want %d", len(out), len(in))
	}
	for i := range in {
		if in[i] != out[i] {
			t.Errorf("out[%d] = %v, want %v", i, out[i], in[i])
		}
	}
}
