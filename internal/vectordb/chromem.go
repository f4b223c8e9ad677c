package vectordb

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"

	chromem "github.com/philippgille/chromem-go"

	"github.com/docuvec/docuvec/internal/document"
	"github.com/docuvec/docuvec/internal/embeddings"
)

const collectionName = "fragments"

// ChromemStore implements Store using chromem-go. The collection lives in
// memory and is exported to the data directory on shutdown.
type ChromemStore struct {
	db         *chromem.DB
	collection *chromem.Collection
	embedFunc  chromem.EmbeddingFunc
}

// NewChromemStore creates a new in-memory ChromemStore. The embedder is
// only consulted by chromem for documents added without a precomputed
// vector, which the pipeline never does.
func NewChromemStore(embedder embeddings.Embedder) (*ChromemStore, error) {
	db := chromem.NewDB()
	ef := func(ctx context.Context, text string) ([]float32, error) {
		vecs, err := embedder.Embed(ctx, []string{text}, embeddings.ModeIndex)
		if err != nil {
			return nil, err
		}
		return vecs[0], nil
	}

	col, err := db.GetOrCreateCollection(collectionName, nil, ef)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}

	return &ChromemStore{
		db:         db,
		collection: col,
		embedFunc:  ef,
	}, nil
}

func (s *ChromemStore) AddFragments(ctx context.Context, fragments []document.Fragment) error {
	if len(fragments) == 0 {
		return nil
	}

	docs := make([]chromem.Document, len(fragments))
	for i, f := range fragments {
		docs[i] = chromem.Document{
			ID:      f.ID,
			Content: f.Content,
			Metadata: map[string]string{
				"document_id": f.DocumentID,
				"position":    strconv.Itoa(f.Position),
			},
			Embedding: f.Embedding,
		}
	}

	// Concurrency of 1: the embeddings are precomputed.
	return s.collection.AddDocuments(ctx, docs, 1)
}

func (s *ChromemStore) QuerySimilar(ctx context.Context, queryVector []float32, limit int) ([]Match, error) {
	if limit <= 0 {
		limit = 10
	}

	// chromem-go requires nResults <= collection size.
	count := s.collection.Count()
	if count == 0 {
		return nil, nil
	}
	if limit > count {
		limit = count
	}

	results, err := s.collection.QueryEmbedding(ctx, queryVector, limit, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("chromem query: %w", err)
	}

	matches := make([]Match, len(results))
	for i, r := range results {
		position, _ := strconv.Atoi(r.Metadata["position"])
		matches[i] = Match{
			FragmentID: r.ID,
			DocumentID: r.Metadata["document_id"],
			Content:    r.Content,
			Position:   position,
			// chromem reports cosine similarity in [-1,1].
			Distance: 1 - float64(r.Similarity),
		}
	}
	return matches, nil
}

func (s *ChromemStore) DeleteByDocument(ctx context.Context, documentID string) error {
	if s.collection.Count() == 0 {
		return nil
	}
	where := map[string]string{"document_id": documentID}
	return s.collection.Delete(ctx, where, nil)
}

func (s *ChromemStore) Count() int {
	return s.collection.Count()
}

func (s *ChromemStore) Persist(ctx context.Context, dir string) error {
	return s.db.ExportToFile(filepath.Join(dir, "fragments.gob.gz"), true, "")
}

func (s *ChromemStore) Load(ctx context.Context, dir string) error {
	err := s.db.ImportFromFile(filepath.Join(dir, "fragments.gob.gz"), "")
	if err != nil {
		return fmt.Errorf("import from file: %w", err)
	}

	// Re-acquire collection reference after import.
	col := s.db.GetCollection(collectionName, s.embedFunc)
	if col == nil {
		return fmt.Errorf("collection %q not found after import", collectionName)
	}
	s.collection = col
	return nil
}
