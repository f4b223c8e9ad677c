// Package vectordb maintains the similarity index over fragment embeddings.
package vectordb

import (
	"context"

	"github.com/docuvec/docuvec/internal/document"
)

// Match is one ranked similarity hit. Distance is cosine distance in [0,2];
// lower means more similar.
type Match struct {
	FragmentID string
	DocumentID string
	Content    string
	Position   int
	Distance   float64
}

// Store indexes fragment embeddings and answers ranked similarity queries.
// Only fragments of completed documents are ever added, so query results
// never reference partially ingested documents.
type Store interface {
	// AddFragments indexes the fragments of one document. Embeddings are
	// precomputed by the pipeline; the store never calls out to a model.
	AddFragments(ctx context.Context, fragments []document.Fragment) error

	// QuerySimilar returns up to limit fragments ranked by ascending
	// cosine distance from the query vector.
	QuerySimilar(ctx context.Context, queryVector []float32, limit int) ([]Match, error)

	// DeleteByDocument removes all fragments of a document from the index.
	DeleteByDocument(ctx context.Context, documentID string) error

	// Count reports the number of indexed fragments.
	Count() int

	// Persist writes the index to the data directory; Load restores it.
	Persist(ctx context.Context, dir string) error
	Load(ctx context.Context, dir string) error
}
