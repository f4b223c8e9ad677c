package embeddings

import "context"

// Mode selects the retrieval side an embedding is optimized for. Indexing
// and querying produce different vectors on models tuned for asymmetric
// retrieval.
type Mode string

const (
	// ModeIndex embeds document fragments for storage.
	ModeIndex Mode = "index"
	// ModeQuery embeds a search query.
	ModeQuery Mode = "query"
)

// Embedder defines the interface for generating text embeddings.
type Embedder interface {
	// Embed generates one fixed-length vector per input text.
	Embed(ctx context.Context, texts []string, mode Mode) ([][]float32, error)

	// Dimensions returns the number of dimensions in the embedding vectors.
	Dimensions() int

	// Name returns the name/identifier of the embedding model.
	Name() string
}
