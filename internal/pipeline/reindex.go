package pipeline

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/docuvec/docuvec/internal/document"
	"github.com/docuvec/docuvec/internal/vectordb"
)

// ReindexCompleted rebuilds the similarity index from the relational store
// when the two disagree, which happens after a crash that lost the index
// snapshot. The relational store is the source of truth, and embeddings are
// stored alongside the fragments, so rebuilding needs no model calls.
func ReindexCompleted(ctx context.Context, docs *document.Store, index vectordb.Store, logger *zap.Logger) error {
	completed, _, err := docs.List(ctx, document.ListFilter{Status: document.StatusCompleted})
	if err != nil {
		return fmt.Errorf("listing completed documents: %w", err)
	}

	byDocument := make(map[string][]document.Fragment, len(completed))
	var total int
	for _, doc := range completed {
		fragments, err := docs.Fragments(ctx, doc.ID)
		if err != nil {
			return fmt.Errorf("loading fragments for %s: %w", doc.ID, err)
		}
		byDocument[doc.ID] = fragments
		total += len(fragments)
	}

	if index.Count() == total {
		return nil
	}

	logger.Warn("similarity index out of sync, rebuilding",
		zap.Int("indexed", index.Count()),
		zap.Int("stored", total))

	for id, fragments := range byDocument {
		if err := index.DeleteByDocument(ctx, id); err != nil {
			return fmt.Errorf("clearing stale index entries for %s: %w", id, err)
		}
		if len(fragments) == 0 {
			continue
		}
		if err := index.AddFragments(ctx, fragments); err != nil {
			return fmt.Errorf("reindexing %s: %w", id, err)
		}
	}

	logger.Info("similarity index rebuilt",
		zap.Int("documents", len(byDocument)),
		zap.Int("fragments", total))
	return nil
}
