// Package search answers semantic queries over completed documents.
package search

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/docuvec/docuvec/internal/config"
	"github.com/docuvec/docuvec/internal/document"
	"github.com/docuvec/docuvec/internal/embeddings"
	"github.com/docuvec/docuvec/internal/pipeline"
	"github.com/docuvec/docuvec/internal/vectordb"
)

// Request is one search call. Page is 1-based.
type Request struct {
	Query    string `json:"query"`
	DocType  string `json:"doc_type,omitempty"`
	DateFrom string `json:"date_from,omitempty"` // YYYY-MM-DD, inclusive
	DateTo   string `json:"date_to,omitempty"`   // YYYY-MM-DD, inclusive
	Page     int    `json:"page,omitempty"`
	PageSize int    `json:"page_size,omitempty"`
}

// Hit is one result: a document represented by its closest fragment.
type Hit struct {
	Document *document.Document `json:"document"`
	Fragment string             `json:"fragment"`
	Position int                `json:"position"`
	Distance float64            `json:"distance"`
}

// Response is a page of hits plus pagination totals. Total counts all
// matching documents, not just the returned page.
type Response struct {
	Results    []Hit `json:"results"`
	Total      int   `json:"total"`
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalPages int   `json:"total_pages"`
}

// Engine executes semantic searches: embed the query, rank fragments by
// cosine distance, collapse to one hit per document, then filter and
// paginate.
type Engine struct {
	docs     *document.Store
	index    vectordb.Store
	embedder embeddings.Embedder
	cfg      config.SearchConfig
	logger   *zap.Logger
}

// NewEngine wires a search engine from its collaborators.
func NewEngine(docs *document.Store, index vectordb.Store, embedder embeddings.Embedder, cfg config.SearchConfig, logger *zap.Logger) *Engine {
	return &Engine{
		docs:     docs,
		index:    index,
		embedder: embedder,
		cfg:      cfg,
		logger:   logger,
	}
}

// Search runs one query. Validation failures return a
// *pipeline.ValidationError.
func (e *Engine) Search(ctx context.Context, req Request) (*Response, error) {
	req, err := e.normalize(req)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	vecs, err := e.embedder.Embed(ctx, []string{req.Query}, embeddings.ModeQuery)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	matches, err := e.index.QuerySimilar(ctx, vecs[0], e.cfg.CandidateLimit)
	if err != nil {
		return nil, fmt.Errorf("querying similarity index: %w", err)
	}

	// Matches arrive in ascending distance order, so the first fragment
	// seen for a document is its best one.
	best := make(map[string]vectordb.Match)
	var order []string
	for _, m := range matches {
		if m.Distance > e.cfg.MaxDistance {
			continue
		}
		if _, seen := best[m.DocumentID]; seen {
			continue
		}
		best[m.DocumentID] = m
		order = append(order, m.DocumentID)
	}

	docs, err := e.docs.GetByIDs(ctx, order)
	if err != nil {
		return nil, fmt.Errorf("loading matched documents: %w", err)
	}

	var hits []Hit
	for _, id := range order {
		doc, ok := docs[id]
		if !ok || !e.accept(doc, req) {
			continue
		}
		m := best[id]
		hits = append(hits, Hit{
			Document: doc,
			Fragment: m.Content,
			Position: m.Position,
			Distance: m.Distance,
		})
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Distance < hits[j].Distance })

	total := len(hits)
	totalPages := (total + req.PageSize - 1) / req.PageSize
	lo := (req.Page - 1) * req.PageSize
	hi := lo + req.PageSize
	if lo > total {
		lo = total
	}
	if hi > total {
		hi = total
	}
	page := hits[lo:hi]
	if page == nil {
		page = []Hit{}
	}

	e.logger.Debug("search executed",
		zap.Int("candidates", len(matches)),
		zap.Int("hits", total),
		zap.Duration("elapsed", time.Since(start)))

	return &Response{
		Results:    page,
		Total:      total,
		Page:       req.Page,
		PageSize:   req.PageSize,
		TotalPages: totalPages,
	}, nil
}

func (e *Engine) normalize(req Request) (Request, error) {
	req.Query = strings.TrimSpace(req.Query)
	if n := utf8.RuneCountInString(req.Query); n < e.cfg.MinQueryLen || n > e.cfg.MaxQueryLen {
		return req, &pipeline.ValidationError{
			Field:  "query",
			Reason: fmt.Sprintf("length must be between %d and %d characters", e.cfg.MinQueryLen, e.cfg.MaxQueryLen),
		}
	}
	if req.Page == 0 {
		req.Page = 1
	}
	if req.Page < 1 {
		return req, &pipeline.ValidationError{Field: "page", Reason: "must be at least 1"}
	}
	if req.PageSize == 0 {
		req.PageSize = 10
	}
	if req.PageSize < 1 || req.PageSize > e.cfg.MaxPageSize {
		return req, &pipeline.ValidationError{
			Field:  "page_size",
			Reason: fmt.Sprintf("must be between 1 and %d", e.cfg.MaxPageSize),
		}
	}
	if req.DocType != "" && !document.ValidCategory(req.DocType) {
		return req, &pipeline.ValidationError{Field: "doc_type", Reason: "unknown document type"}
	}
	for field, v := range map[string]string{"date_from": req.DateFrom, "date_to": req.DateTo} {
		if v == "" {
			continue
		}
		if _, err := time.Parse("2006-01-02", v); err != nil {
			return req, &pipeline.ValidationError{Field: field, Reason: "must be YYYY-MM-DD"}
		}
	}
	return req, nil
}

// accept applies the post-ranking filters. Only completed documents are
// searchable; a date filter excludes documents without an extracted date.
func (e *Engine) accept(doc *document.Document, req Request) bool {
	if doc.Status != document.StatusCompleted {
		return false
	}
	if req.DocType != "" {
		if doc.Metadata.DocType == nil || *doc.Metadata.DocType != req.DocType {
			return false
		}
	}
	if req.DateFrom != "" || req.DateTo != "" {
		if doc.Metadata.DocDate == nil {
			return false
		}
		d := *doc.Metadata.DocDate
		if req.DateFrom != "" && d < req.DateFrom {
			return false
		}
		if req.DateTo != "" && d > req.DateTo {
			return false
		}
	}
	return true
}
