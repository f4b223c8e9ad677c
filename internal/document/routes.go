package document

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"

	"github.com/docuvec/docuvec/internal/audit"
)

// Deindexer removes a document's fragments from the similarity index.
type Deindexer interface {
	DeleteByDocument(ctx context.Context, documentID string) error
}

// ObjectRemover opens and deletes raw stored objects.
type ObjectRemover interface {
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// RegisterRoutes registers document read, update, delete and download
// endpoints. The caller mounts them under /api/documents; the upload
// endpoint is registered separately by the ingest package.
func RegisterRoutes(r chi.Router, store *Store, auditStore *audit.Store, index Deindexer, objects ObjectRemover) {
	r.Get("/", handleList(store))
	r.Get("/{id}", handleGet(store))
	r.Patch("/{id}", handleUpdateMetadata(store, auditStore))
	r.Delete("/{id}", handleDelete(store, auditStore, index, objects))
	r.Get("/{id}/download", handleDownload(store, objects))
}

func handleList(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter := ListFilter{Limit: 20}
		q := r.URL.Query()

		if s := q.Get("status"); s != "" {
			status := Status(s)
			switch status {
			case StatusQueued, StatusProcessing, StatusCompleted, StatusError:
				filter.Status = status
			default:
				http.Error(w, "invalid status filter", http.StatusBadRequest)
				return
			}
		}
		if t := q.Get("doc_type"); t != "" {
			if !ValidCategory(t) {
				http.Error(w, "unknown document type", http.StatusBadRequest)
				return
			}
			filter.DocType = t
		}
		for _, p := range []struct {
			name string
			dst  *string
		}{{"date_from", &filter.DateFrom}, {"date_to", &filter.DateTo}} {
			v := q.Get(p.name)
			if v == "" {
				continue
			}
			if _, err := time.Parse("2006-01-02", v); err != nil {
				http.Error(w, "invalid "+p.name+", must be YYYY-MM-DD", http.StatusBadRequest)
				return
			}
			*p.dst = v
		}
		if l := q.Get("limit"); l != "" {
			n, err := strconv.Atoi(l)
			if err != nil || n < 1 || n > 100 {
				http.Error(w, "invalid limit", http.StatusBadRequest)
				return
			}
			filter.Limit = n
		}
		if o := q.Get("offset"); o != "" {
			n, err := strconv.Atoi(o)
			if err != nil || n < 0 {
				http.Error(w, "invalid offset", http.StatusBadRequest)
				return
			}
			filter.Offset = n
		}

		docs, total, err := store.List(r.Context(), filter)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if docs == nil {
			docs = []*Document{}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"documents": docs,
			"total":     total,
		})
	}
}

func handleGet(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doc, err := store.Get(r.Context(), chi.URLParam(r, "id"))
		if errors.Is(err, sql.ErrNoRows) {
			http.Error(w, "document not found", http.StatusNotFound)
			return
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(doc)
	}
}

// metadataPatch carries the editable fields. Pointers distinguish "not
// sent" from "clear this field".
type metadataPatch struct {
	DocType  *string   `json:"doc_type"`
	Topic    *string   `json:"topic"`
	DocDate  *string   `json:"doc_date"`
	Entities *[]string `json:"entities"`
	Summary  *string   `json:"summary"`
	Actor    string    `json:"actor,omitempty"`
}

func handleUpdateMetadata(store *Store, auditStore *audit.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		var patch metadataPatch
		if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
			http.Error(w, "invalid JSON body", http.StatusBadRequest)
			return
		}

		current, err := store.Get(r.Context(), id)
		if errors.Is(err, sql.ErrNoRows) {
			http.Error(w, "document not found", http.StatusNotFound)
			return
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		md := current.Metadata
		if patch.DocType != nil {
			if *patch.DocType != "" && !ValidCategory(*patch.DocType) {
				http.Error(w, "unknown document type", http.StatusBadRequest)
				return
			}
			md.DocType = emptyToNil(patch.DocType)
		}
		if patch.Topic != nil {
			if utf8.RuneCountInString(*patch.Topic) > 200 {
				http.Error(w, "topic too long, maximum 200 characters", http.StatusBadRequest)
				return
			}
			md.Topic = emptyToNil(patch.Topic)
		}
		if patch.DocDate != nil {
			if *patch.DocDate != "" {
				if _, err := time.Parse("2006-01-02", *patch.DocDate); err != nil {
					http.Error(w, "invalid doc_date, must be YYYY-MM-DD", http.StatusBadRequest)
					return
				}
			}
			md.DocDate = emptyToNil(patch.DocDate)
		}
		if patch.Entities != nil {
			if len(*patch.Entities) > 10 {
				http.Error(w, "too many entities, maximum 10", http.StatusBadRequest)
				return
			}
			md.Entities = *patch.Entities
		}
		if patch.Summary != nil {
			if utf8.RuneCountInString(*patch.Summary) > 500 {
				http.Error(w, "summary too long, maximum 500 characters", http.StatusBadRequest)
				return
			}
			md.Summary = emptyToNil(patch.Summary)
		}

		old, err := store.UpdateMetadata(r.Context(), id, md)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		updated, err := store.Get(r.Context(), id)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		if err := auditStore.Record(r.Context(), id, audit.ActionUpdate, old, updated, patch.Actor); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(updated)
	}
}

func handleDelete(store *Store, auditStore *audit.Store, index Deindexer, objects ObjectRemover) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		doc, err := store.Get(r.Context(), id)
		if errors.Is(err, sql.ErrNoRows) {
			http.Error(w, "document not found", http.StatusNotFound)
			return
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		// Row first: fragments cascade with it. Index and object cleanup
		// follow; a failure there leaves only unreferenced leftovers.
		if err := store.Delete(r.Context(), id); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if err := index.DeleteByDocument(r.Context(), id); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if doc.ObjectKey != "" {
			if err := objects.Delete(r.Context(), doc.ObjectKey); err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
		}

		if err := auditStore.Record(r.Context(), id, audit.ActionDelete, doc, nil, r.URL.Query().Get("actor")); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func handleDownload(store *Store, objects ObjectRemover) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doc, err := store.Get(r.Context(), chi.URLParam(r, "id"))
		if errors.Is(err, sql.ErrNoRows) {
			http.Error(w, "document not found", http.StatusNotFound)
			return
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if doc.ObjectKey == "" {
			http.Error(w, "document has no stored file yet", http.StatusConflict)
			return
		}

		rc, err := objects.Open(r.Context(), doc.ObjectKey)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		defer rc.Close()

		switch doc.ContentKind {
		case KindPDF:
			w.Header().Set("Content-Type", "application/pdf")
		case KindJPEG:
			w.Header().Set("Content-Type", "image/jpeg")
		}
		w.Header().Set("Content-Disposition", `attachment; filename="`+doc.Filename+`"`)
		io.Copy(w, rc)
	}
}

func emptyToNil(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	return s
}
