package job

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RegisterRoutes mounts job status endpoints under /api/jobs.
func RegisterRoutes(r chi.Router, store *Store) {
	r.Route("/api/jobs", func(r chi.Router) {
		r.Get("/{id}", handleStatus(store))
	})
}

func handleStatus(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		j, err := store.Get(r.Context(), id)
		if errors.Is(err, ErrNotFound) {
			http.Error(w, "job not found", http.StatusNotFound)
			return
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		resp := StatusResponse{
			JobID:        j.ID,
			Stage:        j.Stage,
			Progress:     j.Progress,
			ErrorSummary: j.ErrorSummary,
			RetryCount:   j.RetryCount,
		}
		// The document id is only surfaced once the pipeline has produced a
		// usable record.
		if j.Stage != StageQueued {
			resp.DocumentID = j.DocumentID
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}
}
