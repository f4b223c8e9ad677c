package search

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/docuvec/docuvec/internal/pipeline"
)

// RegisterRoutes mounts the search endpoint under /api/search.
func RegisterRoutes(r chi.Router, engine *Engine) {
	r.Route("/api/search", func(r chi.Router) {
		r.Post("/", handleSearch(engine))
	})
}

func handleSearch(engine *Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid JSON body", http.StatusBadRequest)
			return
		}

		resp, err := engine.Search(r.Context(), req)
		var verr *pipeline.ValidationError
		if errors.As(err, &verr) {
			http.Error(w, verr.Error(), http.StatusBadRequest)
			return
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}
}
