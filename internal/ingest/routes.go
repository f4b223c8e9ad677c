package ingest

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/docuvec/docuvec/internal/job"
	"github.com/docuvec/docuvec/internal/pipeline"
)

// RegisterRoutes registers the upload endpoint. The caller mounts it under
// /api/documents alongside the document read routes.
func RegisterRoutes(r chi.Router, coordinator *Coordinator, maxUploadBytes int64) {
	r.Post("/", handleUpload(coordinator, maxUploadBytes))
}

func handleUpload(coordinator *Coordinator, maxUploadBytes int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// One extra byte so an oversized upload is detected here rather
		// than silently truncated.
		r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes+1)
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			http.Error(w, "invalid multipart request", http.StatusBadRequest)
			return
		}

		file, header, err := r.FormFile("file")
		if err != nil {
			http.Error(w, "missing file field", http.StatusBadRequest)
			return
		}
		defer file.Close()

		data, err := io.ReadAll(file)
		if err != nil {
			http.Error(w, "reading upload", http.StatusBadRequest)
			return
		}

		kind := r.FormValue("content_kind")
		if kind == "" {
			kind = detectKind(header.Filename, header.Header.Get("Content-Type"))
		}

		j, err := coordinator.Submit(r.Context(), data, header.Filename, kind, r.FormValue("uploaded_by"))
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
		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(job.StatusResponse{
			JobID:    j.ID,
			Stage:    j.Stage,
			Progress: j.Progress,
		})
	}
}

// detectKind maps the upload's declared content type or file extension to
// one of the accepted kinds. Unknown inputs return an empty string, which
// fails validation downstream.
func detectKind(filename, contentType string) string {
	switch contentType {
	case "application/pdf":
		return "pdf"
	case "image/jpeg":
		return "jpeg"
	}
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return "pdf"
	case ".jpg", ".jpeg":
		return "jpeg"
	}
	return ""
}
