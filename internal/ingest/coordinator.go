// Package ingest accepts document uploads and turns them into durable jobs.
package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/docuvec/docuvec/internal/config"
	"github.com/docuvec/docuvec/internal/document"
	"github.com/docuvec/docuvec/internal/job"
	"github.com/docuvec/docuvec/internal/pipeline"
)

// Enqueuer hands accepted jobs to the worker pool.
type Enqueuer interface {
	Enqueue(j *job.Job)
}

// Coordinator validates an upload, spools it to disk, records the document
// and job rows, and enqueues the job. Once Submit returns, the upload
// survives a crash: the spool file and both rows are durable, and startup
// recovery re-enqueues anything non-terminal.
type Coordinator struct {
	docs     *document.Store
	jobs     *job.Store
	queue    Enqueuer
	spoolDir string
	cfg      config.PipelineConfig
	logger   *zap.Logger
}

// NewCoordinator creates a coordinator spooling uploads under dataDir.
func NewCoordinator(docs *document.Store, jobs *job.Store, queue Enqueuer, dataDir string, cfg config.PipelineConfig, logger *zap.Logger) (*Coordinator, error) {
	spoolDir := filepath.Join(dataDir, "spool")
	if err := os.MkdirAll(spoolDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating spool directory: %w", err)
	}
	return &Coordinator{
		docs:     docs,
		jobs:     jobs,
		queue:    queue,
		spoolDir: spoolDir,
		cfg:      cfg,
		logger:   logger,
	}, nil
}

// Submit accepts one upload and returns the queued job. Validation failures
// return a *pipeline.ValidationError and leave no trace.
func (c *Coordinator) Submit(ctx context.Context, data []byte, filename, contentKind, uploadedBy string) (*job.Job, error) {
	if err := c.validate(data, filename, contentKind); err != nil {
		return nil, err
	}

	docID := uuid.NewString()
	tempPath := filepath.Join(c.spoolDir, docID)
	if err := os.WriteFile(tempPath, data, 0o644); err != nil {
		return nil, fmt.Errorf("spooling upload: %w", err)
	}

	doc := &document.Document{
		ID:          docID,
		Filename:    filename,
		ContentKind: document.ContentKind(contentKind),
		SizeBytes:   int64(len(data)),
		Status:      document.StatusQueued,
	}
	if uploadedBy != "" {
		doc.UploadedBy = &uploadedBy
	}
	if err := c.docs.Create(ctx, doc); err != nil {
		os.Remove(tempPath)
		return nil, fmt.Errorf("creating document record: %w", err)
	}

	j := &job.Job{
		DocumentID:  docID,
		TempPath:    tempPath,
		Filename:    filename,
		ContentKind: contentKind,
	}
	if err := c.jobs.Create(ctx, j); err != nil {
		os.Remove(tempPath)
		return nil, fmt.Errorf("creating job record: %w", err)
	}

	c.queue.Enqueue(j)
	c.logger.Info("document accepted",
		zap.String("job_id", j.ID),
		zap.String("document_id", docID),
		zap.String("filename", filename),
		zap.String("content_kind", contentKind),
		zap.Int("size_bytes", len(data)))
	return j, nil
}

func (c *Coordinator) validate(data []byte, filename, contentKind string) error {
	if filename == "" {
		return &pipeline.ValidationError{Field: "filename", Reason: "must not be empty"}
	}
	switch document.ContentKind(contentKind) {
	case document.KindPDF, document.KindJPEG:
	default:
		return &pipeline.ValidationError{Field: "content_kind", Reason: "must be pdf or jpeg"}
	}
	if len(data) == 0 {
		return &pipeline.ValidationError{Field: "file", Reason: "must not be empty"}
	}
	if int64(len(data)) > c.cfg.MaxUploadBytes {
		return &pipeline.ValidationError{
			Field:  "file",
			Reason: fmt.Sprintf("exceeds maximum size of %d bytes", c.cfg.MaxUploadBytes),
		}
	}
	return nil
}
