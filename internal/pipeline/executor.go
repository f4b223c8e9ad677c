// Package pipeline drives documents through the ingestion stages and owns
// the whole-job retry loop.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/docuvec/docuvec/internal/ai"
	"github.com/docuvec/docuvec/internal/audit"
	"github.com/docuvec/docuvec/internal/config"
	"github.com/docuvec/docuvec/internal/document"
	"github.com/docuvec/docuvec/internal/embeddings"
	"github.com/docuvec/docuvec/internal/job"
	"github.com/docuvec/docuvec/internal/ocr"
	"github.com/docuvec/docuvec/internal/storage"
	"github.com/docuvec/docuvec/internal/textproc"
	"github.com/docuvec/docuvec/internal/vectordb"
)

// Executor runs one job at a time through every stage. A job is owned by a
// single executor invocation for its whole lifetime, including backoff
// sleeps between attempts, so stage updates for one job never race.
type Executor struct {
	jobs     *job.Store
	docs     *document.Store
	objects  storage.ObjectStore
	ocr      ocr.Extractor
	metadata ai.MetadataExtractor
	embedder embeddings.Embedder
	index    vectordb.Store
	audit    *audit.Store
	cfg      config.PipelineConfig
	logger   *zap.Logger

	// sleep is replaceable in tests so retries don't take minutes.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewExecutor wires an executor from its collaborators.
func NewExecutor(
	jobs *job.Store,
	docs *document.Store,
	objects storage.ObjectStore,
	extractor ocr.Extractor,
	metadata ai.MetadataExtractor,
	embedder embeddings.Embedder,
	index vectordb.Store,
	auditStore *audit.Store,
	cfg config.PipelineConfig,
	logger *zap.Logger,
) *Executor {
	return &Executor{
		jobs:     jobs,
		docs:     docs,
		objects:  objects,
		ocr:      extractor,
		metadata: metadata,
		embedder: embedder,
		index:    index,
		audit:    auditStore,
		cfg:      cfg,
		logger:   logger,
		sleep:    sleepContext,
	}
}

// Run executes the job until it reaches a terminal stage. Attempts restart
// the pipeline from the beginning; every stage is idempotent, so a partial
// attempt leaves nothing that a later attempt cannot overwrite.
func (e *Executor) Run(ctx context.Context, j *job.Job) {
	log := e.logger.With(
		zap.String("job_id", j.ID),
		zap.String("document_id", j.DocumentID),
	)

	// Attempts already burned before a restart still count.
	attempt := j.RetryCount + 1
	for ; attempt <= e.cfg.MaxAttempts; attempt++ {
		start := time.Now()
		err := e.runAttempt(ctx, j, log.With(zap.Int("attempt", attempt)))
		if err == nil {
			log.Info("job completed",
				zap.Int("attempt", attempt),
				zap.Duration("elapsed", time.Since(start)))
			e.cleanupTemp(j, log)
			return
		}

		if ctx.Err() != nil {
			// Shutdown, not failure. The job stays non-terminal and is
			// recovered on the next start.
			log.Warn("job interrupted by shutdown", zap.Error(err))
			return
		}

		log.Warn("attempt failed",
			zap.Int("attempt", attempt),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))

		if attempt == e.cfg.MaxAttempts {
			e.fail(ctx, j, &ExhaustedRetriesError{Attempts: attempt, LastErr: err}, log)
			return
		}

		if rerr := e.jobs.IncrementRetry(ctx, j.ID); rerr != nil {
			log.Error("recording retry", zap.Error(rerr))
		}
		j.RetryCount++

		delay := e.backoff(attempt)
		log.Info("retrying job", zap.Duration("delay", delay))
		if serr := e.sleep(ctx, delay); serr != nil {
			log.Warn("job interrupted during backoff")
			return
		}
	}
}

// backoff returns the delay after the nth failed attempt, following the
// configured schedule (60s, 300s, 900s by default). The last entry repeats
// when there are more attempts than entries.
func (e *Executor) backoff(attempt int) time.Duration {
	delays := e.cfg.RetryDelaysSeconds
	if len(delays) == 0 {
		return 0
	}
	i := attempt - 1
	if i >= len(delays) {
		i = len(delays) - 1
	}
	return time.Duration(delays[i]) * time.Second
}

func (e *Executor) runAttempt(ctx context.Context, j *job.Job, log *zap.Logger) error {
	data, err := os.ReadFile(j.TempPath)
	if err != nil {
		return &PersistenceError{Err: fmt.Errorf("reading spooled upload: %w", err)}
	}

	// Storing.
	stageStart := e.enterStage(ctx, j, job.StageStoring, log)
	if err := e.docs.SetProcessing(ctx, j.DocumentID); err != nil {
		return &PersistenceError{Err: err}
	}
	objectKey, storageURL, err := e.objects.Put(ctx, data, j.Filename, j.ContentKind)
	if err != nil {
		return &AdapterError{Stage: job.StageStoring, Err: err}
	}
	e.leaveStage(job.StageStoring, stageStart, log)

	// Extracting text.
	stageStart = e.enterStage(ctx, j, job.StageExtractingText, log)
	result, err := e.ocr.ExtractText(ctx, data, j.ContentKind)
	if err != nil {
		return &AdapterError{Stage: job.StageExtractingText, Err: err}
	}
	if n := len(strings.TrimSpace(result.Text)); n < e.cfg.MinTextLength {
		return &InsufficientContentError{Length: n, Minimum: e.cfg.MinTextLength}
	}
	e.leaveStage(job.StageExtractingText, stageStart, log)

	// Cleaning.
	stageStart = e.enterStage(ctx, j, job.StageCleaning, log)
	cleaned := textproc.Clean(result.Text)
	if n := len(strings.TrimSpace(cleaned)); n < e.cfg.MinTextLength {
		return &InsufficientContentError{Length: n, Minimum: e.cfg.MinTextLength}
	}
	e.leaveStage(job.StageCleaning, stageStart, log)

	// Chunking.
	stageStart = e.enterStage(ctx, j, job.StageChunking, log)
	chunks := textproc.Split(cleaned, e.cfg.ChunkSize, e.cfg.ChunkOverlap)
	if len(chunks) == 0 {
		return &InsufficientContentError{Length: 0, Minimum: e.cfg.MinTextLength}
	}
	e.leaveStage(job.StageChunking, stageStart, log, zap.Int("chunks", len(chunks)))

	// Extracting metadata.
	stageStart = e.enterStage(ctx, j, job.StageExtractingMetadata, log)
	prefix := runePrefix(cleaned, e.cfg.MetadataPrefixChars)
	md, err := e.metadata.ExtractMetadata(ctx, prefix)
	if err != nil {
		return &AdapterError{Stage: job.StageExtractingMetadata, Err: err}
	}
	e.leaveStage(job.StageExtractingMetadata, stageStart, log)

	// Embedding. One call per fragment so progress moves fragment by
	// fragment through the 60..90 band; persisting has its own watermark.
	stageStart = e.enterStage(ctx, j, job.StageEmbedding, log)
	fragments := make([]document.Fragment, 0, len(chunks))
	embedLow := job.StageEmbedding.Watermark()
	embedSpan := job.EmbeddingCeiling - embedLow
	for i, chunk := range chunks {
		vecs, err := e.embedder.Embed(ctx, []string{chunk.Text}, embeddings.ModeIndex)
		if err != nil {
			return &AdapterError{Stage: job.StageEmbedding, Err: err}
		}
		fragments = append(fragments, document.Fragment{
			ID:         uuid.NewString(),
			DocumentID: j.DocumentID,
			Content:    chunk.Text,
			Position:   chunk.Position,
			Embedding:  vecs[0],
		})

		progress := embedLow + (i+1)*embedSpan/len(chunks)
		if err := e.jobs.SetProgress(ctx, j.ID, job.StageEmbedding, progress); err != nil {
			log.Error("recording embedding progress", zap.Error(err))
		}
	}
	e.leaveStage(job.StageEmbedding, stageStart, log, zap.Int("fragments", len(fragments)))

	// Persisting. The relational write is one transaction; the similarity
	// index is rebuilt for the document afterwards, so a crash in between
	// is repaired by the next attempt or by reindexing at startup.
	stageStart = e.enterStage(ctx, j, job.StagePersisting, log)
	if err := e.docs.PersistCompleted(ctx, j.DocumentID, storageURL, objectKey, result.NumPages, md, fragments); err != nil {
		return &PersistenceError{Err: err}
	}
	if err := e.index.DeleteByDocument(ctx, j.DocumentID); err != nil {
		return &PersistenceError{Err: err}
	}
	if err := e.index.AddFragments(ctx, fragments); err != nil {
		return &PersistenceError{Err: err}
	}
	e.leaveStage(job.StagePersisting, stageStart, log)

	doc, err := e.docs.Get(ctx, j.DocumentID)
	if err == nil {
		actor := ""
		if doc.UploadedBy != nil {
			actor = *doc.UploadedBy
		}
		if aerr := e.audit.Record(ctx, j.DocumentID, audit.ActionCreate, nil, doc, actor); aerr != nil {
			log.Error("recording audit entry", zap.Error(aerr))
		}
	}

	if err := e.jobs.Complete(ctx, j.ID); err != nil {
		return &PersistenceError{Err: err}
	}
	return nil
}

func (e *Executor) enterStage(ctx context.Context, j *job.Job, stage job.Stage, log *zap.Logger) time.Time {
	if err := e.jobs.SetStage(ctx, j.ID, stage); err != nil {
		log.Error("recording stage transition", zap.String("stage", string(stage)), zap.Error(err))
	}
	return time.Now()
}

func (e *Executor) leaveStage(stage job.Stage, start time.Time, log *zap.Logger, extra ...zap.Field) {
	fields := append([]zap.Field{
		zap.String("stage", string(stage)),
		zap.Duration("elapsed", time.Since(start)),
	}, extra...)
	log.Debug("stage done", fields...)
}

// fail moves both the job and its document to their terminal error
// states and releases the spooled upload.
func (e *Executor) fail(ctx context.Context, j *job.Job, terminal error, log *zap.Logger) {
	log.Error("job failed permanently", zap.Error(terminal))
	if err := e.jobs.Fail(ctx, j.ID, terminal.Error()); err != nil {
		log.Error("recording terminal job failure", zap.Error(err))
	}
	if err := e.docs.MarkError(ctx, j.DocumentID, terminal.Error()); err != nil {
		log.Error("recording document error", zap.Error(err))
	}
	e.cleanupTemp(j, log)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// runePrefix returns the first n runes of s.
func runePrefix(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

func (e *Executor) cleanupTemp(j *job.Job, log *zap.Logger) {
	if j.TempPath == "" {
		return
	}
	if err := os.Remove(j.TempPath); err != nil && !os.IsNotExist(err) {
		log.Warn("removing spooled upload", zap.String("path", j.TempPath), zap.Error(err))
	}
}
