package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/docuvec/docuvec/internal/ai"
	"github.com/docuvec/docuvec/internal/audit"
	"github.com/docuvec/docuvec/internal/config"
	"github.com/docuvec/docuvec/internal/db"
	"github.com/docuvec/docuvec/internal/document"
	"github.com/docuvec/docuvec/internal/embeddings"
	"github.com/docuvec/docuvec/internal/ingest"
	"github.com/docuvec/docuvec/internal/job"
	"github.com/docuvec/docuvec/internal/llm"
	"github.com/docuvec/docuvec/internal/logging"
	"github.com/docuvec/docuvec/internal/ocr"
	"github.com/docuvec/docuvec/internal/pipeline"
	"github.com/docuvec/docuvec/internal/search"
	"github.com/docuvec/docuvec/internal/server"
	"github.com/docuvec/docuvec/internal/storage"
	"github.com/docuvec/docuvec/internal/vectordb"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the docuvec ingestion and search server",
	Long:  `Starts the HTTP server, recovers any jobs interrupted by a previous shutdown, and begins processing uploads.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if verbose {
			cfg.Log.Level = "debug"
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}

		logger, err := logging.New(cfg.Log.Level, cfg.Log.Dev)
		if err != nil {
			return fmt.Errorf("creating logger: %w", err)
		}
		defer logger.Sync()

		// Open database.
		database, err := db.Open(filepath.Join(cfg.DataDir, "docuvec.db"))
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer database.Close()

		docStore := document.NewStore(database)
		jobStore := job.NewStore(database)
		auditStore := audit.NewStore(database)

		objects, err := storage.NewFilesystemStore(cfg.Storage.Root, cfg.Server.BaseURL)
		if err != nil {
			return fmt.Errorf("creating object store: %w", err)
		}

		// AI adapters.
		provider, err := llm.NewProvider(cfg.AI)
		if err != nil {
			return fmt.Errorf("creating AI provider: %w", err)
		}
		embedder, err := embeddings.NewEmbedder(cfg.AI)
		if err != nil {
			return fmt.Errorf("creating embedder: %w", err)
		}
		extractor := ai.NewLLMExtractor(provider, cfg.AI.Model)
		ocrEngine := ocr.NewHTTPExtractor(cfg.OCR.Endpoint, cfg.OCR.Language)

		// Create and load vector store.
		index, err := vectordb.NewChromemStore(embedder)
		if err != nil {
			return fmt.Errorf("creating vector store: %w", err)
		}
		vectorDir := filepath.Join(cfg.DataDir, "vectordb")
		if err := index.Load(cmd.Context(), vectorDir); err != nil {
			logger.Warn("could not load vector index, starting empty",
				zap.String("dir", vectorDir), zap.Error(err))
		}

		if err := pipeline.ReindexCompleted(cmd.Context(), docStore, index, logger); err != nil {
			return fmt.Errorf("reconciling vector index: %w", err)
		}

		// Pipeline.
		executor := pipeline.NewExecutor(jobStore, docStore, objects, ocrEngine,
			extractor, embedder, index, auditStore, cfg.Pipeline, logger)
		queue, err := pipeline.NewQueue(executor, jobStore, cfg.Pipeline.Workers, logger)
		if err != nil {
			return fmt.Errorf("creating worker pool: %w", err)
		}
		queue.Start()

		coordinator, err := ingest.NewCoordinator(docStore, jobStore, queue, cfg.DataDir, cfg.Pipeline, logger)
		if err != nil {
			return fmt.Errorf("creating ingest coordinator: %w", err)
		}
		engine := search.NewEngine(docStore, index, embedder, cfg.Search, logger)

		// Re-enqueue jobs that were in flight when the previous process
		// stopped, before accepting new uploads.
		if err := queue.Recover(cmd.Context()); err != nil {
			return fmt.Errorf("recovering pending jobs: %w", err)
		}

		srv := server.New(*cfg, server.Deps{
			Documents:   docStore,
			Jobs:        jobStore,
			Audit:       auditStore,
			Coordinator: coordinator,
			Engine:      engine,
			Index:       index,
			Objects:     objects,
		}, logger)

		// Graceful shutdown.
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		go func() {
			<-ctx.Done()
			logger.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()

		logger.Info("docuvec starting",
			zap.String("version", Version),
			zap.Int("port", cfg.Server.Port),
			zap.Int("workers", cfg.Pipeline.Workers),
			zap.Int("fragments_indexed", index.Count()))

		err = srv.Start()

		// Let in-flight jobs observe cancellation, then save the index.
		queue.Close()
		if perr := index.Persist(context.Background(), vectorDir); perr != nil {
			logger.Error("persisting vector index", zap.Error(perr))
		}

		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
