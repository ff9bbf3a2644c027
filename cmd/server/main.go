// Command server wires the query pipeline together and serves the HTTP API.
// All process-wide singletons (vector index, embedding client, generation
// client) are constructed exactly once here and injected downward.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"forumrag/internal/adapters/embedding"
	"forumrag/internal/adapters/filewatcher"
	"forumrag/internal/adapters/llm"
	"forumrag/internal/adapters/loader"
	"forumrag/internal/adapters/vectordb"
	"forumrag/internal/config"
	"forumrag/internal/domain/ports"
	"forumrag/internal/domain/usecases"
	httpserver "forumrag/internal/infrastructure/http"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "server: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.Logging.Level)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Process-wide singletons, initialized eagerly so a dimension or
	// backend misconfiguration fails at startup, not on first request.
	index, err := vectordb.New(cfg.VectorStore.Type, cfg.VectorStore.Path, cfg.Embedding.Dimension)
	if err != nil {
		return err
	}

	embedder := embedding.NewClient(
		cfg.Embedding.BaseURL,
		cfg.Embedding.APIKey,
		cfg.Embedding.Model,
		cfg.Embedding.Dimension,
		time.Duration(cfg.Embedding.TimeoutSecs)*time.Second,
		logger,
	)

	generator := llm.NewClient(
		cfg.LLM.BaseURL,
		cfg.LLM.APIKey,
		cfg.LLM.Model,
		time.Duration(cfg.LLM.TimeoutSecs)*time.Second,
		logger,
	)

	retriever := usecases.NewRetriever(index, cfg.Retrieval.MinSimilarity, logger)
	prompts := usecases.NewPromptBuilder(cfg.Prompt.Instructions, cfg.Prompt.MaxChars)
	engine := usecases.NewQueryEngine(
		embedder, retriever, prompts, generator,
		cfg.LLM.MaxTokens, cfg.LLM.Temperature, logger,
	)

	if cfg.Ingest.WatchDir != "" {
		ingest := usecases.NewIngestUseCase(embedder, index, cfg.Ingest.ChunkSize, cfg.Ingest.ChunkOverlap, logger)
		topics := loader.NewDiscourseLoader(cfg.Ingest.ForumBaseURL)
		if err := startIngestion(ctx, cfg.Ingest.WatchDir, ingest, topics, logger); err != nil {
			return err
		}
	}

	server := httpserver.NewServer(engine, cfg.Server.Addr, cfg.LLM.MaxTokens, cfg.LLM.Temperature, logger)
	return server.Start(ctx)
}

// startIngestion ingests export files already present in the drop
// directory, then watches it for new ones.
func startIngestion(
	ctx context.Context,
	dir string,
	ingest *usecases.IngestUseCase,
	topics ports.TopicLoader,
	logger *zap.Logger,
) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating ingest directory: %w", err)
	}

	ingestFile := func(path string) {
		loaded, err := topics.Load(ctx, path)
		if err != nil {
			logger.Error("loading export file", zap.String("path", path), zap.Error(err))
			return
		}
		n, err := ingest.IngestTopics(ctx, loaded)
		if err != nil {
			logger.Error("ingesting export file", zap.String("path", path), zap.Error(err))
			return
		}
		logger.Info("export file ingested", zap.String("path", path), zap.Int("chunks", n))
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("reading ingest directory: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		ingestFile(filepath.Join(dir, entry.Name()))
	}

	watcher, err := filewatcher.NewFSNotifyWatcher([]string{".json"}, logger)
	if err != nil {
		return fmt.Errorf("creating file watcher: %w", err)
	}
	events, err := watcher.Watch(ctx, dir)
	if err != nil {
		return fmt.Errorf("watching ingest directory: %w", err)
	}

	go func() {
		defer watcher.Stop()
		for event := range events {
			if event.Operation == ports.FileDeleted {
				continue
			}
			ingestFile(event.Path)
		}
	}()

	return nil
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}
