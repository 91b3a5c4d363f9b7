package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/hibiken/asynq"

	"github.com/chatkb/backend/internal/chat"
	"github.com/chatkb/backend/internal/config"
	"github.com/chatkb/backend/internal/database"
	"github.com/chatkb/backend/internal/embedding"
	"github.com/chatkb/backend/internal/llm"
	"github.com/chatkb/backend/internal/queue"
	"github.com/chatkb/backend/internal/queue/workers"
	"github.com/chatkb/backend/internal/rag"
	"github.com/chatkb/backend/internal/store"
	"github.com/chatkb/backend/internal/vectorstore"
	"github.com/chatkb/backend/pkg/chunker"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	db, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		slog.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	gw := llm.NewGateway(cfg.LLM)

	vs := vectorstore.NewPgVectorStore(db)
	documents := store.NewDocumentStore(db, vs)
	threads := store.NewThreadStore(db)

	embedSvc := embedding.NewService(gw, cfg.LLM.EmbeddingModel, cfg.LLM.EmbeddingDim)
	ingester := rag.NewIngester(embedSvc, documents, chunker.Options{
		ChunkSize:    cfg.RAG.ChunkSize,
		ChunkOverlap: cfg.RAG.ChunkOverlap,
	}, logger)
	namer := chat.NewNamer(gw, cfg.LLM.NamingModel)

	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				"default": 1,
			},
		},
	)

	registry := queue.NewHandlersRegistry()

	ingestWorker := workers.NewIngestWorker(ingester, logger)
	namingWorker := workers.NewNamingWorker(namer, threads, logger)

	registry.Register(queue.TypeDocumentIngest, asynq.HandlerFunc(ingestWorker.ProcessTask))
	registry.Register(queue.TypeThreadName, asynq.HandlerFunc(namingWorker.ProcessTask))

	slog.Info("starting worker", "concurrency", 10)
	if err := srv.Run(registry.Mux()); err != nil {
		slog.Error("worker error", "error", err)
		os.Exit(1)
	}
}
