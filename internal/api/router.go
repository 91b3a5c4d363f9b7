package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/chatkb/backend/internal/api/handlers"
	"github.com/chatkb/backend/internal/api/middleware"
	"github.com/chatkb/backend/internal/auth"
	"github.com/chatkb/backend/internal/chat"
	"github.com/chatkb/backend/internal/config"
	"github.com/chatkb/backend/internal/embedding"
	"github.com/chatkb/backend/internal/llm"
	"github.com/chatkb/backend/internal/queue"
	"github.com/chatkb/backend/internal/rag"
	"github.com/chatkb/backend/internal/stash"
	"github.com/chatkb/backend/internal/store"
	"github.com/chatkb/backend/internal/usage"
	"github.com/chatkb/backend/internal/vectorstore"
	"github.com/chatkb/backend/pkg/chunker"
)

type Router struct {
	mux   *chi.Mux
	db    *pgxpool.Pool
	redis *redis.Client
	cfg   *config.Config
	jwt   *auth.JWTMiddleware
	llmGW llm.Gateway
}

func NewRouter(db *pgxpool.Pool, rdb *redis.Client, cfg *config.Config) *Router {
	return &Router{
		mux:   chi.NewRouter(),
		db:    db,
		redis: rdb,
		cfg:   cfg,
		jwt:   auth.NewJWTMiddleware(cfg.Auth.JWTSecret, handlers.WriteError),
		llmGW: llm.NewGateway(cfg.LLM),
	}
}

func (rt *Router) Setup() http.Handler {
	r := rt.mux

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS([]string{"*"}))

	// Health endpoints (no auth)
	health := handlers.NewHealthHandler(rt.db, rt.redis)
	r.Get("/healthz", health.Healthz)
	r.Get("/readyz", health.Readyz)

	// Wire the services
	vs := vectorstore.NewPgVectorStore(rt.db)
	threads := store.NewThreadStore(rt.db)
	messages := store.NewMessageStore(rt.db)
	documents := store.NewDocumentStore(rt.db, vs)

	embedSvc := embedding.NewService(rt.llmGW, rt.cfg.LLM.EmbeddingModel, rt.cfg.LLM.EmbeddingDim)
	retriever := rag.NewRetriever(vs, embedSvc, rt.cfg.RAG.TopK, rt.cfg.RAG.SimilarityThreshold)
	ingester := rag.NewIngester(embedSvc, documents, chunker.Options{
		ChunkSize:    rt.cfg.RAG.ChunkSize,
		ChunkOverlap: rt.cfg.RAG.ChunkOverlap,
	}, nil)

	toolset := chat.NewToolset(retriever, ingester, nil)
	orchestrator := chat.NewOrchestrator(rt.llmGW, messages, toolset, rt.cfg.LLM.ChatModel, rt.cfg.RAG.MaxToolRoundtrips, nil)
	formatter := chat.NewFormatter(rt.llmGW, rt.cfg.LLM.NamingModel)

	queueClient := queue.NewClient(rt.cfg.Redis)
	pendingStash := stash.New(rt.redis, 0)
	usageSvc := usage.NewService(rt.redis, rt.cfg.Usage.DailyLimit)

	threadH := handlers.NewThreadHandler(threads, messages)
	docH := handlers.NewDocumentHandler(documents, ingester, queueClient, formatter, rt.cfg.Upload.MaxFileSizeBytes)
	chatH := handlers.NewChatHandler(orchestrator, threads, messages, usageSvc, pendingStash, queueClient)
	searchH := handlers.NewSearchHandler(retriever)
	stashH := handlers.NewStashHandler(pendingStash)

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(rt.jwt.Authenticate)

		rl := middleware.NewRateLimiter(100, 200)
		r.Use(rl.Limit)

		r.Route("/threads", func(r chi.Router) {
			r.Post("/", threadH.Create)
			r.Get("/", threadH.List)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", threadH.Get)
				r.Patch("/", threadH.Rename)
				r.Delete("/", threadH.Delete)
				r.Get("/messages", threadH.Messages)
				r.Post("/chat", chatH.Send)
				r.Post("/search", searchH.Search)

				r.Post("/documents", docH.Create)
				r.Post("/documents/upload", docH.Upload)
				r.Get("/documents", docH.ListByThread)

				r.Put("/pending-message", stashH.Save)
				r.Get("/pending-message", stashH.Get)
				r.Delete("/pending-message", stashH.Delete)
			})
		})

		r.Route("/documents", func(r chi.Router) {
			r.Get("/{id}", docH.Get)
			r.Delete("/{id}", docH.Delete)
		})

		r.Get("/usage", chatH.Usage)
	})

	return r
}
