// Package main 检索增强问答服务入口
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"veille-rag-api/internal/application/rag"
	"veille-rag-api/internal/application/search"
	"veille-rag-api/internal/config"
	"veille-rag-api/internal/infrastructure/audit"
	"veille-rag-api/internal/infrastructure/embedding"
	"veille-rag-api/internal/infrastructure/llm"
	"veille-rag-api/internal/infrastructure/persistence/postgres"
	"veille-rag-api/internal/infrastructure/persistence/redis"
	"veille-rag-api/internal/infrastructure/reranker"
	"veille-rag-api/internal/infrastructure/vectorindex"
	"veille-rag-api/internal/interfaces/http/handler"
	"veille-rag-api/internal/interfaces/http/router"
	einoobs "veille-rag-api/internal/observability/eino"
	"veille-rag-api/pkg/logger"
	"veille-rag-api/pkg/metrics"
	"veille-rag-api/pkg/tracer"
)

// Version 版本信息，构建时注入
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// 加载 .env 文件（如果存在）
	_ = godotenv.Load()

	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 初始化日志
	logger.Init(
		cfg.Observability.Logging.Level,
		cfg.Observability.Logging.Format,
	)

	ctx := context.Background()
	log := logger.FromContext(ctx)
	log.Info("starting rag-svc",
		"version", Version,
		"build_time", BuildTime,
		"env", cfg.App.Env,
	)

	// 初始化追踪
	shutdownTracer, err := tracer.Init(ctx, tracer.Config{
		ServiceName: cfg.App.Name,
		Endpoint:    cfg.Observability.Tracing.Endpoint,
		SampleRate:  cfg.Observability.Tracing.SampleRate,
		Enabled:     cfg.Observability.Tracing.Enabled,
	})
	if err != nil {
		log.Error("failed to init tracer", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := shutdownTracer(ctx); err != nil {
			log.Error("failed to shutdown tracer", "error", err)
		}
	}()

	app, cleanup, err := buildApp(ctx, cfg)
	if err != nil {
		logger.Fatal(ctx, "failed to initialize app", err)
	}
	defer cleanup()

	// 创建 HTTP 服务器
	addr := fmt.Sprintf("%s:%d", cfg.Server.HTTP.Host, cfg.Server.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      app.Engine(),
		ReadTimeout:  cfg.Server.HTTP.ReadTimeout,
		WriteTimeout: cfg.Server.HTTP.WriteTimeout,
		IdleTimeout:  cfg.Server.HTTP.IdleTimeout,
	}

	// 启动服务器
	go func() {
		log.Info("http server starting", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("http server error", "error", err)
			os.Exit(1)
		}
	}()

	// 等待中断信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	// 优雅关闭
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", "error", err)
	}

	log.Info("server exited")
}

// buildApp 组装依赖并返回路由器与清理函数
func buildApp(ctx context.Context, cfg *config.Config) (*router.Router, func(), error) {
	var cleanups []func()
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	// PostgreSQL 文档库
	pgClient, err := postgres.NewClient(&cfg.Database.Postgres)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	cleanups = append(cleanups, func() { _ = pgClient.Close() })

	if err := pgClient.Migrate(ctx); err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	docRepo := postgres.NewDocumentRepository(pgClient)

	// Redis 缓存、限流与审计流
	redisClient, err := redis.NewClient(&cfg.Cache.Redis)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	cleanups = append(cleanups, func() { _ = redisClient.Close() })

	cache := redis.NewCache(redisClient)
	rateLimiter := redis.NewRateLimiter(redisClient)

	auditProducer := audit.NewProducer(redisClient.Redis(), cfg.Audit.Stream, cfg.Audit.MaxLen)
	recorder := audit.NewRecorder(auditProducer, cfg.Audit.QueueSize)
	cleanups = append(cleanups, recorder.Close)

	// Eino 全局回调：模型调用追踪与 token 统计
	einoobs.Init()

	// Embedding 服务，启动时探测向量维度
	einoEmbedder, err := embedding.NewEinoEmbedder(ctx, &cfg.Embedding)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	embedder := embedding.NewService(einoEmbedder, &cfg.Embedding)

	probeCtx, probeCancel := context.WithTimeout(ctx, 30*time.Second)
	err = embedder.Warmup(probeCtx)
	if err != nil {
		probeCancel()
		cleanup()
		return nil, nil, fmt.Errorf("failed to warm up embedding service: %w", err)
	}
	dim, err := embedder.Dim(probeCtx)
	probeCancel()
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("failed to probe embedding dimension: %w", err)
	}
	logger.Info(ctx, "embedding service ready", "model", cfg.Embedding.Model, "dim", dim)

	// 向量索引
	index, err := openIndex(ctx, cfg, dim)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("failed to open vector index: %w", err)
	}
	cleanups = append(cleanups, func() { _ = index.Close() })
	metrics.IndexSize.Set(float64(index.Len()))

	// 重排、生成
	rerankClient := reranker.NewClient(&cfg.Reranker)
	llmFactory := llm.NewEinoFactory(cfg)
	generator := llm.NewGenerator(llmFactory)

	// 降级链在后台预构建，不占用请求路径
	go func() {
		warmCtx, warmCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer warmCancel()
		ready := llmFactory.Warmup(warmCtx)
		logger.Info(warmCtx, "llm provider chain ready",
			"ready", ready,
			"configured", len(cfg.LLM.FallbackOrder),
		)
	}()

	// 应用层
	chunker := rag.NewChunker(cfg.Rag.ChunkSize, cfg.Rag.ChunkOverlap)
	pipeline := rag.NewPipeline(chunker, embedder, index, rerankClient, generator, docRepo, recorder, &cfg.Rag)
	engine := search.NewEngine(docRepo, embedder, index, cache, &cfg.Rag)
	chatbot := rag.NewChatbot(engine, generator, recorder, &cfg.Rag)

	handlers := router.Handlers{
		Health: handler.NewHealthHandler(pgClient, redisClient, index),
		Rag:    handler.NewRagHandler(pipeline, chatbot),
		Search: handler.NewSearchHandler(engine, &cfg.Rag),
	}

	r := router.New(cfg, handlers, rateLimiter, redis.BuildClientRateLimitKey)
	return r, cleanup, nil
}

// openIndex 按配置选择索引后端
func openIndex(ctx context.Context, cfg *config.Config, dim int) (vectorindex.Index, error) {
	switch cfg.Vector.Backend {
	case "milvus":
		return vectorindex.OpenMilvus(ctx, &cfg.Vector.Milvus, dim)
	default:
		return vectorindex.OpenFlat(ctx, cfg.Vector.Local.Dir, dim)
	}
}
