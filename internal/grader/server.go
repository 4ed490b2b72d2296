// Package gradersvc provides the rubric grading service server implementation.
package gradersvc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"
	goredis "github.com/redis/go-redis/v9"

	"github.com/kart-io/rubric-grader/internal/grader/biz"
	grpcHandler "github.com/kart-io/rubric-grader/internal/grader/grpc"
	"github.com/kart-io/rubric-grader/internal/grader/handler"
	"github.com/kart-io/rubric-grader/internal/grader/metrics"
	"github.com/kart-io/rubric-grader/internal/grader/router"
	"github.com/kart-io/rubric-grader/internal/grader/store"
	"github.com/kart-io/rubric-grader/pkg/component/milvus"
	"github.com/kart-io/rubric-grader/pkg/infra/app"
	"github.com/kart-io/rubric-grader/pkg/infra/pool"
	"github.com/kart-io/rubric-grader/pkg/infra/server"
	grpcserver "github.com/kart-io/rubric-grader/pkg/infra/server/transport/grpc"
	httpserver "github.com/kart-io/rubric-grader/pkg/infra/server/transport/http"
	"github.com/kart-io/rubric-grader/pkg/infra/tracing"
	"github.com/kart-io/rubric-grader/pkg/llm"
	// 导入 LLM 供应商以自动注册
	_ "github.com/kart-io/rubric-grader/pkg/llm/huggingface"
	_ "github.com/kart-io/rubric-grader/pkg/llm/ollama"
	_ "github.com/kart-io/rubric-grader/pkg/llm/openai"
	cacheopts "github.com/kart-io/rubric-grader/pkg/options/cache"
	llmopts "github.com/kart-io/rubric-grader/pkg/options/llm"
	logopts "github.com/kart-io/rubric-grader/pkg/options/logger"
	milvusopts "github.com/kart-io/rubric-grader/pkg/options/milvus"
	poolopts "github.com/kart-io/rubric-grader/pkg/options/pool"
	ragopts "github.com/kart-io/rubric-grader/pkg/options/rag"
	redisopts "github.com/kart-io/rubric-grader/pkg/options/redis"
	grpcopts "github.com/kart-io/rubric-grader/pkg/options/server/grpc"
	httpopts "github.com/kart-io/rubric-grader/pkg/options/server/http"
	tracingopts "github.com/kart-io/rubric-grader/pkg/options/tracing"
)

// Name is the name of the application.
const Name = "rubric-grader"

// Config contains application-related configurations.
type Config struct {
	HTTPOptions      *httpopts.Options
	GRPCOptions      *grpcopts.Options
	LogOptions       *logopts.Options
	TracingOptions   *tracingopts.Options
	MilvusOptions    *milvusopts.Options
	EmbeddingOptions *llmopts.ProviderOptions
	ChatOptions      *llmopts.ProviderOptions
	RedisOptions     *redisopts.Options
	CacheOptions     *cacheopts.Options
	RAGOptions       *ragopts.Options
	PoolOptions      *poolopts.Options
	Mode             string
	ShutdownTimeout  time.Duration
	RequestTimeout   time.Duration
}

// Server represents the grader server.
type Server struct {
	srv     *server.Manager
	service biz.Service
	grpc    *grpcserver.Server
	closers []func(ctx context.Context) error
}

// NewServer builds every process-wide handle once. Nothing here blocks on the
// vector store; Run performs the readiness wait.
func (cfg *Config) NewServer(ctx context.Context) (_ *Server, err error) {
	s := &Server{}
	defer func() {
		if err != nil {
			s.close()
		}
	}()

	// 1. 初始化日志
	cfg.LogOptions.AddInitialField("service.name", Name)
	cfg.LogOptions.AddInitialField("service.version", app.GetVersion())
	if err := cfg.LogOptions.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.Infow("Starting grader service...",
		"embedding", cfg.EmbeddingOptions.Provider+"/"+cfg.EmbeddingOptions.Model,
		"chat", cfg.ChatOptions.Provider+"/"+cfg.ChatOptions.Model,
		"store", cfg.RAGOptions.Backend,
	)

	// 2. 初始化链路追踪
	tp, err := tracing.NewProvider(ctx, cfg.TracingOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}
	s.closers = append(s.closers, tp.Shutdown)
	logger.Infow("Tracing initialized", "enabled", cfg.TracingOptions.Enabled, "exporter", cfg.TracingOptions.ExporterType)

	// 3. 初始化向量存储
	vectorStore, err := cfg.newVectorStore()
	if err != nil {
		return nil, err
	}
	s.closers = append(s.closers, vectorStore.Close)
	logger.Infow("Vector store initialized", "backend", cfg.RAGOptions.Backend, "collection", cfg.RAGOptions.Collection)

	// 4. 初始化 LLM 供应商
	embedConfig := cfg.EmbeddingOptions.ToConfigMap()
	embedConfig["dimensions"] = cfg.RAGOptions.Dimension
	embedProvider, err := llm.NewEmbeddingProvider(cfg.EmbeddingOptions.Provider, embedConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedding provider: %w", err)
	}
	logger.Infow("Embedding provider initialized",
		"provider", cfg.EmbeddingOptions.Provider,
		"model", cfg.EmbeddingOptions.Model,
	)

	chatConfig := cfg.ChatOptions.ToConfigMap()
	chatConfig["temperature"] = 0.0
	chatProvider, err := llm.NewChatProvider(cfg.ChatOptions.Provider, chatConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize chat provider: %w", err)
	}
	logger.Infow("Chat provider initialized",
		"provider", cfg.ChatOptions.Provider,
		"model", cfg.ChatOptions.Model,
	)
	pingProvider(ctx, chatProvider, cfg.ChatOptions.Timeout)

	// 5. 初始化 Redis 向量缓存（可选）
	embedProvider = cfg.withEmbeddingCache(ctx, s, embedProvider)

	// 6. 初始化协程池
	embedPool, err := pool.NewPool("embed", pool.EmbedPool, &pool.Config{
		Capacity:         cfg.PoolOptions.Capacity,
		ExpiryDuration:   cfg.PoolOptions.ExpiryDuration,
		PreAlloc:         cfg.PoolOptions.PreAlloc,
		MaxBlockingTasks: cfg.PoolOptions.MaxBlockingTasks,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize worker pool: %w", err)
	}
	s.closers = append(s.closers, func(context.Context) error {
		return embedPool.ReleaseTimeout(5 * time.Second)
	})

	// 7. 初始化 Biz 层
	graderMetrics := metrics.New()
	graderMetrics.RegisterPool(embedPool)
	s.service, err = biz.NewGraderService(vectorStore, embedProvider, chatProvider, embedPool, graderMetrics, &biz.ServiceConfig{
		ChunkSize:    cfg.RAGOptions.ChunkSize,
		ChunkOverlap: cfg.RAGOptions.ChunkOverlap,
		Dimension:    cfg.RAGOptions.Dimension,
		EmbedBatch:   cfg.RAGOptions.EmbedBatch,
		UpsertBatch:  cfg.RAGOptions.UpsertBatch,
		TopK:         cfg.RAGOptions.TopK,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize grader service: %w", err)
	}
	logger.Infow("Grader service initialized",
		"chunk_size", cfg.RAGOptions.ChunkSize,
		"chunk_overlap", cfg.RAGOptions.ChunkOverlap,
		"top_k", cfg.RAGOptions.TopK,
	)

	// 8. 初始化 Handler 层
	graderHandler := handler.NewGraderHandler(s.service, &handler.Config{
		MaxUploadBytes: cfg.HTTPOptions.MaxUploadBytes,
		RequestTimeout: cfg.RequestTimeout,
	})
	graderGRPCHandler := grpcHandler.NewHandler(s.service)

	// 9. 初始化服务器并注册路由
	gin.SetMode(cfg.Mode)
	engine := router.NewEngine(cfg.TracingOptions.ServiceName, graderHandler, graderMetrics)
	s.grpc = grpcserver.NewServer(cfg.GRPCOptions)
	router.RegisterGRPC(s.grpc, graderGRPCHandler)

	s.srv = server.NewManager(cfg.ShutdownTimeout)
	s.srv.Add(httpserver.NewServer(cfg.HTTPOptions, engine), s.grpc)

	logger.Infow("Grader service is ready", "http", cfg.HTTPOptions.Addr, "grpc", cfg.GRPCOptions.Addr)
	return s, nil
}

func (cfg *Config) newVectorStore() (store.VectorStore, error) {
	switch cfg.RAGOptions.Backend {
	case ragopts.BackendMemory:
		return store.NewMemoryStore(cfg.RAGOptions.Dimension), nil
	default:
		client, err := milvus.New(cfg.MilvusOptions)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize milvus: %w", err)
		}
		return store.NewMilvusStore(client, &store.MilvusConfig{
			Collection:    cfg.RAGOptions.Collection,
			Dimension:     cfg.RAGOptions.Dimension,
			ReadyTimeout:  cfg.RAGOptions.ReadyTimeout,
			ReadyInterval: cfg.RAGOptions.ReadyInterval,
		}), nil
	}
}

// withEmbeddingCache 连接 redis 成功时包装 provider，失败时降级为不缓存。
func (cfg *Config) withEmbeddingCache(ctx context.Context, s *Server, provider llm.EmbeddingProvider) llm.EmbeddingProvider {
	if !cfg.CacheOptions.Enabled {
		logger.Info("Embedding cache is disabled")
		return provider
	}

	redisOpts := cfg.RedisOptions
	client := goredis.NewClient(&goredis.Options{
		Addr:         redisOpts.Addr(),
		Password:     redisOpts.Password,
		DB:           redisOpts.Database,
		PoolSize:     redisOpts.PoolSize,
		DialTimeout:  redisOpts.DialTimeout,
		ReadTimeout:  redisOpts.ReadTimeout,
		WriteTimeout: redisOpts.WriteTimeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, redisOpts.DialTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warnw("failed to connect to redis, embedding cache will be disabled", "redis", redisOpts.String(), "error", err.Error())
		_ = client.Close()
		return provider
	}
	s.closers = append(s.closers, func(context.Context) error { return client.Close() })

	logger.Infow("Embedding cache initialized", "redis", redisOpts.String(), "ttl", cfg.CacheOptions.TTL)
	return llm.NewCachedEmbeddingProvider(provider, llm.NewRedisKV(client), &llm.EmbeddingCacheConfig{
		TTL:       cfg.CacheOptions.TTL,
		KeyPrefix: cfg.CacheOptions.KeyPrefix,
		Model:     cfg.EmbeddingOptions.Provider + "/" + cfg.EmbeddingOptions.Model,
	})
}

// pingProvider 探测供应商是否可达，失败只告警，首个请求时再暴露错误。
func pingProvider(ctx context.Context, provider any, timeout time.Duration) {
	pinger, ok := provider.(llm.Pinger)
	if !ok {
		return
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := pinger.Ping(pingCtx); err != nil {
		logger.Warnw("LLM provider is not reachable yet", "error", err.Error())
	}
}

// Run waits for the vector store, then serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	defer s.close()

	if err := s.service.Init(ctx); err != nil {
		return err
	}
	s.grpc.SetServing(grpcHandler.ServiceName)

	return s.srv.Run(ctx)
}

func (s *Server) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	if err := errors.Join(errs...); err != nil {
		logger.Warnw("Failed to release resources", "error", err.Error())
	}
}
