// Package main 内容生成引擎服务入口
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

	"z-docgen-ai-api/internal/application/generation"
	genprompt "z-docgen-ai-api/internal/application/generation/prompt"
	"z-docgen-ai-api/internal/application/outline"
	"z-docgen-ai-api/internal/application/refinement"
	"z-docgen-ai-api/internal/application/render"
	"z-docgen-ai-api/internal/config"
	"z-docgen-ai-api/internal/infrastructure/llm"
	"z-docgen-ai-api/internal/infrastructure/persistence/postgres"
	"z-docgen-ai-api/internal/infrastructure/persistence/redis"
	"z-docgen-ai-api/internal/interfaces/http/handler"
	"z-docgen-ai-api/internal/interfaces/http/router"
	"z-docgen-ai-api/pkg/logger"
	"z-docgen-ai-api/pkg/tracer"
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
	log.Info("starting content-engine",
		"version", Version,
		"build_time", BuildTime,
		"env", cfg.App.Env,
	)

	// 初始化追踪
	shutdown, err := tracer.Init(ctx, tracer.Config{
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
		if err := shutdown(ctx); err != nil {
			log.Error("failed to shutdown tracer", "error", err)
		}
	}()

	// 基础设施
	pgClient, err := postgres.NewClient(&cfg.Database.Postgres)
	if err != nil {
		logger.Fatal(ctx, "failed to connect postgres", err)
	}
	defer pgClient.Close()

	if cfg.Database.Postgres.AutoMigrate {
		if err := pgClient.AutoMigrate(); err != nil {
			logger.Fatal(ctx, "failed to auto migrate", err)
		}
	}

	redisClient, err := redis.NewClient(&cfg.Cache.Redis)
	if err != nil {
		logger.Fatal(ctx, "failed to connect redis", err)
	}
	defer redisClient.Close()

	// 仓储与事务
	documentRepo := postgres.NewDocumentRepository(pgClient)
	sectionRepo := postgres.NewSectionRepository(pgClient)
	artifactRepo := postgres.NewArtifactRepository(pgClient)
	feedbackRepo := postgres.NewFeedbackRepository(pgClient)
	txManager := postgres.NewTxManager(pgClient)

	cache := redis.NewCache(redisClient)
	sectionLock := redis.NewSectionLock(redisClient)

	// LLM 与生成
	einoFactory := llm.NewEinoFactory(cfg)
	promptBuilder := generation.NewPromptBuilder(genprompt.NewRegistry())
	adapter := generation.NewEinoAdapter(einoFactory, cfg)
	manager := generation.NewManager(documentRepo, sectionRepo, artifactRepo,
		txManager, sectionLock, promptBuilder, adapter, cfg)

	coordinator := refinement.NewCoordinator(documentRepo, sectionRepo,
		artifactRepo, feedbackRepo, txManager, manager, cache)
	renderBuilder := render.NewBuilder(documentRepo, sectionRepo, artifactRepo)
	suggester := outline.NewSuggester(documentRepo, sectionRepo, promptBuilder, adapter)

	// HTTP 层
	r := router.New(cfg, router.Handlers{
		Health:     handler.NewHealthHandler(pgClient, redisClient),
		Generation: handler.NewGenerationHandler(manager),
		Artifact:   handler.NewArtifactHandler(artifactRepo, cache),
		Feedback:   handler.NewFeedbackHandler(coordinator),
		Render:     handler.NewRenderHandler(renderBuilder, cache),
		Outline:    handler.NewOutlineHandler(suggester),
	})

	// 创建 HTTP 服务器
	addr := fmt.Sprintf("%s:%d", cfg.Server.HTTP.Host, cfg.Server.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r.Engine(),
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
