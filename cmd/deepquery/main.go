package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/yuhao-w/deepquery/internal/api"
	"github.com/yuhao-w/deepquery/internal/config"
	"github.com/yuhao-w/deepquery/internal/llm"
	"github.com/yuhao-w/deepquery/internal/repository"
	"github.com/yuhao-w/deepquery/internal/search"
	"github.com/yuhao-w/deepquery/internal/service"
)

var (
	configPath = flag.String("config", "", "Path to config file")
)

func main() {
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	// Initialize database (query history only; documents are per-request)
	db, err := repository.NewDB(cfg.Database.Path)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	queryRepo := repository.NewQueryRepository(db)

	// Collaborator clients
	llmClient := llm.NewOpenAIClient(llm.Config{
		BaseURL: cfg.LLM.BaseURL,
		APIKey:  cfg.LLM.APIKey,
		Model:   cfg.LLM.Model,
	}, logger)

	searchClient := search.NewHTTPClient(search.Config{
		Endpoint:          cfg.Search.Endpoint,
		APIKey:            cfg.Search.APIKey,
		KnowledgeBaseID:   cfg.Search.KnowledgeBaseID,
		KnowledgeBaseName: cfg.Search.KnowledgeBaseName,
		Timeout:           time.Duration(cfg.Search.TimeoutSeconds) * time.Second,
	}, logger)

	// Pipeline orchestrator
	orchestrator := service.NewOrchestrator(
		llmClient,
		searchClient,
		queryRepo,
		cfg.Retrieval.MaxRounds,
		cfg.Retrieval.ResultBound,
		logger,
	)

	// Setup router
	router := api.SetupRouter(orchestrator, queryRepo, logger, api.RouterConfig{
		AllowOrigins: cfg.CORS.AllowOrigins,
	})

	// Create HTTP server. No write timeout: query responses are
	// long-lived SSE streams.
	srv := &http.Server{
		Addr:        cfg.Address(),
		Handler:     router,
		ReadTimeout: 30 * time.Second,
		IdleTimeout: 120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("Starting DeepQuery server",
			zap.String("address", cfg.Address()),
			zap.String("model", cfg.LLM.Model),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}
