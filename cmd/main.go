package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/LLMontreal/llmontreal-backend/internal/broker"
	"github.com/LLMontreal/llmontreal-backend/internal/chat"
	"github.com/LLMontreal/llmontreal-backend/internal/config"
	"github.com/LLMontreal/llmontreal-backend/internal/correlation"
	"github.com/LLMontreal/llmontreal-backend/internal/dispatch"
	"github.com/LLMontreal/llmontreal-backend/internal/documents"
	"github.com/LLMontreal/llmontreal-backend/internal/extraction"
	"github.com/LLMontreal/llmontreal-backend/internal/logger"
	"github.com/LLMontreal/llmontreal-backend/internal/store"
	"github.com/LLMontreal/llmontreal-backend/middleware"
	"github.com/LLMontreal/llmontreal-backend/routes"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}
	logger.InitLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// MongoDB
	mongoClient, err := config.ConnectMongoDB(cfg)
	if err != nil {
		log.Fatal("Failed to connect to MongoDB:", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		mongoClient.Disconnect(shutdownCtx)
	}()
	db := mongoClient.Database(cfg.DBName)

	// Redis: response channels + rate limiter
	rdb, err := config.NewRedisClient(cfg)
	if err != nil {
		log.Fatal("Failed to connect to Redis:", err)
	}
	defer rdb.Close()

	// asynq client for job dispatch
	asynqClient := asynq.NewClient(config.AsynqRedisOpt(cfg))
	defer asynqClient.Close()

	// Stores
	docStore := store.NewMongoDocumentStore(db)
	sessionStore := store.NewMongoChatSessionStore(db)
	apilogStore := store.NewMongoAPICallLogStore(db)

	// Correlation: the registry expiry is the longest wait any caller
	// performs; shorter waits are enforced by caller contexts.
	registryTimeout := cfg.SummaryWait
	if cfg.RequestTimeout > registryTimeout {
		registryTimeout = cfg.RequestTimeout
	}
	registry := correlation.NewRegistry(registryTimeout)
	registry.StartSweeper(ctx, cfg.SweepInterval)

	// Route result envelopes from Redis back to waiting callers.
	router := broker.NewResponseRouter(rdb, registry)
	if err := router.Start(ctx); err != nil {
		log.Fatal("Failed to subscribe to response channels:", err)
	}

	dispatcher := dispatch.NewDispatcher(asynqClient, registry, apilogStore)

	// Extraction
	ocrURL := ""
	if cfg.OCRServiceEnabled {
		ocrURL = cfg.OCRServiceURL
	}
	extractionRegistry := extraction.DefaultRegistry(ocrURL, cfg.OCRTimeout, cfg.MaxArchiveEntry)
	pipeline := extraction.NewPipeline(extractionRegistry)
	pool := extraction.NewPool(cfg.ExtractionWorkers, cfg.ExtractionQueueSize)
	pool.Start(ctx)

	// Services
	docService := documents.NewService(
		docStore, pipeline, extraction.NewExpander(cfg.MaxArchiveEntry), pool, dispatcher,
		cfg.MaxFileSize, cfg.AllowedTypes, cfg.SummaryWait)
	chatService := chat.NewService(sessionStore, docStore, dispatcher, cfg.OllamaModel, cfg.RequestTimeout)

	// HTTP
	if cfg.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Logger())
	engine.Use(gin.Recovery())
	engine.Use(middleware.RequestIDMiddleware())
	engine.Use(middleware.RateLimitMiddleware(rdb, cfg))

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.CORSOrigins
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Requested-With", "X-Request-ID"}
	corsConfig.AllowCredentials = true
	engine.Use(cors.New(corsConfig))

	engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "timestamp": time.Now()})
	})

	routes.SetupDocumentRoutes(engine, docService)
	routes.SetupChatRoutes(engine, chatService)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: engine,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Server starting", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Fatal("Server error:", err)
	}
	pool.Wait()
	logger.Info("Server exited")
}
