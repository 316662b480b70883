package main

import (
	"context"
	"log"
	"time"

	"github.com/hibiken/asynq"

	"github.com/LLMontreal/llmontreal-backend/internal/ai"
	"github.com/LLMontreal/llmontreal-backend/internal/broker"
	"github.com/LLMontreal/llmontreal-backend/internal/config"
	"github.com/LLMontreal/llmontreal-backend/internal/jobs"
	"github.com/LLMontreal/llmontreal-backend/internal/logger"
	"github.com/LLMontreal/llmontreal-backend/internal/store"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}
	logger.InitLogger(cfg)

	mongoClient, err := config.ConnectMongoDB(cfg)
	if err != nil {
		log.Fatal("Failed to connect to MongoDB:", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		mongoClient.Disconnect(ctx)
	}()
	db := mongoClient.Database(cfg.DBName)

	rdb, err := config.NewRedisClient(cfg)
	if err != nil {
		log.Fatal("Failed to connect to Redis:", err)
	}
	defer rdb.Close()

	ollama := ai.NewOllamaClient(cfg.OllamaBaseURL, cfg.OllamaTimeout)
	warmupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	ollama.Warmup(warmupCtx, cfg.OllamaModel)
	cancel()

	handlers := jobs.NewHandlers(
		store.NewMongoDocumentStore(db),
		store.NewMongoChatSessionStore(db),
		store.NewMongoAPICallLogStore(db),
		ollama,
		broker.NewResultPublisher(rdb),
		cfg.OllamaModel,
	)

	// Summaries gate document completion, so their queue gets the larger
	// share when both are busy.
	server := asynq.NewServer(
		config.AsynqRedisOpt(cfg),
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				broker.QueueSummary: 6,
				broker.QueueChat:    4,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Error("Task failed", "type", task.Type(), "error", err)
			}),
		},
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(broker.TaskChatGenerate, handlers.HandleChatTask)
	mux.HandleFunc(broker.TaskSummaryGenerate, handlers.HandleSummaryTask)

	logger.Info("Starting worker",
		"queues", []string{broker.QueueSummary, broker.QueueChat},
		"model", cfg.OllamaModel)

	if err := server.Run(mux); err != nil {
		log.Fatal("Failed to start worker:", err)
	}
}
