package main

import (
	"context"
	"log"

	"studyspace/internal/config"
	"studyspace/internal/db"
	"studyspace/internal/queue"
	"studyspace/internal/repository"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// El worker consume la cola de notificaciones que la API encola despues de
// confirmar cada mensaje.
func main() {
	ctx := context.Background()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}
	if cfg.RedisAddr == "" {
		panic("REDIS_ADDR is required for the notification worker")
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer pool.Close()

	notificationRepo := repository.NewPgNotificationRepository(pool)
	worker := queue.NewNotificationWorker(logger, notificationRepo)

	mux := asynq.NewServeMux()
	worker.Register(mux)

	srv := queue.NewServer(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.AsynqConcurrency, logger)

	logger.Info("starting notification worker", zap.String("redis", cfg.RedisAddr))

	if err := srv.Run(mux); err != nil {
		logger.Fatal("worker error", zap.Error(err))
	}
}
