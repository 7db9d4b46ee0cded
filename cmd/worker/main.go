package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/qs3c/creditflow_server/config"
	"github.com/qs3c/creditflow_server/internal/database"
	"github.com/qs3c/creditflow_server/internal/pkg/logger"
	"github.com/qs3c/creditflow_server/internal/pkg/oss"
	"github.com/qs3c/creditflow_server/internal/pkg/pubsub"
	"github.com/qs3c/creditflow_server/internal/pkg/queue"
	"github.com/qs3c/creditflow_server/internal/repository"
	"github.com/qs3c/creditflow_server/internal/worker"
)

const maxPersistAttempts = 3

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	db, err := database.Open(&cfg.Database)
	if err != nil {
		log.Fatal("failed to connect database", zap.Error(err))
	}

	rdb, err := database.NewRedis(&cfg.Redis)
	if err != nil {
		log.Fatal("failed to connect redis", zap.Error(err))
	}
	defer rdb.Close()

	if cfg.OSS.Endpoint == "" || cfg.OSS.AccessKeyID == "" {
		log.Fatal("oss is not configured, nothing to persist images to")
	}
	ossClient, err := oss.NewClient(&cfg.OSS)
	if err != nil {
		log.Fatal("failed to init oss client", zap.Error(err))
	}

	imageQueue := queue.NewQueue(rdb, cfg.Queue.ImageQueue)
	persister := worker.NewImagePersister(
		repository.NewContentRepository(db),
		ossClient,
		pubsub.NewPublisher(rdb),
		log,
	)
	persister.SetRetry(imageQueue, maxPersistAttempts)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info("received shutdown signal")
		cancel()
	}()

	worker.NewPool(imageQueue, persister, cfg.Queue.MaxWorkers, log).Run(ctx)
	log.Info("worker shutdown complete")
}
