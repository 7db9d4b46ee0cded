package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/qs3c/creditflow_server/config"
	"github.com/qs3c/creditflow_server/internal/api"
	"github.com/qs3c/creditflow_server/internal/api/handler"
	"github.com/qs3c/creditflow_server/internal/database"
	"github.com/qs3c/creditflow_server/internal/model/dto"
	"github.com/qs3c/creditflow_server/internal/pkg/cron"
	"github.com/qs3c/creditflow_server/internal/pkg/generator"
	"github.com/qs3c/creditflow_server/internal/pkg/logger"
	"github.com/qs3c/creditflow_server/internal/pkg/metrics"
	"github.com/qs3c/creditflow_server/internal/pkg/pubsub"
	"github.com/qs3c/creditflow_server/internal/pkg/queue"
	"github.com/qs3c/creditflow_server/internal/pkg/ws"
	"github.com/qs3c/creditflow_server/internal/repository"
	"github.com/qs3c/creditflow_server/internal/service"
)

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

	// 初始化数据库
	db, err := database.Open(&cfg.Database)
	if err != nil {
		log.Fatal("failed to connect database", zap.Error(err))
	}
	if err := database.Migrate(db); err != nil {
		log.Fatal("failed to migrate database", zap.Error(err))
	}
	log.Info("database connected", zap.String("driver", cfg.Database.Driver))

	// 指标
	var collector *metrics.Collector
	if cfg.Metrics.Enabled {
		collector = metrics.New(cfg.Metrics.Namespace)
	}

	// 初始化 Repository
	userRepo := repository.NewUserRepository(db)
	txnRepo := repository.NewTransactionRepository(db)
	contentRepo := repository.NewContentRepository(db)
	projectRepo := repository.NewProjectRepository(db)

	// 初始化 Service
	ledgerService := service.NewLedgerService(db, userRepo, txnRepo, cfg.Ledger, log)
	ledgerService.SetMetrics(collector)
	aggregate := service.NewAggregateMaintainer(db, projectRepo, log)
	aggregate.SetMetrics(collector)
	contentService := service.NewContentService(db, contentRepo, projectRepo, aggregate, log)
	contentService.SetRetry(cfg.Ledger)
	projectService := service.NewProjectService(db, projectRepo, contentRepo)
	projectService.SetRetry(cfg.Ledger)

	provider := generator.NewFromConfig(cfg.Generation, log)
	generationService := service.NewGenerationService(
		db, ledgerService, contentService, provider,
		time.Duration(cfg.Generation.TimeoutSeconds)*time.Second, log,
	)
	generationService.SetMetrics(collector)
	generationService.SetRetry(cfg.Ledger)

	// WebSocket
	hub := ws.NewHub(log)
	websocketHandler := handler.NewWebSocketHandler(hub, cfg.JWT.Secret, cfg.CORS.AllowedOrigins, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Redis 可选：有 Redis 时余额变更经 pub/sub 广播，图片进入转存队列；
	// 没有时只推送给本进程的连接
	rdb, err := database.NewRedis(&cfg.Redis)
	if err != nil {
		log.Warn("redis unavailable, using in-process notifications", zap.Error(err))
		ledgerService.SetNotifier(&localNotifier{forward: websocketHandler.Forward})
	} else {
		defer rdb.Close()
		ledgerService.SetNotifier(pubsub.NewPublisher(rdb))
		generationService.SetImageQueue(queue.NewQueue(rdb, cfg.Queue.ImageQueue))

		subscriber := pubsub.NewSubscriber(rdb)
		go func() {
			if err := subscriber.Subscribe(ctx, websocketHandler.Forward); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("user event subscription stopped", zap.Error(err))
			}
		}()
		log.Info("redis connected")
	}

	// 定时修复项目计数
	cronService := cron.NewService(aggregate, time.Duration(cfg.Cron.ReconcileIntervalMinutes)*time.Minute, log)
	cronService.Start()
	defer cronService.Stop()

	// 初始化 Router
	router := api.NewRouter(
		handler.NewLedgerHandler(ledgerService),
		handler.NewGenerationHandler(generationService),
		handler.NewContentHandler(contentService),
		handler.NewProjectHandler(projectService),
		websocketHandler,
		collector,
		log,
		cfg,
	)

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: router.Setup(),
	}

	go func() {
		log.Info("server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	log.Info("received shutdown signal")

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown failed", zap.Error(err))
	}
	log.Info("server stopped")
}

// localNotifier 无 Redis 时直接推送到本进程的 WebSocket 连接
type localNotifier struct {
	forward func(*pubsub.Message)
}

func (n *localNotifier) PublishBalance(ctx context.Context, userID int64, balance *dto.BalanceInfo) error {
	remaining := balance.CreditsRemaining
	n.forward(&pubsub.Message{
		Type:             pubsub.TypeCreditsUpdated,
		UserID:           userID,
		CreditsRemaining: &remaining,
		Tier:             balance.Tier,
	})
	return nil
}
