package cron

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/qs3c/creditflow_server/internal/pkg/logger"
	"github.com/qs3c/creditflow_server/internal/service"
)

// Reconciler 项目计数修复
type Reconciler interface {
	Reconcile(ctx context.Context, dryRun bool) (*service.ReconcileReport, error)
}

type Service struct {
	reconciler Reconciler
	interval   time.Duration
	logger     *zap.Logger
	stopChan   chan struct{}
	stopOnce   sync.Once
}

func NewService(reconciler Reconciler, interval time.Duration, log *zap.Logger) *Service {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Service{
		reconciler: reconciler,
		interval:   interval,
		logger:     logger.OrNop(log),
		stopChan:   make(chan struct{}),
	}
}

// Start 启动定时任务
func (s *Service) Start() {
	go s.runReconcile()
	s.logger.Info("cron service started", zap.Duration("reconcile_interval", s.interval))
}

// Stop 停止定时任务
func (s *Service) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
		s.logger.Info("cron service stopped")
	})
}

// runReconcile 周期性修复项目计数
func (s *Service) runReconcile() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			if _, err := s.RunNow(context.Background()); err != nil {
				s.logger.Error("scheduled reconcile failed", zap.Error(err))
			}
		}
	}
}

// RunNow 立即执行一次修复
func (s *Service) RunNow(ctx context.Context) (*service.ReconcileReport, error) {
	report, err := s.reconciler.Reconcile(ctx, false)
	if err != nil {
		return nil, err
	}
	if report.Found > 0 {
		s.logger.Info("reconcile completed",
			zap.Int("found", report.Found),
			zap.Int("repaired", report.Repaired),
		)
	}
	return report, nil
}
