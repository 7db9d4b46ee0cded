package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/qs3c/creditflow_server/internal/pkg/logger"
	"github.com/qs3c/creditflow_server/internal/pkg/queue"
)

const popTimeout = 5 * time.Second

// Source 任务来源
type Source interface {
	Pop(ctx context.Context, timeout time.Duration) (*queue.ImagePersistMessage, error)
}

// Handler 任务处理
type Handler interface {
	Process(ctx context.Context, msg *queue.ImagePersistMessage) error
}

// Pool 固定数量的消费协程
type Pool struct {
	source  Source
	handler Handler
	workers int
	timeout time.Duration
	logger  *zap.Logger
}

func NewPool(source Source, handler Handler, workers int, log *zap.Logger) *Pool {
	if workers <= 0 {
		workers = 1
	}
	return &Pool{
		source:  source,
		handler: handler,
		workers: workers,
		timeout: popTimeout,
		logger:  logger.OrNop(log),
	}
}

// Run 启动消费协程，阻塞直到 ctx 结束且所有协程退出
func (p *Pool) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			p.loop(ctx, workerID)
		}(i)
	}
	p.logger.Info("worker pool started", zap.Int("workers", p.workers))
	wg.Wait()
	p.logger.Info("worker pool stopped")
}

func (p *Pool) loop(ctx context.Context, workerID int) {
	for {
		if ctx.Err() != nil {
			return
		}

		msg, err := p.source.Pop(ctx, p.timeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.logger.Warn("pop failed", zap.Int("worker", workerID), zap.Error(err))
			time.Sleep(100 * time.Millisecond)
			continue
		}
		if msg == nil {
			continue // 超时，继续等待
		}

		if err := p.handler.Process(ctx, msg); err != nil {
			p.logger.Warn("job failed",
				zap.Int("worker", workerID),
				zap.Int64("content_id", msg.ContentID),
				zap.Int("attempt", msg.Attempt),
				zap.Error(err),
			)
		}
	}
}
