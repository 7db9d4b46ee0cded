package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/qs3c/creditflow_server/config"
	"github.com/qs3c/creditflow_server/internal/pkg/logger"
	"github.com/qs3c/creditflow_server/internal/pkg/metrics"
)

const (
	defaultMaxRetries     = 3
	defaultRetryBackoffMs = 20
)

// retrier 存储层瞬时冲突（死锁、锁等待、SQLite busy）的有限次重试。
// fn 每次都重新执行整个事务，必须可重入。
type retrier struct {
	maxRetries int
	backoff    time.Duration
	metrics    *metrics.Collector
	logger     *zap.Logger
}

func newRetrier(cfg config.LedgerConfig, log *zap.Logger) *retrier {
	r := &retrier{logger: logger.OrNop(log)}
	r.apply(cfg)
	return r
}

// apply 更新次数与间隔，保留已设置的指标
func (r *retrier) apply(cfg config.LedgerConfig) {
	r.maxRetries = cfg.MaxRetries
	if r.maxRetries < 0 {
		r.maxRetries = 0
	}
	r.backoff = time.Duration(cfg.RetryBackoffMs) * time.Millisecond
	if r.backoff <= 0 {
		r.backoff = 10 * time.Millisecond
	}
}

func defaultRetrier(log *zap.Logger) *retrier {
	return newRetrier(config.LedgerConfig{
		MaxRetries:     defaultMaxRetries,
		RetryBackoffMs: defaultRetryBackoffMs,
	}, log)
}

// run 瞬时错误重试，耗尽后作为内部错误返回，不再可被识别为冲突
func (r *retrier) run(ctx context.Context, op string, fn func() error) error {
	backoff := r.backoff

	var err error
	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		err = fn()
		if !isTransient(err) {
			return err
		}
		if attempt == r.maxRetries {
			break
		}

		r.metrics.RecordConflictRetry()
		r.logger.Warn("store conflict, retrying",
			zap.String("op", op),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}

	return fmt.Errorf("%s: retries exhausted: %v", op, err)
}
