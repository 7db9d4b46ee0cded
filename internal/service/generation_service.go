package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/qs3c/creditflow_server/config"
	"github.com/qs3c/creditflow_server/internal/model"
	"github.com/qs3c/creditflow_server/internal/model/dto"
	"github.com/qs3c/creditflow_server/internal/pkg/generator"
	"github.com/qs3c/creditflow_server/internal/pkg/logger"
	"github.com/qs3c/creditflow_server/internal/pkg/metrics"
	"github.com/qs3c/creditflow_server/internal/pkg/queue"
)

const defaultGenerateTimeout = 60 * time.Second

// ImageEnqueuer 图片转存队列
type ImageEnqueuer interface {
	Push(ctx context.Context, msg *queue.ImagePersistMessage) error
}

// GenerationService 生成编排：预扣积分，调用生成服务，
// 成功时内容与消费流水同一事务提交，失败时退回积分。
type GenerationService struct {
	db         *gorm.DB
	ledger     *LedgerService
	contents   *ContentService
	provider   generator.Provider
	imageQueue ImageEnqueuer
	timeout    time.Duration
	retry      *retrier
	metrics    *metrics.Collector
	logger     *zap.Logger
}

func NewGenerationService(
	db *gorm.DB,
	ledger *LedgerService,
	contents *ContentService,
	provider generator.Provider,
	timeout time.Duration,
	log *zap.Logger,
) *GenerationService {
	if timeout <= 0 {
		timeout = defaultGenerateTimeout
	}
	return &GenerationService{
		db:       db,
		ledger:   ledger,
		contents: contents,
		provider: provider,
		timeout:  timeout,
		retry:    defaultRetrier(log),
		logger:   logger.OrNop(log),
	}
}

// SetImageQueue 设置图片转存队列，未设置时图片保留生成服务返回的地址
func (s *GenerationService) SetImageQueue(q ImageEnqueuer) {
	s.imageQueue = q
}

// SetRetry 设置提交冲突的重试策略
func (s *GenerationService) SetRetry(cfg config.LedgerConfig) {
	s.retry.apply(cfg)
}

func (s *GenerationService) SetMetrics(m *metrics.Collector) {
	s.metrics = m
	s.retry.metrics = m
}

// Generate 生成内容
func (s *GenerationService) Generate(ctx context.Context, userID int64, req *dto.GenerateRequest) (*dto.GenerateResponse, error) {
	cost, ok := model.ContentCost(req.Type)
	if !ok {
		return nil, invalidArgument("unknown content type: %s", req.Type)
	}
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return nil, invalidArgument("prompt is required")
	}

	// 目标项目先校验，避免无效请求预扣积分
	if req.ProjectID != nil {
		if _, err := s.contents.projectRepo.GetByIDAndUser(ctx, *req.ProjectID, userID); err != nil {
			return nil, mapNotFound(err)
		}
	}

	reserved, err := s.ledger.Deduct(ctx, userID, cost)
	if err != nil {
		var deducted *DeductedError
		if errors.As(err, &deducted) {
			s.release(ctx, userID, req.Type, cost)
			s.metrics.RecordGeneration(req.Type, "error")
		}
		if isInsufficient(err) {
			s.metrics.RecordGeneration(req.Type, "insufficient")
		}
		return nil, err
	}

	genCtx, cancel := context.WithTimeout(ctx, s.timeout)
	result, err := s.provider.Generate(genCtx, req.Type, prompt)
	cancel()
	if err != nil {
		s.release(ctx, userID, req.Type, cost)
		s.metrics.RecordGeneration(req.Type, "provider_error")
		s.logger.Warn("generation failed",
			zap.Int64("user_id", userID),
			zap.String("type", req.Type),
			zap.Error(err),
		)
		return nil, &ProviderError{Err: err}
	}

	content := &model.Content{
		UserID:        userID,
		Type:          req.Type,
		Prompt:        prompt,
		Result:        result.Content,
		CreditsUsed:   cost,
		IsPlaceholder: result.IsPlaceholder,
		ProjectID:     req.ProjectID,
	}

	err = s.retry.run(ctx, "generate", func() error {
		content.ID = 0
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := s.contents.createInTx(ctx, tx, content); err != nil {
				return err
			}
			return s.ledger.RecordSpend(ctx, tx, userID, req.Type, cost)
		})
	})
	if err != nil {
		s.release(ctx, userID, req.Type, cost)
		s.metrics.RecordGeneration(req.Type, "error")
		s.logger.Error("commit generated content failed",
			zap.Int64("user_id", userID),
			zap.String("type", req.Type),
			zap.Error(err),
		)
		return nil, mapNotFound(err)
	}

	outcome := "success"
	if result.IsPlaceholder {
		outcome = "placeholder"
	}
	s.metrics.RecordGeneration(req.Type, outcome)

	if req.Type == model.ContentTypeImage && !result.IsPlaceholder {
		s.enqueueImage(ctx, content)
	}

	remaining := reserved.CreditsRemaining
	if balance, err := s.ledger.GetBalance(ctx, userID); err == nil {
		remaining = balance.CreditsRemaining
	}

	return &dto.GenerateResponse{
		ContentID:        content.ID,
		Type:             content.Type,
		Result:           content.Result,
		CreditsUsed:      cost,
		CreditsRemaining: remaining,
		IsPlaceholder:    content.IsPlaceholder,
	}, nil
}

// release 退回预扣积分，调用方取消后仍需完成
func (s *GenerationService) release(ctx context.Context, userID int64, contentType string, cost int) {
	refundCtx := context.WithoutCancel(ctx)
	description := fmt.Sprintf("Refund for failed %s generation", contentType)
	if _, err := s.ledger.Refund(refundCtx, userID, cost, description); err != nil {
		s.logger.Error("release reserved credits failed",
			zap.Int64("user_id", userID),
			zap.Int("amount", cost),
			zap.Error(err),
		)
	}
}

func (s *GenerationService) enqueueImage(ctx context.Context, content *model.Content) {
	if s.imageQueue == nil {
		return
	}
	err := s.imageQueue.Push(ctx, &queue.ImagePersistMessage{
		ContentID: content.ID,
		UserID:    content.UserID,
		SourceURL: content.Result,
		Attempt:   1,
	})
	if err != nil {
		// 入队失败不影响本次生成，图片仍使用原地址
		s.logger.Warn("enqueue image persist failed", zap.Int64("content_id", content.ID), zap.Error(err))
	}
}

func isInsufficient(err error) bool {
	return errors.Is(err, ErrInsufficientCredits)
}
