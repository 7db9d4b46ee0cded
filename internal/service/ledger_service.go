package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/qs3c/creditflow_server/config"
	"github.com/qs3c/creditflow_server/internal/model"
	"github.com/qs3c/creditflow_server/internal/model/dto"
	"github.com/qs3c/creditflow_server/internal/pkg/logger"
	"github.com/qs3c/creditflow_server/internal/pkg/metrics"
	"github.com/qs3c/creditflow_server/internal/repository"
)

const (
	defaultTransactionLimit = 10
	maxTransactionLimit     = 100

	// 档位未知时的重置额度
	fallbackResetCredits = 10
)

// BalanceNotifier 余额变更通知（提交之后调用）
type BalanceNotifier interface {
	PublishBalance(ctx context.Context, userID int64, balance *dto.BalanceInfo) error
}

// LedgerService 积分账本：余额的唯一修改入口
type LedgerService struct {
	db       *gorm.DB
	userRepo *repository.UserRepository
	txnRepo  *repository.TransactionRepository
	retry    *retrier
	notifier BalanceNotifier
	metrics  *metrics.Collector
	logger   *zap.Logger
}

func NewLedgerService(
	db *gorm.DB,
	userRepo *repository.UserRepository,
	txnRepo *repository.TransactionRepository,
	cfg config.LedgerConfig,
	log *zap.Logger,
) *LedgerService {
	return &LedgerService{
		db:       db,
		userRepo: userRepo,
		txnRepo:  txnRepo,
		retry:    newRetrier(cfg, log),
		logger:   logger.OrNop(log),
	}
}

// SetNotifier 设置余额变更通知
func (s *LedgerService) SetNotifier(n BalanceNotifier) {
	s.notifier = n
}

// SetMetrics 设置指标收集器
func (s *LedgerService) SetMetrics(m *metrics.Collector) {
	s.metrics = m
	s.retry.metrics = m
}

// Deduct 原子扣减积分。检查与扣减是同一条条件更新，
// 并发请求中最多 floor(余额/金额) 个能成功。
// 扣减一旦提交就不会再返回普通错误：余额读取失败时返回 *DeductedError。
func (s *LedgerService) Deduct(ctx context.Context, userID int64, amount int) (*dto.BalanceInfo, error) {
	if amount <= 0 {
		return nil, invalidArgument("deduct amount must be positive, got %d", amount)
	}

	var (
		deducted bool
		current  *model.User
	)
	err := s.retry.run(ctx, "deduct", func() error {
		ok, err := s.userRepo.DeductCredits(ctx, userID, amount)
		if err != nil {
			return err
		}
		deducted = ok
		if ok {
			return nil
		}

		// 影响行数为 0 时区分账户不存在与余额不足；
		// 重读时余额已足够说明中间有并发入账，重新扣减
		current, err = s.userRepo.GetByID(ctx, userID)
		if err != nil {
			return err
		}
		if current.CreditsRemaining >= amount {
			return errConflictRetry
		}
		return nil
	})
	if err != nil {
		return nil, mapNotFound(err)
	}

	if !deducted {
		s.metrics.RecordDeductRejected()
		return nil, &InsufficientCreditsError{Required: amount, Available: current.CreditsRemaining}
	}

	s.metrics.RecordDeduct("generate", amount)

	// 扣减已提交，请求取消不能让调用方误以为未扣减
	readCtx := context.WithoutCancel(ctx)
	var user *model.User
	err = s.retry.run(readCtx, "deduct_read", func() error {
		var err error
		user, err = s.userRepo.GetByID(readCtx, userID)
		return err
	})
	if err != nil {
		s.logger.Error("read balance after deduct failed",
			zap.Int64("user_id", userID),
			zap.Int("amount", amount),
			zap.Error(err),
		)
		return nil, &DeductedError{Amount: amount, Err: err}
	}

	info := balanceOf(user)
	s.notify(readCtx, userID, info)
	return info, nil
}

// Refund 退回预扣积分，并记录一条失败流水
func (s *LedgerService) Refund(ctx context.Context, userID int64, amount int, description string) (*dto.BalanceInfo, error) {
	if amount <= 0 {
		return nil, invalidArgument("refund amount must be positive, got %d", amount)
	}

	err := s.retry.run(ctx, "refund", func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			ok, err := s.userRepo.WithTx(tx).AddCredits(ctx, userID, amount)
			if err != nil {
				return err
			}
			if !ok {
				return ErrNotFound
			}
			return s.txnRepo.WithTx(tx).Create(ctx, &model.Transaction{
				UserID:       userID,
				Amount:       0,
				Description:  description,
				Status:       model.TransactionFailed,
				CreditsAdded: 0,
			})
		})
	})
	if err != nil {
		s.logger.Error("refund failed",
			zap.Int64("user_id", userID),
			zap.Int("amount", amount),
			zap.Error(err),
		)
		return nil, mapNotFound(err)
	}

	s.metrics.RecordRefund(amount)
	return s.balanceAfterCommit(ctx, userID)
}

// Grant 变更套餐：档位与余额设为套餐额度，写入一条流水
func (s *LedgerService) Grant(ctx context.Context, userID int64, tier string) (*dto.BalanceInfo, error) {
	plan, ok := model.LookupPlan(tier)
	if !ok {
		return nil, invalidArgument("unknown plan: %s", tier)
	}

	err := s.retry.run(ctx, "grant", func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			users := s.userRepo.WithTx(tx)
			if _, err := users.GetByID(ctx, userID); err != nil {
				return err
			}
			if err := users.SetPlan(ctx, userID, plan.Tier, plan.Credits); err != nil {
				return err
			}
			return s.txnRepo.WithTx(tx).Create(ctx, &model.Transaction{
				UserID:       userID,
				Amount:       plan.Price,
				Description:  fmt.Sprintf("Upgraded to %s plan", plan.Tier),
				Status:       model.TransactionCompleted,
				CreditsAdded: plan.Credits,
			})
		})
	})
	if err != nil {
		return nil, mapNotFound(err)
	}

	s.logger.Info("plan granted",
		zap.Int64("user_id", userID),
		zap.String("tier", plan.Tier),
		zap.Int("credits", plan.Credits),
	)
	return s.balanceAfterCommit(ctx, userID)
}

// Reset 余额重置为当前档位额度
func (s *LedgerService) Reset(ctx context.Context, userID int64) (*dto.BalanceInfo, error) {
	err := s.retry.run(ctx, "reset", func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			users := s.userRepo.WithTx(tx)
			user, err := users.GetByID(ctx, userID)
			if err != nil {
				return err
			}

			credits := fallbackResetCredits
			if plan, ok := model.LookupPlan(user.SubscriptionTier); ok {
				credits = plan.Credits
			}

			if err := users.SetCredits(ctx, userID, credits); err != nil {
				return err
			}
			return s.txnRepo.WithTx(tx).Create(ctx, &model.Transaction{
				UserID:       userID,
				Amount:       0,
				Description:  fmt.Sprintf("Credits reset to %s allotment", user.SubscriptionTier),
				Status:       model.TransactionCompleted,
				CreditsAdded: credits,
			})
		})
	})
	if err != nil {
		return nil, mapNotFound(err)
	}

	return s.balanceAfterCommit(ctx, userID)
}

// GetBalance 查询余额
func (s *LedgerService) GetBalance(ctx context.Context, userID int64) (*dto.BalanceInfo, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, mapNotFound(err)
	}
	return balanceOf(user), nil
}

// ListTransactions 最近的流水，最新在前
func (s *LedgerService) ListTransactions(ctx context.Context, userID int64, limit int) ([]*dto.TransactionItem, error) {
	if limit <= 0 {
		limit = defaultTransactionLimit
	}
	if limit > maxTransactionLimit {
		limit = maxTransactionLimit
	}

	txns, err := s.txnRepo.ListByUserID(ctx, userID, limit)
	if err != nil {
		return nil, err
	}

	items := make([]*dto.TransactionItem, len(txns))
	for i, t := range txns {
		items[i] = &dto.TransactionItem{
			ID:           t.ID,
			Amount:       t.Amount,
			Description:  t.Description,
			Status:       t.Status,
			CreditsAdded: t.CreditsAdded,
			CreatedAt:    t.CreatedAt.Format(time.RFC3339),
		}
	}
	return items, nil
}

// Plans 套餐列表
func (s *LedgerService) Plans() []*dto.PlanItem {
	plans := model.Plans()
	items := make([]*dto.PlanItem, len(plans))
	for i, p := range plans {
		items[i] = &dto.PlanItem{Tier: p.Tier, Credits: p.Credits, Price: p.Price}
	}
	return items
}

// RecordSpend 在调用方事务中写入消费流水
func (s *LedgerService) RecordSpend(ctx context.Context, tx *gorm.DB, userID int64, contentType string, cost int) error {
	return s.txnRepo.WithTx(tx).Create(ctx, &model.Transaction{
		UserID:       userID,
		Amount:       0,
		Description:  fmt.Sprintf("Generated %s content", contentType),
		Status:       model.TransactionCompleted,
		CreditsAdded: -cost,
	})
}

func (s *LedgerService) balanceAfterCommit(ctx context.Context, userID int64) (*dto.BalanceInfo, error) {
	info, err := s.GetBalance(ctx, userID)
	if err != nil {
		return nil, err
	}
	s.notify(ctx, userID, info)
	return info, nil
}

func (s *LedgerService) notify(ctx context.Context, userID int64, info *dto.BalanceInfo) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.PublishBalance(ctx, userID, info); err != nil {
		s.logger.Warn("publish balance failed", zap.Int64("user_id", userID), zap.Error(err))
	}
}

func balanceOf(user *model.User) *dto.BalanceInfo {
	return &dto.BalanceInfo{
		CreditsRemaining: user.CreditsRemaining,
		Tier:             user.SubscriptionTier,
	}
}

func mapNotFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
