package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/qs3c/creditflow_server/internal/model"
	"github.com/qs3c/creditflow_server/internal/pkg/logger"
	"github.com/qs3c/creditflow_server/internal/repository"
)

// AccountService 账户开通，新账户为 free 档位并获得该档位额度
type AccountService struct {
	userRepo *repository.UserRepository
	logger   *zap.Logger
}

func NewAccountService(userRepo *repository.UserRepository, log *zap.Logger) *AccountService {
	return &AccountService{
		userRepo: userRepo,
		logger:   logger.OrNop(log),
	}
}

// EnsureAccount 按用户名查找账户，不存在时创建。第二个返回值表示是否新建。
func (s *AccountService) EnsureAccount(ctx context.Context, username, email string) (*model.User, bool, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, false, invalidArgument("username is required")
	}

	user, err := s.userRepo.GetByUsername(ctx, username)
	if err == nil {
		return user, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}

	plan, _ := model.LookupPlan(model.TierFree)
	user = &model.User{
		Username:         username,
		SubscriptionTier: plan.Tier,
		CreditsRemaining: plan.Credits,
	}
	if email = strings.TrimSpace(email); email != "" {
		user.Email = &email
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		// 并发创建时另一方已写入
		if existing, getErr := s.userRepo.GetByUsername(ctx, username); getErr == nil {
			return existing, false, nil
		}
		return nil, false, err
	}

	s.logger.Info("account created", zap.Int64("user_id", user.ID), zap.String("username", username))
	return user, true, nil
}
