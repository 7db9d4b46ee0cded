package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/qs3c/creditflow_server/internal/model"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// WithTx 返回绑定到事务的仓储
func (r *UserRepository) WithTx(tx *gorm.DB) *UserRepository {
	return &UserRepository{db: tx}
}

func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).Where("username = ?", username).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// DeductCredits 条件扣减，余额检查与扣减在同一条语句中完成。
// 返回 false 表示账户不存在或余额不足，此时不做任何修改。
func (r *UserRepository) DeductCredits(ctx context.Context, id int64, amount int) (bool, error) {
	result := r.db.WithContext(ctx).Model(&model.User{}).
		Where("id = ? AND credits_remaining >= ?", id, amount).
		Update("credits_remaining", gorm.Expr("credits_remaining - ?", amount))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// AddCredits 增加积分（补偿退款）
func (r *UserRepository) AddCredits(ctx context.Context, id int64, amount int) (bool, error) {
	result := r.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", id).
		Update("credits_remaining", gorm.Expr("credits_remaining + ?", amount))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// SetPlan 设置订阅档位并重置余额
func (r *UserRepository) SetPlan(ctx context.Context, id int64, tier string, credits int) error {
	return r.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", id).Updates(map[string]interface{}{
		"subscription_tier": tier,
		"credits_remaining": credits,
	}).Error
}

// SetCredits 直接设置余额
func (r *UserRepository) SetCredits(ctx context.Context, id int64, credits int) error {
	return r.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", id).
		Update("credits_remaining", credits).Error
}
