package model

import (
	"time"
)

// User 账户：订阅档位与积分余额，余额只允许由账本修改
type User struct {
	ID               int64     `gorm:"primaryKey" json:"id"`
	Username         string    `gorm:"size:50;uniqueIndex;not null" json:"username"`
	Email            *string   `gorm:"size:100;uniqueIndex" json:"email,omitempty"`
	SubscriptionTier string    `gorm:"size:20;default:free;not null" json:"subscription_tier"`
	CreditsRemaining int       `gorm:"not null;check:credits_remaining >= 0" json:"credits_remaining"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}
