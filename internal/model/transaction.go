package model

import (
	"time"
)

const (
	TransactionCompleted = "completed"
	TransactionFailed    = "failed"
)

// Transaction 账本流水，只追加不修改
type Transaction struct {
	ID           int64     `gorm:"primaryKey" json:"id"`
	UserID       int64     `gorm:"not null;index" json:"user_id"`
	Amount       float64   `gorm:"type:decimal(10,2);not null;default:0" json:"amount"`
	Description  string    `gorm:"size:255;not null" json:"description"`
	Status       string    `gorm:"size:20;not null;index" json:"status"` // completed, failed
	CreditsAdded int       `gorm:"not null;default:0" json:"credits_added"`
	CreatedAt    time.Time `gorm:"index" json:"created_at"`
}

func (Transaction) TableName() string {
	return "transactions"
}
