package model

import (
	"time"
)

// Project 内容分组，ContentCount 是派生值，只由重新计数写入
type Project struct {
	ID           int64     `gorm:"primaryKey" json:"id"`
	UserID       int64     `gorm:"not null;index" json:"user_id"`
	Name         string    `gorm:"size:100;not null" json:"name"`
	Description  string    `gorm:"type:text" json:"description"`
	ContentCount int       `gorm:"not null;default:0" json:"content_count"`
	CreatedAt    time.Time `gorm:"index" json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (Project) TableName() string {
	return "projects"
}
