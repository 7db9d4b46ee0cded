package model

import (
	"time"
)

const (
	ContentTypeBlog   = "blog"
	ContentTypeSocial = "social"
	ContentTypeEmail  = "email"
	ContentTypeImage  = "image"
)

type Content struct {
	ID            int64     `gorm:"primaryKey" json:"id"`
	UserID        int64     `gorm:"not null;index" json:"user_id"`
	Type          string    `gorm:"size:20;not null;index" json:"type"` // blog, social, email, image
	Prompt        string    `gorm:"type:text;not null" json:"prompt"`
	Result        string    `gorm:"type:text;not null" json:"result"`
	CreditsUsed   int       `gorm:"not null;default:0" json:"credits_used"`
	IsFavorite    bool      `gorm:"default:false;index" json:"is_favorite"`
	IsPlaceholder bool      `gorm:"default:false" json:"is_placeholder"`
	ProjectID     *int64    `gorm:"index" json:"project_id,omitempty"`
	CreatedAt     time.Time `gorm:"index" json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (Content) TableName() string {
	return "contents"
}
