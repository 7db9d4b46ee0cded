package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"

	"gorm.io/gorm"

	"github.com/qs3c/creditflow_server/internal/model"
)

var seq int64

func nextSeq() int64 {
	return atomic.AddInt64(&seq, 1)
}

// TestUser 创建测试用户，默认 free 档位 10 积分
func TestUser(t *testing.T, db *gorm.DB, opts ...func(*model.User)) *model.User {
	t.Helper()

	n := nextSeq()
	email := fmt.Sprintf("test_%d@example.com", n)
	user := &model.User{
		Username:         fmt.Sprintf("testuser_%d", n),
		Email:            &email,
		SubscriptionTier: model.TierFree,
		CreditsRemaining: 10,
	}

	for _, opt := range opts {
		opt(user)
	}

	if err := db.Create(user).Error; err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}

	return user
}

// WithUsername 设置用户名
func WithUsername(username string) func(*model.User) {
	return func(u *model.User) {
		u.Username = username
	}
}

// WithCredits 设置积分余额
func WithCredits(credits int) func(*model.User) {
	return func(u *model.User) {
		u.CreditsRemaining = credits
	}
}

// WithTier 设置订阅档位
func WithTier(tier string) func(*model.User) {
	return func(u *model.User) {
		u.SubscriptionTier = tier
	}
}

// TestProject 创建测试项目
func TestProject(t *testing.T, db *gorm.DB, userID int64, opts ...func(*model.Project)) *model.Project {
	t.Helper()

	project := &model.Project{
		UserID: userID,
		Name:   fmt.Sprintf("Test Project %d", nextSeq()),
	}

	for _, opt := range opts {
		opt(project)
	}

	if err := db.Create(project).Error; err != nil {
		t.Fatalf("Failed to create test project: %v", err)
	}

	return project
}

// WithContentCount 直接写入存储计数（用于构造漂移）
func WithContentCount(count int) func(*model.Project) {
	return func(p *model.Project) {
		p.ContentCount = count
	}
}

// TestContent 创建测试内容，不经过账本也不维护项目计数
func TestContent(t *testing.T, db *gorm.DB, userID int64, opts ...func(*model.Content)) *model.Content {
	t.Helper()

	content := &model.Content{
		UserID: userID,
		Type:   model.ContentTypeBlog,
		Prompt: "test prompt",
		Result: fmt.Sprintf("test result %d", nextSeq()),
	}

	for _, opt := range opts {
		opt(content)
	}

	if err := db.Create(content).Error; err != nil {
		t.Fatalf("Failed to create test content: %v", err)
	}

	return content
}

// InProject 设置所属项目
func InProject(projectID int64) func(*model.Content) {
	return func(c *model.Content) {
		c.ProjectID = &projectID
	}
}

// WithContentType 设置内容类型
func WithContentType(contentType string) func(*model.Content) {
	return func(c *model.Content) {
		c.Type = contentType
	}
}

// WithFavorite 设置收藏
func WithFavorite(isFavorite bool) func(*model.Content) {
	return func(c *model.Content) {
		c.IsFavorite = isFavorite
	}
}
