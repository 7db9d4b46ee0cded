package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/qs3c/creditflow_server/config"
	"github.com/qs3c/creditflow_server/internal/model"
	"github.com/qs3c/creditflow_server/internal/model/dto"
	"github.com/qs3c/creditflow_server/internal/pkg/logger"
	"github.com/qs3c/creditflow_server/internal/repository"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// ContentService 内容存储。所有操作按 (userID, contentID) 限定，
// 不属于当前用户的内容一律视为不存在。
type ContentService struct {
	db          *gorm.DB
	contentRepo *repository.ContentRepository
	projectRepo *repository.ProjectRepository
	aggregate   *AggregateMaintainer
	retry       *retrier
	logger      *zap.Logger
}

func NewContentService(
	db *gorm.DB,
	contentRepo *repository.ContentRepository,
	projectRepo *repository.ProjectRepository,
	aggregate *AggregateMaintainer,
	log *zap.Logger,
) *ContentService {
	return &ContentService{
		db:          db,
		contentRepo: contentRepo,
		projectRepo: projectRepo,
		aggregate:   aggregate,
		retry:       defaultRetrier(log),
		logger:      logger.OrNop(log),
	}
}

// SetRetry 设置成员变更冲突的重试策略
func (s *ContentService) SetRetry(cfg config.LedgerConfig) {
	s.retry.apply(cfg)
}

// Save 手动保存内容，不扣积分，默认收藏
func (s *ContentService) Save(ctx context.Context, userID int64, req *dto.SaveContentRequest) (*dto.ContentItem, error) {
	if !model.IsValidContentType(req.Type) {
		return nil, invalidArgument("unknown content type: %s", req.Type)
	}
	if strings.TrimSpace(req.Result) == "" {
		return nil, invalidArgument("result is required")
	}

	content := &model.Content{
		UserID:      userID,
		Type:        req.Type,
		Prompt:      req.Prompt,
		Result:      req.Result,
		CreditsUsed: 0,
		IsFavorite:  true,
		ProjectID:   req.ProjectID,
	}

	err := s.retry.run(ctx, "save_content", func() error {
		content.ID = 0
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return s.createInTx(ctx, tx, content)
		})
	})
	if err != nil {
		return nil, mapNotFound(err)
	}

	return toContentItem(content), nil
}

// createInTx 在调用方事务中创建内容并重算所属项目计数
func (s *ContentService) createInTx(ctx context.Context, tx *gorm.DB, content *model.Content) error {
	if content.ProjectID != nil {
		if _, err := s.projectRepo.WithTx(tx).GetByIDAndUser(ctx, *content.ProjectID, content.UserID); err != nil {
			return mapNotFound(err)
		}
	}

	if err := s.contentRepo.WithTx(tx).Create(ctx, content); err != nil {
		return err
	}

	return s.aggregate.Recount(ctx, tx, content.ProjectID)
}

// Get 获取内容
func (s *ContentService) Get(ctx context.Context, userID, contentID int64) (*dto.ContentItem, error) {
	content, err := s.contentRepo.GetByIDAndUser(ctx, contentID, userID)
	if err != nil {
		return nil, mapNotFound(err)
	}
	return toContentItem(content), nil
}

// Delete 删除内容并重算原项目计数
func (s *ContentService) Delete(ctx context.Context, userID, contentID int64) error {
	err := s.retry.run(ctx, "delete_content", func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			contents := s.contentRepo.WithTx(tx)

			content, err := contents.GetByIDAndUser(ctx, contentID, userID)
			if err != nil {
				return err
			}

			rows, err := contents.DeleteByIDAndUser(ctx, contentID, userID)
			if err != nil {
				return err
			}
			if rows == 0 {
				return ErrNotFound
			}

			return s.aggregate.Recount(ctx, tx, content.ProjectID)
		})
	})
	return mapNotFound(err)
}

// SetFavorite 设置收藏状态，重复设置结果相同
func (s *ContentService) SetFavorite(ctx context.Context, userID, contentID int64, isFavorite bool) (*dto.FavoriteResponse, error) {
	if _, err := s.contentRepo.GetByIDAndUser(ctx, contentID, userID); err != nil {
		return nil, mapNotFound(err)
	}

	if err := s.contentRepo.UpdateFavorite(ctx, contentID, userID, isFavorite); err != nil {
		return nil, err
	}

	return &dto.FavoriteResponse{IsFavorite: isFavorite}, nil
}

// AssignProject 移动内容到项目（nil 为移出），新旧项目在同一事务中重算
func (s *ContentService) AssignProject(ctx context.Context, userID, contentID int64, projectID *int64) (*dto.ContentItem, error) {
	var updated *model.Content

	err := s.retry.run(ctx, "assign_project", func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			contents := s.contentRepo.WithTx(tx)

			content, err := contents.GetByIDAndUser(ctx, contentID, userID)
			if err != nil {
				return err
			}

			// 目标项目必须属于同一用户
			if projectID != nil {
				if _, err := s.projectRepo.WithTx(tx).GetByIDAndUser(ctx, *projectID, userID); err != nil {
					return err
				}
			}

			if err := contents.UpdateProject(ctx, contentID, userID, projectID); err != nil {
				return err
			}

			if err := s.aggregate.Recount(ctx, tx, content.ProjectID, projectID); err != nil {
				return err
			}

			updated, err = contents.GetByIDAndUser(ctx, contentID, userID)
			return err
		})
	})
	if err != nil {
		return nil, mapNotFound(err)
	}

	return toContentItem(updated), nil
}

// List 获取内容列表，最新在前
func (s *ContentService) List(ctx context.Context, userID int64, filter dto.ContentFilter, page, pageSize int) ([]*dto.ContentItem, int64, error) {
	page, pageSize = normalizePage(page, pageSize)

	if filter.Type != "" && filter.Type != "all" && !model.IsValidContentType(filter.Type) {
		return nil, 0, invalidArgument("unknown content type: %s", filter.Type)
	}

	contents, total, err := s.contentRepo.ListByUserID(ctx, userID, filter, page, pageSize)
	if err != nil {
		return nil, 0, err
	}

	return toContentItems(contents), total, nil
}

func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return page, pageSize
}

func toContentItem(c *model.Content) *dto.ContentItem {
	return &dto.ContentItem{
		ID:            c.ID,
		Type:          c.Type,
		Prompt:        c.Prompt,
		Result:        c.Result,
		CreditsUsed:   c.CreditsUsed,
		IsFavorite:    c.IsFavorite,
		IsPlaceholder: c.IsPlaceholder,
		ProjectID:     c.ProjectID,
		CreatedAt:     c.CreatedAt.Format(time.RFC3339),
		UpdatedAt:     c.UpdatedAt.Format(time.RFC3339),
	}
}

func toContentItems(contents []*model.Content) []*dto.ContentItem {
	items := make([]*dto.ContentItem, len(contents))
	for i, c := range contents {
		items[i] = toContentItem(c)
	}
	return items
}
