package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/qs3c/creditflow_server/internal/model"
	"github.com/qs3c/creditflow_server/internal/model/dto"
)

type ContentRepository struct {
	db *gorm.DB
}

func NewContentRepository(db *gorm.DB) *ContentRepository {
	return &ContentRepository{db: db}
}

func (r *ContentRepository) WithTx(tx *gorm.DB) *ContentRepository {
	return &ContentRepository{db: tx}
}

func (r *ContentRepository) Create(ctx context.Context, content *model.Content) error {
	return r.db.WithContext(ctx).Create(content).Error
}

// GetByIDAndUser 按 ID 和所有者获取，不属于该用户时与不存在一样返回 ErrRecordNotFound
func (r *ContentRepository) GetByIDAndUser(ctx context.Context, id, userID int64) (*model.Content, error) {
	var content model.Content
	err := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&content).Error
	if err != nil {
		return nil, err
	}
	return &content, nil
}

// UpdateFavorite 更新收藏状态
func (r *ContentRepository) UpdateFavorite(ctx context.Context, id, userID int64, isFavorite bool) error {
	return r.db.WithContext(ctx).Model(&model.Content{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update("is_favorite", isFavorite).Error
}

// UpdateProject 更新所属项目，projectID 为 nil 时移出项目
func (r *ContentRepository) UpdateProject(ctx context.Context, id, userID int64, projectID *int64) error {
	return r.db.WithContext(ctx).Model(&model.Content{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update("project_id", projectID).Error
}

// UpdateResult 更新生成结果（图片转存后替换地址）
func (r *ContentRepository) UpdateResult(ctx context.Context, id int64, result string) error {
	return r.db.WithContext(ctx).Model(&model.Content{}).Where("id = ?", id).
		Update("result", result).Error
}

// DeleteByIDAndUser 删除内容，返回删除行数
func (r *ContentRepository) DeleteByIDAndUser(ctx context.Context, id, userID int64) (int64, error) {
	result := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&model.Content{})
	return result.RowsAffected, result.Error
}

// DetachProject 将项目下的内容全部移出
func (r *ContentRepository) DetachProject(ctx context.Context, projectID int64) error {
	return r.db.WithContext(ctx).Model(&model.Content{}).Where("project_id = ?", projectID).
		Update("project_id", nil).Error
}

// ListByUserID 获取用户的内容列表
func (r *ContentRepository) ListByUserID(ctx context.Context, userID int64, filter dto.ContentFilter, page, pageSize int) ([]*model.Content, int64, error) {
	var contents []*model.Content
	var total int64

	query := r.db.WithContext(ctx).Model(&model.Content{}).Where("user_id = ?", userID)

	if filter.Type != "" && filter.Type != "all" {
		query = query.Where("type = ?", filter.Type)
	}
	if filter.FavoritesOnly {
		query = query.Where("is_favorite = ?", true)
	}
	if filter.ProjectID != nil {
		query = query.Where("project_id = ?", *filter.ProjectID)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	if err := query.Order("created_at DESC").Order("id DESC").Offset(offset).Limit(pageSize).Find(&contents).Error; err != nil {
		return nil, 0, err
	}

	return contents, total, nil
}

// ListByProjectID 获取项目下的全部内容
func (r *ContentRepository) ListByProjectID(ctx context.Context, projectID int64) ([]*model.Content, error) {
	var contents []*model.Content
	err := r.db.WithContext(ctx).Where("project_id = ?", projectID).
		Order("created_at DESC").Order("id DESC").
		Find(&contents).Error
	return contents, err
}

// CountByProjectID 统计项目下的内容数
func (r *ContentRepository) CountByProjectID(ctx context.Context, projectID int64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Content{}).Where("project_id = ?", projectID).Count(&count).Error
	return count, err
}
