package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/qs3c/creditflow_server/internal/model"
)

// ProjectCount 项目存储计数与实际计数
type ProjectCount struct {
	ProjectID int64
	Stored    int
	Actual    int
}

type ProjectRepository struct {
	db *gorm.DB
}

func NewProjectRepository(db *gorm.DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

func (r *ProjectRepository) WithTx(tx *gorm.DB) *ProjectRepository {
	return &ProjectRepository{db: tx}
}

func (r *ProjectRepository) Create(ctx context.Context, project *model.Project) error {
	return r.db.WithContext(ctx).Create(project).Error
}

func (r *ProjectRepository) GetByID(ctx context.Context, id int64) (*model.Project, error) {
	var project model.Project
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&project).Error
	if err != nil {
		return nil, err
	}
	return &project, nil
}

// GetByIDAndUser 按 ID 和所有者获取
func (r *ProjectRepository) GetByIDAndUser(ctx context.Context, id, userID int64) (*model.Project, error) {
	var project model.Project
	err := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&project).Error
	if err != nil {
		return nil, err
	}
	return &project, nil
}

// ListByUserID 获取用户的项目列表
func (r *ProjectRepository) ListByUserID(ctx context.Context, userID int64) ([]*model.Project, error) {
	var projects []*model.Project
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).
		Order("created_at DESC").Order("id DESC").
		Find(&projects).Error
	return projects, err
}

func (r *ProjectRepository) UpdateFields(ctx context.Context, id int64, fields map[string]interface{}) error {
	return r.db.WithContext(ctx).Model(&model.Project{}).Where("id = ?", id).Updates(fields).Error
}

func (r *ProjectRepository) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Delete(&model.Project{}, id).Error
}

// RecountContents 用实际内容数覆盖项目计数。
// 计数与写入是同一条语句，不依赖之前存储的值。
func (r *ProjectRepository) RecountContents(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Model(&model.Project{}).Where("id = ?", id).
		Update("content_count", gorm.Expr("(SELECT COUNT(*) FROM contents WHERE contents.project_id = ?)", id)).Error
}

// ListDrifted 找出存储计数与实际内容数不一致的项目
func (r *ProjectRepository) ListDrifted(ctx context.Context) ([]ProjectCount, error) {
	var rows []ProjectCount
	err := r.db.WithContext(ctx).Table("projects").
		Select("projects.id AS project_id, projects.content_count AS stored, COUNT(contents.id) AS actual").
		Joins("LEFT JOIN contents ON contents.project_id = projects.id").
		Group("projects.id, projects.content_count").
		Having("projects.content_count <> COUNT(contents.id)").
		Scan(&rows).Error
	return rows, err
}
