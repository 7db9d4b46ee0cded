package service

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/qs3c/creditflow_server/config"
	"github.com/qs3c/creditflow_server/internal/model"
	"github.com/qs3c/creditflow_server/internal/model/dto"
	"github.com/qs3c/creditflow_server/internal/repository"
)

type ProjectService struct {
	db          *gorm.DB
	projectRepo *repository.ProjectRepository
	contentRepo *repository.ContentRepository
	retry       *retrier
}

func NewProjectService(
	db *gorm.DB,
	projectRepo *repository.ProjectRepository,
	contentRepo *repository.ContentRepository,
) *ProjectService {
	return &ProjectService{
		db:          db,
		projectRepo: projectRepo,
		contentRepo: contentRepo,
		retry:       defaultRetrier(nil),
	}
}

// SetRetry 设置删除时解除关联冲突的重试策略
func (s *ProjectService) SetRetry(cfg config.LedgerConfig) {
	s.retry.apply(cfg)
}

// Create 创建项目
func (s *ProjectService) Create(ctx context.Context, userID int64, req *dto.CreateProjectRequest) (*dto.ProjectItem, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, invalidArgument("project name is required")
	}

	project := &model.Project{
		UserID:      userID,
		Name:        name,
		Description: strings.TrimSpace(req.Description),
	}
	if err := s.projectRepo.Create(ctx, project); err != nil {
		return nil, err
	}

	return toProjectItem(project), nil
}

// List 获取项目列表
func (s *ProjectService) List(ctx context.Context, userID int64) ([]*dto.ProjectItem, int, error) {
	projects, err := s.projectRepo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, 0, err
	}

	items := make([]*dto.ProjectItem, len(projects))
	for i, p := range projects {
		items[i] = toProjectItem(p)
	}
	return items, len(items), nil
}

// Get 获取项目及其内容
func (s *ProjectService) Get(ctx context.Context, userID, projectID int64) (*dto.ProjectDetail, error) {
	project, err := s.projectRepo.GetByIDAndUser(ctx, projectID, userID)
	if err != nil {
		return nil, mapNotFound(err)
	}

	contents, err := s.contentRepo.ListByProjectID(ctx, project.ID)
	if err != nil {
		return nil, err
	}

	return &dto.ProjectDetail{
		Project:  toProjectItem(project),
		Contents: toContentItems(contents),
		Total:    len(contents),
	}, nil
}

// Update 更新名称或描述
func (s *ProjectService) Update(ctx context.Context, userID, projectID int64, req *dto.UpdateProjectRequest) (*dto.ProjectItem, error) {
	if _, err := s.projectRepo.GetByIDAndUser(ctx, projectID, userID); err != nil {
		return nil, mapNotFound(err)
	}

	fields := make(map[string]interface{})
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, invalidArgument("project name cannot be empty")
		}
		fields["name"] = name
	}
	if req.Description != nil {
		fields["description"] = strings.TrimSpace(*req.Description)
	}

	if len(fields) > 0 {
		if err := s.projectRepo.UpdateFields(ctx, projectID, fields); err != nil {
			return nil, err
		}
	}

	project, err := s.projectRepo.GetByIDAndUser(ctx, projectID, userID)
	if err != nil {
		return nil, mapNotFound(err)
	}
	return toProjectItem(project), nil
}

// Delete 删除项目，项目下的内容保留并移出项目
func (s *ProjectService) Delete(ctx context.Context, userID, projectID int64) error {
	err := s.retry.run(ctx, "delete_project", func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			projects := s.projectRepo.WithTx(tx)
			if _, err := projects.GetByIDAndUser(ctx, projectID, userID); err != nil {
				return err
			}
			if err := s.contentRepo.WithTx(tx).DetachProject(ctx, projectID); err != nil {
				return err
			}
			return projects.Delete(ctx, projectID)
		})
	})
	return mapNotFound(err)
}

func toProjectItem(p *model.Project) *dto.ProjectItem {
	return &dto.ProjectItem{
		ID:           p.ID,
		Name:         p.Name,
		Description:  p.Description,
		ContentCount: p.ContentCount,
		CreatedAt:    p.CreatedAt.Format(time.RFC3339),
		UpdatedAt:    p.UpdatedAt.Format(time.RFC3339),
	}
}
