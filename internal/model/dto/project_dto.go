package dto

// CreateProjectRequest 创建项目请求
type CreateProjectRequest struct {
	Name        string `json:"name" binding:"required,max=100"`
	Description string `json:"description,omitempty" binding:"omitempty,max=2000"`
}

// UpdateProjectRequest 更新项目请求
type UpdateProjectRequest struct {
	Name        *string `json:"name,omitempty" binding:"omitempty,max=100"`
	Description *string `json:"description,omitempty" binding:"omitempty,max=2000"`
}

// ProjectItem 项目列表项
type ProjectItem struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Description  string `json:"description"`
	ContentCount int    `json:"content_count"`
	CreatedAt    string `json:"created_at"`
	UpdatedAt    string `json:"updated_at"`
}

// ProjectDetail 项目详情（含内容）
type ProjectDetail struct {
	Project  *ProjectItem   `json:"project"`
	Contents []*ContentItem `json:"contents"`
	Total    int            `json:"total"`
}
