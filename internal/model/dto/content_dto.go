package dto

// SaveContentRequest 手动保存内容请求
type SaveContentRequest struct {
	Type      string `json:"type" binding:"required,oneof=blog social email image"`
	Prompt    string `json:"prompt" binding:"required,max=4000"`
	Result    string `json:"result" binding:"required"`
	ProjectID *int64 `json:"project_id,omitempty"`
}

// FavoriteRequest 收藏状态请求
type FavoriteRequest struct {
	IsFavorite *bool `json:"is_favorite" binding:"required"`
}

// AssignProjectRequest 分配项目请求，project_id 为空表示移出项目
type AssignProjectRequest struct {
	ProjectID *int64 `json:"project_id"`
}

// ContentFilter 内容列表过滤条件
type ContentFilter struct {
	Type          string
	FavoritesOnly bool
	ProjectID     *int64
}

// ContentItem 内容项
type ContentItem struct {
	ID            int64  `json:"id"`
	Type          string `json:"type"`
	Prompt        string `json:"prompt"`
	Result        string `json:"result"`
	CreditsUsed   int    `json:"credits_used"`
	IsFavorite    bool   `json:"is_favorite"`
	IsPlaceholder bool   `json:"is_placeholder"`
	ProjectID     *int64 `json:"project_id,omitempty"`
	CreatedAt     string `json:"created_at"`
	UpdatedAt     string `json:"updated_at"`
}

// FavoriteResponse 收藏状态响应
type FavoriteResponse struct {
	IsFavorite bool `json:"is_favorite"`
}
