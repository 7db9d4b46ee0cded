package dto

// GenerateRequest 生成内容请求
type GenerateRequest struct {
	Type      string `json:"type" binding:"required"`
	Prompt    string `json:"prompt" binding:"required,max=4000"`
	ProjectID *int64 `json:"project_id,omitempty"`
}

// GenerateResponse 生成内容响应
type GenerateResponse struct {
	ContentID        int64  `json:"content_id"`
	Type             string `json:"type"`
	Result           string `json:"result"`
	CreditsUsed      int    `json:"credits_used"`
	CreditsRemaining int    `json:"credits_remaining"`
	IsPlaceholder    bool   `json:"is_placeholder"`
}
