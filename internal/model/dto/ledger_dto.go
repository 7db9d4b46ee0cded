package dto

// BalanceInfo 余额信息
type BalanceInfo struct {
	CreditsRemaining int    `json:"credits_remaining"`
	Tier             string `json:"tier"`
}

// UpgradeRequest 变更套餐请求
type UpgradeRequest struct {
	PlanID string `json:"plan_id" binding:"required,max=20"`
}

// UpgradeResponse 变更套餐响应
type UpgradeResponse struct {
	BalanceInfo
	Message string `json:"message"`
}

// TransactionItem 账本流水项
type TransactionItem struct {
	ID           int64   `json:"id"`
	Amount       float64 `json:"amount"`
	Description  string  `json:"description"`
	Status       string  `json:"status"`
	CreditsAdded int     `json:"credits_added"`
	CreatedAt    string  `json:"created_at"`
}

// PlanItem 套餐项
type PlanItem struct {
	Tier    string  `json:"tier"`
	Credits int     `json:"credits"`
	Price   float64 `json:"price"`
}

// InsufficientCreditsData 积分不足时返回给调用方的数据
type InsufficientCreditsData struct {
	Required  int `json:"required"`
	Available int `json:"available"`
}
