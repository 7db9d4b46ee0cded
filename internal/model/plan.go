package model

const (
	TierFree       = "free"
	TierPro        = "pro"
	TierEnterprise = "enterprise"
)

// Plan 订阅档位：积分额度与标价
type Plan struct {
	Tier    string  `json:"tier"`
	Credits int     `json:"credits"`
	Price   float64 `json:"price"`
}

var plans = []Plan{
	{Tier: TierFree, Credits: 10, Price: 0},
	{Tier: TierPro, Credits: 500, Price: 19},
	{Tier: TierEnterprise, Credits: 9999, Price: 99},
}

var contentCosts = map[string]int{
	ContentTypeBlog:   5,
	ContentTypeSocial: 1,
	ContentTypeEmail:  2,
	ContentTypeImage:  10,
}

// LookupPlan 按档位查找套餐
func LookupPlan(tier string) (Plan, bool) {
	for _, p := range plans {
		if p.Tier == tier {
			return p, true
		}
	}
	return Plan{}, false
}

// Plans 返回全部套餐（按价格升序）
func Plans() []Plan {
	out := make([]Plan, len(plans))
	copy(out, plans)
	return out
}

// ContentCost 返回内容类型的固定积分价格
func ContentCost(contentType string) (int, bool) {
	cost, ok := contentCosts[contentType]
	return cost, ok
}

// IsValidContentType 校验内容类型
func IsValidContentType(contentType string) bool {
	_, ok := contentCosts[contentType]
	return ok
}
