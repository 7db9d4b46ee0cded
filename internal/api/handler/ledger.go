package handler

import (
	"fmt"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/qs3c/creditflow_server/internal/api/middleware"
	"github.com/qs3c/creditflow_server/internal/model/dto"
	"github.com/qs3c/creditflow_server/internal/pkg/response"
	"github.com/qs3c/creditflow_server/internal/service"
)

type LedgerHandler struct {
	ledgerService *service.LedgerService
}

func NewLedgerHandler(ledgerService *service.LedgerService) *LedgerHandler {
	return &LedgerHandler{
		ledgerService: ledgerService,
	}
}

// GetCredits 获取当前余额与档位
// GET /api/v1/user/credits
func (h *LedgerHandler) GetCredits(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	balance, err := h.ledgerService.GetBalance(c.Request.Context(), userID)
	if err != nil {
		handleError(c, err)
		return
	}

	response.Success(c, balance)
}

// ResetCredits 将余额重置为当前档位额度
// POST /api/v1/credits/reset
func (h *LedgerHandler) ResetCredits(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	balance, err := h.ledgerService.Reset(c.Request.Context(), userID)
	if err != nil {
		handleError(c, err)
		return
	}

	response.SuccessWithMessage(c, "积分已重置", balance)
}

// Plans 套餐列表
// GET /api/v1/billing/plans
func (h *LedgerHandler) Plans(c *gin.Context) {
	response.Success(c, h.ledgerService.Plans())
}

// Upgrade 变更套餐
// POST /api/v1/billing/upgrade
func (h *LedgerHandler) Upgrade(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	var req dto.UpgradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	balance, err := h.ledgerService.Grant(c.Request.Context(), userID, req.PlanID)
	if err != nil {
		handleError(c, err)
		return
	}

	response.Success(c, &dto.UpgradeResponse{
		BalanceInfo: *balance,
		Message:     fmt.Sprintf("Successfully upgraded to %s plan", balance.Tier),
	})
}

// Transactions 账本流水，最新在前
// GET /api/v1/billing/transactions?limit=10
func (h *LedgerHandler) Transactions(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))

	items, err := h.ledgerService.ListTransactions(c.Request.Context(), userID, limit)
	if err != nil {
		handleError(c, err)
		return
	}

	response.Success(c, gin.H{"transactions": items})
}
