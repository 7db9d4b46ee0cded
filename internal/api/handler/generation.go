package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/qs3c/creditflow_server/internal/api/middleware"
	"github.com/qs3c/creditflow_server/internal/model/dto"
	"github.com/qs3c/creditflow_server/internal/pkg/response"
	"github.com/qs3c/creditflow_server/internal/service"
)

type GenerationHandler struct {
	generationService *service.GenerationService
}

func NewGenerationHandler(generationService *service.GenerationService) *GenerationHandler {
	return &GenerationHandler{
		generationService: generationService,
	}
}

// Generate 生成内容并扣除积分
// POST /api/v1/generate
func (h *GenerationHandler) Generate(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	var req dto.GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	resp, err := h.generationService.Generate(c.Request.Context(), userID, &req)
	if err != nil {
		handleError(c, err)
		return
	}

	response.Success(c, resp)
}
