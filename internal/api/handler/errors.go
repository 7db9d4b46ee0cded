package handler

import (
	"errors"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/qs3c/creditflow_server/internal/model/dto"
	"github.com/qs3c/creditflow_server/internal/pkg/response"
	"github.com/qs3c/creditflow_server/internal/service"
)

// handleError 将服务层错误映射为响应码，未识别的错误记入上下文供请求日志输出
func handleError(c *gin.Context, err error) {
	var insufficient *service.InsufficientCreditsError
	switch {
	case errors.As(err, &insufficient):
		response.InsufficientCreditsError(c, "", &dto.InsufficientCreditsData{
			Required:  insufficient.Required,
			Available: insufficient.Available,
		})
	case errors.Is(err, service.ErrInvalidArgument):
		response.ParamError(c, paramMessage(err))
	case errors.Is(err, service.ErrNotFound):
		response.NotFoundError(c, "")
	case errors.Is(err, service.ErrProviderFailed):
		_ = c.Error(err)
		response.ProviderError(c, "")
	default:
		_ = c.Error(err)
		response.ServerError(c, "")
	}
}

// paramMessage 去掉哨兵错误前缀，只保留具体原因
func paramMessage(err error) string {
	msg := err.Error()
	prefix := service.ErrInvalidArgument.Error() + ": "
	return strings.TrimPrefix(msg, prefix)
}

func parseID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		response.ParamError(c, "无效的ID")
		return 0, false
	}
	return id, true
}
