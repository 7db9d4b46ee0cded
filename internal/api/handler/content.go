package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/qs3c/creditflow_server/internal/api/middleware"
	"github.com/qs3c/creditflow_server/internal/model/dto"
	"github.com/qs3c/creditflow_server/internal/pkg/response"
	"github.com/qs3c/creditflow_server/internal/service"
)

type ContentHandler struct {
	contentService *service.ContentService
}

func NewContentHandler(contentService *service.ContentService) *ContentHandler {
	return &ContentHandler{
		contentService: contentService,
	}
}

// List 内容列表
// GET /api/v1/contents?type=blog&favorites=true&project_id=1&page=1&page_size=20
func (h *ContentHandler) List(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	filter := dto.ContentFilter{
		Type: c.DefaultQuery("type", "all"),
	}
	if fav := c.Query("favorites"); fav != "" {
		v, err := strconv.ParseBool(fav)
		if err != nil {
			response.ParamError(c, "favorites 参数无效")
			return
		}
		filter.FavoritesOnly = v
	}
	if pid := c.Query("project_id"); pid != "" {
		id, err := strconv.ParseInt(pid, 10, 64)
		if err != nil {
			response.ParamError(c, "project_id 参数无效")
			return
		}
		filter.ProjectID = &id
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	items, total, err := h.contentService.List(c.Request.Context(), userID, filter, page, pageSize)
	if err != nil {
		handleError(c, err)
		return
	}

	response.SuccessPage(c, total, page, pageSize, items)
}

// Save 手动保存内容
// POST /api/v1/contents
func (h *ContentHandler) Save(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	var req dto.SaveContentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	item, err := h.contentService.Save(c.Request.Context(), userID, &req)
	if err != nil {
		handleError(c, err)
		return
	}

	response.SuccessWithMessage(c, "保存成功", item)
}

// Get 内容详情
// GET /api/v1/contents/:id
func (h *ContentHandler) Get(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}
	contentID, ok := parseID(c, "id")
	if !ok {
		return
	}

	item, err := h.contentService.Get(c.Request.Context(), userID, contentID)
	if err != nil {
		handleError(c, err)
		return
	}

	response.Success(c, item)
}

// Delete 删除内容
// DELETE /api/v1/contents/:id
func (h *ContentHandler) Delete(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}
	contentID, ok := parseID(c, "id")
	if !ok {
		return
	}

	if err := h.contentService.Delete(c.Request.Context(), userID, contentID); err != nil {
		handleError(c, err)
		return
	}

	response.SuccessWithMessage(c, "删除成功", nil)
}

// SetFavorite 设置收藏
// PUT /api/v1/contents/:id/favorite
func (h *ContentHandler) SetFavorite(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}
	contentID, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req dto.FavoriteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	resp, err := h.contentService.SetFavorite(c.Request.Context(), userID, contentID, *req.IsFavorite)
	if err != nil {
		handleError(c, err)
		return
	}

	response.Success(c, resp)
}

// AssignProject 移动到项目，project_id 为 null 时移出项目
// PUT /api/v1/contents/:id/project
func (h *ContentHandler) AssignProject(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}
	contentID, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req dto.AssignProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	item, err := h.contentService.AssignProject(c.Request.Context(), userID, contentID, req.ProjectID)
	if err != nil {
		handleError(c, err)
		return
	}

	response.Success(c, item)
}
