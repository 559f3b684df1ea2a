// Package handler 提供 HTTP 请求处理器
package handler

import (
	"github.com/gin-gonic/gin"

	"z-docgen-ai-api/internal/application/generation"
	"z-docgen-ai-api/internal/application/outline"
	"z-docgen-ai-api/internal/interfaces/http/dto"
)

// OutlineHandler 大纲与标题建议处理器
type OutlineHandler struct {
	suggester *outline.Suggester
}

// NewOutlineHandler 创建大纲处理器
func NewOutlineHandler(suggester *outline.Suggester) *OutlineHandler {
	return &OutlineHandler{suggester: suggester}
}

// Suggest 为主题生成章节大纲
// @Summary 大纲建议
// @Tags Outline
// @Accept json
// @Produce json
// @Param body body dto.SuggestOutlineRequest true "主题信息"
// @Success 200 {object} dto.Response[[]outline.OutlineItem]
// @Failure 400 {object} dto.ErrorResponse
// @Router /v1/outline/suggest [post]
func (h *OutlineHandler) Suggest(c *gin.Context) {
	var req dto.SuggestOutlineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, err.Error())
		return
	}

	items, err := h.suggester.SuggestOutline(c.Request.Context(),
		req.Title, req.Kind, req.Description, req.SectionCount,
		generation.StartOptions{Provider: req.Provider})
	if err != nil {
		dto.FromError(c, err)
		return
	}
	dto.Success(c, items)
}

// SlideTitles 为文档的每个分区拟定幻灯片标题
// @Summary 幻灯片标题建议
// @Tags Outline
// @Accept json
// @Produce json
// @Param did path string true "文档 ID"
// @Param body body dto.SlideTitlesRequest false "生成参数"
// @Success 200 {object} dto.Response[[]string]
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/documents/{did}/slide-titles [post]
func (h *OutlineHandler) SlideTitles(c *gin.Context) {
	var req dto.SlideTitlesRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			dto.BadRequest(c, err.Error())
			return
		}
	}

	titles, err := h.suggester.SuggestSlideTitles(c.Request.Context(), c.Param("did"),
		generation.StartOptions{Provider: req.Provider})
	if err != nil {
		dto.FromError(c, err)
		return
	}
	dto.Success(c, titles)
}
