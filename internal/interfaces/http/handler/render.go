// Package handler 提供 HTTP 请求处理器
package handler

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"z-docgen-ai-api/internal/application/render"
	"z-docgen-ai-api/internal/infrastructure/persistence/redis"
	"z-docgen-ai-api/internal/interfaces/http/dto"
)

const renderCacheTTL = 10 * time.Minute

// RenderHandler 渲染与导出处理器
type RenderHandler struct {
	builder *render.Builder
	cache   *redis.Cache
}

// NewRenderHandler 创建渲染处理器。cache 可以为 nil，此时每次请求都重建渲染树。
func NewRenderHandler(builder *render.Builder, cache *redis.Cache) *RenderHandler {
	return &RenderHandler{builder: builder, cache: cache}
}

// Tree 构建并返回文档的渲染树
// @Summary 获取渲染树
// @Description 按分区顺序组装已审批内容；缺失分区产生占位节点与告警
// @Tags Render
// @Produce json
// @Param did path string true "文档 ID"
// @Success 200 {object} dto.Response[render.BuildResult]
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/documents/{did}/render [get]
func (h *RenderHandler) Tree(c *gin.Context) {
	ctx := c.Request.Context()
	documentID := c.Param("did")

	if h.cache == nil {
		result, err := h.builder.Build(ctx, documentID)
		if err != nil {
			dto.FromError(c, err)
			return
		}
		dto.Success(c, result)
		return
	}

	bytes, err := h.cache.GetOrLoadSafe(ctx, "render:"+documentID, renderCacheTTL, func() (interface{}, error) {
		return h.builder.Build(ctx, documentID)
	})
	if err != nil {
		dto.FromError(c, err)
		return
	}

	var result render.BuildResult
	if err := json.Unmarshal(bytes, &result); err != nil {
		dto.InternalError(c, "corrupt cached render tree")
		return
	}
	dto.Success(c, &result)
}

// Export 导出文档
// @Summary 导出文档
// @Description 构建渲染树并按指定格式序列化（json 或 markdown）
// @Tags Render
// @Produce json
// @Param did path string true "文档 ID"
// @Param format query string false "导出格式" Enums(json, markdown)
// @Success 200 "序列化文档"
// @Failure 400 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/documents/{did}/export [post]
func (h *RenderHandler) Export(c *gin.Context) {
	format := strings.ToLower(c.DefaultQuery("format", "json"))
	writer, err := render.WriterFor(format)
	if err != nil {
		dto.FromError(c, err)
		return
	}

	result, err := h.builder.Build(c.Request.Context(), c.Param("did"))
	if err != nil {
		dto.FromError(c, err)
		return
	}

	c.Header("Content-Type", writer.ContentType())
	if len(result.Warnings) > 0 {
		c.Header("X-Render-Warnings", strings.Join(result.Warnings, "; "))
	}
	c.Status(http.StatusOK)
	if err := writer.Write(c.Writer, result.Tree); err != nil {
		// 响应头已写出，只能记录
		_ = c.Error(err)
	}
}
