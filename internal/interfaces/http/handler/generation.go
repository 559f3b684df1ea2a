// Package handler 提供 HTTP 请求处理器
package handler

import (
	"github.com/gin-gonic/gin"

	"z-docgen-ai-api/internal/application/generation"
	"z-docgen-ai-api/internal/interfaces/http/dto"
)

// GenerationHandler 分区生成处理器
type GenerationHandler struct {
	manager *generation.Manager
}

// NewGenerationHandler 创建生成处理器
func NewGenerationHandler(manager *generation.Manager) *GenerationHandler {
	return &GenerationHandler{manager: manager}
}

// Generate 发起分区生成
// @Summary 发起分区生成
// @Description 为分区发起一次生成会话，默认以 SSE 流式返回内容片段
// @Tags Generation
// @Accept json
// @Produce text/event-stream
// @Param sid path string true "分区 ID"
// @Param body body dto.GenerateRequest false "生成参数"
// @Success 200 "SSE stream"
// @Failure 404 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse
// @Router /v1/sections/{sid}/generate [post]
func (h *GenerationHandler) Generate(c *gin.Context) {
	sectionID := c.Param("sid")

	var req dto.GenerateRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			dto.BadRequest(c, err.Error())
			return
		}
	}

	sess, err := h.manager.StartGeneration(c.Request.Context(), sectionID, generation.StartOptions{
		Provider:    req.Provider,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		dto.FromError(c, err)
		return
	}

	if req.Stream != nil && !*req.Stream {
		dto.Accepted(c, dto.SessionResponse{
			SessionID: sess.ID,
			SectionID: sess.SectionID,
			State:     string(sess.State()),
		})
		return
	}

	streamSession(c, sess)
}

// Stream 订阅分区进行中会话的事件流
// @Summary 订阅生成事件流
// @Description 以 SSE 订阅分区当前会话；晚到的订阅者会先收到已产生的片段
// @Tags Generation
// @Produce text/event-stream
// @Param sid path string true "分区 ID"
// @Success 200 "SSE stream"
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/sections/{sid}/stream [get]
func (h *GenerationHandler) Stream(c *gin.Context) {
	sess := h.manager.Get(c.Param("sid"))
	if sess == nil {
		dto.NotFound(c, "no active generation session for section")
		return
	}
	streamSession(c, sess)
}

// Cancel 取消分区进行中的会话
// @Summary 取消生成会话
// @Tags Generation
// @Produce json
// @Param sid path string true "分区 ID"
// @Success 200 {object} dto.Response[dto.SessionResponse]
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/sections/{sid}/cancel [post]
func (h *GenerationHandler) Cancel(c *gin.Context) {
	sectionID := c.Param("sid")
	if !h.manager.Cancel(sectionID) {
		dto.NotFound(c, "no active generation session for section")
		return
	}
	dto.Success(c, gin.H{"section_id": sectionID, "canceled": true})
}
