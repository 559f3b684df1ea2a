// Package handler 提供 HTTP 请求处理器
package handler

import (
	"github.com/gin-gonic/gin"

	"z-docgen-ai-api/internal/application/generation"
	"z-docgen-ai-api/internal/application/refinement"
	"z-docgen-ai-api/internal/domain/entity"
	"z-docgen-ai-api/internal/interfaces/http/dto"
)

// FeedbackHandler 反馈与修订处理器
type FeedbackHandler struct {
	coordinator *refinement.Coordinator
}

// NewFeedbackHandler 创建反馈处理器
func NewFeedbackHandler(coordinator *refinement.Coordinator) *FeedbackHandler {
	return &FeedbackHandler{coordinator: coordinator}
}

// Submit 提交反馈
// @Summary 提交反馈
// @Description 记录一条反馈；positive 反馈立即审批目标构件，不触发生成
// @Tags Feedback
// @Accept json
// @Produce json
// @Param body body dto.SubmitFeedbackRequest true "反馈内容"
// @Success 201 {object} dto.Response[entity.FeedbackRecord]
// @Failure 400 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/feedback [post]
func (h *FeedbackHandler) Submit(c *gin.Context) {
	var req dto.SubmitFeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, err.Error())
		return
	}

	record, err := h.coordinator.SubmitFeedback(c.Request.Context(),
		req.ArtifactID, entity.FeedbackKind(req.Kind), req.Suggestion)
	if err != nil {
		dto.FromError(c, err)
		return
	}
	dto.Created(c, record)
}

// ListByArtifact 列出构件的全部反馈
// @Summary 列出构件反馈
// @Tags Feedback
// @Produce json
// @Param aid path string true "构件 ID"
// @Success 200 {object} dto.Response[[]entity.FeedbackRecord]
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/artifacts/{aid}/feedback [get]
func (h *FeedbackHandler) ListByArtifact(c *gin.Context) {
	records, err := h.coordinator.ListFeedback(c.Request.Context(), c.Param("aid"))
	if err != nil {
		dto.FromError(c, err)
		return
	}
	dto.Success(c, records)
}

// Apply 应用一批反馈，发起修订会话
// @Summary 应用反馈
// @Description 对目标构件发起修订；整批反馈已处理时幂等返回当时的应答构件
// @Tags Feedback
// @Accept json
// @Produce text/event-stream
// @Param body body dto.ApplyFeedbackRequest true "反馈 ID 列表"
// @Success 200 "SSE stream 或应答构件"
// @Failure 409 {object} dto.ErrorResponse
// @Router /v1/feedback/apply [post]
func (h *FeedbackHandler) Apply(c *gin.Context) {
	var req dto.ApplyFeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, err.Error())
		return
	}

	result, err := h.coordinator.ApplyFeedback(c.Request.Context(), req.FeedbackIDs, generation.StartOptions{
		Provider:    req.Provider,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		dto.FromError(c, err)
		return
	}

	// 幂等重放：这批反馈已处理过，直接返回当时的应答构件
	if result.Existing != nil {
		dto.Success(c, result.Existing)
		return
	}

	if req.Stream != nil && !*req.Stream {
		dto.Accepted(c, dto.SessionResponse{
			SessionID: result.Session.ID,
			SectionID: result.Session.SectionID,
			State:     string(result.Session.State()),
		})
		return
	}

	streamSession(c, result.Session)
}
