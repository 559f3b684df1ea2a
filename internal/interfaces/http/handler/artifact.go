// Package handler 提供 HTTP 请求处理器
package handler

import (
	"encoding/json"
	"time"

	"github.com/gin-gonic/gin"

	"z-docgen-ai-api/internal/domain/entity"
	"z-docgen-ai-api/internal/domain/repository"
	"z-docgen-ai-api/internal/infrastructure/persistence/redis"
	"z-docgen-ai-api/internal/interfaces/http/dto"
	apperrors "z-docgen-ai-api/pkg/errors"
)

const approvedCacheTTL = 5 * time.Minute

// ArtifactHandler 内容构件查询处理器
type ArtifactHandler struct {
	artifacts repository.ArtifactRepository
	cache     *redis.Cache
}

// NewArtifactHandler 创建构件处理器
func NewArtifactHandler(artifacts repository.ArtifactRepository, cache *redis.Cache) *ArtifactHandler {
	return &ArtifactHandler{
		artifacts: artifacts,
		cache:     cache,
	}
}

// Get 获取构件
// @Summary 获取构件
// @Tags Artifacts
// @Produce json
// @Param aid path string true "构件 ID"
// @Success 200 {object} dto.Response[entity.ContentArtifact]
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/artifacts/{aid} [get]
func (h *ArtifactHandler) Get(c *gin.Context) {
	artifact, err := h.artifacts.GetByID(c.Request.Context(), c.Param("aid"))
	if err != nil {
		dto.FromError(c, err)
		return
	}
	if artifact == nil {
		dto.FromError(c, apperrors.ErrArtifactNotFound)
		return
	}
	dto.Success(c, artifact)
}

// ListBySection 按版本号降序列出分区的全部构件
// @Summary 列出分区构件
// @Tags Artifacts
// @Produce json
// @Param sid path string true "分区 ID"
// @Param page query int false "页码"
// @Param page_size query int false "每页数量"
// @Success 200 {object} dto.Response[[]entity.ContentArtifact]
// @Router /v1/sections/{sid}/artifacts [get]
func (h *ArtifactHandler) ListBySection(c *gin.Context) {
	var q dto.ListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		dto.BadRequest(c, err.Error())
		return
	}

	result, err := h.artifacts.ListBySection(c.Request.Context(), c.Param("sid"),
		repository.NewPagination(q.Page, q.PageSize))
	if err != nil {
		dto.FromError(c, err)
		return
	}

	dto.SuccessWithPage(c, result.Items, &dto.PageMeta{
		Page:       result.Page,
		PageSize:   result.PageSize,
		Total:      int(result.Total),
		TotalPages: result.TotalPages,
	})
}

// GetApproved 获取分区当前已审批的构件，带 Redis 缓存
// @Summary 获取分区已审批构件
// @Tags Artifacts
// @Produce json
// @Param sid path string true "分区 ID"
// @Success 200 {object} dto.Response[entity.ContentArtifact]
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/sections/{sid}/approved [get]
func (h *ArtifactHandler) GetApproved(c *gin.Context) {
	ctx := c.Request.Context()
	sectionID := c.Param("sid")

	bytes, err := h.cache.GetOrLoadSafe(ctx, "artifact:approved:"+sectionID, approvedCacheTTL, func() (interface{}, error) {
		artifact, err := h.artifacts.GetApprovedBySection(ctx, sectionID)
		if err != nil {
			return nil, err
		}
		if artifact == nil {
			return nil, apperrors.ErrArtifactNotFound
		}
		return artifact, nil
	})
	if err != nil {
		dto.FromError(c, err)
		return
	}

	var artifact entity.ContentArtifact
	if err := json.Unmarshal(bytes, &artifact); err != nil {
		dto.InternalError(c, "corrupt cached artifact")
		return
	}
	dto.Success(c, &artifact)
}
