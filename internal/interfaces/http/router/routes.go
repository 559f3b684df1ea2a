// Package router 提供 HTTP 路由配置
package router

import (
	"github.com/gin-gonic/gin"
)

// RegisterV1Routes 注册 v1 版本路由
func RegisterV1Routes(v1 *gin.RouterGroup, h Handlers) {
	// 分区生成
	sections := v1.Group("/sections")
	{
		sections.POST("/:sid/generate", h.Generation.Generate)
		sections.GET("/:sid/stream", h.Generation.Stream)
		sections.POST("/:sid/cancel", h.Generation.Cancel)

		sections.GET("/:sid/artifacts", h.Artifact.ListBySection)
		sections.GET("/:sid/approved", h.Artifact.GetApproved)
	}

	// 构件查询与反馈
	artifacts := v1.Group("/artifacts")
	{
		artifacts.GET("/:aid", h.Artifact.Get)
		artifacts.GET("/:aid/feedback", h.Feedback.ListByArtifact)
	}

	// 反馈提交与应用
	feedback := v1.Group("/feedback")
	{
		feedback.POST("", h.Feedback.Submit)
		feedback.POST("/apply", h.Feedback.Apply)
	}

	// 文档渲染、导出与标题建议
	documents := v1.Group("/documents")
	{
		documents.GET("/:did/render", h.Render.Tree)
		documents.POST("/:did/export", h.Render.Export)
		documents.POST("/:did/slide-titles", h.Outline.SlideTitles)
	}

	// 大纲建议
	outline := v1.Group("/outline")
	{
		outline.POST("/suggest", h.Outline.Suggest)
	}
}
