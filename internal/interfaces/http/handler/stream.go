// Package handler 提供 HTTP 请求处理器
package handler

import (
	"io"

	"github.com/gin-gonic/gin"

	"z-docgen-ai-api/internal/application/generation"
	apperrors "z-docgen-ai-api/pkg/errors"
)

// streamSession 通过 SSE 向客户端转发会话事件。
// 事件序列：若干 content 事件，之后恰好一个 completed/error/canceled 终态事件。
// 客户端断开只停止转发，不影响后台生成。
func streamSession(c *gin.Context, sess *generation.Session) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	events, unsubscribe := sess.Subscribe()
	defer unsubscribe()

	c.Stream(func(w io.Writer) bool {
		select {
		case ev, ok := <-events:
			if !ok {
				return false
			}
			switch ev.Type {
			case generation.EventFragment:
				c.SSEvent("content", gin.H{
					"chunk": ev.Fragment.Text,
					"index": ev.Fragment.Index,
				})
				return true

			case generation.EventCompleted:
				c.SSEvent("completed", gin.H{
					"artifact_id": ev.Artifact.ID,
					"version":     ev.Artifact.Version,
					"provider":    ev.Artifact.Provider,
					"model":       ev.Artifact.Model,
					"metrics":     ev.Artifact.Metrics,
				})
				return false

			case generation.EventCanceled:
				c.SSEvent("canceled", gin.H{
					"session_id": sess.ID,
				})
				return false

			default:
				appErr := apperrors.AsAppError(ev.Err)
				c.SSEvent("error", gin.H{
					"code":    appErr.Code,
					"message": appErr.Message,
				})
				return false
			}

		case <-c.Request.Context().Done():
			// 客户端断开
			return false
		}
	})
}
