// Package middleware 提供 HTTP 中间件
package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"z-docgen-ai-api/pkg/errors"
	"z-docgen-ai-api/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Recovery Panic 恢复中间件
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				// 获取堆栈信息
				stack := string(debug.Stack())

				// 路由参数不在请求 Context 里，补进日志上下文再记录
				ctx := c.Request.Context()
				if did := c.Param("did"); did != "" {
					ctx = logger.WithContext(ctx, logger.DocumentIDKey, did)
				}
				if sid := c.Param("sid"); sid != "" {
					ctx = logger.WithContext(ctx, logger.SectionIDKey, sid)
				}

				logger.Error(ctx, "panic recovered",
					fmt.Errorf("%v", err),
					"stack", stack,
					"path", c.Request.URL.Path,
					"method", c.Request.Method,
				)

				// 返回 500 错误
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"code":    errors.CodeInternalError,
					"message": "internal server error",
				})
			}
		}()

		c.Next()
	}
}
