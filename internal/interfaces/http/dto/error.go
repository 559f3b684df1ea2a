package dto

import (
	"github.com/gin-gonic/gin"

	apperrors "z-docgen-ai-api/pkg/errors"
)

// FromError 把应用错误映射为 HTTP 错误响应
func FromError(c *gin.Context, err error) {
	appErr := apperrors.AsAppError(err)

	detail := &ErrorDetail{
		ErrorCode: string(appErr.Code),
		Details:   appErr.Detail,
	}
	ErrorWithDetail(c, appErr.HTTPStatus, appErr.Message, detail)
}
