package dto

// GenerateRequest 发起分区生成请求
type GenerateRequest struct {
	Provider    string   `json:"provider"`
	Temperature *float32 `json:"temperature" binding:"omitempty,gte=0,lte=2"`
	MaxTokens   *int     `json:"max_tokens" binding:"omitempty,gt=0"`
	// Stream 为 false 时不挂起 SSE，仅返回会话 ID 供后续订阅
	Stream *bool `json:"stream"`
}

// SubmitFeedbackRequest 提交反馈请求
type SubmitFeedbackRequest struct {
	ArtifactID string `json:"artifact_id" binding:"required,uuid"`
	Kind       string `json:"kind" binding:"required"`
	Suggestion string `json:"suggestion"`
}

// ApplyFeedbackRequest 应用反馈请求
type ApplyFeedbackRequest struct {
	FeedbackIDs []string `json:"feedback_ids" binding:"required,min=1,dive,uuid"`
	Provider    string   `json:"provider"`
	Temperature *float32 `json:"temperature" binding:"omitempty,gte=0,lte=2"`
	MaxTokens   *int     `json:"max_tokens" binding:"omitempty,gt=0"`
	Stream      *bool    `json:"stream"`
}

// SuggestOutlineRequest 大纲建议请求
type SuggestOutlineRequest struct {
	Title        string `json:"title" binding:"required,max=255"`
	Kind         string `json:"kind"`
	Description  string `json:"description" binding:"max=4000"`
	SectionCount int    `json:"section_count" binding:"omitempty,gt=0,lte=24"`
	Provider     string `json:"provider"`
}

// SlideTitlesRequest 幻灯片标题建议请求
type SlideTitlesRequest struct {
	Provider string `json:"provider"`
}

// SessionResponse 会话信息响应
type SessionResponse struct {
	SessionID string `json:"session_id"`
	SectionID string `json:"section_id"`
	State     string `json:"state"`
}

// ListQuery 列表查询参数
type ListQuery struct {
	Page     int `form:"page,default=1" binding:"omitempty,gt=0"`
	PageSize int `form:"page_size,default=20" binding:"omitempty,gt=0,lte=100"`
}
