// Package entity 定义领域实体
package entity

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// ApprovalState 内容审批状态
type ApprovalState string

const (
	ApprovalStatePending    ApprovalState = "pending"
	ApprovalStateApproved   ApprovalState = "approved"
	ApprovalStateSuperseded ApprovalState = "superseded"
)

// GenerationMetrics 生成开销元数据
type GenerationMetrics struct {
	PromptTokens     int   `json:"prompt_tokens,omitempty"`
	CompletionTokens int   `json:"completion_tokens,omitempty"`
	ElapsedMS        int64 `json:"elapsed_ms,omitempty"`
}

// ContentArtifact 一个分区的一次版本化生成结果。创建后不可变；
// 修订永远产生新版本，旧版本只会被标记为 superseded。
type ContentArtifact struct {
	ID        string        `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	SectionID string        `json:"section_id" gorm:"type:uuid;not null;uniqueIndex:idx_artifact_section_version,priority:1"`
	Version   int           `json:"version" gorm:"not null;uniqueIndex:idx_artifact_section_version,priority:2"`
	Body      string        `json:"body" gorm:"type:text;not null"`
	Provider  string        `json:"provider,omitempty" gorm:"type:varchar(64)"`
	Model     string        `json:"model,omitempty" gorm:"type:varchar(128)"`
	State     ApprovalState `json:"state" gorm:"type:varchar(32);not null;default:'pending';index"`

	Metrics *GenerationMetrics `json:"metrics,omitempty" gorm:"type:jsonb;serializer:json"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// TableName 指定表名
func (ContentArtifact) TableName() string {
	return "content_artifacts"
}

// NewContentArtifact 创建待审批的新版本
func NewContentArtifact(sectionID string, version int, body string) *ContentArtifact {
	return &ContentArtifact{
		ID:        uuid.NewString(),
		SectionID: sectionID,
		Version:   version,
		Body:      body,
		State:     ApprovalStatePending,
		CreatedAt: time.Now(),
	}
}

// EstimateTokens 在 Provider 未上报用量时按词数估算 Token 数
func EstimateTokens(text string) int {
	words := len(strings.Fields(text))
	return int(float64(words) * 1.3)
}
