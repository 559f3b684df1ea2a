// Package entity 定义领域实体
package entity

import (
	"time"

	"github.com/google/uuid"
)

// FeedbackKind 反馈类型
type FeedbackKind string

const (
	FeedbackKindPositive FeedbackKind = "positive"
	FeedbackKindNegative FeedbackKind = "negative"
	FeedbackKindComment  FeedbackKind = "comment"
)

// Valid 检查反馈类型是否合法
func (k FeedbackKind) Valid() bool {
	switch k {
	case FeedbackKindPositive, FeedbackKindNegative, FeedbackKindComment:
		return true
	}
	return false
}

// FeedbackRecord 针对某个构件的一条反馈。提交后除 Processed 与
// ResponseArtifactID 外不再变更，且两者只允许写入一次。
type FeedbackRecord struct {
	ID         string       `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ArtifactID string       `json:"artifact_id" gorm:"type:uuid;index;not null"`
	Kind       FeedbackKind `json:"kind" gorm:"type:varchar(32);not null"`
	Suggestion string       `json:"suggestion,omitempty" gorm:"type:text"`
	Processed  bool         `json:"processed" gorm:"not null;default:false"`

	// ResponseArtifactID 指向应答此反馈而生成的新构件；positive 反馈永远为空
	ResponseArtifactID *string `json:"response_artifact_id,omitempty" gorm:"type:uuid"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// TableName 指定表名
func (FeedbackRecord) TableName() string {
	return "feedback_records"
}

// NewFeedbackRecord 创建未处理的新反馈
func NewFeedbackRecord(artifactID string, kind FeedbackKind, suggestion string) *FeedbackRecord {
	return &FeedbackRecord{
		ID:         uuid.NewString(),
		ArtifactID: artifactID,
		Kind:       kind,
		Suggestion: suggestion,
		CreatedAt:  time.Now(),
	}
}

// MarkProcessed 标记已处理并记录应答构件
func (f *FeedbackRecord) MarkProcessed(responseArtifactID string) {
	f.Processed = true
	if responseArtifactID != "" {
		f.ResponseArtifactID = &responseArtifactID
	}
}
