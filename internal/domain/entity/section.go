// Package entity 定义领域实体
package entity

import (
	"time"
)

// ContentKind 分区内容类型
type ContentKind string

const (
	ContentKindText       ContentKind = "text"
	ContentKindBulletList ContentKind = "bullet_list"
	ContentKindSlide      ContentKind = "slide"
)

// Valid 检查内容类型是否合法
func (k ContentKind) Valid() bool {
	switch k {
	case ContentKindText, ContentKindBulletList, ContentKindSlide:
		return true
	}
	return false
}

// SectionSpec 分区定义，由文档存储协作方持有，引擎只读
// Position 在文档内唯一，决定渲染顺序。
type SectionSpec struct {
	ID         string            `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	DocumentID string            `json:"document_id" gorm:"type:uuid;not null;uniqueIndex:idx_section_doc_pos,priority:1"`
	Title      string            `json:"title" gorm:"type:varchar(255);not null"`
	Position   int               `json:"position" gorm:"not null;uniqueIndex:idx_section_doc_pos,priority:2"`
	Kind       ContentKind       `json:"kind" gorm:"type:varchar(32);not null;default:'text'"`
	GenParams  map[string]string `json:"gen_params,omitempty" gorm:"type:jsonb;serializer:json"`
	CreatedAt  time.Time         `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt  time.Time         `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName 指定表名
func (SectionSpec) TableName() string {
	return "section_specs"
}

// Param 读取生成参数，缺省时返回 fallback
func (s *SectionSpec) Param(key, fallback string) string {
	if s == nil || s.GenParams == nil {
		return fallback
	}
	if v, ok := s.GenParams[key]; ok && v != "" {
		return v
	}
	return fallback
}
