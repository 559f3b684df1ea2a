// Package entity 定义领域实体
package entity

import (
	"time"
)

// DocumentKind 文档类型，决定导出侧的写入器选择
type DocumentKind string

const (
	DocumentKindDocument  DocumentKind = "document"
	DocumentKindSlideDeck DocumentKind = "slide_deck"
)

// Document 文档实体，由文档存储协作方持有，引擎只读
type Document struct {
	ID          string            `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	OwnerID     string            `json:"owner_id" gorm:"type:uuid;index;not null"`
	Title       string            `json:"title" gorm:"type:varchar(255);not null"`
	Kind        DocumentKind      `json:"kind" gorm:"type:varchar(32);default:'document'"`
	StyleConfig map[string]string `json:"style_config,omitempty" gorm:"type:jsonb;serializer:json"`
	CreatedAt   time.Time         `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt   time.Time         `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName 指定表名
func (Document) TableName() string {
	return "documents"
}
