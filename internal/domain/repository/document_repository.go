// Package repository 定义数据访问层接口
package repository

import (
	"context"

	"z-docgen-ai-api/internal/domain/entity"
)

// DocumentRepository 文档仓储接口（文档存储协作方的读侧）
type DocumentRepository interface {
	// GetByID 根据 ID 获取文档，不存在时返回 (nil, nil)
	GetByID(ctx context.Context, id string) (*entity.Document, error)
}

// SectionRepository 分区定义仓储接口（文档存储协作方的读侧）
type SectionRepository interface {
	// GetByID 根据 ID 获取分区定义，不存在时返回 (nil, nil)
	GetByID(ctx context.Context, id string) (*entity.SectionSpec, error)

	// ListByDocument 按 Position 升序返回文档的全部分区
	ListByDocument(ctx context.Context, documentID string) ([]*entity.SectionSpec, error)
}
