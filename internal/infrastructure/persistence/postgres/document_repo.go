// Package postgres 提供 PostgreSQL Repository 实现
package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"z-docgen-ai-api/internal/domain/entity"
)

// DocumentRepository 文档仓储实现
type DocumentRepository struct {
	client *Client
}

// NewDocumentRepository 创建文档仓储
func NewDocumentRepository(client *Client) *DocumentRepository {
	return &DocumentRepository{client: client}
}

func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*entity.Document, error) {
	ctx, span := tracer.Start(ctx, "postgres.DocumentRepository.GetByID")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var doc entity.Document
	if err := db.First(&doc, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return &doc, nil
}

// SectionRepository 分区定义仓储实现
type SectionRepository struct {
	client *Client
}

// NewSectionRepository 创建分区仓储
func NewSectionRepository(client *Client) *SectionRepository {
	return &SectionRepository{client: client}
}

func (r *SectionRepository) GetByID(ctx context.Context, id string) (*entity.SectionSpec, error) {
	ctx, span := tracer.Start(ctx, "postgres.SectionRepository.GetByID")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var spec entity.SectionSpec
	if err := db.First(&spec, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get section spec: %w", err)
	}
	return &spec, nil
}

func (r *SectionRepository) ListByDocument(ctx context.Context, documentID string) ([]*entity.SectionSpec, error) {
	ctx, span := tracer.Start(ctx, "postgres.SectionRepository.ListByDocument")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var specs []*entity.SectionSpec
	if err := db.Where("document_id = ?", documentID).Order("position ASC").Find(&specs).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list section specs: %w", err)
	}
	return specs, nil
}
