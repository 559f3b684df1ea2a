package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"z-docgen-ai-api/internal/domain/entity"
)

// FeedbackRepository 反馈仓储实现
type FeedbackRepository struct {
	client *Client
}

// NewFeedbackRepository 创建反馈仓储
func NewFeedbackRepository(client *Client) *FeedbackRepository {
	return &FeedbackRepository{client: client}
}

func (r *FeedbackRepository) Create(ctx context.Context, record *entity.FeedbackRecord) error {
	ctx, span := tracer.Start(ctx, "postgres.FeedbackRepository.Create")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Create(record).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create feedback record: %w", err)
	}
	return nil
}

func (r *FeedbackRepository) GetByID(ctx context.Context, id string) (*entity.FeedbackRecord, error) {
	ctx, span := tracer.Start(ctx, "postgres.FeedbackRepository.GetByID")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var rec entity.FeedbackRecord
	if err := db.First(&rec, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get feedback record: %w", err)
	}
	return &rec, nil
}

func (r *FeedbackRepository) GetByIDs(ctx context.Context, ids []string) ([]*entity.FeedbackRecord, error) {
	ctx, span := tracer.Start(ctx, "postgres.FeedbackRepository.GetByIDs")
	defer span.End()

	if len(ids) == 0 {
		return nil, nil
	}

	db := getDB(ctx, r.client.db)
	var records []*entity.FeedbackRecord
	if err := db.Where("id IN ?", ids).Find(&records).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get feedback records: %w", err)
	}
	return records, nil
}

func (r *FeedbackRepository) ListByArtifact(ctx context.Context, artifactID string) ([]*entity.FeedbackRecord, error) {
	ctx, span := tracer.Start(ctx, "postgres.FeedbackRepository.ListByArtifact")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var records []*entity.FeedbackRecord
	if err := db.Where("artifact_id = ?", artifactID).
		Order("created_at ASC").
		Find(&records).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list feedback records: %w", err)
	}
	return records, nil
}

func (r *FeedbackRepository) MarkProcessed(ctx context.Context, ids []string, responseArtifactID string) error {
	ctx, span := tracer.Start(ctx, "postgres.FeedbackRepository.MarkProcessed")
	defer span.End()

	if len(ids) == 0 {
		return nil
	}

	db := getDB(ctx, r.client.db)
	if err := db.Model(&entity.FeedbackRecord{}).
		Where("id IN ? AND processed = ?", ids, false).
		Updates(map[string]any{
			"processed":            true,
			"response_artifact_id": responseArtifactID,
		}).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to mark feedback processed: %w", err)
	}
	return nil
}
