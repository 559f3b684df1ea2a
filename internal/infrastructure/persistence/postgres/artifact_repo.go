// Package postgres 提供 PostgreSQL Repository 实现
package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"z-docgen-ai-api/internal/domain/entity"
	"z-docgen-ai-api/internal/domain/repository"
)

// ArtifactRepository 内容构件仓储实现
type ArtifactRepository struct {
	client *Client
}

// NewArtifactRepository 创建构件仓储
func NewArtifactRepository(client *Client) *ArtifactRepository {
	return &ArtifactRepository{client: client}
}

func (r *ArtifactRepository) Create(ctx context.Context, artifact *entity.ContentArtifact) error {
	ctx, span := tracer.Start(ctx, "postgres.ArtifactRepository.Create")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Create(artifact).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create content artifact: %w", err)
	}
	return nil
}

func (r *ArtifactRepository) GetByID(ctx context.Context, id string) (*entity.ContentArtifact, error) {
	ctx, span := tracer.Start(ctx, "postgres.ArtifactRepository.GetByID")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var art entity.ContentArtifact
	if err := db.First(&art, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get content artifact: %w", err)
	}
	return &art, nil
}

func (r *ArtifactRepository) GetLatestBySection(ctx context.Context, sectionID string) (*entity.ContentArtifact, error) {
	ctx, span := tracer.Start(ctx, "postgres.ArtifactRepository.GetLatestBySection")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var art entity.ContentArtifact
	if err := db.Where("section_id = ?", sectionID).Order("version DESC").First(&art).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get latest artifact: %w", err)
	}
	return &art, nil
}

func (r *ArtifactRepository) GetApprovedBySection(ctx context.Context, sectionID string) (*entity.ContentArtifact, error) {
	ctx, span := tracer.Start(ctx, "postgres.ArtifactRepository.GetApprovedBySection")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var art entity.ContentArtifact
	err := db.Where("section_id = ? AND state = ?", sectionID, entity.ApprovalStateApproved).First(&art).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get approved artifact: %w", err)
	}
	return &art, nil
}

func (r *ArtifactRepository) GetLatestVersionNo(ctx context.Context, sectionID string) (int, error) {
	ctx, span := tracer.Start(ctx, "postgres.ArtifactRepository.GetLatestVersionNo")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var maxNo *int
	if err := db.Model(&entity.ContentArtifact{}).
		Where("section_id = ?", sectionID).
		Select("MAX(version)").
		Scan(&maxNo).Error; err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("failed to get latest version: %w", err)
	}
	if maxNo == nil {
		return 0, nil
	}
	return *maxNo, nil
}

func (r *ArtifactRepository) ListBySection(ctx context.Context, sectionID string, pagination repository.Pagination) (*repository.PagedResult[*entity.ContentArtifact], error) {
	ctx, span := tracer.Start(ctx, "postgres.ArtifactRepository.ListBySection")
	defer span.End()

	db := getDB(ctx, r.client.db)
	query := db.Model(&entity.ContentArtifact{}).Where("section_id = ?", sectionID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to count artifacts: %w", err)
	}

	var artifacts []*entity.ContentArtifact
	if err := query.Order("version DESC").
		Offset(pagination.Offset()).
		Limit(pagination.Limit()).
		Find(&artifacts).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list artifacts: %w", err)
	}

	return repository.NewPagedResult(artifacts, total, pagination), nil
}

// SetApproval 审批构件。降级旧 approved 与提升新构件在同一事务内完成，
// 外部永远观察不到"两个 approved"或"新已写入旧未降级"的中间态。
func (r *ArtifactRepository) SetApproval(ctx context.Context, sectionID, artifactID string) error {
	ctx, span := tracer.Start(ctx, "postgres.ArtifactRepository.SetApproval")
	defer span.End()

	db := getDB(ctx, r.client.db)
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&entity.ContentArtifact{}).
			Where("section_id = ? AND state = ? AND id <> ?", sectionID, entity.ApprovalStateApproved, artifactID).
			Update("state", entity.ApprovalStateSuperseded).Error; err != nil {
			return err
		}

		res := tx.Model(&entity.ContentArtifact{}).
			Where("id = ? AND section_id = ?", artifactID, sectionID).
			Update("state", entity.ApprovalStateApproved)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to set approval: %w", err)
	}
	return nil
}
