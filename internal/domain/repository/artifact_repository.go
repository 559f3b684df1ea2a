// Package repository 定义数据访问层接口
package repository

import (
	"context"
	"time"

	"z-docgen-ai-api/internal/domain/entity"
)

// ArtifactRepository 内容构件仓储接口
type ArtifactRepository interface {
	// Create 写入新构件（调用方负责在同一事务内分配 version）
	Create(ctx context.Context, artifact *entity.ContentArtifact) error

	// GetByID 根据 ID 获取构件，不存在时返回 (nil, nil)
	GetByID(ctx context.Context, id string) (*entity.ContentArtifact, error)

	// GetLatestBySection 获取分区的最新版本构件，无任何版本时返回 (nil, nil)
	GetLatestBySection(ctx context.Context, sectionID string) (*entity.ContentArtifact, error)

	// GetApprovedBySection 获取分区当前已审批的构件，没有时返回 (nil, nil)
	GetApprovedBySection(ctx context.Context, sectionID string) (*entity.ContentArtifact, error)

	// GetLatestVersionNo 获取分区已有的最大版本号，无版本时返回 0
	GetLatestVersionNo(ctx context.Context, sectionID string) (int, error)

	// ListBySection 按版本号降序返回分区的构件
	ListBySection(ctx context.Context, sectionID string, pagination Pagination) (*PagedResult[*entity.ContentArtifact], error)

	// SetApproval 将构件置为 approved，并在同一原子步骤内把该分区此前
	// 已审批的构件降级为 superseded。任何时刻每个分区至多一个 approved。
	SetApproval(ctx context.Context, sectionID, artifactID string) error
}

// FeedbackRepository 反馈仓储接口
type FeedbackRepository interface {
	// Create 写入新反馈
	Create(ctx context.Context, record *entity.FeedbackRecord) error

	// GetByID 根据 ID 获取反馈，不存在时返回 (nil, nil)
	GetByID(ctx context.Context, id string) (*entity.FeedbackRecord, error)

	// GetByIDs 批量获取反馈
	GetByIDs(ctx context.Context, ids []string) ([]*entity.FeedbackRecord, error)

	// ListByArtifact 按创建时间升序返回构件的全部反馈
	ListByArtifact(ctx context.Context, artifactID string) ([]*entity.FeedbackRecord, error)

	// MarkProcessed 将一组反馈标记为已处理并写入应答构件引用；
	// 只影响 processed=false 的行，已处理的行保持原引用不变。
	MarkProcessed(ctx context.Context, ids []string, responseArtifactID string) error
}

// SectionLocker 分区排他锁接口。同一分区任何时刻至多持有一把锁，
// owner 用于防止误释放他人持有的锁。
type SectionLocker interface {
	// Acquire 尝试获取分区锁，已被占用时返回 false
	Acquire(ctx context.Context, sectionID, owner string, ttl time.Duration) (bool, error)

	// Release 释放分区锁；owner 不匹配时不做任何事
	Release(ctx context.Context, sectionID, owner string) error
}
