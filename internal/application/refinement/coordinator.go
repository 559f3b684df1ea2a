// Package refinement 实现反馈提交与基于反馈的修订协调
package refinement

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"

	"z-docgen-ai-api/internal/application/generation"
	"z-docgen-ai-api/internal/domain/entity"
	"z-docgen-ai-api/internal/domain/repository"
	apperrors "z-docgen-ai-api/pkg/errors"
	"z-docgen-ai-api/pkg/logger"
	"z-docgen-ai-api/pkg/metrics"
)

var tracer = otel.Tracer("refinement")

// ApplyResult ApplyFeedback 的结果。两个字段恰有一个非空：
// Session 表示已发起修订会话；Existing 表示这批反馈已处理过，
// 返回当时生成的应答构件（幂等重放）。
type ApplyResult struct {
	Session  *generation.Session
	Existing *entity.ContentArtifact
}

// CacheInvalidator 审批变更后使相关缓存失效
type CacheInvalidator interface {
	InvalidateSection(ctx context.Context, sectionID string) error
	InvalidateDocument(ctx context.Context, documentID string) error
}

// Coordinator 反馈协调器。反馈提交即记录；修订只由显式的
// ApplyFeedback 触发，提交本身从不启动生成。
type Coordinator struct {
	documents repository.DocumentRepository
	sections  repository.SectionRepository
	artifacts repository.ArtifactRepository
	feedback  repository.FeedbackRepository
	txm       repository.Transactor
	manager   *generation.Manager
	cache     CacheInvalidator
}

// NewCoordinator 创建反馈协调器。cache 可以为 nil。
func NewCoordinator(
	documents repository.DocumentRepository,
	sections repository.SectionRepository,
	artifacts repository.ArtifactRepository,
	feedback repository.FeedbackRepository,
	txm repository.Transactor,
	manager *generation.Manager,
	cache CacheInvalidator,
) *Coordinator {
	return &Coordinator{
		documents: documents,
		sections:  sections,
		artifacts: artifacts,
		feedback:  feedback,
		txm:       txm,
		manager:   manager,
		cache:     cache,
	}
}

// SubmitFeedback 记录一条反馈。positive 反馈立即审批该构件并标记已处理；
// negative 与 comment 保持未处理，等待显式 ApplyFeedback。
func (c *Coordinator) SubmitFeedback(ctx context.Context, artifactID string, kind entity.FeedbackKind, suggestion string) (*entity.FeedbackRecord, error) {
	ctx, span := tracer.Start(ctx, "coordinator.SubmitFeedback")
	defer span.End()

	if !kind.Valid() {
		return nil, apperrors.ErrInvalidParam.WithDetail(fmt.Sprintf("unknown feedback kind: %s", kind))
	}
	if kind != entity.FeedbackKindPositive && suggestion == "" {
		return nil, apperrors.ErrInvalidParam.WithDetail("suggestion is required for non-positive feedback")
	}

	artifact, err := c.artifacts.GetByID(ctx, artifactID)
	if err != nil {
		return nil, err
	}
	if artifact == nil {
		return nil, apperrors.ErrArtifactNotFound
	}

	record := entity.NewFeedbackRecord(artifactID, kind, suggestion)
	if kind == entity.FeedbackKindPositive {
		// 好评即审批：构件晋升 approved，反馈无需再消费。
		// 记录写入与审批在同一事务内，失败时不留下半套状态。
		record.Processed = true
		err = c.txm.WithTransaction(ctx, func(txCtx context.Context) error {
			if err := c.feedback.Create(txCtx, record); err != nil {
				return err
			}
			return c.artifacts.SetApproval(txCtx, artifact.SectionID, artifact.ID)
		})
	} else {
		err = c.feedback.Create(ctx, record)
	}
	if err != nil {
		return nil, err
	}

	if kind == entity.FeedbackKindPositive {
		if c.cache != nil {
			// 审批变更同时影响分区的 approved 缓存与文档的渲染缓存
			if err := c.cache.InvalidateSection(ctx, artifact.SectionID); err != nil {
				logger.Warn(ctx, "failed to invalidate approved artifact cache",
					"section_id", artifact.SectionID, "error", err)
			}
			if section, serr := c.sections.GetByID(ctx, artifact.SectionID); serr == nil && section != nil {
				if err := c.cache.InvalidateDocument(ctx, section.DocumentID); err != nil {
					logger.Warn(ctx, "failed to invalidate render cache",
						"document_id", section.DocumentID, "error", err)
				}
			}
		}
		logger.Info(ctx, "artifact approved via positive feedback",
			"artifact_id", artifact.ID, "section_id", artifact.SectionID)
	}

	metrics.FeedbackTotal.WithLabelValues(string(kind)).Inc()
	return record, nil
}

// ListFeedback 返回构件的全部反馈，按提交时间升序
func (c *Coordinator) ListFeedback(ctx context.Context, artifactID string) ([]*entity.FeedbackRecord, error) {
	ctx, span := tracer.Start(ctx, "coordinator.ListFeedback")
	defer span.End()

	artifact, err := c.artifacts.GetByID(ctx, artifactID)
	if err != nil {
		return nil, err
	}
	if artifact == nil {
		return nil, apperrors.ErrArtifactNotFound
	}
	return c.feedback.ListByArtifact(ctx, artifactID)
}

// ApplyFeedback 把一批反馈应用到其目标构件上，发起一次修订会话。
// 约束：所有反馈必须指向同一构件；该构件必须仍是其分区的最新版本；
// 整批反馈都已处理时不再生成，幂等返回当时的应答构件。
func (c *Coordinator) ApplyFeedback(ctx context.Context, feedbackIDs []string, opts generation.StartOptions) (*ApplyResult, error) {
	ctx, span := tracer.Start(ctx, "coordinator.ApplyFeedback")
	defer span.End()

	if len(feedbackIDs) == 0 {
		return nil, apperrors.ErrInvalidParam.WithDetail("feedback_ids is empty")
	}

	records, err := c.feedback.GetByIDs(ctx, feedbackIDs)
	if err != nil {
		return nil, err
	}
	if len(records) != len(feedbackIDs) {
		return nil, apperrors.ErrFeedbackNotFound
	}

	artifactID := records[0].ArtifactID
	for _, r := range records[1:] {
		if r.ArtifactID != artifactID {
			return nil, apperrors.ErrInvalidParam.WithDetail("feedback records reference different artifacts")
		}
	}

	artifact, err := c.artifacts.GetByID(ctx, artifactID)
	if err != nil {
		return nil, err
	}
	if artifact == nil {
		return nil, apperrors.ErrArtifactNotFound
	}

	pending := make([]*entity.FeedbackRecord, 0, len(records))
	pendingIDs := make([]string, 0, len(records))
	for _, r := range records {
		if r.Kind == entity.FeedbackKindPositive {
			return nil, apperrors.ErrInvalidParam.WithDetail("positive feedback cannot be applied")
		}
		if r.Processed {
			continue
		}
		pending = append(pending, r)
		pendingIDs = append(pendingIDs, r.ID)
	}

	// 整批已处理：幂等重放，返回当时的应答构件。
	// 重放不做最新版本校验，否则应答构件本身会让目标构件“过期”。
	if len(pending) == 0 {
		return c.replayProcessed(ctx, records)
	}

	latest, err := c.artifacts.GetLatestBySection(ctx, artifact.SectionID)
	if err != nil {
		return nil, err
	}
	if latest == nil || latest.ID != artifact.ID {
		return nil, apperrors.ErrStaleArtifact
	}

	section, err := c.sections.GetByID(ctx, artifact.SectionID)
	if err != nil {
		return nil, err
	}
	if section == nil {
		return nil, apperrors.ErrSectionNotFound
	}
	doc, err := c.documents.GetByID(ctx, section.DocumentID)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, apperrors.ErrDocumentNotFound
	}

	// 回调在应答构件写入的同一事务内执行：标记失败回滚构件写入，
	// 反馈不会停留在"已消费但无应答"的死状态。
	hook := func(hookCtx context.Context, response *entity.ContentArtifact) error {
		return c.feedback.MarkProcessed(hookCtx, pendingIDs, response.ID)
	}

	sess, err := c.manager.StartRefinement(ctx, section, doc, artifact, pending, opts, hook)
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "refinement session started",
		"session_id", sess.ID, "section_id", section.ID,
		"base_artifact_id", artifact.ID, "feedback_count", len(pending))
	return &ApplyResult{Session: sess}, nil
}

func (c *Coordinator) replayProcessed(ctx context.Context, records []*entity.FeedbackRecord) (*ApplyResult, error) {
	for _, r := range records {
		if r.ResponseArtifactID == nil {
			continue
		}
		response, err := c.artifacts.GetByID(ctx, *r.ResponseArtifactID)
		if err != nil {
			return nil, err
		}
		if response != nil {
			return &ApplyResult{Existing: response}, nil
		}
	}
	// 已处理但找不到应答构件（positive 或历史数据），按冲突处理
	return nil, apperrors.ErrConflict.WithDetail("feedback already processed without response artifact")
}
