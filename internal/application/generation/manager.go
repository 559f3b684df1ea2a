package generation

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/cloudwego/eino/schema"
	"go.opentelemetry.io/otel"

	"z-docgen-ai-api/internal/config"
	"z-docgen-ai-api/internal/domain/entity"
	"z-docgen-ai-api/internal/domain/repository"
	apperrors "z-docgen-ai-api/pkg/errors"
	"z-docgen-ai-api/pkg/logger"
	"z-docgen-ai-api/pkg/metrics"
)

var managerTracer = otel.Tracer("generation.manager")

// StartOptions 发起生成时的覆盖参数
type StartOptions struct {
	Provider    string
	Temperature *float32
	MaxTokens   *int
}

// CompletionHook 新构件写入后、同一事务提交前执行的回调。
// 返回错误会回滚整个事务，构件与回调的写入要么同时生效、要么都不生效。
type CompletionHook func(ctx context.Context, artifact *entity.ContentArtifact) error

// Manager 管理分区生成会话。同一分区任何时刻至多一个进行中的会话，
// 由进程内注册表与 Redis 分区锁共同保证。
type Manager struct {
	documents repository.DocumentRepository
	sections  repository.SectionRepository
	artifacts repository.ArtifactRepository
	txm       repository.Transactor
	locker    repository.SectionLocker
	builder   *PromptBuilder
	adapter   ProviderAdapter
	cfg       *config.GenerationConfig

	mu     sync.Mutex
	active map[string]*Session
}

// NewManager 创建会话管理器
func NewManager(
	documents repository.DocumentRepository,
	sections repository.SectionRepository,
	artifacts repository.ArtifactRepository,
	txm repository.Transactor,
	locker repository.SectionLocker,
	builder *PromptBuilder,
	adapter ProviderAdapter,
	cfg *config.Config,
) *Manager {
	return &Manager{
		documents: documents,
		sections:  sections,
		artifacts: artifacts,
		txm:       txm,
		locker:    locker,
		builder:   builder,
		adapter:   adapter,
		cfg:       &cfg.Generation,
		active:    make(map[string]*Session),
	}
}

// StartGeneration 为分区发起一次首稿生成会话
func (m *Manager) StartGeneration(ctx context.Context, sectionID string, opts StartOptions) (*Session, error) {
	ctx, span := managerTracer.Start(ctx, "manager.StartGeneration")
	defer span.End()

	section, doc, err := m.loadSection(ctx, sectionID)
	if err != nil {
		return nil, err
	}

	neighbors, err := m.neighborArtifacts(ctx, section)
	if err != nil {
		return nil, err
	}

	msgs, err := m.builder.BuildContent(ctx, doc, section, neighbors)
	if err != nil {
		return nil, apperrors.ErrGenerationFailed.WithError(err)
	}

	return m.start(ctx, section, msgs, opts, nil)
}

// StartRefinement 为分区发起一次基于反馈的修订会话。
// 校验由修订协调器完成，这里只负责会话生命周期。
func (m *Manager) StartRefinement(ctx context.Context, section *entity.SectionSpec, doc *entity.Document, base *entity.ContentArtifact, feedback []*entity.FeedbackRecord, opts StartOptions, hook CompletionHook) (*Session, error) {
	ctx, span := managerTracer.Start(ctx, "manager.StartRefinement")
	defer span.End()

	msgs, err := m.builder.BuildRefine(ctx, doc, section, base, feedback)
	if err != nil {
		return nil, apperrors.ErrGenerationFailed.WithError(err)
	}

	return m.start(ctx, section, msgs, opts, hook)
}

// Get 返回分区当前进行中的会话，没有时返回 nil
func (m *Manager) Get(sectionID string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active[sectionID]
}

// Cancel 取消分区当前进行中的会话。没有会话时返回 false。
func (m *Manager) Cancel(sectionID string) bool {
	m.mu.Lock()
	sess := m.active[sectionID]
	m.mu.Unlock()

	if sess == nil {
		return false
	}
	sess.Cancel()
	return true
}

func (m *Manager) loadSection(ctx context.Context, sectionID string) (*entity.SectionSpec, *entity.Document, error) {
	section, err := m.sections.GetByID(ctx, sectionID)
	if err != nil {
		return nil, nil, err
	}
	if section == nil {
		return nil, nil, apperrors.ErrSectionNotFound
	}

	doc, err := m.documents.GetByID(ctx, section.DocumentID)
	if err != nil {
		return nil, nil, err
	}
	if doc == nil {
		return nil, nil, apperrors.ErrDocumentNotFound
	}
	return section, doc, nil
}

// neighborArtifacts 收集位置相邻分区的已审批内容作为上下文
func (m *Manager) neighborArtifacts(ctx context.Context, section *entity.SectionSpec) ([]*entity.ContentArtifact, error) {
	siblings, err := m.sections.ListByDocument(ctx, section.DocumentID)
	if err != nil {
		return nil, err
	}

	var out []*entity.ContentArtifact
	for _, sib := range siblings {
		if sib.ID == section.ID {
			continue
		}
		if sib.Position != section.Position-1 && sib.Position != section.Position+1 {
			continue
		}
		approved, err := m.artifacts.GetApprovedBySection(ctx, sib.ID)
		if err != nil {
			return nil, err
		}
		if approved != nil {
			out = append(out, approved)
		}
	}
	return out, nil
}

// start 注册会话、获取分区锁并启动后台生成
func (m *Manager) start(ctx context.Context, section *entity.SectionSpec, msgs []*schema.Message, opts StartOptions, hook CompletionHook) (*Session, error) {
	// HTTP 断连不终止生成，取消只通过 Session.Cancel 显式触发
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	sess := newSession(section.ID, m.cfg.ObserverBuffer, cancel)

	m.mu.Lock()
	if _, ok := m.active[section.ID]; ok {
		m.mu.Unlock()
		cancel()
		return nil, apperrors.ErrSessionInFlight
	}
	m.active[section.ID] = sess
	m.mu.Unlock()

	acquired, err := m.locker.Acquire(ctx, section.ID, sess.ID, m.cfg.SectionLockTTL)
	if err != nil || !acquired {
		m.mu.Lock()
		delete(m.active, section.ID)
		m.mu.Unlock()
		cancel()
		if err != nil {
			return nil, err
		}
		return nil, apperrors.ErrSessionInFlight
	}

	go m.run(runCtx, sess, section, msgs, opts, hook)
	return sess, nil
}

func (m *Manager) run(ctx context.Context, sess *Session, section *entity.SectionSpec, msgs []*schema.Message, opts StartOptions, hook CompletionHook) {
	start := time.Now()
	callOpts := resolveCallOptions(section, opts)

	defer func() {
		// 锁释放与注册表清理不受会话取消影响
		cleanupCtx := context.WithoutCancel(ctx)
		if err := m.locker.Release(cleanupCtx, section.ID, sess.ID); err != nil {
			logger.Warn(cleanupCtx, "failed to release section lock",
				"section_id", section.ID, "error", err)
		}
		m.mu.Lock()
		delete(m.active, section.ID)
		m.mu.Unlock()
	}()

	result, err := m.adapter.Stream(ctx, msgs, callOpts, sess.publishFragment)
	if err != nil {
		if ctx.Err() == context.Canceled || apperrors.HasCode(err, apperrors.CodeGenerationCanceled) {
			logger.Info(ctx, "generation session canceled",
				"session_id", sess.ID, "section_id", section.ID)
			metrics.GenerationTotal.WithLabelValues(callOpts.Provider, "canceled").Inc()
			sess.finish(SessionStateCanceled, Event{Type: EventCanceled, Err: apperrors.ErrGenerationCanceled})
			return
		}

		logger.Error(ctx, "generation session failed", err,
			"session_id", sess.ID, "section_id", section.ID)
		metrics.GenerationTotal.WithLabelValues(callOpts.Provider, "failed").Inc()
		sess.finish(SessionStateFailed, Event{Type: EventFailed, Err: err})
		return
	}

	persistCtx := context.WithoutCancel(ctx)
	artifact, err := m.persistArtifact(persistCtx, section.ID, result, time.Since(start), hook)
	if err != nil {
		logger.Error(persistCtx, "failed to persist generated artifact", err,
			"session_id", sess.ID, "section_id", section.ID)
		metrics.GenerationTotal.WithLabelValues(result.Provider, "failed").Inc()
		sess.finish(SessionStateFailed, Event{Type: EventFailed, Err: err})
		return
	}

	logger.Info(persistCtx, "generation session completed",
		"session_id", sess.ID, "section_id", section.ID,
		"artifact_id", artifact.ID, "version", artifact.Version,
		"fragments", sess.FragmentCount())
	metrics.GenerationTotal.WithLabelValues(result.Provider, "completed").Inc()
	metrics.GenerationDuration.WithLabelValues(result.Provider).Observe(time.Since(start).Seconds())
	sess.finish(SessionStateCompleted, Event{Type: EventCompleted, Artifact: artifact})
}

// persistArtifact 在单个事务内分配连续版本号、写入新构件并执行完成回调
func (m *Manager) persistArtifact(ctx context.Context, sectionID string, result *CallResult, elapsed time.Duration, hook CompletionHook) (*entity.ContentArtifact, error) {
	var artifact *entity.ContentArtifact

	err := m.txm.WithTransaction(ctx, func(txCtx context.Context) error {
		latest, err := m.artifacts.GetLatestVersionNo(txCtx, sectionID)
		if err != nil {
			return err
		}

		artifact = entity.NewContentArtifact(sectionID, latest+1, result.Content)
		artifact.Provider = result.Provider
		artifact.Model = result.Model

		promptTokens := result.PromptTokens
		completionTokens := result.CompletionTokens
		if completionTokens == 0 {
			completionTokens = entity.EstimateTokens(result.Content)
		}
		artifact.Metrics = &entity.GenerationMetrics{
			PromptTokens:     promptTokens,
			CompletionTokens: completionTokens,
			ElapsedMS:        elapsed.Milliseconds(),
		}

		if err := m.artifacts.Create(txCtx, artifact); err != nil {
			return err
		}
		if hook != nil {
			return hook(txCtx, artifact)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return artifact, nil
}

// resolveCallOptions 合并请求覆盖参数与分区生成参数
func resolveCallOptions(section *entity.SectionSpec, opts StartOptions) CallOptions {
	out := CallOptions{
		Provider:    opts.Provider,
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
	}
	if out.Provider == "" {
		out.Provider = section.Param("provider", "")
	}
	if out.Temperature == nil {
		if v, err := strconv.ParseFloat(section.Param("temperature", ""), 32); err == nil {
			t := float32(v)
			out.Temperature = &t
		}
	}
	if out.MaxTokens == nil {
		if v, err := strconv.Atoi(section.Param("max_tokens", "")); err == nil && v > 0 {
			out.MaxTokens = &v
		}
	}
	return out
}
