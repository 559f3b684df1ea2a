package generation

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/cloudwego/eino/schema"

	"z-docgen-ai-api/internal/config"
	"z-docgen-ai-api/internal/domain/entity"
	"z-docgen-ai-api/internal/domain/repository"
	apperrors "z-docgen-ai-api/pkg/errors"
)

type fakeDocRepo struct {
	docs map[string]*entity.Document
}

func (r *fakeDocRepo) GetByID(ctx context.Context, id string) (*entity.Document, error) {
	return r.docs[id], nil
}

type fakeSectionRepo struct {
	sections map[string]*entity.SectionSpec
}

func (r *fakeSectionRepo) GetByID(ctx context.Context, id string) (*entity.SectionSpec, error) {
	return r.sections[id], nil
}

func (r *fakeSectionRepo) ListByDocument(ctx context.Context, documentID string) ([]*entity.SectionSpec, error) {
	var out []*entity.SectionSpec
	for _, s := range r.sections {
		if s.DocumentID == documentID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

type fakeArtifactRepo struct {
	mu        sync.Mutex
	artifacts []*entity.ContentArtifact
	createErr error
}

func (r *fakeArtifactRepo) Create(ctx context.Context, artifact *entity.ContentArtifact) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	cp := *artifact
	r.artifacts = append(r.artifacts, &cp)
	return nil
}

func (r *fakeArtifactRepo) GetByID(ctx context.Context, id string) (*entity.ContentArtifact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.artifacts {
		if a.ID == id {
			return a, nil
		}
	}
	return nil, nil
}

func (r *fakeArtifactRepo) GetLatestBySection(ctx context.Context, sectionID string) (*entity.ContentArtifact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var latest *entity.ContentArtifact
	for _, a := range r.artifacts {
		if a.SectionID == sectionID && (latest == nil || a.Version > latest.Version) {
			latest = a
		}
	}
	return latest, nil
}

func (r *fakeArtifactRepo) GetApprovedBySection(ctx context.Context, sectionID string) (*entity.ContentArtifact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.artifacts {
		if a.SectionID == sectionID && a.State == entity.ApprovalStateApproved {
			return a, nil
		}
	}
	return nil, nil
}

func (r *fakeArtifactRepo) GetLatestVersionNo(ctx context.Context, sectionID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	max := 0
	for _, a := range r.artifacts {
		if a.SectionID == sectionID && a.Version > max {
			max = a.Version
		}
	}
	return max, nil
}

func (r *fakeArtifactRepo) ListBySection(ctx context.Context, sectionID string, pagination repository.Pagination) (*repository.PagedResult[*entity.ContentArtifact], error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var items []*entity.ContentArtifact
	for _, a := range r.artifacts {
		if a.SectionID == sectionID {
			items = append(items, a)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Version > items[j].Version })
	return repository.NewPagedResult(items, int64(len(items)), pagination), nil
}

func (r *fakeArtifactRepo) SetApproval(ctx context.Context, sectionID, artifactID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var target *entity.ContentArtifact
	for _, a := range r.artifacts {
		if a.ID == artifactID && a.SectionID == sectionID {
			target = a
			break
		}
	}
	if target == nil {
		return apperrors.ErrArtifactNotFound
	}
	for _, a := range r.artifacts {
		if a.SectionID == sectionID && a.State == entity.ApprovalStateApproved && a.ID != artifactID {
			a.State = entity.ApprovalStateSuperseded
		}
	}
	target.State = entity.ApprovalStateApproved
	return nil
}

// passTx 直接执行回调，不做真正的事务
type passTx struct{}

func (passTx) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type fakeLocker struct {
	mu     sync.Mutex
	owners map[string]string
}

func newFakeLocker() *fakeLocker {
	return &fakeLocker{owners: make(map[string]string)}
}

func (l *fakeLocker) Acquire(ctx context.Context, sectionID, owner string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, held := l.owners[sectionID]; held {
		return false, nil
	}
	l.owners[sectionID] = owner
	return true, nil
}

func (l *fakeLocker) Release(ctx context.Context, sectionID, owner string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.owners[sectionID] == owner {
		delete(l.owners, sectionID)
	}
	return nil
}

// fakeAdapter 脚本化的 Provider 适配器。block 非 nil 时 Stream
// 挂起等待该通道或 ctx 取消，用于覆盖取消路径。
type fakeAdapter struct {
	fragments []string
	result    *CallResult
	err       error
	block     chan struct{}
}

func (a *fakeAdapter) Stream(ctx context.Context, msgs []*schema.Message, opts CallOptions, emit func(Fragment)) (*CallResult, error) {
	for i, text := range a.fragments {
		emit(Fragment{Index: i, Text: text})
	}
	if a.block != nil {
		select {
		case <-a.block:
		case <-ctx.Done():
			return nil, apperrors.ErrGenerationCanceled.WithError(ctx.Err())
		}
	}
	if a.err != nil {
		return nil, a.err
	}
	return a.result, nil
}

func (a *fakeAdapter) Generate(ctx context.Context, msgs []*schema.Message, opts CallOptions) (*CallResult, error) {
	if a.err != nil {
		return nil, a.err
	}
	return a.result, nil
}

func testManagerConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Generation.MaxRetries = 1
	cfg.Generation.RetryBackoff = time.Millisecond
	cfg.Generation.SectionLockTTL = time.Minute
	cfg.Generation.ObserverBuffer = 16
	return cfg
}

func newTestManager(adapter ProviderAdapter, artifacts *fakeArtifactRepo) (*Manager, *fakeLocker) {
	docs := &fakeDocRepo{docs: map[string]*entity.Document{"doc-1": testDoc()}}
	sections := &fakeSectionRepo{sections: map[string]*entity.SectionSpec{"sec-1": testSection()}}
	locker := newFakeLocker()
	m := NewManager(docs, sections, artifacts, passTx{}, locker, testBuilder(), adapter, testManagerConfig())
	return m, locker
}

func waitTerminal(t *testing.T, sess *Session) Event {
	t.Helper()
	ch, unsubscribe := sess.Subscribe()
	defer unsubscribe()

	timeout := time.After(3 * time.Second)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				t.Fatal("channel closed without terminal event")
			}
			if ev.Type != EventFragment {
				return ev
			}
		case <-timeout:
			t.Fatal("timed out waiting for terminal event")
		}
	}
}

func TestStartGenerationCompletesAndPersists(t *testing.T) {
	artifacts := &fakeArtifactRepo{
		artifacts: []*entity.ContentArtifact{
			entity.NewContentArtifact("sec-1", 1, "旧版本"),
		},
	}
	adapter := &fakeAdapter{
		fragments: []string{"新的", "内容"},
		result: &CallResult{
			Content:          "新的内容",
			Provider:         "openai",
			Model:            "gpt-4o-mini",
			PromptTokens:     12,
			CompletionTokens: 34,
		},
	}
	m, locker := newTestManager(adapter, artifacts)

	sess, err := m.StartGeneration(context.Background(), "sec-1", StartOptions{})
	if err != nil {
		t.Fatalf("StartGeneration: %v", err)
	}

	ev := waitTerminal(t, sess)
	if ev.Type != EventCompleted {
		t.Fatalf("terminal = %+v", ev)
	}
	if ev.Artifact == nil || ev.Artifact.Version != 2 {
		t.Errorf("artifact = %+v, want version 2", ev.Artifact)
	}
	if ev.Artifact.Provider != "openai" || ev.Artifact.Model != "gpt-4o-mini" {
		t.Errorf("provider/model = %s/%s", ev.Artifact.Provider, ev.Artifact.Model)
	}
	if ev.Artifact.Metrics == nil || ev.Artifact.Metrics.CompletionTokens != 34 {
		t.Errorf("metrics = %+v", ev.Artifact.Metrics)
	}

	stored, _ := artifacts.GetLatestBySection(context.Background(), "sec-1")
	if stored.Version != 2 || stored.Body != "新的内容" {
		t.Errorf("stored = %+v", stored)
	}
	if stored.State != entity.ApprovalStatePending {
		t.Errorf("new artifact state = %s, want pending", stored.State)
	}

	// 会话结束后分区锁与注册表均已清理
	waitCleanup(t, m, "sec-1")
	if ok, _ := locker.Acquire(context.Background(), "sec-1", "other", time.Minute); !ok {
		t.Error("section lock not released after completion")
	}
}

func waitCleanup(t *testing.T, m *Manager, sectionID string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if m.Get(sectionID) == nil {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("session registry not cleaned up")
}

func TestStartGenerationConflict(t *testing.T) {
	adapter := &fakeAdapter{block: make(chan struct{}), result: &CallResult{Content: "x", Provider: "openai"}}
	m, _ := newTestManager(adapter, &fakeArtifactRepo{})

	sess, err := m.StartGeneration(context.Background(), "sec-1", StartOptions{})
	if err != nil {
		t.Fatalf("first StartGeneration: %v", err)
	}

	_, err = m.StartGeneration(context.Background(), "sec-1", StartOptions{})
	if !apperrors.HasCode(err, apperrors.CodeSessionInFlight) {
		t.Errorf("second start error = %v, want session in flight", err)
	}

	close(adapter.block)
	waitTerminal(t, sess)
}

func TestStartGenerationSectionNotFound(t *testing.T) {
	m, _ := newTestManager(&fakeAdapter{}, &fakeArtifactRepo{})

	_, err := m.StartGeneration(context.Background(), "missing", StartOptions{})
	if !apperrors.HasCode(err, apperrors.CodeSectionNotFound) {
		t.Errorf("error = %v, want section not found", err)
	}
}

func TestStartGenerationFailurePersistsNothing(t *testing.T) {
	artifacts := &fakeArtifactRepo{}
	adapter := &fakeAdapter{err: errors.New("provider exploded")}
	m, _ := newTestManager(adapter, artifacts)

	sess, err := m.StartGeneration(context.Background(), "sec-1", StartOptions{})
	if err != nil {
		t.Fatalf("StartGeneration: %v", err)
	}

	ev := waitTerminal(t, sess)
	if ev.Type != EventFailed {
		t.Fatalf("terminal = %+v", ev)
	}
	if n, _ := artifacts.GetLatestVersionNo(context.Background(), "sec-1"); n != 0 {
		t.Errorf("failed session must not persist artifacts, got version %d", n)
	}
}

func TestCancelActiveSession(t *testing.T) {
	adapter := &fakeAdapter{fragments: []string{"部分"}, block: make(chan struct{})}
	m, _ := newTestManager(adapter, &fakeArtifactRepo{})

	sess, err := m.StartGeneration(context.Background(), "sec-1", StartOptions{})
	if err != nil {
		t.Fatalf("StartGeneration: %v", err)
	}

	if !m.Cancel("sec-1") {
		t.Fatal("Cancel returned false for active session")
	}

	ev := waitTerminal(t, sess)
	if ev.Type != EventCanceled {
		t.Errorf("terminal = %+v, want canceled", ev)
	}
	if sess.State() != SessionStateCanceled {
		t.Errorf("state = %s", sess.State())
	}

	waitCleanup(t, m, "sec-1")
	if m.Cancel("sec-1") {
		t.Error("Cancel should return false when no session is active")
	}
}

func TestStartRefinementInvokesHook(t *testing.T) {
	artifacts := &fakeArtifactRepo{}
	adapter := &fakeAdapter{
		fragments: []string{"修订稿"},
		result:    &CallResult{Content: "修订稿", Provider: "openai", Model: "gpt-4o-mini"},
	}
	m, _ := newTestManager(adapter, artifacts)

	base := entity.NewContentArtifact("sec-1", 1, "原始内容")
	feedback := []*entity.FeedbackRecord{
		entity.NewFeedbackRecord(base.ID, entity.FeedbackKindNegative, "语气再正式一些"),
	}

	var hooked *entity.ContentArtifact
	hook := func(ctx context.Context, artifact *entity.ContentArtifact) error {
		hooked = artifact
		return nil
	}

	sess, err := m.StartRefinement(context.Background(), testSection(), testDoc(), base, feedback, StartOptions{}, hook)
	if err != nil {
		t.Fatalf("StartRefinement: %v", err)
	}

	ev := waitTerminal(t, sess)
	if ev.Type != EventCompleted {
		t.Fatalf("terminal = %+v", ev)
	}
	if hooked == nil || hooked.ID != ev.Artifact.ID {
		t.Errorf("hook artifact = %+v, terminal artifact = %+v", hooked, ev.Artifact)
	}
}

func TestResolveCallOptions(t *testing.T) {
	section := testSection()
	section.GenParams["provider"] = "deepseek"
	section.GenParams["temperature"] = "0.3"
	section.GenParams["max_tokens"] = "2048"

	got := resolveCallOptions(section, StartOptions{})
	if got.Provider != "deepseek" {
		t.Errorf("provider = %q", got.Provider)
	}
	if got.Temperature == nil || *got.Temperature != 0.3 {
		t.Errorf("temperature = %v", got.Temperature)
	}
	if got.MaxTokens == nil || *got.MaxTokens != 2048 {
		t.Errorf("max tokens = %v", got.MaxTokens)
	}

	// 请求覆盖参数优先于分区参数
	temp := float32(0.9)
	got = resolveCallOptions(section, StartOptions{Provider: "openai", Temperature: &temp})
	if got.Provider != "openai" || *got.Temperature != 0.9 {
		t.Errorf("override ignored: %+v", got)
	}
	if got.MaxTokens == nil || *got.MaxTokens != 2048 {
		t.Errorf("section max_tokens should still apply: %v", got.MaxTokens)
	}
}

func TestStartRefinementHookErrorFailsSession(t *testing.T) {
	artifacts := &fakeArtifactRepo{}
	adapter := &fakeAdapter{
		fragments: []string{"修订稿"},
		result:    &CallResult{Content: "修订稿", Provider: "openai", Model: "gpt-4o-mini"},
	}
	m, _ := newTestManager(adapter, artifacts)

	base := entity.NewContentArtifact("sec-1", 1, "原始内容")
	feedback := []*entity.FeedbackRecord{
		entity.NewFeedbackRecord(base.ID, entity.FeedbackKindNegative, "语气再正式一些"),
	}

	hookErr := apperrors.New(apperrors.CodeDatabaseError, "mark write failed")
	hook := func(ctx context.Context, artifact *entity.ContentArtifact) error {
		return hookErr
	}

	sess, err := m.StartRefinement(context.Background(), testSection(), testDoc(), base, feedback, StartOptions{}, hook)
	if err != nil {
		t.Fatalf("StartRefinement: %v", err)
	}

	// 回调错误使整个持久化事务失败，会话必须以失败终态收场
	ev := waitTerminal(t, sess)
	if ev.Type != EventFailed {
		t.Fatalf("terminal = %+v, want failed", ev)
	}
	if !apperrors.HasCode(ev.Err, apperrors.CodeDatabaseError) {
		t.Errorf("terminal err = %v", ev.Err)
	}
}
