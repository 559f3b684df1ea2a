package outline

import (
	"context"
	"sort"
	"strings"
	"testing"

	"github.com/cloudwego/eino/schema"

	"z-docgen-ai-api/internal/application/generation"
	"z-docgen-ai-api/internal/application/generation/prompt"
	"z-docgen-ai-api/internal/domain/entity"
	apperrors "z-docgen-ai-api/pkg/errors"
)

type fakeDocRepo struct {
	docs map[string]*entity.Document
}

func (r *fakeDocRepo) GetByID(ctx context.Context, id string) (*entity.Document, error) {
	return r.docs[id], nil
}

type fakeSectionRepo struct {
	sections []*entity.SectionSpec
}

func (r *fakeSectionRepo) GetByID(ctx context.Context, id string) (*entity.SectionSpec, error) {
	for _, s := range r.sections {
		if s.ID == id {
			return s, nil
		}
	}
	return nil, nil
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

// fakeAdapter 原子调用返回固定内容
type fakeAdapter struct {
	content string
	err     error
}

func (a *fakeAdapter) Stream(ctx context.Context, msgs []*schema.Message, opts generation.CallOptions, emit func(generation.Fragment)) (*generation.CallResult, error) {
	return a.Generate(ctx, msgs, opts)
}

func (a *fakeAdapter) Generate(ctx context.Context, msgs []*schema.Message, opts generation.CallOptions) (*generation.CallResult, error) {
	if a.err != nil {
		return nil, a.err
	}
	return &generation.CallResult{Content: a.content, Provider: "openai"}, nil
}

func newTestSuggester(adapter generation.ProviderAdapter, sections []*entity.SectionSpec) *Suggester {
	docs := &fakeDocRepo{docs: map[string]*entity.Document{
		"doc-1": {ID: "doc-1", Title: "路演材料", Kind: entity.DocumentKindSlideDeck},
	}}
	builder := generation.NewPromptBuilder(prompt.NewRegistry())
	return NewSuggester(docs, &fakeSectionRepo{sections: sections}, builder, adapter)
}

func TestSuggestOutline(t *testing.T) {
	adapter := &fakeAdapter{content: `这是建议的大纲：
[
  {"title": "背景", "kind": "text"},
  {"title": "方案要点", "kind": "bullet_list"},
  {"title": "背景", "kind": "text"},
  {"title": "路线图", "kind": "timeline"}
]`}
	s := newTestSuggester(adapter, nil)

	items, err := s.SuggestOutline(context.Background(), "新产品发布", "document", "", 6, generation.StartOptions{})
	if err != nil {
		t.Fatalf("SuggestOutline: %v", err)
	}

	// 重复标题去重、未知 kind 退回 text
	if len(items) != 3 {
		t.Fatalf("items = %+v", items)
	}
	if items[0].Title != "背景" || items[0].Kind != entity.ContentKindText {
		t.Errorf("item 0 = %+v", items[0])
	}
	if items[1].Kind != entity.ContentKindBulletList {
		t.Errorf("item 1 = %+v", items[1])
	}
	if items[2].Title != "路线图" || items[2].Kind != entity.ContentKindText {
		t.Errorf("item 2 = %+v", items[2])
	}
}

func TestSuggestOutlineRequiresTitle(t *testing.T) {
	s := newTestSuggester(&fakeAdapter{content: "[]"}, nil)
	_, err := s.SuggestOutline(context.Background(), "  ", "document", "", 6, generation.StartOptions{})
	if !apperrors.HasCode(err, apperrors.CodeInvalidParam) {
		t.Errorf("error = %v, want invalid param", err)
	}
}

func TestSuggestOutlineTruncatesToCount(t *testing.T) {
	adapter := &fakeAdapter{content: `[
  {"title": "一"}, {"title": "二"}, {"title": "三"}, {"title": "四"}
]`}
	s := newTestSuggester(adapter, nil)

	items, err := s.SuggestOutline(context.Background(), "主题", "document", "", 2, generation.StartOptions{})
	if err != nil {
		t.Fatalf("SuggestOutline: %v", err)
	}
	if len(items) != 2 {
		t.Errorf("items = %+v, want 2", items)
	}
}

func TestSuggestOutlineRejectsNonJSON(t *testing.T) {
	s := newTestSuggester(&fakeAdapter{content: "抱歉，我无法完成这个请求。"}, nil)
	_, err := s.SuggestOutline(context.Background(), "主题", "document", "", 6, generation.StartOptions{})
	if !apperrors.HasCode(err, apperrors.CodeLLMCallFailed) {
		t.Errorf("error = %v, want llm call failed", err)
	}
}

func testSections() []*entity.SectionSpec {
	return []*entity.SectionSpec{
		{ID: "s1", DocumentID: "doc-1", Title: "市场机会与竞争格局深度分析", Position: 1, Kind: entity.ContentKindSlide},
		{ID: "s2", DocumentID: "doc-1", Title: "产品", Position: 2, Kind: entity.ContentKindSlide},
	}
}

func TestSuggestSlideTitles(t *testing.T) {
	adapter := &fakeAdapter{content: "```json\n[\"市场机会\", \"产品亮点\"]\n```"}
	s := newTestSuggester(adapter, testSections())

	titles, err := s.SuggestSlideTitles(context.Background(), "doc-1", generation.StartOptions{})
	if err != nil {
		t.Fatalf("SuggestSlideTitles: %v", err)
	}
	if len(titles) != 2 || titles[0] != "市场机会" || titles[1] != "产品亮点" {
		t.Errorf("titles = %v", titles)
	}
}

func TestSuggestSlideTitlesFallbackOnCountMismatch(t *testing.T) {
	adapter := &fakeAdapter{content: `["只有一个标题"]`}
	s := newTestSuggester(adapter, testSections())

	titles, err := s.SuggestSlideTitles(context.Background(), "doc-1", generation.StartOptions{})
	if err != nil {
		t.Fatalf("SuggestSlideTitles: %v", err)
	}
	if len(titles) != 2 {
		t.Fatalf("titles = %v", titles)
	}
	// 长标题按字数截断
	if got := titles[0]; len([]rune(got)) > 20 {
		t.Errorf("fallback title not truncated: %q", got)
	}
	if titles[1] != "产品" {
		t.Errorf("titles[1] = %q", titles[1])
	}
}

func TestSuggestSlideTitlesDocumentNotFound(t *testing.T) {
	s := newTestSuggester(&fakeAdapter{content: "[]"}, nil)
	_, err := s.SuggestSlideTitles(context.Background(), "missing", generation.StartOptions{})
	if !apperrors.HasCode(err, apperrors.CodeDocumentNotFound) {
		t.Errorf("error = %v, want document not found", err)
	}
}

func TestParseSlideTitles(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    int
		ok      bool
	}{
		{"valid", `["甲", "乙"]`, 2, true},
		{"fenced", "```json\n[\"甲\", \"乙\"]\n```", 2, true},
		{"count mismatch", `["甲"]`, 2, false},
		{"empty title", `["甲", " "]`, 2, false},
		{"not json", "随便聊聊", 2, false},
	}
	for _, tt := range tests {
		got := parseSlideTitles(tt.content, tt.want)
		if (got != nil) != tt.ok {
			t.Errorf("%s: parseSlideTitles = %v", tt.name, got)
		}
	}
}

func TestTruncateByRunes(t *testing.T) {
	if got := truncateByRunes("一二三四五", 3); got != "一二三" {
		t.Errorf("got %q", got)
	}
	if got := truncateByRunes("short", 20); got != "short" {
		t.Errorf("got %q", got)
	}
	if got := truncateByRunes("any", 0); got != "" {
		t.Errorf("got %q", got)
	}
}

func TestExtractJSONValue(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"bare array", `[1, 2]`, `[1, 2]`},
		{"fenced object", "前言\n```json\n{\"a\": 1}\n```\n后记", `{"a": 1}`},
		{"prose around array", `结果如下：["x"] 就这些`, `["x"]`},
		{"no json", "没有结构化内容", "没有结构化内容"},
	}
	for _, tt := range tests {
		if got := strings.TrimSpace(extractJSONValue(tt.content)); got != tt.want {
			t.Errorf("%s: extractJSONValue = %q, want %q", tt.name, got, tt.want)
		}
	}
}
