// Package outline 实现文档大纲与幻灯片标题建议
package outline

import (
	"context"
	"encoding/json"
	"strings"
	"unicode/utf8"

	"go.opentelemetry.io/otel"

	"z-docgen-ai-api/internal/application/generation"
	"z-docgen-ai-api/internal/domain/entity"
	"z-docgen-ai-api/internal/domain/repository"
	apperrors "z-docgen-ai-api/pkg/errors"
	"z-docgen-ai-api/pkg/logger"
)

var tracer = otel.Tracer("outline")

const (
	defaultSectionCount = 6
	maxSectionCount     = 24
	maxSlideTitleRunes  = 20
)

// OutlineItem 大纲中的一个分区建议
type OutlineItem struct {
	Title string             `json:"title"`
	Kind  entity.ContentKind `json:"kind"`
}

// Suggester 大纲与标题建议器。建议是原子调用，不走流式会话。
type Suggester struct {
	documents repository.DocumentRepository
	sections  repository.SectionRepository
	builder   *generation.PromptBuilder
	adapter   generation.ProviderAdapter
}

// NewSuggester 创建建议器
func NewSuggester(
	documents repository.DocumentRepository,
	sections repository.SectionRepository,
	builder *generation.PromptBuilder,
	adapter generation.ProviderAdapter,
) *Suggester {
	return &Suggester{
		documents: documents,
		sections:  sections,
		builder:   builder,
		adapter:   adapter,
	}
}

// SuggestOutline 为给定主题生成章节大纲
func (s *Suggester) SuggestOutline(ctx context.Context, title, kind, description string, sectionCount int, opts generation.StartOptions) ([]OutlineItem, error) {
	ctx, span := tracer.Start(ctx, "outline.SuggestOutline")
	defer span.End()

	if strings.TrimSpace(title) == "" {
		return nil, apperrors.ErrInvalidParam.WithDetail("title is required")
	}
	if sectionCount <= 0 {
		sectionCount = defaultSectionCount
	}
	if sectionCount > maxSectionCount {
		sectionCount = maxSectionCount
	}

	msgs, err := s.builder.BuildOutline(ctx, title, kind, description, sectionCount)
	if err != nil {
		return nil, apperrors.ErrGenerationFailed.WithError(err)
	}

	result, err := s.adapter.Generate(ctx, msgs, callOptions(opts))
	if err != nil {
		return nil, err
	}

	items, err := parseOutline(result.Content)
	if err != nil {
		logger.Warn(ctx, "outline response is not valid JSON", "error", err)
		return nil, apperrors.ErrLLMCallFailed.WithError(err)
	}
	if len(items) > sectionCount {
		items = items[:sectionCount]
	}
	return items, nil
}

// SuggestSlideTitles 为文档的每个分区拟定幻灯片标题。
// 模型输出不可用时退回分区标题截断，保证结果永远与分区一一对应。
func (s *Suggester) SuggestSlideTitles(ctx context.Context, documentID string, opts generation.StartOptions) ([]string, error) {
	ctx, span := tracer.Start(ctx, "outline.SuggestSlideTitles")
	defer span.End()

	doc, err := s.documents.GetByID(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, apperrors.ErrDocumentNotFound
	}

	sections, err := s.sections.ListByDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if len(sections) == 0 {
		return nil, apperrors.ErrInvalidParam.WithDetail("document has no sections")
	}

	msgs, err := s.builder.BuildSlideTitles(ctx, doc.Title, sections)
	if err != nil {
		return nil, apperrors.ErrGenerationFailed.WithError(err)
	}

	result, err := s.adapter.Generate(ctx, msgs, callOptions(opts))
	if err != nil {
		return nil, err
	}

	titles := parseSlideTitles(result.Content, len(sections))
	if titles == nil {
		logger.Warn(ctx, "slide title response unusable, falling back to section titles",
			"document_id", documentID)
		titles = fallbackSlideTitles(sections)
	}
	return titles, nil
}

func callOptions(opts generation.StartOptions) generation.CallOptions {
	return generation.CallOptions{
		Provider:    opts.Provider,
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
	}
}

func parseOutline(content string) ([]OutlineItem, error) {
	raw := extractJSONValue(content)

	var parsed []struct {
		Title string `json:"title"`
		Kind  string `json:"kind"`
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	items := make([]OutlineItem, 0, len(parsed))
	for _, p := range parsed {
		title := strings.TrimSpace(p.Title)
		if title == "" || seen[title] {
			continue
		}
		seen[title] = true

		kind := entity.ContentKind(strings.TrimSpace(p.Kind))
		if !kind.Valid() {
			kind = entity.ContentKindText
		}
		items = append(items, OutlineItem{Title: title, Kind: kind})
	}
	return items, nil
}

// parseSlideTitles 解析标题数组；长度与分区数不符时视为不可用
func parseSlideTitles(content string, want int) []string {
	raw := extractJSONValue(content)

	var titles []string
	if err := json.Unmarshal([]byte(raw), &titles); err != nil {
		return nil
	}
	if len(titles) != want {
		return nil
	}
	for i, t := range titles {
		t = strings.TrimSpace(t)
		if t == "" {
			return nil
		}
		titles[i] = truncateByRunes(t, maxSlideTitleRunes)
	}
	return titles
}

func fallbackSlideTitles(sections []*entity.SectionSpec) []string {
	titles := make([]string, len(sections))
	for i, s := range sections {
		titles[i] = truncateByRunes(strings.TrimSpace(s.Title), maxSlideTitleRunes)
	}
	return titles
}

func truncateByRunes(s string, maxRunes int) string {
	if maxRunes <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= maxRunes {
		return s
	}
	n := 0
	for i := range s {
		if n == maxRunes {
			return s[:i]
		}
		n++
	}
	return s
}
