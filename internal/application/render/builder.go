// Package render 把已审批内容组装为可导出的渲染树
package render

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"

	"z-docgen-ai-api/internal/domain/entity"
	"z-docgen-ai-api/internal/domain/repository"
	apperrors "z-docgen-ai-api/pkg/errors"
	"z-docgen-ai-api/pkg/logger"
	"z-docgen-ai-api/pkg/metrics"
)

var tracer = otel.Tracer("render")

// BuildResult 渲染树与构建过程中的告警。缺失已审批内容的分区
// 不会中断构建，只产生占位节点与对应告警。
type BuildResult struct {
	Tree     *entity.RenderNode `json:"tree"`
	Warnings []string           `json:"warnings,omitempty"`
}

// Builder 渲染树构建器
type Builder struct {
	documents repository.DocumentRepository
	sections  repository.SectionRepository
	artifacts repository.ArtifactRepository
}

// NewBuilder 创建渲染树构建器
func NewBuilder(
	documents repository.DocumentRepository,
	sections repository.SectionRepository,
	artifacts repository.ArtifactRepository,
) *Builder {
	return &Builder{
		documents: documents,
		sections:  sections,
		artifacts: artifacts,
	}
}

// Build 为文档构建渲染树。分区按 Position 升序排列；
// 每个分区取其当前 approved 构件，没有时插入占位段落并记录告警。
func (b *Builder) Build(ctx context.Context, documentID string) (*BuildResult, error) {
	ctx, span := tracer.Start(ctx, "render.Build")
	defer span.End()

	doc, err := b.documents.GetByID(ctx, documentID)
	if err != nil {
		metrics.RenderBuildTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	if doc == nil {
		metrics.RenderBuildTotal.WithLabelValues("error").Inc()
		return nil, apperrors.ErrDocumentNotFound
	}

	sections, err := b.sections.ListByDocument(ctx, documentID)
	if err != nil {
		metrics.RenderBuildTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	root := entity.NewRenderNode(entity.RenderNodeDocument, doc.Title)
	result := &BuildResult{Tree: root}

	for _, section := range sections {
		artifact, err := b.artifacts.GetApprovedBySection(ctx, section.ID)
		if err != nil {
			metrics.RenderBuildTotal.WithLabelValues("error").Inc()
			return nil, err
		}

		node := entity.NewRenderNode(entity.RenderNodeSection, section.Title)
		if artifact == nil {
			node.Append(entity.NewRenderNode(entity.RenderNodeParagraph,
				fmt.Sprintf("[待生成：%s]", section.Title)))
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("section %q (position %d) has no approved content", section.Title, section.Position))
			metrics.RenderMissingSections.Inc()
		} else {
			appendBody(node, section.Kind, artifact.Body)
		}
		root.Append(node)
	}

	logger.Info(ctx, "render tree built",
		"document_id", documentID, "sections", len(sections),
		"warnings", len(result.Warnings))
	metrics.RenderBuildTotal.WithLabelValues("ok").Inc()
	return result, nil
}

// appendBody 按分区内容形态把正文拆解为子节点
func appendBody(section *entity.RenderNode, kind entity.ContentKind, body string) {
	switch kind {
	case entity.ContentKindBulletList:
		appendMixed(section, body)
	case entity.ContentKindSlide:
		appendSlide(section, body)
	default:
		for _, para := range splitParagraphs(body) {
			section.Append(entity.NewRenderNode(entity.RenderNodeParagraph, para))
		}
	}
}

// appendMixed 拆解可能混有引言段落的要点列表。
// 连续的要点行归入同一个 bullet_list，其余行按段落处理。
func appendMixed(parent *entity.RenderNode, body string) {
	var list *entity.RenderNode
	flush := func() {
		if list != nil {
			parent.Append(list)
			list = nil
		}
	}

	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if item, ok := bulletText(line); ok {
			if list == nil {
				list = entity.NewRenderNode(entity.RenderNodeBulletList, "")
			}
			list.Append(entity.NewRenderNode(entity.RenderNodeBulletItem, item))
			continue
		}
		flush()
		parent.Append(entity.NewRenderNode(entity.RenderNodeParagraph, line))
	}
	flush()
}

// appendSlide 第一行作为幻灯片标题，其余行为要点或段落
func appendSlide(parent *entity.RenderNode, body string) {
	lines := strings.Split(body, "\n")
	title := ""
	rest := lines
	for i, line := range lines {
		if strings.TrimSpace(line) != "" {
			title = strings.TrimSpace(line)
			rest = lines[i+1:]
			break
		}
	}

	slide := entity.NewRenderNode(entity.RenderNodeSlide, title)
	appendMixed(slide, strings.Join(rest, "\n"))
	parent.Append(slide)
}

func bulletText(line string) (string, bool) {
	for _, prefix := range []string{"- ", "• ", "* "} {
		if strings.HasPrefix(line, prefix) {
			return strings.TrimSpace(strings.TrimPrefix(line, prefix)), true
		}
	}
	return "", false
}

func splitParagraphs(body string) []string {
	var out []string
	for _, block := range strings.Split(strings.ReplaceAll(body, "\r\n", "\n"), "\n\n") {
		block = strings.TrimSpace(block)
		if block != "" {
			out = append(out, block)
		}
	}
	return out
}
