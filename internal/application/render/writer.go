package render

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"z-docgen-ai-api/internal/domain/entity"
	apperrors "z-docgen-ai-api/pkg/errors"
)

// DocumentWriter 把渲染树序列化为某种导出格式
type DocumentWriter interface {
	// ContentType 序列化结果的 MIME 类型
	ContentType() string
	// Write 序列化整棵渲染树
	Write(w io.Writer, tree *entity.RenderNode) error
}

// WriterFor 按格式名返回写入器，未知格式报参数错误
func WriterFor(format string) (DocumentWriter, error) {
	switch format {
	case "", "json":
		return &JSONWriter{}, nil
	case "markdown", "md":
		return &MarkdownWriter{}, nil
	default:
		return nil, apperrors.ErrInvalidParam.WithDetail(fmt.Sprintf("unsupported export format: %s", format))
	}
}

// JSONWriter 把渲染树按原始结构输出为 JSON
type JSONWriter struct{}

func (JSONWriter) ContentType() string {
	return "application/json"
}

func (JSONWriter) Write(w io.Writer, tree *entity.RenderNode) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(tree)
}

// MarkdownWriter 把渲染树输出为 Markdown 文本
type MarkdownWriter struct{}

func (MarkdownWriter) ContentType() string {
	return "text/markdown; charset=utf-8"
}

func (MarkdownWriter) Write(w io.Writer, tree *entity.RenderNode) error {
	var sb strings.Builder
	writeMarkdown(&sb, tree, 1)
	_, err := io.WriteString(w, sb.String())
	return err
}

func writeMarkdown(sb *strings.Builder, node *entity.RenderNode, depth int) {
	if node == nil {
		return
	}

	switch node.Kind {
	case entity.RenderNodeDocument:
		fmt.Fprintf(sb, "# %s\n\n", node.Text)
	case entity.RenderNodeSection:
		fmt.Fprintf(sb, "%s %s\n\n", strings.Repeat("#", depth+1), node.Text)
	case entity.RenderNodeSlide:
		fmt.Fprintf(sb, "%s %s\n\n", strings.Repeat("#", depth+1), node.Text)
	case entity.RenderNodeParagraph:
		fmt.Fprintf(sb, "%s\n\n", node.Text)
	case entity.RenderNodeBulletItem:
		fmt.Fprintf(sb, "- %s\n", node.Text)
	}

	for _, child := range node.Children {
		writeMarkdown(sb, child, depth+1)
	}

	if node.Kind == entity.RenderNodeBulletList {
		sb.WriteString("\n")
	}
}
