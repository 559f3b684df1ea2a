package render

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"z-docgen-ai-api/internal/domain/entity"
	apperrors "z-docgen-ai-api/pkg/errors"
)

func sampleTree() *entity.RenderNode {
	root := entity.NewRenderNode(entity.RenderNodeDocument, "示例文档")
	section := entity.NewRenderNode(entity.RenderNodeSection, "第一章")
	section.Append(entity.NewRenderNode(entity.RenderNodeParagraph, "开头段落。"))
	list := entity.NewRenderNode(entity.RenderNodeBulletList, "")
	list.Append(
		entity.NewRenderNode(entity.RenderNodeBulletItem, "要点一"),
		entity.NewRenderNode(entity.RenderNodeBulletItem, "要点二"),
	)
	section.Append(list)
	root.Append(section)
	return root
}

func TestWriterFor(t *testing.T) {
	tests := []struct {
		format      string
		contentType string
	}{
		{"", "application/json"},
		{"json", "application/json"},
		{"markdown", "text/markdown; charset=utf-8"},
		{"md", "text/markdown; charset=utf-8"},
	}
	for _, tt := range tests {
		w, err := WriterFor(tt.format)
		if err != nil {
			t.Fatalf("WriterFor(%q): %v", tt.format, err)
		}
		if w.ContentType() != tt.contentType {
			t.Errorf("WriterFor(%q).ContentType() = %q", tt.format, w.ContentType())
		}
	}

	if _, err := WriterFor("docx"); !apperrors.HasCode(err, apperrors.CodeInvalidParam) {
		t.Errorf("unknown format error = %v", err)
	}
}

func TestJSONWriterRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	if err := (JSONWriter{}).Write(&buf, sampleTree()); err != nil {
		t.Fatalf("Write: %v", err)
	}

	var decoded entity.RenderNode
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if decoded.Kind != entity.RenderNodeDocument || decoded.Text != "示例文档" {
		t.Errorf("decoded root = %+v", decoded)
	}
	if decoded.LeafCount() != 3 {
		t.Errorf("leaf count = %d, want 3", decoded.LeafCount())
	}
}

func TestMarkdownWriter(t *testing.T) {
	var buf bytes.Buffer
	if err := (MarkdownWriter{}).Write(&buf, sampleTree()); err != nil {
		t.Fatalf("Write: %v", err)
	}

	out := buf.String()
	for _, want := range []string{"# 示例文档", "## 第一章", "开头段落。", "- 要点一", "- 要点二"} {
		if !strings.Contains(out, want) {
			t.Errorf("markdown output missing %q:\n%s", want, out)
		}
	}
	if strings.Index(out, "## 第一章") < strings.Index(out, "# 示例文档") {
		t.Error("section heading appears before document title")
	}
}
