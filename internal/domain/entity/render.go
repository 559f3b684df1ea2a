// Package entity 定义领域实体
package entity

// RenderNodeKind 渲染树节点类型
type RenderNodeKind string

const (
	RenderNodeDocument   RenderNodeKind = "document"
	RenderNodeSection    RenderNodeKind = "section"
	RenderNodeParagraph  RenderNodeKind = "paragraph"
	RenderNodeBulletList RenderNodeKind = "bullet_list"
	RenderNodeBulletItem RenderNodeKind = "bullet_item"
	RenderNodeSlide      RenderNodeKind = "slide"
)

// RenderNode 渲染树节点。每次导出即时构建，不做持久化，
// 构建完成后整棵树交给外部文档写入器序列化。
type RenderNode struct {
	Kind     RenderNodeKind `json:"kind"`
	Text     string         `json:"text,omitempty"`
	Children []*RenderNode  `json:"children,omitempty"`
}

// NewRenderNode 创建节点
func NewRenderNode(kind RenderNodeKind, text string) *RenderNode {
	return &RenderNode{Kind: kind, Text: text}
}

// Append 追加子节点并返回自身，便于链式构建
func (n *RenderNode) Append(children ...*RenderNode) *RenderNode {
	n.Children = append(n.Children, children...)
	return n
}

// LeafCount 统计叶子节点数量
func (n *RenderNode) LeafCount() int {
	if n == nil {
		return 0
	}
	if len(n.Children) == 0 {
		return 1
	}
	total := 0
	for _, c := range n.Children {
		total += c.LeafCount()
	}
	return total
}
