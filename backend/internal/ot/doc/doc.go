// Package doc 定义富文本文档的树形模型：Run（带样式的文本片段）与 Group（带属性的容器）。
//
// 所有节点都按值使用，任何变换都构造新的节点，不在原地修改。
package doc

import "unicode/utf8"

// Node 是文档节点，只有 Run 和 Group 两种实现。
type Node interface {
	// Units 返回该节点在操作寻址中占用的单位数：Run 按字符计，Group 固定为 1。
	Units() int
	isNode()
}

// Run 是一段共享同一组样式的字符。良构文档中 Run 不为空。
type Run struct {
	Text   string
	Styles StyleSet
}

// Group 是结构容器（例如段落、列表项），持有属性和子节点序列。
type Group struct {
	Attrs    Attrs
	Children Span
}

// Span 是同一层级上有序的节点序列。
type Span []Node

func (Run) isNode()   {}
func (Group) isNode() {}

// Len 返回字符数（按 Unicode 码点计，不按字节）。
func (r Run) Len() int {
	return utf8.RuneCountInString(r.Text)
}

func (r Run) Units() int { return r.Len() }

func (g Group) Units() int { return 1 }

// SplitAt 在第 n 个字符处切分，两半都保留原样式。
// n 超出范围时会被夹到 [0, Len]。
func (r Run) SplitAt(n int) (Run, Run) {
	if n <= 0 {
		return Run{Styles: r.Styles.Clone()}, r
	}
	i := 0
	for byteIdx := range r.Text {
		if i == n {
			return Run{Text: r.Text[:byteIdx], Styles: r.Styles.Clone()},
				Run{Text: r.Text[byteIdx:], Styles: r.Styles.Clone()}
		}
		i++
	}
	return r, Run{Styles: r.Styles.Clone()}
}

// WithStyles 返回文本相同、样式替换为 styles 的新 Run。
func (r Run) WithStyles(styles StyleSet) Run {
	return Run{Text: r.Text, Styles: styles}
}

// Units 返回 span 在当前层级占用的单位数。
func (s Span) Units() int {
	n := 0
	for _, node := range s {
		n += node.Units()
	}
	return n
}

// CharCount 递归统计所有 Run 的字符数。
func (s Span) CharCount() int {
	n := 0
	for _, node := range s {
		switch v := node.(type) {
		case Run:
			n += v.Len()
		case Group:
			n += v.Children.CharCount()
		}
	}
	return n
}

// Depth 返回最大嵌套层数，平铺的 span 为 0。
func (s Span) Depth() int {
	depth := 0
	for _, node := range s {
		if g, ok := node.(Group); ok {
			if d := g.Children.Depth() + 1; d > depth {
				depth = d
			}
		}
	}
	return depth
}

// Equal 比较结构是否相同。相邻 Run 不会被合并后再比较，需要时先调用 Normalize。
func (s Span) Equal(o Span) bool {
	if len(s) != len(o) {
		return false
	}
	for i := range s {
		if !NodeEqual(s[i], o[i]) {
			return false
		}
	}
	return true
}

// NodeEqual 比较两个节点。
func NodeEqual(a, b Node) bool {
	switch x := a.(type) {
	case Run:
		y, ok := b.(Run)
		return ok && x.Text == y.Text && x.Styles.Equal(y.Styles)
	case Group:
		y, ok := b.(Group)
		return ok && x.Attrs.Equal(y.Attrs) && x.Children.Equal(y.Children)
	}
	return false
}

// Normalize 合并相邻且样式相同的 Run，去掉空 Run，并递归处理 Group。
func Normalize(s Span) Span {
	out := make(Span, 0, len(s))
	for _, node := range s {
		switch v := node.(type) {
		case Run:
			if v.Text == "" {
				continue
			}
			if n := len(out); n > 0 {
				if prev, ok := out[n-1].(Run); ok && prev.Styles.Equal(v.Styles) {
					out[n-1] = Run{Text: prev.Text + v.Text, Styles: prev.Styles}
					continue
				}
			}
			out = append(out, v)
		case Group:
			out = append(out, Group{Attrs: v.Attrs, Children: Normalize(v.Children)})
		}
	}
	return out
}
