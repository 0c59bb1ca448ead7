// Package op 定义作用在文档树上的插入/删除指令序列。
//
// 一个 Op 由删除程序和插入程序组成：先对原文档执行删除，再对删除后的文档执行插入。
// 两个程序都是按位置寻址的：Skip 跳过若干单位（Run 按字符计，Group 计 1），
// 带子序列的指令则进入下一层 Group。
package op

import "richCollab/backend/internal/ot/doc"

// AddElement 是插入指令。
type AddElement interface {
	isAdd()
}

// AddSkip 原样保留接下来的 N 个单位。
type AddSkip struct {
	N int
}

// AddChars 在当前位置插入无样式文本，不消耗文档单位。
type AddChars struct {
	Text string
}

// AddStyles 给接下来的 N 个字符加上 Styles。
type AddStyles struct {
	N      int
	Styles doc.StyleSet
}

// AddWithGroup 进入下一个已有的 Group，对其子节点执行 Span。
type AddWithGroup struct {
	Span AddSpan
}

// AddGroup 新建一个 Group，包住 Span 产出的内容。
type AddGroup struct {
	Attrs doc.Attrs
	Span  AddSpan
}

type AddSpan []AddElement

func (AddSkip) isAdd()      {}
func (AddChars) isAdd()     {}
func (AddStyles) isAdd()    {}
func (AddWithGroup) isAdd() {}
func (AddGroup) isAdd()     {}

// DelElement 是删除指令。每条删除指令都需要作用在一个文档单位上。
type DelElement interface {
	isDel()
}

// DelSkip 原样保留接下来的 N 个单位。
type DelSkip struct {
	N int
}

// DelChars 删除接下来的 N 个字符。
type DelChars struct {
	N int
}

// DelStyles 从接下来的 N 个字符上去掉 Styles。
type DelStyles struct {
	N      int
	Styles doc.StyleSet
}

// DelWithGroup 进入下一个 Group，对其子节点执行 Span，保留 Group 本身。
type DelWithGroup struct {
	Span DelSpan
}

// DelGroup 进入下一个 Group，对其子节点执行 Span，然后去掉 Group 外壳，
// 子节点直接拼接到上一层。
type DelGroup struct {
	Span DelSpan
}

type DelSpan []DelElement

func (DelSkip) isDel()      {}
func (DelChars) isDel()     {}
func (DelStyles) isDel()    {}
func (DelWithGroup) isDel() {}
func (DelGroup) isDel()     {}

// Op 是一次完整编辑：(删除程序, 插入程序)。
type Op struct {
	Del DelSpan
	Add AddSpan
}

// IsNoop 当两个程序都为空时返回 true。
func (o Op) IsNoop() bool {
	return len(o.Del) == 0 && len(o.Add) == 0
}

// Identity 构造一个覆盖整个文档、只含 Skip/WithGroup 的空操作。
func Identity(span doc.Span) Op {
	return Op{Del: identityDel(span), Add: identityAdd(span)}
}

func identityDel(span doc.Span) DelSpan {
	out := DelSpan{}
	skip := 0
	for _, node := range span {
		switch v := node.(type) {
		case doc.Run:
			skip += v.Len()
		case doc.Group:
			if skip > 0 {
				out = append(out, DelSkip{N: skip})
				skip = 0
			}
			out = append(out, DelWithGroup{Span: identityDel(v.Children)})
		}
	}
	if skip > 0 {
		out = append(out, DelSkip{N: skip})
	}
	return out
}

func identityAdd(span doc.Span) AddSpan {
	out := AddSpan{}
	skip := 0
	for _, node := range span {
		switch v := node.(type) {
		case doc.Run:
			skip += v.Len()
		case doc.Group:
			if skip > 0 {
				out = append(out, AddSkip{N: skip})
				skip = 0
			}
			out = append(out, AddWithGroup{Span: identityAdd(v.Children)})
		}
	}
	if skip > 0 {
		out = append(out, AddSkip{N: skip})
	}
	return out
}
