// Package bytecode 定义编辑轨迹：渲染端按顺序回放这些指令，就能把自己持有的文档
// 表示增量地变成操作应用后的状态，而不必整体重绘。
//
// 光标按“单位”移动：Run 中的每个字符是一个单位，每个 Group 是一个单位。
package bytecode

import "richCollab/backend/internal/ot/doc"

// Code 是一条轨迹指令。
type Code interface {
	isCode()
}

// Enter 进入光标处的 Group，光标移到其第一个子单位之前。
type Enter struct{}

// Exit 回到上一层，光标停在刚才那个 Group 之后。
type Exit struct{}

// Advance 光标越过 N 个未改动的单位。
type Advance struct {
	N int
}

// Delete 删除光标处的 N 个单位。
type Delete struct {
	N int
}

// Insert 在光标处插入带样式的文本，光标移到插入内容之后。
type Insert struct {
	Text   string
	Styles doc.StyleSet
}

// Wrap 把光标前的 N 个单位包进一个新 Group。
type Wrap struct {
	N     int
	Attrs doc.Attrs
}

// Unwrap 去掉光标前的那个 Group，把它的子单位拼接到当前层，光标停在这些子单位之后。
type Unwrap struct{}

func (Enter) isCode()   {}
func (Exit) isCode()    {}
func (Advance) isCode() {}
func (Delete) isCode()  {}
func (Insert) isCode()  {}
func (Wrap) isCode()    {}
func (Unwrap) isCode()  {}

// Program 是只追加的指令序列。Place 是唯一的修改入口，保证相邻指令中不存在可合并的一对。
type Program struct {
	codes []Code
}

func NewProgram() *Program {
	return &Program{codes: make([]Code, 0)}
}

// Place 追加一条指令。若与末尾指令同为 Advance/Delete 则计数相加；
// 同为 Insert 且样式相同则拼接文本；否则新开一条。零长度指令直接忽略。
func (p *Program) Place(c Code) {
	switch v := c.(type) {
	case Advance:
		if v.N == 0 {
			return
		}
	case Delete:
		if v.N == 0 {
			return
		}
	case Insert:
		if v.Text == "" {
			return
		}
	}

	n := len(p.codes)
	if n == 0 {
		p.codes = append(p.codes, c)
		return
	}

	switch last := p.codes[n-1].(type) {
	case Advance:
		if v, ok := c.(Advance); ok {
			p.codes[n-1] = Advance{N: last.N + v.N}
			return
		}
	case Delete:
		if v, ok := c.(Delete); ok {
			p.codes[n-1] = Delete{N: last.N + v.N}
			return
		}
	case Insert:
		if v, ok := c.(Insert); ok && last.Styles.Equal(v.Styles) {
			p.codes[n-1] = Insert{Text: last.Text + v.Text, Styles: last.Styles}
			return
		}
	}
	p.codes = append(p.codes, c)
}

// Codes 返回指令的副本。
func (p *Program) Codes() []Code {
	out := make([]Code, len(p.codes))
	copy(out, p.codes)
	return out
}

func (p *Program) Len() int {
	return len(p.codes)
}
