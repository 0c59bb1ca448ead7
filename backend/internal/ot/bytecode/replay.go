package bytecode

import (
	"errors"
	"fmt"

	"richCollab/backend/internal/ot/doc"
)

var ErrReplay = errors.New("bytecode replay failed")

// 回放用的单位级模型：字符和 Group 各占一个槽位，与光标的计数方式一致。
type unit struct {
	r      rune
	styles doc.StyleSet
	group  *level
	attrs  doc.Attrs
}

type level struct {
	units []unit
}

type frame struct {
	lv  *level
	pos int
}

// Replay 依次在 span 上回放 programs（每个 program 从根层第 0 个单位重新开始），
// 返回得到的文档。相邻且样式相同的字符会合并为同一个 Run，
// 因此结果与 doc.Normalize 后的文档可直接比较。
func Replay(span doc.Span, programs ...*Program) (doc.Span, error) {
	root := explode(span)
	for i, p := range programs {
		if p == nil {
			continue
		}
		if err := run(root, p); err != nil {
			return nil, fmt.Errorf("program %d: %w", i, err)
		}
	}
	return implode(root), nil
}

func run(root *level, p *Program) error {
	stack := []frame{{lv: root}}
	top := func() *frame { return &stack[len(stack)-1] }

	for idx, c := range p.codes {
		f := top()
		switch v := c.(type) {
		case Enter:
			if f.pos >= len(f.lv.units) || f.lv.units[f.pos].group == nil {
				return fmt.Errorf("%w: code %d: Enter without group at cursor", ErrReplay, idx)
			}
			stack = append(stack, frame{lv: f.lv.units[f.pos].group})
		case Exit:
			if len(stack) == 1 {
				return fmt.Errorf("%w: code %d: Exit at root", ErrReplay, idx)
			}
			stack = stack[:len(stack)-1]
			top().pos++
		case Advance:
			if f.pos+v.N > len(f.lv.units) {
				return fmt.Errorf("%w: code %d: Advance(%d) past end", ErrReplay, idx, v.N)
			}
			f.pos += v.N
		case Delete:
			if f.pos+v.N > len(f.lv.units) {
				return fmt.Errorf("%w: code %d: Delete(%d) past end", ErrReplay, idx, v.N)
			}
			f.lv.units = append(f.lv.units[:f.pos], f.lv.units[f.pos+v.N:]...)
		case Insert:
			ins := make([]unit, 0, len(v.Text))
			for _, r := range v.Text {
				ins = append(ins, unit{r: r, styles: v.Styles})
			}
			f.lv.units = splice(f.lv.units, f.pos, 0, ins)
			f.pos += len(ins)
		case Wrap:
			if v.N > f.pos {
				return fmt.Errorf("%w: code %d: Wrap(%d) with %d preceding units", ErrReplay, idx, v.N, f.pos)
			}
			inner := make([]unit, v.N)
			copy(inner, f.lv.units[f.pos-v.N:f.pos])
			g := unit{group: &level{units: inner}, attrs: v.Attrs}
			f.lv.units = splice(f.lv.units, f.pos-v.N, v.N, []unit{g})
			f.pos = f.pos - v.N + 1
		case Unwrap:
			if f.pos == 0 || f.lv.units[f.pos-1].group == nil {
				return fmt.Errorf("%w: code %d: Unwrap without preceding group", ErrReplay, idx)
			}
			children := f.lv.units[f.pos-1].group.units
			f.lv.units = splice(f.lv.units, f.pos-1, 1, children)
			f.pos += len(children) - 1
		default:
			return fmt.Errorf("%w: code %d: unknown %T", ErrReplay, idx, c)
		}
	}
	if len(stack) != 1 {
		return fmt.Errorf("%w: unbalanced Enter/Exit (depth %d)", ErrReplay, len(stack)-1)
	}
	return nil
}

// splice 用 ins 替换 units[at:at+del]，返回新切片。
func splice(units []unit, at, del int, ins []unit) []unit {
	out := make([]unit, 0, len(units)-del+len(ins))
	out = append(out, units[:at]...)
	out = append(out, ins...)
	return append(out, units[at+del:]...)
}

func explode(span doc.Span) *level {
	lv := &level{units: make([]unit, 0, span.Units())}
	for _, node := range span {
		switch v := node.(type) {
		case doc.Run:
			for _, r := range v.Text {
				lv.units = append(lv.units, unit{r: r, styles: v.Styles})
			}
		case doc.Group:
			lv.units = append(lv.units, unit{group: explode(v.Children), attrs: v.Attrs})
		}
	}
	return lv
}

func implode(lv *level) doc.Span {
	out := make(doc.Span, 0)
	var text []rune
	var styles doc.StyleSet
	flush := func() {
		if len(text) > 0 {
			out = append(out, doc.Run{Text: string(text), Styles: styles})
			text = nil
		}
	}
	for _, u := range lv.units {
		if u.group != nil {
			flush()
			out = append(out, doc.Group{Attrs: u.attrs, Children: implode(u.group)})
			continue
		}
		if len(text) > 0 && !styles.Equal(u.styles) {
			flush()
		}
		if len(text) == 0 {
			styles = u.styles
		}
		text = append(text, u.r)
	}
	flush()
	return out
}
