package apply

import (
	"richCollab/backend/internal/ot/bytecode"
	"richCollab/backend/internal/ot/doc"
	"richCollab/backend/internal/ot/op"
)

// addInner 用双游标合并文档 span 与插入程序 addvec。
// 返回新的 span，以及 addvec 耗尽时还没被寻址到的剩余单位（原样返回，不产生轨迹）。
func addInner(bc *bytecode.Program, spanvec doc.Span, addvec op.AddSpan, depth int) (doc.Span, doc.Span, error) {
	if len(addvec) == 0 {
		return doc.Span{}, spanvec, nil
	}

	span := spanvec
	var first doc.Node
	exhausted := len(span) == 0
	if !exhausted {
		first, span = span[0], span[1:]
	}

	d, add := addvec[0], addvec[1:]
	res := make(doc.Span, 0, len(spanvec))

	for {
		// 本轮是否完整消耗了当前指令 / 当前文档单位
		nextAdd, nextFirst := true, true

		switch el := d.(type) {
		case op.AddSkip:
			if el.N < 0 {
				return nil, nil, malformed("negative count %d on %T", el.N, d)
			}
			if el.N == 0 {
				nextFirst = false
				break
			}
			if exhausted {
				return nil, nil, malformed("document exhausted on AddSkip(%d)", el.N)
			}
			switch node := first.(type) {
			case doc.Run:
				l := node.Len()
				switch {
				case l < el.N:
					bc.Place(bytecode.Advance{N: l})
					res = append(res, node)
					d = op.AddSkip{N: el.N - l}
					nextAdd = false
				case l > el.N:
					left, right := node.SplitAt(el.N)
					bc.Place(bytecode.Advance{N: el.N})
					res = append(res, left)
					first = right
					nextFirst = false
				default:
					bc.Place(bytecode.Advance{N: l})
					res = append(res, node)
				}
			case doc.Group:
				// Group 整体算一个单位
				bc.Place(bytecode.Advance{N: 1})
				res = append(res, node)
				if el.N > 1 {
					d = op.AddSkip{N: el.N - 1}
					nextAdd = false
				}
			}

		case op.AddStyles:
			if el.N < 0 {
				return nil, nil, malformed("negative count %d on %T", el.N, d)
			}
			if el.N == 0 {
				nextFirst = false
				break
			}
			if exhausted {
				return nil, nil, malformed("document exhausted on AddStyles(%d)", el.N)
			}
			run, ok := first.(doc.Run)
			if !ok {
				return nil, nil, malformed("AddStyles(%d) applied to %T", el.N, first)
			}
			l := run.Len()
			switch {
			case l < el.N:
				res = append(res, restyle(bc, run, run.Styles.Union(el.Styles)))
				d = op.AddStyles{N: el.N - l, Styles: el.Styles}
				nextAdd = false
			case l > el.N:
				left, right := run.SplitAt(el.N)
				res = append(res, restyle(bc, left, left.Styles.Union(el.Styles)))
				first = right
				nextFirst = false
			default:
				res = append(res, restyle(bc, run, run.Styles.Union(el.Styles)))
			}

		case op.AddChars:
			// 不消耗文档单位，文档耗尽后也可以继续插入
			if el.Text != "" {
				bc.Place(bytecode.Insert{Text: el.Text})
				res = append(res, doc.Run{Text: el.Text, Styles: doc.StyleSet{}})
			}
			nextFirst = false

		case op.AddWithGroup:
			if exhausted {
				return nil, nil, malformed("document exhausted on AddWithGroup")
			}
			g, ok := first.(doc.Group)
			if !ok {
				return nil, nil, malformed("AddWithGroup applied to %T", first)
			}
			if err := checkDepth(depth + 1); err != nil {
				return nil, nil, err
			}
			bc.Place(bytecode.Enter{})
			children, err := addOuter(bc, g.Children, el.Span, depth+1)
			if err != nil {
				return nil, nil, err
			}
			bc.Place(bytecode.Exit{})
			res = append(res, doc.Group{Attrs: g.Attrs, Children: children})

		case op.AddGroup:
			if err := checkDepth(depth + 1); err != nil {
				return nil, nil, err
			}
			// 新 Group 的内容来自“当前单位 + 外层剩余部分”
			var sub doc.Span
			if !exhausted {
				sub = make(doc.Span, 0, len(span)+1)
				sub = append(sub, first)
				sub = append(sub, span...)
			}
			inner, rest, err := addInner(bc, sub, el.Span, depth+1)
			if err != nil {
				return nil, nil, err
			}
			attrs := el.Attrs.Clone()
			bc.Place(bytecode.Wrap{N: inner.Units(), Attrs: attrs})
			res = append(res, doc.Group{Attrs: attrs, Children: inner})

			// 外层剩余指令接着处理 inner 没用完的部分，本轮合并到此结束
			tail, rest, err := addInner(bc, rest, add, depth)
			if err != nil {
				return nil, nil, err
			}
			res = append(res, tail...)
			return res, rest, nil

		default:
			return nil, nil, malformed("unknown insert element %T", d)
		}

		if nextAdd {
			if len(add) == 0 {
				remaining := make(doc.Span, 0, len(span)+1)
				if !nextFirst && !exhausted {
					remaining = append(remaining, first)
				}
				remaining = append(remaining, span...)
				return res, remaining, nil
			}
			d, add = add[0], add[1:]
		}

		if nextFirst {
			if len(span) == 0 {
				exhausted = true
				first = nil
			} else {
				first, span = span[0], span[1:]
			}
		}
	}
}

// addOuter 把 addInner 剩余的单位原样接在结果之后。
// 良构的操作在顶层不会留下剩余部分。
func addOuter(bc *bytecode.Program, span doc.Span, add op.AddSpan, depth int) (doc.Span, error) {
	res, rest, err := addInner(bc, span, add, depth)
	if err != nil {
		return nil, err
	}
	if len(rest) > 0 {
		res = append(res, rest...)
	}
	return res, nil
}

// restyle 生成换了样式的 Run，轨迹上表现为删掉原字符再插入带新样式的文本。
func restyle(bc *bytecode.Program, run doc.Run, styles doc.StyleSet) doc.Run {
	out := run.WithStyles(styles)
	bc.Place(bytecode.Delete{N: run.Len()})
	bc.Place(bytecode.Insert{Text: out.Text, Styles: styles})
	return out
}
