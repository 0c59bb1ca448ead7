package apply

import (
	"richCollab/backend/internal/ot/bytecode"
	"richCollab/backend/internal/ot/doc"
	"richCollab/backend/internal/ot/op"
)

// delInner 用双游标合并文档 span 与删除程序 delvec。
// 每条删除指令都需要一个文档单位；delvec 先耗尽时剩余单位原样接在结果之后。
func delInner(bc *bytecode.Program, spanvec doc.Span, delvec op.DelSpan, depth int) (doc.Span, error) {
	if len(delvec) == 0 {
		out := make(doc.Span, len(spanvec))
		copy(out, spanvec)
		return out, nil
	}

	span := spanvec
	var first doc.Node
	exhausted := len(span) == 0
	if !exhausted {
		first, span = span[0], span[1:]
	}

	d, del := delvec[0], delvec[1:]
	res := make(doc.Span, 0, len(spanvec))

	for {
		nextDel, nextFirst := true, true

		switch el := d.(type) {
		case op.DelSkip:
			if el.N < 0 {
				return nil, malformed("negative count %d on %T", el.N, d)
			}
			if el.N == 0 {
				nextFirst = false
				break
			}
			if exhausted {
				return nil, malformed("document exhausted on DelSkip(%d)", el.N)
			}
			switch node := first.(type) {
			case doc.Run:
				l := node.Len()
				switch {
				case l < el.N:
					bc.Place(bytecode.Advance{N: l})
					res = append(res, node)
					d = op.DelSkip{N: el.N - l}
					nextDel = false
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
				bc.Place(bytecode.Advance{N: 1})
				res = append(res, node)
				if el.N > 1 {
					d = op.DelSkip{N: el.N - 1}
					nextDel = false
				}
			}

		case op.DelChars:
			if el.N < 0 {
				return nil, malformed("negative count %d on %T", el.N, d)
			}
			if el.N == 0 {
				nextFirst = false
				break
			}
			if exhausted {
				return nil, malformed("document exhausted on DelChars(%d)", el.N)
			}
			run, ok := first.(doc.Run)
			if !ok {
				return nil, malformed("DelChars(%d) applied to %T", el.N, first)
			}
			l := run.Len()
			switch {
			case l < el.N:
				bc.Place(bytecode.Delete{N: l})
				d = op.DelChars{N: el.N - l}
				nextDel = false
			case l > el.N:
				_, right := run.SplitAt(el.N)
				bc.Place(bytecode.Delete{N: el.N})
				first = right
				nextFirst = false
			default:
				bc.Place(bytecode.Delete{N: l})
			}

		case op.DelStyles:
			if el.N < 0 {
				return nil, malformed("negative count %d on %T", el.N, d)
			}
			if el.N == 0 {
				nextFirst = false
				break
			}
			if exhausted {
				return nil, malformed("document exhausted on DelStyles(%d)", el.N)
			}
			run, ok := first.(doc.Run)
			if !ok {
				return nil, malformed("DelStyles(%d) applied to %T", el.N, first)
			}
			l := run.Len()
			switch {
			case l < el.N:
				res = append(res, restyle(bc, run, run.Styles.Minus(el.Styles)))
				d = op.DelStyles{N: el.N - l, Styles: el.Styles}
				nextDel = false
			case l > el.N:
				left, right := run.SplitAt(el.N)
				res = append(res, restyle(bc, left, left.Styles.Minus(el.Styles)))
				first = right
				nextFirst = false
			default:
				res = append(res, restyle(bc, run, run.Styles.Minus(el.Styles)))
			}

		case op.DelWithGroup:
			g, err := expectGroup(exhausted, first, "DelWithGroup", depth)
			if err != nil {
				return nil, err
			}
			bc.Place(bytecode.Enter{})
			children, err := delInner(bc, g.Children, el.Span, depth+1)
			if err != nil {
				return nil, err
			}
			bc.Place(bytecode.Exit{})
			res = append(res, doc.Group{Attrs: g.Attrs, Children: children})

		case op.DelGroup:
			g, err := expectGroup(exhausted, first, "DelGroup", depth)
			if err != nil {
				return nil, err
			}
			bc.Place(bytecode.Enter{})
			children, err := delInner(bc, g.Children, el.Span, depth+1)
			if err != nil {
				return nil, err
			}
			bc.Place(bytecode.Exit{})
			bc.Place(bytecode.Unwrap{})
			res = append(res, children...)

		default:
			return nil, malformed("unknown delete element %T", d)
		}

		if nextDel {
			if len(del) == 0 {
				if !nextFirst && !exhausted {
					res = append(res, first)
				}
				res = append(res, span...)
				return res, nil
			}
			d, del = del[0], del[1:]
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

func expectGroup(exhausted bool, first doc.Node, name string, depth int) (doc.Group, error) {
	if exhausted {
		return doc.Group{}, malformed("document exhausted on %s", name)
	}
	g, ok := first.(doc.Group)
	if !ok {
		return doc.Group{}, malformed("%s applied to %T", name, first)
	}
	if err := checkDepth(depth + 1); err != nil {
		return doc.Group{}, err
	}
	return g, nil
}
