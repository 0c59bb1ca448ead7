package apply

import (
	"richCollab/backend/internal/ot/bytecode"
	"richCollab/backend/internal/ot/doc"
	"richCollab/backend/internal/ot/op"
)

// Trace 是一次操作产生的两段轨迹，渲染端必须先回放 Delete 再回放 Insert。
type Trace struct {
	Delete *bytecode.Program `json:"delete"`
	Insert *bytecode.Program `json:"insert"`
}

// Programs 按回放顺序返回两段轨迹。
func (t Trace) Programs() []*bytecode.Program {
	return []*bytecode.Program{t.Delete, t.Insert}
}

func ApplyDelete(span doc.Span, del op.DelSpan) (doc.Span, error) {
	res, _, err := ApplyDeleteTraced(span, del)
	return res, err
}

func ApplyDeleteTraced(span doc.Span, del op.DelSpan) (doc.Span, *bytecode.Program, error) {
	bc := bytecode.NewProgram()
	res, err := delInner(bc, span, del, 0)
	if err != nil {
		return nil, nil, err
	}
	return res, bc, nil
}

func ApplyAdd(span doc.Span, add op.AddSpan) (doc.Span, error) {
	res, _, err := ApplyAddTraced(span, add)
	return res, err
}

func ApplyAddTraced(span doc.Span, add op.AddSpan) (doc.Span, *bytecode.Program, error) {
	bc := bytecode.NewProgram()
	res, err := addOuter(bc, span, add, 0)
	if err != nil {
		return nil, nil, err
	}
	return res, bc, nil
}

// Apply 对 span 应用 o：删除程序作用于原文档，插入程序作用于删除后的文档。
// 出错时不返回任何部分结果。
func Apply(span doc.Span, o op.Op) (doc.Span, error) {
	res, _, err := ApplyTraced(span, o)
	return res, err
}

// ApplyTraced 与 Apply 相同，另外返回两段编辑轨迹。
func ApplyTraced(span doc.Span, o op.Op) (doc.Span, Trace, error) {
	postDel, delProgram, err := ApplyDeleteTraced(span, o.Del)
	if err != nil {
		return nil, Trace{}, err
	}
	res, addProgram, err := ApplyAddTraced(postDel, o.Add)
	if err != nil {
		return nil, Trace{}, err
	}
	return res, Trace{Delete: delProgram, Insert: addProgram}, nil
}
