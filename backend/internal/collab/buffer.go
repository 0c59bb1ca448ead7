package collab

import (
	"richCollab/backend/internal/ot/apply"
	"richCollab/backend/internal/ot/doc"
	"richCollab/backend/internal/ot/op"
)

// 抽象文档内容缓冲区接口
type Buffer interface {
	Units() int
	// Apply 应用操作并返回渲染端回放用的轨迹。失败时缓冲区保持不变。
	Apply(o op.Op) (apply.Trace, error)
	Span() doc.Span
}

// spanBuffer 持有文档树的当前值。apply 引擎不修改输入，
// 所以成功时直接替换 span，失败时旧值原样保留。
type spanBuffer struct {
	span doc.Span
}

func NewSpanBuffer(initial doc.Span) Buffer {
	if initial == nil {
		initial = doc.Span{}
	}
	return &spanBuffer{span: initial}
}

func (b *spanBuffer) Units() int { return b.span.Units() }

func (b *spanBuffer) Apply(o op.Op) (apply.Trace, error) {
	next, trace, err := apply.ApplyTraced(b.span, o)
	if err != nil {
		return apply.Trace{}, err
	}
	// 合并相邻同样式 Run 不改变单位计数，轨迹仍然有效
	b.span = doc.Normalize(next)
	return trace, nil
}

func (b *spanBuffer) Span() doc.Span { return b.span }

/*
结构示例

初始文档：

	[ Group{tag:p}[ Run("Hello") ], Run("!") ]

插入操作 [AddWithGroup[AddSkip(5), AddChars(" world")]] 产生：

	delete 轨迹: []
	insert 轨迹: [Enter, Advance(5), Insert(" world"), Exit]

新文档：

	[ Group{tag:p}[ Run("Hello world") ], Run("!") ]
*/
