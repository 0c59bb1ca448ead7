// Package apply 把一个已经过变换的 op.Op 应用到文档上：先删除后插入，
// 同时生成渲染端回放用的编辑轨迹。
//
// 引擎是纯函数：输入文档和操作都不会被修改，不同文档上的调用可以完全并行。
// 递归深度等于文档嵌套深度，超过 MaxDepth 时直接失败。
package apply

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedOperation 表示操作的寻址与文档不一致：文档已耗尽但指令仍需单位，
	// 或指令作用在它不支持的节点类型上。这是上游变换层的不变式被破坏，不可重试。
	ErrMalformedOperation = errors.New("MALFORMED_OPERATION")
	ErrTooDeep            = errors.New("document nesting too deep")
)

// MaxDepth 限制递归进入 Group 的层数。
var MaxDepth = 512

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedOperation, fmt.Sprintf(format, args...))
}

func checkDepth(depth int) error {
	if depth > MaxDepth {
		return fmt.Errorf("%w: depth %d exceeds %d", ErrTooDeep, depth, MaxDepth)
	}
	return nil
}
