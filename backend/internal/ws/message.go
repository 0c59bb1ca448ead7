package ws

import (
	"time"

	json "github.com/goccy/go-json"

	"richCollab/backend/internal/ot/apply"
	"richCollab/backend/internal/ot/op"
)

type ClientMessage struct {
	Type         string `json:"type"`
	DocID        string `json:"docId"`
	DocTitle     string `json:"docTitle"`
	BaseRevision uint64 `json:"baseRevision"`
	ClientId     string `json:"clientId"`
	ClientSeq    uint64 `json:"clientSeq"`
	Op           *op.Op `json:"op,omitempty"`
	// catchUp 时使用：返回 FromRevision 之后的全部操作
	FromRevision uint64 `json:"fromRevision"`
}

type PresenceMember struct {
	UserID   uint64 `json:"userId"`
	Username string `json:"username,omitempty"`
}

type ServerMessage struct {
	Type     string           `json:"type"`
	Code     string           `json:"code,omitempty"`
	UserID   uint64           `json:"userId,omitempty"`
	DocID    string           `json:"docId,omitempty"`
	Revision uint64           `json:"revision,omitempty"`
	Members  []PresenceMember `json:"members,omitempty"`
	Document json.RawMessage  `json:"document,omitempty"`
	Content  string           `json:"content,omitempty"`
}

type OpSubmitMessage struct {
	Type         string `json:"type"`
	DocID        string `json:"docId"`
	BaseRevision uint64 `json:"baseRevision"`
	// 客户端实例标识。同一用户可有多个 clientId（多端/多标签页）。
	ClientId string `json:"clientId"`
	// 针对同一个 clientId 的“本地递增序号”
	ClientSeq uint64 `json:"clientSeq"`
	Op        op.Op  `json:"op"`
}

// 广播给同文档房间内其他连接的“已应用操作”事件
// - 与 op_applied(ack) 区分：这里用于把变更推送给其他协作者（包括同用户的其他标签页）
// - Trace 中的 delete/insert 两段字节码按顺序回放即可更新本地渲染，无需重新执行 op
type OpBroadcastMessage struct {
	Type        string      `json:"type"` // 固定 "op_broadcast"
	DocID       string      `json:"docId"`
	Revision    uint64      `json:"revision"` // 服务端已应用后的最新版本
	OperationId string      `json:"operationId"`
	AuthorID    uint64      `json:"authorId"`
	ClientId    string      `json:"clientId,omitempty"`
	ClientSeq   uint64      `json:"clientSeq,omitempty"`
	Op          op.Op       `json:"op"`
	Trace       apply.Trace `json:"trace"`
	AppliedAt   time.Time   `json:"appliedAt,omitempty"`
}

type OpAppliedMessage struct {
	Type            string      `json:"type"` // 固定 "op_applied"
	DocID           string      `json:"docId"`
	OperationId     string      `json:"operationId"`
	BaseRevision    uint64      `json:"baseRevision"`    // 客户端提交时的 base
	CurrentRevision uint64      `json:"currentRevision"` // 服务端应用后的最新版本
	ClientId        string      `json:"clientId"`
	ClientSeq       uint64      `json:"clientSeq"`
	Trace           apply.Trace `json:"trace"`
}
