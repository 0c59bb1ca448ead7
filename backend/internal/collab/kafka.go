package collab

import (
	"time"

	"richCollab/backend/internal/ot/apply"
	"richCollab/backend/internal/ot/op"
)

const EventOpApplied = "OP_APPLIED"

type DocOpEvent struct {
	EventType    string      `json:"eventType"` // 固定 "OP_APPLIED"
	DocID        string      `json:"docId"`
	OperationID  string      `json:"operationId"`
	Revision     uint64      `json:"revision"`
	AuthorID     uint64      `json:"authorId"`
	ClientID     string      `json:"clientId"`
	ClientSeq    uint64      `json:"clientSeq"` // 针对同一个 clientId 的“本地递增序号”
	BaseRevision uint64      `json:"baseRevision"`
	Op           op.Op       `json:"op"`
	Trace        apply.Trace `json:"trace"`
	AppliedAt    time.Time   `json:"appliedAt"`
}
