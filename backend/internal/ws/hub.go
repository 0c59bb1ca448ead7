package ws

import (
	"sync"

	"richCollab/backend/internal/cache"
	"richCollab/backend/internal/collab"
)

type Hub struct {
	// 在线状态落在 Redis，Hub 自己只维护本进程内的连接
	presence cache.PresenceCache
	mu       sync.RWMutex
	// docID -> set of connections
	rooms map[string]map[*Conn]struct{}
}

func NewHub(p cache.PresenceCache) *Hub {
	return &Hub{presence: p, rooms: make(map[string]map[*Conn]struct{})}
}

// Join 将连接加入指定文档房间
func (h *Hub) Join(docID string, c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.rooms[docID] == nil {
		// 一个用户可开多个标签页，房间按连接而不是 userID 记录
		h.rooms[docID] = make(map[*Conn]struct{})
	}
	h.rooms[docID][c] = struct{}{}
}

// Leave 将连接从指定文档房间移除
func (h *Hub) Leave(docID string, c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conns, ok := h.rooms[docID]; ok {
		delete(conns, c)
		if len(conns) == 0 {
			delete(h.rooms, docID)
		}
	}
}

// RoomSize 返回本进程内某个房间的连接数
func (h *Hub) RoomSize(docID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[docID])
}

// 在锁内复制连接列表，发送时不持锁
func (h *Hub) snapshot(docID string) []*Conn {
	h.mu.RLock()
	defer h.mu.RUnlock()
	conns := make([]*Conn, 0, len(h.rooms[docID]))
	for c := range h.rooms[docID] {
		conns = append(conns, c)
	}
	return conns
}

func (h *Hub) BroadcastPresence(docID string, members []PresenceMember) {
	msg := ServerMessage{Type: "presence", DocID: docID, Members: members}
	for _, c := range h.snapshot(docID) {
		c.SendMessage_Enqueue(msg)
	}
}

// BroadcastAppliedOp 把已应用的操作连同两段字节码推给房间内除 from 以外的连接。
// 客户端按 revision 排序应用，出现空洞时用 catchUp 补齐。
func (h *Hub) BroadcastAppliedOp(docID string, from *Conn, ap collab.AppliedOp) {
	msg := newBroadcast(docID, ap)
	for _, c := range h.snapshot(docID) {
		if c == from {
			continue
		}
		c.SendMessage_Enqueue(msg)
	}
}

func newBroadcast(docID string, ap collab.AppliedOp) OpBroadcastMessage {
	return OpBroadcastMessage{
		Type:        "op_broadcast",
		DocID:       docID,
		Revision:    ap.Revision,
		OperationId: ap.OperationId,
		AuthorID:    ap.AuthorId,
		ClientId:    ap.ClientId,
		ClientSeq:   ap.ClientSeq,
		Op:          ap.Op,
		Trace:       ap.Trace,
		AppliedAt:   ap.AppliedAt,
	}
}
