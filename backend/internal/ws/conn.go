package ws

import (
	"context"
	"errors"
	"log"
	"strconv"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"richCollab/backend/internal/collab"
	"richCollab/backend/internal/ot/apply"
	"richCollab/backend/internal/ot/doc"
)

var (
	// 在线状态的逻辑 TTL，心跳会刷新
	PresenceTTL = 600 * time.Second
	// 单次提交（含等待信号量）的最长耗时
	SubmitTimeout = 200 * time.Millisecond
	writeWait     = 10 * time.Second
)

type Conn struct {
	ws       *websocket.Conn
	hub      *Hub
	docID    string
	userID   uint64
	username string
	// 出站队列，由 writeLoop 独占消费
	send chan OutboundMessage
	// readLoop 退出时关闭；send 本身不关闭，避免广播方向已关闭的通道写入
	done      chan struct{}
	closeOnce sync.Once
	//协作引擎服务
	svc collab.Service
	// 信号量控制
	sem *collab.SemaphoreControl
}

// 出站消息接口
type OutboundMessage interface {
	MessageType() string
}

func (m ServerMessage) MessageType() string      { return m.Type }
func (m OpAppliedMessage) MessageType() string   { return m.Type }
func (m OpBroadcastMessage) MessageType() string { return m.Type }

func NewConn(ws *websocket.Conn, hub *Hub, userID uint64, username string, svc collab.Service, sem *collab.SemaphoreControl) *Conn {
	return &Conn{
		ws:       ws,
		hub:      hub,
		userID:   userID,
		username: username,
		send:     make(chan OutboundMessage, 32),
		done:     make(chan struct{}),
		svc:      svc,
		sem:      sem,
	}
}

func (c *Conn) SendMessage_Enqueue(msg OutboundMessage) {
	select {
	case <-c.done:
		return
	default:
	}
	select {
	case c.send <- msg:
	default:
		// 如果队列满了，则丢弃消息，客户端靠 revision 空洞发现并 catchUp
		log.Printf("send queue full, drop %s (user=%d)", msg.MessageType(), c.userID)
	}
}

func (c *Conn) sendError(code string, err error) {
	c.SendMessage_Enqueue(ServerMessage{Type: "error", Code: code, DocID: c.docID, Content: err.Error()})
}

// errorCode 把领域错误转成客户端可识别的错误码
func errorCode(err error) string {
	switch {
	case errors.Is(err, collab.ErrRevisionConflict):
		return "REVISION_CONFLICT"
	case errors.Is(err, collab.ErrDuplicateOrOutOfOrder):
		return "DUPLICATE_OR_OUT_OF_ORDER"
	case errors.Is(err, collab.ErrHistoryTrimmed):
		return "HISTORY_TRIMMED"
	case errors.Is(err, collab.ErrDocumentNotFound):
		return "DOCUMENT_NOT_FOUND"
	case errors.Is(err, apply.ErrMalformedOperation):
		return "MALFORMED_OPERATION"
	case errors.Is(err, apply.ErrTooDeep):
		return "DOCUMENT_TOO_DEEP"
	case errors.Is(err, collab.ErrAcquireTimeout):
		return "BUSY"
	}
	return "INTERNAL"
}

func (c *Conn) handleOpSubmit(ctx context.Context, msg OpSubmitMessage) {
	submitCtx, cancel := context.WithTimeout(ctx, SubmitTimeout)
	defer cancel()

	if err := c.sem.Acquire(submitCtx); err != nil {
		c.sendError(errorCode(err), err)
		return
	}
	defer c.sem.Release()

	applied, err := c.svc.Submit(submitCtx, msg.DocID, c.userID,
		msg.BaseRevision, msg.ClientId, msg.ClientSeq, msg.Op)
	if err != nil {
		c.sendError(errorCode(err), err)
		return
	}
	c.SendMessage_Enqueue(OpAppliedMessage{
		Type:            "op_applied",
		DocID:           msg.DocID,
		OperationId:     applied.OperationId,
		BaseRevision:    msg.BaseRevision,
		CurrentRevision: applied.Revision,
		ClientId:        msg.ClientId,
		ClientSeq:       msg.ClientSeq,
		Trace:           applied.Trace,
	})
	c.hub.BroadcastAppliedOp(msg.DocID, c, applied)
}

// touchPresence 刷新在线状态并把最新成员列表推给房间
func (c *Conn) touchPresence(ctx context.Context) {
	if c.hub.presence == nil || c.docID == "" {
		return
	}
	if err := c.hub.presence.Touch(ctx, c.docID, c.userID, c.username, PresenceTTL); err != nil {
		log.Printf("touch presence error: %v", err)
		return
	}
	members, err := c.aliveMembers(ctx)
	if err != nil {
		log.Printf("get alive members error: %v", err)
		return
	}
	c.hub.BroadcastPresence(c.docID, members)
}

func (c *Conn) aliveMembers(ctx context.Context) ([]PresenceMember, error) {
	if c.hub.presence == nil {
		return nil, nil
	}
	members, err := c.hub.presence.AliveMembers(ctx, c.docID)
	if err != nil {
		return nil, err
	}
	// cache.PresenceMember 与 ws.PresenceMember 是两个类型，这里转成带 json tag 的版本
	out := make([]PresenceMember, len(members))
	for i, m := range members {
		out[i] = PresenceMember{UserID: m.UserID, Username: m.Username}
	}
	return out, nil
}

// leaveDoc 离开当前房间
func (c *Conn) leaveDoc(ctx context.Context) {
	if c.docID == "" {
		return
	}
	c.hub.Leave(c.docID, c)
	if c.hub.presence != nil {
		if err := c.hub.presence.Leave(ctx, c.docID, c.userID); err != nil {
			log.Printf("leave presence error: %v", err)
		}
	}
}

func (c *Conn) joinDoc(ctx context.Context, docID string) {
	rev, err := c.svc.CurrentRevision(ctx, docID)
	if err != nil {
		c.sendError(errorCode(err), err)
		return
	}
	if c.docID != docID {
		// 先离开旧房间
		c.leaveDoc(ctx)
		c.docID = docID
	}
	c.hub.Join(docID, c)
	c.SendMessage_Enqueue(ServerMessage{Type: "joinDocument", DocID: docID, Revision: rev,
		Content: "Document " + docID + " joined by user " + strconv.FormatUint(c.userID, 10)})
	c.touchPresence(ctx)
}

func (c *Conn) loadDoc(ctx context.Context, docID string) {
	span, rev, err := c.svc.LoadDocument(ctx, docID)
	if err == nil {
		var encoded []byte
		if encoded, err = doc.Encode(span); err == nil {
			c.SendMessage_Enqueue(ServerMessage{Type: "loadDocument", DocID: docID, Revision: rev, Document: encoded})
			return
		}
	}
	log.Printf("load document error: %v", err)
	c.sendError(errorCode(err), err)
}

// catchUp 把 fromRevision 之后的操作逐条补发给当前连接
func (c *Conn) catchUp(ctx context.Context, docID string, from uint64) {
	ops, err := c.svc.OpsSince(ctx, docID, from, 0)
	if err != nil {
		c.sendError(errorCode(err), err)
		return
	}
	for _, ap := range ops {
		c.SendMessage_Enqueue(newBroadcast(docID, ap))
	}
}

func (c *Conn) readLoop(ctx context.Context) {
	defer func() {
		c.leaveDoc(context.Background())
		c.closeOnce.Do(func() { close(c.done) })
	}()
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("read error (user=%d, doc=%s): %v", c.userID, c.docID, err)
			}
			return
		}
		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.sendError("BAD_REQUEST", err)
			continue
		}
		c.dispatch(ctx, msg)
	}
}

func (c *Conn) dispatch(ctx context.Context, msg ClientMessage) {
	// 未指定 docId 的消息作用于当前房间
	docID := msg.DocID
	if docID == "" {
		docID = c.docID
	}
	switch msg.Type {
	case "heartbeat":
		c.touchPresence(ctx)
		c.SendMessage_Enqueue(ServerMessage{Type: "feedback", Content: "Heartbeat received"})

	case "createDocument":
		docID, err := c.svc.CreateDocument(ctx, c.userID, msg.DocTitle)
		if err != nil {
			log.Printf("create document error: %v", err)
			c.sendError("CREATE_DOC_FAILED", err)
			return
		}
		c.SendMessage_Enqueue(ServerMessage{Type: "createDocument", DocID: docID,
			Content: "Document " + docID + " created by user " + strconv.FormatUint(c.userID, 10)})

	case "joinDocument":
		// 允许按标题加入，用于动态切换房间
		if msg.DocID == "" && msg.DocTitle != "" {
			id, err := c.svc.GetDocumentID(ctx, msg.DocTitle)
			if err != nil {
				c.sendError(errorCode(err), err)
				return
			}
			docID = id
		}
		c.joinDoc(ctx, docID)

	case "show_alive_members":
		members, err := c.aliveMembers(ctx)
		if err != nil {
			log.Printf("get alive members error: %v", err)
		}
		c.SendMessage_Enqueue(ServerMessage{Type: "show_alive_members", DocID: c.docID, Members: members})

	case "loadDocument":
		c.loadDoc(ctx, docID)

	case "catchUp":
		c.catchUp(ctx, docID, msg.FromRevision)

	case "op_submit":
		if msg.Op == nil {
			c.sendError("BAD_REQUEST", errors.New("op required"))
			return
		}
		c.handleOpSubmit(ctx, OpSubmitMessage{
			Type:         msg.Type,
			DocID:        docID,
			BaseRevision: msg.BaseRevision,
			ClientId:     msg.ClientId,
			ClientSeq:    msg.ClientSeq,
			Op:           *msg.Op,
		})

	case "saveDocument":
		if err := c.svc.SaveSnapshot(ctx, docID); err != nil {
			log.Printf("save document error: %v", err)
			c.sendError(errorCode(err), err)
			return
		}
		rev, _ := c.svc.CurrentRevision(ctx, docID)
		c.SendMessage_Enqueue(ServerMessage{Type: "saveDocument", DocID: docID, Revision: rev,
			Content: "Document " + docID + " saved"})

	default:
		c.SendMessage_Enqueue(ServerMessage{Type: "ignored", Content: "Unknown message type"})
	}
}

func (c *Conn) writeLoop() {
	for {
		select {
		case msg := <-c.send:
			data, err := json.Marshal(msg)
			if err != nil {
				log.Printf("encode %s error: %v", msg.MessageType(), err)
				continue
			}
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Printf("write error (user=%d): %v", c.userID, err)
				return
			}
		case <-c.done:
			return
		}
	}
}
