package ws

import (
	"context"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"richCollab/backend/internal/collab"
	"richCollab/backend/internal/ot/doc"
	"richCollab/backend/internal/store"
)

type fakeDocuments struct {
	byTitle map[string]string
}

func (f *fakeDocuments) GetDocumentID(ctx context.Context, title string) (string, error) {
	if id, ok := f.byTitle[title]; ok {
		return id, nil
	}
	return "", store.ErrDocumentNotFound
}

func (f *fakeDocuments) CreateDocument(ctx context.Context, ownerID uint64, title string) (string, error) {
	id := "id-" + title
	f.byTitle[title] = id
	return id, nil
}

func (f *fakeDocuments) DocumentExists(ctx context.Context, docID string) (bool, error) {
	for _, id := range f.byTitle {
		if id == docID {
			return true, nil
		}
	}
	return false, nil
}

func TestHub_JoinLeaveBroadcast(t *testing.T) {
	h := NewHub(nil)
	a := NewConn(nil, h, 1, "a", nil, nil)
	b := NewConn(nil, h, 2, "b", nil, nil)
	h.Join("d1", a)
	h.Join("d1", b)
	h.Join("d1", b)
	if got := h.RoomSize("d1"); got != 2 {
		t.Fatalf("RoomSize() = %d, want 2", got)
	}

	h.BroadcastAppliedOp("d1", a, collab.AppliedOp{Revision: 7, AuthorId: 1})
	select {
	case msg := <-b.send:
		bm, ok := msg.(OpBroadcastMessage)
		if !ok || bm.Revision != 7 || bm.Type != "op_broadcast" {
			t.Fatalf("b got %#v", msg)
		}
	default:
		t.Fatalf("b got nothing")
	}
	select {
	case msg := <-a.send:
		t.Fatalf("sender should not receive its own op, got %#v", msg)
	default:
	}

	h.Leave("d1", a)
	h.Leave("d1", b)
	if got := h.RoomSize("d1"); got != 0 {
		t.Fatalf("RoomSize() after leave = %d, want 0", got)
	}
}

func TestConn_DropsAfterDone(t *testing.T) {
	c := NewConn(nil, NewHub(nil), 1, "a", nil, nil)
	close(c.done)
	c.SendMessage_Enqueue(ServerMessage{Type: "feedback"})
	if len(c.send) != 0 {
		t.Fatalf("message queued on closed connection")
	}
}

type inbound struct {
	Type            string          `json:"type"`
	Code            string          `json:"code"`
	DocID           string          `json:"docId"`
	Revision        uint64          `json:"revision"`
	CurrentRevision uint64          `json:"currentRevision"`
	Document        json.RawMessage `json:"document"`
	Trace           struct {
		Delete []map[string]any `json:"delete"`
		Insert []map[string]any `json:"insert"`
	} `json:"trace"`
}

func newTestServer(t *testing.T) (*httptest.Server, collab.Service) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	svc := collab.NewInMemoryService(nil, &fakeDocuments{byTitle: map[string]string{}}, nil, nil, 0)
	m := NewManager(NewHub(nil), svc, collab.NewSemaphoreControl(4), nil)
	r := gin.New()
	r.GET("/ws", func(c *gin.Context) {
		uid, _ := strconv.ParseUint(c.Query("uid"), 10, 64)
		c.Set("userId", uid)
		m.WebSocketConnect(c)
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, svc
}

func dial(t *testing.T, srv *httptest.Server, uid int) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?uid=" + strconv.Itoa(uid)
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if got := read(t, conn); got.Type != "welcome" {
		t.Fatalf("first message = %q, want welcome", got.Type)
	}
	return conn
}

func write(t *testing.T, conn *websocket.Conn, msg string) {
	t.Helper()
	if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func read(t *testing.T, conn *websocket.Conn) inbound {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var in inbound
	if err := json.Unmarshal(data, &in); err != nil {
		t.Fatalf("decode %s: %v", data, err)
	}
	return in
}

func TestRealtimeSession(t *testing.T) {
	srv, svc := newTestServer(t)
	docID, err := svc.CreateDocument(context.Background(), 1, "notes")
	if err != nil {
		t.Fatalf("CreateDocument() error = %v", err)
	}

	a := dial(t, srv, 1)
	b := dial(t, srv, 2)
	for _, c := range []*websocket.Conn{a, b} {
		write(t, c, `{"type":"joinDocument","docTitle":"notes"}`)
		if got := read(t, c); got.Type != "joinDocument" || got.DocID != docID {
			t.Fatalf("join reply = %+v", got)
		}
	}

	write(t, a, `{"type":"op_submit","baseRevision":0,"clientId":"a","clientSeq":1,
		"op":{"del":[],"add":[{"tag":"AddChars","fields":"hello"}]}}`)
	ack := read(t, a)
	if ack.Type != "op_applied" || ack.CurrentRevision != 1 {
		t.Fatalf("ack = %+v", ack)
	}
	bc := read(t, b)
	if bc.Type != "op_broadcast" || bc.Revision != 1 || len(bc.Trace.Insert) != 1 {
		t.Fatalf("broadcast = %+v", bc)
	}

	// b 仍然基于版本 0 提交
	write(t, b, `{"type":"op_submit","baseRevision":0,"clientId":"b","clientSeq":1,
		"op":{"del":[],"add":[{"tag":"AddChars","fields":"x"}]}}`)
	if got := read(t, b); got.Type != "error" || got.Code != "REVISION_CONFLICT" {
		t.Fatalf("stale submit reply = %+v", got)
	}

	write(t, b, `{"type":"catchUp","fromRevision":0}`)
	if got := read(t, b); got.Type != "op_broadcast" || got.Revision != 1 {
		t.Fatalf("catchUp reply = %+v", got)
	}

	write(t, b, `{"type":"loadDocument"}`)
	got := read(t, b)
	if got.Type != "loadDocument" || got.Revision != 1 {
		t.Fatalf("load reply = %+v", got)
	}
	span, err := doc.Decode(got.Document)
	if err != nil {
		t.Fatalf("decode document: %v", err)
	}
	if !span.Equal(doc.Span{doc.Run{Text: "hello"}}) {
		t.Fatalf("document = %s", got.Document)
	}

	write(t, b, `{"type":"op_submit","baseRevision":1,"clientId":"b","clientSeq":1,
		"op":{"del":[{"tag":"DelChars","fields":9}],"add":[]}}`)
	if got := read(t, b); got.Type != "error" || got.Code != "MALFORMED_OPERATION" {
		t.Fatalf("malformed submit reply = %+v", got)
	}

	write(t, b, `{"type":"nope"}`)
	if got := read(t, b); got.Type != "ignored" {
		t.Fatalf("unknown type reply = %+v", got)
	}
}

func TestJoinUnknownDocument(t *testing.T) {
	srv, _ := newTestServer(t)
	c := dial(t, srv, 1)
	write(t, c, `{"type":"joinDocument","docId":"missing"}`)
	if got := read(t, c); got.Type != "error" || got.Code != "DOCUMENT_NOT_FOUND" {
		t.Fatalf("join reply = %+v", got)
	}
}

func TestOriginAllowed(t *testing.T) {
	allowed := append(append([]string{}, devOrigins...), "https://app.example.com", "http://docs.example.com:8080")
	tests := []struct {
		origin string
		want   bool
	}{
		{"http://localhost", true},
		{"http://localhost:5173", true},
		{"https://127.0.0.1:8443", true},
		{"https://app.example.com", true},
		{"https://APP.example.com:443", true},
		{"http://docs.example.com:8080", true},
		{"http://localhost.evil.example", false},
		{"http://localhost.evil.example:5173", false},
		{"https://app.example.com.attacker.net", false},
		{"http://app.example.com", false},
		{"http://docs.example.com:9090", false},
		{"http://docs.example.com", false},
		{"not a url", false},
	}
	for _, tt := range tests {
		if got := originAllowed(tt.origin, allowed); got != tt.want {
			t.Errorf("originAllowed(%q) = %v, want %v", tt.origin, got, tt.want)
		}
	}
}

func TestUpgradeRejectsLookalikeOrigin(t *testing.T) {
	srv, _ := newTestServer(t)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?uid=1"
	hdr := map[string][]string{"Origin": {"http://localhost.evil.example"}}
	conn, resp, err := websocket.DefaultDialer.Dial(url, hdr)
	if err == nil {
		conn.Close()
		t.Fatalf("dial with lookalike origin succeeded")
	}
	if resp == nil || resp.StatusCode != 403 {
		t.Fatalf("dial response = %v, want 403", resp)
	}
}
