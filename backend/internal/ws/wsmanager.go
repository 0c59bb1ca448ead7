package ws

import (
	"log"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"richCollab/backend/internal/collab"
)

// 本地开发环境总是放行
var devOrigins = []string{
	"http://localhost",
	"http://127.0.0.1",
	"https://localhost",
	"https://127.0.0.1",
}

type Manager struct {
	h        *Hub
	svc      collab.Service
	sem      *collab.SemaphoreControl
	upgrader websocket.Upgrader
}

// NewManager 创建 WebSocket 入口，allowOrigins 为额外允许的来源（scheme://host[:port]）。
func NewManager(h *Hub, svc collab.Service, sem *collab.SemaphoreControl, allowOrigins []string) *Manager {
	allowed := append(append([]string{}, devOrigins...), allowOrigins...)
	m := &Manager{h: h, svc: svc, sem: sem}
	m.upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || origin == "null" { // 一些环境可能不发送 Origin，或为 "null"
			return true
		}
		return originAllowed(origin, allowed)
	}}
	return m
}

// originAllowed 按 scheme 和 host 精确比较；允许项不带端口时任意端口都放行。
func originAllowed(origin string, allowed []string) bool {
	o, err := url.Parse(origin)
	if err != nil || o.Host == "" {
		return false
	}
	for _, a := range allowed {
		u, err := url.Parse(a)
		if err != nil || u.Host == "" || !strings.EqualFold(u.Scheme, o.Scheme) {
			continue
		}
		if u.Port() == "" {
			if strings.EqualFold(u.Hostname(), o.Hostname()) {
				return true
			}
		} else if strings.EqualFold(u.Host, o.Host) {
			return true
		}
	}
	return false
}

func (m *Manager) WebSocketConnect(c *gin.Context) {
	userID := c.GetUint64("userId")
	username := c.GetString("username")

	conn, err := m.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("websocket upgrade error: %v (origin=%s)", err, c.Request.Header.Get("Origin"))
		return
	}
	defer conn.Close()

	wsConn := NewConn(conn, m.h, userID, username, m.svc, m.sem)

	// 先启动写循环，确保后续写入 send 通道的消息可以被及时发送
	go wsConn.writeLoop()
	wsConn.SendMessage_Enqueue(ServerMessage{Type: "welcome", UserID: userID, Content: "有一个新成员加入了，欢迎"})

	// 最后再进入读循环（阻塞至连接关闭）
	wsConn.readLoop(c.Request.Context())
}
