package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/betbot/copytrade/internal/ports"
)

const (
	sendBuffer   = 64
	writeTimeout = 10 * time.Second
	pongWait     = 60 * time.Second
	pingPeriod   = 54 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// 跨域由 rs/cors 与 token 控制
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Event websocket 推送的消息
type Event struct {
	Type string       `json:"type"`
	Data ports.Report `json:"data"`
}

// Hub 维护 websocket 连接并广播复制报告；发送缓冲满的连接直接断开
type Hub struct {
	mu      sync.RWMutex
	clients map[*wsClient]struct{}
	closed  bool
}

type wsClient struct {
	id   string
	conn *websocket.Conn
	send chan []byte
}

var _ ports.Reporter = (*Hub)(nil)

func NewHub() *Hub {
	return &Hub{clients: make(map[*wsClient]struct{})}
}

// OnReplicated 实现 ports.Reporter
func (h *Hub) OnReplicated(report ports.Report) {
	msg, err := json.Marshal(Event{Type: "replication", Data: report})
	if err != nil {
		log.Warnf("⚠️ [ws] 序列化失败: %v", err)
		return
	}
	h.broadcast(msg)
}

func (h *Hub) broadcast(msg []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			log.Warnf("⚠️ [ws] 客户端 %s 发送缓冲已满，断开", c.id)
			h.removeLocked(c)
		}
	}
}

// Clients 当前连接数
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Serve 升级连接并阻塞到连接结束
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request) error {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	c := &wsClient{id: uuid.NewString()[:8], conn: conn, send: make(chan []byte, sendBuffer)}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = conn.Close()
		return nil
	}
	h.clients[c] = struct{}{}
	total := len(h.clients)
	h.mu.Unlock()
	log.Infof("🔌 [ws] 客户端连接: %s (total=%d)", c.id, total)

	go c.writePump()
	c.readPump()

	h.mu.Lock()
	h.removeLocked(c)
	h.mu.Unlock()
	log.Infof("🔌 [ws] 客户端断开: %s", c.id)
	return nil
}

func (h *Hub) removeLocked(c *wsClient) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
}

// Close 断开所有连接，之后的连接直接关闭
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		h.removeLocked(c)
	}
}

// readPump 只处理 pong 与关闭；客户端不需要发送任何内容
func (c *wsClient) readPump() {
	defer c.conn.Close()
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Debugf("[ws] read error: %v", err)
			}
			return
		}
	}
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
