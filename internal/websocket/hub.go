package websocket

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	jwtpkg "drivehub/backend/internal/auth/jwt"
	"drivehub/backend/internal/domain"
	"drivehub/backend/internal/pool"
)

// NamespaceAccess 命名空间访问检查接口
type NamespaceAccess interface {
	IsNamespaceMember(namespaceID, userID string) (bool, error)
	GetUserByID(id string) (*domain.User, error)
}

// upgraderFactory 创建带有 Origin 验证的 WebSocket 升级器
func upgraderFactory(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			for _, origin := range allowedOrigins {
				if origin == "*" {
					return true
				}
			}

			requestOrigin := r.Header.Get("Origin")
			if requestOrigin == "" {
				// 无 Origin 视为同源请求
				return true
			}

			for _, origin := range allowedOrigins {
				if requestOrigin == origin {
					return true
				}
			}

			return false
		},
	}
}

// MessageType 定义WebSocket消息类型
type MessageType string

const (
	MessageTypeGroupCreated     MessageType = "group_created"
	MessageTypeGroupDeleted     MessageType = "group_deleted"
	MessageTypeContactsImported MessageType = "contacts_imported"
	MessageTypePing             MessageType = "ping"
	MessageTypePong             MessageType = "pong"
	MessageTypeSubscribe        MessageType = "subscribe"
	MessageTypeUnsubscribe      MessageType = "unsubscribe"
	MessageTypeSubscribed       MessageType = "subscribed"
	MessageTypeError            MessageType = "error"
)

// Message 定义WebSocket消息结构
type Message struct {
	Type        MessageType     `json:"type"`
	NamespaceID string          `json:"namespaceId,omitempty"`
	Data        json.RawMessage `json:"data,omitempty"`
	Error       string          `json:"error,omitempty"`
	Timestamp   time.Time       `json:"timestamp"`
}

// Client 代表一个WebSocket客户端连接
type Client struct {
	ID           string
	UserID       string
	conn         *websocket.Conn
	send         chan []byte
	hub          *Hub
	namespaceIDs map[string]bool // 已订阅的命名空间
	mu           sync.RWMutex
	log          *zap.Logger
}

// Hub 管理所有WebSocket连接，按命名空间分发事件
type Hub struct {
	clients        map[string]*Client            // clientID -> Client
	namespaces     map[string]map[string]*Client // namespaceID -> clientID -> Client
	register       chan *Client
	unregister     chan *Client
	broadcast      chan *BroadcastMessage
	mu             sync.RWMutex
	log            *zap.Logger
	allowedOrigins []string
	jwtManager     *jwtpkg.Manager
	access         NamespaceAccess
	workers        *pool.WorkerPool // 广播扇出使用的协程池，可为 nil
}

// BroadcastMessage 广播消息
type BroadcastMessage struct {
	NamespaceID string
	Message     *Message
}

// NewHub 创建WebSocket Hub
//
// access 用于在订阅时校验用户对命名空间的成员资格；workers
// 为 nil 时扇出在 Hub 主循环内同步完成。
func NewHub(allowedOrigins []string, jwtManager *jwtpkg.Manager, access NamespaceAccess, workers *pool.WorkerPool, log *zap.Logger) *Hub {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}

	return &Hub{
		clients:        make(map[string]*Client),
		namespaces:     make(map[string]map[string]*Client),
		register:       make(chan *Client),
		unregister:     make(chan *Client),
		broadcast:      make(chan *BroadcastMessage, 256),
		log:            log,
		allowedOrigins: allowedOrigins,
		jwtManager:     jwtManager,
		access:         access,
		workers:        workers,
	}
}

// ClientCount 返回当前连接数
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Run 启动Hub
func (h *Hub) Run(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.log.Info("websocket hub stopped")
			h.closeAllClients()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.ID] = client
			h.mu.Unlock()
			h.log.Info("client registered",
				zap.String("id", client.ID),
				zap.String("user_id", client.UserID))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.ID]; ok {
				for namespaceID := range client.namespaceIDs {
					if clients, exists := h.namespaces[namespaceID]; exists {
						delete(clients, client.ID)
						if len(clients) == 0 {
							delete(h.namespaces, namespaceID)
						}
					}
				}
				delete(h.clients, client.ID)
				close(client.send)
				h.log.Info("client unregistered", zap.String("id", client.ID))
			}
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.broadcastToNamespace(msg.NamespaceID, msg.Message)

		case <-ticker.C:
			h.pingAllClients()
		}
	}
}

// GroupEventData 群组事件通知数据
type GroupEventData struct {
	GroupID   string `json:"groupId"`
	Path      string `json:"path"`
	Name      string `json:"name,omitempty"`
	CreatedAt string `json:"createdAt,omitempty"`
}

// NotifyGroupCreated 通知群组创建
func (h *Hub) NotifyGroupCreated(group *domain.Group) {
	data, err := json.Marshal(GroupEventData{
		GroupID:   group.ID,
		Path:      group.Path,
		Name:      group.Name,
		CreatedAt: group.CreatedAt.Format(time.RFC3339),
	})
	if err != nil {
		h.log.Error("failed to marshal group event", zap.Error(err))
		return
	}

	h.publish(group.NamespaceID, MessageTypeGroupCreated, data)
}

// NotifyGroupDeleted 通知群组删除
func (h *Hub) NotifyGroupDeleted(namespaceID, groupID string) {
	data, err := json.Marshal(GroupEventData{GroupID: groupID})
	if err != nil {
		return
	}

	h.publish(namespaceID, MessageTypeGroupDeleted, data)
}

// ContactsImportedData 联系人导入事件通知数据
type ContactsImportedData struct {
	NamespaceID string `json:"namespaceId"`
	Count       int    `json:"count"`
	ListID      string `json:"listId,omitempty"`
	ImportedAt  string `json:"importedAt"`
}

// NotifyContactsImported 通知联系人导入完成
func (h *Hub) NotifyContactsImported(namespaceID string, count int, listID *string) {
	event := ContactsImportedData{
		NamespaceID: namespaceID,
		Count:       count,
		ImportedAt:  time.Now().Format(time.RFC3339),
	}
	if listID != nil {
		event.ListID = *listID
	}

	data, err := json.Marshal(event)
	if err != nil {
		h.log.Error("failed to marshal contacts event", zap.Error(err))
		return
	}

	h.publish(namespaceID, MessageTypeContactsImported, data)
}

// publish 向命名空间的订阅者广播事件
func (h *Hub) publish(namespaceID string, msgType MessageType, data json.RawMessage) {
	msg := &Message{
		Type:        msgType,
		NamespaceID: namespaceID,
		Data:        data,
		Timestamp:   time.Now(),
	}

	select {
	case h.broadcast <- &BroadcastMessage{NamespaceID: namespaceID, Message: msg}:
	default:
		h.log.Warn("broadcast queue full, dropping event",
			zap.String("namespace_id", namespaceID),
			zap.String("type", string(msgType)))
	}
}

// broadcastToNamespace 向订阅特定命名空间的客户端广播消息
func (h *Hub) broadcastToNamespace(namespaceID string, msg *Message) {
	h.mu.RLock()
	subscribers := h.namespaces[namespaceID]
	clients := make([]*Client, 0, len(subscribers))
	for _, client := range subscribers {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	if len(clients) == 0 {
		return
	}

	data, err := json.Marshal(msg)
	if err != nil {
		h.log.Error("failed to marshal message", zap.Error(err))
		return
	}

	deliver := func(client *Client) {
		select {
		case client.send <- data:
		default:
			// 客户端阻塞，跳过
			h.log.Warn("client channel blocked, skipping", zap.String("client_id", client.ID))
		}
	}

	for _, client := range clients {
		client := client
		if h.workers == nil || !h.workers.TrySubmit(func() { deliver(client) }) {
			deliver(client)
		}
	}
}

// pingAllClients 向所有客户端发送ping
func (h *Hub) pingAllClients() {
	msg := &Message{
		Type:      MessageTypePing,
		Timestamp: time.Now(),
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, client := range h.clients {
		select {
		case client.send <- data:
		default:
		}
	}
}

// closeAllClients 关闭所有客户端连接
func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, client := range h.clients {
		close(client.send)
	}
	h.clients = make(map[string]*Client)
	h.namespaces = make(map[string]map[string]*Client)
}

// authenticateClient 认证客户端
func (h *Hub) authenticateClient(c *gin.Context) (*Client, error) {
	token := c.Query("token")
	if token == "" {
		authHeader := c.GetHeader("Authorization")
		if authHeader != "" {
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) == 2 && parts[0] == "Bearer" {
				token = parts[1]
			}
		}
	}

	if token == "" {
		return nil, errors.New("missing authentication token")
	}

	claims, err := h.jwtManager.ValidateToken(token)
	if err != nil {
		return nil, errors.New("invalid authentication token")
	}

	user, err := h.access.GetUserByID(claims.UserID)
	if err != nil {
		return nil, errors.New("unknown user")
	}
	if user.BlockedAt != nil {
		return nil, errors.New("account blocked")
	}

	client := &Client{
		ID:           generateClientID(),
		UserID:       user.ID,
		namespaceIDs: make(map[string]bool),
		log:          h.log,
	}

	h.log.Info("websocket authentication successful",
		zap.String("user_id", user.ID),
		zap.String("username", user.Username))

	return client, nil
}

// HandleWebSocket 处理WebSocket连接
func HandleWebSocket(hub *Hub) gin.HandlerFunc {
	upgrader := upgraderFactory(hub.allowedOrigins)

	return func(c *gin.Context) {
		client, err := hub.authenticateClient(c)
		if err != nil {
			hub.log.Warn("websocket authentication failed",
				zap.Error(err),
				zap.String("remote_addr", c.ClientIP()))
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			hub.log.Error("failed to upgrade connection",
				zap.Error(err),
				zap.String("origin", c.Request.Header.Get("Origin")),
				zap.String("remote_addr", c.ClientIP()))
			return
		}

		client.conn = conn
		client.hub = hub
		client.send = make(chan []byte, 256)

		hub.register <- client

		go client.writePump()
		go client.readPump()
	}
}

// readPump 处理客户端消息
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		var msg Message
		err := c.conn.ReadJSON(&msg)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Error("websocket error", zap.Error(err))
			}
			break
		}

		c.handleMessage(&msg)
	}
}

// writePump 发送消息给客户端
func (c *Client) writePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			c.conn.WriteMessage(websocket.TextMessage, message)

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage 处理接收到的消息
func (c *Client) handleMessage(msg *Message) {
	switch msg.Type {
	case MessageTypeSubscribe:
		c.subscribeNamespace(msg.NamespaceID)
	case MessageTypeUnsubscribe:
		c.unsubscribeNamespace(msg.NamespaceID)
	case MessageTypePong:
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	default:
		c.log.Warn("unknown message type", zap.String("type", string(msg.Type)))
	}
}

// subscribeNamespace 订阅命名空间事件
//
// 订阅前校验成员资格：用户只能订阅自己的个人命名空间或所属
// 群组的命名空间。
func (c *Client) subscribeNamespace(namespaceID string) {
	if namespaceID == "" {
		c.sendError("namespace ID is required")
		return
	}

	ok, err := c.hub.access.IsNamespaceMember(namespaceID, c.UserID)
	if err != nil || !ok {
		c.log.Warn("subscription denied",
			zap.String("client_id", c.ID),
			zap.String("namespace_id", namespaceID),
			zap.String("user_id", c.UserID))
		c.sendError(fmt.Sprintf("no permission to access namespace: %s", namespaceID))
		return
	}

	c.mu.Lock()
	c.namespaceIDs[namespaceID] = true
	c.mu.Unlock()

	c.hub.mu.Lock()
	if c.hub.namespaces[namespaceID] == nil {
		c.hub.namespaces[namespaceID] = make(map[string]*Client)
	}
	c.hub.namespaces[namespaceID][c.ID] = c
	c.hub.mu.Unlock()

	c.log.Info("subscribed to namespace",
		zap.String("client_id", c.ID),
		zap.String("namespace_id", namespaceID),
		zap.String("user_id", c.UserID))

	c.sendMessage(&Message{
		Type:        MessageTypeSubscribed,
		NamespaceID: namespaceID,
		Timestamp:   time.Now(),
	})
}

// unsubscribeNamespace 取消订阅
func (c *Client) unsubscribeNamespace(namespaceID string) {
	c.mu.Lock()
	delete(c.namespaceIDs, namespaceID)
	c.mu.Unlock()

	c.hub.mu.Lock()
	if clients, exists := c.hub.namespaces[namespaceID]; exists {
		delete(clients, c.ID)
		if len(clients) == 0 {
			delete(c.hub.namespaces, namespaceID)
		}
	}
	c.hub.mu.Unlock()

	c.log.Info("unsubscribed from namespace",
		zap.String("client_id", c.ID),
		zap.String("namespace_id", namespaceID))
}

// sendError 发送错误消息给客户端
func (c *Client) sendError(errMsg string) {
	c.sendMessage(&Message{
		Type:      MessageTypeError,
		Error:     errMsg,
		Timestamp: time.Now(),
	})
}

// sendMessage 发送消息给客户端
func (c *Client) sendMessage(msg *Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		c.log.Error("failed to marshal message", zap.Error(err))
		return
	}

	select {
	case c.send <- data:
	default:
		c.log.Warn("client channel blocked", zap.String("client_id", c.ID))
	}
}

// generateClientID 生成客户端ID
func generateClientID() string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return time.Now().Format("20060102150405.000000000")
	}
	return hex.EncodeToString(buf)
}
