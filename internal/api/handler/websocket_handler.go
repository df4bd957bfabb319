package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"agri_inspection/internal/domain"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebSocketManager fans record events out to connected dashboards.
type WebSocketManager struct {
	clients    map[*websocket.Conn]bool
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	broadcast  chan []byte
	done       chan struct{}
	mutex      sync.RWMutex
	log        *zap.Logger
}

func NewWebSocketManager(log *zap.Logger) *WebSocketManager {
	return &WebSocketManager{
		clients:    make(map[*websocket.Conn]bool),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		broadcast:  make(chan []byte, 64),
		done:       make(chan struct{}),
		log:        log,
	}
}

// Start runs the hub until ctx is cancelled, then closes every client.
// It must be called at most once.
func (wsm *WebSocketManager) Start(ctx context.Context) {
	defer close(wsm.done)
	for {
		select {
		case <-ctx.Done():
			wsm.mutex.Lock()
			for client := range wsm.clients {
				client.Close()
				delete(wsm.clients, client)
			}
			wsm.mutex.Unlock()
			return

		case client := <-wsm.register:
			wsm.mutex.Lock()
			wsm.clients[client] = true
			total := len(wsm.clients)
			wsm.mutex.Unlock()
			wsm.log.Info("websocket client connected", zap.Int("total", total))

		case client := <-wsm.unregister:
			wsm.mutex.Lock()
			if _, ok := wsm.clients[client]; ok {
				delete(wsm.clients, client)
				client.Close()
			}
			total := len(wsm.clients)
			wsm.mutex.Unlock()
			wsm.log.Info("websocket client disconnected", zap.Int("total", total))

		case message := <-wsm.broadcast:
			wsm.mutex.Lock()
			for client := range wsm.clients {
				if err := client.WriteMessage(websocket.TextMessage, message); err != nil {
					wsm.log.Warn("writing to websocket client", zap.Error(err))
					client.Close()
					delete(wsm.clients, client)
				}
			}
			wsm.mutex.Unlock()
		}
	}
}

// Publish queues an event for every client. Events are dropped when the hub is saturated.
func (wsm *WebSocketManager) Publish(event domain.RecordEvent) {
	message, err := json.Marshal(event)
	if err != nil {
		wsm.log.Error("marshaling record event", zap.Error(err))
		return
	}

	select {
	case wsm.broadcast <- message:
	default:
		wsm.log.Warn("broadcast channel is full, dropping event",
			zap.String("type", string(event.Type)), zap.Int("record_id", event.RecordID))
	}
}

// join hands conn to the hub. It reports false once the hub has stopped.
func (wsm *WebSocketManager) join(conn *websocket.Conn) bool {
	select {
	case wsm.register <- conn:
		return true
	case <-wsm.done:
		return false
	}
}

func (wsm *WebSocketManager) leave(conn *websocket.Conn) {
	select {
	case wsm.unregister <- conn:
	case <-wsm.done:
	}
}

func (wsm *WebSocketManager) ClientCount() int {
	wsm.mutex.RLock()
	defer wsm.mutex.RUnlock()
	return len(wsm.clients)
}

type WebSocketHandler struct {
	wsManager *WebSocketManager
}

func NewWebSocketHandler(wsManager *WebSocketManager) *WebSocketHandler {
	return &WebSocketHandler{wsManager: wsManager}
}

// GET /ws
func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.wsManager.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	if !h.wsManager.join(conn) {
		conn.Close()
		return
	}

	// Dashboards only listen; reading detects the disconnect.
	go func() {
		defer h.wsManager.leave(conn)

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					h.wsManager.log.Warn("websocket read", zap.Error(err))
				}
				return
			}
		}
	}()
}
