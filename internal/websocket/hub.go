package websocket

import (
	"sync"

	"go.uber.org/zap"
)

// Hub 세션 디렉터리 이벤트를 구독 클라이언트 전체에 브로드캐스트
type Hub struct {
	// 연결 ID별 클라이언트 (connID -> *Client)
	clients map[string]*Client
	mu      sync.RWMutex

	broadcast  chan *Message
	register   chan *Client
	unregister chan *Client

	logger *zap.Logger
}

// Message 이벤트 피드 메시지
type Message struct {
	Type    string      `json:"type"`    // "session_created" 등
	Payload interface{} `json:"payload"` // 이벤트 내용
}

// NewHub Hub 생성
func NewHub() *Hub {
	logger, _ := zap.NewProduction()
	return &Hub{
		clients:    make(map[string]*Client),
		broadcast:  make(chan *Message, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		logger:     logger,
	}
}

// Run Hub 실행
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case message := <-h.broadcast:
			h.broadcastMessage(message)
		}
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[client.connID] = client
	h.logger.Info("Event feed client connected",
		zap.String("username", client.username),
		zap.Int("totalClients", len(h.clients)))
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, exists := h.clients[client.connID]; exists {
		delete(h.clients, client.connID)
		close(client.send)
		h.logger.Info("Event feed client disconnected",
			zap.String("username", client.username),
			zap.Int("totalClients", len(h.clients)))
	}
}

func (h *Hub) broadcastMessage(message *Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, client := range h.clients {
		select {
		case client.send <- message:
		default:
			// 송신 채널이 가득 찬 클라이언트는 연결 해제
			h.logger.Warn("Client send channel full, unregistering",
				zap.String("username", client.username))
			go func(c *Client) {
				h.unregister <- c
			}(client)
		}
	}
}

// Publish 세션 수명주기 이벤트 브로드캐스트 (service.EventPublisher 구현)
func (h *Hub) Publish(msgType string, payload interface{}) {
	h.broadcast <- &Message{
		Type:    msgType,
		Payload: payload,
	}
}
