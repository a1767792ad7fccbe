package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/satriahrh/mirrorvoice/domain"
	"github.com/satriahrh/mirrorvoice/domain/repositories"
	"github.com/satriahrh/mirrorvoice/internal/observability"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Displays only send small control messages.
	maxMessageSize = 4 * 1024

	sendBufferSize      = 64
	broadcastBufferSize = 128
)

var upgrader = websocket.Upgrader{
	// The display is served from the same device, any origin may connect.
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

type broadcastMessage struct {
	payload  []byte
	isStatus bool
}

// Hub maintains the set of connected displays and broadcasts notifications to them.
type Hub struct {
	// Registered clients.
	clients map[string]*Client

	// Register requests from the clients.
	register chan *Client

	// Unregister requests from clients.
	unregister chan *Client

	// Outbound notifications.
	broadcast chan broadcastMessage

	// Last STATUS_UPDATE, replayed to new clients.
	lastStatus []byte

	// Guards clients for readers outside Run.
	mu sync.RWMutex

	// Closed when Run returns.
	done chan struct{}

	metrics *observability.Metrics
	logger  *zap.Logger
}

var _ repositories.Notifier = (*Hub)(nil)

// NewHub creates a new display hub
func NewHub(metrics *observability.Metrics, logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan broadcastMessage, broadcastBufferSize),
		done:       make(chan struct{}),
		metrics:    metrics,
		logger:     logger,
	}
}

// Run starts the hub's main loop and closes every client when ctx is done
func (h *Hub) Run(ctx context.Context) error {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for id, client := range h.clients {
				delete(h.clients, id)
				close(client.send)
			}
			h.mu.Unlock()
			h.metrics.SetDisplayClients(0)
			return nil

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.id] = client
			count := len(h.clients)
			h.mu.Unlock()
			if h.lastStatus != nil {
				client.send <- h.lastStatus
			}
			h.metrics.SetDisplayClients(count)
			h.logger.Info("Display registered", zap.String("clientID", client.id))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.id]; ok {
				delete(h.clients, client.id)
				close(client.send)
			}
			count := len(h.clients)
			h.mu.Unlock()
			h.metrics.SetDisplayClients(count)
			h.logger.Info("Display unregistered", zap.String("clientID", client.id))

		case msg := <-h.broadcast:
			if msg.isStatus {
				h.lastStatus = msg.payload
			}
			h.mu.Lock()
			for id, client := range h.clients {
				select {
				case client.send <- msg.payload:
				default:
					// slow display, drop it rather than stall the pipeline
					delete(h.clients, id)
					close(client.send)
					h.logger.Warn("Dropping slow display", zap.String("clientID", id))
				}
			}
			h.mu.Unlock()
		}
	}
}

// Notify queues a notification for every connected display. It never blocks
// the caller; notifications are dropped when the queue is full.
func (h *Hub) Notify(n domain.Notification) {
	payload, err := json.Marshal(n)
	if err != nil {
		h.logger.Error("Failed to encode notification", zap.String("type", string(n.Type)), zap.Error(err))
		return
	}

	select {
	case h.broadcast <- broadcastMessage{payload: payload, isStatus: n.Type == domain.NotificationStatusUpdate}:
	default:
		h.logger.Warn("Notification queue full, dropping", zap.String("type", string(n.Type)))
	}
}

// ClientCount returns the number of connected displays
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Client is a middleman between the websocket connection and the hub.
type Client struct {
	hub *Hub

	// The websocket connection.
	conn *websocket.Conn

	// Buffered channel of outbound messages, closed by the hub.
	send chan []byte

	// Replies to control messages. Never closed since readPump writes to it.
	control chan []byte

	id     string
	logger *zap.Logger
}

// HandleWebSocket upgrades the request and attaches the display to the hub.
// An empty clientID gets a random one.
func HandleWebSocket(hub *Hub, c echo.Context, clientID string, logger *zap.Logger) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		logger.Error("WebSocket upgrade failed", zap.Error(err))
		return err
	}

	if clientID == "" {
		clientID = uuid.NewString()
	}

	client := &Client{
		hub:     hub,
		conn:    conn,
		send:    make(chan []byte, sendBufferSize),
		control: make(chan []byte, 4),
		id:      clientID,
		logger:  logger,
	}

	select {
	case client.hub.register <- client:
	case <-client.hub.done:
		conn.Close()
		return nil
	}

	// Allow collection of memory referenced by the caller by doing all work in
	// new goroutines.
	go client.writePump()
	go client.readPump()

	return nil
}

// readPump handles control messages and pongs until the peer goes away.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("WebSocket error", zap.Error(err))
			}
			break
		}

		if messageType != websocket.TextMessage {
			c.logger.Warn("Ignoring non-text message from display", zap.Int("type", messageType))
			continue
		}
		if reply := handleControlMessage(message); reply != nil {
			select {
			case c.control <- reply:
			default:
			}
		}
	}
}

// writePump pumps messages from the hub to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger.Error("Failed to write message", zap.Error(err))
				return
			}

		case reply := <-c.control:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, reply); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
