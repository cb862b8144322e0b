package realtime

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 32
)

// Upgrader configures the WebSocket connection.
var Upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // mobile clients do not send a browser Origin
	},
}

// MessageHandler receives text frames sent by a client.
type MessageHandler func(userID uint, role string, payload []byte)

// Hub tracks live sockets per user and fans events out to them.
type Hub struct {
	mu      sync.RWMutex
	clients map[uint]map[*client]struct{}
}

type client struct {
	hub    *Hub
	conn   *websocket.Conn
	userID uint
	role   string
	send   chan []byte
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[uint]map[*client]struct{})}
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c.userID]; !ok {
		h.clients[c.userID] = make(map[*client]struct{})
	}
	h.clients[c.userID][c] = struct{}{}
	logrus.WithFields(logrus.Fields{
		"user_id":  c.userID,
		"role":     c.role,
		"conn_ptr": fmt.Sprintf("%p", c.conn),
	}).Info("Client registered with hub.")
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	clients, ok := h.clients[c.userID]
	if !ok {
		return
	}
	if _, ok := clients[c]; !ok {
		return
	}
	delete(clients, c)
	close(c.send)
	if len(clients) == 0 {
		delete(h.clients, c.userID)
	}
	logrus.WithFields(logrus.Fields{
		"user_id":  c.userID,
		"conn_ptr": fmt.Sprintf("%p", c.conn),
	}).Info("Client unregistered from hub.")
}

// Connections returns the number of live sockets for userID.
func (h *Hub) Connections(userID uint) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

// PublishToUser queues evt on every socket of userID.
func (h *Hub) PublishToUser(userID uint, evt Event) {
	payload, ok := encode(evt)
	if !ok {
		return
	}
	h.deliverToUser(userID, payload)
}

// Broadcast queues evt on every socket.
func (h *Hub) Broadcast(evt Event) {
	payload, ok := encode(evt)
	if !ok {
		return
	}
	h.deliverAll(payload)
}

func (h *Hub) deliverToUser(userID uint, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	clients, ok := h.clients[userID]
	if !ok {
		logrus.WithField("user_id", userID).Debug("No live socket for user, event not delivered.")
		return
	}
	for c := range clients {
		c.enqueue(payload)
	}
}

func (h *Hub) deliverAll(payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, clients := range h.clients {
		for c := range clients {
			c.enqueue(payload)
		}
	}
}

// enqueue never blocks; a client that cannot keep up loses the event.
// Callers hold the hub read lock, so send is not closed concurrently.
func (c *client) enqueue(payload []byte) {
	select {
	case c.send <- payload:
	default:
		logrus.WithField("user_id", c.userID).Warn("Client send buffer full, dropping event.")
	}
}

// Serve runs a connection until the client goes away. Text frames from the
// client are passed to onMessage.
func (h *Hub) Serve(conn *websocket.Conn, userID uint, role string, onMessage MessageHandler) {
	c := &client{hub: h, conn: conn, userID: userID, role: role, send: make(chan []byte, sendBuffer)}
	h.register(c)
	go c.writePump()
	c.readPump(onMessage)
}

func (c *client) readPump(onMessage MessageHandler) {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		messageType, p, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logrus.WithError(err).WithField("user_id", c.userID).Warn("WebSocket closed unexpectedly.")
			} else {
				logrus.WithField("user_id", c.userID).Info("WebSocket closed.")
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}
		if onMessage == nil {
			logrus.WithField("user_id", c.userID).Warn("Client sent unexpected message. Ignoring.")
			continue
		}
		onMessage(c.userID, c.role, p)
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				logrus.WithError(err).WithField("user_id", c.userID).Warn("Failed to write to client.")
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

func encode(evt Event) ([]byte, bool) {
	payload, err := json.Marshal(evt)
	if err != nil {
		logrus.WithError(err).WithField("event", evt.Name).Error("Failed to encode event.")
		return nil, false
	}
	return payload, true
}
