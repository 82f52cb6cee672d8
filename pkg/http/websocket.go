package http

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"realsync-server/pkg/engine"
	"realsync-server/pkg/metrics"
)

// AlertStreamMessage is one real-time update pushed to WebSocket clients.
// Exactly one of Alert or Suggestion is set, indicated by Kind.
type AlertStreamMessage struct {
	SessionID  string             `json:"session_id"`
	Kind       string             `json:"kind"`
	Alert      *engine.Alert      `json:"alert,omitempty"`
	Suggestion *engine.Suggestion `json:"suggestion,omitempty"`
	Timestamp  time.Time          `json:"timestamp"`
}

// Client represents a connected WebSocket client
type Client struct {
	hub       *AlertHub
	conn      *websocket.Conn
	send      chan []byte
	logger    *logrus.Logger
	sessionID string // If client subscribes to a specific session
}

// AlertHub manages WebSocket clients and streams alerts and suggestions to
// them as the engine emits them. It implements engine.Subscriber.
type AlertHub struct {
	logger             *logrus.Logger
	clients            map[*Client]bool
	sessionSubscribers map[string]map[*Client]bool
	broadcast          chan *AlertStreamMessage
	register           chan *Client
	unregister         chan *Client
	mutex              sync.RWMutex
}

// WebSocketUpgrader configures the WebSocket connection
var WebSocketUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Allow all connections
		return true
	},
}

// NewAlertHub creates a new alert hub
func NewAlertHub(logger *logrus.Logger) *AlertHub {
	return &AlertHub{
		logger:             logger,
		clients:            make(map[*Client]bool),
		sessionSubscribers: make(map[string]map[*Client]bool),
		broadcast:          make(chan *AlertStreamMessage, 256),
		register:           make(chan *Client),
		unregister:         make(chan *Client),
	}
}

// Run starts the alert hub
func (h *AlertHub) Run(ctx context.Context) {
	h.logger.Info("Starting WebSocket alert hub")

	for {
		select {
		case <-ctx.Done():
			h.logger.Info("Shutting down WebSocket alert hub")
			return

		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client] = true

			// If client subscribes to a specific session
			if client.sessionID != "" {
				if _, exists := h.sessionSubscribers[client.sessionID]; !exists {
					h.sessionSubscribers[client.sessionID] = make(map[*Client]bool)
				}
				h.sessionSubscribers[client.sessionID][client] = true
				h.logger.WithFields(logrus.Fields{
					"session_id": client.sessionID,
				}).Info("Client subscribed to specific session")
			}

			h.mutex.Unlock()
			metrics.WebsocketClientConnected()
			h.logger.Info("Client connected to WebSocket")

		case client := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)

				if client.sessionID != "" {
					if subscribers, exists := h.sessionSubscribers[client.sessionID]; exists {
						delete(subscribers, client)
						if len(subscribers) == 0 {
							delete(h.sessionSubscribers, client.sessionID)
						}
					}
				}

				metrics.WebsocketClientDisconnected()
				h.logger.Info("Client disconnected from WebSocket")
			}
			h.mutex.Unlock()

		case message := <-h.broadcast:
			data, err := json.Marshal(message)
			if err != nil {
				h.logger.WithError(err).Error("Failed to marshal alert stream message")
				continue
			}

			// Full lock: slow clients are dropped here, which mutates
			// the client maps.
			h.mutex.Lock()

			// Send to subscribers of this specific session
			if subscribers, exists := h.sessionSubscribers[message.SessionID]; exists && len(subscribers) > 0 {
				for client := range subscribers {
					select {
					case client.send <- data:
					default:
						close(client.send)
						delete(h.clients, client)
						delete(subscribers, client)
					}
				}
			}

			// Also broadcast to clients that want all sessions
			for client := range h.clients {
				if client.sessionID != "" {
					continue
				}

				select {
				case client.send <- data:
				default:
					close(client.send)
					delete(h.clients, client)
				}
			}

			h.mutex.Unlock()
		}
	}
}

// OnAlert implements engine.Subscriber. The send is non-blocking so a slow
// hub never stalls the evaluation path.
func (h *AlertHub) OnAlert(sessionID string, alert *engine.Alert) {
	if alert == nil {
		return
	}
	h.enqueue(&AlertStreamMessage{
		SessionID: sessionID,
		Kind:      "alert",
		Alert:     alert,
		Timestamp: time.Now().UTC(),
	})
}

// OnSuggestion implements engine.Subscriber.
func (h *AlertHub) OnSuggestion(sessionID string, suggestion *engine.Suggestion) {
	if suggestion == nil {
		return
	}
	h.enqueue(&AlertStreamMessage{
		SessionID:  sessionID,
		Kind:       "suggestion",
		Suggestion: suggestion,
		Timestamp:  time.Now().UTC(),
	})
}

func (h *AlertHub) enqueue(message *AlertStreamMessage) {
	select {
	case h.broadcast <- message:
	default:
		h.logger.WithFields(logrus.Fields{
			"session_id": message.SessionID,
			"kind":       message.Kind,
		}).Warn("Alert stream backlog full, dropping message")
	}
}

// ClientCount returns the number of connected WebSocket clients
func (h *AlertHub) ClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// ServeWs handles WebSocket requests from clients
func (h *AlertHub) ServeWs(w http.ResponseWriter, r *http.Request) {
	conn, err := WebSocketUpgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Error("Failed to upgrade connection to WebSocket")
		return
	}

	// Optional per-session subscription
	sessionID := r.URL.Query().Get("session_id")

	client := &Client{
		hub:       h,
		conn:      conn,
		send:      make(chan []byte, 256),
		logger:    h.logger,
		sessionID: sessionID,
	}

	client.hub.register <- client

	go client.writePump()
	go client.readPump()
}

// writePump pumps messages from the hub to the WebSocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(60 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				// The hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// Add queued messages to the current WebSocket message
			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump discards client input and unregisters the client when the
// connection drops.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()
	c.conn.SetReadLimit(512)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
